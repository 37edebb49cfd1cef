package recurrence

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EngineConfig holds configuration options for the recurrence engine
type EngineConfig struct {
	// Preset names one of the built-in configurations; explicit fields override it
	Preset string `yaml:"preset,omitempty"`

	// Cache configuration
	CacheEnabled bool        `yaml:"cache_enabled"`
	CacheConfig  CacheConfig `yaml:"cache"`

	// MaxOccurrences caps a single expansion (0 = unlimited)
	MaxOccurrences int `yaml:"max_occurrences"`
}

// DefaultEngineConfig provides sensible defaults for production use
var DefaultEngineConfig = EngineConfig{
	CacheEnabled:   true,
	CacheConfig:    DefaultCacheConfig,
	MaxOccurrences: 10000,
}

// HighPerformanceConfig is optimized for high-traffic scenarios
var HighPerformanceConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig: CacheConfig{
		TTL:             30 * time.Minute, // Longer cache TTL
		MaxEntries:      5000,             // More cache entries
		CleanupInterval: 10 * time.Minute, // Less frequent cleanup
	},
	MaxOccurrences: 5000,
}

// LowMemoryConfig is optimized for memory-constrained environments
var LowMemoryConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig: CacheConfig{
		TTL:             5 * time.Minute, // Shorter cache TTL
		MaxEntries:      100,             // Fewer cache entries
		CleanupInterval: 2 * time.Minute, // More frequent cleanup
	},
	MaxOccurrences: 2000,
}

// DisabledCacheConfig turns off caching entirely
var DisabledCacheConfig = EngineConfig{
	CacheEnabled:   false,
	CacheConfig:    CacheConfig{}, // Not used
	MaxOccurrences: 10000,
}

// PresetConfig looks up a built-in configuration by name.
func PresetConfig(name string) (EngineConfig, error) {
	var cfg EngineConfig
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		cfg = DefaultEngineConfig
	case "high-performance", "high_performance":
		cfg = HighPerformanceConfig
	case "low-memory", "low_memory":
		cfg = LowMemoryConfig
	case "disabled-cache", "disabled_cache", "no-cache":
		cfg = DisabledCacheConfig
	default:
		return EngineConfig{}, fmt.Errorf("unknown engine preset %q", name)
	}
	cfg.Preset = name
	return cfg, nil
}

// Normalize fills zero cache fields from the defaults.
func (c *EngineConfig) Normalize() {
	if c.MaxOccurrences < 0 {
		c.MaxOccurrences = 0
	}
	if !c.CacheEnabled {
		return
	}
	if c.CacheConfig.TTL <= 0 {
		c.CacheConfig.TTL = DefaultCacheConfig.TTL
	}
	if c.CacheConfig.MaxEntries <= 0 {
		c.CacheConfig.MaxEntries = DefaultCacheConfig.MaxEntries
	}
	if c.CacheConfig.CleanupInterval <= 0 {
		c.CacheConfig.CleanupInterval = DefaultCacheConfig.CleanupInterval
	}
}

// ParseConfig decodes a YAML engine configuration. The preset, when named, is
// applied first and the remaining fields are layered on top of it.
func ParseConfig(data []byte) (EngineConfig, error) {
	var head struct {
		Preset string `yaml:"preset"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return EngineConfig{}, fmt.Errorf("failed to parse engine config: %w", err)
	}

	cfg, err := PresetConfig(head.Preset)
	if err != nil {
		return EngineConfig{}, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return EngineConfig{}, fmt.Errorf("failed to parse engine config: %w", err)
	}
	cfg.Normalize()
	return cfg, nil
}

// LoadConfig reads a YAML engine configuration from path. A missing file
// yields DefaultEngineConfig.
func LoadConfig(path string) (EngineConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return DefaultEngineConfig, nil
		}
		return EngineConfig{}, fmt.Errorf("failed to read engine config %s: %w", path, err)
	}
	return ParseConfig(data)
}

// Marshal renders the configuration as YAML.
func (c EngineConfig) Marshal() ([]byte, error) {
	return yaml.Marshal(c)
}

// NewEngineWithConfig creates a new recurrence engine with custom configuration
func NewEngineWithConfig(config EngineConfig, opts ...Option) *Engine {
	config.Normalize()
	e := newEngine(config, opts...)
	if config.CacheEnabled && e.cache == nil {
		e.cache = NewRecurrenceCache(config.CacheConfig)
	}
	return e
}
