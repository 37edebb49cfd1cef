package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/cyp0633/librecur/recurrence"
	"github.com/urfave/cli"
)

var version = "dev"

const description = `recur expands recurring events described in YAML or iCalendar files.

Times are RFC 3339. Every calendar computation happens in UTC.`

type runner struct {
	out    io.Writer
	errOut io.Writer
	logger *slog.Logger
	engine *recurrence.Engine
}

func newApp(out, errOut io.Writer) *cli.App {
	r := &runner{out: out, errOut: errOut}

	app := cli.NewApp()
	app.Name = "recur"
	app.HelpName = "recur"
	app.Usage = "recurrence occurrence engine"
	app.UsageText = "recur [global options] <command> [arguments...]"
	app.Description = description
	app.Version = version
	app.Writer = out
	app.ErrWriter = errOut
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "YAML engine configuration file",
		},
		cli.StringFlag{
			Name:  "log-level",
			Value: "warn",
			Usage: "log level: debug, info, warn or error",
		},
	}
	app.Before = r.setup
	app.After = r.teardown
	app.Commands = []cli.Command{
		{
			Name:      "expand",
			Aliases:   []string{"e"},
			Usage:     "list the occurrences of a series inside a window",
			ArgsUsage: "<series.yaml>",
			Action:    r.expand,
			Flags:     outputFlags,
		},
		{
			Name:      "convert",
			Usage:     "convert a repetition count to an until instant or back",
			ArgsUsage: "<series.yaml>",
			Action:    r.convert,
			Flags:     convertFlags,
		},
		{
			Name:      "neighbours",
			Aliases:   []string{"n"},
			Usage:     "show the occurrences around an instant",
			ArgsUsage: "<series.yaml>",
			Action:    r.neighbours,
			Flags:     []cli.Flag{atFlag},
		},
		{
			Name:      "rrule",
			Usage:     "print the RFC 5545 RRULE of a series",
			ArgsUsage: "<series.yaml>",
			Action:    r.rrule,
		},
		{
			Name:      "import",
			Aliases:   []string{"i"},
			Usage:     "expand every event of an iCalendar file inside a window",
			ArgsUsage: "<calendar.ics>",
			Action:    r.importICS,
			Flags:     outputFlags,
		},
	}
	return app
}

func (r *runner) setup(ctx *cli.Context) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(ctx.String("log-level"))); err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	r.logger = slog.New(slog.NewTextHandler(r.errOut, &slog.HandlerOptions{Level: level}))

	cfg := recurrence.DefaultEngineConfig
	if path := ctx.String("config"); path != "" {
		var err error
		if cfg, err = recurrence.LoadConfig(path); err != nil {
			return err
		}
	}
	r.engine = recurrence.NewEngineWithConfig(cfg, recurrence.WithLogger(r.logger))
	r.logger.Debug("engine ready",
		"cache", cfg.CacheEnabled,
		"max_occurrences", cfg.MaxOccurrences)
	return nil
}

func (r *runner) teardown(*cli.Context) error {
	if r.engine != nil {
		r.engine.Close()
	}
	return nil
}

func main() {
	if err := newApp(os.Stdout, os.Stderr).Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "recur: %v\n", err)
		os.Exit(1)
	}
}
