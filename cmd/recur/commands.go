package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/cyp0633/librecur/agenda"
	"github.com/cyp0633/librecur/ics"
	"github.com/cyp0633/librecur/internal/xcal"
	"github.com/cyp0633/librecur/recurrence"
	"github.com/cyp0633/librecur/storage"
	"github.com/cyp0633/librecur/storage/memory"
	"github.com/samber/mo"
	"github.com/urfave/cli"
)

var (
	outputFlags = []cli.Flag{
		cli.StringFlag{
			Name:  "from",
			Usage: "window start (RFC 3339)",
		},
		cli.StringFlag{
			Name:  "to",
			Usage: "window end (RFC 3339)",
		},
		cli.StringFlag{
			Name:  "format, f",
			Value: "text",
			Usage: "output format: text, ics or xcal",
		},
	}

	convertFlags = []cli.Flag{
		cli.IntFlag{
			Name:  "count",
			Value: -1,
			Usage: "repetitions after the anchor to convert to an until instant",
		},
		cli.StringFlag{
			Name:  "until",
			Usage: "instant (RFC 3339) to convert to a repetition count",
		},
	}

	atFlag = cli.StringFlag{
		Name:  "at",
		Usage: "reference instant (RFC 3339), defaults to now",
	}
)

func parseInstant(name, value string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s: %w", name, err)
	}
	return t.UTC(), nil
}

func windowFromFlags(ctx *cli.Context) (recurrence.TimeRange, error) {
	if ctx.String("from") == "" || ctx.String("to") == "" {
		return recurrence.TimeRange{}, errors.New("--from and --to are required")
	}
	from, err := parseInstant("from", ctx.String("from"))
	if err != nil {
		return recurrence.TimeRange{}, err
	}
	to, err := parseInstant("to", ctx.String("to"))
	if err != nil {
		return recurrence.TimeRange{}, err
	}
	window := recurrence.NewTimeRange(from, to)
	return window, window.Validate()
}

func seriesArg(ctx *cli.Context) (seriesFile, error) {
	path := ctx.Args().First()
	if path == "" {
		return seriesFile{}, errors.New("no series file provided")
	}
	return loadSeries(path)
}

// recurringSeries loads a series that must carry a rule.
func recurringSeries(ctx *cli.Context) (recurrence.TimeRange, recurrence.Rule, error) {
	s, err := seriesArg(ctx)
	if err != nil {
		return recurrence.TimeRange{}, recurrence.Rule{}, err
	}
	rule, err := s.rule()
	if err != nil {
		return recurrence.TimeRange{}, recurrence.Rule{}, err
	}
	r, ok := rule.Get()
	if !ok {
		return recurrence.TimeRange{}, recurrence.Rule{}, errors.New("series file has no rule")
	}
	return s.anchor(), r, nil
}

func (r *runner) expand(ctx *cli.Context) error {
	s, err := seriesArg(ctx)
	if err != nil {
		return err
	}
	rule, err := s.rule()
	if err != nil {
		return err
	}
	window, err := windowFromFlags(ctx)
	if err != nil {
		return err
	}

	store := memory.New(memory.WithLogger(r.logger))
	event := &storage.Event{
		Name:        s.Name,
		Description: s.Description,
		Anchor:      s.anchor(),
		Rule:        rule,
	}
	if err := store.CreateEvent(context.Background(), event); err != nil {
		return err
	}
	return r.render(ctx, store, window)
}

func (r *runner) importICS(ctx *cli.Context) error {
	path := ctx.Args().First()
	if path == "" {
		return errors.New("no iCalendar file provided")
	}
	window, err := windowFromFlags(ctx)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	cal, err := ics.Decode(f)
	if err != nil {
		return err
	}

	store := memory.New(memory.WithLogger(r.logger))
	if err := ics.Import(context.Background(), store, cal); err != nil {
		return err
	}
	r.logger.Info("calendar imported",
		"events", len(cal.Events),
		"overrides", len(cal.Overrides))
	return r.render(ctx, store, window)
}

func (r *runner) render(ctx *cli.Context, store storage.Store, window recurrence.TimeRange) error {
	events, err := agenda.New(store, r.engine, agenda.WithLogger(r.logger)).Entries(context.Background(), window)
	if err != nil {
		return err
	}

	switch format := strings.ToLower(ctx.String("format")); format {
	case "text", "":
		return writeText(r.out, events)
	case "ics", "ical":
		return ics.Encode(r.out, events)
	case "xcal", "xml":
		return xcal.Encode(r.out, events)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func writeText(w io.Writer, events *agenda.Events) error {
	for _, entry := range events.Entries {
		window := entry.Window()
		name, _ := events.Describe(entry)
		line := fmt.Sprintf("%s  %s", window.Start.Format(time.RFC3339), window.End.Format(time.RFC3339))
		if name != "" {
			line += "  " + name
		}
		if entry.Deleted() {
			line += "  (cancelled)"
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func (r *runner) convert(ctx *cli.Context) error {
	anchor, rule, err := recurringSeries(ctx)
	if err != nil {
		return err
	}

	count, until := ctx.Int("count"), ctx.String("until")
	switch {
	case count >= 0 && until != "":
		return errors.New("--count and --until are exclusive")
	case count >= 0:
		t, err := r.engine.CountToUntil(anchor, rule, uint32(count))
		if err != nil {
			return err
		}
		fmt.Fprintln(r.out, t.Format(time.RFC3339))
	case until != "":
		t, err := parseInstant("until", until)
		if err != nil {
			return err
		}
		n, err := r.engine.UntilToCount(anchor, rule, t)
		if err != nil {
			return err
		}
		fmt.Fprintln(r.out, n)
	default:
		end, err := r.engine.Terminal(anchor, rule)
		if err != nil {
			return err
		}
		fmt.Fprintln(r.out, end.Format(time.RFC3339))
	}
	return nil
}

func (r *runner) neighbours(ctx *cli.Context) error {
	anchor, rule, err := recurringSeries(ctx)
	if err != nil {
		return err
	}
	at := time.Now().UTC()
	if v := ctx.String("at"); v != "" {
		if at, err = parseInstant("at", v); err != nil {
			return err
		}
	}

	prev, err := r.engine.Prev(anchor, rule, at)
	if err != nil {
		return err
	}
	next, err := r.engine.Next(anchor, rule, at)
	if err != nil {
		return err
	}
	fmt.Fprintf(r.out, "prev: %s\n", describeOccurrence(prev))
	fmt.Fprintf(r.out, "next: %s\n", describeOccurrence(next))
	return nil
}

func describeOccurrence(occ mo.Option[recurrence.TimeRange]) string {
	o, ok := occ.Get()
	if !ok {
		return "none"
	}
	return o.String()
}

func (r *runner) rrule(ctx *cli.Context) error {
	anchor, rule, err := recurringSeries(ctx)
	if err != nil {
		return err
	}
	s, err := recurrence.RRuleString(anchor, rule)
	if err != nil {
		return err
	}
	fmt.Fprintln(r.out, s)
	return nil
}
