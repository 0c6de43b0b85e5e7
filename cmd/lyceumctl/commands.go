package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Ignas/schooltool.lyceum/internal/app"
	"github.com/Ignas/schooltool.lyceum/internal/calendar"
	"github.com/Ignas/schooltool.lyceum/internal/dto"
	"github.com/Ignas/schooltool.lyceum/internal/service"
	"github.com/Ignas/schooltool.lyceum/pkg/migrations"
)

// action runs a prepared command against the connected application.
type action func(ctx context.Context, a *app.App, out io.Writer) error

type command struct {
	name    string
	summary string
	// prepare parses the command flags before anything is connected.
	prepare func(args []string, stderr io.Writer) (action, error)
}

var commands = map[string]command{}

func register(c command) {
	commands[c.name] = c
}

func init() {
	register(command{name: "days", summary: "list the merged day views of a viewer", prepare: prepareDays})
	register(command{name: "grid", summary: "render the day grid of one date", prepare: prepareGrid})
	register(command{name: "composite", summary: "summarise the composite timetables of an owner", prepare: prepareComposite})
	register(command{name: "periods", summary: "list the school periods of a date", prepare: preparePeriods})
	register(command{name: "export", summary: "export a calendar as iCalendar or CSV", prepare: prepareExport})
	register(command{name: "schema-dump", summary: "print a timetable schema as YAML", prepare: prepareSchemaDump})
	register(command{name: "import-holidays", summary: "mark the all-day events of an iCalendar file as holidays", prepare: prepareImportHolidays})
	register(command{name: "delete-occurrence", summary: "delete one, future or all occurrences of an event", prepare: prepareDeleteOccurrence})
	register(command{name: "load", summary: "load terms, owners and timetables from a YAML document", prepare: prepareLoad})
	register(command{name: "migrate", summary: "run a database migration command (default up)", prepare: prepareMigrate})
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func writeJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func prepareDays(args []string, stderr io.Writer) (action, error) {
	fs := newFlagSet("days", stderr)
	viewer := fs.String("viewer", "", "viewing owner id")
	ctxID := fs.String("context", "", "calendar owner id (defaults to the viewer)")
	var from, to dateFlag
	fs.Var(&from, "from", "first date, YYYY-MM-DD (default today)")
	fs.Var(&to, "to", "end date, exclusive (default the day after -from)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := required("viewer", *viewer); err != nil {
		return nil, err
	}
	if *ctxID == "" {
		*ctxID = *viewer
	}
	start := from.Time(today())
	req := service.DaysRequest{ViewerID: *viewer, ContextID: *ctxID, Start: start, End: to.Time(start.AddDate(0, 0, 1))}
	return func(ctx context.Context, a *app.App, out io.Writer) error {
		settings, err := a.Views.Settings(ctx, req.ViewerID)
		if err != nil {
			return err
		}
		req.Start, req.End = inZone(req.Start, settings.Location), inZone(req.End, settings.Location)
		days, err := a.Views.Days(ctx, req)
		if err != nil {
			return err
		}
		return writeJSON(out, days)
	}, nil
}

func prepareGrid(args []string, stderr io.Writer) (action, error) {
	fs := newFlagSet("grid", stderr)
	viewer := fs.String("viewer", "", "viewing owner id")
	ctxID := fs.String("context", "", "calendar owner id (defaults to the viewer)")
	var date dateFlag
	fs.Var(&date, "date", "date, YYYY-MM-DD (default today)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := required("viewer", *viewer); err != nil {
		return nil, err
	}
	if *ctxID == "" {
		*ctxID = *viewer
	}
	req := service.GridRequest{ViewerID: *viewer, ContextID: *ctxID, Date: date.Time(today())}
	return func(ctx context.Context, a *app.App, out io.Writer) error {
		grid, err := a.Views.Grid(ctx, req)
		if err != nil {
			return err
		}
		return writeJSON(out, grid)
	}, nil
}

func prepareComposite(args []string, stderr io.Writer) (action, error) {
	fs := newFlagSet("composite", stderr)
	owner := fs.String("owner", "", "owner id")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := required("owner", *owner); err != nil {
		return nil, err
	}
	return func(ctx context.Context, a *app.App, out io.Writer) error {
		summaries, err := a.Timetables.CompositeSummaries(ctx, *owner)
		if err != nil {
			return err
		}
		return writeJSON(out, summaries)
	}, nil
}

func preparePeriods(args []string, stderr io.Writer) (action, error) {
	fs := newFlagSet("periods", stderr)
	var date dateFlag
	fs.Var(&date, "date", "date, YYYY-MM-DD (default today)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	when := date.Time(today())
	return func(ctx context.Context, a *app.App, out io.Writer) error {
		periods, err := a.Timetables.PeriodSummaries(ctx, when)
		if err != nil {
			return err
		}
		return writeJSON(out, periods)
	}, nil
}

func prepareExport(args []string, stderr io.Writer) (action, error) {
	fs := newFlagSet("export", stderr)
	owner := fs.String("owner", "", "owner id")
	format := fs.String("format", service.FormatICS, "ics or csv")
	tz := fs.String("tz", "", "timezone of CSV wall times")
	withTimetable := fs.Bool("timetable", false, "include the owner's timetable events")
	publish := fs.Bool("publish", false, "write the feed to the feed directory instead of stdout")
	output := fs.String("o", "", "write to this file instead of stdout")
	var from, to dateFlag
	fs.Var(&from, "from", "window start, YYYY-MM-DD")
	fs.Var(&to, "to", "window end, exclusive")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := required("owner", *owner, "format", *format); err != nil {
		return nil, err
	}
	if *publish && *output != "" {
		return nil, fmt.Errorf("-publish and -o are exclusive")
	}
	req := service.ExportRequest{
		OwnerID: *owner, Format: *format, Timezone: *tz, IncludeTimetable: *withTimetable,
		From: from.Time(time.Time{}), To: to.Time(time.Time{}),
	}
	return func(ctx context.Context, a *app.App, out io.Writer) error {
		if *publish {
			name, err := a.Exports.Publish(ctx, req)
			if err != nil {
				return err
			}
			return writeJSON(out, map[string]string{"feed": name})
		}
		if *output == "" {
			return a.Exports.Write(ctx, out, req)
		}
		f, err := os.Create(*output)
		if err != nil {
			return err
		}
		if err := a.Exports.Write(ctx, f, req); err != nil {
			_ = f.Close()
			return err
		}
		return f.Close()
	}, nil
}

func prepareSchemaDump(args []string, stderr io.Writer) (action, error) {
	fs := newFlagSet("schema-dump", stderr)
	id := fs.String("id", "", "schema id")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := required("id", *id); err != nil {
		return nil, err
	}
	return func(ctx context.Context, a *app.App, out io.Writer) error {
		return a.Exports.SchemaYAML(ctx, out, *id)
	}, nil
}

func prepareImportHolidays(args []string, stderr io.Writer) (action, error) {
	fs := newFlagSet("import-holidays", stderr)
	term := fs.String("term", "", "term id")
	file := fs.String("file", "", "iCalendar file")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := required("term", *term, "file", *file); err != nil {
		return nil, err
	}
	return func(ctx context.Context, a *app.App, out io.Writer) error {
		f, err := os.Open(*file)
		if err != nil {
			return err
		}
		defer f.Close()
		result, err := a.Holidays.Import(ctx, *term, f)
		if err != nil {
			return err
		}
		return writeJSON(out, result)
	}, nil
}

func prepareDeleteOccurrence(args []string, stderr io.Writer) (action, error) {
	fs := newFlagSet("delete-occurrence", stderr)
	eventID := fs.String("event", "", "event id")
	mode := fs.String("mode", string(calendar.DeleteCurrent), "current, future or all")
	var date dateFlag
	fs.Var(&date, "date", "occurrence date, YYYY-MM-DD")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := required("event", *eventID, "date", date.String()); err != nil {
		return nil, err
	}
	m := calendar.DeleteMode(*mode)
	switch m {
	case calendar.DeleteCurrent, calendar.DeleteFuture, calendar.DeleteAll:
	default:
		return nil, fmt.Errorf("unknown mode %q", *mode)
	}
	return func(ctx context.Context, a *app.App, out io.Writer) error {
		removed, err := a.Calendars.DeleteOccurrence(ctx, *eventID, m, date.t)
		if err != nil {
			return err
		}
		return writeJSON(out, dto.DeleteOccurrenceResult{EventID: *eventID, Mode: string(m), Date: date.t, Removed: removed})
	}, nil
}

func prepareLoad(args []string, stderr io.Writer) (action, error) {
	fs := newFlagSet("load", stderr)
	file := fs.String("file", "", "YAML seed document")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := required("file", *file); err != nil {
		return nil, err
	}
	return func(ctx context.Context, a *app.App, out io.Writer) error {
		f, err := os.Open(*file)
		if err != nil {
			return err
		}
		defer f.Close()
		result, err := a.Seeds.Load(ctx, f)
		if err != nil {
			return err
		}
		return writeJSON(out, result)
	}, nil
}

func prepareMigrate(args []string, stderr io.Writer) (action, error) {
	fs := newFlagSet("migrate", stderr)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	op, rest := "up", []string(nil)
	if fs.NArg() > 0 {
		op, rest = fs.Arg(0), fs.Args()[1:]
	}
	return func(ctx context.Context, a *app.App, out io.Writer) error {
		if err := migrations.Run(a.DB.DB, op, rest...); err != nil {
			return err
		}
		return writeJSON(out, map[string]string{"migrate": op, "status": "ok"})
	}, nil
}
