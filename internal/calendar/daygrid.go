package calendar

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Defaults of the daily view.
const (
	DefaultStartHour = 8
	DefaultEndHour   = 19

	// MinEventHeight is the smallest block height in grid units.
	MinEventHeight = 3.0

	gridUnit = 15 * time.Minute
)

// PeriodMark is a school period to splice into the day rows. Offset is the
// wall-clock start measured from midnight.
type PeriodMark struct {
	Title    string
	Offset   time.Duration
	Duration time.Duration
}

// Row is one time slot of the day view.
type Row struct {
	Title    string        `json:"title"`
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration"`
	Period   bool          `json:"period"`
}

// End returns the end of the row.
func (r Row) End() time.Time {
	return r.Start.Add(r.Duration)
}

// CellKind tells what a grid cell shows.
type CellKind string

const (
	CellEmpty        CellKind = "empty"
	CellStart        CellKind = "start"
	CellContinuation CellKind = "continuation"
)

// Cell is one column of one row.
type Cell struct {
	Kind    CellKind         `json:"kind"`
	Event   *EventForDisplay `json:"event,omitempty"`
	Rowspan int              `json:"rowspan,omitempty"`
	Top     float64          `json:"top,omitempty"`
	Height  float64          `json:"height,omitempty"`
}

// GridRow is a row together with its cells.
type GridRow struct {
	Row
	Cells []Cell `json:"cells"`
}

// Grid is the laid out day.
type Grid struct {
	Date      time.Time `json:"date"`
	StartHour int       `json:"start_hour"`
	EndHour   int       `json:"end_hour"`
	Columns   int       `json:"columns"`
	Rows      []GridRow `json:"rows"`
}

// DayGrid lays out one day of events into parallel columns.
type DayGrid struct {
	Date      time.Time
	Location  *time.Location
	StartHour int
	EndHour   int
	Periods   []PeriodMark
}

// NewDayGrid returns a grid for date in loc with the default hour range.
func NewDayGrid(date time.Time, loc *time.Location, periods ...PeriodMark) *DayGrid {
	if loc == nil {
		loc = time.UTC
	}
	sorted := append([]PeriodMark(nil), periods...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })
	return &DayGrid{
		Date:      DateOf(date, loc),
		Location:  loc,
		StartHour: DefaultStartHour,
		EndHour:   DefaultEndHour,
		Periods:   sorted,
	}
}

func (g *DayGrid) at(hour int, offset time.Duration) time.Time {
	y, m, d := g.Date.Date()
	return time.Date(y, m, d, hour, 0, 0, 0, g.Location).Add(offset)
}

// SetRange widens the hour range so every event of the day is visible.
func (g *DayGrid) SetRange(events []EventForDisplay) {
	midnight := g.at(0, 0)
	nextMidnight := midnight.AddDate(0, 0, 1)
	for _, ev := range events {
		if ev.Start.Before(g.at(g.StartHour, 0)) {
			start := ev.Start
			if start.Before(midnight) {
				start = midnight
			}
			g.StartHour = start.In(g.Location).Hour()
		}
		if ev.End.After(g.at(g.EndHour, 0)) {
			end := ev.End.Add(time.Hour - time.Second)
			if end.After(nextMidnight) {
				end = nextMidnight
			}
			g.EndHour = end.In(g.Location).Hour()
			if g.EndHour == 0 {
				g.EndHour = 24
			}
		}
	}
}

// Rows returns the time slots between the start and end hour. Period starts
// and ends become row boundaries; hour marks inside a period are dropped.
func (g *DayGrid) Rows() []Row {
	var points []time.Time
	for h := g.StartHour; h <= g.EndHour; h++ {
		points = append(points, g.at(h, 0))
	}

	starts := make(map[int64]PeriodMark, len(g.Periods))
	for _, p := range g.Periods {
		pstart := g.at(0, p.Offset)
		pend := pstart.Add(p.Duration)
		kept := points[:0]
		for _, pt := range points {
			if !(pstart.Before(pt) && pt.Before(pend)) {
				kept = append(kept, pt)
			}
		}
		points = appendMissing(kept, pstart, pend)
		starts[pstart.UnixNano()] = p
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Before(points[j]) })

	rows := make([]Row, 0, len(points))
	for i := 0; i+1 < len(points); i++ {
		start, end := points[i], points[i+1]
		if p, ok := starts[start.UnixNano()]; ok {
			rows = append(rows, Row{Title: p.Title, Start: start, Duration: p.Duration, Period: true})
			continue
		}
		local := start.In(g.Location)
		rows = append(rows, Row{
			Title:    fmt.Sprintf("%d:%02d", local.Hour(), local.Minute()),
			Start:    start,
			Duration: end.Sub(start),
		})
	}
	return rows
}

func appendMissing(points []time.Time, candidates ...time.Time) []time.Time {
	for _, c := range candidates {
		found := false
		for _, pt := range points {
			if pt.Equal(c) {
				found = true
				break
			}
		}
		if !found {
			points = append(points, c)
		}
	}
	return points
}

// Layout assigns every event to a column. Rows are visited in order; events
// that ended by the row start free their column, then every event starting
// before the row end takes the lowest free column.
func (g *DayGrid) Layout(events []EventForDisplay) Grid {
	pending := append([]EventForDisplay(nil), events...)
	sortDisplay(pending)
	g.SetRange(pending)
	rows := g.Rows()

	var slots []*EventForDisplay
	snapshots := make([][]*EventForDisplay, len(rows))
	columns := 1
	for i, row := range rows {
		for c, ev := range slots {
			if ev != nil && !ev.End.After(row.Start) {
				slots[c] = nil
			}
		}
		for len(pending) > 0 && pending[0].Start.Before(row.End()) {
			ev := pending[0]
			pending = pending[1:]
			slots = place(slots, &ev)
		}
		used := 0
		for c, ev := range slots {
			if ev != nil {
				used = c + 1
			}
		}
		if used > columns {
			columns = used
		}
		snapshots[i] = append([]*EventForDisplay(nil), slots...)
	}

	grid := Grid{Date: g.Date, StartHour: g.StartHour, EndHour: g.EndHour, Columns: columns}
	for i, row := range rows {
		cells := make([]Cell, columns)
		for c := range cells {
			cells[c] = Cell{Kind: CellEmpty}
			if c >= len(snapshots[i]) || snapshots[i][c] == nil {
				continue
			}
			ev := snapshots[i][c]
			if ev.Start.Before(row.Start) && i != 0 {
				cells[c] = Cell{Kind: CellContinuation, Event: ev}
				continue
			}
			cells[c] = Cell{
				Kind:    CellStart,
				Event:   ev,
				Rowspan: g.rowspan(rows, *ev),
				Top:     g.EventTop(*ev),
				Height:  g.EventHeight(*ev),
			}
		}
		grid.Rows = append(grid.Rows, GridRow{Row: row, Cells: cells})
	}
	return grid
}

// place puts ev into the lowest free slot.
func place(slots []*EventForDisplay, ev *EventForDisplay) []*EventForDisplay {
	for i, occupant := range slots {
		if occupant == nil {
			slots[i] = ev
			return slots
		}
	}
	return append(slots, ev)
}

// Rowspan returns how many rows ev overlaps.
func (g *DayGrid) Rowspan(ev EventForDisplay) int {
	return g.rowspan(g.Rows(), ev)
}

func (g *DayGrid) rowspan(rows []Row, ev EventForDisplay) int {
	count := 0
	for _, row := range rows {
		if row.Start.Before(ev.End) && ev.Start.Before(row.End()) {
			count++
		}
	}
	return count
}

// SnapToGrid converts t into 15-minute units from the start hour, clipped to
// the displayed hours.
func (g *DayGrid) SnapToGrid(t time.Time) float64 {
	displayStart := g.at(g.StartHour, 0)
	displayEnd := g.at(g.EndHour, 0)
	if t.Before(displayStart) {
		t = displayStart
	}
	if t.After(displayEnd) {
		t = displayEnd
	}
	return float64(t.Sub(displayStart)) / float64(gridUnit)
}

// EventTop returns the top offset of ev in grid units.
func (g *DayGrid) EventTop(ev EventForDisplay) float64 {
	return g.SnapToGrid(ev.Start)
}

// EventHeight returns the block height of ev, at least MinEventHeight.
func (g *DayGrid) EventHeight(ev EventForDisplay) float64 {
	return math.Max(MinEventHeight, g.SnapToGrid(ev.End)-g.SnapToGrid(ev.Start))
}
