package timetable

import (
	"fmt"
	"sort"
	"time"

	"github.com/samber/mo"

	"github.com/Ignas/schooltool.lyceum/internal/calendar"
)

// Key identifies a timetable of an owner by term and schema.
type Key struct {
	TermID   string `json:"term_id"`
	SchemaID string `json:"schema_id"`
}

func (k Key) String() string {
	return k.TermID + "/" + k.SchemaID
}

// RelationSource says which related owners contribute to a composite and
// whether their composite or only their private timetable is used.
type RelationSource struct {
	Kind         string `json:"kind"`
	UseComposite bool   `json:"use_composite"`
}

// Timetabled is what the composer needs to know about owners.
type Timetabled interface {
	// Timetables returns the private timetables of owner.
	Timetables(owner string) map[Key]*Timetable
	// Related returns the owners related to owner by kind, in relation order.
	Related(owner, kind string) []string
	// TimetableSources returns the relation sources configured for owner.
	TimetableSources(owner string) []RelationSource
}

// Directory is an in-memory Timetabled.
type Directory struct {
	timetables map[string]map[Key]*Timetable
	relations  map[string]map[string][]string
	sources    map[string][]RelationSource
}

func NewDirectory() *Directory {
	return &Directory{
		timetables: make(map[string]map[Key]*Timetable),
		relations:  make(map[string]map[string][]string),
		sources:    make(map[string][]RelationSource),
	}
}

// Put stores a private timetable of owner.
func (d *Directory) Put(owner string, key Key, tt *Timetable) {
	if d.timetables[owner] == nil {
		d.timetables[owner] = make(map[Key]*Timetable)
	}
	d.timetables[owner][key] = tt
}

// Relate records that owner is related to other by kind.
func (d *Directory) Relate(owner, kind, other string) {
	if d.relations[owner] == nil {
		d.relations[owner] = make(map[string][]string)
	}
	d.relations[owner][kind] = append(d.relations[owner][kind], other)
}

// SetSources configures the relation sources of owner.
func (d *Directory) SetSources(owner string, sources ...RelationSource) {
	d.sources[owner] = append([]RelationSource(nil), sources...)
}

func (d *Directory) Timetables(owner string) map[Key]*Timetable { return d.timetables[owner] }

func (d *Directory) Related(owner, kind string) []string { return d.relations[owner][kind] }

func (d *Directory) TimetableSources(owner string) []RelationSource { return d.sources[owner] }

// Composer builds composite timetables.
type Composer struct {
	dir Timetabled
}

func NewComposer(dir Timetabled) *Composer {
	return &Composer{dir: dir}
}

// Composite merges the timetables owner inherits through its relations with
// its own private one, which is applied last. The result is a fresh
// timetable; absence of every source yields None. Owners already being
// composed further up are skipped.
func (c *Composer) Composite(owner string, key Key) (mo.Option[*Timetable], error) {
	return c.composite(owner, key, make(map[string]bool))
}

func (c *Composer) composite(owner string, key Key, visiting map[string]bool) (mo.Option[*Timetable], error) {
	if visiting[owner] {
		return mo.None[*Timetable](), nil
	}
	visiting[owner] = true
	defer delete(visiting, owner)

	var parts []*Timetable
	for _, src := range c.dir.TimetableSources(owner) {
		for _, related := range c.dir.Related(owner, src.Kind) {
			if !src.UseComposite {
				if tt := c.dir.Timetables(related)[key]; tt != nil {
					parts = append(parts, tt)
				}
				continue
			}
			inherited, err := c.composite(related, key, visiting)
			if err != nil {
				return mo.None[*Timetable](), err
			}
			if tt, ok := inherited.Get(); ok {
				parts = append(parts, tt)
			}
		}
	}
	if own := c.dir.Timetables(owner)[key]; own != nil {
		parts = append(parts, own)
	}
	if len(parts) == 0 {
		return mo.None[*Timetable](), nil
	}

	result := parts[0].CloneEmpty()
	for _, part := range parts {
		if err := result.Update(part); err != nil {
			return mo.None[*Timetable](), fmt.Errorf("compose %s for %s: %w", key, owner, err)
		}
	}
	return mo.Some(result), nil
}

// ListComposite returns the keys owner has a composite timetable for, sorted.
func (c *Composer) ListComposite(owner string) []Key {
	seen := make(map[Key]bool)
	c.listComposite(owner, seen, make(map[string]bool))
	keys := make([]Key, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].TermID != keys[j].TermID {
			return keys[i].TermID < keys[j].TermID
		}
		return keys[i].SchemaID < keys[j].SchemaID
	})
	return keys
}

func (c *Composer) listComposite(owner string, seen map[Key]bool, visiting map[string]bool) {
	if visiting[owner] {
		return
	}
	visiting[owner] = true
	defer delete(visiting, owner)

	for k := range c.dir.Timetables(owner) {
		seen[k] = true
	}
	for _, src := range c.dir.TimetableSources(owner) {
		for _, related := range c.dir.Related(owner, src.Kind) {
			if src.UseComposite {
				c.listComposite(related, seen, visiting)
				continue
			}
			for k := range c.dir.Timetables(related) {
				seen[k] = true
			}
		}
	}
}

// TimetableCalendarID names the generated calendar of owner.
func TimetableCalendarID(owner string) string {
	return owner + ":timetable"
}

// TimetableCalendar lays every composite timetable of owner over its term.
// Keys whose term is unknown or whose timetable has no model are skipped.
func (c *Composer) TimetableCalendar(owner string, terms map[string]*SchoolDays) (*calendar.Calendar, error) {
	cal := calendar.New(TimetableCalendarID(owner), "Timetable")
	for _, key := range c.ListComposite(owner) {
		term := terms[key.TermID]
		if term == nil {
			continue
		}
		composite, err := c.Composite(owner, key)
		if err != nil {
			return nil, err
		}
		tt, ok := composite.Get()
		if !ok || tt.Model == nil {
			continue
		}
		cal.Add(tt.Model.CreateCalendar(term, tt).Events...)
	}
	return cal, nil
}

// PeriodsForDay returns the periods of date under schema, the default
// timetable schema, using the term containing date. Missing term or schema
// yields no periods.
func PeriodsForDay(terms []*SchoolDays, schema *Timetable, date time.Time) []SchoolPeriod {
	term, ok := TermForDate(terms, date)
	if !ok || schema == nil || schema.Model == nil {
		return []SchoolPeriod{}
	}
	return schema.Model.PeriodsInDay(term, schema, date)
}
