// Package timetable models school timetables: activities placed into the
// periods of schema days, the school-day sets they are laid over, the models
// turning them into calendars, and the composite timetables owners inherit
// through their relations.
package timetable

import (
	"sort"
	"strings"
)

// Activity is something happening in a timetable slot. It is a value; the
// With builders return modified copies.
type Activity struct {
	Title     string   `json:"title" yaml:"title"`
	Owner     string   `json:"owner,omitempty" yaml:"owner,omitempty"`
	Resources []string `json:"resources,omitempty" yaml:"resources,omitempty"`
}

// NewActivity returns an activity with a canonical resource set.
func NewActivity(title, owner string, resources ...string) Activity {
	return Activity{Title: title, Owner: owner, Resources: canonicalResources(resources)}
}

func (a Activity) WithTitle(title string) Activity {
	a.Resources = canonicalResources(a.Resources)
	a.Title = title
	return a
}

func (a Activity) WithOwner(owner string) Activity {
	a.Resources = canonicalResources(a.Resources)
	a.Owner = owner
	return a
}

func (a Activity) WithResources(resources ...string) Activity {
	a.Resources = canonicalResources(resources)
	return a
}

// Key identifies the activity by value.
func (a Activity) Key() string {
	return a.Title + "\x1f" + a.Owner + "\x1f" + strings.Join(canonicalResources(a.Resources), "\x1e")
}

// Equal compares activities by value; resource order does not matter.
func (a Activity) Equal(other Activity) bool {
	return a.Key() == other.Key()
}

func canonicalResources(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, r := range in {
		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

func sortActivities(acts []Activity) {
	sort.Slice(acts, func(i, j int) bool { return acts[i].Key() < acts[j].Key() })
}
