package state

import "github.com/five82/groupsync/internal/schedule"

// View is the derived precedence state of a snapshot. It is recomputed from
// every snapshot and never stored.
type View struct {
	// GlobalEnabled hides every per-entity toggle while true.
	GlobalEnabled bool

	// Active is the enabled, confirmed entry that fires soonest.
	Active    schedule.Entry
	HasActive bool
}

// Resolve computes the precedence view of snap. Ties on seconds remaining go
// to the scope that sorts first under schedule.Less: global, then entity keys
// in byte order.
func Resolve(snap Snapshot) View {
	var v View
	if g, ok := snap.Get(schedule.Global()); ok {
		v.GlobalEnabled = g.Enabled
	}
	for _, e := range snap.Entries {
		if !e.Enabled || e.Seconds == nil {
			continue
		}
		if !v.HasActive || soonerThan(e, v.Active) {
			v.Active = e
			v.HasActive = true
		}
	}
	return v
}

func soonerThan(a, b schedule.Entry) bool {
	if *a.Seconds != *b.Seconds {
		return *a.Seconds < *b.Seconds
	}
	return schedule.Less(a.Scope, b.Scope)
}

// ToggleVisible reports whether the toggle for scope may be rendered.
// Entity toggles are suppressed, not deleted, while the global schedule is on.
func (v View) ToggleVisible(scope schedule.Scope) bool {
	return scope.IsGlobal() || !v.GlobalEnabled
}

// Visible returns the entries widgets may surface, in schedule.Less order.
func (v View) Visible(snap Snapshot) []schedule.Entry {
	all := snap.Sorted()
	out := all[:0]
	for _, e := range all {
		if v.ToggleVisible(e.Scope) {
			out = append(out, e)
		}
	}
	return out
}
