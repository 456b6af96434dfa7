package schedule

import "time"

// Phase is the two-phase state of a countdown entry.
type Phase int

const (
	// PhaseIdle means no entry exists for the scope.
	PhaseIdle Phase = iota
	// PhaseProvisional means the schedule was enabled locally and the server
	// has not yet reported a countdown.
	PhaseProvisional
	// PhaseConfirmed means the entry carries a server-reported countdown.
	PhaseConfirmed
)

// String implements fmt.Stringer.
func (p Phase) String() string {
	switch p {
	case PhaseProvisional:
		return "provisional"
	case PhaseConfirmed:
		return "confirmed"
	default:
		return "idle"
	}
}

// Entry is the countdown state of one scope.
type Entry struct {
	Scope     Scope
	Enabled   bool
	Seconds   *int       // nil while provisional
	NextRunAt *time.Time // nil when unknown

	// Since is when this entry was written into the store. Provisional
	// entries older than one poll interval are reported as pending.
	Since time.Time
}

// Provisional builds the entry written by an optimistic enable.
func Provisional(scope Scope) Entry {
	return Entry{Scope: scope, Enabled: true}
}

// Confirmed builds an enabled entry with a known countdown.
func Confirmed(scope Scope, seconds int, nextRunAt *time.Time) Entry {
	if seconds < 0 {
		seconds = 0
	}
	return Entry{Scope: scope, Enabled: true, Seconds: &seconds, NextRunAt: cloneTime(nextRunAt)}
}

// Phase returns the explicit state tag for e.
func (e Entry) Phase() Phase {
	if !e.Enabled {
		return PhaseIdle
	}
	if e.Seconds == nil {
		return PhaseProvisional
	}
	return PhaseConfirmed
}

// SecondsOr returns the countdown or fallback when it is unknown.
func (e Entry) SecondsOr(fallback int) int {
	if e.Seconds == nil {
		return fallback
	}
	return *e.Seconds
}

// Clone returns a deep copy of e.
func (e Entry) Clone() Entry {
	dup := e
	if e.Seconds != nil {
		v := *e.Seconds
		dup.Seconds = &v
	}
	dup.NextRunAt = cloneTime(e.NextRunAt)
	return dup
}

// Equal reports whether two entries carry the same schedule state. Since is
// bookkeeping and is ignored.
func (e Entry) Equal(o Entry) bool {
	if e.Scope != o.Scope || e.Enabled != o.Enabled {
		return false
	}
	if (e.Seconds == nil) != (o.Seconds == nil) {
		return false
	}
	if e.Seconds != nil && *e.Seconds != *o.Seconds {
		return false
	}
	if (e.NextRunAt == nil) != (o.NextRunAt == nil) {
		return false
	}
	return e.NextRunAt == nil || e.NextRunAt.Equal(*o.NextRunAt)
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
