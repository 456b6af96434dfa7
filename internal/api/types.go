package api

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/five82/groupsync/internal/schedule"
)

// Countdown mirrors one countdown object returned by /api/schedule/countdown
// and embedded in enable responses.
type Countdown struct {
	Scope     string   `json:"scope"`
	EntityID  string   `json:"entityId,omitempty"`
	ParentID  string   `json:"parentId,omitempty"` // older servers name the entity "parent"
	Enabled   bool     `json:"enabled"`
	Seconds   *float64 `json:"seconds"`
	NextRunAt *string  `json:"nextRunAt"`
}

// ScopeOf resolves the schedule scope the countdown refers to.
func (c Countdown) ScopeOf() (schedule.Scope, error) {
	switch strings.ToLower(strings.TrimSpace(c.Scope)) {
	case "global":
		return schedule.Global(), nil
	case "entity", "parent":
		id := c.EntityID
		if id == "" {
			id = c.ParentID
		}
		s := schedule.Entity(id)
		if !s.Valid() {
			return schedule.Scope{}, fmt.Errorf("countdown scope %q without entity id", c.Scope)
		}
		return s, nil
	default:
		return schedule.Scope{}, fmt.Errorf("unknown countdown scope %q", c.Scope)
	}
}

// Entry converts the wire countdown into a store entry. A null seconds value
// yields a provisional entry; fractional values are rounded up so a display
// never shows zero while time remains.
func (c Countdown) Entry() (schedule.Entry, error) {
	scope, err := c.ScopeOf()
	if err != nil {
		return schedule.Entry{}, err
	}
	entry := schedule.Entry{Scope: scope, Enabled: c.Enabled}
	if c.Seconds != nil {
		secs := int(math.Ceil(*c.Seconds))
		if secs < 0 {
			secs = 0
		}
		entry.Seconds = &secs
	}
	if c.NextRunAt != nil {
		if t := parseTime(*c.NextRunAt); !t.IsZero() {
			entry.NextRunAt = &t
		}
	}
	return entry, nil
}

// EnableResponse mirrors the enable endpoints' reply.
type EnableResponse struct {
	Countdown *Countdown `json:"countdown"`
}

// DisableRequest is the body of /api/schedule/disable.
type DisableRequest struct {
	Scope    string `json:"scope"`
	EntityID string `json:"entityId,omitempty"`
}

// Entity is a grouped account that may own a per-entity schedule.
type Entity struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Alias string `json:"alias"`
}

// DisplayName prefers the alias over the name.
func (e Entity) DisplayName() string {
	if alias := strings.TrimSpace(e.Alias); alias != "" {
		return alias
	}
	if name := strings.TrimSpace(e.Name); name != "" {
		return name
	}
	return e.ID
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

func parseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
