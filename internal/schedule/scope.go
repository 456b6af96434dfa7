package schedule

import (
	"fmt"
	"strings"
)

// Kind distinguishes the global schedule from per-entity schedules.
type Kind int

const (
	KindGlobal Kind = iota
	KindEntity
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case KindGlobal:
		return "global"
	case KindEntity:
		return "entity"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

const (
	globalKey       = "global"
	entityKeyPrefix = "entity:"
)

// Scope identifies whether a schedule is global or bound to one entity.
type Scope struct {
	Kind     Kind
	EntityID string
}

// Global returns the scope of the single global schedule.
func Global() Scope {
	return Scope{Kind: KindGlobal}
}

// Entity returns the scope of the schedule bound to id.
func Entity(id string) Scope {
	return Scope{Kind: KindEntity, EntityID: strings.TrimSpace(id)}
}

// IsGlobal reports whether s is the global scope.
func (s Scope) IsGlobal() bool {
	return s.Kind == KindGlobal
}

// Key returns the map key for s: "global" or "entity:<id>".
func (s Scope) Key() string {
	if s.IsGlobal() {
		return globalKey
	}
	return entityKeyPrefix + s.EntityID
}

// String implements fmt.Stringer.
func (s Scope) String() string {
	return s.Key()
}

// Valid reports whether s can be addressed on the scheduling service.
func (s Scope) Valid() bool {
	switch s.Kind {
	case KindGlobal:
		return s.EntityID == ""
	case KindEntity:
		return s.EntityID != ""
	default:
		return false
	}
}

// ParseKey is the inverse of Scope.Key.
func ParseKey(key string) (Scope, error) {
	switch {
	case key == globalKey:
		return Global(), nil
	case strings.HasPrefix(key, entityKeyPrefix):
		id := strings.TrimPrefix(key, entityKeyPrefix)
		if strings.TrimSpace(id) == "" {
			return Scope{}, fmt.Errorf("scope key %q: missing entity id", key)
		}
		return Entity(id), nil
	default:
		return Scope{}, fmt.Errorf("scope key %q: unknown scope", key)
	}
}

// Less orders scopes deterministically: the global scope first, then entity
// scopes by key in byte order. It is the tie-break used when two schedules
// fire at the same second.
func Less(a, b Scope) bool {
	if a.IsGlobal() != b.IsGlobal() {
		return a.IsGlobal()
	}
	return a.Key() < b.Key()
}
