package ui

import (
	"github.com/five82/groupsync/internal/engine"
	"github.com/five82/groupsync/internal/schedule"
)

// mountSet keeps one engine mount per rendered widget. Toggle widgets heal
// their scope; the floating timer only shares the tick loop of the active
// scope.
type mountSet struct {
	eng     *engine.Engine
	toggles map[string]*engine.Mount
	timer   *engine.Mount
}

func newMountSet(eng *engine.Engine) *mountSet {
	return &mountSet{eng: eng, toggles: make(map[string]*engine.Mount)}
}

// sync mounts every scope in rows that is not yet mounted and closes the
// mounts of widgets that are no longer rendered.
func (s *mountSet) sync(rows []row, active *schedule.Scope) {
	want := make(map[string]schedule.Scope, len(rows))
	for _, r := range rows {
		want[r.Scope.Key()] = r.Scope
	}
	for k, m := range s.toggles {
		if _, ok := want[k]; !ok {
			m.Close()
			delete(s.toggles, k)
		}
	}
	for k, scope := range want {
		if _, ok := s.toggles[k]; !ok {
			s.toggles[k] = s.eng.Mount(scope, engine.MountOptions{Heal: true})
		}
	}

	switch {
	case active == nil:
		if s.timer != nil {
			s.timer.Close()
			s.timer = nil
		}
	case s.timer == nil || s.timer.Scope() != *active:
		if s.timer != nil {
			s.timer.Close()
		}
		s.timer = s.eng.Mount(*active, engine.MountOptions{})
	}
}

// mounted reports the scope keys that currently hold a toggle mount.
func (s *mountSet) mounted() map[string]bool {
	out := make(map[string]bool, len(s.toggles))
	for k := range s.toggles {
		out[k] = true
	}
	return out
}

func (s *mountSet) closeAll() {
	for k, m := range s.toggles {
		m.Close()
		delete(s.toggles, k)
	}
	if s.timer != nil {
		s.timer.Close()
		s.timer = nil
	}
}
