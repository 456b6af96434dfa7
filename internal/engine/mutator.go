package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/five82/groupsync/internal/schedule"
	"github.com/five82/groupsync/internal/state"
)

// Mutator applies provisional store changes ahead of server confirmation.
// It never invents a countdown: provisional entries carry nil seconds until
// the server reports one.
type Mutator struct {
	store  *state.Store
	svc    Service
	poller *Poller
	log    *slog.Logger
}

// NewMutator builds a Mutator that reconciles through poller.
func NewMutator(store *state.Store, svc Service, poller *Poller, logger *slog.Logger) *Mutator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Mutator{store: store, svc: svc, poller: poller, log: logger}
}

// Enable turns on the schedule for scope. The global schedule and the entity
// schedules are mutually exclusive: enabling global drops every entity entry,
// enabling an entity drops the global entry. A malformed preset is rejected
// before the store or the network is touched.
func (m *Mutator) Enable(ctx context.Context, scope schedule.Scope, preset schedule.Preset) error {
	if !scope.Valid() {
		return fmt.Errorf("enable: invalid scope %q", scope.Key())
	}
	if err := preset.Validate(); err != nil {
		return err
	}

	m.store.Optimistic(func(tx *state.Tx) {
		for _, s := range tx.Scopes() {
			if s.IsGlobal() != scope.IsGlobal() {
				tx.Delete(s)
			}
		}
		tx.Put(schedule.Provisional(scope))
	})

	ticket := m.store.Ticket()
	cd, err := m.svc.Enable(ctx, scope, preset)
	if err != nil {
		return fmt.Errorf("enable %s: %w", scope, err)
	}
	m.log.Info("schedule enabled", "scope", scope.Key(), "type", string(preset.Type))

	if cd != nil {
		entry, err := cd.Entry()
		switch {
		case err != nil:
			m.log.Warn("ignoring malformed embedded countdown", "scope", scope.Key(), "error", err)
		case entry.Scope != scope:
			m.log.Warn("ignoring embedded countdown for another scope", "scope", scope.Key(), "got", entry.Scope.Key())
		default:
			if !m.store.Splice(ticket, entry) {
				m.log.Debug("discarded superseded enable response", "scope", scope.Key())
			}
			return nil
		}
	}

	if err := m.poller.RefreshOne(ctx, scope); err != nil {
		return fmt.Errorf("enable %s: confirm countdown: %w", scope, err)
	}
	return nil
}

// Disable turns off the schedule for scope. The entry is removed right away
// and a full refresh follows whatever the command returned, so a disable
// that silently failed on the server re-surfaces. The command error is
// still returned to the caller.
func (m *Mutator) Disable(ctx context.Context, scope schedule.Scope) error {
	if !scope.Valid() {
		return fmt.Errorf("disable: invalid scope %q", scope.Key())
	}

	m.store.Remove(scope)

	cmdErr := m.svc.Disable(ctx, scope)
	if cmdErr != nil {
		m.log.Warn("disable command failed", "scope", scope.Key(), "error", cmdErr)
	} else {
		m.log.Info("schedule disabled", "scope", scope.Key())
	}

	refreshErr := m.poller.RefreshAll(ctx)
	if cmdErr != nil {
		return fmt.Errorf("disable %s: %w", scope, cmdErr)
	}
	if refreshErr != nil {
		return fmt.Errorf("disable %s: reconcile: %w", scope, refreshErr)
	}
	return nil
}

// RunNow triggers an immediate synchronization run and then refreshes all
// countdowns, since a run restarts the cycle on the server.
func (m *Mutator) RunNow(ctx context.Context) error {
	if err := m.svc.RunNow(ctx); err != nil {
		return fmt.Errorf("run now: %w", err)
	}
	m.log.Info("sync run requested")
	if err := m.poller.RefreshAll(ctx); err != nil {
		return fmt.Errorf("run now: reconcile: %w", err)
	}
	return nil
}
