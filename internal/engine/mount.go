package engine

import (
	"context"
	"sync"
	"time"

	"github.com/five82/groupsync/internal/schedule"
)

// MountOptions control what a mounted widget keeps running.
type MountOptions struct {
	// Heal refreshes the scope on mount and every few ticks after that.
	// Toggle widgets heal; the floating timer relies on the global poll.
	Heal bool
}

// Mount is a widget's hold on one scope: a share of the scope's tick loop
// and, optionally, a self-healing refresh. Results of requests still in
// flight when the mount closes are discarded.
type Mount struct {
	scope   schedule.Scope
	cancel  context.CancelFunc
	release func()
	once    sync.Once
}

// Scope returns the mounted scope.
func (m *Mount) Scope() schedule.Scope {
	return m.scope
}

// Close releases the tick loop and cancels any pending refresh. It is safe
// to call more than once.
func (m *Mount) Close() {
	m.once.Do(func() {
		m.cancel()
		m.release()
	})
}

// Mount attaches a widget to scope.
func (e *Engine) Mount(scope schedule.Scope, opts MountOptions) *Mount {
	ctx, cancel := context.WithCancel(e.ctx)
	m := &Mount{
		scope:   scope,
		cancel:  cancel,
		release: e.ticker.Acquire(scope),
	}

	if opts.Heal && e.ctx.Err() == nil {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.heal(ctx, scope)
		}()
	}
	return m
}

func (e *Engine) heal(ctx context.Context, scope schedule.Scope) {
	refresh := func() {
		if err := e.poller.RefreshOne(ctx, scope); err != nil && ctx.Err() == nil {
			e.log.Debug("scope refresh failed", "scope", scope.Key(), "error", err)
		}
	}

	refresh()

	every := e.opts.TickInterval * time.Duration(e.opts.HealTicks)
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			refresh()
		}
	}
}
