package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/five82/groupsync/internal/schedule"
	"github.com/five82/groupsync/internal/state"
)

const defaultPollInterval = 15 * time.Second

// Health reports how recent polls went. The store holds no errors; this is
// only used for an offline indicator.
type Health struct {
	LastSuccess         time.Time
	ConsecutiveFailures int
}

// IsOffline returns true when the service has been unreachable for multiple polls.
func (h Health) IsOffline() bool {
	return h.ConsecutiveFailures >= 2
}

// Poller fetches authoritative countdown state and writes it to the store.
type Poller struct {
	store    *state.Store
	svc      Service
	log      *slog.Logger
	interval time.Duration

	mu     sync.Mutex
	health Health
}

// NewPoller builds a Poller. A non-positive interval selects the default.
func NewPoller(store *state.Store, svc Service, interval time.Duration, logger *slog.Logger) *Poller {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Poller{store: store, svc: svc, log: logger, interval: interval}
}

// Interval returns the background refresh cadence.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Health returns a copy of the poll health counters.
func (p *Poller) Health() Health {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.health
}

// Run refreshes all countdowns immediately and then at the poll interval
// until ctx is cancelled. Failures are logged and the loop continues.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.RefreshAll(ctx); err != nil && ctx.Err() == nil {
			p.log.Warn("countdown poll failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RefreshAll fetches every enabled countdown in one call and replaces the
// whole map with it. On failure the store is left untouched. If ctx is
// cancelled while the request is in flight the result is discarded.
func (p *Poller) RefreshAll(ctx context.Context) error {
	ticket := p.store.Ticket()
	list, err := p.svc.FetchCountdowns(ctx)
	if err != nil {
		p.recordFailure()
		return fmt.Errorf("refresh countdowns: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	entries := make([]schedule.Entry, 0, len(list))
	for _, c := range list {
		e, err := c.Entry()
		if err != nil {
			p.log.Warn("skipping malformed countdown", "scope", c.Scope, "error", err)
			continue
		}
		entries = append(entries, e)
	}

	res := p.store.ReplaceAll(ticket, entries)
	p.recordSuccess()
	if res.Discarded > 0 {
		p.log.Debug("discarded superseded countdowns", "ticket", ticket, "count", res.Discarded)
	}
	return nil
}

// RefreshOne fetches and writes the countdown of a single scope. A disabled
// answer removes the scope.
func (p *Poller) RefreshOne(ctx context.Context, scope schedule.Scope) error {
	ticket := p.store.Ticket()
	c, err := p.svc.FetchCountdown(ctx, scope)
	if err != nil {
		p.recordFailure()
		return fmt.Errorf("refresh countdown %s: %w", scope, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	entry := schedule.Entry{Scope: scope}
	if c.Scope != "" {
		entry, err = c.Entry()
		if err != nil {
			return fmt.Errorf("refresh countdown %s: %w", scope, err)
		}
		if entry.Scope != scope {
			return fmt.Errorf("refresh countdown %s: server answered for %s", scope, entry.Scope)
		}
	}

	res := p.store.SetMany(ticket, []schedule.Entry{entry})
	p.recordSuccess()
	if res.Discarded > 0 {
		p.log.Debug("discarded superseded countdown", "scope", scope.Key(), "ticket", ticket)
	}
	return nil
}

func (p *Poller) recordFailure() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.health.ConsecutiveFailures++
}

func (p *Poller) recordSuccess() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.health.ConsecutiveFailures = 0
	p.health.LastSuccess = time.Now()
}
