package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/five82/groupsync/internal/api"
	"github.com/five82/groupsync/internal/schedule"
	"github.com/five82/groupsync/internal/state"
)

const defaultHealTicks = 20

// Service is the part of the scheduling API the engine drives.
type Service interface {
	Enable(ctx context.Context, scope schedule.Scope, preset schedule.Preset) (*api.Countdown, error)
	Disable(ctx context.Context, scope schedule.Scope) error
	RunNow(ctx context.Context) error
	FetchCountdown(ctx context.Context, scope schedule.Scope) (api.Countdown, error)
	FetchCountdowns(ctx context.Context) ([]api.Countdown, error)
}

// Options tune engine timing. Zero values select defaults.
type Options struct {
	PollInterval time.Duration
	TickInterval time.Duration
	HealTicks    int
	Logger       *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.PollInterval <= 0 {
		o.PollInterval = defaultPollInterval
	}
	if o.TickInterval <= 0 {
		o.TickInterval = defaultTickInterval
	}
	if o.HealTicks <= 0 {
		o.HealTicks = defaultHealTicks
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}

// Engine owns the schedule store and everything that writes to it. One
// engine is built per process and injected into the UI.
type Engine struct {
	store   *state.Store
	poller  *Poller
	mutator *Mutator
	ticker  *Ticker
	log     *slog.Logger
	opts    Options

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New builds an engine around svc. Mounts may be taken before Run.
func New(svc Service, opts Options) *Engine {
	opts = opts.withDefaults()
	store := &state.Store{}
	poller := NewPoller(store, svc, opts.PollInterval, opts.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:   store,
		poller:  poller,
		mutator: NewMutator(store, svc, poller, opts.Logger),
		ticker:  NewTicker(store, opts.TickInterval),
		log:     opts.Logger,
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Run polls until ctx is cancelled or Close is called, then shuts the
// engine down.
func (e *Engine) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, e.cancel)
	defer stop()

	e.log.Info("engine started", "poll_interval", e.opts.PollInterval, "tick_interval", e.opts.TickInterval)
	e.poller.Run(e.ctx)
	e.Close()
	e.log.Info("engine stopped")
	return nil
}

// Close cancels every loop and in-flight refresh, then releases store
// subscribers. It is safe to call more than once.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.cancel()
		e.ticker.Close()
		e.wg.Wait()
		e.store.Close()
	})
}

// Store returns the shared schedule store.
func (e *Engine) Store() *state.Store { return e.store }

// Subscribe is shorthand for Store().Subscribe().
func (e *Engine) Subscribe() (<-chan struct{}, func()) { return e.store.Subscribe() }

// Snapshot returns the current map and its precedence view.
func (e *Engine) Snapshot() (state.Snapshot, state.View) {
	snap := e.store.Snapshot()
	return snap, state.Resolve(snap)
}

// Health reports recent poll outcomes.
func (e *Engine) Health() Health { return e.poller.Health() }

// PollInterval returns the configured background poll cadence.
func (e *Engine) PollInterval() time.Duration { return e.opts.PollInterval }

// Enable turns on the schedule for scope.
func (e *Engine) Enable(ctx context.Context, scope schedule.Scope, preset schedule.Preset) error {
	return e.mutator.Enable(ctx, scope, preset)
}

// Disable turns off the schedule for scope.
func (e *Engine) Disable(ctx context.Context, scope schedule.Scope) error {
	return e.mutator.Disable(ctx, scope)
}

// RunNow triggers an immediate synchronization run.
func (e *Engine) RunNow(ctx context.Context) error {
	return e.mutator.RunNow(ctx)
}

// RefreshAll forces a full poll.
func (e *Engine) RefreshAll(ctx context.Context) error {
	return e.poller.RefreshAll(ctx)
}

// RefreshOne forces a poll of one scope.
func (e *Engine) RefreshOne(ctx context.Context, scope schedule.Scope) error {
	return e.poller.RefreshOne(ctx, scope)
}
