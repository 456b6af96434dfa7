package engine

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/five82/groupsync/internal/api"
	"github.com/five82/groupsync/internal/schedule"
)

// fakeService keeps server-side countdowns in memory. Hooks let tests hold
// a request in flight or fail a command.
type fakeService struct {
	mu         sync.Mutex
	countdowns map[string]api.Countdown
	calls      []string

	enableEmbeds bool
	enableErr    error
	disableErr   error
	disableNoop  bool // acknowledge but keep the schedule running
	fetchErr     error

	// When set, fetches block until the gate is closed or receives.
	fetchGate chan struct{}
	fetchSeen chan struct{}
}

func newFakeService() *fakeService {
	return &fakeService{countdowns: make(map[string]api.Countdown)}
}

func wireCountdown(scope schedule.Scope, secs float64) api.Countdown {
	c := api.Countdown{Scope: scope.Kind.String(), EntityID: scope.EntityID, Enabled: true}
	c.Seconds = &secs
	return c
}

func (f *fakeService) set(scope schedule.Scope, secs float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.countdowns[scope.Key()] = wireCountdown(scope, secs)
}

func (f *fakeService) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeService) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeService) wait(ctx context.Context) error {
	if f.fetchSeen != nil {
		select {
		case f.fetchSeen <- struct{}{}:
		default:
		}
	}
	if f.fetchGate == nil {
		return nil
	}
	select {
	case <-f.fetchGate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeService) Enable(_ context.Context, scope schedule.Scope, _ schedule.Preset) (*api.Countdown, error) {
	f.record("enable " + scope.Key())
	if f.enableErr != nil {
		return nil, f.enableErr
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if scope.IsGlobal() {
		for k := range f.countdowns {
			if k != "global" {
				delete(f.countdowns, k)
			}
		}
	} else {
		delete(f.countdowns, "global")
	}
	c := wireCountdown(scope, 600)
	f.countdowns[scope.Key()] = c
	if !f.enableEmbeds {
		return nil, nil
	}
	return &c, nil
}

func (f *fakeService) Disable(_ context.Context, scope schedule.Scope) error {
	f.record("disable " + scope.Key())
	if f.disableErr != nil {
		return f.disableErr
	}
	if f.disableNoop {
		return nil
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.countdowns, scope.Key())
	return nil
}

func (f *fakeService) RunNow(context.Context) error {
	f.record("run")
	return nil
}

func (f *fakeService) FetchCountdown(ctx context.Context, scope schedule.Scope) (api.Countdown, error) {
	f.record("fetch " + scope.Key())
	f.mu.Lock()
	c, ok := f.countdowns[scope.Key()]
	err := f.fetchErr
	f.mu.Unlock()

	if err := f.wait(ctx); err != nil {
		return api.Countdown{}, err
	}
	if err != nil {
		return api.Countdown{}, err
	}
	if !ok {
		return api.Countdown{Scope: scope.Kind.String(), EntityID: scope.EntityID}, nil
	}
	return c, nil
}

func (f *fakeService) FetchCountdowns(ctx context.Context) ([]api.Countdown, error) {
	f.record("fetch all")
	f.mu.Lock()
	out := make([]api.Countdown, 0, len(f.countdowns))
	keys := make([]string, 0, len(f.countdowns))
	for k := range f.countdowns {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		out = append(out, f.countdowns[k])
	}
	err := f.fetchErr
	f.mu.Unlock()

	if err := f.wait(ctx); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

var errUnavailable = errors.New("service unavailable")
