package engine

import (
	"sync"
	"time"

	"github.com/five82/groupsync/internal/schedule"
	"github.com/five82/groupsync/internal/state"
)

const defaultTickInterval = time.Second

// Ticker decrements displayed countdowns between polls. There is at most one
// running loop per scope no matter how many widgets display it; the loop
// stops when the last holder releases it.
type Ticker struct {
	store    *state.Store
	interval time.Duration

	mu     sync.Mutex
	loops  map[string]*tickLoop
	wg     sync.WaitGroup
	closed bool
}

type tickLoop struct {
	refs int
	stop chan struct{}
}

// NewTicker builds a Ticker. A non-positive interval selects one second.
func NewTicker(store *state.Store, interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = defaultTickInterval
	}
	return &Ticker{store: store, interval: interval, loops: make(map[string]*tickLoop)}
}

// Acquire registers interest in scope and starts its loop if needed. The
// returned release func is safe to call more than once.
func (t *Ticker) Acquire(scope schedule.Scope) (release func()) {
	key := scope.Key()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return func() {}
	}

	loop, ok := t.loops[key]
	if !ok {
		loop = &tickLoop{stop: make(chan struct{})}
		t.loops[key] = loop
		t.wg.Add(1)
		go t.run(scope, loop.stop)
	}
	loop.refs++

	var once sync.Once
	return func() {
		once.Do(func() { t.release(key, loop) })
	}
}

// Active returns the number of running loops.
func (t *Ticker) Active() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.loops)
}

// Close stops every loop and waits for them to exit.
func (t *Ticker) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	for key, loop := range t.loops {
		close(loop.stop)
		delete(t.loops, key)
	}
	t.mu.Unlock()
	t.wg.Wait()
}

func (t *Ticker) release(key string, loop *tickLoop) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.loops[key] != loop {
		return
	}
	loop.refs--
	if loop.refs <= 0 {
		close(loop.stop)
		delete(t.loops, key)
	}
}

func (t *Ticker) run(scope schedule.Scope, stop <-chan struct{}) {
	defer t.wg.Done()

	tick := time.NewTicker(t.interval)
	defer tick.Stop()

	for {
		select {
		case <-stop:
			return
		case <-tick.C:
			t.step(scope)
		}
	}
}

// step lowers the countdown of scope by one second, flooring at zero.
// Provisional and missing entries are left alone.
func (t *Ticker) step(scope schedule.Scope) bool {
	return t.store.Patch(scope, func(e schedule.Entry) schedule.Entry {
		if e.Seconds == nil || *e.Seconds <= 0 {
			return e
		}
		next := *e.Seconds - 1
		e.Seconds = &next
		return e
	})
}
