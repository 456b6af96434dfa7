package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/groupsync/internal/schedule"
	"github.com/five82/groupsync/internal/state"
)

func newTestEngine(t *testing.T, svc *fakeService, opts Options) *Engine {
	t.Helper()
	eng := New(svc, opts)
	t.Cleanup(eng.Close)
	return eng
}

func seed(t *testing.T, eng *Engine) {
	t.Helper()
	require.NoError(t, eng.RefreshAll(context.Background()))
}

func entryOf(t *testing.T, eng *Engine, scope schedule.Scope) schedule.Entry {
	t.Helper()
	e, ok := eng.Store().Get(scope)
	require.True(t, ok, "entry %s missing", scope)
	return e
}

func TestEnable_GlobalWithoutEmbeddedCountdown(t *testing.T) {
	svc := newFakeService()
	svc.set(schedule.Entity("A"), 120)
	eng := newTestEngine(t, svc, Options{})
	seed(t, eng)

	svc.fetchGate = make(chan struct{})
	svc.fetchSeen = make(chan struct{}, 1)

	done := make(chan error, 1)
	go func() {
		done <- eng.Enable(context.Background(), schedule.Global(), schedule.DefaultPreset())
	}()

	select {
	case <-svc.fetchSeen:
	case <-time.After(time.Second):
		t.Fatal("enable never issued a confirming refresh")
	}

	snap, view := eng.Snapshot()
	require.Len(t, snap.Entries, 1, "entity entries should be dropped optimistically")
	assert.Equal(t, schedule.PhaseProvisional, entryOf(t, eng, schedule.Global()).Phase())
	assert.True(t, view.GlobalEnabled)
	assert.False(t, view.HasActive, "provisional entry cannot be active")

	close(svc.fetchGate)
	require.NoError(t, <-done)

	e := entryOf(t, eng, schedule.Global())
	require.Equal(t, schedule.PhaseConfirmed, e.Phase())
	assert.Equal(t, 600, *e.Seconds)
	assert.Equal(t, []string{"fetch all", "enable global", "fetch global"}, svc.Calls())
}

func TestEnable_SplicesEmbeddedCountdown(t *testing.T) {
	svc := newFakeService()
	svc.set(schedule.Global(), 300)
	svc.enableEmbeds = true
	eng := newTestEngine(t, svc, Options{})
	seed(t, eng)

	require.NoError(t, eng.Enable(context.Background(), schedule.Entity("p1"), schedule.DefaultPreset()))

	_, view := eng.Snapshot()
	assert.False(t, view.GlobalEnabled)
	require.True(t, view.HasActive)
	assert.Equal(t, schedule.Entity("p1"), view.Active.Scope)
	assert.Equal(t, 600, *view.Active.Seconds)
	assert.Equal(t, []string{"fetch all", "enable entity:p1"}, svc.Calls(), "embedded countdown needs no refresh")
}

func TestEnable_InvalidPresetTouchesNothing(t *testing.T) {
	svc := newFakeService()
	eng := newTestEngine(t, svc, Options{})
	before := eng.Store().Snapshot()

	err := eng.Enable(context.Background(), schedule.Global(), schedule.Preset{Type: schedule.EveryNMinutes})

	var verr *schedule.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Empty(t, svc.Calls())
	assert.Equal(t, before.Revision, eng.Store().Snapshot().Revision)
}

func TestEnable_CommandFailureStaysProvisional(t *testing.T) {
	svc := newFakeService()
	svc.enableErr = errUnavailable
	eng := newTestEngine(t, svc, Options{})

	err := eng.Enable(context.Background(), schedule.Entity("p1"), schedule.DefaultPreset())
	require.ErrorIs(t, err, errUnavailable)

	assert.Equal(t, schedule.PhaseProvisional, entryOf(t, eng, schedule.Entity("p1")).Phase())

	// The next poll settles it.
	require.NoError(t, eng.RefreshAll(context.Background()))
	_, ok := eng.Store().Get(schedule.Entity("p1"))
	assert.False(t, ok)
}

func TestDisable_RefreshResurfacesIgnoredDisable(t *testing.T) {
	svc := newFakeService()
	svc.set(schedule.Entity("p1"), 90)
	svc.disableNoop = true
	eng := newTestEngine(t, svc, Options{})
	seed(t, eng)

	require.NoError(t, eng.Disable(context.Background(), schedule.Entity("p1")))

	e := entryOf(t, eng, schedule.Entity("p1"))
	assert.True(t, e.Enabled, "server still reports the schedule, so it comes back")
	assert.Equal(t, []string{"fetch all", "disable entity:p1", "fetch all"}, svc.Calls())
}

func TestDisable_ReturnsCommandError(t *testing.T) {
	svc := newFakeService()
	svc.set(schedule.Global(), 90)
	svc.disableErr = errUnavailable
	eng := newTestEngine(t, svc, Options{})
	seed(t, eng)

	err := eng.Disable(context.Background(), schedule.Global())
	require.ErrorIs(t, err, errUnavailable)

	// Reconciled regardless of the command outcome.
	_, ok := eng.Store().Get(schedule.Global())
	assert.True(t, ok)
	assert.Equal(t, "fetch all", svc.Calls()[len(svc.Calls())-1])
}

func TestDisable_RemovesEntry(t *testing.T) {
	svc := newFakeService()
	svc.set(schedule.Global(), 90)
	eng := newTestEngine(t, svc, Options{})
	seed(t, eng)

	require.NoError(t, eng.Disable(context.Background(), schedule.Global()))
	assert.Empty(t, eng.Store().Snapshot().Entries)
}

func TestRunNow_Reconciles(t *testing.T) {
	svc := newFakeService()
	svc.set(schedule.Global(), 10)
	eng := newTestEngine(t, svc, Options{})

	require.NoError(t, eng.RunNow(context.Background()))
	assert.Equal(t, []string{"run", "fetch all"}, svc.Calls())
	assert.Equal(t, 10, *entryOf(t, eng, schedule.Global()).Seconds)
}

func TestPoller_FailureLeavesStoreUntouched(t *testing.T) {
	svc := newFakeService()
	svc.set(schedule.Global(), 42)
	eng := newTestEngine(t, svc, Options{})
	seed(t, eng)
	before := eng.Store().Snapshot()

	svc.fetchErr = errUnavailable
	require.ErrorIs(t, eng.RefreshAll(context.Background()), errUnavailable)
	require.ErrorIs(t, eng.RefreshOne(context.Background(), schedule.Global()), errUnavailable)

	after := eng.Store().Snapshot()
	assert.Equal(t, before.Revision, after.Revision)
	assert.Equal(t, 2, eng.Health().ConsecutiveFailures)
	assert.True(t, eng.Health().IsOffline())

	svc.fetchErr = nil
	seed(t, eng)
	assert.False(t, eng.Health().IsOffline())
	assert.False(t, eng.Health().LastSuccess.IsZero())
}

func TestPoller_ResponseOverlappingDisableIsDiscarded(t *testing.T) {
	svc := newFakeService()
	svc.set(schedule.Global(), 600)
	eng := newTestEngine(t, svc, Options{})
	seed(t, eng)

	svc.fetchGate = make(chan struct{})
	svc.fetchSeen = make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() { done <- eng.RefreshAll(context.Background()) }()
	<-svc.fetchSeen

	// The user disables while the poll is in flight.
	eng.Store().Remove(schedule.Global())
	close(svc.fetchGate)
	require.NoError(t, <-done)

	_, ok := eng.Store().Get(schedule.Global())
	assert.False(t, ok, "a poll issued before the disable must not resurrect the entry")
}

func TestPoller_RefreshOneDisabledRemovesScope(t *testing.T) {
	svc := newFakeService()
	svc.set(schedule.Entity("p1"), 30)
	eng := newTestEngine(t, svc, Options{})
	seed(t, eng)

	svc.mu.Lock()
	delete(svc.countdowns, "entity:p1")
	svc.mu.Unlock()

	require.NoError(t, eng.RefreshOne(context.Background(), schedule.Entity("p1")))
	_, ok := eng.Store().Get(schedule.Entity("p1"))
	assert.False(t, ok)
}

func TestTicker_StepIsMonotonicWithFloor(t *testing.T) {
	var store state.Store
	store.SetMany(store.Ticket(), []schedule.Entry{
		schedule.Confirmed(schedule.Global(), 3, nil),
		schedule.Provisional(schedule.Entity("p1")),
	})
	tk := NewTicker(&store, time.Hour)
	defer tk.Close()

	var got []int
	for i := 0; i < 5; i++ {
		tk.step(schedule.Global())
		e, _ := store.Get(schedule.Global())
		got = append(got, *e.Seconds)
	}
	assert.Equal(t, []int{2, 1, 0, 0, 0}, got)

	assert.False(t, tk.step(schedule.Entity("p1")), "provisional entries are not ticked")
	assert.False(t, tk.step(schedule.Entity("missing")))
	_, ok := store.Get(schedule.Entity("missing"))
	assert.False(t, ok)
}

func TestTicker_OneLoopPerScope(t *testing.T) {
	var store state.Store
	tk := NewTicker(&store, time.Hour)

	r1 := tk.Acquire(schedule.Global())
	r2 := tk.Acquire(schedule.Global())
	r3 := tk.Acquire(schedule.Entity("p1"))
	assert.Equal(t, 2, tk.Active())

	r1()
	r1()
	assert.Equal(t, 2, tk.Active(), "second holder keeps the loop alive")
	r2()
	assert.Equal(t, 1, tk.Active())

	tk.Close()
	assert.Equal(t, 0, tk.Active())
	r3()

	noop := tk.Acquire(schedule.Global())
	assert.Equal(t, 0, tk.Active(), "closed ticker starts no loops")
	noop()
}

func TestTicker_LoopDecrements(t *testing.T) {
	var store state.Store
	store.SetMany(store.Ticket(), []schedule.Entry{schedule.Confirmed(schedule.Global(), 100, nil)})
	tk := NewTicker(&store, 5*time.Millisecond)
	defer tk.Close()

	release := tk.Acquire(schedule.Global())
	defer release()

	require.Eventually(t, func() bool {
		e, _ := store.Get(schedule.Global())
		return *e.Seconds < 100
	}, time.Second, 5*time.Millisecond)
}

func TestMount_HealRefreshesOnMount(t *testing.T) {
	svc := newFakeService()
	svc.set(schedule.Entity("p1"), 300)
	eng := newTestEngine(t, svc, Options{})

	m := eng.Mount(schedule.Entity("p1"), MountOptions{Heal: true})
	defer m.Close()

	require.Eventually(t, func() bool {
		_, ok := eng.Store().Get(schedule.Entity("p1"))
		return ok
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, schedule.Entity("p1"), m.Scope())
}

func TestMount_CloseDiscardsInflightRefresh(t *testing.T) {
	svc := newFakeService()
	svc.set(schedule.Entity("p1"), 300)
	svc.fetchGate = make(chan struct{})
	svc.fetchSeen = make(chan struct{}, 1)
	eng := New(svc, Options{})

	m := eng.Mount(schedule.Entity("p1"), MountOptions{Heal: true})
	<-svc.fetchSeen
	m.Close()
	m.Close()
	close(svc.fetchGate)
	eng.Close()

	_, ok := eng.Store().Get(schedule.Entity("p1"))
	assert.False(t, ok, "refresh finishing after unmount must not write")
}

func TestMount_WithoutHealMakesNoRequests(t *testing.T) {
	svc := newFakeService()
	eng := newTestEngine(t, svc, Options{})

	m := eng.Mount(schedule.Global(), MountOptions{})
	m.Close()
	assert.Empty(t, svc.Calls())
}

func TestEngine_RunPollsUntilCancelled(t *testing.T) {
	svc := newFakeService()
	svc.set(schedule.Global(), 50)
	eng := New(svc, Options{PollInterval: 10 * time.Millisecond})
	notify, _ := eng.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- eng.Run(ctx) }()

	require.Eventually(t, func() bool {
		_, ok := eng.Store().Get(schedule.Global())
		return ok
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	// Close releases subscribers.
	for range notify {
	}
	eng.Close()
}

func TestEngine_OptionsDefaults(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, 15*time.Second, o.PollInterval)
	assert.Equal(t, time.Second, o.TickInterval)
	assert.Equal(t, 20, o.HealTicks)
	assert.NotNil(t, o.Logger)
}
