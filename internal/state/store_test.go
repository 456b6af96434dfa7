package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/groupsync/internal/schedule"
)

func confirmed(scope schedule.Scope, secs int) schedule.Entry {
	return schedule.Confirmed(scope, secs, nil)
}

func seconds(t *testing.T, s *Store, scope schedule.Scope) int {
	t.Helper()
	e, ok := s.Get(scope)
	require.True(t, ok, "entry %s missing", scope)
	require.NotNil(t, e.Seconds, "entry %s provisional", scope)
	return *e.Seconds
}

func TestStore_SetManyIsIdempotent(t *testing.T) {
	var s Store
	entries := []schedule.Entry{confirmed(schedule.Global(), 600), confirmed(schedule.Entity("p1"), 30)}

	s.SetMany(s.Ticket(), entries)
	first := s.Snapshot()

	res := s.SetMany(s.Ticket(), entries)
	second := s.Snapshot()

	assert.Equal(t, 2, res.Applied)
	assert.Equal(t, first.Revision, second.Revision, "identical snapshot should not change revision")
	require.Len(t, second.Entries, 2)
	for k, e := range first.Entries {
		assert.True(t, e.Equal(second.Entries[k]), "entry %s changed", k)
	}
}

func TestStore_SetManyDisabledEntryRemovesScope(t *testing.T) {
	var s Store
	s.SetMany(s.Ticket(), []schedule.Entry{confirmed(schedule.Entity("p1"), 30)})
	s.SetMany(s.Ticket(), []schedule.Entry{{Scope: schedule.Entity("p1"), Enabled: false}})

	_, ok := s.Get(schedule.Entity("p1"))
	assert.False(t, ok)
}

func TestStore_ReplaceAllDropsAbsentScopes(t *testing.T) {
	var s Store
	s.SetMany(s.Ticket(), []schedule.Entry{confirmed(schedule.Entity("a"), 10), confirmed(schedule.Entity("b"), 20)})

	res := s.ReplaceAll(s.Ticket(), []schedule.Entry{confirmed(schedule.Entity("b"), 18)})

	assert.Equal(t, Result{Applied: 2}, res)
	_, ok := s.Get(schedule.Entity("a"))
	assert.False(t, ok, "scope absent from the snapshot should be removed")
	assert.Equal(t, 18, seconds(t, &s, schedule.Entity("b")))
}

func TestStore_PatchNeverResurrects(t *testing.T) {
	var s Store
	called := false
	ok := s.Patch(schedule.Global(), func(e schedule.Entry) schedule.Entry {
		called = true
		return e
	})
	assert.False(t, ok)
	assert.False(t, called)
	assert.Empty(t, s.Snapshot().Entries)
}

func TestStore_PatchCannotChangeScopeOrEnabled(t *testing.T) {
	var s Store
	s.SetMany(s.Ticket(), []schedule.Entry{confirmed(schedule.Global(), 5)})

	s.Patch(schedule.Global(), func(e schedule.Entry) schedule.Entry {
		e.Scope = schedule.Entity("x")
		e.Enabled = false
		v := 4
		e.Seconds = &v
		return e
	})

	e, ok := s.Get(schedule.Global())
	require.True(t, ok)
	assert.True(t, e.Enabled)
	assert.Equal(t, schedule.Global(), e.Scope)
	assert.Equal(t, 4, *e.Seconds)
}

func TestStore_PollOverridesTickerValue(t *testing.T) {
	var s Store
	s.SetMany(s.Ticket(), []schedule.Entry{confirmed(schedule.Global(), 600)})
	for i := 0; i < 5; i++ {
		s.Patch(schedule.Global(), func(e schedule.Entry) schedule.Entry {
			v := *e.Seconds - 1
			e.Seconds = &v
			return e
		})
	}
	require.Equal(t, 595, seconds(t, &s, schedule.Global()))

	s.SetMany(s.Ticket(), []schedule.Entry{confirmed(schedule.Global(), 580)})
	assert.Equal(t, 580, seconds(t, &s, schedule.Global()))
}

func TestStore_OutOfOrderPollIsDiscarded(t *testing.T) {
	var s Store
	older := s.Ticket()
	newer := s.Ticket()

	s.SetMany(newer, []schedule.Entry{confirmed(schedule.Global(), 100)})
	res := s.SetMany(older, []schedule.Entry{confirmed(schedule.Global(), 400)})

	assert.Equal(t, Result{Discarded: 1}, res)
	assert.Equal(t, 100, seconds(t, &s, schedule.Global()))
}

func TestStore_PollIssuedBeforeMutationIsDiscarded(t *testing.T) {
	var s Store
	s.SetMany(s.Ticket(), []schedule.Entry{confirmed(schedule.Entity("p1"), 90)})

	inflight := s.Ticket()
	s.Remove(schedule.Entity("p1")) // disable
	s.Optimistic(func(tx *Tx) { tx.Put(schedule.Provisional(schedule.Entity("p1"))) }) // re-enable

	// The late poll still carries the old cycle.
	res := s.ReplaceAll(inflight, []schedule.Entry{confirmed(schedule.Entity("p1"), 90)})
	assert.Equal(t, 1, res.Discarded)

	e, ok := s.Get(schedule.Entity("p1"))
	require.True(t, ok)
	assert.Equal(t, schedule.PhaseProvisional, e.Phase())
}

func TestStore_ReplaceAllKeepsNewerProvisional(t *testing.T) {
	var s Store
	inflight := s.Ticket()
	s.Optimistic(func(tx *Tx) { tx.Put(schedule.Provisional(schedule.Global())) })

	s.ReplaceAll(inflight, nil)

	_, ok := s.Get(schedule.Global())
	assert.True(t, ok, "provisional entry written after the poll was issued must survive it")
}

func TestStore_SpliceRules(t *testing.T) {
	var s Store
	s.Optimistic(func(tx *Tx) { tx.Put(schedule.Provisional(schedule.Global())) })
	cmd := s.Ticket()
	poll := s.Ticket()

	require.True(t, s.Splice(cmd, confirmed(schedule.Global(), 600)))
	assert.Equal(t, 600, seconds(t, &s, schedule.Global()))

	// A poll issued before the splice landed is older than the splice.
	res := s.SetMany(poll, []schedule.Entry{confirmed(schedule.Global(), 900)})
	assert.Equal(t, 1, res.Discarded)
	assert.Equal(t, 600, seconds(t, &s, schedule.Global()))

	// A splice for a command superseded by a later user action is dropped.
	stale := s.Ticket()
	s.Remove(schedule.Global())
	assert.False(t, s.Splice(stale, confirmed(schedule.Global(), 10)))
	_, ok := s.Get(schedule.Global())
	assert.False(t, ok)
}

func TestStore_SubscribeCoalescesAndCancels(t *testing.T) {
	var s Store
	ch, cancel := s.Subscribe()

	s.SetMany(s.Ticket(), []schedule.Entry{confirmed(schedule.Global(), 3)})
	s.SetMany(s.Ticket(), []schedule.Entry{confirmed(schedule.Global(), 2)})

	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("no notification after write")
	}
	select {
	case <-ch:
		t.Fatal("burst of writes should coalesce into one notification")
	default:
	}

	// No-op writes do not notify.
	s.SetMany(s.Ticket(), []schedule.Entry{confirmed(schedule.Global(), 2)})
	select {
	case <-ch:
		t.Fatal("no-op write notified")
	default:
	}

	cancel()
	_, open := <-ch
	assert.False(t, open, "cancel should close the channel")
	cancel()
}

func TestStore_CloseReleasesSubscribers(t *testing.T) {
	var s Store
	ch, _ := s.Subscribe()
	s.Close()
	_, open := <-ch
	assert.False(t, open)

	late, _ := s.Subscribe()
	_, open = <-late
	assert.False(t, open, "subscribing after Close yields a closed channel")
}

func TestStore_SnapshotIsIndependent(t *testing.T) {
	var s Store
	s.SetMany(s.Ticket(), []schedule.Entry{confirmed(schedule.Global(), 60)})

	snap := s.Snapshot()
	*snap.Entries["global"].Seconds = 1

	assert.Equal(t, 60, seconds(t, &s, schedule.Global()))
}

func TestSnapshot_Pending(t *testing.T) {
	now := time.Now()
	snap := Snapshot{Entries: map[string]schedule.Entry{
		"global":    {Scope: schedule.Global(), Enabled: true, Since: now.Add(-time.Minute)},
		"entity:p1": {Scope: schedule.Entity("p1"), Enabled: true, Since: now},
		"entity:p2": {Scope: schedule.Entity("p2"), Enabled: true, Seconds: new(int), Since: now.Add(-time.Hour)},
	}}

	pending := snap.Pending(now, 15*time.Second)
	require.Len(t, pending, 1)
	assert.Equal(t, schedule.Global(), pending[0].Scope)
}
