package state

import (
	"sort"
	"sync"
	"time"

	"github.com/five82/groupsync/internal/schedule"
)

// Snapshot is an immutable copy of the schedule map.
type Snapshot struct {
	Entries  map[string]schedule.Entry
	Revision uint64
}

// Get returns the entry for scope.
func (s Snapshot) Get(scope schedule.Scope) (schedule.Entry, bool) {
	e, ok := s.Entries[scope.Key()]
	return e, ok
}

// Sorted returns the entries ordered by schedule.Less.
func (s Snapshot) Sorted() []schedule.Entry {
	out := make([]schedule.Entry, 0, len(s.Entries))
	for _, e := range s.Entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return schedule.Less(out[i].Scope, out[j].Scope) })
	return out
}

// Pending returns provisional entries written more than window ago. These
// have not been confirmed by a poll within one polling interval.
func (s Snapshot) Pending(now time.Time, window time.Duration) []schedule.Entry {
	var out []schedule.Entry
	for _, e := range s.Sorted() {
		if e.Phase() == schedule.PhaseProvisional && now.Sub(e.Since) > window {
			out = append(out, e)
		}
	}
	return out
}

// Result summarizes an authoritative write.
type Result struct {
	Applied   int // scopes written or removed
	Discarded int // scopes skipped because the response was superseded
}

// Store is the single writable schedule map shared by every widget. The zero
// value is ready to use.
//
// Writes carry generation tickets taken with Ticket before the request that
// produced them was issued. A poll result for a scope is discarded when a
// newer result was already applied for that scope, or when the scope was
// optimistically mutated after the request was issued.
type Store struct {
	mu       sync.RWMutex
	entries  map[string]schedule.Entry
	written  map[string]uint64 // ticket of the last applied poll or splice
	mutated  map[string]uint64 // ticket of the last optimistic write
	seq      uint64
	revision uint64

	subs    map[int]chan struct{}
	nextSub int
	closed  bool
}

// Ticket returns a new generation tag. Take it immediately before issuing a
// request whose result will be written back.
func (s *Store) Ticket() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextTicket()
}

// Get returns a copy of the entry for scope.
func (s *Store) Get(scope schedule.Scope) (schedule.Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[scope.Key()]
	if !ok {
		return schedule.Entry{}, false
	}
	return e.Clone(), true
}

// SetMany replaces the given scopes wholesale. A disabled entry removes its
// scope. Scopes not named in entries are untouched. Re-applying the same
// entries is a no-op in effect.
func (s *Store) SetMany(ticket uint64, entries []schedule.Entry) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()

	var res Result
	changed := false
	for _, e := range entries {
		key := e.Scope.Key()
		if s.superseded(key, ticket) {
			res.Discarded++
			continue
		}
		changed = s.put(key, e) || changed
		s.written[key] = ticket
		res.Applied++
	}
	if changed {
		s.bump()
	}
	return res
}

// ReplaceAll makes the map hold exactly entries, except for scopes whose
// state is newer than ticket. Scopes missing from entries are removed.
func (s *Store) ReplaceAll(ticket uint64, entries []schedule.Entry) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()

	incoming := make(map[string]schedule.Entry, len(entries))
	for _, e := range entries {
		incoming[e.Scope.Key()] = e
	}

	keys := make(map[string]struct{}, len(incoming)+len(s.entries))
	for k := range incoming {
		keys[k] = struct{}{}
	}
	for k := range s.entries {
		keys[k] = struct{}{}
	}

	var res Result
	changed := false
	for key := range keys {
		if s.superseded(key, ticket) {
			res.Discarded++
			continue
		}
		if e, ok := incoming[key]; ok {
			changed = s.put(key, e) || changed
		} else {
			changed = s.drop(key) || changed
		}
		s.written[key] = ticket
		res.Applied++
	}
	if changed {
		s.bump()
	}
	return res
}

// Splice writes a countdown embedded in a command response. It is discarded
// only when the scope was optimistically mutated after ticket was taken.
// Poll results issued before the splice are discarded afterwards.
func (s *Store) Splice(ticket uint64, e schedule.Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()

	key := e.Scope.Key()
	if s.mutated[key] > ticket {
		return false
	}
	if s.put(key, e) {
		s.bump()
	}
	s.written[key] = s.nextTicket()
	return true
}

// Patch applies a cosmetic field update to an existing entry. It never
// creates an entry, and scope and enabled state cannot be changed through it.
func (s *Store) Patch(scope schedule.Scope, update func(schedule.Entry) schedule.Entry) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := scope.Key()
	cur, ok := s.entries[key]
	if !ok {
		return false
	}
	next := update(cur.Clone())
	next.Scope = cur.Scope
	next.Enabled = cur.Enabled
	next.Since = cur.Since
	if next.Equal(cur) {
		return false
	}
	s.entries[key] = next
	s.bump()
	return true
}

// Remove deletes scope as an optimistic mutation.
func (s *Store) Remove(scope schedule.Scope) {
	s.Optimistic(func(tx *Tx) { tx.Delete(scope) })
}

// Tx is an optimistic multi-scope write. It is only valid inside Optimistic.
type Tx struct {
	s      *Store
	ticket uint64
	dirty  bool
}

// Put writes e, marking its scope as mutated.
func (tx *Tx) Put(e schedule.Entry) {
	key := e.Scope.Key()
	tx.dirty = tx.s.put(key, e) || tx.dirty
	tx.s.mutated[key] = tx.ticket
}

// Delete removes scope, marking it as mutated.
func (tx *Tx) Delete(scope schedule.Scope) {
	key := scope.Key()
	tx.dirty = tx.s.drop(key) || tx.dirty
	tx.s.mutated[key] = tx.ticket
}

// Scopes returns the scopes currently present, in schedule.Less order.
func (tx *Tx) Scopes() []schedule.Scope {
	out := make([]schedule.Scope, 0, len(tx.s.entries))
	for _, e := range tx.s.entries {
		out = append(out, e.Scope)
	}
	sort.Slice(out, func(i, j int) bool { return schedule.Less(out[i], out[j]) })
	return out
}

// Optimistic runs fn as one atomic provisional write. Subscribers are
// notified once.
func (s *Store) Optimistic(fn func(tx *Tx)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()

	tx := &Tx{s: s, ticket: s.nextTicket()}
	fn(tx)
	if tx.dirty {
		s.bump()
	}
}

// Snapshot returns a deep copy of the current map.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{Entries: make(map[string]schedule.Entry, len(s.entries)), Revision: s.revision}
	for k, e := range s.entries {
		snap.Entries[k] = e.Clone()
	}
	return snap
}

// Subscribe returns a channel that receives a value after each change. Bursts
// of changes coalesce into one notification. The channel is closed by cancel
// or Close.
func (s *Store) Subscribe() (<-chan struct{}, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()

	ch := make(chan struct{}, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if c, ok := s.subs[id]; ok {
				delete(s.subs, id)
				close(c)
			}
		})
	}
	return ch, cancel
}

// Close releases every subscriber. Later writes still succeed.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	for id, ch := range s.subs {
		delete(s.subs, id)
		close(ch)
	}
}

func (s *Store) init() {
	if s.entries == nil {
		s.entries = make(map[string]schedule.Entry)
		s.written = make(map[string]uint64)
		s.mutated = make(map[string]uint64)
		s.subs = make(map[int]chan struct{})
	}
}

func (s *Store) nextTicket() uint64 {
	s.seq++
	return s.seq
}

func (s *Store) superseded(key string, ticket uint64) bool {
	return s.written[key] > ticket || s.mutated[key] > ticket
}

// put stores e under key, dropping it when disabled. It reports whether the
// map changed.
func (s *Store) put(key string, e schedule.Entry) bool {
	if !e.Enabled {
		return s.drop(key)
	}
	cur, ok := s.entries[key]
	if ok && cur.Equal(e) {
		return false
	}
	next := e.Clone()
	next.Since = time.Now()
	s.entries[key] = next
	return true
}

func (s *Store) drop(key string) bool {
	if _, ok := s.entries[key]; !ok {
		return false
	}
	delete(s.entries, key)
	return true
}

func (s *Store) bump() {
	s.revision++
	for _, ch := range s.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
