// Package state holds the schedule map shared by the engine and every widget,
// and the precedence view derived from it.
//
// # Overview
//
// Store maps scope keys ("global", "entity:<id>") to countdown entries. It is
// the only writable source of truth: the poller and the optimistic mutator
// write to it, the countdown ticker patches it cosmetically, and widgets read
// snapshots.
//
//	Writers:                          Readers:
//	┌──────────────────────┐         ┌────────────────────────┐
//	│ Poller               │         │                        │
//	│   SetMany/ReplaceAll │         │ store.Snapshot()       │
//	│ Mutator              │────────→│   → state.Resolve()    │
//	│   Optimistic/Splice  │ (mutex) │   → render widgets     │
//	│ Ticker               │         │                        │
//	│   Patch              │         │ store.Subscribe()      │
//	└──────────────────────┘         └────────────────────────┘
//
// # Write Precedence
//
// Writes are ordered by generation tickets rather than by arrival:
//
//   - Ticket() is taken right before a request is issued.
//   - Optimistic writes take their own ticket and mark their scopes mutated.
//   - A poll result (SetMany, ReplaceAll) for a scope is discarded when that
//     scope already holds a newer poll result or was mutated after the
//     request was issued.
//   - A command splice (Splice) is discarded only when a later optimistic
//     mutation exists; once applied, older polls for that scope are stale.
//   - Patch never creates an entry and cannot change scope or enabled state.
//     Any applied poll overwrites the patched value wholesale.
//
// This closes the race where a late response for a scope that was disabled
// and re-enabled in the meantime would resurrect the previous cycle.
//
// # Update Semantics
//
//	store.SetMany(t, entries)    replace the named scopes; disabled → removed
//	store.ReplaceAll(t, entries) the map becomes exactly entries
//	store.Optimistic(fn)         atomic provisional multi-scope write
//	store.Patch(scope, fn)       cosmetic field update (ticker only)
//
// Identical writes do not bump Snapshot.Revision and do not notify.
//
// # Notification
//
// Subscribe returns a channel with a one-slot buffer. Bursts of writes
// coalesce into one wake-up; readers then take a fresh Snapshot. Close
// releases every subscriber at shutdown.
//
// # Precedence
//
// Resolve derives, from one snapshot:
//
//   - GlobalEnabled: the global entry exists and is enabled. While true every
//     entity toggle is suppressed, even though entity entries may remain in
//     the map.
//   - Active: the enabled, confirmed entry with the fewest seconds remaining.
//     Ties go to the global scope, then to the entity key that sorts first.
//
// # Testing Considerations
//
// The Store is safe to use as a zero value:
//
//	var store state.Store
//	store.SetMany(store.Ticket(), entries)
package state
