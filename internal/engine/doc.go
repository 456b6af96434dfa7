// Package engine reconciles the schedule store with the scheduling service.
//
// The Poller writes authoritative state, the Mutator writes provisional
// state ahead of command confirmation, and the Ticker lowers displayed
// countdowns once per second between polls. Widgets attach through
// Engine.Mount, which shares one tick loop per scope and optionally heals
// the scope with a periodic single-scope refresh.
//
// All state lives in a state.Store; see that package for write precedence.
package engine
