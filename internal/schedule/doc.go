// Package schedule defines the domain vocabulary shared by the engine, the
// API client and the UI: scopes, countdown entries and schedule presets.
//
// A Scope is either the single global schedule or a schedule bound to one
// entity. Scope.Key yields the string used to index the schedule map
// ("global" or "entity:<id>").
//
// An Entry is the countdown state of one scope. Its Phase is derived rather
// than stored:
//
//	Idle         no entry, or the server reports the schedule disabled
//	Provisional  enabled locally, Seconds == nil until the server confirms
//	Confirmed    Seconds carries a server-reported countdown
//
// Presets are opaque to this module: Validate rejects malformed input before
// any request is issued and Normalize strips fields the chosen type does not
// use. Next-run computation belongs to the scheduling service.
package schedule
