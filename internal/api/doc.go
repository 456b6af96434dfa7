// Package api provides an HTTP client for the external scheduling service.
//
// # Overview
//
// The scheduling service owns schedule definitions, computes next-run times
// and executes synchronization jobs. This package only issues its commands
// and queries and decodes the replies:
//
//   - PUT  /api/schedule/global          enable the global schedule
//   - PUT  /api/schedule/entity/{id}     enable one entity's schedule
//   - POST /api/schedule/disable         disable a scope (acknowledgement only)
//   - POST /api/schedule/run             run the sync job now
//   - GET  /api/schedule/countdown       all enabled countdowns, or one scope
//     with ?scope=global|entity&entityId=
//   - GET  /api/entities                 entities that may own a schedule
//
// # Request Handling
//
// Every request:
//   - Uses the caller's context for cancellation
//   - Waits on a token-bucket limiter (golang.org/x/time/rate); requests are
//     delayed, never dropped
//   - Sets Accept, User-Agent, x-timezone and a fresh X-Request-ID
//   - Sends Authorization: Bearer <token> when a token is configured
//   - Has the transport timeout only (10 seconds by default)
//
// # Error Handling
//
// Transport failures and undecodable bodies are wrapped with fmt.Errorf.
// Responses with status >= 400 become *StatusError, which carries the
// server's "message" field when present. Callers treat every error as "no
// update this cycle"; nothing here retries.
//
// # Wire Shape
//
// Countdowns arrive as:
//
//	{"scope":"global"|"entity","entityId":"…","enabled":true,
//	 "seconds":600|null,"nextRunAt":"2026-01-02T03:04:05Z"|null}
//
// Countdown.Entry converts them into schedule.Entry values. Older servers
// that still send scope "parent" with parentId are accepted.
package api
