// Package app is the composition root of groupsync.
//
// # Architecture
//
// Run wires the application together:
//
//  1. Load configuration (config.Load) and apply command-line overrides
//  2. Open the slog log file under the configured log dir
//  3. Build the HTTP client for the scheduling service
//  4. Preflight: load the entity list (a 401 aborts startup)
//  5. Build the engine, which owns the schedule store
//  6. Run the engine poll loop and the TUI in one errgroup
//
// # Data Flow
//
//	┌──────────────┐
//	│   Run()      │
//	└──────┬───────┘
//	       ├─────> config.Load()      config.toml / config.yaml
//	       ├─────> openLog()          slog text handler → groupsync.log
//	       ├─────> api.NewClient()    rate-limited HTTP client
//	       ├─────> preflight()        GET /api/entities
//	       ├─────> engine.New()       store, poller, mutator, ticker
//	       └─────> errgroup
//	                 ├─> eng.Run()    background RefreshAll every poll interval
//	                 └─> ui.Run()     bubbletea program (blocks)
//
// Quitting the UI cancels the engine; cancelling the context (SIGINT,
// SIGTERM) stops both.
//
// # Error Handling
//
// Fatal (returned from Run): invalid config, log file errors, client
// construction failure, rejected credentials. Everything else is logged
// and retried by the next poll.
package app
