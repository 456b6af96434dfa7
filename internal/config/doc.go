// Package config loads groupsync's configuration file.
//
// # Configuration Discovery
//
// The Load function follows this resolution order:
//
//  1. If a path is explicitly provided, use it
//  2. Otherwise, use ~/.config/groupsync/config.toml (default)
//  3. If the file doesn't exist, fall back to defaults
//  4. If the file exists but fields are missing/empty, use defaults
//  5. GROUPSYNC_API_URL and GROUPSYNC_TOKEN override the file
//
// Files ending in .yaml or .yml are parsed as YAML; everything else is TOML.
//
// # Default Values
//
//   - API endpoint: 127.0.0.1:8080
//   - Poll interval: 15s, tick interval: 1s, heal every 20 ticks
//   - Request limiter: 5 requests/s, burst 5
//   - Log directory: ~/.local/share/groupsync/logs
//   - Log level: info
//
// # TOML Format
//
//	api_url = "https://sync.example.com"
//	token = "..."
//	timezone = "Europe/Berlin"
//	poll_interval = "15s"
//	tick_interval = "1s"
//	heal_ticks = 20
//	request_rate = 5
//	request_burst = 5
//	log_dir = "~/.local/share/groupsync/logs"
//	log_level = "info"
//
// Durations are Go duration strings. Tilde expansion is performed for
// log_dir and the config path.
//
// # Error Handling
//
// Load returns errors for path expansion failures, read errors other than
// os.ErrNotExist, parse errors, and invalid durations or log levels. A
// missing file is not an error.
package config
