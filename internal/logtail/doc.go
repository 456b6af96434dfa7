// Package logtail reads the tail of groupsync's log file for the log pane.
//
// # Reading Log Files
//
// Read returns the last N lines of a file using a ring buffer of size N:
//
//   - Scans the file sequentially (one pass)
//   - Uses O(maxLines) memory, not O(file size)
//   - Returns lines in chronological order
//
// A missing file yields nil, nil. Other errors are returned wrapped.
//
// # Parsing
//
// The application logs through slog's text handler, so every record looks
// like:
//
//	time=2026-10-18T09:15:00.000Z level=INFO msg="schedule enabled" scope=global
//
// Parse splits such a line into time, level, message and the remaining
// attributes. Quoted values are unquoted. Lines that are not key=value
// records (a panic trace, say) come back with Parsed false so the UI can
// still print them verbatim. Filter drops records below a minimum level.
//
// No colours are applied here; styling belongs to the UI theme.
package logtail
