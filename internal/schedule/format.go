package schedule

import "fmt"

// FormatClock renders a countdown as HH:MM:SS. Unknown countdowns render as
// zeros rather than blank so widgets keep a stable width.
func FormatClock(seconds *int) string {
	if seconds == nil {
		return "00:00:00"
	}
	s := *seconds
	if s < 0 {
		s = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s%3600)/60, s%60)
}
