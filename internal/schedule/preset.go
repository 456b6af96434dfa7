package schedule

import (
	"fmt"
	"strconv"
	"strings"
)

// Type names the recurrence of a schedule preset.
type Type string

const (
	EveryNMinutes Type = "everyNMinutes"
	EveryNHours   Type = "everyNHours"
	Daily         Type = "daily"
	Weekly        Type = "weekly"
	Monthly       Type = "monthly"
	Cron          Type = "cron"
)

// Types lists the recognized preset types in presentation order.
var Types = []Type{EveryNMinutes, EveryNHours, Daily, Weekly, Monthly, Cron}

// Label returns a human readable description of t.
func (t Type) Label() string {
	switch t {
	case EveryNMinutes:
		return "Every N minutes"
	case EveryNHours:
		return "Every N hours"
	case Daily:
		return "Daily at time"
	case Weekly:
		return "Weekly (day+time)"
	case Monthly:
		return "Monthly (date+time)"
	case Cron:
		return "Custom cron"
	default:
		return string(t)
	}
}

// Preset is the schedule definition submitted with an enable command. The
// server computes next-run times from it; nothing here interprets it.
type Preset struct {
	Type            Type   `json:"scheduleType" toml:"schedule_type" yaml:"schedule_type"`
	MinutesInterval int    `json:"minutesInterval,omitempty" toml:"minutes_interval,omitempty" yaml:"minutes_interval,omitempty"`
	HoursInterval   int    `json:"hoursInterval,omitempty" toml:"hours_interval,omitempty" yaml:"hours_interval,omitempty"`
	TimeOfDay       string `json:"timeOfDay,omitempty" toml:"time_of_day,omitempty" yaml:"time_of_day,omitempty"`
	DayOfWeek       *int   `json:"dayOfWeek,omitempty" toml:"day_of_week,omitempty" yaml:"day_of_week,omitempty"`
	DayOfMonth      int    `json:"dayOfMonth,omitempty" toml:"day_of_month,omitempty" yaml:"day_of_month,omitempty"`
	Cron            string `json:"cron,omitempty" toml:"cron,omitempty" yaml:"cron,omitempty"`
}

// DefaultPreset is the preset offered when nothing else is known.
func DefaultPreset() Preset {
	return Preset{Type: EveryNMinutes, MinutesInterval: 10}
}

// ValidationError reports a malformed preset. It is returned before any
// network call is made.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid preset: %s %s", e.Field, e.Reason)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks that the fields required by p.Type are present and in range.
func (p Preset) Validate() error {
	switch p.Type {
	case EveryNMinutes:
		if p.MinutesInterval < 1 {
			return invalid("minutesInterval", "must be at least 1, got %d", p.MinutesInterval)
		}
	case EveryNHours:
		if p.HoursInterval < 1 {
			return invalid("hoursInterval", "must be at least 1, got %d", p.HoursInterval)
		}
	case Daily, Weekly, Monthly:
		if _, _, err := ParseTimeOfDay(p.TimeOfDay); err != nil {
			return invalid("timeOfDay", "%v", err)
		}
		if p.Type == Weekly {
			if p.DayOfWeek == nil {
				return invalid("dayOfWeek", "is required")
			}
			if d := *p.DayOfWeek; d < 0 || d > 6 {
				return invalid("dayOfWeek", "must be 0-6, got %d", d)
			}
		}
		if p.Type == Monthly && (p.DayOfMonth < 1 || p.DayOfMonth > 31) {
			return invalid("dayOfMonth", "must be 1-31, got %d", p.DayOfMonth)
		}
	case Cron:
		if strings.TrimSpace(p.Cron) == "" {
			return invalid("cron", "is required")
		}
	case "":
		return invalid("scheduleType", "is required")
	default:
		return invalid("scheduleType", "%q is not recognized", string(p.Type))
	}
	return nil
}

// Normalize returns a copy of p carrying only the fields relevant to its type.
func (p Preset) Normalize() Preset {
	out := Preset{Type: p.Type}
	switch p.Type {
	case EveryNMinutes:
		out.MinutesInterval = p.MinutesInterval
	case EveryNHours:
		out.HoursInterval = p.HoursInterval
	case Daily, Weekly, Monthly:
		out.TimeOfDay = strings.TrimSpace(p.TimeOfDay)
		if p.Type == Weekly && p.DayOfWeek != nil {
			d := *p.DayOfWeek
			out.DayOfWeek = &d
		}
		if p.Type == Monthly {
			out.DayOfMonth = p.DayOfMonth
		}
	case Cron:
		out.Cron = strings.TrimSpace(p.Cron)
	}
	return out
}

// ParseTimeOfDay parses an "HH:mm" 24-hour clock value.
func ParseTimeOfDay(value string) (hour, minute int, err error) {
	v := strings.TrimSpace(value)
	if len(v) != 5 || v[2] != ':' {
		return 0, 0, fmt.Errorf("%q is not HH:mm", value)
	}
	hour, herr := strconv.Atoi(v[:2])
	minute, merr := strconv.Atoi(v[3:])
	if herr != nil || merr != nil || strings.ContainsAny(v, "+-") {
		return 0, 0, fmt.Errorf("%q is not HH:mm", value)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%q is out of range", value)
	}
	return hour, minute, nil
}
