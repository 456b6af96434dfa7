package logtail

import (
	"bufio"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Read returns at most maxLines from the end of the file at path. A
// non-positive maxLines returns every line.
func Read(path string, maxLines int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	if maxLines <= 0 {
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read log: %w", err)
		}
		return lines, nil
	}

	ring := make([]string, maxLines)
	count := 0
	idx := 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % maxLines
		if count < maxLines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}

	lines := make([]string, count)
	if count == maxLines {
		for i := 0; i < count; i++ {
			lines[i] = ring[(idx+i)%maxLines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, nil
}

// Line is one record written by slog's text handler.
type Line struct {
	Raw     string
	Time    time.Time
	Level   slog.Level
	Message string
	Attrs   []Attr // everything after msg, in order
	Parsed  bool
}

// Attr is a key=value pair of a log line.
type Attr struct {
	Key   string
	Value string
}

// Parse splits a text-handler line into its fields. Lines that are not in
// key=value form are returned with Parsed false and Level info.
func Parse(raw string) Line {
	line := Line{Raw: raw, Level: slog.LevelInfo}
	pairs, ok := splitPairs(raw)
	if !ok {
		return line
	}
	for _, p := range pairs {
		switch p.Key {
		case slog.TimeKey:
			if t, err := time.Parse(time.RFC3339Nano, p.Value); err == nil {
				line.Time = t
			}
		case slog.LevelKey:
			var level slog.Level
			if err := level.UnmarshalText([]byte(p.Value)); err == nil {
				line.Level = level
				line.Parsed = true
			}
		case slog.MessageKey:
			line.Message = p.Value
		default:
			line.Attrs = append(line.Attrs, p)
		}
	}
	return line
}

// Filter keeps the lines at or above min.
func Filter(lines []string, min slog.Level) []Line {
	out := make([]Line, 0, len(lines))
	for _, raw := range lines {
		l := Parse(raw)
		if l.Level >= min {
			out = append(out, l)
		}
	}
	return out
}

func splitPairs(raw string) ([]Attr, bool) {
	var pairs []Attr
	rest := strings.TrimSpace(raw)
	for rest != "" {
		eq := strings.IndexByte(rest, '=')
		if eq <= 0 || strings.ContainsAny(rest[:eq], " \t\"") {
			return nil, false
		}
		key := rest[:eq]
		rest = rest[eq+1:]

		var value string
		if strings.HasPrefix(rest, `"`) {
			end := closingQuote(rest)
			if end < 0 {
				return nil, false
			}
			unquoted, err := strconv.Unquote(rest[:end+1])
			if err != nil {
				return nil, false
			}
			value = unquoted
			rest = rest[end+1:]
		} else {
			sp := strings.IndexByte(rest, ' ')
			if sp < 0 {
				sp = len(rest)
			}
			value = rest[:sp]
			rest = rest[sp:]
		}
		pairs = append(pairs, Attr{Key: key, Value: value})
		rest = strings.TrimLeft(rest, " ")
	}
	return pairs, len(pairs) > 0
}

func closingQuote(s string) int {
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}
