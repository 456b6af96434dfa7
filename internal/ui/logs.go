package ui

import (
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/groupsync/internal/logtail"
)

const (
	logFetchLimit   = 300
	logPaneHeight   = 10
	logRefreshEvery = 2 * time.Second
)

type logLinesMsg struct {
	lines []string
	err   error
}

func readLogsCmd(path string) tea.Cmd {
	if path == "" {
		return nil
	}
	return func() tea.Msg {
		lines, err := logtail.Read(path, logFetchLimit)
		return logLinesMsg{lines: lines, err: err}
	}
}

func newLogViewport(width int) viewport.Model {
	return viewport.New(width, logPaneHeight)
}

// formatLogLines renders parsed log records for the log pane.
func formatLogLines(lines []string, styles Styles) string {
	out := make([]string, 0, len(lines))
	for _, raw := range lines {
		l := logtail.Parse(raw)
		if !l.Parsed {
			out = append(out, styles.FaintText.Render(raw))
			continue
		}

		var b strings.Builder
		if !l.Time.IsZero() {
			b.WriteString(styles.FaintText.Render(l.Time.Local().Format("15:04:05")))
			b.WriteString(" ")
		}
		b.WriteString(levelStyle(l.Level, styles).Render(levelLabel(l.Level)))
		b.WriteString(" ")
		b.WriteString(styles.Text.Render(l.Message))
		for _, a := range l.Attrs {
			b.WriteString(" ")
			b.WriteString(styles.MutedText.Render(a.Key + "="))
			b.WriteString(styles.InfoText.Render(a.Value))
		}
		out = append(out, b.String())
	}
	return strings.Join(out, "\n")
}

func levelLabel(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "ERR"
	case level >= slog.LevelWarn:
		return "WRN"
	case level >= slog.LevelInfo:
		return "INF"
	default:
		return "DBG"
	}
}

func levelStyle(level slog.Level, styles Styles) lipgloss.Style {
	switch {
	case level >= slog.LevelError:
		return styles.DangerText
	case level >= slog.LevelWarn:
		return styles.WarningText
	case level >= slog.LevelInfo:
		return styles.SuccessText
	default:
		return styles.InfoText
	}
}
