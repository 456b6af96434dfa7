package ui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/groupsync/internal/api"
	"github.com/five82/groupsync/internal/schedule"
	"github.com/five82/groupsync/internal/state"
)

// pulseThreshold is the remaining time below which the floating timer pulses.
const pulseThreshold = 10

// row is one toggle widget.
type row struct {
	Scope   schedule.Scope
	Label   string
	Entry   schedule.Entry
	Present bool
}

// buildRows lays out the toggle widgets: global first, then one per entity
// ordered by display name. Entity toggles are not rendered while the global
// schedule is enabled. Entities the store knows about but the entity list
// does not are still shown, labelled by id.
func buildRows(snap state.Snapshot, view state.View, entities []api.Entity) []row {
	rows := []row{newRow(snap, schedule.Global(), "Global")}

	sorted := append([]api.Entity(nil), entities...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := strings.ToLower(sorted[i].DisplayName()), strings.ToLower(sorted[j].DisplayName())
		if a != b {
			return a < b
		}
		return sorted[i].ID < sorted[j].ID
	})

	seen := make(map[string]bool, len(sorted))
	for _, ent := range sorted {
		scope := schedule.Entity(ent.ID)
		if !scope.Valid() || seen[scope.Key()] || !view.ToggleVisible(scope) {
			continue
		}
		seen[scope.Key()] = true
		rows = append(rows, newRow(snap, scope, ent.DisplayName()))
	}
	for _, e := range view.Visible(snap) {
		if e.Scope.IsGlobal() || seen[e.Scope.Key()] {
			continue
		}
		rows = append(rows, newRow(snap, e.Scope, e.Scope.EntityID))
	}
	return rows
}

func newRow(snap state.Snapshot, scope schedule.Scope, label string) row {
	e, ok := snap.Get(scope)
	if !ok {
		e = schedule.Entry{Scope: scope}
	}
	return row{Scope: scope, Label: label, Entry: e, Present: ok && e.Enabled}
}

// badge returns the phase key and text shown for a toggle.
func badge(r row, pending bool) (phase, text string) {
	switch {
	case !r.Present:
		return "idle", "OFF"
	case r.Entry.Phase() == schedule.PhaseProvisional && pending:
		return "pending", "PENDING"
	case r.Entry.Phase() == schedule.PhaseProvisional:
		return "provisional", "STARTING"
	default:
		return "confirmed", "ON"
	}
}

func renderRow(r row, styles Styles, selected, busy, pending bool, labelWidth int) string {
	cursor := "  "
	if selected {
		cursor = "> "
	}

	phase, text := badge(r, pending)
	parts := []string{
		cursor + padRight(r.Label, labelWidth),
		styles.Badge(phase).Render(fmt.Sprintf("%-8s", text)),
	}

	if r.Present {
		if r.Entry.Seconds != nil {
			parts = append(parts, styles.Text.Render("next in "+schedule.FormatClock(r.Entry.Seconds)))
			if r.Entry.NextRunAt != nil {
				parts = append(parts, styles.MutedText.Render("at "+r.Entry.NextRunAt.Local().Format("Jan 2 15:04")))
			}
		} else {
			parts = append(parts, styles.MutedText.Render("waiting for server"))
		}
	}
	if busy {
		parts = append(parts, styles.InfoText.Render("…"))
	}

	line := strings.Join(parts, "  ")
	if selected {
		return styles.Cursor.Render(line)
	}
	return line
}

// timerText returns the floating timer content for view. It is empty when
// no confirmed schedule is active. The display never shows less than one
// second while a schedule is active.
func timerText(view state.View, labels map[string]string) (text string, pulse, ok bool) {
	if !view.HasActive {
		return "", false, false
	}
	secs := view.Active.SecondsOr(1)
	if secs < 1 {
		secs = 1
	}

	name := "Global"
	if !view.Active.Scope.IsGlobal() {
		name = labels[view.Active.Scope.Key()]
		if name == "" {
			name = view.Active.Scope.EntityID
		}
	}
	return fmt.Sprintf("Auto-Sync: %s  %s", name, schedule.FormatClock(&secs)), secs <= pulseThreshold, true
}

func renderTimer(view state.View, labels map[string]string, styles Styles) string {
	text, pulse, ok := timerText(view, labels)
	if !ok {
		return ""
	}
	style := styles.Timer
	if pulse && view.Active.SecondsOr(0)%2 == 0 {
		style = styles.TimerPulse
	}
	return style.Render(text)
}

func pendingKeys(snap state.Snapshot, now time.Time, window time.Duration) map[string]bool {
	out := make(map[string]bool)
	for _, e := range snap.Pending(now, window) {
		out[e.Scope.Key()] = true
	}
	return out
}

func labelWidth(rows []row) int {
	w := 0
	for _, r := range rows {
		if n := lipgloss.Width(r.Label); n > w {
			w = n
		}
	}
	if w > 32 {
		w = 32
	}
	return w
}

func padRight(s string, width int) string {
	if n := lipgloss.Width(s); n > width {
		runes := []rune(s)
		if width > 1 && len(runes) > width-1 {
			return string(runes[:width-1]) + "…"
		}
		return s
	} else if n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}
