package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/groupsync/internal/schedule"
)

// Modal is the interface for modal dialogs. Update returns the updated
// modal, a command, and whether the modal should close.
type Modal interface {
	Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool)
	View(theme Theme, width, height int) string
}

type presetField struct {
	name        string // preset field reported in validation errors
	label       string
	placeholder string
}

var presetFields = map[schedule.Type][]presetField{
	schedule.EveryNMinutes: {{"minutesInterval", "Minutes", "10"}},
	schedule.EveryNHours:   {{"hoursInterval", "Hours", "1"}},
	schedule.Daily:         {{"timeOfDay", "Time (HH:mm)", "09:00"}},
	schedule.Weekly: {
		{"timeOfDay", "Time (HH:mm)", "09:00"},
		{"dayOfWeek", "Day of week (0=Sun … 6=Sat)", "1"},
	},
	schedule.Monthly: {
		{"timeOfDay", "Time (HH:mm)", "09:00"},
		{"dayOfMonth", "Day of month (1-31)", "1"},
	},
	schedule.Cron: {{"cron", "Cron expression", "*/15 * * * *"}},
}

// presetDialog collects a preset for one scope. Focus 0 is the type
// selector; the following indexes are the type's input fields.
type presetDialog struct {
	scope   schedule.Scope
	title   string
	typeIdx int
	focus   int
	inputs  []textinput.Model
	errText string

	// submitted is set when the user confirmed a preset that validates.
	submitted *schedule.Preset
}

func newPresetDialog(scope schedule.Scope, title string, initial schedule.Preset) *presetDialog {
	d := &presetDialog{scope: scope, title: title}
	for i, t := range schedule.Types {
		if t == initial.Type {
			d.typeIdx = i
		}
	}
	d.resetInputs(initial)
	return d
}

func (d *presetDialog) presetType() schedule.Type {
	return schedule.Types[d.typeIdx]
}

func (d *presetDialog) resetInputs(from schedule.Preset) {
	fields := presetFields[d.presetType()]
	d.inputs = make([]textinput.Model, len(fields))
	for i, f := range fields {
		in := textinput.New()
		in.Prompt = ""
		in.Placeholder = f.placeholder
		in.CharLimit = 64
		in.Width = 24
		in.SetValue(fieldValue(from, f.name))
		d.inputs[i] = in
	}
	d.focus = 0
}

func fieldValue(p schedule.Preset, name string) string {
	switch name {
	case "minutesInterval":
		if p.MinutesInterval > 0 {
			return strconv.Itoa(p.MinutesInterval)
		}
	case "hoursInterval":
		if p.HoursInterval > 0 {
			return strconv.Itoa(p.HoursInterval)
		}
	case "timeOfDay":
		return p.TimeOfDay
	case "dayOfWeek":
		if p.DayOfWeek != nil {
			return strconv.Itoa(*p.DayOfWeek)
		}
	case "dayOfMonth":
		if p.DayOfMonth > 0 {
			return strconv.Itoa(p.DayOfMonth)
		}
	case "cron":
		return p.Cron
	}
	return ""
}

// Preset builds and validates the preset from the current inputs.
func (d *presetDialog) Preset() (schedule.Preset, error) {
	p := schedule.Preset{Type: d.presetType()}
	for i, f := range presetFields[p.Type] {
		raw := strings.TrimSpace(d.inputs[i].Value())
		switch f.name {
		case "timeOfDay":
			p.TimeOfDay = raw
		case "cron":
			p.Cron = raw
		default:
			n, err := strconv.Atoi(raw)
			if err != nil {
				return schedule.Preset{}, &schedule.ValidationError{Field: f.name, Reason: fmt.Sprintf("must be a number, got %q", raw)}
			}
			switch f.name {
			case "minutesInterval":
				p.MinutesInterval = n
			case "hoursInterval":
				p.HoursInterval = n
			case "dayOfWeek":
				p.DayOfWeek = &n
			case "dayOfMonth":
				p.DayOfMonth = n
			}
		}
	}
	if err := p.Validate(); err != nil {
		return schedule.Preset{}, err
	}
	return p.Normalize(), nil
}

func (d *presetDialog) setFocus(idx int) tea.Cmd {
	n := len(d.inputs) + 1
	d.focus = ((idx % n) + n) % n
	var cmd tea.Cmd
	for i := range d.inputs {
		if i == d.focus-1 {
			cmd = d.inputs[i].Focus()
		} else {
			d.inputs[i].Blur()
		}
	}
	return cmd
}

// Update implements Modal.
func (d *presetDialog) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return d, nil, false
	}

	switch {
	case key.Matches(keyMsg, keys.Cancel):
		return d, nil, true
	case key.Matches(keyMsg, keys.Confirm):
		p, err := d.Preset()
		if err != nil {
			d.errText = err.Error()
			return d, nil, false
		}
		d.submitted = &p
		return d, nil, true
	case key.Matches(keyMsg, keys.NextItem):
		return d, d.setFocus(d.focus + 1), false
	case key.Matches(keyMsg, keys.PrevItem):
		return d, d.setFocus(d.focus - 1), false
	}

	if d.focus == 0 {
		switch {
		case key.Matches(keyMsg, keys.Left):
			d.cycleType(-1)
		case key.Matches(keyMsg, keys.Right):
			d.cycleType(1)
		}
		return d, nil, false
	}

	var cmd tea.Cmd
	d.inputs[d.focus-1], cmd = d.inputs[d.focus-1].Update(msg)
	d.errText = ""
	return d, cmd, false
}

func (d *presetDialog) cycleType(delta int) {
	values := make(map[string]string, len(d.inputs))
	for i, f := range presetFields[d.presetType()] {
		values[f.name] = d.inputs[i].Value()
	}

	n := len(schedule.Types)
	d.typeIdx = ((d.typeIdx+delta)%n + n) % n
	d.errText = ""
	d.resetInputs(schedule.Preset{})

	// Carry over fields shared between types, such as the time of day.
	for i, f := range presetFields[d.presetType()] {
		if v := values[f.name]; v != "" {
			d.inputs[i].SetValue(v)
		}
	}
}

// View implements Modal.
func (d *presetDialog) View(theme Theme, width, height int) string {
	styles := theme.Styles()

	var b strings.Builder
	b.WriteString(styles.AccentText.Bold(true).Render(d.title))
	b.WriteString("\n\n")

	typeLine := fmt.Sprintf("‹ %s ›", d.presetType().Label())
	if d.focus == 0 {
		typeLine = styles.Cursor.Render(typeLine)
	}
	b.WriteString(styles.MutedText.Render("Schedule  "))
	b.WriteString(typeLine)
	b.WriteString("\n")

	for i, f := range presetFields[d.presetType()] {
		label := styles.MutedText.Render(padRight(f.label, 28))
		b.WriteString("\n" + label + " " + d.inputs[i].View())
	}

	if d.errText != "" {
		b.WriteString("\n\n" + styles.DangerText.Render(d.errText))
	}
	b.WriteString("\n\n" + styles.FaintText.Render("enter confirm · esc cancel · tab next field · ←/→ type"))

	box := styles.Dialog.Render(b.String())
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}
