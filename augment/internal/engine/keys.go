package engine

import (
	"log/slog"

	"github.com/hazyhaar/chataug/augment/internal/host"
)

// Action is a keymap action.
type Action string

const (
	ActionFocusInput Action = "focus-input"
	ActionClearInput Action = "clear-input"
	ActionSubmit     Action = "submit"
)

// Binding maps a normalised chord (see host.KeyEvent.Chord) to an action.
type Binding struct {
	Chord          string
	Action         Action
	PreventDefault bool
}

// Keymap is the fixed shortcut table. "mod" is Ctrl or Meta.
var Keymap = []Binding{
	{Chord: "mod+k", Action: ActionFocusInput, PreventDefault: true},
	{Chord: "escape", Action: ActionClearInput},
	{Chord: "mod+enter", Action: ActionSubmit, PreventDefault: true},
}

// Chords lists every bound chord.
func Chords() []string {
	out := make([]string, len(Keymap))
	for i, b := range Keymap {
		out[i] = b.Chord
	}
	return out
}

// PreventChords lists chords whose browser default must be suppressed.
func PreventChords() []string {
	var out []string
	for _, b := range Keymap {
		if b.PreventDefault {
			out = append(out, b.Chord)
		}
	}
	return out
}

// Lookup returns the binding for chord.
func Lookup(chord string) (Binding, bool) {
	for _, b := range Keymap {
		if b.Chord == chord {
			return b, true
		}
	}
	return Binding{}, false
}

// Shortcuts executes keymap actions. A missing target makes the keystroke
// a no-op.
type Shortcuts struct {
	res    *Resolver
	logger *slog.Logger
}

// Handle runs the action bound to ev. ran is false when the chord is
// unbound or its target is absent or out of scope.
func (s *Shortcuts) Handle(ev host.KeyEvent) (b Binding, ran bool) {
	b, ok := Lookup(ev.Chord())
	if !ok {
		return b, false
	}
	switch b.Action {
	case ActionFocusInput:
		ran = s.focusInput()
	case ActionClearInput:
		ran = s.clearInput()
	case ActionSubmit:
		ran = clickIfEnabled(s.res, s.logger)
	}
	return b, ran
}

func (s *Shortcuts) focusInput() bool {
	el, ok := s.res.Resolve(RoleInput)
	if !ok {
		return false
	}
	if err := el.Focus(); err != nil {
		s.logger.Debug("engine: shortcut focus", "error", err)
		return false
	}
	if err := el.SelectText(); err != nil {
		s.logger.Debug("engine: shortcut select", "error", err)
	}
	return true
}

// clearInput only acts when the input field is the active element.
func (s *Shortcuts) clearInput() bool {
	el, ok := s.res.Resolve(RoleInput)
	if !ok {
		return false
	}
	active, err := el.IsActive()
	if err != nil || !active {
		return false
	}
	if err := el.SetValue(""); err != nil {
		s.logger.Debug("engine: shortcut clear", "error", err)
		return false
	}
	if err := el.DispatchInput(); err != nil {
		s.logger.Debug("engine: shortcut clear input event", "error", err)
	}
	if err := el.Blur(); err != nil {
		s.logger.Debug("engine: shortcut blur", "error", err)
	}
	return true
}
