package refhints

import "github.com/lexcodex/refhints/framework/editor"

// Signal is an activation reason delivered to Controller.Notify.
type Signal int

const (
	SignalReparsed Signal = iota
	SignalEdited
	SignalExcerptsEdited
	SignalBufferEdited
	SignalSaved
	SignalHintsToggled
	SignalActiveViewChanged
	SignalSettingsChanged
)

func (s Signal) String() string {
	switch s {
	case SignalReparsed:
		return "reparsed"
	case SignalEdited:
		return "edited"
	case SignalExcerptsEdited:
		return "excerpts_edited"
	case SignalBufferEdited:
		return "buffer_edited"
	case SignalSaved:
		return "saved"
	case SignalHintsToggled:
		return "hints_toggled"
	case SignalActiveViewChanged:
		return "active_view_changed"
	case SignalSettingsChanged:
		return "settings_changed"
	default:
		return "unknown"
	}
}

// Event is one activation. HintsEnabled is set only for SignalHintsToggled.
type Event struct {
	Signal       Signal
	HintsEnabled *bool
}

// Toggled builds the event for an inlay-hint toggle.
func Toggled(enabled bool) Event {
	return Event{Signal: SignalHintsToggled, HintsEnabled: &enabled}
}

// EventFromEditor maps an editor event to an activation event. ok is false
// for editor events that are not activation signals.
func EventFromEditor(ev editor.Event) (Event, bool) {
	switch ev.Kind {
	case editor.EventReparsed:
		return Event{Signal: SignalReparsed}, true
	case editor.EventEdited:
		return Event{Signal: SignalEdited}, true
	case editor.EventExcerptsEdited:
		return Event{Signal: SignalExcerptsEdited}, true
	case editor.EventBufferEdited:
		return Event{Signal: SignalBufferEdited}, true
	case editor.EventSaved:
		return Event{Signal: SignalSaved}, true
	case editor.EventInlayHintsToggled:
		return Toggled(ev.Enabled), true
	default:
		return Event{}, false
	}
}
