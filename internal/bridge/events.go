package bridge

import "github.com/GriffinCanCode/viewbridge/internal/shared/id"

// Modifiers is a bit set of held modifier keys.
type Modifiers uint8

const (
	ModShift Modifiers = 1 << iota
	ModCtrl
	ModAlt
	ModMeta
)

// Has reports whether all bits in m2 are set.
func (m Modifiers) Has(m2 Modifiers) bool { return m&m2 == m2 }

// MouseButton identifies a pointer button.
type MouseButton int

const (
	ButtonNone MouseButton = iota
	ButtonLeft
	ButtonRight
	ButtonMiddle
)

// String returns the DOM-style button name.
func (b MouseButton) String() string {
	switch b {
	case ButtonLeft:
		return "left"
	case ButtonRight:
		return "right"
	case ButtonMiddle:
		return "middle"
	default:
		return "none"
	}
}

// MouseAction is what happened to the pointer.
type MouseAction int

const (
	MouseMove MouseAction = iota
	MousePress
	MouseRelease
	MouseScroll
)

// String returns the action name.
func (a MouseAction) String() string {
	switch a {
	case MousePress:
		return "press"
	case MouseRelease:
		return "release"
	case MouseScroll:
		return "scroll"
	default:
		return "move"
	}
}

// MouseEvent is a resolved pointer event in view pixel coordinates.
// ScrollDelta is only meaningful for MouseScroll; positive scrolls down.
type MouseEvent struct {
	X           int         `json:"x"`
	Y           int         `json:"y"`
	Button      MouseButton `json:"button"`
	Action      MouseAction `json:"action"`
	Modifiers   Modifiers   `json:"modifiers"`
	ScrollDelta float64     `json:"scroll_delta,omitempty"`
}

// KeyAction is the key transition.
type KeyAction int

const (
	KeyPress KeyAction = iota
	KeyRelease
	KeyRepeat
)

// String returns the action name.
func (a KeyAction) String() string {
	switch a {
	case KeyRelease:
		return "release"
	case KeyRepeat:
		return "repeat"
	default:
		return "press"
	}
}

// KeyEvent is an already-resolved key event. Key is the logical key name
// ("Enter", "a", "ArrowLeft"), Code its character code, Text the produced text.
type KeyEvent struct {
	Key       string    `json:"key"`
	Code      rune      `json:"code"`
	Action    KeyAction `json:"action"`
	Text      string    `json:"text,omitempty"`
	Modifiers Modifiers `json:"modifiers"`
}

// ScriptCommand is a queued script evaluation.
type ScriptCommand struct {
	RequestID id.RequestID
	Source    string
}

// ScriptResult answers one ScriptCommand. Error is set when evaluation failed.
type ScriptResult struct {
	RequestID id.RequestID `json:"request_id"`
	Value     string       `json:"value,omitempty"`
	Error     string       `json:"error,omitempty"`
}

// Failed reports whether the result is error-tagged.
func (r ScriptResult) Failed() bool { return r.Error != "" }

// ScriptEvent is a named event emitted by content.
type ScriptEvent struct {
	Name    string `json:"name"`
	Payload string `json:"payload"`
}
