package surface

import (
	"github.com/GriffinCanCode/viewbridge/internal/bridge"
	"go.uber.org/zap"
)

// InputEvent is the host's key or button transition.
type InputEvent int

const (
	Pressed InputEvent = iota
	Released
	Repeat
)

// modifierKeys are read from the modifier state of other events and never
// forwarded on their own.
var modifierKeys = map[string]bool{
	"Shift": true, "LeftShift": true, "RightShift": true,
	"Control": true, "LeftControl": true, "RightControl": true,
	"Alt": true, "LeftAlt": true, "RightAlt": true,
	"Meta": true, "LeftCommand": true, "RightCommand": true,
}

// SetInputEnabled gates every input method.
func (s *Surface) SetInputEnabled(enabled bool) {
	s.inputEnabled = enabled
}

// InputEnabled reports the input gate.
func (s *Surface) InputEnabled() bool {
	return s.inputEnabled
}

// SetConsumeMouseInput controls whether handled mouse input is reported as
// consumed.
func (s *Surface) SetConsumeMouseInput(consume bool) {
	s.consumeMouse = consume
}

// SetConsumeKeyboardInput controls whether handled key input is reported as
// consumed.
func (s *Surface) SetConsumeKeyboardInput(consume bool) {
	s.consumeKeyboard = consume
}

func (s *Surface) acceptsInput() bool {
	return s.inputEnabled && s.ready() == nil
}

// forwardMouse queues e and reports whether the view took it.
func (s *Surface) forwardMouse(e bridge.MouseEvent) bool {
	if err := s.handle.MouseEvent(e); err != nil {
		s.log.Debug("mouse event refused", zap.Error(err))
		return false
	}
	return true
}

// SetMousePosition records the pointer in view pixels. The move is forwarded
// on the next Tick if the position changed.
func (s *Surface) SetMousePosition(x, y int) {
	s.mouseX, s.mouseY = x, y
	s.mouseSet = true
}

// MousePosition returns the last recorded pointer position.
func (s *Surface) MousePosition() (int, int) {
	return s.mouseX, s.mouseY
}

func (s *Surface) updateMousePosition() {
	if !s.acceptsInput() || !s.mouseSet {
		return
	}
	if s.sent && s.sentX == s.mouseX && s.sentY == s.mouseY {
		return
	}
	if !s.forwardMouse(bridge.MouseEvent{X: s.mouseX, Y: s.mouseY, Action: bridge.MouseMove}) {
		return
	}
	s.sentX, s.sentY, s.sent = s.mouseX, s.mouseY, true
}

// InputMouseButton forwards a button transition at the current position.
// It reports whether the host should treat the input as consumed; releases
// never are, so cancellations still reach the host.
func (s *Surface) InputMouseButton(button bridge.MouseButton, event InputEvent, mods bridge.Modifiers) bool {
	if !s.acceptsInput() {
		return false
	}

	action := bridge.MousePress
	switch event {
	case Released:
		action = bridge.MouseRelease
	case Repeat:
		return s.consumeMouse
	}

	if !s.forwardMouse(bridge.MouseEvent{
		X: s.mouseX, Y: s.mouseY, Button: button, Action: action, Modifiers: mods,
	}) {
		return false
	}
	if event == Released {
		return false
	}
	return s.consumeMouse
}

// InputScroll forwards a wheel step at the current position. Positive
// deltas scroll down.
func (s *Surface) InputScroll(delta float64, mods bridge.Modifiers) bool {
	if !s.acceptsInput() || delta == 0 {
		return false
	}

	if !s.forwardMouse(bridge.MouseEvent{
		X: s.mouseX, Y: s.mouseY, Action: bridge.MouseScroll, ScrollDelta: delta, Modifiers: mods,
	}) {
		return false
	}
	return s.consumeMouse
}

// InputKey forwards a key transition. Modifier keys alone are ignored; their
// state travels with other events.
func (s *Surface) InputKey(key string, code rune, text string, event InputEvent, mods bridge.Modifiers) bool {
	if !s.acceptsInput() || key == "" || modifierKeys[key] {
		return false
	}

	action := bridge.KeyPress
	switch event {
	case Released:
		action = bridge.KeyRelease
		text = ""
	case Repeat:
		action = bridge.KeyRepeat
	}

	if err := s.handle.KeyEvent(bridge.KeyEvent{Key: key, Code: code, Action: action, Text: text, Modifiers: mods}); err != nil {
		s.log.Debug("key event refused", zap.Error(err))
		return false
	}
	if event == Released {
		return false
	}
	return s.consumeKeyboard
}
