package engine

import (
	"github.com/GriffinCanCode/viewbridge/internal/bridge"
)

// MouseEvent dispatches the DOM events a pointer action resolves to.
//
//	move            mousemove
//	press           mousedown, contextmenu for the right button
//	release         mouseup, plus click when it ends a left press
//	scroll          wheel
func (p *Page) MouseEvent(e bridge.MouseEvent) error {
	if p.closed {
		return ErrPageClosed
	}

	var types []string
	switch e.Action {
	case bridge.MouseMove:
		types = []string{"mousemove"}
	case bridge.MousePress:
		p.pressed = e.Button
		if e.Button == bridge.ButtonRight {
			types = []string{"contextmenu"}
		} else {
			types = []string{"mousedown"}
		}
	case bridge.MouseRelease:
		types = []string{"mouseup"}
		if e.Button == bridge.ButtonLeft && p.pressed == bridge.ButtonLeft {
			types = append(types, "click")
		}
		p.pressed = bridge.ButtonNone
	case bridge.MouseScroll:
		types = []string{"wheel"}
	}

	for _, typ := range types {
		p.script.dispatch(typ, mouseEventObject(e))
	}
	return nil
}

// mouseEventObject mirrors the DOM MouseEvent fields content reads.
func mouseEventObject(e bridge.MouseEvent) map[string]interface{} {
	ev := map[string]interface{}{
		"x":       e.X,
		"y":       e.Y,
		"clientX": e.X,
		"clientY": e.Y,
		"button":  domButton(e.Button),
	}
	addModifiers(ev, e.Modifiers)
	if e.Action == bridge.MouseScroll {
		ev["deltaX"] = 0
		ev["deltaY"] = e.ScrollDelta
		ev["deltaMode"] = 0
	}
	return ev
}

func domButton(b bridge.MouseButton) int {
	switch b {
	case bridge.ButtonMiddle:
		return 1
	case bridge.ButtonRight:
		return 2
	default:
		return 0
	}
}

// KeyEvent dispatches keydown, keypress and keyup. Text-producing presses
// and repeats also fire keypress.
func (p *Page) KeyEvent(e bridge.KeyEvent) error {
	if p.closed {
		return ErrPageClosed
	}

	switch e.Action {
	case bridge.KeyPress, bridge.KeyRepeat:
		p.script.dispatch("keydown", keyEventObject(e))
		if e.Text != "" {
			p.script.dispatch("keypress", keyEventObject(e))
		}
	case bridge.KeyRelease:
		p.script.dispatch("keyup", keyEventObject(e))
	}
	return nil
}

func keyEventObject(e bridge.KeyEvent) map[string]interface{} {
	key := e.Key
	if key == "" {
		key = e.Text
	}
	ev := map[string]interface{}{
		"key":    key,
		"code":   int(e.Code),
		"text":   e.Text,
		"repeat": e.Action == bridge.KeyRepeat,
	}
	addModifiers(ev, e.Modifiers)
	return ev
}

func addModifiers(ev map[string]interface{}, m bridge.Modifiers) {
	ev["shiftKey"] = m.Has(bridge.ModShift)
	ev["ctrlKey"] = m.Has(bridge.ModCtrl)
	ev["altKey"] = m.Has(bridge.ModAlt)
	ev["metaKey"] = m.Has(bridge.ModMeta)
}
