package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/GriffinCanCode/viewbridge/internal/bridge"
	"github.com/GriffinCanCode/viewbridge/internal/surface"
	"go.uber.org/zap"
)

// Layer decides when a view sees input: every HUD view is offered an event
// before any scene view.
type Layer string

const (
	LayerHUD   Layer = "hud"
	LayerScene Layer = "scene"
)

// ErrLayer is returned for a layer name other than hud or scene.
var ErrLayer = errors.New("app: unknown layer")

// ParseLayer maps a name onto a Layer. The empty name is the HUD layer.
func ParseLayer(name string) (Layer, error) {
	switch Layer(strings.ToLower(strings.TrimSpace(name))) {
	case "", LayerHUD:
		return LayerHUD, nil
	case LayerScene:
		return LayerScene, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrLayer, name)
	}
}

// route offers an event to each view, HUD views first in spawn order, and
// stops at the first one that consumes it.
func (m *Manager) route(kind string, input func(*surface.Surface) bool) (string, bool) {
	for _, layer := range [][]*view{m.hud, m.scene} {
		for _, v := range layer {
			if input(v.surface) {
				m.log.Debug("input consumed", zap.String("input", kind), zap.String("surface", v.name))
				return v.name, true
			}
		}
	}
	return "", false
}

// SetMousePosition records the pointer on every view. Host goroutine only.
func (m *Manager) SetMousePosition(x, y int) {
	for _, layer := range [][]*view{m.hud, m.scene} {
		for _, v := range layer {
			v.surface.SetMousePosition(x, y)
		}
	}
}

// InputMouseButton routes a button transition and returns the view that
// consumed it, if any. Releases reach every view. Host goroutine only.
func (m *Manager) InputMouseButton(button bridge.MouseButton, event surface.InputEvent, mods bridge.Modifiers) (string, bool) {
	return m.route("mouse", func(s *surface.Surface) bool {
		return s.InputMouseButton(button, event, mods)
	})
}

// InputScroll routes a wheel step. Host goroutine only.
func (m *Manager) InputScroll(delta float64, mods bridge.Modifiers) (string, bool) {
	return m.route("scroll", func(s *surface.Surface) bool {
		return s.InputScroll(delta, mods)
	})
}

// InputKey routes a key transition. Host goroutine only.
func (m *Manager) InputKey(key string, code rune, text string, event surface.InputEvent, mods bridge.Modifiers) (string, bool) {
	return m.route("key", func(s *surface.Surface) bool {
		return s.InputKey(key, code, text, event, mods)
	})
}

func without(views []*view, name string) []*view {
	out := views[:0]
	for _, v := range views {
		if v.name != name {
			out = append(out, v)
		}
	}
	return out
}
