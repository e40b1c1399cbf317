package inspector

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/GriffinCanCode/viewbridge/internal/app"
	"github.com/GriffinCanCode/viewbridge/internal/bridge"
	"github.com/GriffinCanCode/viewbridge/internal/surface"
	"github.com/gin-gonic/gin"
)

var errBadInput = errors.New("inspector: bad input")

type mouseRequest struct {
	X         int      `json:"x"`
	Y         int      `json:"y"`
	Button    string   `json:"button"`
	Action    string   `json:"action" binding:"required"`
	Delta     float64  `json:"delta"`
	Modifiers []string `json:"modifiers"`
}

type keyRequest struct {
	Key       string   `json:"key" binding:"required"`
	Text      string   `json:"text"`
	Action    string   `json:"action"`
	Modifiers []string `json:"modifiers"`
}

var buttons = map[string]bridge.MouseButton{
	"":       bridge.ButtonLeft,
	"left":   bridge.ButtonLeft,
	"right":  bridge.ButtonRight,
	"middle": bridge.ButtonMiddle,
}

var modifierNames = map[string]bridge.Modifiers{
	"shift": bridge.ModShift,
	"ctrl":  bridge.ModCtrl,
	"alt":   bridge.ModAlt,
	"meta":  bridge.ModMeta,
}

var inputEvents = map[string]surface.InputEvent{
	"":        surface.Pressed,
	"press":   surface.Pressed,
	"release": surface.Released,
	"repeat":  surface.Repeat,
}

func parseModifiers(names []string) (bridge.Modifiers, error) {
	var mods bridge.Modifiers
	for _, name := range names {
		m, ok := modifierNames[strings.ToLower(name)]
		if !ok {
			return 0, fmt.Errorf("%w: unknown modifier %q", errBadInput, name)
		}
		mods |= m
	}
	return mods, nil
}

// inputTarget receives parsed input: one surface, or every view through the
// manager's routing.
type inputTarget interface {
	SetMousePosition(x, y int)
	InputMouseButton(button bridge.MouseButton, event surface.InputEvent, mods bridge.Modifiers) bool
	InputScroll(delta float64, mods bridge.Modifiers) bool
	InputKey(key string, code rune, text string, event surface.InputEvent, mods bridge.Modifiers) bool
}

// routed adapts the manager to inputTarget and remembers which view
// consumed the last event.
type routed struct {
	manager  *app.Manager
	consumer string
}

func (r *routed) SetMousePosition(x, y int) { r.manager.SetMousePosition(x, y) }

func (r *routed) keep(name string, ok bool) bool {
	if ok {
		r.consumer = name
	}
	return ok
}

func (r *routed) InputMouseButton(button bridge.MouseButton, event surface.InputEvent, mods bridge.Modifiers) bool {
	return r.keep(r.manager.InputMouseButton(button, event, mods))
}

func (r *routed) InputScroll(delta float64, mods bridge.Modifiers) bool {
	return r.keep(r.manager.InputScroll(delta, mods))
}

func (r *routed) InputKey(key string, code rune, text string, event surface.InputEvent, mods bridge.Modifiers) bool {
	return r.keep(r.manager.InputKey(key, code, text, event, mods))
}

type mouseInput struct {
	req    mouseRequest
	button bridge.MouseButton
	mods   bridge.Modifiers
}

func parseMouse(c *gin.Context) (mouseInput, error) {
	var in mouseInput
	if err := c.ShouldBindJSON(&in.req); err != nil {
		return in, fmt.Errorf("%w: %v", errBadInput, err)
	}

	button, ok := buttons[strings.ToLower(in.req.Button)]
	if !ok {
		return in, fmt.Errorf("%w: unknown button %q", errBadInput, in.req.Button)
	}
	mods, err := parseModifiers(in.req.Modifiers)
	if err != nil {
		return in, err
	}
	in.button, in.mods = button, mods
	return in, nil
}

// apply moves the pointer and then presses, releases, clicks or scrolls.
func (in mouseInput) apply(t inputTarget) (bool, error) {
	t.SetMousePosition(in.req.X, in.req.Y)

	switch strings.ToLower(in.req.Action) {
	case "move":
		return false, nil
	case "press":
		return t.InputMouseButton(in.button, surface.Pressed, in.mods), nil
	case "release":
		return t.InputMouseButton(in.button, surface.Released, in.mods), nil
	case "click":
		consumed := t.InputMouseButton(in.button, surface.Pressed, in.mods)
		t.InputMouseButton(in.button, surface.Released, in.mods)
		return consumed, nil
	case "scroll":
		return t.InputScroll(in.req.Delta, in.mods), nil
	default:
		return false, fmt.Errorf("%w: unknown action %q", errBadInput, in.req.Action)
	}
}

type keyInput struct {
	key   string
	code  rune
	text  string
	event surface.InputEvent
	mods  bridge.Modifiers
}

func parseKey(c *gin.Context) (keyInput, error) {
	var req keyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return keyInput{}, fmt.Errorf("%w: %v", errBadInput, err)
	}

	event, ok := inputEvents[strings.ToLower(req.Action)]
	if !ok {
		return keyInput{}, fmt.Errorf("%w: unknown action %q", errBadInput, req.Action)
	}
	mods, err := parseModifiers(req.Modifiers)
	if err != nil {
		return keyInput{}, err
	}

	text := req.Text
	if text == "" && len([]rune(req.Key)) == 1 {
		text = req.Key
	}
	var code rune
	if r := []rune(text); len(r) == 1 {
		code = r[0]
	}
	return keyInput{key: req.Key, code: code, text: text, event: event, mods: mods}, nil
}

func (in keyInput) apply(t inputTarget) bool {
	return t.InputKey(in.key, in.code, in.text, in.event, in.mods)
}

func inputEnabled(s *surface.Surface) error {
	if !s.InputEnabled() {
		return fmt.Errorf("%w: input disabled", surface.ErrDisabled)
	}
	return nil
}

// Mouse moves the pointer and optionally presses, releases or scrolls at
// the new position. The response reports whether the surface consumed it.
func (h *Handlers) Mouse(c *gin.Context) {
	in, err := parseMouse(c)
	if err != nil {
		fail(c, err)
		return
	}

	var consumed bool
	err = h.onSurface(c, func(s *surface.Surface) error {
		if err := inputEnabled(s); err != nil {
			return err
		}
		var err error
		consumed, err = in.apply(s)
		return err
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"consumed": consumed})
}

// Key sends one key transition.
func (h *Handlers) Key(c *gin.Context) {
	in, err := parseKey(c)
	if err != nil {
		fail(c, err)
		return
	}

	var consumed bool
	err = h.onSurface(c, func(s *surface.Surface) error {
		if err := inputEnabled(s); err != nil {
			return err
		}
		consumed = in.apply(s)
		return nil
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"consumed": consumed})
}

// RouteMouse offers mouse input to every view, HUD layer first, and reports
// the view that consumed it.
func (h *Handlers) RouteMouse(c *gin.Context) {
	in, err := parseMouse(c)
	if err != nil {
		fail(c, err)
		return
	}

	r := &routed{manager: h.manager}
	var consumed bool
	err = h.manager.Do(c.Request.Context(), func() error {
		var err error
		consumed, err = in.apply(r)
		return err
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"consumed": consumed, "view": r.consumer})
}

// RouteKey offers a key transition to every view, HUD layer first.
func (h *Handlers) RouteKey(c *gin.Context) {
	in, err := parseKey(c)
	if err != nil {
		fail(c, err)
		return
	}

	r := &routed{manager: h.manager}
	var consumed bool
	err = h.manager.Do(c.Request.Context(), func() error {
		consumed = in.apply(r)
		return nil
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"consumed": consumed, "view": r.consumer})
}
