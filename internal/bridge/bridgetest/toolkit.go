// Package bridgetest provides an in-memory Toolkit for tests of code built on
// the bridge package.
package bridgetest

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/GriffinCanCode/viewbridge/internal/bridge"
	"github.com/GriffinCanCode/viewbridge/internal/shared/id"
)

// ErrConstruct is returned by NewEngine while failures are scheduled.
var ErrConstruct = errors.New("bridgetest: engine construction failed")

// Toolkit records every engine it creates.
type Toolkit struct {
	// Hook, when set, is called by every engine at the start of each
	// operation with the view ID and the operation name.
	Hook func(viewID id.ViewID, op string)

	mu       sync.Mutex
	engines  map[id.ViewID]*Engine
	order    []id.ViewID
	failures int
	attempts int

	pumps  atomic.Int64
	closed atomic.Bool
}

// NewToolkit creates an empty fake toolkit.
func NewToolkit() *Toolkit {
	return &Toolkit{engines: make(map[id.ViewID]*Engine)}
}

// Factory returns a ToolkitFactory handing out t.
func (t *Toolkit) Factory() bridge.ToolkitFactory {
	return func() (bridge.Toolkit, error) { return t, nil }
}

// FailConstructions makes the next n NewEngine calls fail.
func (t *Toolkit) FailConstructions(n int) {
	t.mu.Lock()
	t.failures = n
	t.mu.Unlock()
}

// NewEngine implements bridge.Toolkit.
func (t *Toolkit) NewEngine(viewID id.ViewID) (bridge.Engine, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.attempts++
	if t.failures > 0 {
		t.failures--
		return nil, ErrConstruct
	}

	e := &Engine{toolkit: t, id: viewID, width: 64, height: 64}
	t.engines[viewID] = e
	t.order = append(t.order, viewID)
	return e, nil
}

// ProcessEvents implements bridge.Toolkit.
func (t *Toolkit) ProcessEvents() {
	t.pumps.Add(1)
}

// Close implements bridge.Toolkit.
func (t *Toolkit) Close() error {
	t.closed.Store(true)
	return nil
}

// Engine returns the engine built for viewID, or nil.
func (t *Toolkit) Engine(viewID id.ViewID) *Engine {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.engines[viewID]
}

// Created returns how many engines were built.
func (t *Toolkit) Created() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.order)
}

// Attempts returns how many constructions were attempted.
func (t *Toolkit) Attempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}

// Pumps returns how many times ProcessEvents ran.
func (t *Toolkit) Pumps() int64 {
	return t.pumps.Load()
}

// Closed reports whether Close ran.
func (t *Toolkit) Closed() bool {
	return t.closed.Load()
}

// Engine is a fake bridge.Engine that records operations in order.
//
// Evaluate understands a tiny command language:
//
//	""               no value
//	"throw <msg>"    fails with msg
//	"emit <n> <p>"   emits event n with payload p, no value
//	anything else    returns the source itself
type Engine struct {
	toolkit *Toolkit
	id      id.ViewID

	mu          sync.Mutex
	ops         []string
	url         string
	width       int
	height      int
	transparent bool
	loaded      bool
	version     uint64
	events      []bridge.ScriptEvent
	closes      int
}

func (e *Engine) record(op string) {
	if hook := e.toolkit.Hook; hook != nil {
		hook(e.id, strings.SplitN(op, ":", 2)[0])
	}
	e.mu.Lock()
	e.ops = append(e.ops, op)
	e.mu.Unlock()
}

// Navigate implements bridge.Engine. Navigation to "bad:" URLs fails.
func (e *Engine) Navigate(url string) error {
	e.record("navigate:" + url)
	if strings.HasPrefix(url, "bad:") {
		return fmt.Errorf("unsupported url %q", url)
	}

	e.mu.Lock()
	e.url = url
	e.loaded = true
	e.version++
	e.mu.Unlock()
	return nil
}

// Resize implements bridge.Engine.
func (e *Engine) Resize(width, height int) error {
	e.record(fmt.Sprintf("resize:%dx%d", width, height))
	if width < 0 || height < 0 {
		return fmt.Errorf("invalid size %dx%d", width, height)
	}

	e.mu.Lock()
	e.width, e.height = width, height
	e.version++
	e.mu.Unlock()
	return nil
}

// SetTransparent implements bridge.Engine.
func (e *Engine) SetTransparent(transparent bool) error {
	e.record(fmt.Sprintf("transparent:%t", transparent))

	e.mu.Lock()
	e.transparent = transparent
	e.version++
	e.mu.Unlock()
	return nil
}

// MouseEvent implements bridge.Engine.
func (e *Engine) MouseEvent(ev bridge.MouseEvent) error {
	e.record(fmt.Sprintf("mouse:%s@%d,%d", ev.Action, ev.X, ev.Y))
	return nil
}

// KeyEvent implements bridge.Engine.
func (e *Engine) KeyEvent(ev bridge.KeyEvent) error {
	e.record(fmt.Sprintf("key:%s:%s", ev.Action, ev.Key))
	return nil
}

// Evaluate implements bridge.Engine.
func (e *Engine) Evaluate(source string) (string, bool, error) {
	e.record("script:" + source)

	switch {
	case source == "":
		return "", false, nil
	case source == "''":
		return "", true, nil
	case strings.HasPrefix(source, "throw "):
		return "", false, errors.New(strings.TrimPrefix(source, "throw "))
	case strings.HasPrefix(source, "emit "):
		parts := strings.SplitN(strings.TrimPrefix(source, "emit "), " ", 2)
		ev := bridge.ScriptEvent{Name: parts[0]}
		if len(parts) == 2 {
			ev.Payload = parts[1]
		}
		e.mu.Lock()
		e.events = append(e.events, ev)
		e.mu.Unlock()
		return "", false, nil
	default:
		return source, true, nil
	}
}

// DrainEvents implements bridge.Engine.
func (e *Engine) DrainEvents() []bridge.ScriptEvent {
	e.mu.Lock()
	defer e.mu.Unlock()

	events := e.events
	e.events = nil
	return events
}

// LoadFinished implements bridge.Engine.
func (e *Engine) LoadFinished() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loaded
}

// Size implements bridge.Engine.
func (e *Engine) Size() (int, int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.width, e.height
}

// Transparent implements bridge.Engine.
func (e *Engine) Transparent() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.transparent
}

// Version implements bridge.Engine.
func (e *Engine) Version() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.version
}

// Capture implements bridge.Engine. Every byte holds the low byte of the
// current version.
func (e *Engine) Capture() (int, int, []byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pix := make([]byte, e.width*e.height*bridge.BytesPerPixel)
	for i := range pix {
		pix[i] = byte(e.version)
	}
	return e.width, e.height, pix, nil
}

// Close implements bridge.Engine.
func (e *Engine) Close() error {
	e.record("close")

	e.mu.Lock()
	e.closes++
	e.mu.Unlock()
	return nil
}

// Ops returns the recorded operations, optionally filtered by prefix.
func (e *Engine) Ops(prefix string) []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []string
	for _, op := range e.ops {
		if strings.HasPrefix(op, prefix) {
			out = append(out, op)
		}
	}
	return out
}

// Closes returns how many times Close ran.
func (e *Engine) Closes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closes
}

// URL returns the last successfully navigated URL.
func (e *Engine) URL() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.url
}
