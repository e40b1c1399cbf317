package bridge

import (
	"fmt"

	"github.com/GriffinCanCode/viewbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/viewbridge/internal/shared/id"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Engine is one content-rendering instance. Every method is called on the
// worker goroutine only.
type Engine interface {
	Navigate(url string) error
	Resize(width, height int) error
	SetTransparent(transparent bool) error
	MouseEvent(e MouseEvent) error
	KeyEvent(e KeyEvent) error

	// Evaluate runs source. ok is false when the script produced no value.
	Evaluate(source string) (value string, ok bool, err error)
	// DrainEvents returns and clears the events content emitted so far.
	DrainEvents() []ScriptEvent

	LoadFinished() bool
	Size() (width, height int)
	Transparent() bool

	// Version changes whenever the rendered output would differ.
	Version() uint64
	// Capture renders if needed and returns the engine's own RGBA buffer,
	// valid only until the next call into the engine.
	Capture() (width, height int, pix []byte, err error)

	Close() error
}

// Toolkit is the process-wide engine runtime. It is created, pumped and
// closed on the worker goroutine.
type Toolkit interface {
	NewEngine(viewID id.ViewID) (Engine, error)
	// ProcessEvents runs one round of cooperative work (load completions,
	// timers). It must not block.
	ProcessEvents()
	Close() error
}

// ToolkitFactory builds the Toolkit on the worker goroutine.
type ToolkitFactory func() (Toolkit, error)

// View is the worker-side wrapper around one Engine. Failures of individual
// operations stop here: they are logged, counted and never reach the loop.
type View struct {
	id      id.ViewID
	engine  Engine
	log     *zap.Logger
	metrics *monitoring.Metrics

	limiter  *rate.Limiter
	captured uint64
	hasFrame bool
	seq      uint64
	closed   bool
}

func newView(viewID id.ViewID, engine Engine, captureFPS float64, log *zap.Logger, metrics *monitoring.Metrics) *View {
	limit := rate.Inf
	if captureFPS > 0 {
		limit = rate.Limit(captureFPS)
	}
	return &View{
		id:      viewID,
		engine:  engine,
		log:     log.With(zap.String("view", viewID.String())),
		metrics: metrics,
		limiter: rate.NewLimiter(limit, 1),
	}
}

// guard runs op and converts both errors and panics into a logged failure.
func (v *View) guard(op string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s panicked: %v", op, r)
		}
		if err != nil {
			v.log.Debug("view operation failed", zap.String("op", op), zap.Error(err))
			v.metrics.RecordViewOpFailure(op)
		}
	}()
	return fn()
}

func (v *View) applyNavigation(url string) {
	_ = v.guard("navigate", func() error { return v.engine.Navigate(url) })
}

func (v *View) applyResize(width, height int) {
	_ = v.guard("resize", func() error { return v.engine.Resize(width, height) })
}

func (v *View) applyTransparency(transparent bool) {
	_ = v.guard("transparency", func() error { return v.engine.SetTransparent(transparent) })
}

func (v *View) applyMouseEvent(e MouseEvent) {
	_ = v.guard("mouse", func() error { return v.engine.MouseEvent(e) })
}

func (v *View) applyKeyEvent(e KeyEvent) {
	_ = v.guard("key", func() error { return v.engine.KeyEvent(e) })
}

// evaluateScript returns false when there is nothing to report: the script
// produced no value and did not fail. An empty string is a value.
func (v *View) evaluateScript(requestID id.RequestID, source string) (ScriptResult, bool) {
	var (
		value string
		ok    bool
	)
	err := v.guard("script", func() error {
		var err error
		value, ok, err = v.engine.Evaluate(source)
		return err
	})

	switch {
	case err != nil:
		v.metrics.RecordScript("error")
		return ScriptResult{RequestID: requestID, Error: err.Error()}, true
	case !ok:
		v.metrics.RecordScript("empty")
		return ScriptResult{}, false
	default:
		v.metrics.RecordScript("ok")
		return ScriptResult{RequestID: requestID, Value: value}, true
	}
}

func (v *View) pollEmittedEvents() []ScriptEvent {
	var events []ScriptEvent
	_ = v.guard("events", func() error {
		events = v.engine.DrainEvents()
		return nil
	})
	return events
}

func (v *View) isLoadFinished() bool {
	var loaded bool
	_ = v.guard("load_state", func() error {
		loaded = v.engine.LoadFinished()
		return nil
	})
	return loaded
}

// observe reads the engine's current geometry.
func (v *View) observe() (width, height int, transparent bool) {
	_ = v.guard("observe", func() error {
		width, height = v.engine.Size()
		transparent = v.engine.Transparent()
		return nil
	})
	return width, height, transparent
}

// captureImage returns a new Frame when the output changed since the last
// capture and the capture rate allows it. force skips the rate check, used
// right after geometry changes. The returned Frame owns a fresh buffer.
func (v *View) captureImage(force bool) *Frame {
	var frame *Frame
	_ = v.guard("capture", func() error {
		version := v.engine.Version()
		if v.hasFrame && version == v.captured {
			return nil
		}
		if !force && !v.limiter.Allow() {
			return nil
		}

		width, height, pix, err := v.engine.Capture()
		if err != nil {
			return err
		}

		buf := make([]byte, len(pix))
		copy(buf, pix)

		f, err := NewFrame(width, height, buf, v.seq+1)
		if err != nil {
			return err
		}

		v.seq++
		v.captured = version
		v.hasFrame = true
		frame = f
		return nil
	})
	return frame
}

// destroy closes the engine. Further calls are no-ops.
func (v *View) destroy() {
	if v.closed {
		return
	}
	v.closed = true
	_ = v.guard("close", v.engine.Close)
}
