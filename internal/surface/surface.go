package surface

import (
	"errors"
	"fmt"

	"github.com/GriffinCanCode/viewbridge/internal/bridge"
	"github.com/GriffinCanCode/viewbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/viewbridge/internal/logging"
	"github.com/GriffinCanCode/viewbridge/internal/shared/id"
	"go.uber.org/zap"
)

var (
	// ErrDisabled is returned by operations that need an enabled view.
	ErrDisabled = errors.New("surface: disabled")
	// ErrInvalidSize is returned by Resize for sizes outside (0, MaxDimension].
	ErrInvalidSize = errors.New("surface: invalid size")
)

// Surface is the host-side component of one view. It is not safe for
// concurrent use: one goroutine configures it and calls Tick once per
// host frame.
type Surface struct {
	host    *bridge.Host
	handle  *bridge.Handle
	cfg     Config
	rewrite URLRewriter
	sink    FrameSink
	baseLog *zap.Logger
	log     *zap.Logger
	metrics *monitoring.Metrics

	// wantEnabled is the requested state while no view exists. Once it
	// does, the mailbox flag is the only enabled state.
	wantEnabled     bool
	transparent     bool
	width           int
	height          int
	inputEnabled    bool
	consumeMouse    bool
	consumeKeyboard bool

	url        string
	pageLoaded bool
	uploaded   uint64
	last       bridge.Snapshot

	mouseX, mouseY int
	mouseSet       bool
	sentX, sentY   int
	sent           bool

	onResult []func(bridge.ScriptResult)
	onEvent  []func(bridge.ScriptEvent)
	onLoad   []func()
}

// New creates a surface. No view exists until Initialize or SetEnabled(true).
func New(host *bridge.Host, cfg Config) *Surface {
	return &Surface{
		host:            host,
		cfg:             cfg,
		rewrite:         identity{},
		sink:            NewTexture(cfg.Width, cfg.Height),
		baseLog:         zap.NewNop(),
		log:             zap.NewNop(),
		wantEnabled:     cfg.Enabled,
		transparent:     cfg.Transparent,
		width:           cfg.Width,
		height:          cfg.Height,
		inputEnabled:    cfg.InputEnabled,
		consumeMouse:    cfg.ConsumeMouse,
		consumeKeyboard: cfg.ConsumeKeyboard,
	}
}

// WithRewriter sets the hook applied to every OpenURL.
func (s *Surface) WithRewriter(r URLRewriter) *Surface {
	if r != nil {
		s.rewrite = r
	}
	return s
}

// WithSink replaces the default Texture.
func (s *Surface) WithSink(sink FrameSink) *Surface {
	if sink != nil {
		sink.Reset(s.width, s.height)
		s.sink = sink
	}
	return s
}

// WithLogger adds logging to the surface.
func (s *Surface) WithLogger(log *zap.Logger) *Surface {
	if log != nil {
		s.baseLog = log
		s.log = log
	}
	return s
}

// WithMetrics adds metrics tracking to the surface.
func (s *Surface) WithMetrics(metrics *monitoring.Metrics) *Surface {
	s.metrics = metrics
	return s
}

// Initialize applies the configured enabled state. An enabled surface
// creates its view and opens the default URL.
func (s *Surface) Initialize() error {
	if err := s.SetEnabled(s.wantEnabled); err != nil {
		return err
	}
	if !s.wantEnabled {
		s.sink.Reset(s.width, s.height)
	}
	return nil
}

// SetEnabled toggles the view. The first enable creates it; disabling keeps
// it alive but stops frames and callbacks. Nothing changes when the view
// refuses the request.
func (s *Surface) SetEnabled(enabled bool) error {
	if s.handle != nil {
		if err := s.handle.SetEnabled(enabled); err != nil {
			return err
		}
		s.wantEnabled = enabled
		return nil
	}

	if !enabled {
		s.wantEnabled = false
		return nil
	}

	h, err := s.host.NewHandle()
	if err != nil {
		return fmt.Errorf("create view: %w", err)
	}
	if err := h.SetEnabled(true); err != nil {
		h.Release()
		return err
	}
	s.handle = h
	s.wantEnabled = true
	s.log = logging.ForView(s.baseLog, h.ID().String())
	return s.reset()
}

// reset pushes the configured geometry and opens the default URL.
func (s *Surface) reset() error {
	if err := s.SetTransparent(s.transparent); err != nil {
		return err
	}
	if err := s.Resize(s.width, s.height); err != nil {
		return err
	}
	return s.OpenURL(s.cfg.DefaultURL)
}

// Enabled reports the view's enabled flag, or the requested state before
// the view exists.
func (s *Surface) Enabled() bool {
	if s.handle != nil {
		return s.handle.Enabled()
	}
	return s.wantEnabled
}

// ready returns nil when the view exists, accepts commands and is enabled.
func (s *Surface) ready() error {
	if s.handle == nil {
		return ErrDisabled
	}
	if err := s.handle.Err(); err != nil {
		return err
	}
	if !s.handle.Enabled() {
		return ErrDisabled
	}
	return nil
}

// SetTransparent switches between a transparent and an opaque background.
func (s *Surface) SetTransparent(transparent bool) error {
	if s.handle != nil {
		if err := s.handle.SetTransparent(transparent); err != nil {
			return err
		}
	}
	s.transparent = transparent
	return nil
}

// Transparent reports the requested background mode.
func (s *Surface) Transparent() bool {
	return s.transparent
}

// Resize changes the view size and reallocates the sink.
func (s *Surface) Resize(width, height int) error {
	if width <= 0 || height <= 0 || width > MaxDimension || height > MaxDimension {
		return fmt.Errorf("%w: %dx%d", ErrInvalidSize, width, height)
	}

	if s.handle != nil {
		if err := s.handle.Resize(width, height); err != nil {
			return err
		}
	}
	s.width, s.height = width, height
	s.sink.Reset(width, height)
	return nil
}

// Size returns the requested size.
func (s *Surface) Size() (int, int) {
	return s.width, s.height
}

// OpenURL navigates through the rewrite hook and resets the load state.
func (s *Surface) OpenURL(raw string) error {
	if err := s.ready(); err != nil {
		return err
	}

	target, err := s.rewrite.Rewrite(raw)
	if err != nil {
		return err
	}
	if target != raw {
		s.log.Info("opening rewritten url", zap.String("url", raw), zap.String("target", target))
	}

	if err := s.handle.Navigate(target); err != nil {
		return err
	}
	s.url = raw
	s.pageLoaded = false
	return nil
}

// URL returns the last URL passed to OpenURL, before rewriting.
func (s *Surface) URL() string {
	return s.url
}

// EvaluateJavaScript queues source and returns the request ID its result
// will carry, or "" when the surface is disabled or the view refuses it.
func (s *Surface) EvaluateJavaScript(source string) id.RequestID {
	if err := s.ready(); err != nil {
		s.log.Debug("script not queued", zap.Error(err))
		return ""
	}

	reqID, err := s.handle.EvaluateScript(source)
	if err != nil {
		s.log.Debug("script not queued", zap.Error(err))
		return ""
	}
	return reqID
}

// ID returns the view ID, or "" before the view exists.
func (s *Surface) ID() id.ViewID {
	if s.handle == nil {
		return ""
	}
	return s.handle.ID()
}

// Sink returns the frame sink.
func (s *Surface) Sink() FrameSink {
	return s.sink
}

// Snapshot returns the state observed by the last Tick.
func (s *Surface) Snapshot() bridge.Snapshot {
	return s.last
}

// PageLoaded reports whether the current navigation has finished.
func (s *Surface) PageLoaded() bool {
	return s.pageLoaded
}

// OnScriptResult subscribes fn to script results.
func (s *Surface) OnScriptResult(fn func(bridge.ScriptResult)) {
	s.onResult = append(s.onResult, fn)
}

// OnScriptEvent subscribes fn to events emitted by content.
func (s *Surface) OnScriptEvent(fn func(bridge.ScriptEvent)) {
	s.onEvent = append(s.onEvent, fn)
}

// OnLoadFinished subscribes fn to load completion, fired once per
// navigation.
func (s *Surface) OnLoadFinished(fn func()) {
	s.onLoad = append(s.onLoad, fn)
}

// Tick runs once per host frame: upload the latest frame, forward the
// mouse position, deliver script output and report load completion.
func (s *Surface) Tick() {
	if s.handle == nil {
		return
	}

	snap := s.handle.Poll()
	s.last = snap

	s.updateTexture(snap)
	s.updateMousePosition()
	s.dispatch(snap)
	s.updateLoadingState(snap)
}

func (s *Surface) updateTexture(snap bridge.Snapshot) {
	if !snap.Enabled || snap.ResizePending || snap.Frame == nil || snap.Frame.Seq == s.uploaded {
		return
	}
	if err := s.sink.Upload(snap.Frame); err != nil {
		s.log.Debug("frame upload skipped", zap.Error(err))
		return
	}
	s.uploaded = snap.Frame.Seq
	s.metrics.IncFramesUploaded()
}

// dispatch delivers results and events. Output drained while the view is
// disabled is dropped.
func (s *Surface) dispatch(snap bridge.Snapshot) {
	if !snap.Enabled {
		return
	}
	for _, r := range snap.Results {
		for _, fn := range s.onResult {
			fn(r)
		}
	}
	for _, e := range snap.Events {
		for _, fn := range s.onEvent {
			fn(e)
		}
	}
}

func (s *Surface) updateLoadingState(snap bridge.Snapshot) {
	if s.pageLoaded || !snap.Loaded {
		return
	}
	s.pageLoaded = true
	for _, fn := range s.onLoad {
		fn()
	}
}

// Destroy releases the view. The surface can be enabled again afterwards,
// which creates a new view.
func (s *Surface) Destroy() {
	if s.handle == nil {
		return
	}
	s.handle.Release()
	s.handle = nil
	s.pageLoaded = false
	s.uploaded = 0
	s.sent = false
}
