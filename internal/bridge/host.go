package bridge

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/viewbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/viewbridge/internal/shared/id"
	"go.uber.org/zap"
)

const (
	stateIdle int32 = iota
	stateRunning
	stateStopped
)

// DefaultIdleInterval bounds how long the worker sleeps between iterations.
const DefaultIdleInterval = 8 * time.Millisecond

// Options configures a Host.
type Options struct {
	// Toolkit builds the engine runtime on the worker goroutine. Required.
	Toolkit ToolkitFactory
	// IdleInterval is the longest pause between two iterations.
	IdleInterval time.Duration
	// CaptureFPS caps frame captures per view; zero or less means uncapped.
	CaptureFPS float64
	Logger     *zap.Logger
	Metrics    *monitoring.Metrics
}

// Host owns the worker goroutine, the registry and the service loop.
type Host struct {
	opts    Options
	log     *zap.Logger
	metrics *monitoring.Metrics

	state    atomic.Int32
	registry registry
	toolkit  Toolkit // worker only

	wake chan struct{}
	quit chan struct{}
	done chan struct{}

	syncMu      sync.Mutex
	syncPending []chan struct{}
	iterations  atomic.Uint64
}

// NewHost creates a stopped Host. Call Start before creating handles.
func NewHost(opts Options) *Host {
	if opts.IdleInterval <= 0 {
		opts.IdleInterval = DefaultIdleInterval
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Host{
		opts:    opts,
		log:     opts.Logger.Named("worker"),
		metrics: opts.Metrics,
		wake:    make(chan struct{}, 1),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start launches the worker and builds the toolkit on it. It returns once
// the toolkit is ready or failed to build.
func (h *Host) Start() error {
	if h.opts.Toolkit == nil {
		return errors.New("bridge: no toolkit factory")
	}
	if !h.state.CompareAndSwap(stateIdle, stateRunning) {
		if h.state.Load() == stateStopped {
			return ErrStopped
		}
		return ErrAlreadyStarted
	}

	ready := make(chan error, 1)
	go h.run(ready)

	if err := <-ready; err != nil {
		h.state.Store(stateStopped)
		<-h.done
		return fmt.Errorf("start toolkit: %w", err)
	}

	h.log.Info("worker started", zap.Duration("idle_interval", h.opts.IdleInterval))
	return nil
}

// Stop asks the worker to exit at the end of its current iteration, waits
// for it, and leaves every remaining view destroyed.
func (h *Host) Stop() error {
	if !h.state.CompareAndSwap(stateRunning, stateStopped) {
		if h.state.Load() == stateIdle {
			return ErrNotStarted
		}
		return ErrStopped
	}

	close(h.quit)
	<-h.done

	h.log.Info("worker stopped", zap.Uint64("iterations", h.iterations.Load()))
	return nil
}

// Running reports whether Start succeeded and Stop has not been called.
func (h *Host) Running() bool {
	return h.state.Load() == stateRunning
}

func (h *Host) checkRunning() error {
	switch h.state.Load() {
	case stateIdle:
		return ErrNotStarted
	case stateStopped:
		return ErrStopped
	default:
		return nil
	}
}

// NewHandle registers a new view. The worker builds it on its next iteration.
func (h *Host) NewHandle() (*Handle, error) {
	if err := h.checkRunning(); err != nil {
		return nil, err
	}

	mb := newMailbox(id.NewViewID(), h.signal)
	mb.retain() // handle reference
	h.registry.add(mb)
	h.signal()

	return &Handle{host: h, mb: mb}, nil
}

// Unregister marks the view for deletion. It reports whether the view was
// registered. The view is destroyed after the worker's current pass.
func (h *Host) Unregister(viewID id.ViewID) bool {
	ok := h.registry.mark(viewID)
	if ok {
		h.signal()
	}
	return ok
}

// Views lists the registered view IDs in registration order.
func (h *Host) Views() []id.ViewID {
	return h.registry.ids()
}

// Iterations returns the number of completed worker iterations.
func (h *Host) Iterations() uint64 {
	return h.iterations.Load()
}

// Sync blocks until one full worker iteration that began after the call has
// completed.
func (h *Host) Sync(ctx context.Context) error {
	if err := h.checkRunning(); err != nil {
		return err
	}

	ch := make(chan struct{})
	h.syncMu.Lock()
	h.syncPending = append(h.syncPending, ch)
	h.syncMu.Unlock()
	h.signal()

	select {
	case <-ch:
		return nil
	case <-h.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// signal wakes the worker without blocking.
func (h *Host) signal() {
	select {
	case h.wake <- struct{}{}:
	default:
	}
}

func (h *Host) run(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(h.done)

	toolkit, err := h.opts.Toolkit()
	if err != nil {
		ready <- err
		return
	}
	h.toolkit = toolkit
	ready <- nil

	timer := time.NewTimer(h.opts.IdleInterval)
	defer timer.Stop()

	for {
		select {
		case <-h.quit:
			h.shutdown()
			return
		default:
		}

		h.iterate()

		timer.Reset(h.opts.IdleInterval)
		select {
		case <-h.quit:
		case <-h.wake:
		case <-timer.C:
		}
	}
}

// iterate runs one pass of the service loop.
func (h *Host) iterate() {
	start := time.Now()

	h.syncMu.Lock()
	waiters := h.syncPending
	h.syncPending = nil
	h.syncMu.Unlock()

	n := h.registry.len()
	for i := 0; i < n; i++ {
		h.service(h.registry.at(i))
	}

	h.toolkit.ProcessEvents()

	removed, before, after := h.registry.sweep()
	for _, e := range removed {
		h.teardown(e)
	}
	if before != after {
		h.log.Info("registered views changed", zap.Int("from", before), zap.Int("to", after))
	}

	h.iterations.Add(1)
	h.metrics.SetViewsRegistered(after)
	h.metrics.RecordIteration(time.Since(start))

	for _, ch := range waiters {
		close(ch)
	}
}

// service drains one mailbox, applies its commands and publishes results.
func (h *Host) service(e *entry) {
	mb := e.mb

	if e.view == nil {
		engine, err := h.toolkit.NewEngine(mb.id)
		if err != nil {
			// Retried next iteration until the mailbox is marked.
			h.log.Warn("view construction failed", zap.String("view", mb.id.String()), zap.Error(err))
			h.metrics.IncConstructFailures()
			return
		}
		e.view = newView(mb.id, engine, h.opts.CaptureFPS, h.log, h.metrics)
		mb.markConstructed()
		h.metrics.IncViewsCreated()
		h.log.Debug("view constructed", zap.String("view", mb.id.String()))
	}

	cmds := mb.take()
	v := e.view

	if cmds.navigate {
		v.applyNavigation(cmds.url)
	}
	if cmds.resize {
		v.applyResize(cmds.width, cmds.height)
	}
	if cmds.setTransparent {
		v.applyTransparency(cmds.transparent)
	}
	for _, ev := range cmds.mouse {
		v.applyMouseEvent(ev)
	}
	for _, ev := range cmds.keys {
		v.applyKeyEvent(ev)
	}

	var results []ScriptResult
	for _, cmd := range cmds.scripts {
		if res, ok := v.evaluateScript(cmd.RequestID, cmd.Source); ok {
			results = append(results, res)
		}
	}

	events := v.pollEmittedEvents()
	width, height, transparent := v.observe()

	var frame *Frame
	if cmds.enabled && !cmds.marked {
		frame = v.captureImage(cmds.resize || cmds.setTransparent)
	}

	mb.publish(update{
		width:       width,
		height:      height,
		transparent: transparent,
		loaded:      v.isLoadFinished(),
		navSeq:      cmds.navSeq,
		geomSeq:     cmds.geomSeq,
		results:     results,
		events:      events,
		frame:       frame,
	})

	if frame != nil {
		h.metrics.IncFramesCaptured()
	}
	h.metrics.AddEventsEmitted(len(events))
}

// teardown destroys the view and drops the registry's mailbox reference.
func (h *Host) teardown(e *entry) {
	if e.view != nil {
		e.view.destroy()
		e.view = nil
		h.metrics.IncViewsDestroyed()
	}
	e.mb.release()
	h.log.Debug("view destroyed", zap.String("view", e.mb.id.String()))
}

// shutdown runs on the worker after the last iteration.
func (h *Host) shutdown() {
	remaining := h.registry.drain()
	for _, e := range remaining {
		e.mb.markForDeletion()
		h.teardown(e)
	}
	if len(remaining) > 0 {
		h.log.Info("destroyed remaining views", zap.Int("count", len(remaining)))
	}
	h.metrics.SetViewsRegistered(0)

	if err := h.toolkit.Close(); err != nil {
		h.log.Warn("toolkit close failed", zap.Error(err))
	}
}
