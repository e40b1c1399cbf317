package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GriffinCanCode/viewbridge/internal/bridge"
	"github.com/GriffinCanCode/viewbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/viewbridge/internal/shared/id"
	"github.com/GriffinCanCode/viewbridge/internal/surface"
	"go.uber.org/zap"
)

var (
	ErrNotRunning = errors.New("app: frame loop not running")
	ErrRunning    = errors.New("app: frame loop already running")
	ErrNotFound   = errors.New("app: view not found")
	ErrExists     = errors.New("app: view already exists")
	ErrName       = errors.New("app: view name required")
)

// Info is a copy of a view's state, refreshed every tick.
type Info struct {
	Name        string    `json:"name"`
	Layer       Layer     `json:"layer"`
	ID          id.ViewID `json:"id"`
	URL         string    `json:"url"`
	Width       int       `json:"width"`
	Height      int       `json:"height"`
	Transparent bool      `json:"transparent"`
	Enabled     bool      `json:"enabled"`
	Loaded      bool      `json:"loaded"`
	FrameSeq    uint64    `json:"frame_seq"`
	CreatedAt   time.Time `json:"created_at"`
}

// Stats contains manager statistics.
type Stats struct {
	TotalViews   int    `json:"total_views"`
	EnabledViews int    `json:"enabled_views"`
	LoadedViews  int    `json:"loaded_views"`
	Ticks        uint64 `json:"ticks"`
	Subscribers  int    `json:"subscribers"`
	Dropped      uint64 `json:"dropped_messages"`
}

type view struct {
	name    string
	surface *surface.Surface
	texture *surface.Texture
	info    Info
}

type command struct {
	fn   func() error
	done chan error
}

// Manager owns the host goroutine: it runs the frame loop and every surface
// lives on it. Other goroutines reach surfaces only through Do; List, Info,
// Frame and Stats read copies and are safe anywhere.
type Manager struct {
	host     *bridge.Host
	base     surface.Config
	rewriter surface.URLRewriter
	bus      *Bus
	log      *zap.Logger
	metrics  *monitoring.Metrics

	frameRate int
	cmds      chan command
	running   atomic.Bool
	stopped   chan struct{}
	ticks     atomic.Uint64

	// views, hud and scene are touched only on the host goroutine; infos
	// mirrors them for readers. hud and scene keep spawn order for input.
	views map[string]*view
	hud   []*view
	scene []*view
	mu    sync.RWMutex
	infos map[string]Info
	sinks map[string]*surface.Texture
}

// NewManager creates a manager for surfaces on host. base is the
// configuration new views start from.
func NewManager(host *bridge.Host, base surface.Config, frameRate int) *Manager {
	if frameRate <= 0 {
		frameRate = 60
	}
	return &Manager{
		host:      host,
		base:      base,
		bus:       NewBus(),
		log:       zap.NewNop(),
		frameRate: frameRate,
		cmds:      make(chan command, 64),
		stopped:   make(chan struct{}),
		views:     make(map[string]*view),
		infos:     make(map[string]Info),
		sinks:     make(map[string]*surface.Texture),
	}
}

// WithRewriter sets the URL rewriter given to every surface.
func (m *Manager) WithRewriter(r surface.URLRewriter) *Manager {
	m.rewriter = r
	return m
}

// WithLogger adds logging to the manager and its surfaces.
func (m *Manager) WithLogger(log *zap.Logger) *Manager {
	if log != nil {
		m.log = log
	}
	return m
}

// WithMetrics adds metrics tracking to the manager and its surfaces.
func (m *Manager) WithMetrics(metrics *monitoring.Metrics) *Manager {
	m.metrics = metrics
	return m
}

// Bus returns the notification bus.
func (m *Manager) Bus() *Bus {
	return m.bus
}

// Base returns the configuration new views start from.
func (m *Manager) Base() surface.Config {
	return m.base
}

// Run ticks every surface at the frame rate until ctx is done, then
// destroys them. Commands queued with Do run between ticks. Run must be
// called on the goroutine that spawned the initial views.
func (m *Manager) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer close(m.stopped)

	ticker := time.NewTicker(time.Second / time.Duration(m.frameRate))
	defer ticker.Stop()

	m.log.Info("frame loop started", zap.Int("frame_rate", m.frameRate), zap.Int("views", len(m.views)))

	for {
		select {
		case <-ctx.Done():
			m.shutdown()
			return nil
		case c := <-m.cmds:
			c.done <- m.exec(c.fn)
		case <-ticker.C:
			m.drain()
			m.tick()
		}
	}
}

// Do runs fn on the host goroutine and returns its error.
func (m *Manager) Do(ctx context.Context, fn func() error) error {
	if !m.running.Load() {
		return ErrNotRunning
	}

	c := command{fn: fn, done: make(chan error, 1)}
	select {
	case m.cmds <- c:
	case <-m.stopped:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-c.done:
		return err
	case <-m.stopped:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) exec(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("app: command panicked: %v", r)
			m.log.Error("command panicked", zap.Any("panic", r))
		}
	}()
	return fn()
}

func (m *Manager) drain() {
	for {
		select {
		case c := <-m.cmds:
			c.done <- m.exec(c.fn)
		default:
			return
		}
	}
}

func (m *Manager) tick() {
	timer := monitoring.NewTimer()

	for _, v := range m.views {
		v.surface.Tick()
		m.refresh(v)
	}

	m.ticks.Add(1)
	m.metrics.RecordHostTick(timer.Elapsed())
}

// refresh copies the surface state into the reader-visible map.
func (m *Manager) refresh(v *view) {
	snap := v.surface.Snapshot()
	w, h := v.surface.Size()

	v.info.ID = v.surface.ID()
	v.info.URL = v.surface.URL()
	v.info.Width, v.info.Height = w, h
	v.info.Transparent = v.surface.Transparent()
	v.info.Enabled = v.surface.Enabled()
	v.info.Loaded = v.surface.PageLoaded()
	if snap.Frame != nil {
		v.info.FrameSeq = snap.Frame.Seq
	}

	m.mu.Lock()
	m.infos[v.name] = v.info
	m.mu.Unlock()
}

// Spawn creates and initializes a surface named name on layer. The empty
// layer is LayerHUD. Host goroutine only.
func (m *Manager) Spawn(name string, layer Layer, cfg surface.Config) (Info, error) {
	if name == "" {
		return Info{}, ErrName
	}
	if _, ok := m.views[name]; ok {
		return Info{}, fmt.Errorf("%w: %s", ErrExists, name)
	}
	layer, err := ParseLayer(string(layer))
	if err != nil {
		return Info{}, err
	}

	tex := surface.NewTexture(cfg.Width, cfg.Height)
	s := surface.New(m.host, cfg).
		WithRewriter(m.rewriter).
		WithSink(tex).
		WithLogger(m.log.With(zap.String("surface", name))).
		WithMetrics(m.metrics)

	m.subscribe(name, s)

	if err := s.Initialize(); err != nil {
		s.Destroy()
		return Info{}, fmt.Errorf("spawn %s: %w", name, err)
	}

	v := &view{name: name, surface: s, texture: tex, info: Info{Name: name, Layer: layer, CreatedAt: time.Now()}}
	m.views[name] = v
	if layer == LayerScene {
		m.scene = append(m.scene, v)
	} else {
		m.hud = append(m.hud, v)
	}
	m.mu.Lock()
	m.sinks[name] = tex
	m.mu.Unlock()
	m.refresh(v)

	m.bus.Publish(Message{Type: MessageSpawned, View: name, ViewID: s.ID()})
	m.log.Info("view spawned", zap.String("surface", name), zap.String("layer", string(layer)), zap.String("view", s.ID().String()))
	return v.info, nil
}

func (m *Manager) subscribe(name string, s *surface.Surface) {
	s.OnScriptResult(func(r bridge.ScriptResult) {
		m.bus.Publish(Message{
			Type: MessageResult, View: name, ViewID: s.ID(),
			RequestID: r.RequestID, Value: r.Value, Error: r.Error,
		})
	})
	s.OnScriptEvent(func(e bridge.ScriptEvent) {
		m.bus.Publish(Message{Type: MessageEvent, View: name, ViewID: s.ID(), Name: e.Name, Payload: e.Payload})
	})
	s.OnLoadFinished(func() {
		m.bus.Publish(Message{Type: MessageLoad, View: name, ViewID: s.ID()})
	})
}

// Get returns the surface named name. Host goroutine only.
func (m *Manager) Get(name string) (*surface.Surface, error) {
	v, ok := m.views[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return v.surface, nil
}

// Close destroys the surface named name. Host goroutine only.
func (m *Manager) Close(name string) error {
	v, ok := m.views[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	viewID := v.surface.ID()
	v.surface.Destroy()
	delete(m.views, name)
	m.hud = without(m.hud, name)
	m.scene = without(m.scene, name)

	m.mu.Lock()
	delete(m.infos, name)
	delete(m.sinks, name)
	m.mu.Unlock()

	m.bus.Publish(Message{Type: MessageClosed, View: name, ViewID: viewID})
	m.log.Info("view closed", zap.String("surface", name))
	return nil
}

func (m *Manager) shutdown() {
	for name := range m.views {
		_ = m.Close(name)
	}
	m.log.Info("frame loop stopped", zap.Uint64("ticks", m.ticks.Load()))
}

// Info returns the last refreshed state of name.
func (m *Manager) Info(name string) (Info, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	info, ok := m.infos[name]
	return info, ok
}

// List returns every view sorted by name.
func (m *Manager) List() []Info {
	m.mu.RLock()
	infos := make([]Info, 0, len(m.infos))
	for _, info := range m.infos {
		infos = append(infos, info)
	}
	m.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos
}

// Frame returns the latest uploaded frame of name, or nil.
func (m *Manager) Frame(name string) (*bridge.Frame, bool) {
	m.mu.RLock()
	tex, ok := m.sinks[name]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return tex.Frame(), true
}

// Ticks returns how many frames the loop has run.
func (m *Manager) Ticks() uint64 {
	return m.ticks.Load()
}

// Stats returns manager statistics.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	var stats Stats
	for _, info := range m.infos {
		stats.TotalViews++
		if info.Enabled {
			stats.EnabledViews++
		}
		if info.Loaded {
			stats.LoadedViews++
		}
	}
	m.mu.RUnlock()

	stats.Ticks = m.ticks.Load()
	stats.Subscribers = m.bus.Subscribers()
	stats.Dropped = m.bus.Dropped()
	return stats
}
