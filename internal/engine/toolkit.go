package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/GriffinCanCode/viewbridge/internal/bridge"
	"github.com/GriffinCanCode/viewbridge/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/viewbridge/internal/shared/id"
	"go.uber.org/zap"
)

var (
	// ErrTooManyViews is returned by NewEngine once MaxViews pages are alive.
	ErrTooManyViews = errors.New("engine: too many views")
	// ErrToolkitClosed is returned by NewEngine after Close.
	ErrToolkitClosed = errors.New("engine: toolkit closed")
)

// completion is a finished background load waiting for ProcessEvents.
type completion struct {
	page   *Page
	token  uint64
	scheme string
	doc    *Document
	err    error
}

// Toolkit hosts every Page. Apart from the completion queue, its state is
// owned by the goroutine that created it.
type Toolkit struct {
	cfg     Config
	log     *zap.Logger
	metrics *monitoring.Metrics
	loader  *Loader

	ctx    context.Context
	cancel context.CancelFunc
	loads  sync.WaitGroup

	pages  map[id.ViewID]*Page
	closed bool

	mu          sync.Mutex
	completions []completion
	pending     atomic.Int64
}

// New creates a toolkit. log and metrics may be nil.
func New(cfg Config, log *zap.Logger, metrics *monitoring.Metrics) *Toolkit {
	if log == nil {
		log = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	log = log.Named("engine")

	ctx, cancel := context.WithCancel(context.Background())
	return &Toolkit{
		cfg:     cfg,
		log:     log,
		metrics: metrics,
		loader:  NewLoader(cfg, log),
		ctx:     ctx,
		cancel:  cancel,
		pages:   make(map[id.ViewID]*Page),
	}
}

// NewFactory returns a bridge.ToolkitFactory building a Toolkit on the
// bridge worker.
func NewFactory(cfg Config, log *zap.Logger, metrics *monitoring.Metrics) bridge.ToolkitFactory {
	return func() (bridge.Toolkit, error) {
		return New(cfg, log, metrics), nil
	}
}

// NewEngine implements bridge.Toolkit.
func (t *Toolkit) NewEngine(viewID id.ViewID) (bridge.Engine, error) {
	if t.closed {
		return nil, ErrToolkitClosed
	}
	if len(t.pages) >= t.cfg.MaxViews {
		return nil, fmt.Errorf("%w: limit %d", ErrTooManyViews, t.cfg.MaxViews)
	}
	if _, exists := t.pages[viewID]; exists {
		return nil, fmt.Errorf("engine: view %s already exists", viewID)
	}

	p := newPage(t, viewID)
	t.pages[viewID] = p
	t.log.Debug("page created", zap.String("view", viewID.String()))
	return p, nil
}

// Page returns the live page for viewID, or nil.
func (t *Toolkit) Page(viewID id.ViewID) *Page {
	return t.pages[viewID]
}

// Pages returns how many pages are alive.
func (t *Toolkit) Pages() int {
	return len(t.pages)
}

// Loader exposes the document loader.
func (t *Toolkit) Loader() *Loader {
	return t.loader
}

// Pending returns how many background loads have not been delivered yet.
func (t *Toolkit) Pending() int {
	return int(t.pending.Load())
}

func (t *Toolkit) startLoad(p *Page, token uint64, tgt target) {
	ctx, cancel := context.WithTimeout(t.ctx, t.cfg.FetchTimeout)
	p.cancelLoad = cancel

	t.pending.Add(1)
	t.loads.Add(1)
	go func() {
		defer t.loads.Done()
		defer cancel()

		doc, err := t.loader.Fetch(ctx, tgt)

		t.mu.Lock()
		t.completions = append(t.completions, completion{page: p, token: token, scheme: tgt.scheme, doc: doc, err: err})
		t.mu.Unlock()
	}()
}

// ProcessEvents implements bridge.Toolkit. It delivers finished loads and
// never blocks on the network.
func (t *Toolkit) ProcessEvents() {
	t.mu.Lock()
	done := t.completions
	t.completions = nil
	t.mu.Unlock()

	for _, c := range done {
		t.pending.Add(-1)
		if t.pages[c.page.id] != c.page {
			continue
		}
		c.page.finishLoad(c.token, c.scheme, c.doc, c.err)
	}
}

func (t *Toolkit) detach(p *Page) {
	if t.pages[p.id] == p {
		delete(t.pages, p.id)
	}
}

// Close implements bridge.Toolkit. It cancels outstanding loads, waits for
// them and closes remaining pages.
func (t *Toolkit) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	t.cancel()
	t.loads.Wait()

	for _, p := range t.pages {
		_ = p.Close()
	}
	t.log.Debug("toolkit closed")
	return nil
}
