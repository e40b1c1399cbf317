package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/GriffinCanCode/viewbridge/internal/bridge"
	"github.com/GriffinCanCode/viewbridge/internal/shared/id"
	"go.uber.org/zap"
)

// ErrPageClosed is returned by every operation after Close.
var ErrPageClosed = errors.New("engine: page closed")

// Page is one view's document, script context and raster. It implements
// bridge.Engine and is only touched by the toolkit's goroutine.
type Page struct {
	toolkit *Toolkit
	id      id.ViewID
	log     *zap.Logger

	width       int
	height      int
	transparent bool

	url     string
	doc     *Document
	script  *scriptContext
	token   uint64
	loaded  bool
	loadErr error
	version uint64
	pressed bridge.MouseButton

	events     []bridge.ScriptEvent
	cancelLoad context.CancelFunc
	raster     raster
	closed     bool
}

func newPage(t *Toolkit, viewID id.ViewID) *Page {
	p := &Page{
		toolkit: t,
		id:      viewID,
		log:     t.log.With(zap.String("view", viewID.String())),
		width:   t.cfg.DefaultWidth,
		height:  t.cfg.DefaultHeight,
		url:     "about:blank",
	}
	p.attach(newBlankDocument(p.url))
	return p
}

func (p *Page) bump() {
	p.version++
}

// attach installs doc and a fresh script context for it.
func (p *Page) attach(doc *Document) {
	doc.onMutate = p.bump
	p.doc = doc
	p.script = newScriptContext(p.toolkit.cfg, p.log, p.queueEvent)
	p.script.bindDocument(doc)
	p.bump()
}

func (p *Page) queueEvent(e bridge.ScriptEvent) {
	p.events = append(p.events, e)
}

// Navigate starts loading rawURL. Synchronous schemes finish before it
// returns; the rest complete in a later ProcessEvents. A load error is also
// returned for synchronous schemes, but the page still finishes with an
// error document.
func (p *Page) Navigate(rawURL string) error {
	if p.closed {
		return ErrPageClosed
	}

	p.stopLoad()
	p.token++
	p.url = rawURL
	p.loaded = false
	p.loadErr = nil
	p.bump()

	t, err := classify(rawURL)
	if err != nil {
		p.finishLoad(p.token, t.scheme, nil, err)
		return err
	}
	if t.mode == loadSync {
		doc, err := p.toolkit.loader.LoadSync(t)
		p.finishLoad(p.token, t.scheme, doc, err)
		return err
	}

	p.toolkit.startLoad(p, p.token, t)
	return nil
}

func (p *Page) stopLoad() {
	if p.cancelLoad != nil {
		p.cancelLoad()
		p.cancelLoad = nil
	}
}

// finishLoad installs the outcome of load token. Stale tokens are ignored.
func (p *Page) finishLoad(token uint64, scheme string, doc *Document, err error) {
	if p.closed || token != p.token {
		return
	}
	p.cancelLoad = nil

	status := "ok"
	if err != nil {
		status = "error"
		p.loadErr = err
		doc = newErrorDocument(p.url, err)
		p.log.Debug("page load failed", zap.String("url", p.url), zap.Error(err))
	}
	p.toolkit.metrics.RecordPageLoad(schemeLabel(scheme), status)

	p.attach(doc)
	for _, src := range doc.InlineScripts() {
		if _, err := p.script.run(src); err != nil {
			p.script.consoleError(fmt.Sprintf("inline script: %v", err))
		}
	}
	p.loaded = true
	p.script.dispatch("DOMContentLoaded", map[string]interface{}{})
	p.script.dispatch("load", map[string]interface{}{})
}

func schemeLabel(scheme string) string {
	switch scheme {
	case "about", "data", "file", "http", "https":
		return scheme
	default:
		return "other"
	}
}

// Resize sets the viewport. Either side must be in (0, MaxDimension].
func (p *Page) Resize(width, height int) error {
	if p.closed {
		return ErrPageClosed
	}
	if width <= 0 || height <= 0 || width > MaxDimension || height > MaxDimension {
		return fmt.Errorf("engine: invalid size %dx%d", width, height)
	}
	if width == p.width && height == p.height {
		return nil
	}
	p.width, p.height = width, height
	p.bump()
	p.script.dispatch("resize", map[string]interface{}{"width": width, "height": height})
	return nil
}

// SetTransparent switches the default background between white and clear.
func (p *Page) SetTransparent(transparent bool) error {
	if p.closed {
		return ErrPageClosed
	}
	if transparent != p.transparent {
		p.transparent = transparent
		p.bump()
	}
	return nil
}

// Evaluate runs source in the page's script context.
func (p *Page) Evaluate(source string) (string, bool, error) {
	if p.closed {
		return "", false, ErrPageClosed
	}
	val, err := p.script.run(source)
	if err != nil {
		return "", false, err
	}
	value, ok := p.script.stringify(val)
	return value, ok, nil
}

// DrainEvents returns and clears the events emitted by content.
func (p *Page) DrainEvents() []bridge.ScriptEvent {
	events := p.events
	p.events = nil
	return events
}

// LoadFinished reports whether the latest navigation has completed.
func (p *Page) LoadFinished() bool {
	return p.loaded
}

// LoadError returns the failure of the latest navigation, if any.
func (p *Page) LoadError() error {
	return p.loadErr
}

// Size returns the viewport size.
func (p *Page) Size() (int, int) {
	return p.width, p.height
}

// Transparent reports the background mode.
func (p *Page) Transparent() bool {
	return p.transparent
}

// Version changes whenever the raster would differ.
func (p *Page) Version() uint64 {
	return p.version
}

// Capture renders if the page changed since the last capture and returns the
// page's own buffer.
func (p *Page) Capture() (int, int, []byte, error) {
	if p.closed {
		return 0, 0, nil, ErrPageClosed
	}
	return p.width, p.height, p.raster.render(p), nil
}

// URL returns the URL of the latest navigation.
func (p *Page) URL() string {
	return p.url
}

// Title returns the current document title.
func (p *Page) Title() string {
	return p.doc.Title()
}

// Console returns the console history of the current document.
func (p *Page) Console() []ConsoleEntry {
	return p.script.consoleHistory()
}

// Close cancels any load and detaches the page from its toolkit.
func (p *Page) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	p.stopLoad()
	p.token++
	p.toolkit.detach(p)
	p.events = nil
	return nil
}
