package bridge

import (
	"sync"

	"github.com/GriffinCanCode/viewbridge/internal/shared/id"
)

// Mailbox is the state block shared by one Handle and the worker. Every field
// is guarded by mu. Command queues are appended by the host and drained whole
// by the worker; result queues the other way round.
type Mailbox struct {
	id     id.ViewID
	notify func()

	mu sync.Mutex

	// host -> worker
	pendingURL         string
	hasURL             bool
	navRequested       uint64
	desiredWidth       int
	desiredHeight      int
	geometryDirty      bool
	geomRequested      uint64
	desiredTransparent bool
	transparencyDirty  bool
	enabled            bool
	mouse              []MouseEvent
	keys               []KeyEvent
	scripts            []ScriptCommand

	// worker -> host
	results     []ScriptResult
	events      []ScriptEvent
	width       int
	height      int
	transparent bool
	loaded      bool
	navApplied  uint64
	geomApplied uint64
	frame       *Frame
	constructed bool

	marked bool
	refs   int
	freed  bool
}

// commands is everything the worker drained from a Mailbox in one take.
type commands struct {
	url      string
	navigate bool
	navSeq   uint64

	width   int
	height  int
	resize  bool
	geomSeq uint64

	transparent    bool
	setTransparent bool

	enabled bool
	marked  bool

	mouse   []MouseEvent
	keys    []KeyEvent
	scripts []ScriptCommand
}

// update is what the worker writes back after applying commands.
type update struct {
	width       int
	height      int
	transparent bool
	loaded      bool
	navSeq      uint64
	geomSeq     uint64
	results     []ScriptResult
	events      []ScriptEvent
	frame       *Frame
}

// Snapshot is a consistent view of a Mailbox taken under one lock acquisition.
// Results and Events are drained: each is delivered by exactly one Poll.
type Snapshot struct {
	ID          id.ViewID
	Width       int
	Height      int
	Transparent bool
	// Loaded is true once the most recently requested navigation finished.
	Loaded  bool
	Enabled bool
	// Constructed is false until the worker has built the view.
	Constructed bool
	// ResizePending is true while the worker has not caught up with the
	// last requested size.
	ResizePending bool
	// Stopped is true once the host has stopped. Nothing in the view will
	// change again and every command fails with ErrStopped.
	Stopped bool
	Frame   *Frame
	Results       []ScriptResult
	Events        []ScriptEvent
}

func newMailbox(viewID id.ViewID, notify func()) *Mailbox {
	if notify == nil {
		notify = func() {}
	}
	return &Mailbox{
		id:      viewID,
		notify:  notify,
		enabled: true,
	}
}

// ID returns the view identifier.
func (m *Mailbox) ID() id.ViewID {
	return m.id
}

// retain adds a reference (registry or handle).
func (m *Mailbox) retain() {
	m.mu.Lock()
	m.refs++
	m.mu.Unlock()
}

// release drops a reference and reports whether it was the last one.
// The last release frees the queued data; later appends are refused.
func (m *Mailbox) release() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.refs == 0 {
		return false
	}
	m.refs--
	if m.refs > 0 {
		return false
	}

	m.freed = true
	m.mouse, m.keys, m.scripts = nil, nil, nil
	m.results, m.events = nil, nil
	m.frame = nil
	return true
}

// markForDeletion sets the deletion flag. It reports false if already set.
func (m *Mailbox) markForDeletion() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.marked {
		return false
	}
	m.marked = true
	return true
}

func (m *Mailbox) isMarked() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.marked
}

// enqueue runs fn under the lock unless the mailbox is gone, then wakes the
// worker with the lock released.
func (m *Mailbox) enqueue(fn func()) error {
	m.mu.Lock()
	if m.marked || m.freed {
		m.mu.Unlock()
		return ErrReleased
	}
	fn()
	m.mu.Unlock()

	m.notify()
	return nil
}

func (m *Mailbox) navigate(url string) error {
	return m.enqueue(func() {
		m.pendingURL = url
		m.hasURL = true
		m.navRequested++
	})
}

func (m *Mailbox) resize(width, height int) error {
	return m.enqueue(func() {
		m.desiredWidth = width
		m.desiredHeight = height
		m.geometryDirty = true
		m.geomRequested++
	})
}

func (m *Mailbox) setTransparent(transparent bool) error {
	return m.enqueue(func() {
		m.desiredTransparent = transparent
		m.transparencyDirty = true
	})
}

func (m *Mailbox) setEnabled(enabled bool) error {
	return m.enqueue(func() {
		m.enabled = enabled
	})
}

func (m *Mailbox) isEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

func (m *Mailbox) pushMouse(e MouseEvent) error {
	return m.enqueue(func() {
		m.mouse = append(m.mouse, e)
	})
}

func (m *Mailbox) pushKey(e KeyEvent) error {
	return m.enqueue(func() {
		m.keys = append(m.keys, e)
	})
}

func (m *Mailbox) pushScript(cmd ScriptCommand) error {
	return m.enqueue(func() {
		m.scripts = append(m.scripts, cmd)
	})
}

// take drains every pending command in one critical section.
func (m *Mailbox) take() commands {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := commands{
		url:            m.pendingURL,
		navigate:       m.hasURL,
		navSeq:         m.navRequested,
		width:          m.desiredWidth,
		height:         m.desiredHeight,
		resize:         m.geometryDirty,
		geomSeq:        m.geomRequested,
		transparent:    m.desiredTransparent,
		setTransparent: m.transparencyDirty,
		enabled:        m.enabled,
		marked:         m.marked,
		mouse:          m.mouse,
		keys:           m.keys,
		scripts:        m.scripts,
	}

	m.pendingURL, m.hasURL = "", false
	m.geometryDirty, m.transparencyDirty = false, false
	m.mouse, m.keys, m.scripts = nil, nil, nil
	return c
}

// markConstructed records that the worker built the view.
func (m *Mailbox) markConstructed() {
	m.mu.Lock()
	m.constructed = true
	m.mu.Unlock()
}

// publish writes worker results back. A nil frame keeps the previous one.
func (m *Mailbox) publish(u update) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.freed {
		return
	}

	m.width, m.height = u.width, u.height
	m.transparent = u.transparent
	m.navApplied = u.navSeq
	m.geomApplied = u.geomSeq
	m.loaded = u.loaded
	m.results = append(m.results, u.results...)
	m.events = append(m.events, u.events...)
	if u.frame != nil {
		m.frame = u.frame
	}
}

// poll returns a snapshot and drains results and events.
func (m *Mailbox) poll() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Applied sequence numbers lag the requested ones until a worker
	// iteration has handled the command.
	s := Snapshot{
		ID:            m.id,
		Width:         m.width,
		Height:        m.height,
		Transparent:   m.transparent,
		Loaded:        m.loaded && m.navApplied == m.navRequested,
		Enabled:       m.enabled,
		Constructed:   m.constructed,
		ResizePending: m.geomApplied != m.geomRequested,
		Frame:         m.frame,
		Results:       m.results,
		Events:        m.events,
	}

	m.results, m.events = nil, nil
	return s
}
