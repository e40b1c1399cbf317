package bridge

import (
	"sync"

	"github.com/GriffinCanCode/viewbridge/internal/shared/id"
	"go.uber.org/zap"
)

// Handle is the host-side reference to one view. Every method is
// non-blocking; commands take effect on a later worker iteration.
type Handle struct {
	host *Host
	mb   *Mailbox

	once        sync.Once
	stoppedOnce sync.Once
}

// ID returns the view identifier.
func (h *Handle) ID() id.ViewID {
	return h.mb.id
}

func (h *Handle) check() error {
	return h.host.checkRunning()
}

// Navigate requests a page load. A later Navigate before the worker drains
// replaces this one.
func (h *Handle) Navigate(url string) error {
	if err := h.check(); err != nil {
		return err
	}
	return h.mb.navigate(url)
}

// Resize requests a new viewport size in pixels.
func (h *Handle) Resize(width, height int) error {
	if err := h.check(); err != nil {
		return err
	}
	return h.mb.resize(width, height)
}

// SetTransparent requests a transparent or opaque background.
func (h *Handle) SetTransparent(transparent bool) error {
	if err := h.check(); err != nil {
		return err
	}
	return h.mb.setTransparent(transparent)
}

// SetEnabled sets the single authoritative enabled flag. Disabled views keep
// processing commands but no new frames are captured.
func (h *Handle) SetEnabled(enabled bool) error {
	if err := h.check(); err != nil {
		return err
	}
	return h.mb.setEnabled(enabled)
}

// Enabled reports the enabled flag. A view whose host has stopped is never
// enabled.
func (h *Handle) Enabled() bool {
	return h.host.Running() && h.mb.isEnabled()
}

// Err reports why commands on the handle would be refused: ErrStopped once
// the host has stopped, ErrReleased once the view was released or
// unregistered, nil otherwise.
func (h *Handle) Err() error {
	if err := h.check(); err != nil {
		return err
	}
	if h.mb.isMarked() {
		return ErrReleased
	}
	return nil
}

// MouseEvent queues a pointer event.
func (h *Handle) MouseEvent(e MouseEvent) error {
	if err := h.check(); err != nil {
		return err
	}
	return h.mb.pushMouse(e)
}

// KeyEvent queues a key event.
func (h *Handle) KeyEvent(e KeyEvent) error {
	if err := h.check(); err != nil {
		return err
	}
	return h.mb.pushKey(e)
}

// EvaluateScript queues source for evaluation and returns the request ID its
// result will carry. Scripts that produce no value yield no result.
func (h *Handle) EvaluateScript(source string) (id.RequestID, error) {
	if err := h.check(); err != nil {
		return "", err
	}

	reqID := id.NewRequestID()
	if err := h.mb.pushScript(ScriptCommand{RequestID: reqID, Source: source}); err != nil {
		return "", err
	}
	return reqID, nil
}

// Poll returns the latest state and drains pending results and events.
// Call it once per host frame. After Host.Stop the snapshot is marked
// Stopped and reports the view disabled.
func (h *Handle) Poll() Snapshot {
	snap := h.mb.poll()
	if h.check() != nil {
		snap.Stopped = true
		snap.Enabled = false
		h.stoppedOnce.Do(func() {
			h.host.log.Warn("view polled after host stop", zap.String("view", h.mb.id.String()))
		})
	}
	return snap
}

// Release marks the view for deletion and drops the host's reference. It is
// safe to call more than once.
func (h *Handle) Release() {
	h.once.Do(func() {
		if h.mb.markForDeletion() {
			h.host.signal()
		}
		h.mb.release()
	})
}

// Released reports whether Release was called or the view was unregistered.
func (h *Handle) Released() bool {
	return h.mb.isMarked()
}
