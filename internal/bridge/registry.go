package bridge

import (
	"sync"

	"github.com/GriffinCanCode/viewbridge/internal/shared/id"
)

// entry pairs a Mailbox with its View. view is touched by the worker only.
type entry struct {
	mb   *Mailbox
	view *View
}

// registry is the ordered membership list of live mailboxes. It owns one
// reference on every Mailbox it holds.
type registry struct {
	mu      sync.Mutex
	entries []*entry
}

func (r *registry) add(mb *Mailbox) {
	mb.retain()

	r.mu.Lock()
	r.entries = append(r.entries, &entry{mb: mb})
	r.mu.Unlock()
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// at returns the i-th entry. Only the worker removes entries, so indexes
// below a count it snapshotted stay valid until its next sweep.
func (r *registry) at(i int) *entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.entries[i]
}

// mark flags the mailbox registered under viewID for deletion.
func (r *registry) mark(viewID id.ViewID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, e := range r.entries {
		if e.mb.id == viewID {
			e.mb.markForDeletion()
			return true
		}
	}
	return false
}

// sweep unlinks every marked entry and returns them together with the
// registry size before and after. The caller tears them down after the
// registry lock is gone.
func (r *registry) sweep() (removed []*entry, before, after int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	before = len(r.entries)
	kept := r.entries[:0]
	for _, e := range r.entries {
		if e.mb.isMarked() {
			removed = append(removed, e)
			continue
		}
		kept = append(kept, e)
	}
	for i := len(kept); i < len(r.entries); i++ {
		r.entries[i] = nil
	}
	r.entries = kept
	return removed, before, len(kept)
}

// drain unlinks every entry regardless of marks.
func (r *registry) drain() []*entry {
	r.mu.Lock()
	defer r.mu.Unlock()

	all := r.entries
	r.entries = nil
	return all
}

func (r *registry) ids() []id.ViewID {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]id.ViewID, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.mb.id)
	}
	return out
}
