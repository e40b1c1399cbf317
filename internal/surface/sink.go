package surface

import (
	"errors"
	"fmt"
	"sync"

	"github.com/GriffinCanCode/viewbridge/internal/bridge"
)

// ErrSizeMismatch is returned when a frame does not fit the sink.
var ErrSizeMismatch = errors.New("surface: frame size does not match texture")

// FrameSink receives frames on the host goroutine.
type FrameSink interface {
	// Reset reallocates the sink for a new size and drops its contents.
	Reset(width, height int)
	// Upload replaces the sink's contents with f.
	Upload(f *bridge.Frame) error
}

// UploadFunc adapts a plain pixel upload to FrameSink. It is called with
// len(pix) == width*height*strideBytes, at most once per Tick.
type UploadFunc func(width, height, strideBytes int, pix []byte) error

// Reset implements FrameSink. A plain upload keeps no state to reallocate.
func (f UploadFunc) Reset(width, height int) {}

// Upload implements FrameSink.
func (f UploadFunc) Upload(frame *bridge.Frame) error {
	if !frame.Valid() {
		return fmt.Errorf("surface: invalid frame")
	}
	return f(frame.Width, frame.Height, frame.Stride, frame.Pix)
}

// Texture is an in-memory FrameSink. Readers on other goroutines see the
// latest uploaded frame.
type Texture struct {
	mu      sync.RWMutex
	width   int
	height  int
	frame   *bridge.Frame
	uploads uint64
}

// NewTexture allocates an empty texture.
func NewTexture(width, height int) *Texture {
	return &Texture{width: width, height: height}
}

// Reset implements FrameSink.
func (t *Texture) Reset(width, height int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.width, t.height = width, height
	t.frame = nil
}

// Upload implements FrameSink. Frames are immutable so the pointer is kept
// as is.
func (t *Texture) Upload(f *bridge.Frame) error {
	if !f.Valid() {
		return fmt.Errorf("surface: invalid frame")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if f.Width != t.width || f.Height != t.height {
		return fmt.Errorf("%w: frame %dx%d, texture %dx%d", ErrSizeMismatch, f.Width, f.Height, t.width, t.height)
	}
	t.frame = f
	t.uploads++
	return nil
}

// Frame returns the latest frame, or nil.
func (t *Texture) Frame() *bridge.Frame {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frame
}

// Size returns the texture size.
func (t *Texture) Size() (int, int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.width, t.height
}

// Uploads returns how many frames were accepted.
func (t *Texture) Uploads() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.uploads
}
