package bridge

import (
	"fmt"
	"image"
)

// BytesPerPixel is the stride of every published frame (RGBA, 8 bits each).
const BytesPerPixel = 4

// Frame is one captured image. A published Frame is never mutated; the worker
// replaces it wholesale, so readers may hold it across frames.
type Frame struct {
	Width  int
	Height int
	// Stride is bytes per pixel, not bytes per row.
	Stride int
	Pix    []byte
	// Seq increases with every frame published for the same view.
	Seq uint64
}

// NewFrame wraps pix, which the caller hands over and must not touch again.
func NewFrame(width, height int, pix []byte, seq uint64) (*Frame, error) {
	f := &Frame{Width: width, Height: height, Stride: BytesPerPixel, Pix: pix, Seq: seq}
	if !f.Valid() {
		return nil, fmt.Errorf("frame %dx%d: have %d bytes, want %d", width, height, len(pix), f.Size())
	}
	return f, nil
}

// Size is the byte size implied by the dimensions.
func (f *Frame) Size() int {
	return f.Width * f.Height * f.Stride
}

// Valid reports whether the buffer length matches width*height*stride.
func (f *Frame) Valid() bool {
	return f != nil && f.Width >= 0 && f.Height >= 0 && f.Stride == BytesPerPixel && len(f.Pix) == f.Size()
}

// Image exposes the frame as an *image.RGBA sharing Pix. Do not modify it.
func (f *Frame) Image() *image.RGBA {
	return &image.RGBA{
		Pix:    f.Pix,
		Stride: f.Width * f.Stride,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}
