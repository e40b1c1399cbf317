package engine

import (
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	margin     = 8
	lineHeight = 15
	glyphWidth = 7 // basicfont.Face7x13 advance
)

var (
	opaqueBackground = color.RGBA{255, 255, 255, 255}
	darkText         = color.RGBA{0, 0, 0, 255}
	lightText        = color.RGBA{255, 255, 255, 255}
	errorText        = color.RGBA{160, 0, 0, 255}
	ruleColor        = color.RGBA{200, 200, 200, 255}
)

// raster is a page's render target. The buffer is reused across captures
// while the size holds.
type raster struct {
	img     *image.RGBA
	version uint64
	drawn   bool
}

// render repaints when the page version or size changed and returns the
// pixel buffer.
func (r *raster) render(p *Page) []byte {
	if r.img == nil || r.img.Rect.Dx() != p.width || r.img.Rect.Dy() != p.height {
		r.img = image.NewRGBA(image.Rect(0, 0, p.width, p.height))
		r.drawn = false
	}
	if r.drawn && r.version == p.version {
		return r.img.Pix
	}

	paint(r.img, p.doc, p.transparent)
	r.version = p.version
	r.drawn = true
	return r.img.Pix
}

func background(doc *Document, transparent bool) color.RGBA {
	if c, ok := doc.Background(); ok {
		return c
	}
	if transparent {
		return color.RGBA{}
	}
	return opaqueBackground
}

func textColor(bg color.RGBA, kind Kind) color.RGBA {
	if kind == KindError {
		return errorText
	}
	// Rec. 601 luma on an opaque background.
	luma := (299*int(bg.R) + 587*int(bg.G) + 114*int(bg.B)) / 1000
	if bg.A == 255 && luma < 128 {
		return lightText
	}
	return darkText
}

func paint(dst *image.RGBA, doc *Document, transparent bool) {
	bg := background(doc, transparent)
	draw.Draw(dst, dst.Bounds(), image.NewUniform(bg), image.Point{}, draw.Src)

	if doc.Kind == KindImage && doc.image != nil {
		paintImage(dst, doc.image)
		return
	}
	paintText(dst, doc, textColor(bg, doc.Kind))
}

// paintImage scales src to fit dst, preserving aspect ratio, centered.
func paintImage(dst *image.RGBA, src image.Image) {
	sb := src.Bounds()
	if sb.Empty() {
		return
	}
	db := dst.Bounds()

	w, h := db.Dx(), sb.Dy()*db.Dx()/sb.Dx()
	if h > db.Dy() {
		w, h = sb.Dx()*db.Dy()/sb.Dy(), db.Dy()
	}
	if w <= 0 || h <= 0 {
		return
	}
	x0 := db.Min.X + (db.Dx()-w)/2
	y0 := db.Min.Y + (db.Dy()-h)/2
	draw.CatmullRom.Scale(dst, image.Rect(x0, y0, x0+w, y0+h), src, sb, draw.Over, nil)
}

// paintText draws the title, a rule under it, and the body paragraphs
// wrapped to the viewport. Lines past the bottom are dropped.
func paintText(dst *image.RGBA, doc *Document, fg color.RGBA) {
	b := dst.Bounds()
	cols := (b.Dx() - 2*margin) / glyphWidth
	if cols <= 0 {
		return
	}

	d := &font.Drawer{Dst: dst, Src: image.NewUniform(fg), Face: basicfont.Face7x13}
	y := b.Min.Y + margin + basicfont.Face7x13.Ascent

	line := func(s string) bool {
		if y > b.Max.Y {
			return false
		}
		d.Dot = fixed.P(b.Min.X+margin, y)
		d.DrawString(s)
		y += lineHeight
		return true
	}

	if title := doc.Title(); title != "" {
		for _, l := range wrap(title, cols) {
			if !line(l) {
				return
			}
		}
		rule := image.Rect(b.Min.X+margin, y-lineHeight+4, b.Max.X-margin, y-lineHeight+5)
		draw.Draw(dst, rule.Intersect(b), image.NewUniform(ruleColor), image.Point{}, draw.Src)
		y += lineHeight / 2
	}

	for _, para := range doc.Paragraphs() {
		if para == "" {
			y += lineHeight
			continue
		}
		for _, l := range wrap(para, cols) {
			if !line(l) {
				return
			}
		}
	}
}

// wrap breaks s into lines of at most cols runes, splitting on spaces and
// hard-breaking words longer than a line.
func wrap(s string, cols int) []string {
	var (
		lines []string
		cur   []rune
	)
	flush := func() {
		if len(cur) > 0 {
			lines = append(lines, string(cur))
			cur = cur[:0]
		}
	}

	for _, word := range strings.Fields(s) {
		w := []rune(word)
		for len(w) > cols {
			flush()
			lines = append(lines, string(w[:cols]))
			w = w[cols:]
		}
		switch {
		case len(cur) == 0:
			cur = append(cur, w...)
		case len(cur)+1+len(w) <= cols:
			cur = append(cur, ' ')
			cur = append(cur, w...)
		default:
			flush()
			cur = append(cur, w...)
		}
	}
	flush()
	return lines
}
