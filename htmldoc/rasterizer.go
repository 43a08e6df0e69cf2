package htmldoc

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
)

// Default box geometry in CSS pixels, and the device pixel ratio.
const (
	DefaultWidth   = 612
	DefaultPadding = 20
	DefaultScale   = 2

	// DefaultMaxHeight bounds the bitmap height in device pixels, about
	// 80 Letter pages at the default scale.
	DefaultMaxHeight = 1 << 17
)

// ErrTooTall is returned when the laid out content would exceed the
// rasterizer's height limit. The check runs before the bitmap is allocated.
var ErrTooTall = errors.New("htmldoc: content too tall to rasterize")

// Rasterizer paints HTML onto a white bitmap the way a browser lays out a
// fixed-width box. The box grows as tall as its content.
type Rasterizer struct {
	Width   int // content width
	Padding int
	Scale   int // bitmap pixels per CSS pixel

	// MaxHeight caps the bitmap height in device pixels. Zero takes
	// DefaultMaxHeight.
	MaxHeight int
}

// NewRasterizer returns a Rasterizer with the default geometry.
func NewRasterizer() *Rasterizer {
	return &Rasterizer{Width: DefaultWidth, Padding: DefaultPadding, Scale: DefaultScale}
}

// Rasterize parses HTML from src and paints it.
func (r *Rasterizer) Rasterize(ctx context.Context, src io.Reader) (image.Image, error) {
	doc, err := Parse(src)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	width, padding, scale := geometry(r.Width, r.Padding, r.Scale)
	pl := layout(doc.blocks, width, padding)
	limit := r.MaxHeight
	if limit <= 0 {
		limit = DefaultMaxHeight
	}
	if h := int64(pl.height) * int64(scale); h > int64(limit) {
		return nil, fmt.Errorf("%w: %d pixels exceeds %d", ErrTooTall, h, limit)
	}
	return pl.paint(scale), nil
}

// Render lays the document out in a box of the given content width and
// padding and paints it at scale bitmap pixels per CSS pixel. Zero width or
// scale, and negative padding, take the defaults. Render applies no height
// limit; use a Rasterizer for untrusted input.
func (d *Document) Render(width, padding, scale int) *image.RGBA {
	width, padding, scale = geometry(width, padding, scale)
	return layout(d.blocks, width, padding).paint(scale)
}

func geometry(width, padding, scale int) (int, int, int) {
	if width <= 0 {
		width = DefaultWidth
	}
	if padding < 0 {
		padding = DefaultPadding
	}
	if scale <= 0 {
		scale = DefaultScale
	}
	return width, padding, scale
}
