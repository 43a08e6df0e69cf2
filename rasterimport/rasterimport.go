package rasterimport

import (
	"context"
	"errors"
	"image"
	"io"

	"github.com/Thekiidd/pdfpulse/compose"
	"github.com/Thekiidd/pdfpulse/core"
	"github.com/Thekiidd/pdfpulse/document"
	"github.com/Thekiidd/pdfpulse/pdferr"
)

// DeviceScale is the number of bitmap pixels per point on the produced page.
const DeviceScale = 2

// Rasterizer renders a source document, such as a .docx file, to a bitmap.
type Rasterizer interface {
	Rasterize(ctx context.Context, src io.Reader) (image.Image, error)
}

// RasterizerFunc adapts a function to the Rasterizer interface.
type RasterizerFunc func(ctx context.Context, src io.Reader) (image.Image, error)

// Rasterize calls f(ctx, src).
func (f RasterizerFunc) Rasterize(ctx context.Context, src io.Reader) (image.Image, error) {
	return f(ctx, src)
}

// Import renders src with r and returns a one-page document showing the
// bitmap. A bitmap of w×h pixels gives a page of w/2×h/2 points that the
// image covers completely. The result has no text layer and is not split
// into pages. Any rasterizer failure is returned as a
// *pdferr.RasterizationError and no document is produced.
func Import(ctx context.Context, r Rasterizer, src io.Reader) (*document.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, &pdferr.RasterizationError{Err: err}
	}
	bitmap, err := r.Rasterize(ctx, src)
	if err != nil {
		return nil, &pdferr.RasterizationError{Err: err}
	}
	if bitmap == nil {
		return nil, &pdferr.RasterizationError{Err: errors.New("rasterizer returned no image")}
	}

	img, err := compose.FromImage(bitmap)
	if err != nil {
		return nil, &pdferr.RasterizationError{Err: err}
	}

	doc := document.New(core.V1_4)
	pw := float64(img.Width) / DeviceScale
	ph := float64(img.Height) / DeviceScale
	if _, err := compose.AppendPage(doc, img, pw, ph); err != nil {
		return nil, err
	}
	return doc, nil
}
