package compose

import (
	"errors"
	"fmt"
	"math"

	"github.com/Thekiidd/pdfpulse/contentstream"
	"github.com/Thekiidd/pdfpulse/core"
	"github.com/Thekiidd/pdfpulse/document"
)

// Default page size, US Letter in points.
const (
	DefaultPageWidth  = 612
	DefaultPageHeight = 792
)

// ErrNoImages is returned by Compose for an empty input list.
var ErrNoImages = errors.New("no images to compose")

// Input is one image file.
type Input struct {
	Name      string
	MediaType string
	Data      []byte
}

// Options configures Compose. Zero fields take the defaults.
type Options struct {
	PageWidth  float64
	PageHeight float64
}

func (o Options) pageSize() (float64, float64) {
	w, h := o.PageWidth, o.PageHeight
	if w <= 0 {
		w = DefaultPageWidth
	}
	if h <= 0 {
		h = DefaultPageHeight
	}
	return w, h
}

// Compose builds a document with one page per image, in input order.
// Each image is scaled down to fit the page if needed, never up, and
// centered. The first image that cannot be embedded aborts the whole
// operation.
func Compose(images []Input, opts Options) (*document.Document, error) {
	if len(images) == 0 {
		return nil, ErrNoImages
	}
	pw, ph := opts.pageSize()

	doc := document.New(core.V1_4)
	for _, in := range images {
		img, err := NewImage(in)
		if err != nil {
			return nil, err
		}
		if _, err := AppendPage(doc, img, pw, ph); err != nil {
			return nil, fmt.Errorf("%s: %w", in.Name, err)
		}
	}
	return doc, nil
}

// AppendPage adds a pw×ph page to doc showing img placed by Fit.
func AppendPage(doc *document.Document, img *Image, pw, ph float64) (core.IndirectRef, error) {
	p := Fit(float64(img.Width), float64(img.Height), pw, ph)
	ref := img.Embed(doc)

	content := doc.Add(&core.Stream{
		Dict: core.Dict{},
		Data: drawImage("Im0", p),
	})
	procSet := core.Array{core.Name("PDF"), core.Name("ImageC")}
	if img.ColorSpace == "DeviceGray" {
		procSet[1] = core.Name("ImageB")
	}
	return doc.AppendPage(core.Dict{
		"MediaBox": core.Array{core.Int(0), core.Int(0), number(pw), number(ph)},
		"Resources": core.Dict{
			"XObject": core.Dict{"Im0": ref},
			"ProcSet": procSet,
		},
		"Contents": content,
	})
}

// drawImage returns the content stream painting XObject name at p.
func drawImage(name string, p Placement) []byte {
	return contentstream.Format([]contentstream.Operation{
		contentstream.Op("q"),
		contentstream.Op("cm", number(p.Width), core.Int(0), core.Int(0), number(p.Height), number(p.X), number(p.Y)),
		contentstream.Op("Do", core.Name(name)),
		contentstream.Op("Q"),
	})
}

// number returns v rounded to four decimals, as an Int when integral.
func number(v float64) core.Object {
	v = math.Round(v*1e4) / 1e4
	if v == 0 {
		return core.Int(0)
	}
	if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
		return core.Int(int64(v))
	}
	return core.Real(v)
}
