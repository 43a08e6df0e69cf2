package rasterimport

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Thekiidd/pdfpulse/core"
	"github.com/Thekiidd/pdfpulse/pdferr"
)

func solid(w, h int) image.Image {
	m := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(m.Pix); i += 4 {
		m.Pix[i], m.Pix[i+1], m.Pix[i+2], m.Pix[i+3] = 10, 20, 30, 255
	}
	return m
}

func TestImport(t *testing.T) {
	var got string
	r := RasterizerFunc(func(ctx context.Context, src io.Reader) (image.Image, error) {
		b, _ := io.ReadAll(src)
		got = string(b)
		return solid(1224, 400), nil
	})

	doc, err := Import(context.Background(), r, strings.NewReader("source"))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if got != "source" {
		t.Errorf("rasterizer saw %q", got)
	}

	leaves, err := doc.Pages()
	if err != nil {
		t.Fatalf("Pages: %v", err)
	}
	if len(leaves) != 1 {
		t.Fatalf("expected one page, got %d", len(leaves))
	}
	box, _ := leaves[0].MediaBox()
	if diff := cmp.Diff([]float64{0, 0, 612, 200}, box); diff != "" {
		t.Errorf("media box mismatch (-want +got):\n%s", diff)
	}

	streams, _ := leaves[0].Contents()
	if s := string(streams[0].Data); s != "q 612 0 0 200 0 0 cm /Im0 Do Q" {
		t.Errorf("unexpected content %q", s)
	}

	res, _ := leaves[0].Resources()
	xobjs, _ := res.GetDict("XObject")
	obj, _ := doc.Resolve(xobjs.Get("Im0"))
	img := obj.(*core.Stream)
	if w, _ := img.Dict.GetInt("Width"); w != 1224 {
		t.Errorf("expected image width 1224, got %d", w)
	}
	if cs, _ := img.Dict.GetName("ColorSpace"); cs != "DeviceRGB" {
		t.Errorf("expected DeviceRGB, got %s", cs)
	}
	if img.Dict.Has("SMask") {
		t.Error("opaque bitmap must not carry a soft mask")
	}
}

func TestImportErrors(t *testing.T) {
	boom := errors.New("layout engine crashed")
	tests := []struct {
		name string
		ctx  func() context.Context
		r    Rasterizer
	}{
		{"rasterizer fails", context.Background, RasterizerFunc(func(context.Context, io.Reader) (image.Image, error) {
			return nil, boom
		})},
		{"no bitmap", context.Background, RasterizerFunc(func(context.Context, io.Reader) (image.Image, error) {
			return nil, nil
		})},
		{"empty bitmap", context.Background, RasterizerFunc(func(context.Context, io.Reader) (image.Image, error) {
			return image.NewRGBA(image.Rect(0, 0, 0, 0)), nil
		})},
		{"cancelled", func() context.Context {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			return ctx
		}, RasterizerFunc(func(context.Context, io.Reader) (image.Image, error) {
			t.Error("rasterizer must not run after cancellation")
			return solid(2, 2), nil
		})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := Import(tt.ctx(), tt.r, strings.NewReader(""))
			var rerr *pdferr.RasterizationError
			if !errors.As(err, &rerr) {
				t.Fatalf("expected *pdferr.RasterizationError, got %v", err)
			}
			if doc != nil {
				t.Error("expected no document")
			}
		})
	}
}

func TestImportKeepsTransparency(t *testing.T) {
	r := RasterizerFunc(func(context.Context, io.Reader) (image.Image, error) {
		m := image.NewNRGBA(image.Rect(0, 0, 4, 4))
		m.Set(1, 1, color.NRGBA{255, 0, 0, 255})
		return m, nil
	})
	doc, err := Import(context.Background(), r, strings.NewReader(""))
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	leaves, _ := doc.Pages()
	res, _ := leaves[0].Resources()
	xobjs, _ := res.GetDict("XObject")
	obj, _ := doc.Resolve(xobjs.Get("Im0"))
	if !obj.(*core.Stream).Dict.Has("SMask") {
		t.Error("expected a soft mask for a transparent bitmap")
	}
}
