package compose

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/Thekiidd/pdfpulse/core"
	"github.com/Thekiidd/pdfpulse/internal/filters"
	"github.com/Thekiidd/pdfpulse/pdferr"
	"github.com/Thekiidd/pdfpulse/writer"
)

func TestFit(t *testing.T) {
	tests := []struct {
		name           string
		iw, ih, pw, ph float64
		want           Placement
	}{
		{"wide image shrinks", 2000, 1000, 612, 792, Placement{X: 0, Y: 243, Width: 612, Height: 306, Scale: 0.306}},
		{"small image is centered", 100, 50, 612, 792, Placement{X: 256, Y: 371, Width: 100, Height: 50, Scale: 1}},
		{"tall image shrinks", 1000, 4000, 612, 792, Placement{X: 207, Y: 0, Width: 198, Height: 792, Scale: 0.198}},
		{"exact fit", 612, 792, 612, 792, Placement{Width: 612, Height: 792, Scale: 1}},
		{"half size canvas", 1224, 1000, 612, 500, Placement{Width: 612, Height: 500, Scale: 0.5}},
		{"degenerate image", 0, 10, 612, 792, Placement{}},
	}

	approx := cmpopts.EquateApprox(0, 1e-9)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Fit(tt.iw, tt.ih, tt.pw, tt.ph)
			if diff := cmp.Diff(tt.want, got, approx); diff != "" {
				t.Errorf("placement mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func gradient(w, h int) *image.RGBA {
	m := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.Set(x, y, color.RGBA{uint8(x * 255 / w), uint8(y * 255 / h), 128, 255})
		}
	}
	return m
}

func encodeJPEG(t *testing.T, m image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, m, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("jpeg.Encode: %v", err)
	}
	return buf.Bytes()
}

func encodePNG(t *testing.T, m image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, m); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

func TestNewImageJPEG(t *testing.T) {
	data := encodeJPEG(t, gradient(40, 20))
	img, err := NewImage(Input{Name: "a.jpg", MediaType: "image/jpeg", Data: data})
	if err != nil {
		t.Fatalf("NewImage: %v", err)
	}
	if img.Encoding != EncodingJPEG || img.Width != 40 || img.Height != 20 {
		t.Errorf("unexpected image %v %dx%d", img.Encoding, img.Width, img.Height)
	}
	if img.ColorSpace != "DeviceRGB" {
		t.Errorf("expected DeviceRGB, got %s", img.ColorSpace)
	}
	if !bytes.Equal(img.Data, data) {
		t.Error("JPEG data must be embedded unchanged")
	}

	gray := encodeJPEG(t, image.NewGray(image.Rect(0, 0, 8, 8)))
	img, err = NewImage(Input{Name: "g.jpg", MediaType: "IMAGE/JPG", Data: gray})
	if err != nil {
		t.Fatalf("NewImage: %v", err)
	}
	if img.ColorSpace != "DeviceGray" {
		t.Errorf("expected DeviceGray, got %s", img.ColorSpace)
	}
}

func TestNewImagePNG(t *testing.T) {
	t.Run("opaque RGB", func(t *testing.T) {
		img, err := NewImage(Input{Name: "a.png", MediaType: "image/png", Data: encodePNG(t, gradient(3, 2))})
		if err != nil {
			t.Fatalf("NewImage: %v", err)
		}
		if img.Encoding != EncodingPNG || img.ColorSpace != "DeviceRGB" || img.HasAlpha() {
			t.Errorf("unexpected image %+v", img)
		}
		samples, err := filters.FlateDecode(img.Data, nil)
		if err != nil {
			t.Fatalf("FlateDecode: %v", err)
		}
		if len(samples) != 3*2*3 {
			t.Errorf("expected 18 sample bytes, got %d", len(samples))
		}
		if samples[2] != 128 {
			t.Errorf("expected blue 128, got %d", samples[2])
		}
	})

	t.Run("alpha becomes soft mask", func(t *testing.T) {
		m := image.NewNRGBA(image.Rect(0, 0, 2, 1))
		m.SetNRGBA(0, 0, color.NRGBA{255, 0, 0, 255})
		m.SetNRGBA(1, 0, color.NRGBA{0, 0, 255, 64})
		img, err := NewImage(Input{Name: "t.png", MediaType: "image/png; foo=bar", Data: encodePNG(t, m)})
		if err != nil {
			t.Fatalf("NewImage: %v", err)
		}
		if !img.HasAlpha() {
			t.Fatal("expected a soft mask")
		}
		alpha, _ := filters.FlateDecode(img.Alpha, nil)
		if diff := cmp.Diff([]byte{255, 64}, alpha); diff != "" {
			t.Errorf("alpha mismatch (-want +got):\n%s", diff)
		}
		samples, _ := filters.FlateDecode(img.Data, nil)
		if diff := cmp.Diff([]byte{255, 0, 0, 0, 0, 255}, samples); diff != "" {
			t.Errorf("samples mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("gray", func(t *testing.T) {
		m := image.NewGray(image.Rect(0, 0, 3, 1))
		m.Pix = []byte{0, 128, 255}
		img, err := NewImage(Input{Name: "g.png", MediaType: "image/png", Data: encodePNG(t, m)})
		if err != nil {
			t.Fatalf("NewImage: %v", err)
		}
		if img.ColorSpace != "DeviceGray" {
			t.Errorf("expected DeviceGray, got %s", img.ColorSpace)
		}
		samples, _ := filters.FlateDecode(img.Data, nil)
		if diff := cmp.Diff([]byte{0, 128, 255}, samples); diff != "" {
			t.Errorf("samples mismatch (-want +got):\n%s", diff)
		}
	})
}

func TestNewImageGIF(t *testing.T) {
	palette := color.Palette{color.Black, color.White, color.Transparent}
	frame := func(idx uint8) *image.Paletted {
		m := image.NewPaletted(image.Rect(0, 0, 4, 2), palette)
		for i := range m.Pix {
			m.Pix[i] = idx
		}
		return m
	}
	var buf bytes.Buffer
	anim := &gif.GIF{Image: []*image.Paletted{frame(1), frame(0)}, Delay: []int{10, 10}}
	if err := gif.EncodeAll(&buf, anim); err != nil {
		t.Fatalf("gif.EncodeAll: %v", err)
	}

	img, err := NewImage(Input{Name: "a.gif", MediaType: "image/gif", Data: buf.Bytes()})
	if err != nil {
		t.Fatalf("NewImage: %v", err)
	}
	if img.Encoding != EncodingPNG || img.Width != 4 || img.Height != 2 {
		t.Errorf("unexpected image %v %dx%d", img.Encoding, img.Width, img.Height)
	}
	samples, err := filters.FlateDecode(img.Data, nil)
	if err != nil {
		t.Fatalf("FlateDecode: %v", err)
	}
	// the first frame is white
	for i, s := range samples {
		if s != 255 {
			t.Fatalf("sample %d is %d, want 255", i, s)
		}
	}
	if img.HasAlpha() {
		t.Error("opaque frame must not carry a soft mask")
	}
}

func TestNewImageMediaTypeVariants(t *testing.T) {
	jpg := encodeJPEG(t, gradient(4, 4))
	pngData := encodePNG(t, gradient(4, 4))
	var gifBuf bytes.Buffer
	if err := gif.Encode(&gifBuf, gradient(4, 4), nil); err != nil {
		t.Fatalf("gif.Encode: %v", err)
	}

	tests := []struct {
		mediaType string
		data      []byte
		want      Encoding
	}{
		{"image/JPG; q=1", jpg, EncodingJPEG},
		{"Image/Jpeg", jpg, EncodingJPEG},
		{"IMAGE/PNG", pngData, EncodingPNG},
		{" image/png ", pngData, EncodingPNG},
		{"image/gif; foo=bar", gifBuf.Bytes(), EncodingPNG},
	}
	for _, tt := range tests {
		t.Run(tt.mediaType, func(t *testing.T) {
			img, err := NewImage(Input{Name: "x", MediaType: tt.mediaType, Data: tt.data})
			if err != nil {
				t.Fatalf("NewImage: %v", err)
			}
			if img.Encoding != tt.want {
				t.Errorf("encoding = %v, want %v", img.Encoding, tt.want)
			}
		})
	}
}

func TestNewImageRejects(t *testing.T) {
	huge := encodePNG(t, image.NewGray(image.Rect(0, 0, MaxDimension+1, 1)))

	tests := []struct {
		name string
		in   Input
	}{
		{"unsupported type", Input{Name: "a.webp", MediaType: "image/webp", Data: []byte("RIFF")}},
		{"corrupt PNG", Input{Name: "a.png", MediaType: "image/png", Data: []byte("\x89PNG broken")}},
		{"corrupt JPEG", Input{Name: "a.jpg", MediaType: "image/jpeg", Data: []byte{0xff, 0xd8, 0x00}}},
		{"PNG declared as GIF", Input{Name: "a.gif", MediaType: "image/gif", Data: encodePNG(t, gradient(2, 2))}},
		{"too wide", Input{Name: "wide.png", MediaType: "image/png", Data: huge}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewImage(tt.in)
			var uerr *pdferr.UnsupportedFormatError
			if !errors.As(err, &uerr) {
				t.Fatalf("expected *pdferr.UnsupportedFormatError, got %v", err)
			}
			if uerr.Name != tt.in.Name {
				t.Errorf("expected name %q, got %q", tt.in.Name, uerr.Name)
			}
		})
	}
}

func TestFromImageTallBitmap(t *testing.T) {
	tall := image.NewGray(image.Rect(0, 0, 2, MaxDimension+100))
	img, err := FromImage(tall)
	if err != nil {
		t.Fatalf("FromImage: %v", err)
	}
	if img.Height != MaxDimension+100 || img.Encoding != EncodingRaster {
		t.Errorf("got %dx%d %v", img.Width, img.Height, img.Encoding)
	}

	if _, err := FromImage(image.NewGray(image.Rect(0, 0, 0, 10))); err == nil {
		t.Error("expected error for empty bitmap")
	}
}

func TestHasAdobeMarker(t *testing.T) {
	adobe := []byte{0xff, 0xd8, 0xff, 0xee, 0x00, 0x0e, 'A', 'd', 'o', 'b', 'e', 0, 100, 0, 0, 0, 0, 2, 0xff, 0xda}
	if !hasAdobeMarker(adobe) {
		t.Error("expected Adobe marker to be found")
	}
	if hasAdobeMarker(encodeJPEG(t, gradient(4, 4))) {
		t.Error("encoder output has no Adobe marker")
	}
	if hasAdobeMarker([]byte("not a jpeg")) {
		t.Error("expected false for non-JPEG data")
	}
}

func TestCompose(t *testing.T) {
	inputs := []Input{
		{Name: "wide.jpg", MediaType: "image/jpeg", Data: encodeJPEG(t, gradient(2000, 1000))},
		{Name: "small.png", MediaType: "image/png", Data: encodePNG(t, gradient(100, 50))},
	}
	doc, err := Compose(inputs, Options{})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}

	leaves, err := doc.Pages()
	if err != nil {
		t.Fatalf("Pages: %v", err)
	}
	if len(leaves) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(leaves))
	}

	wantContent := []string{
		"q 612 0 0 306 0 243 cm /Im0 Do Q",
		"q 100 0 0 50 256 371 cm /Im0 Do Q",
	}
	wantFilter := []core.Name{"DCTDecode", "FlateDecode"}
	for i, p := range leaves {
		if w, _ := p.Width(); w != 612 {
			t.Errorf("page %d: width %v", i, w)
		}
		if h, _ := p.Height(); h != 792 {
			t.Errorf("page %d: height %v", i, h)
		}
		streams, err := p.Contents()
		if err != nil || len(streams) != 1 {
			t.Fatalf("page %d: contents %v (%v)", i, streams, err)
		}
		if got := string(streams[0].Data); got != wantContent[i] {
			t.Errorf("page %d: content %q, want %q", i, got, wantContent[i])
		}

		res, _ := p.Resources()
		xobjs, _ := res.GetDict("XObject")
		obj, err := doc.Resolve(xobjs.Get("Im0"))
		if err != nil {
			t.Fatalf("page %d: %v", i, err)
		}
		if f, _ := obj.(*core.Stream).Dict.GetName("Filter"); f != wantFilter[i] {
			t.Errorf("page %d: filter %s, want %s", i, f, wantFilter[i])
		}
	}
}

func TestComposePageSize(t *testing.T) {
	inputs := []Input{{Name: "a.png", MediaType: "image/png", Data: encodePNG(t, gradient(1000, 1000))}}
	doc, err := Compose(inputs, Options{PageWidth: 595.28, PageHeight: 841.89})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	leaves, _ := doc.Pages()
	box, _ := leaves[0].MediaBox()
	if math.Abs(box[2]-595.28) > 1e-9 || math.Abs(box[3]-841.89) > 1e-9 {
		t.Errorf("unexpected media box %v", box)
	}
}

func TestComposeErrors(t *testing.T) {
	if _, err := Compose(nil, Options{}); !errors.Is(err, ErrNoImages) {
		t.Errorf("expected ErrNoImages, got %v", err)
	}

	inputs := []Input{
		{Name: "ok.png", MediaType: "image/png", Data: encodePNG(t, gradient(2, 2))},
		{Name: "bad.bmp", MediaType: "image/bmp", Data: []byte("BM")},
	}
	_, err := Compose(inputs, Options{})
	var uerr *pdferr.UnsupportedFormatError
	if !errors.As(err, &uerr) || uerr.MediaType != "image/bmp" {
		t.Errorf("expected unsupported image/bmp, got %v", err)
	}
}

func TestComposeOutputReadableByPdfcpu(t *testing.T) {
	m := image.NewNRGBA(image.Rect(0, 0, 10, 10))
	for i := range m.Pix {
		m.Pix[i] = uint8(i)
	}
	inputs := []Input{
		{Name: "a.jpg", MediaType: "image/jpeg", Data: encodeJPEG(t, gradient(30, 60))},
		{Name: "b.png", MediaType: "image/png", Data: encodePNG(t, m)},
	}
	doc, err := Compose(inputs, Options{})
	if err != nil {
		t.Fatalf("Compose: %v", err)
	}
	data, err := writer.Bytes(doc, writer.WithCompressStreams(true))
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}

	api.DisableConfigDir()
	n, err := api.PageCount(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		t.Fatalf("pdfcpu rejected output: %v", err)
	}
	if n != 2 {
		t.Errorf("pdfcpu counted %d pages, want 2", n)
	}
}

func TestDrawImage(t *testing.T) {
	tests := []struct {
		name string
		p    Placement
		want string
	}{
		{"integral", Placement{X: 0, Y: 243, Width: 612, Height: 306}, "q 612 0 0 306 0 243 cm /Im0 Do Q"},
		{"rounded", Placement{X: 0.5, Y: -0.00001, Width: 100.123456, Height: 50}, "q 100.1235 0 0 50 0.5 0 cm /Im0 Do Q"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := string(drawImage("Im0", tt.p)); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}
