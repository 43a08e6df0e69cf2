package compose

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/draw"

	"github.com/Thekiidd/pdfpulse/core"
	"github.com/Thekiidd/pdfpulse/document"
	"github.com/Thekiidd/pdfpulse/format"
	"github.com/Thekiidd/pdfpulse/internal/filters"
	"github.com/Thekiidd/pdfpulse/pdferr"
)

// Encoding tells how an Image's samples are stored.
type Encoding int

const (
	// EncodingJPEG is a JPEG file embedded unchanged (DCTDecode).
	EncodingJPEG Encoding = iota
	// EncodingPNG is a decoded PNG or GIF frame, Flate encoded.
	EncodingPNG
	// EncodingRaster is a bitmap produced in memory, Flate encoded.
	EncodingRaster
)

func (e Encoding) String() string {
	switch e {
	case EncodingJPEG:
		return "jpeg"
	case EncodingPNG:
		return "png"
	case EncodingRaster:
		return "raster"
	default:
		return fmt.Sprintf("Encoding(%d)", int(e))
	}
}

// Decoding limits, checked against the header before any pixel is decoded.
const (
	MaxDimension = 32768
	MaxPixels    = 64 * 1024 * 1024
)

// Image is an image ready to be stored as an /XObject /Image stream.
type Image struct {
	Encoding   Encoding
	Width      int
	Height     int
	ColorSpace core.Name
	Data       []byte     // stream data, already encoded
	Decode     core.Array // optional /Decode array
	Alpha      []byte     // Flate-encoded 8-bit soft mask, nil when opaque
}

// HasAlpha reports whether the image carries a soft mask.
func (img *Image) HasAlpha() bool {
	return img.Alpha != nil
}

// NewImage prepares in for embedding. JPEG data is kept as is; PNG and
// the first frame of a GIF are decoded to 8-bit samples. Anything else
// fails with a *pdferr.UnsupportedFormatError.
func NewImage(in Input) (*Image, error) {
	unsupported := func(err error) error {
		return &pdferr.UnsupportedFormatError{Name: in.Name, MediaType: in.MediaType, Err: err}
	}

	switch format.FromMediaType(in.MediaType) {
	case format.JPEG:
		cfg, err := jpeg.DecodeConfig(bytes.NewReader(in.Data))
		if err != nil {
			return nil, unsupported(fmt.Errorf("invalid JPEG: %w", err))
		}
		if err := checkBounds(cfg.Width, cfg.Height); err != nil {
			return nil, unsupported(err)
		}
		return newJPEGImage(in.Data, cfg)

	case format.PNG:
		cfg, err := png.DecodeConfig(bytes.NewReader(in.Data))
		if err != nil {
			return nil, unsupported(fmt.Errorf("invalid PNG: %w", err))
		}
		if err := checkBounds(cfg.Width, cfg.Height); err != nil {
			return nil, unsupported(err)
		}
		m, err := png.Decode(bytes.NewReader(in.Data))
		if err != nil {
			return nil, unsupported(fmt.Errorf("invalid PNG: %w", err))
		}
		return encodeSamples(m, EncodingPNG)

	case format.GIF:
		cfg, err := gif.DecodeConfig(bytes.NewReader(in.Data))
		if err != nil {
			return nil, unsupported(fmt.Errorf("invalid GIF: %w", err))
		}
		if err := checkBounds(cfg.Width, cfg.Height); err != nil {
			return nil, unsupported(err)
		}
		m, err := firstFrame(in.Data)
		if err != nil {
			return nil, unsupported(fmt.Errorf("invalid GIF: %w", err))
		}
		return encodeSamples(m, EncodingPNG)

	default:
		return nil, unsupported(nil)
	}
}

// FromImage encodes a bitmap produced in memory. The decoding limits do
// not apply: the pixels already exist, and rasterized documents routinely
// run taller than MaxDimension.
func FromImage(m image.Image) (*Image, error) {
	b := m.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", b.Dx(), b.Dy())
	}
	return encodeSamples(m, EncodingRaster)
}

func checkBounds(w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("invalid image size %dx%d", w, h)
	}
	if w > MaxDimension || h > MaxDimension {
		return fmt.Errorf("image size %dx%d exceeds %d pixels per side", w, h, MaxDimension)
	}
	if int64(w)*int64(h) > MaxPixels {
		return fmt.Errorf("image size %dx%d exceeds %d pixels", w, h, MaxPixels)
	}
	return nil
}

func newJPEGImage(data []byte, cfg image.Config) (*Image, error) {
	img := &Image{
		Encoding: EncodingJPEG,
		Width:    cfg.Width,
		Height:   cfg.Height,
		Data:     data,
	}
	switch cfg.ColorModel {
	case color.GrayModel:
		img.ColorSpace = "DeviceGray"
	case color.CMYKModel:
		img.ColorSpace = "DeviceCMYK"
		if hasAdobeMarker(data) {
			// Adobe applications write inverted CMYK samples
			img.Decode = core.Array{core.Int(1), core.Int(0), core.Int(1), core.Int(0),
				core.Int(1), core.Int(0), core.Int(1), core.Int(0)}
		}
	default:
		img.ColorSpace = "DeviceRGB"
	}
	return img, nil
}

// hasAdobeMarker reports whether a JPEG file has an APP14 "Adobe" segment
// before its first scan.
func hasAdobeMarker(data []byte) bool {
	if len(data) < 4 || data[0] != 0xff || data[1] != 0xd8 {
		return false
	}
	pos := 2
	for pos+4 <= len(data) {
		if data[pos] != 0xff {
			return false
		}
		marker := data[pos+1]
		if marker == 0xff { // fill byte
			pos++
			continue
		}
		if marker == 0xda || marker == 0xd9 { // start of scan, end of image
			return false
		}
		length := int(data[pos+2])<<8 | int(data[pos+3])
		if length < 2 {
			return false
		}
		if marker == 0xee && bytes.HasPrefix(data[pos+4:], []byte("Adobe")) {
			return true
		}
		pos += 2 + length
	}
	return false
}

// firstFrame decodes the first frame of a GIF onto its logical screen.
func firstFrame(data []byte) (image.Image, error) {
	g, err := gif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if len(g.Image) == 0 {
		return nil, fmt.Errorf("no frames")
	}
	frame := g.Image[0]
	screen := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if screen.Empty() || frame.Bounds() == screen {
		return frame, nil
	}
	canvas := image.NewNRGBA(screen)
	draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)
	return canvas, nil
}

// encodeSamples converts m to 8-bit DeviceGray or DeviceRGB samples and
// Flate-encodes them, splitting off a soft mask when m is not opaque.
func encodeSamples(m image.Image, enc Encoding) (*Image, error) {
	b := m.Bounds()
	w, h := b.Dx(), b.Dy()
	img := &Image{Encoding: enc, Width: w, Height: h}

	var samples []byte
	switch m.(type) {
	case *image.Gray, *image.Gray16:
		gray := image.NewGray(image.Rect(0, 0, w, h))
		draw.Draw(gray, gray.Bounds(), m, b.Min, draw.Src)
		img.ColorSpace = "DeviceGray"
		samples = packRows(gray.Pix, gray.Stride, w, h)

	default:
		nrgba := image.NewNRGBA(image.Rect(0, 0, w, h))
		draw.Draw(nrgba, nrgba.Bounds(), m, b.Min, draw.Src)
		img.ColorSpace = "DeviceRGB"
		samples = make([]byte, 0, w*h*3)
		var alpha []byte
		if !isOpaque(m) {
			alpha = make([]byte, 0, w*h)
		}
		for y := 0; y < h; y++ {
			row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+w*4]
			for x := 0; x < w; x++ {
				px := row[x*4 : x*4+4]
				samples = append(samples, px[0], px[1], px[2])
				if alpha != nil {
					alpha = append(alpha, px[3])
				}
			}
		}
		if alpha != nil {
			mask, err := filters.FlateEncode(alpha)
			if err != nil {
				return nil, fmt.Errorf("failed to encode alpha channel: %w", err)
			}
			img.Alpha = mask
		}
	}

	data, err := filters.FlateEncode(samples)
	if err != nil {
		return nil, fmt.Errorf("failed to encode samples: %w", err)
	}
	img.Data = data
	return img, nil
}

// packRows drops any padding at the end of each row.
func packRows(pix []byte, stride, rowLen, rows int) []byte {
	if stride == rowLen {
		return pix[:rowLen*rows]
	}
	out := make([]byte, 0, rowLen*rows)
	for y := 0; y < rows; y++ {
		out = append(out, pix[y*stride:y*stride+rowLen]...)
	}
	return out
}

func isOpaque(m image.Image) bool {
	if o, ok := m.(interface{ Opaque() bool }); ok {
		return o.Opaque()
	}
	return false
}

// Embed stores the image, and its soft mask if any, in doc and returns
// the reference of the image stream.
func (img *Image) Embed(doc *document.Document) core.IndirectRef {
	dict := core.Dict{
		"Type":             core.Name("XObject"),
		"Subtype":          core.Name("Image"),
		"Width":            core.Int(img.Width),
		"Height":           core.Int(img.Height),
		"ColorSpace":       img.ColorSpace,
		"BitsPerComponent": core.Int(8),
	}
	if img.Encoding == EncodingJPEG {
		dict["Filter"] = core.Name("DCTDecode")
	} else {
		dict["Filter"] = core.Name("FlateDecode")
	}
	if img.Decode != nil {
		dict["Decode"] = img.Decode
	}
	if img.Alpha != nil {
		dict["SMask"] = doc.Add(&core.Stream{
			Dict: core.Dict{
				"Type":             core.Name("XObject"),
				"Subtype":          core.Name("Image"),
				"Width":            core.Int(img.Width),
				"Height":           core.Int(img.Height),
				"ColorSpace":       core.Name("DeviceGray"),
				"BitsPerComponent": core.Int(8),
				"Filter":           core.Name("FlateDecode"),
			},
			Data: img.Alpha,
		})
	}
	return doc.Add(&core.Stream{Dict: dict, Data: img.Data})
}
