package compress

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	"github.com/Thekiidd/pdfpulse/core"
	"github.com/Thekiidd/pdfpulse/document"
)

// Reasons an image is left alone. They are wrapped in the report's
// *pdferr.CompressionError entries.
var (
	ErrStencilMask      = errors.New("stencil masks are not re-encoded")
	ErrColorKeyMask     = errors.New("color key masking depends on exact sample values")
	ErrDecodeArray      = errors.New("images with a /Decode array are not re-encoded")
	ErrUnsupportedCodec = errors.New("unsupported image codec")
	ErrColorSpace       = errors.New("unsupported color space")
	ErrBitDepth         = errors.New("unsupported bits per component")
)

// sourceImage is an image stream decoded to pixels.
type sourceImage struct {
	img    image.Image
	width  int
	height int
}

// decodeImage turns an image XObject into pixels, or explains why it
// cannot be re-derived safely.
func decodeImage(doc *document.Document, stream *core.Stream) (*sourceImage, error) {
	dict := stream.Dict
	if mask, _ := dict.GetBool("ImageMask"); mask {
		return nil, ErrStencilMask
	}
	if _, ok := dict.GetArray("Mask"); ok {
		return nil, ErrColorKeyMask
	}
	if dict.Has("Decode") {
		return nil, ErrDecodeArray
	}

	filters, err := stream.Filters()
	if err != nil {
		return nil, err
	}
	dct := false
	for _, f := range filters {
		switch f {
		case "DCTDecode":
			dct = true
		case "JPXDecode", "JBIG2Decode", "CCITTFaxDecode":
			return nil, fmt.Errorf("%w: %s", ErrUnsupportedCodec, f)
		}
	}

	width, _ := dict.GetInt("Width")
	height, _ := dict.GetInt("Height")
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", width, height)
	}

	bpc := core.Int(8)
	if v, ok := dict.GetInt("BitsPerComponent"); ok {
		bpc = v
	}
	if bpc != 8 {
		return nil, fmt.Errorf("%w: %d", ErrBitDepth, bpc)
	}

	components, err := colorComponents(doc, dict.Get("ColorSpace"), dct)
	if err != nil {
		return nil, err
	}

	data, err := stream.Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to decode image stream: %w", err)
	}

	var img image.Image
	if dct {
		img, err = jpeg.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("invalid JPEG data: %w", err)
		}
	} else {
		img, err = samplesToImage(data, int(width), int(height), components)
		if err != nil {
			return nil, err
		}
	}
	b := img.Bounds()
	return &sourceImage{img: img, width: b.Dx(), height: b.Dy()}, nil
}

// colorComponents maps a color space to its number of components. Only
// spaces whose samples mean the same thing as DeviceGray, DeviceRGB or
// DeviceCMYK are accepted. A JPEG may leave the color space to its own
// header.
func colorComponents(doc *document.Document, obj core.Object, dct bool) (int, error) {
	if obj == nil {
		if dct {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: missing /ColorSpace", ErrColorSpace)
	}
	resolved, err := doc.Resolve(obj)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve color space: %w", err)
	}

	switch v := resolved.(type) {
	case core.Name:
		switch v {
		case "DeviceGray", "G", "CalGray":
			return 1, nil
		case "DeviceRGB", "RGB", "CalRGB":
			return 3, nil
		case "DeviceCMYK", "CMYK":
			return 4, nil
		}
		return 0, fmt.Errorf("%w: %s", ErrColorSpace, v)

	case core.Array:
		if len(v) == 0 {
			return 0, fmt.Errorf("%w: empty array", ErrColorSpace)
		}
		family, _ := v[0].(core.Name)
		switch family {
		case "CalGray":
			return 1, nil
		case "CalRGB":
			return 3, nil
		case "ICCBased":
			if len(v) < 2 {
				return 0, fmt.Errorf("%w: ICCBased without profile", ErrColorSpace)
			}
			profile, err := doc.Resolve(v[1])
			if err != nil {
				return 0, fmt.Errorf("failed to resolve ICC profile: %w", err)
			}
			s, ok := profile.(*core.Stream)
			if !ok {
				return 0, fmt.Errorf("%w: ICC profile is %T", ErrColorSpace, profile)
			}
			switch n, _ := s.Dict.GetInt("N"); n {
			case 1, 3, 4:
				return int(n), nil
			default:
				return 0, fmt.Errorf("%w: ICCBased with %d components", ErrColorSpace, n)
			}
		}
		return 0, fmt.Errorf("%w: %s", ErrColorSpace, family)
	}
	return 0, fmt.Errorf("%w: %T", ErrColorSpace, resolved)
}

// samplesToImage wraps 8-bit samples in the matching image type.
func samplesToImage(data []byte, width, height, components int) (image.Image, error) {
	expected := width * height * components
	if len(data) < expected {
		return nil, fmt.Errorf("insufficient image data: got %d, expected %d", len(data), expected)
	}
	rect := image.Rect(0, 0, width, height)

	switch components {
	case 1:
		img := image.NewGray(rect)
		copy(img.Pix, data[:expected])
		return img, nil

	case 3:
		img := image.NewRGBA(rect)
		for i, j := 0, 0; i < expected; i, j = i+3, j+4 {
			img.Pix[j+0] = data[i+0]
			img.Pix[j+1] = data[i+1]
			img.Pix[j+2] = data[i+2]
			img.Pix[j+3] = 255
		}
		return img, nil

	case 4:
		img := image.NewCMYK(rect)
		copy(img.Pix, data[:expected])
		return img, nil
	}
	return nil, fmt.Errorf("%w: %d components", ErrColorSpace, components)
}
