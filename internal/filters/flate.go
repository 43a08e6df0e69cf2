package filters

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

// Params represents decode parameters from PDF stream dictionaries.
// Common parameters include Predictor, Columns, Colors, and BitsPerComponent.
type Params map[string]interface{}

// FlateDecode decompresses Flate (zlib/deflate) compressed data and undoes
// the predictor named in params, if any.
func FlateDecode(data []byte, params Params) ([]byte, error) {
	decompressed, err := zlibDecompress(data)
	if err != nil {
		return nil, fmt.Errorf("zlib decompression failed: %w", err)
	}
	return predict(decompressed, params)
}

// FlateEncode compresses data with zlib at the best compression level.
// No predictor is applied.
func FlateEncode(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return nil, fmt.Errorf("zlib compression failed: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zlib compression failed: %w", err)
	}
	return buf.Bytes(), nil
}

// zlibDecompress inflates data. Truncated streams are common in the wild,
// so whatever was inflated before an unexpected EOF is returned.
func zlibDecompress(data []byte) ([]byte, error) {
	reader, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create zlib reader: %w", err)
	}
	defer reader.Close()

	var buf bytes.Buffer
	_, err = io.Copy(&buf, reader)
	if err != nil && !(err == io.ErrUnexpectedEOF && buf.Len() > 0) {
		return nil, fmt.Errorf("failed to decompress: %w", err)
	}
	return buf.Bytes(), nil
}

// predict reverses the predictor selected by params. Predictor 1 (or none)
// is the identity, 2 is TIFF Predictor 2 and 10-15 are the PNG predictors.
func predict(data []byte, params Params) ([]byte, error) {
	predictor := getIntParam(params, "Predictor", 1)
	switch {
	case predictor == 1:
		return data, nil
	case predictor == 2:
		return applyTIFFPredictor2(data, params)
	case predictor >= 10 && predictor <= 15:
		return applyPNGPredictor(data, params)
	default:
		return nil, fmt.Errorf("unsupported predictor: %d", predictor)
	}
}

// applyTIFFPredictor2 adds each sample to the sample one pixel to its left.
func applyTIFFPredictor2(data []byte, params Params) ([]byte, error) {
	columns := getIntParam(params, "Columns", 1)
	colors := getIntParam(params, "Colors", 1)
	if bpc := getIntParam(params, "BitsPerComponent", 8); bpc != 8 {
		return nil, fmt.Errorf("TIFF Predictor 2 only supports 8 bits per component, got %d", bpc)
	}

	rowSize := columns * colors
	if rowSize <= 0 || len(data)%rowSize != 0 {
		return nil, fmt.Errorf("data size %d is not a multiple of row size %d", len(data), rowSize)
	}

	result := make([]byte, len(data))
	for start := 0; start < len(data); start += rowSize {
		for col := 0; col < rowSize; col++ {
			idx := start + col
			if col < colors {
				result[idx] = data[idx]
			} else {
				result[idx] = data[idx] + result[idx-colors]
			}
		}
	}
	return result, nil
}

// applyPNGPredictor undoes PNG row filtering. Every row carries its own
// filter type byte, so the Predictor value only selects "PNG".
func applyPNGPredictor(data []byte, params Params) ([]byte, error) {
	columns := getIntParam(params, "Columns", 1)
	colors := getIntParam(params, "Colors", 1)
	bpc := getIntParam(params, "BitsPerComponent", 8)

	bpp := (colors*bpc + 7) / 8
	rowLen := (columns*colors*bpc + 7) / 8
	if rowLen <= 0 {
		return nil, fmt.Errorf("invalid row length %d", rowLen)
	}
	stride := rowLen + 1

	numRows := len(data) / stride
	result := make([]byte, numRows*rowLen)
	prev := make([]byte, rowLen)

	for row := 0; row < numRows; row++ {
		in := data[row*stride : (row+1)*stride]
		out := result[row*rowLen : (row+1)*rowLen]
		if err := unfilterRow(in[0], in[1:], prev, out, bpp); err != nil {
			return nil, fmt.Errorf("failed to decode row %d: %w", row, err)
		}
		prev = out
	}
	return result, nil
}

// unfilterRow reconstructs one row. Types: 0=None, 1=Sub, 2=Up, 3=Average, 4=Paeth.
func unfilterRow(filter byte, cur, prev, out []byte, bpp int) error {
	for i := range cur {
		var left, upLeft byte
		up := prev[i]
		if i >= bpp {
			left = out[i-bpp]
			upLeft = prev[i-bpp]
		}

		var predicted byte
		switch filter {
		case 0:
		case 1:
			predicted = left
		case 2:
			predicted = up
		case 3:
			predicted = byte((int(left) + int(up)) / 2)
		case 4:
			predicted = paethPredictor(left, up, upLeft)
		default:
			return fmt.Errorf("unknown PNG predictor: %d", filter)
		}
		out[i] = cur[i] + predicted
	}
	return nil
}

// paethPredictor selects the neighbor closest to left + up - upLeft.
func paethPredictor(a, b, c byte) byte {
	p := int(a) + int(b) - int(c)
	pa := abs(p - int(a))
	pb := abs(p - int(b))
	pc := abs(p - int(c))

	if pa <= pb && pa <= pc {
		return a
	} else if pb <= pc {
		return b
	}
	return c
}

// getIntParam extracts an integer parameter from Params, returning defaultValue
// if the parameter is missing or cannot be converted to an integer.
func getIntParam(params Params, key string, defaultValue int) int {
	obj, ok := params[key]
	if !ok {
		return defaultValue
	}

	switch v := obj.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return defaultValue
	}
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
