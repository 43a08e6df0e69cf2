package core

import (
	"fmt"

	"github.com/Thekiidd/pdfpulse/internal/filters"
)

// Filters returns the filter names of the stream in decoding order.
func (s *Stream) Filters() ([]string, error) {
	switch f := s.Dict.Get("Filter").(type) {
	case nil:
		return nil, nil
	case Name:
		return []string{canonicalFilter(string(f))}, nil
	case Array:
		names := make([]string, len(f))
		for i, v := range f {
			n, ok := v.(Name)
			if !ok {
				return nil, fmt.Errorf("filter %d is not a name: %T", i, v)
			}
			names[i] = canonicalFilter(string(n))
		}
		return names, nil
	default:
		return nil, fmt.Errorf("invalid Filter type: %T", f)
	}
}

// decodeParms returns the /DecodeParms dictionary for the i-th filter.
func (s *Stream) decodeParms(i int) Dict {
	switch p := s.Dict.Get("DecodeParms").(type) {
	case Dict:
		return p
	case Array:
		if d, ok := p.Get(i).(Dict); ok {
			return d
		}
	}
	return nil
}

// Decode applies the stream's filter chain and returns the decoded bytes.
// Image codecs (DCTDecode, JPXDecode, JBIG2Decode) end the chain: their
// input is returned still encoded, so callers can hand it to an image
// decoder.
func (s *Stream) Decode() ([]byte, error) {
	names, err := s.Filters()
	if err != nil {
		return nil, err
	}

	data := s.Data
	for i, name := range names {
		if IsImageCodec(name) {
			return data, nil
		}
		data, err = decodeWithFilter(data, name, s.decodeParms(i))
		if err != nil {
			return nil, fmt.Errorf("filter %d (%s) failed: %w", i, name, err)
		}
	}
	return data, nil
}

// IsImageCodec reports whether the filter is an image compression format
// rather than a general purpose byte filter.
func IsImageCodec(name string) bool {
	switch name {
	case "DCTDecode", "JPXDecode", "JBIG2Decode":
		return true
	}
	return false
}

// canonicalFilter expands the abbreviations allowed in inline images.
func canonicalFilter(name string) string {
	switch name {
	case "Fl":
		return "FlateDecode"
	case "AHx":
		return "ASCIIHexDecode"
	case "A85":
		return "ASCII85Decode"
	case "LZW":
		return "LZWDecode"
	case "RL":
		return "RunLengthDecode"
	case "CCF":
		return "CCITTFaxDecode"
	case "DCT":
		return "DCTDecode"
	}
	return name
}

// decodeWithFilter applies a single filter to data.
func decodeWithFilter(data []byte, name string, params Dict) ([]byte, error) {
	switch name {
	case "FlateDecode":
		return filters.FlateDecode(data, dictToParams(params))
	case "LZWDecode":
		return filters.LZWDecode(data, dictToParams(params))
	case "ASCIIHexDecode":
		return filters.ASCIIHexDecode(data)
	case "ASCII85Decode":
		return filters.ASCII85Decode(data)
	case "RunLengthDecode":
		return filters.RunLengthDecode(data)
	case "CCITTFaxDecode":
		return filters.CCITTFaxDecode(data, dictToParams(params))
	case "Crypt":
		return nil, fmt.Errorf("encrypted streams are not supported")
	default:
		return nil, fmt.Errorf("unknown filter: %s", name)
	}
}

// dictToParams converts decode parameters to plain Go values.
func dictToParams(dict Dict) filters.Params {
	if dict == nil {
		return nil
	}
	params := make(filters.Params, len(dict))
	for k, v := range dict {
		switch obj := v.(type) {
		case Int:
			params[k] = int(obj)
		case Real:
			params[k] = float64(obj)
		case Bool:
			params[k] = bool(obj)
		case Name:
			params[k] = string(obj)
		case String:
			params[k] = string(obj)
		default:
			params[k] = v
		}
	}
	return params
}
