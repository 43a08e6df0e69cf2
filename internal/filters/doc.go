// Package filters implements the PDF stream filters used by pdfpulse.
//
// Decoders turn the bytes stored in a stream into the bytes the stream
// dictionary describes; [FlateEncode] goes the other way for streams the
// serializer and the image compositor write.
//
// # Supported Filters
//
//   - FlateDecode, with TIFF Predictor 2 and PNG predictors 10-15
//   - LZWDecode, with the EarlyChange parameter
//   - ASCIIHexDecode and ASCII85Decode
//   - RunLengthDecode
//   - CCITTFaxDecode (Group 3 and Group 4)
//
// Image codecs (DCTDecode, JPXDecode, JBIG2Decode) are not filters in this
// package: callers that understand images decode them with image codecs.
//
// # Decode Parameters
//
// Filters accept a Params map translated from the /DecodeParms dictionary:
//
//	params := filters.Params{
//	    "Predictor": 12,
//	    "Columns":   100,
//	    "Colors":    3,
//	}
//	decoded, err := filters.FlateDecode(data, params)
package filters
