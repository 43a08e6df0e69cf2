// Package pdferr defines the error taxonomy shared by the pdfpulse engines.
//
// Every failure that leaves an engine is one of the types below, so callers
// can branch with errors.As:
//
//	var verr *pdferr.ValidationError
//	if errors.As(err, &verr) && verr.Reason == pdferr.ReasonSize {
//	    // file too large
//	}
//
// # Propagation
//
// [ValidationError] is produced before any parsing. [ParseError],
// [MergeError] and [RasterizationError] abort the whole operation and no
// output is produced. [UnsupportedFormatError] aborts the image it names.
// [CompressionError] never aborts: the compression engine collects them in
// its report and leaves the affected image unmodified.
package pdferr

import (
	"fmt"

	"github.com/dustin/go-humanize"
)

// Reason identifies which validation rule rejected a batch.
type Reason int

const (
	// ReasonEmpty means the batch contained no files.
	ReasonEmpty Reason = iota
	// ReasonMaxFiles means the batch exceeded the operation's file limit.
	ReasonMaxFiles
	// ReasonType means a file's media type is not allowed for the operation.
	ReasonType
	// ReasonSize means a file exceeded the per-file byte ceiling.
	ReasonSize
	// ReasonOperation means the requested operation is unknown.
	ReasonOperation
)

// String returns a short identifier for the reason.
func (r Reason) String() string {
	switch r {
	case ReasonEmpty:
		return "empty"
	case ReasonMaxFiles:
		return "max files"
	case ReasonType:
		return "type"
	case ReasonSize:
		return "size"
	case ReasonOperation:
		return "operation"
	default:
		return "unknown"
	}
}

// ValidationError reports a rejected input batch.
type ValidationError struct {
	Reason    Reason
	Operation string
	File      string // offending file, empty for batch-level rules
	MediaType string // offending media type for ReasonType
	Size      int64  // offending size for ReasonSize
	Limit     int64  // file count limit or byte ceiling
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ReasonEmpty:
		return fmt.Sprintf("validation: no files selected for %s", e.Operation)
	case ReasonMaxFiles:
		return fmt.Sprintf("validation: %s accepts at most %d files", e.Operation, e.Limit)
	case ReasonType:
		return fmt.Sprintf("validation: %q has type %q, not accepted by %s", e.File, e.MediaType, e.Operation)
	case ReasonSize:
		return fmt.Sprintf("validation: %q is %s, limit is %s",
			e.File, humanize.IBytes(uint64(e.Size)), humanize.IBytes(uint64(e.Limit)))
	case ReasonOperation:
		return fmt.Sprintf("validation: unknown operation %q", e.Operation)
	default:
		return "validation: rejected"
	}
}

// ParseError reports a malformed or unsupported input document.
type ParseError struct {
	Offset int64 // byte offset where the problem was found, -1 if unknown
	Err    error
}

func (e *ParseError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("parse: at offset %d: %v", e.Offset, e.Err)
	}
	return fmt.Sprintf("parse: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// NewParseError wraps err as a ParseError without a known offset.
func NewParseError(format string, args ...any) *ParseError {
	return &ParseError{Offset: -1, Err: fmt.Errorf(format, args...)}
}

// MergeError reports a merge that could not be performed.
// Source is the zero-based index of the failing input, or -1 when the
// failure concerns the batch as a whole.
type MergeError struct {
	Source int
	Err    error
}

func (e *MergeError) Error() string {
	if e.Source >= 0 {
		return fmt.Sprintf("merge: source %d: %v", e.Source+1, e.Err)
	}
	return fmt.Sprintf("merge: %v", e.Err)
}

func (e *MergeError) Unwrap() error { return e.Err }

// UnsupportedFormatError reports an image whose codec cannot be embedded.
type UnsupportedFormatError struct {
	Name      string
	MediaType string
	Err       error // optional detail
}

func (e *UnsupportedFormatError) Error() string {
	msg := fmt.Sprintf("unsupported format %q", e.MediaType)
	if e.Name != "" {
		msg = fmt.Sprintf("%s: %s", e.Name, msg)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UnsupportedFormatError) Unwrap() error { return e.Err }

// CompressionError reports an image the compression engine left untouched.
type CompressionError struct {
	Object int // object number of the image stream
	Err    error
}

func (e *CompressionError) Error() string {
	return fmt.Sprintf("compress: image object %d: %v", e.Object, e.Err)
}

func (e *CompressionError) Unwrap() error { return e.Err }

// RasterizationError reports a failure of the external rasterizer.
type RasterizationError struct {
	Err error
}

func (e *RasterizationError) Error() string {
	return fmt.Sprintf("rasterize: %v", e.Err)
}

func (e *RasterizationError) Unwrap() error { return e.Err }
