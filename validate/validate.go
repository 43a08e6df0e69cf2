// Package validate is the gate every batch passes before any engine sees
// it. Checks are pure: they look only at the declared name, media type and
// size of each file, never at the bytes.
package validate

import (
	"github.com/Thekiidd/pdfpulse/format"
	"github.com/Thekiidd/pdfpulse/pdferr"
)

// Operation names a user-facing job.
type Operation string

const (
	Merge    Operation = "merge"
	Compress Operation = "compress"
	Images   Operation = "images"
	DOCX     Operation = "docx"
)

// Operations lists the known operations.
var Operations = []Operation{Merge, Compress, Images, DOCX}

// DefaultMaxFileSize is the per-file byte ceiling shared by all operations.
const DefaultMaxFileSize int64 = 5 << 20

// File is the declared metadata of one input.
type File struct {
	Name      string
	MediaType string
	Size      int64
}

type rule struct {
	maxFiles int
	accept   []format.Format
}

var rules = map[Operation]rule{
	Merge:    {maxFiles: 10, accept: []format.Format{format.PDF}},
	Compress: {maxFiles: 1, accept: []format.Format{format.PDF}},
	Images:   {maxFiles: 5, accept: []format.Format{format.JPEG, format.PNG, format.GIF}},
	DOCX:     {maxFiles: 1, accept: []format.Format{format.DOCX}},
}

// Known reports whether op is a known operation.
func (op Operation) Known() bool {
	_, ok := rules[op]
	return ok
}

// MaxFiles returns the batch size limit for op, or 0 for an unknown
// operation.
func MaxFiles(op Operation) int {
	return rules[op].maxFiles
}

// Accepts reports whether op takes files of the given media type. Case and
// parameters are ignored.
func Accepts(op Operation, mediaType string) bool {
	f := format.FromMediaType(mediaType)
	for _, a := range rules[op].accept {
		if f == a {
			return true
		}
	}
	return false
}

// Gate validates batches against a configurable byte ceiling.
type Gate struct {
	MaxFileSize int64
}

// NewGate returns a Gate with the given ceiling. A non-positive value means
// DefaultMaxFileSize.
func NewGate(maxFileSize int64) *Gate {
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	return &Gate{MaxFileSize: maxFileSize}
}

// Batch validates files for op with the default ceiling.
func Batch(op Operation, files []File) error {
	return NewGate(DefaultMaxFileSize).Batch(op, files)
}

// Batch returns nil if the whole batch is acceptable for op, or a
// *pdferr.ValidationError naming the first rule violated. Rules are checked
// in order: empty batch, file count, media type, size.
func (g *Gate) Batch(op Operation, files []File) error {
	r, ok := rules[op]
	if !ok {
		return &pdferr.ValidationError{Reason: pdferr.ReasonOperation, Operation: string(op)}
	}
	if len(files) == 0 {
		return &pdferr.ValidationError{Reason: pdferr.ReasonEmpty, Operation: string(op)}
	}
	if len(files) > r.maxFiles {
		return &pdferr.ValidationError{
			Reason:    pdferr.ReasonMaxFiles,
			Operation: string(op),
			Limit:     int64(r.maxFiles),
		}
	}
	for _, f := range files {
		if !Accepts(op, f.MediaType) {
			return &pdferr.ValidationError{
				Reason:    pdferr.ReasonType,
				Operation: string(op),
				File:      f.Name,
				MediaType: f.MediaType,
			}
		}
	}
	limit := g.MaxFileSize
	if limit <= 0 {
		limit = DefaultMaxFileSize
	}
	for _, f := range files {
		if f.Size > limit {
			return &pdferr.ValidationError{
				Reason:    pdferr.ReasonSize,
				Operation: string(op),
				File:      f.Name,
				Size:      f.Size,
				Limit:     limit,
			}
		}
	}
	return nil
}
