package writer

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/Thekiidd/pdfpulse/core"
	"github.com/Thekiidd/pdfpulse/document"
	"github.com/Thekiidd/pdfpulse/internal/filters"
)

// Option configures serialization
type Option func(*config)

type config struct {
	compressStreams bool
}

// WithCompressStreams Flate-encodes streams that carry no filter, except
// images, whose encoding is left to the compression engine.
func WithCompressStreams(enabled bool) Option {
	return func(c *config) {
		c.compressStreams = enabled
	}
}

// Write serializes doc to w. Only objects reachable from /Root and /Info
// are written, renumbered 1..n in discovery order. doc is not modified.
func Write(w io.Writer, doc *document.Document, opts ...Option) error {
	var cfg config
	for _, opt := range opts {
		opt(&cfg)
	}

	refs, err := doc.Reachable()
	if err != nil {
		return fmt.Errorf("cannot serialize incomplete document: %w", err)
	}
	renumber := make(map[int]int, len(refs))
	for i, ref := range refs {
		renumber[ref.Number] = i + 1
	}

	bw := bufio.NewWriter(w)
	pw := &posWriter{w: bw}

	version := doc.Version
	if version.IsZero() {
		version = core.V1_4
	}
	// the comment line of high bytes marks the file as binary
	if _, err := fmt.Fprintf(pw, "%%PDF-%s\n%%\xe2\xe3\xcf\xd3\n", version); err != nil {
		return err
	}

	offsets := make([]int64, len(refs))
	for i, ref := range refs {
		obj, err := prepare(doc.Objects[ref.Number], renumber, cfg)
		if err != nil {
			return fmt.Errorf("object %s: %w", ref, err)
		}
		offsets[i] = pw.pos
		if _, err := fmt.Fprintf(pw, "%d 0 obj\n", i+1); err != nil {
			return err
		}
		if err := core.WriteObject(pw, obj); err != nil {
			return fmt.Errorf("object %s: %w", ref, err)
		}
		if _, err := io.WriteString(pw, "\nendobj\n"); err != nil {
			return err
		}
	}

	xrefPos := pw.pos
	if err := writeXRefTable(pw, offsets); err != nil {
		return err
	}

	id := uuid.New()
	trailer := core.Dict{
		"Size": core.Int(len(refs) + 1),
		"Root": core.IndirectRef{Number: renumber[doc.Root.Number]},
		"ID":   core.Array{core.String(id[:]), core.String(id[:])},
	}
	if doc.Info.Number != 0 {
		trailer["Info"] = core.IndirectRef{Number: renumber[doc.Info.Number]}
	}
	if _, err := io.WriteString(pw, "trailer\n"); err != nil {
		return err
	}
	if err := core.WriteObject(pw, trailer); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(pw, "\nstartxref\n%d\n%%%%EOF\n", xrefPos); err != nil {
		return err
	}
	return bw.Flush()
}

// Bytes serializes doc into a new byte slice.
func Bytes(doc *document.Document, opts ...Option) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, doc, opts...); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeXRefTable writes a classic table; every entry is exactly 20 bytes.
func writeXRefTable(w io.Writer, offsets []int64) error {
	if _, err := fmt.Fprintf(w, "xref\n0 %d\n0000000000 65535 f\r\n", len(offsets)+1); err != nil {
		return err
	}
	for _, off := range offsets {
		if _, err := fmt.Fprintf(w, "%010d 00000 n\r\n", off); err != nil {
			return err
		}
	}
	return nil
}

// prepare returns a copy of obj with references renumbered and stream
// lengths set from the data actually written.
func prepare(obj core.Object, renumber map[int]int, cfg config) (core.Object, error) {
	switch v := obj.(type) {
	case core.IndirectRef:
		n, ok := renumber[v.Number]
		if !ok {
			return nil, fmt.Errorf("reference %s was not reached", v)
		}
		return core.IndirectRef{Number: n}, nil
	case core.Array:
		out := make(core.Array, len(v))
		for i, elem := range v {
			c, err := prepare(elem, renumber, cfg)
			if err != nil {
				return nil, err
			}
			out[i] = c
		}
		return out, nil
	case core.Dict:
		out := make(core.Dict, len(v))
		for k, val := range v {
			c, err := prepare(val, renumber, cfg)
			if err != nil {
				return nil, err
			}
			out[k] = c
		}
		return out, nil
	case *core.Stream:
		d, err := prepare(v.Dict, renumber, cfg)
		if err != nil {
			return nil, err
		}
		dict := d.(core.Dict)
		data := v.Data
		if cfg.compressStreams && shouldCompress(dict) {
			enc, err := filters.FlateEncode(data)
			if err != nil {
				return nil, fmt.Errorf("flate encode: %w", err)
			}
			data = enc
			dict["Filter"] = core.Name("FlateDecode")
			delete(dict, "DecodeParms")
		}
		dict["Length"] = core.Int(len(data))
		return &core.Stream{Dict: dict, Data: data}, nil
	default:
		return obj, nil
	}
}

// shouldCompress reports whether an unfiltered stream may be Flate-encoded.
func shouldCompress(dict core.Dict) bool {
	if dict.Has("Filter") {
		return false
	}
	if subtype, _ := dict.GetName("Subtype"); subtype == "Image" {
		return false
	}
	// the xref and object streams of a parsed file are never reachable,
	// but a caller could still link one in
	if t, _ := dict.GetName("Type"); t == "XRef" || t == "ObjStm" {
		return false
	}
	return true
}

// posWriter counts the bytes written so object offsets are known.
type posWriter struct {
	w   io.Writer
	pos int64
}

func (w *posWriter) Write(p []byte) (int, error) {
	n, err := w.w.Write(p)
	w.pos += int64(n)
	return n, err
}
