package core

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"math"
	"strconv"
)

// WriteObject writes the PDF syntax for obj to w. Dictionary keys are
// written in sorted order so equal graphs serialize identically. Streams
// are written as their dictionary followed by the stream body; callers are
// responsible for /Length being correct.
func WriteObject(w io.Writer, obj Object) error {
	bw, ok := w.(*bufio.Writer)
	if !ok {
		bw = bufio.NewWriter(w)
	}
	if err := writeObject(bw, obj); err != nil {
		return err
	}
	return bw.Flush()
}

// Format returns the PDF syntax for obj.
func Format(obj Object) []byte {
	var buf bytes.Buffer
	// writes to a bytes.Buffer cannot fail
	_ = WriteObject(&buf, obj)
	return buf.Bytes()
}

func writeObject(w *bufio.Writer, obj Object) error {
	switch v := obj.(type) {
	case nil, Null:
		w.WriteString("null")
	case Bool:
		w.WriteString(strconv.FormatBool(bool(v)))
	case Int:
		w.WriteString(strconv.FormatInt(int64(v), 10))
	case Real:
		w.WriteString(formatReal(float64(v)))
	case String:
		writeString(w, []byte(v))
	case Name:
		writeName(w, string(v))
	case IndirectRef:
		fmt.Fprintf(w, "%d %d R", v.Number, v.Generation)
	case Array:
		w.WriteByte('[')
		for i, elem := range v {
			if i > 0 {
				w.WriteByte(' ')
			}
			if err := writeObject(w, elem); err != nil {
				return err
			}
		}
		w.WriteByte(']')
	case Dict:
		return writeDict(w, v)
	case *Stream:
		if err := writeDict(w, v.Dict); err != nil {
			return err
		}
		w.WriteString("\nstream\n")
		w.Write(v.Data)
		w.WriteString("\nendstream")
	default:
		return fmt.Errorf("cannot write object of type %T", obj)
	}
	return nil
}

func writeDict(w *bufio.Writer, d Dict) error {
	w.WriteString("<<")
	for _, k := range d.Keys() {
		if _, isNull := d[k].(Null); isNull {
			continue
		}
		writeName(w, k)
		w.WriteByte(' ')
		if err := writeObject(w, d[k]); err != nil {
			return fmt.Errorf("key /%s: %w", k, err)
		}
	}
	w.WriteString(">>")
	return nil
}

// formatReal writes a number without exponent, as PDF has no exponent syntax.
func formatReal(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "0"
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if s == "-0" {
		return "0"
	}
	return s
}

// writeName writes /name, escaping bytes outside the regular printable range.
func writeName(w *bufio.Writer, name string) {
	w.WriteByte('/')
	for i := 0; i < len(name); i++ {
		c := name[i]
		if c < 0x21 || c > 0x7e || c == '#' || isDelimiter(c) {
			fmt.Fprintf(w, "#%02X", c)
			continue
		}
		w.WriteByte(c)
	}
}

// writeString picks literal syntax for mostly printable text and hex
// syntax for binary data such as /ID values.
func writeString(w *bufio.Writer, s []byte) {
	binary := 0
	for _, c := range s {
		if c < 0x20 && c != '\n' && c != '\r' && c != '\t' || c > 0x7e {
			binary++
		}
	}
	if binary > len(s)/4 {
		w.WriteByte('<')
		w.WriteString(hex.EncodeToString(s))
		w.WriteByte('>')
		return
	}

	w.WriteByte('(')
	for _, c := range s {
		switch c {
		case '(', ')', '\\':
			w.WriteByte('\\')
			w.WriteByte(c)
		case '\r':
			// a raw CR would be read back as LF
			w.WriteString(`\r`)
		default:
			w.WriteByte(c)
		}
	}
	w.WriteByte(')')
}
