package core

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
)

// XRefEntryType says where an object lives.
type XRefEntryType int

const (
	XRefFree       XRefEntryType = iota // free entry
	XRefInUse                           // uncompressed object at Offset
	XRefCompressed                      // object Index inside object stream Stream
)

// XRefEntry represents a single cross-reference entry
type XRefEntry struct {
	Kind       XRefEntryType
	Offset     int64 // byte offset, for XRefInUse
	Generation int
	Stream     int // object stream number, for XRefCompressed
	Index      int // index inside the object stream, for XRefCompressed
}

// InUse reports whether the entry refers to a live object
func (e *XRefEntry) InUse() bool {
	return e.Kind != XRefFree
}

// XRefTable represents a PDF cross-reference table
type XRefTable struct {
	Entries map[int]*XRefEntry // Map from object number to XRef entry
	Trailer Dict               // Trailer dictionary
}

// NewXRefTable creates a new empty XRef table
func NewXRefTable() *XRefTable {
	return &XRefTable{
		Entries: make(map[int]*XRefEntry),
		Trailer: make(Dict),
	}
}

// Get retrieves an XRef entry by object number
func (x *XRefTable) Get(objNum int) (*XRefEntry, bool) {
	entry, ok := x.Entries[objNum]
	return entry, ok
}

// Set adds or updates an XRef entry
func (x *XRefTable) Set(objNum int, entry *XRefEntry) {
	x.Entries[objNum] = entry
}

// setIfAbsent records entry unless a newer section already defined objNum.
func (x *XRefTable) setIfAbsent(objNum int, entry *XRefEntry) {
	if _, ok := x.Entries[objNum]; !ok {
		x.Entries[objNum] = entry
	}
}

// Size returns the number of entries in the table
func (x *XRefTable) Size() int {
	return len(x.Entries)
}

// XRefParser reads the cross-reference sections of an in-memory PDF
type XRefParser struct {
	data []byte
}

// NewXRefParser creates a new XRef parser
func NewXRefParser(data []byte) *XRefParser {
	return &XRefParser{data: data}
}

// FindXRef finds the byte offset of the last XRef section by scanning the
// tail of the file for "startxref".
func (x *XRefParser) FindXRef() (int64, error) {
	// the marker normally sits in the last few hundred bytes, but some
	// producers append garbage after %%EOF
	const window = 4096
	start := len(x.data) - window
	if start < 0 {
		start = 0
	}

	tail := x.data[start:]
	idx := bytes.LastIndex(tail, []byte("startxref"))
	if idx == -1 {
		return 0, fmt.Errorf("startxref not found")
	}

	rest := bytes.TrimLeft(tail[idx+len("startxref"):], " \t\r\n\f\x00")
	end := 0
	for end < len(rest) && isDigit(rest[end]) {
		end++
	}
	if end == 0 {
		return 0, fmt.Errorf("invalid startxref format")
	}

	offset, err := strconv.ParseInt(string(rest[:end]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid xref offset: %w", err)
	}
	if offset <= 0 || offset >= int64(len(x.data)) {
		return 0, fmt.Errorf("xref offset %d outside file of %d bytes", offset, len(x.data))
	}
	return offset, nil
}

// ParseAll follows the chain of XRef sections starting at the startxref
// offset, newest first, through /Prev and /XRefStm links. Entries from newer
// sections take precedence; the trailer is the newest one, completed with
// keys only older trailers define.
func (x *XRefParser) ParseAll() (*XRefTable, error) {
	offset, err := x.FindXRef()
	if err != nil {
		return nil, err
	}

	table := NewXRefTable()
	visited := make(map[int64]bool)
	first := true

	for offset > 0 {
		if visited[offset] {
			break
		}
		visited[offset] = true

		trailer, err := x.parseSection(offset, table)
		if err != nil {
			return nil, fmt.Errorf("xref section at %d: %w", offset, err)
		}

		// hybrid files: the classic table is backed by an xref stream
		if stmOff, ok := trailer.GetInt("XRefStm"); ok && !visited[int64(stmOff)] {
			visited[int64(stmOff)] = true
			if _, err := x.parseSection(int64(stmOff), table); err != nil {
				return nil, fmt.Errorf("xref stream at %d: %w", stmOff, err)
			}
		}

		if first {
			table.Trailer = trailer
			first = false
		} else {
			for k, v := range trailer {
				if !table.Trailer.Has(k) {
					table.Trailer[k] = v
				}
			}
		}

		prev, ok := trailer.GetInt("Prev")
		if !ok {
			break
		}
		offset = int64(prev)
	}

	return table, nil
}

// parseSection parses one classic table or xref stream at offset into table.
func (x *XRefParser) parseSection(offset int64, table *XRefTable) (Dict, error) {
	if offset < 0 || offset >= int64(len(x.data)) {
		return nil, fmt.Errorf("offset outside file")
	}
	rest := bytes.TrimLeft(x.data[offset:], " \t\r\n\f\x00")
	if bytes.HasPrefix(rest, []byte("xref")) {
		return x.parseTable(offset, table)
	}
	return x.parseStream(offset, table)
}

// parseTable parses a classic table:
//
//	xref
//	0 3
//	0000000000 65535 f
//	0000000009 00000 n
//	...
//	trailer
//	<< ... >>
func (x *XRefParser) parseTable(offset int64, table *XRefTable) (Dict, error) {
	lex := NewLexer(x.data)
	lex.Seek(offset)

	tok, err := lex.NextToken()
	if err != nil || string(tok.Value) != "xref" {
		return nil, fmt.Errorf("expected 'xref' keyword")
	}

	for {
		tok, err := lex.NextToken()
		if err != nil {
			return nil, err
		}
		if tok.Type == TokenKeyword && string(tok.Value) == "trailer" {
			break
		}
		if tok.Type != TokenInteger {
			return nil, fmt.Errorf("invalid subsection header at %d", tok.Pos)
		}
		firstObj, _ := strconv.Atoi(string(tok.Value))

		tok, err = lex.NextToken()
		if err != nil || tok.Type != TokenInteger {
			return nil, fmt.Errorf("invalid subsection count at %d", lex.Pos())
		}
		count, _ := strconv.Atoi(string(tok.Value))

		for i := 0; i < count; i++ {
			entry, err := x.parseTableEntry(lex)
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", firstObj+i, err)
			}
			table.setIfAbsent(firstObj+i, entry)
		}
	}

	p := NewParserAt(x.data, lex.Pos())
	obj, err := p.ParseObject()
	if err != nil {
		return nil, fmt.Errorf("failed to parse trailer dictionary: %w", err)
	}
	trailer, ok := obj.(Dict)
	if !ok {
		return nil, fmt.Errorf("trailer is not a dictionary, got %T", obj)
	}
	return trailer, nil
}

// parseTableEntry reads "offset generation n|f". Entries are nominally
// 20 bytes but producers vary in whitespace, so tokens are used.
func (x *XRefParser) parseTableEntry(lex *Lexer) (*XRefEntry, error) {
	offTok, err := lex.NextToken()
	if err != nil || offTok.Type != TokenInteger {
		return nil, fmt.Errorf("invalid offset")
	}
	genTok, err := lex.NextToken()
	if err != nil || genTok.Type != TokenInteger {
		return nil, fmt.Errorf("invalid generation")
	}
	flagTok, err := lex.NextToken()
	if err != nil || flagTok.Type != TokenKeyword {
		return nil, fmt.Errorf("invalid in-use flag")
	}

	off, _ := strconv.ParseInt(string(offTok.Value), 10, 64)
	gen, _ := strconv.Atoi(string(genTok.Value))

	switch string(flagTok.Value) {
	case "n":
		return &XRefEntry{Kind: XRefInUse, Offset: off, Generation: gen}, nil
	case "f":
		return &XRefEntry{Kind: XRefFree, Generation: gen}, nil
	default:
		return nil, fmt.Errorf("invalid in-use flag: %q", flagTok.Value)
	}
}

// parseStream parses a PDF 1.5 cross-reference stream object.
func (x *XRefParser) parseStream(offset int64, table *XRefTable) (Dict, error) {
	p := NewParserAt(x.data, offset)
	ind, err := p.ParseIndirectObject()
	if err != nil {
		return nil, fmt.Errorf("failed to parse xref stream object: %w", err)
	}
	stream, ok := ind.Object.(*Stream)
	if !ok {
		return nil, fmt.Errorf("xref offset does not point at a stream")
	}
	if t, _ := stream.Dict.GetName("Type"); t != "XRef" {
		return nil, fmt.Errorf("object is not an XRef stream, /Type is %q", t)
	}

	w, ok := stream.Dict.GetArray("W")
	if !ok || len(w) != 3 {
		return nil, fmt.Errorf("invalid /W array")
	}
	var widths [3]int
	for i := range widths {
		n, ok := w[i].(Int)
		if !ok || n < 0 || n > 8 {
			return nil, fmt.Errorf("invalid /W entry %v", w[i])
		}
		widths[i] = int(n)
	}

	size, _ := stream.Dict.GetInt("Size")
	index := []int{0, int(size)}
	if arr, ok := stream.Dict.GetArray("Index"); ok {
		index = index[:0]
		for _, v := range arr {
			n, ok := v.(Int)
			if !ok {
				return nil, fmt.Errorf("invalid /Index entry %v", v)
			}
			index = append(index, int(n))
		}
		if len(index)%2 != 0 {
			return nil, fmt.Errorf("odd /Index length %d", len(index))
		}
	}

	data, err := stream.Decode()
	if err != nil {
		return nil, fmt.Errorf("failed to decode xref stream: %w", err)
	}

	rowLen := widths[0] + widths[1] + widths[2]
	pos := 0
	for i := 0; i < len(index); i += 2 {
		start, count := index[i], index[i+1]
		for j := 0; j < count; j++ {
			if pos+rowLen > len(data) {
				return nil, fmt.Errorf("xref stream data truncated at entry %d", start+j)
			}
			row := data[pos : pos+rowLen]
			pos += rowLen

			// a zero-width type field defaults to type 1
			kind := int64(1)
			if widths[0] > 0 {
				kind = readField(row[:widths[0]])
			}
			f2 := readField(row[widths[0] : widths[0]+widths[1]])
			f3 := readField(row[widths[0]+widths[1]:])

			var entry *XRefEntry
			switch kind {
			case 0:
				entry = &XRefEntry{Kind: XRefFree, Generation: int(f3)}
			case 1:
				entry = &XRefEntry{Kind: XRefInUse, Offset: f2, Generation: int(f3)}
			case 2:
				entry = &XRefEntry{Kind: XRefCompressed, Stream: int(f2), Index: int(f3)}
			default:
				// unknown types are treated as null references
				continue
			}
			table.setIfAbsent(start+j, entry)
		}
	}

	// the stream dictionary doubles as the trailer
	return stream.Dict, nil
}

// readField reads a big-endian unsigned integer
func readField(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

var objHeader = regexp.MustCompile(`(?m)(?:^|[\r\n\s])(\d+)[ \t\r\n]+(\d+)[ \t\r\n]+obj\b`)

// Rebuild reconstructs a cross-reference table by scanning the whole file
// for "n g obj" headers. Later definitions win, matching incremental
// update semantics. The trailer is taken from the last "trailer" dictionary
// or, failing that, synthesized from a /Catalog object.
func (x *XRefParser) Rebuild() (*XRefTable, error) {
	table := NewXRefTable()

	for _, m := range objHeader.FindAllSubmatchIndex(x.data, -1) {
		num, err1 := strconv.Atoi(string(x.data[m[2]:m[3]]))
		gen, err2 := strconv.Atoi(string(x.data[m[4]:m[5]]))
		if err1 != nil || err2 != nil {
			continue
		}
		table.Set(num, &XRefEntry{Kind: XRefInUse, Offset: int64(m[2]), Generation: gen})
	}
	if table.Size() == 0 {
		return nil, fmt.Errorf("no objects found")
	}

	if idx := bytes.LastIndex(x.data, []byte("trailer")); idx >= 0 {
		p := NewParserAt(x.data, int64(idx+len("trailer")))
		if obj, err := p.ParseObject(); err == nil {
			if d, ok := obj.(Dict); ok && d.Has("Root") {
				table.Trailer = d
				return table, nil
			}
		}
	}

	// xref-stream files have no trailer keyword; look for the catalog
	for num, entry := range table.Entries {
		p := NewParserAt(x.data, entry.Offset)
		ind, err := p.ParseIndirectObject()
		if err != nil {
			continue
		}
		var d Dict
		switch v := ind.Object.(type) {
		case Dict:
			d = v
		case *Stream:
			d = v.Dict
		}
		if t, _ := d.GetName("Type"); t == "Catalog" {
			table.Trailer["Root"] = IndirectRef{Number: num, Generation: entry.Generation}
		} else if t == "XRef" && !table.Trailer.Has("Root") {
			if root, ok := d["Root"]; ok {
				table.Trailer["Root"] = root
			}
		}
	}
	if !table.Trailer.Has("Root") {
		return nil, fmt.Errorf("no document catalog found")
	}
	return table, nil
}
