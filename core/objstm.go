package core

import (
	"fmt"
)

// ObjectStream gives access to the objects packed in a /Type /ObjStm stream
// (PDF 1.5). The stream is decoded on first use and every object is parsed
// at most once.
type ObjectStream struct {
	stream  *Stream
	n       int
	first   int
	extends *IndirectRef // /Extends, nil when absent

	decoded []byte
	entries []objStmEntry
	cache   map[int]Object
}

// objStmEntry is one "number offset" pair of the stream header.
type objStmEntry struct {
	number int
	offset int // relative to /First
}

// NewObjectStream wraps stream, checking /Type, /N and /First.
func NewObjectStream(stream *Stream) (*ObjectStream, error) {
	if stream == nil {
		return nil, fmt.Errorf("stream is nil")
	}
	if t, _ := stream.Dict.GetName("Type"); t != "ObjStm" {
		return nil, fmt.Errorf("stream is not an object stream, /Type is %q", t)
	}

	n, ok := stream.Dict.GetInt("N")
	if !ok || n < 0 {
		return nil, fmt.Errorf("object stream has invalid /N %v", stream.Dict.Get("N"))
	}
	first, ok := stream.Dict.GetInt("First")
	if !ok || first < 0 {
		return nil, fmt.Errorf("object stream has invalid /First %v", stream.Dict.Get("First"))
	}

	os := &ObjectStream{
		stream: stream,
		n:      int(n),
		first:  int(first),
		cache:  make(map[int]Object),
	}
	if v := stream.Dict.Get("Extends"); v != nil {
		ref, ok := v.(IndirectRef)
		if !ok {
			return nil, fmt.Errorf("invalid /Extends type: %T", v)
		}
		os.extends = &ref
	}
	return os, nil
}

// N returns the number of objects stored in the stream.
func (os *ObjectStream) N() int { return os.n }

// Extends returns the object stream this one extends, or nil.
func (os *ObjectStream) Extends() *IndirectRef { return os.extends }

// load decodes the stream and parses its header.
func (os *ObjectStream) load() error {
	if os.decoded != nil {
		return nil
	}

	data, err := os.stream.Decode()
	if err != nil {
		return fmt.Errorf("failed to decode object stream: %w", err)
	}
	if os.first > len(data) {
		return fmt.Errorf("/First %d exceeds decoded length %d", os.first, len(data))
	}

	p := NewParser(data[:os.first])
	entries := make([]objStmEntry, 0, os.n)
	for i := 0; i < os.n; i++ {
		num, err1 := p.ParseObject()
		off, err2 := p.ParseObject()
		if err1 != nil || err2 != nil {
			return fmt.Errorf("object stream header truncated at pair %d", i)
		}
		numInt, ok1 := num.(Int)
		offInt, ok2 := off.(Int)
		if !ok1 || !ok2 || offInt < 0 {
			return fmt.Errorf("object stream header pair %d is not two integers", i)
		}
		entries = append(entries, objStmEntry{number: int(numInt), offset: int(offInt)})
	}

	os.decoded = data
	os.entries = entries
	return nil
}

// ObjectAt parses the object at position index of the header and returns
// it with its object number.
func (os *ObjectStream) ObjectAt(index int) (Object, int, error) {
	if err := os.load(); err != nil {
		return nil, 0, err
	}
	if index < 0 || index >= len(os.entries) {
		return nil, 0, fmt.Errorf("index %d out of range [0, %d)", index, len(os.entries))
	}

	entry := os.entries[index]
	if obj, ok := os.cache[index]; ok {
		return obj, entry.number, nil
	}

	start := os.first + entry.offset
	end := len(os.decoded)
	if index+1 < len(os.entries) {
		if next := os.first + os.entries[index+1].offset; next >= start && next < end {
			end = next
		}
	}
	if start >= len(os.decoded) {
		return nil, 0, fmt.Errorf("object %d offset %d beyond decoded data", entry.number, start)
	}

	obj, err := NewParser(os.decoded[start:end]).ParseObject()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to parse object %d: %w", entry.number, err)
	}
	os.cache[index] = obj
	return obj, entry.number, nil
}

// Lookup finds an object by number, using index as a hint from the xref
// entry before falling back to a scan of the header.
func (os *ObjectStream) Lookup(number, index int) (Object, error) {
	if err := os.load(); err != nil {
		return nil, err
	}
	if index >= 0 && index < len(os.entries) && os.entries[index].number == number {
		obj, _, err := os.ObjectAt(index)
		return obj, err
	}
	for i, e := range os.entries {
		if e.number == number {
			obj, _, err := os.ObjectAt(i)
			return obj, err
		}
	}
	return nil, fmt.Errorf("object %d not found in object stream", number)
}

// Numbers returns the object numbers stored in the stream, in header order.
func (os *ObjectStream) Numbers() ([]int, error) {
	if err := os.load(); err != nil {
		return nil, err
	}
	nums := make([]int, len(os.entries))
	for i, e := range os.entries {
		nums[i] = e.number
	}
	return nums, nil
}
