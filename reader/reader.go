package reader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/Thekiidd/pdfpulse/core"
	"github.com/Thekiidd/pdfpulse/document"
	"github.com/Thekiidd/pdfpulse/pages"
	"github.com/Thekiidd/pdfpulse/pdferr"
	"github.com/Thekiidd/pdfpulse/resolver"
)

// headerWindow is how far into the file the %PDF- marker may start.
const headerWindow = 1024

// Parse parses a complete PDF file into a document graph. Every in-use
// object is loaded; the reader fails with a *pdferr.ParseError when the
// header is missing, the file is encrypted, the page tree is malformed, or
// anything reachable from the catalog is missing.
func Parse(data []byte) (*document.Document, error) {
	version, shift, err := parseHeader(data)
	if err != nil {
		return nil, &pdferr.ParseError{Offset: 0, Err: err}
	}

	xp := core.NewXRefParser(data)
	l, xerr := load(data, shift, xp.ParseAll)
	if xerr != nil || len(l.failed) > 0 {
		// fall back to scanning for object headers
		rebuilt, rerr := load(data, shift, xp.Rebuild)
		switch {
		case rerr == nil && (xerr != nil || len(rebuilt.failed) < len(l.failed)):
			l = rebuilt
		case xerr != nil:
			return nil, &pdferr.ParseError{Offset: -1,
				Err: fmt.Errorf("cross-reference table unusable (%v) and rebuild failed: %w", xerr, rerr)}
		}
	}

	trailer := l.table.Trailer
	if trailer.Has("Encrypt") {
		return nil, pdferr.NewParseError("encrypted documents are not supported")
	}
	root, ok := trailer.GetIndirectRef("Root")
	if !ok {
		return nil, pdferr.NewParseError("trailer has no /Root reference")
	}

	// a broken /Info is dropped rather than failing the whole document
	info, _ := trailer.GetIndirectRef("Info")
	if _, isDict := l.objects[info.Number].(core.Dict); !isDict {
		info = core.IndirectRef{}
	}

	doc := document.FromObjects(l.objects, root, info, version)
	catalog, err := doc.Catalog()
	if err != nil {
		return nil, &pdferr.ParseError{Offset: -1, Err: err}
	}
	doc.Version = core.MaxVersion(version, pages.NewCatalog(catalog, doc).Version())

	if _, err := doc.Reachable(); err != nil {
		return nil, &pdferr.ParseError{Offset: -1, Err: l.explain(err)}
	}
	if _, err := doc.Pages(); err != nil {
		return nil, &pdferr.ParseError{Offset: -1, Err: err}
	}
	return doc, nil
}

// ParseReader reads r to the end and parses the result.
func ParseReader(r io.Reader) (*document.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}
	return Parse(data)
}

// ParseFile reads and parses the named file.
func ParseFile(filename string) (*document.Document, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return Parse(data)
}

// parseHeader finds %PDF-x.y and returns the version and the number of
// bytes in front of the marker.
func parseHeader(data []byte) (core.Version, int64, error) {
	window := data
	if len(window) > headerWindow {
		window = window[:headerWindow]
	}
	idx := bytes.Index(window, []byte("%PDF-"))
	if idx < 0 {
		return core.Version{}, 0, fmt.Errorf("missing %%PDF- header")
	}

	rest := data[idx+len("%PDF-"):]
	if end := bytes.IndexAny(rest, "\r\n"); end >= 0 {
		rest = rest[:end]
	}
	if len(rest) > 16 {
		rest = rest[:16]
	}
	v, err := core.ParseVersion(string(rest))
	if err != nil {
		return core.Version{}, 0, fmt.Errorf("invalid PDF header: %w", err)
	}
	return v, int64(idx), nil
}

// loader loads objects through a cross-reference table. It doubles as the
// parser's resolver for indirect stream lengths.
type loader struct {
	data    []byte
	shift   int64 // bytes before the header; some producers count from it
	table   *core.XRefTable
	objects map[int]core.Object
	failed  map[int]error
	loading map[int]bool
	objStms map[int]*core.ObjectStream
}

// load builds a table with tableFn and loads every in-use object.
func load(data []byte, shift int64, tableFn func() (*core.XRefTable, error)) (*loader, error) {
	table, err := tableFn()
	if err != nil {
		return nil, err
	}
	l := &loader{
		data:    data,
		shift:   shift,
		table:   table,
		objects: make(map[int]core.Object),
		failed:  make(map[int]error),
		loading: make(map[int]bool),
		objStms: make(map[int]*core.ObjectStream),
	}

	nums := make([]int, 0, table.Size())
	for num, entry := range table.Entries {
		if num > 0 && entry.InUse() {
			nums = append(nums, num)
		}
	}
	sort.Ints(nums)
	for _, num := range nums {
		// failures are recorded; they only matter if the object is reachable
		_, _ = l.load(num)
	}
	return l, nil
}

// ResolveReference implements core.ReferenceResolver
func (l *loader) ResolveReference(ref core.IndirectRef) (core.Object, error) {
	return l.load(ref.Number)
}

func (l *loader) load(num int) (core.Object, error) {
	if obj, ok := l.objects[num]; ok {
		return obj, nil
	}
	if err, ok := l.failed[num]; ok {
		return nil, err
	}
	entry, ok := l.table.Get(num)
	if !ok || !entry.InUse() {
		return nil, fmt.Errorf("object %d is not in the cross-reference table", num)
	}
	if l.loading[num] {
		return nil, fmt.Errorf("object %d depends on itself", num)
	}
	l.loading[num] = true
	defer delete(l.loading, num)

	var obj core.Object
	var err error
	if entry.Kind == core.XRefCompressed {
		obj, err = l.loadCompressed(num, entry)
	} else {
		obj, err = l.loadAt(num, entry.Offset)
	}
	if err != nil {
		l.failed[num] = err
		return nil, err
	}
	l.objects[num] = obj
	return obj, nil
}

func (l *loader) loadAt(num int, offset int64) (core.Object, error) {
	obj, err := l.parseAt(num, offset)
	if err != nil && l.shift > 0 {
		// offsets counted from the header rather than the file start
		if shifted, serr := l.parseAt(num, offset+l.shift); serr == nil {
			return shifted, nil
		}
	}
	return obj, err
}

func (l *loader) parseAt(num int, offset int64) (core.Object, error) {
	if offset <= 0 || offset >= int64(len(l.data)) {
		return nil, &pdferr.ParseError{Offset: offset, Err: fmt.Errorf("object %d offset outside file", num)}
	}
	p := core.NewParserAt(l.data, offset)
	p.SetReferenceResolver(l)
	ind, err := p.ParseIndirectObject()
	if err != nil {
		return nil, &pdferr.ParseError{Offset: offset, Err: err}
	}
	if ind.Ref.Number != num {
		return nil, &pdferr.ParseError{Offset: offset,
			Err: fmt.Errorf("object number mismatch: expected %d, got %d", num, ind.Ref.Number)}
	}
	return ind.Object, nil
}

func (l *loader) loadCompressed(num int, entry *core.XRefEntry) (core.Object, error) {
	stm, ok := l.objStms[entry.Stream]
	if !ok {
		container, err := l.load(entry.Stream)
		if err != nil {
			return nil, fmt.Errorf("object stream %d: %w", entry.Stream, err)
		}
		stream, ok := container.(*core.Stream)
		if !ok {
			return nil, fmt.Errorf("object stream %d is %T, not a stream", entry.Stream, container)
		}
		stm, err = core.NewObjectStream(stream)
		if err != nil {
			return nil, fmt.Errorf("object stream %d: %w", entry.Stream, err)
		}
		l.objStms[entry.Stream] = stm
	}
	return stm.Lookup(num, entry.Index)
}

// explain attaches the load failure of a dangling object, if there was one.
func (l *loader) explain(err error) error {
	var dangling *resolver.DanglingError
	if errors.As(err, &dangling) {
		if cause, ok := l.failed[dangling.Ref.Number]; ok {
			return fmt.Errorf("%w (load failure: %v)", err, cause)
		}
	}
	return err
}
