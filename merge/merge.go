package merge

import (
	"errors"
	"fmt"

	"github.com/Thekiidd/pdfpulse/core"
	"github.com/Thekiidd/pdfpulse/document"
	"github.com/Thekiidd/pdfpulse/pdferr"
	"github.com/Thekiidd/pdfpulse/reader"
)

// ErrTooFewSources is wrapped in the MergeError returned for fewer than two
// inputs.
var ErrTooFewSources = errors.New("at least two documents are required")

// Files parses each input and merges the results. A parse failure is
// reported as a *pdferr.MergeError naming the source.
func Files(data [][]byte) (*document.Document, error) {
	if len(data) < 2 {
		return nil, &pdferr.MergeError{Source: -1, Err: ErrTooFewSources}
	}
	docs := make([]*document.Document, len(data))
	for i, d := range data {
		doc, err := reader.Parse(d)
		if err != nil {
			return nil, &pdferr.MergeError{Source: i, Err: err}
		}
		docs[i] = doc
	}
	return Merge(docs)
}

// Merge returns a new document holding the pages of docs in order. The
// sources are not modified. Shared resources within one source stay
// shared in the result; nothing is shared across sources.
func Merge(docs []*document.Document) (*document.Document, error) {
	if len(docs) < 2 {
		return nil, &pdferr.MergeError{Source: -1, Err: ErrTooFewSources}
	}

	var version core.Version
	for _, src := range docs {
		version = core.MaxVersion(version, src.Version)
	}
	if version.IsZero() {
		version = core.V1_4
	}

	target := document.New(version)
	pagesRef, err := target.PagesRef()
	if err != nil {
		return nil, &pdferr.MergeError{Source: -1, Err: err}
	}

	for i, src := range docs {
		if src == nil {
			return nil, &pdferr.MergeError{Source: i, Err: errors.New("nil document")}
		}
		if err := appendSource(target, pagesRef, src); err != nil {
			return nil, &pdferr.MergeError{Source: i, Err: err}
		}
	}
	return target, nil
}

// appendSource copies every page of src to the end of target.
func appendSource(target *document.Document, pagesRef core.IndirectRef, src *document.Document) error {
	leaves, err := src.Pages()
	if err != nil {
		return fmt.Errorf("failed to read page tree: %w", err)
	}

	c := newCopier(src, target, pagesRef)

	// Reserve the target numbers of all pages first, so a reference from
	// one page to another (link annotations, /P entries) lands on the
	// copied page instead of dragging a second copy in.
	slots := make([]core.IndirectRef, len(leaves))
	for i, p := range leaves {
		slots[i] = target.Alloc()
		if p.Ref.Number != 0 {
			c.trans[p.Ref] = slots[i]
		}
	}

	for i, p := range leaves {
		dict := p.Materialize()
		delete(dict, "Parent")
		copied, err := c.copyDict(dict)
		if err != nil {
			return fmt.Errorf("page %d: %w", i+1, err)
		}
		if err := target.AttachPage(slots[i], copied); err != nil {
			return fmt.Errorf("page %d: %w", i+1, err)
		}
	}
	return nil
}
