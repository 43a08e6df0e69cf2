package resolver

import (
	"fmt"

	"github.com/Thekiidd/pdfpulse/core"
)

// ObjectReader resolves a single indirect reference.
type ObjectReader interface {
	ResolveReference(ref core.IndirectRef) (core.Object, error)
}

// DanglingError reports a reference to an object that does not exist.
type DanglingError struct {
	Ref  core.IndirectRef // the missing object
	From core.IndirectRef // the object holding the reference, zero for a root
	Err  error
}

func (e *DanglingError) Error() string {
	if e.From.Number == 0 {
		return fmt.Sprintf("dangling reference %s: %v", e.Ref, e.Err)
	}
	return fmt.Sprintf("dangling reference %s in object %s: %v", e.Ref, e.From, e.Err)
}

func (e *DanglingError) Unwrap() error { return e.Err }

// Option configures the walker
type Option func(*Walker)

// WithMaxDepth sets the maximum nesting depth of direct objects (default: 100)
func WithMaxDepth(depth int) Option {
	return func(w *Walker) {
		w.maxDepth = depth
	}
}

// Walker visits every object reachable from a set of roots, breadth first,
// each object once.
type Walker struct {
	reader   ObjectReader
	maxDepth int
	seen     map[int]bool
	order    []core.IndirectRef
}

// NewWalker creates a walker over reader
func NewWalker(reader ObjectReader, opts ...Option) *Walker {
	w := &Walker{
		reader:   reader,
		maxDepth: 100,
		seen:     make(map[int]bool),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Walk visits everything reachable from roots. Roots may be references or
// direct objects containing references; nil roots are ignored. Walk can be
// called repeatedly; objects already visited are not visited again.
func (w *Walker) Walk(roots ...core.Object) error {
	type pending struct {
		ref  core.IndirectRef
		from core.IndirectRef
	}
	var queue []pending

	enqueue := func(from core.IndirectRef, obj core.Object) error {
		refs, err := w.references(obj)
		if err != nil {
			return fmt.Errorf("object %s: %w", from, err)
		}
		for _, ref := range refs {
			if !w.seen[ref.Number] {
				w.seen[ref.Number] = true
				queue = append(queue, pending{ref: ref, from: from})
			}
		}
		return nil
	}

	for _, root := range roots {
		if root == nil {
			continue
		}
		if err := enqueue(core.IndirectRef{}, root); err != nil {
			return err
		}
	}

	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]

		obj, err := w.reader.ResolveReference(next.ref)
		if err != nil {
			return &DanglingError{Ref: next.ref, From: next.from, Err: err}
		}
		w.order = append(w.order, next.ref)
		if err := enqueue(next.ref, obj); err != nil {
			return err
		}
	}
	return nil
}

// Order returns the references visited so far, in discovery order.
func (w *Walker) Order() []core.IndirectRef {
	return w.order
}

// Visited reports whether object number num has been reached.
func (w *Walker) Visited(num int) bool {
	return w.seen[num]
}

// references lists the references held directly by obj, in a stable order.
func (w *Walker) references(obj core.Object) ([]core.IndirectRef, error) {
	var refs []core.IndirectRef
	err := collect(obj, 0, w.maxDepth, &refs)
	return refs, err
}

func collect(obj core.Object, depth, maxDepth int, refs *[]core.IndirectRef) error {
	if depth >= maxDepth {
		return fmt.Errorf("maximum nesting depth (%d) exceeded", maxDepth)
	}
	switch v := obj.(type) {
	case core.IndirectRef:
		*refs = append(*refs, v)
	case core.Array:
		for _, elem := range v {
			if err := collect(elem, depth+1, maxDepth, refs); err != nil {
				return err
			}
		}
	case core.Dict:
		for _, k := range v.Keys() {
			if err := collect(v[k], depth+1, maxDepth, refs); err != nil {
				return err
			}
		}
	case *core.Stream:
		return collect(v.Dict, depth+1, maxDepth, refs)
	}
	return nil
}

// References returns the references held directly by obj, without
// following them.
func References(obj core.Object) []core.IndirectRef {
	var refs []core.IndirectRef
	// the default depth is far beyond anything a sane file nests
	_ = collect(obj, 0, 1<<16, &refs)
	return refs
}

// Reachable returns every object reachable from roots in discovery order.
func Reachable(reader ObjectReader, roots ...core.Object) ([]core.IndirectRef, error) {
	w := NewWalker(reader)
	if err := w.Walk(roots...); err != nil {
		return nil, err
	}
	return w.Order(), nil
}
