package merge

import (
	"fmt"

	"github.com/Thekiidd/pdfpulse/core"
	"github.com/Thekiidd/pdfpulse/document"
)

// copier moves objects from one source document into the target. trans is
// the rewrite table for that source only; each source object is copied at
// most once.
type copier struct {
	src      *document.Document
	dst      *document.Document
	pagesRef core.IndirectRef
	trans    map[core.IndirectRef]core.IndirectRef
}

func newCopier(src, dst *document.Document, pagesRef core.IndirectRef) *copier {
	return &copier{
		src:      src,
		dst:      dst,
		pagesRef: pagesRef,
		trans:    make(map[core.IndirectRef]core.IndirectRef),
	}
}

func (c *copier) copy(obj core.Object) (core.Object, error) {
	switch v := obj.(type) {
	case core.IndirectRef:
		return c.copyReference(v)
	case core.Dict:
		return c.copyDict(v)
	case core.Array:
		out := make(core.Array, len(v))
		for i, elem := range v {
			repl, err := c.copy(elem)
			if err != nil {
				return nil, err
			}
			out[i] = repl
		}
		return out, nil
	case *core.Stream:
		dict, err := c.copyDict(v.Dict)
		if err != nil {
			return nil, err
		}
		// stream data is never modified in place, so it can be shared
		return &core.Stream{Dict: dict, Data: v.Data}, nil
	default:
		return obj, nil
	}
}

func (c *copier) copyDict(d core.Dict) (core.Dict, error) {
	out := make(core.Dict, len(d))
	for key, val := range d {
		repl, err := c.copy(val)
		if err != nil {
			return nil, fmt.Errorf("/%s: %w", key, err)
		}
		out[key] = repl
	}
	return out, nil
}

// copyReference allocates the target slot before recursing, which makes
// cyclic structures terminate.
func (c *copier) copyReference(ref core.IndirectRef) (core.IndirectRef, error) {
	if repl, ok := c.trans[ref]; ok {
		return repl, nil
	}

	val, err := c.src.Resolve(ref)
	if err != nil {
		return core.IndirectRef{}, err
	}
	// interior page tree nodes of the source collapse onto the target root
	if d, ok := val.(core.Dict); ok {
		if t, _ := d.GetName("Type"); t == "Pages" {
			c.trans[ref] = c.pagesRef
			return c.pagesRef, nil
		}
	}

	repl := c.dst.Alloc()
	c.trans[ref] = repl
	copied, err := c.copy(val)
	if err != nil {
		return core.IndirectRef{}, err
	}
	c.dst.Set(repl, copied)
	return repl, nil
}
