package document

import (
	"fmt"
	"sort"

	"github.com/Thekiidd/pdfpulse/core"
	"github.com/Thekiidd/pdfpulse/pages"
	"github.com/Thekiidd/pdfpulse/resolver"
)

// Document is an in-memory PDF object graph: numbered indirect objects,
// the trailer's /Root and optional /Info references, and the structural
// version. A Document is owned by one job and is not safe for concurrent
// use.
type Document struct {
	Objects map[int]core.Object
	Root    core.IndirectRef
	Info    core.IndirectRef // Number 0 when absent
	Version core.Version

	next int // next free object number
}

// Ensure Document can serve the page tree and the graph walker
var (
	_ pages.ObjectResolver  = (*Document)(nil)
	_ resolver.ObjectReader = (*Document)(nil)
)

// New creates an empty document: a catalog and a page tree without pages.
func New(version core.Version) *Document {
	d := &Document{
		Objects: make(map[int]core.Object),
		Version: version,
	}
	pagesRef := d.Add(core.Dict{
		"Type":  core.Name("Pages"),
		"Kids":  core.Array{},
		"Count": core.Int(0),
	})
	d.Root = d.Add(core.Dict{
		"Type":  core.Name("Catalog"),
		"Pages": pagesRef,
	})
	return d
}

// FromObjects wraps an already numbered object set, as produced by a parser.
func FromObjects(objects map[int]core.Object, root, info core.IndirectRef, version core.Version) *Document {
	d := &Document{
		Objects: objects,
		Root:    root,
		Info:    info,
		Version: version,
	}
	for num := range objects {
		if num >= d.next {
			d.next = num + 1
		}
	}
	return d
}

// Alloc reserves a fresh object number. The slot holds null until Set.
func (d *Document) Alloc() core.IndirectRef {
	if d.next == 0 {
		d.next = 1
	}
	ref := core.IndirectRef{Number: d.next}
	d.next++
	d.Objects[ref.Number] = core.Null{}
	return ref
}

// Add stores obj under a fresh object number.
func (d *Document) Add(obj core.Object) core.IndirectRef {
	ref := d.Alloc()
	d.Objects[ref.Number] = obj
	return ref
}

// Set replaces the object stored under ref.
func (d *Document) Set(ref core.IndirectRef, obj core.Object) {
	d.Objects[ref.Number] = obj
	if ref.Number >= d.next {
		d.next = ref.Number + 1
	}
}

// Lookup returns the object stored under ref.
func (d *Document) Lookup(ref core.IndirectRef) (core.Object, bool) {
	obj, ok := d.Objects[ref.Number]
	return obj, ok
}

// ResolveReference resolves an indirect reference
func (d *Document) ResolveReference(ref core.IndirectRef) (core.Object, error) {
	obj, ok := d.Objects[ref.Number]
	if !ok {
		return nil, fmt.Errorf("object %s not found", ref)
	}
	return obj, nil
}

// Resolve resolves an object if it's an indirect reference, otherwise
// returns it as-is. Chains of references are followed.
func (d *Document) Resolve(obj core.Object) (core.Object, error) {
	for hops := 0; ; hops++ {
		ref, ok := obj.(core.IndirectRef)
		if !ok {
			return obj, nil
		}
		if hops > 32 {
			return nil, fmt.Errorf("reference chain too long at %s", ref)
		}
		next, err := d.ResolveReference(ref)
		if err != nil {
			return nil, err
		}
		obj = next
	}
}

// Len returns the number of stored objects.
func (d *Document) Len() int {
	return len(d.Objects)
}

// Numbers returns the stored object numbers in ascending order.
func (d *Document) Numbers() []int {
	nums := make([]int, 0, len(d.Objects))
	for n := range d.Objects {
		nums = append(nums, n)
	}
	sort.Ints(nums)
	return nums
}

// Catalog returns the document catalog (root object)
func (d *Document) Catalog() (core.Dict, error) {
	obj, err := d.ResolveReference(d.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve catalog: %w", err)
	}
	catalog, ok := obj.(core.Dict)
	if !ok {
		return nil, fmt.Errorf("catalog is not a dictionary: %T", obj)
	}
	return catalog, nil
}

// InfoDict returns the document info dictionary, or nil if there is none.
func (d *Document) InfoDict() (core.Dict, error) {
	if d.Info.Number == 0 {
		return nil, nil
	}
	obj, err := d.ResolveReference(d.Info)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve info: %w", err)
	}
	info, ok := obj.(core.Dict)
	if !ok {
		return nil, fmt.Errorf("info is not a dictionary: %T", obj)
	}
	return info, nil
}

// PageTree returns the document's page tree
func (d *Document) PageTree() (*pages.PageTree, error) {
	catalog, err := d.Catalog()
	if err != nil {
		return nil, err
	}
	root, err := pages.NewCatalog(catalog, d).Pages()
	if err != nil {
		return nil, err
	}
	return pages.NewPageTree(root, d), nil
}

// Pages returns the leaf pages in document order
func (d *Document) Pages() ([]*pages.Page, error) {
	tree, err := d.PageTree()
	if err != nil {
		return nil, err
	}
	return tree.Pages()
}

// PageCount returns the number of leaf pages
func (d *Document) PageCount() (int, error) {
	tree, err := d.PageTree()
	if err != nil {
		return 0, err
	}
	return tree.Count()
}

// pagesRoot returns the root /Pages node, which must be an indirect object.
func (d *Document) pagesRoot() (core.IndirectRef, core.Dict, error) {
	catalog, err := d.Catalog()
	if err != nil {
		return core.IndirectRef{}, nil, err
	}
	ref, ok := catalog.GetIndirectRef("Pages")
	if !ok {
		return core.IndirectRef{}, nil, fmt.Errorf("catalog /Pages is not an indirect reference")
	}
	obj, err := d.ResolveReference(ref)
	if err != nil {
		return core.IndirectRef{}, nil, fmt.Errorf("failed to resolve /Pages: %w", err)
	}
	node, ok := obj.(core.Dict)
	if !ok {
		return core.IndirectRef{}, nil, fmt.Errorf("/Pages is not a dictionary: %T", obj)
	}
	return ref, node, nil
}

// AppendPage adds page as the last leaf of the root /Pages node, pointing
// its /Parent there and keeping /Count in step. It returns the page's
// reference.
func (d *Document) AppendPage(page core.Dict) (core.IndirectRef, error) {
	ref := d.Alloc()
	if err := d.AttachPage(ref, page); err != nil {
		delete(d.Objects, ref.Number)
		return core.IndirectRef{}, err
	}
	return ref, nil
}

// AttachPage stores page under ref, usually reserved earlier with Alloc,
// and appends it to the root /Pages node like AppendPage.
func (d *Document) AttachPage(ref core.IndirectRef, page core.Dict) error {
	parentRef, parent, err := d.pagesRoot()
	if err != nil {
		return err
	}

	kidsObj, err := d.Resolve(parent.Get("Kids"))
	if err != nil {
		return fmt.Errorf("failed to resolve /Kids: %w", err)
	}
	var kids core.Array
	switch v := kidsObj.(type) {
	case nil:
	case core.Array:
		kids = v
	default:
		return fmt.Errorf("invalid /Kids type: %T", kidsObj)
	}

	page["Type"] = core.Name("Page")
	page["Parent"] = parentRef
	d.Set(ref, page)

	count, _ := parent.GetInt("Count")
	parent["Kids"] = append(kids, ref)
	parent["Count"] = count + 1
	return nil
}

// PagesRef returns the reference of the root /Pages node.
func (d *Document) PagesRef() (core.IndirectRef, error) {
	ref, _, err := d.pagesRoot()
	return ref, err
}

// Reachable returns the objects reachable from /Root and /Info in
// discovery order. A reference to a missing object yields a
// *resolver.DanglingError.
func (d *Document) Reachable() ([]core.IndirectRef, error) {
	roots := []core.Object{d.Root}
	if d.Info.Number != 0 {
		roots = append(roots, d.Info)
	}
	return resolver.Reachable(d, roots...)
}
