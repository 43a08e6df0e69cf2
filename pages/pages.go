package pages

import (
	"fmt"

	"github.com/Thekiidd/pdfpulse/core"
)

// ObjectResolver resolves indirect references
type ObjectResolver interface {
	Resolve(obj core.Object) (core.Object, error)
	ResolveReference(ref core.IndirectRef) (core.Object, error)
}

// Inheritable lists the page attributes a leaf may take from its ancestors.
var Inheritable = []string{"Resources", "MediaBox", "CropBox", "Rotate"}

// DefaultMediaBox is used when neither a page nor its ancestors define one.
var DefaultMediaBox = []float64{0, 0, 612, 792}

// Catalog represents the PDF document catalog (root of document structure)
type Catalog struct {
	dict     core.Dict
	resolver ObjectResolver
}

// NewCatalog creates a new catalog from a dictionary
func NewCatalog(dict core.Dict, resolver ObjectResolver) *Catalog {
	return &Catalog{
		dict:     dict,
		resolver: resolver,
	}
}

// Pages returns the page tree root entry, normally a reference
func (c *Catalog) Pages() (core.Object, error) {
	root := c.dict.Get("Pages")
	if root == nil {
		return nil, fmt.Errorf("catalog missing /Pages entry")
	}
	return root, nil
}

// Version returns the /Version override, or the zero Version if absent
func (c *Catalog) Version() core.Version {
	name, ok := c.dict.GetName("Version")
	if !ok {
		return core.Version{}
	}
	v, err := core.ParseVersion(string(name))
	if err != nil {
		return core.Version{}
	}
	return v
}

// PageTree represents the PDF page tree
type PageTree struct {
	root     core.Object
	resolver ObjectResolver
	pages    []*Page // flattened leaves, loaded on first use
}

// NewPageTree creates a page tree from the catalog's /Pages entry
func NewPageTree(root core.Object, resolver ObjectResolver) *PageTree {
	return &PageTree{
		root:     root,
		resolver: resolver,
	}
}

// Count returns the number of leaf pages found by walking the tree. The
// declared /Count is not trusted; see DeclaredCount.
func (t *PageTree) Count() (int, error) {
	pages, err := t.Pages()
	if err != nil {
		return 0, err
	}
	return len(pages), nil
}

// DeclaredCount returns the /Count of the root node.
func (t *PageTree) DeclaredCount() (int, error) {
	node, err := t.resolver.Resolve(t.root)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve page tree root: %w", err)
	}
	dict, ok := node.(core.Dict)
	if !ok {
		return 0, fmt.Errorf("page tree root is %T, not a dictionary", node)
	}
	count, ok := dict.GetInt("Count")
	if !ok {
		return 0, fmt.Errorf("page tree missing /Count entry")
	}
	return int(count), nil
}

// GetPage returns the page at the given index (0-based)
func (t *PageTree) GetPage(index int) (*Page, error) {
	pages, err := t.Pages()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(pages) {
		return nil, fmt.Errorf("page index %d out of range [0, %d)", index, len(pages))
	}
	return pages[index], nil
}

// Pages returns all leaf pages in document order
func (t *PageTree) Pages() ([]*Page, error) {
	if t.pages != nil {
		return t.pages, nil
	}

	w := &walker{resolver: t.resolver, visiting: make(map[int]bool)}
	if err := w.visit(t.root, nil); err != nil {
		return nil, fmt.Errorf("failed to traverse page tree: %w", err)
	}
	if w.pages == nil {
		w.pages = []*Page{}
	}
	t.pages = w.pages
	return t.pages, nil
}

// walker flattens a page tree, carrying inheritable attributes down.
type walker struct {
	resolver ObjectResolver
	visiting map[int]bool
	pages    []*Page
}

func (w *walker) visit(nodeObj core.Object, inherited core.Dict) error {
	var ref core.IndirectRef
	if r, ok := nodeObj.(core.IndirectRef); ok {
		if w.visiting[r.Number] {
			return fmt.Errorf("cycle in page tree at %s", r)
		}
		w.visiting[r.Number] = true
		defer delete(w.visiting, r.Number)
		ref = r
	}

	resolved, err := w.resolver.Resolve(nodeObj)
	if err != nil {
		return fmt.Errorf("failed to resolve page tree node: %w", err)
	}
	node, ok := resolved.(core.Dict)
	if !ok {
		return fmt.Errorf("page tree node %s is %T, not a dictionary", ref, resolved)
	}

	kind, err := nodeType(node)
	if err != nil {
		return fmt.Errorf("page tree node %s: %w", ref, err)
	}

	switch kind {
	case "Pages":
		// attributes set on this node override those from further up
		next := make(core.Dict, len(inherited)+len(Inheritable))
		for k, v := range inherited {
			next[k] = v
		}
		for _, name := range Inheritable {
			if v := node.Get(name); v != nil {
				next[name] = v
			}
		}

		kidsObj, err := w.resolver.Resolve(node.Get("Kids"))
		if err != nil {
			return fmt.Errorf("failed to resolve /Kids: %w", err)
		}
		kids, ok := kidsObj.(core.Array)
		if !ok {
			return fmt.Errorf("page tree node %s has invalid /Kids type %T", ref, kidsObj)
		}
		for _, kid := range kids {
			if err := w.visit(kid, next); err != nil {
				return err
			}
		}

	case "Page":
		w.pages = append(w.pages, &Page{
			Ref:       ref,
			Dict:      node,
			inherited: inherited,
			resolver:  w.resolver,
		})
	}
	return nil
}

// nodeType returns "Pages" or "Page". A missing /Type is inferred from
// the presence of /Kids, which some producers rely on.
func nodeType(node core.Dict) (string, error) {
	if t, ok := node.GetName("Type"); ok {
		switch t {
		case "Pages", "Page":
			return string(t), nil
		default:
			return "", fmt.Errorf("unexpected /Type /%s", t)
		}
	}
	if node.Has("Type") {
		return "", fmt.Errorf("invalid /Type %v", node.Get("Type"))
	}
	if node.Has("Kids") {
		return "Pages", nil
	}
	return "Page", nil
}

// Page represents a single PDF page
type Page struct {
	Ref  core.IndirectRef // zero when the page is a direct object
	Dict core.Dict

	inherited core.Dict // inheritable attributes from the ancestors
	resolver  ObjectResolver
}

// attr looks an inheritable attribute up on the page, then its ancestors.
func (p *Page) attr(name string) core.Object {
	if v := p.Dict.Get(name); v != nil {
		return v
	}
	return p.inherited.Get(name)
}

// Materialize returns a shallow copy of the page dictionary with the
// inherited attributes filled in, so the page no longer depends on its
// ancestors. The page itself is not modified.
func (p *Page) Materialize() core.Dict {
	out := make(core.Dict, len(p.Dict)+len(Inheritable))
	for k, v := range p.Dict {
		out[k] = v
	}
	for _, name := range Inheritable {
		if !out.Has(name) {
			if v := p.inherited.Get(name); v != nil {
				out[name] = v
			}
		}
	}
	return out
}

// MediaBox returns the page media box [x1 y1 x2 y2]
// This is inheritable and defaults to US Letter.
func (p *Page) MediaBox() ([]float64, error) {
	box, err := p.getBox("MediaBox")
	if err != nil {
		return nil, err
	}
	if box == nil {
		return DefaultMediaBox, nil
	}
	return box, nil
}

// CropBox returns the page crop box [x1 y1 x2 y2]
// This is inheritable, defaults to MediaBox if not present
func (p *Page) CropBox() ([]float64, error) {
	box, err := p.getBox("CropBox")
	if err != nil || box == nil {
		return p.MediaBox()
	}
	return box, nil
}

// getBox retrieves a box attribute; a nil box means it is absent.
func (p *Page) getBox(name string) ([]float64, error) {
	boxObj := p.attr(name)
	if boxObj == nil {
		return nil, nil
	}

	resolved, err := p.resolver.Resolve(boxObj)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", name, err)
	}
	arr, ok := resolved.(core.Array)
	if !ok || len(arr) != 4 {
		return nil, fmt.Errorf("invalid %s: %v", name, resolved)
	}
	box, ok := arr.Numbers()
	if !ok {
		return nil, fmt.Errorf("invalid %s element in %v", name, arr)
	}
	return box, nil
}

// Resources returns the page resources dictionary. This is inheritable;
// a page without resources gets an empty dictionary.
func (p *Page) Resources() (core.Dict, error) {
	obj := p.attr("Resources")
	if obj == nil {
		return core.Dict{}, nil
	}

	resolved, err := p.resolver.Resolve(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Resources: %w", err)
	}
	dict, ok := resolved.(core.Dict)
	if !ok {
		return nil, fmt.Errorf("invalid Resources type: %T", resolved)
	}
	return dict, nil
}

// Contents returns the page content stream(s)
func (p *Page) Contents() ([]*core.Stream, error) {
	obj := p.Dict.Get("Contents")
	if obj == nil {
		return nil, nil
	}

	resolved, err := p.resolver.Resolve(obj)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve Contents: %w", err)
	}

	var items core.Array
	switch v := resolved.(type) {
	case *core.Stream:
		return []*core.Stream{v}, nil
	case core.Array:
		items = v
	default:
		return nil, fmt.Errorf("invalid Contents type: %T", resolved)
	}

	streams := make([]*core.Stream, 0, len(items))
	for i, elem := range items {
		r, err := p.resolver.Resolve(elem)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve contents[%d]: %w", i, err)
		}
		s, ok := r.(*core.Stream)
		if !ok {
			return nil, fmt.Errorf("contents[%d] is %T, not a stream", i, r)
		}
		streams = append(streams, s)
	}
	return streams, nil
}

// Rotate returns the page rotation normalized to 0, 90, 180 or 270.
// This is inheritable
func (p *Page) Rotate() int {
	rotate, ok := p.attr("Rotate").(core.Int)
	if !ok {
		return 0
	}
	r := int(rotate) % 360
	if r < 0 {
		r += 360
	}
	return r - r%90
}

// Width returns the page width (from MediaBox)
func (p *Page) Width() (float64, error) {
	box, err := p.MediaBox()
	if err != nil {
		return 0, err
	}
	return abs(box[2] - box[0]), nil
}

// Height returns the page height (from MediaBox)
func (p *Page) Height() (float64, error) {
	box, err := p.MediaBox()
	if err != nil {
		return 0, err
	}
	return abs(box[3] - box[1]), nil
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
