// Package pages provides PDF page tree traversal and page access.
//
// PDF documents organize pages in a tree of /Pages nodes with /Page
// leaves. [PageTree] flattens that tree into document order:
//
//	tree := pages.NewPageTree(catalog["Pages"], doc)
//	leaves, err := tree.Pages()
//
// Traversal checks node types and rejects cycles.
//
// # Inheritable Attributes
//
// /Resources, /MediaBox, /CropBox and /Rotate may be set on any ancestor
// of a page; the nearest definition wins. [Page] answers lookups through
// that chain, and [Page.Materialize] copies the effective values onto the
// page itself, which is what a page needs before it can move to another
// tree.
//
// # Object Resolution
//
// The [ObjectResolver] interface abstracts object lookup, so the tree can
// be walked over a parsed file or a document under construction.
package pages
