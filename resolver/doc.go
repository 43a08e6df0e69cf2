// Package resolver walks the object graph of a document through its
// indirect references.
//
// A document is a set of numbered objects; which of them matter is decided
// by what the trailer can reach. [Reachable] answers that question in a
// stable discovery order, which the writer uses to renumber objects and the
// reader uses to reject files with dangling references.
//
// # Basic Usage
//
//	refs, err := resolver.Reachable(doc, trailer["Root"], trailer["Info"])
//	var dangling *resolver.DanglingError
//	if errors.As(err, &dangling) {
//	    // dangling.Ref is missing, dangling.From points at it
//	}
//
// # Depth Limit
//
// Direct objects can nest arbitrarily; the walker stops with an error past
// a configurable depth instead of exhausting the stack:
//
//	w := resolver.NewWalker(doc, resolver.WithMaxDepth(50))
package resolver
