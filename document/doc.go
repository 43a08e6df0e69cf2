// Package document holds the in-memory object graph every engine works on.
//
// A [Document] is a map of numbered objects plus the trailer references
// (/Root, /Info) and the structural version. Engines build or edit a
// Document and hand it to the writer; the reader produces one from bytes.
//
// # Numbering
//
// Object numbers are allocated with [Document.Alloc] or [Document.Add].
// They only need to be unique inside one Document: the writer renumbers
// everything it emits.
//
// # Pages
//
// [Document.Pages] flattens the page tree; [Document.AppendPage] adds a
// leaf under the root /Pages node.
//
// # Reachability
//
// Objects not reachable from /Root or /Info are garbage. [Document.Reachable]
// walks the graph and reports dangling references.
package document
