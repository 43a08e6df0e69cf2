// Package writer serializes a [document.Document] to PDF bytes.
//
//	data, err := writer.Bytes(doc, writer.WithCompressStreams(true))
//
// Output is garbage collected and renumbered: objects not reachable from
// the catalog or the info dictionary are dropped, and the rest are numbered
// densely in discovery order. Files use a classic cross-reference table
// and carry a fresh random /ID, so two writes of the same document are
// structurally equal but not byte-identical.
package writer
