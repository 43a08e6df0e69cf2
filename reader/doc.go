// Package reader turns PDF bytes into a [document.Document].
//
// # Parsing
//
//	doc, err := reader.Parse(data)
//	var perr *pdferr.ParseError
//	if errors.As(err, &perr) {
//	    // malformed, encrypted or incomplete input
//	}
//
// [ParseReader] and [ParseFile] are conveniences over [Parse].
//
// # What Is Checked
//
// The %PDF- header must start within the first 1024 bytes. Cross-reference
// data is read through classic tables, xref streams, /Prev chains and
// hybrid sections; objects packed in object streams are unpacked. All
// in-use objects are loaded up front.
//
// Every reference reachable from the catalog must resolve: a document is
// never returned with pages or resources silently missing. Encrypted files
// are rejected.
//
// # Recovery
//
// When the cross-reference data is unusable, or objects fail to load
// through it, the reader rebuilds the table by scanning the file for
// "n g obj" headers and keeps whichever table loads more objects.
package reader
