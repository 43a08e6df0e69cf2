// Package core holds the PDF object model and the byte-level machinery
// around it: tokenizing, parsing, cross-reference sections, object streams,
// stream filters and the object syntax writer.
//
// Everything here works on an in-memory byte slice. Higher layers
// ([github.com/Thekiidd/pdfpulse/reader] and
// [github.com/Thekiidd/pdfpulse/writer]) turn that machinery into whole
// documents.
//
// # Object Types
//
// The eight PDF object types satisfy [Object]: [Null], [Bool], [Int], [Real],
// [String], [Name], [Array] and [Dict]. [Stream] pairs a dictionary with raw
// (still encoded) bytes and [IndirectRef] names an object by number and
// generation.
//
// # Parsing
//
// [Lexer] splits bytes into tokens; [Parser] builds objects from them and
// reads "n g obj ... endobj" definitions, including stream bodies whose
// /Length is wrong or indirect.
//
// # Cross-Reference Sections
//
// [XRefParser] follows startxref through classic tables, xref streams,
// /Prev chains and hybrid /XRefStm sections. When those are unusable,
// [XRefParser.Rebuild] recovers the table by scanning for object headers.
//
// # Writing
//
// [WriteObject] and [Format] produce PDF syntax for any [Object], with
// sorted dictionary keys.
package core
