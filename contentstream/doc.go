// Package contentstream reads and writes PDF content streams, the operator
// programs that paint a page.
//
// A content stream is a flat sequence of operands followed by an operator:
//
//	q 612 0 0 306 0 243 cm /Im0 Do Q
//
// Parse turns such a program into Operations and Format writes them back.
// Inline images (BI ... ID ... EI) are kept as a single operation whose
// Image field carries the image dictionary and raw data.
//
// The operators that matter for image handling:
//   - q, Q: save and restore the graphics state
//   - cm: concatenate a matrix to the transformation
//   - Do: paint a named XObject
//   - BI: an inline image
package contentstream
