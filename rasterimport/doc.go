// Package rasterimport turns a rendered bitmap into a single PDF page.
//
// The rendering itself is delegated to a [Rasterizer]; htmldoc provides
// one for HTML, which the root package feeds with converted .docx input.
// Import embeds the bitmap as a Flate-encoded RGB image on a page half its
// pixel size, which matches a rendering made at device scale 2. Long
// documents become one tall page.
package rasterimport
