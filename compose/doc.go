// Package compose turns raster images into PDF pages.
//
// # Usage
//
//	doc, err := compose.Compose([]compose.Input{
//	    {Name: "a.jpg", MediaType: "image/jpeg", Data: jpg},
//	    {Name: "b.png", MediaType: "image/png", Data: png},
//	}, compose.Options{})
//
// # Placement
//
// [Fit] computes where an image goes: scaled by min(pw/iw, ph/ih, 1), so
// it is shrunk to fit but never enlarged, then centered on the page. The
// default page is US Letter, 612×792 points.
//
// # Encodings
//
// JPEG files are embedded byte for byte with /DCTDecode; the color space
// follows the number of components. PNG files and the first frame of a
// GIF are decoded to 8-bit gray or RGB samples and Flate encoded. An alpha
// channel that is not fully opaque becomes a separate /SMask image.
//
// Image headers are checked against [MaxDimension] and [MaxPixels] before
// any pixels are decoded. Bitmaps handed to [FromImage] are only required
// to be non-empty.
package compose
