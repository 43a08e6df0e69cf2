// Package compress shrinks documents by re-encoding their images.
//
// # Usage
//
//	report, err := compress.Transform(doc, compress.Options{Quality: 60})
//	for _, skipped := range report.Skipped {
//	    log.Printf("left alone: %v", skipped)
//	}
//
// # What Is Re-encoded
//
// Every image XObject used by a page, directly or through nested form
// XObjects, tiling patterns or Type3 fonts, is decoded to pixels and written
// again as a baseline JPEG.
// JPEG sources go through image/jpeg; Flate, LZW, ASCII and run-length
// encoded 8-bit gray, RGB and CMYK samples are decoded with the stream
// filters. When [Options.MaxDimension] is set, larger images are scaled
// down with Catmull-Rom resampling first.
//
// The new encoding replaces the old one only when it is smaller, so a
// document never grows.
//
// # What Is Left Alone
//
// Stencil masks, color key masks, images with a /Decode array, bit depths
// other than 8, palettes and other color spaces without a device
// equivalent, and JPEG 2000, JBIG2 and CCITT data are not touched. Each
// one is reported as a *pdferr.CompressionError. Soft masks stay as they
// are and keep applying to the re-encoded image.
package compress
