package compress

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"sort"

	"golang.org/x/image/draw"

	"github.com/Thekiidd/pdfpulse/contentstream"
	"github.com/Thekiidd/pdfpulse/core"
	"github.com/Thekiidd/pdfpulse/document"
	"github.com/Thekiidd/pdfpulse/pdferr"
)

// DefaultQuality is the JPEG quality used when Options.Quality is zero.
const DefaultQuality = 60

// Options configures Transform.
type Options struct {
	// Quality is the JPEG quality, 1 to 100.
	Quality int
	// MaxDimension caps the longest side of re-encoded images in pixels.
	// Zero keeps the original size.
	MaxDimension int
}

// Report summarizes a Transform run.
type Report struct {
	Images       int // distinct image streams found
	Recompressed int // images replaced by a smaller encoding
	Unchanged    int // images whose re-encoding was not smaller
	Skipped      []*pdferr.CompressionError
	BytesBefore  int64 // image stream bytes before
	BytesAfter   int64 // image stream bytes after
	// Inline counts images embedded in page content streams. They are
	// part of the page program and are left as they are.
	Inline int
}

// Saved returns the number of image bytes saved.
func (r *Report) Saved() int64 {
	return r.BytesBefore - r.BytesAfter
}

// Transform re-encodes the images used by doc's pages as baseline JPEG,
// downsampling them first when MaxDimension is set. A replacement is kept
// only when it is smaller than the original. Images that cannot be
// re-derived safely are left byte-identical and listed in the report's
// Skipped entries; they never fail the document. Pages, their order and
// their content streams are not changed.
func Transform(doc *document.Document, opts Options) (*Report, error) {
	quality := opts.Quality
	if quality == 0 {
		quality = DefaultQuality
	}
	if quality < 1 || quality > 100 {
		return nil, fmt.Errorf("jpeg quality %d out of range [1, 100]", quality)
	}
	if opts.MaxDimension < 0 {
		return nil, fmt.Errorf("negative max dimension %d", opts.MaxDimension)
	}

	refs, err := collectImages(doc)
	if err != nil {
		return nil, err
	}

	report := &Report{Images: len(refs), Inline: countInline(doc)}
	for _, ref := range refs {
		stream := doc.Objects[ref.Number].(*core.Stream)
		before := int64(len(stream.Data))
		report.BytesBefore += before

		replacement, err := reencode(doc, stream, quality, opts.MaxDimension)
		if err != nil {
			report.Skipped = append(report.Skipped, &pdferr.CompressionError{Object: ref.Number, Err: err})
			report.BytesAfter += before
			continue
		}
		if int64(len(replacement.Data)) >= before {
			report.Unchanged++
			report.BytesAfter += before
			continue
		}
		doc.Set(ref, replacement)
		report.Recompressed++
		report.BytesAfter += int64(len(replacement.Data))
	}
	return report, nil
}

// reencode returns a new JPEG image stream for stream. The original is not
// modified.
func reencode(doc *document.Document, stream *core.Stream, quality, maxDim int) (*core.Stream, error) {
	src, err := decodeImage(doc, stream)
	if err != nil {
		return nil, err
	}

	img := downsample(src.img, maxDim)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode JPEG: %w", err)
	}

	colorSpace := core.Name("DeviceRGB")
	if _, ok := img.(*image.Gray); ok {
		colorSpace = "DeviceGray"
	}

	dict := make(core.Dict, len(stream.Dict))
	for k, v := range stream.Dict {
		dict[k] = v
	}
	delete(dict, "DecodeParms")
	delete(dict, "Length")
	b := img.Bounds()
	dict["Filter"] = core.Name("DCTDecode")
	dict["Width"] = core.Int(b.Dx())
	dict["Height"] = core.Int(b.Dy())
	dict["ColorSpace"] = colorSpace
	dict["BitsPerComponent"] = core.Int(8)
	return &core.Stream{Dict: dict, Data: buf.Bytes()}, nil
}

// downsample scales img so its longest side is at most maxDim pixels.
// Gray images stay gray; everything else becomes RGBA.
func downsample(img image.Image, maxDim int) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim <= 0 || (w <= maxDim && h <= maxDim) {
		return img
	}

	var nw, nh int
	if w >= h {
		nw = maxDim
		nh = max(1, (h*maxDim+w/2)/w)
	} else {
		nh = maxDim
		nw = max(1, (w*maxDim+h/2)/h)
	}
	rect := image.Rect(0, 0, nw, nh)

	var dst draw.Image
	if _, ok := img.(*image.Gray); ok {
		dst = image.NewGray(rect)
	} else {
		dst = image.NewRGBA(rect)
	}
	draw.CatmullRom.Scale(dst, rect, img, b, draw.Src, nil)
	return dst
}

// collectImages returns the distinct image streams reachable from page
// resources, including those of nested form XObjects, in object number
// order.
func collectImages(doc *document.Document) ([]core.IndirectRef, error) {
	leaves, err := doc.Pages()
	if err != nil {
		return nil, fmt.Errorf("failed to read page tree: %w", err)
	}

	c := &collector{
		doc:     doc,
		images:  make(map[int]core.IndirectRef),
		visited: make(map[int]bool),
	}
	for _, p := range leaves {
		res, err := p.Resources()
		if err != nil {
			return nil, fmt.Errorf("page %v: %w", p.Ref, err)
		}
		if err := c.visitResources(res); err != nil {
			return nil, err
		}
	}

	refs := make([]core.IndirectRef, 0, len(c.images))
	for _, ref := range c.images {
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Number < refs[j].Number })
	return refs, nil
}

// countInline returns the number of inline images painted by doc's pages.
// Pages whose content cannot be decoded count as none.
func countInline(doc *document.Document) int {
	leaves, err := doc.Pages()
	if err != nil {
		return 0
	}
	n := 0
	for _, p := range leaves {
		streams, err := p.Contents()
		if err != nil {
			continue
		}
		ops, err := contentstream.ParseStreams(streams)
		if err != nil {
			continue
		}
		n += len(contentstream.InlineImages(ops))
	}
	return n
}

type collector struct {
	doc     *document.Document
	images  map[int]core.IndirectRef
	visited map[int]bool // forms, patterns and Type3 fonts already walked
}

// visitResources collects the image XObjects reachable from res, following
// form XObjects, tiling patterns and Type3 glyph procedures.
func (c *collector) visitResources(res core.Dict) error {
	obj, err := c.doc.Resolve(res.Get("XObject"))
	if err != nil {
		return fmt.Errorf("failed to resolve /XObject: %w", err)
	}
	if xobjects, ok := obj.(core.Dict); ok {
		for _, name := range xobjects.Keys() {
			ref, ok := xobjects.Get(name).(core.IndirectRef)
			if !ok {
				continue
			}
			target, err := c.doc.ResolveReference(ref)
			if err != nil {
				return fmt.Errorf("XObject /%s: %w", name, err)
			}
			stream, ok := target.(*core.Stream)
			if !ok {
				continue
			}

			switch subtype, _ := stream.Dict.GetName("Subtype"); subtype {
			case "Image":
				c.images[ref.Number] = ref
			case "Form":
				if err := c.visitNested(ref, stream.Dict); err != nil {
					return fmt.Errorf("form XObject /%s: %w", name, err)
				}
			}
		}
	}

	if err := c.visitCategory(res, "Pattern", func(core.Dict) bool { return true }); err != nil {
		return err
	}
	return c.visitCategory(res, "Font", func(d core.Dict) bool {
		subtype, _ := d.GetName("Subtype")
		return subtype == "Type3"
	})
}

// visitCategory walks the resource dictionaries of the entries in the
// res category accepted by keep.
func (c *collector) visitCategory(res core.Dict, category string, keep func(core.Dict) bool) error {
	obj, err := c.doc.Resolve(res.Get(category))
	if err != nil {
		return fmt.Errorf("failed to resolve /%s: %w", category, err)
	}
	entries, ok := obj.(core.Dict)
	if !ok {
		return nil
	}
	for _, name := range entries.Keys() {
		entry := entries.Get(name)
		target, err := c.doc.Resolve(entry)
		if err != nil {
			return fmt.Errorf("%s /%s: %w", category, name, err)
		}
		var d core.Dict
		switch t := target.(type) {
		case *core.Stream:
			d = t.Dict
		case core.Dict:
			d = t
		default:
			continue
		}
		if !keep(d) {
			continue
		}
		ref, _ := entry.(core.IndirectRef)
		if err := c.visitNested(ref, d); err != nil {
			return fmt.Errorf("%s /%s: %w", category, name, err)
		}
	}
	return nil
}

// visitNested follows the /Resources of a form, pattern or font once per
// object. Direct objects (zero ref) cannot form cycles and are always walked.
func (c *collector) visitNested(ref core.IndirectRef, d core.Dict) error {
	if ref.Number > 0 {
		if c.visited[ref.Number] {
			return nil
		}
		c.visited[ref.Number] = true
	}
	obj, err := c.doc.Resolve(d.Get("Resources"))
	if err != nil {
		return err
	}
	if res, ok := obj.(core.Dict); ok {
		return c.visitResources(res)
	}
	return nil
}
