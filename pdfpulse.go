// Package pdfpulse turns user files into PDFs: it merges PDFs, compresses
// the images inside a PDF, lays images out one per page and converts Word
// documents to image-only PDFs.
//
// Every operation is a Job configured with a fluent chain and run once:
//
//	res, err := pdfpulse.Merge(a, b).
//	    OnSuccess(func(ev pdfpulse.Event) { count++ }).
//	    Run(ctx)
//	if err != nil {
//	    // handle error
//	}
//	os.WriteFile(res.Filename, res.Data, 0o644)
//
// Inputs are validated before anything is parsed. Each configuration method
// returns a new Job, so a configured Job can be reused as a template.
//
// Errors are the typed errors of the pdferr package. The lower-level
// reader, merge, compose, compress and writer packages are available for
// callers that work on document graphs directly.
package pdfpulse

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Thekiidd/pdfpulse/compose"
	"github.com/Thekiidd/pdfpulse/compress"
	"github.com/Thekiidd/pdfpulse/core"
	"github.com/Thekiidd/pdfpulse/document"
	"github.com/Thekiidd/pdfpulse/docx"
	"github.com/Thekiidd/pdfpulse/merge"
	"github.com/Thekiidd/pdfpulse/pdferr"
	"github.com/Thekiidd/pdfpulse/rasterimport"
	"github.com/Thekiidd/pdfpulse/reader"
	"github.com/Thekiidd/pdfpulse/validate"
	"github.com/Thekiidd/pdfpulse/writer"
)

// Operation names a job kind. It is also the prefix of the output filename.
type Operation = validate.Operation

const (
	OpMerge    = validate.Merge
	OpCompress = validate.Compress
	OpImages   = validate.Images
	OpDOCX     = validate.DOCX
)

// Producer is written to the /Producer entry of every output.
const Producer = "pdfpulse"

// Filename returns the output name for op finished at t:
// {op}_{YYYY-MM-DDTHH-MM-SS}.pdf in UTC.
func Filename(op Operation, t time.Time) string {
	return fmt.Sprintf("%s_%s.pdf", op, t.UTC().Format("2006-01-02T15-04-05"))
}

// Result is the output of a successful job.
type Result struct {
	Operation Operation
	Filename  string
	Data      []byte
	Pages     int
	// Report is set for compress jobs.
	Report *compress.Report
}

// Event is delivered to success handlers once a job has produced its
// output.
type Event struct {
	Operation Operation
	Filename  string
	Pages     int
	Bytes     int
	Time      time.Time
}

// Job is one configured operation over a set of input files.
type Job struct {
	op        Operation
	files     []File
	options   jobOptions
	onSuccess []func(Event)
}

// New creates a job for op.
func New(op Operation, files ...File) *Job {
	return &Job{
		op:      op,
		files:   append([]File(nil), files...),
		options: defaultOptions(),
	}
}

// Merge creates a job concatenating the pages of the given PDFs in order.
func Merge(files ...File) *Job { return New(OpMerge, files...) }

// Compress creates a job re-encoding the images of one PDF.
func Compress(file File) *Job { return New(OpCompress, file) }

// Images creates a job placing each image on its own page.
func Images(files ...File) *Job { return New(OpImages, files...) }

// DOCX creates a job converting a Word document to a single-page image PDF.
func DOCX(file File) *Job { return New(OpDOCX, file) }

// clone creates a copy of the Job so chained calls never share state.
func (j *Job) clone() *Job {
	return &Job{
		op:        j.op,
		files:     append([]File(nil), j.files...),
		options:   j.options,
		onSuccess: append(([]func(Event))(nil), j.onSuccess...),
	}
}

// Operation returns the job's operation.
func (j *Job) Operation() Operation {
	return j.op
}

// MaxFileSize sets the per-file byte ceiling.
func (j *Job) MaxFileSize(n int64) *Job {
	c := j.clone()
	c.options.maxFileSize = n
	return c
}

// PageSize sets the page size in points for image pages.
func (j *Job) PageSize(width, height float64) *Job {
	c := j.clone()
	c.options.pageWidth, c.options.pageHeight = width, height
	return c
}

// Quality sets the JPEG quality for compression, 1 to 100.
func (j *Job) Quality(q int) *Job {
	c := j.clone()
	c.options.quality = q
	return c
}

// MaxDimension caps the longest side of re-encoded images in pixels.
func (j *Job) MaxDimension(px int) *Job {
	c := j.clone()
	c.options.maxDimension = px
	return c
}

// CompressStreams controls Flate compression of unfiltered streams when
// the output is written.
func (j *Job) CompressStreams(enabled bool) *Job {
	c := j.clone()
	c.options.compressStreams = enabled
	return c
}

// Rasterizer replaces the HTML painter used by DOCX jobs.
func (j *Job) Rasterizer(r rasterimport.Rasterizer) *Job {
	c := j.clone()
	c.options.rasterizer = r
	return c
}

// Logger sets the logger. Jobs log nothing by default.
func (j *Job) Logger(l logrus.FieldLogger) *Job {
	c := j.clone()
	if l == nil {
		l = discard
	}
	c.options.logger = l
	return c
}

// Clock sets the time source used for the filename and document dates.
func (j *Job) Clock(now func() time.Time) *Job {
	c := j.clone()
	c.options.now = now
	return c
}

// OnSuccess registers fn to be called after a successful run. Handlers run
// in registration order and are not called when the job fails.
func (j *Job) OnSuccess(fn func(Event)) *Job {
	c := j.clone()
	c.onSuccess = append(c.onSuccess, fn)
	return c
}

// Run validates the inputs, performs the operation and serializes the
// result. Nothing is produced and no handler runs on failure.
func (j *Job) Run(ctx context.Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := j.options.logger.WithFields(logrus.Fields{"operation": j.op, "files": len(j.files)})

	meta := make([]validate.File, len(j.files))
	for i, f := range j.files {
		meta[i] = f.meta()
	}
	if err := validate.NewGate(j.options.maxFileSize).Batch(j.op, meta); err != nil {
		log.WithError(err).Info("batch rejected")
		return nil, err
	}

	start := j.options.now()
	res := &Result{Operation: j.op}
	doc, err := j.build(ctx, res, log)
	if err != nil {
		log.WithError(err).Warn("operation failed")
		return nil, err
	}

	stamp(doc, start)
	if res.Pages, err = doc.PageCount(); err != nil {
		return nil, fmt.Errorf("counting pages: %w", err)
	}
	if res.Data, err = writer.Bytes(doc, writer.WithCompressStreams(j.options.compressStreams)); err != nil {
		return nil, fmt.Errorf("writing output: %w", err)
	}
	res.Filename = Filename(j.op, start)

	log.WithFields(logrus.Fields{
		"filename": res.Filename,
		"pages":    res.Pages,
		"bytes":    len(res.Data),
	}).Info("operation finished")

	ev := Event{Operation: j.op, Filename: res.Filename, Pages: res.Pages, Bytes: len(res.Data), Time: start}
	for _, fn := range j.onSuccess {
		fn(ev)
	}
	return res, nil
}

func (j *Job) build(ctx context.Context, res *Result, log logrus.FieldLogger) (*document.Document, error) {
	switch j.op {
	case OpMerge:
		data := make([][]byte, len(j.files))
		for i, f := range j.files {
			data[i] = f.Data
		}
		return merge.Files(data)

	case OpCompress:
		doc, err := reader.Parse(j.files[0].Data)
		if err != nil {
			return nil, err
		}
		report, err := compress.Transform(doc, compress.Options{
			Quality:      j.options.quality,
			MaxDimension: j.options.maxDimension,
		})
		if err != nil {
			return nil, err
		}
		for _, skip := range report.Skipped {
			log.WithFields(logrus.Fields{"object": skip.Object}).WithError(skip.Err).Warn("image left unchanged")
		}
		log.WithFields(logrus.Fields{
			"images":       report.Images,
			"recompressed": report.Recompressed,
			"inline":       report.Inline,
			"saved":        report.Saved(),
		}).Debug("images re-encoded")
		res.Report = report
		return doc, nil

	case OpImages:
		inputs := make([]compose.Input, len(j.files))
		for i, f := range j.files {
			inputs[i] = compose.Input{Name: f.Name, MediaType: f.MediaType, Data: f.Data}
		}
		return compose.Compose(inputs, compose.Options{
			PageWidth:  j.options.pageWidth,
			PageHeight: j.options.pageHeight,
		})

	case OpDOCX:
		return rasterimport.Import(ctx, docxRasterizer(j.options.rasterizer), bytes.NewReader(j.files[0].Data))
	}
	return nil, &pdferr.ValidationError{Reason: pdferr.ReasonOperation, Operation: string(j.op)}
}

// docxRasterizer converts a Word document to HTML and hands the markup to
// painter.
func docxRasterizer(painter rasterimport.Rasterizer) rasterimport.Rasterizer {
	return rasterimport.RasterizerFunc(func(ctx context.Context, src io.Reader) (image.Image, error) {
		data, err := io.ReadAll(src)
		if err != nil {
			return nil, err
		}
		r, err := docx.NewReader(data)
		if err != nil {
			return nil, fmt.Errorf("reading DOCX: %w", err)
		}
		var markup bytes.Buffer
		if err := r.WriteHTML(&markup); err != nil {
			return nil, fmt.Errorf("converting DOCX to HTML: %w", err)
		}
		return painter.Rasterize(ctx, &markup)
	})
}

// stamp records the producer and dates in the document's /Info
// dictionary, creating it when missing.
func stamp(doc *document.Document, t time.Time) {
	info := core.Dict{}
	if old, err := doc.InfoDict(); err == nil {
		for k, v := range old {
			info[k] = v
		}
	}
	date := core.String(t.UTC().Format("D:20060102150405Z"))
	info["Producer"] = core.String(Producer)
	info["ModDate"] = date
	if !info.Has("CreationDate") {
		info["CreationDate"] = date
	}

	if doc.Info.Number == 0 {
		doc.Info = doc.Add(info)
		return
	}
	doc.Set(doc.Info, info)
}
