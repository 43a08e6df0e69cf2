package pdfpulse

import (
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Thekiidd/pdfpulse/compose"
	"github.com/Thekiidd/pdfpulse/compress"
	"github.com/Thekiidd/pdfpulse/htmldoc"
	"github.com/Thekiidd/pdfpulse/rasterimport"
	"github.com/Thekiidd/pdfpulse/validate"
)

// jobOptions holds the configuration of a Job.
type jobOptions struct {
	maxFileSize  int64
	pageWidth    float64
	pageHeight   float64
	quality      int
	maxDimension int

	// Serializer
	compressStreams bool

	rasterizer rasterimport.Rasterizer // HTML to bitmap
	logger     logrus.FieldLogger
	now        func() time.Time
}

// discard is the logger used when none is configured.
var discard = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}()

// defaultOptions returns the default job options.
func defaultOptions() jobOptions {
	return jobOptions{
		maxFileSize:     validate.DefaultMaxFileSize,
		pageWidth:       compose.DefaultPageWidth,
		pageHeight:      compose.DefaultPageHeight,
		quality:         compress.DefaultQuality,
		maxDimension:    0,
		compressStreams: true,
		rasterizer:      htmldoc.NewRasterizer(),
		logger:          discard,
		now:             time.Now,
	}
}
