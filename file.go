package pdfpulse

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Thekiidd/pdfpulse/format"
	"github.com/Thekiidd/pdfpulse/validate"
)

// File is one input: its name, declared media type and content.
type File struct {
	Name      string
	MediaType string
	Data      []byte
}

// ReadFile loads a file from disk and declares its media type from its
// content, falling back to its extension.
func ReadFile(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("reading input: %w", err)
	}
	name := filepath.Base(path)
	return File{
		Name:      name,
		MediaType: format.DetectBytes(name, data).MediaType(),
		Data:      data,
	}, nil
}

// meta returns the declared metadata the validation gate checks.
func (f File) meta() validate.File {
	return validate.File{Name: f.Name, MediaType: f.MediaType, Size: int64(len(f.Data))}
}
