package contentstream

import (
	"fmt"

	"github.com/Thekiidd/pdfpulse/core"
)

// ParseStreams decodes and parses streams as one program, the way a page
// with an array of /Contents is painted.
func ParseStreams(streams []*core.Stream) ([]Operation, error) {
	var data []byte
	for i, s := range streams {
		decoded, err := s.Decode()
		if err != nil {
			return nil, fmt.Errorf("content stream %d: %w", i, err)
		}
		data = append(data, decoded...)
		data = append(data, '\n')
	}
	return NewParser(data).Parse()
}

// XObjects returns the names painted with Do, in order of first use.
func XObjects(ops []Operation) []core.Name {
	var names []core.Name
	seen := map[core.Name]bool{}
	for _, op := range ops {
		if op.Operator != "Do" || len(op.Operands) != 1 {
			continue
		}
		name, ok := op.Operands[0].(core.Name)
		if !ok || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// InlineImages returns the inline images in ops.
func InlineImages(ops []Operation) []*InlineImage {
	var images []*InlineImage
	for _, op := range ops {
		if op.Image != nil {
			images = append(images, op.Image)
		}
	}
	return images
}
