// Package docx reads Word (Office Open XML) documents into a small block
// model and renders it as HTML.
package docx

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// maxPartSize bounds how much of a single archive part is inflated.
const maxPartSize = 64 << 20

// ErrNotDOCX is returned when the archive has no main document part.
var ErrNotDOCX = errors.New("not a DOCX document")

// Reader holds a parsed document.
type Reader struct {
	zr        *zip.Reader
	styles    map[string]styleXML
	numbering *numberingResolver
	title     string
	blocks    []Block
}

// Block is a top-level paragraph or table.
type Block struct {
	Paragraph *Paragraph
	Table     *Table
}

// Paragraph is a run of formatted text with its resolved role.
type Paragraph struct {
	StyleID   string
	Heading   int // 1-9, 0 for body text
	List      ListKind
	ListLevel int
	ListStart int
	Align     string
	Runs      []Run
}

// Text returns the concatenated run text.
func (p *Paragraph) Text() string {
	var sb strings.Builder
	for _, r := range p.Runs {
		sb.WriteString(r.Text)
	}
	return sb.String()
}

// Run is text sharing one set of character properties.
type Run struct {
	Text      string
	Bold      bool
	Italic    bool
	Underline bool
	Strike    bool
}

// Table is a grid of cells. Merged cells carry their column span.
type Table struct {
	Rows [][]Cell
}

type Cell struct {
	Span       int
	Paragraphs []Paragraph
}

// Open reads the DOCX file at filename.
func Open(filename string) (*Reader, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return NewReader(data)
}

// NewReader parses a DOCX document held in memory.
func NewReader(data []byte) (*Reader, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening ZIP archive: %w", err)
	}
	r := &Reader{zr: zr, styles: make(map[string]styleXML)}

	raw, err := r.part("word/document.xml")
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, ErrNotDOCX
	}
	var doc documentXML
	if err := xml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parsing document: %w", err)
	}

	// styles, numbering and core properties are optional
	var styles stylesXML
	if err := r.unmarshalPart("word/styles.xml", &styles); err == nil {
		for _, s := range styles.Styles {
			r.styles[s.StyleID] = s
		}
	}
	var numbering numberingXML
	if err := r.unmarshalPart("word/numbering.xml", &numbering); err == nil {
		r.numbering = newNumberingResolver(&numbering)
	} else {
		r.numbering = newNumberingResolver(nil)
	}
	var props corePropertiesXML
	if err := r.unmarshalPart("docProps/core.xml", &props); err == nil {
		r.title = strings.TrimSpace(props.Title)
	}

	for _, b := range doc.Body.Blocks {
		switch {
		case b.Paragraph != nil:
			p := r.paragraph(b.Paragraph)
			r.blocks = append(r.blocks, Block{Paragraph: &p})
		case b.Table != nil:
			r.blocks = append(r.blocks, Block{Table: r.table(b.Table)})
		}
	}
	return r, nil
}

// Blocks returns the document body in order.
func (r *Reader) Blocks() []Block {
	return r.blocks
}

// Title returns the document title from its core properties.
func (r *Reader) Title() string {
	return r.title
}

// Text returns the plain text of the document, one paragraph per line and
// table cells separated by tabs.
func (r *Reader) Text() string {
	var lines []string
	for _, b := range r.blocks {
		switch {
		case b.Paragraph != nil:
			lines = append(lines, b.Paragraph.Text())
		case b.Table != nil:
			for _, row := range b.Table.Rows {
				cells := make([]string, len(row))
				for i, c := range row {
					texts := make([]string, len(c.Paragraphs))
					for j := range c.Paragraphs {
						texts[j] = c.Paragraphs[j].Text()
					}
					cells[i] = strings.Join(texts, " ")
				}
				lines = append(lines, strings.Join(cells, "\t"))
			}
		}
	}
	return strings.Join(lines, "\n")
}

// part returns the inflated content of the named archive member, or nil if
// the archive has no such member.
func (r *Reader) part(name string) ([]byte, error) {
	for _, f := range r.zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", name, err)
		}
		defer rc.Close()
		data, err := io.ReadAll(io.LimitReader(rc, maxPartSize+1))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		if len(data) > maxPartSize {
			return nil, fmt.Errorf("%s exceeds %d bytes", name, maxPartSize)
		}
		return data, nil
	}
	return nil, nil
}

func (r *Reader) unmarshalPart(name string, v any) error {
	data, err := r.part(name)
	if err != nil {
		return err
	}
	if data == nil {
		return fmt.Errorf("file not found: %s", name)
	}
	return xml.Unmarshal(data, v)
}

func (r *Reader) paragraph(p *paragraphXML) Paragraph {
	props := p.Properties
	out := Paragraph{
		StyleID: props.Style.Val,
		Align:   props.Justify.Val,
	}
	out.Heading = r.headingLevel(out.StyleID)
	if out.Heading == 0 {
		if lvl, ok := parseOutlineLevel(props.OutlineLvl.Val); ok {
			out.Heading = lvl + 1
		}
	}

	if ilvl, err := strconv.Atoi(props.NumPr.ILvl.Val); err == nil && ilvl >= 0 {
		out.ListLevel = ilvl
	}
	if out.Heading == 0 {
		l := r.numbering.resolve(props.NumPr.NumID.Val, out.ListLevel)
		out.List, out.ListStart = l.kind, l.start
	}
	if out.List == NotList {
		out.ListLevel = 0
	}

	for _, run := range p.Runs {
		if run.Text == "" {
			continue
		}
		rp := run.Properties
		out.Runs = append(out.Runs, Run{
			Text:      run.Text,
			Bold:      rp.Bold.on(),
			Italic:    rp.Italic.on(),
			Underline: rp.Underline != nil && rp.Underline.Val != "none",
			Strike:    rp.Strike.on(),
		})
	}
	return out
}

func (r *Reader) table(t *tableXML) *Table {
	out := &Table{}
	for _, row := range t.Rows {
		cells := make([]Cell, 0, len(row.Cells))
		for _, c := range row.Cells {
			cell := Cell{Span: 1}
			if n, err := strconv.Atoi(c.Properties.GridSpan.Val); err == nil && n > 1 {
				cell.Span = n
			}
			for i := range c.Paragraphs {
				cell.Paragraphs = append(cell.Paragraphs, r.paragraph(&c.Paragraphs[i]))
			}
			cells = append(cells, cell)
		}
		out.Rows = append(out.Rows, cells)
	}
	return out
}

// headingLevel resolves a paragraph style to a heading level, following
// basedOn links. Built-in heading and title styles are recognized by ID.
func (r *Reader) headingLevel(styleID string) int {
	seen := make(map[string]bool)
	for styleID != "" && !seen[styleID] {
		seen[styleID] = true
		id := strings.ToLower(styleID)
		if id == "title" {
			return 1
		}
		if rest, ok := strings.CutPrefix(id, "heading"); ok {
			if n, err := strconv.Atoi(rest); err == nil && n >= 1 && n <= 9 {
				return n
			}
		}
		style, ok := r.styles[styleID]
		if !ok {
			return 0
		}
		if lvl, ok := parseOutlineLevel(style.PPr.OutlineLvl.Val); ok {
			return lvl + 1
		}
		name := strings.ToLower(style.Name.Val)
		if rest, ok := strings.CutPrefix(name, "heading "); ok {
			if n, err := strconv.Atoi(rest); err == nil && n >= 1 && n <= 9 {
				return n
			}
		}
		styleID = style.BasedOn.Val
	}
	return 0
}

// parseOutlineLevel parses a 0-based outline level. Level 9 means body text.
func parseOutlineLevel(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 8 {
		return 0, false
	}
	return n, true
}
