package docx

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const wordNS = `xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"`

// createTestDOCX builds a minimal DOCX in memory. parts maps extra archive
// members (styles, numbering, core properties) to their content.
func createTestDOCX(t *testing.T, body string, parts map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	files := map[string]string{
		"[Content_Types].xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
  <Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
  <Default Extension="xml" ContentType="application/xml"/>
  <Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`,
		"_rels/.rels": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
  <Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`,
		"word/document.xml": `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:document ` + wordNS + `><w:body>` + body + `</w:body></w:document>`,
	}
	for name, content := range parts {
		files[name] = content
	}
	for name, content := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("creating %s: %v", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing archive: %v", err)
	}
	return buf.Bytes()
}

func para(text string) string {
	return `<w:p><w:r><w:t xml:space="preserve">` + text + `</w:t></w:r></w:p>`
}

func TestNewReader_Text(t *testing.T) {
	body := para("First paragraph.") +
		`<w:p><w:r><w:t>Split </w:t></w:r><w:r><w:t>across</w:t><w:tab/><w:t>runs</w:t></w:r></w:p>` +
		`<w:p><w:hyperlink><w:r><w:t>linked</w:t></w:r></w:hyperlink><w:r><w:t> text</w:t><w:br/><w:t>next line</w:t></w:r></w:p>`
	r, err := NewReader(createTestDOCX(t, body, nil))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	want := "First paragraph.\nSplit across\truns\nlinked text\nnext line"
	if got := r.Text(); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
	if n := len(r.Blocks()); n != 3 {
		t.Errorf("expected 3 blocks, got %d", n)
	}
}

func TestNewReader_BlockOrder(t *testing.T) {
	body := para("before") +
		`<w:tbl><w:tr><w:tc><w:p><w:r><w:t>A1</w:t></w:r></w:p></w:tc>` +
		`<w:tc><w:tcPr><w:gridSpan w:val="2"/></w:tcPr><w:p><w:r><w:t>B1</w:t></w:r></w:p></w:tc></w:tr></w:tbl>` +
		`<w:sdt><w:sdtContent>` + para("inside content control") + `</w:sdtContent></w:sdt>` +
		para("after") +
		`<w:sectPr/>`
	r, err := NewReader(createTestDOCX(t, body, nil))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	blocks := r.Blocks()
	if len(blocks) != 4 {
		t.Fatalf("expected 4 blocks, got %d", len(blocks))
	}
	if blocks[0].Paragraph == nil || blocks[1].Table == nil || blocks[2].Paragraph == nil || blocks[3].Paragraph == nil {
		t.Fatalf("unexpected block kinds: %+v", blocks)
	}
	row := blocks[1].Table.Rows[0]
	if len(row) != 2 || row[1].Span != 2 || row[1].Paragraphs[0].Text() != "B1" {
		t.Errorf("unexpected table row: %+v", row)
	}
	if got := blocks[2].Paragraph.Text(); got != "inside content control" {
		t.Errorf("expected content control text, got %q", got)
	}
}

func TestNewReader_RunFormatting(t *testing.T) {
	body := `<w:p>` +
		`<w:r><w:rPr><w:b/></w:rPr><w:t>bold</w:t></w:r>` +
		`<w:r><w:rPr><w:b w:val="0"/><w:i/></w:rPr><w:t>italic</w:t></w:r>` +
		`<w:r><w:rPr><w:u w:val="single"/><w:strike/></w:rPr><w:t>marked</w:t></w:r>` +
		`<w:r><w:rPr><w:u w:val="none"/></w:rPr><w:t>plain</w:t></w:r>` +
		`</w:p>`
	r, err := NewReader(createTestDOCX(t, body, nil))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	want := []Run{
		{Text: "bold", Bold: true},
		{Text: "italic", Italic: true},
		{Text: "marked", Underline: true, Strike: true},
		{Text: "plain"},
	}
	got := r.Blocks()[0].Paragraph.Runs
	if len(got) != len(want) {
		t.Fatalf("expected %d runs, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("run %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
}

func TestNewReader_HeadingDetection(t *testing.T) {
	styles := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles ` + wordNS + `>
  <w:style w:type="paragraph" w:styleId="Titre1"><w:name w:val="heading 1"/></w:style>
  <w:style w:type="paragraph" w:styleId="Custom"><w:name w:val="Custom"/><w:pPr><w:outlineLvl w:val="2"/></w:pPr></w:style>
  <w:style w:type="paragraph" w:styleId="Derived"><w:name w:val="Derived"/><w:basedOn w:val="Heading2"/></w:style>
  <w:style w:type="paragraph" w:styleId="Loop"><w:name w:val="Loop"/><w:basedOn w:val="Loop"/></w:style>
</w:styles>`

	tests := []struct {
		style string
		want  int
	}{
		{"Heading1", 1},
		{"heading4", 4},
		{"Title", 1},
		{"Titre1", 1},
		{"Custom", 3},
		{"Derived", 2},
		{"Loop", 0},
		{"Normal", 0},
	}

	var body strings.Builder
	for _, tt := range tests {
		body.WriteString(`<w:p><w:pPr><w:pStyle w:val="` + tt.style + `"/></w:pPr><w:r><w:t>x</w:t></w:r></w:p>`)
	}
	r, err := NewReader(createTestDOCX(t, body.String(), map[string]string{"word/styles.xml": styles}))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	blocks := r.Blocks()
	for i, tt := range tests {
		t.Run(tt.style, func(t *testing.T) {
			if got := blocks[i].Paragraph.Heading; got != tt.want {
				t.Errorf("expected heading level %d, got %d", tt.want, got)
			}
		})
	}
}

const testNumbering = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:numbering ` + wordNS + `>
  <w:abstractNum w:abstractNumId="0">
    <w:lvl w:ilvl="0"><w:start w:val="1"/><w:numFmt w:val="bullet"/></w:lvl>
    <w:lvl w:ilvl="1"><w:start w:val="1"/><w:numFmt w:val="bullet"/></w:lvl>
  </w:abstractNum>
  <w:abstractNum w:abstractNumId="1">
    <w:lvl w:ilvl="0"><w:start w:val="3"/><w:numFmt w:val="decimal"/></w:lvl>
    <w:lvl w:ilvl="1"><w:start w:val="1"/><w:numFmt w:val="lowerLetter"/></w:lvl>
  </w:abstractNum>
  <w:num w:numId="1"><w:abstractNumId w:val="0"/></w:num>
  <w:num w:numId="2"><w:abstractNumId w:val="1"/></w:num>
</w:numbering>`

func listPara(numID, ilvl, text string) string {
	return `<w:p><w:pPr><w:numPr><w:ilvl w:val="` + ilvl + `"/><w:numId w:val="` + numID + `"/></w:numPr></w:pPr>` +
		`<w:r><w:t>` + text + `</w:t></w:r></w:p>`
}

func TestNewReader_Lists(t *testing.T) {
	body := listPara("1", "0", "bullet") +
		listPara("2", "1", "nested letter") +
		listPara("2", "0", "third") +
		listPara("0", "0", "numbering off") +
		listPara("9", "0", "unknown num")
	r, err := NewReader(createTestDOCX(t, body, map[string]string{"word/numbering.xml": testNumbering}))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	tests := []struct {
		kind  ListKind
		level int
		start int
	}{
		{Bulleted, 0, 1},
		{Numbered, 1, 1},
		{Numbered, 0, 3},
		{NotList, 0, 0},
		{Bulleted, 0, 1},
	}
	blocks := r.Blocks()
	for i, tt := range tests {
		p := blocks[i].Paragraph
		if p.List != tt.kind || p.ListLevel != tt.level || p.ListStart != tt.start {
			t.Errorf("paragraph %d (%s): expected %v/%d/%d, got %v/%d/%d",
				i, p.Text(), tt.kind, tt.level, tt.start, p.List, p.ListLevel, p.ListStart)
		}
	}
}

func TestNewReader_Title(t *testing.T) {
	core := `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/">
  <dc:title> Quarterly Report </dc:title>
</cp:coreProperties>`
	r, err := NewReader(createTestDOCX(t, para("x"), map[string]string{"docProps/core.xml": core}))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	if r.Title() != "Quarterly Report" {
		t.Errorf("expected title %q, got %q", "Quarterly Report", r.Title())
	}
}

func TestNewReader_Errors(t *testing.T) {
	t.Run("not a zip", func(t *testing.T) {
		if _, err := NewReader([]byte("not a zip file")); err == nil {
			t.Error("expected error, got nil")
		}
	})

	t.Run("missing document part", func(t *testing.T) {
		var buf bytes.Buffer
		zw := zip.NewWriter(&buf)
		w, _ := zw.Create("[Content_Types].xml")
		w.Write([]byte("<Types/>"))
		zw.Close()

		if _, err := NewReader(buf.Bytes()); !errors.Is(err, ErrNotDOCX) {
			t.Errorf("expected ErrNotDOCX, got %v", err)
		}
	})

	t.Run("malformed document", func(t *testing.T) {
		if _, err := NewReader(createTestDOCX(t, "<w:p>", nil)); err == nil {
			t.Error("expected error, got nil")
		}
	})
}

func TestOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.docx")
	if err := os.WriteFile(path, createTestDOCX(t, para("from disk"), nil), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	r, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if r.Text() != "from disk" {
		t.Errorf("expected %q, got %q", "from disk", r.Text())
	}

	if _, err := Open(filepath.Join(t.TempDir(), "missing.docx")); err == nil {
		t.Error("expected error for missing file")
	}
}
