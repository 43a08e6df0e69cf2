package reader

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/Thekiidd/pdfpulse/core"
	"github.com/Thekiidd/pdfpulse/pdferr"
	"github.com/Thekiidd/pdfpulse/resolver"
)

// buildPDF assembles a file from object bodies (object i+1 gets bodies[i])
// with a correct classic xref table.
func buildPDF(header string, bodies []string, trailer string) []byte {
	var buf bytes.Buffer
	buf.WriteString(header)
	offsets := make([]int, len(bodies))
	for i, body := range bodies {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, body)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(bodies)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n%s\nstartxref\n%d\n%%%%EOF\n", trailer, xref)
	return buf.Bytes()
}

// twoPages is a catalog, a page tree and two pages sharing one content
// stream, followed by an info dictionary.
var twoPages = []string{
	"<< /Type /Catalog /Pages 2 0 R >>",
	"<< /Type /Pages /Kids [3 0 R 4 0 R] /Count 2 /MediaBox [0 0 300 400] >>",
	"<< /Type /Page /Parent 2 0 R /Contents 5 0 R >>",
	"<< /Type /Page /Parent 2 0 R /Contents 5 0 R /Rotate 90 >>",
	"<< /Length 9 >>\nstream\n0 0 m S Q\nendstream",
	"<< /Title (Two Pages) >>",
}

func TestParse(t *testing.T) {
	data := buildPDF("%PDF-1.4\n", twoPages, "<< /Size 7 /Root 1 0 R /Info 6 0 R >>")
	doc, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if doc.Version != core.V1_4 {
		t.Errorf("expected version 1.4, got %s", doc.Version)
	}
	if n, _ := doc.PageCount(); n != 2 {
		t.Fatalf("expected 2 pages, got %d", n)
	}

	pgs, err := doc.Pages()
	if err != nil {
		t.Fatalf("Pages: %v", err)
	}
	box, _ := pgs[1].MediaBox()
	if diff := cmp.Diff([]float64{0, 0, 300, 400}, box); diff != "" {
		t.Errorf("inherited MediaBox mismatch (-want +got):\n%s", diff)
	}
	if pgs[1].Rotate() != 90 {
		t.Errorf("expected rotate 90, got %d", pgs[1].Rotate())
	}

	info, err := doc.InfoDict()
	if err != nil {
		t.Fatalf("InfoDict: %v", err)
	}
	if title, _ := info.GetString("Title"); title != "Two Pages" {
		t.Errorf("unexpected title %q", title)
	}
}

func TestParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.pdf")
	data := buildPDF("%PDF-1.4\n", twoPages, "<< /Size 7 /Root 1 0 R >>")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	doc, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if n, _ := doc.PageCount(); n != 2 {
		t.Errorf("expected 2 pages, got %d", n)
	}

	if _, err := ParseFile(filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestParseReader(t *testing.T) {
	data := buildPDF("%PDF-1.4\n", twoPages, "<< /Size 7 /Root 1 0 R >>")
	doc, err := ParseReader(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ParseReader: %v", err)
	}
	if doc.Root.Number != 1 {
		t.Errorf("expected root 1, got %d", doc.Root.Number)
	}
}

func TestParseHeader(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    core.Version
		shift   int64
		wantErr bool
	}{
		{"plain", "%PDF-1.7\n", core.V1_7, 0, false},
		{"CRLF", "%PDF-1.3\r\n", core.Version{Major: 1, Minor: 3}, 0, false},
		{"leading junk", strings.Repeat("x", 100) + "%PDF-1.5\n", core.Version{Major: 1, Minor: 5}, 100, false},
		{"beyond window", strings.Repeat("x", 1100) + "%PDF-1.5\n", core.Version{}, 0, true},
		{"missing", "hello world", core.Version{}, 0, true},
		{"bad version", "%PDF-abc\n", core.Version{}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, shift, err := parseHeader([]byte(tt.input))
			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error=%v, got %v", tt.wantErr, err)
			}
			if v != tt.want || shift != tt.shift {
				t.Errorf("expected %s at %d, got %s at %d", tt.want, tt.shift, v, shift)
			}
		})
	}
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"no header", []byte("this is not a pdf")},
		{"empty", nil},
		{"encrypted", buildPDF("%PDF-1.4\n", twoPages, "<< /Size 7 /Root 1 0 R /Encrypt 6 0 R >>")},
		{"no root", buildPDF("%PDF-1.4\n", twoPages, "<< /Size 7 >>")},
		{"page tree cycle", buildPDF("%PDF-1.4\n", []string{
			"<< /Type /Catalog /Pages 2 0 R >>",
			"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
			"<< /Type /Pages /Kids [2 0 R] /Count 1 >>",
		}, "<< /Size 4 /Root 1 0 R >>")},
		{"catalog not a dictionary", buildPDF("%PDF-1.4\n", []string{"42"}, "<< /Size 2 /Root 1 0 R >>")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data)
			var perr *pdferr.ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("expected *pdferr.ParseError, got %v", err)
			}
		})
	}
}

func TestParseDanglingReference(t *testing.T) {
	bodies := append([]string(nil), twoPages...)
	bodies[3] = "<< /Type /Page /Parent 2 0 R /Contents 9 0 R >>"
	_, err := Parse(buildPDF("%PDF-1.4\n", bodies, "<< /Size 7 /Root 1 0 R >>"))

	var perr *pdferr.ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("expected *pdferr.ParseError, got %v", err)
	}
	var dangling *resolver.DanglingError
	if !errors.As(err, &dangling) {
		t.Fatalf("expected *resolver.DanglingError in chain, got %v", err)
	}
	if dangling.Ref.Number != 9 {
		t.Errorf("expected dangling 9 0 R, got %v", dangling.Ref)
	}
}

func TestParseDropsBrokenInfo(t *testing.T) {
	bodies := append([]string(nil), twoPages...)
	bodies[5] = "(not a dictionary)"
	doc, err := Parse(buildPDF("%PDF-1.4\n", bodies, "<< /Size 7 /Root 1 0 R /Info 6 0 R >>"))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Info.Number != 0 {
		t.Errorf("expected info to be dropped, got %v", doc.Info)
	}

	doc, err = Parse(buildPDF("%PDF-1.4\n", twoPages, "<< /Size 7 /Root 1 0 R /Info 40 0 R >>"))
	if err != nil {
		t.Fatalf("Parse with missing info: %v", err)
	}
	if doc.Info.Number != 0 {
		t.Errorf("expected missing info to be dropped, got %v", doc.Info)
	}
}

func TestParseCatalogVersion(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		catalog string
		want    core.Version
	}{
		{"override raises", "%PDF-1.4\n", "<< /Type /Catalog /Pages 2 0 R /Version /1.7 >>", core.V1_7},
		{"override never lowers", "%PDF-1.7\n", "<< /Type /Catalog /Pages 2 0 R /Version /1.4 >>", core.V1_7},
		{"malformed override ignored", "%PDF-1.4\n", "<< /Type /Catalog /Pages 2 0 R /Version /x >>", core.V1_4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bodies := append([]string(nil), twoPages...)
			bodies[0] = tt.catalog
			doc, err := Parse(buildPDF(tt.header, bodies, "<< /Size 7 /Root 1 0 R >>"))
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if doc.Version != tt.want {
				t.Errorf("expected %s, got %s", tt.want, doc.Version)
			}
		})
	}
}

func TestParseRebuildsBrokenXRef(t *testing.T) {
	data := buildPDF("%PDF-1.4\n", twoPages, "<< /Size 7 /Root 1 0 R >>")

	t.Run("missing table", func(t *testing.T) {
		broken := bytes.Replace(data, []byte("xref\n0 7"), []byte("junk\n0 7"), 1)
		doc, err := Parse(broken)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if n, _ := doc.PageCount(); n != 2 {
			t.Errorf("expected 2 pages, got %d", n)
		}
	})

	t.Run("wrong offsets", func(t *testing.T) {
		// shift every object down without touching the table
		broken := bytes.Replace(data, []byte("%PDF-1.4\n"), []byte("%PDF-1.4\n%padding\n"), 1)
		doc, err := Parse(broken)
		if err != nil {
			t.Fatalf("Parse: %v", err)
		}
		if n, _ := doc.PageCount(); n != 2 {
			t.Errorf("expected 2 pages, got %d", n)
		}
	})
}

func TestParseLeadingJunk(t *testing.T) {
	// offsets count from the header rather than the file start
	body := buildPDF("%PDF-1.4\n", twoPages, "<< /Size 7 /Root 1 0 R >>")
	data := append([]byte(strings.Repeat(" ", 64)), body...)
	doc, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n, _ := doc.PageCount(); n != 2 {
		t.Errorf("expected 2 pages, got %d", n)
	}
}

// buildCompressedPDF writes a 1.5 file whose page tree lives in an object
// stream indexed by an xref stream.
func buildCompressedPDF(t *testing.T) []byte {
	t.Helper()

	pagesBody := "<< /Type /Pages /Kids [4 0 R] /Count 1 >>"
	pageBody := "<< /Type /Page /Parent 3 0 R /MediaBox [0 0 100 100] /Contents 2 0 R >>"
	header := fmt.Sprintf("3 0 4 %d ", len(pagesBody)+1)
	objstm := header + pagesBody + " " + pageBody

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.5\n")
	offsets := make(map[int]int)
	offsets[1] = buf.Len()
	buf.WriteString("1 0 obj\n<< /Type /Catalog /Pages 3 0 R >>\nendobj\n")
	offsets[2] = buf.Len()
	buf.WriteString("2 0 obj\n<< /Length 3 >>\nstream\nq Q\nendstream\nendobj\n")
	offsets[5] = buf.Len()
	fmt.Fprintf(&buf, "5 0 obj\n<< /Type /ObjStm /N 2 /First %d /Length %d >>\nstream\n%s\nendstream\nendobj\n",
		len(header), len(objstm), objstm)
	offsets[6] = buf.Len()

	// /W [1 4 2]
	var rows bytes.Buffer
	row := func(kind byte, f2 uint32, f3 uint16) {
		rows.WriteByte(kind)
		_ = binary.Write(&rows, binary.BigEndian, f2)
		_ = binary.Write(&rows, binary.BigEndian, f3)
	}
	row(0, 0, 0xffff)
	row(1, uint32(offsets[1]), 0)
	row(1, uint32(offsets[2]), 0)
	row(2, 5, 0)
	row(2, 5, 1)
	row(1, uint32(offsets[5]), 0)
	row(1, uint32(offsets[6]), 0)

	fmt.Fprintf(&buf, "6 0 obj\n<< /Type /XRef /Size 7 /W [1 4 2] /Root 1 0 R /Length %d >>\nstream\n", rows.Len())
	buf.Write(rows.Bytes())
	fmt.Fprintf(&buf, "\nendstream\nendobj\nstartxref\n%d\n%%%%EOF\n", offsets[6])
	return buf.Bytes()
}

func TestParseObjectStreams(t *testing.T) {
	doc, err := Parse(buildCompressedPDF(t))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if doc.Version != (core.Version{Major: 1, Minor: 5}) {
		t.Errorf("expected version 1.5, got %s", doc.Version)
	}

	pgs, err := doc.Pages()
	if err != nil {
		t.Fatalf("Pages: %v", err)
	}
	if len(pgs) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pgs))
	}
	if pgs[0].Ref.Number != 4 {
		t.Errorf("expected page object 4, got %v", pgs[0].Ref)
	}
	streams, err := pgs[0].Contents()
	if err != nil || len(streams) != 1 || string(streams[0].Data) != "q Q" {
		t.Errorf("unexpected contents %v (%v)", streams, err)
	}
}
