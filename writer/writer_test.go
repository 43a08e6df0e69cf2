package writer

import (
	"bytes"
	"regexp"
	"strconv"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/Thekiidd/pdfpulse/core"
	"github.com/Thekiidd/pdfpulse/document"
	"github.com/Thekiidd/pdfpulse/reader"
)

// sampleDocument builds a document with n pages sharing one resource
// dictionary, plus an unreachable object.
func sampleDocument(t *testing.T, n int) *document.Document {
	t.Helper()

	doc := document.New(core.V1_4)
	doc.Add(core.String("garbage that must not be written"))
	font := doc.Add(core.Dict{"Type": core.Name("Font"), "Subtype": core.Name("Type1"), "BaseFont": core.Name("Helvetica")})
	res := doc.Add(core.Dict{"Font": core.Dict{"F1": font}})
	for i := 0; i < n; i++ {
		content := doc.Add(&core.Stream{
			Dict: core.Dict{},
			Data: []byte("BT /F1 12 Tf 72 720 Td (page " + strconv.Itoa(i+1) + ") Tj ET"),
		})
		_, err := doc.AppendPage(core.Dict{
			"MediaBox":  core.Array{core.Int(0), core.Int(0), core.Int(612), core.Int(792)},
			"Resources": res,
			"Contents":  content,
		})
		if err != nil {
			t.Fatalf("AppendPage: %v", err)
		}
	}
	doc.Info = doc.Add(core.Dict{"Producer": core.String("pdfpulse test")})
	return doc
}

func TestRoundTrip(t *testing.T) {
	doc := sampleDocument(t, 3)
	data, err := Bytes(doc)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}

	parsed, err := reader.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	if n, _ := parsed.PageCount(); n != 3 {
		t.Fatalf("expected 3 pages, got %d", n)
	}
	want, _ := doc.Pages()
	got, _ := parsed.Pages()
	for i := range got {
		wantStreams, _ := want[i].Contents()
		gotStreams, err := got[i].Contents()
		if err != nil || len(gotStreams) != 1 {
			t.Fatalf("page %d: contents %v (%v)", i, gotStreams, err)
		}
		if !bytes.Equal(wantStreams[0].Data, gotStreams[0].Data) {
			t.Errorf("page %d: content mismatch: %q vs %q", i, wantStreams[0].Data, gotStreams[0].Data)
		}
	}

	// the shared resource dictionary stays shared
	r0, _ := got[0].Dict.GetIndirectRef("Resources")
	r2, _ := got[2].Dict.GetIndirectRef("Resources")
	if r0 != r2 {
		t.Errorf("expected shared resources, got %v and %v", r0, r2)
	}

	info, err := parsed.InfoDict()
	if err != nil || info == nil {
		t.Fatalf("expected info dictionary, got %v (%v)", info, err)
	}
	if p, _ := info.GetString("Producer"); p != "pdfpulse test" {
		t.Errorf("unexpected producer %q", p)
	}
}

func TestGarbageIsDropped(t *testing.T) {
	doc := sampleDocument(t, 1)
	reachable, err := doc.Reachable()
	if err != nil {
		t.Fatalf("Reachable: %v", err)
	}

	data, err := Bytes(doc)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if bytes.Contains(data, []byte("garbage")) {
		t.Error("unreachable object was written")
	}

	parsed, err := reader.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if parsed.Len() != len(reachable) {
		t.Errorf("expected %d objects, got %d", len(reachable), parsed.Len())
	}
	// numbering is dense
	for _, num := range parsed.Numbers() {
		if num < 1 || num > len(reachable) {
			t.Errorf("object number %d outside 1..%d", num, len(reachable))
		}
	}
}

func TestFileLayout(t *testing.T) {
	doc := sampleDocument(t, 1)
	doc.Version = core.Version{Major: 1, Minor: 6}
	data, err := Bytes(doc)
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}

	if !bytes.HasPrefix(data, []byte("%PDF-1.6\n%")) {
		t.Errorf("unexpected header %q", data[:12])
	}
	if !bytes.HasSuffix(data, []byte("%%EOF\n")) {
		t.Errorf("missing %%EOF marker")
	}

	m := regexp.MustCompile(`startxref\n(\d+)\n`).FindSubmatch(data)
	if m == nil {
		t.Fatal("missing startxref")
	}
	off, _ := strconv.Atoi(string(m[1]))
	if !bytes.HasPrefix(data[off:], []byte("xref\n0 ")) {
		t.Errorf("startxref %d does not point at the xref table", off)
	}

	// every in-use entry points at its own object header
	entries := regexp.MustCompile(`(\d{10}) 00000 n\r\n`).FindAllSubmatch(data, -1)
	for i, e := range entries {
		pos, _ := strconv.Atoi(string(e[1]))
		header := strconv.Itoa(i+1) + " 0 obj"
		if !bytes.HasPrefix(data[pos:], []byte(header)) {
			t.Errorf("entry %d points at %q", i+1, data[pos:pos+10])
		}
	}
	if !bytes.Contains(data, []byte("/ID [<")) {
		t.Error("missing /ID in trailer")
	}
}

func TestFreshIDPerWrite(t *testing.T) {
	doc := sampleDocument(t, 1)
	a, _ := Bytes(doc)
	b, _ := Bytes(doc)
	if bytes.Equal(a, b) {
		t.Error("expected different /ID values")
	}
	if len(a) != len(b) {
		t.Errorf("expected same structure, lengths differ: %d vs %d", len(a), len(b))
	}
}

func TestCompressStreams(t *testing.T) {
	doc := sampleDocument(t, 2)
	img := doc.Add(&core.Stream{
		Dict: core.Dict{"Type": core.Name("XObject"), "Subtype": core.Name("Image"), "Width": core.Int(1), "Height": core.Int(1),
			"ColorSpace": core.Name("DeviceGray"), "BitsPerComponent": core.Int(8)},
		Data: []byte{0x80},
	})
	leaves, _ := doc.Pages()
	leaves[0].Dict["Thumb"] = img

	data, err := Bytes(doc, WithCompressStreams(true))
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	parsed, err := reader.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}

	got, _ := parsed.Pages()
	streams, _ := got[0].Contents()
	if f, _ := streams[0].Dict.GetName("Filter"); f != "FlateDecode" {
		t.Errorf("expected content stream to be Flate encoded, got %v", streams[0].Dict.Get("Filter"))
	}
	decoded, err := streams[0].Decode()
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !bytes.HasPrefix(decoded, []byte("BT /F1 12 Tf")) {
		t.Errorf("unexpected content %q", decoded)
	}

	thumb, err := parsed.Resolve(got[0].Dict.Get("Thumb"))
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if thumb.(*core.Stream).Dict.Has("Filter") {
		t.Error("image stream must not be re-encoded by the writer")
	}

	// the source document is untouched
	orig, _ := leaves[0].Contents()
	if orig[0].Dict.Has("Filter") {
		t.Error("writer modified the source document")
	}
}

func TestWriteDanglingReference(t *testing.T) {
	doc := document.New(core.V1_4)
	if _, err := doc.AppendPage(core.Dict{"Contents": core.IndirectRef{Number: 42}}); err != nil {
		t.Fatalf("AppendPage: %v", err)
	}
	if _, err := Bytes(doc); err == nil {
		t.Error("expected error for dangling reference")
	}
}

// TestOutputReadableByPdfcpu checks the output against an independent parser.
func TestOutputReadableByPdfcpu(t *testing.T) {
	api.DisableConfigDir()

	for _, compress := range []bool{false, true} {
		data, err := Bytes(sampleDocument(t, 4), WithCompressStreams(compress))
		if err != nil {
			t.Fatalf("Bytes: %v", err)
		}
		n, err := api.PageCount(bytes.NewReader(data), model.NewDefaultConfiguration())
		if err != nil {
			t.Fatalf("pdfcpu rejected output (compress=%v): %v", compress, err)
		}
		if diff := cmp.Diff(4, n); diff != "" {
			t.Errorf("page count mismatch (-want +got):\n%s", diff)
		}
	}
}
