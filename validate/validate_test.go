package validate

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/Thekiidd/pdfpulse/pdferr"
)

func pdfs(n int) []File {
	files := make([]File, n)
	for i := range files {
		files[i] = File{Name: fmt.Sprintf("doc%d.pdf", i), MediaType: "application/pdf", Size: 1024}
	}
	return files
}

func reason(t *testing.T, err error) pdferr.Reason {
	t.Helper()
	var verr *pdferr.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *pdferr.ValidationError, got %T (%v)", err, err)
	}
	return verr.Reason
}

func TestBatch_Accepts(t *testing.T) {
	tests := []struct {
		name  string
		op    Operation
		files []File
	}{
		{"merge two", Merge, pdfs(2)},
		{"merge ten", Merge, pdfs(10)},
		{"merge one", Merge, pdfs(1)},
		{"compress", Compress, pdfs(1)},
		{"images mixed", Images, []File{
			{Name: "a.jpg", MediaType: "image/jpeg", Size: 10},
			{Name: "b.jpg", MediaType: "image/jpg", Size: 10},
			{Name: "c.png", MediaType: "IMAGE/PNG", Size: 10},
			{Name: "d.gif", MediaType: "image/gif; foo=bar", Size: 10},
		}},
		{"docx", DOCX, []File{{Name: "a.docx", MediaType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document", Size: 10}}},
		{"exactly at limit", Compress, []File{{Name: "a.pdf", MediaType: "application/pdf", Size: DefaultMaxFileSize}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Batch(tt.op, tt.files); err != nil {
				t.Errorf("expected batch to pass, got %v", err)
			}
		})
	}
}

func TestBatch_Rejects(t *testing.T) {
	big := File{Name: "big.pdf", MediaType: "application/pdf", Size: 6 << 20}
	webp := File{Name: "x.webp", MediaType: "image/webp", Size: 10}
	png := File{Name: "x.png", MediaType: "image/png", Size: 10}

	tests := []struct {
		name  string
		op    Operation
		files []File
		want  pdferr.Reason
	}{
		{"eleven merge files", Merge, pdfs(11), pdferr.ReasonMaxFiles},
		{"six megabyte file", Compress, []File{big}, pdferr.ReasonSize},
		{"wrong type", Merge, []File{pdfs(1)[0], {Name: "a.png", MediaType: "image/png", Size: 10}}, pdferr.ReasonType},
		{"webp image", Images, []File{webp}, pdferr.ReasonType},
		{"two compress files", Compress, pdfs(2), pdferr.ReasonMaxFiles},
		{"six images", Images, []File{png, png, png, png, png, png}, pdferr.ReasonMaxFiles},
		{"empty", Merge, nil, pdferr.ReasonEmpty},
		{"unknown operation", Operation("split"), pdfs(1), pdferr.ReasonOperation},
		// type is checked before size
		{"wrong type and too big", Merge, []File{big, {Name: "x.txt", MediaType: "text/plain", Size: 6 << 20}}, pdferr.ReasonType},
		// count is checked before type
		{"too many of the wrong type", Images, []File{webp, webp, webp, webp, webp, webp}, pdferr.ReasonMaxFiles},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Batch(tt.op, tt.files)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if got := reason(t, err); got != tt.want {
				t.Errorf("expected reason %v, got %v (%v)", tt.want, got, err)
			}
		})
	}
}

func TestBatch_OversizedFileEveryOperation(t *testing.T) {
	tests := []struct {
		op   Operation
		file File
	}{
		{Merge, File{Name: "big.pdf", MediaType: "application/pdf"}},
		{Compress, File{Name: "big.pdf", MediaType: "application/pdf"}},
		{Images, File{Name: "big.jpg", MediaType: "image/jpeg"}},
		{DOCX, File{Name: "big.docx", MediaType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document"}},
	}
	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			at := tt.file
			at.Size = DefaultMaxFileSize
			over := tt.file
			over.Size = 6 << 20

			files := []File{at, over}
			if tt.op == Compress || tt.op == DOCX {
				files = []File{over}
			}
			if got := reason(t, Batch(tt.op, files)); got != pdferr.ReasonSize {
				t.Errorf("expected reason %v, got %v", pdferr.ReasonSize, got)
			}
			if err := Batch(tt.op, []File{at}); err != nil {
				t.Errorf("file at the limit rejected: %v", err)
			}
		})
	}
}

func TestBatch_ErrorDetails(t *testing.T) {
	err := Batch(Compress, []File{{Name: "big.pdf", MediaType: "application/pdf", Size: 6 << 20}})
	var verr *pdferr.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *pdferr.ValidationError, got %v", err)
	}
	if verr.File != "big.pdf" || verr.Size != 6<<20 || verr.Limit != DefaultMaxFileSize {
		t.Errorf("unexpected details: %+v", verr)
	}
	if !strings.Contains(err.Error(), "big.pdf") {
		t.Errorf("expected file name in %q", err.Error())
	}

	err = Batch(Merge, pdfs(11))
	if !errors.As(err, &verr) || verr.Limit != 10 {
		t.Errorf("expected limit 10, got %+v", verr)
	}
}

func TestGate_MaxFileSize(t *testing.T) {
	g := NewGate(1024)
	if err := g.Batch(Merge, pdfs(2)); err != nil {
		t.Errorf("expected 1 KiB files to pass, got %v", err)
	}
	files := pdfs(2)
	files[1].Size = 1025
	if got := reason(t, g.Batch(Merge, files)); got != pdferr.ReasonSize {
		t.Errorf("expected size reason, got %v", got)
	}

	if NewGate(0).MaxFileSize != DefaultMaxFileSize {
		t.Error("expected zero ceiling to fall back to the default")
	}
}

func TestMaxFiles(t *testing.T) {
	want := map[Operation]int{Merge: 10, Images: 5, Compress: 1, DOCX: 1, "other": 0}
	for op, n := range want {
		if got := MaxFiles(op); got != n {
			t.Errorf("MaxFiles(%s) = %d, want %d", op, got, n)
		}
	}
	for _, op := range Operations {
		if !op.Known() {
			t.Errorf("%s should be known", op)
		}
	}
}
