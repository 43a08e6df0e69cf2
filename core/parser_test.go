package core

import (
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestParserScalars tests parsing of the simple object types
func TestParserScalars(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Object
	}{
		{"null", "null", Null{}},
		{"true", "true", Bool(true)},
		{"false", "false", Bool(false)},
		{"integer", "123", Int(123)},
		{"negative", "-17", Int(-17)},
		{"real", "3.14", Real(3.14)},
		{"leading dot", ".5", Real(0.5)},
		{"literal string", "(Hello World)", String("Hello World")},
		{"nested parens", "(a (b) c)", String("a (b) c")},
		{"escapes", `(a\nb\(c\)\\)`, String("a\nb(c)\\")},
		{"octal escape", `(\101\102)`, String("AB")},
		{"bare CR", "(a\rb)", String("a\nb")},
		{"hex string", "<48656C6C6F>", String("Hello")},
		{"odd hex string", "<414>", String("A@")},
		{"name", "/Type", Name("Type")},
		{"name escape", "/A#20B", Name("A B")},
		{"reference", "12 0 R", IndirectRef{Number: 12, Generation: 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := NewParser([]byte(tt.input)).ParseObject()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, obj); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestParserArrayOfNumbersAndRefs checks that two integers not followed by
// R stay two integers.
func TestParserArrayOfNumbersAndRefs(t *testing.T) {
	obj, err := NewParser([]byte("[0 0 612 792 5 0 R 7]")).ParseObject()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Array{Int(0), Int(0), Int(612), Int(792), IndirectRef{Number: 5}, Int(7)}
	if diff := cmp.Diff(want, obj); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestParserDict(t *testing.T) {
	input := `<< /Type /Page % comment
		/MediaBox [0 0 612 792]
		/Parent 2 0 R
		/Gone null
		/Resources << /XObject << /Im0 9 0 R >> >> >>`
	obj, err := NewParser([]byte(input)).ParseObject()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := Dict{
		"Type":      Name("Page"),
		"MediaBox":  Array{Int(0), Int(0), Int(612), Int(792)},
		"Parent":    IndirectRef{Number: 2},
		"Resources": Dict{"XObject": Dict{"Im0": IndirectRef{Number: 9}}},
	}
	if diff := cmp.Diff(want, obj); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestParserSequenceEndsWithEOF(t *testing.T) {
	p := NewParser([]byte("1 2 /A"))
	for _, want := range []Object{Int(1), Int(2), Name("A")} {
		obj, err := p.ParseObject()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if obj != want {
			t.Errorf("expected %v, got %v", want, obj)
		}
	}
	if _, err := p.ParseObject(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestParserErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unterminated array", "[1 2"},
		{"unterminated dict", "<< /A 1"},
		{"non-name key", "<< 1 2 >>"},
		{"stray keyword", "endobj"},
		{"unterminated string", "(abc"},
		{"bad hex", "<4G>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewParser([]byte(tt.input)).ParseObject(); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestParseIndirectObject(t *testing.T) {
	p := NewParser([]byte("4 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n"))
	ind, err := p.ParseIndirectObject()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ind.Ref != (IndirectRef{Number: 4}) {
		t.Errorf("expected ref 4 0 R, got %v", ind.Ref)
	}
	d, ok := ind.Object.(Dict)
	if !ok {
		t.Fatalf("expected Dict, got %T", ind.Object)
	}
	if name, _ := d.GetName("Type"); name != "Catalog" {
		t.Errorf("expected /Catalog, got %v", name)
	}
}

func TestParseStream(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"exact length", "1 0 obj\n<< /Length 5 >>\nstream\nhello\nendstream\nendobj", "hello"},
		{"CRLF after keyword", "1 0 obj\n<< /Length 5 >>\nstream\r\nhello\r\nendstream\nendobj", "hello"},
		{"binary body", "1 0 obj\n<< /Length 4 >>\nstream\n\x00>>(\nendstream\nendobj", "\x00>>("},
		{"length too short", "1 0 obj\n<< /Length 2 >>\nstream\nhello\nendstream\nendobj", "hello"},
		{"length too long", "1 0 obj\n<< /Length 50 >>\nstream\nhello\nendstream\nendobj", "hello"},
		{"missing length", "1 0 obj\n<< >>\nstream\nhello\nendstream\nendobj", "hello"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ind, err := NewParser([]byte(tt.input)).ParseIndirectObject()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			s, ok := ind.Object.(*Stream)
			if !ok {
				t.Fatalf("expected *Stream, got %T", ind.Object)
			}
			if string(s.Data) != tt.want {
				t.Errorf("expected %q, got %q", tt.want, s.Data)
			}
			if n, _ := s.Dict.GetInt("Length"); int(n) != len(tt.want) {
				t.Errorf("expected /Length %d, got %d", len(tt.want), n)
			}
		})
	}
}

type mapResolver map[IndirectRef]Object

func (m mapResolver) ResolveReference(ref IndirectRef) (Object, error) {
	obj, ok := m[ref]
	if !ok {
		return nil, errors.New("not found")
	}
	return obj, nil
}

func TestParseStreamIndirectLength(t *testing.T) {
	p := NewParser([]byte("1 0 obj\n<< /Length 2 0 R >>\nstream\nab)cd\nendstream\nendobj"))
	p.SetReferenceResolver(mapResolver{{Number: 2}: Int(5)})
	ind, err := p.ParseIndirectObject()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := string(ind.Object.(*Stream).Data); got != "ab)cd" {
		t.Errorf("expected %q, got %q", "ab)cd", got)
	}
}

func TestParseIndirectObjectWithoutEndobj(t *testing.T) {
	p := NewParser([]byte("1 0 obj 42\n2 0 obj 43 endobj"))
	first, err := p.ParseIndirectObject()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := p.ParseIndirectObject()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Object != Int(42) || second.Object != Int(43) {
		t.Errorf("got %v and %v", first.Object, second.Object)
	}
}
