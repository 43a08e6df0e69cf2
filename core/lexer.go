package core

import (
	"bytes"
	"fmt"
)

// TokenType represents the type of token
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenComment
	TokenKeyword     // true, false, null, obj, endobj, stream, endstream, etc.
	TokenInteger     // 123
	TokenReal        // 3.14
	TokenString      // (hello)
	TokenHexString   // <48656C6C6F>
	TokenName        // /Type
	TokenArrayStart  // [
	TokenArrayEnd    // ]
	TokenDictStart   // <<
	TokenDictEnd     // >>
	TokenIndirectRef // R (after two numbers)
)

// Token represents a lexical token
type Token struct {
	Type  TokenType
	Value []byte
	Pos   int64 // Offset of the first byte of the token
}

// Lexer splits an in-memory PDF byte slice into tokens. Working on a slice
// instead of a stream lets the parser jump to any xref offset and read
// stream bodies without buffering games.
type Lexer struct {
	data []byte
	pos  int
}

// NewLexer creates a lexer positioned at the start of data
func NewLexer(data []byte) *Lexer {
	return &Lexer{data: data}
}

// Pos returns the current offset
func (l *Lexer) Pos() int64 {
	return int64(l.pos)
}

// Seek moves the lexer to an absolute offset
func (l *Lexer) Seek(offset int64) error {
	if offset < 0 || offset > int64(len(l.data)) {
		return fmt.Errorf("offset %d outside data of length %d", offset, len(l.data))
	}
	l.pos = int(offset)
	return nil
}

// Data returns the underlying bytes
func (l *Lexer) Data() []byte {
	return l.data
}

// NextToken returns the next token from the input. Whitespace is skipped;
// comments are returned so callers can decide whether they matter.
func (l *Lexer) NextToken() (*Token, error) {
	l.skipWhitespace()

	if l.pos >= len(l.data) {
		return &Token{Type: TokenEOF, Pos: int64(l.pos)}, nil
	}

	start := l.pos
	b := l.data[l.pos]

	switch b {
	case '%':
		return l.readComment(), nil
	case '[':
		l.pos++
		return &Token{Type: TokenArrayStart, Value: l.data[start:l.pos], Pos: int64(start)}, nil
	case ']':
		l.pos++
		return &Token{Type: TokenArrayEnd, Value: l.data[start:l.pos], Pos: int64(start)}, nil
	case '(':
		return l.readString()
	case '<':
		if l.peekAt(1) == '<' {
			l.pos += 2
			return &Token{Type: TokenDictStart, Value: l.data[start:l.pos], Pos: int64(start)}, nil
		}
		return l.readHexString()
	case '>':
		if l.peekAt(1) == '>' {
			l.pos += 2
			return &Token{Type: TokenDictEnd, Value: l.data[start:l.pos], Pos: int64(start)}, nil
		}
		return nil, fmt.Errorf("unexpected '>' at position %d", start)
	case '/':
		return l.readName()
	}

	if isDigit(b) || b == '-' || b == '+' || b == '.' {
		return l.readNumber(), nil
	}
	if isRegular(b) {
		return l.readKeyword(), nil
	}

	return nil, fmt.Errorf("unexpected character %q at position %d", b, start)
}

// peekAt returns the byte at pos+n, or 0 past the end
func (l *Lexer) peekAt(n int) byte {
	if l.pos+n >= len(l.data) {
		return 0
	}
	return l.data[l.pos+n]
}

// skipWhitespace skips PDF whitespace: space, tab, LF, CR, FF and NUL
func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.data) && isWhitespace(l.data[l.pos]) {
		l.pos++
	}
}

// readComment reads a comment up to, not including, the end of line
func (l *Lexer) readComment() *Token {
	start := l.pos
	for l.pos < len(l.data) && l.data[l.pos] != '\r' && l.data[l.pos] != '\n' {
		l.pos++
	}
	return &Token{Type: TokenComment, Value: l.data[start:l.pos], Pos: int64(start)}
}

// readString reads a literal string, resolving escapes and balanced parentheses
func (l *Lexer) readString() (*Token, error) {
	start := l.pos
	l.pos++ // (

	var buf bytes.Buffer
	depth := 1
	for depth > 0 {
		if l.pos >= len(l.data) {
			return nil, fmt.Errorf("unterminated string starting at %d", start)
		}
		b := l.data[l.pos]
		l.pos++

		switch b {
		case '(':
			depth++
			buf.WriteByte(b)
		case ')':
			depth--
			if depth > 0 {
				buf.WriteByte(b)
			}
		case '\\':
			if l.pos >= len(l.data) {
				return nil, fmt.Errorf("unterminated escape in string starting at %d", start)
			}
			l.readEscape(&buf)
		case '\r':
			// an unescaped end of line is always read as LF
			if l.peekAt(0) == '\n' {
				l.pos++
			}
			buf.WriteByte('\n')
		default:
			buf.WriteByte(b)
		}
	}

	return &Token{Type: TokenString, Value: buf.Bytes(), Pos: int64(start)}, nil
}

// readEscape handles the byte after a backslash in a literal string
func (l *Lexer) readEscape(buf *bytes.Buffer) {
	next := l.data[l.pos]
	l.pos++

	switch next {
	case 'n':
		buf.WriteByte('\n')
	case 'r':
		buf.WriteByte('\r')
	case 't':
		buf.WriteByte('\t')
	case 'b':
		buf.WriteByte('\b')
	case 'f':
		buf.WriteByte('\f')
	case '\r':
		// line continuation
		if l.peekAt(0) == '\n' {
			l.pos++
		}
	case '\n':
	case '0', '1', '2', '3', '4', '5', '6', '7':
		val := next - '0'
		for i := 0; i < 2 && l.pos < len(l.data) && isOctalDigit(l.data[l.pos]); i++ {
			val = val*8 + (l.data[l.pos] - '0')
			l.pos++
		}
		buf.WriteByte(val)
	default:
		// covers \( \) \\ and unknown escapes, which keep the character
		buf.WriteByte(next)
	}
}

// readHexString reads <48656C6C6F>, returning only the hex digits
func (l *Lexer) readHexString() (*Token, error) {
	start := l.pos
	l.pos++ // <

	var buf bytes.Buffer
	for {
		if l.pos >= len(l.data) {
			return nil, fmt.Errorf("unterminated hex string starting at %d", start)
		}
		b := l.data[l.pos]
		l.pos++
		if b == '>' {
			break
		}
		if isWhitespace(b) {
			continue
		}
		if !isHexDigit(b) {
			return nil, fmt.Errorf("invalid hex digit %q at position %d", b, l.pos-1)
		}
		buf.WriteByte(b)
	}

	return &Token{Type: TokenHexString, Value: buf.Bytes(), Pos: int64(start)}, nil
}

// readName reads /Name, resolving #xx escapes
func (l *Lexer) readName() (*Token, error) {
	start := l.pos
	l.pos++ // /

	var buf bytes.Buffer
	for l.pos < len(l.data) {
		b := l.data[l.pos]
		if isWhitespace(b) || isDelimiter(b) {
			break
		}
		l.pos++

		if b == '#' {
			if l.pos+1 >= len(l.data) || !isHexDigit(l.data[l.pos]) || !isHexDigit(l.data[l.pos+1]) {
				return nil, fmt.Errorf("invalid hex escape in name at position %d", l.pos-1)
			}
			buf.WriteByte(hexValue(l.data[l.pos])<<4 | hexValue(l.data[l.pos+1]))
			l.pos += 2
			continue
		}
		buf.WriteByte(b)
	}

	return &Token{Type: TokenName, Value: buf.Bytes(), Pos: int64(start)}, nil
}

// readNumber reads an integer or real number
func (l *Lexer) readNumber() *Token {
	start := l.pos
	hasDecimal := false

	if b := l.data[l.pos]; b == '-' || b == '+' {
		l.pos++
	}
	for l.pos < len(l.data) {
		b := l.data[l.pos]
		if b == '.' && !hasDecimal {
			hasDecimal = true
		} else if !isDigit(b) {
			break
		}
		l.pos++
	}

	tokenType := TokenInteger
	if hasDecimal {
		tokenType = TokenReal
	}
	return &Token{Type: tokenType, Value: l.data[start:l.pos], Pos: int64(start)}
}

// readKeyword reads a run of regular characters (true, obj, R, ...)
func (l *Lexer) readKeyword() *Token {
	start := l.pos
	for l.pos < len(l.data) && isRegular(l.data[l.pos]) {
		l.pos++
	}

	value := l.data[start:l.pos]
	if len(value) == 1 && value[0] == 'R' {
		return &Token{Type: TokenIndirectRef, Value: value, Pos: int64(start)}
	}
	return &Token{Type: TokenKeyword, Value: value, Pos: int64(start)}
}

// SkipStreamEOL consumes the end of line that must follow the "stream"
// keyword: LF or CR LF. A lone CR is accepted as well.
func (l *Lexer) SkipStreamEOL() error {
	// some writers put spaces between "stream" and the EOL
	for l.pos < len(l.data) && l.data[l.pos] == ' ' {
		l.pos++
	}
	switch l.peekAt(0) {
	case '\n':
		l.pos++
	case '\r':
		l.pos++
		if l.peekAt(0) == '\n' {
			l.pos++
		}
	default:
		return fmt.Errorf("missing end of line after stream keyword at %d", l.pos)
	}
	return nil
}

// ReadBytes returns the next n bytes and advances past them
func (l *Lexer) ReadBytes(n int) ([]byte, error) {
	if n < 0 || l.pos+n > len(l.data) {
		return nil, fmt.Errorf("unexpected EOF: expected %d bytes at %d, have %d", n, l.pos, len(l.data)-l.pos)
	}
	out := l.data[l.pos : l.pos+n]
	l.pos += n
	return out, nil
}

// Helper functions

func isWhitespace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == 0
}

func isDelimiter(b byte) bool {
	return b == '(' || b == ')' || b == '<' || b == '>' || b == '[' || b == ']' ||
		b == '{' || b == '}' || b == '/' || b == '%'
}

// isRegular reports whether b may appear in a keyword
func isRegular(b byte) bool {
	return !isWhitespace(b) && !isDelimiter(b)
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isOctalDigit(b byte) bool {
	return b >= '0' && b <= '7'
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func hexValue(b byte) byte {
	switch {
	case b >= '0' && b <= '9':
		return b - '0'
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10
	}
	return 0
}
