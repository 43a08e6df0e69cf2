package core

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
)

// ReferenceResolver is an interface for resolving indirect references.
// This allows the parser to resolve indirect stream lengths when needed.
type ReferenceResolver interface {
	ResolveReference(ref IndirectRef) (Object, error)
}

// Parser parses PDF objects from a byte slice using a Lexer for tokenization.
// It keeps one token of lookahead, plus the current token.
type Parser struct {
	lexer        *Lexer
	currentToken *Token
	peekToken    *Token
	resolver     ReferenceResolver
	err          error // first lexer error, reported by the next Parse call
}

// NewParser creates a parser positioned at the start of data
func NewParser(data []byte) *Parser {
	return NewParserAt(data, 0)
}

// NewParserAt creates a parser positioned at offset within data
func NewParserAt(data []byte, offset int64) *Parser {
	p := &Parser{lexer: NewLexer(data)}
	if err := p.lexer.Seek(offset); err != nil {
		p.err = err
		return p
	}
	p.nextToken()
	p.nextToken()
	return p
}

// SetReferenceResolver sets the resolver used for indirect /Length values.
func (p *Parser) SetReferenceResolver(resolver ReferenceResolver) {
	p.resolver = resolver
}

// nextToken advances the parser to the next token by shifting the lookahead.
func (p *Parser) nextToken() {
	p.currentToken = p.peekToken

	// Bytes after "stream" are binary and must not be tokenized;
	// parseStream reads them directly from the lexer.
	if p.isKeyword(p.currentToken, "stream") {
		p.peekToken = nil
		return
	}

	token, err := p.lexer.NextToken()
	if err != nil {
		if p.err == nil {
			p.err = err
		}
		token = &Token{Type: TokenEOF, Pos: p.lexer.Pos()}
	}
	p.peekToken = token
}

func (p *Parser) isKeyword(tok *Token, kw string) bool {
	return tok != nil && tok.Type == TokenKeyword && string(tok.Value) == kw
}

// skipComments skips over any consecutive comment tokens.
func (p *Parser) skipComments() {
	for p.currentToken != nil && p.currentToken.Type == TokenComment {
		p.nextToken()
	}
}

// Pos returns the offset of the current token.
func (p *Parser) Pos() int64 {
	if p.currentToken == nil {
		return p.lexer.Pos()
	}
	return p.currentToken.Pos
}

// ParseObject parses and returns the next PDF object from the input.
// It handles null, booleans, numbers, strings, names, arrays, dictionaries
// and indirect references. At end of input it returns io.EOF.
func (p *Parser) ParseObject() (Object, error) {
	p.skipComments()
	if p.err != nil {
		return nil, p.err
	}
	if p.currentToken == nil {
		return nil, fmt.Errorf("unexpected end of input")
	}

	tok := p.currentToken
	switch tok.Type {
	case TokenEOF:
		return nil, io.EOF

	case TokenKeyword:
		switch string(tok.Value) {
		case "null":
			p.nextToken()
			return Null{}, nil
		case "true":
			p.nextToken()
			return Bool(true), nil
		case "false":
			p.nextToken()
			return Bool(false), nil
		default:
			return nil, fmt.Errorf("unexpected keyword %q at position %d", tok.Value, tok.Pos)
		}

	case TokenInteger:
		return p.parseNumber()

	case TokenReal:
		val, err := strconv.ParseFloat(string(tok.Value), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid real number %q at position %d", tok.Value, tok.Pos)
		}
		p.nextToken()
		return Real(val), nil

	case TokenString:
		p.nextToken()
		return String(tok.Value), nil

	case TokenHexString:
		p.nextToken()
		return String(decodeHexDigits(tok.Value)), nil

	case TokenName:
		p.nextToken()
		return Name(tok.Value), nil

	case TokenArrayStart:
		return p.parseArray()

	case TokenDictStart:
		return p.parseDict()

	default:
		return nil, fmt.Errorf("unexpected token %q at position %d", tok.Value, tok.Pos)
	}
}

// decodeHexDigits converts the digits of a hex string to bytes; an odd
// final digit is treated as if followed by 0.
func decodeHexDigits(digits []byte) []byte {
	out := make([]byte, (len(digits)+1)/2)
	for i, d := range digits {
		if i%2 == 0 {
			out[i/2] = hexValue(d) << 4
		} else {
			out[i/2] |= hexValue(d)
		}
	}
	return out
}

// parseNumber parses an integer, real number, or indirect reference.
// Indirect references are detected by lookahead: "num gen R".
func (p *Parser) parseNumber() (Object, error) {
	tok := p.currentToken
	first, err := strconv.ParseInt(string(tok.Value), 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(string(tok.Value), 64)
		if ferr != nil {
			return nil, fmt.Errorf("invalid number %q at position %d", tok.Value, tok.Pos)
		}
		p.nextToken()
		return Real(f), nil
	}

	if p.peekToken != nil && p.peekToken.Type == TokenInteger {
		second, err := strconv.ParseInt(string(p.peekToken.Value), 10, 64)
		if err == nil {
			// Need a third token to decide; the lexer is rewound if it is not R.
			save := p.lexer.Pos()
			third, lerr := p.lexer.NextToken()
			if lerr == nil && third.Type == TokenIndirectRef {
				// R is already consumed, so two shifts land past it
				p.nextToken()
				p.nextToken()
				return IndirectRef{Number: int(first), Generation: int(second)}, nil
			}
			p.lexer.pos = int(save)
		}
	}

	p.nextToken()
	return Int(first), nil
}

// parseArray parses a PDF array "[obj1 obj2 ...]".
func (p *Parser) parseArray() (Object, error) {
	start := p.currentToken.Pos
	p.nextToken()

	arr := Array{}
	for {
		p.skipComments()
		if p.err != nil {
			return nil, p.err
		}
		if p.currentToken == nil || p.currentToken.Type == TokenEOF {
			return nil, fmt.Errorf("unterminated array starting at %d", start)
		}
		if p.currentToken.Type == TokenArrayEnd {
			p.nextToken()
			return arr, nil
		}

		obj, err := p.ParseObject()
		if err != nil {
			return nil, fmt.Errorf("error parsing array element: %w", err)
		}
		arr = append(arr, obj)
	}
}

// parseDict parses a PDF dictionary "<< /Key value ... >>".
// Entries whose value is null are dropped, as the PDF reference requires.
func (p *Parser) parseDict() (Object, error) {
	start := p.currentToken.Pos
	p.nextToken()

	dict := make(Dict)
	for {
		p.skipComments()
		if p.err != nil {
			return nil, p.err
		}
		if p.currentToken == nil || p.currentToken.Type == TokenEOF {
			return nil, fmt.Errorf("unterminated dictionary starting at %d", start)
		}
		if p.currentToken.Type == TokenDictEnd {
			p.nextToken()
			return dict, nil
		}

		if p.currentToken.Type != TokenName {
			return nil, fmt.Errorf("expected name for dictionary key at position %d, got %q",
				p.currentToken.Pos, p.currentToken.Value)
		}
		key := string(p.currentToken.Value)
		p.nextToken()

		value, err := p.ParseObject()
		if err != nil {
			return nil, fmt.Errorf("error parsing dictionary value for key '%s': %w", key, err)
		}
		if _, isNull := value.(Null); isNull {
			continue
		}
		dict[key] = value
	}
}

// ParseIndirectObject parses an indirect object definition.
// Format: "num gen obj <object> endobj" or "num gen obj <dict> stream ... endstream endobj"
func (p *Parser) ParseIndirectObject() (*IndirectObject, error) {
	p.skipComments()
	if p.err != nil {
		return nil, p.err
	}

	num, err := p.expectInt("object number")
	if err != nil {
		return nil, err
	}
	gen, err := p.expectInt("generation number")
	if err != nil {
		return nil, err
	}
	if !p.isKeyword(p.currentToken, "obj") {
		return nil, fmt.Errorf("expected 'obj' keyword at position %d", p.Pos())
	}
	p.nextToken()

	obj, err := p.ParseObject()
	if err != nil {
		return nil, fmt.Errorf("error parsing object %d: %w", num, err)
	}

	if p.isKeyword(p.currentToken, "stream") {
		dict, ok := obj.(Dict)
		if !ok {
			return nil, fmt.Errorf("stream in object %d must follow a dictionary", num)
		}
		stream, err := p.parseStream(dict)
		if err != nil {
			return nil, fmt.Errorf("error parsing stream %d: %w", num, err)
		}
		obj = stream
	}

	// Many writers forget endobj before the next object; accept that.
	if p.isKeyword(p.currentToken, "endobj") {
		p.nextToken()
	}

	return &IndirectObject{
		Ref:    IndirectRef{Number: num, Generation: gen},
		Object: obj,
	}, nil
}

func (p *Parser) expectInt(what string) (int, error) {
	if p.currentToken == nil || p.currentToken.Type != TokenInteger {
		return 0, fmt.Errorf("expected %s at position %d", what, p.Pos())
	}
	v, err := strconv.Atoi(string(p.currentToken.Value))
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid %s %q", what, p.currentToken.Value)
	}
	p.nextToken()
	return v, nil
}

// parseStream reads the stream body after the "stream" keyword. The
// declared /Length is trusted when "endstream" follows it; otherwise the
// body is taken up to the next "endstream" marker.
func (p *Parser) parseStream(dict Dict) (*Stream, error) {
	if err := p.lexer.SkipStreamEOL(); err != nil {
		return nil, err
	}
	bodyStart := p.lexer.Pos()

	length, lengthErr := p.streamLength(dict)
	var data []byte
	if lengthErr == nil {
		if body, err := p.lexer.ReadBytes(length); err == nil && p.atEndstream() {
			data = body
		}
	}

	if data == nil {
		// recover by searching for the end marker
		rest := p.lexer.Data()[bodyStart:]
		idx := bytes.Index(rest, []byte("endstream"))
		if idx < 0 {
			if lengthErr != nil {
				return nil, lengthErr
			}
			return nil, fmt.Errorf("missing endstream for stream at %d", bodyStart)
		}
		data = trimEOL(rest[:idx])
		p.lexer.Seek(bodyStart + int64(idx))
		dict["Length"] = Int(len(data))
	}

	token, err := p.lexer.NextToken()
	if err != nil || token.Type != TokenKeyword || string(token.Value) != "endstream" {
		return nil, fmt.Errorf("expected 'endstream' keyword at %d", p.lexer.Pos())
	}

	// reload lookahead after the binary section
	p.currentToken = nil
	p.peekToken = nil
	p.nextToken()
	p.nextToken()

	return &Stream{Dict: dict, Data: data}, nil
}

// streamLength resolves /Length, following an indirect reference if needed.
func (p *Parser) streamLength(dict Dict) (int, error) {
	switch v := dict.Get("Length").(type) {
	case Int:
		if v < 0 {
			return 0, fmt.Errorf("invalid stream length: %d", v)
		}
		return int(v), nil
	case IndirectRef:
		if p.resolver == nil {
			return 0, fmt.Errorf("indirect stream length %s needs a reference resolver", v)
		}
		resolved, err := p.resolver.ResolveReference(v)
		if err != nil {
			return 0, fmt.Errorf("failed to resolve stream length: %w", err)
		}
		n, ok := resolved.(Int)
		if !ok || n < 0 {
			return 0, fmt.Errorf("stream length %s resolved to %v", v, resolved)
		}
		return int(n), nil
	case nil:
		return 0, fmt.Errorf("stream dictionary missing 'Length' entry")
	default:
		return 0, fmt.Errorf("invalid type for stream length: %T", v)
	}
}

// atEndstream reports whether "endstream" follows, allowing whitespace,
// without moving the lexer.
func (p *Parser) atEndstream() bool {
	rest := p.lexer.Data()[p.lexer.Pos():]
	rest = bytes.TrimLeft(rest, " \t\r\n\f\x00")
	return bytes.HasPrefix(rest, []byte("endstream"))
}

// trimEOL drops one trailing end-of-line sequence, which belongs to the
// endstream line rather than the data.
func trimEOL(b []byte) []byte {
	if bytes.HasSuffix(b, []byte("\r\n")) {
		return b[:len(b)-2]
	}
	if bytes.HasSuffix(b, []byte("\n")) || bytes.HasSuffix(b, []byte("\r")) {
		return b[:len(b)-1]
	}
	return b
}
