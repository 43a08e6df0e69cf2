package contentstream

import (
	"bytes"
	"fmt"

	"github.com/Thekiidd/pdfpulse/core"
)

// Operation is one operator with the operands that precede it.
type Operation struct {
	Operator string
	Operands []core.Object

	// Image is set for inline images (Operator "BI").
	Image *InlineImage
}

// InlineImage is an image embedded in the content stream itself.
type InlineImage struct {
	Dict core.Dict // abbreviated keys are kept as written
	Data []byte
}

// Parser parses a content stream into operations.
type Parser struct {
	data  []byte
	lexer *core.Lexer
}

// NewParser creates a parser over data, usually a decoded stream body.
func NewParser(data []byte) *Parser {
	return &Parser{data: data, lexer: core.NewLexer(data)}
}

// Parse returns every operation in order. Operands left over at the end
// without an operator are dropped.
func (p *Parser) Parse() ([]Operation, error) {
	var ops []Operation
	var operands []core.Object

	for {
		start := p.lexer.Pos()
		tok, err := p.lexer.NextToken()
		if err != nil {
			return nil, err
		}

		switch tok.Type {
		case core.TokenEOF:
			return ops, nil
		case core.TokenComment:
			continue
		case core.TokenKeyword, core.TokenIndirectRef:
			switch kw := string(tok.Value); kw {
			case "true", "false", "null":
				operands = append(operands, keywordObject(kw))
			case "BI":
				img, err := p.inlineImage()
				if err != nil {
					return nil, err
				}
				ops = append(ops, Operation{Operator: "BI", Image: img})
				operands = nil
			default:
				ops = append(ops, Operation{Operator: kw, Operands: operands})
				operands = nil
			}
		default:
			obj, err := p.operandAt(start)
			if err != nil {
				return nil, err
			}
			operands = append(operands, obj)
		}
	}
}

// operandAt parses the object starting at offset and moves the lexer past it.
func (p *Parser) operandAt(offset int64) (core.Object, error) {
	op := core.NewParserAt(p.data, offset)
	obj, err := op.ParseObject()
	if err != nil {
		return nil, fmt.Errorf("operand at %d: %w", offset, err)
	}
	if err := p.lexer.Seek(op.Pos()); err != nil {
		return nil, err
	}
	return obj, nil
}

// inlineImage reads the key/value pairs after BI, then the raw bytes
// between ID and EI.
func (p *Parser) inlineImage() (*InlineImage, error) {
	dict := core.Dict{}
	for {
		start := p.lexer.Pos()
		tok, err := p.lexer.NextToken()
		if err != nil {
			return nil, err
		}
		switch tok.Type {
		case core.TokenEOF:
			return nil, fmt.Errorf("inline image at %d has no ID", start)
		case core.TokenComment:
			continue
		case core.TokenKeyword:
			if string(tok.Value) != "ID" {
				return nil, fmt.Errorf("unexpected %q in inline image dictionary at %d", tok.Value, tok.Pos)
			}
			data, err := p.inlineData()
			if err != nil {
				return nil, err
			}
			return &InlineImage{Dict: dict, Data: data}, nil
		case core.TokenName:
			key, err := p.operandAt(start)
			if err != nil {
				return nil, err
			}
			val, err := p.operandAt(p.lexer.Pos())
			if err != nil {
				return nil, err
			}
			dict[string(key.(core.Name))] = val
		default:
			return nil, fmt.Errorf("inline image key at %d is not a name", tok.Pos)
		}
	}
}

// inlineData returns the bytes after ID up to the whitespace before EI.
func (p *Parser) inlineData() ([]byte, error) {
	start := int(p.lexer.Pos()) + 1 // single whitespace after ID
	if start > len(p.data) {
		return nil, fmt.Errorf("inline image data missing at %d", start)
	}
	for i := start; i+2 <= len(p.data); i++ {
		if p.data[i] != 'E' || p.data[i+1] != 'I' {
			continue
		}
		if i == start || !isSpace(p.data[i-1]) {
			continue
		}
		if i+2 < len(p.data) && !isSpace(p.data[i+2]) {
			continue
		}
		if err := p.lexer.Seek(int64(i + 2)); err != nil {
			return nil, err
		}
		return bytes.Clone(p.data[start : i-1]), nil
	}
	return nil, fmt.Errorf("inline image starting at %d has no EI", start)
}

func keywordObject(kw string) core.Object {
	switch kw {
	case "true":
		return core.Bool(true)
	case "false":
		return core.Bool(false)
	}
	return core.Null{}
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == 0
}
