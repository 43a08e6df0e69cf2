package contentstream

import (
	"bytes"

	"github.com/Thekiidd/pdfpulse/core"
)

// Format writes ops as a content stream, one space between tokens.
func Format(ops []Operation) []byte {
	var buf bytes.Buffer
	for i, op := range ops {
		if i > 0 {
			buf.WriteByte(' ')
		}
		if op.Operator == "BI" && op.Image != nil {
			writeInlineImage(&buf, op.Image)
			continue
		}
		for _, operand := range op.Operands {
			buf.Write(core.Format(operand))
			buf.WriteByte(' ')
		}
		buf.WriteString(op.Operator)
	}
	return buf.Bytes()
}

func writeInlineImage(buf *bytes.Buffer, img *InlineImage) {
	buf.WriteString("BI")
	for _, key := range img.Dict.Keys() {
		buf.WriteByte(' ')
		buf.Write(core.Format(core.Name(key)))
		buf.WriteByte(' ')
		buf.Write(core.Format(img.Dict[key]))
	}
	buf.WriteString(" ID ")
	buf.Write(img.Data)
	buf.WriteString("\nEI")
}

// Op is shorthand for building an Operation.
func Op(operator string, operands ...core.Object) Operation {
	return Operation{Operator: operator, Operands: operands}
}
