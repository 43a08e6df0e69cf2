package htmldoc

import (
	"image"
	"image/color"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var face = basicfont.Face7x13

const (
	lineHeight  = 17
	blockGap    = 8
	listIndent  = 24
	cellPadding = 4
	quoteIndent = 16
)

var (
	ruleColor  = color.Gray{Y: 0xaa}
	preColor   = color.Gray{Y: 0xf0}
	quoteColor = color.Gray{Y: 0xcc}
)

// textOp draws one line of text with its top-left corner at (x, y).
type textOp struct {
	x, y  int
	text  string
	scale int
	bold  bool
}

// fillOp paints a solid rectangle.
type fillOp struct {
	r image.Rectangle
	c color.Color
}

// pageLayout is the positioned content of a document in CSS pixels.
type pageLayout struct {
	width, height int
	fills         []fillOp
	texts         []textOp
}

// headingScale is the glyph magnification for a heading level.
func headingScale(level int) int {
	if level <= 2 {
		return 2
	}
	return 1
}

// textWidth returns the advance of s at the given magnification.
func textWidth(s string, scale int) int {
	return font.MeasureString(face, s).Ceil() * scale
}

// wrap breaks s into lines no wider than width. Explicit newlines are kept
// and words wider than a line are split.
func wrap(s string, width, scale int) []string {
	var lines []string
	for _, para := range strings.Split(s, "\n") {
		line := ""
		for _, word := range strings.Fields(para) {
			for textWidth(word, scale) > width && len(word) > 1 {
				n := max(1, width/textWidth("m", scale))
				n = min(n, len(word)-1)
				if line != "" {
					lines = append(lines, line)
					line = ""
				}
				lines = append(lines, word[:n])
				word = word[n:]
			}
			switch {
			case line == "":
				line = word
			case textWidth(line+" "+word, scale) <= width:
				line += " " + word
			default:
				lines = append(lines, line)
				line = word
			}
		}
		lines = append(lines, line)
	}
	return lines
}

// layout stacks the blocks top to bottom inside a box of the given content
// width and padding.
func layout(blocks []block, width, padding int) *pageLayout {
	pl := &pageLayout{width: width + 2*padding}
	y := padding
	for i, b := range blocks {
		if i > 0 {
			y += blockGap
		}
		y = pl.place(b, padding, y, width)
	}
	pl.height = max(y+padding, 2*padding+lineHeight)
	return pl
}

// place positions b at (x, y) and returns the y below it.
func (pl *pageLayout) place(b block, x, y, width int) int {
	b.text = fold(b.text)
	switch b.kind {
	case blockHeading:
		scale := headingScale(b.level)
		y += blockGap / 2
		return pl.paragraph(b.text, b.align, x, y, width, scale, true)

	case blockListItem:
		indent := listIndent * (b.level + 1)
		pl.texts = append(pl.texts, textOp{
			x:     x + indent - textWidth(b.marker+" ", 1),
			y:     y,
			text:  b.marker,
			scale: 1,
		})
		return pl.paragraph(b.text, alignLeft, x+indent, y, width-indent, 1, false)

	case blockPre:
		lines := strings.Split(b.text, "\n")
		h := len(lines)*lineHeight + 2*cellPadding
		pl.fills = append(pl.fills, fillOp{r: image.Rect(x, y, x+width, y+h), c: preColor})
		for i, line := range lines {
			pl.texts = append(pl.texts, textOp{x: x + cellPadding, y: y + cellPadding + i*lineHeight, text: line, scale: 1})
		}
		return y + h

	case blockQuote:
		bottom := pl.paragraph(b.text, b.align, x+quoteIndent, y, width-quoteIndent, 1, false)
		pl.fills = append(pl.fills, fillOp{r: image.Rect(x, y, x+3, bottom), c: quoteColor})
		return bottom

	case blockRule:
		pl.fills = append(pl.fills, fillOp{r: image.Rect(x, y+blockGap/2, x+width, y+blockGap/2+1), c: ruleColor})
		return y + blockGap

	case blockTable:
		return pl.table(b.table, x, y, width)

	default:
		return pl.paragraph(b.text, b.align, x, y, width, 1, false)
	}
}

func (pl *pageLayout) paragraph(text string, align alignment, x, y, width, scale int, bold bool) int {
	for _, line := range wrap(text, width, scale) {
		lx := x
		switch align {
		case alignCenter:
			lx += (width - textWidth(line, scale)) / 2
		case alignRight:
			lx += width - textWidth(line, scale)
		}
		pl.texts = append(pl.texts, textOp{x: lx, y: y, text: line, scale: scale, bold: bold})
		y += lineHeight * scale
	}
	return y
}

// table lays out t on an even column grid with 1px borders.
func (pl *pageLayout) table(t *table, x, y, width int) int {
	cols := t.columns()
	if cols == 0 {
		return y
	}
	colWidth := (width - 1) / cols
	for _, row := range t.rows {
		top := y
		bottom := y
		col := 0
		for _, c := range row {
			left := x + col*colWidth
			w := c.span * colWidth
			inner := max(w-2*cellPadding, textWidth("m", 1))
			end := pl.paragraph(fold(c.text), alignLeft, left+cellPadding, top+cellPadding, inner, 1, c.header)
			bottom = max(bottom, end+cellPadding)
			col += c.span
		}
		bottom = max(bottom, top+lineHeight+2*cellPadding)

		col = 0
		for _, c := range row {
			left := x + col*colWidth
			right := left + c.span*colWidth
			pl.border(image.Rect(left, top, right, bottom))
			col += c.span
		}
		y = bottom
	}
	return y
}

// border outlines r with 1px lines.
func (pl *pageLayout) border(r image.Rectangle) {
	pl.fills = append(pl.fills,
		fillOp{r: image.Rect(r.Min.X, r.Min.Y, r.Max.X+1, r.Min.Y+1), c: ruleColor},
		fillOp{r: image.Rect(r.Min.X, r.Max.Y, r.Max.X+1, r.Max.Y+1), c: ruleColor},
		fillOp{r: image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y+1), c: ruleColor},
		fillOp{r: image.Rect(r.Max.X, r.Min.Y, r.Max.X+1, r.Max.Y+1), c: ruleColor},
	)
}

// paint draws the layout on a white canvas magnified by scale.
func (pl *pageLayout) paint(scale int) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, pl.width*scale, pl.height*scale))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)

	for _, f := range pl.fills {
		r := image.Rect(f.r.Min.X*scale, f.r.Min.Y*scale, f.r.Max.X*scale, f.r.Max.Y*scale)
		draw.Draw(canvas, r, image.NewUniform(f.c), image.Point{}, draw.Src)
	}
	for _, t := range pl.texts {
		drawText(canvas, t, scale)
	}
	return canvas
}

// drawText renders the glyphs at 1x into a mask, magnifies the mask with
// nearest-neighbour sampling and paints black through it.
func drawText(dst draw.Image, t textOp, scale int) {
	if t.text == "" {
		return
	}
	w := textWidth(t.text, 1) + 1
	h := face.Metrics().Height.Ceil()
	glyphs := image.NewAlpha(image.Rect(0, 0, w, h))
	d := font.Drawer{
		Dst:  glyphs,
		Src:  image.Opaque,
		Face: face,
		Dot:  fixed.P(0, face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(t.text)
	if t.bold {
		d.Dot = fixed.P(1, face.Metrics().Ascent.Ceil())
		d.DrawString(t.text)
	}

	k := t.scale * scale
	mask := image.Image(glyphs)
	if k > 1 {
		big := image.NewAlpha(image.Rect(0, 0, w*k, h*k))
		draw.NearestNeighbor.Scale(big, big.Bounds(), glyphs, glyphs.Bounds(), draw.Src, nil)
		mask = big
	}
	// center the glyph cell in the line box
	top := t.y*scale + (lineHeight*t.scale*scale-h*k)/2
	r := image.Rect(t.x*scale, top, t.x*scale+w*k, top+h*k)
	draw.DrawMask(dst, r, image.Black, image.Point{}, mask, image.Point{}, draw.Over)
}
