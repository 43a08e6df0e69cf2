// Package htmldoc parses HTML into stacked text blocks and paints them onto
// a bitmap.
package htmldoc

import (
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/net/html"
)

// Document is parsed HTML ready for layout.
type Document struct {
	Title  string
	blocks []block
}

// Parse reads an HTML document. The HTML parser is lenient, so only read
// failures are reported.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	d := &Document{}
	if title := findElement(root, "title"); title != nil {
		d.Title = inlineText(title)
	}
	body := findElement(root, "body")
	if body == nil {
		body = root
	}
	d.walk(body, &walkContext{})
	return d, nil
}

// Text returns the block text, one block per line. Tables are tab separated.
func (d *Document) Text() string {
	var lines []string
	for _, b := range d.blocks {
		switch b.kind {
		case blockTable:
			for _, row := range b.table.rows {
				cells := make([]string, len(row))
				for i, c := range row {
					cells[i] = c.text
				}
				lines = append(lines, strings.Join(cells, "\t"))
			}
		case blockListItem:
			lines = append(lines, strings.Repeat("  ", b.level)+b.marker+" "+b.text)
		case blockRule:
			lines = append(lines, "---")
		default:
			lines = append(lines, b.text)
		}
	}
	return strings.Join(lines, "\n")
}

// walkContext tracks the list nesting at the current node.
type walkContext struct {
	lists []listState
}

type listState struct {
	ordered bool
	next    int
}

func (d *Document) add(b block) {
	if b.kind != blockRule && b.kind != blockTable && b.text == "" {
		return
	}
	d.blocks = append(d.blocks, b)
}

func (d *Document) walk(n *html.Node, ctx *walkContext) {
	if n.Type == html.ElementNode {
		if shouldSkipElement(n.Data) {
			return
		}

		switch n.Data {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			d.add(block{
				kind:  blockHeading,
				text:  inlineText(n),
				level: int(n.Data[1] - '0'),
				align: alignOf(n),
			})
			return

		case "p", "div", "li", "blockquote":
			if n.Data == "li" && len(ctx.lists) > 0 {
				d.listItem(n, ctx)
				return
			}
			if isBlockContainer(n) {
				break
			}
			kind := blockParagraph
			if n.Data == "blockquote" {
				kind = blockQuote
			}
			d.add(block{kind: kind, text: inlineText(n), align: alignOf(n)})
			return

		case "ul", "ol":
			st := listState{ordered: n.Data == "ol", next: 1}
			if v, err := strconv.Atoi(attr(n, "start")); err == nil {
				st.next = v
			}
			ctx.lists = append(ctx.lists, st)
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				d.walk(c, ctx)
			}
			ctx.lists = ctx.lists[:len(ctx.lists)-1]
			return

		case "table":
			if t := parseTable(n); len(t.rows) > 0 {
				d.add(block{kind: blockTable, table: t})
			}
			return

		case "pre":
			d.add(block{kind: blockPre, text: strings.Trim(textContent(n, true), "\n")})
			return

		case "hr":
			d.add(block{kind: blockRule})
			return
		}
	}

	if n.Type == html.TextNode {
		// stray text directly inside a container
		if s := collapse(n.Data); s != "" {
			d.add(block{kind: blockParagraph, text: s})
		}
		return
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		d.walk(c, ctx)
	}
}

// listItem adds the inline text of li at the current depth, then descends
// into any nested lists.
func (d *Document) listItem(li *html.Node, ctx *walkContext) {
	st := &ctx.lists[len(ctx.lists)-1]
	marker := "*"
	if st.ordered {
		marker = strconv.Itoa(st.next) + "."
		st.next++
	}
	d.add(block{
		kind:   blockListItem,
		text:   collapse(textContent(li, false, "ul", "ol", "table")),
		level:  len(ctx.lists) - 1,
		marker: marker,
	})
	for c := li.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.Data == "ul" || c.Data == "ol" || c.Data == "table") {
			d.walk(c, ctx)
		}
	}
}

// parseTable collects rows from thead, tbody, tfoot and direct tr children.
func parseTable(n *html.Node) *table {
	t := &table{}
	var rows func(*html.Node, bool)
	rows = func(section *html.Node, header bool) {
		for c := section.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}
			switch c.Data {
			case "thead":
				rows(c, true)
			case "tbody", "tfoot":
				rows(c, false)
			case "tr":
				if row := parseRow(c, header); len(row) > 0 {
					t.rows = append(t.rows, row)
				}
			}
		}
	}
	rows(n, false)
	return t
}

func parseRow(tr *html.Node, header bool) []cell {
	var row []cell
	for c := tr.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode || (c.Data != "td" && c.Data != "th") {
			continue
		}
		cl := cell{text: inlineText(c), span: 1, header: header || c.Data == "th"}
		if v, err := strconv.Atoi(attr(c, "colspan")); err == nil && v > 1 {
			cl.span = v
		}
		row = append(row, cl)
	}
	return row
}

// shouldSkipElement returns true for elements with no rendered text.
func shouldSkipElement(tagName string) bool {
	switch tagName {
	case "head", "script", "style", "noscript", "template", "svg", "math", "iframe", "object", "embed":
		return true
	}
	return false
}

func isBlock(tagName string) bool {
	switch tagName {
	case "div", "p", "ul", "ol", "table", "h1", "h2", "h3", "h4", "h5", "h6", "blockquote", "pre", "hr", "article", "section":
		return true
	}
	return false
}

// isBlockContainer returns true if the element has block-level children.
func isBlockContainer(n *html.Node) bool {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && isBlock(c.Data) {
			return true
		}
	}
	return false
}

// findElement finds the first element with the given tag name.
func findElement(n *html.Node, tagName string) *html.Node {
	if n.Type == html.ElementNode && n.Data == tagName {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if result := findElement(c, tagName); result != nil {
			return result
		}
	}
	return nil
}

// textContent returns the text below n with br elements as newlines.
// Unless preserve is set, source line breaks count as plain whitespace.
func textContent(n *html.Node, preserve bool, skip ...string) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			if preserve {
				sb.WriteString(n.Data)
			} else {
				sb.WriteString(strings.Map(func(r rune) rune {
					if r == '\n' || r == '\r' {
						return ' '
					}
					return r
				}, n.Data))
			}
		case html.ElementNode:
			if shouldSkipElement(n.Data) || slices.Contains(skip, n.Data) {
				return
			}
			if n.Data == "br" {
				sb.WriteByte('\n')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

// inlineText returns the collapsed text of n.
func inlineText(n *html.Node) string {
	return collapse(textContent(n, false))
}

// collapse folds whitespace runs to single spaces the way a browser does,
// keeping explicit line breaks.
func collapse(s string) string {
	lines := strings.Split(s, "\n")
	out := lines[:0]
	for _, line := range lines {
		out = append(out, strings.Join(strings.Fields(line), " "))
	}
	return strings.Trim(strings.Join(out, "\n"), "\n ")
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// alignOf reads text-align from an inline style or the align attribute.
func alignOf(n *html.Node) alignment {
	v := strings.ToLower(attr(n, "align"))
	for _, decl := range strings.Split(attr(n, "style"), ";") {
		if prop, val, ok := strings.Cut(decl, ":"); ok && strings.TrimSpace(strings.ToLower(prop)) == "text-align" {
			v = strings.TrimSpace(strings.ToLower(val))
		}
	}
	switch v {
	case "center":
		return alignCenter
	case "right", "end":
		return alignRight
	}
	return alignLeft
}
