package docx

import (
	"bytes"
	"io"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// HTML renders the document as a standalone HTML page.
func (r *Reader) HTML() (string, error) {
	var buf bytes.Buffer
	if err := r.WriteHTML(&buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// WriteHTML renders the document to w. Headings become h1-h6, consecutive
// list paragraphs are grouped into nested ul/ol elements and empty
// paragraphs are dropped.
func (r *Reader) WriteHTML(w io.Writer) error {
	root := &html.Node{Type: html.DocumentNode}
	root.AppendChild(&html.Node{Type: html.DoctypeNode, Data: "html"})
	doc := element(atom.Html)
	root.AppendChild(doc)

	head := element(atom.Head)
	head.AppendChild(element(atom.Meta, html.Attribute{Key: "charset", Val: "utf-8"}))
	if r.title != "" {
		title := element(atom.Title)
		title.AppendChild(text(r.title))
		head.AppendChild(title)
	}
	doc.AppendChild(head)

	body := element(atom.Body)
	doc.AppendChild(body)
	appendBlocks(body, r.blocks)

	return html.Render(w, root)
}

func appendBlocks(parent *html.Node, blocks []Block) {
	var lists []*html.Node
	for _, b := range blocks {
		if b.Table != nil {
			lists = nil
			parent.AppendChild(tableNode(b.Table))
			continue
		}
		p := b.Paragraph
		if p.List == NotList {
			lists = nil
			if n := paragraphNode(p); n != nil {
				parent.AppendChild(n)
			}
			continue
		}
		lists = appendListItem(parent, lists, p)
	}
}

// appendListItem adds p as an li at depth p.ListLevel, opening or closing
// nested lists as needed, and returns the new stack of open lists.
func appendListItem(parent *html.Node, lists []*html.Node, p *Paragraph) []*html.Node {
	depth := p.ListLevel + 1
	if len(lists) > depth {
		lists = lists[:depth]
	}
	if len(lists) == depth && lists[depth-1].Data != p.List.String() {
		lists = lists[:depth-1]
	}
	for len(lists) < depth {
		list := listNode(p)
		if len(lists) == 0 {
			parent.AppendChild(list)
		} else {
			outer := lists[len(lists)-1]
			li := outer.LastChild
			if li == nil {
				li = element(atom.Li)
				outer.AppendChild(li)
			}
			li.AppendChild(list)
		}
		lists = append(lists, list)
	}

	li := element(atom.Li)
	appendRuns(li, p.Runs)
	lists[depth-1].AppendChild(li)
	return lists
}

func listNode(p *Paragraph) *html.Node {
	if p.List == Numbered {
		n := element(atom.Ol)
		if p.ListStart != 1 {
			n.Attr = append(n.Attr, html.Attribute{Key: "start", Val: strconv.Itoa(p.ListStart)})
		}
		return n
	}
	return element(atom.Ul)
}

var headings = []atom.Atom{atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6}

func paragraphNode(p *Paragraph) *html.Node {
	if strings.TrimSpace(p.Text()) == "" {
		return nil
	}
	var n *html.Node
	if p.Heading > 0 {
		n = element(headings[min(p.Heading, len(headings))-1])
	} else {
		n = element(atom.P)
	}
	if align := textAlign(p.Align); align != "" {
		n.Attr = append(n.Attr, html.Attribute{Key: "style", Val: "text-align: " + align})
	}
	appendRuns(n, p.Runs)
	return n
}

func textAlign(jc string) string {
	switch jc {
	case "center":
		return "center"
	case "right", "end":
		return "right"
	case "both", "distribute":
		return "justify"
	}
	return ""
}

func tableNode(t *Table) *html.Node {
	table := element(atom.Table)
	tbody := element(atom.Tbody)
	table.AppendChild(tbody)
	for _, row := range t.Rows {
		tr := element(atom.Tr)
		for _, c := range row {
			td := element(atom.Td)
			if c.Span > 1 {
				td.Attr = append(td.Attr, html.Attribute{Key: "colspan", Val: strconv.Itoa(c.Span)})
			}
			blocks := make([]Block, len(c.Paragraphs))
			for i := range c.Paragraphs {
				blocks[i] = Block{Paragraph: &c.Paragraphs[i]}
			}
			appendBlocks(td, blocks)
			tr.AppendChild(td)
		}
		tbody.AppendChild(tr)
	}
	return table
}

// appendRuns adds each run as text wrapped in its formatting elements.
// Line breaks inside a run become br elements.
func appendRuns(parent *html.Node, runs []Run) {
	for _, run := range runs {
		target := parent
		for _, wrap := range []struct {
			on bool
			a  atom.Atom
		}{
			{run.Bold, atom.Strong},
			{run.Italic, atom.Em},
			{run.Underline, atom.U},
			{run.Strike, atom.S},
		} {
			if wrap.on {
				n := element(wrap.a)
				target.AppendChild(n)
				target = n
			}
		}
		for i, line := range strings.Split(run.Text, "\n") {
			if i > 0 {
				target.AppendChild(element(atom.Br))
			}
			if line != "" {
				target.AppendChild(text(line))
			}
		}
	}
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func text(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}
