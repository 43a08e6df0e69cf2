package htmldoc

// blockKind is the layout role of a block.
type blockKind int

const (
	blockParagraph blockKind = iota
	blockHeading
	blockListItem
	blockTable
	blockPre
	blockQuote
	blockRule
)

// block is one vertically stacked box of content.
type block struct {
	kind   blockKind
	text   string
	level  int    // heading level (1-6) or list depth (0-based)
	marker string // list item marker
	align  alignment
	table  *table
}

type alignment int

const (
	alignLeft alignment = iota
	alignCenter
	alignRight
)

type table struct {
	rows [][]cell
}

type cell struct {
	text   string
	span   int
	header bool
}

// columns returns the widest row measured in grid columns.
func (t *table) columns() int {
	n := 0
	for _, row := range t.rows {
		w := 0
		for _, c := range row {
			w += c.span
		}
		n = max(n, w)
	}
	return n
}
