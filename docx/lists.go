package docx

import "strconv"

// ListKind says how a list paragraph is marked.
type ListKind int

const (
	NotList ListKind = iota
	Bulleted
	Numbered
)

// String returns the HTML element name for the list kind.
func (k ListKind) String() string {
	switch k {
	case Bulleted:
		return "ul"
	case Numbered:
		return "ol"
	default:
		return ""
	}
}

type listLevel struct {
	kind  ListKind
	start int
}

// numberingResolver maps a paragraph's numId and ilvl to a list level
// through the abstract numbering definitions.
type numberingResolver struct {
	nums     map[string]string
	abstract map[string]map[int]listLevel
}

func newNumberingResolver(n *numberingXML) *numberingResolver {
	nr := &numberingResolver{
		nums:     make(map[string]string),
		abstract: make(map[string]map[int]listLevel),
	}
	if n == nil {
		return nr
	}
	for _, a := range n.AbstractNums {
		levels := make(map[int]listLevel, len(a.Levels))
		for _, lvl := range a.Levels {
			i, err := strconv.Atoi(lvl.ILvl)
			if err != nil {
				continue
			}
			l := listLevel{kind: kindOf(lvl.NumFmt.Val), start: 1}
			if s, err := strconv.Atoi(lvl.Start.Val); err == nil {
				l.start = s
			}
			levels[i] = l
		}
		nr.abstract[a.AbstractNumID] = levels
	}
	for _, num := range n.Nums {
		nr.nums[num.NumID] = num.AbstractNumID.Val
	}
	return nr
}

func kindOf(numFmt string) ListKind {
	switch numFmt {
	case "decimal", "decimalZero", "lowerLetter", "upperLetter", "lowerRoman", "upperRoman", "ordinal":
		return Numbered
	default:
		return Bulleted
	}
}

// resolve returns the list level for numID at depth ilvl. A numId of "0"
// switches numbering off. An unknown numId is still a list, bulleted.
func (nr *numberingResolver) resolve(numID string, ilvl int) listLevel {
	if numID == "" || numID == "0" {
		return listLevel{}
	}
	if levels, ok := nr.abstract[nr.nums[numID]]; ok {
		if l, ok := levels[ilvl]; ok {
			return l
		}
	}
	return listLevel{kind: Bulleted, start: 1}
}
