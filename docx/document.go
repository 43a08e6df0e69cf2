package docx

import (
	"encoding/xml"
	"strings"
)

// documentXML is word/document.xml. Only the body is read.
type documentXML struct {
	XMLName xml.Name `xml:"document"`
	Body    bodyXML  `xml:"body"`
}

// bodyXML keeps paragraphs and tables in document order, which a pair of
// struct slices would lose.
type bodyXML struct {
	Blocks []blockXML
}

type blockXML struct {
	Paragraph *paragraphXML
	Table     *tableXML
}

func (b *bodyXML) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	return decodeBlocks(d, &b.Blocks)
}

// decodeBlocks reads block-level children until the enclosing element ends.
// Structured document tags (w:sdt) are transparent.
func decodeBlocks(d *xml.Decoder, blocks *[]blockXML) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				var p paragraphXML
				if err := d.DecodeElement(&p, &t); err != nil {
					return err
				}
				*blocks = append(*blocks, blockXML{Paragraph: &p})
			case "tbl":
				var tbl tableXML
				if err := d.DecodeElement(&tbl, &t); err != nil {
					return err
				}
				*blocks = append(*blocks, blockXML{Table: &tbl})
			case "sdt", "sdtContent":
				if err := decodeBlocks(d, blocks); err != nil {
					return err
				}
			default:
				if err := d.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			return nil
		}
	}
}

// paragraphXML is a w:p element. Runs nested in hyperlinks, smart tags and
// inserted-text markup are flattened into Runs in reading order.
type paragraphXML struct {
	Properties paragraphPropsXML
	Runs       []runXML
}

type paragraphPropsXML struct {
	Style   valXML `xml:"pStyle"`
	Justify valXML `xml:"jc"`
	NumPr   struct {
		ILvl  valXML `xml:"ilvl"`
		NumID valXML `xml:"numId"`
	} `xml:"numPr"`
	OutlineLvl valXML `xml:"outlineLvl"`
}

func (p *paragraphXML) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	return p.decodeContent(d)
}

func (p *paragraphXML) decodeContent(d *xml.Decoder) error {
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "pPr":
				if err := d.DecodeElement(&p.Properties, &t); err != nil {
					return err
				}
			case "r":
				var r runXML
				if err := d.DecodeElement(&r, &t); err != nil {
					return err
				}
				p.Runs = append(p.Runs, r)
			case "hyperlink", "smartTag", "ins", "fldSimple", "customXml":
				if err := p.decodeContent(d); err != nil {
					return err
				}
			default:
				if err := d.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			return nil
		}
	}
}

// runXML is a w:r element with its text, tabs and breaks joined in order.
type runXML struct {
	Properties runPropsXML
	Text       string
}

type runPropsXML struct {
	Bold      *toggleXML `xml:"b"`
	Italic    *toggleXML `xml:"i"`
	Underline *valXML    `xml:"u"`
	Strike    *toggleXML `xml:"strike"`
}

func (r *runXML) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var sb strings.Builder
	for {
		tok, err := d.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "rPr":
				if err := d.DecodeElement(&r.Properties, &t); err != nil {
					return err
				}
			case "t":
				var s string
				if err := d.DecodeElement(&s, &t); err != nil {
					return err
				}
				sb.WriteString(s)
			case "tab":
				sb.WriteByte('\t')
				if err := d.Skip(); err != nil {
					return err
				}
			case "br", "cr":
				sb.WriteByte('\n')
				if err := d.Skip(); err != nil {
					return err
				}
			case "noBreakHyphen":
				sb.WriteByte('-')
				if err := d.Skip(); err != nil {
					return err
				}
			default:
				if err := d.Skip(); err != nil {
					return err
				}
			}
		case xml.EndElement:
			r.Text = sb.String()
			return nil
		}
	}
}

type tableXML struct {
	Rows []rowXML `xml:"tr"`
}

type rowXML struct {
	Cells []cellXML `xml:"tc"`
}

type cellXML struct {
	Properties struct {
		GridSpan valXML `xml:"gridSpan"`
	} `xml:"tcPr"`
	Paragraphs []paragraphXML `xml:"p"`
}

// valXML is the common <w:x w:val="..."/> shape.
type valXML struct {
	Val string `xml:"val,attr"`
}

// toggleXML is an on/off property: present means on unless val says otherwise.
type toggleXML struct {
	Val string `xml:"val,attr"`
}

func (t *toggleXML) on() bool {
	if t == nil {
		return false
	}
	switch strings.ToLower(t.Val) {
	case "0", "false", "off":
		return false
	}
	return true
}

type stylesXML struct {
	Styles []styleXML `xml:"style"`
}

type styleXML struct {
	Type    string `xml:"type,attr"`
	StyleID string `xml:"styleId,attr"`
	Name    valXML `xml:"name"`
	BasedOn valXML `xml:"basedOn"`
	PPr     struct {
		OutlineLvl valXML `xml:"outlineLvl"`
	} `xml:"pPr"`
}

type numberingXML struct {
	AbstractNums []abstractNumXML `xml:"abstractNum"`
	Nums         []numXML         `xml:"num"`
}

type abstractNumXML struct {
	AbstractNumID string   `xml:"abstractNumId,attr"`
	Levels        []lvlXML `xml:"lvl"`
}

type lvlXML struct {
	ILvl   string `xml:"ilvl,attr"`
	Start  valXML `xml:"start"`
	NumFmt valXML `xml:"numFmt"`
}

type numXML struct {
	NumID         string `xml:"numId,attr"`
	AbstractNumID valXML `xml:"abstractNumId"`
}

type corePropertiesXML struct {
	Title string `xml:"title"`
}
