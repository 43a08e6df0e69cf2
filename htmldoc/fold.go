package htmldoc

import (
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// fold reduces s to the printable ASCII the bitmap face carries. Runes
// with no ASCII form become '?'.
func fold(s string) string {
	t := transform.Chain(
		norm.NFKD,
		runes.Remove(runes.In(unicode.Mn)),
		runes.Map(asciiRune),
		runes.Remove(runes.Predicate(isControl)),
	)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

func asciiRune(r rune) rune {
	switch r {
	case '\t', ' ':
		return ' '
	case '‘', '’', '‚', '′':
		return '\''
	case '“', '”', '„', '″', '«', '»':
		return '"'
	case '‐', '‑', '‒', '–', '—', '−':
		return '-'
	case '•', '●', '◦', '·':
		return '*'
	case 'ß':
		return 's'
	case 'ø':
		return 'o'
	case 'Ø':
		return 'O'
	case 'ı':
		return 'i'
	case 'ł':
		return 'l'
	case 'Ł':
		return 'L'
	}
	if r <= '~' {
		return r
	}
	return '?'
}

func isControl(r rune) bool {
	return r < ' ' && r != '\n'
}
