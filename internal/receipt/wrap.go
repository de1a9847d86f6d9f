package receipt

import (
	"strings"
	"unicode/utf8"
)

// Wrap breaks s into lines no wider than maxWidth as measured by m. Words are kept whole when
// they fit on a line of their own, otherwise they are split between characters. Explicit line
// breaks in s are honoured. The result always has at least one line.
func Wrap(m Measurer, font Font, s string, maxWidth float64) []string {
	var out []string
	for _, para := range strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n") {
		out = append(out, wrapParagraph(m, font, para, maxWidth)...)
	}
	return out
}

func wrapParagraph(m Measurer, font Font, s string, maxWidth float64) []string {
	words := strings.Fields(s)
	if len(words) == 0 {
		return []string{""}
	}

	var (
		lines []string
		cur   string
	)
	for _, w := range words {
		candidate := w
		if cur != "" {
			candidate = cur + " " + w
		}
		if m.Width(font, candidate) <= maxWidth {
			cur = candidate
			continue
		}
		if cur != "" {
			lines = append(lines, cur)
			cur = ""
		}
		if m.Width(font, w) <= maxWidth {
			cur = w
			continue
		}
		pieces := breakWord(m, font, w, maxWidth)
		lines = append(lines, pieces[:len(pieces)-1]...)
		cur = pieces[len(pieces)-1]
	}
	return append(lines, cur)
}

// breakWord splits a word wider than maxWidth. Every piece holds at least one character so the
// loop always makes progress, even when a single glyph is wider than maxWidth.
func breakWord(m Measurer, font Font, w string, maxWidth float64) []string {
	var pieces []string
	start := 0
	for start < len(w) {
		end := start
		_, size := utf8.DecodeRuneInString(w[end:])
		end += size
		for end < len(w) {
			_, size := utf8.DecodeRuneInString(w[end:])
			if m.Width(font, w[start:end+size]) > maxWidth {
				break
			}
			end += size
		}
		pieces = append(pieces, w[start:end])
		start = end
	}
	return pieces
}

// columns measures text in characters, for fixed-width output.
type columns struct{}

func (columns) Width(_ Font, s string) float64 {
	return float64(utf8.RuneCountInString(s))
}
