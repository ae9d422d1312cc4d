package player

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize turns a display name into a stable key: diacritics stripped,
// lowercased, whitespace collapsed. "  José  Müller " -> "jose muller".
func Normalize(name string) string {
	if name == "" {
		return ""
	}
	s := stripDiacritics(name)
	s = strings.ToLower(strings.TrimSpace(s))
	return collapseWhitespace(s)
}

func stripDiacritics(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range norm.NFD.String(s) {
		if !unicode.Is(unicode.Mn, r) { // Mn = Mark, Nonspacing (combining accents)
			b.WriteRune(r)
		}
	}
	return b.String()
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
