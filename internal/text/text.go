// Package text holds the label and token normalization used to match UI elements.
package text

import (
	"strings"
	"unicode"
)

// NormalizeToken lowercases and keeps only letters, digits, '_' and '.'.
// It is used for combo box items and option values.
func NormalizeToken(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || r == '.' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeLabel lowercases a visible label, drops '&' mnemonic markers and
// collapses whitespace. It is used for button labels.
func NormalizeLabel(s string) string {
	s = strings.ReplaceAll(s, "&", "")
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// FindBestIndex returns the index of the item whose token equals wanted,
// otherwise the first item whose token contains or is contained by wanted,
// otherwise -1. A blank wanted never matches.
func FindBestIndex(items []string, wanted string) int {
	want := NormalizeToken(wanted)
	if want == "" {
		return -1
	}
	partial := -1
	for i, item := range items {
		norm := NormalizeToken(item)
		if norm == want {
			return i
		}
		if partial < 0 && norm != "" && (strings.Contains(norm, want) || strings.Contains(want, norm)) {
			partial = i
		}
	}
	return partial
}
