// Package engine implements the quest core: answer normalization and
// matching, waypoint availability, and the per-waypoint answer flow.
package engine

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalize canonicalizes free-text input for comparison. The result is
// never shown to the player. Steps: trim, lower-case (Russian casing rules,
// so Ё folds through ё), fold ё to е, strip quote characters, collapse every
// run of non-letter/non-digit characters to a single space, trim again.
// Normalize is idempotent.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	s = cases.Lower(language.Russian).String(s)
	s = strings.ReplaceAll(s, "ё", "е")

	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		switch {
		case isQuote(r):
			// Stripped entirely: "don't" compares as "dont".
		case isWordRune(r):
			if pendingSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			pendingSpace = false
			b.WriteRune(r)
		default:
			pendingSpace = true
		}
	}
	return b.String()
}

func isQuote(r rune) bool {
	switch r {
	case '"', '“', '”', '\'', '’', '`':
		return true
	}
	return false
}

// isWordRune reports whether r survives normalization: ASCII digits and
// letters plus the lowercase Cyrillic range (ё is already folded away).
func isWordRune(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'а' && r <= 'я')
}
