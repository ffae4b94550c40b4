// Package textnorm folds free-text names into a canonical comparable form.
//
// Portuguese POI names arrive with inconsistent accents, punctuation and
// casing across sources ("Castelo de S. Jorge" vs "castelo de são jorge");
// all cross-source comparison in the pipeline happens on the canonical form
// produced here.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stripMarks decomposes to NFD and removes combining diacritical marks.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize returns the canonical form of text: diacritics stripped, every
// non-alphanumeric/non-space rune replaced by a space, whitespace collapsed,
// trimmed, lowercased. Pure and deterministic; Normalize is idempotent.
func Normalize(text string) string {
	folded, _, err := transform.String(stripMarks, text)
	if err != nil {
		// transform only fails on malformed UTF-8; fall back to the input.
		folded = text
	}

	var b strings.Builder
	b.Grow(len(folded))
	space := false
	for _, r := range folded {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(unicode.ToLower(r))
		default:
			space = true
		}
	}
	return b.String()
}

// Tokenize splits the canonical form of text on whitespace, discards noise
// tokens of length <= 2 ("de", "da", "do"...) and de-duplicates, preserving
// first-seen order. A blank input yields an empty set.
func Tokenize(text string) []string {
	canonical := Normalize(text)
	if canonical == "" {
		return nil
	}

	seen := make(map[string]struct{})
	var tokens []string
	for _, tok := range strings.Fields(canonical) {
		if len([]rune(tok)) <= 2 {
			continue
		}
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		tokens = append(tokens, tok)
	}
	return tokens
}
