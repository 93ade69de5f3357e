// Package match provides the deterministic string helpers that seed the
// similarity probes in the entity store: word selection for LIKE prefilters,
// match-key sanitization, and accent folding.
package match

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// sqlUnsafe lists the characters stripped from match keys before they are
// bound as SQL parameters.
const sqlUnsafe = `<>:"/\|?*`

// FirstAfterFifth returns the word of text that covers character position
// len(trim(text))/5 when the words are joined by single spaces. Words of
// length < 2 are too weak as a LIKE prefilter, so the following word is
// returned instead. Returns "" for empty input or when no word qualifies.
func FirstAfterFifth(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ""
	}
	fifth := len(trimmed) / 5

	words := strings.Fields(trimmed)
	current := 0
	for i, word := range words {
		next := current + len(word)
		if fifth < next {
			if len(word) < 2 && i+1 < len(words) {
				return words[i+1]
			}
			if len(word) < 2 {
				return ""
			}
			return word
		}
		current = next + 1
	}
	return ""
}

// IsFirstWordShort reports whether the first whitespace token of text has
// length <= 1. Publication author lists carry initials-only entries that
// cannot be matched against the author table.
func IsFirstWordShort(text string) bool {
	words := strings.Fields(text)
	if len(words) == 0 {
		return false
	}
	return len(words[0]) <= 1
}

// Sanitize trims surrounding whitespace and strips the characters that are
// rejected by the similarity operators' LIKE prefilters.
func Sanitize(text string) string {
	trimmed := strings.TrimSpace(text)
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(sqlUnsafe, r) {
			return -1
		}
		return r
	}, trimmed)
}

var foldTransformer = transform.Chain(
	norm.NFD,
	runes.Remove(runes.In(unicode.Mn)),
	norm.NFC,
)

// Fold lowercases text and strips combining marks so that accented and
// unaccented spellings of the same name produce the same match key.
func Fold(text string) string {
	folded, _, err := transform.String(foldTransformer, text)
	if err != nil {
		return strings.ToLower(text)
	}
	return strings.ToLower(folded)
}

// AuthorPrefilter derives the cheap LIKE bounds for an author-name
// similarity probe: the surname (last token) anchors the suffix and the
// leading one or two characters anchor the prefix. Two characters are used
// when the first token is a full name rather than an initial.
func AuthorPrefilter(name string) (initials, surname string) {
	words := strings.Fields(name)
	if len(words) == 0 {
		return "", ""
	}
	surname = words[len(words)-1]

	first := strings.ReplaceAll(words[0], ".", "")
	n := 1
	if len(first) > 1 {
		n = 2
	}
	if len(name) < n {
		n = len(name)
	}
	return name[:n], surname
}
