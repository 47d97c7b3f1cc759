package extract

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var invisible = strings.NewReplacer(
	"\u200b", "",
	"\u200c", "",
	"\u200d", "",
	"\u2060", "",
	"\ufeff", "",
	"\u00ad", "",
	"\u034f", "",
)

// normalizeParagraphs applies NFKC, strips invisible characters and bare
// URLs, and collapses whitespace. Empty and punctuation-only paragraphs are
// dropped.
func normalizeParagraphs(paragraphs []string) []string {
	out := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		p = norm.NFKC.String(p)
		p = invisible.Replace(p)
		p = bareURL.ReplaceAllString(p, "")
		p = strings.Join(strings.Fields(p), " ")
		if !hasWordCharacter(p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func hasWordCharacter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func joinParagraphs(paragraphs []string) string {
	return strings.Join(paragraphs, "\n\n")
}
