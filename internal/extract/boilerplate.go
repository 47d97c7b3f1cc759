package extract

import (
	"strings"
	"unicode/utf8"
)

// Paragraphs longer than this are treated as content even if they mention a
// footer phrase.
const maxBoilerplateRunes = 320

var footerPhrases = []string{
	"unsubscribe",
	"view in browser",
	"view in your browser",
	"view this email in",
	"view it in your browser",
	"view online",
	"read online",
	"manage your preferences",
	"manage preferences",
	"update your preferences",
	"email preferences",
	"subscription preferences",
	"you are receiving this",
	"you're receiving this",
	"you received this email",
	"this email was sent to",
	"was forwarded to you",
	"forwarded this email",
	"add us to your address book",
	"all rights reserved",
	"privacy policy",
	"©",
	"(c) 20",
	"copyright 20",
}

// dropBoilerplate removes short paragraphs matching common footer phrasing.
func dropBoilerplate(paragraphs []string) []string {
	out := paragraphs[:0]
	for _, p := range paragraphs {
		if isBoilerplate(p) {
			continue
		}
		out = append(out, p)
	}
	return out
}

func isBoilerplate(p string) bool {
	if utf8.RuneCountInString(p) > maxBoilerplateRunes {
		return false
	}
	lower := strings.ToLower(p)
	for _, phrase := range footerPhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}
