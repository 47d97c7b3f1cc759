package extract

import (
	"regexp"
	"strings"
)

var (
	markdownLink  = regexp.MustCompile(`\[([^\]]*)\]\(\s*[^)\s]+(?:\s+"[^"]*")?\s*\)`)
	angleURL      = regexp.MustCompile(`\s*<(?:https?://|mailto:|www\.)[^>]*>`)
	bareURL       = regexp.MustCompile(`(?i)\b(?:https?://|www\.)\S+`)
	blankLine     = regexp.MustCompile(`\n[ \t]*\n`)
	urlLike       = regexp.MustCompile(`(?i)^(?:https?://|www\.|mailto:)\S*$|^\S+\.(?:com|org|net|io|co|us|uk|de)(?:/\S*)?$`)
	quotedLineTag = regexp.MustCompile(`(?m)^>+ ?`)
)

// renderPlain removes link syntax from a text/plain body and splits it into
// paragraphs at blank lines.
func renderPlain(body string) []string {
	body = strings.ReplaceAll(body, "\r\n", "\n")
	body = quotedLineTag.ReplaceAllString(body, "")
	body = markdownLink.ReplaceAllString(body, "$1")
	body = angleURL.ReplaceAllString(body, "")

	var paragraphs []string
	for _, block := range blankLine.Split(body, -1) {
		if block = strings.TrimSpace(block); block != "" {
			paragraphs = append(paragraphs, block)
		}
	}
	return paragraphs
}

func looksLikeURL(text string) bool {
	return text != "" && urlLike.MatchString(text)
}
