package chunk

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Abbreviations that end in a period without ending a sentence.
var abbreviations = map[string]bool{
	"mr.": true, "mrs.": true, "ms.": true, "dr.": true, "prof.": true, "st.": true,
	"vs.": true, "etc.": true, "e.g.": true, "i.e.": true, "inc.": true, "ltd.": true,
	"jr.": true, "sr.": true, "no.": true, "u.s.": true, "u.k.": true,
}

// sentences groups the words of text into sentences. A paragraph break
// (a blank line) always ends a sentence.
func sentences(text string) [][]string {
	var out [][]string
	for _, paragraph := range splitParagraphs(text) {
		var current []string
		words := strings.Fields(paragraph)
		for i, word := range words {
			current = append(current, word)
			if i+1 < len(words) && endsSentence(word, words[i+1]) {
				out = append(out, current)
				current = nil
			}
		}
		if len(current) > 0 {
			out = append(out, current)
		}
	}
	return out
}

func splitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	var paragraphs []string
	var b strings.Builder
	blank := false
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			blank = true
			continue
		}
		if blank && b.Len() > 0 {
			paragraphs = append(paragraphs, b.String())
			b.Reset()
		}
		blank = false
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if b.Len() > 0 {
		paragraphs = append(paragraphs, b.String())
	}
	return paragraphs
}

func endsSentence(word, next string) bool {
	trimmed := strings.TrimRight(word, `"')]}»”’`)
	if trimmed == "" {
		return false
	}
	last, _ := utf8.DecodeLastRuneInString(trimmed)
	switch last {
	case '!', '?', '…':
		return true
	case '.':
		if abbreviations[strings.ToLower(trimmed)] {
			return false
		}
		first, _ := utf8.DecodeRuneInString(next)
		return !unicode.IsLower(first)
	}
	return false
}
