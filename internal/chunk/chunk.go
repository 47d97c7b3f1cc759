// Package chunk splits normalized message text into segments no longer than
// the synthesis engine accepts.
//
// Chunks break at sentence ends or paragraph breaks when possible, then at
// word boundaries, and a word is only cut mid-way when it alone exceeds the
// limit. Joining the chunk texts with single spaces reproduces the input
// with its whitespace collapsed.
package chunk

import (
	"errors"
	"strings"
	"unicode/utf8"

	"digestcast/internal/newsletter"
)

// ErrInvalidLimit is returned for a non-positive maximum length.
var ErrInvalidLimit = errors.New("chunk: max length must be positive")

// Collapse joins the whitespace-separated fields of text with single spaces.
func Collapse(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Split divides text into chunks of at most maxRunes runes. Text with no
// words yields no chunks.
func Split(messageID, text string, maxRunes int) ([]newsletter.TextChunk, error) {
	if maxRunes <= 0 {
		return nil, ErrInvalidLimit
	}
	if collapsed := Collapse(text); utf8.RuneCountInString(collapsed) <= maxRunes {
		if collapsed == "" {
			return nil, nil
		}
		return []newsletter.TextChunk{{MessageID: messageID, Index: 0, Text: collapsed}}, nil
	}

	p := packer{max: maxRunes}
	for _, sentence := range sentences(text) {
		p.addSentence(sentence)
	}
	p.flush()

	chunks := make([]newsletter.TextChunk, len(p.out))
	for i, t := range p.out {
		chunks[i] = newsletter.TextChunk{MessageID: messageID, Index: i, Text: t}
	}
	return chunks, nil
}

// packer greedily fills chunks with whole sentences.
type packer struct {
	max     int
	current []string
	length  int
	out     []string
}

func (p *packer) addSentence(words []string) {
	size := wordsLength(words)
	if size <= p.max {
		if p.length > 0 && p.length+1+size > p.max {
			p.flush()
		}
		p.append(words, size)
		return
	}
	// The sentence alone is too long: fill word by word.
	for _, word := range words {
		p.addWord(word)
	}
}

func (p *packer) addWord(word string) {
	n := utf8.RuneCountInString(word)
	if n > p.max {
		p.flush()
		for _, piece := range cutRunes(word, p.max) {
			p.append([]string{piece}, utf8.RuneCountInString(piece))
			if p.length == p.max {
				p.flush()
			}
		}
		return
	}
	if p.length > 0 && p.length+1+n > p.max {
		p.flush()
	}
	p.append([]string{word}, n)
}

func (p *packer) append(words []string, size int) {
	if p.length > 0 {
		p.length++
	}
	p.current = append(p.current, words...)
	p.length += size
}

func (p *packer) flush() {
	if len(p.current) == 0 {
		return
	}
	p.out = append(p.out, strings.Join(p.current, " "))
	p.current = p.current[:0]
	p.length = 0
}

func wordsLength(words []string) int {
	total := 0
	for i, w := range words {
		if i > 0 {
			total++
		}
		total += utf8.RuneCountInString(w)
	}
	return total
}

func cutRunes(word string, size int) []string {
	var pieces []string
	runes := []rune(word)
	for len(runes) > size {
		pieces = append(pieces, string(runes[:size]))
		runes = runes[size:]
	}
	if len(runes) > 0 {
		pieces = append(pieces, string(runes))
	}
	return pieces
}
