// Package extract turns a raw newsletter email into speakable plain text.
//
// The best MIME body is chosen (HTML when present, otherwise text/plain),
// markup and link syntax are removed while keeping link display text,
// sender-agnostic footer boilerplate is dropped, and the result is NFKC
// normalized into paragraphs separated by a blank line. The same input always
// yields the same output.
package extract
