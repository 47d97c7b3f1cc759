// Package newsletter defines the values that flow through a digest run: the
// processing window, fetched messages, text and audio chunks, per-message
// tracks, chapters, and the compiled audiobook.
package newsletter
