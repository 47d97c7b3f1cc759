package extract

import (
	"strings"
	"time"
)

// Intro is the spoken preamble placed before each message.
func Intro(displayName string, received time.Time) string {
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = "an unknown sender"
	}
	return "Newsletter from: " + name + ". Received on: " + received.Format("January 2, 2006") + "."
}

// WithIntro prefixes text with Intro as its own paragraph.
func WithIntro(text, displayName string, received time.Time) string {
	return Intro(displayName, received) + "\n\n" + text
}
