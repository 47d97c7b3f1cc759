package newsletter

import (
	"errors"
	"fmt"
	"time"
)

// Window is the half-open interval [Start, End) of receipt times a run covers.
type Window struct {
	Start time.Time
	End   time.Time
}

// Validate reports whether the window is usable.
func (w Window) Validate() error {
	if w.Start.IsZero() || w.End.IsZero() {
		return errors.New("window bounds must be set")
	}
	if !w.Start.Before(w.End) {
		return fmt.Errorf("window start %s must be before end %s", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
	}
	return nil
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}

func (w Window) String() string {
	return w.Start.Format(time.RFC3339) + " to " + w.End.Format(time.RFC3339)
}

// Message is one newsletter email as retrieved from the mailbox.
type Message struct {
	ID         string
	Sender     string
	Subject    string
	ReceivedAt time.Time
	Raw        []byte
}

// ProcessedRecord marks a message as converted; it is never reprocessed.
type ProcessedRecord struct {
	MessageID   string
	ProcessedAt time.Time
}

// TextChunk is a synthesizable slice of a message's text.
type TextChunk struct {
	MessageID string
	Index     int
	Text      string
}

// AudioChunk is the synthesized rendition of one TextChunk.
type AudioChunk struct {
	MessageID string
	Index     int
	Path      string
	Duration  time.Duration
}

// MessageTrack is the concatenated audio for one message.
type MessageTrack struct {
	MessageID   string
	DisplayName string
	Path        string
	Duration    time.Duration
}

// Chapter marks where a track begins inside the audiobook.
type Chapter struct {
	Title string
	Start time.Duration
}

// Audiobook is the compiled run artifact.
type Audiobook struct {
	Title      string
	Path       string
	Duration   time.Duration
	Chapters   []Chapter
	MessageIDs []string
}

// Receipt identifies an uploaded audiobook on the backend.
type Receipt struct {
	ID  string
	URL string
}
