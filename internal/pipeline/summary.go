package pipeline

import (
	"time"

	"digestcast/internal/newsletter"
)

// Status is the outcome of a run.
type Status string

const (
	StatusUploaded         Status = "uploaded"
	StatusNothingToCompile Status = "nothing_to_compile"
	StatusUploadFailed     Status = "upload_failed"
	StatusFailed           Status = "failed"
)

// MessageFailure records a message left out of the audiobook.
type MessageFailure struct {
	MessageID string
	Sender    string
	Stage     string
	Err       error
}

// Summary describes a finished run.
type Summary struct {
	RunID  string
	Window newsletter.Window
	Status Status

	Fetched     int
	// Skipped counts messages already in the ledger plus messages left out
	// after a failure. Sender-level fetch failures are not counted.
	Skipped     int
	Synthesized int
	Uploaded    int
	Failures    []MessageFailure

	Title        string
	Duration     time.Duration
	Chapters     []newsletter.Chapter
	ArtifactPath string
	ArchivePath  string
	ReceiptID    string
	Elapsed      time.Duration
}

// skipMessage records a message-local failure.
func (s *Summary) skipMessage(f MessageFailure) {
	s.Failures = append(s.Failures, f)
	s.Skipped++
}

// ExitOK reports whether the CLI should exit zero for this summary.
func (s Summary) ExitOK() bool {
	return s.Status == StatusUploaded || s.Status == StatusNothingToCompile
}
