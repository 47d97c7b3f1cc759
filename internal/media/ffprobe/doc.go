// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Prober: runs ffprobe through an injectable Runner
//
// Duration is the entry point used by synthesis and manual uploads; it
// converts the reported seconds into an integer time.Duration so chunk
// durations can be summed exactly.
package ffprobe
