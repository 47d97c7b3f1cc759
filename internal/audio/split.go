package audio

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"time"
)

// Part is one slice of a split file.
type Part struct {
	Path     string
	Start    time.Duration
	Duration time.Duration
}

// PartCount returns how many parts keep each below maxBytes.
func PartCount(size, maxBytes int64) int {
	if maxBytes <= 0 || size <= maxBytes {
		return 1
	}
	return int((size + maxBytes - 1) / maxBytes)
}

// Split cuts an MP3 into parts of equal duration without re-encoding.
// Parts are written to dir as <stem>_part_<i>_of_<n>.mp3.
func (p *Processor) Split(ctx context.Context, inPath string, total time.Duration, parts int, dir, stem string) ([]Part, error) {
	if parts <= 1 {
		return []Part{{Path: inPath, Duration: total}}, nil
	}
	if total <= 0 {
		return nil, fmt.Errorf("split %s: unknown duration", inPath)
	}
	step := (total + time.Duration(parts) - 1) / time.Duration(parts)
	out := make([]Part, 0, parts)
	for i := 0; i < parts; i++ {
		start := time.Duration(i) * step
		length := min(step, total-start)
		if length <= 0 {
			break
		}
		path := filepath.Join(dir, fmt.Sprintf("%s_part_%d_of_%d.mp3", stem, i+1, parts))
		if err := p.ffmpeg(ctx, "split",
			"-ss", seconds(start), "-t", seconds(length),
			"-i", inPath, "-c", "copy", path,
		); err != nil {
			return nil, err
		}
		out = append(out, Part{Path: path, Start: start, Duration: length})
	}
	return out, nil
}

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
