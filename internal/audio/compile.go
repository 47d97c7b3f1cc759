package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"digestcast/internal/logging"
	"digestcast/internal/newsletter"
)

// ErrNothingToCompile is returned when a run produced no tracks.
var ErrNothingToCompile = errors.New("nothing to compile")

// Compile concatenates tracks in order into an MP3 at outPath with embedded
// chapter markers.
func (p *Processor) Compile(ctx context.Context, title string, tracks []newsletter.MessageTrack, outPath string) (newsletter.Audiobook, error) {
	if len(tracks) == 0 {
		return newsletter.Audiobook{}, ErrNothingToCompile
	}
	chapters := BuildChapters(tracks)
	total := TotalDuration(tracks)

	paths := make([]string, len(tracks))
	ids := make([]string, len(tracks))
	for i, track := range tracks {
		paths[i] = track.Path
		ids[i] = track.MessageID
	}

	listPath := outPath + ".ffconcat"
	if err := writeConcatList(listPath, paths); err != nil {
		return newsletter.Audiobook{}, fmt.Errorf("write concat list: %w", err)
	}
	defer os.Remove(listPath)

	metaPath := outPath + ".ffmeta"
	if err := os.WriteFile(metaPath, []byte(FFMetadata(title, chapters, total)), 0o644); err != nil {
		return newsletter.Audiobook{}, fmt.Errorf("write chapter metadata: %w", err)
	}
	defer os.Remove(metaPath)

	if err := p.ffmpeg(ctx, "compile",
		"-f", "concat", "-safe", "0", "-i", listPath,
		"-i", metaPath,
		"-map", "0:a", "-map_metadata", "1", "-map_chapters", "1",
		"-c:a", "libmp3lame", "-b:a", p.opts.Bitrate, "-ar", p.sampleRate(),
		"-id3v2_version", "3",
		outPath,
	); err != nil {
		return newsletter.Audiobook{}, err
	}

	p.logger.Info("audiobook compiled",
		logging.String("title", title),
		logging.Int("tracks", len(tracks)),
		logging.Duration("duration", total),
	)
	return newsletter.Audiobook{
		Title:      title,
		Path:       outPath,
		Duration:   total,
		Chapters:   chapters,
		MessageIDs: ids,
	}, nil
}

// FFMetadata renders an FFMETADATA1 document with one chapter per entry.
// Chapter ends are the next chapter's start, the last ending at total.
func FFMetadata(title string, chapters []newsletter.Chapter, total time.Duration) string {
	var b strings.Builder
	b.WriteString(";FFMETADATA1\n")
	b.WriteString("title=")
	b.WriteString(escapeMetadata(title))
	b.WriteByte('\n')
	for i, chapter := range chapters {
		end := total
		if i+1 < len(chapters) {
			end = chapters[i+1].Start
		}
		b.WriteString("\n[CHAPTER]\nTIMEBASE=1/1000\n")
		b.WriteString("START=" + strconv.FormatInt(chapter.Start.Milliseconds(), 10) + "\n")
		b.WriteString("END=" + strconv.FormatInt(end.Milliseconds(), 10) + "\n")
		b.WriteString("title=" + escapeMetadata(chapter.Title) + "\n")
	}
	return b.String()
}

var metadataEscaper = strings.NewReplacer(`\`, `\\`, "=", `\=`, ";", `\;`, "#", `\#`, "\n", "\\\n")

func escapeMetadata(value string) string {
	return metadataEscaper.Replace(value)
}
