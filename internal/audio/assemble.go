package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"digestcast/internal/logging"
	"digestcast/internal/newsletter"
)

// ErrMissingChunk reports a chunk set that does not cover indices 0..n-1
// exactly once for a single message.
var ErrMissingChunk = errors.New("missing or duplicate audio chunk")

// Assemble concatenates chunks for messageID into one PCM WAV track at
// outPath. Chunks may arrive in any order.
func (p *Processor) Assemble(ctx context.Context, messageID, displayName string, chunks []newsletter.AudioChunk, outPath string) (newsletter.MessageTrack, error) {
	ordered, err := orderChunks(messageID, chunks)
	if err != nil {
		return newsletter.MessageTrack{}, err
	}

	paths := make([]string, len(ordered))
	var total time.Duration
	for i, chunk := range ordered {
		paths[i] = chunk.Path
		total += chunk.Duration
	}

	listPath := outPath + ".ffconcat"
	if err := writeConcatList(listPath, paths); err != nil {
		return newsletter.MessageTrack{}, fmt.Errorf("write concat list: %w", err)
	}
	defer os.Remove(listPath)

	if err := p.ffmpeg(ctx, "assemble",
		"-f", "concat", "-safe", "0", "-i", listPath,
		"-c:a", "pcm_s16le", "-ar", p.sampleRate(), "-ac", "1",
		outPath,
	); err != nil {
		return newsletter.MessageTrack{}, err
	}

	p.logger.Debug("track assembled",
		logging.MessageID(messageID),
		logging.Int("chunks", len(ordered)),
		logging.Duration("duration", total),
	)
	return newsletter.MessageTrack{
		MessageID:   messageID,
		DisplayName: displayName,
		Path:        outPath,
		Duration:    total,
	}, nil
}

func orderChunks(messageID string, chunks []newsletter.AudioChunk) ([]newsletter.AudioChunk, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks for %s", ErrMissingChunk, messageID)
	}
	ordered := append([]newsletter.AudioChunk(nil), chunks...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })
	for i, chunk := range ordered {
		if chunk.MessageID != messageID {
			return nil, fmt.Errorf("%w: chunk %d belongs to %s", ErrMissingChunk, chunk.Index, chunk.MessageID)
		}
		if chunk.Index != i {
			return nil, fmt.Errorf("%w: expected index %d, found %d", ErrMissingChunk, i, chunk.Index)
		}
	}
	return ordered, nil
}
