package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"digestcast/internal/config"
	"digestcast/internal/logging"
	"digestcast/internal/media/ffprobe"
	"digestcast/internal/newsletter"
	"digestcast/internal/services"
)

// Plausible speech rates. Outside this band the audio is probably truncated
// or padded, which is logged but not treated as a failure.
const (
	minSecondsPerRune = 0.01
	maxSecondsPerRune = 0.5
)

// Engine synthesizes one chunk at a time.
type Engine interface {
	Synthesize(ctx context.Context, chunk newsletter.TextChunk, outPath string) (newsletter.AudioChunk, error)
	// Concurrent reports whether Synthesize may be called from several
	// goroutines at once.
	Concurrent() bool
	Close() error
}

// DurationMeter measures an audio file.
type DurationMeter interface {
	Duration(ctx context.Context, path string) (time.Duration, error)
}

// Voice is the conditioning shared by every chunk in a run.
type Voice struct {
	// ReferencePath is a WAV sample of the target speaker, empty for the
	// engine default.
	ReferencePath string
	Name          string
	Language      string
}

// ResolveVoice checks the configured reference sample. A missing or
// unreadable sample falls back to the default voice.
func ResolveVoice(cfg config.Synth, logger *slog.Logger) Voice {
	if logger == nil {
		logger = logging.NewNop()
	}
	voice := Voice{Name: cfg.Voice, Language: cfg.Language}
	path := strings.TrimSpace(cfg.ReferenceVoice)
	if path == "" {
		return voice
	}
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		logger.Info("reference voice not found; using default voice",
			logging.String("reference_voice", path),
		)
		return voice
	}
	voice.ReferencePath = path
	logger.Info("using reference voice", logging.String("reference_voice", path))
	return voice
}

// Open constructs the engine selected by synth.engine.
func Open(cfg *config.Config, logger *slog.Logger) (Engine, error) {
	logger = logging.NewComponentLogger(logger, "synth")
	voice := ResolveVoice(cfg.Synth, logger)
	meter := ffprobe.New(cfg.FFprobeBinary())
	switch cfg.Synth.Engine {
	case "command":
		return NewCommandEngine(CommandConfig{
			Binary:     cfg.Synth.Command,
			Args:       cfg.Synth.Args,
			Model:      cfg.Synth.Model,
			Concurrent: cfg.Synth.Concurrent,
			Timeout:    time.Duration(cfg.Synth.TimeoutSeconds) * time.Second,
		}, voice, meter, logger), nil
	case "http":
		engine, err := NewHTTPEngine(HTTPConfig{
			BaseURL:        cfg.Synth.BaseURL,
			APIKey:         cfg.Synth.APIKey,
			Model:          cfg.Synth.Model,
			TimeoutSeconds: cfg.Synth.TimeoutSeconds,
		}, voice, meter, logger)
		if err != nil {
			return nil, err
		}
		return engine, nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "synth", "open", fmt.Sprintf("unsupported engine %q", cfg.Synth.Engine), nil)
	}
}

// finish measures outPath and builds the AudioChunk for chunk.
func finish(ctx context.Context, meter DurationMeter, logger *slog.Logger, chunk newsletter.TextChunk, outPath string) (newsletter.AudioChunk, error) {
	info, err := os.Stat(outPath)
	if err != nil {
		return newsletter.AudioChunk{}, services.Wrap(services.ErrExternalTool, "synth", "verify output", outPath, err)
	}
	if info.Size() == 0 {
		return newsletter.AudioChunk{}, services.Wrap(services.ErrExternalTool, "synth", "verify output", outPath+" is empty", nil)
	}
	duration, err := meter.Duration(ctx, outPath)
	if err != nil {
		return newsletter.AudioChunk{}, services.Wrap(services.ErrExternalTool, "synth", "measure duration", outPath, err)
	}
	checkRate(logger, chunk, duration)
	return newsletter.AudioChunk{
		MessageID: chunk.MessageID,
		Index:     chunk.Index,
		Path:      outPath,
		Duration:  duration,
	}, nil
}

func checkRate(logger *slog.Logger, chunk newsletter.TextChunk, duration time.Duration) bool {
	runes := utf8.RuneCountInString(chunk.Text)
	if runes == 0 {
		return true
	}
	rate := duration.Seconds() / float64(runes)
	if rate >= minSecondsPerRune && rate <= maxSecondsPerRune {
		return true
	}
	logging.WarnWithContext(logger, "synthesized duration outside expected range", "synth_rate_outlier",
		logging.MessageID(chunk.MessageID),
		logging.Int("chunk_index", chunk.Index),
		logging.Int("runes", runes),
		logging.Duration("duration", duration),
		logging.Float64("seconds_per_rune", rate),
		logging.ErrorHint("listen to the chunk; the engine may have truncated or padded it"),
		logging.Impact("audio kept as produced"),
	)
	return false
}

// IsFatal reports whether a synthesis error should abort the run rather than
// the current message.
func IsFatal(err error) bool {
	return errors.Is(err, services.ErrAuthentication) || errors.Is(err, services.ErrConfiguration)
}
