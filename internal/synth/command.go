package synth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"digestcast/internal/logging"
	"digestcast/internal/newsletter"
	"digestcast/internal/services"
)

// commandRunner executes name with args, feeding stdin when non-nil.
type commandRunner func(ctx context.Context, stdin io.Reader, name string, args ...string) error

// CommandConfig describes a local text-to-speech binary.
type CommandConfig struct {
	Binary     string
	Args       []string
	Model      string
	Concurrent bool
	Timeout    time.Duration
}

// CommandEngine runs a TTS binary once per chunk.
type CommandEngine struct {
	cfg    CommandConfig
	voice  Voice
	meter DurationMeter
	logger *slog.Logger
	run    commandRunner
}

// NewCommandEngine returns an engine for cfg.
func NewCommandEngine(cfg CommandConfig, voice Voice, meter DurationMeter, logger *slog.Logger) *CommandEngine {
	return &CommandEngine{
		cfg:    cfg,
		voice:  voice,
		meter: meter,
		logger: logging.NewComponentLogger(logger, "synth.command"),
		run:    runCommand,
	}
}

// Synthesize writes the audio for chunk to outPath.
func (e *CommandEngine) Synthesize(ctx context.Context, chunk newsletter.TextChunk, outPath string) (newsletter.AudioChunk, error) {
	textPath := outPath + ".txt"
	if err := os.WriteFile(textPath, []byte(chunk.Text), 0o644); err != nil {
		return newsletter.AudioChunk{}, services.Wrap(services.ErrExternalTool, "synth.command", "write chunk text", textPath, err)
	}
	defer os.Remove(textPath)

	args, usesText := e.expandArgs(chunk.Text, textPath, outPath)
	var stdin io.Reader
	if !usesText {
		stdin = strings.NewReader(chunk.Text)
	}

	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	if err := e.run(ctx, stdin, e.cfg.Binary, args...); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return newsletter.AudioChunk{}, services.Wrap(services.ErrTimeout, "synth.command", "run", e.cfg.Binary, err)
		}
		return newsletter.AudioChunk{}, services.Wrap(services.ErrExternalTool, "synth.command", "run", e.cfg.Binary, err)
	}
	e.logger.Debug("chunk synthesized",
		logging.MessageID(chunk.MessageID),
		logging.Int("chunk_index", chunk.Index),
		logging.Duration("elapsed", time.Since(start)),
	)
	return finish(ctx, e.meter, e.logger, chunk, outPath)
}

// expandArgs substitutes placeholders. An argument that references
// {speaker_wav} is dropped, along with its preceding flag, when no reference
// voice is configured. usesText reports whether the text is passed by
// argument rather than stdin.
func (e *CommandEngine) expandArgs(text, textPath, outPath string) ([]string, bool) {
	replacer := strings.NewReplacer(
		"{output}", outPath,
		"{text_file}", textPath,
		"{text}", text,
		"{voice}", e.voice.Name,
		"{model}", e.cfg.Model,
		"{language}", e.voice.Language,
		"{speaker_wav}", e.voice.ReferencePath,
	)
	args := make([]string, 0, len(e.cfg.Args))
	usesText := false
	for _, arg := range e.cfg.Args {
		if strings.Contains(arg, "{text_file}") || strings.Contains(arg, "{text}") {
			usesText = true
		}
		if strings.Contains(arg, "{speaker_wav}") && e.voice.ReferencePath == "" {
			if n := len(args); n > 0 && strings.HasPrefix(args[n-1], "-") {
				args = args[:n-1]
			}
			continue
		}
		args = append(args, replacer.Replace(arg))
	}
	return args, usesText
}

// Concurrent reports the configured capability of the binary.
func (e *CommandEngine) Concurrent() bool {
	return e.cfg.Concurrent
}

// Close is a no-op; each chunk runs its own process.
func (e *CommandEngine) Close() error {
	return nil
}

func runCommand(ctx context.Context, stdin io.Reader, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdin = stdin
	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(tail(stderr.String(), 2048)))
	}
	return nil
}

func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
