package audio

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"digestcast/internal/config"
	"digestcast/internal/logging"
	"digestcast/internal/services"
)

const (
	defaultBitrate    = "64k"
	defaultSampleRate = 24000
)

// Runner executes ffmpeg. Tests substitute a fake that writes the output file.
type Runner func(ctx context.Context, name string, args ...string) error

// Options configures the ffmpeg invocations.
type Options struct {
	Binary     string
	Bitrate    string
	SampleRate int
}

// OptionsFromConfig maps the audio section to Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Binary:     cfg.FFmpegBinary(),
		Bitrate:    cfg.Audio.Bitrate,
		SampleRate: cfg.Audio.SampleRate,
	}
}

// Processor assembles tracks and compiles audiobooks.
type Processor struct {
	opts   Options
	run    Runner
	logger *slog.Logger
}

// New returns a Processor that shells out to ffmpeg.
func New(opts Options, logger *slog.Logger) *Processor {
	return NewWithRunner(opts, runFFmpeg, logger)
}

// NewWithRunner returns a Processor using run in place of exec.
func NewWithRunner(opts Options, run Runner, logger *slog.Logger) *Processor {
	if strings.TrimSpace(opts.Binary) == "" {
		opts.Binary = "ffmpeg"
	}
	if strings.TrimSpace(opts.Bitrate) == "" {
		opts.Bitrate = defaultBitrate
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = defaultSampleRate
	}
	if run == nil {
		run = runFFmpeg
	}
	return &Processor{opts: opts, run: run, logger: logging.NewComponentLogger(logger, "audio")}
}

func (p *Processor) ffmpeg(ctx context.Context, op string, args ...string) error {
	full := append([]string{"-hide_banner", "-loglevel", "error", "-y"}, args...)
	p.logger.Debug("running ffmpeg", logging.String("op", op), logging.String("args", strings.Join(full, " ")))
	if err := p.run(ctx, p.opts.Binary, full...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return services.Wrap(services.ErrExternalTool, "audio", op, p.opts.Binary, err)
	}
	return nil
}

// writeConcatList writes an ffmpeg concat demuxer script listing paths.
func writeConcatList(path string, paths []string) error {
	var buf bytes.Buffer
	buf.WriteString("ffconcat version 1.0\n")
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return err
		}
		buf.WriteString("file '")
		buf.WriteString(strings.ReplaceAll(abs, "'", `'\''`))
		buf.WriteString("'\n")
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

func (p *Processor) sampleRate() string {
	return strconv.Itoa(p.opts.SampleRate)
}

func runFFmpeg(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 2048 {
			msg = msg[len(msg)-2048:]
		}
		return fmt.Errorf("%w: %s", err, msg)
	}
	return nil
}
