package preflight

import (
	"context"
	"fmt"
	"strings"

	"digestcast/internal/config"
	"digestcast/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Optional results are informational and never block a run.
	Optional bool
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := Required(cfg)

	if cfg.Paths.ArchiveDir != "" {
		results = append(results, CheckDirectoryAccess("Archive directory", cfg.Paths.ArchiveDir))
	}

	switch cfg.Mailbox.Backend {
	case "gmail":
		results = append(results, CheckReadable("Gmail credentials", cfg.Mailbox.Gmail.CredentialsPath))
		token := CheckReadable("Gmail token", cfg.Mailbox.Gmail.TokenPath)
		if !token.Passed {
			token.Detail += "; run `digestcast auth gmail`"
		}
		results = append(results, token)
	case "maildir":
		results = append(results, CheckDirectoryAccess("Maildir", cfg.Mailbox.MaildirPath))
	}

	if ref := strings.TrimSpace(cfg.Synth.ReferenceVoice); ref != "" {
		voice := CheckReadable("Reference voice", ref)
		voice.Optional = true
		if !voice.Passed {
			voice.Detail += "; the default voice will be used"
		}
		results = append(results, voice)
	}

	if cfg.Synth.Engine == "http" {
		results = append(results, CheckEndpoint(ctx, "Speech server", cfg.Synth.BaseURL, cfg.Synth.APIKey))
	}
	if cfg.Upload.Backend == "webapi" {
		results = append(results, CheckEndpoint(ctx, "Upload API", cfg.Upload.APIURL, cfg.Upload.APIKey))
	}
	return results
}

// Required runs the local checks a run cannot proceed without: working
// directories and external binaries.
func Required(cfg *config.Config) []Result {
	results := []Result{
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	for _, status := range CheckSystemDeps(cfg) {
		result := Result{Name: status.Name, Passed: status.Available, Optional: status.Optional}
		if status.Available {
			result.Detail = status.Command
		} else {
			result.Detail = status.Detail
		}
		results = append(results, result)
	}
	return results
}

// CheckSystemDeps evaluates the binaries the configured backends invoke.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Required for track assembly and MP3 encoding",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Required for chunk duration measurement",
		},
	}
	if cfg.Synth.Engine == "command" {
		requirements = append(requirements, deps.Requirement{
			Name:        "TTS command",
			Command:     cfg.Synth.Command,
			Description: "Required for speech synthesis",
		})
	}
	return deps.CheckBinaries(requirements)
}

// Failed returns the blocking failures in results as a single error, or nil.
func Failed(results []Result) error {
	var failures []string
	for _, result := range results {
		if !result.Passed && !result.Optional {
			failures = append(failures, fmt.Sprintf("%s: %s", result.Name, result.Detail))
		}
	}
	if len(failures) == 0 {
		return nil
	}
	return fmt.Errorf("preflight failed: %s", strings.Join(failures, "; "))
}
