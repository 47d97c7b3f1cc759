package pipeline

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"digestcast/internal/audio"
	"digestcast/internal/config"
	"digestcast/internal/extract"
	"digestcast/internal/ledger"
	"digestcast/internal/mailbox"
	"digestcast/internal/notifications"
	"digestcast/internal/services"
	"digestcast/internal/sources"
	"digestcast/internal/supastore"
	"digestcast/internal/synth"
	"digestcast/internal/upload"
)

// SourceLoader returns the remote registry loader selected by
// sources.remote, or nil when only static senders are used.
func SourceLoader(cfg *config.Config) (sources.Loader, error) {
	switch cfg.Sources.Remote {
	case "", "none":
		return nil, nil
	case "webapi":
		client := &http.Client{Timeout: time.Duration(cfg.Upload.TimeoutSeconds) * time.Second}
		return sources.NewWebAPILoader(cfg.Upload.APIURL, cfg.Upload.APIKey, client), nil
	case "supabase":
		client, err := supastore.New(cfg.Supabase.URL, cfg.Supabase.Key)
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "sources", "open supabase", "", err)
		}
		return sources.NewSupabaseLoader(client, cfg.Sources.Table), nil
	default:
		return nil, services.Wrap(services.ErrConfiguration, "sources", "open", "unsupported remote "+cfg.Sources.Remote, nil)
	}
}

// BuildRegistry resolves the sender registry from config and the remote
// loader.
func BuildRegistry(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sources.Registry, error) {
	loader, err := SourceLoader(cfg)
	if err != nil {
		return nil, err
	}
	return sources.Build(ctx, sources.FromConfig(cfg), loader, logger)
}

// Build opens every production collaborator described by cfg. Callers must
// Close the returned runner.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runner, error) {
	runner := New(cfg, Deps{LockPath: cfg.LockPath(), Notifier: notifications.NewService(cfg)}, logger)
	fail := func(err error) (*Runner, error) {
		_ = runner.Close()
		return nil, err
	}

	registry, err := BuildRegistry(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	runner.deps.Registry = registry

	store, err := ledger.Open(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	runner.deps.Ledger = store
	runner.closers = append(runner.closers, store.Close)

	fetcher, err := mailbox.Open(ctx, cfg, logger)
	if err != nil {
		return fail(err)
	}
	runner.deps.Fetcher = fetcher
	runner.closers = append(runner.closers, fetcher.Close)

	engine, err := synth.Open(cfg, logger)
	if err != nil {
		return fail(err)
	}
	runner.deps.Engine = engine
	runner.closers = append(runner.closers, engine.Close)

	uploader, err := upload.Open(cfg, logger)
	if err != nil {
		return fail(err)
	}
	runner.deps.Uploader = uploader

	runner.deps.Extractor = extract.New(extract.Options{Readability: cfg.Extract.Readability})
	runner.deps.Audio = audio.New(audio.OptionsFromConfig(cfg), logger)
	return runner, nil
}
