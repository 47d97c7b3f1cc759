package sources

import (
	"context"
	"log/slog"

	"digestcast/internal/config"
	"digestcast/internal/logging"
	"digestcast/internal/services"
)

// FromConfig converts the static sender list into registry entries.
func FromConfig(cfg *config.Config) []Source {
	entries := make([]Source, 0, len(cfg.Sources.Senders))
	for _, sender := range cfg.Sources.Senders {
		entries = append(entries, Source{Address: sender.Address, Name: sender.Name})
	}
	return entries
}

// Build assembles the registry from static entries and an optional remote
// loader. A failing loader is tolerated while static entries exist.
func Build(ctx context.Context, static []Source, loader Loader, logger *slog.Logger) (*Registry, error) {
	logger = logging.NewComponentLogger(logger, "sources")
	registry, err := NewRegistry(static)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "sources", "build", "", err)
	}
	if loader != nil {
		remote, err := loader.Load(ctx)
		switch {
		case err == nil:
			registry = registry.Merge(remote)
		case registry.Len() > 0 && services.Classify(err) != services.SeverityFatal:
			logging.WarnWithContext(logger, "remote source list unavailable", "sources_remote_failed",
				logging.Error(err),
				logging.Int("static_sources", registry.Len()),
				logging.Impact("only statically configured newsletters are fetched"),
				logging.ErrorHint("check upload.api_url or supabase settings"),
			)
		default:
			return nil, err
		}
	}
	if registry.Len() == 0 {
		return nil, services.Wrap(services.ErrConfiguration, "sources", "build", "no newsletter senders registered", nil)
	}
	logger.Debug("source registry ready", logging.Int("sources", registry.Len()))
	return registry, nil
}
