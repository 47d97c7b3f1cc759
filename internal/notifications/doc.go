// Package notifications pushes run outcomes to ntfy.
//
// The topic configured in config.toml is a full ntfy URL. When it is empty
// NewService returns a no-op implementation, so the pipeline can notify
// unconditionally.
package notifications
