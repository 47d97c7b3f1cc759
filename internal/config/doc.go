// Package config loads, normalizes, and validates digestcast configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// DIGESTCAST_API_KEY and SUPABASE_KEY. Secret values may instead reference the
// OS keyring with a "keyring:<name>" value, resolved by ResolveSecrets.
//
// Always obtain settings through this package so downstream components receive
// sanitized paths and clear validation errors.
package config
