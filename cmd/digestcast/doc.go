// Package main hosts the digestcast CLI.
//
// The Cobra command tree loads configuration once, resolves keyring-backed
// secrets, and hands off to the internal packages: `run` drives the digest
// pipeline, `upload` pushes an existing MP3, and the remaining commands
// inspect or bootstrap state.
package main
