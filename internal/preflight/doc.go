// Package preflight provides readiness checks for the binaries, directories,
// and remote endpoints a digest run depends on.
//
// These checks run in two contexts:
//   - `digestcast config check` prints every result as a status line.
//   - `digestcast run` calls Required before building the pipeline, so a
//     missing ffmpeg fails the run before any mail is fetched.
//
// Each check is gated by the backend the config selects; unused backends
// are skipped.
package preflight
