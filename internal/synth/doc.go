// Package synth converts text chunks into audio files.
//
// An Engine is opened once per run and closed when the run ends. The command
// engine drives a local text-to-speech binary such as piper or coqui tts; the
// http engine calls an OpenAI-compatible /v1/audio/speech endpoint such as an
// XTTS server. Both measure the produced file with ffprobe so chunk
// durations are exact integers that sum without drift.
//
// An optional reference voice sample conditions every chunk of a run. When
// the configured sample is missing the default voice is used.
package synth
