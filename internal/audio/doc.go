// Package audio turns synthesized chunks into per-message tracks and compiles
// the tracks into a chaptered MP3 audiobook using ffmpeg.
//
// Durations are never re-measured after synthesis: a track lasts exactly the
// sum of its chunks and a chapter starts exactly where the previous tracks
// end, so chapter offsets stay consistent with the upload metadata.
package audio
