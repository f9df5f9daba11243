// ABOUTME: Audio decoder package for multiple container support
// ABOUTME: Provides the Source interface and WAV, FLAC, MP3 and FFmpeg implementations
// Package decode provides finite, sequential PCM sources for audio files.
//
// Supports: WAV (integer PCM), FLAC, MP3 and, through FFmpeg, any other
// container FFmpeg can demux (m4a, aac, ogg, opus, ...).
//
// Every Source knows its total frame count before the first Read and yields
// interleaved int32 samples in the native range of its bit depth; samples are
// never rescaled.
//
// Example:
//
//	src, err := decode.Open("input.flac")
//	samples := make([]int32, 4096*src.Format().Channels)
//	n, err := src.Read(samples)
package decode
