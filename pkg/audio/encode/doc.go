// ABOUTME: Audio encoder package for writing PCM to audio containers
// ABOUTME: Provides the Encoder interface and WAV and FLAC implementations
// Package encode provides append-only PCM sinks for audio files.
//
// Supports: WAV (integer PCM, 8/16/24/32-bit) and FLAC (verbatim subframes).
//
// All encoders accept interleaved int32 samples in the native range of the
// format's bit depth and write them unchanged. An encoder consumes the
// samples before Write returns, so callers may reuse the slice.
//
// Example:
//
//	enc, err := encode.Create("output.wav", src.Format())
//	err = enc.Write(samples)
//	err = enc.Close()
package encode
