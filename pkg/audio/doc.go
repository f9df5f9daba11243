// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format and the reusable chunk Buffer
// Package audio provides the fundamental types shared by decoders, encoders
// and the stretch renderer.
//
// This package defines:
//   - Format: Describes a PCM stream (codec, sample rate, channels, bit depth)
//   - Buffer: A fixed-capacity, reusable chunk of interleaved int32 samples
//
// Samples are signed integers in the native range of Format.BitDepth; nothing
// in this package rescales them, so a frame read from a source is written to a
// sink unchanged.
//
// Example:
//
//	format := audio.Format{
//	    Codec:      "wav",
//	    SampleRate: 48000,
//	    Channels:   2,
//	    BitDepth:   16,
//	}
//
//	buf := audio.NewBuffer(format, 4096)
//	frames := format.Frames(1500 * time.Millisecond)
package audio
