// ABOUTME: Audio stretching by regularly distributed frame duplication
// ABOUTME: Planner, offline renderer and the chunked stretch-render loop
// Package stretch lengthens a finite recording to a target duration by
// repeating short runs of already-rendered frames at evenly spread points.
//
// It is not a pitch-preserving time-stretch: no resampling or spectral work
// happens, every output frame is a verbatim copy of an input frame.
//
// A stretch is planned once (NewPlan), then a Session pulls fixed-size
// chunks from a Renderer and, for each chunk, writes a duplicated prefix
// followed by the chunk itself. The number of duplicated frames is derived
// from the absolute playback position, so rounding never accumulates:
//
//	inserted(position) = floor(outputFrames * position / inputFrames) - position
//
// Example:
//
//	src, err := decode.Open("in.flac")
//	dst, err := encode.Create("out.flac", src.Format())
//	res, err := stretch.Stretch(ctx, src, dst, 95*time.Second, stretch.Options{})
//
// Or, for files, with the temporary-file and cleanup handling included:
//
//	res, err := stretch.File(ctx, "in.m4a", "out.wav", 1500*time.Millisecond, stretch.Options{})
package stretch
