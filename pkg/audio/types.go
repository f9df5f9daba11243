// ABOUTME: Audio type definitions
// ABOUTME: Defines audio formats, frame/duration conversion and chunk buffers
package audio

import (
	"errors"
	"fmt"
	"math/bits"
	"time"
)

// Format describes a PCM audio stream
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// Validate checks that the format describes a usable PCM stream
func (f Format) Validate() error {
	if f.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", f.SampleRate)
	}
	if f.Channels <= 0 {
		return fmt.Errorf("invalid channel count: %d", f.Channels)
	}
	if f.BitDepth < 4 || f.BitDepth > 32 {
		return fmt.Errorf("unsupported bit depth: %d (supported: 4-32)", f.BitDepth)
	}
	return nil
}

// SameLayout reports whether two formats carry identical samples, ignoring
// the container codec.
func (f Format) SameLayout(other Format) bool {
	return f.SampleRate == other.SampleRate &&
		f.Channels == other.Channels &&
		f.BitDepth == other.BitDepth
}

// Duration returns the playback time of frames, rounded up to the nanosecond
// so that Frames(Duration(n)) == n.
func (f Format) Duration(frames int64) time.Duration {
	if frames <= 0 || f.SampleRate <= 0 {
		return 0
	}
	hi, lo := bits.Mul64(uint64(frames), uint64(time.Second))
	q, r := bits.Div64(hi, lo, uint64(f.SampleRate))
	if r != 0 {
		q++
	}
	return time.Duration(q)
}

// Frames returns the number of whole frames that fit in d
func (f Format) Frames(d time.Duration) int64 {
	if d <= 0 || f.SampleRate <= 0 {
		return 0
	}
	hi, lo := bits.Mul64(uint64(d), uint64(f.SampleRate))
	q, _ := bits.Div64(hi, lo, uint64(time.Second))
	return int64(q)
}

func (f Format) String() string {
	return fmt.Sprintf("%s %dHz %dch %dbit", f.Codec, f.SampleRate, f.Channels, f.BitDepth)
}

// MaxSample returns the largest positive sample value for a bit depth
func MaxSample(bitDepth int) int32 {
	return int32(1<<(bitDepth-1) - 1)
}

// ErrBufferOverflow is returned when a buffer is asked to hold more frames
// than its capacity.
var ErrBufferOverflow = errors.New("audio: frame count exceeds buffer capacity")

// Buffer is a fixed-capacity chunk of interleaved PCM samples whose logical
// length is set per use. A Buffer is meant to be reused; slices returned by
// Data and Prefix are only valid until the next SetFrames or refill.
type Buffer struct {
	Format  Format
	Samples []int32 // interleaved, len == capacity * channels

	frames int
}

// NewBuffer allocates a buffer able to hold capacity frames of format
func NewBuffer(format Format, capacity int) *Buffer {
	return &Buffer{
		Format:  format,
		Samples: make([]int32, capacity*format.Channels),
	}
}

// Capacity returns the maximum number of frames the buffer holds
func (b *Buffer) Capacity() int {
	if b.Format.Channels == 0 {
		return 0
	}
	return len(b.Samples) / b.Format.Channels
}

// Frames returns the logical length in frames
func (b *Buffer) Frames() int { return b.frames }

// SetFrames sets the logical length in frames
func (b *Buffer) SetFrames(n int) error {
	if n < 0 || n > b.Capacity() {
		return fmt.Errorf("%w: %d > %d", ErrBufferOverflow, n, b.Capacity())
	}
	b.frames = n
	return nil
}

// Data returns the samples of the logical length
func (b *Buffer) Data() []int32 {
	return b.Samples[:b.frames*b.Format.Channels]
}

// Prefix returns the samples of the first n frames, capped at the logical length
func (b *Buffer) Prefix(n int) []int32 {
	if n > b.frames {
		n = b.frames
	}
	if n < 0 {
		n = 0
	}
	return b.Samples[:n*b.Format.Channels]
}

// Span returns the sample window backing frames [0, n) regardless of the
// logical length, for writers filling the buffer.
func (b *Buffer) Span(n int) []int32 {
	return b.Samples[:n*b.Format.Channels]
}
