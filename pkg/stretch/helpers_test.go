// ABOUTME: Test fixtures for stretch tests
// ABOUTME: In-memory ramp source, recording sink and duplicate removal
package stretch

import (
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Resonate-Protocol/stretchaudio/pkg/audio"
)

// rampValue tags every sample with its frame index and channel
func rampValue(frame, ch int) int32 { return int32(frame*8 + ch) }

func rampFrame(v int32) int { return int(v) / 8 }

// memSource is an in-memory decode.Source
type memSource struct {
	format  audio.Format
	samples []int32
	length  int64
	pos     int
	reads   int
	maxRead int // frames per Read call, 0 unlimited

	// Optional hook deciding the outcome of each Read call (1-based)
	hook func(call int) (stall bool, err error)
}

func newRamp(frames, channels, rate int) *memSource {
	samples := make([]int32, frames*channels)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			samples[i*channels+ch] = rampValue(i, ch)
		}
	}
	return &memSource{
		format:  audio.Format{Codec: "pcm", SampleRate: rate, Channels: channels, BitDepth: 16},
		samples: samples,
		length:  int64(frames),
	}
}

func (s *memSource) Read(samples []int32) (int, error) {
	s.reads++
	if s.hook != nil {
		stall, err := s.hook(s.reads)
		if err != nil {
			return 0, err
		}
		if stall {
			return 0, nil
		}
	}
	if s.pos >= len(s.samples) {
		return 0, io.EOF
	}
	window := samples[:len(samples)-len(samples)%s.format.Channels]
	if s.maxRead > 0 && len(window) > s.maxRead*s.format.Channels {
		window = window[:s.maxRead*s.format.Channels]
	}
	n := copy(window, s.samples[s.pos:])
	s.pos += n
	return n, nil
}

func (s *memSource) Format() audio.Format { return s.format }
func (s *memSource) Length() int64        { return s.length }
func (s *memSource) Close() error         { return nil }

// memSink is an in-memory encode.Encoder recording every write
type memSink struct {
	format  audio.Format
	writes  [][]int32
	samples []int32

	failOn int // fail the n-th write (1-based), 0 never
	closed bool
}

var errSinkFull = errors.New("sink full")

func newSink(format audio.Format) *memSink { return &memSink{format: format} }

func (s *memSink) Write(samples []int32) error {
	if s.failOn > 0 && len(s.writes)+1 == s.failOn {
		return errSinkFull
	}
	cp := append([]int32(nil), samples...)
	s.writes = append(s.writes, cp)
	s.samples = append(s.samples, cp...)
	return nil
}

func (s *memSink) Format() audio.Format { return s.format }
func (s *memSink) Frames() int64        { return int64(len(s.samples) / s.format.Channels) }
func (s *memSink) Close() error         { s.closed = true; return nil }

// frameIndexes maps channel-0 samples back to source frame indexes
func frameIndexes(samples []int32, channels int) []int {
	out := make([]int, 0, len(samples)/channels)
	for i := 0; i < len(samples); i += channels {
		out = append(out, rampFrame(samples[i]))
	}
	return out
}

// removeDuplicates drops inserted segments: every run of consecutive frame
// indexes is cut where the following run starts, since a duplicate is
// always followed by a repeat of the frames it copied.
func removeDuplicates(frames []int) []int {
	var runs [][]int
	start := 0
	for i := 1; i <= len(frames); i++ {
		if i == len(frames) || frames[i] != frames[i-1]+1 {
			runs = append(runs, frames[start:i])
			start = i
		}
	}

	var out []int
	for i, run := range runs {
		if i+1 < len(runs) {
			next := runs[i+1][0]
			for _, f := range run {
				if f < next {
					out = append(out, f)
				}
			}
			continue
		}
		out = append(out, run...)
	}
	return out
}

func requireReconstructs(t *testing.T, frames []int, inputFrames int) {
	t.Helper()
	original := removeDuplicates(frames)
	require.Len(t, original, inputFrames)
	for i, f := range original {
		if f != i {
			require.Failf(t, "source order broken", "frame %d is source frame %d", i, f)
		}
	}
}
