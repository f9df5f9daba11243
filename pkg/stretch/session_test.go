// ABOUTME: Tests for the stretch-render loop
// ABOUTME: Tests the insertion schedule, retries and failure handling
package stretch

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Resonate-Protocol/stretchaudio/pkg/audio"
	"github.com/Resonate-Protocol/stretchaudio/pkg/audio/decode"
)

type renderFunc func(frames int, buf *audio.Buffer) (Status, error)

func (f renderFunc) Render(frames int, buf *audio.Buffer) (Status, error) { return f(frames, buf) }

func fastRetry() Options {
	return Options{RetryInterval: -1}
}

func newTestSession(t *testing.T, src *memSource, targetFrames int64, opts Options) (*Session, *memSink) {
	t.Helper()
	opts = opts.withDefaults()
	plan, err := NewPlan(src.Length(), targetFrames, opts.MaxFrames)
	require.NoError(t, err)
	sink := newSink(src.Format())
	return NewSession(plan, NewOfflineRenderer(src, opts.MaxFrames), sink, opts), sink
}

func TestSession_TwoChunkSchedule(t *testing.T) {
	// 1000 frames at 1kHz stretched to 1.5s: stride clamps to 512
	src := newRamp(1000, 1, 1000)
	s, sink := newTestSession(t, src, 1500, fastRetry())

	res, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 2, res.Chunks)
	assert.Equal(t, int64(1000), res.RenderedFrames)
	assert.Equal(t, int64(500), res.ExtraInserted)
	assert.Equal(t, int64(1500), res.WrittenFrames)
	assert.Equal(t, int64(1500), sink.Frames())

	frames := frameIndexes(sink.samples, 1)
	// First chunk: its first 256 frames, then the chunk itself
	for i := 0; i < 256; i++ {
		require.Equal(t, i, frames[i])
	}
	for i := 0; i < 512; i++ {
		require.Equal(t, i, frames[256+i])
	}
	// Second chunk: 244 frames of its prefix, then the chunk
	assert.Equal(t, 512, frames[768])
	assert.Equal(t, 755, frames[768+243])
	assert.Equal(t, 512, frames[1012])
	assert.Equal(t, 999, frames[1499])
}

func TestSession_SingleChunk(t *testing.T) {
	src := newRamp(500, 1, 1000)
	s, sink := newTestSession(t, src, 750, fastRetry())

	res, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, res.Chunks)
	assert.Equal(t, int64(250), res.ExtraInserted)
	require.Len(t, sink.writes, 2)

	frames := frameIndexes(sink.samples, 1)
	require.Len(t, frames, 750)
	for i := 0; i < 250; i++ {
		require.Equal(t, i, frames[i], "duplicated prefix")
	}
	for i := 0; i < 500; i++ {
		require.Equal(t, i, frames[250+i], "source chunk")
	}
}

func TestSession_PrefixLongerThanChunk(t *testing.T) {
	src := newRamp(600, 1, 1000)
	s, sink := newTestSession(t, src, 2000, fastRetry())

	res, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1400), res.ExtraInserted)
	assert.Equal(t, int64(2000), sink.Frames())
	requireReconstructs(t, frameIndexes(sink.samples, 1), 600)
}

func TestSession_Properties(t *testing.T) {
	inputs := []int64{1, 100, 511, 512, 513, 1000, 4097, 10000, 44100}
	extras := []int64{1, 7, 500, 3000, 44100}

	for _, input := range inputs {
		for _, extra := range extras {
			t.Run(fmt.Sprintf("%d+%d", input, extra), func(t *testing.T) {
				src := newRamp(int(input), 2, 44100)
				s, sink := newTestSession(t, src, input+extra, fastRetry())
				plan := s.Result().Plan

				maxChunks := int((input + int64(plan.Stride) - 1) / int64(plan.Stride))
				var prevRendered, prevInserted int64
				for steps := 0; ; steps++ {
					require.LessOrEqual(t, steps, maxChunks, "loop must terminate")

					state, err := s.Step()
					require.NoError(t, err)

					res := s.Result()
					assert.GreaterOrEqual(t, res.RenderedFrames, prevRendered)
					assert.GreaterOrEqual(t, res.ExtraInserted, prevInserted)
					assert.LessOrEqual(t, res.ExtraInserted, plan.ExtraFrames)
					assert.Equal(t, plan.ExtraAt(res.RenderedFrames), res.ExtraInserted,
						"insertions track the proportional schedule")
					assert.Equal(t, res.RenderedFrames+res.ExtraInserted, res.WrittenFrames)
					prevRendered, prevInserted = res.RenderedFrames, res.ExtraInserted

					if state == StateDone {
						break
					}
				}

				res := s.Result()
				assert.Equal(t, input, res.RenderedFrames)
				assert.Equal(t, extra, res.ExtraInserted)
				assert.Equal(t, input+extra, sink.Frames())
				requireReconstructs(t, frameIndexes(sink.samples, 2), int(input))

				// Channels stay interleaved in order
				for i := 0; i < len(sink.samples); i += 2 {
					require.Equal(t, sink.samples[i]+1, sink.samples[i+1])
				}
			})
		}
	}
}

func TestSession_TransientStatusesRetried(t *testing.T) {
	src := newRamp(2000, 1, 1000)
	src.hook = func(call int) (bool, error) {
		switch call % 3 {
		case 1:
			return true, nil
		case 2:
			return false, decode.ErrUnavailable
		}
		return false, nil
	}
	s, sink := newTestSession(t, src, 2600, fastRetry())

	res, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, 2*res.Chunks, res.Retries)
	assert.Equal(t, int64(2600), sink.Frames())
	requireReconstructs(t, frameIndexes(sink.samples, 1), 2000)
}

func TestSession_Stalled(t *testing.T) {
	src := newRamp(2000, 1, 1000)
	src.hook = func(int) (bool, error) { return true, nil }
	s, sink := newTestSession(t, src, 2600, Options{RetryLimit: 3, RetryInterval: -1})

	res, err := s.Run(context.Background())
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrRenderStalled)
	assert.Equal(t, StateFailed, res.State)
	assert.Zero(t, sink.Frames())
}

func TestSession_FatalOnSecondChunk(t *testing.T) {
	boom := errors.New("decoder exploded")
	src := newRamp(2000, 1, 1000)
	src.hook = func(call int) (bool, error) {
		if call == 2 {
			return false, boom
		}
		return false, nil
	}
	s, sink := newTestSession(t, src, 2100, fastRetry())

	res, err := s.Run(context.Background())
	require.Error(t, err)

	assert.ErrorIs(t, err, ErrRenderFailure)
	assert.ErrorIs(t, err, boom)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageRender, se.Stage)

	// Only the first chunk and its 25 frame prefix reached the sink
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, 1, res.Chunks)
	assert.Equal(t, int64(537), sink.Frames())

	writes := len(sink.writes)
	state, again := s.Step()
	assert.Equal(t, StateFailed, state)
	assert.Equal(t, err, again, "failure is sticky")
	assert.Len(t, sink.writes, writes)
}

func TestSession_RendererMisbehaves(t *testing.T) {
	tests := []struct {
		name   string
		render renderFunc
	}{
		{"unknown status", func(frames int, buf *audio.Buffer) (Status, error) {
			return Status(42), nil
		}},
		{"error without cause", func(frames int, buf *audio.Buffer) (Status, error) {
			return StatusError, nil
		}},
		{"success without frames", func(frames int, buf *audio.Buffer) (Status, error) {
			return StatusSuccess, buf.SetFrames(0)
		}},
		{"success with too many frames", func(frames int, buf *audio.Buffer) (Status, error) {
			return StatusSuccess, buf.SetFrames(frames + 1)
		}},
		{"success paired with an error", func(frames int, buf *audio.Buffer) (Status, error) {
			if err := buf.SetFrames(frames); err != nil {
				return StatusError, err
			}
			return StatusSuccess, errors.New("decoder warning")
		}},
	}

	format := audio.Format{Codec: "pcm", SampleRate: 1000, Channels: 1, BitDepth: 16}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := NewPlan(100, 200, DefaultMaxFrames)
			require.NoError(t, err)
			sink := newSink(format)

			res, err := NewSession(plan, tt.render, sink, fastRetry()).Run(context.Background())
			assert.ErrorIs(t, err, ErrRenderFailure)
			assert.Equal(t, StateFailed, res.State)
			assert.Zero(t, res.Chunks)
			assert.Zero(t, sink.Frames())
		})
	}
}

func TestSession_SinkFailure(t *testing.T) {
	src := newRamp(2000, 1, 1000)
	s, sink := newTestSession(t, src, 2100, fastRetry())
	sink.failOn = 3

	_, err := s.Run(context.Background())
	require.Error(t, err)

	assert.ErrorIs(t, err, errSinkFull)
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, StageEncode, se.Stage)
	assert.Len(t, sink.writes, 2)
}

func TestSession_ContextCancelled(t *testing.T) {
	t.Run("before start", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		src := newRamp(2000, 1, 1000)
		s, sink := newTestSession(t, src, 2100, fastRetry())

		res, err := s.Run(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, StateFailed, res.State)
		assert.Zero(t, src.reads)
		assert.Zero(t, sink.Frames())
	})

	t.Run("while retrying", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		src := newRamp(2000, 1, 1000)
		src.hook = func(int) (bool, error) { return true, nil }
		s, _ := newTestSession(t, src, 2100, Options{RetryLimit: 1 << 30, RetryInterval: time.Millisecond})

		_, err := s.Run(ctx)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.NotErrorIs(t, err, ErrRenderStalled)
	})
}
