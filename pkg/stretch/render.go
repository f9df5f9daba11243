// ABOUTME: Offline chunk renderer
// ABOUTME: Pulls bounded chunks from a source with a single forward cursor
package stretch

import (
	"errors"
	"fmt"
	"io"

	"github.com/Resonate-Protocol/stretchaudio/pkg/audio"
	"github.com/Resonate-Protocol/stretchaudio/pkg/audio/decode"
)

// Status is the outcome of a render call
type Status int

const (
	// StatusError is fatal; the zero value so an unset status never passes
	// for success.
	StatusError Status = iota
	// StatusSuccess means the buffer holds the rendered chunk
	StatusSuccess
	// StatusInsufficientData means the source had no samples yet; retry
	StatusInsufficientData
	// StatusCannotDoInCurrentContext means the renderer could not run this
	// call; retry
	StatusCannotDoInCurrentContext
)

func (s Status) String() string {
	switch s {
	case StatusError:
		return "error"
	case StatusSuccess:
		return "success"
	case StatusInsufficientData:
		return "insufficient data"
	case StatusCannotDoInCurrentContext:
		return "cannot do in current context"
	}
	return fmt.Sprintf("status(%d)", int(s))
}

// Transient reports whether the same request should be retried
func (s Status) Transient() bool {
	return s == StatusInsufficientData || s == StatusCannotDoInCurrentContext
}

// Renderer produces decoded audio in bounded chunks.
//
// Render fills buf with up to frames frames and sets its logical length.
// On a transient status nothing observable changes and the caller retries
// the identical request with the same buffer. The buffer is overwritten by
// every call; callers consume it before calling Render again.
type Renderer interface {
	Render(frames int, buf *audio.Buffer) (Status, error)
}

// OfflineRenderer renders a decode.Source chunk by chunk
type OfflineRenderer struct {
	src       decode.Source
	maxFrames int

	sampleTime int64

	// Samples already read for an interrupted request
	partial int
}

// NewOfflineRenderer creates a renderer over src with chunks of at most
// maxFrames frames.
func NewOfflineRenderer(src decode.Source, maxFrames int) *OfflineRenderer {
	return &OfflineRenderer{
		src:       src,
		maxFrames: maxFrames,
	}
}

// MaxFrames returns the chunk capacity
func (r *OfflineRenderer) MaxFrames() int { return r.maxFrames }

// SampleTime returns the number of frames rendered so far
func (r *OfflineRenderer) SampleTime() int64 { return r.sampleTime }

// Render reads the next frames frames from the source into buf
func (r *OfflineRenderer) Render(frames int, buf *audio.Buffer) (Status, error) {
	if frames <= 0 || frames > r.maxFrames || frames > buf.Capacity() {
		return StatusError, fmt.Errorf("render request of %d frames outside (0, %d]",
			frames, min(r.maxFrames, buf.Capacity()))
	}
	if left := r.src.Length() - r.sampleTime; int64(frames) > left {
		return StatusError, fmt.Errorf("render request of %d frames past end of source (%d left)",
			frames, left)
	}

	samples := buf.Span(frames)
	if r.partial > len(samples) {
		// The source is forward only; frames read for the larger request
		// cannot be given back
		return StatusError, fmt.Errorf("render request shrank to %d frames after %d were read",
			frames, r.partial/buf.Format.Channels)
	}

	for r.partial < len(samples) {
		n, err := r.src.Read(samples[r.partial:])
		r.partial += n

		switch {
		case err == nil && n == 0:
			return StatusInsufficientData, nil
		case errors.Is(err, decode.ErrUnavailable):
			return StatusCannotDoInCurrentContext, nil
		case err == io.EOF:
			if r.partial < len(samples) {
				got := r.sampleTime + int64(r.partial/buf.Format.Channels)
				r.partial = 0
				return StatusError, fmt.Errorf("%w: got %d of %d frames",
					decode.ErrTruncated, got, r.src.Length())
			}
		case err != nil:
			r.partial = 0
			return StatusError, err
		}
	}

	r.partial = 0
	if err := buf.SetFrames(frames); err != nil {
		return StatusError, err
	}
	r.sampleTime += int64(frames)
	return StatusSuccess, nil
}
