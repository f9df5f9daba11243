// ABOUTME: The stretch-render loop
// ABOUTME: Drives a Renderer chunk by chunk and writes duplicated prefixes to the sink
package stretch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"github.com/Resonate-Protocol/stretchaudio/pkg/audio"
	"github.com/Resonate-Protocol/stretchaudio/pkg/audio/encode"
)

const (
	DefaultRetryLimit    = 1000
	DefaultRetryInterval = 10 * time.Millisecond
)

// Options tunes a stretch operation. Zero values select the defaults.
type Options struct {
	// MaxFrames is the renderer chunk capacity
	MaxFrames int
	// RetryLimit bounds consecutive transient statuses for one request
	RetryLimit int
	// RetryInterval is the pause between transient retries; negative
	// retries immediately
	RetryInterval time.Duration
	Logger        *zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxFrames <= 0 {
		o.MaxFrames = DefaultMaxFrames
	}
	if o.RetryLimit <= 0 {
		o.RetryLimit = DefaultRetryLimit
	}
	if o.RetryInterval == 0 {
		o.RetryInterval = DefaultRetryInterval
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
	return o
}

// State of a Session
type State int

const (
	StateAdvancing State = iota
	StateRetrying
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAdvancing:
		return "advancing"
	case StateRetrying:
		return "retrying"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Result reports the progress of a Session
type Result struct {
	Plan           Plan
	State          State
	RenderedFrames int64
	ExtraInserted  int64
	WrittenFrames  int64
	Chunks         int
	Retries        int
}

var errTransient = errors.New("transient render status")

// Session is one stretch operation. It exclusively owns its render cursor
// and chunk buffer; independent sessions share nothing.
type Session struct {
	plan     Plan
	renderer Renderer
	sink     encode.Encoder
	buf      *audio.Buffer
	opts     Options
	log      zerolog.Logger

	state    State
	rendered int64
	inserted int64
	written  int64
	chunks   int
	retries  int
	err      error
}

// NewSession prepares a session rendering plan through r into sink
func NewSession(plan Plan, r Renderer, sink encode.Encoder, opts Options) *Session {
	opts = opts.withDefaults()
	return &Session{
		plan:     plan,
		renderer: r,
		sink:     sink,
		buf:      audio.NewBuffer(sink.Format(), plan.Stride),
		opts:     opts,
		log:      opts.Logger.With().Str("c", "stretch").Logger(),
		state:    StateAdvancing,
	}
}

// Result returns the current progress
func (s *Session) Result() Result {
	return Result{
		Plan:           s.plan,
		State:          s.state,
		RenderedFrames: s.rendered,
		ExtraInserted:  s.inserted,
		WrittenFrames:  s.written,
		Chunks:         s.chunks,
		Retries:        s.retries,
	}
}

// Step performs one render call and the resulting state transition.
// Terminal states are sticky.
func (s *Session) Step() (State, error) {
	switch s.state {
	case StateDone:
		return s.state, nil
	case StateFailed:
		return s.state, s.err
	}

	request := s.plan.InputFrames - s.rendered
	if stride := int64(s.plan.Stride); request > stride {
		request = stride
	}

	status, err := s.renderer.Render(int(request), s.buf)
	switch status {
	case StatusSuccess:
		if err != nil {
			return s.fail(&Error{Stage: StageRender, Err: fmt.Errorf("%w: success reported with error: %w",
				ErrRenderFailure, err)})
		}
		if err := s.consume(int(request)); err != nil {
			return s.fail(err)
		}
	case StatusInsufficientData, StatusCannotDoInCurrentContext:
		s.state = StateRetrying
		s.retries++
	case StatusError:
		if err == nil {
			err = errors.New("renderer reported an error")
		}
		return s.fail(&Error{Stage: StageRender, Err: fmt.Errorf("%w: %w", ErrRenderFailure, err)})
	default:
		return s.fail(&Error{Stage: StageRender, Err: fmt.Errorf("%w: unknown render %v", ErrRenderFailure, status)})
	}
	return s.state, nil
}

// consume writes the rendered chunk preceded by its duplicated prefix
func (s *Session) consume(request int) error {
	n := s.buf.Frames()
	if n <= 0 || n > request {
		return &Error{Stage: StageRender, Err: fmt.Errorf("%w: %d frames rendered for a request of %d",
			ErrRenderFailure, n, request)}
	}

	position := s.rendered + int64(n)
	dup := s.plan.Duplicate(position, s.inserted)

	// A prefix longer than the chunk repeats the whole chunk first
	for left := dup; left > 0; {
		take := min(left, int64(n))
		if err := s.write(s.buf.Prefix(int(take))); err != nil {
			return err
		}
		left -= take
	}
	if err := s.write(s.buf.Data()); err != nil {
		return err
	}

	s.inserted += dup
	s.rendered = position
	s.chunks++

	s.log.Debug().
		Int64("position", position).
		Int("frames", n).
		Int64("duplicated", dup).
		Int64("inserted", s.inserted).
		Msg("chunk rendered")

	if s.rendered < s.plan.InputFrames {
		s.state = StateAdvancing
		return nil
	}
	if s.inserted != s.plan.ExtraFrames {
		return &Error{Stage: StageRender, Err: fmt.Errorf("%w: inserted %d of %d extra frames",
			ErrRenderFailure, s.inserted, s.plan.ExtraFrames)}
	}
	s.state = StateDone
	return nil
}

func (s *Session) write(samples []int32) error {
	if err := s.sink.Write(samples); err != nil {
		return &Error{Stage: StageEncode, Err: err}
	}
	s.written += int64(len(samples) / s.buf.Format.Channels)
	return nil
}

func (s *Session) fail(err error) (State, error) {
	s.state = StateFailed
	s.err = err
	return s.state, err
}

// Run steps the session until it is done or fails. Transient render
// statuses are retried up to Options.RetryLimit times per request.
func (s *Session) Run(ctx context.Context) (Result, error) {
	s.log.Debug().
		Int64("input", s.plan.InputFrames).
		Int64("output", s.plan.OutputFrames).
		Int64("extra", s.plan.ExtraFrames).
		Int("stride", s.plan.Stride).
		Msg("stretch started")

	for s.state != StateDone {
		if err := ctx.Err(); err != nil {
			s.fail(&Error{Stage: StageRender, Err: err})
			break
		}
		if err := s.advance(ctx); err != nil {
			break
		}
	}

	if s.state == StateFailed {
		s.log.Error().Err(s.err).
			Int64("rendered", s.rendered).
			Int64("written", s.written).
			Msg("stretch failed")
		return s.Result(), s.err
	}

	s.log.Info().
		Int64("frames", s.written).
		Int("chunks", s.chunks).
		Int("retries", s.retries).
		Msg("stretch done")
	return s.Result(), nil
}

// advance steps until one request leaves the retrying state
func (s *Session) advance(ctx context.Context) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(max(s.opts.RetryInterval, 0)), uint64(s.opts.RetryLimit)),
		ctx,
	)

	err := backoff.RetryNotify(func() error {
		state, err := s.Step()
		switch state {
		case StateRetrying:
			return errTransient
		case StateFailed:
			return backoff.Permanent(err)
		}
		return nil
	}, policy, func(_ error, wait time.Duration) {
		s.log.Trace().Int64("position", s.rendered).Dur("wait", wait).Msg("render retry")
	})

	switch {
	case err == nil:
		return nil
	case s.state == StateFailed:
		return s.err
	case errors.Is(err, errTransient):
		_, err = s.fail(&Error{Stage: StageRender, Err: fmt.Errorf("%w: no progress after %d retries at frame %d",
			ErrRenderStalled, s.opts.RetryLimit, s.rendered)})
		return err
	default:
		_, err = s.fail(&Error{Stage: StageRender, Err: err})
		return err
	}
}
