// ABOUTME: Error taxonomy for stretch operations
// ABOUTME: Sentinel errors and the stage-carrying Error type
package stretch

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTargetDuration is returned when the target is not longer
	// than the source; stretching only lengthens.
	ErrInvalidTargetDuration = errors.New("stretch: can only stretch to a longer duration")

	// ErrEmptySource is returned for sources without frames
	ErrEmptySource = errors.New("stretch: source has no frames")

	// ErrInvalidChunkSize is returned when the renderer chunk capacity is
	// below MinStride.
	ErrInvalidChunkSize = errors.New("stretch: chunk capacity below minimum stride")

	// ErrFormatMismatch is returned when source and sink sample layouts differ
	ErrFormatMismatch = errors.New("stretch: source and sink formats differ")

	// ErrRenderFailure is a fatal renderer error; the operation is aborted.
	ErrRenderFailure = errors.New("stretch: rendering failed")

	// ErrRenderStalled is returned when a render request stays transient
	// beyond the retry limit.
	ErrRenderStalled = errors.New("stretch: rendering stalled")
)

// Stage names the step of a stretch operation that failed
type Stage string

const (
	StageOpen     Stage = "open"
	StageCreate   Stage = "create"
	StagePlan     Stage = "plan"
	StageRender   Stage = "render"
	StageEncode   Stage = "encode"
	StageFinalize Stage = "finalize"
)

// Error records a failed stretch stage and the file involved, if any
type Error struct {
	Stage Stage
	Path  string
	Err   error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Stage, e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
