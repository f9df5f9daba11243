// ABOUTME: Stretch planning
// ABOUTME: Derives extra frame count, insertion stride and the insertion schedule
package stretch

import (
	"fmt"
	"math/bits"
)

const (
	// MinStride is the smallest chunk size used for insertion decisions
	MinStride = 512

	// DefaultMaxFrames is the default renderer chunk capacity
	DefaultMaxFrames = 4096
)

// Plan is the immutable outcome of planning a stretch
type Plan struct {
	InputFrames  int64
	OutputFrames int64
	ExtraFrames  int64
	IdealStride  int64 // average input frames between insertions
	Stride       int   // frames per render chunk
}

// NewPlan computes the plan for stretching inputFrames to targetFrames with
// a renderer whose chunk capacity is maxFrames.
func NewPlan(inputFrames, targetFrames int64, maxFrames int) (Plan, error) {
	if inputFrames <= 0 {
		return Plan{}, ErrEmptySource
	}
	if targetFrames <= inputFrames {
		return Plan{}, fmt.Errorf("%w: target %d frames, source %d frames",
			ErrInvalidTargetDuration, targetFrames, inputFrames)
	}
	if maxFrames < MinStride {
		return Plan{}, fmt.Errorf("%w: %d < %d", ErrInvalidChunkSize, maxFrames, MinStride)
	}

	extra := targetFrames - inputFrames
	ideal := inputFrames / extra

	stride := int64(maxFrames)
	if ideal < stride {
		stride = ideal
	}
	if stride < MinStride {
		stride = MinStride
	}

	return Plan{
		InputFrames:  inputFrames,
		OutputFrames: targetFrames,
		ExtraFrames:  extra,
		IdealStride:  ideal,
		Stride:       int(stride),
	}, nil
}

// ExtraAt returns how many frames should have been inserted once position
// input frames were rendered: floor(OutputFrames*position/InputFrames) - position.
func (p Plan) ExtraAt(position int64) int64 {
	if position <= 0 {
		return 0
	}
	if position >= p.InputFrames {
		return p.ExtraFrames
	}
	hi, lo := bits.Mul64(uint64(p.OutputFrames), uint64(position))
	ideal, _ := bits.Div64(hi, lo, uint64(p.InputFrames))
	return int64(ideal) - position
}

// Duplicate returns the number of frames to insert at position given that
// inserted frames were already written, clamped to [0, ExtraFrames-inserted].
func (p Plan) Duplicate(position, inserted int64) int64 {
	n := p.ExtraAt(position) - inserted
	if n < 0 {
		return 0
	}
	if left := p.ExtraFrames - inserted; n > left {
		return left
	}
	return n
}
