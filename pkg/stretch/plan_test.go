// ABOUTME: Tests for stretch planning
// ABOUTME: Tests stride clamping, invalid targets and the insertion schedule
package stretch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPlan(t *testing.T) {
	tests := []struct {
		name      string
		input     int64
		target    int64
		maxFrames int
		extra     int64
		ideal     int64
		stride    int
	}{
		{"clamped up to minimum", 1000, 1500, 4096, 500, 2, 512},
		{"single extra frame clamped down to capacity", 100000, 100001, 4096, 1, 100000, 4096},
		{"ideal stride within bounds", 441000, 441441, 4096, 441, 1000, 1000},
		{"capacity equal to minimum", 1 << 20, 1<<20 + 1, 512, 1, 1 << 20, 512},
		{"more extra than input", 1000, 5000, 4096, 4000, 0, 512},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := NewPlan(tt.input, tt.target, tt.maxFrames)
			require.NoError(t, err)

			assert.Equal(t, tt.input, plan.InputFrames)
			assert.Equal(t, tt.target, plan.OutputFrames)
			assert.Equal(t, tt.extra, plan.ExtraFrames)
			assert.Equal(t, tt.ideal, plan.IdealStride)
			assert.Equal(t, tt.stride, plan.Stride)
		})
	}
}

func TestNewPlan_Invalid(t *testing.T) {
	tests := []struct {
		name      string
		input     int64
		target    int64
		maxFrames int
		want      error
	}{
		{"same length", 1000, 1000, 4096, ErrInvalidTargetDuration},
		{"shorter", 1000, 999, 4096, ErrInvalidTargetDuration},
		{"negative target", 1000, -1, 4096, ErrInvalidTargetDuration},
		{"empty source", 0, 1000, 4096, ErrEmptySource},
		{"capacity below minimum stride", 1000, 2000, 256, ErrInvalidChunkSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewPlan(tt.input, tt.target, tt.maxFrames)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPlanStrideAlwaysInBounds(t *testing.T) {
	for _, maxFrames := range []int{512, 1024, 4096, 8192} {
		for _, input := range []int64{1, 511, 512, 1000, 44100, 10_000_000} {
			for _, extra := range []int64{1, 2, 500, 44100, 50_000_000} {
				plan, err := NewPlan(input, input+extra, maxFrames)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, plan.Stride, MinStride)
				assert.LessOrEqual(t, plan.Stride, maxFrames)
			}
		}
	}
}

func TestPlanExtraAt(t *testing.T) {
	plan, err := NewPlan(1000, 1500, 4096)
	require.NoError(t, err)

	assert.Equal(t, int64(0), plan.ExtraAt(0))
	assert.Equal(t, int64(256), plan.ExtraAt(512))
	assert.Equal(t, int64(500), plan.ExtraAt(1000))
	assert.Equal(t, int64(500), plan.ExtraAt(2000), "positions past the end are capped")
}

func TestPlanExtraAt_NoOverflow(t *testing.T) {
	// 2^40 * 2^41 overflows int64; the schedule must still be exact
	input := int64(1) << 40
	plan, err := NewPlan(input, 2*input, 4096)
	require.NoError(t, err)

	assert.Equal(t, input/2, plan.ExtraAt(input/2))
	assert.Equal(t, input, plan.ExtraAt(input))
}

func TestPlanDuplicate(t *testing.T) {
	plan, err := NewPlan(1000, 1500, 4096)
	require.NoError(t, err)

	assert.Equal(t, int64(256), plan.Duplicate(512, 0))
	assert.Equal(t, int64(244), plan.Duplicate(1000, 256))
	assert.Equal(t, int64(0), plan.Duplicate(512, 300), "never negative")
	assert.Equal(t, int64(0), plan.Duplicate(1000, 500), "never overshoots the plan")
}
