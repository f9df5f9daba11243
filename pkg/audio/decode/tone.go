// ABOUTME: Test tone generator source
// ABOUTME: Generates a finite sine wave for demos and tests
package decode

import (
	"io"
	"math"

	"github.com/Resonate-Protocol/stretchaudio/pkg/audio"
)

// ToneSource generates a sine wave of fixed length
type ToneSource struct {
	format      audio.Format
	frequency   float64
	length      int64
	sampleIndex int64
}

// NewTone creates a finite tone generator at half of full scale
func NewTone(format audio.Format, frames int64, frequency float64) *ToneSource {
	if format.Codec == "" {
		format.Codec = "pcm"
	}
	return &ToneSource{
		format:    format,
		frequency: frequency,
		length:    frames,
	}
}

func (s *ToneSource) Read(samples []int32) (int, error) {
	if s.sampleIndex >= s.length {
		return 0, io.EOF
	}

	numFrames := int64(len(samples) / s.format.Channels)
	if left := s.length - s.sampleIndex; numFrames > left {
		numFrames = left
	}

	peak := float64(audio.MaxSample(s.format.BitDepth)) * 0.5
	for i := int64(0); i < numFrames; i++ {
		t := float64(s.sampleIndex+i) / float64(s.format.SampleRate)
		pcmValue := int32(math.Sin(2*math.Pi*s.frequency*t) * peak)

		for ch := 0; ch < s.format.Channels; ch++ {
			samples[int(i)*s.format.Channels+ch] = pcmValue
		}
	}

	s.sampleIndex += numFrames
	return int(numFrames) * s.format.Channels, nil
}

func (s *ToneSource) Format() audio.Format { return s.format }
func (s *ToneSource) Length() int64        { return s.length }
func (s *ToneSource) Close() error         { return nil }
