// ABOUTME: WAV audio encoder
// ABOUTME: Writes int32 samples to an integer PCM WAV file
package encode

import (
	"fmt"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/Resonate-Protocol/stretchaudio/pkg/audio"
)

// WAVEncoder writes a WAV file
type WAVEncoder struct {
	file    *os.File
	encoder *wav.Encoder
	format  audio.Format
	buf     *goaudio.IntBuffer
	frames  int64
}

// NewWAV creates a WAV file at path
func NewWAV(path string, format audio.Format) (*WAVEncoder, error) {
	switch format.BitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: WAV bit depth %d (supported: 8, 16, 24, 32)",
			ErrUnsupportedFormat, format.BitDepth)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create WAV file: %w", err)
	}

	format.Codec = "wav"
	return &WAVEncoder{
		file:    f,
		encoder: wav.NewEncoder(f, format.SampleRate, format.BitDepth, format.Channels, 1),
		format:  format,
		buf: &goaudio.IntBuffer{
			Format: &goaudio.Format{
				NumChannels: format.Channels,
				SampleRate:  format.SampleRate,
			},
			SourceBitDepth: format.BitDepth,
		},
	}, nil
}

// Write appends samples to the WAV data chunk
func (e *WAVEncoder) Write(samples []int32) error {
	if err := checkFrames(samples, e.format.Channels); err != nil {
		return err
	}
	if len(samples) == 0 {
		return nil
	}

	if cap(e.buf.Data) < len(samples) {
		e.buf.Data = make([]int, len(samples))
	}
	e.buf.Data = e.buf.Data[:len(samples)]
	bias := wavBias(e.format.BitDepth)
	for i, sample := range samples {
		e.buf.Data[i] = int(sample) + bias
	}

	if err := e.encoder.Write(e.buf); err != nil {
		return fmt.Errorf("wav encode error: %w", err)
	}
	e.frames += int64(len(samples) / e.format.Channels)
	return nil
}

func (e *WAVEncoder) Format() audio.Format { return e.format }
func (e *WAVEncoder) Frames() int64        { return e.frames }

// wavBias is the offset of stored samples; 8-bit WAV data is unsigned
func wavBias(bitDepth int) int {
	if bitDepth == 8 {
		return 128
	}
	return 0
}

// Close rewrites the WAV header sizes and closes the file
func (e *WAVEncoder) Close() error {
	if err := e.encoder.Close(); err != nil {
		e.file.Close()
		return fmt.Errorf("failed to finalize WAV: %w", err)
	}
	return e.file.Close()
}
