// ABOUTME: FLAC audio source
// ABOUTME: Decodes FLAC files frame by frame to int32 samples
package decode

import (
	"fmt"
	"io"
	"os"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"

	"github.com/Resonate-Protocol/stretchaudio/pkg/audio"
)

// FLACSource reads from a FLAC file
type FLACSource struct {
	file   *os.File
	stream *flac.Stream
	format audio.Format
	length int64

	// Decoded frame not yet fully handed out
	pending *frame.Frame
	offset  int
}

// NewFLACSource creates a new FLAC audio source
func NewFLACSource(filePath string) (*FLACSource, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file: %w", err)
	}

	stream, err := flac.New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	if info.NSamples == 0 {
		f.Close()
		return nil, fmt.Errorf("%w: FLAC stream without total sample count", ErrUnsupportedFormat)
	}

	format := audio.Format{
		Codec:      "flac",
		SampleRate: int(info.SampleRate),
		Channels:   int(info.NChannels),
		BitDepth:   int(info.BitsPerSample),
	}
	if err := format.Validate(); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	return &FLACSource{
		file:   f,
		stream: stream,
		format: format,
		length: int64(info.NSamples),
	}, nil
}

func (s *FLACSource) Read(samples []int32) (int, error) {
	channels := s.format.Channels
	want := wholeFrames(len(samples), channels)
	samplesRead := 0

	for samplesRead < want {
		if s.pending == nil {
			fr, err := s.stream.ParseNext()
			if err != nil {
				if err == io.EOF {
					if samplesRead == 0 {
						return 0, io.EOF
					}
					break
				}
				return samplesRead, fmt.Errorf("flac decode error: %w", err)
			}
			s.pending = fr
			s.offset = 0
		}

		blockSize := int(s.pending.BlockSize)
		for s.offset < blockSize && samplesRead < want {
			for ch := 0; ch < channels; ch++ {
				samples[samplesRead] = s.pending.Subframes[ch].Samples[s.offset]
				samplesRead++
			}
			s.offset++
		}
		if s.offset >= blockSize {
			s.pending = nil
		}
	}

	return samplesRead, nil
}

func (s *FLACSource) Format() audio.Format { return s.format }
func (s *FLACSource) Length() int64        { return s.length }
func (s *FLACSource) Close() error {
	return s.file.Close()
}
