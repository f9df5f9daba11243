// ABOUTME: MP3 audio source
// ABOUTME: Decodes MP3 files to 16-bit stereo int32 samples
package decode

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"

	"github.com/Resonate-Protocol/stretchaudio/pkg/audio"
)

const (
	// go-mp3 always outputs 16-bit little-endian stereo
	mp3Channels      = 2
	mp3BytesPerFrame = 4
)

// MP3Source reads from an MP3 file
type MP3Source struct {
	file    *os.File
	decoder *mp3.Decoder
	format  audio.Format
	length  int64
	buf     []byte
}

// NewMP3Source creates a new MP3 audio source
func NewMP3Source(filePath string) (*MP3Source, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	nbytes := decoder.Length()
	if nbytes <= 0 {
		f.Close()
		return nil, fmt.Errorf("%w: cannot determine length of MP3 file: %s", ErrUnsupportedFormat, filePath)
	}

	return &MP3Source{
		file:    f,
		decoder: decoder,
		format: audio.Format{
			Codec:      "mp3",
			SampleRate: decoder.SampleRate(),
			Channels:   mp3Channels,
			BitDepth:   16,
		},
		length: nbytes / mp3BytesPerFrame,
	}, nil
}

func (s *MP3Source) Read(samples []int32) (int, error) {
	numBytes := wholeFrames(len(samples), mp3Channels) * 2
	if cap(s.buf) < numBytes {
		s.buf = make([]byte, numBytes)
	}
	buf := s.buf[:numBytes]

	n, err := io.ReadFull(s.decoder, buf)
	if err == io.EOF {
		return 0, io.EOF
	}
	if err != nil && err != io.ErrUnexpectedEOF {
		return 0, fmt.Errorf("mp3 decode error: %w", err)
	}

	numSamples := wholeFrames(n/2, mp3Channels)
	for i := 0; i < numSamples; i++ {
		samples[i] = int32(int16(binary.LittleEndian.Uint16(buf[i*2:])))
	}
	return numSamples, nil
}

func (s *MP3Source) Format() audio.Format { return s.format }
func (s *MP3Source) Length() int64        { return s.length }
func (s *MP3Source) Close() error {
	return s.file.Close()
}
