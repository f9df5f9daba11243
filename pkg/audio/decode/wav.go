// ABOUTME: WAV audio source
// ABOUTME: Decodes integer PCM WAV files to int32 samples
package decode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/riff"
	"github.com/go-audio/wav"

	"github.com/Resonate-Protocol/stretchaudio/pkg/audio"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

// Sub-format GUID bytes after the leading format code (KSDATAFORMAT_SUBTYPE_*)
var wavSubFormatTail = []byte{0x00, 0x00, 0x00, 0x00, 0x10, 0x00, 0x80, 0x00, 0x00, 0xAA, 0x00, 0x38, 0x9B, 0x71}

// WAVSource reads from a WAV file
type WAVSource struct {
	file      *os.File
	decoder   *wav.Decoder
	format    audio.Format
	length    int64
	remaining int64
	scratch   *goaudio.IntBuffer
}

// NewWAVSource creates a new WAV audio source
func NewWAVSource(filePath string) (*WAVSource, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("%w: invalid WAV file: %s", ErrUnsupportedFormat, filePath)
	}
	if err := decoder.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to find WAV PCM data: %w", err)
	}
	encoding := decoder.WavAudioFormat
	if encoding == wavFormatExtensible {
		// go-audio skips the fmt extension, so read the sub-format separately
		if encoding, err = wavSubFormat(filePath); err != nil {
			f.Close()
			return nil, err
		}
	}
	if encoding != wavFormatPCM {
		f.Close()
		return nil, fmt.Errorf("%w: WAV encoding %d (supported: integer PCM)",
			ErrUnsupportedFormat, encoding)
	}

	format := audio.Format{
		Codec:      "wav",
		SampleRate: int(decoder.SampleRate),
		Channels:   int(decoder.NumChans),
		BitDepth:   int(decoder.BitDepth),
	}
	if err := format.Validate(); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	bytesPerFrame := int64((format.BitDepth-1)/8+1) * int64(format.Channels)
	length := decoder.PCMLen() / bytesPerFrame

	return &WAVSource{
		file:      f,
		decoder:   decoder,
		format:    format,
		length:    length,
		remaining: length,
		scratch: &goaudio.IntBuffer{
			Format: &goaudio.Format{
				NumChannels: format.Channels,
				SampleRate:  format.SampleRate,
			},
			SourceBitDepth: format.BitDepth,
		},
	}, nil
}

func (s *WAVSource) Read(samples []int32) (int, error) {
	if s.remaining == 0 {
		return 0, io.EOF
	}

	want := wholeFrames(len(samples), s.format.Channels)
	// Trailing chunks (LIST, id3) follow the PCM data; never read into them
	if limit := s.remaining * int64(s.format.Channels); int64(want) > limit {
		want = int(limit)
	}
	if want == 0 {
		return 0, nil
	}

	if cap(s.scratch.Data) < want {
		s.scratch.Data = make([]int, want)
	}
	s.scratch.Data = s.scratch.Data[:want]

	n, err := s.decoder.PCMBuffer(s.scratch)
	n = wholeFrames(n, s.format.Channels)
	// 8-bit WAV data is unsigned around 128
	bias := 0
	if s.format.BitDepth == 8 {
		bias = 128
	}
	for i := 0; i < n; i++ {
		samples[i] = int32(s.scratch.Data[i] - bias)
	}
	s.remaining -= int64(n / s.format.Channels)

	if err != nil && err != io.EOF {
		return n, fmt.Errorf("wav decode error: %w", err)
	}
	if n == 0 {
		return 0, io.EOF
	}
	return n, nil
}

func (s *WAVSource) Format() audio.Format { return s.format }
func (s *WAVSource) Length() int64        { return s.length }
func (s *WAVSource) Close() error {
	return s.file.Close()
}

// wavSubFormat returns the format code carried in the sub-format GUID of a
// WAVE_FORMAT_EXTENSIBLE fmt chunk
func wavSubFormat(filePath string) (uint16, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to open WAV file: %w", err)
	}
	defer f.Close()

	parser := riff.New(f)
	if err := parser.ParseHeaders(); err != nil {
		return 0, fmt.Errorf("%w: invalid WAV file: %v", ErrUnsupportedFormat, err)
	}
	for {
		ch, err := parser.NextChunk()
		if err != nil {
			return 0, fmt.Errorf("%w: WAV fmt chunk not found", ErrUnsupportedFormat)
		}
		if ch.ID != riff.FmtID {
			ch.Drain()
			continue
		}

		body := make([]byte, ch.Size)
		if _, err := io.ReadFull(ch, body); err != nil {
			return 0, fmt.Errorf("failed to read WAV fmt chunk: %w", err)
		}
		// 16 byte base header, cbSize, valid bits, channel mask, GUID
		if len(body) < 40 || binary.LittleEndian.Uint16(body[16:]) < 22 {
			return 0, fmt.Errorf("%w: truncated WAVE_FORMAT_EXTENSIBLE header", ErrUnsupportedFormat)
		}
		guid := body[24:40]
		if !bytes.Equal(guid[2:], wavSubFormatTail) {
			return 0, fmt.Errorf("%w: unknown WAV sub-format %x", ErrUnsupportedFormat, guid)
		}
		return binary.LittleEndian.Uint16(guid), nil
	}
}
