// ABOUTME: Source interface definition
// ABOUTME: Common interface for all finite audio sources and extension dispatch
package decode

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Resonate-Protocol/stretchaudio/pkg/audio"
)

var (
	// ErrUnavailable reports that a source cannot supply samples right now;
	// the same Read may succeed later.
	ErrUnavailable = errors.New("decode: source temporarily unavailable")

	// ErrTruncated reports that a source ended before its declared length.
	ErrTruncated = errors.New("decode: source ended before its declared length")

	// ErrUnsupportedFormat reports a file this package cannot decode.
	ErrUnsupportedFormat = errors.New("decode: unsupported audio format")
)

// Source provides a finite stream of PCM samples
type Source interface {
	// Format returns the sample layout of the stream
	Format() audio.Format

	// Length returns the total number of frames in the stream
	Length() int64

	// Read reads interleaved samples into the buffer, whole frames only.
	// Returns number of samples read; io.EOF once all frames were read.
	Read(samples []int32) (int, error)

	// Close releases the source
	Close() error
}

// Open creates a source for a local audio file, chosen by extension.
// Extensions without a native decoder are handed to FFmpeg.
func Open(path string) (Source, error) {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("audio file not found: %s", path)
		}
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav", ".wave":
		return NewWAVSource(path)
	case ".flac":
		return NewFLACSource(path)
	case ".mp3":
		return NewMP3Source(path)
	default:
		return NewFFmpegSource(path)
	}
}

// wholeFrames trims a sample count to a multiple of channels
func wholeFrames(samples, channels int) int {
	return samples - samples%channels
}
