// ABOUTME: Encoder interface definition
// ABOUTME: Common interface for all audio sinks and extension dispatch
package encode

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Resonate-Protocol/stretchaudio/pkg/audio"
)

// ErrUnsupportedFormat reports an output container or layout this package cannot write.
var ErrUnsupportedFormat = errors.New("encode: unsupported audio format")

// Encoder appends PCM samples to an audio container
type Encoder interface {
	// Format returns the sample layout written to the container
	Format() audio.Format

	// Write appends interleaved samples, whole frames only. The slice is
	// not retained.
	Write(samples []int32) error

	// Frames returns the number of frames written so far
	Frames() int64

	// Close finalizes the container and releases the file
	Close() error
}

// Create opens an encoder for path, chosen by extension. The container
// keeps the sample rate, channel count and bit depth of format.
func Create(path string, format audio.Format) (Encoder, error) {
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav", ".wave":
		return NewWAV(path, format)
	case ".flac":
		return NewFLAC(path, format)
	default:
		return nil, fmt.Errorf("%w: %s (supported: .wav, .flac)", ErrUnsupportedFormat, ext)
	}
}

func checkFrames(samples []int32, channels int) error {
	if len(samples)%channels != 0 {
		return fmt.Errorf("partial frame: %d samples for %d channels", len(samples), channels)
	}
	return nil
}
