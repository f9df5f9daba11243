// ABOUTME: FLAC audio encoder
// ABOUTME: Writes int32 samples to a FLAC file using verbatim subframes
package encode

import (
	"errors"
	"fmt"
	"os"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"

	"github.com/Resonate-Protocol/stretchaudio/pkg/audio"
)

// FLACBlockSize is the largest number of frames per FLAC frame written
const FLACBlockSize = 4096

// FLACMinBlockSize is the smallest block a stream info header may declare
const FLACMinBlockSize = 16

// FLACEncoder writes a FLAC file
type FLACEncoder struct {
	file    *os.File
	encoder *flac.Encoder
	format  audio.Format

	// Per-channel samples waiting to be written. A full block is only
	// emitted once FLACMinBlockSize frames follow it, so the tail is never
	// shorter than the stream minimum.
	pending [][]int32
	frames  int64
}

// NewFLAC creates a FLAC file at path
func NewFLAC(path string, format audio.Format) (*FLACEncoder, error) {
	if format.Channels > 8 {
		return nil, fmt.Errorf("%w: FLAC supports at most 8 channels, got %d",
			ErrUnsupportedFormat, format.Channels)
	}

	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create FLAC file: %w", err)
	}

	info := &meta.StreamInfo{
		BlockSizeMin:  FLACMinBlockSize,
		BlockSizeMax:  FLACBlockSize,
		SampleRate:    uint32(format.SampleRate),
		NChannels:     uint8(format.Channels),
		BitsPerSample: uint8(format.BitDepth),
	}
	enc, err := flac.NewEncoder(f, info)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create FLAC encoder: %w", err)
	}

	pending := make([][]int32, format.Channels)
	for ch := range pending {
		pending[ch] = make([]int32, 0, FLACBlockSize+FLACMinBlockSize)
	}

	format.Codec = "flac"
	return &FLACEncoder{
		file:    f,
		encoder: enc,
		format:  format,
		pending: pending,
	}, nil
}

// Write deinterleaves samples and emits a FLAC frame per full block
func (e *FLACEncoder) Write(samples []int32) error {
	if err := checkFrames(samples, e.format.Channels); err != nil {
		return err
	}

	channels := e.format.Channels
	for i := 0; i < len(samples); i += channels {
		for ch := 0; ch < channels; ch++ {
			e.pending[ch] = append(e.pending[ch], samples[i+ch])
		}
		if len(e.pending[0]) == FLACBlockSize+FLACMinBlockSize {
			if err := e.writeBlock(FLACBlockSize); err != nil {
				return err
			}
		}
	}
	e.frames += int64(len(samples) / channels)
	return nil
}

// writeBlock encodes the first n pending frames and shifts the rest down
func (e *FLACEncoder) writeBlock(n int) error {
	subframes := make([]*frame.Subframe, e.format.Channels)
	for ch := range subframes {
		subframes[ch] = &frame.Subframe{
			SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
			Samples:   e.pending[ch][:n],
			NSamples:  n,
		}
	}

	// Variable block size lets the tail be split across two frames.
	fr := &frame.Frame{
		Header: frame.Header{
			HasFixedBlockSize: false,
			BlockSize:         uint16(n),
			SampleRate:        uint32(e.format.SampleRate),
			Channels:          frame.Channels(e.format.Channels - 1),
			BitsPerSample:     uint8(e.format.BitDepth),
		},
		Subframes: subframes,
	}
	if err := e.encoder.WriteFrame(fr); err != nil {
		return fmt.Errorf("flac encode error: %w", err)
	}

	for ch := range e.pending {
		rest := copy(e.pending[ch], e.pending[ch][n:])
		e.pending[ch] = e.pending[ch][:rest]
	}
	return nil
}

// flushTail writes what is left, splitting it in two when it exceeds a block
func (e *FLACEncoder) flushTail() error {
	n := len(e.pending[0])
	if n > FLACBlockSize {
		if err := e.writeBlock(n / 2); err != nil {
			return err
		}
		n = len(e.pending[0])
	}
	if n == 0 {
		return nil
	}
	return e.writeBlock(n)
}

func (e *FLACEncoder) Format() audio.Format { return e.format }
func (e *FLACEncoder) Frames() int64        { return e.frames }

// Close writes the final blocks and updates the stream info. Streams shorter
// than FLACMinBlockSize frames cannot carry a valid header and are rejected.
func (e *FLACEncoder) Close() error {
	var flushErr error
	if e.frames < FLACMinBlockSize {
		flushErr = fmt.Errorf("%w: FLAC needs at least %d frames, got %d",
			ErrUnsupportedFormat, FLACMinBlockSize, e.frames)
	} else {
		flushErr = e.flushTail()
	}
	// flac.Encoder closes the file itself
	closeErr := e.encoder.Close()
	if err := e.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) && closeErr == nil {
		closeErr = err
	}
	if flushErr != nil {
		return flushErr
	}
	if closeErr != nil {
		return fmt.Errorf("failed to finalize FLAC: %w", closeErr)
	}
	return nil
}
