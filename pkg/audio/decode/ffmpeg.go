// ABOUTME: FFmpeg-backed audio source for containers without a native decoder
// ABOUTME: Demuxes and decodes with go-astiav, converting to interleaved s16
package decode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/asticode/go-astiav"

	"github.com/Resonate-Protocol/stretchaudio/pkg/audio"
)

// FFmpegSource decodes any audio file FFmpeg can open (m4a, aac, ogg, ...).
// Samples are converted to signed 16-bit at the native sample rate and
// channel layout; no resampling happens.
//
// The total frame count is established by a full decode pass when the
// source is opened, since container durations are estimates.
type FFmpegSource struct {
	path    string
	decoder *ffmpegDecoder
	format  audio.Format
	length  int64

	pending []byte
}

// NewFFmpegSource opens path with FFmpeg and counts its frames
func NewFFmpegSource(path string) (*FFmpegSource, error) {
	counter, err := openFFmpeg(path)
	if err != nil {
		return nil, err
	}

	var length int64
	for {
		chunk, err := counter.next()
		if err == io.EOF {
			break
		}
		if errors.Is(err, ErrUnavailable) {
			continue
		}
		if err != nil {
			counter.close()
			return nil, err
		}
		length += int64(len(chunk) / (2 * counter.channels))
	}
	format := counter.format()
	counter.close()

	if length == 0 {
		return nil, fmt.Errorf("%w: no audio frames in %s", ErrUnsupportedFormat, path)
	}

	decoder, err := openFFmpeg(path)
	if err != nil {
		return nil, err
	}

	return &FFmpegSource{
		path:    path,
		decoder: decoder,
		format:  format,
		length:  length,
	}, nil
}

func (s *FFmpegSource) Read(samples []int32) (int, error) {
	want := wholeFrames(len(samples), s.format.Channels)
	samplesRead := 0

	for samplesRead < want {
		if len(s.pending) == 0 {
			chunk, err := s.decoder.next()
			if err != nil {
				if samplesRead > 0 && (err == io.EOF || errors.Is(err, ErrUnavailable)) {
					break
				}
				return samplesRead, err
			}
			s.pending = chunk
		}

		for len(s.pending) >= 2 && samplesRead < want {
			samples[samplesRead] = int32(int16(binary.LittleEndian.Uint16(s.pending)))
			s.pending = s.pending[2:]
			samplesRead++
		}
	}

	return samplesRead, nil
}

func (s *FFmpegSource) Format() audio.Format { return s.format }
func (s *FFmpegSource) Length() int64        { return s.length }
func (s *FFmpegSource) Close() error {
	s.decoder.close()
	return nil
}

// ffmpegDecoder is a pull-based demux/decode/convert pipeline over one file
type ffmpegDecoder struct {
	fc       *astiav.FormatContext
	stream   *astiav.Stream
	codec    *astiav.Codec
	decCtx   *astiav.CodecContext
	swr      *astiav.SoftwareResampleContext
	packet   *astiav.Packet
	srcFrame *astiav.Frame
	dstFrame *astiav.Frame

	layout   astiav.ChannelLayout
	rate     int
	channels int
	flushed  bool
}

func openFFmpeg(path string) (*ffmpegDecoder, error) {
	d := &ffmpegDecoder{}

	d.fc = astiav.AllocFormatContext()
	if d.fc == nil {
		return nil, errors.New("alloc format context")
	}
	if err := d.fc.OpenInput(path, nil, nil); err != nil {
		d.fc.Free()
		return nil, fmt.Errorf("%w: open input: %v", ErrUnsupportedFormat, err)
	}
	// From here on close() releases whatever was allocated
	if err := d.fc.FindStreamInfo(nil); err != nil {
		d.close()
		return nil, fmt.Errorf("find stream info: %w", err)
	}

	st, codec, err := d.fc.FindBestStream(astiav.MediaTypeAudio, -1, -1)
	if err != nil || st == nil || codec == nil {
		d.close()
		if err != nil {
			return nil, fmt.Errorf("%w: find best audio stream: %v", ErrUnsupportedFormat, err)
		}
		return nil, fmt.Errorf("%w: no audio stream found", ErrUnsupportedFormat)
	}
	d.stream = st
	d.codec = codec

	d.decCtx = astiav.AllocCodecContext(codec)
	if d.decCtx == nil {
		d.close()
		return nil, errors.New("alloc codec context")
	}
	if err := d.decCtx.FromCodecParameters(st.CodecParameters()); err != nil {
		d.close()
		return nil, fmt.Errorf("codec from params: %w", err)
	}
	d.decCtx.SetTimeBase(st.TimeBase())
	if err := d.decCtx.Open(codec, nil); err != nil {
		d.close()
		return nil, fmt.Errorf("open decoder: %w", err)
	}

	d.rate = d.decCtx.SampleRate()
	d.layout = d.decCtx.ChannelLayout()
	if !d.layout.Valid() || d.layout.Channels() == 0 {
		d.close()
		return nil, fmt.Errorf("%w: decoder reports no channel layout", ErrUnsupportedFormat)
	}
	d.channels = d.layout.Channels()

	d.swr = astiav.AllocSoftwareResampleContext()
	d.packet = astiav.AllocPacket()
	d.srcFrame = astiav.AllocFrame()
	d.dstFrame = astiav.AllocFrame()
	if d.swr == nil || d.packet == nil || d.srcFrame == nil || d.dstFrame == nil {
		d.close()
		return nil, errors.New("alloc decode state")
	}

	return d, nil
}

func (d *ffmpegDecoder) format() audio.Format {
	return audio.Format{
		Codec:      d.codec.Name(),
		SampleRate: d.rate,
		Channels:   d.channels,
		BitDepth:   16,
	}
}

// next returns the next decoded frame as interleaved s16le bytes. The slice
// is valid until the following call.
func (d *ffmpegDecoder) next() ([]byte, error) {
	for {
		d.srcFrame.Unref()
		err := d.decCtx.ReceiveFrame(d.srcFrame)
		if err == nil {
			return d.convert()
		}
		if errors.Is(err, astiav.ErrEof) {
			return nil, io.EOF
		}
		if !errors.Is(err, astiav.ErrEagain) {
			return nil, fmt.Errorf("receive frame: %w", err)
		}
		if d.flushed {
			return nil, io.EOF
		}

		d.packet.Unref()
		if err := d.fc.ReadFrame(d.packet); err != nil {
			if errors.Is(err, astiav.ErrEof) {
				if err := d.decCtx.SendPacket(nil); err != nil && !errors.Is(err, astiav.ErrEof) {
					return nil, fmt.Errorf("flush decoder: %w", err)
				}
				d.flushed = true
				continue
			}
			if errors.Is(err, astiav.ErrEagain) {
				return nil, ErrUnavailable
			}
			return nil, fmt.Errorf("read frame: %w", err)
		}

		if d.packet.StreamIndex() != d.stream.Index() {
			continue
		}
		if err := d.decCtx.SendPacket(d.packet); err != nil && !errors.Is(err, astiav.ErrEagain) {
			return nil, fmt.Errorf("send packet: %w", err)
		}
	}
}

func (d *ffmpegDecoder) convert() ([]byte, error) {
	d.dstFrame.Unref()
	d.dstFrame.SetNbSamples(d.srcFrame.NbSamples())
	d.dstFrame.SetChannelLayout(d.layout)
	d.dstFrame.SetSampleRate(d.rate)
	d.dstFrame.SetSampleFormat(astiav.SampleFormatS16)
	if err := d.dstFrame.AllocBuffer(0); err != nil {
		return nil, fmt.Errorf("dst alloc buffer: %w", err)
	}

	if err := d.swr.ConvertFrame(d.srcFrame, d.dstFrame); err != nil {
		return nil, fmt.Errorf("swr convert: %w", err)
	}

	b, err := d.dstFrame.Data().Bytes(1)
	if err != nil {
		return nil, fmt.Errorf("dst bytes: %w", err)
	}
	n := d.dstFrame.NbSamples() * d.channels * 2
	if n > len(b) {
		n = len(b)
	}
	return b[:n], nil
}

func (d *ffmpegDecoder) close() {
	if d.dstFrame != nil {
		d.dstFrame.Free()
	}
	if d.srcFrame != nil {
		d.srcFrame.Free()
	}
	if d.packet != nil {
		d.packet.Free()
	}
	if d.swr != nil {
		d.swr.Free()
	}
	if d.decCtx != nil {
		d.decCtx.Free()
	}
	if d.fc != nil {
		d.fc.CloseInput()
		d.fc.Free()
	}
}
