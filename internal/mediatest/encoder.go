package mediatest

import (
	"context"
	"fmt"
	"image"

	"github.com/xaionaro-go/avtransformer/codec"
	"github.com/xaionaro-go/avtransformer/gpu"
	"github.com/xaionaro-go/xsync"
)

const (
	videoKeyFrameInterval = 30
)

// Encoder pretends to encode: every input buffer or swapped frame becomes
// an output buffer sized after the configured bitrate.
type Encoder struct {
	Info   codec.EncoderInfo
	Format *codec.Format

	surface *gpu.ImageSurface

	locker       xsync.Mutex
	input        *codec.Buffer
	outputs      []*codec.Buffer
	inputEnded   bool
	isEnded      bool
	isReleased   bool
	encodedCount int
}

var _ codec.Codec = (*Encoder)(nil)

// NewEncoder is a codec.EncoderConstructor.
func NewEncoder(ctx context.Context, info codec.EncoderInfo, format *codec.Format) (codec.Codec, error) {
	e := &Encoder{
		Info:   info,
		Format: format.Clone(),
	}
	if format.IsVideo() {
		if format.Width <= 0 || format.Height <= 0 {
			return nil, fmt.Errorf("invalid size %dx%d", format.Width, format.Height)
		}
		e.surface = gpu.NewImageSurface(format.Width, format.Height)
		e.surface.OnSwap = e.onSwap
	}
	return e, nil
}

func (e *Encoder) String() string {
	return fmt.Sprintf("mediatest.Encoder(%s)", e.Info.Name)
}

func (e *Encoder) Name() string {
	return e.Info.Name
}

func (e *Encoder) ConfigurationFormat() *codec.Format {
	return e.Format
}

func (e *Encoder) InputSurface() gpu.SurfaceTarget {
	if e.surface == nil {
		return nil
	}
	return e.surface
}

// Surface returns the input surface of a video encoder.
func (e *Encoder) Surface() *gpu.ImageSurface {
	return e.surface
}

func (e *Encoder) sampleSize(durationUs int64) int {
	bitrate := e.Format.Bitrate
	if bitrate <= 0 {
		bitrate = 1_000_000
	}
	return max(int(int64(bitrate)*durationUs/8/1_000_000), 1)
}

func (e *Encoder) frameDurationUs() int64 {
	if e.Format.FrameRate <= 0 {
		return 33_333
	}
	return int64(1_000_000 / e.Format.FrameRate)
}

func (e *Encoder) onSwap(ctx context.Context, img *image.RGBA, presentationTimeNs int64) error {
	return xsync.DoR1(ctx, &e.locker, func() error {
		if e.inputEnded || e.isReleased {
			return fmt.Errorf("the input has ended")
		}
		out := codec.GetBuffer(0)
		out.Data = append(out.Data, make([]byte, e.sampleSize(e.frameDurationUs()))...)
		out.PresentationTimeUs = presentationTimeNs / 1000
		if e.encodedCount%videoKeyFrameInterval == 0 {
			out.Flags |= codec.BufferFlagKeyFrame
		}
		e.encodedCount++
		e.outputs = append(e.outputs, out)
		return nil
	})
}

func (e *Encoder) DequeueInputBuffer(ctx context.Context) (*codec.Buffer, error) {
	if e.surface != nil {
		return nil, fmt.Errorf("the video encoder is fed through its input surface")
	}
	return xsync.DoR1(ctx, &e.locker, func() *codec.Buffer {
		if e.inputEnded || e.isReleased {
			return nil
		}
		if e.input == nil {
			e.input = codec.GetBuffer(0)
		}
		return e.input
	}), nil
}

func (e *Encoder) QueueInputBuffer(ctx context.Context) error {
	return xsync.DoR1(ctx, &e.locker, func() error {
		in := e.input
		if in == nil {
			return fmt.Errorf("no input buffer is dequeued")
		}
		e.input = nil
		defer codec.PutBuffer(in)
		out := codec.GetBuffer(0)
		out.PresentationTimeUs = in.PresentationTimeUs
		if in.IsEndOfStream() {
			e.inputEnded = true
			out.Flags |= codec.BufferFlagEndOfStream
			e.outputs = append(e.outputs, out)
			return nil
		}
		if e.Format.MaxInputSize > 0 && len(in.Data) > e.Format.MaxInputSize {
			return fmt.Errorf("the input buffer overflowed: %d > %d", len(in.Data), e.Format.MaxInputSize)
		}
		frameSize := e.Format.PCMFrameSize()
		if frameSize <= 0 {
			frameSize = 2 * max(e.Format.Channels, 1)
		}
		durationUs := int64(len(in.Data)/frameSize) * 1_000_000 / int64(max(e.Format.SampleRate, 1))
		out.Data = append(out.Data, make([]byte, e.sampleSize(durationUs))...)
		out.Flags |= codec.BufferFlagKeyFrame
		e.encodedCount++
		e.outputs = append(e.outputs, out)
		return nil
	})
}

func (e *Encoder) SignalEndOfInputStream(ctx context.Context) error {
	return xsync.DoR1(ctx, &e.locker, func() error {
		if e.surface == nil {
			return fmt.Errorf("the encoder has no input surface")
		}
		if e.inputEnded {
			return fmt.Errorf("the end of input was already signaled")
		}
		e.inputEnded = true
		out := codec.GetBuffer(0)
		out.Flags |= codec.BufferFlagEndOfStream
		e.outputs = append(e.outputs, out)
		return nil
	})
}

func (e *Encoder) OutputFormat(ctx context.Context) (*codec.Format, error) {
	return e.Format, nil
}

func (e *Encoder) OutputBuffer(ctx context.Context) (*codec.Buffer, error) {
	return xsync.DoR1(ctx, &e.locker, func() *codec.Buffer {
		if len(e.outputs) == 0 {
			return nil
		}
		return e.outputs[0]
	}), nil
}

func (e *Encoder) ReleaseOutputBuffer(ctx context.Context, render bool) error {
	return xsync.DoR1(ctx, &e.locker, func() error {
		if len(e.outputs) == 0 {
			return fmt.Errorf("no output buffer")
		}
		out := e.outputs[0]
		e.outputs = e.outputs[1:]
		if out.IsEndOfStream() {
			e.isEnded = true
		}
		codec.PutBuffer(out)
		return nil
	})
}

func (e *Encoder) IsEnded() bool {
	return xsync.DoR1(context.Background(), &e.locker, func() bool {
		return e.isEnded
	})
}

func (e *Encoder) EncodedCount() int {
	return xsync.DoR1(context.Background(), &e.locker, func() int {
		return e.encodedCount
	})
}

func (e *Encoder) Release(ctx context.Context) error {
	e.locker.Do(ctx, func() {
		e.isReleased = true
		codec.PutBuffer(e.outputs...)
		e.outputs = nil
	})
	return nil
}

var (
	H264EncoderInfo = codec.EncoderInfo{
		Name:            "mediatest.encoder.avc",
		MimeType:        codec.MimeTypeVideoH264,
		Widths:          codec.Range{Min: 2, Max: 4096},
		Heights:         codec.Range{Min: 2, Max: 2304},
		WidthAlignment:  2,
		HeightAlignment: 2,
		Bitrates:        codec.Range{Min: 100_000, Max: 20_000_000},
	}
	AACEncoderInfo = codec.EncoderInfo{
		Name:        "mediatest.encoder.aac",
		MimeType:    codec.MimeTypeAudioAAC,
		SampleRates: []int{8000, 16000, 22050, 32000, 44100, 48000},
		MaxChannels: 2,
		Bitrates:    codec.Range{Min: 32_000, Max: 320_000},
	}
)

// NewEncoderFactory returns a factory creating Encoders with the settings
// the encoders support; the H.264 and AAC encoders by default.
func NewEncoderFactory(encoders ...codec.EncoderInfo) *codec.CapabilityEncoderFactory {
	if len(encoders) == 0 {
		encoders = []codec.EncoderInfo{H264EncoderInfo, AACEncoderInfo}
	}
	return codec.NewCapabilityEncoderFactory(NewEncoder, encoders...)
}
