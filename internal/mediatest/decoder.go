package mediatest

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"image/draw"

	"github.com/xaionaro-go/avtransformer/codec"
	"github.com/xaionaro-go/avtransformer/gpu"
	"github.com/xaionaro-go/xsync"
)

const (
	DefaultMaxOutputBuffers = 2
)

// Decoder pretends to decode the samples of a Source: audio samples become
// AACFrameSize frames of silence, video samples become solid frames
// rendered into the output surface.
type Decoder struct {
	InputFormat      *codec.Format
	Surface          *gpu.InputSurface
	FrameColor       color.RGBA
	MaxOutputBuffers int

	locker        xsync.Mutex
	input         *codec.Buffer
	outputs       []*codec.Buffer
	frame         *image.RGBA
	outputSize    image.Point
	inputEnded    bool
	isEnded       bool
	isReleased    bool
	decodedCount  int
	renderedCount int
}

var _ codec.Codec = (*Decoder)(nil)

func NewDecoder(format *codec.Format, surface *gpu.InputSurface) *Decoder {
	return &Decoder{
		InputFormat:      format.Clone(),
		Surface:          surface,
		FrameColor:       color.RGBA{R: 100, G: 100, B: 100, A: 255},
		MaxOutputBuffers: DefaultMaxOutputBuffers,
	}
}

func (d *Decoder) String() string {
	return fmt.Sprintf("mediatest.Decoder(%s)", d.InputFormat.MimeType)
}

func (d *Decoder) Name() string {
	return "mediatest.decoder." + d.InputFormat.MimeType
}

func (d *Decoder) ConfigurationFormat() *codec.Format {
	return d.InputFormat
}

func (d *Decoder) InputSurface() gpu.SurfaceTarget {
	return nil
}

func (d *Decoder) DequeueInputBuffer(ctx context.Context) (*codec.Buffer, error) {
	return xsync.DoR1(ctx, &d.locker, func() *codec.Buffer {
		if d.inputEnded || d.isReleased || len(d.outputs) >= d.MaxOutputBuffers {
			return nil
		}
		if d.input == nil {
			d.input = codec.GetBuffer(0)
		}
		return d.input
	}), nil
}

func (d *Decoder) QueueInputBuffer(ctx context.Context) error {
	return xsync.DoR1(ctx, &d.locker, func() error {
		in := d.input
		if in == nil {
			return fmt.Errorf("no input buffer is dequeued")
		}
		d.input = nil
		defer codec.PutBuffer(in)
		out := codec.GetBuffer(0)
		out.PresentationTimeUs = in.PresentationTimeUs
		if in.IsEndOfStream() {
			d.inputEnded = true
			out.Flags |= codec.BufferFlagEndOfStream
			d.outputs = append(d.outputs, out)
			return nil
		}
		if d.InputFormat.IsAudio() {
			size := AACFrameSize * d.InputFormat.Channels * codec.PCMEncoding16Bit.BytesPerSample()
			out.Data = append(out.Data, make([]byte, size)...)
		}
		d.decodedCount++
		d.outputs = append(d.outputs, out)
		return nil
	})
}

func (d *Decoder) SignalEndOfInputStream(ctx context.Context) error {
	return fmt.Errorf("decoders have no input surface")
}

// SetOutputSize changes the size of the video frames rendered from now on.
func (d *Decoder) SetOutputSize(width, height int) {
	d.locker.Do(context.Background(), func() {
		d.outputSize = image.Pt(width, height)
	})
}

func (d *Decoder) frameSize() image.Point {
	if d.outputSize != (image.Point{}) {
		return d.outputSize
	}
	return image.Pt(d.InputFormat.Width, d.InputFormat.Height)
}

func (d *Decoder) OutputFormat(ctx context.Context) (*codec.Format, error) {
	if d.InputFormat.IsAudio() {
		f := codec.NewAudioFormat(codec.MimeTypeAudioRaw, d.InputFormat.SampleRate, d.InputFormat.Channels)
		f.PCMEncoding = codec.PCMEncoding16Bit
		return f, nil
	}
	size := xsync.DoR1(ctx, &d.locker, d.frameSize)
	f := codec.NewVideoFormat(codec.MimeTypeVideoRaw, size.X, size.Y)
	f.FrameRate = d.InputFormat.FrameRate
	f.ColorInfo = d.InputFormat.ColorInfo
	return f, nil
}

func (d *Decoder) OutputBuffer(ctx context.Context) (*codec.Buffer, error) {
	return xsync.DoR1(ctx, &d.locker, func() *codec.Buffer {
		if len(d.outputs) == 0 {
			return nil
		}
		return d.outputs[0]
	}), nil
}

func (d *Decoder) ReleaseOutputBuffer(ctx context.Context, render bool) error {
	var (
		toRender image.Image
		tsNs     int64
	)
	err := xsync.DoR1(ctx, &d.locker, func() error {
		if len(d.outputs) == 0 {
			return fmt.Errorf("no output buffer")
		}
		out := d.outputs[0]
		d.outputs = d.outputs[1:]
		defer codec.PutBuffer(out)
		if out.IsEndOfStream() {
			d.isEnded = true
			return nil
		}
		if !render || d.Surface == nil || !d.InputFormat.IsVideo() {
			return nil
		}
		if size := d.frameSize(); d.frame == nil || d.frame.Bounds().Size() != size {
			d.frame = image.NewRGBA(image.Rectangle{Max: size})
			draw.Draw(d.frame, d.frame.Bounds(), image.NewUniform(d.FrameColor), image.Point{}, draw.Src)
		}
		d.renderedCount++
		toRender, tsNs = d.frame, out.PresentationTimeUs*1000
		return nil
	})
	if err != nil || toRender == nil {
		return err
	}
	return d.Surface.QueueImage(toRender, tsNs, gpu.Identity())
}

func (d *Decoder) IsEnded() bool {
	return xsync.DoR1(context.Background(), &d.locker, func() bool {
		return d.isEnded
	})
}

func (d *Decoder) RenderedCount() int {
	return xsync.DoR1(context.Background(), &d.locker, func() int {
		return d.renderedCount
	})
}

func (d *Decoder) Release(ctx context.Context) error {
	d.locker.Do(ctx, func() {
		d.isReleased = true
		codec.PutBuffer(d.outputs...)
		d.outputs = nil
	})
	return nil
}

// DecoderFactory creates Decoders and remembers them.
type DecoderFactory struct {
	locker   xsync.Mutex
	decoders []*Decoder
}

var _ codec.DecoderFactory = (*DecoderFactory)(nil)

func (f *DecoderFactory) CreateForAudioDecoding(ctx context.Context, format *codec.Format) (codec.Codec, error) {
	if !format.IsAudio() {
		return nil, fmt.Errorf("not an audio format: %s", format)
	}
	return f.add(ctx, NewDecoder(format, nil)), nil
}

func (f *DecoderFactory) CreateForVideoDecoding(
	ctx context.Context,
	format *codec.Format,
	outputSurface *gpu.InputSurface,
	enableToneMapping bool,
) (codec.Codec, error) {
	if !format.IsVideo() {
		return nil, fmt.Errorf("not a video format: %s", format)
	}
	return f.add(ctx, NewDecoder(format, outputSurface)), nil
}

func (f *DecoderFactory) add(ctx context.Context, d *Decoder) *Decoder {
	f.locker.Do(ctx, func() {
		f.decoders = append(f.decoders, d)
	})
	return d
}

func (f *DecoderFactory) Decoders() []*Decoder {
	return xsync.DoR1(context.Background(), &f.locker, func() []*Decoder {
		return append([]*Decoder{}, f.decoders...)
	})
}
