// Package libav implements audio processors with libswresample.
package libav

import (
	"context"
	"fmt"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/avtransformer/audio"
	"github.com/xaionaro-go/avtransformer/codec"
	"github.com/xaionaro-go/avtransformer/logger"
)

// Resampler converts 16-bit interleaved PCM audio into another sample rate
// and channel count.
type Resampler struct {
	SampleRate int
	Channels   int

	input                   *codec.Format
	softwareResampleContext *astiav.SoftwareResampleContext
	inputFrame              *astiav.Frame
	resampledFrame          *astiav.Frame
	output                  []byte
	inputEnded              bool
}

var _ audio.Processor = (*Resampler)(nil)

// NewResampler is the audio.ResamplerFactory of Resampler.
func NewResampler(ctx context.Context, sampleRate, channels int) (audio.Processor, error) {
	if _, err := channelLayout(channels); err != nil {
		return nil, err
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	return &Resampler{
		SampleRate: sampleRate,
		Channels:   channels,
	}, nil
}

func channelLayout(channels int) (astiav.ChannelLayout, error) {
	switch channels {
	case 1:
		return astiav.ChannelLayoutMono, nil
	case 2:
		return astiav.ChannelLayoutStereo, nil
	}
	return astiav.ChannelLayout{}, fmt.Errorf("unsupported channel count %d", channels)
}

func (r *Resampler) String() string {
	return fmt.Sprintf("libav.Resampler<%dHz %dch>", r.SampleRate, r.Channels)
}

func (r *Resampler) Configure(
	ctx context.Context,
	input *codec.Format,
) (_ret *codec.Format, _err error) {
	logger.Tracef(ctx, "Configure(%s)", input)
	defer func() { logger.Tracef(ctx, "/Configure(%s): %s %v", input, _ret, _err) }()
	if input.PCMEncoding != codec.PCMEncoding16Bit && input.PCMEncoding != codec.PCMEncodingUndefined {
		return nil, audio.ErrUnsupportedFormat{Format: input}
	}
	if _, err := channelLayout(input.Channels); err != nil || input.SampleRate <= 0 {
		return nil, audio.ErrUnsupportedFormat{Format: input}
	}
	r.Reset()
	r.input = input.Clone()
	output := input.Clone()
	output.SampleRate = r.SampleRate
	output.Channels = r.Channels
	output.PCMEncoding = codec.PCMEncoding16Bit
	if !r.IsActive() {
		return output, nil
	}

	r.softwareResampleContext = astiav.AllocSoftwareResampleContext()
	if r.softwareResampleContext == nil {
		return nil, fmt.Errorf("cannot alloc SoftwareResampleContext")
	}
	r.inputFrame = astiav.AllocFrame()
	r.resampledFrame = astiav.AllocFrame()
	logger.Debugf(ctx, "%s configured for %s", r, input)
	return output, nil
}

func (r *Resampler) IsActive() bool {
	return r.input != nil && (r.input.SampleRate != r.SampleRate || r.input.Channels != r.Channels)
}

func (r *Resampler) QueueInput(ctx context.Context, data []byte) (_err error) {
	logger.Tracef(ctx, "QueueInput: %d", len(data))
	defer func() { logger.Tracef(ctx, "/QueueInput: %d: %v", len(data), _err) }()
	if r.softwareResampleContext == nil {
		return fmt.Errorf("%s is not configured", r)
	}
	frameSize := 2 * r.input.Channels
	if len(data)%frameSize != 0 {
		return fmt.Errorf("the input is not aligned to %d channels: %d bytes", r.input.Channels, len(data))
	}
	if len(data) == 0 {
		return nil
	}

	inLayout, _ := channelLayout(r.input.Channels)
	in := r.inputFrame
	in.Unref()
	in.SetNbSamples(len(data) / frameSize)
	in.SetChannelLayout(inLayout)
	in.SetSampleFormat(astiav.SampleFormatS16)
	in.SetSampleRate(r.input.SampleRate)
	if err := in.AllocBuffer(0); err != nil {
		return fmt.Errorf("cannot alloc buffer for the input frame: %w", err)
	}
	if err := in.Data().SetBytes(data, 1); err != nil {
		return fmt.Errorf("unable to set the input frame data: %w", err)
	}

	outLayout, _ := channelLayout(r.Channels)
	out := r.resampledFrame
	out.Unref()
	out.SetChannelLayout(outLayout)
	out.SetSampleFormat(astiav.SampleFormatS16)
	out.SetSampleRate(r.SampleRate)
	if err := r.softwareResampleContext.ConvertFrame(in, out); err != nil {
		return fmt.Errorf("cannot convert frame: %w", err)
	}
	if out.NbSamples() == 0 {
		return nil
	}
	b, err := out.Data().Bytes(1)
	if err != nil {
		return fmt.Errorf("unable to get the resampled data: %w", err)
	}
	r.output = append(r.output, b[:out.NbSamples()*2*r.Channels]...)
	return nil
}

func (r *Resampler) Output() []byte {
	out := r.output
	r.output = nil
	return out
}

// QueueEndOfStream ends the stream; the samples buffered inside of
// libswresample (a few milliseconds at most) are dropped.
func (r *Resampler) QueueEndOfStream(ctx context.Context) {
	r.inputEnded = true
}

func (r *Resampler) IsEnded() bool {
	return r.inputEnded && len(r.output) == 0
}

func (r *Resampler) Flush() {
	r.output = nil
	r.inputEnded = false
}

func (r *Resampler) Reset() {
	r.Flush()
	r.input = nil
	if r.softwareResampleContext != nil {
		r.softwareResampleContext.Free()
		r.softwareResampleContext = nil
	}
	for _, f := range []**astiav.Frame{&r.inputFrame, &r.resampledFrame} {
		if *f != nil {
			(*f).Free()
			*f = nil
		}
	}
}
