package audio

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/avtransformer/codec"
)

// SampleRateConverter converts 16-bit PCM audio into another sample rate
// with linear interpolation. The channel count is kept.
type SampleRateConverter struct {
	SpeedChanger
	SampleRate int
	Channels   int

	inputSampleRate int
}

var _ Processor = (*SampleRateConverter)(nil)

// NewResampler is the ResamplerFactory of SampleRateConverter.
func NewResampler(ctx context.Context, sampleRate, channels int) (Processor, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	return &SampleRateConverter{
		SampleRate: sampleRate,
		Channels:   channels,
	}, nil
}

func (c *SampleRateConverter) String() string {
	return fmt.Sprintf("SampleRateConverter(%d->%dHz)", c.inputSampleRate, c.SampleRate)
}

func (c *SampleRateConverter) Configure(ctx context.Context, input *codec.Format) (*codec.Format, error) {
	if input.SampleRate <= 0 || (c.Channels > 0 && input.Channels != c.Channels) {
		return nil, ErrUnsupportedFormat{Format: input}
	}
	c.inputSampleRate = input.SampleRate
	c.Speed = float64(input.SampleRate) / float64(c.SampleRate)
	if _, err := c.SpeedChanger.Configure(ctx, input); err != nil {
		return nil, err
	}
	output := input.Clone()
	output.SampleRate = c.SampleRate
	return output, nil
}

func (c *SampleRateConverter) IsActive() bool {
	return c.inputSampleRate != c.SampleRate
}
