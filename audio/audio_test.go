package audio

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avtransformer/codec"
)

func rampPCM(frames, channels int) []byte {
	samples := make([]int16, 0, frames*channels)
	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			samples = append(samples, int16(i*10+ch))
		}
	}
	return EncodePCM16(nil, samples)
}

func runProcessor(t *testing.T, p Processor, input []byte, chunkSizes ...int) []byte {
	ctx := context.Background()
	var out []byte
	for len(input) > 0 {
		size := len(input)
		if len(chunkSizes) > 0 {
			size = min(chunkSizes[0], size)
			chunkSizes = append(chunkSizes[1:], chunkSizes[0])
		}
		require.NoError(t, p.QueueInput(ctx, input[:size]))
		input = input[size:]
		out = append(out, p.Output()...)
	}
	p.QueueEndOfStream(ctx)
	out = append(out, p.Output()...)
	require.True(t, p.IsEnded())
	return out
}

func TestSpeedChangerFrameCount(t *testing.T) {
	ctx := context.Background()
	for _, tc := range []struct {
		speed      float64
		wantFrames int
	}{
		{2, 50},
		{0.5, 200},
		{4, 25},
	} {
		s := NewSpeedChanger(tc.speed)
		_, err := s.Configure(ctx, codec.NewAudioFormat(codec.MimeTypeAudioRaw, 44100, 2))
		require.NoError(t, err)
		require.True(t, s.IsActive())
		out := runProcessor(t, s, rampPCM(100, 2))
		require.Len(t, out, tc.wantFrames*4, "speed %g", tc.speed)
	}
}

func TestSpeedChangerInterpolates(t *testing.T) {
	ctx := context.Background()
	s := NewSpeedChanger(0.5)
	_, err := s.Configure(ctx, codec.NewAudioFormat(codec.MimeTypeAudioRaw, 44100, 1))
	require.NoError(t, err)
	samples, err := DecodePCM16(nil, runProcessor(t, s, rampPCM(3, 1)))
	require.NoError(t, err)
	require.Equal(t, []int16{0, 5, 10, 15, 20, 20}, samples)
}

func TestSpeedChangerDoesNotDependOnSplitting(t *testing.T) {
	ctx := context.Background()
	format := codec.NewAudioFormat(codec.MimeTypeAudioRaw, 48000, 2)
	input := rampPCM(1000, 2)

	whole := NewSpeedChanger(1.5)
	_, err := whole.Configure(ctx, format)
	require.NoError(t, err)
	expected := runProcessor(t, whole, input)

	split := NewSpeedChanger(1.5)
	_, err = split.Configure(ctx, format)
	require.NoError(t, err)
	require.Equal(t, expected, runProcessor(t, split, input, 4, 12, 400, 8, 36))
}

func TestSpeedChangerRejectsInvalidInput(t *testing.T) {
	ctx := context.Background()
	s := NewSpeedChanger(2)
	require.Error(t, s.QueueInput(ctx, []byte{0, 0}))

	format := codec.NewAudioFormat(codec.MimeTypeAudioRaw, 48000, 2)
	format.PCMEncoding = codec.PCMEncodingFloat
	_, err := s.Configure(ctx, format)
	require.ErrorAs(t, err, &ErrUnsupportedFormat{})

	_, err = NewSpeedChanger(0).Configure(ctx, codec.NewAudioFormat(codec.MimeTypeAudioRaw, 48000, 2))
	require.Error(t, err)

	_, err = s.Configure(ctx, codec.NewAudioFormat(codec.MimeTypeAudioRaw, 48000, 2))
	require.NoError(t, err)
	require.Error(t, s.QueueInput(ctx, []byte{0, 0}))
}

func TestChain(t *testing.T) {
	ctx := context.Background()
	format := codec.NewAudioFormat(codec.MimeTypeAudioRaw, 48000, 1)

	inactive := NewChain(NewSpeedChanger(1))
	_, err := inactive.Configure(ctx, format)
	require.NoError(t, err)
	require.False(t, inactive.IsActive())
	input := rampPCM(10, 1)
	require.Equal(t, input, runProcessor(t, inactive, input))

	chain := NewChain(NewSpeedChanger(2), NewSpeedChanger(1), NewSpeedChanger(2))
	_, err = chain.Configure(ctx, format)
	require.NoError(t, err)
	require.True(t, chain.IsActive())
	out := runProcessor(t, chain, rampPCM(100, 1), 10)
	require.Len(t, out, 25*2)

	chain.Reset()
	require.Error(t, chain.QueueInput(ctx, input))
}

func TestTimestampTracker(t *testing.T) {
	tracker, err := NewTimestampTracker(codec.NewAudioFormat(codec.MimeTypeAudioRaw, 44100, 2))
	require.NoError(t, err)
	tracker.Reset(1000)

	require.Equal(t, int64(1000), tracker.Advance(4096))
	require.Equal(t, int64(1000+1024*1_000_000/44100), tracker.CurrentTimeUs())

	var pts int64
	for i := 0; i < 44100/1024; i++ {
		pts = tracker.Advance(4096)
	}
	require.Equal(t, int64(1000+43*1024*1_000_000/44100), pts)

	tracker.Reset(0)
	tracker.Advance(3)
	tracker.Advance(1)
	require.Equal(t, int64(1_000_000/44100), tracker.CurrentTimeUs())
	require.Equal(t, int64(1_000_000), tracker.DurationUs(44100*4))

	_, err = NewTimestampTracker(codec.NewAudioFormat(codec.MimeTypeAudioRaw, 0, 2))
	require.Error(t, err)
}

func TestExtractChannel(t *testing.T) {
	samples, err := DecodePCM16(nil, rampPCM(4, 2))
	require.NoError(t, err)
	require.Equal(t, []float64{1 / 32768.0, 11 / 32768.0, 21 / 32768.0, 31 / 32768.0}, ExtractChannel(samples, 2, 1))
	require.Nil(t, ExtractChannel(samples, 2, 2))
	_, err = DecodePCM16(nil, []byte{1})
	require.Error(t, err)
}

func TestSampleRateConverter(t *testing.T) {
	ctx := context.Background()
	p, err := NewResampler(ctx, 48000, 2)
	require.NoError(t, err)

	out, err := p.Configure(ctx, codec.NewAudioFormat(codec.MimeTypeAudioRaw, 96000, 2))
	require.NoError(t, err)
	require.Equal(t, 48000, out.SampleRate)
	require.Equal(t, 2, out.Channels)
	require.True(t, p.IsActive())
	require.Len(t, runProcessor(t, p, rampPCM(100, 2), 40), 50*4)

	_, err = p.Configure(ctx, codec.NewAudioFormat(codec.MimeTypeAudioRaw, 48000, 2))
	require.NoError(t, err)
	require.False(t, p.IsActive())

	_, err = p.Configure(ctx, codec.NewAudioFormat(codec.MimeTypeAudioRaw, 96000, 1))
	require.ErrorAs(t, err, &ErrUnsupportedFormat{})
}
