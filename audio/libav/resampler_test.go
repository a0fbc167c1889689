package libav

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avtransformer/audio"
	"github.com/xaionaro-go/avtransformer/codec"
)

func TestResampler(t *testing.T) {
	ctx := context.Background()
	p, err := NewResampler(ctx, 48000, 1)
	require.NoError(t, err)
	defer p.Reset()

	out, err := p.Configure(ctx, codec.NewAudioFormat(codec.MimeTypeAudioRaw, 96000, 2))
	require.NoError(t, err)
	require.True(t, p.IsActive())
	require.Equal(t, 48000, out.SampleRate)
	require.Equal(t, 1, out.Channels)

	var resampled []byte
	for i := 0; i < 10; i++ {
		require.NoError(t, p.QueueInput(ctx, make([]byte, 960*2*2)))
		resampled = append(resampled, p.Output()...)
	}
	p.QueueEndOfStream(ctx)
	resampled = append(resampled, p.Output()...)
	require.True(t, p.IsEnded())

	require.Zero(t, len(resampled)%2)
	require.InDelta(t, 4800, len(resampled)/2, 100)
}

func TestResamplerInactive(t *testing.T) {
	ctx := context.Background()
	p, err := NewResampler(ctx, 44100, 2)
	require.NoError(t, err)
	_, err = p.Configure(ctx, codec.NewAudioFormat(codec.MimeTypeAudioRaw, 44100, 2))
	require.NoError(t, err)
	require.False(t, p.IsActive())
}

func TestResamplerRejectsChannelCount(t *testing.T) {
	ctx := context.Background()
	_, err := NewResampler(ctx, 48000, 6)
	require.Error(t, err)

	p, err := NewResampler(ctx, 48000, 2)
	require.NoError(t, err)
	_, err = p.Configure(ctx, codec.NewAudioFormat(codec.MimeTypeAudioRaw, 44100, 6))
	require.ErrorAs(t, err, &audio.ErrUnsupportedFormat{})
}
