package avtransformer

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avtransformer/codec"
	"github.com/xaionaro-go/avtransformer/effect"
	"github.com/xaionaro-go/avtransformer/internal/mediatest"
	"github.com/xaionaro-go/avtransformer/quality"
	"github.com/xaionaro-go/avtransformer/types"
)

type fallbackEvent struct {
	Original types.TransformationRequest
	Fallback types.TransformationRequest
}

type listenerRecorder struct {
	locker    sync.Mutex
	completed []types.TransformationResult
	errors    []*types.ErrTransformation
	fallbacks []fallbackEvent
}

var _ Listener = (*listenerRecorder)(nil)

func (l *listenerRecorder) OnCompleted(ctx context.Context, result types.TransformationResult) {
	l.locker.Lock()
	defer l.locker.Unlock()
	l.completed = append(l.completed, result)
}

func (l *listenerRecorder) OnError(ctx context.Context, result types.TransformationResult, err *types.ErrTransformation) {
	l.locker.Lock()
	defer l.locker.Unlock()
	l.errors = append(l.errors, err)
}

func (l *listenerRecorder) OnFallbackApplied(ctx context.Context, original, fallback types.TransformationRequest) {
	l.locker.Lock()
	defer l.locker.Unlock()
	l.fallbacks = append(l.fallbacks, fallbackEvent{Original: original, Fallback: fallback})
}

func (l *listenerRecorder) counts() (int, int, int) {
	l.locker.Lock()
	defer l.locker.Unlock()
	return len(l.completed), len(l.errors), len(l.fallbacks)
}

func runTransformation(
	t *testing.T,
	ctx context.Context,
	cfg Config,
	deps Dependencies,
	src *mediatest.Source,
	backend *mediatest.MuxerBackend,
) (types.TransformationResult, error) {
	tr, err := New(ctx, cfg, deps)
	require.NoError(t, err)
	defer tr.Release(ctx)
	require.NoError(t, tr.Start(ctx, src, backend))
	return tr.Wait(ctx)
}

func TestTransformerPassthrough(t *testing.T) {
	ctx := mediatest.NewContext(t)
	src := mediatest.NewH264AACSource(10_000_000)
	backend := mediatest.NewMuxerBackend()
	listener := &listenerRecorder{}

	result, err := runTransformation(t, ctx, DefaultConfig(), Dependencies{Listener: listener}, src, backend)
	require.NoError(t, err)

	require.True(t, result.VideoPassthrough)
	require.True(t, result.AudioPassthrough)
	require.Empty(t, result.VideoEncoderName)
	require.InDelta(t, 10_000, result.DurationMs, 100)
	require.Equal(t, uint64(src.SampleCount(0)), result.VideoFrameCount)
	require.Equal(t, uint64(src.SampleCount(1)), result.AudioSampleCount)
	require.Equal(t, 1920, result.Width)
	require.Equal(t, 1080, result.Height)
	require.Equal(t, 44100, result.SampleRate)
	require.Equal(t, 2, result.Channels)
	require.Positive(t, result.FileSizeBytes)

	require.Len(t, backend.TrackSamples(codec.MimeTypeVideoH264), src.SampleCount(0))
	require.Len(t, backend.TrackSamples(codec.MimeTypeAudioAAC), src.SampleCount(1))
	released, forCancellation := backend.IsReleased()
	require.True(t, released)
	require.False(t, forCancellation)

	completed, failed, fallbacks := listener.counts()
	require.Equal(t, 1, completed)
	require.Zero(t, failed)
	require.Zero(t, fallbacks)
}

func TestTransformerBrightnessContrastWithBitrateFallback(t *testing.T) {
	ctx := mediatest.NewContext(t)
	src := mediatest.NewSource(1_000_000,
		mediatest.NewVideoTrack(codec.MimeTypeVideoH264, 64, 36, 30),
		mediatest.NewAudioTrack(codec.MimeTypeAudioAAC, 44100, 2),
	)
	backend := mediatest.NewMuxerBackend()
	listener := &listenerRecorder{}

	lowBitrateEncoder := mediatest.H264EncoderInfo
	lowBitrateEncoder.Bitrates = codec.Range{Min: 100_000, Max: 2_000_000}
	cfg := DefaultConfig()
	cfg.VideoQuality = quality.Serializable{Quality: quality.ConstantBitrate(10_000_000)}
	cfg.Effects = []effect.Config{{
		Type:   "brightness_contrast",
		Params: map[string]any{"brightness": 0.2, "contrast": 0.3},
	}}
	deps := Dependencies{
		DecoderFactory: &mediatest.DecoderFactory{},
		EncoderFactory: mediatest.NewEncoderFactory(lowBitrateEncoder, mediatest.AACEncoderInfo),
		Listener:       listener,
	}

	result, err := runTransformation(t, ctx, cfg, deps, src, backend)
	require.NoError(t, err)

	require.False(t, result.VideoPassthrough)
	require.True(t, result.AudioPassthrough)
	require.Equal(t, lowBitrateEncoder.Name, result.VideoEncoderName)
	require.Equal(t, uint64(src.SampleCount(0)), result.VideoFrameCount)
	require.Equal(t, uint64(src.SampleCount(1)), result.AudioSampleCount)
	require.Equal(t, 64, result.Width)
	require.Equal(t, 36, result.Height)

	completed, failed, fallbacks := listener.counts()
	require.Equal(t, 1, completed)
	require.Zero(t, failed)
	require.Equal(t, 1, fallbacks)
	original := cfg.TransformationRequest()
	require.Equal(t, fallbackEvent{
		Original: original,
		Fallback: original.WithVideoQuality(quality.ConstantBitrate(2_000_000)),
	}, listener.fallbacks[0])
}

func TestTransformerRemoveAudio(t *testing.T) {
	ctx := mediatest.NewContext(t)
	src := mediatest.NewH264AACSource(1_000_000)
	backend := mediatest.NewMuxerBackend()

	cfg := DefaultConfig()
	cfg.RemoveAudio = true
	result, err := runTransformation(t, ctx, cfg, Dependencies{}, src, backend)
	require.NoError(t, err)

	require.Len(t, backend.Formats(), 1)
	require.Zero(t, result.AudioSampleCount)
	require.Zero(t, result.SampleRate)
	require.Equal(t, uint64(src.SampleCount(0)), result.VideoFrameCount)
}

func TestTransformerSpeedChangePassthrough(t *testing.T) {
	ctx := mediatest.NewContext(t)
	src := mediatest.NewH264AACSource(2_000_000)
	backend := mediatest.NewMuxerBackend()

	cfg := DefaultConfig()
	cfg.SpeedFactor = 2
	cfg.RemoveAudio = true
	result, err := runTransformation(t, ctx, cfg, Dependencies{}, src, backend)
	require.NoError(t, err)
	require.True(t, result.VideoPassthrough)
	require.InDelta(t, 1_000, result.DurationMs, 50)
}

func TestTransformerCodecFactoriesMissing(t *testing.T) {
	ctx := mediatest.NewContext(t)
	src := mediatest.NewH264AACSource(1_000_000)
	backend := mediatest.NewMuxerBackend()
	listener := &listenerRecorder{}

	cfg := DefaultConfig()
	cfg.Effects = []effect.Config{{Type: "grayscale"}}
	_, err := runTransformation(t, ctx, cfg, Dependencies{Listener: listener}, src, backend)
	require.Error(t, err)

	var errTransformation *types.ErrTransformation
	require.True(t, errors.As(err, &errTransformation))
	require.Equal(t, types.ErrorCodeDecoderInitFailed, errTransformation.Code)

	completed, failed, _ := listener.counts()
	require.Zero(t, completed)
	require.Equal(t, 1, failed)
	released, forCancellation := backend.IsReleased()
	require.True(t, released)
	require.False(t, forCancellation)
}

func TestTransformerCancel(t *testing.T) {
	ctx := mediatest.NewContext(t)
	src := mediatest.NewH264AACSource(3600_000_000)
	backend := mediatest.NewMuxerBackend()
	listener := &listenerRecorder{}

	tr, err := New(ctx, DefaultConfig(), Dependencies{Listener: listener})
	require.NoError(t, err)
	require.NoError(t, tr.Start(ctx, src, backend))
	require.NoError(t, tr.Cancel(ctx))

	result, err := tr.Wait(ctx)
	require.Error(t, err)
	require.NotNil(t, result.Err)
	require.Equal(t, types.ErrorCodeCancelled, result.Err.Code)

	released, forCancellation := backend.IsReleased()
	require.True(t, released)
	require.True(t, forCancellation)

	completed, failed, fallbacks := listener.counts()
	require.Zero(t, completed)
	require.Zero(t, failed)
	require.Zero(t, fallbacks)
	require.NoError(t, tr.Release(ctx))
}

func TestTransformerLifecycle(t *testing.T) {
	ctx := mediatest.NewContext(t)
	tr, err := New(ctx, DefaultConfig(), Dependencies{})
	require.NoError(t, err)

	state, _ := tr.Progress()
	require.Equal(t, ProgressStateNotStarted, state)
	_, err = tr.Wait(ctx)
	require.ErrorIs(t, err, ErrNotStarted{})

	src := mediatest.NewH264AACSource(100_000)
	require.NoError(t, tr.Start(ctx, src, mediatest.NewMuxerBackend()))
	require.ErrorIs(t, tr.Start(ctx, src, mediatest.NewMuxerBackend()), ErrAlreadyStarted{})

	_, err = tr.Wait(ctx)
	require.NoError(t, err)
	state, _ = tr.Progress()
	require.Equal(t, ProgressStateNotStarted, state)
	require.NoError(t, tr.Release(ctx))
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	ctx := mediatest.NewContext(t)
	cfg := DefaultConfig()
	cfg.Effects = []effect.Config{{Type: "unknown"}}
	_, err := New(ctx, cfg, Dependencies{})
	require.Error(t, err)
}
