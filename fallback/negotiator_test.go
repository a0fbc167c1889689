package fallback

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avtransformer/codec"
	"github.com/xaionaro-go/avtransformer/quality"
	"github.com/xaionaro-go/avtransformer/types"
	"golang.org/x/sync/errgroup"
)

type recordingHandler struct {
	locker    sync.Mutex
	fallbacks []types.TransformationRequest
}

func (h *recordingHandler) OnFallbackApplied(ctx context.Context, original, fallback types.TransformationRequest) {
	h.locker.Lock()
	defer h.locker.Unlock()
	h.fallbacks = append(h.fallbacks, fallback)
}

func originalRequest() types.TransformationRequest {
	return types.TransformationRequest{}.
		WithAudioMimeType(codec.MimeTypeAudioAAC).
		WithVideoMimeType(codec.MimeTypeVideoH265).
		WithOutputHeight(1080).
		WithVideoQuality(quality.ConstantBitrate(20_000_000))
}

func TestNegotiatorZeroTracks(t *testing.T) {
	ctx := context.Background()
	h := &recordingHandler{}
	n := New(originalRequest(), h)
	require.NoError(t, n.OnTransformationRequestFinalized(ctx, originalRequest().WithOutputHeight(720)))
	require.True(t, n.IsComplete(ctx))
	require.Len(t, h.fallbacks, 1)
	require.Equal(t, 720, h.fallbacks[0].OutputHeight)

	h = &recordingHandler{}
	n = New(originalRequest(), h)
	require.NoError(t, n.OnTransformationRequestFinalized(ctx, originalRequest()))
	require.Empty(t, h.fallbacks)
}

func TestNegotiatorMergesTracks(t *testing.T) {
	ctx := context.Background()
	h := &recordingHandler{}
	n := New(originalRequest(), h)
	require.NoError(t, n.RegisterTrack(ctx))
	require.NoError(t, n.RegisterTrack(ctx))

	require.NoError(t, n.OnTransformationRequestFinalized(ctx, originalRequest().WithAudioMimeType(codec.MimeTypeAudioOpus)))
	require.False(t, n.IsComplete(ctx))
	require.Empty(t, h.fallbacks)

	require.NoError(t, n.OnTransformationRequestFinalized(ctx, originalRequest().
		WithVideoMimeType(codec.MimeTypeVideoH264).
		WithVideoQuality(quality.ConstantBitrate(5_000_000)),
	))
	require.True(t, n.IsComplete(ctx))
	require.Len(t, h.fallbacks, 1)
	expected := originalRequest().
		WithAudioMimeType(codec.MimeTypeAudioOpus).
		WithVideoMimeType(codec.MimeTypeVideoH264).
		WithVideoQuality(quality.ConstantBitrate(5_000_000))
	require.True(t, expected.Equal(h.fallbacks[0]), h.fallbacks[0].String())
	require.True(t, expected.Equal(n.FallbackRequest(ctx)))

	require.ErrorAs(t, n.OnTransformationRequestFinalized(ctx, originalRequest()), &ErrAlreadyComplete{})
	require.ErrorAs(t, n.RegisterTrack(ctx), &ErrAlreadyComplete{})
	require.Len(t, h.fallbacks, 1)
}

func TestNegotiatorNoFallback(t *testing.T) {
	ctx := context.Background()
	h := &recordingHandler{}
	n := New(originalRequest(), h)
	require.NoError(t, n.RegisterTrack(ctx))
	require.NoError(t, n.RegisterTrack(ctx))
	require.NoError(t, n.OnTransformationRequestFinalized(ctx, originalRequest()))
	require.NoError(t, n.OnTransformationRequestFinalized(ctx, originalRequest()))
	require.True(t, n.IsComplete(ctx))
	require.Empty(t, h.fallbacks)
}

func TestNegotiatorNotifiesAtMostOnce(t *testing.T) {
	ctx := context.Background()
	for i := 0; i < 20; i++ {
		h := &recordingHandler{}
		n := New(originalRequest(), h)
		const tracks = 8
		for j := 0; j < tracks; j++ {
			require.NoError(t, n.RegisterTrack(ctx))
		}
		var eg errgroup.Group
		for j := 0; j < tracks+4; j++ {
			j := j
			eg.Go(func() error {
				_ = n.OnTransformationRequestFinalized(ctx, originalRequest().WithOutputHeight(480+j))
				return nil
			})
		}
		require.NoError(t, eg.Wait())
		require.Len(t, h.fallbacks, 1)
	}
}
