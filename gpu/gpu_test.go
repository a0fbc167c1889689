package gpu

import (
	"context"
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/facebookincubator/go-belt"
	"github.com/facebookincubator/go-belt/tool/logger/implementation/logrus"
	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avtransformer/executor"
	"github.com/xaionaro-go/avtransformer/logger"
)

func newTestContext(t *testing.T) context.Context {
	l := logrus.Default().WithLevel(logger.LevelWarning)
	ctx := logger.CtxWithLogger(context.Background(), l)
	t.Cleanup(func() { belt.Flush(ctx) })
	return ctx
}

func onWorker(t *testing.T, fn func(ctx context.Context) error) {
	ctx := newTestContext(t)
	e := executor.New(ctx, nil)
	defer e.Release(ctx, nil, time.Second)
	require.NoError(t, e.SubmitAndWait(ctx, fn))
}

func filled(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestMatrixInvert(t *testing.T) {
	m := Translate(0.5, -0.25).Multiply(Rotate(90)).Multiply(Scale(2, 3))
	inv, ok := m.Invert()
	require.True(t, ok)
	require.True(t, m.Multiply(inv).IsIdentity())

	_, ok = Scale(0, 1).Invert()
	require.False(t, ok)
}

func TestMatrixRotate(t *testing.T) {
	x, y := Rotate(90).TransformPoint(1, 0)
	require.InDelta(t, 0, x, 1e-9)
	require.InDelta(t, 1, y, 1e-9)
}

func TestContextRequiresWorker(t *testing.T) {
	ctx := newTestContext(t)
	_, err := NewContext(ctx)
	require.ErrorAs(t, err, &ErrNotOnWorker{})

	var gpuCtx *Context
	onWorker(t, func(ctx context.Context) error {
		var err error
		gpuCtx, err = NewContext(ctx)
		return err
	})
	_, err = gpuCtx.CreateTexture(ctx, 1, 1)
	require.ErrorAs(t, err, &ErrNotOnWorker{})
}

func TestDrawMatrixFlip(t *testing.T) {
	onWorker(t, func(ctx context.Context) error {
		gpuCtx, err := NewContext(ctx)
		require.NoError(t, err)

		src, err := gpuCtx.CreateTexture(ctx, 4, 2)
		require.NoError(t, err)
		img := gpuCtx.Image(src)
		red := color.RGBA{R: 255, A: 255}
		blue := color.RGBA{B: 255, A: 255}
		for y := 0; y < 2; y++ {
			for x := 0; x < 4; x++ {
				if x < 2 {
					img.SetRGBA(x, y, red)
				} else {
					img.SetRGBA(x, y, blue)
				}
			}
		}

		dst, err := gpuCtx.CreateTexture(ctx, 4, 2)
		require.NoError(t, err)
		require.NoError(t, gpuCtx.BindFramebuffer(ctx, dst))
		require.NoError(t, gpuCtx.DrawMatrix(ctx, src, Scale(-1, 1)))

		out := gpuCtx.Image(dst)
		require.Equal(t, blue, out.RGBAAt(0, 0))
		require.Equal(t, red, out.RGBAAt(3, 1))
		return nil
	})
}

func TestDrawMatrixRequiresBoundFramebuffer(t *testing.T) {
	onWorker(t, func(ctx context.Context) error {
		gpuCtx, err := NewContext(ctx)
		require.NoError(t, err)
		src, err := gpuCtx.CreateTexture(ctx, 2, 2)
		require.NoError(t, err)
		require.ErrorAs(t, gpuCtx.DrawMatrix(ctx, src, Identity()), &ErrNoFramebufferBound{})
		require.NoError(t, gpuCtx.DeleteTexture(ctx, src))
		require.ErrorAs(t, gpuCtx.DeleteTexture(ctx, src), &ErrUnknownTexture{})
		require.Zero(t, gpuCtx.TextureCount())
		return nil
	})
}

func TestInputSurfaceLatchesInOrder(t *testing.T) {
	surface := NewInputSurface()
	available := 0
	surface.SetOnFrameAvailableListener(func() { available++ })

	green := color.RGBA{G: 255, A: 255}
	require.NoError(t, surface.QueueImage(filled(2, 2, green), 1000, Identity()))
	require.NoError(t, surface.QueueImage(filled(2, 2, green), 2000, Scale(1, -1)))
	require.Equal(t, 2, available)
	require.Equal(t, 2, surface.PendingImages())

	onWorker(t, func(ctx context.Context) error {
		gpuCtx, err := NewContext(ctx)
		require.NoError(t, err)
		tex, err := gpuCtx.CreateTexture(ctx, 2, 2)
		require.NoError(t, err)

		require.NoError(t, surface.UpdateTexImage(ctx, gpuCtx, tex))
		require.Equal(t, int64(1000), surface.Timestamp())
		require.True(t, surface.TransformMatrix().IsIdentity())
		require.Equal(t, green, gpuCtx.Image(tex).RGBAAt(1, 1))

		require.NoError(t, surface.UpdateTexImage(ctx, gpuCtx, tex))
		require.Equal(t, int64(2000), surface.Timestamp())
		require.Error(t, surface.UpdateTexImage(ctx, gpuCtx, tex))
		return nil
	})
}

func TestImageSurfaceSwap(t *testing.T) {
	ctx := newTestContext(t)
	s := NewImageSurface(4, 4)
	s.MaxKeptFrames = 1
	var swapped []int64
	s.OnSwap = func(ctx context.Context, img *image.RGBA, ptsNs int64) error {
		require.Equal(t, 4, img.Bounds().Dx())
		swapped = append(swapped, ptsNs)
		return nil
	}
	require.NoError(t, s.Draw(ctx, filled(2, 2, color.RGBA{A: 255})))
	s.SetPresentationTime(10)
	require.NoError(t, s.SwapBuffers(ctx))
	require.NoError(t, s.Draw(ctx, filled(4, 4, color.RGBA{A: 255})))
	s.SetPresentationTime(20)
	require.NoError(t, s.SwapBuffers(ctx))

	require.Equal(t, []int64{10, 20}, swapped)
	require.Equal(t, uint64(2), s.SwapCount())
	frames := s.Frames()
	require.Len(t, frames, 1)
	require.Equal(t, int64(20), frames[0].PresentationTimeNs)
}

func TestColorConverter(t *testing.T) {
	require.Equal(t, color.RGBA{R: 16, G: 235, B: 126, A: 255}, ConvertToBT709Limited(color.RGBA{R: 0, G: 255, B: 128, A: 255}))

	c := NewColorConverter(true, false)
	black := c.ToneMapHDRToSDR(color.RGBA{A: 255})
	require.Equal(t, uint8(0), black.R)
	white := c.ToneMapHDRToSDR(color.RGBA{R: 255, A: 255})
	require.Equal(t, uint8(255), white.R)
	mid := c.ToneMapHDRToSDR(color.RGBA{R: 128, A: 255})
	require.Greater(t, mid.R, uint8(0))
	require.Less(t, mid.R, uint8(255))

	noop := NewColorConverter(false, false)
	img := filled(1, 1, color.RGBA{R: 1, A: 255})
	require.Same(t, img, noop.Convert(img))
}
