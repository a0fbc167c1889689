package effect

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
	"github.com/xaionaro-go/avtransformer/gpu"
	"github.com/xaionaro-go/avtransformer/logger"
	"gopkg.in/yaml.v3"
)

func newTestContext(t *testing.T) context.Context {
	l := logrus.Default().WithLevel(logger.LevelWarning)
	ctx := logger.CtxWithLogger(context.Background(), l)
	t.Cleanup(func() { belt.Flush(ctx) })
	return ctx
}

func TestScaleAndRotateOutputSize(t *testing.T) {
	for _, tc := range []struct {
		name           string
		effect         MatrixEffect
		inW, inH       int
		outW, outH     int
		expectIdentity bool
	}{
		{"identity", NewScaleAndRotate(1, 1, 0), 1920, 1080, 1920, 1080, true},
		{"rotate90", NewRotation(90), 1920, 1080, 1080, 1920, false},
		{"rotate180", NewRotation(180), 1920, 1080, 1920, 1080, false},
		{"scale", NewScaleAndRotate(0.5, 2, 0), 100, 100, 50, 200, true},
	} {
		t.Run(tc.name, func(t *testing.T) {
			w, h, err := tc.effect.Transformation.Configure(tc.inW, tc.inH)
			require.NoError(t, err)
			require.Equal(t, tc.outW, w)
			require.Equal(t, tc.outH, h)
			require.Equal(t, tc.expectIdentity, tc.effect.Transformation.Matrix(0).IsIdentity())
		})
	}
}

func TestPresentationOutputSize(t *testing.T) {
	w, h, err := NewPresentation(720, LayoutScaleToFit).Transformation.Configure(1920, 1080)
	require.NoError(t, err)
	require.Equal(t, 1280, w)
	require.Equal(t, 720, h)

	p := NewPresentationWithAspectRatio(0, 1, LayoutScaleToFit).Transformation
	w, h, err = p.Configure(200, 100)
	require.NoError(t, err)
	require.Equal(t, 200, w)
	require.Equal(t, 200, h)
	require.True(t, p.Matrix(0).Equal(gpu.Scale(1, 0.5)))

	p = NewPresentationWithAspectRatio(0, 1, LayoutScaleToFitWithCrop).Transformation
	w, h, err = p.Configure(200, 100)
	require.NoError(t, err)
	require.Equal(t, 100, w)
	require.Equal(t, 100, h)
	require.True(t, p.Matrix(0).Equal(gpu.Scale(2, 1)))
}

func TestCrop(t *testing.T) {
	c := NewCrop(-1, 0, -1, 1).Transformation
	w, h, err := c.Configure(200, 100)
	require.NoError(t, err)
	require.Equal(t, 100, w)
	require.Equal(t, 100, h)
	x, y := c.Matrix(0).TransformPoint(-1, -1)
	require.InDelta(t, -1, x, 1e-9)
	require.InDelta(t, -1, y, 1e-9)
	x, _ = c.Matrix(0).TransformPoint(0, 0)
	require.InDelta(t, 1, x, 1e-9)

	_, _, err = NewCrop(0.5, 0, -1, 1).Transformation.Configure(10, 10)
	require.Error(t, err)
}

func TestCoalesce(t *testing.T) {
	effects := []Effect{
		NewRotation(90),
		NewPresentation(720, LayoutScaleToFit),
		NewBrightness(0.1),
		NewCrop(-0.5, 0.5, -0.5, 0.5),
		NewContrast(0.2),
		NewGrayscale(),
	}
	passes := Coalesce(effects)
	require.Len(t, passes, 5)
	require.True(t, passes[0].IsMatrix())
	require.Len(t, passes[0].Matrices, 2)
	require.False(t, passes[1].IsMatrix())
	require.True(t, passes[2].IsMatrix())
	require.Len(t, passes[2].Matrices, 1)
	require.Equal(t, "Brightness(0.1)", passes[1].General.Name)
	require.Equal(t, "Contrast(0.2)", passes[3].General.Name)
	require.Equal(t, "Grayscale", passes[4].General.Name)

	require.Len(t, OnePassPerEffect(effects), 6)
	require.True(t, HasGeneral(effects))
	require.False(t, HasGeneral(effects[:2]))
}

func TestFromConfigYAML(t *testing.T) {
	var cfgs []Config
	require.NoError(t, yaml.Unmarshal([]byte(`
- type: rotation
  params:
    degrees: 90
- type: presentation
  params:
    height: 720
    layout: scale_to_fit_with_crop
- type: brightness_contrast
  params:
    brightness: 0.1
    contrast: 0.25
- type: sepia
`), &cfgs))
	effects, err := FromConfigs(cfgs)
	require.NoError(t, err)
	require.Len(t, effects, 4)
	require.IsType(t, MatrixEffect{}, effects[0])
	p := effects[1].(MatrixEffect).Transformation.(*Presentation)
	require.Equal(t, 720, p.Height)
	require.Equal(t, LayoutScaleToFitWithCrop, p.Layout)
	require.Equal(t, "BrightnessContrast(0.1, 0.25)", effects[2].String())

	_, err = FromConfig(Config{Type: "nope"})
	require.Error(t, err)
	_, err = FromConfig(Config{Type: "brightness", Params: map[string]any{"value": "x"}})
	require.Error(t, err)
}

func TestStagesDraw(t *testing.T) {
	ctx := newTestContext(t)
	e := executor.New(ctx, nil)
	defer e.Release(ctx, nil, time.Second)

	err := e.SubmitAndWait(ctx, func(ctx context.Context) error {
		gpuCtx, err := gpu.NewContext(ctx)
		if err != nil {
			return err
		}
		src, err := gpuCtx.CreateTexture(ctx, 4, 4)
		if err != nil {
			return err
		}
		img := gpuCtx.Image(src)
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				img.SetRGBA(x, y, color.RGBA{R: 100, G: 100, B: 100, A: 255})
			}
		}

		stage, err := NewGrayscale().NewStage(ctx)
		if err != nil {
			return err
		}
		require.ErrorAs(t, stage.DrawFrame(ctx, gpuCtx, src, 0), &ErrNotConfigured{})
		w, h, err := stage.Configure(ctx, 4, 4)
		require.NoError(t, err)
		dst, err := gpuCtx.CreateTexture(ctx, w, h)
		require.NoError(t, err)
		require.NoError(t, gpuCtx.BindFramebuffer(ctx, dst))
		require.NoError(t, stage.DrawFrame(ctx, gpuCtx, src, 0))
		require.Equal(t, uint8(100), gpuCtx.Image(dst).RGBAAt(2, 2).R)

		brighter := NewBrightness(0.5)
		stage, err = brighter.NewStage(ctx)
		require.NoError(t, err)
		_, _, err = stage.Configure(ctx, 4, 4)
		require.NoError(t, err)
		require.NoError(t, stage.DrawFrame(ctx, gpuCtx, src, 0))
		require.Greater(t, gpuCtx.Image(dst).RGBAAt(2, 2).R, uint8(100))

		matrixStage := NewMatrixStage(NewCrop(-1, 0, -1, 1).Transformation)
		w, h, err = matrixStage.Configure(ctx, 4, 4)
		require.NoError(t, err)
		require.Equal(t, 2, w)
		require.Equal(t, 4, h)
		half, err := gpuCtx.CreateTexture(ctx, w, h)
		require.NoError(t, err)
		require.NoError(t, gpuCtx.BindFramebuffer(ctx, half))
		require.NoError(t, matrixStage.DrawFrame(ctx, gpuCtx, src, 0))
		require.Equal(t, uint8(100), gpuCtx.Image(half).RGBAAt(1, 1).R)
		return nil
	})
	require.NoError(t, err)
}

func TestCustomEffectWrongSize(t *testing.T) {
	ctx := newTestContext(t)
	e := executor.New(ctx, nil)
	defer e.Release(ctx, nil, time.Second)

	custom := NewCustom("shrink", func(ctx context.Context, img image.Image, _ int64) (*image.RGBA, error) {
		return image.NewRGBA(image.Rect(0, 0, 1, 1)), nil
	})
	err := e.SubmitAndWait(ctx, func(ctx context.Context) error {
		gpuCtx, err := gpu.NewContext(ctx)
		if err != nil {
			return err
		}
		src, err := gpuCtx.CreateTexture(ctx, 2, 2)
		if err != nil {
			return err
		}
		stage, err := custom.NewStage(ctx)
		if err != nil {
			return err
		}
		if _, _, err := stage.Configure(ctx, 2, 2); err != nil {
			return err
		}
		if err := gpuCtx.BindFramebuffer(ctx, src); err != nil {
			return err
		}
		return stage.DrawFrame(ctx, gpuCtx, src, 0)
	})
	require.Error(t, err)
}
