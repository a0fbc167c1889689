package effect

import (
	"context"
	"fmt"
	"image"

	"github.com/xaionaro-go/avtransformer/frame"
	"github.com/xaionaro-go/avtransformer/gpu"
)

// ImageFunc processes one frame; the result must have the size of the input.
type ImageFunc func(ctx context.Context, img image.Image, presentationTimeUs int64) (*image.RGBA, error)

// ImageStage is a size-preserving stage applying an ImageFunc.
type ImageStage struct {
	Name string
	Func ImageFunc

	isConfigured bool
	width        int
	height       int
}

var _ Stage = (*ImageStage)(nil)

func NewImageStage(name string, fn ImageFunc) *ImageStage {
	return &ImageStage{
		Name: name,
		Func: fn,
	}
}

func (s *ImageStage) String() string {
	return s.Name
}

func (s *ImageStage) Configure(ctx context.Context, inputWidth, inputHeight int) (int, int, error) {
	if err := validateInputSize(inputWidth, inputHeight); err != nil {
		return 0, 0, err
	}
	s.width, s.height = inputWidth, inputHeight
	s.isConfigured = true
	return inputWidth, inputHeight, nil
}

func (s *ImageStage) DrawFrame(
	ctx context.Context,
	gpuCtx *gpu.Context,
	inputTexture frame.Texture,
	presentationTimeUs int64,
) error {
	if !s.isConfigured {
		return ErrNotConfigured{Stage: s.Name}
	}
	src := gpuCtx.Image(inputTexture)
	if src == nil {
		return gpu.ErrUnknownTexture{Texture: inputTexture}
	}
	out, err := s.Func(ctx, src, presentationTimeUs)
	if err != nil {
		return fmt.Errorf("%s failed: %w", s.Name, err)
	}
	if size := out.Bounds().Size(); size.X != s.width || size.Y != s.height {
		return fmt.Errorf("%s returned a %dx%d image, expected %dx%d", s.Name, size.X, size.Y, s.width, s.height)
	}
	return gpuCtx.DrawImage(ctx, out, gpu.Identity())
}

func (s *ImageStage) Release(ctx context.Context) error {
	return nil
}
