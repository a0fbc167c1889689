// Package effect contains the video effects and the texture processing
// stages that apply them.
package effect

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/avtransformer/frame"
	"github.com/xaionaro-go/avtransformer/gpu"
)

// Stage is a texture processing stage: it draws an input texture into the
// currently bound framebuffer. All methods are called on the executor
// worker.
type Stage interface {
	fmt.Stringer

	// Configure is called before the first frame and every time the input
	// size changes.
	Configure(ctx context.Context, inputWidth, inputHeight int) (outputWidth, outputHeight int, err error)

	DrawFrame(ctx context.Context, gpuCtx *gpu.Context, inputTexture frame.Texture, presentationTimeUs int64) error

	Release(ctx context.Context) error
}

// ErrNotConfigured is returned when a frame is drawn by a stage that was
// never configured.
type ErrNotConfigured struct {
	Stage string
}

func (e ErrNotConfigured) Error() string {
	return fmt.Sprintf("stage %s is not configured", e.Stage)
}
