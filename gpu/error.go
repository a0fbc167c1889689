package gpu

import (
	"fmt"

	"github.com/xaionaro-go/avtransformer/frame"
)

// ErrNotOnWorker is returned when the GPU is used outside of the executor
// worker.
type ErrNotOnWorker struct{}

func (ErrNotOnWorker) Error() string {
	return "the GPU context may only be used on the executor worker"
}

type ErrUnknownTexture struct {
	Texture frame.Texture
}

func (e ErrUnknownTexture) Error() string {
	return fmt.Sprintf("unknown texture %s", e.Texture)
}

type ErrNoFramebufferBound struct{}

func (ErrNoFramebufferBound) Error() string {
	return "no framebuffer is bound"
}

type ErrReleased struct{}

func (ErrReleased) Error() string {
	return "the GPU context is released"
}
