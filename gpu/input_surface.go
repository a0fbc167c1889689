package gpu

import (
	"context"
	"fmt"
	"image"

	"github.com/xaionaro-go/avtransformer/executor"
	"github.com/xaionaro-go/avtransformer/frame"
	"github.com/xaionaro-go/avtransformer/logger"
	"github.com/xaionaro-go/xsync"
)

type queuedImage struct {
	Image       image.Image
	TimestampNs int64
	Transform   Matrix
}

// InputSurface is the surface decoders render into. Images are queued by
// producer goroutines and latched into a texture on the executor worker.
type InputSurface struct {
	locker           xsync.Mutex
	queue            []queuedImage
	onFrameAvailable func()
	isReleased       bool

	// latched state, accessed on the worker only
	timestampNs int64
	transform   Matrix
}

func NewInputSurface() *InputSurface {
	return &InputSurface{
		transform: Identity(),
	}
}

// SetOnFrameAvailableListener sets the callback invoked (on the producer's
// goroutine) after each queued image.
func (s *InputSurface) SetOnFrameAvailableListener(fn func()) {
	s.locker.Do(context.Background(), func() {
		s.onFrameAvailable = fn
	})
}

// QueueImage queues a decoded image with its timestamp and the transform to
// apply when sampling it.
func (s *InputSurface) QueueImage(img image.Image, timestampNs int64, transform Matrix) error {
	ctx := xsync.WithNoLogging(context.Background(), true)
	var listener func()
	err := xsync.DoR1(ctx, &s.locker, func() error {
		if s.isReleased {
			return fmt.Errorf("the input surface is released")
		}
		s.queue = append(s.queue, queuedImage{
			Image:       img,
			TimestampNs: timestampNs,
			Transform:   transform,
		})
		listener = s.onFrameAvailable
		return nil
	})
	if err != nil {
		return err
	}
	if listener != nil {
		listener()
	}
	return nil
}

func (s *InputSurface) PendingImages() int {
	return xsync.DoR1(xsync.WithNoLogging(context.Background(), true), &s.locker, func() int {
		return len(s.queue)
	})
}

// UpdateTexImage latches the oldest queued image into the texture.
func (s *InputSurface) UpdateTexImage(
	ctx context.Context,
	gpuCtx *Context,
	tex frame.Texture,
) (_err error) {
	logger.Tracef(ctx, "UpdateTexImage")
	defer func() { logger.Tracef(ctx, "/UpdateTexImage: %v", _err) }()
	if !executor.IsOnWorker(ctx) {
		return ErrNotOnWorker{}
	}
	var (
		item queuedImage
		ok   bool
	)
	s.locker.Do(xsync.WithNoLogging(ctx, true), func() {
		if len(s.queue) == 0 {
			return
		}
		item, s.queue, ok = s.queue[0], s.queue[1:], true
	})
	if !ok {
		return fmt.Errorf("no image is queued")
	}
	prevFbo := gpuCtx.BoundFramebuffer()
	if err := gpuCtx.BindFramebuffer(ctx, tex); err != nil {
		return fmt.Errorf("unable to bind the external texture: %w", err)
	}
	err := gpuCtx.DrawImage(ctx, item.Image, Identity())
	if bindErr := gpuCtx.BindFramebuffer(ctx, prevFbo); bindErr != nil && err == nil {
		err = bindErr
	}
	if err != nil {
		return fmt.Errorf("unable to latch the image: %w", err)
	}
	s.timestampNs = item.TimestampNs
	s.transform = item.Transform
	return nil
}

// Timestamp returns the timestamp of the latched image in nanoseconds.
func (s *InputSurface) Timestamp() int64 {
	return s.timestampNs
}

// TransformMatrix returns the transform of the latched image.
func (s *InputSurface) TransformMatrix() Matrix {
	return s.transform
}

func (s *InputSurface) Release() {
	s.locker.Do(xsync.WithNoLogging(context.Background(), true), func() {
		s.isReleased = true
		s.queue = nil
	})
}
