package framegraph

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/avtransformer/frame"
	"github.com/xaionaro-go/avtransformer/gpu"
	"github.com/xaionaro-go/avtransformer/logger"
	"github.com/xaionaro-go/avtransformer/types"
	"github.com/xaionaro-go/typing"
	"github.com/xaionaro-go/xsync"
	"go.uber.org/atomic"
)

// ExternalAdmitter moves frames from the input surface into the first stage
// of the graph, one at a time, pairing each surface image with the
// frame.Info registered for it.
type ExternalAdmitter struct {
	Surface      *gpu.InputSurface
	FirstStage   *stageNode
	Submitter    TaskSubmitter
	ErrorHandler types.ErrorHandler

	availableFrameCount atomic.Int64
	inputCapacity       atomic.Int64
	inFlight            atomic.Int64
	maxInFlightObserved atomic.Int64

	pendingLocker xsync.Mutex
	pendingFrames []frame.Info

	// worker-only state
	externalTexture        frame.Texture
	currentFrame           typing.Optional[frame.Info]
	previousStreamOffsetUs typing.Optional[int64]
	inputEnded             bool
	endSignaled            bool
}

var _ InputListener = (*ExternalAdmitter)(nil)

func newExternalAdmitter(
	surface *gpu.InputSurface,
	firstStage *stageNode,
	submitter TaskSubmitter,
	errorHandler types.ErrorHandler,
) *ExternalAdmitter {
	a := &ExternalAdmitter{
		Surface:         surface,
		FirstStage:      firstStage,
		Submitter:       submitter,
		ErrorHandler:    errorHandler,
		externalTexture: frame.UnsetTexture,
	}
	return a
}

func (a *ExternalAdmitter) submit(ctx context.Context, task func(ctx context.Context) error) {
	if err := a.Submitter.Submit(ctx, task); err != nil {
		logger.Debugf(ctx, "unable to submit an admitter task: %v", err)
	}
}

// OnFrameAvailable is called by the producer of the input surface for every
// queued image.
func (a *ExternalAdmitter) OnFrameAvailable(ctx context.Context) {
	a.availableFrameCount.Inc()
	a.submit(ctx, a.maybeQueueFrame)
}

// RegisterInputFrame appends the description of the next input frame.
func (a *ExternalAdmitter) RegisterInputFrame(ctx context.Context, info frame.Info) {
	a.pendingLocker.Do(xsync.WithNoLogging(ctx, true), func() {
		a.pendingFrames = append(a.pendingFrames, info)
	})
}

// PendingFrameCount returns the amount of registered frames not yet admitted.
func (a *ExternalAdmitter) PendingFrameCount() int {
	return xsync.DoR1(xsync.WithNoLogging(context.Background(), true), &a.pendingLocker, func() int {
		return len(a.pendingFrames)
	})
}

// AvailableFrameCount returns the amount of images queued into the input
// surface and not latched yet.
func (a *ExternalAdmitter) AvailableFrameCount() int {
	return int(a.availableFrameCount.Load())
}

func (a *ExternalAdmitter) InFlight() int {
	return int(a.inFlight.Load())
}

func (a *ExternalAdmitter) MaxInFlightObserved() int {
	return int(a.maxInFlightObserved.Load())
}

func (a *ExternalAdmitter) OnReadyToAcceptInputFrame(ctx context.Context) {
	a.inputCapacity.Inc()
	a.submit(ctx, a.maybeQueueFrame)
}

func (a *ExternalAdmitter) OnInputFrameProcessed(ctx context.Context, inputTexture frame.Texture) {
	a.submit(ctx, func(ctx context.Context) error {
		a.currentFrame = typing.Optional[frame.Info]{}
		a.inFlight.Dec()
		if err := a.maybeQueueFrame(ctx); err != nil {
			return err
		}
		return a.maybeSignalEnd(ctx)
	})
}

// SignalEndOfInput ends the input once every pending frame was admitted.
func (a *ExternalAdmitter) SignalEndOfInput(ctx context.Context) {
	a.submit(ctx, func(ctx context.Context) error {
		a.inputEnded = true
		return a.maybeSignalEnd(ctx)
	})
}

func (a *ExternalAdmitter) maybeSignalEnd(ctx context.Context) error {
	if !a.inputEnded || a.endSignaled || a.currentFrame.IsSet() || a.PendingFrameCount() > 0 {
		return nil
	}
	a.endSignaled = true
	logger.Debugf(ctx, "end of input")
	return a.FirstStage.SignalEndOfCurrentInputStream(ctx)
}

func (a *ExternalAdmitter) popPendingFrame(ctx context.Context) (frame.Info, bool) {
	var (
		info frame.Info
		ok   bool
	)
	a.pendingLocker.Do(xsync.WithNoLogging(ctx, true), func() {
		if len(a.pendingFrames) == 0 {
			return
		}
		info, a.pendingFrames, ok = a.pendingFrames[0], a.pendingFrames[1:], true
	})
	return info, ok
}

func (a *ExternalAdmitter) ensureExternalTexture(ctx context.Context, width, height int) error {
	if a.externalTexture.IsSet() && a.externalTexture.Width == width && a.externalTexture.Height == height {
		return nil
	}
	if a.externalTexture.IsSet() {
		if err := a.FirstStage.GPU.DeleteTexture(ctx, a.externalTexture); err != nil {
			return fmt.Errorf("unable to delete the external texture: %w", err)
		}
		a.externalTexture = frame.UnsetTexture
	}
	tex, err := a.FirstStage.GPU.CreateTexture(ctx, width, height)
	if err != nil {
		return fmt.Errorf("unable to create the external texture: %w", err)
	}
	a.externalTexture = tex
	return nil
}

func (a *ExternalAdmitter) maybeQueueFrame(ctx context.Context) (_err error) {
	if a.inputCapacity.Load() <= 0 || a.availableFrameCount.Load() <= 0 || a.currentFrame.IsSet() {
		return nil
	}
	info, ok := a.popPendingFrame(ctx)
	if !ok {
		return fmt.Errorf("an input image is available, but no frame was registered for it")
	}
	logger.Tracef(ctx, "maybeQueueFrame: %s", info)
	defer func() { logger.Tracef(ctx, "/maybeQueueFrame: %v", _err) }()

	width, height := info.NormalizedSize()
	if err := a.ensureExternalTexture(ctx, width, height); err != nil {
		return err
	}
	if err := a.Surface.UpdateTexImage(ctx, a.FirstStage.GPU, a.externalTexture); err != nil {
		return fmt.Errorf("unable to latch the input image: %w", err)
	}
	a.availableFrameCount.Dec()
	a.inputCapacity.Dec()
	a.currentFrame = typing.Opt(info)
	if inFlight := a.inFlight.Inc(); inFlight > a.maxInFlightObserved.Load() {
		a.maxInFlightObserved.Store(inFlight)
	}

	if !a.previousStreamOffsetUs.IsSet() || a.previousStreamOffsetUs.Get() != info.StreamOffsetUs {
		if a.previousStreamOffsetUs.IsSet() {
			logger.Debugf(ctx, "stream offset changed %d -> %d", a.previousStreamOffsetUs.Get(), info.StreamOffsetUs)
			if err := a.FirstStage.SignalEndOfCurrentInputStream(ctx); err != nil {
				return err
			}
		}
		a.previousStreamOffsetUs = typing.Opt(info.StreamOffsetUs)
	}

	a.FirstStage.SetTransformMatrix(a.Surface.TransformMatrix())
	presentationTimeUs := a.Surface.Timestamp()/1000 - info.StreamOffsetUs
	return a.FirstStage.QueueInputFrame(ctx, a.externalTexture, presentationTimeUs)
}

func (a *ExternalAdmitter) Release(ctx context.Context) error {
	if !a.externalTexture.IsSet() {
		return nil
	}
	err := a.FirstStage.GPU.DeleteTexture(ctx, a.externalTexture)
	a.externalTexture = frame.UnsetTexture
	return err
}
