package framegraph

import (
	"context"
	"fmt"
	"time"

	"github.com/go-ng/xatomic"
	"github.com/xaionaro-go/avtransformer/effect"
	"github.com/xaionaro-go/avtransformer/frame"
	"github.com/xaionaro-go/avtransformer/gpu"
	"github.com/xaionaro-go/avtransformer/logger"
	"github.com/xaionaro-go/xsync"
	"go.uber.org/atomic"
)

const (
	// ReleaseImmediately renders the output frame with the current time.
	ReleaseImmediately = int64(-1)
	// DropOutputFrame drops the output frame without rendering it.
	DropOutputFrame = int64(-2)
)

type availableFrame struct {
	Texture            frame.Texture
	PresentationTimeUs int64
}

// finalStage is the terminal pass: it applies the trailing matrix
// transformations, adapts the frames to the output surface and renders them
// into it.
type finalStage struct {
	GPU             *gpu.Context
	Transformations []effect.MatrixTransformation
	ColorConverter  *gpu.ColorConverter
	Listener        Listener
	AutoRelease     bool
	InputEnded      *atomic.Bool

	inputListener InputListener

	streamOffsetsLocker xsync.Mutex
	streamOffsetsUs     []int64

	outputSurfaceInfo        *SurfaceInfo
	outputSurfaceInfoChanged atomic.Bool

	// worker-only state
	availableFrames   []availableFrame
	inputWidth        int
	inputHeight       int
	outputSizeKnown   bool
	outputWidth       int
	outputHeight      int
	currentSurface    *SurfaceInfo
	surfaceStage      *effect.MatrixStage
	surfaceTexture    frame.Texture
	renderedFrames    atomic.Uint64
	droppedFrames     atomic.Uint64
	endedNotification bool
}

var _ FrameConsumer = (*finalStage)(nil)

func newFinalStage(
	gpuCtx *gpu.Context,
	transformations []effect.MatrixTransformation,
	colorConverter *gpu.ColorConverter,
	listener Listener,
	autoRelease bool,
	inputEnded *atomic.Bool,
) *finalStage {
	return &finalStage{
		GPU:             gpuCtx,
		Transformations: transformations,
		ColorConverter:  colorConverter,
		Listener:        listener,
		AutoRelease:     autoRelease,
		InputEnded:      inputEnded,
		surfaceTexture:  frame.UnsetTexture,
	}
}

func (s *finalStage) String() string {
	return "finalStage"
}

func (s *finalStage) SetInputListener(ctx context.Context, l InputListener) {
	s.inputListener = l
	l.OnReadyToAcceptInputFrame(ctx)
}

func (s *finalStage) appendStream(ctx context.Context, streamOffsetUs int64) {
	s.streamOffsetsLocker.Do(xsync.WithNoLogging(ctx, true), func() {
		s.streamOffsetsUs = append(s.streamOffsetsUs, streamOffsetUs)
	})
}

func (s *finalStage) streamOffsetQueueLength(ctx context.Context) int {
	return xsync.DoR1(xsync.WithNoLogging(ctx, true), &s.streamOffsetsLocker, func() int {
		return len(s.streamOffsetsUs)
	})
}

func (s *finalStage) setOutputSurfaceInfo(info *SurfaceInfo) {
	old := xatomic.SwapPointer(&s.outputSurfaceInfo, info)
	if !old.equal(info) {
		s.outputSurfaceInfoChanged.Store(true)
	}
}

func (s *finalStage) QueueInputFrame(
	ctx context.Context,
	inputTexture frame.Texture,
	presentationTimeUs int64,
) (_err error) {
	logger.Tracef(ctx, "QueueInputFrame[final](%s, %d)", inputTexture, presentationTimeUs)
	defer func() { logger.Tracef(ctx, "/QueueInputFrame[final]: %v", _err) }()
	var (
		offsetUs int64
		ok       bool
	)
	s.streamOffsetsLocker.Do(xsync.WithNoLogging(ctx, true), func() {
		if len(s.streamOffsetsUs) > 0 {
			offsetUs, ok = s.streamOffsetsUs[0], true
		}
	})
	if !ok {
		return fmt.Errorf("received a frame without an input stream")
	}
	outputPresentationTimeUs := presentationTimeUs + offsetUs
	s.Listener.OnOutputFrameAvailable(ctx, outputPresentationTimeUs)

	var err error
	if s.AutoRelease {
		err = s.renderFrame(ctx, inputTexture, outputPresentationTimeUs, outputPresentationTimeUs*1000)
	} else {
		s.availableFrames = append(s.availableFrames, availableFrame{
			Texture:            inputTexture,
			PresentationTimeUs: outputPresentationTimeUs,
		})
	}
	s.inputListener.OnReadyToAcceptInputFrame(ctx)
	return err
}

// releaseOutputFrame renders (or drops) the oldest available frame.
func (s *finalStage) releaseOutputFrame(ctx context.Context, releaseTimeNs int64) error {
	if s.AutoRelease {
		return fmt.Errorf("frames are released automatically")
	}
	if len(s.availableFrames) == 0 {
		return fmt.Errorf("no output frame is available")
	}
	f := s.availableFrames[0]
	s.availableFrames = s.availableFrames[1:]
	return s.renderFrame(ctx, f.Texture, f.PresentationTimeUs, releaseTimeNs)
}

func (s *finalStage) renderFrame(
	ctx context.Context,
	inputTexture frame.Texture,
	presentationTimeUs int64,
	releaseTimeNs int64,
) error {
	err := s.maybeRenderToSurface(ctx, inputTexture, presentationTimeUs, releaseTimeNs)
	s.inputListener.OnInputFrameProcessed(ctx, inputTexture)
	if err != nil {
		return fmt.Errorf("unable to render the frame at %dus: %w", presentationTimeUs, err)
	}
	return nil
}

func (s *finalStage) maybeRenderToSurface(
	ctx context.Context,
	inputTexture frame.Texture,
	presentationTimeUs int64,
	releaseTimeNs int64,
) error {
	configured, err := s.ensureConfigured(ctx, inputTexture.Width, inputTexture.Height)
	if err != nil {
		return err
	}
	if releaseTimeNs == DropOutputFrame || !configured {
		s.droppedFrames.Inc()
		return nil
	}

	if err := s.GPU.BindFramebuffer(ctx, s.surfaceTexture); err != nil {
		return err
	}
	if err := s.surfaceStage.DrawFrame(ctx, s.GPU, inputTexture, presentationTimeUs); err != nil {
		return err
	}
	img := s.GPU.Image(s.surfaceTexture)
	if s.ColorConverter != nil {
		img = s.ColorConverter.Convert(img)
	}
	surface := s.currentSurface.Surface
	if err := surface.Draw(ctx, img); err != nil {
		return fmt.Errorf("unable to draw to the output surface: %w", err)
	}
	if releaseTimeNs == ReleaseImmediately {
		releaseTimeNs = time.Now().UnixNano()
	}
	surface.SetPresentationTime(releaseTimeNs)
	if err := surface.SwapBuffers(ctx); err != nil {
		return fmt.Errorf("unable to swap the output surface buffers: %w", err)
	}
	s.renderedFrames.Inc()
	return nil
}

// ensureConfigured returns false if there is no output surface to render to.
func (s *finalStage) ensureConfigured(ctx context.Context, inputWidth, inputHeight int) (bool, error) {
	if !s.outputSizeKnown || inputWidth != s.inputWidth || inputHeight != s.inputHeight {
		s.inputWidth, s.inputHeight = inputWidth, inputHeight
		w, h, err := effect.NewMatrixStage(s.Transformations...).Configure(ctx, inputWidth, inputHeight)
		if err != nil {
			return false, fmt.Errorf("unable to configure the output transformations: %w", err)
		}
		if !s.outputSizeKnown || w != s.outputWidth || h != s.outputHeight {
			s.outputSizeKnown = true
			s.outputWidth, s.outputHeight = w, h
			s.Listener.OnOutputSizeChanged(ctx, w, h)
		}
		s.resetSurfaceStage(ctx)
	}

	if s.outputSurfaceInfoChanged.CompareAndSwap(true, false) {
		s.currentSurface = xatomic.LoadPointer(&s.outputSurfaceInfo)
		logger.Debugf(ctx, "output surface changed to %s", s.currentSurface)
		s.resetSurfaceStage(ctx)
	}
	if s.currentSurface == nil {
		return false, nil
	}
	if s.surfaceStage != nil {
		return true, nil
	}
	if err := s.currentSurface.Validate(); err != nil {
		return false, fmt.Errorf("invalid output surface: %w", err)
	}

	transformations := append([]effect.MatrixTransformation{}, s.Transformations...)
	if s.currentSurface.OrientationDegrees != 0 {
		transformations = append(transformations, &effect.ScaleAndRotate{
			ScaleX:          1,
			ScaleY:          1,
			RotationDegrees: float64(s.currentSurface.OrientationDegrees),
		})
	}
	transformations = append(transformations, &effect.Presentation{
		Width:       s.currentSurface.Width,
		Height:      s.currentSurface.Height,
		AspectRatio: float64(s.currentSurface.Width) / float64(s.currentSurface.Height),
		Layout:      effect.LayoutScaleToFit,
	})
	stage := effect.NewMatrixStage(transformations...)
	w, h, err := stage.Configure(ctx, inputWidth, inputHeight)
	if err != nil {
		return false, fmt.Errorf("unable to configure the output surface transformations: %w", err)
	}
	if w != s.currentSurface.Width || h != s.currentSurface.Height {
		return false, fmt.Errorf("the output surface transformations produce %dx%d instead of %dx%d", w, h, s.currentSurface.Width, s.currentSurface.Height)
	}
	if s.surfaceTexture.IsSet() && (s.surfaceTexture.Width != w || s.surfaceTexture.Height != h) {
		if err := s.GPU.DeleteTexture(ctx, s.surfaceTexture); err != nil {
			return false, err
		}
		s.surfaceTexture = frame.UnsetTexture
	}
	if !s.surfaceTexture.IsSet() {
		tex, err := s.GPU.CreateTexture(ctx, w, h)
		if err != nil {
			return false, err
		}
		s.surfaceTexture = tex
	}
	s.surfaceStage = stage
	return true, nil
}

func (s *finalStage) resetSurfaceStage(ctx context.Context) {
	if s.surfaceStage == nil {
		return
	}
	if err := s.surfaceStage.Release(ctx); err != nil {
		logger.Warnf(ctx, "unable to release the output stage: %v", err)
	}
	s.surfaceStage = nil
}

func (s *finalStage) SignalEndOfCurrentInputStream(ctx context.Context) error {
	var (
		remaining int
		ok        bool
	)
	s.streamOffsetsLocker.Do(xsync.WithNoLogging(ctx, true), func() {
		if len(s.streamOffsetsUs) == 0 {
			return
		}
		s.streamOffsetsUs = s.streamOffsetsUs[1:]
		remaining, ok = len(s.streamOffsetsUs), true
	})
	if !ok {
		if !s.InputEnded.Load() {
			return fmt.Errorf("no input stream to end")
		}
		// the input ended without any frames
	}
	if remaining == 0 && s.InputEnded.Load() && !s.endedNotification {
		s.endedNotification = true
		s.Listener.OnEnded(ctx)
	}
	return nil
}

func (s *finalStage) Release(ctx context.Context) error {
	s.resetSurfaceStage(ctx)
	if !s.surfaceTexture.IsSet() {
		return nil
	}
	err := s.GPU.DeleteTexture(ctx, s.surfaceTexture)
	s.surfaceTexture = frame.UnsetTexture
	return err
}
