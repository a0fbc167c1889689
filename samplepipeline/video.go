package samplepipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/xaionaro-go/avtransformer/codec"
	"github.com/xaionaro-go/avtransformer/effect"
	"github.com/xaionaro-go/avtransformer/frame"
	"github.com/xaionaro-go/avtransformer/framegraph"
	"github.com/xaionaro-go/avtransformer/logger"
	"github.com/xaionaro-go/avtransformer/types"
	"github.com/xaionaro-go/xsync"
	"go.uber.org/atomic"
)

const (
	DefaultMaxPendingFrames = 4
)

type VideoConfig struct {
	Effects []effect.Effect

	// MaxPendingFrames is the amount of decoded frames that may wait for
	// the graph before the decoder output is not consumed anymore.
	MaxPendingFrames int

	GraphOptions []framegraph.Option
}

// Video decodes the video track into the frame processing graph and
// encodes the frames the graph renders.
type Video struct {
	base
	InputFormat *codec.Format
	Config      VideoConfig

	decoder        codec.Codec
	graph          *framegraph.Graph
	encoderWrapper *encoderWrapper

	frameInfo          frame.Info
	frameInfoSet       bool
	decoderEnded       bool
	encoderEOSSignaled bool
	graphEnded         atomic.Bool
	registeredFrames   atomic.Uint64

	errLocker xsync.Mutex
	asyncErr  error
}

var _ Pipeline = (*Video)(nil)

type videoGraphListener Video

var _ framegraph.Listener = (*videoGraphListener)(nil)

func NewVideo(
	ctx context.Context,
	inputFormat *codec.Format,
	streamStartPositionUs int64,
	speed float64,
	request types.TransformationRequest,
	cfg VideoConfig,
	decoderFactory codec.DecoderFactory,
	encoderFactory codec.EncoderFactory,
	muxer Muxer,
	fallback FallbackReporter,
) (_ret *Video, _err error) {
	logger.Debugf(ctx, "NewVideo(%s)", inputFormat)
	defer func() { logger.Debugf(ctx, "/NewVideo(%s): %v", inputFormat, _err) }()
	if decoderFactory == nil || encoderFactory == nil {
		return nil, types.NewErrTransformation(types.ErrorCodeDecoderInitFailed, "VideoSamplePipeline", fmt.Errorf("no codec factories"))
	}
	if cfg.MaxPendingFrames <= 0 {
		cfg.MaxPendingFrames = DefaultMaxPendingFrames
	}
	v := &Video{
		base: newBase(
			"VideoSamplePipeline",
			types.MediaTypeVideo, muxer, fallback, request, streamStartPositionUs, speed,
		),
		InputFormat: inputFormat.Clone(),
		Config:      cfg,
	}
	v.encoderWrapper = newEncoderWrapper(encoderFactory, v.InputFormat, request, v.reportRequest)

	effects := append([]effect.Effect{}, cfg.Effects...)
	if request.OutputHeight != 0 {
		effects = append(effects, effect.NewPresentation(request.OutputHeight, effect.LayoutScaleToFit))
	}
	graph, err := framegraph.New(ctx, framegraph.Config{
		Effects:            effects,
		HDRMode:            request.HDRMode,
		LimitedRangeOutput: true,
	}, (*videoGraphListener)(v), cfg.GraphOptions...)
	if err != nil {
		return nil, err
	}
	v.graph = graph

	enableToneMapping := request.HDRMode == types.HDRModeToneMapHDRToSDRUsingCodec
	decoder, err := decoderFactory.CreateForVideoDecoding(ctx, inputFormat, graph.InputSurface(), enableToneMapping)
	if err != nil {
		_ = graph.Release(ctx)
		return nil, v.asCodecErr(types.ErrorCodeDecoderInitFailed, inputFormat, "", err)
	}
	v.decoder = decoder
	return v, nil
}

func (v *Video) setAsyncErr(ctx context.Context, err error) {
	v.errLocker.Do(ctx, func() {
		if v.asyncErr == nil {
			v.asyncErr = err
		}
	})
}

func (v *Video) getAsyncErr(ctx context.Context) error {
	return xsync.DoR1(xsync.WithNoLogging(ctx, true), &v.errLocker, func() error {
		return v.asyncErr
	})
}

func (l *videoGraphListener) OnOutputSizeChanged(ctx context.Context, width, height int) {
	v := (*Video)(l)
	surfaceInfo, err := v.encoderWrapper.SurfaceInfo(ctx, width, height)
	if err != nil {
		v.setAsyncErr(ctx, v.asCodecErr(types.ErrorCodeEncoderInitFailed, nil, "", err))
		return
	}
	v.graph.SetOutputSurfaceInfo(surfaceInfo)
}

func (l *videoGraphListener) OnOutputFrameAvailable(ctx context.Context, presentationTimeUs int64) {
	logger.Tracef(ctx, "OnOutputFrameAvailable(%d)", presentationTimeUs)
}

func (l *videoGraphListener) OnError(ctx context.Context, err error) {
	logger.Debugf(ctx, "OnError(%v)", err)
	(*Video)(l).setAsyncErr(ctx, err)
}

func (l *videoGraphListener) OnEnded(ctx context.Context) {
	logger.Debugf(ctx, "OnEnded")
	(*Video)(l).graphEnded.Store(true)
}

func (v *Video) DequeueInputBuffer(ctx context.Context) (*codec.Buffer, error) {
	buf, err := v.decoder.DequeueInputBuffer(ctx)
	if err != nil {
		return nil, v.asCodecErr(types.ErrorCodeDecodingFailed, v.InputFormat, v.decoder.Name(), err)
	}
	return buf, nil
}

func (v *Video) QueueInputBuffer(ctx context.Context) error {
	buf, err := v.decoder.DequeueInputBuffer(ctx)
	if err != nil {
		return v.asCodecErr(types.ErrorCodeDecodingFailed, v.InputFormat, v.decoder.Name(), err)
	}
	if buf == nil {
		return fmt.Errorf("no input buffer is dequeued")
	}
	if !buf.IsEndOfStream() {
		buf.PresentationTimeUs = v.outputTimeUs(buf.PresentationTimeUs)
	}
	if err := v.decoder.QueueInputBuffer(ctx); err != nil {
		return v.asCodecErr(types.ErrorCodeDecodingFailed, v.InputFormat, v.decoder.Name(), err)
	}
	v.setState(ctx, StateDecoding)
	return nil
}

func (v *Video) ProcessData(ctx context.Context) (_ret bool, _err error) {
	logger.Tracef(ctx, "%s.ProcessData", v)
	defer func() { logger.Tracef(ctx, "/%s.ProcessData: %v %v", v, _ret, _err) }()
	if err := v.getAsyncErr(ctx); err != nil {
		return false, err
	}
	if v.IsEnded() {
		return false, nil
	}

	var progress bool
	if encoder := v.encoderWrapper.Encoder(); encoder != nil {
		ok, err := v.feedMuxerFromEncoder(ctx, encoder)
		if err != nil {
			return false, err
		}
		progress = ok
	}

	ok, err := v.feedGraph(ctx)
	if err != nil {
		return progress, err
	}
	progress = progress || ok

	if v.graphEnded.Load() && !v.encoderEOSSignaled {
		v.encoderEOSSignaled = true
		v.setState(ctx, StateDraining)
		encoder := v.encoderWrapper.Encoder()
		if encoder == nil {
			logger.Debugf(ctx, "%s: no frames were rendered", v)
			return true, v.endTrack(ctx)
		}
		if err := encoder.SignalEndOfInputStream(ctx); err != nil {
			return progress, v.asCodecErr(types.ErrorCodeEncodingFailed, nil, encoder.Name(), err)
		}
		progress = true
	}
	return progress, nil
}

// feedGraph moves one decoded frame to the graph, unless the graph already
// has MaxPendingFrames frames waiting.
func (v *Video) feedGraph(ctx context.Context) (bool, error) {
	if v.decoderEnded {
		return false, nil
	}
	if v.graph.PendingInputFrameCount() >= v.Config.MaxPendingFrames {
		return false, nil
	}
	buf, err := v.decoder.OutputBuffer(ctx)
	if err != nil {
		return false, v.asCodecErr(types.ErrorCodeDecodingFailed, v.InputFormat, v.decoder.Name(), err)
	}
	if buf == nil {
		if v.decoder.IsEnded() {
			return true, v.signalEndOfInput(ctx)
		}
		return false, nil
	}
	if buf.IsEndOfStream() {
		if err := v.decoder.ReleaseOutputBuffer(ctx, false); err != nil {
			return false, v.asCodecErr(types.ErrorCodeDecodingFailed, v.InputFormat, v.decoder.Name(), err)
		}
		return true, v.signalEndOfInput(ctx)
	}

	if err := v.updateFrameInfo(ctx); err != nil {
		return false, err
	}
	if err := v.graph.RegisterInputFrame(ctx); err != nil {
		return false, types.NewErrFrameProcessing(err).WithComponent(v.name)
	}
	v.registeredFrames.Inc()
	if err := v.decoder.ReleaseOutputBuffer(ctx, true); err != nil {
		return false, v.asCodecErr(types.ErrorCodeDecodingFailed, v.InputFormat, v.decoder.Name(), err)
	}
	v.setState(ctx, StateProcessing)
	return true, nil
}

// updateFrameInfo passes the decoder output size to the graph whenever it
// changes, so the graph is reconfigured for the frames registered next.
func (v *Video) updateFrameInfo(ctx context.Context) error {
	format, err := v.decoder.OutputFormat(ctx)
	if err != nil {
		return v.asCodecErr(types.ErrorCodeDecodingFailed, v.InputFormat, v.decoder.Name(), err)
	}
	if format == nil {
		format = v.InputFormat
	}
	info := frame.NewInfo(format.Width, format.Height)
	if v.frameInfoSet && info == v.frameInfo {
		return nil
	}
	if v.frameInfoSet {
		logger.Debugf(ctx, "%s: the decoded frame size changed: %dx%d -> %dx%d", v, v.frameInfo.Width, v.frameInfo.Height, info.Width, info.Height)
	}
	if err := v.graph.SetInputFrameInfo(ctx, info); err != nil {
		return types.NewErrFrameProcessing(err).WithComponent(v.name)
	}
	v.frameInfo, v.frameInfoSet = info, true
	return nil
}

func (v *Video) signalEndOfInput(ctx context.Context) error {
	logger.Debugf(ctx, "%s: the decoder is drained after %d frames", v, v.registeredFrames.Load())
	v.decoderEnded = true
	if err := v.graph.SignalEndOfInput(ctx); err != nil {
		return types.NewErrFrameProcessing(err).WithComponent(v.name)
	}
	return nil
}

// Graph returns the frame processing graph of the pipeline.
func (v *Video) Graph() *framegraph.Graph {
	return v.graph
}

// EncoderName returns the name of the encoder, empty if not created yet.
func (v *Video) EncoderName() string {
	encoder := v.encoderWrapper.Encoder()
	if encoder == nil {
		return ""
	}
	return encoder.Name()
}

func (v *Video) Release(ctx context.Context) error {
	logger.Debugf(ctx, "%s.Release", v)
	var errs []error
	if err := v.graph.Release(ctx); err != nil {
		errs = append(errs, fmt.Errorf("unable to release the graph: %w", err))
	}
	if err := v.decoder.Release(ctx); err != nil {
		errs = append(errs, fmt.Errorf("unable to release the decoder: %w", err))
	}
	if err := v.encoderWrapper.Release(ctx); err != nil {
		errs = append(errs, fmt.Errorf("unable to release the encoder: %w", err))
	}
	return errors.Join(errs...)
}
