package samplepipeline

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/avtransformer/codec"
	"github.com/xaionaro-go/avtransformer/framegraph"
	"github.com/xaionaro-go/avtransformer/logger"
	"github.com/xaionaro-go/avtransformer/quality"
	"github.com/xaionaro-go/avtransformer/types"
	"github.com/xaionaro-go/xsync"
)

// encoderWrapper creates the video encoder once the frame processing graph
// knows the size of its output frames.
//
// Encoders get landscape frames: portrait output is rotated by 90 degrees
// before encoding and the rotation is restored by the container hint.
type encoderWrapper struct {
	factory     codec.EncoderFactory
	inputFormat *codec.Format
	request     types.TransformationRequest
	report      func(ctx context.Context, achieved types.TransformationRequest) error

	locker      xsync.Mutex
	encoder     codec.Codec
	surfaceInfo *framegraph.SurfaceInfo
	width       int
	height      int
}

func newEncoderWrapper(
	factory codec.EncoderFactory,
	inputFormat *codec.Format,
	request types.TransformationRequest,
	report func(ctx context.Context, achieved types.TransformationRequest) error,
) *encoderWrapper {
	return &encoderWrapper{
		factory:     factory,
		inputFormat: inputFormat,
		request:     request,
		report:      report,
	}
}

func (w *encoderWrapper) Encoder() codec.Codec {
	return xsync.DoR1(xsync.WithNoLogging(context.Background(), true), &w.locker, func() codec.Codec {
		return w.encoder
	})
}

func (w *encoderWrapper) requestedMimeType() string {
	if w.request.VideoMimeType != "" {
		return w.request.VideoMimeType
	}
	return w.inputFormat.MimeType
}

// SurfaceInfo returns the surface the graph should render into to feed the
// encoder, creating the encoder on the first call.
func (w *encoderWrapper) SurfaceInfo(
	ctx context.Context,
	width, height int,
) (_ret *framegraph.SurfaceInfo, _err error) {
	logger.Debugf(ctx, "SurfaceInfo(%d, %d)", width, height)
	defer func() { logger.Debugf(ctx, "/SurfaceInfo(%d, %d): %s %v", width, height, _ret, _err) }()
	w.locker.Do(ctx, func() {
		_ret, _err = w.surfaceInfoLocked(ctx, width, height)
	})
	return
}

func (w *encoderWrapper) surfaceInfoLocked(
	ctx context.Context,
	outputWidth, outputHeight int,
) (*framegraph.SurfaceInfo, error) {
	width, height := outputWidth, outputHeight
	if w.encoder != nil {
		if width != w.width || height != w.height {
			logger.Warnf(ctx, "the output size changed from %dx%d to %dx%d, the frames will be scaled", w.width, w.height, width, height)
		}
		return w.surfaceInfo, nil
	}

	orientation := 0
	if height > width {
		orientation = 90
		width, height = height, width
	}
	requested := codec.NewVideoFormat(w.requestedMimeType(), width, height)
	requested.FrameRate = w.inputFormat.FrameRate
	requested.Rotation = (w.inputFormat.Rotation + orientation) % 360
	requested.ColorInfo = codec.ColorInfoSDRBT709Limited
	if w.request.HDRMode == types.HDRModeKeepHDR && w.inputFormat.ColorInfo.IsHDR() {
		requested.ColorInfo = w.inputFormat.ColorInfo
	}
	if w.request.VideoQuality != nil {
		w.request.VideoQuality.Apply(requested)
	}

	encoder, err := w.factory.CreateForVideoEncoding(ctx, requested)
	if err != nil {
		return nil, err
	}
	surface := encoder.InputSurface()
	if surface == nil {
		_ = encoder.Release(ctx)
		return nil, types.NewErrEncoding(
			types.ErrorCodeEncoderInitFailed, "", requested, encoder.Name(),
			fmt.Errorf("the encoder has no input surface"),
		)
	}
	achieved := encoder.ConfigurationFormat()
	logger.Debugf(ctx, "encoder %s: requested %s, achieved %s", encoder.Name(), requested, achieved)

	if err := w.report(ctx, w.achievedRequest(requested, achieved, orientation)); err != nil {
		_ = encoder.Release(ctx)
		return nil, err
	}
	w.encoder = encoder
	w.width, w.height = outputWidth, outputHeight
	w.surfaceInfo = framegraph.NewSurfaceInfo(surface, orientation)
	return w.surfaceInfo, nil
}

func (w *encoderWrapper) achievedRequest(
	requested, achieved *codec.Format,
	orientation int,
) types.TransformationRequest {
	result := w.request
	if achieved.MimeType != requested.MimeType || w.request.VideoMimeType != "" {
		result = result.WithVideoMimeType(achieved.MimeType)
	}
	if w.request.OutputHeight != 0 {
		outputHeight := achieved.Height
		if orientation%180 != 0 {
			outputHeight = achieved.Width
		}
		result = result.WithOutputHeight(outputHeight)
	}
	switch w.request.VideoQuality.(type) {
	case quality.ConstantBitrate:
		if achieved.Bitrate > 0 {
			result = result.WithVideoQuality(quality.ConstantBitrate(achieved.Bitrate))
		}
	case quality.ConstantQuality:
		switch {
		case achieved.ConstantQuality > 0:
			result = result.WithVideoQuality(quality.ConstantQuality(achieved.ConstantQuality))
		case achieved.Bitrate > 0:
			result = result.WithVideoQuality(quality.ConstantBitrate(achieved.Bitrate))
		}
	}
	return result
}

func (w *encoderWrapper) Release(ctx context.Context) error {
	encoder := w.Encoder()
	if encoder == nil {
		return nil
	}
	return encoder.Release(ctx)
}
