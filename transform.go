package avtransformer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/asticode/go-astikit"
	"github.com/davecgh/go-spew/spew"
	"github.com/dustin/go-humanize"
	"github.com/xaionaro-go/avtransformer/codec"
	"github.com/xaionaro-go/avtransformer/fallback"
	"github.com/xaionaro-go/avtransformer/logger"
	"github.com/xaionaro-go/avtransformer/muxer"
	"github.com/xaionaro-go/avtransformer/samplepipeline"
	"github.com/xaionaro-go/avtransformer/source"
	"github.com/xaionaro-go/avtransformer/types"
)

type encoderNamer interface {
	EncoderName() string
}

// track is a source track and the pipeline moving it into the muxer.
type track struct {
	source.TrackFormat
	Pipeline      samplepipeline.Pipeline
	IsPassthrough bool

	inputEnded bool
}

func (t *Transformer) transform(
	ctx context.Context,
	src source.Source,
	backend muxer.Backend,
) (_ret types.TransformationResult, _err error) {
	logger.Debugf(ctx, "transform(%s)", src)
	defer func() { logger.Debugf(ctx, "/transform(%s): %v", src, _err) }()
	_ret.ID = t.ID

	closer := astikit.NewCloser()
	defer func() {
		if err := closer.Close(); err != nil {
			logger.Errorf(ctx, "unable to release the transformation: %v", err)
		}
	}()
	closer.AddWithError(func() error {
		return src.Close(ctx)
	})

	mux := muxer.NewWrapper(ctx, backend, types.ErrorHandlerFunc(t.onAsyncError), t.Config.muxerOptions()...)
	closer.AddWithError(func() error {
		return mux.Release(ctx, t.isCancelled.Load() || ctx.Err() != nil)
	})

	if err := src.Prepare(ctx); err != nil {
		return _ret, types.AsErrTransformation(err).WithComponent("Source")
	}
	if durationUs := src.DurationUs(); durationUs > 0 {
		t.progressState.Store(int32(ProgressStateAvailable))
	} else {
		t.progressState.Store(int32(ProgressStateUnavailable))
	}

	tracks, err := t.selectTracks(ctx, src.Tracks())
	if err != nil {
		return _ret, err
	}

	negotiator := fallback.New(t.Config.TransformationRequest(), fallback.HandlerFunc(t.onFallbackApplied))
	for range tracks {
		if err := mux.RegisterTrack(ctx); err != nil {
			return _ret, types.NewErrMuxing(types.ErrorCodeMuxingFailed, err)
		}
		if err := negotiator.RegisterTrack(ctx); err != nil {
			return _ret, types.NewErrUnexpected(err)
		}
	}

	for _, tr := range tracks {
		pipeline, isPassthrough, err := t.newPipeline(ctx, tr.Format, src.StartTimeUs(), mux, negotiator)
		if err != nil {
			return _ret, err
		}
		tr.Pipeline, tr.IsPassthrough = pipeline, isPassthrough
		closer.AddWithError(func() error {
			return pipeline.Release(ctx)
		})
	}

	err = t.controlLoop(ctx, src, mux, tracks)
	_ret = t.buildResult(ctx, mux, tracks)
	return _ret, err
}

func (t *Transformer) selectTracks(
	ctx context.Context,
	formats []source.TrackFormat,
) ([]*track, error) {
	var tracks []*track
	for _, f := range formats {
		switch f.Format.MediaType() {
		case types.MediaTypeAudio:
			if t.Config.RemoveAudio {
				logger.Debugf(ctx, "removing the audio track #%d", f.Index)
				continue
			}
		case types.MediaTypeVideo:
			if t.Config.RemoveVideo {
				logger.Debugf(ctx, "removing the video track #%d", f.Index)
				continue
			}
		default:
			logger.Debugf(ctx, "skipping the track #%d of an unknown type: %s", f.Index, f.Format)
			continue
		}
		logger.Tracef(ctx, "track #%d: %s", f.Index, spew.Sdump(f.Format))
		tracks = append(tracks, &track{TrackFormat: f})
	}
	if len(tracks) == 0 {
		return nil, types.NewErrTransformation(
			types.ErrorCodeFailedRuntimeCheck, "",
			fmt.Errorf("the input has no tracks to transform (out of %d)", len(formats)),
		)
	}
	return tracks, nil
}

func (t *Transformer) newPipeline(
	ctx context.Context,
	format *codec.Format,
	streamStartPositionUs int64,
	mux *muxer.Wrapper,
	negotiator *fallback.Negotiator,
) (samplepipeline.Pipeline, bool, error) {
	request := t.Config.TransformationRequest()
	speed := t.Config.speed()
	deps := t.Dependencies
	if samplepipeline.ShouldPassthrough(ctx, format, request, t.effects, speed) {
		p, err := samplepipeline.NewPassthrough(ctx, format, streamStartPositionUs, speed, request, mux, negotiator)
		if err != nil {
			return nil, false, err
		}
		return p, true, nil
	}
	switch format.MediaType() {
	case types.MediaTypeAudio:
		p, err := samplepipeline.NewAudio(
			ctx, format, streamStartPositionUs, speed, request,
			samplepipeline.AudioConfig{ResamplerFactory: deps.AudioResamplerFactory},
			deps.DecoderFactory, deps.EncoderFactory, mux, negotiator,
		)
		if err != nil {
			return nil, false, err
		}
		return p, false, nil
	case types.MediaTypeVideo:
		p, err := samplepipeline.NewVideo(
			ctx, format, streamStartPositionUs, speed, request,
			samplepipeline.VideoConfig{
				Effects:          t.effects,
				MaxPendingFrames: t.Config.Graph.MaxPendingFrames,
				GraphOptions:     t.Config.graphOptions(),
			},
			deps.DecoderFactory, deps.EncoderFactory, mux, negotiator,
		)
		if err != nil {
			return nil, false, err
		}
		return p, false, nil
	}
	return nil, false, types.NewErrUnexpected(fmt.Errorf("unexpected track type %s", format.MediaType()))
}

func (t *Transformer) controlLoop(
	ctx context.Context,
	src source.Source,
	mux *muxer.Wrapper,
	tracks []*track,
) (_err error) {
	logger.Debugf(ctx, "controlLoop")
	defer func() { logger.Debugf(ctx, "/controlLoop: %v", _err) }()
	outputDurationUs := int64(float64(src.DurationUs()) / t.Config.speed())
	timer := time.NewTimer(t.Config.ControlTick)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return types.NewErrTransformation(types.ErrorCodeCancelled, "", ctx.Err())
		case err := <-t.asyncErrCh:
			return err
		default:
		}

		isProgressing := false
		isEnded := true
		for _, tr := range tracks {
			fed, err := tr.feed(ctx, src)
			if err != nil {
				return err
			}
			processed, err := tr.process(ctx)
			if err != nil {
				return err
			}
			isProgressing = isProgressing || fed || processed
			isEnded = isEnded && tr.Pipeline.IsEnded()
		}
		if outputDurationUs > 0 {
			percent := mux.DurationMs(ctx) * 1000 * 100 / outputDurationUs
			t.progressPercent.Store(int32(min(percent, 99)))
		}
		if isEnded && mux.IsEnded() {
			t.progressPercent.Store(100)
			return nil
		}
		if isProgressing {
			continue
		}

		timer.Reset(t.Config.ControlTick)
		select {
		case <-ctx.Done():
			return types.NewErrTransformation(types.ErrorCodeCancelled, "", ctx.Err())
		case err := <-t.asyncErrCh:
			return err
		case <-timer.C:
		}
	}
}

// feed moves the available source samples into the input buffers of the
// pipeline.
func (tr *track) feed(ctx context.Context, src source.Source) (bool, error) {
	isProgressing := false
	for !tr.inputEnded {
		buf, err := tr.Pipeline.DequeueInputBuffer(ctx)
		if err != nil {
			return isProgressing, err
		}
		if buf == nil {
			return isProgressing, nil
		}
		result, err := src.Read(ctx, tr.Index, buf)
		if err != nil {
			return isProgressing, types.AsErrTransformation(err).WithComponent("Source")
		}
		switch result {
		case source.ReadResultBufferRead:
		case source.ReadResultEndOfStream:
			buf.Reset()
			buf.Flags |= codec.BufferFlagEndOfStream
			tr.inputEnded = true
		case source.ReadResultNothingAvailable:
			return isProgressing, nil
		case source.ReadResultFormatChanged:
			logger.Warnf(ctx, "the format of the %s track changed, ignoring", tr.Format.MediaType())
			return isProgressing, nil
		default:
			return isProgressing, types.NewErrIO(types.ErrorCodeIOUnspecified, fmt.Errorf("unexpected read result %s", result))
		}
		if err := tr.Pipeline.QueueInputBuffer(ctx); err != nil {
			return isProgressing, err
		}
		isProgressing = true
	}
	return isProgressing, nil
}

func (tr *track) process(ctx context.Context) (bool, error) {
	isProgressing := false
	for {
		ok, err := tr.Pipeline.ProcessData(ctx)
		if err != nil {
			var errTransformation *types.ErrTransformation
			if !errors.As(err, &errTransformation) {
				errTransformation = types.NewErrUnexpected(err).WithComponent(tr.Pipeline.String())
			}
			return isProgressing, errTransformation
		}
		if !ok {
			return isProgressing, nil
		}
		isProgressing = true
	}
}

func (t *Transformer) buildResult(
	ctx context.Context,
	mux *muxer.Wrapper,
	tracks []*track,
) types.TransformationResult {
	result := types.TransformationResult{
		ID:            t.ID,
		DurationMs:    mux.DurationMs(ctx),
		FileSizeBytes: mux.WrittenBytes(ctx),
	}
	if f := mux.TrackFormat(ctx, types.MediaTypeAudio); f != nil {
		result.Channels = f.Channels
		result.SampleRate = f.SampleRate
		result.AverageAudioBitrate = mux.TrackAverageBitrate(ctx, types.MediaTypeAudio)
		result.AudioSampleCount = mux.TrackSampleCount(ctx, types.MediaTypeAudio)
	}
	if f := mux.TrackFormat(ctx, types.MediaTypeVideo); f != nil {
		result.Width = f.Width
		result.Height = f.Height
		result.AverageVideoBitrate = mux.TrackAverageBitrate(ctx, types.MediaTypeVideo)
		result.VideoFrameCount = mux.TrackSampleCount(ctx, types.MediaTypeVideo)
	}
	for _, tr := range tracks {
		var encoderName string
		if namer, ok := tr.Pipeline.(encoderNamer); ok {
			encoderName = namer.EncoderName()
		}
		switch tr.Format.MediaType() {
		case types.MediaTypeAudio:
			result.AudioPassthrough = tr.IsPassthrough
			result.AudioEncoderName = encoderName
		case types.MediaTypeVideo:
			result.VideoPassthrough = tr.IsPassthrough
			result.VideoEncoderName = encoderName
		}
	}
	return result
}

func resultString(r types.TransformationResult) string {
	return fmt.Sprintf(
		"%dms, %s; audio: %s/s, %d samples; video: %dx%d, %s/s, %d frames",
		r.DurationMs, humanize.Bytes(uint64(r.FileSizeBytes)),
		humanize.SI(float64(r.AverageAudioBitrate), "bit"), r.AudioSampleCount,
		r.Width, r.Height, humanize.SI(float64(r.AverageVideoBitrate), "bit"), r.VideoFrameCount,
	)
}
