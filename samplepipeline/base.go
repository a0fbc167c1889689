package samplepipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/xaionaro-go/avtransformer/codec"
	"github.com/xaionaro-go/avtransformer/logger"
	"github.com/xaionaro-go/avtransformer/types"
	"go.uber.org/atomic"
)

// ErrRequestFrozen is returned when a track reports its achieved request
// after it already wrote samples.
type ErrRequestFrozen struct {
	TrackType types.MediaType
}

func (e ErrRequestFrozen) Error() string {
	return fmt.Sprintf("the %s track has already written samples, the transformation request may not change", e.TrackType)
}

type base struct {
	name         string
	trackType    types.MediaType
	muxer        Muxer
	fallback     FallbackReporter
	request      types.TransformationRequest
	speed        float64
	startTimeUs  int64
	state        atomic.Int32
	isEnded      atomic.Bool
	formatAdded  bool
	wroteSamples atomic.Bool
	reported     bool
}

func newBase(
	name string,
	trackType types.MediaType,
	muxer Muxer,
	fallback FallbackReporter,
	request types.TransformationRequest,
	streamStartPositionUs int64,
	speed float64,
) base {
	if speed <= 0 {
		speed = 1
	}
	b := base{
		name:        name,
		trackType:   trackType,
		muxer:       muxer,
		fallback:    fallback,
		request:     request,
		speed:       speed,
		startTimeUs: streamStartPositionUs,
	}
	b.state.Store(int32(StateAwaitingInput))
	return b
}

func (b *base) String() string {
	return b.name
}

func (b *base) TrackType() types.MediaType {
	return b.trackType
}

func (b *base) State() State {
	return State(b.state.Load())
}

func (b *base) IsEnded() bool {
	return b.isEnded.Load()
}

func (b *base) setState(ctx context.Context, s State) {
	old := State(b.state.Swap(int32(s)))
	if old != s {
		logger.Debugf(ctx, "%s: state %s -> %s", b.name, old, s)
	}
}

// outputTimeUs maps an input presentation time to the output timeline.
func (b *base) outputTimeUs(inputTimeUs int64) int64 {
	ts := inputTimeUs - b.startTimeUs
	if b.speed != 1 {
		ts = int64(float64(ts) / b.speed)
	}
	return ts
}

func (b *base) asCodecErr(code types.ErrorCode, format *codec.Format, codecName string, err error) error {
	var errTransformation *types.ErrTransformation
	if errors.As(err, &errTransformation) {
		return errTransformation.WithComponent(b.name)
	}
	var stringer fmt.Stringer
	if format != nil {
		stringer = format
	}
	return types.NewErrCodec(code, b.name, stringer, codecName, err)
}

// reportRequest forwards the achieved request to the fallback reporter;
// allowed once and only before the first sample is written.
func (b *base) reportRequest(ctx context.Context, achieved types.TransformationRequest) error {
	if b.wroteSamples.Load() {
		return ErrRequestFrozen{TrackType: b.trackType}
	}
	if b.reported {
		return fmt.Errorf("the %s track has already reported its transformation request", b.trackType)
	}
	b.reported = true
	if b.fallback == nil {
		return nil
	}
	return b.fallback.OnTransformationRequestFinalized(ctx, achieved)
}

func (b *base) addOutputFormat(ctx context.Context, format *codec.Format) error {
	if b.formatAdded {
		return nil
	}
	logger.Debugf(ctx, "%s: output format %s", b.name, format)
	if err := b.muxer.AddTrackFormat(ctx, format); err != nil {
		return err
	}
	b.formatAdded = true
	return nil
}

func (b *base) writeSample(ctx context.Context, buf *codec.Buffer) (bool, error) {
	written, err := b.muxer.WriteSample(ctx, b.trackType, buf.Data, buf.IsKeyFrame(), buf.PresentationTimeUs)
	if err != nil {
		return false, err
	}
	if written {
		b.wroteSamples.Store(true)
	}
	return written, nil
}

func (b *base) endTrack(ctx context.Context) error {
	if b.isEnded.Load() {
		return nil
	}
	if err := b.muxer.EndTrack(ctx, b.trackType); err != nil {
		return err
	}
	b.isEnded.Store(true)
	b.setState(ctx, StateEnded)
	return nil
}

// feedMuxerFromEncoder moves one encoded buffer to the muxer. It returns
// false if there was nothing to move or the muxer rejected the sample (to
// be retried on the next call).
func (b *base) feedMuxerFromEncoder(ctx context.Context, encoder codec.Codec) (bool, error) {
	if b.isEnded.Load() {
		return false, nil
	}
	if !b.formatAdded {
		format, err := encoder.OutputFormat(ctx)
		if err != nil {
			return false, b.asCodecErr(types.ErrorCodeEncodingFailed, nil, encoder.Name(), err)
		}
		if format == nil {
			return false, nil
		}
		if err := b.addOutputFormat(ctx, format); err != nil {
			return false, err
		}
	}

	if encoder.IsEnded() {
		return true, b.endTrack(ctx)
	}
	buf, err := encoder.OutputBuffer(ctx)
	if err != nil {
		return false, b.asCodecErr(types.ErrorCodeEncodingFailed, nil, encoder.Name(), err)
	}
	if buf == nil {
		return false, nil
	}
	if buf.IsEndOfStream() && len(buf.Data) == 0 {
		if err := encoder.ReleaseOutputBuffer(ctx, false); err != nil {
			return false, b.asCodecErr(types.ErrorCodeEncodingFailed, nil, encoder.Name(), err)
		}
		return true, b.endTrack(ctx)
	}
	if !buf.Flags.Has(codec.BufferFlagCodecConfig) {
		written, err := b.writeSample(ctx, buf)
		if err != nil {
			return false, err
		}
		if !written {
			return false, nil
		}
	}
	isEOS := buf.IsEndOfStream()
	if err := encoder.ReleaseOutputBuffer(ctx, false); err != nil {
		return false, b.asCodecErr(types.ErrorCodeEncodingFailed, nil, encoder.Name(), err)
	}
	if isEOS {
		return true, b.endTrack(ctx)
	}
	return true, nil
}
