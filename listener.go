package avtransformer

import (
	"context"

	"github.com/xaionaro-go/avtransformer/audio"
	"github.com/xaionaro-go/avtransformer/codec"
	"github.com/xaionaro-go/avtransformer/types"
)

// Listener receives the outcome of a transformation. OnCompleted and OnError
// are called from the control goroutine.
type Listener interface {
	OnCompleted(ctx context.Context, result types.TransformationResult)
	OnError(ctx context.Context, result types.TransformationResult, err *types.ErrTransformation)

	// OnFallbackApplied is called at most once per transformation, if the
	// request could not be achieved as is.
	OnFallbackApplied(ctx context.Context, original, fallback types.TransformationRequest)
}

// Dependencies are the collaborators of a Transformer. The codec factories
// may be nil if only passthrough transformations are expected.
type Dependencies struct {
	DecoderFactory codec.DecoderFactory
	EncoderFactory codec.EncoderFactory
	Listener       Listener

	// AudioResamplerFactory converts the audio if the encoder does not
	// support its sample rate or channel count; optional.
	AudioResamplerFactory audio.ResamplerFactory
}

type ProgressState int32

const (
	// ProgressStateNotStarted: no transformation is running.
	ProgressStateNotStarted = ProgressState(iota)
	ProgressStateWaitingForAvailability
	ProgressStateAvailable
	// ProgressStateUnavailable: the duration of the input is unknown.
	ProgressStateUnavailable
)

func (s ProgressState) String() string {
	switch s {
	case ProgressStateNotStarted:
		return "not_started"
	case ProgressStateWaitingForAvailability:
		return "waiting_for_availability"
	case ProgressStateAvailable:
		return "available"
	case ProgressStateUnavailable:
		return "unavailable"
	}
	return "unknown"
}
