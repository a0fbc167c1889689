// Package samplepipeline moves the samples of one track from the source to
// the muxer: either as is (passthrough) or through a decoder, the audio
// processors or the frame processing graph, and an encoder.
package samplepipeline

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/avtransformer/codec"
	"github.com/xaionaro-go/avtransformer/types"
)

// Pipeline is driven by the control loop of a transformation. None of the
// methods block.
type Pipeline interface {
	fmt.Stringer

	TrackType() types.MediaType

	// DequeueInputBuffer returns the buffer to fill with the next sample of
	// the source, or nil if the pipeline cannot accept input right now. The
	// same buffer is returned until it is queued.
	DequeueInputBuffer(ctx context.Context) (*codec.Buffer, error)

	// QueueInputBuffer hands the filled buffer to the pipeline. A buffer
	// flagged with codec.BufferFlagEndOfStream ends the input.
	QueueInputBuffer(ctx context.Context) error

	// ProcessData makes a step of the processing, returning true if there
	// was any progress.
	ProcessData(ctx context.Context) (bool, error)

	IsEnded() bool
	State() State
	Release(ctx context.Context) error
}

type State int32

const (
	StateUndefined = State(iota)
	StateAwaitingInput
	StateDecoding
	StateProcessing
	StateEncoding
	StateDraining
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateUndefined:
		return "undefined"
	case StateAwaitingInput:
		return "awaiting_input"
	case StateDecoding:
		return "decoding"
	case StateProcessing:
		return "processing"
	case StateEncoding:
		return "encoding"
	case StateDraining:
		return "draining"
	case StateEnded:
		return "ended"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Muxer is the part of muxer.Wrapper the pipelines write to.
type Muxer interface {
	AddTrackFormat(ctx context.Context, format *codec.Format) error
	WriteSample(ctx context.Context, trackType types.MediaType, data []byte, isKeyFrame bool, presentationTimeUs int64) (bool, error)
	EndTrack(ctx context.Context, trackType types.MediaType) error
}

// FallbackReporter is notified of the transformation request a track
// actually achieved (see fallback.Negotiator).
type FallbackReporter interface {
	OnTransformationRequestFinalized(ctx context.Context, achieved types.TransformationRequest) error
}
