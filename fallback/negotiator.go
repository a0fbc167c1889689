// Package fallback reconciles the requested transformation parameters with
// the ones the codecs actually achieved.
package fallback

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/avtransformer/logger"
	"github.com/xaionaro-go/avtransformer/types"
	"github.com/xaionaro-go/xsync"
)

type Handler interface {
	OnFallbackApplied(ctx context.Context, original, fallback types.TransformationRequest)
}

type HandlerFunc func(ctx context.Context, original, fallback types.TransformationRequest)

func (fn HandlerFunc) OnFallbackApplied(ctx context.Context, original, fallback types.TransformationRequest) {
	fn(ctx, original, fallback)
}

type ErrAlreadyComplete struct{}

func (ErrAlreadyComplete) Error() string {
	return "all the tracks have already reported their transformation requests"
}

// Negotiator collects the achieved transformation request of every track
// and notifies the Handler once, after the last track reported, if the
// merged result differs from the original request.
type Negotiator struct {
	OriginalRequest types.TransformationRequest
	Handler         Handler

	locker          xsync.Mutex
	trackCount      int
	reportedCount   int
	fallbackRequest types.TransformationRequest
	isComplete      bool
	notified        bool
}

func New(
	originalRequest types.TransformationRequest,
	handler Handler,
) *Negotiator {
	return &Negotiator{
		OriginalRequest: originalRequest,
		Handler:         handler,
		fallbackRequest: originalRequest,
	}
}

// RegisterTrack announces a track that is going to report its request.
func (n *Negotiator) RegisterTrack(ctx context.Context) error {
	return xsync.DoR1(ctx, &n.locker, func() error {
		if n.isComplete {
			return ErrAlreadyComplete{}
		}
		n.trackCount++
		return nil
	})
}

// OnTransformationRequestFinalized merges the request achieved by a track
// into the fallback request.
func (n *Negotiator) OnTransformationRequestFinalized(
	ctx context.Context,
	achieved types.TransformationRequest,
) (_err error) {
	logger.Debugf(ctx, "OnTransformationRequestFinalized(%s)", achieved)
	defer func() { logger.Debugf(ctx, "/OnTransformationRequestFinalized(%s): %v", achieved, _err) }()

	var notify bool
	var fallback types.TransformationRequest
	n.locker.Do(ctx, func() {
		if n.isComplete {
			_err = ErrAlreadyComplete{}
			return
		}
		n.merge(achieved)
		n.reportedCount++
		if n.reportedCount < n.trackCount {
			return
		}
		n.isComplete = true
		if !n.fallbackRequest.Equal(n.OriginalRequest) && !n.notified {
			n.notified = true
			notify = true
			fallback = n.fallbackRequest
		}
	})
	if _err != nil {
		return _err
	}
	if notify {
		logger.Infof(ctx, "fallback applied: %s -> %s", n.OriginalRequest, fallback)
		if n.Handler != nil {
			n.Handler.OnFallbackApplied(ctx, n.OriginalRequest, fallback)
		}
	}
	return nil
}

func (n *Negotiator) merge(achieved types.TransformationRequest) {
	original := n.OriginalRequest
	if achieved.AudioMimeType != original.AudioMimeType {
		n.fallbackRequest.AudioMimeType = achieved.AudioMimeType
	}
	if achieved.VideoMimeType != original.VideoMimeType {
		n.fallbackRequest.VideoMimeType = achieved.VideoMimeType
	}
	if achieved.OutputHeight != original.OutputHeight {
		n.fallbackRequest.OutputHeight = achieved.OutputHeight
	}
	if achieved.VideoQuality != original.VideoQuality {
		n.fallbackRequest.VideoQuality = achieved.VideoQuality
	}
	if achieved.HDRMode != original.HDRMode {
		n.fallbackRequest.HDRMode = achieved.HDRMode
	}
}

// IsComplete returns true if every registered track has reported.
func (n *Negotiator) IsComplete(ctx context.Context) bool {
	return xsync.DoR1(ctx, &n.locker, func() bool {
		return n.isComplete
	})
}

// FallbackRequest returns the merged request reported so far.
func (n *Negotiator) FallbackRequest(ctx context.Context) types.TransformationRequest {
	return xsync.DoR1(ctx, &n.locker, func() types.TransformationRequest {
		return n.fallbackRequest
	})
}

func (n *Negotiator) String() string {
	return fmt.Sprintf("Negotiator(%s)", n.OriginalRequest)
}
