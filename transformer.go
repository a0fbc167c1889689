// Package avtransformer reads an audio/video source, applies the configured
// effects to the video, re-encodes the tracks (or copies them as is, when
// nothing has to change) and muxes the result.
package avtransformer

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/xaionaro-go/avtransformer/effect"
	"github.com/xaionaro-go/avtransformer/helpers/closuresignaler"
	"github.com/xaionaro-go/avtransformer/logger"
	"github.com/xaionaro-go/avtransformer/muxer"
	"github.com/xaionaro-go/avtransformer/source"
	"github.com/xaionaro-go/avtransformer/types"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/xsync"
	"go.uber.org/atomic"
)

// ErrAlreadyStarted is returned by Start if it was already called.
type ErrAlreadyStarted struct{}

func (ErrAlreadyStarted) Error() string {
	return "the transformation is already started"
}

// ErrNotStarted is returned by Wait if Start was not called.
type ErrNotStarted struct{}

func (ErrNotStarted) Error() string {
	return "the transformation is not started"
}

// Transformer runs a single transformation: Start it once, then Wait for
// the result (or Cancel it) and Release it.
type Transformer struct {
	ID           uuid.UUID
	Config       Config
	Dependencies Dependencies

	effects []effect.Effect

	locker    xsync.Mutex
	isStarted bool
	cancelFn  context.CancelFunc
	result    types.TransformationResult

	isCancelled     atomic.Bool
	progressState   atomic.Int32
	progressPercent atomic.Int32
	done            *closuresignaler.ClosureSignaler
	asyncErrCh      chan error
}

func New(
	ctx context.Context,
	cfg Config,
	deps Dependencies,
) (_ret *Transformer, _err error) {
	logger.Tracef(ctx, "New")
	defer func() { logger.Tracef(ctx, "/New: %v", _err) }()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	effects, err := effect.FromConfigs(cfg.Effects)
	if err != nil {
		return nil, err
	}
	if cfg.ControlTick <= 0 {
		cfg.ControlTick = DefaultControlTick
	}
	return &Transformer{
		ID:           uuid.New(),
		Config:       cfg,
		Dependencies: deps,
		effects:      effects,
		done:         closuresignaler.New(),
		asyncErrCh:   make(chan error, 1),
	}, nil
}

func (t *Transformer) String() string {
	return fmt.Sprintf("Transformer(%s)", t.ID)
}

// Start runs the transformation of src into backend in the background; the
// transformation takes the ownership of both.
func (t *Transformer) Start(
	ctx context.Context,
	src source.Source,
	backend muxer.Backend,
) (_err error) {
	logger.Debugf(ctx, "Start(%s)", src)
	defer func() { logger.Debugf(ctx, "/Start(%s): %v", src, _err) }()
	ctx = logger.WithField(ctx, "transformation_id", t.ID.String())
	t.locker.Do(ctx, func() {
		if t.isStarted {
			_err = ErrAlreadyStarted{}
			return
		}
		t.isStarted = true
		ctx, t.cancelFn = context.WithCancel(ctx)
	})
	if _err != nil {
		return _err
	}
	if t.isCancelled.Load() {
		t.cancelFn()
	}
	t.progressState.Store(int32(ProgressStateWaitingForAvailability))
	observability.Go(ctx, func(ctx context.Context) {
		defer t.done.Close(ctx)
		result, err := t.transform(ctx, src, backend)
		t.finish(ctx, result, err)
	})
	return nil
}

// Progress returns the state of the progress and, if the state is
// ProgressStateAvailable, the progress in percents.
func (t *Transformer) Progress() (ProgressState, int) {
	state := ProgressState(t.progressState.Load())
	if state != ProgressStateAvailable {
		return state, 0
	}
	return state, int(t.progressPercent.Load())
}

// Cancel stops the transformation and waits until it is stopped. The output
// is released for cancellation and the listener is not notified.
func (t *Transformer) Cancel(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Cancel")
	defer func() { logger.Debugf(ctx, "/Cancel: %v", _err) }()
	t.isCancelled.Store(true)
	isStarted := xsync.DoR1(ctx, &t.locker, func() bool {
		if t.cancelFn != nil {
			t.cancelFn()
		}
		return t.isStarted
	})
	if !isStarted {
		return nil
	}
	return t.done.Wait(ctx)
}

// Wait blocks until the transformation is finished and returns its result.
func (t *Transformer) Wait(ctx context.Context) (types.TransformationResult, error) {
	if !xsync.DoR1(ctx, &t.locker, func() bool { return t.isStarted }) {
		return types.TransformationResult{}, ErrNotStarted{}
	}
	if err := t.done.Wait(ctx); err != nil {
		return types.TransformationResult{}, err
	}
	result := xsync.DoR1(ctx, &t.locker, func() types.TransformationResult {
		return t.result
	})
	if result.Err != nil {
		return result, result.Err
	}
	return result, nil
}

// Release cancels the transformation if it is still running.
func (t *Transformer) Release(ctx context.Context) error {
	if t.done.IsClosed() {
		return nil
	}
	return t.Cancel(ctx)
}

func (t *Transformer) finish(
	ctx context.Context,
	result types.TransformationResult,
	err error,
) {
	t.progressState.Store(int32(ProgressStateNotStarted))
	listener := t.Dependencies.Listener
	switch {
	case t.isCancelled.Load() || ctx.Err() != nil:
		if err != nil {
			logger.Debugf(ctx, "an error during the cancellation: %v", err)
		}
		result.Err = types.NewErrTransformation(types.ErrorCodeCancelled, "", context.Canceled)
	case err != nil:
		result.Err = types.AsErrTransformation(err)
		logger.Errorf(ctx, "the transformation failed: %v", result.Err)
		if listener != nil {
			listener.OnError(ctx, result, result.Err)
		}
	default:
		logger.Infof(ctx, "the transformation is completed: %s", resultString(result))
		if listener != nil {
			listener.OnCompleted(ctx, result)
		}
	}
	t.locker.Do(ctx, func() {
		t.result = result
	})
}

func (t *Transformer) onAsyncError(ctx context.Context, err error) {
	select {
	case t.asyncErrCh <- err:
	default:
		logger.Debugf(ctx, "an asynchronous error after the first one: %v", err)
	}
}

func (t *Transformer) onFallbackApplied(
	ctx context.Context,
	original, fallback types.TransformationRequest,
) {
	if listener := t.Dependencies.Listener; listener != nil {
		listener.OnFallbackApplied(ctx, original, fallback)
	}
}
