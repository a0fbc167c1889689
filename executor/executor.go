// Package executor runs tasks sequentially on a single worker goroutine.
//
// All the GPU work of the frame processing graph goes through an Executor:
// the worker is the only goroutine that touches the gpu.Context.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/facebookincubator/go-belt/tool/experimental/errmon"
	"github.com/xaionaro-go/avtransformer/helpers/closuresignaler"
	"github.com/xaionaro-go/avtransformer/logger"
	"github.com/xaionaro-go/avtransformer/types"
	"github.com/xaionaro-go/observability"
	"github.com/xaionaro-go/xcontext"
	"github.com/xaionaro-go/xsync"
	"go.uber.org/atomic"
)

type Task func(ctx context.Context) error

type queueItem struct {
	Task Task

	// Force makes the task run even if the executor cancels its tasks.
	Force bool

	// OnDrop is called if the task is dropped without running.
	OnDrop func()
}

type Counters struct {
	Executed atomic.Uint64
	Dropped  atomic.Uint64
	Failed   atomic.Uint64
}

type Executor struct {
	Config       config
	ErrorHandler types.ErrorHandler
	Counters     Counters

	locker            xsync.Mutex
	normalTasks       []queueItem
	highPriorityTasks []queueItem
	wakeCh            chan struct{}
	isStopping        bool

	shouldCancelTasks atomic.Bool
	isRejecting       atomic.Bool
	hasFailed         atomic.Bool
	isBusy            atomic.Bool

	workerCtx    context.Context
	workerClosed *closuresignaler.ClosureSignaler
}

// New starts the worker goroutine. The worker outlives ctx cancellation; it
// is stopped only by Release.
func New(
	ctx context.Context,
	errorHandler types.ErrorHandler,
	opts ...Option,
) *Executor {
	e := &Executor{
		Config:       Options(opts).config(),
		ErrorHandler: errorHandler,
		wakeCh:       make(chan struct{}, 1),
		workerClosed: closuresignaler.New(),
	}
	ctx = logger.WithField(xcontext.DetachDone(ctx), "executor", e.Config.Name)
	e.workerCtx = ctxWithWorker(ctx, e)
	observability.Go(ctx, func(ctx context.Context) {
		defer e.workerClosed.Close(ctx)
		e.workerLoop(e.workerCtx)
	})
	return e
}

func (e *Executor) String() string {
	return e.Config.Name
}

// Submit queues a task to run after the already queued tasks.
func (e *Executor) Submit(ctx context.Context, task Task) error {
	return e.submit(ctx, queueItem{Task: task}, false)
}

// SubmitWithHighPriority queues a task to run before any normal task that
// has not started yet.
func (e *Executor) SubmitWithHighPriority(ctx context.Context, task Task) error {
	return e.submit(ctx, queueItem{Task: task}, true)
}

// SubmitAndWait runs the task on the worker and waits for its result. If
// called from the worker itself the task runs in place.
func (e *Executor) SubmitAndWait(ctx context.Context, task Task) (_err error) {
	logger.Tracef(ctx, "SubmitAndWait")
	defer func() { logger.Tracef(ctx, "/SubmitAndWait: %v", _err) }()
	if e.IsOnWorker(ctx) {
		return task(ctx)
	}
	resultCh := make(chan error, 1)
	err := e.submit(ctx, queueItem{
		Task: func(ctx context.Context) error {
			err := e.callTask(ctx, task)
			resultCh <- err
			return err
		},
		OnDrop: func() {
			resultCh <- ErrCancelled{}
		},
	}, false)
	if err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-resultCh:
		return err
	}
}

func (e *Executor) submit(ctx context.Context, item queueItem, highPriority bool) error {
	if e.isRejecting.Load() {
		return ErrRejected{}
	}
	err := xsync.DoR1(xsync.WithNoLogging(ctx, true), &e.locker, func() error {
		if e.isStopping {
			return ErrRejected{}
		}
		if highPriority {
			e.highPriorityTasks = append(e.highPriorityTasks, item)
		} else {
			e.normalTasks = append(e.normalTasks, item)
		}
		return nil
	})
	if err != nil {
		return err
	}
	e.wake()
	return nil
}

func (e *Executor) wake() {
	select {
	case e.wakeCh <- struct{}{}:
	default:
	}
}

func (e *Executor) nextTask(ctx context.Context) (queueItem, bool) {
	for {
		var (
			item     queueItem
			ok       bool
			stopping bool
		)
		e.locker.Do(xsync.WithNoLogging(ctx, true), func() {
			switch {
			case len(e.highPriorityTasks) > 0:
				item, e.highPriorityTasks = e.highPriorityTasks[0], e.highPriorityTasks[1:]
				ok = true
			case len(e.normalTasks) > 0:
				item, e.normalTasks = e.normalTasks[0], e.normalTasks[1:]
				ok = true
			default:
				stopping = e.isStopping
			}
			if ok {
				e.isBusy.Store(true)
			}
		})
		if ok {
			return item, true
		}
		if stopping {
			return queueItem{}, false
		}
		<-e.wakeCh
	}
}

func (e *Executor) workerLoop(ctx context.Context) {
	logger.Debugf(ctx, "workerLoop")
	defer func() { logger.Debugf(ctx, "/workerLoop") }()
	for {
		item, ok := e.nextTask(ctx)
		if !ok {
			return
		}
		e.runTask(ctx, item)
		e.isBusy.Store(false)
	}
}

func (e *Executor) runTask(ctx context.Context, item queueItem) {
	if e.shouldCancelTasks.Load() && !item.Force {
		e.Counters.Dropped.Inc()
		if item.OnDrop != nil {
			item.OnDrop()
		}
		return
	}
	err := e.callTask(ctx, item.Task)
	e.Counters.Executed.Inc()
	if err == nil {
		return
	}
	e.Counters.Failed.Inc()
	e.handleError(ctx, err)
}

func (e *Executor) callTask(ctx context.Context, task Task) (_err error) {
	defer func() {
		if r := recover(); r != nil {
			_err = ErrPanic{Value: r}
		}
	}()
	return task(ctx)
}

// handleError cancels the queued tasks and reports the first error.
func (e *Executor) handleError(ctx context.Context, err error) {
	errmon.ObserveErrorCtx(ctx, err)
	e.isRejecting.Store(true)
	e.shouldCancelTasks.Store(true)
	if !e.hasFailed.CompareAndSwap(false, true) {
		logger.Debugf(ctx, "an error after the first one: %v", err)
		return
	}
	logger.Errorf(ctx, "task failed: %v", err)
	if e.ErrorHandler != nil {
		e.ErrorHandler.HandleError(ctx, err)
	}
}

// HasFailed returns true if a task returned an error.
func (e *Executor) HasFailed() bool {
	return e.hasFailed.Load()
}

// IsIdle returns true if no task is running and none is queued.
func (e *Executor) IsIdle(ctx context.Context) bool {
	return xsync.DoR1(xsync.WithNoLogging(ctx, true), &e.locker, func() bool {
		return !e.isBusy.Load() && len(e.normalTasks) == 0 && len(e.highPriorityTasks) == 0
	})
}

// Flush drops every queued task and waits until the task running at the
// moment of the call (if any) has finished. Tasks submitted during Flush
// are kept.
func (e *Executor) Flush(ctx context.Context) (_err error) {
	logger.Tracef(ctx, "Flush")
	defer func() { logger.Tracef(ctx, "/Flush: %v", _err) }()
	if e.hasFailed.Load() {
		return ErrRejected{}
	}
	flushed := make(chan struct{})
	var dropped []queueItem
	err := xsync.DoR1(xsync.WithNoLogging(ctx, true), &e.locker, func() error {
		if e.isStopping {
			return ErrRejected{}
		}
		var kept []queueItem
		for _, item := range e.highPriorityTasks {
			if item.Force {
				kept = append(kept, item)
				continue
			}
			dropped = append(dropped, item)
		}
		dropped = append(dropped, e.normalTasks...)
		e.normalTasks = nil
		e.highPriorityTasks = append(kept, queueItem{
			Task: func(ctx context.Context) error {
				close(flushed)
				return nil
			},
			Force: true,
		})
		return nil
	})
	if err != nil {
		return err
	}
	for _, item := range dropped {
		e.Counters.Dropped.Inc()
		if item.OnDrop != nil {
			item.OnDrop()
		}
	}
	logger.Debugf(ctx, "dropped %d tasks", len(dropped))
	e.wake()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-flushed:
		return nil
	}
}

// Release cancels pending tasks, runs releaseTask after the currently
// running task and stops the worker. It waits up to timeout; a timeout is
// reported to the ErrorHandler and returned.
func (e *Executor) Release(
	ctx context.Context,
	releaseTask Task,
	timeout time.Duration,
) (_err error) {
	logger.Tracef(ctx, "Release")
	defer func() { logger.Tracef(ctx, "/Release: %v", _err) }()
	if timeout <= 0 {
		timeout = e.Config.DefaultReleaseTimeout
	}

	releaseErrCh := make(chan error, 1)
	alreadyStopping := false
	e.locker.Do(xsync.WithNoLogging(ctx, true), func() {
		if e.isStopping {
			alreadyStopping = true
			return
		}
		e.isRejecting.Store(true)
		e.shouldCancelTasks.Store(true)
		e.isStopping = true
		e.highPriorityTasks = append(e.highPriorityTasks, queueItem{
			Task: func(ctx context.Context) error {
				if releaseTask == nil {
					releaseErrCh <- nil
					return nil
				}
				err := releaseTask(ctx)
				releaseErrCh <- err
				return nil
			},
			Force: true,
		})
	})
	if alreadyStopping {
		return fmt.Errorf("already released")
	}
	e.wake()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-timer.C:
		err := ErrReleaseTimeout{Timeout: timeout}
		if e.ErrorHandler != nil {
			e.ErrorHandler.HandleError(ctx, err)
		}
		return err
	case err := <-releaseErrCh:
		if err != nil {
			return fmt.Errorf("the release task failed: %w", err)
		}
	}

	select {
	case <-timer.C:
		err := ErrReleaseTimeout{Timeout: timeout}
		if e.ErrorHandler != nil {
			e.ErrorHandler.HandleError(ctx, err)
		}
		return err
	case <-e.workerClosed.CloseChan():
		return nil
	}
}
