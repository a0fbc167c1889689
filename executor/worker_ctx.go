package executor

import (
	"context"
)

type ctxKeyWorkerT struct{}

var ctxKeyWorker = ctxKeyWorkerT{}

func ctxWithWorker(ctx context.Context, e *Executor) context.Context {
	return context.WithValue(ctx, ctxKeyWorker, e)
}

// IsOnWorker returns true if ctx was passed to a task by an executor worker.
func IsOnWorker(ctx context.Context) bool {
	_, ok := ctx.Value(ctxKeyWorker).(*Executor)
	return ok
}

// IsOnWorker returns true if ctx was passed to a task by the worker of this
// executor.
func (e *Executor) IsOnWorker(ctx context.Context) bool {
	worker, _ := ctx.Value(ctxKeyWorker).(*Executor)
	return worker == e
}
