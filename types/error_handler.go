package types

import (
	"context"
)

// ErrorHandler receives errors raised asynchronously (outside of the call
// stack of the caller), for example on the GPU worker or by the muxer
// watchdog.
type ErrorHandler interface {
	HandleError(ctx context.Context, err error)
}

type ErrorHandlerFunc func(ctx context.Context, err error)

func (fn ErrorHandlerFunc) HandleError(ctx context.Context, err error) {
	fn(ctx, err)
}
