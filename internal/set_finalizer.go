// Package internal contains libav helpers shared by the libav-backed
// packages.
package internal

import (
	"context"
	"runtime"

	"github.com/xaionaro-go/avtransformer/logger"
)

// SetFinalizerFree frees the libav object once it is garbage collected.
func SetFinalizerFree[T interface{ Free() }](
	ctx context.Context,
	freer T,
) {
	runtime.SetFinalizer(freer, func(freer T) {
		logger.Debugf(ctx, "freeing %T", freer)
		freer.Free()
	})
}
