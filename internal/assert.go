package internal

import (
	"context"

	"github.com/xaionaro-go/avtransformer/logger"
)

// Assert panics through the logger if the condition does not hold.
func Assert(
	ctx context.Context,
	mustBeTrue bool,
	extraArgs ...any,
) {
	if mustBeTrue {
		return
	}
	logger.Panic(ctx, append([]any{"assertion failed"}, extraArgs...)...)
}
