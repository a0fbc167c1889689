package framegraph

import (
	"context"

	"github.com/xaionaro-go/avtransformer/executor"
	"github.com/xaionaro-go/avtransformer/frame"
)

// TaskSubmitter queues tasks to the executor worker.
type TaskSubmitter interface {
	Submit(ctx context.Context, task executor.Task) error
}

// InputListener is notified by a node about its input side.
type InputListener interface {
	// OnReadyToAcceptInputFrame is called once per free input slot.
	OnReadyToAcceptInputFrame(ctx context.Context)

	// OnInputFrameProcessed is called when the input texture is not used
	// anymore.
	OnInputFrameProcessed(ctx context.Context, inputTexture frame.Texture)
}

// OutputListener is notified by a node about its output side.
type OutputListener interface {
	OnOutputFrameAvailable(ctx context.Context, outputTexture frame.Texture, presentationTimeUs int64)
	OnCurrentOutputStreamEnded(ctx context.Context)
}

// FrameConsumer is the downstream side of a coupling. Called on the worker.
type FrameConsumer interface {
	QueueInputFrame(ctx context.Context, inputTexture frame.Texture, presentationTimeUs int64) error
	SignalEndOfCurrentInputStream(ctx context.Context) error
}

// FrameProducer is the upstream side of a coupling. Called on the worker.
type FrameProducer interface {
	ReleaseOutputFrame(ctx context.Context, outputTexture frame.Texture) error
}

// Listener receives the events of a Graph. The methods are called on the
// executor worker and must not block on the graph.
type Listener interface {
	// OnOutputSizeChanged reports the size of the output frames before the
	// output surface transformation.
	OnOutputSizeChanged(ctx context.Context, width, height int)

	OnOutputFrameAvailable(ctx context.Context, presentationTimeUs int64)
	OnError(ctx context.Context, err error)

	// OnEnded is called once all the input frames were processed after
	// SignalEndOfInput.
	OnEnded(ctx context.Context)
}
