package framegraph

import (
	"context"
	"errors"
	"fmt"

	"github.com/xaionaro-go/avtransformer/executor"
	"github.com/xaionaro-go/avtransformer/frame"
	"github.com/xaionaro-go/avtransformer/logger"
	"github.com/xaionaro-go/avtransformer/types"
	"github.com/xaionaro-go/xsync"
)

type couplerEntry struct {
	Texture            frame.Texture
	PresentationTimeUs int64
	IsEndOfStream      bool
}

// ChainCoupler connects the output of a producing node to the input of a
// consuming node. Frames produced while the consumer has no free slot are
// queued; nothing is ever dropped and the order is kept.
type ChainCoupler struct {
	Producer     FrameProducer
	Consumer     FrameConsumer
	Submitter    TaskSubmitter
	ErrorHandler types.ErrorHandler

	locker         xsync.Mutex
	queue          []couplerEntry
	availableSlots int
}

var (
	_ InputListener  = (*ChainCoupler)(nil)
	_ OutputListener = (*ChainCoupler)(nil)
)

func NewChainCoupler(
	producer FrameProducer,
	consumer FrameConsumer,
	submitter TaskSubmitter,
	errorHandler types.ErrorHandler,
) *ChainCoupler {
	return &ChainCoupler{
		Producer:     producer,
		Consumer:     consumer,
		Submitter:    submitter,
		ErrorHandler: errorHandler,
	}
}

func (c *ChainCoupler) String() string {
	return fmt.Sprintf("ChainCoupler(%v->%v)", c.Producer, c.Consumer)
}

func (c *ChainCoupler) submit(ctx context.Context, task executor.Task) {
	err := c.Submitter.Submit(ctx, task)
	if err == nil {
		return
	}
	if errors.As(err, &executor.ErrRejected{}) {
		logger.Debugf(ctx, "%s: task rejected: %v", c, err)
		return
	}
	if c.ErrorHandler != nil {
		c.ErrorHandler.HandleError(ctx, fmt.Errorf("unable to submit a task: %w", err))
	}
}

func (c *ChainCoupler) forwardFrame(ctx context.Context, entry couplerEntry) {
	c.submit(ctx, func(ctx context.Context) error {
		return c.Consumer.QueueInputFrame(ctx, entry.Texture, entry.PresentationTimeUs)
	})
}

func (c *ChainCoupler) forwardEndOfStream(ctx context.Context) {
	c.submit(ctx, c.Consumer.SignalEndOfCurrentInputStream)
}

// OnReadyToAcceptInputFrame forwards the oldest queued frame (with the
// end-of-stream markers around it) or remembers the free slot.
func (c *ChainCoupler) OnReadyToAcceptInputFrame(ctx context.Context) {
	c.locker.Do(xsync.WithNoLogging(ctx, true), func() {
		forwarded := false
		for len(c.queue) > 0 {
			entry := c.queue[0]
			if !entry.IsEndOfStream && forwarded {
				return
			}
			c.queue = c.queue[1:]
			if entry.IsEndOfStream {
				c.forwardEndOfStream(ctx)
				continue
			}
			c.forwardFrame(ctx, entry)
			forwarded = true
		}
		if !forwarded {
			c.availableSlots++
		}
	})
}

func (c *ChainCoupler) OnInputFrameProcessed(ctx context.Context, inputTexture frame.Texture) {
	c.submit(ctx, func(ctx context.Context) error {
		return c.Producer.ReleaseOutputFrame(ctx, inputTexture)
	})
}

func (c *ChainCoupler) OnOutputFrameAvailable(
	ctx context.Context,
	outputTexture frame.Texture,
	presentationTimeUs int64,
) {
	entry := couplerEntry{
		Texture:            outputTexture,
		PresentationTimeUs: presentationTimeUs,
	}
	c.locker.Do(xsync.WithNoLogging(ctx, true), func() {
		if c.availableSlots > 0 && len(c.queue) == 0 {
			c.availableSlots--
			c.forwardFrame(ctx, entry)
			return
		}
		c.queue = append(c.queue, entry)
	})
}

func (c *ChainCoupler) OnCurrentOutputStreamEnded(ctx context.Context) {
	c.locker.Do(xsync.WithNoLogging(ctx, true), func() {
		if len(c.queue) > 0 {
			c.queue = append(c.queue, couplerEntry{
				Texture:       frame.UnsetTexture,
				IsEndOfStream: true,
			})
			return
		}
		c.forwardEndOfStream(ctx)
	})
}

// QueueLength returns the amount of queued frames and markers.
func (c *ChainCoupler) QueueLength() int {
	return xsync.DoR1(xsync.WithNoLogging(context.Background(), true), &c.locker, func() int {
		return len(c.queue)
	})
}

func (c *ChainCoupler) AvailableSlots() int {
	return xsync.DoR1(xsync.WithNoLogging(context.Background(), true), &c.locker, func() int {
		return c.availableSlots
	})
}
