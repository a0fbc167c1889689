// Package closuresignaler provides a one-shot "closed" signal that can be
// waited on from many goroutines.
package closuresignaler

import (
	"context"
	"sync"
)

type ClosureSignaler struct {
	closeOnce sync.Once
	c         chan struct{}
}

func New() *ClosureSignaler {
	return &ClosureSignaler{
		c: make(chan struct{}),
	}
}

func (c *ClosureSignaler) CloseChan() <-chan struct{} {
	return c.c
}

// Close marks the signaler closed; returns true only for the call that
// actually closed it.
func (c *ClosureSignaler) Close(ctx context.Context) bool {
	closed := false
	c.closeOnce.Do(func() {
		close(c.c)
		closed = true
	})
	return closed
}

func (c *ClosureSignaler) IsClosed() bool {
	select {
	case <-c.c:
		return true
	default:
		return false
	}
}

// Wait blocks until the signaler is closed or ctx is done.
func (c *ClosureSignaler) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.c:
		return nil
	}
}
