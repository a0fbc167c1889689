package audio

import (
	"context"
	"fmt"
	"strings"

	"github.com/xaionaro-go/avtransformer/codec"
	"github.com/xaionaro-go/avtransformer/logger"
)

// Chain runs processors one after another; the inactive ones are skipped.
type Chain struct {
	Processors []Processor

	active       []Processor
	endQueued    []bool
	inputEnded   bool
	output       []byte
	pendingErr   error
	isConfigured bool
}

var _ Processor = (*Chain)(nil)

func NewChain(processors ...Processor) *Chain {
	return &Chain{
		Processors: processors,
	}
}

func (c *Chain) String() string {
	var names []string
	for _, p := range c.Processors {
		names = append(names, p.String())
	}
	return fmt.Sprintf("Chain(%s)", strings.Join(names, ","))
}

func (c *Chain) Configure(ctx context.Context, input *codec.Format) (*codec.Format, error) {
	c.active = c.active[:0]
	format := input
	for _, p := range c.Processors {
		output, err := p.Configure(ctx, format)
		if err != nil {
			return nil, fmt.Errorf("unable to configure %s: %w", p, err)
		}
		if !p.IsActive() {
			continue
		}
		c.active = append(c.active, p)
		format = output
	}
	c.endQueued = make([]bool, len(c.active))
	c.isConfigured = true
	c.Flush()
	return format, nil
}

func (c *Chain) IsActive() bool {
	return len(c.active) > 0
}

func (c *Chain) QueueInput(ctx context.Context, data []byte) error {
	if err := c.pendingErr; err != nil {
		c.pendingErr = nil
		return err
	}
	if !c.isConfigured {
		return fmt.Errorf("%s is not configured", c)
	}
	if !c.IsActive() {
		c.output = append(c.output, data...)
		return nil
	}
	if err := c.active[0].QueueInput(ctx, data); err != nil {
		return fmt.Errorf("%s: %w", c.active[0], err)
	}
	return c.pump(ctx)
}

func (c *Chain) pump(ctx context.Context) error {
	for idx, p := range c.active {
		out := p.Output()
		if idx == len(c.active)-1 {
			c.output = append(c.output, out...)
			continue
		}
		next := c.active[idx+1]
		if len(out) > 0 {
			if err := next.QueueInput(ctx, out); err != nil {
				return fmt.Errorf("%s: %w", next, err)
			}
		}
		if p.IsEnded() && !c.endQueued[idx+1] {
			c.endQueued[idx+1] = true
			next.QueueEndOfStream(ctx)
		}
	}
	return nil
}

func (c *Chain) Output() []byte {
	out := c.output
	c.output = nil
	return out
}

func (c *Chain) QueueEndOfStream(ctx context.Context) {
	if c.inputEnded {
		return
	}
	c.inputEnded = true
	if !c.IsActive() {
		return
	}
	c.endQueued[0] = true
	c.active[0].QueueEndOfStream(ctx)
	if err := c.pump(ctx); err != nil {
		logger.Errorf(ctx, "unable to drain %s: %v", c, err)
		c.pendingErr = err
	}
}

func (c *Chain) IsEnded() bool {
	if !c.inputEnded || len(c.output) > 0 {
		return false
	}
	return !c.IsActive() || c.active[len(c.active)-1].IsEnded()
}

func (c *Chain) Flush() {
	for _, p := range c.active {
		p.Flush()
	}
	for idx := range c.endQueued {
		c.endQueued[idx] = false
	}
	c.inputEnded = false
	c.output = nil
	c.pendingErr = nil
}

func (c *Chain) Reset() {
	for _, p := range c.Processors {
		p.Reset()
	}
	c.active = c.active[:0]
	c.endQueued = nil
	c.isConfigured = false
	c.inputEnded = false
	c.output = nil
	c.pendingErr = nil
}
