package samplepipeline

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/avtransformer/codec"
	"github.com/xaionaro-go/avtransformer/logger"
	"github.com/xaionaro-go/avtransformer/types"
)

// Passthrough copies the compressed samples of the source to the muxer,
// only moving them to the output timeline.
type Passthrough struct {
	base
	Format *codec.Format

	buffer     *codec.Buffer
	hasPending bool
	inputEnded bool
}

var _ Pipeline = (*Passthrough)(nil)

func NewPassthrough(
	ctx context.Context,
	format *codec.Format,
	streamStartPositionUs int64,
	speed float64,
	request types.TransformationRequest,
	muxer Muxer,
	fallback FallbackReporter,
) (_ret *Passthrough, _err error) {
	logger.Debugf(ctx, "NewPassthrough(%s)", format)
	defer func() { logger.Debugf(ctx, "/NewPassthrough(%s): %v", format, _err) }()
	trackType := format.MediaType()
	p := &Passthrough{
		base: newBase(
			fmt.Sprintf("%sPassthroughSamplePipeline", trackType),
			trackType, muxer, fallback, request, streamStartPositionUs, speed,
		),
		Format: format.Clone(),
		buffer: codec.GetBuffer(format.MaxInputSize),
	}
	if err := p.reportRequest(ctx, request); err != nil {
		return nil, err
	}
	if err := p.addOutputFormat(ctx, p.Format); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Passthrough) DequeueInputBuffer(ctx context.Context) (*codec.Buffer, error) {
	if p.hasPending || p.inputEnded {
		return nil, nil
	}
	return p.buffer, nil
}

func (p *Passthrough) QueueInputBuffer(ctx context.Context) error {
	if p.hasPending || p.inputEnded {
		return fmt.Errorf("no input buffer is dequeued")
	}
	if p.buffer.IsEndOfStream() {
		logger.Debugf(ctx, "%s: end of input", p)
		p.inputEnded = true
		p.setState(ctx, StateDraining)
		return nil
	}
	p.buffer.PresentationTimeUs = p.outputTimeUs(p.buffer.PresentationTimeUs)
	p.hasPending = true
	p.setState(ctx, StateEncoding)
	return nil
}

func (p *Passthrough) ProcessData(ctx context.Context) (bool, error) {
	if p.IsEnded() {
		return false, nil
	}
	if p.hasPending {
		written, err := p.writeSample(ctx, p.buffer)
		if err != nil {
			return false, err
		}
		if !written {
			return false, nil
		}
		p.hasPending = false
		p.buffer.Reset()
		p.setState(ctx, StateAwaitingInput)
		return true, nil
	}
	if p.inputEnded {
		return true, p.endTrack(ctx)
	}
	return false, nil
}

func (p *Passthrough) Release(ctx context.Context) error {
	if p.buffer != nil {
		codec.PutBuffer(p.buffer)
		p.buffer = nil
	}
	return nil
}
