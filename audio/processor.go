package audio

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/avtransformer/codec"
)

// Processor transforms raw audio. The data flow is push-pull: the input is
// queued with QueueInput and the result is collected with Output; after
// QueueEndOfStream the remaining data is flushed to the output and IsEnded
// becomes true once it is collected.
type Processor interface {
	fmt.Stringer

	// Configure prepares the processor for the given input and returns the
	// output format.
	Configure(ctx context.Context, input *codec.Format) (*codec.Format, error)

	// IsActive returns false if the processor does not change the audio with
	// the current configuration.
	IsActive() bool

	QueueInput(ctx context.Context, data []byte) error

	// Output returns the processed data; the returned slice is owned by the
	// caller.
	Output() []byte

	QueueEndOfStream(ctx context.Context)
	IsEnded() bool

	// Flush drops the buffered data, keeping the configuration.
	Flush()

	// Reset drops the buffered data and the configuration.
	Reset()
}

type ErrUnsupportedFormat struct {
	Format *codec.Format
}

func (e ErrUnsupportedFormat) Error() string {
	return fmt.Sprintf("unsupported audio format: %s", e.Format)
}

// ResamplerFactory creates a processor converting the audio into the given
// sample rate and channel count.
type ResamplerFactory func(ctx context.Context, sampleRate, channels int) (Processor, error)
