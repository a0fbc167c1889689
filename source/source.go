// Package source provides the compressed samples of the input media.
package source

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/avtransformer/codec"
)

type ReadResult int

const (
	ReadResultUndefined = ReadResult(iota)
	// ReadResultFormatChanged: the format of the track changed, the buffer
	// was not filled; the new format is in Tracks.
	ReadResultFormatChanged
	ReadResultBufferRead
	ReadResultNothingAvailable
	ReadResultEndOfStream
)

func (r ReadResult) String() string {
	switch r {
	case ReadResultUndefined:
		return "undefined"
	case ReadResultFormatChanged:
		return "format_changed"
	case ReadResultBufferRead:
		return "buffer_read"
	case ReadResultNothingAvailable:
		return "nothing_available"
	case ReadResultEndOfStream:
		return "end_of_stream"
	}
	return fmt.Sprintf("ReadResult(%d)", int(r))
}

type TrackFormat struct {
	Index  int
	Format *codec.Format
}

func (t TrackFormat) String() string {
	return fmt.Sprintf("#%d:%s", t.Index, t.Format)
}

// Source is a demuxed media input. Read is non-blocking in the sense that
// it returns ReadResultNothingAvailable instead of waiting for the samples
// of a track that are not available yet.
type Source interface {
	fmt.Stringer

	// Prepare opens the input and discovers its tracks.
	Prepare(ctx context.Context) error
	Tracks() []TrackFormat

	// Read fills buf with the next sample of the track.
	Read(ctx context.Context, trackIndex int, buf *codec.Buffer) (ReadResult, error)

	// StartTimeUs returns the presentation time the input starts at.
	StartTimeUs() int64

	DurationUs() int64
	Close(ctx context.Context) error
}
