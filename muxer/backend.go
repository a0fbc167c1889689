// Package muxer multiplexes the encoded tracks of a transformation into the
// output container.
package muxer

import (
	"context"
	"time"

	"github.com/xaionaro-go/avtransformer/codec"
)

// Backend is the container writer.
type Backend interface {
	// AddTrack adds a track and returns its index.
	AddTrack(ctx context.Context, format *codec.Format) (int, error)
	WriteSampleData(ctx context.Context, trackIndex int, data []byte, isKeyFrame bool, presentationTimeUs int64) error

	// Release finalizes the output; if forCancellation is set the output is
	// going to be discarded and may be left incomplete.
	Release(ctx context.Context, forCancellation bool) error

	// MaxDelayBetweenSamples returns the maximal delay between two written
	// samples before the muxing is considered stalled; a non-positive value
	// disables the check.
	MaxDelayBetweenSamples() time.Duration
}
