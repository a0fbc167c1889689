// Package codec describes media formats, the buffers carrying them and the
// interface of the decoders and encoders a transformation drives.
package codec

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/avtransformer/gpu"
)

// Codec is a decoder or an encoder. The methods are non-blocking: if the
// codec cannot accept or produce data right now it returns nil.
//
// The input side is a two-step handshake: DequeueInputBuffer lends an input
// buffer to fill, QueueInputBuffer hands it back to the codec. The output
// side is symmetric: OutputBuffer peeks the oldest output buffer and
// ReleaseOutputBuffer consumes it.
type Codec interface {
	fmt.Stringer

	Name() string

	// ConfigurationFormat returns the format the codec was configured with;
	// for encoders it may differ from the requested one.
	ConfigurationFormat() *Format

	// InputSurface returns the surface a video encoder reads its frames from,
	// nil for other codecs.
	InputSurface() gpu.SurfaceTarget

	DequeueInputBuffer(ctx context.Context) (*Buffer, error)
	QueueInputBuffer(ctx context.Context) error

	// SignalEndOfInputStream ends the input of a codec fed through
	// InputSurface.
	SignalEndOfInputStream(ctx context.Context) error

	// OutputFormat returns the format of the output buffers, nil until it is
	// known.
	OutputFormat(ctx context.Context) (*Format, error)
	OutputBuffer(ctx context.Context) (*Buffer, error)

	// ReleaseOutputBuffer consumes the current output buffer; video decoders
	// render it into their output surface if render is true.
	ReleaseOutputBuffer(ctx context.Context, render bool) error

	IsEnded() bool
	Release(ctx context.Context) error
}

type DecoderFactory interface {
	CreateForAudioDecoding(ctx context.Context, format *Format) (Codec, error)

	// CreateForVideoDecoding creates a decoder rendering into outputSurface.
	CreateForVideoDecoding(
		ctx context.Context,
		format *Format,
		outputSurface *gpu.InputSurface,
		enableToneMapping bool,
	) (Codec, error)
}

type EncoderFactory interface {
	// CreateForAudioEncoding and CreateForVideoEncoding may configure the
	// encoder with settings different from the requested ones if the
	// requested are not supported; Codec.ConfigurationFormat reports them.
	CreateForAudioEncoding(ctx context.Context, format *Format) (Codec, error)
	CreateForVideoEncoding(ctx context.Context, format *Format) (Codec, error)
}
