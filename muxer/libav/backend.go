// Package libav implements muxer.Backend with libav (FFmpeg).
package libav

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/avtransformer/avconv"
	"github.com/xaionaro-go/avtransformer/codec"
	"github.com/xaionaro-go/avtransformer/extradata"
	"github.com/xaionaro-go/avtransformer/internal"
	"github.com/xaionaro-go/avtransformer/logger"
	"github.com/xaionaro-go/avtransformer/muxer"
	"github.com/xaionaro-go/avtransformer/urltools"
	"github.com/xaionaro-go/secret"
	"github.com/xaionaro-go/xsync"
)

const (
	DefaultMaxDelayBetweenSamples = 10 * time.Second
)

type Config struct {
	// FormatName is the libav muxer name (e.g. "mp4"); if empty it is
	// guessed from the URL.
	FormatName string

	// AuthKey is appended to the URL when opening it, and never logged.
	AuthKey secret.String

	MaxDelayBetweenSamples time.Duration
}

type outputStream struct {
	*astiav.Stream
	LastDTS int64
	HasDTS  bool
}

type Backend struct {
	URL    string
	Config Config

	locker        xsync.Mutex
	formatContext *astiav.FormatContext
	ioContext     *astiav.IOContext
	streams       []*outputStream
	headerWritten bool
	released      bool
}

var _ muxer.Backend = (*Backend)(nil)

func New(
	ctx context.Context,
	url string,
	cfg Config,
) (_ret *Backend, _err error) {
	logger.Debugf(ctx, "New(ctx, '%s', '%s')", url, cfg.FormatName)
	defer func() { logger.Debugf(ctx, "/New(ctx, '%s', '%s'): %v", url, cfg.FormatName, _err) }()
	if cfg.MaxDelayBetweenSamples == 0 {
		cfg.MaxDelayBetweenSamples = DefaultMaxDelayBetweenSamples
	}
	if cfg.FormatName == "" {
		cfg.FormatName = urltools.FormatName(url)
		logger.Debugf(ctx, "guessed the output format: '%s'", cfg.FormatName)
	}

	urlWithSecret := url + cfg.AuthKey.Get()
	formatContext, err := astiav.AllocOutputFormatContext(nil, cfg.FormatName, urlWithSecret)
	if err != nil {
		return nil, fmt.Errorf("allocating output format context failed using URL '%s': %w", url, err)
	}
	if formatContext == nil {
		return nil, fmt.Errorf("unable to allocate the output format context")
	}
	internal.SetFinalizerFree(ctx, formatContext)
	b := &Backend{
		URL:           url,
		Config:        cfg,
		formatContext: formatContext,
	}
	logger.Debugf(ctx, "output format name: '%s'", formatContext.OutputFormat().Name())

	if formatContext.OutputFormat().Flags().Has(astiav.IOFormatFlagNofile) {
		return b, nil
	}
	ioContext, err := astiav.OpenIOContext(
		urlWithSecret,
		astiav.NewIOContextFlags(astiav.IOContextFlagWrite),
		nil,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("unable to open IO context (URL: '%s'): %w", url, err)
	}
	b.ioContext = ioContext
	formatContext.SetPb(ioContext)
	return b, nil
}

func (b *Backend) String() string {
	return fmt.Sprintf("libav.Backend(%s)", b.URL)
}

func (b *Backend) AddTrack(ctx context.Context, format *codec.Format) (int, error) {
	var (
		idx int
		err error
	)
	b.locker.Do(ctx, func() {
		idx, err = b.addTrack(ctx, format)
	})
	return idx, err
}

func (b *Backend) addTrack(ctx context.Context, format *codec.Format) (int, error) {
	if b.headerWritten {
		return -1, fmt.Errorf("unable to add a track after the first sample was written")
	}
	stream := b.formatContext.NewStream(nil)
	if stream == nil {
		return -1, fmt.Errorf("unable to create a stream")
	}
	if err := avconv.ApplyFormat(stream.CodecParameters(), format); err != nil {
		return -1, fmt.Errorf("unable to set the stream parameters to %s: %w", format, err)
	}
	switch {
	case format.IsAudio() && format.SampleRate > 0:
		stream.SetTimeBase(astiav.NewRational(1, format.SampleRate))
	default:
		stream.SetTimeBase(astiav.NewRational(1, 90000))
	}
	internal.Assert(ctx, stream.Index() == len(b.streams), "stream index", stream.Index(), "streams", len(b.streams))
	b.streams = append(b.streams, &outputStream{Stream: stream})
	logger.Debugf(ctx, "added stream #%d: %s", stream.Index(), format)
	for i, data := range format.InitializationData {
		logger.Debugf(ctx, "stream #%d initialization data #%d: %s", stream.Index(), i, extradata.Raw(data).Describe(format.MimeType))
	}
	return stream.Index(), nil
}

func (b *Backend) WriteSampleData(
	ctx context.Context,
	trackIndex int,
	data []byte,
	isKeyFrame bool,
	presentationTimeUs int64,
) (_err error) {
	logger.Tracef(ctx, "WriteSampleData(%d, %dB, %t, %dus)", trackIndex, len(data), isKeyFrame, presentationTimeUs)
	defer func() { logger.Tracef(ctx, "/WriteSampleData(%d): %v", trackIndex, _err) }()
	return xsync.DoR1(ctx, &b.locker, func() error {
		return b.writeSampleData(ctx, trackIndex, data, isKeyFrame, presentationTimeUs)
	})
}

func (b *Backend) writeSampleData(
	ctx context.Context,
	trackIndex int,
	data []byte,
	isKeyFrame bool,
	presentationTimeUs int64,
) error {
	if trackIndex < 0 || trackIndex >= len(b.streams) {
		return fmt.Errorf("invalid track index %d", trackIndex)
	}
	if !b.headerWritten {
		logger.Debugf(ctx, "writing the header")
		if err := b.formatContext.WriteHeader(nil); err != nil {
			return fmt.Errorf("unable to write the header: %w", err)
		}
		b.headerWritten = true
	}
	stream := b.streams[trackIndex]

	pkt := astiav.AllocPacket()
	defer pkt.Free()
	if err := pkt.FromData(data); err != nil {
		return fmt.Errorf("unable to fill the packet: %w", err)
	}
	pts := avconv.FromMicroseconds(presentationTimeUs, stream.TimeBase())
	dts := pts
	if stream.HasDTS && dts <= stream.LastDTS {
		// the samples are written in the decoding order, keep DTS monotonic
		dts = stream.LastDTS + 1
		if dts > pts {
			pts = dts
		}
	}
	stream.LastDTS, stream.HasDTS = dts, true
	pkt.SetPts(pts)
	pkt.SetDts(dts)
	pkt.SetStreamIndex(stream.Index())
	if isKeyFrame {
		pkt.SetFlags(pkt.Flags().Add(astiav.PacketFlagKey))
	}
	if err := b.formatContext.WriteInterleavedFrame(pkt); err != nil {
		return fmt.Errorf("unable to write the packet: %w", err)
	}
	return nil
}

func (b *Backend) MaxDelayBetweenSamples() time.Duration {
	return b.Config.MaxDelayBetweenSamples
}

func (b *Backend) Release(ctx context.Context, forCancellation bool) (_err error) {
	logger.Debugf(ctx, "Release(%t)", forCancellation)
	defer func() { logger.Debugf(ctx, "/Release(%t): %v", forCancellation, _err) }()
	var result []error
	b.locker.Do(ctx, func() {
		if b.released {
			return
		}
		b.released = true
		if b.headerWritten && !forCancellation {
			err := func() (_err error) {
				defer func() {
					if r := recover(); r != nil {
						_err = fmt.Errorf("got panic: %v:\n%s", r, debug.Stack())
					}
				}()
				return b.formatContext.WriteTrailer()
			}()
			if err != nil {
				result = append(result, fmt.Errorf("unable to write the trailer: %w", err))
			}
		}
		if b.ioContext != nil {
			if err := b.ioContext.Close(); err != nil {
				result = append(result, fmt.Errorf("unable to close the IO context: %w", err))
			}
		}
	})
	return joinErrors(result)
}
