// Package libav implements source.Source with libav (FFmpeg).
package libav

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/asticode/go-astiav"
	"github.com/davecgh/go-spew/spew"
	"github.com/xaionaro-go/avtransformer/avconv"
	"github.com/xaionaro-go/avtransformer/codec"
	"github.com/xaionaro-go/avtransformer/extradata"
	"github.com/xaionaro-go/avtransformer/logger"
	"github.com/xaionaro-go/avtransformer/source"
	"github.com/xaionaro-go/avtransformer/types"
	"github.com/xaionaro-go/avtransformer/urltools"
	"github.com/xaionaro-go/secret"
	"github.com/xaionaro-go/xsync"
)

const (
	// DefaultMaxQueuedPackets is the amount of packets of another track the
	// source buffers while looking for a packet of the requested track.
	DefaultMaxQueuedPackets = 256
)

type Config struct {
	// FormatName forces the input format (e.g. "mp4").
	FormatName string

	// AuthKey is appended to the URL when opening it, and never logged.
	AuthKey secret.String

	MaxQueuedPackets int
}

type track struct {
	source.TrackFormat
	Stream *astiav.Stream
	Queue  []*codec.Buffer
}

type Source struct {
	URL    string
	Config Config

	locker        xsync.Mutex
	formatContext *astiav.FormatContext
	packet        *astiav.Packet
	tracks        []*track
	byStreamIndex map[int]*track
	isEOF         bool
	closed        bool
}

var _ source.Source = (*Source)(nil)

func New(url string, cfg Config) *Source {
	if cfg.MaxQueuedPackets <= 0 {
		cfg.MaxQueuedPackets = DefaultMaxQueuedPackets
	}
	return &Source{
		URL:           url,
		Config:        cfg,
		byStreamIndex: map[int]*track{},
	}
}

func (s *Source) String() string {
	return fmt.Sprintf("libav.Source(%s)", s.URL)
}

func (s *Source) Prepare(ctx context.Context) (_err error) {
	logger.Debugf(ctx, "Prepare")
	defer func() { logger.Debugf(ctx, "/Prepare: %v", _err) }()
	s.locker.Do(ctx, func() {
		_err = s.prepare(ctx)
	})
	if _err != nil {
		return types.NewErrIO(types.ErrorCodeIOUnspecified, _err)
	}
	return nil
}

func (s *Source) prepare(ctx context.Context) error {
	if s.formatContext != nil {
		return nil
	}
	var inputFormat *astiav.InputFormat
	if s.Config.FormatName != "" {
		inputFormat = astiav.FindInputFormat(s.Config.FormatName)
		if inputFormat == nil {
			return fmt.Errorf("unable to find input format by name '%s'", s.Config.FormatName)
		}
	}

	formatContext := astiav.AllocFormatContext()
	if formatContext == nil {
		return fmt.Errorf("unable to allocate a format context")
	}
	if err := formatContext.OpenInput(s.URL+s.Config.AuthKey.Get(), inputFormat, nil); err != nil {
		formatContext.Free()
		return fmt.Errorf("unable to open input by URL '%s': %w", s.URL, err)
	}
	if err := formatContext.FindStreamInfo(nil); err != nil {
		formatContext.CloseInput()
		formatContext.Free()
		return fmt.Errorf("unable to get stream info: %w", err)
	}
	s.formatContext = formatContext
	s.packet = astiav.AllocPacket()

	for _, stream := range formatContext.Streams() {
		format := avconv.Format(stream)
		if format.MimeType == "" || (!format.IsAudio() && !format.IsVideo()) {
			logger.Debugf(ctx, "skipping stream #%d: %s", stream.Index(), stream.CodecParameters().CodecID())
			continue
		}
		t := &track{
			TrackFormat: source.TrackFormat{
				Index:  len(s.tracks),
				Format: format,
			},
			Stream: stream,
		}
		logger.Debugf(ctx, "track %s: %s", t.TrackFormat, spew.Sdump(format))
		s.tracks = append(s.tracks, t)
		s.byStreamIndex[stream.Index()] = t
	}
	return nil
}

func (s *Source) Tracks() []source.TrackFormat {
	return xsync.DoR1(context.Background(), &s.locker, func() []source.TrackFormat {
		result := make([]source.TrackFormat, 0, len(s.tracks))
		for _, t := range s.tracks {
			result = append(result, t.TrackFormat)
		}
		return result
	})
}

func (s *Source) Read(
	ctx context.Context,
	trackIndex int,
	buf *codec.Buffer,
) (_ret source.ReadResult, _err error) {
	logger.Tracef(ctx, "Read(%d)", trackIndex)
	defer func() { logger.Tracef(ctx, "/Read(%d): %s %v", trackIndex, _ret, _err) }()
	s.locker.Do(ctx, func() {
		_ret, _err = s.read(ctx, trackIndex, buf)
	})
	return
}

func (s *Source) read(
	ctx context.Context,
	trackIndex int,
	buf *codec.Buffer,
) (source.ReadResult, error) {
	if s.formatContext == nil {
		return source.ReadResultUndefined, fmt.Errorf("the source is not prepared or closed")
	}
	if trackIndex < 0 || trackIndex >= len(s.tracks) {
		return source.ReadResultUndefined, fmt.Errorf("invalid track index %d", trackIndex)
	}
	t := s.tracks[trackIndex]
	for len(t.Queue) == 0 {
		if s.isEOF {
			return source.ReadResultEndOfStream, nil
		}
		for _, other := range s.tracks {
			if other != t && len(other.Queue) >= s.Config.MaxQueuedPackets {
				return source.ReadResultNothingAvailable, nil
			}
		}
		if err := s.readPacket(ctx); err != nil {
			return source.ReadResultUndefined, types.NewErrIO(types.ErrorCodeIOUnspecified, err)
		}
	}
	sample := t.Queue[0]
	t.Queue = t.Queue[1:]
	buf.Data = append(buf.Data[:0], sample.Data...)
	buf.PresentationTimeUs = sample.PresentationTimeUs
	buf.Flags = sample.Flags
	codec.PutBuffer(sample)
	return source.ReadResultBufferRead, nil
}

func (s *Source) readPacket(ctx context.Context) error {
	pkt := s.packet
	defer pkt.Unref()
	err := s.formatContext.ReadFrame(pkt)
	switch {
	case err == nil:
	case errors.Is(err, astiav.ErrEof), errors.Is(err, io.EOF):
		logger.Debugf(ctx, "reached the end of the input")
		s.isEOF = true
		return nil
	default:
		return fmt.Errorf("unable to read a frame: %w", err)
	}

	t, ok := s.byStreamIndex[pkt.StreamIndex()]
	if !ok {
		return nil
	}
	ts := pkt.Pts()
	if avconv.IsNoPTS(ts) {
		ts = pkt.Dts()
	}
	data := pkt.Data()
	if t.Format.IsVideo() {
		data = extradata.StripFillers(t.Format.MimeType, data)
	}
	sample := codec.GetBuffer(len(data))
	sample.Data = append(sample.Data, data...)
	sample.PresentationTimeUs = avconv.Microseconds(ts, t.Stream.TimeBase())
	if pkt.Flags().Has(astiav.PacketFlagKey) {
		sample.Flags |= codec.BufferFlagKeyFrame
	}
	t.Queue = append(t.Queue, sample)
	return nil
}

func (s *Source) StartTimeUs() int64 {
	return xsync.DoR1(context.Background(), &s.locker, func() int64 {
		if s.formatContext == nil {
			return 0
		}
		startTime := s.formatContext.StartTime()
		if avconv.IsNoPTS(startTime) {
			return 0
		}
		return startTime
	})
}

func (s *Source) DurationUs() int64 {
	return xsync.DoR1(context.Background(), &s.locker, func() int64 {
		if s.formatContext == nil || !urltools.IsFile(s.URL) {
			// network inputs are treated as live streams
			return 0
		}
		d := s.formatContext.Duration()
		if d <= 0 || avconv.IsNoPTS(d) {
			return 0
		}
		return d
	})
}

func (s *Source) Close(ctx context.Context) error {
	logger.Debugf(ctx, "Close")
	s.locker.Do(ctx, func() {
		if s.closed || s.formatContext == nil {
			return
		}
		s.closed = true
		for _, t := range s.tracks {
			codec.PutBuffer(t.Queue...)
			t.Queue = nil
		}
		s.packet.Free()
		s.formatContext.CloseInput()
		s.formatContext.Free()
		s.formatContext = nil
	})
	return nil
}
