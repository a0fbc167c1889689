package muxer

import (
	"context"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-ng/xatomic"
	"github.com/xaionaro-go/avtransformer/codec"
	"github.com/xaionaro-go/avtransformer/logger"
	"github.com/xaionaro-go/avtransformer/types"
	"github.com/xaionaro-go/xcontext"
	"github.com/xaionaro-go/xsync"
	"go.uber.org/atomic"
)

type track struct {
	Index    int
	Format   *codec.Format
	Counters *types.TrackCounters
	IsEnded  bool
}

// Wrapper interleaves the samples of the tracks of a transformation and
// writes them with a Backend.
//
// A track may be written only when every registered track has its format
// added, and only while its presentation time is not ahead of the slowest
// track by more than the write-ahead bound. The samples that may not be
// written are rejected and must be retried later.
type Wrapper struct {
	Backend      Backend
	ErrorHandler types.ErrorHandler
	Config       config

	ctx context.Context

	locker            xsync.Mutex
	registeredTracks  int
	tracks            map[types.MediaType]*track
	isReady           bool
	isEnded           atomic.Bool
	isReleased        bool
	previousTrackType types.MediaType

	watchdog        *time.Timer
	maxSampleDelay  time.Duration
	watchdogStopped atomic.Bool
}

func NewWrapper(
	ctx context.Context,
	backend Backend,
	errorHandler types.ErrorHandler,
	opts ...Option,
) *Wrapper {
	return &Wrapper{
		Backend:           backend,
		ErrorHandler:      errorHandler,
		Config:            Options(opts).config(),
		ctx:               logger.WithField(xcontext.DetachDone(ctx), "module", "muxer"),
		tracks:            map[types.MediaType]*track{},
		maxSampleDelay:    backend.MaxDelayBetweenSamples(),
		previousTrackType: types.MediaTypeUnknown,
	}
}

// RegisterTrack announces a track whose format is going to be added; it must
// be called for every track before AddTrackFormat.
func (w *Wrapper) RegisterTrack(ctx context.Context) error {
	return xsync.DoR1(ctx, &w.locker, func() error {
		if len(w.tracks) > 0 {
			return fmt.Errorf("a track format was already added")
		}
		if w.registeredTracks >= w.Config.MaxTrackCount {
			return fmt.Errorf("unable to register more than %d tracks", w.Config.MaxTrackCount)
		}
		w.registeredTracks++
		return nil
	})
}

func (w *Wrapper) RegisteredTrackCount(ctx context.Context) int {
	return xsync.DoR1(ctx, &w.locker, func() int {
		return w.registeredTracks
	})
}

// AddTrackFormat adds the track of the format to the output; once all the
// registered tracks are added the muxer is ready.
func (w *Wrapper) AddTrackFormat(
	ctx context.Context,
	format *codec.Format,
) (_err error) {
	logger.Tracef(ctx, "AddTrackFormat(%s)", format)
	defer func() { logger.Tracef(ctx, "/AddTrackFormat(%s): %v", format, _err) }()
	trackType := format.MediaType()
	if !codec.IsMuxerSupported(format.MimeType) {
		return types.NewErrMuxing(types.ErrorCodeMuxingFailed, ErrUnsupportedMimeType{MimeType: format.MimeType})
	}
	return xsync.DoR1(ctx, &w.locker, func() error {
		if _, ok := w.tracks[trackType]; ok || len(w.tracks) >= w.registeredTracks {
			return types.NewErrMuxing(types.ErrorCodeMuxingFailed, ErrTooManyTracks{
				TrackType:  trackType,
				TrackCount: w.registeredTracks,
			})
		}
		idx, err := w.Backend.AddTrack(ctx, format)
		if err != nil {
			return types.NewErrMuxing(types.ErrorCodeMuxingFailed, fmt.Errorf("unable to add the %s track: %w", trackType, err))
		}
		w.tracks[trackType] = &track{
			Index:    idx,
			Format:   format.Clone(),
			Counters: types.NewTrackCounters(),
		}
		if len(w.tracks) == w.registeredTracks {
			logger.Debugf(ctx, "all %d tracks are added", len(w.tracks))
			w.isReady = true
			w.resetWatchdog(ctx)
		}
		return nil
	})
}

func (w *Wrapper) IsReady(ctx context.Context) bool {
	return xsync.DoR1(ctx, &w.locker, func() bool {
		return w.isReady
	})
}

// WriteSample writes a sample of the track; it returns false if the sample
// may not be written yet.
func (w *Wrapper) WriteSample(
	ctx context.Context,
	trackType types.MediaType,
	data []byte,
	isKeyFrame bool,
	presentationTimeUs int64,
) (_ret bool, _err error) {
	logger.Tracef(ctx, "WriteSample(%s, %dB, key:%t, %dus)", trackType, len(data), isKeyFrame, presentationTimeUs)
	defer func() { logger.Tracef(ctx, "/WriteSample(%s, %dus): %v %v", trackType, presentationTimeUs, _ret, _err) }()
	w.locker.ManualLock(ctx)
	defer w.locker.ManualUnlock(ctx)

	t, ok := w.tracks[trackType]
	if !ok {
		if w.isReady {
			return false, types.NewErrMuxing(types.ErrorCodeMuxingFailed, fmt.Errorf("no %s track", trackType))
		}
		return false, nil
	}
	if t.IsEnded {
		return false, types.NewErrMuxing(types.ErrorCodeMuxingFailed, fmt.Errorf("the %s track has already ended", trackType))
	}
	if !w.canWriteSample(trackType) {
		return false, nil
	}

	if err := w.Backend.WriteSampleData(ctx, t.Index, data, isKeyFrame, presentationTimeUs); err != nil {
		return false, types.NewErrMuxing(types.ErrorCodeMuxingFailed, fmt.Errorf("unable to write a %s sample at %dus: %w", trackType, presentationTimeUs, err))
	}
	t.Counters.Add(uint64(len(data)), presentationTimeUs)
	if trackType != w.previousTrackType {
		logger.Tracef(ctx, "switched to writing %s samples", trackType)
		w.previousTrackType = trackType
	}
	w.resetWatchdog(ctx)
	return true, nil
}

// canWriteSample: the tracks without samples count as being at zero.
func (w *Wrapper) canWriteSample(trackType types.MediaType) bool {
	if !w.isReady {
		return false
	}
	if len(w.tracks) == 1 {
		return true
	}
	trackTimeUs := w.trackTimeUs(w.tracks[trackType])
	minTimeUs := trackTimeUs
	for _, t := range w.tracks {
		if t.IsEnded {
			continue
		}
		minTimeUs = min(minTimeUs, w.trackTimeUs(t))
	}
	return time.Duration(trackTimeUs-minTimeUs)*time.Microsecond <= w.Config.WriteAheadBound
}

func (w *Wrapper) trackTimeUs(t *track) int64 {
	ts, ok := t.Counters.MaxTimeUs()
	if !ok {
		return 0
	}
	return ts
}

func (w *Wrapper) resetWatchdog(ctx context.Context) {
	if w.maxSampleDelay <= 0 || w.watchdogStopped.Load() {
		return
	}
	timeout := w.maxSampleDelay
	timer := time.AfterFunc(timeout, func() {
		if w.watchdogStopped.Load() {
			return
		}
		logger.Errorf(w.ctx, "the muxer is stalled: %s", xsync.DoR1(w.ctx, &w.locker, w.statsString))
		w.ErrorHandler.HandleError(w.ctx, types.NewErrMuxing(types.ErrorCodeMuxingTimeout, ErrStalled{Timeout: timeout}))
	})
	if old := xatomic.SwapPointer(&w.watchdog, timer); old != nil {
		old.Stop()
	}
}

func (w *Wrapper) stopWatchdog() {
	w.watchdogStopped.Store(true)
	if old := xatomic.SwapPointer(&w.watchdog, nil); old != nil {
		old.Stop()
	}
}

// EndTrack marks the track as finished; once every track is finished the
// output is finalized.
func (w *Wrapper) EndTrack(ctx context.Context, trackType types.MediaType) (_err error) {
	logger.Debugf(ctx, "EndTrack(%s)", trackType)
	defer func() { logger.Debugf(ctx, "/EndTrack(%s): %v", trackType, _err) }()
	w.locker.ManualLock(ctx)
	defer w.locker.ManualUnlock(ctx)
	t, ok := w.tracks[trackType]
	switch {
	case ok:
		t.IsEnded = true
	case w.isReady || w.registeredTracks == 0:
		return types.NewErrMuxing(types.ErrorCodeMuxingFailed, fmt.Errorf("no %s track", trackType))
	default:
		logger.Warnf(ctx, "the %s track ended before its format was added, dropping it", trackType)
		w.registeredTracks--
		if len(w.tracks) > 0 && len(w.tracks) == w.registeredTracks {
			w.isReady = true
			w.resetWatchdog(ctx)
		}
	}
	for _, t := range w.tracks {
		if !t.IsEnded {
			return nil
		}
	}
	if len(w.tracks) < w.registeredTracks {
		return nil
	}
	logger.Debugf(ctx, "all tracks ended: %s", w.statsString())
	w.stopWatchdog()
	w.isEnded.Store(true)
	return w.releaseBackend(ctx, false)
}

func (w *Wrapper) IsEnded() bool {
	return w.isEnded.Load()
}

func (w *Wrapper) counters(ctx context.Context, trackType types.MediaType) *types.TrackCounters {
	return xsync.DoA1R1(xsync.WithNoLogging(ctx, true), &w.locker, func(trackType types.MediaType) *types.TrackCounters {
		t, ok := w.tracks[trackType]
		if !ok {
			return nil
		}
		return t.Counters
	}, trackType)
}

// TrackAverageBitrate returns the average bitrate of the written samples
// of the track in bits per second, 0 if unknown.
func (w *Wrapper) TrackAverageBitrate(ctx context.Context, trackType types.MediaType) int {
	c := w.counters(ctx, trackType)
	if c == nil {
		return 0
	}
	return c.AverageBitrate()
}

func (w *Wrapper) TrackSampleCount(ctx context.Context, trackType types.MediaType) uint64 {
	c := w.counters(ctx, trackType)
	if c == nil {
		return 0
	}
	return c.Count.Load()
}

func (w *Wrapper) TrackFormat(ctx context.Context, trackType types.MediaType) *codec.Format {
	return xsync.DoR1(ctx, &w.locker, func() *codec.Format {
		t, ok := w.tracks[trackType]
		if !ok {
			return nil
		}
		return t.Format.Clone()
	})
}

// DurationMs returns the longest duration among the tracks.
func (w *Wrapper) DurationMs(ctx context.Context) int64 {
	var durationUs int64
	for _, trackType := range types.MediaTypes() {
		if c := w.counters(ctx, trackType); c != nil {
			durationUs = max(durationUs, c.DurationUs())
		}
	}
	return durationUs / 1000
}

// WrittenBytes returns the total size of the written samples.
func (w *Wrapper) WrittenBytes(ctx context.Context) int64 {
	var total uint64
	for _, trackType := range types.MediaTypes() {
		if c := w.counters(ctx, trackType); c != nil {
			total += c.Bytes.Load()
		}
	}
	return int64(total)
}

func (w *Wrapper) statsString() string {
	var s string
	for trackType, t := range w.tracks {
		stats := t.Counters.ToStats()
		s += fmt.Sprintf(
			"%s: %d samples, %s, max pts %dus; ",
			trackType, stats.Count, humanize.Bytes(stats.Bytes), stats.MaxTimeUs,
		)
	}
	return s
}

// Release releases the backend (if it was not released when all tracks
// ended).
func (w *Wrapper) Release(ctx context.Context, forCancellation bool) error {
	w.stopWatchdog()
	return xsync.DoR1(ctx, &w.locker, func() error {
		return w.releaseBackend(ctx, forCancellation)
	})
}

func (w *Wrapper) releaseBackend(ctx context.Context, forCancellation bool) error {
	if w.isReleased {
		return nil
	}
	w.isReleased = true
	if err := w.Backend.Release(ctx, forCancellation); err != nil {
		return types.NewErrMuxing(types.ErrorCodeMuxingFailed, fmt.Errorf("unable to release the muxer: %w", err))
	}
	return nil
}
