package audio

import (
	"fmt"

	"github.com/xaionaro-go/avtransformer/codec"
)

// TimestampTracker reconstructs the presentation times of raw audio buffers
// from the amount of bytes that precede them. The time is computed from
// the total amount of frames, so no rounding error accumulates.
type TimestampTracker struct {
	FrameSize  int
	SampleRate int

	startUs     int64
	totalFrames int64
	partial     int
}

func NewTimestampTracker(format *codec.Format) (*TimestampTracker, error) {
	t := &TimestampTracker{
		FrameSize:  format.PCMFrameSize(),
		SampleRate: format.SampleRate,
	}
	if t.FrameSize <= 0 || t.SampleRate <= 0 {
		return nil, ErrUnsupportedFormat{Format: format}
	}
	return t, nil
}

// Reset restarts the tracking from the given time.
func (t *TimestampTracker) Reset(startUs int64) {
	t.startUs = startUs
	t.totalFrames = 0
	t.partial = 0
}

// CurrentTimeUs returns the presentation time of the next byte.
func (t *TimestampTracker) CurrentTimeUs() int64 {
	return t.startUs + t.totalFrames*1_000_000/int64(t.SampleRate)
}

// Advance returns the presentation time of a buffer of byteCount bytes and
// moves the current time past it.
func (t *TimestampTracker) Advance(byteCount int) int64 {
	pts := t.CurrentTimeUs()
	bytes := t.partial + byteCount
	t.totalFrames += int64(bytes / t.FrameSize)
	t.partial = bytes % t.FrameSize
	return pts
}

// DurationUs returns the duration of byteCount bytes of audio.
func (t *TimestampTracker) DurationUs(byteCount int) int64 {
	return int64(byteCount/t.FrameSize) * 1_000_000 / int64(t.SampleRate)
}

func (t *TimestampTracker) String() string {
	return fmt.Sprintf("TimestampTracker(%dus+%d frames)", t.startUs, t.totalFrames)
}
