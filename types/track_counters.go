package types

import (
	"math"
	"sync/atomic"
)

const unsetTimeUs = math.MinInt64

// TrackCounters are the running totals of the samples written for a track.
type TrackCounters struct {
	Count atomic.Uint64
	Bytes atomic.Uint64

	maxTimeUs   atomic.Int64
	firstTimeUs atomic.Int64
}

func NewTrackCounters() *TrackCounters {
	c := &TrackCounters{}
	c.maxTimeUs.Store(unsetTimeUs)
	c.firstTimeUs.Store(unsetTimeUs)
	return c
}

// Add accounts one written sample. The maximal presentation time never
// decreases.
func (c *TrackCounters) Add(size uint64, presentationTimeUs int64) {
	c.Count.Add(1)
	c.Bytes.Add(size)
	c.firstTimeUs.CompareAndSwap(unsetTimeUs, presentationTimeUs)
	for {
		cur := c.maxTimeUs.Load()
		if cur != unsetTimeUs && cur >= presentationTimeUs {
			return
		}
		if c.maxTimeUs.CompareAndSwap(cur, presentationTimeUs) {
			return
		}
	}
}

// MaxTimeUs returns the maximal presentation time seen, and false if no
// sample was written yet.
func (c *TrackCounters) MaxTimeUs() (int64, bool) {
	v := c.maxTimeUs.Load()
	return v, v != unsetTimeUs
}

// FirstTimeUs returns the presentation time of the first written sample.
func (c *TrackCounters) FirstTimeUs() (int64, bool) {
	v := c.firstTimeUs.Load()
	return v, v != unsetTimeUs
}

// DurationUs is the span between the first and the maximal written
// presentation time.
func (c *TrackCounters) DurationUs() int64 {
	first, ok := c.FirstTimeUs()
	if !ok {
		return 0
	}
	last, _ := c.MaxTimeUs()
	return last - first
}

// AverageBitrate returns the average bitrate in bits per second, or 0 if it
// is unknown.
func (c *TrackCounters) AverageBitrate() int {
	durationUs := c.DurationUs()
	if durationUs <= 0 {
		return 0
	}
	return int(float64(c.Bytes.Load()) * 8 * 1_000_000 / float64(durationUs))
}

type TrackStatistics struct {
	Count      uint64 `json:",omitempty"`
	Bytes      uint64 `json:",omitempty"`
	MaxTimeUs  int64  `json:",omitempty"`
	DurationUs int64  `json:",omitempty"`
}

func (c *TrackCounters) ToStats() TrackStatistics {
	maxTimeUs, _ := c.MaxTimeUs()
	return TrackStatistics{
		Count:      c.Count.Load(),
		Bytes:      c.Bytes.Load(),
		MaxTimeUs:  maxTimeUs,
		DurationUs: c.DurationUs(),
	}
}
