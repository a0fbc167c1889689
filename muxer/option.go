package muxer

import (
	"time"
)

const (
	DefaultWriteAheadBound = 500 * time.Millisecond
)

type config struct {
	WriteAheadBound time.Duration
	MaxTrackCount   int
}

var defaultConfig = config{
	WriteAheadBound: DefaultWriteAheadBound,
	MaxTrackCount:   2,
}

type Option interface {
	apply(*config)
}

type Options []Option

func (s Options) apply(cfg *config) {
	for _, o := range s {
		o.apply(cfg)
	}
}

func (s Options) config() config {
	cfg := defaultConfig
	s.apply(&cfg)
	return cfg
}

// OptionWriteAheadBound is how far the presentation time of a track may
// get ahead of the other tracks.
type OptionWriteAheadBound time.Duration

func (opt OptionWriteAheadBound) apply(cfg *config) {
	cfg.WriteAheadBound = time.Duration(opt)
}

type OptionMaxTrackCount int

func (opt OptionMaxTrackCount) apply(cfg *config) {
	cfg.MaxTrackCount = int(opt)
}
