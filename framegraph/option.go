package framegraph

import (
	"time"
)

type config struct {
	CoalesceMatrices           bool
	ReleaseFramesAutomatically bool
	ReleaseTimeout             time.Duration
}

var defaultConfig = config{
	CoalesceMatrices:           true,
	ReleaseFramesAutomatically: true,
	ReleaseTimeout:             500 * time.Millisecond,
}

type Option interface {
	apply(*config)
}

type Options []Option

func (s Options) apply(cfg *config) {
	for _, opt := range s {
		opt.apply(cfg)
	}
}

func (s Options) config() config {
	cfg := defaultConfig
	s.apply(&cfg)
	return cfg
}

// OptionCoalesceMatrices draws consecutive matrix effects in a single pass.
type OptionCoalesceMatrices bool

func (opt OptionCoalesceMatrices) apply(cfg *config) {
	cfg.CoalesceMatrices = bool(opt)
}

// OptionReleaseFramesAutomatically renders every output frame as soon as it
// is available, with its presentation time. If disabled, frames are kept
// until ReleaseOutputFrame.
type OptionReleaseFramesAutomatically bool

func (opt OptionReleaseFramesAutomatically) apply(cfg *config) {
	cfg.ReleaseFramesAutomatically = bool(opt)
}

type OptionReleaseTimeout time.Duration

func (opt OptionReleaseTimeout) apply(cfg *config) {
	cfg.ReleaseTimeout = time.Duration(opt)
}
