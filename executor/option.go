package executor

import (
	"time"
)

type config struct {
	Name                  string
	DefaultReleaseTimeout time.Duration
}

var defaultConfig = config{
	Name:                  "executor",
	DefaultReleaseTimeout: 500 * time.Millisecond,
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

// OptionName sets the name used in logs.
type OptionName string

func (opt OptionName) apply(cfg *config) {
	cfg.Name = string(opt)
}

// OptionDefaultReleaseTimeout is used by Release when a non-positive timeout
// is passed.
type OptionDefaultReleaseTimeout time.Duration

func (opt OptionDefaultReleaseTimeout) apply(cfg *config) {
	cfg.DefaultReleaseTimeout = time.Duration(opt)
}
