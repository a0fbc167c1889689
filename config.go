package avtransformer

import (
	"fmt"
	"io"
	"time"

	"github.com/xaionaro-go/avtransformer/effect"
	"github.com/xaionaro-go/avtransformer/framegraph"
	"github.com/xaionaro-go/avtransformer/muxer"
	"github.com/xaionaro-go/avtransformer/quality"
	"github.com/xaionaro-go/avtransformer/samplepipeline"
	"github.com/xaionaro-go/avtransformer/types"
	"gopkg.in/yaml.v3"
)

const (
	DefaultControlTick    = 10 * time.Millisecond
	DefaultReleaseTimeout = 500 * time.Millisecond
)

type MuxerConfig struct {
	// WriteAheadBound is how far in time a track may be ahead of the
	// slowest one.
	WriteAheadBound time.Duration `yaml:"write_ahead_bound,omitempty"`
}

type GraphConfig struct {
	// CoalesceMatrices draws consecutive matrix effects in a single pass;
	// enabled if not set.
	CoalesceMatrices *bool `yaml:"coalesce_matrices,omitempty"`

	// ReleaseTimeout bounds the wait for the graph worker on release.
	ReleaseTimeout time.Duration `yaml:"release_timeout,omitempty"`

	MaxPendingFrames int `yaml:"max_pending_frames,omitempty"`
}

type Config struct {
	Request      types.TransformationRequest `yaml:"request,omitempty"`
	VideoQuality quality.Serializable        `yaml:"video_quality,omitempty"`
	Effects      []effect.Config             `yaml:"effects,omitempty"`

	RemoveAudio bool `yaml:"remove_audio,omitempty"`
	RemoveVideo bool `yaml:"remove_video,omitempty"`

	// SpeedFactor speeds the output up (>1) or slows it down (<1).
	SpeedFactor float64 `yaml:"speed_factor,omitempty"`

	Muxer MuxerConfig `yaml:"muxer,omitempty"`
	Graph GraphConfig `yaml:"graph,omitempty"`

	// ControlTick is the period of the control loop when there is no
	// progress.
	ControlTick time.Duration `yaml:"control_tick,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		SpeedFactor: 1,
		Muxer: MuxerConfig{
			WriteAheadBound: muxer.DefaultWriteAheadBound,
		},
		Graph: GraphConfig{
			ReleaseTimeout:   DefaultReleaseTimeout,
			MaxPendingFrames: samplepipeline.DefaultMaxPendingFrames,
		},
		ControlTick: DefaultControlTick,
	}
}

// LoadConfig reads a YAML config; the unset values are taken from
// DefaultConfig.
func LoadConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("unable to decode the config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg Config) Validate() error {
	if cfg.RemoveAudio && cfg.RemoveVideo {
		return fmt.Errorf("both audio and video are removed")
	}
	if cfg.SpeedFactor < 0 {
		return fmt.Errorf("negative speed factor %f", cfg.SpeedFactor)
	}
	if cfg.Request.OutputHeight < 0 {
		return fmt.Errorf("negative output height %d", cfg.Request.OutputHeight)
	}
	if _, err := effect.FromConfigs(cfg.Effects); err != nil {
		return fmt.Errorf("invalid effects: %w", err)
	}
	return nil
}

// TransformationRequest returns the request with the video quality set.
func (cfg Config) TransformationRequest() types.TransformationRequest {
	r := cfg.Request
	if cfg.VideoQuality.Quality != nil {
		r = r.WithVideoQuality(cfg.VideoQuality.Quality)
	}
	return r
}

func (cfg Config) speed() float64 {
	if cfg.SpeedFactor <= 0 {
		return 1
	}
	return cfg.SpeedFactor
}

func (cfg Config) graphOptions() []framegraph.Option {
	var opts []framegraph.Option
	if cfg.Graph.CoalesceMatrices != nil {
		opts = append(opts, framegraph.OptionCoalesceMatrices(*cfg.Graph.CoalesceMatrices))
	}
	if cfg.Graph.ReleaseTimeout > 0 {
		opts = append(opts, framegraph.OptionReleaseTimeout(cfg.Graph.ReleaseTimeout))
	}
	return opts
}

func (cfg Config) muxerOptions() []muxer.Option {
	var opts []muxer.Option
	if cfg.Muxer.WriteAheadBound > 0 {
		opts = append(opts, muxer.OptionWriteAheadBound(cfg.Muxer.WriteAheadBound))
	}
	return opts
}
