package quality

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

type target struct {
	bitrate int
	quality int
}

func (t *target) SetBitrate(v int)         { t.bitrate = v }
func (t *target) SetConstantQuality(v int) { t.quality = v }

func TestSerializableJSON(t *testing.T) {
	b, err := json.Marshal(Serializable{Quality: ConstantBitrate(2_000_000)})
	require.NoError(t, err)

	var s Serializable
	require.NoError(t, json.Unmarshal(b, &s))
	require.Equal(t, ConstantBitrate(2_000_000), s.Quality)
}

func TestSerializableYAML(t *testing.T) {
	var cfg struct {
		Quality Serializable `yaml:"quality"`
	}
	err := yaml.Unmarshal([]byte("quality:\n  type: constant_quality\n  quality: 23\n"), &cfg)
	require.NoError(t, err)
	require.Equal(t, ConstantQuality(23), cfg.Quality.Quality)

	err = yaml.Unmarshal([]byte("quality:\n  type: unknown\n"), &cfg)
	require.Error(t, err)
}

func TestApply(t *testing.T) {
	var tgt target
	ConstantBitrate(1000).Apply(&tgt)
	ConstantQuality(30).Apply(&tgt)
	require.Equal(t, target{bitrate: 1000, quality: 30}, tgt)
	require.Equal(t, "1 kbps", ConstantBitrate(1000).String())
}
