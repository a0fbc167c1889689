package avtransformer

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avtransformer/codec"
	"github.com/xaionaro-go/avtransformer/quality"
	"github.com/xaionaro-go/avtransformer/types"
)

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader(`
request:
  video_mime_type: video/avc
  output_height: 720
  hdr_mode: tone_map_hdr_to_sdr_using_gpu
video_quality:
  type: constant_bitrate
  bitrate: 2000000
effects:
  - type: brightness
    params:
      value: 0.2
  - type: grayscale
speed_factor: 2
remove_audio: true
muxer:
  write_ahead_bound: 1s
graph:
  coalesce_matrices: false
`))
	require.NoError(t, err)

	request := cfg.TransformationRequest()
	require.Equal(t, codec.MimeTypeVideoH264, request.VideoMimeType)
	require.Equal(t, 720, request.OutputHeight)
	require.Equal(t, types.HDRModeToneMapHDRToSDRUsingGPU, request.HDRMode)
	require.Equal(t, quality.ConstantBitrate(2_000_000), request.VideoQuality)
	require.Len(t, cfg.Effects, 2)
	require.Equal(t, 2.0, cfg.SpeedFactor)
	require.True(t, cfg.RemoveAudio)
	require.Equal(t, time.Second, cfg.Muxer.WriteAheadBound)
	require.NotNil(t, cfg.Graph.CoalesceMatrices)
	require.False(t, *cfg.Graph.CoalesceMatrices)
	require.Len(t, cfg.graphOptions(), 2)

	require.Equal(t, DefaultControlTick, cfg.ControlTick)
	require.Equal(t, DefaultReleaseTimeout, cfg.Graph.ReleaseTimeout)
}

func TestLoadConfigEmpty(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader(""))
	require.NoError(t, err)
	require.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfigInvalid(t *testing.T) {
	for name, body := range map[string]string{
		"unknown_field":  "no_such_field: 1\n",
		"remove_all":     "remove_audio: true\nremove_video: true\n",
		"unknown_effect": "effects:\n  - type: swirl\n",
		"bad_quality":    "video_quality:\n  type: unknown\n",
		"bad_hdr_mode":   "request:\n  hdr_mode: dolby\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(strings.NewReader(body))
			require.Error(t, err)
		})
	}
}
