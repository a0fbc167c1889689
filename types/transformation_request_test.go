package types

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avtransformer/quality"
	"gopkg.in/yaml.v3"
)

func TestTransformationRequestEqual(t *testing.T) {
	a := TransformationRequest{}.WithVideoMimeType("video/avc").WithVideoQuality(quality.ConstantBitrate(1000))
	b := a
	require.True(t, a.Equal(b))
	b = b.WithVideoQuality(quality.ConstantBitrate(999))
	require.False(t, a.Equal(b))
	require.Equal(t, "video/avc", a.MimeType(MediaTypeVideo))
	require.Equal(t, "", a.MimeType(MediaTypeAudio))
}

func TestHDRModeYAML(t *testing.T) {
	var r TransformationRequest
	require.NoError(t, yaml.Unmarshal([]byte("hdr_mode: tone_map_hdr_to_sdr_using_gpu\n"), &r))
	require.Equal(t, HDRModeToneMapHDRToSDRUsingGPU, r.HDRMode)
	require.True(t, r.HDRMode.TonemapsOnGPU())
	require.Error(t, yaml.Unmarshal([]byte("hdr_mode: nope\n"), &r))
}
