package codec

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avtransformer/quality"
	"github.com/xaionaro-go/avtransformer/types"
)

func TestFormatClone(t *testing.T) {
	f := &Format{
		MimeType:           MimeTypeVideoH264,
		Width:              1920,
		Height:             1080,
		InitializationData: [][]byte{{0, 0, 0, 1, 0x67}},
	}
	cpy := f.Clone()
	require.True(t, f.Equal(cpy))
	cpy.InitializationData[0][4] = 0x68
	require.False(t, f.Equal(cpy))
	require.Equal(t, byte(0x67), f.InitializationData[0][4])
	require.True(t, f.IsVideo())
	require.False(t, f.IsAudio())
	require.Nil(t, (*Format)(nil).Clone())
}

func TestFormatQualityTarget(t *testing.T) {
	f := NewVideoFormat(MimeTypeVideoH264, 640, 480)
	quality.ConstantBitrate(1_000_000).Apply(f)
	require.Equal(t, 1_000_000, f.Bitrate)
	quality.ConstantQuality(23).Apply(f)
	require.Equal(t, 23, f.ConstantQuality)
	require.Zero(t, f.Bitrate)
}

func TestFormatPCMFrameSize(t *testing.T) {
	require.Equal(t, 4, NewAudioFormat(MimeTypeAudioRaw, 44100, 2).PCMFrameSize())
	f := NewAudioFormat(MimeTypeAudioRaw, 44100, 6)
	f.PCMEncoding = PCMEncodingFloat
	require.Equal(t, 24, f.PCMFrameSize())
}

func TestMuxerSupportedMimeTypes(t *testing.T) {
	require.True(t, IsMuxerSupported(MimeTypeVideoH264))
	require.True(t, IsMuxerSupported(MimeTypeAudioAAC))
	require.False(t, IsMuxerSupported(MimeTypeAudioRaw))
	require.False(t, IsMuxerSupported("text/plain"))
	require.Equal(t, MimeTypeVideoH264, MuxerSupportedMimeTypes(types.MediaTypeVideo)[0])
	require.True(t, ColorInfo{Transfer: ColorTransferST2084}.IsHDR())
	require.False(t, ColorInfoSDRBT709Limited.IsHDR())
}

func TestFormatEqual(t *testing.T) {
	f := NewVideoFormat(MimeTypeVideoH264, 640, 480)
	require.True(t, f.Equal(f.Clone()))
	require.True(t, (*Format)(nil).Equal(nil))
	require.False(t, f.Equal(nil))

	cpy := f.Clone()
	cpy.Rotation = 90
	require.False(t, f.Equal(cpy))

	cpy = f.Clone()
	cpy.ColorInfo = ColorInfoSDRBT709Limited
	require.False(t, f.Equal(cpy))

	cpy = f.Clone()
	cpy.InitializationData = append(cpy.InitializationData, []byte{1})
	require.False(t, f.Equal(cpy))
}
