package frame

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInfoValidate(t *testing.T) {
	require.NoError(t, NewInfo(1920, 1080).Validate())
	require.Error(t, NewInfo(0, 1080).Validate())
	require.Error(t, NewInfo(1920, -1).Validate())
	require.Error(t, NewInfo(1920, 1080).WithPixelWidthHeightRatio(0).Validate())
}

func TestInfoNormalizedSize(t *testing.T) {
	w, h := NewInfo(100, 100).WithPixelWidthHeightRatio(2).NormalizedSize()
	require.Equal(t, 200, w)
	require.Equal(t, 100, h)

	w, h = NewInfo(100, 100).WithPixelWidthHeightRatio(0.5).NormalizedSize()
	require.Equal(t, 100, w)
	require.Equal(t, 200, h)
}

func TestTextureIsSet(t *testing.T) {
	require.False(t, UnsetTexture.IsSet())
	require.True(t, NewTexture(0, 0, 1, 1).IsSet())
}
