package xmath

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClamp(t *testing.T) {
	require.Equal(t, 5, Clamp(7, 0, 5))
	require.Equal(t, 0, Clamp(-1, 0, 5))
	require.Equal(t, 3.5, Clamp(3.5, 0.0, 5.0))
}

func TestAlign(t *testing.T) {
	require.Equal(t, 1920, AlignDown(1921, 16))
	require.Equal(t, 1088, AlignUp(1080, 16))
	require.Equal(t, 1080, AlignUp(1080, 2))
}

func TestScaleLargeValue(t *testing.T) {
	require.Equal(t, int64(1_000_000), ScaleLargeValue(48000, 1_000_000, 48000))
	require.Equal(t, int64(20_833), ScaleLargeValue(1000, 1_000_000, 48000))
	require.Equal(t, int64(10_000_000_000), ScaleLargeValue(10_000, 1_000_000, 1))
	require.Equal(t, int64(9_223_372_036), ScaleLargeValue(9_223_372_036_854, 1_000, 1_000_000))
}
