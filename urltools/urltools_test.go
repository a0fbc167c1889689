package urltools

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFormatName(t *testing.T) {
	for input, expected := range map[string]string{
		"/tmp/out.mp4":                 "mp4",
		"file:///tmp/OUT.MKV":          "matroska",
		"out.webm":                     "webm",
		"rtmp://localhost/live/key":    "flv",
		"srt://localhost:4444":         "mpegts",
		"https://example.com/a.mp4":    "mp4",
		"https://example.com/playlist": "mpegts",
		"/tmp/out.unknown":             "",
		"gopher://example.com/x":       "",
	} {
		t.Run(input, func(t *testing.T) {
			require.Equal(t, expected, FormatName(input))
		})
	}
}

func TestIsFile(t *testing.T) {
	require.True(t, IsFile("/tmp/in.mp4"))
	require.True(t, IsFile("file:///tmp/in.mp4"))
	require.False(t, IsFile("rtmp://localhost/live"))
	require.False(t, IsFile("srt://localhost:4444"))
}
