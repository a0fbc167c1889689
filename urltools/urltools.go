// Package urltools guesses media properties of input and output URLs.
package urltools

import (
	"net/url"
	"path/filepath"
	"strings"
)

var formatByExtension = map[string]string{
	".mp4":  "mp4",
	".m4a":  "mp4",
	".m4v":  "mp4",
	".mov":  "mov",
	".3gp":  "3gp",
	".mkv":  "matroska",
	".mka":  "matroska",
	".webm": "webm",
	".flv":  "flv",
	".ts":   "mpegts",
	".m2ts": "mpegts",
	".mts":  "mpegts",
	".ogg":  "ogg",
}

// FormatName returns the libav muxer name matching the URL, or "" if
// it cannot be guessed.
func FormatName(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return FormatNameFromFileExtension(rawURL)
	}
	switch u.Scheme {
	case "file", "":
		return FormatNameFromFileExtension(u.Path)
	case "rtmp", "rtmps":
		return "flv"
	case "srt", "udp", "tcp":
		return "mpegts"
	case "rtsp":
		return "rtsp"
	case "http", "https":
		if name := FormatNameFromFileExtension(u.Path); name != "" {
			return name
		}
		return "mpegts"
	default:
		return ""
	}
}

func FormatNameFromFileExtension(path string) string {
	return formatByExtension[strings.ToLower(filepath.Ext(path))]
}

// IsFile reports whether the URL points to a local file, which has a
// known duration and can be seeked.
func IsFile(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	switch u.Scheme {
	case "file", "":
		return true
	case "rtmp", "rtmps", "srt", "udp", "tcp", "http", "https", "rtsp":
		return false
	default:
		return false
	}
}
