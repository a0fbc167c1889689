// Package types contains the value types shared across avtransformer
// packages: track types, transformation requests/results and errors.
package types

import (
	"fmt"
	"strings"
)

type MediaType int

const (
	MediaTypeUnknown = MediaType(-0x1)
	MediaTypeVideo   = MediaType(0x0)
	MediaTypeAudio   = MediaType(0x1)
)

// MediaTypes returns the track types a transformation may carry, in the
// order tracks are registered.
func MediaTypes() []MediaType {
	return []MediaType{
		MediaTypeAudio,
		MediaTypeVideo,
	}
}

func (t MediaType) String() string {
	switch t {
	case MediaTypeAudio:
		return "audio"
	case MediaTypeVideo:
		return "video"
	case MediaTypeUnknown:
		return "unknown"
	default:
		return fmt.Sprintf("MediaType(%d)", int(t))
	}
}

// MediaTypeFromMimeType classifies a mime type by its top-level type.
func MediaTypeFromMimeType(mimeType string) MediaType {
	topLevel, _, _ := strings.Cut(strings.ToLower(mimeType), "/")
	switch topLevel {
	case "audio":
		return MediaTypeAudio
	case "video":
		return MediaTypeVideo
	default:
		return MediaTypeUnknown
	}
}
