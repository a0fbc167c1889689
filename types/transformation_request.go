package types

import (
	"fmt"
	"strings"

	"github.com/xaionaro-go/avtransformer/quality"
)

// TransformationRequest describes the desired output of a transformation.
// Zero values mean "same as input".
type TransformationRequest struct {
	AudioMimeType string          `yaml:"audio_mime_type,omitempty" json:"audio_mime_type,omitempty"`
	VideoMimeType string          `yaml:"video_mime_type,omitempty" json:"video_mime_type,omitempty"`
	OutputHeight  int             `yaml:"output_height,omitempty" json:"output_height,omitempty"`
	VideoQuality  quality.Quality `yaml:"-" json:"-"`
	HDRMode       HDRMode         `yaml:"hdr_mode,omitempty" json:"hdr_mode,omitempty"`
}

func (r TransformationRequest) WithAudioMimeType(mimeType string) TransformationRequest {
	r.AudioMimeType = mimeType
	return r
}

func (r TransformationRequest) WithVideoMimeType(mimeType string) TransformationRequest {
	r.VideoMimeType = mimeType
	return r
}

func (r TransformationRequest) WithOutputHeight(height int) TransformationRequest {
	r.OutputHeight = height
	return r
}

func (r TransformationRequest) WithVideoQuality(q quality.Quality) TransformationRequest {
	r.VideoQuality = q
	return r
}

func (r TransformationRequest) WithHDRMode(mode HDRMode) TransformationRequest {
	r.HDRMode = mode
	return r
}

func (r TransformationRequest) MimeType(mediaType MediaType) string {
	switch mediaType {
	case MediaTypeAudio:
		return r.AudioMimeType
	case MediaTypeVideo:
		return r.VideoMimeType
	}
	return ""
}

func (r TransformationRequest) Equal(other TransformationRequest) bool {
	return r.AudioMimeType == other.AudioMimeType &&
		r.VideoMimeType == other.VideoMimeType &&
		r.OutputHeight == other.OutputHeight &&
		r.VideoQuality == other.VideoQuality &&
		r.HDRMode == other.HDRMode
}

func (r TransformationRequest) String() string {
	var parts []string
	if r.AudioMimeType != "" {
		parts = append(parts, "audio:"+r.AudioMimeType)
	}
	if r.VideoMimeType != "" {
		parts = append(parts, "video:"+r.VideoMimeType)
	}
	if r.OutputHeight != 0 {
		parts = append(parts, fmt.Sprintf("height:%d", r.OutputHeight))
	}
	if r.VideoQuality != nil {
		parts = append(parts, "quality:"+r.VideoQuality.String())
	}
	if r.HDRMode != HDRModeKeepHDR {
		parts = append(parts, "hdr:"+r.HDRMode.String())
	}
	return "TransformationRequest{" + strings.Join(parts, ", ") + "}"
}
