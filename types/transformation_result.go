package types

import (
	"github.com/google/uuid"
)

// TransformationResult describes the achieved output of a transformation.
// Unknown values are zero.
type TransformationResult struct {
	ID uuid.UUID `json:"id"`

	DurationMs    int64 `json:"duration_ms,omitempty"`
	FileSizeBytes int64 `json:"file_size_bytes,omitempty"`

	AverageAudioBitrate int    `json:"average_audio_bitrate,omitempty"`
	Channels            int    `json:"channels,omitempty"`
	SampleRate          int    `json:"sample_rate,omitempty"`
	AudioEncoderName    string `json:"audio_encoder_name,omitempty"`
	AudioSampleCount    uint64 `json:"audio_sample_count,omitempty"`

	AverageVideoBitrate int    `json:"average_video_bitrate,omitempty"`
	Width               int    `json:"width,omitempty"`
	Height              int    `json:"height,omitempty"`
	VideoFrameCount     uint64 `json:"video_frame_count,omitempty"`
	VideoEncoderName    string `json:"video_encoder_name,omitempty"`

	// AudioPassthrough/VideoPassthrough report whether the track was copied
	// without re-encoding.
	AudioPassthrough bool `json:"audio_passthrough,omitempty"`
	VideoPassthrough bool `json:"video_passthrough,omitempty"`

	Err *ErrTransformation `json:"-"`
}
