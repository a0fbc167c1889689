package codec

import (
	"slices"

	"github.com/xaionaro-go/avtransformer/types"
)

const (
	MimeTypeVideoH263  = "video/3gpp"
	MimeTypeVideoH264  = "video/avc"
	MimeTypeVideoH265  = "video/hevc"
	MimeTypeVideoMPEG4 = "video/mp4v-es"
	MimeTypeVideoVP8   = "video/x-vnd.on2.vp8"
	MimeTypeVideoVP9   = "video/x-vnd.on2.vp9"
	MimeTypeVideoAV1   = "video/av01"
	MimeTypeVideoRaw   = "video/raw"

	MimeTypeAudioAAC    = "audio/mp4a-latm"
	MimeTypeAudioAMRNB  = "audio/3gpp"
	MimeTypeAudioAMRWB  = "audio/amr-wb"
	MimeTypeAudioMPEG   = "audio/mpeg"
	MimeTypeAudioOpus   = "audio/opus"
	MimeTypeAudioVorbis = "audio/vorbis"
	MimeTypeAudioFLAC   = "audio/flac"
	MimeTypeAudioRaw    = "audio/raw"
)

// MuxerSupportedMimeTypes returns the sample mime types the MP4 muxer accepts
// for the given track type, most preferred first.
func MuxerSupportedMimeTypes(trackType types.MediaType) []string {
	switch trackType {
	case types.MediaTypeVideo:
		return []string{
			MimeTypeVideoH264,
			MimeTypeVideoH265,
			MimeTypeVideoAV1,
			MimeTypeVideoVP9,
			MimeTypeVideoMPEG4,
			MimeTypeVideoH263,
		}
	case types.MediaTypeAudio:
		return []string{
			MimeTypeAudioAAC,
			MimeTypeAudioOpus,
			MimeTypeAudioAMRNB,
			MimeTypeAudioAMRWB,
		}
	default:
		return nil
	}
}

func IsMuxerSupported(mimeType string) bool {
	return slices.Contains(MuxerSupportedMimeTypes(types.MediaTypeFromMimeType(mimeType)), mimeType)
}

func IsRaw(mimeType string) bool {
	return mimeType == MimeTypeAudioRaw || mimeType == MimeTypeVideoRaw
}
