package avconv

import (
	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/avtransformer/codec"
)

var codecIDsByMimeType = map[string]astiav.CodecID{
	codec.MimeTypeVideoH263:   astiav.CodecIDH263,
	codec.MimeTypeVideoH264:   astiav.CodecIDH264,
	codec.MimeTypeVideoH265:   astiav.CodecIDHevc,
	codec.MimeTypeVideoMPEG4:  astiav.CodecIDMpeg4,
	codec.MimeTypeVideoVP8:    astiav.CodecIDVp8,
	codec.MimeTypeVideoVP9:    astiav.CodecIDVp9,
	codec.MimeTypeVideoAV1:    astiav.CodecIDAv1,
	codec.MimeTypeAudioAAC:    astiav.CodecIDAac,
	codec.MimeTypeAudioMPEG:   astiav.CodecIDMp3,
	codec.MimeTypeAudioOpus:   astiav.CodecIDOpus,
	codec.MimeTypeAudioVorbis: astiav.CodecIDVorbis,
	codec.MimeTypeAudioFLAC:   astiav.CodecIDFlac,
	codec.MimeTypeAudioAMRNB:  astiav.CodecIDAmrNb,
	codec.MimeTypeAudioAMRWB:  astiav.CodecIDAmrWb,
	codec.MimeTypeAudioRaw:    astiav.CodecIDPcmS16Le,
}

// MimeType returns the mime type of a libav codec, or an empty string if
// the codec has no mime type known to avtransformer.
func MimeType(codecID astiav.CodecID) string {
	switch codecID {
	case astiav.CodecIDAacLatm:
		return codec.MimeTypeAudioAAC
	case astiav.CodecIDMp2:
		return codec.MimeTypeAudioMPEG
	case astiav.CodecIDPcmS16Be:
		return codec.MimeTypeAudioRaw
	}
	for mimeType, id := range codecIDsByMimeType {
		if id == codecID {
			return mimeType
		}
	}
	return ""
}

// CodecID returns the libav codec of a mime type, ok is false if the mime
// type is unknown.
func CodecID(mimeType string) (astiav.CodecID, bool) {
	id, ok := codecIDsByMimeType[mimeType]
	return id, ok
}
