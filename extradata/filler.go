package extradata

import (
	"github.com/xaionaro-go/avtransformer/codec"
)

// StripFillers removes filler NAL units from an Annex-B access unit of
// an H.264 or H.265 track. The data is returned as is if it contains no
// fillers or is not in the Annex-B form.
func StripFillers(mimeType string, data []byte) []byte {
	var isFiller func(nalu []byte) bool
	switch mimeType {
	case codec.MimeTypeVideoH264:
		isFiller = func(nalu []byte) bool { return H264NALUType(nalu) == H264NalUnitTypeFiller }
	case codec.MimeTypeVideoH265:
		isFiller = func(nalu []byte) bool { return H265NALUType(nalu) == H265NalUnitTypeFiller }
	default:
		return data
	}
	if !IsAnnexB(data) {
		return data
	}

	nalus := SplitAnnexB(data)
	kept := nalus[:0:0]
	for _, nalu := range nalus {
		if !isFiller(nalu) {
			kept = append(kept, nalu)
		}
	}
	if len(kept) == len(nalus) {
		return data
	}
	return JoinAnnexB(kept)
}
