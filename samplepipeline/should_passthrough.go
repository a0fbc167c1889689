package samplepipeline

import (
	"context"

	"github.com/xaionaro-go/avtransformer/codec"
	"github.com/xaionaro-go/avtransformer/effect"
	"github.com/xaionaro-go/avtransformer/logger"
	"github.com/xaionaro-go/avtransformer/types"
)

// ShouldPassthrough decides whether the track of the format may be copied
// without re-encoding, given what the transformation changes.
func ShouldPassthrough(
	ctx context.Context,
	inputFormat *codec.Format,
	request types.TransformationRequest,
	effects []effect.Effect,
	speed float64,
) (_ret bool) {
	defer func() { logger.Debugf(ctx, "ShouldPassthrough(%s): %v", inputFormat, _ret) }()
	if !codec.IsMuxerSupported(inputFormat.MimeType) {
		return false
	}
	trackType := inputFormat.MediaType()
	if mimeType := request.MimeType(trackType); mimeType != "" && mimeType != inputFormat.MimeType {
		return false
	}
	switch trackType {
	case types.MediaTypeAudio:
		if speed > 0 && speed != 1 {
			return false
		}
		return true
	case types.MediaTypeVideo:
		if len(effects) > 0 {
			return false
		}
		if request.OutputHeight != 0 && request.OutputHeight != inputFormat.Height {
			return false
		}
		if request.VideoQuality != nil {
			return false
		}
		if request.HDRMode != types.HDRModeKeepHDR && inputFormat.ColorInfo.IsHDR() {
			return false
		}
		return true
	}
	return false
}
