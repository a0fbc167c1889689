package avconv

import (
	"cmp"
	"fmt"
	"slices"

	"github.com/asticode/go-astiav"
	"github.com/xaionaro-go/avtransformer/codec"
	"github.com/xaionaro-go/avtransformer/extradata"
	"github.com/xaionaro-go/avtransformer/types"
)

// Format describes a demuxed libav stream.
func Format(stream *astiav.Stream) *codec.Format {
	params := stream.CodecParameters()
	f := &codec.Format{
		MimeType: MimeType(params.CodecID()),
		Bitrate:  int(params.BitRate()),
	}
	switch params.MediaType() {
	case astiav.MediaTypeVideo:
		f.Width = params.Width()
		f.Height = params.Height()
		if fps := stream.AvgFrameRate(); fps.Den() != 0 {
			f.FrameRate = fps.Float64()
		}
	case astiav.MediaTypeAudio:
		f.SampleRate = params.SampleRate()
		f.Channels = params.ChannelLayout().Channels()
	}
	if extraData := params.ExtraData(); len(extraData) > 0 {
		f.InitializationData = [][]byte{slices.Clone(extraData)}
		if f.MimeType == codec.MimeTypeAudioAAC && (f.SampleRate == 0 || f.Channels == 0) {
			if asc, err := extradata.ParseAACASC(extraData); err == nil {
				f.SampleRate = cmp.Or(f.SampleRate, asc.SampleRate)
				f.Channels = cmp.Or(f.Channels, asc.Channels)
			}
		}
	}
	if d := stream.Duration(); d > 0 && !IsNoPTS(d) {
		f.DurationUs = Microseconds(d, stream.TimeBase())
	}
	return f
}

// ApplyFormat fills the codec parameters of a stream to be muxed.
func ApplyFormat(params *astiav.CodecParameters, f *codec.Format) error {
	codecID, ok := CodecID(f.MimeType)
	if !ok {
		return fmt.Errorf("unknown mime type '%s'", f.MimeType)
	}
	params.SetCodecID(codecID)
	switch f.MediaType() {
	case types.MediaTypeVideo:
		params.SetMediaType(astiav.MediaTypeVideo)
		params.SetWidth(f.Width)
		params.SetHeight(f.Height)
	case types.MediaTypeAudio:
		params.SetMediaType(astiav.MediaTypeAudio)
		params.SetSampleRate(f.SampleRate)
		switch f.Channels {
		case 1:
			params.SetChannelLayout(astiav.ChannelLayoutMono)
		case 2:
			params.SetChannelLayout(astiav.ChannelLayoutStereo)
		default:
			return fmt.Errorf("unsupported amount of channels: %d", f.Channels)
		}
	default:
		return fmt.Errorf("unexpected mime type '%s'", f.MimeType)
	}
	if f.Bitrate > 0 {
		params.SetBitRate(int64(f.Bitrate))
	}
	if len(f.InitializationData) > 0 {
		var extraData []byte
		for _, data := range f.InitializationData {
			extraData = append(extraData, data...)
		}
		if err := params.SetExtraData(extraData); err != nil {
			return fmt.Errorf("unable to set the extra data: %w", err)
		}
	}
	return nil
}
