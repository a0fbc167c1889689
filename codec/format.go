package codec

import (
	"bytes"
	"fmt"
	"slices"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/xaionaro-go/avtransformer/quality"
	"github.com/xaionaro-go/avtransformer/types"
)

type PCMEncoding int

const (
	PCMEncodingUndefined = PCMEncoding(iota)
	PCMEncoding16Bit
	PCMEncodingFloat
)

// BytesPerSample returns the size of a single sample of a single channel.
func (e PCMEncoding) BytesPerSample() int {
	switch e {
	case PCMEncoding16Bit:
		return 2
	case PCMEncodingFloat:
		return 4
	default:
		return 0
	}
}

func (e PCMEncoding) String() string {
	switch e {
	case PCMEncodingUndefined:
		return "undefined"
	case PCMEncoding16Bit:
		return "pcm16"
	case PCMEncodingFloat:
		return "float"
	}
	return fmt.Sprintf("PCMEncoding(%d)", int(e))
}

const NoValue = 0

// Format describes an encoded or decoded media stream. Zero values mean
// "not set".
type Format struct {
	MimeType string

	// video
	Width     int
	Height    int
	Rotation  int
	FrameRate float64
	ColorInfo ColorInfo

	// audio
	SampleRate  int
	Channels    int
	PCMEncoding PCMEncoding

	Bitrate         int
	ConstantQuality int
	Profile         int
	Level           int

	MaxInputSize int
	DurationUs   int64

	InitializationData [][]byte
}

var _ quality.Target = (*Format)(nil)

func (f *Format) SetBitrate(bitsPerSecond int) {
	f.Bitrate = bitsPerSecond
	f.ConstantQuality = NoValue
}

func (f *Format) SetConstantQuality(q int) {
	f.ConstantQuality = q
	f.Bitrate = NoValue
}

func (f *Format) MediaType() types.MediaType {
	return types.MediaTypeFromMimeType(f.MimeType)
}

func (f *Format) IsVideo() bool {
	return f.MediaType() == types.MediaTypeVideo
}

func (f *Format) IsAudio() bool {
	return f.MediaType() == types.MediaTypeAudio
}

// PCMFrameSize returns the amount of bytes of a single raw audio frame
// (one sample per channel).
func (f *Format) PCMFrameSize() int {
	encoding := f.PCMEncoding
	if encoding == PCMEncodingUndefined {
		encoding = PCMEncoding16Bit
	}
	return encoding.BytesPerSample() * f.Channels
}

func (f *Format) Clone() *Format {
	if f == nil {
		return nil
	}
	cpy := *f
	cpy.InitializationData = make([][]byte, 0, len(f.InitializationData))
	for _, data := range f.InitializationData {
		cpy.InitializationData = append(cpy.InitializationData, slices.Clone(data))
	}
	return &cpy
}

func (f *Format) Equal(cmp *Format) bool {
	if f == nil || cmp == nil {
		return f == cmp
	}
	switch {
	case f.MimeType != cmp.MimeType,
		f.Width != cmp.Width,
		f.Height != cmp.Height,
		f.Rotation != cmp.Rotation,
		f.FrameRate != cmp.FrameRate,
		f.ColorInfo != cmp.ColorInfo,
		f.SampleRate != cmp.SampleRate,
		f.Channels != cmp.Channels,
		f.PCMEncoding != cmp.PCMEncoding,
		f.Bitrate != cmp.Bitrate,
		f.ConstantQuality != cmp.ConstantQuality,
		f.Profile != cmp.Profile,
		f.Level != cmp.Level,
		f.MaxInputSize != cmp.MaxInputSize,
		f.DurationUs != cmp.DurationUs:
		return false
	}
	return slices.EqualFunc(f.InitializationData, cmp.InitializationData, bytes.Equal)
}

func (f *Format) String() string {
	if f == nil {
		return "<nil>"
	}
	var parts []string
	parts = append(parts, f.MimeType)
	if f.Width != 0 || f.Height != 0 {
		parts = append(parts, fmt.Sprintf("%dx%d", f.Width, f.Height))
	}
	if f.Rotation != 0 {
		parts = append(parts, fmt.Sprintf("rot:%d", f.Rotation))
	}
	if f.FrameRate != 0 {
		parts = append(parts, fmt.Sprintf("%gfps", f.FrameRate))
	}
	if f.ColorInfo.IsSet() {
		parts = append(parts, f.ColorInfo.String())
	}
	if f.SampleRate != 0 {
		parts = append(parts, fmt.Sprintf("%dHz", f.SampleRate))
	}
	if f.Channels != 0 {
		parts = append(parts, fmt.Sprintf("ch:%d", f.Channels))
	}
	if f.Bitrate != 0 {
		parts = append(parts, humanize.SI(float64(f.Bitrate), "bps"))
	}
	if f.ConstantQuality != 0 {
		parts = append(parts, fmt.Sprintf("CQ%d", f.ConstantQuality))
	}
	if f.Profile != 0 {
		parts = append(parts, fmt.Sprintf("profile:%d", f.Profile))
	}
	if f.DurationUs != 0 {
		parts = append(parts, fmt.Sprintf("dur:%dus", f.DurationUs))
	}
	return strings.Join(parts, " ")
}

func NewVideoFormat(mimeType string, width, height int) *Format {
	return &Format{
		MimeType: mimeType,
		Width:    width,
		Height:   height,
	}
}

func NewAudioFormat(mimeType string, sampleRate, channels int) *Format {
	return &Format{
		MimeType:   mimeType,
		SampleRate: sampleRate,
		Channels:   channels,
	}
}
