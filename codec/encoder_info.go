package codec

import (
	"fmt"
	"slices"
)

type Range struct {
	Min int
	Max int
}

func (r Range) IsSet() bool {
	return r.Max > 0
}

func (r Range) Contains(v int) bool {
	return !r.IsSet() || (v >= r.Min && v <= r.Max)
}

func (r Range) Clamp(v int) int {
	if !r.IsSet() {
		return v
	}
	return min(max(v, r.Min), r.Max)
}

func (r Range) String() string {
	return fmt.Sprintf("[%d..%d]", r.Min, r.Max)
}

// EncoderInfo describes the capabilities of an encoder available on the
// host. Unset ranges mean "any value".
type EncoderInfo struct {
	Name                string
	MimeType            string
	HardwareAccelerated bool

	// video
	Widths          Range
	Heights         Range
	WidthAlignment  int
	HeightAlignment int
	Profiles        []int
	SupportsHDR     bool

	// audio
	SampleRates []int
	MaxChannels int

	Bitrates Range
}

func (info EncoderInfo) String() string {
	return fmt.Sprintf("%s(%s)", info.Name, info.MimeType)
}

func (info EncoderInfo) alignment() (int, int) {
	return max(info.WidthAlignment, 1), max(info.HeightAlignment, 1)
}

// SupportsSize returns true if the encoder accepts the given size as is.
func (info EncoderInfo) SupportsSize(width, height int) bool {
	wa, ha := info.alignment()
	return info.Widths.Contains(width) && info.Heights.Contains(height) &&
		width%wa == 0 && height%ha == 0
}

func (info EncoderInfo) SupportsProfile(profile int) bool {
	return profile == NoValue || len(info.Profiles) == 0 || slices.Contains(info.Profiles, profile)
}
