package codec

import (
	"fmt"
	"math"
	"slices"

	"github.com/xaionaro-go/avtransformer/internal/xmath"
	"github.com/xaionaro-go/avtransformer/types"
)

const (
	defaultFrameRate = 30
	// bitsPerPixelEstimate is used to estimate a bitrate when none is
	// requested: width*height*fps*bitsPerPixelEstimate.
	bitsPerPixelEstimate = 0.14
)

type ErrNoSuitableEncoder struct {
	MimeType string
}

func (e ErrNoSuitableEncoder) Error() string {
	return fmt.Sprintf("no suitable encoder for '%s'", e.MimeType)
}

// SelectEncoderSettings picks the encoder closest to the requested format
// and returns the format the encoder will actually be configured with.
//
// If no encoder supports the requested mime type, the muxer supported mime
// types of the same track type are tried in their preference order. For the
// chosen mime type the encoder supporting the closest size wins (encoders
// earlier in the list win ties); the size is then aligned and clamped, the
// bitrate clamped to the supported range and the profile lowered to the
// highest supported one not above the requested.
func SelectEncoderSettings(
	requested *Format,
	encoders []EncoderInfo,
) (*Format, EncoderInfo, error) {
	candidates := encodersForMimeType(encoders, requested.MimeType)
	if len(candidates) == 0 {
		for _, mimeType := range MuxerSupportedMimeTypes(requested.MediaType()) {
			candidates = encodersForMimeType(encoders, mimeType)
			if len(candidates) > 0 {
				break
			}
		}
	}
	if len(candidates) == 0 {
		return nil, EncoderInfo{}, ErrNoSuitableEncoder{MimeType: requested.MimeType}
	}

	switch requested.MediaType() {
	case types.MediaTypeVideo:
		achieved, info := selectVideoSettings(requested, candidates)
		return achieved, info, nil
	case types.MediaTypeAudio:
		achieved, info := selectAudioSettings(requested, candidates[0])
		return achieved, info, nil
	default:
		return nil, EncoderInfo{}, fmt.Errorf("unexpected mime type '%s'", requested.MimeType)
	}
}

func encodersForMimeType(encoders []EncoderInfo, mimeType string) []EncoderInfo {
	var result []EncoderInfo
	for _, info := range encoders {
		if info.MimeType == mimeType {
			result = append(result, info)
		}
	}
	return result
}

func selectVideoSettings(requested *Format, candidates []EncoderInfo) (*Format, EncoderInfo) {
	var (
		best         EncoderInfo
		bestW, bestH int
		bestDiff     = math.MaxInt
	)
	for _, info := range candidates {
		w, h := closestSupportedSize(info, requested.Width, requested.Height)
		diff := xmath.Abs(w*h - requested.Width*requested.Height)
		if diff < bestDiff {
			best, bestW, bestH, bestDiff = info, w, h, diff
		}
	}

	achieved := requested.Clone()
	achieved.MimeType = best.MimeType
	achieved.Width, achieved.Height = bestW, bestH

	if achieved.Bitrate == NoValue && achieved.ConstantQuality == NoValue {
		frameRate := achieved.FrameRate
		if frameRate <= 0 {
			frameRate = defaultFrameRate
		}
		achieved.Bitrate = int(math.Round(float64(bestW*bestH) * frameRate * bitsPerPixelEstimate))
	}
	if achieved.Bitrate != NoValue {
		achieved.Bitrate = best.Bitrates.Clamp(achieved.Bitrate)
	}
	if achieved.MimeType != requested.MimeType {
		achieved.Profile, achieved.Level = NoValue, NoValue
	}
	achieved.Profile = closestSupportedProfile(best, achieved.Profile)
	if achieved.ColorInfo.IsHDR() && !best.SupportsHDR {
		achieved.ColorInfo = ColorInfoSDRBT709Limited
	}
	return achieved, best
}

// closestSupportedSize scales the size down (keeping the aspect ratio) to
// fit the supported ranges and rounds it to the alignment.
func closestSupportedSize(info EncoderInfo, width, height int) (int, int) {
	if info.SupportsSize(width, height) {
		return width, height
	}
	scale := 1.0
	if info.Widths.IsSet() && width > info.Widths.Max {
		scale = min(scale, float64(info.Widths.Max)/float64(width))
	}
	if info.Heights.IsSet() && height > info.Heights.Max {
		scale = min(scale, float64(info.Heights.Max)/float64(height))
	}
	wa, ha := info.alignment()
	w := alignNearest(int(math.Round(float64(width)*scale)), wa)
	h := alignNearest(int(math.Round(float64(height)*scale)), ha)
	w = clampAligned(info.Widths, w, wa)
	h = clampAligned(info.Heights, h, ha)
	return w, h
}

func alignNearest(v, alignment int) int {
	down := xmath.AlignDown(v, alignment)
	if v-down >= alignment-(v-down) && v-down != 0 {
		return down + alignment
	}
	return max(down, alignment)
}

func clampAligned(r Range, v, alignment int) int {
	if !r.IsSet() {
		return v
	}
	if v > r.Max {
		v = xmath.AlignDown(r.Max, alignment)
	}
	if v < r.Min {
		v = xmath.AlignUp(r.Min, alignment)
	}
	return v
}

func closestSupportedProfile(info EncoderInfo, requested int) int {
	if info.SupportsProfile(requested) {
		return requested
	}
	profiles := slices.Clone(info.Profiles)
	slices.Sort(profiles)
	result := NoValue
	for _, profile := range profiles {
		if profile <= requested {
			result = profile
		}
	}
	return result
}

func selectAudioSettings(requested *Format, info EncoderInfo) (*Format, EncoderInfo) {
	achieved := requested.Clone()
	achieved.MimeType = info.MimeType
	if len(info.SampleRates) > 0 && !slices.Contains(info.SampleRates, achieved.SampleRate) {
		closest := info.SampleRates[0]
		for _, rate := range info.SampleRates[1:] {
			if xmath.Abs(rate-achieved.SampleRate) < xmath.Abs(closest-achieved.SampleRate) {
				closest = rate
			}
		}
		achieved.SampleRate = closest
	}
	if info.MaxChannels > 0 && achieved.Channels > info.MaxChannels {
		achieved.Channels = info.MaxChannels
	}
	if achieved.Bitrate != NoValue {
		achieved.Bitrate = info.Bitrates.Clamp(achieved.Bitrate)
	}
	return achieved, info
}
