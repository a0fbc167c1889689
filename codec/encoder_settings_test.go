package codec

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avtransformer/types"
)

func hwH264() EncoderInfo {
	return EncoderInfo{
		Name:            "hw.h264",
		MimeType:        MimeTypeVideoH264,
		Widths:          Range{Min: 64, Max: 1920},
		Heights:         Range{Min: 64, Max: 1088},
		WidthAlignment:  16,
		HeightAlignment: 16,
		Profiles:        []int{1, 2, 8},
		Bitrates:        Range{Min: 100_000, Max: 5_000_000},
	}
}

func TestSelectEncoderSettingsExactMatch(t *testing.T) {
	requested := &Format{MimeType: MimeTypeVideoH264, Width: 1280, Height: 720, Bitrate: 2_000_000, Profile: 8}
	achieved, info, err := SelectEncoderSettings(requested, []EncoderInfo{hwH264()})
	require.NoError(t, err)
	require.Equal(t, "hw.h264", info.Name)
	require.True(t, achieved.Equal(requested), achieved.String())
}

func TestSelectEncoderSettingsClampsBitrate(t *testing.T) {
	requested := &Format{MimeType: MimeTypeVideoH264, Width: 1280, Height: 720, Bitrate: 50_000_000}
	achieved, _, err := SelectEncoderSettings(requested, []EncoderInfo{hwH264()})
	require.NoError(t, err)
	require.Equal(t, 5_000_000, achieved.Bitrate)
	require.Equal(t, 50_000_000, requested.Bitrate)
}

func TestSelectEncoderSettingsEstimatesBitrate(t *testing.T) {
	requested := &Format{MimeType: MimeTypeVideoH264, Width: 640, Height: 480, FrameRate: 25}
	achieved, _, err := SelectEncoderSettings(requested, []EncoderInfo{hwH264()})
	require.NoError(t, err)
	require.Equal(t, int(640*480*25*bitsPerPixelEstimate), achieved.Bitrate)
}

func TestSelectEncoderSettingsResolution(t *testing.T) {
	for _, tc := range []struct {
		name                  string
		width, height         int
		wantWidth, wantHeight int
	}{
		{"aligned", 1920, 1080, 1920, 1088},
		{"unaligned", 1000, 562, 1008, 560},
		{"too large", 3840, 2160, 1920, 1088},
		{"portrait too large", 1080, 1920, 608, 1088},
	} {
		t.Run(tc.name, func(t *testing.T) {
			requested := &Format{MimeType: MimeTypeVideoH264, Width: tc.width, Height: tc.height}
			achieved, _, err := SelectEncoderSettings(requested, []EncoderInfo{hwH264()})
			require.NoError(t, err)
			require.Equal(t, tc.wantWidth, achieved.Width)
			require.Equal(t, tc.wantHeight, achieved.Height)
		})
	}
}

func TestSelectEncoderSettingsPrefersClosestSize(t *testing.T) {
	small := hwH264()
	small.Name = "small"
	small.Widths.Max, small.Heights.Max = 640, 480
	large := hwH264()
	large.Name = "large"
	_, info, err := SelectEncoderSettings(
		&Format{MimeType: MimeTypeVideoH264, Width: 1280, Height: 720},
		[]EncoderInfo{small, large},
	)
	require.NoError(t, err)
	require.Equal(t, "large", info.Name)
}

func TestSelectEncoderSettingsProfileFallback(t *testing.T) {
	for requested, want := range map[int]int{8: 8, 4: 2, 100: 8, 0: 0} {
		achieved, _, err := SelectEncoderSettings(
			&Format{MimeType: MimeTypeVideoH264, Width: 640, Height: 480, Profile: requested},
			[]EncoderInfo{hwH264()},
		)
		require.NoError(t, err)
		require.Equal(t, want, achieved.Profile, "requested %d", requested)
	}
}

func TestSelectEncoderSettingsMimeTypeFallback(t *testing.T) {
	achieved, info, err := SelectEncoderSettings(
		&Format{MimeType: MimeTypeVideoH265, Width: 640, Height: 480, Profile: 2, ColorInfo: ColorInfo{Transfer: ColorTransferHLG}},
		[]EncoderInfo{hwH264()},
	)
	require.NoError(t, err)
	require.Equal(t, MimeTypeVideoH264, achieved.MimeType)
	require.Equal(t, "hw.h264", info.Name)
	require.Zero(t, achieved.Profile)
	require.Equal(t, ColorInfoSDRBT709Limited, achieved.ColorInfo)

	_, _, err = SelectEncoderSettings(&Format{MimeType: MimeTypeAudioAAC}, []EncoderInfo{hwH264()})
	require.ErrorAs(t, err, &ErrNoSuitableEncoder{})
}

func TestSelectEncoderSettingsAudio(t *testing.T) {
	aac := EncoderInfo{
		Name:        "aac",
		MimeType:    MimeTypeAudioAAC,
		SampleRates: []int{44100, 48000},
		MaxChannels: 2,
		Bitrates:    Range{Min: 8000, Max: 320_000},
	}
	achieved, _, err := SelectEncoderSettings(
		&Format{MimeType: MimeTypeAudioAAC, SampleRate: 47000, Channels: 6, Bitrate: 512_000},
		[]EncoderInfo{aac},
	)
	require.NoError(t, err)
	require.Equal(t, 48000, achieved.SampleRate)
	require.Equal(t, 2, achieved.Channels)
	require.Equal(t, 320_000, achieved.Bitrate)
}

type nopCodec struct {
	Codec
	format *Format
}

func (c *nopCodec) ConfigurationFormat() *Format { return c.format }

func TestCapabilityEncoderFactory(t *testing.T) {
	ctx := context.Background()
	factory := NewCapabilityEncoderFactory(func(ctx context.Context, info EncoderInfo, format *Format) (Codec, error) {
		return &nopCodec{format: format}, nil
	}, hwH264())

	encoder, err := factory.CreateForVideoEncoding(ctx, &Format{MimeType: MimeTypeVideoH264, Width: 640, Height: 480, Bitrate: 9_000_000})
	require.NoError(t, err)
	require.Equal(t, 5_000_000, encoder.ConfigurationFormat().Bitrate)

	factory.DisableFallback = true
	_, err = factory.CreateForVideoEncoding(ctx, &Format{MimeType: MimeTypeVideoH264, Width: 640, Height: 480, Bitrate: 9_000_000})
	require.Error(t, err)
	require.Equal(t, types.ErrorCodeEncodingFormatUnsupported, types.AsErrTransformation(err).Code)

	_, err = factory.CreateForAudioEncoding(ctx, &Format{MimeType: MimeTypeAudioAAC})
	require.Equal(t, types.ErrorCodeEncodingFormatUnsupported, types.AsErrTransformation(err).Code)
}
