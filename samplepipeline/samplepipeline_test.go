package samplepipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/avtransformer/codec"
	"github.com/xaionaro-go/avtransformer/effect"
	"github.com/xaionaro-go/avtransformer/frame"
	"github.com/xaionaro-go/avtransformer/internal/mediatest"
	"github.com/xaionaro-go/avtransformer/muxer"
	"github.com/xaionaro-go/avtransformer/quality"
	"github.com/xaionaro-go/avtransformer/source"
	"github.com/xaionaro-go/avtransformer/types"
)

type requestRecorder struct {
	locker   sync.Mutex
	requests []types.TransformationRequest
}

func (r *requestRecorder) OnTransformationRequestFinalized(ctx context.Context, achieved types.TransformationRequest) error {
	r.locker.Lock()
	defer r.locker.Unlock()
	r.requests = append(r.requests, achieved)
	return nil
}

func (r *requestRecorder) get() []types.TransformationRequest {
	r.locker.Lock()
	defer r.locker.Unlock()
	return append([]types.TransformationRequest{}, r.requests...)
}

func newTestMuxer(t *testing.T, ctx context.Context, backend *mediatest.MuxerBackend) *muxer.Wrapper {
	m := muxer.NewWrapper(ctx, backend, types.ErrorHandlerFunc(func(ctx context.Context, err error) {
		t.Errorf("muxer error: %v", err)
	}))
	require.NoError(t, m.RegisterTrack(ctx))
	t.Cleanup(func() { _ = m.Release(ctx, false) })
	return m
}

func runPipeline(
	t *testing.T,
	ctx context.Context,
	p Pipeline,
	src source.Source,
	trackIndex int,
) {
	deadline := time.Now().Add(20 * time.Second)
	inputEnded := false
	for !p.IsEnded() {
		require.True(t, time.Now().Before(deadline), "timed out in state %s", p.State())
		progress := false
		for !inputEnded {
			buf, err := p.DequeueInputBuffer(ctx)
			require.NoError(t, err)
			if buf == nil {
				break
			}
			r, err := src.Read(ctx, trackIndex, buf)
			require.NoError(t, err)
			switch r {
			case source.ReadResultBufferRead:
			case source.ReadResultEndOfStream:
				buf.Reset()
				buf.Flags |= codec.BufferFlagEndOfStream
				inputEnded = true
			default:
				t.Fatalf("unexpected read result %s", r)
			}
			require.NoError(t, p.QueueInputBuffer(ctx))
			progress = true
		}
		for {
			ok, err := p.ProcessData(ctx)
			require.NoError(t, err)
			if !ok {
				break
			}
			progress = true
		}
		if !progress {
			time.Sleep(time.Millisecond)
		}
	}
	require.Equal(t, StateEnded, p.State())
}

func requireMonotonic(t *testing.T, samples []mediatest.Sample) {
	for idx := 1; idx < len(samples); idx++ {
		require.Greater(t, samples[idx].PresentationTimeUs, samples[idx-1].PresentationTimeUs, "sample #%d", idx)
	}
}

func TestShouldPassthrough(t *testing.T) {
	ctx := mediatest.NewContext(t)
	video := codec.NewVideoFormat(codec.MimeTypeVideoH264, 1920, 1080)
	audio := codec.NewAudioFormat(codec.MimeTypeAudioAAC, 44100, 2)
	vorbis := codec.NewAudioFormat(codec.MimeTypeAudioVorbis, 44100, 2)
	hdr := video.Clone()
	hdr.ColorInfo = codec.ColorInfo{Transfer: codec.ColorTransferST2084}

	for _, tc := range []struct {
		name    string
		format  *codec.Format
		request types.TransformationRequest
		effects []effect.Effect
		speed   float64
		want    bool
	}{
		{"video_as_is", video, types.TransformationRequest{}, nil, 1, true},
		{"video_same_mime", video, types.TransformationRequest{VideoMimeType: codec.MimeTypeVideoH264}, nil, 1, true},
		{"video_other_mime", video, types.TransformationRequest{VideoMimeType: codec.MimeTypeVideoH265}, nil, 1, false},
		{"video_effects", video, types.TransformationRequest{}, []effect.Effect{effect.NewGrayscale()}, 1, false},
		{"video_same_height", video, types.TransformationRequest{OutputHeight: 1080}, nil, 1, true},
		{"video_other_height", video, types.TransformationRequest{OutputHeight: 720}, nil, 1, false},
		{"video_quality", video, types.TransformationRequest{VideoQuality: quality.ConstantBitrate(1_000_000)}, nil, 1, false},
		{"video_speed", video, types.TransformationRequest{}, nil, 2, true},
		{"hdr_kept", hdr, types.TransformationRequest{}, nil, 1, true},
		{"hdr_tone_mapped", hdr, types.TransformationRequest{HDRMode: types.HDRModeToneMapHDRToSDRUsingGPU}, nil, 1, false},
		{"audio_as_is", audio, types.TransformationRequest{VideoMimeType: codec.MimeTypeVideoH265}, nil, 1, true},
		{"audio_other_mime", audio, types.TransformationRequest{AudioMimeType: codec.MimeTypeAudioOpus}, nil, 1, false},
		{"audio_speed", audio, types.TransformationRequest{}, nil, 2, false},
		{"audio_not_muxable", vorbis, types.TransformationRequest{}, nil, 1, false},
	} {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, ShouldPassthrough(ctx, tc.format, tc.request, tc.effects, tc.speed))
		})
	}
}

func TestPassthroughMovesSamplesToOutputTimeline(t *testing.T) {
	ctx := mediatest.NewContext(t)
	src := mediatest.NewSource(time.Second.Microseconds(),
		mediatest.NewVideoTrack(codec.MimeTypeVideoH264, 1920, 1080, 30),
	)
	src.StartTime = 1_000_000
	require.NoError(t, src.Prepare(ctx))

	backend := mediatest.NewMuxerBackend()
	m := newTestMuxer(t, ctx, backend)
	reporter := &requestRecorder{}
	request := types.TransformationRequest{AudioMimeType: codec.MimeTypeAudioOpus}
	p, err := NewPassthrough(ctx, src.Tracks()[0].Format, src.StartTimeUs(), 1, request, m, reporter)
	require.NoError(t, err)
	defer p.Release(ctx)
	require.Equal(t, types.MediaTypeVideo, p.TrackType())
	require.Equal(t, []types.TransformationRequest{request}, reporter.get())

	runPipeline(t, ctx, p, src, 0)

	samples := backend.TrackSamples(codec.MimeTypeVideoH264)
	require.Len(t, samples, src.SampleCount(0))
	require.Equal(t, int64(0), samples[0].PresentationTimeUs)
	require.True(t, samples[0].IsKeyFrame)
	require.False(t, samples[1].IsKeyFrame)
	requireMonotonic(t, samples)
	require.True(t, m.IsEnded())
	released, forCancellation := backend.IsReleased()
	require.True(t, released)
	require.False(t, forCancellation)
}

func TestPassthroughSpeedChange(t *testing.T) {
	ctx := mediatest.NewContext(t)
	src := mediatest.NewSource(time.Second.Microseconds(),
		mediatest.NewVideoTrack(codec.MimeTypeVideoH264, 320, 240, 10),
	)
	require.NoError(t, src.Prepare(ctx))
	backend := mediatest.NewMuxerBackend()
	m := newTestMuxer(t, ctx, backend)
	p, err := NewPassthrough(ctx, src.Tracks()[0].Format, 0, 2, types.TransformationRequest{}, m, nil)
	require.NoError(t, err)
	defer p.Release(ctx)

	runPipeline(t, ctx, p, src, 0)

	samples := backend.TrackSamples(codec.MimeTypeVideoH264)
	require.Len(t, samples, 10)
	require.Equal(t, int64(450_000), samples[9].PresentationTimeUs)
}

func TestAudioPipelineReconstructsTimestamps(t *testing.T) {
	ctx := mediatest.NewContext(t)
	src := mediatest.NewSource(time.Second.Microseconds(),
		mediatest.NewAudioTrack(codec.MimeTypeAudioAAC, 44100, 2),
	)
	require.NoError(t, src.Prepare(ctx))
	backend := mediatest.NewMuxerBackend()
	m := newTestMuxer(t, ctx, backend)
	reporter := &requestRecorder{}

	p, err := NewAudio(
		ctx, src.Tracks()[0].Format, 0, 1, types.TransformationRequest{}, AudioConfig{},
		&mediatest.DecoderFactory{}, mediatest.NewEncoderFactory(), m, reporter,
	)
	require.NoError(t, err)
	defer p.Release(ctx)

	runPipeline(t, ctx, p, src, 0)

	require.Equal(t, mediatest.AACEncoderInfo.Name, p.EncoderName())
	require.Equal(t, []types.TransformationRequest{{}}, reporter.get())
	samples := backend.TrackSamples(codec.MimeTypeAudioAAC)
	require.Len(t, samples, src.SampleCount(0))
	for idx, s := range samples {
		require.Equal(t, int64(idx)*mediatest.AACFrameSize*1_000_000/44100, s.PresentationTimeUs, "sample #%d", idx)
	}
}

func TestAudioPipelineResamplesForEncoder(t *testing.T) {
	ctx := mediatest.NewContext(t)
	src := mediatest.NewSource(time.Second.Microseconds(),
		mediatest.NewAudioTrack(codec.MimeTypeAudioAAC, 96000, 2),
	)
	require.NoError(t, src.Prepare(ctx))
	backend := mediatest.NewMuxerBackend()
	m := newTestMuxer(t, ctx, backend)

	p, err := NewAudio(
		ctx, src.Tracks()[0].Format, 0, 1, types.TransformationRequest{}, AudioConfig{},
		&mediatest.DecoderFactory{}, mediatest.NewEncoderFactory(), m, nil,
	)
	require.NoError(t, err)
	defer p.Release(ctx)

	runPipeline(t, ctx, p, src, 0)

	formats := backend.Formats()
	require.Len(t, formats, 1)
	require.Equal(t, 48000, formats[0].SampleRate)
	samples := backend.TrackSamples(codec.MimeTypeAudioAAC)
	require.NotEmpty(t, samples)
	requireMonotonic(t, samples)
	require.InDelta(t, time.Second.Microseconds(), samples[len(samples)-1].PresentationTimeUs, 50_000)
}

func TestAudioPipelineSplitsRawAudioByEncoderInputSize(t *testing.T) {
	ctx := mediatest.NewContext(t)
	src := mediatest.NewSource(time.Second.Microseconds(),
		mediatest.NewAudioTrack(codec.MimeTypeAudioAAC, 44100, 2),
	)
	require.NoError(t, src.Prepare(ctx))
	backend := mediatest.NewMuxerBackend()
	m := newTestMuxer(t, ctx, backend)

	var encoders []*mediatest.Encoder
	encoderFactory := codec.NewCapabilityEncoderFactory(func(
		ctx context.Context,
		info codec.EncoderInfo,
		format *codec.Format,
	) (codec.Codec, error) {
		format = format.Clone()
		format.MaxInputSize = 1000
		encoder, err := mediatest.NewEncoder(ctx, info, format)
		if err != nil {
			return nil, err
		}
		encoders = append(encoders, encoder.(*mediatest.Encoder))
		return encoder, nil
	}, mediatest.AACEncoderInfo)

	p, err := NewAudio(
		ctx, src.Tracks()[0].Format, 0, 1, types.TransformationRequest{}, AudioConfig{},
		&mediatest.DecoderFactory{}, encoderFactory, m, nil,
	)
	require.NoError(t, err)
	defer p.Release(ctx)

	runPipeline(t, ctx, p, src, 0)

	require.Len(t, encoders, 1)
	// 1000 bytes hold 250 stereo 16-bit frames, ~5.7ms at 44100Hz
	require.Greater(t, encoders[0].EncodedCount(), 100)
	samples := backend.TrackSamples(codec.MimeTypeAudioAAC)
	require.NotEmpty(t, samples)
	requireMonotonic(t, samples)
	require.InDelta(t, time.Second.Microseconds(), samples[len(samples)-1].PresentationTimeUs, 50_000)
}

func TestAudioPipelineSpeedChange(t *testing.T) {
	ctx := mediatest.NewContext(t)
	src := mediatest.NewSource(time.Second.Microseconds(),
		mediatest.NewAudioTrack(codec.MimeTypeAudioAAC, 44100, 2),
	)
	require.NoError(t, src.Prepare(ctx))
	backend := mediatest.NewMuxerBackend()
	m := newTestMuxer(t, ctx, backend)

	p, err := NewAudio(
		ctx, src.Tracks()[0].Format, 0, 2, types.TransformationRequest{}, AudioConfig{},
		&mediatest.DecoderFactory{}, mediatest.NewEncoderFactory(), m, nil,
	)
	require.NoError(t, err)
	defer p.Release(ctx)

	runPipeline(t, ctx, p, src, 0)

	samples := backend.TrackSamples(codec.MimeTypeAudioAAC)
	require.NotEmpty(t, samples)
	requireMonotonic(t, samples)
	last := samples[len(samples)-1].PresentationTimeUs
	require.InDelta(t, 500_000, last, 50_000)
}

func TestAudioPipelineWithoutFactories(t *testing.T) {
	ctx := mediatest.NewContext(t)
	format := codec.NewAudioFormat(codec.MimeTypeAudioAAC, 44100, 2)
	_, err := NewAudio(ctx, format, 0, 1, types.TransformationRequest{}, AudioConfig{}, nil, nil, nil, nil)
	require.Error(t, err)
	require.Equal(t, types.ErrorCodeDecoderInitFailed, types.AsErrTransformation(err).Code)
}

func TestVideoPipelineEncodesGraphOutput(t *testing.T) {
	ctx := mediatest.NewContext(t)
	src := mediatest.NewSource(500_000,
		mediatest.NewVideoTrack(codec.MimeTypeVideoH264, 64, 36, 30),
	)
	require.NoError(t, src.Prepare(ctx))
	backend := mediatest.NewMuxerBackend()
	m := newTestMuxer(t, ctx, backend)
	reporter := &requestRecorder{}

	lowBitrateEncoder := mediatest.H264EncoderInfo
	lowBitrateEncoder.Bitrates = codec.Range{Min: 100_000, Max: 2_000_000}
	request := types.TransformationRequest{VideoQuality: quality.ConstantBitrate(10_000_000)}
	p, err := NewVideo(
		ctx, src.Tracks()[0].Format, 0, 1, request,
		VideoConfig{Effects: []effect.Effect{effect.NewBrightness(0.2)}},
		&mediatest.DecoderFactory{}, mediatest.NewEncoderFactory(lowBitrateEncoder), m, reporter,
	)
	require.NoError(t, err)
	defer p.Release(ctx)

	runPipeline(t, ctx, p, src, 0)

	require.Equal(t, lowBitrateEncoder.Name, p.EncoderName())
	require.Equal(t, []types.TransformationRequest{
		request.WithVideoQuality(quality.ConstantBitrate(2_000_000)),
	}, reporter.get())

	samples := backend.TrackSamples(codec.MimeTypeVideoH264)
	require.Len(t, samples, src.SampleCount(0))
	require.Equal(t, int64(0), samples[0].PresentationTimeUs)
	require.True(t, samples[0].IsKeyFrame)
	requireMonotonic(t, samples)
	require.Equal(t, uint64(len(samples)), p.Graph().RenderedFrameCount())

	formats := backend.Formats()
	require.Len(t, formats, 1)
	require.Equal(t, 64, formats[0].Width)
	require.Equal(t, 36, formats[0].Height)
	require.Equal(t, 2_000_000, formats[0].Bitrate)
}

func TestVideoPipelineLandscapeEncoder(t *testing.T) {
	ctx := mediatest.NewContext(t)
	src := mediatest.NewSource(200_000,
		mediatest.NewVideoTrack(codec.MimeTypeVideoH264, 36, 64, 30),
	)
	require.NoError(t, src.Prepare(ctx))
	backend := mediatest.NewMuxerBackend()
	m := newTestMuxer(t, ctx, backend)
	reporter := &requestRecorder{}

	request := types.TransformationRequest{OutputHeight: 32}
	p, err := NewVideo(
		ctx, src.Tracks()[0].Format, 0, 1, request, VideoConfig{},
		&mediatest.DecoderFactory{}, mediatest.NewEncoderFactory(), m, reporter,
	)
	require.NoError(t, err)
	defer p.Release(ctx)

	runPipeline(t, ctx, p, src, 0)

	formats := backend.Formats()
	require.Len(t, formats, 1)
	require.Equal(t, 32, formats[0].Width)
	require.Equal(t, 18, formats[0].Height)
	require.Equal(t, 90, formats[0].Rotation)
	require.Equal(t, []types.TransformationRequest{request}, reporter.get())
	require.Len(t, backend.TrackSamples(codec.MimeTypeVideoH264), src.SampleCount(0))
}

func TestVideoPipelineWithoutFrames(t *testing.T) {
	ctx := mediatest.NewContext(t)
	src := mediatest.NewSource(0,
		mediatest.NewVideoTrack(codec.MimeTypeVideoH264, 64, 36, 30),
	)
	require.NoError(t, src.Prepare(ctx))
	backend := mediatest.NewMuxerBackend()
	m := newTestMuxer(t, ctx, backend)

	p, err := NewVideo(
		ctx, src.Tracks()[0].Format, 0, 1, types.TransformationRequest{}, VideoConfig{},
		&mediatest.DecoderFactory{}, mediatest.NewEncoderFactory(), m, nil,
	)
	require.NoError(t, err)
	defer p.Release(ctx)

	runPipeline(t, ctx, p, src, 0)
	require.Empty(t, p.EncoderName())
	require.Empty(t, backend.Formats())
	require.True(t, m.IsEnded())
}

func TestVideoPipelineFollowsDecoderOutputSize(t *testing.T) {
	ctx := mediatest.NewContext(t)
	format := codec.NewVideoFormat(codec.MimeTypeVideoH264, 64, 36)
	backend := mediatest.NewMuxerBackend()
	m := newTestMuxer(t, ctx, backend)
	decoders := &mediatest.DecoderFactory{}

	p, err := NewVideo(
		ctx, format, 0, 1, types.TransformationRequest{}, VideoConfig{},
		decoders, mediatest.NewEncoderFactory(), m, nil,
	)
	require.NoError(t, err)
	defer p.Release(ctx)
	require.Len(t, decoders.Decoders(), 1)

	require.NoError(t, p.updateFrameInfo(ctx))
	require.Equal(t, frame.NewInfo(64, 36), p.frameInfo)

	decoders.Decoders()[0].SetOutputSize(32, 18)
	require.NoError(t, p.updateFrameInfo(ctx))
	require.Equal(t, frame.NewInfo(32, 18), p.frameInfo)

	require.NoError(t, p.updateFrameInfo(ctx))
	require.Equal(t, frame.NewInfo(32, 18), p.frameInfo)
}
