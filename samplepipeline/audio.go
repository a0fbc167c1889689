package samplepipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/xaionaro-go/avtransformer/audio"
	"github.com/xaionaro-go/avtransformer/codec"
	"github.com/xaionaro-go/avtransformer/logger"
	"github.com/xaionaro-go/avtransformer/types"
)

const (
	DefaultAudioBitrate = 128_000

	// DefaultAudioMaxInputSize is the size of an encoder input buffer if
	// the encoder does not report one.
	DefaultAudioMaxInputSize = 8192
)

type AudioConfig struct {
	// ResamplerFactory creates the converter used if the encoder does not
	// support the sample rate or the channel count of the decoded audio;
	// audio.NewResampler if not set.
	ResamplerFactory audio.ResamplerFactory
}

// Audio decodes the audio track, passes the raw audio through the audio
// processors and encodes the result.
type Audio struct {
	base
	InputFormat *codec.Format
	Config      AudioConfig

	encoderFactory codec.EncoderFactory
	decoder        codec.Codec
	encoder        codec.Codec
	processors     *audio.Chain
	tracker        *audio.TimestampTracker

	// pcm is the raw audio that is not queued to the encoder yet.
	pcm              []byte
	speed            float64
	hasFirstPCMTime  bool
	decoderDrained   bool
	encoderEOSQueued bool
}

var _ Pipeline = (*Audio)(nil)

func NewAudio(
	ctx context.Context,
	inputFormat *codec.Format,
	streamStartPositionUs int64,
	speed float64,
	request types.TransformationRequest,
	cfg AudioConfig,
	decoderFactory codec.DecoderFactory,
	encoderFactory codec.EncoderFactory,
	muxer Muxer,
	fallback FallbackReporter,
) (_ret *Audio, _err error) {
	logger.Debugf(ctx, "NewAudio(%s)", inputFormat)
	defer func() { logger.Debugf(ctx, "/NewAudio(%s): %v", inputFormat, _err) }()
	if decoderFactory == nil || encoderFactory == nil {
		return nil, types.NewErrTransformation(types.ErrorCodeDecoderInitFailed, "AudioSamplePipeline", fmt.Errorf("no codec factories"))
	}
	if cfg.ResamplerFactory == nil {
		cfg.ResamplerFactory = audio.NewResampler
	}
	a := &Audio{
		base: newBase(
			"AudioSamplePipeline",
			types.MediaTypeAudio, muxer, fallback, request, streamStartPositionUs, 1,
		),
		InputFormat:    inputFormat.Clone(),
		Config:         cfg,
		encoderFactory: encoderFactory,
		speed:          1,
	}
	var processors []audio.Processor
	if speed > 0 && speed != 1 {
		a.speed = speed
		processors = append(processors, audio.NewSpeedChanger(speed))
	}
	a.processors = audio.NewChain(processors...)

	decoder, err := decoderFactory.CreateForAudioDecoding(ctx, inputFormat)
	if err != nil {
		return nil, a.asCodecErr(types.ErrorCodeDecoderInitFailed, inputFormat, "", err)
	}
	a.decoder = decoder
	return a, nil
}

func (a *Audio) DequeueInputBuffer(ctx context.Context) (*codec.Buffer, error) {
	buf, err := a.decoder.DequeueInputBuffer(ctx)
	if err != nil {
		return nil, a.asCodecErr(types.ErrorCodeDecodingFailed, a.InputFormat, a.decoder.Name(), err)
	}
	return buf, nil
}

func (a *Audio) QueueInputBuffer(ctx context.Context) error {
	buf, err := a.decoder.DequeueInputBuffer(ctx)
	if err != nil {
		return a.asCodecErr(types.ErrorCodeDecodingFailed, a.InputFormat, a.decoder.Name(), err)
	}
	if buf == nil {
		return fmt.Errorf("no input buffer is dequeued")
	}
	if !buf.IsEndOfStream() {
		buf.PresentationTimeUs = a.outputTimeUs(buf.PresentationTimeUs)
	}
	if err := a.decoder.QueueInputBuffer(ctx); err != nil {
		return a.asCodecErr(types.ErrorCodeDecodingFailed, a.InputFormat, a.decoder.Name(), err)
	}
	a.setState(ctx, StateDecoding)
	return nil
}

func (a *Audio) ProcessData(ctx context.Context) (_ret bool, _err error) {
	logger.Tracef(ctx, "%s.ProcessData", a)
	defer func() { logger.Tracef(ctx, "/%s.ProcessData: %v %v", a, _ret, _err) }()
	if a.IsEnded() {
		return false, nil
	}
	if a.encoder == nil {
		ok, err := a.maybeCreateEncoder(ctx)
		if err != nil || !ok {
			return false, err
		}
	}

	var progress bool
	for _, step := range []func(context.Context) (bool, error){
		a.feedMuxer,
		a.feedEncoder,
		a.feedProcessors,
	} {
		ok, err := step(ctx)
		if err != nil {
			return progress, err
		}
		progress = progress || ok
	}
	return progress, nil
}

func (a *Audio) feedMuxer(ctx context.Context) (bool, error) {
	return a.feedMuxerFromEncoder(ctx, a.encoder)
}

// maybeCreateEncoder creates the encoder once the decoder reports the
// format of the raw audio.
func (a *Audio) maybeCreateEncoder(ctx context.Context) (bool, error) {
	decoderFormat, err := a.decoder.OutputFormat(ctx)
	if err != nil {
		return false, a.asCodecErr(types.ErrorCodeDecodingFailed, a.InputFormat, a.decoder.Name(), err)
	}
	if decoderFormat == nil {
		return false, nil
	}
	pcmFormat, err := a.processors.Configure(ctx, decoderFormat)
	if err != nil {
		return false, a.asCodecErr(types.ErrorCodeEncodingFormatUnsupported, decoderFormat, "", err)
	}

	mimeType := a.request.AudioMimeType
	if mimeType == "" {
		mimeType = a.InputFormat.MimeType
	}
	requested := codec.NewAudioFormat(mimeType, pcmFormat.SampleRate, pcmFormat.Channels)
	requested.Bitrate = a.InputFormat.Bitrate
	if requested.Bitrate <= 0 {
		requested.Bitrate = DefaultAudioBitrate
	}
	encoder, err := a.encoderFactory.CreateForAudioEncoding(ctx, requested)
	if err != nil {
		return false, a.asCodecErr(types.ErrorCodeEncoderInitFailed, requested, "", err)
	}
	a.encoder = encoder
	logger.Debugf(ctx, "%s: encoder %s configured with %s", a, encoder.Name(), encoder.ConfigurationFormat())

	if pcmFormat, err = a.matchEncoderInput(ctx, decoderFormat, pcmFormat); err != nil {
		return false, err
	}
	tracker, err := audio.NewTimestampTracker(pcmFormat)
	if err != nil {
		return false, a.asCodecErr(types.ErrorCodeEncodingFormatUnsupported, pcmFormat, "", err)
	}
	a.tracker = tracker

	achieved := a.request
	if achievedMimeType := encoder.ConfigurationFormat().MimeType; achievedMimeType != mimeType || a.request.AudioMimeType != "" {
		achieved = achieved.WithAudioMimeType(achievedMimeType)
	}
	if err := a.reportRequest(ctx, achieved); err != nil {
		return false, err
	}
	return true, nil
}

// matchEncoderInput appends a resampler to the processors if the encoder
// was configured with another sample rate or channel count than requested.
func (a *Audio) matchEncoderInput(
	ctx context.Context,
	decoderFormat *codec.Format,
	pcmFormat *codec.Format,
) (*codec.Format, error) {
	encoderFormat := a.encoder.ConfigurationFormat()
	if encoderFormat.SampleRate == pcmFormat.SampleRate && encoderFormat.Channels == pcmFormat.Channels {
		return pcmFormat, nil
	}
	logger.Debugf(ctx, "%s: resampling %dHz/%dch to %dHz/%dch", a,
		pcmFormat.SampleRate, pcmFormat.Channels, encoderFormat.SampleRate, encoderFormat.Channels)
	resampler, err := a.Config.ResamplerFactory(ctx, encoderFormat.SampleRate, encoderFormat.Channels)
	if err != nil {
		return nil, a.asCodecErr(types.ErrorCodeEncodingFormatUnsupported, pcmFormat, a.encoder.Name(), err)
	}
	a.processors = audio.NewChain(append(a.processors.Processors, resampler)...)
	result, err := a.processors.Configure(ctx, decoderFormat)
	if err != nil {
		return nil, a.asCodecErr(types.ErrorCodeEncodingFormatUnsupported, pcmFormat, a.encoder.Name(), err)
	}
	return result, nil
}

// feedProcessors moves one decoded buffer to the audio processors.
func (a *Audio) feedProcessors(ctx context.Context) (bool, error) {
	if a.decoderDrained {
		return false, nil
	}
	buf, err := a.decoder.OutputBuffer(ctx)
	if err != nil {
		return false, a.asCodecErr(types.ErrorCodeDecodingFailed, a.InputFormat, a.decoder.Name(), err)
	}
	if buf == nil {
		if a.decoder.IsEnded() {
			a.drainDecoder(ctx)
			return true, nil
		}
		return false, nil
	}
	if len(buf.Data) > 0 {
		if !a.hasFirstPCMTime {
			a.hasFirstPCMTime = true
			a.tracker.Reset(int64(float64(buf.PresentationTimeUs) / a.speed))
		}
		if err := a.processors.QueueInput(ctx, buf.Data); err != nil {
			return false, a.asCodecErr(types.ErrorCodeEncodingFailed, a.InputFormat, "", err)
		}
		a.setState(ctx, StateProcessing)
	}
	isEOS := buf.IsEndOfStream()
	if err := a.decoder.ReleaseOutputBuffer(ctx, false); err != nil {
		return false, a.asCodecErr(types.ErrorCodeDecodingFailed, a.InputFormat, a.decoder.Name(), err)
	}
	if isEOS {
		a.drainDecoder(ctx)
	}
	a.pcm = append(a.pcm, a.processors.Output()...)
	return true, nil
}

func (a *Audio) drainDecoder(ctx context.Context) {
	logger.Debugf(ctx, "%s: the decoder is drained", a)
	a.decoderDrained = true
	a.processors.QueueEndOfStream(ctx)
	a.pcm = append(a.pcm, a.processors.Output()...)
	a.setState(ctx, StateDraining)
}

// feedEncoder moves the pending raw audio to one encoder input buffer;
// the rest stays pending for the next buffers.
func (a *Audio) feedEncoder(ctx context.Context) (bool, error) {
	if a.encoderEOSQueued {
		return false, nil
	}
	endOfStream := a.decoderDrained && a.processors.IsEnded()
	if len(a.pcm) == 0 && !endOfStream {
		return false, nil
	}
	buf, err := a.encoder.DequeueInputBuffer(ctx)
	if err != nil {
		return false, a.asCodecErr(types.ErrorCodeEncodingFailed, nil, a.encoder.Name(), err)
	}
	if buf == nil {
		return false, nil
	}
	buf.Reset()
	if len(a.pcm) > 0 {
		n := min(len(a.pcm), a.maxEncoderInputSize())
		buf.Data = append(buf.Data, a.pcm[:n]...)
		buf.PresentationTimeUs = a.tracker.Advance(n)
		a.pcm = append(a.pcm[:0], a.pcm[n:]...)
	} else {
		logger.Debugf(ctx, "%s: queueing the end of stream to the encoder", a)
		buf.PresentationTimeUs = a.tracker.CurrentTimeUs()
		buf.Flags |= codec.BufferFlagEndOfStream
		a.encoderEOSQueued = true
	}
	if err := a.encoder.QueueInputBuffer(ctx); err != nil {
		return false, a.asCodecErr(types.ErrorCodeEncodingFailed, nil, a.encoder.Name(), err)
	}
	a.setState(ctx, StateEncoding)
	return true, nil
}

// maxEncoderInputSize returns the amount of whole PCM frames (in bytes)
// fitting into an encoder input buffer.
func (a *Audio) maxEncoderInputSize() int {
	size := a.encoder.ConfigurationFormat().MaxInputSize
	if size <= 0 {
		size = DefaultAudioMaxInputSize
	}
	frameSize := a.tracker.FrameSize
	return max(size/frameSize*frameSize, frameSize)
}

// EncoderName returns the name of the encoder, empty if not created yet.
func (a *Audio) EncoderName() string {
	if a.encoder == nil {
		return ""
	}
	return a.encoder.Name()
}

func (a *Audio) Release(ctx context.Context) error {
	logger.Debugf(ctx, "%s.Release", a)
	var errs []error
	if a.decoder != nil {
		if err := a.decoder.Release(ctx); err != nil {
			errs = append(errs, fmt.Errorf("unable to release the decoder: %w", err))
		}
	}
	if a.encoder != nil {
		if err := a.encoder.Release(ctx); err != nil {
			errs = append(errs, fmt.Errorf("unable to release the encoder: %w", err))
		}
	}
	a.processors.Reset()
	return errors.Join(errs...)
}
