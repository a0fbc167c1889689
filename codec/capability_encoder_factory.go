package codec

import (
	"context"
	"fmt"

	"github.com/xaionaro-go/avtransformer/logger"
	"github.com/xaionaro-go/avtransformer/types"
)

// EncoderConstructor creates an encoder named by info configured with the
// given (already adjusted) format.
type EncoderConstructor func(ctx context.Context, info EncoderInfo, format *Format) (Codec, error)

// CapabilityEncoderFactory is an EncoderFactory choosing the settings with
// SelectEncoderSettings among the Encoders available on the host.
type CapabilityEncoderFactory struct {
	Encoders []EncoderInfo
	New      EncoderConstructor

	// DisableFallback makes the factory fail instead of adjusting the
	// requested format.
	DisableFallback bool
}

var _ EncoderFactory = (*CapabilityEncoderFactory)(nil)

func NewCapabilityEncoderFactory(
	newEncoder EncoderConstructor,
	encoders ...EncoderInfo,
) *CapabilityEncoderFactory {
	return &CapabilityEncoderFactory{
		Encoders: encoders,
		New:      newEncoder,
	}
}

func (f *CapabilityEncoderFactory) String() string {
	return fmt.Sprintf("CapabilityEncoderFactory(%d encoders)", len(f.Encoders))
}

func (f *CapabilityEncoderFactory) CreateForAudioEncoding(ctx context.Context, format *Format) (Codec, error) {
	return f.create(ctx, format)
}

func (f *CapabilityEncoderFactory) CreateForVideoEncoding(ctx context.Context, format *Format) (Codec, error) {
	return f.create(ctx, format)
}

func (f *CapabilityEncoderFactory) create(ctx context.Context, requested *Format) (_ret Codec, _err error) {
	logger.Tracef(ctx, "create(%s)", requested)
	defer func() { logger.Tracef(ctx, "/create(%s): %v %v", requested, _ret, _err) }()

	achieved, info, err := SelectEncoderSettings(requested, f.Encoders)
	if err != nil {
		return nil, types.NewErrEncoding(types.ErrorCodeEncodingFormatUnsupported, "", requested, "", err)
	}
	if !achieved.Equal(requested) {
		if f.DisableFallback {
			return nil, types.NewErrEncoding(
				types.ErrorCodeEncodingFormatUnsupported, "", requested, info.Name,
				fmt.Errorf("the encoder supports %s only", achieved),
			)
		}
		logger.Infof(ctx, "requested %s, falling back to %s on %s", requested, achieved, info)
	}
	encoder, err := f.New(ctx, info, achieved)
	if err != nil {
		return nil, types.NewErrEncoding(types.ErrorCodeEncoderInitFailed, "", achieved, info.Name, err)
	}
	return encoder, nil
}
