package types

import (
	"fmt"
)

// ErrorCode is a stable identifier of an error cause. The thousands digit
// identifies the group: 1 unspecified/runtime, 2 I/O, 3 decoding,
// 4 encoding, 5 frame processing, 7 muxing.
type ErrorCode int

const (
	ErrorCodeUnspecified        = ErrorCode(1000)
	ErrorCodeFailedRuntimeCheck = ErrorCode(1001)
	ErrorCodeCancelled          = ErrorCode(1002)

	ErrorCodeIOUnspecified            = ErrorCode(2000)
	ErrorCodeIOFileNotFound           = ErrorCode(2005)
	ErrorCodeIOReadPositionOutOfRange = ErrorCode(2008)

	ErrorCodeDecoderInitFailed         = ErrorCode(3001)
	ErrorCodeDecodingFailed            = ErrorCode(3002)
	ErrorCodeDecodingFormatUnsupported = ErrorCode(3003)

	ErrorCodeEncoderInitFailed         = ErrorCode(4001)
	ErrorCodeEncodingFailed            = ErrorCode(4002)
	ErrorCodeEncodingFormatUnsupported = ErrorCode(4003)

	ErrorCodeFrameProcessingFailed = ErrorCode(5001)

	ErrorCodeMuxingFailed  = ErrorCode(7001)
	ErrorCodeMuxingTimeout = ErrorCode(7002)
)

func (c ErrorCode) String() string {
	switch c {
	case ErrorCodeUnspecified:
		return "ERROR_CODE_UNSPECIFIED"
	case ErrorCodeFailedRuntimeCheck:
		return "ERROR_CODE_FAILED_RUNTIME_CHECK"
	case ErrorCodeCancelled:
		return "ERROR_CODE_CANCELLED"
	case ErrorCodeIOUnspecified:
		return "ERROR_CODE_IO_UNSPECIFIED"
	case ErrorCodeIOFileNotFound:
		return "ERROR_CODE_IO_FILE_NOT_FOUND"
	case ErrorCodeIOReadPositionOutOfRange:
		return "ERROR_CODE_IO_READ_POSITION_OUT_OF_RANGE"
	case ErrorCodeDecoderInitFailed:
		return "ERROR_CODE_DECODER_INIT_FAILED"
	case ErrorCodeDecodingFailed:
		return "ERROR_CODE_DECODING_FAILED"
	case ErrorCodeDecodingFormatUnsupported:
		return "ERROR_CODE_DECODING_FORMAT_UNSUPPORTED"
	case ErrorCodeEncoderInitFailed:
		return "ERROR_CODE_ENCODER_INIT_FAILED"
	case ErrorCodeEncodingFailed:
		return "ERROR_CODE_ENCODING_FAILED"
	case ErrorCodeEncodingFormatUnsupported:
		return "ERROR_CODE_ENCODING_FORMAT_UNSUPPORTED"
	case ErrorCodeFrameProcessingFailed:
		return "ERROR_CODE_FRAME_PROCESSING_FAILED"
	case ErrorCodeMuxingFailed:
		return "ERROR_CODE_MUXING_FAILED"
	case ErrorCodeMuxingTimeout:
		return "ERROR_CODE_MUXING_TIMEOUT"
	}
	return fmt.Sprintf("ERROR_CODE_%d", int(c))
}

// Group returns the taxonomy group of the code (the thousands digit times 1000).
func (c ErrorCode) Group() ErrorCode {
	return c / 1000 * 1000
}
