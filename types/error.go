package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrTransformation is the single error type a transformation reports:
// every failure is normalized into it, keeping the original cause wrapped.
type ErrTransformation struct {
	Code ErrorCode

	// Component is the pipeline component the error originates from
	// (e.g. "VideoSamplePipeline", "Graph", "Muxer").
	Component string

	// Format is a human readable description of the media format involved,
	// if any.
	Format string

	// CodecName is the name of the codec involved, if any.
	CodecName string

	Err error
}

var _ error = (*ErrTransformation)(nil)

func (e *ErrTransformation) Error() string {
	var b strings.Builder
	b.WriteString(e.Code.String())
	if e.Component != "" {
		b.WriteString(" [")
		b.WriteString(e.Component)
		b.WriteString("]")
	}
	if e.CodecName != "" {
		fmt.Fprintf(&b, " codec:%s", e.CodecName)
	}
	if e.Format != "" {
		fmt.Fprintf(&b, " format:%s", e.Format)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ErrTransformation) Unwrap() error {
	return e.Err
}

// WithComponent returns a copy with the component set if it was not set yet.
func (e *ErrTransformation) WithComponent(component string) *ErrTransformation {
	if e.Component != "" {
		return e
	}
	cpy := *e
	cpy.Component = component
	return &cpy
}

func NewErrTransformation(code ErrorCode, component string, err error) *ErrTransformation {
	return &ErrTransformation{
		Code:      code,
		Component: component,
		Err:       err,
	}
}

func NewErrIO(code ErrorCode, err error) *ErrTransformation {
	return NewErrTransformation(code, "Source", err)
}

// NewErrCodec builds an error for a decoder or encoder failure, describing the
// format and the codec involved.
func NewErrCodec(
	code ErrorCode,
	component string,
	format fmt.Stringer,
	codecName string,
	err error,
) *ErrTransformation {
	e := NewErrTransformation(code, component, err)
	if format != nil {
		e.Format = format.String()
	}
	e.CodecName = codecName
	return e
}

func NewErrFrameProcessing(err error) *ErrTransformation {
	return NewErrTransformation(ErrorCodeFrameProcessingFailed, "Graph", err)
}

func NewErrMuxing(code ErrorCode, err error) *ErrTransformation {
	return NewErrTransformation(code, "Muxer", err)
}

func NewErrUnexpected(err error) *ErrTransformation {
	return NewErrTransformation(ErrorCodeUnspecified, "", err)
}

// AsErrTransformation normalizes err: if it already wraps an
// *ErrTransformation that one is returned, otherwise err is wrapped with
// ErrorCodeUnspecified.
func AsErrTransformation(err error) *ErrTransformation {
	if err == nil {
		return nil
	}
	var target *ErrTransformation
	if errors.As(err, &target) {
		return target
	}
	return NewErrUnexpected(err)
}

// ErrNotImplemented is returned by optional collaborator methods.
type ErrNotImplemented struct {
	Feature string
}

func (e ErrNotImplemented) Error() string {
	return fmt.Sprintf("not implemented: %s", e.Feature)
}

func NewErrDecoding(code ErrorCode, component string, format fmt.Stringer, codecName string, err error) *ErrTransformation {
	return NewErrCodec(code, component, format, codecName, err)
}

func NewErrEncoding(code ErrorCode, component string, format fmt.Stringer, codecName string, err error) *ErrTransformation {
	return NewErrCodec(code, component, format, codecName, err)
}
