package muxer

import (
	"fmt"
	"time"

	"github.com/xaionaro-go/avtransformer/types"
)

type ErrStalled struct {
	Timeout time.Duration
}

func (e ErrStalled) Error() string {
	return fmt.Sprintf("no sample was written during %v", e.Timeout)
}

type ErrUnsupportedMimeType struct {
	MimeType string
}

func (e ErrUnsupportedMimeType) Error() string {
	return fmt.Sprintf("the muxer does not support '%s'", e.MimeType)
}

type ErrTooManyTracks struct {
	TrackType  types.MediaType
	TrackCount int
}

func (e ErrTooManyTracks) Error() string {
	return fmt.Sprintf("unable to add a %s track: %d tracks were registered", e.TrackType, e.TrackCount)
}
