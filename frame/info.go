// Package frame describes the frames and textures flowing through the frame
// processing graph.
package frame

import (
	"fmt"
)

// Info describes the frames of one input stream segment.
type Info struct {
	Width  int
	Height int

	// PixelWidthHeightRatio is the pixel aspect ratio (1 for square pixels).
	PixelWidthHeightRatio float64

	// StreamOffsetUs is added to the presentation times of the segment's
	// frames to place them on the output timeline.
	StreamOffsetUs int64
}

func NewInfo(width, height int) Info {
	return Info{
		Width:                 width,
		Height:                height,
		PixelWidthHeightRatio: 1,
	}
}

func (info Info) WithStreamOffsetUs(offsetUs int64) Info {
	info.StreamOffsetUs = offsetUs
	return info
}

func (info Info) WithPixelWidthHeightRatio(ratio float64) Info {
	info.PixelWidthHeightRatio = ratio
	return info
}

func (info Info) Validate() error {
	if info.Width <= 0 {
		return fmt.Errorf("width must be positive, but is %d", info.Width)
	}
	if info.Height <= 0 {
		return fmt.Errorf("height must be positive, but is %d", info.Height)
	}
	if info.PixelWidthHeightRatio <= 0 {
		return fmt.Errorf("pixel width/height ratio must be positive, but is %f", info.PixelWidthHeightRatio)
	}
	return nil
}

// NormalizedSize returns the frame size with non-square pixels expanded, so
// that the result has square pixels.
func (info Info) NormalizedSize() (width, height int) {
	switch {
	case info.PixelWidthHeightRatio > 1:
		return int(float64(info.Width)*info.PixelWidthHeightRatio + 0.5), info.Height
	case info.PixelWidthHeightRatio < 1 && info.PixelWidthHeightRatio > 0:
		return info.Width, int(float64(info.Height)/info.PixelWidthHeightRatio + 0.5)
	default:
		return info.Width, info.Height
	}
}

func (info Info) String() string {
	return fmt.Sprintf("%dx%d(par:%g, offset:%dus)", info.Width, info.Height, info.PixelWidthHeightRatio, info.StreamOffsetUs)
}
