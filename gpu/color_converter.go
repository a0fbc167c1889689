package gpu

import (
	"image"
	"image/color"
	"math"

	"github.com/anthonynsimon/bild/adjust"
)

// ColorConverter applies the terminal color-space conversion of the frame
// processing graph.
type ColorConverter struct {
	ToneMapHDR   bool
	LimitedRange bool

	// PeakLuminanceRatio is the ratio of the HDR peak to the SDR white,
	// used by the tone-mapping curve.
	PeakLuminanceRatio float64

	toneMapLUT [256]uint8
}

func NewColorConverter(toneMapHDR, limitedRange bool) *ColorConverter {
	c := &ColorConverter{
		ToneMapHDR:         toneMapHDR,
		LimitedRange:       limitedRange,
		PeakLuminanceRatio: 4,
	}
	c.buildLUT()
	return c
}

func (c *ColorConverter) buildLUT() {
	peak := c.PeakLuminanceRatio
	if peak <= 1 {
		peak = 1
	}
	for i := range c.toneMapLUT {
		// linearize, scale to the HDR range, compress with extended Reinhard
		// and encode back with gamma 2.2.
		v := math.Pow(float64(i)/255, 2.2) * peak
		mapped := v * (1 + v/(peak*peak)) / (1 + v)
		c.toneMapLUT[i] = uint8(math.Round(math.Pow(mapped, 1/2.2) * 255))
	}
}

// IsNoop returns true if Convert returns its input unchanged.
func (c *ColorConverter) IsNoop() bool {
	return !c.ToneMapHDR && !c.LimitedRange
}

func (c *ColorConverter) Convert(img image.Image) *image.RGBA {
	if c.IsNoop() {
		if rgba, ok := img.(*image.RGBA); ok {
			return rgba
		}
	}
	return adjust.Apply(img, func(px color.RGBA) color.RGBA {
		if c.ToneMapHDR {
			px = c.ToneMapHDRToSDR(px)
		}
		if c.LimitedRange {
			px = ConvertToBT709Limited(px)
		}
		return px
	})
}

func (c *ColorConverter) ToneMapHDRToSDR(px color.RGBA) color.RGBA {
	return color.RGBA{
		R: c.toneMapLUT[px.R],
		G: c.toneMapLUT[px.G],
		B: c.toneMapLUT[px.B],
		A: px.A,
	}
}

// ConvertToBT709Limited maps full-range components into the 16..235 range.
func ConvertToBT709Limited(px color.RGBA) color.RGBA {
	limit := func(v uint8) uint8 {
		return uint8(16 + (int(v)*219+127)/255)
	}
	return color.RGBA{
		R: limit(px.R),
		G: limit(px.G),
		B: limit(px.B),
		A: px.A,
	}
}
