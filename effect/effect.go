package effect

import (
	"context"
	"fmt"
	"image"

	"github.com/anthonynsimon/bild/adjust"
	"github.com/anthonynsimon/bild/blur"
	bildeffect "github.com/anthonynsimon/bild/effect"
	"github.com/xaionaro-go/avtransformer/gpu"
)

// Effect is either a MatrixEffect or a GeneralEffect.
type Effect interface {
	fmt.Stringer
	isEffect()
}

// MatrixEffect is a geometric effect; consecutive matrix effects may be
// drawn in a single pass.
type MatrixEffect struct {
	Transformation MatrixTransformation
}

func (MatrixEffect) isEffect() {}

func (e MatrixEffect) String() string {
	return e.Transformation.String()
}

// GeneralEffect is drawn by a stage of its own.
type GeneralEffect struct {
	Name     string
	NewStage func(ctx context.Context) (Stage, error)
}

func (GeneralEffect) isEffect() {}

func (e GeneralEffect) String() string {
	return e.Name
}

func NewScaleAndRotate(scaleX, scaleY, rotationDegrees float64) MatrixEffect {
	return MatrixEffect{Transformation: &ScaleAndRotate{
		ScaleX:          scaleX,
		ScaleY:          scaleY,
		RotationDegrees: rotationDegrees,
	}}
}

func NewRotation(degrees float64) MatrixEffect {
	return NewScaleAndRotate(1, 1, degrees)
}

func NewPresentation(height int, layout Layout) MatrixEffect {
	return MatrixEffect{Transformation: &Presentation{
		Height: height,
		Layout: layout,
	}}
}

func NewPresentationWithAspectRatio(height int, aspectRatio float64, layout Layout) MatrixEffect {
	return MatrixEffect{Transformation: &Presentation{
		Height:      height,
		AspectRatio: aspectRatio,
		Layout:      layout,
	}}
}

func NewCrop(left, right, bottom, top float64) MatrixEffect {
	return MatrixEffect{Transformation: &Crop{
		Left:   left,
		Right:  right,
		Bottom: bottom,
		Top:    top,
	}}
}

// NewMatrixFunc returns a size-preserving effect with a per-frame matrix.
func NewMatrixFunc(name string, fn func(presentationTimeUs int64) gpu.Matrix) MatrixEffect {
	return MatrixEffect{Transformation: &MatrixFunc{
		Name: name,
		Func: fn,
	}}
}

// NewCustom returns a general effect applying fn to every frame.
func NewCustom(name string, fn ImageFunc) GeneralEffect {
	return GeneralEffect{
		Name: name,
		NewStage: func(ctx context.Context) (Stage, error) {
			return NewImageStage(name, fn), nil
		},
	}
}

func newImageEffect(name string, fn func(img image.Image) *image.RGBA) GeneralEffect {
	return NewCustom(name, func(ctx context.Context, img image.Image, _ int64) (*image.RGBA, error) {
		return fn(img), nil
	})
}

// NewBrightness changes the brightness by change (-1..1).
func NewBrightness(change float64) GeneralEffect {
	return newImageEffect(fmt.Sprintf("Brightness(%g)", change), func(img image.Image) *image.RGBA {
		return adjust.Brightness(img, change)
	})
}

// NewContrast changes the contrast by change (-1..1).
func NewContrast(change float64) GeneralEffect {
	return newImageEffect(fmt.Sprintf("Contrast(%g)", change), func(img image.Image) *image.RGBA {
		return adjust.Contrast(img, change)
	})
}

// NewBrightnessContrast applies both adjustments in one stage.
func NewBrightnessContrast(brightness, contrast float64) GeneralEffect {
	return newImageEffect(fmt.Sprintf("BrightnessContrast(%g, %g)", brightness, contrast), func(img image.Image) *image.RGBA {
		return adjust.Contrast(adjust.Brightness(img, brightness), contrast)
	})
}

func NewSaturation(change float64) GeneralEffect {
	return newImageEffect(fmt.Sprintf("Saturation(%g)", change), func(img image.Image) *image.RGBA {
		return adjust.Saturation(img, change)
	})
}

func NewGamma(gamma float64) GeneralEffect {
	return newImageEffect(fmt.Sprintf("Gamma(%g)", gamma), func(img image.Image) *image.RGBA {
		return adjust.Gamma(img, gamma)
	})
}

func NewGaussianBlur(radius float64) GeneralEffect {
	return newImageEffect(fmt.Sprintf("GaussianBlur(%g)", radius), func(img image.Image) *image.RGBA {
		return blur.Gaussian(img, radius)
	})
}

func NewGrayscale() GeneralEffect {
	return newImageEffect("Grayscale", bildeffect.Grayscale)
}

func NewSepia() GeneralEffect {
	return newImageEffect("Sepia", bildeffect.Sepia)
}
