package effect

import (
	"fmt"
	"math"

	"github.com/xaionaro-go/avtransformer/gpu"
)

// MatrixTransformation is a geometric transformation expressed as a matrix in
// normalized device coordinates.
type MatrixTransformation interface {
	fmt.Stringer
	Configure(inputWidth, inputHeight int) (outputWidth, outputHeight int, err error)

	// Matrix returns the transformation for a frame. It is called after
	// Configure.
	Matrix(presentationTimeUs int64) gpu.Matrix
}

func round(v float64) int {
	return int(math.Floor(v + 0.5))
}

func validateInputSize(inputWidth, inputHeight int) error {
	if inputWidth <= 0 || inputHeight <= 0 {
		return fmt.Errorf("invalid input size %dx%d", inputWidth, inputHeight)
	}
	return nil
}

// ScaleAndRotate scales and then rotates counter-clockwise the frames. The
// output size is the bounding box of the transformed frame, so no input
// pixel is cut off.
type ScaleAndRotate struct {
	ScaleX          float64
	ScaleY          float64
	RotationDegrees float64

	matrix gpu.Matrix
}

var _ MatrixTransformation = (*ScaleAndRotate)(nil)

func (t *ScaleAndRotate) String() string {
	return fmt.Sprintf("ScaleAndRotate(%gx%g, %g°)", t.ScaleX, t.ScaleY, t.RotationDegrees)
}

func (t *ScaleAndRotate) transformation() gpu.Matrix {
	return gpu.Rotate(t.RotationDegrees).Multiply(gpu.Scale(t.ScaleX, t.ScaleY))
}

func (t *ScaleAndRotate) Configure(inputWidth, inputHeight int) (int, int, error) {
	if err := validateInputSize(inputWidth, inputHeight); err != nil {
		return 0, 0, err
	}
	if t.ScaleX == 0 || t.ScaleY == 0 {
		return 0, 0, fmt.Errorf("scale must be non-zero, but is %gx%g", t.ScaleX, t.ScaleY)
	}
	transformation := t.transformation()
	if transformation.IsIdentity() {
		t.matrix = gpu.Identity()
		return inputWidth, inputHeight, nil
	}

	// rotations in NDC must be done in a space keeping the input aspect ratio
	aspect := float64(inputWidth) / float64(inputHeight)
	adjusted := gpu.Scale(1/aspect, 1).Multiply(transformation).Multiply(gpu.Scale(aspect, 1))

	xMin, yMin := math.MaxFloat64, math.MaxFloat64
	xMax, yMax := -math.MaxFloat64, -math.MaxFloat64
	for _, p := range [][2]float64{{-1, -1}, {-1, 1}, {1, -1}, {1, 1}} {
		x, y := adjusted.TransformPoint(p[0], p[1])
		xMin, xMax = math.Min(xMin, x), math.Max(xMax, x)
		yMin, yMax = math.Min(yMin, y), math.Max(yMax, y)
	}
	scaleX := (xMax - xMin) / 2
	scaleY := (yMax - yMin) / 2
	t.matrix = gpu.Scale(1/scaleX, 1/scaleY).Multiply(adjusted)
	return round(float64(inputWidth) * scaleX), round(float64(inputHeight) * scaleY), nil
}

func (t *ScaleAndRotate) Matrix(int64) gpu.Matrix {
	return t.matrix
}

type Layout int

const (
	// LayoutScaleToFit fits the whole frame, adding black bars.
	LayoutScaleToFit = Layout(iota)
	// LayoutScaleToFitWithCrop fills the whole output, cropping the frame.
	LayoutScaleToFitWithCrop
	// LayoutStretchToFit fills the whole output, distorting the frame.
	LayoutStretchToFit
)

func (l Layout) String() string {
	switch l {
	case LayoutScaleToFit:
		return "scale_to_fit"
	case LayoutScaleToFitWithCrop:
		return "scale_to_fit_with_crop"
	case LayoutStretchToFit:
		return "stretch_to_fit"
	}
	return fmt.Sprintf("Layout(%d)", int(l))
}

func ParseLayout(s string) (Layout, error) {
	for _, l := range []Layout{LayoutScaleToFit, LayoutScaleToFitWithCrop, LayoutStretchToFit} {
		if l.String() == s {
			return l, nil
		}
	}
	return 0, fmt.Errorf("unknown layout '%s'", s)
}

// Presentation sets the output height and optionally the aspect ratio and
// the width. Zero values keep the input ones.
type Presentation struct {
	Width       int
	Height      int
	AspectRatio float64
	Layout      Layout

	matrix gpu.Matrix
}

var _ MatrixTransformation = (*Presentation)(nil)

func (t *Presentation) String() string {
	return fmt.Sprintf("Presentation(%dx%d, ar:%g, %s)", t.Width, t.Height, t.AspectRatio, t.Layout)
}

func (t *Presentation) Configure(inputWidth, inputHeight int) (int, int, error) {
	if err := validateInputSize(inputWidth, inputHeight); err != nil {
		return 0, 0, err
	}
	if t.Width < 0 || t.Height < 0 || t.AspectRatio < 0 {
		return 0, 0, fmt.Errorf("invalid presentation %s", t)
	}
	t.matrix = gpu.Identity()
	outputWidth, outputHeight := float64(inputWidth), float64(inputHeight)

	if t.AspectRatio > 0 {
		requested := t.AspectRatio
		input := outputWidth / outputHeight
		switch t.Layout {
		case LayoutScaleToFit:
			if requested > input {
				t.matrix = gpu.Scale(input/requested, 1)
				outputWidth = outputHeight * requested
			} else {
				t.matrix = gpu.Scale(1, requested/input)
				outputHeight = outputWidth / requested
			}
		case LayoutScaleToFitWithCrop:
			if requested > input {
				t.matrix = gpu.Scale(1, requested/input)
				outputHeight = outputWidth / requested
			} else {
				t.matrix = gpu.Scale(input/requested, 1)
				outputWidth = outputHeight * requested
			}
		case LayoutStretchToFit:
			if requested > input {
				outputWidth = outputHeight * requested
			} else {
				outputHeight = outputWidth / requested
			}
		default:
			return 0, 0, fmt.Errorf("unknown layout %s", t.Layout)
		}
	}

	if t.Height > 0 {
		if t.Width > 0 {
			outputWidth = float64(t.Width)
		} else {
			outputWidth = float64(t.Height) * outputWidth / outputHeight
		}
		outputHeight = float64(t.Height)
	}
	return round(outputWidth), round(outputHeight), nil
}

func (t *Presentation) Matrix(int64) gpu.Matrix {
	return t.matrix
}

// Crop keeps the region given in normalized device coordinates
// (-1..1 on both axes, y pointing up).
type Crop struct {
	Left, Right, Bottom, Top float64

	matrix gpu.Matrix
}

var _ MatrixTransformation = (*Crop)(nil)

func (t *Crop) String() string {
	return fmt.Sprintf("Crop(l:%g, r:%g, b:%g, t:%g)", t.Left, t.Right, t.Bottom, t.Top)
}

func (t *Crop) Configure(inputWidth, inputHeight int) (int, int, error) {
	if err := validateInputSize(inputWidth, inputHeight); err != nil {
		return 0, 0, err
	}
	if t.Left < -1 || t.Right > 1 || t.Bottom < -1 || t.Top > 1 || t.Left >= t.Right || t.Bottom >= t.Top {
		return 0, 0, fmt.Errorf("invalid crop region %s", t)
	}
	scaleX := (t.Right - t.Left) / 2
	scaleY := (t.Top - t.Bottom) / 2
	centerX := (t.Left + t.Right) / 2
	centerY := (t.Bottom + t.Top) / 2
	t.matrix = gpu.Scale(1/scaleX, 1/scaleY).Multiply(gpu.Translate(-centerX, -centerY))
	return round(float64(inputWidth) * scaleX), round(float64(inputHeight) * scaleY), nil
}

func (t *Crop) Matrix(int64) gpu.Matrix {
	return t.matrix
}

// MatrixFunc is a size-preserving transformation whose matrix depends on the
// presentation time.
type MatrixFunc struct {
	Name string
	Func func(presentationTimeUs int64) gpu.Matrix
}

var _ MatrixTransformation = (*MatrixFunc)(nil)

func (t *MatrixFunc) String() string {
	return t.Name
}

func (t *MatrixFunc) Configure(inputWidth, inputHeight int) (int, int, error) {
	if err := validateInputSize(inputWidth, inputHeight); err != nil {
		return 0, 0, err
	}
	return inputWidth, inputHeight, nil
}

func (t *MatrixFunc) Matrix(presentationTimeUs int64) gpu.Matrix {
	return t.Func(presentationTimeUs)
}
