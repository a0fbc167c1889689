package effect

import (
	"context"
	"fmt"
	"strings"

	"github.com/xaionaro-go/avtransformer/frame"
	"github.com/xaionaro-go/avtransformer/gpu"
	"github.com/xaionaro-go/avtransformer/logger"
)

// MatrixStage draws the input through the product of its transformations'
// matrices.
type MatrixStage struct {
	Transformations []MatrixTransformation

	// ExtraMatrix is applied before the transformations; used for the
	// transform of the external input surface.
	ExtraMatrix gpu.Matrix

	isConfigured bool
	outputWidth  int
	outputHeight int
}

var _ Stage = (*MatrixStage)(nil)

func NewMatrixStage(transformations ...MatrixTransformation) *MatrixStage {
	return &MatrixStage{
		Transformations: transformations,
		ExtraMatrix:     gpu.Identity(),
	}
}

func (s *MatrixStage) String() string {
	var names []string
	for _, t := range s.Transformations {
		names = append(names, t.String())
	}
	return fmt.Sprintf("MatrixStage[%s]", strings.Join(names, ","))
}

func (s *MatrixStage) Configure(
	ctx context.Context,
	inputWidth, inputHeight int,
) (_outW, _outH int, _err error) {
	logger.Tracef(ctx, "Configure[%s](%d, %d)", s, inputWidth, inputHeight)
	defer func() { logger.Tracef(ctx, "/Configure[%s]: %dx%d %v", s, _outW, _outH, _err) }()
	w, h := inputWidth, inputHeight
	for _, t := range s.Transformations {
		var err error
		w, h, err = t.Configure(w, h)
		if err != nil {
			return 0, 0, fmt.Errorf("unable to configure %s for %dx%d: %w", t, w, h, err)
		}
		if w <= 0 || h <= 0 {
			return 0, 0, fmt.Errorf("%s produced an invalid size %dx%d", t, w, h)
		}
	}
	s.outputWidth, s.outputHeight = w, h
	s.isConfigured = true
	return w, h, nil
}

// Matrix returns the combined matrix for the given frame.
func (s *MatrixStage) Matrix(presentationTimeUs int64) gpu.Matrix {
	m := s.ExtraMatrix
	for _, t := range s.Transformations {
		m = t.Matrix(presentationTimeUs).Multiply(m)
	}
	return m
}

func (s *MatrixStage) OutputSize() (int, int) {
	return s.outputWidth, s.outputHeight
}

func (s *MatrixStage) DrawFrame(
	ctx context.Context,
	gpuCtx *gpu.Context,
	inputTexture frame.Texture,
	presentationTimeUs int64,
) error {
	if !s.isConfigured {
		return ErrNotConfigured{Stage: s.String()}
	}
	if err := gpuCtx.DrawMatrix(ctx, inputTexture, s.Matrix(presentationTimeUs)); err != nil {
		return fmt.Errorf("unable to draw %s: %w", inputTexture, err)
	}
	return nil
}

func (s *MatrixStage) Release(ctx context.Context) error {
	return nil
}
