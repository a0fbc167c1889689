package framegraph

import (
	"fmt"

	"github.com/xaionaro-go/avtransformer/gpu"
)

// SurfaceInfo describes the output surface of a Graph.
type SurfaceInfo struct {
	Surface gpu.SurfaceTarget
	Width   int
	Height  int

	// OrientationDegrees is the counter-clockwise rotation applied to the
	// frames before rendering them to the surface.
	OrientationDegrees int
}

func NewSurfaceInfo(surface gpu.SurfaceTarget, orientationDegrees int) *SurfaceInfo {
	w, h := surface.Size()
	return &SurfaceInfo{
		Surface:            surface,
		Width:              w,
		Height:             h,
		OrientationDegrees: orientationDegrees,
	}
}

func (s *SurfaceInfo) String() string {
	if s == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%dx%d@%d°", s.Width, s.Height, s.OrientationDegrees)
}

func (s *SurfaceInfo) Validate() error {
	if s.Surface == nil {
		return fmt.Errorf("surface is not set")
	}
	if s.Width <= 0 || s.Height <= 0 {
		return fmt.Errorf("invalid surface size %dx%d", s.Width, s.Height)
	}
	switch s.OrientationDegrees {
	case 0, 90, 180, 270:
	default:
		return fmt.Errorf("unsupported orientation %d", s.OrientationDegrees)
	}
	return nil
}

func (s *SurfaceInfo) equal(other *SurfaceInfo) bool {
	if s == nil || other == nil {
		return s == other
	}
	return *s == *other
}
