package gpu

import (
	"context"
	"image"
	"sync"

	"github.com/anthonynsimon/bild/clone"
	"github.com/anthonynsimon/bild/transform"
)

// SurfaceTarget is an output surface the frame processing graph renders
// into, for example an encoder input surface.
type SurfaceTarget interface {
	Size() (width, height int)
	Draw(ctx context.Context, img image.Image) error
	SetPresentationTime(ns int64)
	SwapBuffers(ctx context.Context) error
}

type SwappedFrame struct {
	Image              *image.RGBA
	PresentationTimeNs int64
}

// ImageSurface is an in-memory SurfaceTarget.
type ImageSurface struct {
	Width  int
	Height int

	// OnSwap is called on every SwapBuffers with the drawn frame.
	OnSwap func(ctx context.Context, img *image.RGBA, presentationTimeNs int64) error

	// MaxKeptFrames limits the amount of the latest frames kept in Frames.
	MaxKeptFrames int

	locker      sync.Mutex
	back        *image.RGBA
	ptsNs       int64
	frames      []SwappedFrame
	swapCounter uint64
}

var _ SurfaceTarget = (*ImageSurface)(nil)

func NewImageSurface(width, height int) *ImageSurface {
	return &ImageSurface{
		Width:  width,
		Height: height,
	}
}

func (s *ImageSurface) Size() (int, int) {
	return s.Width, s.Height
}

// Draw copies the image into the back buffer, resizing if the sizes differ.
func (s *ImageSurface) Draw(ctx context.Context, img image.Image) error {
	var rgba *image.RGBA
	if size := img.Bounds().Size(); size.X != s.Width || size.Y != s.Height {
		rgba = transform.Resize(img, s.Width, s.Height, transform.Linear)
	} else {
		rgba = clone.AsRGBA(img)
	}
	s.locker.Lock()
	defer s.locker.Unlock()
	s.back = rgba
	return nil
}

func (s *ImageSurface) SetPresentationTime(ns int64) {
	s.locker.Lock()
	defer s.locker.Unlock()
	s.ptsNs = ns
}

func (s *ImageSurface) SwapBuffers(ctx context.Context) error {
	s.locker.Lock()
	img, ptsNs := s.back, s.ptsNs
	s.back = nil
	s.swapCounter++
	if img != nil && s.MaxKeptFrames > 0 {
		s.frames = append(s.frames, SwappedFrame{Image: img, PresentationTimeNs: ptsNs})
		if len(s.frames) > s.MaxKeptFrames {
			s.frames = s.frames[len(s.frames)-s.MaxKeptFrames:]
		}
	}
	onSwap := s.OnSwap
	s.locker.Unlock()
	if img == nil {
		img = image.NewRGBA(image.Rect(0, 0, s.Width, s.Height))
	}
	if onSwap != nil {
		return onSwap(ctx, img, ptsNs)
	}
	return nil
}

func (s *ImageSurface) SwapCount() uint64 {
	s.locker.Lock()
	defer s.locker.Unlock()
	return s.swapCounter
}

func (s *ImageSurface) Frames() []SwappedFrame {
	s.locker.Lock()
	defer s.locker.Unlock()
	return append([]SwappedFrame{}, s.frames...)
}
