// Package gpu is a software renderer with a GL-like state model: textures
// backed by RGBA images, one framebuffer per texture and a single bound
// framebuffer that draw calls write into.
//
// Every Context method must be called on the executor worker.
package gpu

import (
	"context"
	"fmt"
	"image"
	"image/color"

	"github.com/xaionaro-go/avtransformer/executor"
	"github.com/xaionaro-go/avtransformer/frame"
	"github.com/xaionaro-go/avtransformer/logger"
	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

type Context struct {
	textures   map[int]*image.RGBA
	nextTexID  int
	boundFbo   frame.Texture
	isReleased bool

	// allocations counts CreateTexture calls, used to observe texture reuse.
	allocations int
}

func NewContext(ctx context.Context) (*Context, error) {
	if !executor.IsOnWorker(ctx) {
		return nil, ErrNotOnWorker{}
	}
	return &Context{
		textures:  map[int]*image.RGBA{},
		nextTexID: 1,
		boundFbo:  frame.UnsetTexture,
	}, nil
}

func (c *Context) check(ctx context.Context) error {
	if !executor.IsOnWorker(ctx) {
		return ErrNotOnWorker{}
	}
	if c.isReleased {
		return ErrReleased{}
	}
	return nil
}

// CreateTexture allocates a texture with its framebuffer.
func (c *Context) CreateTexture(ctx context.Context, width, height int) (frame.Texture, error) {
	if err := c.check(ctx); err != nil {
		return frame.UnsetTexture, err
	}
	if width <= 0 || height <= 0 {
		return frame.UnsetTexture, fmt.Errorf("invalid texture size %dx%d", width, height)
	}
	id := c.nextTexID
	c.nextTexID++
	c.allocations++
	c.textures[id] = image.NewRGBA(image.Rect(0, 0, width, height))
	logger.Tracef(ctx, "created texture %d (%dx%d)", id, width, height)
	return frame.NewTexture(id, id, width, height), nil
}

func (c *Context) DeleteTexture(ctx context.Context, tex frame.Texture) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	if _, ok := c.textures[tex.TexID]; !ok {
		return ErrUnknownTexture{Texture: tex}
	}
	delete(c.textures, tex.TexID)
	if c.boundFbo.FboID == tex.FboID {
		c.boundFbo = frame.UnsetTexture
	}
	return nil
}

// Image returns the pixels of the texture, or nil if it does not exist.
func (c *Context) Image(tex frame.Texture) *image.RGBA {
	return c.textures[tex.TexID]
}

// TextureCount returns the amount of live textures.
func (c *Context) TextureCount() int {
	return len(c.textures)
}

// Allocations returns the total amount of textures ever created.
func (c *Context) Allocations() int {
	return c.allocations
}

// BindFramebuffer makes draw calls render into the given texture.
// Binding frame.UnsetTexture unbinds.
func (c *Context) BindFramebuffer(ctx context.Context, tex frame.Texture) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	if !tex.IsSet() {
		c.boundFbo = frame.UnsetTexture
		return nil
	}
	if _, ok := c.textures[tex.TexID]; !ok {
		return ErrUnknownTexture{Texture: tex}
	}
	c.boundFbo = tex
	return nil
}

func (c *Context) BoundFramebuffer() frame.Texture {
	return c.boundFbo
}

func (c *Context) bound() (*image.RGBA, error) {
	if !c.boundFbo.IsSet() {
		return nil, ErrNoFramebufferBound{}
	}
	img := c.textures[c.boundFbo.TexID]
	if img == nil {
		return nil, ErrUnknownTexture{Texture: c.boundFbo}
	}
	return img, nil
}

// ClearBound fills the bound framebuffer with opaque black.
func (c *Context) ClearBound(ctx context.Context) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	dst, err := c.bound()
	if err != nil {
		return err
	}
	xdraw.Draw(dst, dst.Bounds(), image.NewUniform(color.RGBA{A: 0xff}), image.Point{}, xdraw.Src)
	return nil
}

// DrawMatrix renders the source texture into the bound framebuffer, mapping
// source NDC coordinates to destination NDC coordinates with the matrix and
// sampling bilinearly. Uncovered pixels are cleared to black.
func (c *Context) DrawMatrix(ctx context.Context, src frame.Texture, matrix Matrix) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	srcImg := c.textures[src.TexID]
	if srcImg == nil {
		return ErrUnknownTexture{Texture: src}
	}
	return c.drawImage(ctx, srcImg, matrix)
}

// DrawImage renders an image into the bound framebuffer through the matrix.
func (c *Context) DrawImage(ctx context.Context, img image.Image, matrix Matrix) error {
	if err := c.check(ctx); err != nil {
		return err
	}
	return c.drawImage(ctx, img, matrix)
}

func (c *Context) drawImage(ctx context.Context, srcImg image.Image, matrix Matrix) error {
	dst, err := c.bound()
	if err != nil {
		return err
	}
	if err := c.ClearBound(ctx); err != nil {
		return err
	}
	srcBounds := srcImg.Bounds()
	dstBounds := dst.Bounds()
	if matrix.IsIdentity() && srcBounds.Size() == dstBounds.Size() {
		xdraw.Draw(dst, dstBounds, srcImg, srcBounds.Min, xdraw.Src)
		return nil
	}
	s2d := PixelSpaceMatrix(srcBounds.Dx(), srcBounds.Dy(), dstBounds.Dx(), dstBounds.Dy(), matrix)
	if s2d.Determinant() == 0 {
		return nil
	}
	xdraw.BiLinear.Transform(dst, f64.Aff3{
		s2d[0], s2d[1], s2d[2],
		s2d[3], s2d[4], s2d[5],
	}, srcImg, srcBounds, xdraw.Src, nil)
	return nil
}

// PixelSpaceMatrix converts a matrix operating in normalized device
// coordinates (y axis pointing up) into one mapping source pixel coordinates
// to destination pixel coordinates (y axis pointing down).
func PixelSpaceMatrix(srcWidth, srcHeight, dstWidth, dstHeight int, ndc Matrix) Matrix {
	srcToNDC := Matrix{
		2 / float64(srcWidth), 0, -1,
		0, -2 / float64(srcHeight), 1,
		0, 0, 1,
	}
	ndcToDst := Matrix{
		float64(dstWidth) / 2, 0, float64(dstWidth) / 2,
		0, -float64(dstHeight) / 2, float64(dstHeight) / 2,
		0, 0, 1,
	}
	return ndcToDst.Multiply(ndc).Multiply(srcToNDC)
}

// Release deletes every texture; the context is unusable afterwards.
func (c *Context) Release(ctx context.Context) error {
	if !executor.IsOnWorker(ctx) {
		return ErrNotOnWorker{}
	}
	if c.isReleased {
		return nil
	}
	c.isReleased = true
	c.textures = nil
	c.boundFbo = frame.UnsetTexture
	return nil
}
