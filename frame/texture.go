package frame

import (
	"fmt"
)

const (
	unsetID = -1
)

// Texture is a handle of a texture and the framebuffer rendering into it.
type Texture struct {
	TexID  int
	FboID  int
	Width  int
	Height int
}

// UnsetTexture denotes the absence of a texture.
var UnsetTexture = Texture{
	TexID:  unsetID,
	FboID:  unsetID,
	Width:  -1,
	Height: -1,
}

func NewTexture(texID, fboID, width, height int) Texture {
	return Texture{
		TexID:  texID,
		FboID:  fboID,
		Width:  width,
		Height: height,
	}
}

func (t Texture) IsSet() bool {
	return t.TexID != unsetID
}

func (t Texture) String() string {
	if !t.IsSet() {
		return "<unset>"
	}
	return fmt.Sprintf("tex%d/fbo%d(%dx%d)", t.TexID, t.FboID, t.Width, t.Height)
}
