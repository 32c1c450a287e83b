package sprite

import "fmt"

// Sprite describes an animated sprite sheet whose frames occupy
// consecutive texture ids.
type Sprite struct {
	Width, Height float32   // frame size in pixels
	Frames        int       // number of frames, at least 1
	Texture       TextureID // texture of frame 0
	Origin        Vec2      // anchor, 0..1 across the frame
	UMax, VMax    float32   // used part of each frame texture
}

// NewSprite creates a sprite anchored at its center whose frames fill
// their textures completely.
func NewSprite(width, height float32, frames int, first TextureID) *Sprite {
	if frames < 1 {
		frames = 1
	}
	return &Sprite{
		Width:   width,
		Height:  height,
		Frames:  frames,
		Texture: first,
		Origin:  Vec2{X: 0.5, Y: 0.5},
		UMax:    1,
		VMax:    1,
	}
}

// NewPaddedSprite creates a sprite whose frames are stored in textures of
// texWidth x texHeight pixels, using only the top-left width x height part.
func NewPaddedSprite(width, height float32, frames int, first TextureID, texWidth, texHeight float32) *Sprite {
	s := NewSprite(width, height, frames, first)
	if texWidth > 0 {
		s.UMax = width / texWidth
	}
	if texHeight > 0 {
		s.VMax = height / texHeight
	}
	return s
}

// TextureFor returns the texture holding frame. Frames wrap around, so
// any non-negative counter can be passed.
func (s *Sprite) TextureFor(frame int) TextureID {
	n := s.Frames
	if n < 1 {
		n = 1
	}
	f := frame % n
	if f < 0 {
		f += n
	}
	return s.Texture + TextureID(f)
}

// UV returns the texture-local rectangle of a frame.
func (s *Sprite) UV() Rect {
	return Rect{Max: Vec2{X: s.UMax, Y: s.VMax}}
}

func (s *Sprite) String() string {
	return fmt.Sprintf("Sprite(%gx%g, %d frames @%d)", s.Width, s.Height, s.Frames, s.Texture)
}
