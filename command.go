package sprite

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// Kind selects how a DrawCommand is interpreted.
type Kind uint8

const (
	// KindSprite is a textured quad.
	KindSprite Kind = iota
	// KindGlyph is a quad sampling a glyph coverage region of a texture.
	KindGlyph
	// KindShape is an untextured, solid colored quad.
	KindShape
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindSprite:
		return "sprite"
	case KindGlyph:
		return "glyph"
	case KindShape:
		return "shape"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// TextureID identifies a texture known to the Resolver.
// Zero means no texture and is only valid for KindShape.
type TextureID uint32

// NoTexture is the texture of untextured commands.
const NoTexture TextureID = 0

// PageID identifies a texture atlas page.
type PageID uint32

// ShaderID identifies a shader known to the ShaderSet.
type ShaderID uint32

// Built-in shaders. ShaderDefault selects the built-in shader of the
// command kind.
const (
	ShaderDefault ShaderID = iota
	ShaderSprite
	ShaderGlyph
	ShaderShape
)

// defaultShader returns the built-in shader for k.
func defaultShader(k Kind) ShaderID {
	switch k {
	case KindGlyph:
		return ShaderGlyph
	case KindShape:
		return ShaderShape
	default:
		return ShaderSprite
	}
}

// BlendMode selects how a command's color combines with the target.
type BlendMode uint8

const (
	// BlendInherit uses the layer's blend mode. It is never stored in a
	// DrawCommand.
	BlendInherit BlendMode = iota
	// BlendNormal is straight-alpha "over" compositing.
	BlendNormal
	// BlendAdditive adds source color weighted by source alpha.
	BlendAdditive
	// BlendMultiply multiplies source and destination color.
	BlendMultiply
	// BlendScreen brightens the destination by the inverted source.
	BlendScreen
	// BlendReplace overwrites the destination.
	BlendReplace
	// BlendPremultiplied composites premultiplied-alpha sources.
	BlendPremultiplied
)

// String returns the blend mode name.
func (b BlendMode) String() string {
	switch b {
	case BlendInherit:
		return "inherit"
	case BlendNormal:
		return "normal"
	case BlendAdditive:
		return "additive"
	case BlendMultiply:
		return "multiply"
	case BlendScreen:
		return "screen"
	case BlendReplace:
		return "replace"
	case BlendPremultiplied:
		return "premultiplied"
	default:
		return fmt.Sprintf("BlendMode(%d)", uint8(b))
	}
}

// ParseBlendMode returns the blend mode with the given name.
func ParseBlendMode(s string) (BlendMode, error) {
	for b := BlendInherit; b <= BlendPremultiplied; b++ {
		if b.String() == s {
			return b, nil
		}
	}
	return BlendInherit, fmt.Errorf("sprite: unknown blend mode %q", s)
}

// State returns the fixed-function GPU blend state for b.
// BlendInherit maps to the state of BlendNormal.
func (b BlendMode) State() gputypes.BlendState {
	add := gputypes.BlendOperationAdd
	switch b {
	case BlendAdditive:
		return gputypes.BlendState{
			Color: gputypes.BlendComponent{SrcFactor: gputypes.BlendFactorSrcAlpha, DstFactor: gputypes.BlendFactorOne, Operation: add},
			Alpha: gputypes.BlendComponent{SrcFactor: gputypes.BlendFactorZero, DstFactor: gputypes.BlendFactorOne, Operation: add},
		}
	case BlendMultiply:
		return gputypes.BlendState{
			Color: gputypes.BlendComponent{SrcFactor: gputypes.BlendFactorDst, DstFactor: gputypes.BlendFactorOneMinusSrcAlpha, Operation: add},
			Alpha: gputypes.BlendComponent{SrcFactor: gputypes.BlendFactorOne, DstFactor: gputypes.BlendFactorOneMinusSrcAlpha, Operation: add},
		}
	case BlendScreen:
		return gputypes.BlendState{
			Color: gputypes.BlendComponent{SrcFactor: gputypes.BlendFactorOne, DstFactor: gputypes.BlendFactorOneMinusSrc, Operation: add},
			Alpha: gputypes.BlendComponent{SrcFactor: gputypes.BlendFactorOne, DstFactor: gputypes.BlendFactorOneMinusSrcAlpha, Operation: add},
		}
	case BlendReplace:
		return gputypes.BlendStateReplace()
	case BlendPremultiplied:
		return gputypes.BlendStatePremultiplied()
	default:
		return gputypes.BlendStateAlpha()
	}
}

// DrawCommand is one queued quad. It is a plain value: once pushed into a
// CommandBuffer it is never modified.
type DrawCommand struct {
	Kind     Kind
	Position Vec2    // anchor position in layer space
	Rotation float32 // radians around the anchor
	Scale    Vec2
	Size     Vec2 // quad size in pixels before scaling
	Origin   Vec2 // anchor inside the quad, 0..1 on each axis
	Color    RGBA8
	Texture  TextureID
	UV       Rect // texture-local coordinates
	Blend    BlendMode
	Shader   ShaderID
	Depth    float32 // larger is drawn later
	Tag      uint64  // caller data, passed through untouched
}

// Corners returns the quad's corners in layer space, clockwise from the
// top-left.
func (c *DrawCommand) Corners() [4]Vec2 {
	x0 := -c.Origin.X * c.Size.X * c.Scale.X
	y0 := -c.Origin.Y * c.Size.Y * c.Scale.Y
	x1 := x0 + c.Size.X*c.Scale.X
	y1 := y0 + c.Size.Y*c.Scale.Y
	pts := [4]Vec2{{x0, y0}, {x1, y0}, {x1, y1}, {x0, y1}}
	for i := range pts {
		if c.Rotation != 0 {
			pts[i] = pts[i].Rotate(c.Rotation)
		}
		pts[i] = pts[i].Add(c.Position)
	}
	return pts
}

// Bounds returns the axis-aligned bounding box of the quad in layer space.
func (c *DrawCommand) Bounds() Rect {
	pts := c.Corners()
	return boundsOf(pts[:])
}
