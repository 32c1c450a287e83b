package sprite

import (
	"fmt"
	"image/color"
	"strconv"
)

// RGBA8 is a straight-alpha 8-bit color, the per-vertex color format.
type RGBA8 struct {
	R, G, B, A uint8
}

// Common colors.
var (
	White       = RGBA8{255, 255, 255, 255}
	Black       = RGBA8{0, 0, 0, 255}
	Transparent = RGBA8{}
)

// RGB creates an opaque color.
func RGB(r, g, b uint8) RGBA8 {
	return RGBA8{R: r, G: g, B: b, A: 255}
}

// FromColor converts a standard color.Color to straight-alpha RGBA8.
func FromColor(c color.Color) RGBA8 {
	n := color.NRGBAModel.Convert(c).(color.NRGBA)
	return RGBA8{R: n.R, G: n.G, B: n.B, A: n.A}
}

// ParseHex parses "#rrggbb" or "#rrggbbaa" (the # is optional).
func ParseHex(s string) (RGBA8, error) {
	if s != "" && s[0] == '#' {
		s = s[1:]
	}
	if len(s) != 6 && len(s) != 8 {
		return RGBA8{}, fmt.Errorf("sprite: invalid color %q", s)
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return RGBA8{}, fmt.Errorf("sprite: invalid color %q: %w", s, err)
	}
	if len(s) == 6 {
		v = v<<8 | 0xff
	}
	return RGBA8{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

// RGBA implements color.Color.
func (c RGBA8) RGBA() (r, g, b, a uint32) {
	return color.NRGBA{R: c.R, G: c.G, B: c.B, A: c.A}.RGBA()
}

// Modulate multiplies two colors component-wise.
func (c RGBA8) Modulate(o RGBA8) RGBA8 {
	return RGBA8{
		R: mul8(c.R, o.R),
		G: mul8(c.G, o.G),
		B: mul8(c.B, o.B),
		A: mul8(c.A, o.A),
	}
}

// Pack returns the color as little-endian RGBA bytes in a uint32,
// matching the unorm8x4 vertex attribute layout.
func (c RGBA8) Pack() uint32 {
	return uint32(c.R) | uint32(c.G)<<8 | uint32(c.B)<<16 | uint32(c.A)<<24
}

// String returns the color as #rrggbbaa.
func (c RGBA8) String() string {
	return fmt.Sprintf("#%02x%02x%02x%02x", c.R, c.G, c.B, c.A)
}

// mul8 computes round(a*b/255) without division.
func mul8(a, b uint8) uint8 {
	t := uint32(a)*uint32(b) + 128
	return uint8((t + t>>8) >> 8)
}
