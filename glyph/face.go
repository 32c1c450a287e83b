// Package glyph turns strings into glyph draw commands.
//
// A Face wraps a parsed OpenType font at one pixel size. A Shaper converts
// text into positioned glyph ids, and a Provider maps those ids to glyph
// bitmaps stored in a texture atlas. Rasterization is left to the caller:
// bitmaps are handed to Provider.Add ready to upload.
//
//	face, _ := glyph.NewFace(goregular.TTF, 16)
//	p := glyph.NewProvider(atlas, nil)
//	p.Add(glyph.Key{Face: face.ID(), Glyph: gid}, mask, bearing)
//	err := glyph.DrawText(layer, p, face, "Hello", 10, 20, sprite.White, glyph.LayoutOptions{})
package glyph

import (
	"errors"
	"fmt"
	"sync/atomic"

	"golang.org/x/image/font"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// ErrInvalidSize is returned for non-positive face sizes.
var ErrInvalidSize = errors.New("glyph: invalid face size")

// FaceID identifies a Face. Ids are unique within the process.
type FaceID uint32

var lastFaceID atomic.Uint32

// Face is an OpenType font at a fixed pixel size. It is safe for concurrent
// use.
type Face struct {
	id   FaceID
	data []byte
	font *opentype.Font
	size float64
}

// NewFace parses TrueType or OpenType data. size is in pixels per em.
func NewFace(data []byte, size float64) (*Face, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSize, size)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("glyph: parse font: %w", err)
	}
	return &Face{
		id:   FaceID(lastFaceID.Add(1)),
		data: data,
		font: f,
		size: size,
	}, nil
}

// ID returns the face identifier used in glyph keys.
func (f *Face) ID() FaceID { return f.id }

// Size returns the size in pixels per em.
func (f *Face) Size() float64 { return f.size }

// Name returns the font family name, or "" if the font has none.
func (f *Face) Name() string {
	name, err := f.font.Name(nil, sfnt.NameIDFamily)
	if err != nil {
		return ""
	}
	return name
}

// Metrics holds vertical font metrics in pixels.
type Metrics struct {
	Ascent     float64 // baseline to top, positive
	Descent    float64 // baseline to bottom, positive
	LineHeight float64 // baseline to baseline
}

// Metrics returns the vertical metrics of the face.
func (f *Face) Metrics() Metrics {
	var buf sfnt.Buffer
	m, err := f.font.Metrics(&buf, f.ppem(), font.HintingNone)
	if err != nil {
		return Metrics{LineHeight: f.size}
	}
	return Metrics{
		Ascent:     fixedToFloat(m.Ascent),
		Descent:    fixedToFloat(m.Descent),
		LineHeight: fixedToFloat(m.Height),
	}
}

func (f *Face) ppem() fixed.Int26_6 {
	return floatToFixed(f.size)
}

func floatToFixed(v float64) fixed.Int26_6 {
	return fixed.Int26_6(v * 64)
}

func fixedToFloat(v fixed.Int26_6) float64 {
	return float64(v) / 64
}
