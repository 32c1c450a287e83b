package glyph

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/gogpu/sprite"
)

// LayoutOptions controls line breaking and, for DrawText, the transform of
// the run.
type LayoutOptions struct {
	// MaxWidth wraps lines at spaces once they exceed this width in
	// pixels. Zero disables wrapping. A word longer than MaxWidth
	// overflows its line.
	MaxWidth float64

	// LineSpacing multiplies the face line height. Zero means 1.
	LineSpacing float64

	// Rotation turns the run around its origin, in radians. ScaleX and
	// ScaleY scale it about the origin; zero means 1. Only DrawText uses
	// them; Layout always returns an untransformed run.
	Rotation float32
	ScaleX   float32
	ScaleY   float32
}

// scale returns the run scale with zero components defaulted to 1.
func (o LayoutOptions) scale() sprite.Vec2 {
	s := sprite.V2(o.ScaleX, o.ScaleY)
	if s.X == 0 {
		s.X = 1
	}
	if s.Y == 0 {
		s.Y = 1
	}
	return s
}

// Placed is a glyph positioned in a run.
type Placed struct {
	Key     Key
	Cluster int // rune index within the source line
	Line    int
	Pos     sprite.Vec2 // top-left of the bitmap, relative to the run origin
	Size    sprite.Vec2
	Texture sprite.TextureID
	Page    sprite.PageID
	UV      sprite.Rect // page coordinates
}

// Run is laid-out text. The origin is the top-left of the first line.
type Run struct {
	Glyphs []Placed
	Lines  int
	Width  float64
	Height float64
}

// Bounds returns the run extent.
func (r *Run) Bounds() sprite.Rect {
	return sprite.R(0, 0, float32(r.Width), float32(r.Height))
}

// Layout shapes and positions text. Blank glyphs, and spaces without an
// entry, advance the pen but are not placed. Glyphs without an entry are
// left out of the run and reported together as *sprite.ResourceError
// values joined with errors.Join; the run is still valid.
func (p *Provider) Layout(face *Face, text string, opts LayoutOptions) (*Run, error) {
	return p.layout(face, text, opts, "")
}

func (p *Provider) layout(face *Face, text string, opts LayoutOptions, layer string) (*Run, error) {
	m := face.Metrics()
	lineHeight := m.LineHeight
	if opts.LineSpacing > 0 {
		lineHeight *= opts.LineSpacing
	}

	run := &Run{}
	var misses []Key
	line := 0
	for _, para := range strings.Split(normalize(text), "\n") {
		runes := []rune(para)
		glyphs := p.shape(para, face)
		for _, span := range wrap(glyphs, runes, opts.MaxWidth) {
			baseline := m.Ascent + float64(line)*lineHeight
			x0 := 0.0
			if len(span) > 0 {
				x0 = span[0].X
			}
			for _, g := range span {
				k := Key{Face: face.ID(), Glyph: g.ID}
				e, ok := p.Lookup(k)
				if !ok && !isSpace(runes, g.Cluster) {
					misses = append(misses, k)
					continue
				}
				if w := g.X - x0 + g.Advance; w > run.Width {
					run.Width = w
				}
				if !ok || e.Blank() {
					continue
				}
				placed := Placed{
					Key:     k,
					Cluster: g.Cluster,
					Line:    line,
					Pos:     sprite.V2(float32(g.X-x0)+e.Bearing.X, float32(baseline+g.Y)+e.Bearing.Y),
					Size:    e.Size,
					Texture: e.Texture,
				}
				if pl, ok := p.atlas.Resolve(e.Texture); ok {
					placed.Page = pl.Page
					placed.UV = sprite.Rect{Min: pl.Map(sprite.V2(0, 0)), Max: pl.Map(sprite.V2(1, 1))}
				}
				run.Glyphs = append(run.Glyphs, placed)
			}
			line++
		}
	}
	run.Lines = line
	if line > 0 {
		run.Height = float64(line-1)*lineHeight + m.Ascent + m.Descent
	}

	if len(misses) > 0 {
		return run, missError(layer, misses)
	}
	return run, nil
}

// wrap splits shaped glyphs into lines, breaking at spaces. Trailing and
// breaking spaces stay on the line they end.
func wrap(glyphs []Glyph, runes []rune, maxWidth float64) [][]Glyph {
	if maxWidth <= 0 || len(glyphs) == 0 {
		return [][]Glyph{glyphs}
	}
	var lines [][]Glyph
	start, brk := 0, -1
	x0 := glyphs[0].X
	for i, g := range glyphs {
		if isSpace(runes, g.Cluster) {
			brk = i
			continue
		}
		if g.X+g.Advance-x0 > maxWidth && brk >= start {
			lines = append(lines, glyphs[start:brk+1])
			start = brk + 1
			brk = -1
			x0 = glyphs[start].X
		}
	}
	return append(lines, glyphs[start:])
}

func isSpace(runes []rune, cluster int) bool {
	return cluster >= 0 && cluster < len(runes) && unicode.IsSpace(runes[cluster])
}

// normalize converts text to NFC so that precomposed glyphs are found.
func normalize(s string) string {
	return norm.NFC.String(s)
}

// DrawText lays out text and queues one KindGlyph command per placed glyph
// on layer, with the run origin at x, y. The run is scaled and rotated
// about that origin as opts asks. Missing glyphs are skipped and reported
// in the returned error; a capacity failure stops the run.
func DrawText(layer *sprite.Layer, p *Provider, face *Face, text string, x, y float32, c sprite.RGBA8, opts LayoutOptions) error {
	if layer == nil {
		return sprite.ErrNilLayer
	}
	run, err := p.layout(face, text, opts, layer.Name())
	scale := opts.scale()
	for _, g := range run.Glyphs {
		pos := g.Pos.Mul(scale)
		if opts.Rotation != 0 {
			pos = pos.Rotate(opts.Rotation)
		}
		perr := layer.Draw(sprite.Attrs{
			Kind:     sprite.KindGlyph,
			X:        x + pos.X,
			Y:        y + pos.Y,
			Width:    g.Size.X,
			Height:   g.Size.Y,
			ScaleX:   scale.X,
			ScaleY:   scale.Y,
			Rotation: opts.Rotation,
			Color:    c,
			Texture:  g.Texture,
		})
		if perr != nil {
			return errors.Join(err, perr)
		}
	}
	return err
}
