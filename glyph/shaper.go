package glyph

import (
	"bytes"
	"errors"
	"sync"

	"github.com/go-text/typesetting/di"
	gotext "github.com/go-text/typesetting/font"
	"github.com/go-text/typesetting/language"
	"github.com/go-text/typesetting/shaping"
	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"

	"github.com/gogpu/sprite"
)

// errUnparsed marks a face whose earlier parse already failed.
var errUnparsed = errors.New("glyph: face not parsable by harfbuzz")

// GlyphID is a glyph index within a font.
type GlyphID uint16

// Glyph is a shaped glyph. X and Y are the pen position relative to the
// start of the run, in pixels.
type Glyph struct {
	ID      GlyphID
	Cluster int // index of the first rune this glyph was shaped from
	X, Y    float64
	Advance float64
}

// Shaper converts text to positioned glyphs. Implementations must be safe
// for concurrent use.
type Shaper interface {
	Shape(text string, face *Face) []Glyph
}

// BuiltinShaper maps each rune to one glyph and applies pair kerning. It
// handles scripts that need no contextual shaping.
type BuiltinShaper struct{}

// Shape implements Shaper.
func (BuiltinShaper) Shape(text string, face *Face) []Glyph {
	if text == "" || face == nil {
		return nil
	}
	var buf sfnt.Buffer
	ppem := face.ppem()
	out := make([]Glyph, 0, len(text))

	var x float64
	var prev sfnt.GlyphIndex
	cluster := 0
	for _, r := range text {
		gi, err := face.font.GlyphIndex(&buf, r)
		if err != nil {
			gi = 0
		}
		if cluster > 0 {
			if k, err := face.font.Kern(&buf, prev, gi, ppem, font.HintingNone); err == nil {
				x += fixedToFloat(k)
			}
		}
		adv, err := face.font.GlyphAdvance(&buf, gi, ppem, font.HintingNone)
		if err != nil {
			adv = 0
		}
		out = append(out, Glyph{
			ID:      GlyphID(gi),
			Cluster: cluster,
			X:       x,
			Advance: fixedToFloat(adv),
		})
		x += fixedToFloat(adv)
		prev = gi
		cluster++
	}
	return out
}

// HarfBuzzShaper shapes text with go-text/typesetting, applying OpenType
// ligatures, kerning and complex script rules.
//
// Parsed fonts are cached per face. HarfBuzz shaper instances are pooled
// because they carry mutable buffers.
type HarfBuzzShaper struct {
	pool sync.Pool

	mu    sync.RWMutex
	fonts map[FaceID]*gotext.Font
}

// NewHarfBuzzShaper returns a ready HarfBuzzShaper.
func NewHarfBuzzShaper() *HarfBuzzShaper {
	return &HarfBuzzShaper{
		pool: sync.Pool{
			New: func() any { return &shaping.HarfbuzzShaper{} },
		},
		fonts: make(map[FaceID]*gotext.Font),
	}
}

// Shape implements Shaper. Faces go-text cannot parse are shaped by
// BuiltinShaper instead; the first failure per face is logged.
func (s *HarfBuzzShaper) Shape(text string, face *Face) []Glyph {
	if text == "" || face == nil {
		return nil
	}
	f, err := s.font(face)
	if err != nil {
		if !errors.Is(err, errUnparsed) {
			sprite.Logger().Warn("glyph: harfbuzz cannot parse face, using builtin shaper",
				"face", face.Name(), "err", err)
		}
		return BuiltinShaper{}.Shape(text, face)
	}
	runes := []rune(text)
	input := shaping.Input{
		Text:      runes,
		RunStart:  0,
		RunEnd:    len(runes),
		Direction: di.DirectionLTR,
		Face:      gotext.NewFace(f),
		Size:      face.ppem(),
		Script:    detectScript(runes),
		Language:  language.NewLanguage("en"),
	}

	hb := s.pool.Get().(*shaping.HarfbuzzShaper)
	output := hb.Shape(input)
	s.pool.Put(hb)

	out := make([]Glyph, len(output.Glyphs))
	var x float64
	for i, g := range output.Glyphs {
		adv := fixedToFloat(g.Advance)
		out[i] = Glyph{
			ID:      GlyphID(uint16(g.GlyphID)), //nolint:gosec // glyph ids fit in 16 bits
			Cluster: g.TextIndex(),
			X:       x + fixedToFloat(g.XOffset),
			Y:       fixedToFloat(g.YOffset),
			Advance: adv,
		}
		x += adv
	}
	return out
}

// Forget drops the cached parse of face.
func (s *HarfBuzzShaper) Forget(face *Face) {
	s.mu.Lock()
	delete(s.fonts, face.id)
	s.mu.Unlock()
}

func (s *HarfBuzzShaper) font(face *Face) (*gotext.Font, error) {
	s.mu.RLock()
	f, ok := s.fonts[face.id]
	s.mu.RUnlock()
	if ok {
		return cached(f)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.fonts[face.id]; ok {
		return cached(f)
	}
	parsed, err := gotext.ParseTTF(bytes.NewReader(face.data))
	if err != nil {
		s.fonts[face.id] = nil
		return nil, err
	}
	s.fonts[face.id] = parsed.Font
	return parsed.Font, nil
}

// cached maps a remembered parse failure, stored as nil, to errUnparsed.
func cached(f *gotext.Font) (*gotext.Font, error) {
	if f == nil {
		return nil, errUnparsed
	}
	return f, nil
}

// detectScript returns the script of the first non-space rune.
func detectScript(runes []rune) language.Script {
	for _, r := range runes {
		if r == ' ' || r == '\t' {
			continue
		}
		return language.LookupScript(r)
	}
	return language.Latin
}
