package glyph

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/sprite"
	"github.com/gogpu/sprite/atlas"
	"github.com/gogpu/sprite/internal/cache"
)

// DefaultRunCache is the number of shaped strings a Provider keeps.
const DefaultRunCache = 1024

type runKey struct {
	face FaceID
	text string
}

// Key identifies a glyph bitmap.
type Key struct {
	Face  FaceID
	Glyph GlyphID
}

// Entry describes a stored glyph bitmap.
type Entry struct {
	Texture sprite.TextureID // sprite.NoTexture for blank glyphs
	Size    sprite.Vec2      // bitmap size in pixels

	// Bearing is the offset from the pen position on the baseline to the
	// top-left corner of the bitmap, y down.
	Bearing sprite.Vec2
}

// Blank reports whether the glyph has no pixels.
func (e Entry) Blank() bool { return e.Texture == sprite.NoTexture }

// Provider maps glyphs to atlas textures. It is safe for concurrent use.
type Provider struct {
	atlas  *atlas.Atlas
	shaper Shaper

	mu      sync.RWMutex
	entries map[Key]Entry

	runs *cache.Cache[runKey, []Glyph]
}

// NewProvider creates a provider storing bitmaps in a. A nil shaper
// selects BuiltinShaper.
func NewProvider(a *atlas.Atlas, shaper Shaper) *Provider {
	if shaper == nil {
		shaper = BuiltinShaper{}
	}
	return &Provider{
		atlas:   a,
		shaper:  shaper,
		entries: make(map[Key]Entry),
		runs:    cache.New[runKey, []Glyph](DefaultRunCache),
	}
}

// shape returns the shaped glyphs of normalized text, reusing earlier
// results. The returned slice must not be modified.
func (p *Provider) shape(text string, face *Face) []Glyph {
	return p.runs.GetOrCreate(runKey{face: face.ID(), text: text}, func() []Glyph {
		return p.shaper.Shape(text, face)
	})
}

// ForgetFace drops the shaped runs of face.
func (p *Provider) ForgetFace(face *Face) {
	id := face.ID()
	p.runs.DeleteFunc(func(k runKey) bool { return k.face == id })
	if hb, ok := p.shaper.(*HarfBuzzShaper); ok {
		hb.Forget(face)
	}
}

// Atlas returns the atlas glyph bitmaps are stored in.
func (p *Provider) Atlas() *atlas.Atlas { return p.atlas }

// Shaper returns the shaper used by Layout.
func (p *Provider) Shaper() Shaper { return p.shaper }

// Add stores the coverage bitmap of a glyph. An empty mask records a blank
// glyph that only advances the pen. Adding a key twice replaces nothing and
// returns the existing entry.
func (p *Provider) Add(k Key, mask image.Image, bearing sprite.Vec2) (Entry, error) {
	if e, ok := p.Lookup(k); ok {
		return e, nil
	}

	e := Entry{Bearing: bearing}
	if mask != nil && !mask.Bounds().Empty() {
		id, err := p.atlas.Add(mask)
		if err != nil {
			return Entry{}, fmt.Errorf("glyph %d: %w", k.Glyph, err)
		}
		b := mask.Bounds()
		e.Texture = id
		e.Size = sprite.V2(float32(b.Dx()), float32(b.Dy()))
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if prev, ok := p.entries[k]; ok {
		// Lost a race with another Add; the extra atlas region stays unused.
		return prev, nil
	}
	p.entries[k] = e
	return e, nil
}

// Lookup returns the entry stored for k.
func (p *Provider) Lookup(k Key) (Entry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.entries[k]
	return e, ok
}

// Len returns the number of stored glyphs.
func (p *Provider) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.entries)
}

// Missing returns the keys of glyphs in text that have no entry yet, in
// first-use order without duplicates. Spaces are not included. Callers
// rasterize these and Add them.
func (p *Provider) Missing(face *Face, text string) []Key {
	var keys []Key
	seen := make(map[Key]bool)
	text = normalize(text)
	runes := []rune(text)
	for _, g := range p.shape(text, face) {
		k := Key{Face: face.ID(), Glyph: g.ID}
		if seen[k] || isSpace(runes, g.Cluster) {
			continue
		}
		seen[k] = true
		if _, ok := p.Lookup(k); !ok {
			keys = append(keys, k)
		}
	}
	return keys
}

// missError wraps one ResourceError per missing glyph.
func missError(layer string, misses []Key) error {
	errs := make([]error, len(misses))
	for i, k := range misses {
		errs[i] = &sprite.ResourceError{Layer: layer, Kind: sprite.ResourceGlyph, ID: uint32(k.Glyph)}
	}
	return errors.Join(errs...)
}
