// Package atlas packs images into fixed-size texture pages and resolves
// texture ids to their page placement for the batcher.
//
// Pages are kept as CPU images. Regions written since the last call to
// TakeDirty are reported so a GPU backend can upload just those.
package atlas

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/gogpu/gputypes"
	"golang.org/x/image/draw"

	"github.com/gogpu/sprite"
)

// Atlas errors.
var (
	// ErrAtlasFull is returned when no page can hold an image and no new
	// page may be created.
	ErrAtlasFull = errors.New("atlas: full")

	// ErrTooLarge is returned for images larger than a page.
	ErrTooLarge = errors.New("atlas: image larger than page")

	// ErrUnknownTexture is returned for ids the atlas did not issue.
	ErrUnknownTexture = errors.New("atlas: unknown texture")
)

// Default atlas settings.
const (
	DefaultPageSize = 2048
	MinPageSize     = 64
	DefaultPadding  = 1
)

// Format is the pixel format of every page.
const Format = gputypes.TextureFormatRGBA8Unorm

// Page is one atlas texture.
type Page struct {
	ID    sprite.PageID
	Image *image.NRGBA

	alloc *shelfAllocator
}

// Upload names a page area whose pixels changed.
type Upload struct {
	Page sprite.PageID
	Rect image.Rectangle
}

type entry struct {
	page   sprite.PageID
	region Region
}

// Option configures an Atlas.
type Option func(*Atlas)

// WithPageSize sets the width and height of each page.
func WithPageSize(n int) Option {
	return func(a *Atlas) { a.size = n }
}

// WithPadding sets the gap left between packed images.
func WithPadding(n int) Option {
	return func(a *Atlas) { a.padding = n }
}

// WithMaxPages bounds the number of pages. Zero means unbounded.
func WithMaxPages(n int) Option {
	return func(a *Atlas) { a.maxPages = n }
}

// Atlas assigns texture ids to images packed into pages. It implements
// sprite.Resolver and is safe for concurrent use.
type Atlas struct {
	mu       sync.RWMutex
	size     int
	padding  int
	maxPages int
	pages    []*Page
	entries  map[sprite.TextureID]entry
	nextID   sprite.TextureID
	dirty    []Upload
}

// New creates an empty atlas.
func New(opts ...Option) *Atlas {
	a := &Atlas{
		size:    DefaultPageSize,
		padding: DefaultPadding,
		entries: make(map[sprite.TextureID]entry),
		nextID:  1,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.size = max(a.size, MinPageSize)
	a.padding = max(a.padding, 0)
	return a
}

// PageSize returns the edge length of the pages in pixels.
func (a *Atlas) PageSize() int { return a.size }

// Add packs img and returns its texture id.
func (a *Atlas) Add(img image.Image) (sprite.TextureID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.nextID
	if err := a.place(id, img.Bounds().Dx(), img.Bounds().Dy()); err != nil {
		return 0, err
	}
	a.nextID++
	a.blit(id, img, img.Bounds().Min)
	return id, nil
}

// Reserve allocates a w x h area without pixels, for content written
// later with Set.
func (a *Atlas) Reserve(w, h int) (sprite.TextureID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.nextID
	if err := a.place(id, w, h); err != nil {
		return 0, err
	}
	a.nextID++
	return id, nil
}

// Set replaces the pixels of a texture. img is clipped to the texture's
// size.
func (a *Atlas) Set(id sprite.TextureID, img image.Image) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.entries[id]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownTexture, id)
	}
	a.blit(id, img, img.Bounds().Min)
	return nil
}

// AddSheet splits a sprite sheet into frames of frameW x frameH and packs
// them under consecutive ids. Frames are read left to right when the sheet
// is one frame tall and top to bottom otherwise.
func (a *Atlas) AddSheet(sheet image.Image, frameW, frameH, frames int) (*sprite.Sprite, error) {
	b := sheet.Bounds()
	if frameW <= 0 || frameH <= 0 || frames <= 0 {
		return nil, fmt.Errorf("atlas: invalid frame layout %dx%dx%d", frameW, frameH, frames)
	}
	horizontal := frameH == b.Dy()
	if (horizontal && frameW*frames > b.Dx()) || (!horizontal && (frameH*frames > b.Dy() || frameW > b.Dx())) {
		return nil, fmt.Errorf("atlas: %dx%d sheet too small for %d frames of %dx%d", b.Dx(), b.Dy(), frames, frameW, frameH)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	first := a.nextID
	for f := range frames {
		id := first + sprite.TextureID(f)
		if err := a.place(id, frameW, frameH); err != nil {
			for g := range f {
				delete(a.entries, first+sprite.TextureID(g))
			}
			return nil, err
		}
		sp := b.Min.Add(image.Pt(0, f*frameH))
		if horizontal {
			sp = b.Min.Add(image.Pt(f*frameW, 0))
		}
		a.blit(id, sheet, sp)
	}
	a.nextID += sprite.TextureID(frames)
	return sprite.NewSprite(float32(frameW), float32(frameH), frames, first), nil
}

// AddScaled packs img resized to w x h.
func (a *Atlas) AddScaled(img image.Image, w, h int) (sprite.TextureID, error) {
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return a.Add(dst)
}

// place allocates a region for id, opening a new page if needed.
// a.mu must be held.
func (a *Atlas) place(id sprite.TextureID, w, h int) error {
	if w <= 0 || h <= 0 {
		return fmt.Errorf("atlas: invalid size %dx%d", w, h)
	}
	if w+a.padding > a.size || h+a.padding > a.size {
		return fmt.Errorf("%w: %dx%d > %d", ErrTooLarge, w, h, a.size)
	}
	for _, p := range a.pages {
		if r := p.alloc.allocate(w, h); r.IsValid() {
			a.entries[id] = entry{page: p.ID, region: r}
			return nil
		}
	}
	if a.maxPages > 0 && len(a.pages) >= a.maxPages {
		return ErrAtlasFull
	}
	p := &Page{
		ID:    sprite.PageID(len(a.pages)),
		Image: image.NewNRGBA(image.Rect(0, 0, a.size, a.size)),
		alloc: newShelfAllocator(a.size, a.size, a.padding),
	}
	a.pages = append(a.pages, p)
	sprite.Logger().Debug("atlas: page added", "page", p.ID, "size", a.size)

	r := p.alloc.allocate(w, h)
	a.entries[id] = entry{page: p.ID, region: r}
	return nil
}

// blit copies src starting at sp into id's region. a.mu must be held.
func (a *Atlas) blit(id sprite.TextureID, src image.Image, sp image.Point) {
	e := a.entries[id]
	dr := e.region.Rect()
	draw.Draw(a.pages[e.page].Image, dr, src, sp, draw.Src)
	a.dirty = append(a.dirty, Upload{Page: e.page, Rect: dr})
}

// Resolve implements sprite.Resolver.
func (a *Atlas) Resolve(id sprite.TextureID) (sprite.Placement, bool) {
	a.mu.RLock()
	e, ok := a.entries[id]
	a.mu.RUnlock()
	if !ok {
		return sprite.Placement{}, false
	}
	s := float32(a.size)
	return sprite.Placement{
		Page:   e.page,
		Offset: sprite.V2(float32(e.region.X)/s, float32(e.region.Y)/s),
		Scale:  sprite.V2(float32(e.region.Width)/s, float32(e.region.Height)/s),
	}, true
}

// Region returns the pixel region and page of a texture.
func (a *Atlas) Region(id sprite.TextureID) (sprite.PageID, Region, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	e, ok := a.entries[id]
	return e.page, e.region, ok
}

// Len returns the number of textures in the atlas.
func (a *Atlas) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.entries)
}

// Pages returns the atlas pages. The page images must not be modified.
func (a *Atlas) Pages() []*Page {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]*Page(nil), a.pages...)
}

// Utilization returns the used fraction of each page.
func (a *Atlas) Utilization() []float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	u := make([]float64, len(a.pages))
	for i, p := range a.pages {
		u[i] = p.alloc.utilization()
	}
	return u
}

// TakeDirty returns the areas changed since the last call and clears the
// list.
func (a *Atlas) TakeDirty() []Upload {
	a.mu.Lock()
	defer a.mu.Unlock()
	d := a.dirty
	a.dirty = nil
	return d
}

// Pixels returns a tightly packed copy of the RGBA bytes of u.Rect, rows
// top to bottom.
func (a *Atlas) Pixels(u Upload) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if int(u.Page) >= len(a.pages) {
		return nil, fmt.Errorf("atlas: unknown page %d", u.Page)
	}
	img := a.pages[u.Page].Image
	r := u.Rect.Intersect(img.Rect)
	row := r.Dx() * 4
	out := make([]byte, 0, row*r.Dy())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		off := img.PixOffset(r.Min.X, y)
		out = append(out, img.Pix[off:off+row]...)
	}
	return out, nil
}
