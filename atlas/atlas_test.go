package atlas

import (
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/gogpu/sprite"
)

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := range h {
		for x := range w {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

// =============================================================================
// Allocator
// =============================================================================

func TestShelfAllocator(t *testing.T) {
	a := newShelfAllocator(100, 100, 0)

	r1 := a.allocate(60, 20)
	r2 := a.allocate(40, 10)
	r3 := a.allocate(50, 30) // does not fit on the first shelf
	if r1 != (Region{0, 0, 60, 20}) {
		t.Errorf("r1 = %v", r1)
	}
	if r2 != (Region{60, 0, 40, 10}) {
		t.Errorf("r2 = %v", r2)
	}
	if r3 != (Region{0, 20, 50, 30}) {
		t.Errorf("r3 = %v", r3)
	}
	if r := a.allocate(101, 1); r.IsValid() {
		t.Errorf("oversized allocate = %v, want invalid", r)
	}
	if r := a.allocate(100, 60); r.IsValid() {
		t.Errorf("allocate past bottom = %v, want invalid", r)
	}
	if got, want := a.utilization(), float64(60*20+40*10+50*30)/10000; got != want {
		t.Errorf("utilization() = %v, want %v", got, want)
	}
}

func TestShelfAllocatorPadding(t *testing.T) {
	a := newShelfAllocator(64, 64, 2)
	r1 := a.allocate(10, 10)
	r2 := a.allocate(10, 10)
	if r2.X != r1.X+12 {
		t.Errorf("second region X = %d, want %d", r2.X, r1.X+12)
	}
}

// =============================================================================
// Atlas
// =============================================================================

func TestAtlas_AddResolve(t *testing.T) {
	a := New(WithPageSize(256), WithPadding(0))
	red := color.NRGBA{255, 0, 0, 255}

	id, err := a.Add(solid(64, 32, red))
	if err != nil {
		t.Fatal(err)
	}
	if id == sprite.NoTexture {
		t.Fatal("Add() returned NoTexture")
	}

	p, ok := a.Resolve(id)
	if !ok {
		t.Fatal("Resolve() ok = false")
	}
	if p.Page != 0 || p.Offset != sprite.V2(0, 0) || p.Scale != sprite.V2(0.25, 0.125) {
		t.Errorf("Resolve() = %+v", p)
	}
	if got := a.Pages()[0].Image.NRGBAAt(10, 10); got != red {
		t.Errorf("page pixel = %v, want red", got)
	}
	if _, ok := a.Resolve(id + 1); ok {
		t.Error("Resolve(unknown) ok = true")
	}
}

func TestAtlas_NewPageWhenFull(t *testing.T) {
	a := New(WithPageSize(64), WithPadding(0))
	for range 4 {
		if _, err := a.Add(solid(32, 32, color.NRGBA{A: 255})); err != nil {
			t.Fatal(err)
		}
	}
	id, err := a.Add(solid(32, 32, color.NRGBA{A: 255}))
	if err != nil {
		t.Fatal(err)
	}
	if p, _ := a.Resolve(id); p.Page != 1 {
		t.Errorf("fifth image on page %d, want 1", p.Page)
	}
	if len(a.Pages()) != 2 {
		t.Errorf("Pages() = %d, want 2", len(a.Pages()))
	}
}

func TestAtlas_Errors(t *testing.T) {
	a := New(WithPageSize(64), WithMaxPages(1))
	if _, err := a.Add(solid(100, 10, color.NRGBA{})); !errors.Is(err, ErrTooLarge) {
		t.Errorf("Add(too large) = %v, want ErrTooLarge", err)
	}
	if _, err := a.Reserve(60, 60); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Reserve(60, 60); !errors.Is(err, ErrAtlasFull) {
		t.Errorf("Reserve on full atlas = %v, want ErrAtlasFull", err)
	}
	if err := a.Set(99, solid(1, 1, color.NRGBA{})); !errors.Is(err, ErrUnknownTexture) {
		t.Errorf("Set(unknown) = %v, want ErrUnknownTexture", err)
	}
	if _, err := a.Reserve(0, 5); err == nil {
		t.Error("Reserve(0, 5) should fail")
	}
}

func TestAtlas_AddSheet(t *testing.T) {
	sheet := image.NewNRGBA(image.Rect(0, 0, 96, 32))
	for f := range 3 {
		c := color.NRGBA{uint8(f * 100), 0, 0, 255}
		for y := range 32 {
			for x := range 32 {
				sheet.SetNRGBA(f*32+x, y, c)
			}
		}
	}
	a := New(WithPageSize(256), WithPadding(0))
	s, err := a.AddSheet(sheet, 32, 32, 3)
	if err != nil {
		t.Fatal(err)
	}
	if s.Frames != 3 || s.Width != 32 {
		t.Errorf("sprite = %v", s)
	}
	for f := range 3 {
		page, r, ok := a.Region(s.TextureFor(f))
		if !ok {
			t.Fatalf("frame %d not in atlas", f)
		}
		got := a.Pages()[page].Image.NRGBAAt(r.X+5, r.Y+5)
		if got.R != uint8(f*100) {
			t.Errorf("frame %d red = %d, want %d", f, got.R, f*100)
		}
	}
	if _, err := a.AddSheet(sheet, 32, 32, 4); err == nil {
		t.Error("AddSheet with too many frames should fail")
	}
}

func TestAtlas_AddScaled(t *testing.T) {
	a := New(WithPageSize(128), WithPadding(0))
	id, err := a.AddScaled(solid(64, 64, color.NRGBA{0, 255, 0, 255}), 16, 16)
	if err != nil {
		t.Fatal(err)
	}
	_, r, _ := a.Region(id)
	if r.Width != 16 || r.Height != 16 {
		t.Errorf("region = %v, want 16x16", r)
	}
	if got := a.Pages()[0].Image.NRGBAAt(8, 8); got.G < 250 {
		t.Errorf("scaled pixel = %v, want green", got)
	}
}

func TestAtlas_TakeDirty(t *testing.T) {
	a := New(WithPageSize(128), WithPadding(0))
	id, _ := a.Reserve(8, 8)
	if d := a.TakeDirty(); len(d) != 0 {
		t.Errorf("dirty after Reserve = %v, want none", d)
	}
	_ = a.Set(id, solid(8, 8, color.NRGBA{A: 255}))
	d := a.TakeDirty()
	if len(d) != 1 || d[0].Rect != image.Rect(0, 0, 8, 8) {
		t.Errorf("TakeDirty() = %v, want one 8x8 upload", d)
	}
	if d := a.TakeDirty(); len(d) != 0 {
		t.Errorf("second TakeDirty() = %v, want none", d)
	}
}

func TestAtlas_Pixels(t *testing.T) {
	a := New(WithPageSize(64), WithPadding(0))
	if _, err := a.Add(solid(2, 3, color.NRGBA{R: 9, G: 8, B: 7, A: 255})); err != nil {
		t.Fatal(err)
	}
	d := a.TakeDirty()
	px, err := a.Pixels(d[0])
	if err != nil {
		t.Fatal(err)
	}
	if len(px) != 2*3*4 {
		t.Fatalf("len(Pixels()) = %d, want 24", len(px))
	}
	if px[0] != 9 || px[1] != 8 || px[2] != 7 || px[3] != 255 {
		t.Errorf("first pixel = %v", px[:4])
	}
	if _, err := a.Pixels(Upload{Page: 5}); err == nil {
		t.Error("Pixels() of an unknown page should fail")
	}
}

func TestAtlas_ConcurrentResolve(t *testing.T) {
	a := New(WithPageSize(512))
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for range 50 {
				_, _ = a.Reserve(8, 8)
			}
		}()
		go func() {
			defer wg.Done()
			for i := range 200 {
				a.Resolve(sprite.TextureID(i))
			}
		}()
	}
	wg.Wait()
	if a.Len() != 200 {
		t.Errorf("Len() = %d, want 200", a.Len())
	}
}
