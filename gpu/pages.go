//go:build !nogpu

package gpu

import (
	"fmt"
	"image"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/sprite"
	"github.com/gogpu/sprite/atlas"
)

// pageTexture is a sampled texture with its bind group.
type pageTexture struct {
	tex   hal.Texture
	view  hal.TextureView
	group hal.BindGroup
}

func (p *pageTexture) destroy(device hal.Device) {
	if p.group != nil {
		device.DestroyBindGroup(p.group)
	}
	if p.view != nil {
		device.DestroyTextureView(p.view)
	}
	if p.tex != nil {
		device.DestroyTexture(p.tex)
	}
}

// SyncAtlas creates textures for new atlas pages and uploads the regions
// changed since the last sync. With WithAtlas this happens in every
// BeginFrame and need not be called.
func (s *Submitter) SyncAtlas(a *atlas.Atlas) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.syncAtlas(a)
}

// syncAtlas does SyncAtlas with s.mu held.
func (s *Submitter) syncAtlas(a *atlas.Atlas) error {
	size := uint32(a.PageSize()) //nolint:gosec // page sizes fit uint32
	for _, page := range a.Pages() {
		if int(page.ID) < len(s.pages) {
			continue
		}
		pt, err := s.newPage(fmt.Sprintf("sprite_page_%d", page.ID), size, size)
		if err != nil {
			return err
		}
		s.pages = append(s.pages, pt)
	}

	for _, up := range a.TakeDirty() {
		px, err := a.Pixels(up)
		if err != nil {
			return err
		}
		if err := s.write(s.pages[up.Page], up.Rect, px); err != nil {
			return fmt.Errorf("upload page %d: %w", up.Page, err)
		}
	}
	return nil
}

// bindGroup returns the page bind group a batch samples from. s.mu must
// be held.
func (s *Submitter) bindGroup(b *sprite.Batch) (hal.BindGroup, error) {
	if !b.Textured {
		if s.white == nil {
			white, err := s.newPage("sprite_white", 1, 1)
			if err != nil {
				return nil, err
			}
			if err := s.write(white, image.Rect(0, 0, 1, 1), []byte{0xff, 0xff, 0xff, 0xff}); err != nil {
				white.destroy(s.device)
				return nil, fmt.Errorf("upload white texture: %w", err)
			}
			s.white = white
		}
		return s.white.group, nil
	}
	if int(b.Page) >= len(s.pages) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPage, b.Page)
	}
	return s.pages[b.Page].group, nil
}

func (s *Submitter) newPage(label string, w, h uint32) (*pageTexture, error) {
	pt := &pageTexture{}
	tex, err := s.device.CreateTexture(&hal.TextureDescriptor{
		Label:         label,
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        atlas.Format,
		Usage:         gputypes.TextureUsageTextureBinding | gputypes.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("create texture %s: %w", label, err)
	}
	pt.tex = tex

	view, err := s.device.CreateTextureView(tex, &hal.TextureViewDescriptor{
		Label:         label + "_view",
		Format:        atlas.Format,
		Dimension:     gputypes.TextureViewDimension2D,
		Aspect:        gputypes.TextureAspectAll,
		MipLevelCount: 1,
	})
	if err != nil {
		pt.destroy(s.device)
		return nil, fmt.Errorf("create texture view %s: %w", label, err)
	}
	pt.view = view

	group, err := s.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:  label + "_bind",
		Layout: s.pipes.groupLayout,
		Entries: []gputypes.BindGroupEntry{
			{Binding: 0, Resource: gputypes.TextureViewBinding{TextureView: view.NativeHandle()}},
			{Binding: 1, Resource: gputypes.SamplerBinding{Sampler: s.pipes.sampler.NativeHandle()}},
		},
	})
	if err != nil {
		pt.destroy(s.device)
		return nil, fmt.Errorf("create bind group %s: %w", label, err)
	}
	pt.group = group
	s.logger().Debug("gpu: page texture created", "label", label, "width", w, "height", h)
	return pt, nil
}

// write uploads tightly packed RGBA rows into r of the page.
func (s *Submitter) write(pt *pageTexture, r image.Rectangle, px []byte) error {
	w, h := uint32(r.Dx()), uint32(r.Dy()) //nolint:gosec // rects lie inside a page
	err := s.queue.WriteTexture(
		&hal.ImageCopyTexture{
			Texture:  pt.tex,
			MipLevel: 0,
			Origin:   hal.Origin3D{X: uint32(r.Min.X), Y: uint32(r.Min.Y)}, //nolint:gosec // rects lie inside a page
			Aspect:   gputypes.TextureAspectAll,
		},
		px,
		&hal.ImageDataLayout{
			Offset:       0,
			BytesPerRow:  w * 4,
			RowsPerImage: h,
		},
		&hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
	)
	if err != nil {
		return err
	}
	s.stats.Uploaded += uint64(len(px))
	return nil
}
