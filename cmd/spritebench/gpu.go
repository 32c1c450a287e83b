//go:build !nogpu

package main

import (
	"fmt"
	"log/slog"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/sprite"
	"github.com/gogpu/sprite/atlas"
	"github.com/gogpu/sprite/gpu"
)

// newGPUSubmitter builds a gpu.Submitter on the noop HAL backend with a
// w×h render target. The returned func releases everything.
func newGPUSubmitter(a *atlas.Atlas, w, h uint32, log *slog.Logger) (sprite.Submitter, func(), error) {
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		return nil, nil, fmt.Errorf("create instance: %w", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		instance.Destroy()
		return nil, nil, fmt.Errorf("no adapter")
	}
	open, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		return nil, nil, fmt.Errorf("open device: %w", err)
	}
	device := open.Device
	release := func() {
		device.Destroy()
		instance.Destroy()
	}

	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "spritebench_target",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatBGRA8Unorm,
		Usage:         gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		release()
		return nil, nil, fmt.Errorf("create target: %w", err)
	}
	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{})
	if err != nil {
		device.DestroyTexture(tex)
		release()
		return nil, nil, fmt.Errorf("create target view: %w", err)
	}

	sub, err := gpu.NewSubmitter(device, open.Queue, gputypes.TextureFormatBGRA8Unorm,
		gpu.WithAtlas(a),
		gpu.WithClearColor(gputypes.Color{A: 1}),
	)
	if err != nil {
		device.DestroyTextureView(view)
		device.DestroyTexture(tex)
		release()
		return nil, nil, err
	}
	sub.SetTarget(view, w, h)

	return sub, func() {
		st := sub.Stats()
		log.Info("gpu totals",
			"frames", st.Frames, "draws", st.Draws, "vertices", st.Vertices,
			"uploaded", st.Uploaded, "pipelines", st.Pipelines, "pages", st.Pages)
		_ = sub.Close()
		device.DestroyTextureView(view)
		device.DestroyTexture(tex)
		release()
	}, nil
}
