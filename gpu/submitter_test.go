//go:build !nogpu

package gpu

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	"log/slog"
	"testing"
	"unsafe"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/sprite"
	"github.com/gogpu/sprite/atlas"
)

// createNoopDevice creates a noop device and queue for testing.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() {
		openDev.Device.Destroy()
		instance.Destroy()
	})
	return openDev.Device, openDev.Queue
}

// targetView creates a w×h render target on device.
func targetView(t *testing.T, device hal.Device, w, h uint32) hal.TextureView {
	t.Helper()
	tex, err := device.CreateTexture(&hal.TextureDescriptor{
		Label:         "target",
		Size:          hal.Extent3D{Width: w, Height: h, DepthOrArrayLayers: 1},
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     gputypes.TextureDimension2D,
		Format:        gputypes.TextureFormatBGRA8Unorm,
		Usage:         gputypes.TextureUsageRenderAttachment,
	})
	if err != nil {
		t.Fatal(err)
	}
	view, err := device.CreateTextureView(tex, &hal.TextureViewDescriptor{})
	if err != nil {
		t.Fatal(err)
	}
	return view
}

func newTestSubmitter(t *testing.T, opts ...Option) *Submitter {
	t.Helper()
	device, queue := createNoopDevice(t)
	s, err := NewSubmitter(device, queue, gputypes.TextureFormatBGRA8Unorm, opts...)
	if err != nil {
		t.Fatalf("NewSubmitter() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	s.SetTarget(targetView(t, device, 320, 240), 320, 240)
	return s
}

func solid(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

// =============================================================================
// Frames through the renderer
// =============================================================================

func TestSubmitter_RendererFrame(t *testing.T) {
	a := atlas.New(atlas.WithPageSize(256))
	tex, err := a.Add(solid(16, 16, color.NRGBA{R: 255, A: 255}))
	if err != nil {
		t.Fatal(err)
	}
	s := newTestSubmitter(t, WithAtlas(a), WithClearColor(gputypes.Color{A: 1}))

	r := sprite.NewRenderer(
		sprite.WithSubmitter(s),
		sprite.WithResolver(a),
		sprite.WithShaders(s.Shaders()),
		sprite.WithViewport(320, 240),
	)
	defer r.Close()
	layer, err := r.NewLayer("world")
	if err != nil {
		t.Fatal(err)
	}
	_ = layer.Draw(sprite.Attrs{X: 10, Y: 10, Width: 16, Height: 16, Texture: tex})
	_ = layer.DrawRect(50, 50, 20, 20, sprite.RGB(0, 0, 255), sprite.Attrs{})

	batches, err := r.Frame()
	if err != nil {
		t.Fatalf("Frame() error = %v", err)
	}
	if len(batches) != 2 {
		t.Fatalf("Frame() built %d batches, want 2", len(batches))
	}

	st := s.Stats()
	if st.Frames != 1 || st.Draws != 2 || st.Vertices != 12 {
		t.Errorf("Stats() = %+v, want 1 frame, 2 draws, 12 vertices", st)
	}
	if st.Pipelines != 2 {
		t.Errorf("Pipelines = %d, want 2 (sprite and shape)", st.Pipelines)
	}
	if st.Pages != 1 {
		t.Errorf("Pages = %d, want 1", st.Pages)
	}

	// The vertex buffer holds both batches back to back.
	want := append(append([]byte(nil), sprite.VertexBytes(r.Vertices(0))...), sprite.VertexBytes(r.Vertices(1))...)
	m, err := s.device.MapBuffer(s.vbuf, 0, uint64(len(want)))
	if err != nil {
		t.Fatalf("MapBuffer() error = %v", err)
	}
	got := unsafe.Slice((*byte)(m.Ptr), len(want))
	if !bytes.Equal(got, want) {
		t.Error("vertex buffer contents differ from the expanded batches")
	}

	// An idle frame submits nothing.
	if _, err := r.Frame(); err != nil {
		t.Fatal(err)
	}
	if s.Stats().Frames != 1 {
		t.Error("empty frame was submitted")
	}
}

func TestSubmitter_VertexBufferGrows(t *testing.T) {
	s := newTestSubmitter(t)
	r := sprite.NewRenderer(sprite.WithSubmitter(s))
	defer r.Close()
	layer, _ := r.NewLayer("many")

	for i := range 1000 {
		_ = layer.DrawRect(float32(i), 0, 1, 1, sprite.White, sprite.Attrs{})
	}
	if _, err := r.Frame(); err != nil {
		t.Fatal(err)
	}
	need := uint64(1000*sprite.VerticesPerQuad) * sprite.VertexStride
	if s.vcap < need {
		t.Errorf("vertex buffer = %d bytes, need %d", s.vcap, need)
	}
	if s.vcap&(s.vcap-1) != 0 {
		t.Errorf("vertex buffer size %d is not a power of two", s.vcap)
	}
}

func TestSubmitter_NoTarget(t *testing.T) {
	device, queue := createNoopDevice(t)
	s, err := NewSubmitter(device, queue, gputypes.TextureFormatBGRA8Unorm)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	r := sprite.NewRenderer(sprite.WithSubmitter(s))
	defer r.Close()
	layer, _ := r.NewLayer("l")
	_ = layer.DrawRect(0, 0, 1, 1, sprite.White, sprite.Attrs{})

	_, err = r.Frame()
	if !errors.Is(err, ErrNoTarget) || !errors.Is(err, sprite.ErrGPU) {
		t.Errorf("Frame() = %v, want ErrNoTarget wrapped in ErrGPU", err)
	}
}

// =============================================================================
// Direct submission
// =============================================================================

func TestSubmitter_SubmitOutsideFrame(t *testing.T) {
	s := newTestSubmitter(t)
	verts := make([]sprite.Vertex, 6)
	if err := s.Submit(&sprite.Batch{Shader: sprite.ShaderShape}, verts); !errors.Is(err, ErrNotInFrame) {
		t.Errorf("Submit() = %v, want ErrNotInFrame", err)
	}
	if err := s.EndFrame(); !errors.Is(err, ErrNotInFrame) {
		t.Errorf("EndFrame() = %v, want ErrNotInFrame", err)
	}
}

func TestSubmitter_UnknownPage(t *testing.T) {
	s := newTestSubmitter(t)
	if err := s.BeginFrame(1); err != nil {
		t.Fatal(err)
	}
	b := &sprite.Batch{Textured: true, Page: 3, Shader: sprite.ShaderSprite, Blend: sprite.BlendNormal}
	if err := s.Submit(b, make([]sprite.Vertex, 6)); !errors.Is(err, ErrUnknownPage) {
		t.Errorf("Submit() = %v, want ErrUnknownPage", err)
	}
	if err := s.EndFrame(); err != nil {
		t.Errorf("EndFrame() = %v", err)
	}
}

func TestSubmitter_UnknownShader(t *testing.T) {
	s := newTestSubmitter(t)
	_ = s.BeginFrame(1)
	defer s.EndFrame()
	if err := s.Submit(&sprite.Batch{Shader: 77}, make([]sprite.Vertex, 6)); err == nil {
		t.Error("Submit() with an unregistered shader should fail")
	}
}

func TestSubmitter_CustomShader(t *testing.T) {
	s := newTestSubmitter(t)
	src, err := s.Shaders().Get(sprite.ShaderShape)
	if err != nil {
		t.Fatal(err)
	}
	id, err := s.Shaders().Register("flat", src.Source)
	if err != nil {
		t.Fatal(err)
	}

	_ = s.BeginFrame(1)
	for _, blend := range []sprite.BlendMode{sprite.BlendNormal, sprite.BlendAdditive, sprite.BlendNormal} {
		if err := s.Submit(&sprite.Batch{Shader: id, Blend: blend}, make([]sprite.Vertex, 6)); err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
	}
	if err := s.EndFrame(); err != nil {
		t.Fatal(err)
	}
	if st := s.Stats(); st.Pipelines != 2 || st.Draws != 3 {
		t.Errorf("Stats() = %+v, want 2 pipelines and 3 draws", st)
	}
}

func TestSubmitter_SyncAtlas(t *testing.T) {
	s := newTestSubmitter(t)
	a := atlas.New(atlas.WithPageSize(64), atlas.WithPadding(0))
	for range 3 {
		if _, err := a.Add(solid(40, 40, color.NRGBA{G: 255, A: 255})); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.SyncAtlas(a); err != nil {
		t.Fatalf("SyncAtlas() error = %v", err)
	}
	st := s.Stats()
	if st.Pages != 3 {
		t.Errorf("Pages = %d, want 3", st.Pages)
	}
	if st.Uploaded != 3*40*40*4 {
		t.Errorf("Uploaded = %d, want %d", st.Uploaded, 3*40*40*4)
	}
	if err := s.SyncAtlas(a); err != nil {
		t.Fatal(err)
	}
	if s.Stats().Uploaded != st.Uploaded {
		t.Error("second SyncAtlas uploaded clean regions")
	}
}

func TestSubmitter_Close(t *testing.T) {
	s := newTestSubmitter(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
	if err := s.BeginFrame(1); !errors.Is(err, ErrClosed) {
		t.Errorf("BeginFrame() after Close = %v, want ErrClosed", err)
	}
}

func TestSubmitter_SetLogger(t *testing.T) {
	s := newTestSubmitter(t)
	if s.logger() != sprite.Logger() {
		t.Error("default logger is not the package logger")
	}
	l := slog.New(slog.DiscardHandler)
	s.SetLogger(l)
	if s.logger() != l {
		t.Error("SetLogger() not applied")
	}
}

// =============================================================================
// Device providers
// =============================================================================

type fakeProvider struct {
	device hal.Device
	queue  hal.Queue
}

func (p *fakeProvider) Device() gpucontext.Device             { return nil }
func (p *fakeProvider) Queue() gpucontext.Queue               { return nil }
func (p *fakeProvider) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatUndefined }
func (p *fakeProvider) Adapter() gpucontext.Adapter           { return nil }
func (p *fakeProvider) AdapterInfo() gpucontext.AdapterInfo   { return gpucontext.AdapterInfo{} }
func (p *fakeProvider) HalDevice() any                        { return p.device }
func (p *fakeProvider) HalQueue() any                         { return p.queue }

type plainProvider struct{ fakeProvider }

// HalDevice hides the embedded method with one returning the wrong type.
func (p *plainProvider) HalDevice() any { return "not a device" }

func TestNewSubmitterFromProvider(t *testing.T) {
	device, queue := createNoopDevice(t)
	s, err := NewSubmitterFromProvider(&fakeProvider{device: device, queue: queue})
	if err != nil {
		t.Fatalf("NewSubmitterFromProvider() error = %v", err)
	}
	defer s.Close()
	if s.Format() != gputypes.TextureFormatBGRA8Unorm {
		t.Errorf("Format() = %v, want BGRA8Unorm for headless providers", s.Format())
	}

	if _, err := NewSubmitterFromProvider(&plainProvider{}); err == nil {
		t.Error("provider without a HAL device should be rejected")
	}
}
