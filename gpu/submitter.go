//go:build !nogpu

// Package gpu submits sprite batches to a GPU through the wgpu HAL.
//
// A Submitter records every batch of a frame into one render pass on the
// current target view. Vertices of all batches share a single vertex
// buffer that is uploaded once per frame. Atlas pages become sampled
// textures and are kept in sync with SyncAtlas.
//
// Usage with a shared device:
//
//	sub, err := gpu.NewSubmitterFromProvider(provider, gpu.WithAtlas(a))
//	r := sprite.NewRenderer(sprite.WithSubmitter(sub), sprite.WithResolver(a))
//	sub.SetTarget(view, width, height)
//	r.Frame()
package gpu

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/sprite"
	"github.com/gogpu/sprite/atlas"
	"github.com/gogpu/sprite/shader"
)

// Submitter errors.
var (
	// ErrNoTarget is returned by EndFrame when batches were submitted but
	// no target view was set.
	ErrNoTarget = errors.New("gpu: no render target")

	// ErrNotInFrame is returned by Submit outside BeginFrame/EndFrame.
	ErrNotInFrame = errors.New("gpu: submit outside frame")

	// ErrUnknownPage is returned for batches on pages never synced.
	ErrUnknownPage = errors.New("gpu: unknown atlas page")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("gpu: submitter closed")
)

// Option configures a Submitter.
type Option func(*Submitter)

// WithShaders uses reg instead of a fresh shader.Registry. Custom shaders
// registered there become drawable.
func WithShaders(reg *shader.Registry) Option {
	return func(s *Submitter) { s.shaders = reg }
}

// WithAtlas makes BeginFrame upload the atlas regions changed since the
// previous frame.
func WithAtlas(a *atlas.Atlas) Option {
	return func(s *Submitter) { s.atlas = a }
}

// WithClearColor clears the target at the start of each frame. Without
// it the target is loaded.
func WithClearColor(c gputypes.Color) Option {
	return func(s *Submitter) { s.clear = &c }
}

// Stats are cumulative submission counters.
type Stats struct {
	Frames    uint64
	Draws     uint64
	Vertices  uint64
	Uploaded  uint64 // bytes written to vertex buffers and textures
	Pipelines int
	Pages     int
}

// draw is one recorded batch.
type draw struct {
	pipeline hal.RenderPipeline
	group    hal.BindGroup
	first    uint32
	count    uint32
}

// inflight is a command buffer the GPU may still be executing.
type inflight struct {
	index uint64
	cmd   hal.CommandBuffer
}

// Submitter implements sprite.FrameSubmitter on a HAL device.
type Submitter struct {
	device hal.Device
	queue  hal.Queue
	format gputypes.TextureFormat

	shaders *shader.Registry
	atlas   *atlas.Atlas
	clear   *gputypes.Color
	log     atomic.Pointer[slog.Logger]

	mu        sync.Mutex
	closed    bool
	pipes     *pipelines
	pages     []*pageTexture
	white     *pageTexture
	target    hal.TextureView
	width     uint32
	height    uint32
	vbuf      hal.Buffer
	vcap      uint64
	inFrame   bool
	frame     uint64
	staging   []byte
	draws     []draw
	submitted []inflight
	stats     Stats
}

// NewSubmitter creates a submitter rendering into views of the given
// format.
func NewSubmitter(device hal.Device, queue hal.Queue, format gputypes.TextureFormat, opts ...Option) (*Submitter, error) {
	if device == nil || queue == nil {
		return nil, fmt.Errorf("gpu: nil device or queue")
	}
	s := &Submitter{device: device, queue: queue, format: format}
	for _, opt := range opts {
		opt(s)
	}
	if s.shaders == nil {
		reg, err := shader.NewRegistry()
		if err != nil {
			return nil, fmt.Errorf("gpu: %w", err)
		}
		s.shaders = reg
	}

	pipes, err := newPipelines(device, format, s.shaders)
	if err != nil {
		return nil, err
	}
	s.pipes = pipes
	s.logger().Info("gpu: submitter ready", "format", format)
	return s, nil
}

// NewSubmitterFromProvider creates a submitter on a device shared by the
// host application. The provider must also expose HalDevice() any and
// HalQueue() any returning hal.Device and hal.Queue.
func NewSubmitterFromProvider(provider gpucontext.DeviceProvider, opts ...Option) (*Submitter, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, fmt.Errorf("gpu: provider does not expose HAL types")
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, fmt.Errorf("gpu: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, fmt.Errorf("gpu: provider HalQueue is not hal.Queue")
	}
	format := provider.SurfaceFormat()
	if format == gputypes.TextureFormatUndefined {
		format = gputypes.TextureFormatBGRA8Unorm
	}
	return NewSubmitter(device, queue, format, opts...)
}

// SetLogger sets the logger used by the submitter. The renderer calls it
// when sprite.SetLogger changes the package logger.
func (s *Submitter) SetLogger(l *slog.Logger) {
	s.log.Store(l)
}

func (s *Submitter) logger() *slog.Logger {
	if l := s.log.Load(); l != nil {
		return l
	}
	return sprite.Logger()
}

// SetTarget sets the view the next frames render into. width and height
// set the viewport.
func (s *Submitter) SetTarget(view hal.TextureView, width, height uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.target = view
	s.width, s.height = width, height
}

// Format returns the target format pipelines are built for.
func (s *Submitter) Format() gputypes.TextureFormat { return s.format }

// Shaders returns the shader registry.
func (s *Submitter) Shaders() *shader.Registry { return s.shaders }

// Stats returns a snapshot of the counters.
func (s *Submitter) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.Pipelines = s.pipes.len()
	st.Pages = len(s.pages)
	return st
}

// BeginFrame implements sprite.FrameSubmitter.
func (s *Submitter) BeginFrame(frame uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.inFrame = true
	s.frame = frame
	s.staging = s.staging[:0]
	s.draws = s.draws[:0]
	s.reclaim()
	if s.atlas != nil {
		return s.syncAtlas(s.atlas)
	}
	return nil
}

// Submit implements sprite.Submitter. It records the batch; nothing
// reaches the GPU before EndFrame.
func (s *Submitter) Submit(b *sprite.Batch, verts []sprite.Vertex) error {
	if len(verts) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inFrame {
		return ErrNotInFrame
	}
	pipe, err := s.pipes.get(b.Shader, b.Blend)
	if err != nil {
		return err
	}
	group, err := s.bindGroup(b)
	if err != nil {
		return err
	}

	first := uint32(len(s.staging) / int(sprite.VertexStride)) //nolint:gosec // bounded by buffer size
	s.staging = append(s.staging, sprite.VertexBytes(verts)...)
	s.draws = append(s.draws, draw{
		pipeline: pipe,
		group:    group,
		first:    first,
		count:    uint32(len(verts)), //nolint:gosec // bounded by buffer size
	})
	return nil
}

// EndFrame implements sprite.FrameSubmitter. It uploads the frame's
// vertices and submits one render pass.
func (s *Submitter) EndFrame() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inFrame {
		return ErrNotInFrame
	}
	s.inFrame = false
	if len(s.draws) == 0 {
		return nil
	}
	if s.target == nil {
		return ErrNoTarget
	}

	if err := s.upload(); err != nil {
		return err
	}

	encoder, err := s.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: "sprite_encoder"})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("sprite_frame"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}

	att := hal.RenderPassColorAttachment{
		View:    s.target,
		LoadOp:  gputypes.LoadOpLoad,
		StoreOp: gputypes.StoreOpStore,
	}
	if s.clear != nil {
		att.LoadOp = gputypes.LoadOpClear
		att.ClearValue = *s.clear
	}
	rp := encoder.BeginRenderPass(&hal.RenderPassDescriptor{
		Label:            "sprite_pass",
		ColorAttachments: []hal.RenderPassColorAttachment{att},
	})
	if s.width > 0 && s.height > 0 {
		rp.SetViewport(0, 0, float32(s.width), float32(s.height), 0, 1)
	}
	rp.SetVertexBuffer(0, s.vbuf, 0)
	var vertices uint64
	for _, d := range s.draws {
		rp.SetPipeline(d.pipeline)
		rp.SetBindGroup(0, d.group, nil)
		rp.Draw(d.count, 1, d.first, 0)
		vertices += uint64(d.count)
	}
	rp.End()

	cmd, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	index, err := s.queue.Submit([]hal.CommandBuffer{cmd})
	if err != nil {
		s.device.FreeCommandBuffer(cmd)
		return fmt.Errorf("submit: %w", err)
	}
	s.submitted = append(s.submitted, inflight{index: index, cmd: cmd})

	s.stats.Frames++
	s.stats.Draws += uint64(len(s.draws))
	s.stats.Vertices += vertices
	s.logger().Debug("gpu: frame submitted", "frame", s.frame, "draws", len(s.draws), "vertices", vertices)
	return nil
}

// upload writes the staged vertices, growing the vertex buffer to the
// next power of two when needed. s.mu must be held.
func (s *Submitter) upload() error {
	need := uint64(len(s.staging))
	if need > s.vcap {
		size := uint64(4096)
		for size < need {
			size *= 2
		}
		buf, err := s.device.CreateBuffer(&hal.BufferDescriptor{
			Label: "sprite_vertices",
			Size:  size,
			Usage: gputypes.BufferUsageVertex | gputypes.BufferUsageCopyDst,
		})
		if err != nil {
			return fmt.Errorf("create vertex buffer: %w", err)
		}
		if s.vbuf != nil {
			// The old buffer may still be read by an earlier frame.
			if err := s.device.WaitIdle(); err != nil {
				s.device.DestroyBuffer(buf)
				return fmt.Errorf("wait idle: %w", err)
			}
			s.device.DestroyBuffer(s.vbuf)
		}
		s.vbuf, s.vcap = buf, size
		s.logger().Debug("gpu: vertex buffer grown", "bytes", size)
	}
	if err := s.queue.WriteBuffer(s.vbuf, 0, s.staging); err != nil {
		return fmt.Errorf("write vertices: %w", err)
	}
	s.stats.Uploaded += need
	return nil
}

// reclaim frees command buffers the GPU has finished. s.mu must be held.
func (s *Submitter) reclaim() {
	done := s.queue.PollCompleted()
	n := 0
	for _, f := range s.submitted {
		if f.index <= done {
			s.device.FreeCommandBuffer(f.cmd)
			continue
		}
		s.submitted[n] = f
		n++
	}
	s.submitted = s.submitted[:n]
}

// Close waits for the GPU and releases every resource. The device and
// queue are not destroyed.
func (s *Submitter) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	err := s.device.WaitIdle()
	for _, f := range s.submitted {
		s.device.FreeCommandBuffer(f.cmd)
	}
	s.submitted = nil
	if s.vbuf != nil {
		s.device.DestroyBuffer(s.vbuf)
		s.vbuf = nil
	}
	for _, p := range s.pages {
		p.destroy(s.device)
	}
	s.pages = nil
	if s.white != nil {
		s.white.destroy(s.device)
		s.white = nil
	}
	s.pipes.destroy()
	return err
}
