package sprite

import (
	"fmt"
	"runtime"
	"sync/atomic"
)

// OrderPolicy controls how the Batcher may reorder a layer's commands.
type OrderPolicy uint8

const (
	// OrderStrict keeps painter's order: commands are never moved across a
	// change of GPU state.
	OrderStrict OrderPolicy = iota
	// OrderOverlap lets a command join an earlier batch with the same state
	// when it overlaps none of the commands drawn in between.
	OrderOverlap
)

func (p OrderPolicy) String() string {
	if p == OrderOverlap {
		return "overlap"
	}
	return "strict"
}

// layerBuffer is one half of a layer's double buffer.
type layerBuffer struct {
	cb      *CommandBuffer
	skip    atomic.Int64 // slots below are discarded at drain
	writers atomic.Int32
}

// Attrs describes one quad to draw on a layer. Zero values select
// defaults: Scale 1, Color white, UV the whole texture, Blend and Shader
// from the layer.
type Attrs struct {
	Kind          Kind
	X, Y          float32
	Width, Height float32
	ScaleX        float32
	ScaleY        float32
	Rotation      float32
	OriginX       float32 // anchor, 0..1 across the quad
	OriginY       float32
	Color         RGBA8
	Texture       TextureID
	UV            Rect
	Blend         BlendMode
	Shader        ShaderID
	Depth         float32
	Tag           uint64
}

// Layer is a named stream of draw commands with its own render state.
//
// Draw methods are safe for concurrent use by any number of goroutines.
// Swap belongs to the frame driver and is called once per frame. A layer
// may be added to one Renderer at a time.
type Layer struct {
	name string
	bufs [2]*layerBuffer

	active atomic.Pointer[layerBuffer]
	gen    atomic.Uint64

	removed atomic.Bool // set while removed from a renderer

	blend   atomic.Uint32 // BlendMode
	shader  atomic.Uint32 // ShaderID, 0 for the kind default
	order   atomic.Uint32 // OrderPolicy
	color   atomic.Uint32 // packed RGBA8
	visible atomic.Bool
	view    atomic.Pointer[Matrix]
	model   atomic.Pointer[Matrix]

	reporter atomic.Pointer[Reporter]
}

// LayerOption configures a Layer at creation.
type LayerOption func(*layerOptions)

type layerOptions struct {
	capacity    int
	maxCapacity int
	blend       BlendMode
	order       OrderPolicy
}

// WithLayerCapacity sets the initial capacity of each of the layer's buffers.
func WithLayerCapacity(n int) LayerOption {
	return func(o *layerOptions) { o.capacity = n }
}

// WithLayerMaxCapacity bounds buffer growth. Zero means unbounded.
func WithLayerMaxCapacity(n int) LayerOption {
	return func(o *layerOptions) { o.maxCapacity = n }
}

// WithLayerBlend sets the layer's initial blend mode.
func WithLayerBlend(b BlendMode) LayerOption {
	return func(o *layerOptions) { o.blend = b }
}

// WithLayerOrder sets the layer's initial order policy.
func WithLayerOrder(p OrderPolicy) LayerOption {
	return func(o *layerOptions) { o.order = p }
}

// NewLayer creates a visible layer with normal blending and identity
// view and model transforms.
func NewLayer(name string, opts ...LayerOption) *Layer {
	o := layerOptions{capacity: DefaultCapacity, blend: BlendNormal}
	for _, opt := range opts {
		opt(&o)
	}
	if o.blend == BlendInherit {
		o.blend = BlendNormal
	}

	l := &Layer{name: name}
	for i := range l.bufs {
		cb := NewCommandBuffer(o.capacity, o.maxCapacity)
		cb.name = name
		l.bufs[i] = &layerBuffer{cb: cb}
	}
	l.active.Store(l.bufs[0])
	l.blend.Store(uint32(o.blend))
	l.order.Store(uint32(o.order))
	l.color.Store(White.Pack())
	l.visible.Store(true)
	id := Identity()
	l.view.Store(&id)
	l.model.Store(&id)
	return l
}

// Name returns the layer name.
func (l *Layer) Name() string { return l.name }

// Draw queues one quad. It never blocks on the renderer. If the buffer
// cannot grow the command is dropped, reported and the error returned.
func (l *Layer) Draw(a Attrs) error {
	_, err := l.push(l.command(a))
	return err
}

// Push queues a fully specified command and returns a handle to its slot.
// BlendInherit and ShaderDefault are resolved against the layer.
func (l *Layer) Push(cmd DrawCommand) (SlotHandle, error) {
	if cmd.Blend == BlendInherit {
		cmd.Blend = l.BlendMode()
	}
	if cmd.Shader == ShaderDefault {
		cmd.Shader = l.shaderFor(cmd.Kind)
	}
	return l.push(cmd)
}

// DrawSprite queues frame of s, anchored at s.Origin. Width and Height in a
// default to the sprite's frame size.
func (l *Layer) DrawSprite(s *Sprite, frame int, a Attrs) error {
	a.Kind = KindSprite
	a.Texture = s.TextureFor(frame)
	a.UV = s.UV()
	a.OriginX, a.OriginY = s.Origin.X, s.Origin.Y
	if a.Width == 0 && a.Height == 0 {
		a.Width, a.Height = s.Width, s.Height
	}
	return l.Draw(a)
}

// DrawRect queues an untextured rectangle with its top-left corner at x, y.
func (l *Layer) DrawRect(x, y, w, h float32, c RGBA8, a Attrs) error {
	a.Kind = KindShape
	a.X, a.Y, a.Width, a.Height = x, y, w, h
	a.Color = c
	a.Texture = NoTexture
	return l.Draw(a)
}

func (l *Layer) command(a Attrs) DrawCommand {
	cmd := DrawCommand{
		Kind:     a.Kind,
		Position: Vec2{X: a.X, Y: a.Y},
		Rotation: a.Rotation,
		Scale:    Vec2{X: a.ScaleX, Y: a.ScaleY},
		Size:     Vec2{X: a.Width, Y: a.Height},
		Origin:   Vec2{X: a.OriginX, Y: a.OriginY},
		Color:    a.Color,
		Texture:  a.Texture,
		UV:       a.UV,
		Blend:    a.Blend,
		Shader:   a.Shader,
		Depth:    a.Depth,
		Tag:      a.Tag,
	}
	if cmd.Scale.X == 0 {
		cmd.Scale.X = 1
	}
	if cmd.Scale.Y == 0 {
		cmd.Scale.Y = 1
	}
	if cmd.Color == Transparent {
		cmd.Color = White
	}
	if cmd.UV == (Rect{}) {
		cmd.UV = UnitRect
	}
	if cmd.Blend == BlendInherit {
		cmd.Blend = l.BlendMode()
	}
	if cmd.Shader == ShaderDefault {
		cmd.Shader = l.shaderFor(cmd.Kind)
	}
	return cmd
}

func (l *Layer) shaderFor(k Kind) ShaderID {
	if s := ShaderID(l.shader.Load()); s != ShaderDefault {
		return s
	}
	return defaultShader(k)
}

// push writes cmd into the active buffer. The writers count taken before
// the re-check keeps Swap from draining the buffer under us.
func (l *Layer) push(cmd DrawCommand) (SlotHandle, error) {
	if l.removed.Load() {
		return SlotHandle{}, fmt.Errorf("%w: %q", ErrLayerRemoved, l.name)
	}
	l.gen.Add(1)
	for {
		lb := l.active.Load()
		lb.writers.Add(1)
		if l.active.Load() != lb {
			lb.writers.Add(-1)
			continue
		}
		h, err := lb.cb.Push(cmd)
		lb.writers.Add(-1)
		if err != nil {
			l.reporter.Load().Report(err)
		}
		return h, err
	}
}

// Swap makes the idle buffer active and returns the commands committed to
// the previously active one, in slot order. Pushes that race with Swap
// land in the next frame. The returned slice is valid until the next Swap.
//
// Swap must only be called by the frame driver.
func (l *Layer) Swap() []DrawCommand {
	old := l.active.Load()
	idle := l.bufs[0]
	if old == idle {
		idle = l.bufs[1]
	}
	idle.cb.Reset()
	idle.skip.Store(0)
	l.active.Store(idle)
	for old.writers.Load() != 0 {
		runtime.Gosched()
	}
	l.gen.Add(1)
	cmds := old.cb.Drain()
	return cmds[min(int(old.skip.Load()), len(cmds)):]
}

// Discard drops every command queued so far. Commands pushed concurrently
// with Discard may land on either side of it. Discard is safe for
// concurrent use with producers and the frame driver.
func (l *Layer) Discard() {
	for {
		lb := l.active.Load()
		lb.writers.Add(1)
		if l.active.Load() != lb {
			lb.writers.Add(-1)
			continue
		}
		n := lb.cb.next.Load()
		for {
			cur := lb.skip.Load()
			if cur >= n || lb.skip.CompareAndSwap(cur, n) {
				break
			}
		}
		lb.writers.Add(-1)
		l.gen.Add(1)
		return
	}
}

// Pending returns the number of commands queued for the next frame.
func (l *Layer) Pending() int {
	lb := l.active.Load()
	return max(lb.cb.Len()-int(lb.skip.Load()), 0)
}

// Cap returns the capacity of the active buffer.
func (l *Layer) Cap() int {
	return l.active.Load().cb.Cap()
}

// Grows returns the total number of buffer growth events.
func (l *Layer) Grows() uint64 {
	return l.bufs[0].cb.Grows() + l.bufs[1].cb.Grows()
}

// Generation changes whenever the layer is drawn to or swapped.
func (l *Layer) Generation() uint64 { return l.gen.Load() }

// SetBlendMode sets the blend mode used by commands that do not pick one.
func (l *Layer) SetBlendMode(b BlendMode) {
	if b == BlendInherit {
		b = BlendNormal
	}
	l.blend.Store(uint32(b))
}

// BlendMode returns the layer's blend mode.
func (l *Layer) BlendMode() BlendMode { return BlendMode(l.blend.Load()) }

// SetShader sets the shader used by commands that do not pick one.
// ShaderDefault restores the per-kind built-in shaders.
func (l *Layer) SetShader(s ShaderID) { l.shader.Store(uint32(s)) }

// Shader returns the layer's shader override.
func (l *Layer) Shader() ShaderID { return ShaderID(l.shader.Load()) }

// SetOrder sets the layer's order policy.
func (l *Layer) SetOrder(p OrderPolicy) { l.order.Store(uint32(p)) }

// Order returns the layer's order policy.
func (l *Layer) Order() OrderPolicy { return OrderPolicy(l.order.Load()) }

// SetColor sets a color multiplied into every command of the layer.
func (l *Layer) SetColor(c RGBA8) { l.color.Store(c.Pack()) }

// Color returns the layer color.
func (l *Layer) Color() RGBA8 { return unpack(l.color.Load()) }

// SetVisible shows or hides the layer. Hidden layers are still drained
// every frame but produce no batches.
func (l *Layer) SetVisible(v bool) { l.visible.Store(v) }

// Visible reports whether the layer is shown.
func (l *Layer) Visible() bool { return l.visible.Load() }

// SetView sets the view (camera) transform.
func (l *Layer) SetView(m Matrix) { l.view.Store(&m) }

// View returns the view transform.
func (l *Layer) View() Matrix { return *l.view.Load() }

// SetModel sets the model transform applied before the view.
func (l *Layer) SetModel(m Matrix) { l.model.Store(&m) }

// Model returns the model transform.
func (l *Layer) Model() Matrix { return *l.model.Load() }

// Transform returns View * Model.
func (l *Layer) Transform() Matrix {
	return l.View().Multiply(l.Model())
}

func unpack(v uint32) RGBA8 {
	return RGBA8{R: uint8(v), G: uint8(v >> 8), B: uint8(v >> 16), A: uint8(v >> 24)}
}
