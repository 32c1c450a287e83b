package sprite

import (
	"cmp"
	"slices"
)

// DefaultLookback bounds how many batches OrderOverlap searches backwards.
const DefaultLookback = 16

// drainedLayer is one layer's commands for the frame being built.
type drainedLayer struct {
	layer     *Layer
	cmds      []DrawCommand
	place     []Placement
	transform Matrix
	color     RGBA8
	order     OrderPolicy
	visible   bool
}

// BatchStats counts the work of the last Build.
type BatchStats struct {
	Layers   int
	Commands int
	Skipped  int
	Batches  int
}

// Batcher turns the commands of a set of layers into state-sorted batches.
// It is used by a single goroutine and reuses its memory across frames.
type Batcher struct {
	resolver     Resolver
	shaders      ShaderSet
	reporter     *Reporter
	pageBatching bool
	lookback     int

	drained []drainedLayer
	batches []Batch
	order   []int32
	stats   BatchStats
}

// BatcherOption configures a Batcher.
type BatcherOption func(*Batcher)

// BatchResolver sets the texture resolver. Without one every texture is
// valid and forms its own page.
func BatchResolver(r Resolver) BatcherOption {
	return func(b *Batcher) { b.resolver = r }
}

// BatchShaders sets the shader set. Without one every shader is valid.
func BatchShaders(s ShaderSet) BatcherOption {
	return func(b *Batcher) { b.shaders = s }
}

// BatchReporter sets where skipped commands are reported.
func BatchReporter(r *Reporter) BatcherOption {
	return func(b *Batcher) { b.reporter = r }
}

// BatchByPage merges textures that share an atlas page into one batch.
func BatchByPage(on bool) BatcherOption {
	return func(b *Batcher) { b.pageBatching = on }
}

// BatchLookback sets how many batches OrderOverlap searches backwards.
func BatchLookback(n int) BatcherOption {
	return func(b *Batcher) { b.lookback = n }
}

// NewBatcher creates a batcher.
func NewBatcher(opts ...BatcherOption) *Batcher {
	b := &Batcher{lookback: DefaultLookback}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Process drains layers and builds their batches. The result is valid
// until the next call.
func (b *Batcher) Process(layers []*Layer) []Batch {
	b.Drain(layers)
	return b.Build()
}

// Drain swaps every layer and keeps its committed commands for Build.
// Layer attributes are sampled here, so changes made after Drain apply to
// the next frame.
func (b *Batcher) Drain(layers []*Layer) {
	if cap(b.drained) < len(layers) {
		b.drained = slices.Grow(b.drained[:0], len(layers))
	}
	b.drained = b.drained[:len(layers)]
	for i, l := range layers {
		d := &b.drained[i]
		d.layer = l
		d.cmds = l.Swap()
		d.transform = l.Transform()
		d.color = l.Color()
		d.order = l.Order()
		d.visible = l.Visible()
	}
}

// Build groups the drained commands into batches: painter's order by
// depth, push order among equal depths, then layers in order.
func (b *Batcher) Build() []Batch {
	b.batches = b.batches[:0]
	b.stats = BatchStats{Layers: len(b.drained)}
	for i := range b.drained {
		d := &b.drained[i]
		b.stats.Commands += len(d.cmds)
		if !d.visible || len(d.cmds) == 0 {
			continue
		}
		b.buildLayer(d)
	}
	b.stats.Batches = len(b.batches)
	return b.batches
}

// Stats returns counters for the last Build.
func (b *Batcher) Stats() BatchStats { return b.stats }

func (b *Batcher) buildLayer(d *drainedLayer) {
	d.place = slices.Grow(d.place[:0], len(d.cmds))[:len(d.cmds)]
	b.order = b.order[:0]
	for i := range d.cmds {
		if b.admit(d, i) {
			b.order = append(b.order, int32(i))
		}
	}

	cmds := d.cmds
	slices.SortStableFunc(b.order, func(x, y int32) int {
		return cmp.Compare(cmds[x].Depth, cmds[y].Depth)
	})

	first := len(b.batches)
	for _, idx := range b.order {
		key := b.keyOf(&cmds[idx], d.place[idx])
		if d.order == OrderOverlap {
			b.placeOverlap(d, first, idx, key)
			continue
		}
		if n := len(b.batches); n > first && b.batches[n-1].key == key {
			b.batches[n-1].Indices = append(b.batches[n-1].Indices, idx)
			continue
		}
		b.newBatch(d, idx, key)
	}
}

// admit resolves the resources of command i and reports it if any is
// unknown. Each rejected command is reported once.
func (b *Batcher) admit(d *drainedLayer, i int) bool {
	c := &d.cmds[i]
	if b.shaders != nil && !b.shaders.HasShader(c.Shader) {
		b.skip(&ResourceError{Layer: d.layer.Name(), Kind: ResourceShader, ID: uint32(c.Shader), Tag: c.Tag})
		return false
	}
	if c.Kind == KindShape || c.Texture == NoTexture {
		if c.Kind != KindShape {
			b.skip(&ResourceError{Layer: d.layer.Name(), Kind: ResourceTexture, ID: 0, Tag: c.Tag})
			return false
		}
		d.place[i] = Placement{Scale: Vec2{X: 1, Y: 1}}
		return true
	}
	if b.resolver == nil {
		d.place[i] = identityPlacement(c.Texture)
		return true
	}
	p, ok := b.resolver.Resolve(c.Texture)
	if !ok {
		b.skip(&ResourceError{Layer: d.layer.Name(), Kind: ResourceTexture, ID: uint32(c.Texture), Tag: c.Tag})
		return false
	}
	d.place[i] = p
	return true
}

func (b *Batcher) skip(err error) {
	b.stats.Skipped++
	b.reporter.Report(err)
}

func (b *Batcher) keyOf(c *DrawCommand, p Placement) stateKey {
	k := stateKey{blend: c.Blend, shader: c.Shader}
	if c.Kind == KindShape {
		return k
	}
	k.textured = true
	k.page = p.Page
	if !b.pageBatching {
		k.texture = c.Texture
	}
	return k
}

// placeOverlap appends command idx to the nearest batch with the same
// state, searching back through batches the command does not overlap.
func (b *Batcher) placeOverlap(d *drainedLayer, first int, idx int32, key stateKey) {
	bounds := d.cmds[idx].Bounds()
	lo := first
	if b.lookback > 0 && len(b.batches)-b.lookback > lo {
		lo = len(b.batches) - b.lookback
	}
	for j := len(b.batches) - 1; j >= lo; j-- {
		bt := &b.batches[j]
		if bt.key == key {
			bt.Indices = append(bt.Indices, idx)
			bt.bounds = bt.bounds.Union(bounds)
			return
		}
		if bt.bounds.Intersects(bounds) {
			break
		}
	}
	b.newBatch(d, idx, key)
	b.batches[len(b.batches)-1].bounds = bounds
}

// newBatch appends a batch holding command idx, reusing the memory of a
// batch from an earlier frame when there is one.
func (b *Batcher) newBatch(d *drainedLayer, idx int32, key stateKey) {
	var indices []int32
	if n := len(b.batches); n < cap(b.batches) {
		indices = b.batches[:n+1][n].Indices[:0]
	}
	tex := d.cmds[idx].Texture
	if !key.textured {
		tex = NoTexture
	}
	b.batches = append(b.batches, Batch{
		Layer:      d.layer,
		Textured:   key.textured,
		Texture:    tex,
		Page:       key.page,
		Blend:      key.blend,
		Shader:     key.shader,
		Transform:  d.transform,
		Color:      d.color,
		Indices:    append(indices, idx),
		Source:     d.cmds,
		Placements: d.place,
		key:        key,
	})
}
