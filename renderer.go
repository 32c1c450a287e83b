package sprite

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/gogpu/sprite/internal/parallel"
)

// Submitter sends one batch and its vertices to the GPU. It is called on
// the frame driver goroutine only; verts is reused after Submit returns.
type Submitter interface {
	Submit(b *Batch, verts []Vertex) error
}

// FrameSubmitter is a Submitter that is told where frames begin and end,
// for example to record all batches into one command buffer.
type FrameSubmitter interface {
	Submitter
	BeginFrame(frame uint64) error
	EndFrame() error
}

// FrameState is the renderer's position in its frame cycle.
type FrameState uint32

const (
	StateIdle FrameState = iota
	StateDraining
	StateBatching
	StateSubmitting
)

func (s FrameState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDraining:
		return "draining"
	case StateBatching:
		return "batching"
	case StateSubmitting:
		return "submitting"
	default:
		return fmt.Sprintf("FrameState(%d)", uint32(s))
	}
}

// FrameStats describes the last completed frame.
type FrameStats struct {
	Frame    uint64
	Layers   int
	Commands int
	Skipped  int
	Batches  int
	Vertices int
}

// parallelBatches is the batch count from which vertex expansion is split
// across workers.
const parallelBatches = 8

type layerOpKind uint8

const (
	opAdd layerOpKind = iota
	opRemove
	opMove
)

type layerOp struct {
	kind  layerOpKind
	layer *Layer
	index int
}

// Renderer drives frames: it drains its layers, batches their commands,
// expands quads into vertices and hands each batch to a Submitter.
//
// Frame must be called from one goroutine (the frame driver). Layer
// management methods may be called from any goroutine; their effect is
// applied at the start of the next frame.
type Renderer struct {
	opts      options
	batcher   *Batcher
	reporter  *Reporter
	submitter Submitter
	pool      *parallel.WorkerPool

	state atomic.Uint32
	frame atomic.Uint64
	proj  atomic.Pointer[Matrix]
	stats atomic.Pointer[FrameStats]

	mu      sync.Mutex // guards layers, pending and planned
	layers  []*Layer
	pending []layerOp
	planned []*Layer // layer order once pending is applied

	verts [][]Vertex
}

// NewRenderer creates a renderer.
func NewRenderer(opts ...Option) *Renderer {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	r := &Renderer{
		opts:      o,
		reporter:  NewReporter(o.errorBuffer),
		submitter: o.submitter,
	}
	r.batcher = NewBatcher(
		BatchResolver(o.resolver),
		BatchShaders(o.shaders),
		BatchReporter(r.reporter),
		BatchByPage(o.pageBatching),
		BatchLookback(o.lookback),
	)
	if o.workers != 1 {
		r.pool = parallel.NewWorkerPool(o.workers)
	}
	proj := Identity()
	if o.width > 0 && o.height > 0 {
		proj = Ortho(o.width, o.height)
	}
	r.proj.Store(&proj)
	r.stats.Store(&FrameStats{})
	if r.submitter != nil {
		propagateLogger(r.submitter)
	}
	return r
}

// Close releases the worker pool. The renderer must not be used afterwards.
func (r *Renderer) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
	if r.submitter != nil {
		forgetLogger(r.submitter)
	}
}

// NewLayer creates a layer using the renderer's capacity settings and
// queues it for addition.
func (r *Renderer) NewLayer(name string, opts ...LayerOption) (*Layer, error) {
	base := []LayerOption{
		WithLayerCapacity(r.opts.capacity),
		WithLayerMaxCapacity(r.opts.maxCapacity),
	}
	l := NewLayer(name, append(base, opts...)...)
	if err := r.AddLayer(l); err != nil {
		return nil, err
	}
	return l, nil
}

// AddLayer queues l to be drawn on top of the existing layers. A layer
// that was removed accepts draws again immediately.
func (r *Renderer) AddLayer(l *Layer) error {
	if l == nil {
		return ErrNilLayer
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if slices.Contains(r.planned, l) {
		return fmt.Errorf("%w: %q", ErrDuplicateLayer, l.Name())
	}
	if l.removed.Load() {
		// Drop draws that raced with the removal.
		l.Discard()
		l.removed.Store(false)
	}
	r.planned = append(r.planned, l)
	r.pending = append(r.pending, layerOp{kind: opAdd, layer: l})
	return nil
}

// RemoveLayer queues l for removal. Commands still queued on l are not
// drawn. Once the removal is applied, draws to l fail with
// ErrLayerRemoved until it is added again.
func (r *Renderer) RemoveLayer(l *Layer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := slices.Index(r.planned, l)
	if i < 0 {
		return ErrLayerNotFound
	}
	r.planned = slices.Delete(r.planned, i, i+1)
	r.pending = append(r.pending, layerOp{kind: opRemove, layer: l})
	return nil
}

// MoveLayer queues moving l to position index in the layer order; 0 is
// drawn first. The index is clamped to the valid range.
func (r *Renderer) MoveLayer(l *Layer, index int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i := slices.Index(r.planned, l)
	if i < 0 {
		return ErrLayerNotFound
	}
	r.planned = slices.Delete(r.planned, i, i+1)
	index = max(0, min(index, len(r.planned)))
	r.planned = slices.Insert(r.planned, index, l)
	r.pending = append(r.pending, layerOp{kind: opMove, layer: l, index: index})
	return nil
}

// Layers returns the layers drawn by the current or last frame, in order.
func (r *Renderer) Layers() []*Layer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.layers)
}

// applyPending applies queued layer changes. It runs only at the
// Idle to Draining transition.
func (r *Renderer) applyPending() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, op := range r.pending {
		switch op.kind {
		case opAdd:
			op.layer.removed.Store(false)
			op.layer.reporter.Store(r.reporter)
			r.layers = append(r.layers, op.layer)
		case opRemove:
			if i := slices.Index(r.layers, op.layer); i >= 0 {
				r.layers = slices.Delete(r.layers, i, i+1)
			}
			op.layer.removed.Store(true)
			op.layer.Swap()
			op.layer.reporter.Store(nil)
		case opMove:
			if i := slices.Index(r.layers, op.layer); i >= 0 {
				r.layers = slices.Delete(r.layers, i, i+1)
				r.layers = slices.Insert(r.layers, min(op.index, len(r.layers)), op.layer)
			}
		}
	}
	clear(r.pending)
	r.pending = r.pending[:0]
}

// SetViewport changes the target size used for the projection from the
// next frame on.
func (r *Renderer) SetViewport(width, height float32) {
	m := Ortho(width, height)
	r.proj.Store(&m)
}

// Projection returns the current projection matrix.
func (r *Renderer) Projection() Matrix { return *r.proj.Load() }

// State returns the current frame state.
func (r *Renderer) State() FrameState { return FrameState(r.state.Load()) }

// Errors returns the channel on which dropped and skipped commands and
// GPU failures are reported.
func (r *Renderer) Errors() <-chan error { return r.reporter.Errors() }

// Reporter returns the renderer's reporter, for collaborators such as
// glyph providers that report on the same channel.
func (r *Renderer) Reporter() *Reporter { return r.reporter }

// Stats returns statistics of the last completed frame.
func (r *Renderer) Stats() FrameStats { return *r.stats.Load() }

// Frame runs one frame. It returns the batches built, which are valid
// until the next Frame, and the first submission error, if any.
// Per-command problems are only reported, never returned.
func (r *Renderer) Frame() ([]Batch, error) {
	if !r.state.CompareAndSwap(uint32(StateIdle), uint32(StateDraining)) {
		return nil, ErrFrameInProgress
	}
	defer r.state.Store(uint32(StateIdle))

	frame := r.frame.Add(1)
	r.applyPending()
	r.mu.Lock()
	layers := r.layers
	r.mu.Unlock()
	r.batcher.Drain(layers)

	r.state.Store(uint32(StateBatching))
	batches := r.batcher.Build()
	nverts := r.expand(batches)

	r.state.Store(uint32(StateSubmitting))
	err := r.submit(frame, batches)

	bs := r.batcher.Stats()
	r.stats.Store(&FrameStats{
		Frame:    frame,
		Layers:   bs.Layers,
		Commands: bs.Commands,
		Skipped:  bs.Skipped,
		Batches:  bs.Batches,
		Vertices: nverts,
	})
	Logger().Debug("sprite: frame",
		"frame", frame, "commands", bs.Commands, "batches", bs.Batches, "skipped", bs.Skipped)
	return batches, err
}

// Vertices returns the vertices built for batch i of the last frame.
func (r *Renderer) Vertices(i int) []Vertex {
	if i < 0 || i >= len(r.verts) {
		return nil
	}
	return r.verts[i]
}

// expand builds the vertices of every batch and returns their total.
func (r *Renderer) expand(batches []Batch) int {
	for len(r.verts) < len(batches) {
		r.verts = append(r.verts, nil)
	}
	for i := len(batches); i < len(r.verts); i++ {
		r.verts[i] = r.verts[i][:0]
	}
	proj := r.Projection()
	build := func(lo, hi int) {
		for i := lo; i < hi; i++ {
			r.verts[i] = AppendBatch(r.verts[i][:0], &batches[i], proj)
		}
	}
	if r.pool != nil && len(batches) >= parallelBatches {
		r.pool.Range(len(batches), max(1, len(batches)/(r.pool.Workers()*2)), build)
	} else {
		build(0, len(batches))
	}

	n := 0
	for i := range batches {
		n += len(r.verts[i])
	}
	return n
}

// submit hands the batches to the submitter. The frame stops at the first
// failure; the error is reported and returned.
func (r *Renderer) submit(frame uint64, batches []Batch) error {
	if r.submitter == nil {
		return nil
	}
	fs, framed := r.submitter.(FrameSubmitter)
	if framed {
		if err := fs.BeginFrame(frame); err != nil {
			return r.fail(frame, -1, err)
		}
	}

	var err error
	for i := range batches {
		if serr := r.submitter.Submit(&batches[i], r.verts[i]); serr != nil {
			err = r.fail(frame, i, serr)
			break
		}
	}

	if framed {
		if eerr := fs.EndFrame(); eerr != nil && err == nil {
			err = r.fail(frame, -1, eerr)
		}
	}
	return err
}

func (r *Renderer) fail(frame uint64, batch int, err error) error {
	var gerr *GPUError
	if !errors.As(err, &gerr) {
		gerr = &GPUError{Frame: frame, Batch: batch, Err: err}
	}
	r.reporter.Report(gerr)
	return gerr
}
