package recording

import (
	"errors"
	"sync"

	"github.com/gogpu/sprite"
)

// ErrNotInFrame is returned by Submit and EndFrame outside a frame.
var ErrNotInFrame = errors.New("recording: submit outside frame")

// FailFunc decides whether a submission fails. It is called with the
// frame number and the batch index within the frame.
type FailFunc func(frame uint64, batch int) error

// Option configures a Recorder.
type Option func(*Recorder)

// WithKeep bounds the number of recorded frames; older frames are
// dropped. Zero keeps every frame.
func WithKeep(n int) Option {
	return func(r *Recorder) { r.keep = n }
}

// WithFailure injects submission failures.
func WithFailure(f FailFunc) Option {
	return func(r *Recorder) { r.fail = f }
}

// Totals are counters over every submission, including dropped frames.
type Totals struct {
	Frames   uint64
	Batches  uint64
	Commands uint64
	Vertices uint64
	Failures uint64
}

// Recorder records frames. It implements sprite.FrameSubmitter and is
// safe for concurrent use.
type Recorder struct {
	keep int
	fail FailFunc

	mu      sync.Mutex
	current *Recording
	frames  []*Recording
	totals  Totals
}

// NewRecorder creates a recorder.
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BeginFrame implements sprite.FrameSubmitter.
func (r *Recorder) BeginFrame(frame uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.current = &Recording{Frame: frame}
	return nil
}

// Submit implements sprite.Submitter. The batch and its vertices are
// copied. Called outside BeginFrame/EndFrame, the batch is recorded as a
// frame of its own.
func (r *Recorder) Submit(b *sprite.Batch, verts []sprite.Vertex) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	standalone := r.current == nil
	if standalone {
		r.current = &Recording{Frame: r.totals.Frames + 1}
	}
	if r.fail != nil {
		if err := r.fail(r.current.Frame, len(r.current.Batches)); err != nil {
			r.totals.Failures++
			return err
		}
	}

	rec := copyBatch(b, verts)
	r.current.Batches = append(r.current.Batches, rec)
	r.totals.Batches++
	r.totals.Commands += uint64(len(rec.Commands))
	r.totals.Vertices += uint64(len(rec.Vertices))

	if standalone {
		r.finish()
	}
	return nil
}

// EndFrame implements sprite.FrameSubmitter.
func (r *Recorder) EndFrame() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return ErrNotInFrame
	}
	r.finish()
	return nil
}

// finish stores the current frame. r.mu must be held.
func (r *Recorder) finish() {
	r.frames = append(r.frames, r.current)
	r.current = nil
	r.totals.Frames++
	if r.keep > 0 && len(r.frames) > r.keep {
		n := copy(r.frames, r.frames[len(r.frames)-r.keep:])
		clear(r.frames[n:])
		r.frames = r.frames[:n]
	}
}

// Frames returns the recorded frames, oldest first.
func (r *Recorder) Frames() []*Recording {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Recording(nil), r.frames...)
}

// Last returns the most recent frame, or nil.
func (r *Recorder) Last() *Recording {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.frames) == 0 {
		return nil
	}
	return r.frames[len(r.frames)-1]
}

// Totals returns the counters.
func (r *Recorder) Totals() Totals {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.totals
}

// Reset drops all recorded frames and counters.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = nil
	r.current = nil
	r.totals = Totals{}
}

func copyBatch(b *sprite.Batch, verts []sprite.Vertex) Batch {
	rec := Batch{
		Textured:  b.Textured,
		Texture:   b.Texture,
		Page:      b.Page,
		Blend:     b.Blend,
		Shader:    b.Shader,
		Transform: b.Transform,
		Color:     b.Color,
		Commands:  make([]sprite.DrawCommand, b.Len()),
		Vertices:  append([]sprite.Vertex(nil), verts...),
	}
	if b.Layer != nil {
		rec.Layer = b.Layer.Name()
	}
	for i := range rec.Commands {
		rec.Commands[i] = *b.Command(i)
	}
	if len(b.Placements) > 0 {
		rec.Placements = make([]sprite.Placement, b.Len())
		for i := range rec.Placements {
			rec.Placements[i] = b.Placement(i)
		}
	}
	return rec
}
