package recording

import (
	"sync/atomic"

	"github.com/gogpu/sprite"
)

// Discard is a submitter that only counts what it receives.
type Discard struct {
	batches  atomic.Uint64
	vertices atomic.Uint64
}

// Submit implements sprite.Submitter.
func (d *Discard) Submit(_ *sprite.Batch, verts []sprite.Vertex) error {
	d.batches.Add(1)
	d.vertices.Add(uint64(len(verts)))
	return nil
}

// Batches returns the number of batches submitted.
func (d *Discard) Batches() uint64 { return d.batches.Load() }

// Vertices returns the number of vertices submitted.
func (d *Discard) Vertices() uint64 { return d.vertices.Load() }
