package recording

import (
	"errors"
	"fmt"

	"github.com/gogpu/sprite"
)

// Batch is a recorded batch. Commands are in draw order.
type Batch struct {
	Layer      string
	Textured   bool
	Texture    sprite.TextureID
	Page       sprite.PageID
	Blend      sprite.BlendMode
	Shader     sprite.ShaderID
	Transform  sprite.Matrix
	Color      sprite.RGBA8
	Commands   []sprite.DrawCommand
	Placements []sprite.Placement // parallel to Commands; empty when unresolved
	Vertices   []sprite.Vertex
}

// Tags returns the tags of the batch's commands.
func (b *Batch) Tags() []uint64 {
	tags := make([]uint64, len(b.Commands))
	for i := range b.Commands {
		tags[i] = b.Commands[i].Tag
	}
	return tags
}

// Recording is one recorded frame. It is immutable once returned by a
// Recorder.
type Recording struct {
	Frame   uint64
	Batches []Batch
}

// Commands returns the number of commands in the frame.
func (rec *Recording) Commands() int {
	n := 0
	for i := range rec.Batches {
		n += len(rec.Batches[i].Commands)
	}
	return n
}

// Tags returns every command tag of the frame in submission order.
func (rec *Recording) Tags() []uint64 {
	tags := make([]uint64, 0, rec.Commands())
	for i := range rec.Batches {
		tags = append(tags, rec.Batches[i].Tags()...)
	}
	return tags
}

// Playback submits the recorded batches to s, bracketed by BeginFrame and
// EndFrame when s is a sprite.FrameSubmitter. It stops at the first
// failing batch; EndFrame is still called.
func (rec *Recording) Playback(s sprite.Submitter) error {
	fs, framed := s.(sprite.FrameSubmitter)
	if framed {
		if err := fs.BeginFrame(rec.Frame); err != nil {
			return fmt.Errorf("recording: begin frame %d: %w", rec.Frame, err)
		}
	}

	var err error
	for i := range rec.Batches {
		b := rec.Batches[i].batch()
		if serr := s.Submit(&b, rec.Batches[i].Vertices); serr != nil {
			err = fmt.Errorf("recording: frame %d batch %d: %w", rec.Frame, i, serr)
			break
		}
	}

	if framed {
		if eerr := fs.EndFrame(); eerr != nil {
			err = errors.Join(err, fmt.Errorf("recording: end frame %d: %w", rec.Frame, eerr))
		}
	}
	return err
}

// batch rebuilds a sprite.Batch. The layer is not restored.
func (b *Batch) batch() sprite.Batch {
	out := sprite.Batch{
		Textured:   b.Textured,
		Texture:    b.Texture,
		Page:       b.Page,
		Blend:      b.Blend,
		Shader:     b.Shader,
		Transform:  b.Transform,
		Color:      b.Color,
		Source:     b.Commands,
		Placements: b.Placements,
		Indices:    make([]int32, len(b.Commands)),
	}
	for i := range out.Indices {
		out.Indices[i] = int32(i) //nolint:gosec // batch sizes fit int32
	}
	return out
}
