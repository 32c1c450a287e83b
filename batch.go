package sprite

import "fmt"

// stateKey is the GPU state shared by all commands of a batch.
type stateKey struct {
	textured bool
	texture  TextureID // zero when batching by page
	page     PageID
	blend    BlendMode
	shader   ShaderID
}

// Batch is a run of commands that share GPU state and can be drawn with
// one draw call. Batches are owned by the Batcher and valid until its next
// Process or Build call.
type Batch struct {
	Layer    *Layer
	Textured bool      // false for shape batches
	Texture  TextureID // texture of the first command
	Page     PageID
	Blend    BlendMode
	Shader   ShaderID

	// Transform is the layer's view * model at drain time and Color its
	// tint; both apply to every command of the batch.
	Transform Matrix
	Color     RGBA8

	// Indices lists the batch's commands in draw order as indices into
	// Source. Placements is parallel to Source.
	Indices    []int32
	Source     []DrawCommand
	Placements []Placement

	key    stateKey
	bounds Rect
}

// Len returns the number of commands in the batch.
func (b *Batch) Len() int { return len(b.Indices) }

// Command returns the i-th command in draw order.
func (b *Batch) Command(i int) *DrawCommand { return &b.Source[b.Indices[i]] }

// Placement returns the atlas placement of the i-th command.
func (b *Batch) Placement(i int) Placement { return b.Placements[b.Indices[i]] }

// Bounds returns the layer-space bounding box of the batch. It is only
// tracked for layers using OrderOverlap.
func (b *Batch) Bounds() Rect { return b.bounds }

func (b *Batch) String() string {
	name := ""
	if b.Layer != nil {
		name = b.Layer.Name()
	}
	return fmt.Sprintf("Batch(%s: page %d tex %d %s shader %d, %d cmds)",
		name, b.Page, b.Texture, b.Blend, b.Shader, len(b.Indices))
}
