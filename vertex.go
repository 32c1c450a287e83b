package sprite

import (
	"unsafe"

	"github.com/gogpu/gputypes"
)

// VerticesPerQuad is the number of vertices emitted per command: two
// triangles without an index buffer.
const VerticesPerQuad = 6

// Vertex is the GPU vertex format. Positions are in clip space, UV in page
// coordinates and Color is straight-alpha RGBA8 packed little-endian.
type Vertex struct {
	X, Y  float32
	U, V  float32
	Color uint32
}

// VertexStride is the size of a Vertex in bytes.
const VertexStride = uint64(unsafe.Sizeof(Vertex{}))

// VertexLayout describes Vertex for a render pipeline: position at
// location 0, uv at 1, color at 2.
func VertexLayout() gputypes.VertexBufferLayout {
	return gputypes.VertexBufferLayout{
		ArrayStride: VertexStride,
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes: []gputypes.VertexAttribute{
			{Format: gputypes.VertexFormatFloat32x2, Offset: 0, ShaderLocation: 0},
			{Format: gputypes.VertexFormatFloat32x2, Offset: 8, ShaderLocation: 1},
			{Format: gputypes.VertexFormatUnorm8x4, Offset: 16, ShaderLocation: 2},
		},
	}
}

// AppendQuad appends the six vertices of c. m maps layer space to clip
// space, p maps the command's uv to page space and tint is multiplied
// into the command color.
func AppendQuad(dst []Vertex, c *DrawCommand, p Placement, m Matrix, tint RGBA8) []Vertex {
	corners := c.Corners()
	uv0 := p.Map(c.UV.Min)
	uv1 := p.Map(c.UV.Max)
	uvs := [4]Vec2{{uv0.X, uv0.Y}, {uv1.X, uv0.Y}, {uv1.X, uv1.Y}, {uv0.X, uv1.Y}}
	col := c.Color
	if tint != White {
		col = col.Modulate(tint)
	}
	packed := col.Pack()

	var q [4]Vertex
	for i, pt := range corners {
		pt = m.Apply(pt)
		q[i] = Vertex{X: pt.X, Y: pt.Y, U: uvs[i].X, V: uvs[i].Y, Color: packed}
	}
	return append(dst, q[0], q[1], q[2], q[0], q[2], q[3])
}

// AppendBatch appends the vertices of every command in bt, projected by
// proj after the batch transform.
func AppendBatch(dst []Vertex, bt *Batch, proj Matrix) []Vertex {
	m := proj.Multiply(bt.Transform)
	dst = growVertices(dst, bt.Len()*VerticesPerQuad)
	for _, idx := range bt.Indices {
		dst = AppendQuad(dst, &bt.Source[idx], bt.Placements[idx], m, bt.Color)
	}
	return dst
}

// VertexBytes reinterprets vertices as bytes for upload. The result
// aliases v.
func VertexBytes(v []Vertex) []byte {
	if len(v) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&v[0])), len(v)*int(VertexStride))
}

func growVertices(v []Vertex, n int) []Vertex {
	if cap(v)-len(v) >= n {
		return v
	}
	nv := make([]Vertex, len(v), len(v)+n)
	copy(nv, v)
	return nv
}
