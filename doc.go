// Package sprite provides a concurrent command buffering and batching core
// for real-time 2D sprite rendering.
//
// # Overview
//
// Any number of application goroutines (producers) append draw commands to
// layers without blocking each other or the renderer. Once per frame a single
// render goroutine drains every layer, sorts the commands into painter's
// order and groups them into batches that share GPU state (texture, blend
// mode, shader). Each batch becomes one draw call.
//
// # Quick Start
//
//	r := sprite.NewRenderer(
//	    sprite.WithSubmitter(sub),
//	    sprite.WithResolver(atlas),
//	)
//	ui := sprite.NewLayer("ui")
//	r.AddLayer(ui)
//
//	// any goroutine
//	ui.Draw(sprite.Attrs{X: 10, Y: 20, Texture: tex, Width: 32, Height: 32})
//
//	// render goroutine, once per frame
//	batches, err := r.Frame()
//
// # Architecture
//
//   - CommandBuffer: growable slab of commands, slots claimed with one atomic add
//   - Layer: a pair of command buffers swapped at the frame boundary
//   - Batcher: drains layers, sorts by depth, merges runs with equal state
//   - Renderer: frame state machine that expands quads and hands batches to a Submitter
//
// Sub-packages provide the collaborators: atlas (texture pages), shader
// (WGSL registry), glyph (text runs to glyph quads), gpu (wgpu HAL
// submission) and recording (in-memory submission).
//
// # Coordinate System
//
// Pixel coordinates with the origin at the top-left, X to the right and
// Y down. Rotation is in radians, clockwise on screen.
package sprite

// Version information.
const (
	// Version is the current version of the library.
	Version = "0.3.0"
)
