package sprite

// Placement locates a texture inside an atlas page.
// Page coordinates are Offset + uv*Scale for a texture-local uv.
type Placement struct {
	Page   PageID
	Offset Vec2
	Scale  Vec2
}

// identityPlacement puts a texture on a page of its own.
func identityPlacement(t TextureID) Placement {
	return Placement{Page: PageID(t), Scale: Vec2{X: 1, Y: 1}}
}

// Map converts texture-local coordinates to page coordinates.
func (p Placement) Map(uv Vec2) Vec2 {
	return Vec2{X: p.Offset.X + uv.X*p.Scale.X, Y: p.Offset.Y + uv.Y*p.Scale.Y}
}

// Resolver maps texture ids to atlas placements. Implementations must be
// safe for concurrent use; atlas.Atlas is one.
type Resolver interface {
	Resolve(TextureID) (Placement, bool)
}

// ShaderSet reports which shaders are registered. shader.Registry is one.
type ShaderSet interface {
	HasShader(ShaderID) bool
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(TextureID) (Placement, bool)

// Resolve calls f(id).
func (f ResolverFunc) Resolve(id TextureID) (Placement, bool) { return f(id) }
