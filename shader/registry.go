// Package shader keeps the WGSL shaders available to the sprite renderer
// and compiles them to SPIR-V with naga.
package shader

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/naga"

	"github.com/gogpu/sprite"
)

//go:embed shaders/sprite.wgsl
var spriteWGSL string

//go:embed shaders/glyph.wgsl
var glyphWGSL string

//go:embed shaders/shape.wgsl
var shapeWGSL string

// Entry points every registered shader must provide.
const (
	VertexEntry   = "vs_main"
	FragmentEntry = "fs_main"
)

// ErrUnknownShader is returned for ids not in the registry.
var ErrUnknownShader = errors.New("shader: unknown shader")

// Shader is a compiled shader.
type Shader struct {
	ID     sprite.ShaderID
	Name   string
	Source string
	SPIRV  []uint32
}

// Registry maps shader ids to compiled shaders. It implements
// sprite.ShaderSet and is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	shaders map[sprite.ShaderID]*Shader
	byName  map[string]sprite.ShaderID
	next    sprite.ShaderID
}

// NewRegistry creates a registry holding the built-in sprite, glyph and
// shape shaders under sprite.ShaderSprite, sprite.ShaderGlyph and
// sprite.ShaderShape.
func NewRegistry() (*Registry, error) {
	r := &Registry{
		shaders: make(map[sprite.ShaderID]*Shader),
		byName:  make(map[string]sprite.ShaderID),
		next:    sprite.ShaderShape + 1,
	}
	builtins := []struct {
		id   sprite.ShaderID
		name string
		src  string
	}{
		{sprite.ShaderSprite, "sprite", spriteWGSL},
		{sprite.ShaderGlyph, "glyph", glyphWGSL},
		{sprite.ShaderShape, "shape", shapeWGSL},
	}
	for _, b := range builtins {
		if err := r.add(b.id, b.name, b.src); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register compiles a WGSL shader and returns its new id. The source must
// define VertexEntry and FragmentEntry using the sprite.Vertex layout.
func (r *Registry) Register(name, wgsl string) (sprite.ShaderID, error) {
	r.mu.Lock()
	id := r.next
	r.next++
	r.mu.Unlock()

	if err := r.add(id, name, wgsl); err != nil {
		return 0, err
	}
	return id, nil
}

func (r *Registry) add(id sprite.ShaderID, name, wgsl string) error {
	code, err := Compile(wgsl)
	if err != nil {
		return fmt.Errorf("shader %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byName[name]; dup {
		return fmt.Errorf("shader %q: already registered", name)
	}
	r.shaders[id] = &Shader{ID: id, Name: name, Source: wgsl, SPIRV: code}
	r.byName[name] = id
	sprite.Logger().Debug("shader: registered", "name", name, "id", id, "words", len(code))
	return nil
}

// HasShader implements sprite.ShaderSet.
func (r *Registry) HasShader(id sprite.ShaderID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.shaders[id]
	return ok
}

// Get returns the shader with the given id.
func (r *Registry) Get(id sprite.ShaderID) (*Shader, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.shaders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownShader, id)
	}
	return s, nil
}

// Lookup returns the id of a shader by name.
func (r *Registry) Lookup(name string) (sprite.ShaderID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byName[name]
	return id, ok
}

// Compile compiles WGSL source to SPIR-V words.
func Compile(wgsl string) ([]uint32, error) {
	b, err := naga.Compile(wgsl)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("compile: spir-v length %d not a multiple of 4", len(b))
	}
	// SPIR-V is a stream of little-endian 32-bit words.
	code := make([]uint32, len(b)/4)
	for i := range code {
		code[i] = uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
	}
	return code, nil
}
