package sprite

import (
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is to test for them; the typed errors below
// wrap them with context.
var (
	// ErrCapacityExceeded is returned when a command buffer cannot grow.
	// The command is dropped.
	ErrCapacityExceeded = errors.New("sprite: command buffer capacity exceeded")

	// ErrUnknownResource is reported when a command names a texture or
	// shader that is not registered. The command is skipped.
	ErrUnknownResource = errors.New("sprite: unknown resource")

	// ErrGPU is returned when the submitter rejects a frame or batch.
	ErrGPU = errors.New("sprite: gpu submission failed")

	// ErrFrameInProgress is returned by Frame when another frame is running.
	ErrFrameInProgress = errors.New("sprite: frame already in progress")

	// ErrNilLayer is returned when a nil layer is added.
	ErrNilLayer = errors.New("sprite: nil layer")

	// ErrDuplicateLayer is returned when a layer is added twice.
	ErrDuplicateLayer = errors.New("sprite: layer already added")

	// ErrLayerNotFound is returned when removing or moving an unknown layer.
	ErrLayerNotFound = errors.New("sprite: layer not found")

	// ErrLayerRemoved is returned when drawing to a layer that was removed
	// from its renderer.
	ErrLayerRemoved = errors.New("sprite: layer removed")
)

// CapacityError records a push that was dropped because its layer's buffer
// reached its maximum capacity.
type CapacityError struct {
	Layer string
	Cap   int
}

func (e *CapacityError) Error() string {
	return fmt.Sprintf("sprite: layer %q: capacity %d exceeded", e.Layer, e.Cap)
}

func (e *CapacityError) Unwrap() error { return ErrCapacityExceeded }

// ResourceKind names the kind of resource a ResourceError refers to.
type ResourceKind uint8

const (
	ResourceTexture ResourceKind = iota
	ResourceShader
	ResourceGlyph
)

func (k ResourceKind) String() string {
	switch k {
	case ResourceTexture:
		return "texture"
	case ResourceShader:
		return "shader"
	case ResourceGlyph:
		return "glyph"
	default:
		return fmt.Sprintf("ResourceKind(%d)", uint8(k))
	}
}

// ResourceError records a command that referenced an unknown resource.
type ResourceError struct {
	Layer string
	Kind  ResourceKind
	ID    uint32
	Tag   uint64 // Tag of the skipped command
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("sprite: layer %q: unknown %s %d", e.Layer, e.Kind, e.ID)
}

func (e *ResourceError) Unwrap() error { return ErrUnknownResource }

// GPUError wraps a submitter failure. Batch is -1 when the failure was not
// tied to a single batch.
type GPUError struct {
	Frame uint64
	Batch int
	Err   error
}

func (e *GPUError) Error() string {
	if e.Batch < 0 {
		return fmt.Sprintf("sprite: frame %d: %v", e.Frame, e.Err)
	}
	return fmt.Sprintf("sprite: frame %d batch %d: %v", e.Frame, e.Batch, e.Err)
}

// Unwrap exposes both ErrGPU and the submitter's error.
func (e *GPUError) Unwrap() []error { return []error{ErrGPU, e.Err} }
