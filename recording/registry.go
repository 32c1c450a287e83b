package recording

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gogpu/sprite"
)

// Factory creates a fresh submitter for one renderer. Submitters hold
// per-frame state, so a factory must not hand out a shared instance.
type Factory func() (sprite.Submitter, error)

var (
	registryMu sync.RWMutex
	factories  = make(map[string]Factory)
)

func init() {
	Register("recorder", func() (sprite.Submitter, error) { return NewRecorder(), nil })
	Register("discard", func() (sprite.Submitter, error) { return &Discard{}, nil })
}

// Register makes a submitter selectable by name, so a tool can choose
// where frames go from a flag or config value. Packages providing a
// submitter register it from init:
//
//	func init() {
//	    recording.Register("capture", func() (sprite.Submitter, error) {
//	        return recording.NewRecorder(recording.WithKeep(60)), nil
//	    })
//	}
//
// Register panics if factory is nil or name is already registered.
func Register(name string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if factory == nil {
		panic("recording: Register factory is nil")
	}
	if _, dup := factories[name]; dup {
		panic("recording: Register called twice for " + name)
	}
	factories[name] = factory
}

// Unregister removes a submitter from the registry. Unknown names are
// ignored.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(factories, name)
}

// NewSubmitter creates a submitter by name, ready to pass to
// sprite.WithSubmitter. Factory errors are wrapped with the name.
func NewSubmitter(name string) (sprite.Submitter, error) {
	registryMu.RLock()
	factory, ok := factories[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("recording: unknown submitter %q (forgotten import?)", name)
	}
	s, err := factory()
	if err != nil {
		return nil, fmt.Errorf("recording: create submitter %q: %w", name, err)
	}
	return s, nil
}

// MustSubmitter is like NewSubmitter but panics on error.
func MustSubmitter(name string) sprite.Submitter {
	s, err := NewSubmitter(name)
	if err != nil {
		panic(err)
	}
	return s
}

// Submitters returns the registered names in sorted order, for flag help
// and validation.
func Submitters() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsRegistered reports whether name is registered.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[name]
	return ok
}

// Count returns the number of registered submitters.
func Count() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(factories)
}
