package page

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/patrickwarner/adslotgate/internal/slot"
)

// DefaultElementName is the tag publishers use for ad slots.
const DefaultElementName = "as24-ad-slot"

var (
	// ErrAlreadyDefined is returned when an element name is defined twice.
	// Loading the same definitions more than once is expected; callers
	// should treat it as success.
	ErrAlreadyDefined = errors.New("element already defined")
	// ErrInvalidElementName is returned for names that are not valid custom
	// element names (lowercase, starting with a letter, containing a hyphen).
	ErrInvalidElementName = errors.New("invalid custom element name")
)

// Definition is what the renderer does with an element: evaluate it with Gate.
type Definition struct {
	Gate *slot.Gate
}

// Registry holds the custom element names the renderer processes. It is
// created once at startup and shared by every render; Reset exists for tests.
type Registry struct {
	mu    sync.RWMutex
	defs  map[string]Definition
	names []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Define registers name. Defining a name twice returns ErrAlreadyDefined and
// keeps the first definition.
func (r *Registry) Define(name string, def Definition) error {
	if !validElementName(name) {
		return fmt.Errorf("%w: %q", ErrInvalidElementName, name)
	}
	if def.Gate == nil {
		def.Gate = slot.NewGate(slot.DefaultConfig())
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.defs[name]; ok {
		return fmt.Errorf("%w: %q", ErrAlreadyDefined, name)
	}
	r.defs[name] = def
	r.names = append(r.names, name)
	return nil
}

// Lookup returns the definition for name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[name]
	return def, ok
}

// Names returns the defined names in definition order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Reset removes every definition.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs = make(map[string]Definition)
	r.names = nil
}

func validElementName(name string) bool {
	if name == "" || name[0] < 'a' || name[0] > 'z' || !strings.Contains(name, "-") {
		return false
	}
	return strings.ToLower(name) == name && !strings.ContainsAny(name, " \t\n/>\"'=")
}
