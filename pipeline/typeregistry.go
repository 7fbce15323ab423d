package pipeline

import (
	"reflect"
	"sync"
)

// TypeRegistry records additional output-to-input assignability beyond pure
// identity, for graph builders that want a source of int32 to feed a
// transform of int64, or a concrete struct to satisfy an interface token,
// without the type rule rejecting the edge. Registration is one-directional:
// registering out->in doesn't imply in->out.
type TypeRegistry struct {
	mu          sync.RWMutex
	conversions map[reflect.Type]map[reflect.Type]bool
}

// globalTypeRegistry is consulted by assignable when no exact match exists.
var globalTypeRegistry = &TypeRegistry{conversions: make(map[reflect.Type]map[reflect.Type]bool)}

// GlobalTypeRegistry returns the process-wide TypeRegistry used by the type
// validation rule.
func GlobalTypeRegistry() *TypeRegistry {
	return globalTypeRegistry
}

// RegisterConversion declares that a node whose output type token is out may
// feed a node whose input type token is in, even though out != in. Type
// tokens are typically reflect.Type values produced by TypeOf, matching what
// NodeDescriptor.OutputType/InputType carry.
func RegisterConversion(out, in reflect.Type) {
	globalTypeRegistry.RegisterConversion(out, in)
}

// RegisterConversion is the method form of the package-level helper, for
// callers holding their own registry instance instead of the global one.
func (r *TypeRegistry) RegisterConversion(out, in reflect.Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.conversions[out] == nil {
		r.conversions[out] = make(map[reflect.Type]bool)
	}
	r.conversions[out][in] = true
}

// Allows reports whether out has been registered as assignable to in.
func (r *TypeRegistry) Allows(out, in reflect.Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conversions[out][in]
}

// Reset clears every registered conversion. Intended for tests that need a
// clean global registry between graph builds.
func (r *TypeRegistry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conversions = make(map[reflect.Type]map[reflect.Type]bool)
}
