// Package bridge forwards a consumer package's import calls into a
// provider package's export calls (spec §4.5), installing one
// wazero.HostModuleBuilder-backed stub per wired import module.
//
// The single invariant this package exists to protect: the registry lock
// is never held while execution is inside WebAssembly. A Registry lookup
// clones out the *abi.Instance pointer and releases its mutex before the
// bridge calls into the provider, exactly as
// _examples/original_source/src/runtime/composition.rs's
// cross_package_call does by cloning an Arc<Mutex<..>> before dropping the
// registry guard - Go's GC makes the clone trivial (a pointer copy), but
// the release-before-call ordering is the part that matters.
package bridge

import (
	"context"
	"sync"
)

// Registry maps a package name to its running instance. Composition owns
// one Registry and registers each package into it right after
// instantiating it, in topological order, so a consumer's providers are
// already registered when its bridge stubs are installed.
type Registry struct {
	mu        sync.Mutex
	instances map[string]Instance
}

// Instance is the subset of *abi.Instance the bridge needs. Kept as an
// interface so bridge doesn't import abi's concrete Instance type and so
// tests can install a fake provider.
type Instance interface {
	CallBytes(ctx context.Context, fn string, data []byte) ([]byte, error)
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{instances: make(map[string]Instance)}
}

// Register adds or replaces the instance known by name.
func (r *Registry) Register(name string, inst Instance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[name] = inst
}

// Lookup returns the instance known by name. The registry lock is held only
// for the duration of the map read; the caller must not hold any reference
// to the registry's internal lock after this returns.
func (r *Registry) Lookup(name string) (Instance, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inst, ok := r.instances[name]
	return inst, ok
}

// Names returns every registered package name.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.instances))
	for name := range r.instances {
		names = append(names, name)
	}
	return names
}
