package composition

import (
	"context"

	"go.uber.org/zap"

	"github.com/packrun/pack/abi"
	"github.com/packrun/pack/bridge"
	"github.com/packrun/pack/errors"
	"github.com/packrun/pack/value"
)

// Composition is a fully wired, running set of package instances. Callers
// invoke exports by package and function name; each underlying Instance
// still serializes its own calls through its own mutex (spec §5), so
// Composition itself holds no global call lock.
type Composition struct {
	engine    *abi.Engine
	registry  *bridge.Registry
	modules   map[string]*abi.Module
	instances map[string]*abi.Instance
	logger    *zap.Logger
}

// Call invokes fn on the named package instance with v as input, following
// the guest-allocates ABI (spec §4.4).
func (c *Composition) Call(ctx context.Context, pkg, fn string, v value.Value) (value.Value, error) {
	inst, ok := c.instances[pkg]
	if !ok {
		return value.Value{}, errors.ModuleNotFound(pkg)
	}
	return inst.Call(ctx, fn, v)
}

// Instance returns the running instance for a package, so callers can reach
// lower-level operations (Metadata, CallBytes) that Composition.Call doesn't
// expose.
func (c *Composition) Instance(pkg string) (*abi.Instance, bool) {
	inst, ok := c.instances[pkg]
	return inst, ok
}

// Packages returns the names of every package in the composition.
func (c *Composition) Packages() []string {
	return c.registry.Names()
}

// Close tears down every instance, module, and the underlying engine. It
// keeps going on the first error and returns it after attempting to close
// everything else, so one stuck instance doesn't leak the rest.
func (c *Composition) Close(ctx context.Context) error {
	var first error
	for _, inst := range c.instances {
		if err := inst.Close(ctx); err != nil && first == nil {
			first = err
		}
	}
	for _, mod := range c.modules {
		if err := mod.Close(ctx); err != nil && first == nil {
			first = err
		}
	}
	if err := c.engine.Close(ctx); err != nil && first == nil {
		first = err
	}
	return first
}
