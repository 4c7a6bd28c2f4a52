package registry

import (
	"reflect"
	"slices"
	"sync"
)

// Container holds at most one live instance per concrete dynamic type.
//
// It replaces process-wide singletons: components are registered once at
// startup and resolved by the code that needs them. Absence is a normal
// result, since many optional integrations are not configured in a given
// host.
type Container struct {
	mu      sync.Mutex
	entries *Registry[reflect.Type, any]
	order   []reflect.Type // registration order, for interface lookups
}

// NewContainer creates an empty container.
func NewContainer() *Container {
	return &Container{
		entries: New[reflect.Type, any](),
	}
}

// Register stores instance keyed by its dynamic type.
//
// Returns false without mutating the container when instance is nil or
// an instance of the same concrete type is already registered. Two
// different types implementing the same interface do not collide.
func (c *Container) Register(instance any) bool {
	if instance == nil {
		return false
	}
	typ := reflect.TypeOf(instance)

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.entries.RegisterIfAbsent(typ, instance) {
		return false
	}
	c.order = append(c.order, typ)
	return true
}

// Len returns the number of registered instances.
func (c *Container) Len() int {
	return c.entries.Len()
}

// Types returns the registered concrete types in registration order.
func (c *Container) Types() []reflect.Type {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.order)
}

// Resolve looks up an instance of T.
//
// A concrete T matches only the entry registered with exactly that type.
// An interface T matches the first entry, in registration order, whose
// instance implements it. Resolve never constructs anything.
func Resolve[T any](c *Container) (T, bool) {
	var zero T
	if c == nil {
		return zero, false
	}

	want := reflect.TypeFor[T]()
	if v, ok := c.entries.Get(want); ok {
		if typed, ok := v.(T); ok {
			return typed, true
		}
	}
	if want.Kind() != reflect.Interface {
		return zero, false
	}

	for _, typ := range c.Types() {
		v, ok := c.entries.Get(typ)
		if !ok {
			continue
		}
		if typed, ok := v.(T); ok {
			return typed, true
		}
	}
	return zero, false
}

// MustResolve is like Resolve but panics when T is not registered.
// Use it only for dependencies that startup wiring guarantees.
func MustResolve[T any](c *Container) T {
	v, ok := Resolve[T](c)
	if !ok {
		panic("registry: no instance registered for " + reflect.TypeFor[T]().String())
	}
	return v
}
