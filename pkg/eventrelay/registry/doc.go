// Package registry provides the dependency lookup tables used to wire
// eventrelay components without package-level singletons.
//
// # Keyed Registry
//
// Registry is a generic thread-safe map for read-heavy workloads:
//
//	r := registry.New[string, int]()
//	r.Register("one", 1)
//	if !r.RegisterIfAbsent("one", 2) {
//	    // "one" keeps the value 1
//	}
//
// # Typed Container
//
// Container keys instances by their concrete dynamic type and allows at
// most one instance per type:
//
//	c := registry.NewContainer()
//	c.Register(fileStore)        // true
//	c.Register(otherFileStore)   // false, same concrete type
//	c.Register(memoryStore)      // true, different type
//
// Resolve has two lookup modes. A concrete type parameter requires an exact
// match; an interface type parameter returns the first registered instance
// (in registration order) that implements it:
//
//	fs, ok := registry.Resolve[*store.FileStore](c)  // exact
//	s, ok := registry.Resolve[store.Store](c)        // fileStore, registered first
//
// A missing entry is reported through the boolean result, never as an
// error: callers treat "not configured" as a legitimate steady state.
package registry
