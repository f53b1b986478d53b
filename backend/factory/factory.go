// Package factory is a name-to-constructor registry for backend.Backend
// implementations: each concrete backend package registers itself under a
// short name in an init() function, and callers (chiefly config-driven
// composite assembly) construct instances by name without importing the
// concrete package directly.
package factory

import "github.com/lukasmartinelli-alt/cuckoodrive/backend"

// Constructor builds a backend.Backend from a driver-specific parameters
// map. Parameter keys and value types are defined by each driver.
type Constructor func(parameters map[string]interface{}) (backend.Backend, error)

var constructors = make(map[string]Constructor)

// Register makes a backend constructor available under name. It panics if
// name is already registered or ctor is nil; this is a programming error,
// not a runtime condition.
func Register(name string, ctor Constructor) {
	if ctor == nil {
		panic("factory: nil Constructor for " + name)
	}
	if _, dup := constructors[name]; dup {
		panic("factory: Constructor already registered for " + name)
	}
	constructors[name] = ctor
}

// Create constructs a new backend.Backend of the given name with the given
// parameters. name must have been registered by a driver package's init()
// (import it blank, or directly, to trigger registration).
func Create(name string, parameters map[string]interface{}) (backend.Backend, error) {
	ctor, ok := constructors[name]
	if !ok {
		return nil, InvalidBackendTypeError{Name: name}
	}
	return ctor(parameters)
}

// Registered reports whether name has a registered constructor, for
// diagnostics (e.g. "cuckoo lsbackends" validating a config before trying
// to build it).
func Registered(name string) bool {
	_, ok := constructors[name]
	return ok
}

// InvalidBackendTypeError records an attempt to construct a backend under
// an unregistered type name.
type InvalidBackendTypeError struct {
	Name string
}

func (err InvalidBackendTypeError) Error() string {
	return "factory: backend type not registered: " + err.Name
}
