package bytecode

import "github.com/sylt-lang/sylt/pkg/value"

// Extern is a host function callable from sylt code. When typecheck
// is false it performs its real effect; when true it must perform no
// observable side effect and return a placeholder value of its
// declared return shape, built with value.Default.
type Extern func(args []value.Value, typecheck bool) (value.Value, error)

// ExternDef is one registered host function: its sylt-visible name,
// the function, and its declared type for call-site checking.
type ExternDef struct {
	Name string
	Fn   Extern
	Ty   *value.FunctionType
}

// Registry is the ordered extern registration table. ExternFunction
// values index it; indices are assigned in registration order at link
// time.
type Registry struct {
	defs    []ExternDef
	indexOf map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{indexOf: map[string]int{}}
}

// Register appends a definition and returns its index. Re-registering
// a name replaces the function but keeps the original index, so
// compiled programs stay valid.
func (r *Registry) Register(def ExternDef) int {
	if i, ok := r.indexOf[def.Name]; ok {
		r.defs[i] = def
		return i
	}
	r.defs = append(r.defs, def)
	i := len(r.defs) - 1
	r.indexOf[def.Name] = i
	return i
}

// Lookup returns the index of a name.
func (r *Registry) Lookup(name string) (int, bool) {
	i, ok := r.indexOf[name]
	return i, ok
}

// Get returns the definition at an index.
func (r *Registry) Get(i int) (ExternDef, bool) {
	if i < 0 || i >= len(r.defs) {
		return ExternDef{}, false
	}
	return r.defs[i], true
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.defs))
	for i, d := range r.defs {
		names[i] = d.Name
	}
	return names
}

// Len returns the number of registrations.
func (r *Registry) Len() int { return len(r.defs) }
