package changeset

import (
	"fmt"
	"sort"
)

// Registry looks up operations by name.
//
// It is built once at start and is read only after that.
type Registry struct {
	ops map[string]Operation
}

// NewRegistry builds a registry.
//
// It panics when operations share a name.
func NewRegistry(ops ...Operation) *Registry {
	r := &Registry{ops: map[string]Operation{}}
	for _, op := range ops {
		name := op.Name()
		if _, ok := r.ops[name]; ok {
			panic(fmt.Sprintf("operation %s is registered twice", name))
		}
		r.ops[name] = op
	}
	return r
}

// DefaultRegistry has modifyAttribute, restoreAttribute and restoreNode.
func DefaultRegistry() *Registry {
	return NewRegistry(ModifyAttribute(), RestoreAttribute(), RestoreNode())
}

// Lookup finds the operation.
//
// # Returns
//
// - Operation
//
// - error:
// ErrMissingOperation if name is empty.
// *OperationNotFoundError if no operations have the name.
func (r *Registry) Lookup(name string) (Operation, error) {
	if name == "" {
		return nil, ErrMissingOperation
	}
	op, ok := r.ops[name]
	if !ok {
		return nil, &OperationNotFoundError{Name: name}
	}
	return op, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.ops))
	for n := range r.ops {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
