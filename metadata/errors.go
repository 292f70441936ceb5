package metadata

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidDefinition  = errors.New("invalid entity definition")
	ErrInvalidOption      = errors.New("invalid field option")
	ErrUnsupportedType    = errors.New("unsupported field type")
	ErrMissingLength      = errors.New("missing length")
	ErrUnresolvedRelation = errors.New("unresolvable relationship")
	ErrCyclicDependency   = errors.New("cyclic primary key dependency")
	ErrNoPrimaryKey       = errors.New("entity has no primary key")
	ErrDuplicateName      = errors.New("duplicate name")
	ErrUnknownEntity      = errors.New("type is not a defined entity")
)

// SchemaError is a schema-definition failure reported by Build. Field is empty for
// entity-level problems.
type SchemaError struct {
	Entity string
	Field  string
	Err    error
}

func (e *SchemaError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("schema %s: %v", e.Entity, e.Err)
	}
	return fmt.Sprintf("schema %s.%s: %v", e.Entity, e.Field, e.Err)
}

func (e *SchemaError) Unwrap() error { return e.Err }

// CyclicDependencyError names the chain of entities whose primary keys depend on each other.
type CyclicDependencyError struct {
	Chain []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("%v: %s", ErrCyclicDependency, strings.Join(e.Chain, " -> "))
}

func (e *CyclicDependencyError) Unwrap() error { return ErrCyclicDependency }
