// metadata/metadata.go
package metadata

import (
	"fmt"
	"reflect"
)

// Column describes one table column.
type Column struct {
	Name            string
	Type            SQLType
	Nullable        bool
	PrimaryKey      bool
	AutoIncrement   bool // server-assigned sequence
	ClientGenerated bool // assigned by the application before insertion
	Unique          bool
	Default         string
	NullCheck       bool // presence marker of an embedded object
}

// Index is a (possibly composite) index declared through field options.
type Index struct {
	Name    string
	Columns []string
	Unique  bool
}

// TableKind tells entity tables from junction tables.
type TableKind int

const (
	EntityTable TableKind = iota + 1
	JunctionTable
)

// Table is a relational table derived from the entities.
type Table struct {
	Name       string
	Kind       TableKind
	Columns    []*Column
	PrimaryKey []string
	Indexes    []*Index
	// Relates holds the two entity types linked by a junction table.
	Relates [2]reflect.Type
}

// Column finds a column by name.
func (t *Table) Column(name string) *Column {
	for _, c := range t.Columns {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// EntitySchema is the immutable table/field graph of one entity type.
type EntitySchema struct {
	Type       reflect.Type
	Name       string
	Table      *Table
	Junctions  []*Table
	Fields     []Field
	PrimaryKey []Field
}

// Field finds a top-level field by name, exact match first, then case-insensitive.
func (e *EntitySchema) Field(name string) Field { return lookupField(e.Fields, name) }

// PrimaryKeyColumns returns the key columns in table order.
func (e *EntitySchema) PrimaryKeyColumns() []*Column {
	var cols []*Column
	for _, f := range e.PrimaryKey {
		cols = append(cols, Columns(f)...)
	}
	return cols
}

// HasPrimaryKey reports whether the entity has at least one key field.
func (e *EntitySchema) HasPrimaryKey() bool { return len(e.PrimaryKey) > 0 }

// ServerKey returns the auto-increment key column, or nil when keys are not server-assigned.
func (e *EntitySchema) ServerKey() *Column {
	for _, c := range e.PrimaryKeyColumns() {
		if c.AutoIncrement {
			return c
		}
	}
	return nil
}

// IsPrimaryKey reports whether f is one of the entity's key fields.
func (e *EntitySchema) IsPrimaryKey(f Field) bool {
	for _, pk := range e.PrimaryKey {
		if pk == f {
			return true
		}
	}
	return false
}

func (e *EntitySchema) String() string { return e.Name }

// Schema holds every entity built together. It is immutable once Build returns, except for
// the memo it owns.
type Schema struct {
	entities map[reflect.Type]*EntitySchema
	order    []*EntitySchema
	tables   []*Table
	memo     *memo
}

// Entity returns the schema of t (a struct type or a pointer to one).
func (s *Schema) Entity(t reflect.Type) (*EntitySchema, bool) {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	e, ok := s.entities[t]
	return e, ok
}

// EntityOf returns the schema of the value's type.
func (s *Schema) EntityOf(v any) (*EntitySchema, error) {
	t := reflect.TypeOf(v)
	if t == nil {
		return nil, fmt.Errorf("%w: <nil>", ErrUnknownEntity)
	}
	for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice {
		t = t.Elem()
	}
	e, ok := s.entities[t]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntity, t)
	}
	return e, nil
}

// Entities returns every entity schema in definition order.
func (s *Schema) Entities() []*EntitySchema {
	return append([]*EntitySchema(nil), s.order...)
}

// Tables returns entity tables in key-dependency order followed by junction tables.
func (s *Schema) Tables() []*Table {
	return append([]*Table(nil), s.tables...)
}

// Memo returns the cached value for key, computing it once. Concurrent first callers for
// the same key share one computation.
func (s *Schema) Memo(key string, compute func() (any, error)) (any, error) {
	return s.memo.get(key, compute)
}
