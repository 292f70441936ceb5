package metadata

import (
	"fmt"
	"reflect"
)

// Field is one node of an entity's field graph. The set of variants is closed:
// *ValueField, *SingleRelatedField, *ManyRelatedField and *EmbeddedField.
type Field interface {
	FieldName() string
	GoType() reflect.Type
	// StructIndex is the index path relative to the struct that declares the field.
	StructIndex() []int
	sealed()
}

// ValueField maps a scalar Go field to one column.
type ValueField struct {
	Name   string
	Type   reflect.Type
	Index  []int
	Column *Column
}

// ForeignKey pairs a local column with the column it references.
type ForeignKey struct {
	Column *Column
	Target *Column
}

// SingleRelatedField is a many-to-one reference to another entity, stored as local
// foreign-key column(s).
type SingleRelatedField struct {
	Name        string
	Type        reflect.Type
	Index       []int
	Related     *EntitySchema
	ForeignKeys []ForeignKey
}

// ManyRelatedField is a many-to-many collection stored in a junction table.
type ManyRelatedField struct {
	Name        string
	Type        reflect.Type
	Elem        reflect.Type // element type as declared (T or *T)
	Index       []int
	Related     *EntitySchema
	Junction    *Table
	Local       []ForeignKey // junction columns referencing the owner
	ForeignKeys []ForeignKey // junction columns referencing Related
}

// EmbeddedField flattens a value object into prefixed columns of the owner table plus a
// boolean presence marker.
type EmbeddedField struct {
	Name      string
	Type      reflect.Type
	Index     []int
	Prefix    string
	NullCheck *Column
	Fields    []Field
}

func (f *ValueField) FieldName() string         { return f.Name }
func (f *SingleRelatedField) FieldName() string { return f.Name }
func (f *ManyRelatedField) FieldName() string   { return f.Name }
func (f *EmbeddedField) FieldName() string      { return f.Name }

func (f *ValueField) GoType() reflect.Type         { return f.Type }
func (f *SingleRelatedField) GoType() reflect.Type { return f.Type }
func (f *ManyRelatedField) GoType() reflect.Type   { return f.Type }
func (f *EmbeddedField) GoType() reflect.Type      { return f.Type }

func (f *ValueField) StructIndex() []int         { return f.Index }
func (f *SingleRelatedField) StructIndex() []int { return f.Index }
func (f *ManyRelatedField) StructIndex() []int   { return f.Index }
func (f *EmbeddedField) StructIndex() []int      { return f.Index }

func (*ValueField) sealed()         {}
func (*SingleRelatedField) sealed() {}
func (*ManyRelatedField) sealed()   {}
func (*EmbeddedField) sealed()      {}

// IsPointer reports whether the related/embedded object is held by pointer.
func (f *SingleRelatedField) IsPointer() bool { return f.Type.Kind() == reflect.Pointer }

// IsPointer reports whether the embedded object is held by pointer.
func (f *EmbeddedField) IsPointer() bool { return f.Type.Kind() == reflect.Pointer }

// ElemIsPointer reports whether collection elements are pointers.
func (f *ManyRelatedField) ElemIsPointer() bool { return f.Elem.Kind() == reflect.Pointer }

// Lookup finds a field by name, exact match first, then case-insensitive.
func (f *EmbeddedField) Lookup(name string) Field { return lookupField(f.Fields, name) }

// Match dispatches on the variant of f. Every consumer of the field graph goes through
// Match or a type switch that panics on an unknown variant.
func Match[R any](f Field,
	value func(*ValueField) R,
	single func(*SingleRelatedField) R,
	many func(*ManyRelatedField) R,
	embedded func(*EmbeddedField) R,
) R {
	switch f := f.(type) {
	case *ValueField:
		return value(f)
	case *SingleRelatedField:
		return single(f)
	case *ManyRelatedField:
		return many(f)
	case *EmbeddedField:
		return embedded(f)
	default:
		panic(fmt.Sprintf("metadata: unknown field variant %T", f))
	}
}

// Columns returns the columns a field contributes to its owner's table, in order.
func Columns(f Field) []*Column {
	return Match(f,
		func(v *ValueField) []*Column { return []*Column{v.Column} },
		func(s *SingleRelatedField) []*Column {
			cols := make([]*Column, len(s.ForeignKeys))
			for i, fk := range s.ForeignKeys {
				cols[i] = fk.Column
			}
			return cols
		},
		func(*ManyRelatedField) []*Column { return nil },
		func(e *EmbeddedField) []*Column {
			cols := []*Column{e.NullCheck}
			for _, child := range e.Fields {
				cols = append(cols, Columns(child)...)
			}
			return cols
		},
	)
}

func lookupField(fields []Field, name string) Field {
	for _, f := range fields {
		if f.FieldName() == name {
			return f
		}
	}
	for _, f := range fields {
		if equalFold(f.FieldName(), name) {
			return f
		}
	}
	return nil
}
