package query

import (
	"fmt"
	"reflect"

	"github.com/google/uuid"

	"github.com/chmenegatti/graphorm/expr"
	"github.com/chmenegatti/graphorm/metadata"
	"github.com/chmenegatti/graphorm/projection"
	"github.com/chmenegatti/graphorm/pkg/sqlast"
)

// columnValues maps the columns of one row to their driver values.
type columnValues map[*metadata.Column]any

// deref follows pointers. It returns the invalid Value for a nil pointer.
func deref(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// entityValues reads every column of an entity value.
func entityValues(e *metadata.EntitySchema, v reflect.Value) columnValues {
	out := make(columnValues)
	for _, f := range e.Fields {
		readField(f, v.FieldByIndex(f.StructIndex()), out)
	}
	return out
}

// keyValues reads the primary-key columns of an entity value.
func keyValues(e *metadata.EntitySchema, v reflect.Value) columnValues {
	out := make(columnValues)
	for _, f := range e.PrimaryKey {
		readField(f, v.FieldByIndex(f.StructIndex()), out)
	}
	return out
}

// readField stores the columns of field f holding value fv.
func readField(f metadata.Field, fv reflect.Value, out columnValues) {
	switch f := f.(type) {
	case *metadata.ValueField:
		out[f.Column] = expr.NormalizeValue(fv)
	case *metadata.SingleRelatedField:
		obj := deref(fv)
		if !obj.IsValid() {
			for _, fk := range f.ForeignKeys {
				out[fk.Column] = nil
			}
			return
		}
		keys := keyValues(f.Related, obj)
		for _, fk := range f.ForeignKeys {
			out[fk.Column] = keys[fk.Target]
		}
	case *metadata.ManyRelatedField:
	case *metadata.EmbeddedField:
		obj := deref(fv)
		if !obj.IsValid() {
			out[f.NullCheck] = false
			for _, col := range metadata.Columns(f)[1:] {
				out[col] = nil
			}
			return
		}
		out[f.NullCheck] = true
		for _, child := range f.Fields {
			readField(child, obj.FieldByIndex(child.StructIndex()), out)
		}
	default:
		panic(fmt.Sprintf("query: unknown field variant %T", f))
	}
}

// viewValues reads the columns a view value carries for its entity table. Paths through
// related entities only contribute the local foreign key.
func viewValues(m *projection.Model, v reflect.Value) (columnValues, error) {
	out := make(columnValues)
	if err := readView(m, v, out); err != nil {
		return nil, err
	}
	return out, nil
}

func readView(m *projection.Model, v reflect.Value, out columnValues) error {
	for _, b := range m.Bindings {
		fv := v.FieldByIndex(b.ViewIndex)
		if err := readBinding(b, fv, out); err != nil {
			return fmt.Errorf("%s.%s: %w", m.View.Name(), b.ViewField, err)
		}
	}
	return nil
}

func readBinding(b *projection.Binding, fv reflect.Value, out columnValues) error {
	// Embedded objects along the path are present when a child is written.
	var embedded []*metadata.EmbeddedField
	for _, f := range b.Path[:len(b.Path)-1] {
		switch f := f.(type) {
		case *metadata.EmbeddedField:
			embedded = append(embedded, f)
		case *metadata.SingleRelatedField:
			return readRelatedKey(f, b, fv, out)
		}
	}

	switch f := b.Field().(type) {
	case *metadata.ValueField:
		val, err := projection.Convert(fv, f.Type)
		if err != nil {
			return err
		}
		out[f.Column] = expr.NormalizeValue(val)
	case *metadata.EmbeddedField:
		obj := deref(fv)
		if !obj.IsValid() {
			out[f.NullCheck] = false
			return nil
		}
		out[f.NullCheck] = true
		if err := readView(b.Sub, obj, out); err != nil {
			return err
		}
	case *metadata.SingleRelatedField:
		obj := deref(fv)
		if !obj.IsValid() {
			for _, fk := range f.ForeignKeys {
				out[fk.Column] = nil
			}
			return nil
		}
		keys, err := viewValues(b.Sub, obj)
		if err != nil {
			return err
		}
		for _, fk := range f.ForeignKeys {
			val, ok := keys[fk.Target]
			if !ok {
				return fmt.Errorf("%w: %s is set but its view does not carry %s.%s",
					metadata.ErrNoPrimaryKey, f.Name, f.Related.Name, fk.Target.Name)
			}
			out[fk.Column] = val
		}
	case *metadata.ManyRelatedField:
		return nil
	default:
		panic(fmt.Sprintf("query: unknown field variant %T", f))
	}
	for _, e := range embedded {
		out[e.NullCheck] = true
	}
	return nil
}

// readRelatedKey handles a flattened path into a related entity ("AuthorId"). Only the
// related key maps to a local column.
func readRelatedKey(rel *metadata.SingleRelatedField, b *projection.Binding, fv reflect.Value, out columnValues) error {
	if len(b.Path) != 2 {
		return nil
	}
	target, ok := b.Path[1].(*metadata.ValueField)
	if !ok || !rel.Related.IsPrimaryKey(target) {
		return nil
	}
	for _, fk := range rel.ForeignKeys {
		if fk.Target != target.Column {
			continue
		}
		val, err := projection.Convert(fv, target.Type)
		if err != nil {
			return err
		}
		out[fk.Column] = expr.NormalizeValue(val)
	}
	return nil
}

// assignClientKeys fills zero client-generated keys of an entity value in place.
func assignClientKeys(e *metadata.EntitySchema, v reflect.Value) error {
	for _, f := range e.PrimaryKey {
		vf, ok := f.(*metadata.ValueField)
		if !ok || !vf.Column.ClientGenerated {
			continue
		}
		fv := v.FieldByIndex(vf.Index)
		if !fv.IsZero() {
			continue
		}
		id, err := projection.Convert(reflect.ValueOf(uuid.New()), fv.Type())
		if err != nil {
			return fmt.Errorf("%s.%s: %w", e.Name, vf.Name, err)
		}
		fv.Set(id)
	}
	return nil
}

// keyCondition matches any of the key rows: (c1 = ? AND c2 = ?) OR ...
func keyCondition(table string, cols []*metadata.Column, rows []columnValues) sqlast.Expr {
	var alts []sqlast.Expr
	for _, row := range rows {
		conds := make([]sqlast.Expr, len(cols))
		for i, c := range cols {
			conds[i] = sqlast.Eq(sqlast.Col(table, c.Name), sqlast.Lit(row[c]))
		}
		alts = append(alts, sqlast.And(conds...))
	}
	return sqlast.Or(alts...)
}

// remap renames the columns of key values, ex: from entity key columns to junction columns.
func remap(values columnValues, fks []metadata.ForeignKey) columnValues {
	out := make(columnValues, len(fks))
	for _, fk := range fks {
		out[fk.Column] = values[fk.Target]
	}
	return out
}

func fkColumns(fks []metadata.ForeignKey) []*metadata.Column {
	cols := make([]*metadata.Column, len(fks))
	for i, fk := range fks {
		cols[i] = fk.Column
	}
	return cols
}

// entityValue checks that v is a non-nil pointer to a struct of the entity type, or a
// struct of that type, and returns the struct.
func entityValue(e *metadata.EntitySchema, v any) (reflect.Value, bool) {
	rv := reflect.ValueOf(v)
	for rv.IsValid() && rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}, false
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() || rv.Type() != e.Type {
		return reflect.Value{}, false
	}
	return rv, true
}
