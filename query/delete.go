package query

import (
	"fmt"
	"reflect"

	"github.com/chmenegatti/graphorm/expr"
	"github.com/chmenegatti/graphorm/metadata"
	"github.com/chmenegatti/graphorm/projection"
	"github.com/chmenegatti/graphorm/pkg/sqlast"
)

// Delete builds the statements deleting entities by primary key. Values are entities or
// views carrying the key. Junction rows referencing the entities are deleted first.
func Delete(s *metadata.Schema, entity reflect.Type, values ...any) (*Plan, error) {
	const op = "delete"
	e, ok := s.Entity(entity)
	if !ok {
		return nil, usageErr(op, metadata.ErrUnknownEntity)
	}
	if !e.HasPrimaryKey() {
		return nil, usageErr(op, fmt.Errorf("%w: %s", metadata.ErrNoPrimaryKey, e.Name))
	}
	if len(values) == 0 {
		return nil, usage(op, "nothing to delete")
	}
	view := reflect.TypeOf(values[0])
	if view == nil {
		return nil, usage(op, "nil value")
	}
	for view.Kind() == reflect.Pointer {
		view = view.Elem()
	}
	m, err := projection.Project(s, entity, view)
	if err != nil {
		return nil, usageErr(op, err)
	}
	if err := m.RequirePrimaryKey(); err != nil {
		return nil, usageErr(op, err)
	}

	keys := make([]columnValues, len(values))
	for i, v := range values {
		rv := deref(reflect.ValueOf(v))
		if !rv.IsValid() || rv.Type() != view {
			return nil, usage(op, "value %d must be a %s, got %T", i, view, v)
		}
		if keys[i], err = viewValues(m, rv); err != nil {
			return nil, usageErr(op, err)
		}
	}

	p := newPlan()
	for _, j := range junctionsOf(s, e) {
		rows := make([]columnValues, len(keys))
		for i, k := range keys {
			rows[i] = remap(k, j.fks)
		}
		p.Statement.Append(&sqlast.Delete{
			Table: j.table.Name,
			Where: keyCondition(j.table.Name, fkColumns(j.fks), rows),
		})
	}
	p.Statement.Append(&sqlast.Delete{
		Table: e.Table.Name,
		Where: keyCondition(e.Table.Name, e.PrimaryKeyColumns(), keys),
	})
	return p, nil
}

// DeleteWhere builds a single DELETE of the rows matching cond, which may not reach
// related entities. A nil cond deletes every row.
func DeleteWhere(e *metadata.EntitySchema, cond expr.Expr, bindings map[string]any) (*Plan, error) {
	del := &sqlast.Delete{Table: e.Table.Name}
	if cond != nil {
		where, _, err := expr.Compile(cond, e, expr.Options{Bindings: bindings})
		if err != nil {
			return nil, usageErr("delete where", err)
		}
		del.Where = where
	}
	p := newPlan()
	p.Statement.Append(del)
	return p, nil
}

// junctionRef is a junction table and the columns in it that reference one entity.
type junctionRef struct {
	table *metadata.Table
	fks   []metadata.ForeignKey
}

// junctionsOf lists every junction table referencing e, as owner or as related side.
func junctionsOf(s *metadata.Schema, e *metadata.EntitySchema) []junctionRef {
	var out []junctionRef
	for _, owner := range s.Entities() {
		for _, f := range owner.Fields {
			many, ok := f.(*metadata.ManyRelatedField)
			if !ok {
				continue
			}
			if owner == e {
				out = append(out, junctionRef{table: many.Junction, fks: many.Local})
			}
			if many.Related == e {
				out = append(out, junctionRef{table: many.Junction, fks: many.ForeignKeys})
			}
		}
	}
	return out
}
