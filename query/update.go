package query

import (
	"reflect"

	"github.com/chmenegatti/graphorm/expr"
	"github.com/chmenegatti/graphorm/metadata"
	"github.com/chmenegatti/graphorm/projection"
	"github.com/chmenegatti/graphorm/pkg/sqlast"
)

// Update builds one UPDATE per value. Values are entities or views of the entity type and
// must carry the primary key. Every non-key column is written: columns the view does not
// carry become NULL, and absent embedded objects clear their presence marker.
func Update(s *metadata.Schema, entity reflect.Type, values ...any) (*Plan, error) {
	const op = "update"
	if len(values) == 0 {
		return nil, usage(op, "nothing to update")
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

	e := m.Entity
	p := newPlan()
	for i, v := range values {
		rv := deref(reflect.ValueOf(v))
		if !rv.IsValid() || rv.Type() != view {
			return nil, usage(op, "value %d must be a %s, got %T", i, view, v)
		}
		cols, err := viewValues(m, rv)
		if err != nil {
			return nil, usageErr(op, err)
		}
		upd := &sqlast.Update{Table: e.Table.Name}
		for _, col := range e.Table.Columns {
			if col.PrimaryKey {
				continue
			}
			val, ok := cols[col]
			switch {
			case ok:
			case col.NullCheck:
				val = false
			default:
				val = nil
			}
			upd.Set = append(upd.Set, sqlast.Assignment{Column: col.Name, Value: literal(val)})
		}
		if len(upd.Set) == 0 {
			continue
		}
		upd.Where = keyCondition(e.Table.Name, e.PrimaryKeyColumns(), []columnValues{cols})
		p.Statement.Append(upd)
	}
	return p, nil
}

// Assignment is one SET term of UpdateWhere.
type Assignment struct {
	Path  string
	Value any // a literal or an expression over the entity
}

// Set builds an assignment.
func Set(path string, value any) Assignment { return Assignment{Path: path, Value: value} }

// UpdateWhere builds a single UPDATE of the rows matching cond. Neither the assignments
// nor the condition may reach related entities.
func UpdateWhere(e *metadata.EntitySchema, set []Assignment, cond expr.Expr, bindings map[string]any) (*Plan, error) {
	const op = "update where"
	if len(set) == 0 {
		return nil, usage(op, "no assignments")
	}
	c := expr.NewCompiler(e, expr.Options{Bindings: bindings})
	upd := &sqlast.Update{Table: e.Table.Name}
	for _, a := range set {
		t, err := c.Resolve(a.Path)
		if err != nil {
			return nil, usageErr(op, err)
		}
		if len(t.Columns) != 1 {
			return nil, usage(op, "%q maps to %d columns", a.Path, len(t.Columns))
		}
		val, err := c.Expr(expr.Val(a.Value))
		if err != nil {
			return nil, usageErr(op, err)
		}
		upd.Set = append(upd.Set, sqlast.Assignment{Column: t.Columns[0].Name, Value: val})
	}
	if cond != nil {
		where, err := c.Expr(cond)
		if err != nil {
			return nil, usageErr(op, err)
		}
		upd.Where = where
	}
	p := newPlan()
	p.Statement.Append(upd)
	return p, nil
}
