package query

import (
	"fmt"
	"reflect"

	"github.com/chmenegatti/graphorm/metadata"
	"github.com/chmenegatti/graphorm/pkg/sqlast"
)

// Insert builds the statements inserting entities, each a non-nil pointer to the same
// entity type. Zero client-generated keys are assigned in place.
//
// Without a server-assigned key every row goes into one multi-row INSERT followed by the
// junction rows of its collections. With one, each row is an (INSERT, SELECT last id) pair
// and the plan carries a write-back per pair, in emission order.
func Insert(s *metadata.Schema, entities ...any) (*Plan, error) {
	const op = "insert"
	if len(entities) == 0 {
		return nil, usage(op, "nothing to insert")
	}
	e, err := s.EntityOf(entities[0])
	if err != nil {
		return nil, usageErr(op, err)
	}
	rows := make([]reflect.Value, len(entities))
	for i, ent := range entities {
		rv := reflect.ValueOf(ent)
		if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Type() != e.Type {
			return nil, usage(op, "entity %d must be a non-nil *%s, got %T", i, e.Type.Name(), ent)
		}
		rows[i] = rv.Elem()
	}

	for _, row := range rows {
		if err := assignClientKeys(e, row); err != nil {
			return nil, usageErr(op, err)
		}
	}

	p := newPlan()
	if server := e.ServerKey(); server != nil {
		for _, row := range rows {
			insertServerKeyed(p, e, server, row)
		}
		return p, nil
	}

	ins := &sqlast.Insert{Table: e.Table.Name}
	for _, col := range e.Table.Columns {
		ins.Columns = append(ins.Columns, col.Name)
	}
	for _, row := range rows {
		ins.Rows = append(ins.Rows, valueRow(e.Table.Columns, entityValues(e, row)))
	}
	p.Statement.Append(ins)
	for _, stmt := range Links(e, rows...) {
		p.Statement.Append(stmt)
	}
	return p, nil
}

func insertServerKeyed(p *Plan, e *metadata.EntitySchema, server *metadata.Column, row reflect.Value) {
	values := entityValues(e, row)
	keyField := e.Field(serverKeyField(e, server))
	target := row.FieldByIndex(keyField.StructIndex())

	ins := &sqlast.Insert{Table: e.Table.Name}
	var cols []*metadata.Column
	for _, col := range e.Table.Columns {
		if col == server && target.IsZero() {
			continue
		}
		cols = append(cols, col)
		ins.Columns = append(ins.Columns, col.Name)
	}
	ins.Rows = [][]sqlast.Expr{valueRow(cols, values)}
	if len(cols) == 0 {
		ins.Rows = nil
	}
	p.Statement.Append(ins)

	if !target.IsZero() {
		for _, stmt := range Links(e, row) {
			p.Statement.Append(stmt)
		}
		return
	}
	p.Statement.Append(&sqlast.SelectLastInsertID{Table: e.Table.Name, Column: server.Name})
	p.Writebacks = append(p.Writebacks, Writeback{
		Index:  p.Len() - 1,
		Column: server,
		Target: target,
		Entity: row,
	})
}

func serverKeyField(e *metadata.EntitySchema, server *metadata.Column) string {
	for _, f := range e.PrimaryKey {
		if vf, ok := f.(*metadata.ValueField); ok && vf.Column == server {
			return vf.Name
		}
	}
	panic(fmt.Sprintf("query: %s: server key %s has no field", e.Name, server.Name))
}

func valueRow(cols []*metadata.Column, values columnValues) []sqlast.Expr {
	row := make([]sqlast.Expr, len(cols))
	for i, col := range cols {
		row[i] = literal(values[col])
	}
	return row
}

func literal(v any) sqlast.Expr {
	if v == nil {
		return sqlast.Null{}
	}
	return sqlast.Lit(v)
}

// Links builds the junction rows of every many-to-many collection of the given entity
// values, one multi-row INSERT per junction table. Elements with no key are skipped.
func Links(e *metadata.EntitySchema, rows ...reflect.Value) []sqlast.Stmt {
	var out []sqlast.Stmt
	for _, f := range e.Fields {
		many, ok := f.(*metadata.ManyRelatedField)
		if !ok {
			continue
		}
		ins := junctionInsert(many)
		for _, row := range rows {
			owner := remap(keyValues(e, row), many.Local)
			coll := deref(row.FieldByIndex(many.Index))
			if !coll.IsValid() {
				continue
			}
			for i := range coll.Len() {
				elem := deref(coll.Index(i))
				if !elem.IsValid() {
					continue
				}
				ins.Rows = append(ins.Rows, junctionRow(many, owner, keyValues(many.Related, elem)))
			}
		}
		if len(ins.Rows) > 0 {
			out = append(out, ins)
		}
	}
	return out
}

func junctionInsert(f *metadata.ManyRelatedField) *sqlast.Insert {
	ins := &sqlast.Insert{Table: f.Junction.Name}
	for _, col := range f.Junction.Columns {
		ins.Columns = append(ins.Columns, col.Name)
	}
	return ins
}

func junctionRow(f *metadata.ManyRelatedField, owner, relatedKeys columnValues) []sqlast.Expr {
	values := remap(relatedKeys, f.ForeignKeys)
	for col, v := range owner {
		values[col] = v
	}
	return valueRow(f.Junction.Columns, values)
}
