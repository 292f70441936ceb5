package graphorm

import (
	"context"
	"fmt"
	"reflect"

	"github.com/chmenegatti/graphorm/expr"
	"github.com/chmenegatti/graphorm/materialize"
	"github.com/chmenegatti/graphorm/metadata"
	"github.com/chmenegatti/graphorm/pkg/hooks"
	"github.com/chmenegatti/graphorm/pkg/sqlast"
	"github.com/chmenegatti/graphorm/projection"
	"github.com/chmenegatti/graphorm/query"
)

func entityFor[E any](s *session) (*metadata.EntitySchema, error) {
	t := reflect.TypeFor[E]()
	e, ok := s.schema.Entity(t)
	if !ok {
		return nil, fmt.Errorf("%w: %s", metadata.ErrUnknownEntity, t)
	}
	return e, nil
}

func toAny[T any](values []T) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

// Insert inserts entities. Zero client-generated keys are assigned before the INSERT and
// server-generated keys are stored back into the entities once it ran. Many-to-many
// collections are linked through their junction tables.
func Insert[E any](ctx context.Context, q Querier, entities ...*E) (Result, error) {
	s := q.state()
	e, err := entityFor[E](s)
	if err != nil {
		return Result{}, err
	}
	values := toAny(entities)
	if err := hooks.BeforeInsert(ctx, s.owner, values...); err != nil {
		return Result{}, err
	}
	plan, err := query.Insert(s.schema, values...)
	if err != nil {
		return Result{}, err
	}
	res, err := s.write(ctx, plan, e, e.Table.Name)
	if err != nil {
		return res, fmt.Errorf("insert %s: %w", e.Name, err)
	}
	return res, hooks.AfterInsert(ctx, s.owner, values...)
}

// Update writes values, each an E or a view of E, by primary key. Every column the view
// does not carry is set to NULL.
func Update[E any](ctx context.Context, q Querier, values ...any) (Result, error) {
	s := q.state()
	e, err := entityFor[E](s)
	if err != nil {
		return Result{}, err
	}
	if err := hooks.BeforeUpdate(ctx, s.owner, values...); err != nil {
		return Result{}, err
	}
	plan, err := query.Update(s.schema, e.Type, values...)
	if err != nil {
		return Result{}, err
	}
	res, err := s.write(ctx, plan, e, e.Table.Name)
	if err != nil {
		return res, fmt.Errorf("update %s: %w", e.Name, err)
	}
	return res, hooks.AfterUpdate(ctx, s.owner, values...)
}

// UpdateWhere sets columns of every E matching cond. A nil cond matches every row.
func UpdateWhere[E any](ctx context.Context, q Querier, set []query.Assignment, cond expr.Expr, bindings map[string]any) (Result, error) {
	s := q.state()
	e, err := entityFor[E](s)
	if err != nil {
		return Result{}, err
	}
	plan, err := query.UpdateWhere(e, set, cond, bindings)
	if err != nil {
		return Result{}, err
	}
	res, err := s.write(ctx, plan, e, e.Table.Name)
	if err != nil {
		return res, fmt.Errorf("update %s: %w", e.Name, err)
	}
	return res, nil
}

// Delete deletes values, each an E or a view of E carrying its key, together with the
// junction rows referencing them.
func Delete[E any](ctx context.Context, q Querier, values ...any) (Result, error) {
	s := q.state()
	e, err := entityFor[E](s)
	if err != nil {
		return Result{}, err
	}
	if err := hooks.BeforeDelete(ctx, s.owner, values...); err != nil {
		return Result{}, err
	}
	plan, err := query.Delete(s.schema, e.Type, values...)
	if err != nil {
		return Result{}, err
	}
	res, err := s.write(ctx, plan, e, e.Table.Name)
	if err != nil {
		return res, fmt.Errorf("delete %s: %w", e.Name, err)
	}
	return res, hooks.AfterDelete(ctx, s.owner, values...)
}

// DeleteWhere deletes every E matching cond. A nil cond deletes every row.
func DeleteWhere[E any](ctx context.Context, q Querier, cond expr.Expr, bindings map[string]any) (Result, error) {
	s := q.state()
	e, err := entityFor[E](s)
	if err != nil {
		return Result{}, err
	}
	plan, err := query.DeleteWhere(e, cond, bindings)
	if err != nil {
		return Result{}, err
	}
	res, err := s.write(ctx, plan, e, e.Table.Name)
	if err != nil {
		return res, fmt.Errorf("delete %s: %w", e.Name, err)
	}
	return res, nil
}

// Link adds related entities to the many-to-many field of owner.
func Link[E any](ctx context.Context, q Querier, owner *E, field string, related ...any) (Result, error) {
	return link(ctx, q, owner, field, related, query.Link)
}

// Unlink removes related entities from the many-to-many field of owner, or every related
// entity when none is given.
func Unlink[E any](ctx context.Context, q Querier, owner *E, field string, related ...any) (Result, error) {
	return link(ctx, q, owner, field, related, query.Unlink)
}

type linkBuilder func(s *metadata.Schema, owner any, field string, related ...any) (*query.Plan, error)

func link[E any](ctx context.Context, q Querier, owner *E, field string, related []any, build linkBuilder) (Result, error) {
	s := q.state()
	e, err := entityFor[E](s)
	if err != nil {
		return Result{}, err
	}
	plan, err := build(s.schema, owner, field, related...)
	if err != nil {
		return Result{}, err
	}
	table := e.Table.Name
	if many, ok := e.Field(field).(*metadata.ManyRelatedField); ok {
		table = many.Junction.Name
	}
	res, err := s.write(ctx, plan, e, table)
	if err != nil {
		return res, fmt.Errorf("%s.%s: %w", e.Name, field, err)
	}
	return res, nil
}

// Select reads every E matching opts as V. Related entities V carries are read through
// joins; many-to-many collections through one secondary select each. AfterFind hooks run
// on every view once its collections are attached.
func Select[E, V any](ctx context.Context, q Querier, opts ...FindOption) ([]V, error) {
	s := q.state()
	m, err := projection.For[E, V](s.schema)
	if err != nil {
		return nil, err
	}
	plan, err := applyOptions(query.NewSelect(m), opts).Build()
	if err != nil {
		return nil, err
	}

	var res *materialize.Result
	err = s.scope(ctx, func(p Provider) error {
		var err error
		res, err = read(ctx, p, plan)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("select %s as %s: %w", m.Entity.Name, m.View.Name(), err)
	}

	ptrs := make([]any, len(res.Views))
	for i, v := range res.Views {
		ptrs[i] = v.Interface()
	}
	if err := hooks.AfterFind(ctx, s.owner, ptrs...); err != nil {
		return nil, err
	}
	out := make([]V, len(res.Views))
	for i, v := range res.Views {
		out[i] = v.Elem().Interface().(V)
	}
	return out, nil
}

// read runs the primary select, then the secondary select of each collection. Rows are
// closed before the next statement runs, as some engines hold a single connection.
func read(ctx context.Context, p Provider, plan *query.SelectPlan) (*materialize.Result, error) {
	rows, err := p.Query(ctx, plan.Statement)
	if err != nil {
		return nil, err
	}
	res, err := materialize.Scan(rows, plan)
	rows.Close()
	if err != nil {
		return nil, err
	}
	if len(res.Views) == 0 {
		return res, nil
	}

	for _, coll := range plan.Collections {
		groups := make(materialize.Groups)
		for _, stmt := range coll.Queries(res.Keys, p.Dialect().MaxParams()) {
			if err := readCollection(ctx, p, coll, stmt, groups); err != nil {
				return nil, fmt.Errorf("collection %s: %w", coll.Binding.ViewField, err)
			}
		}
		materialize.Attach(res, coll, groups)
	}
	return res, nil
}

func readCollection(ctx context.Context, p Provider, coll *query.Collection, stmt *sqlast.Select, into materialize.Groups) error {
	rows, err := p.Query(ctx, stmt)
	if err != nil {
		return err
	}
	groups, err := materialize.ScanCollection(rows, coll)
	rows.Close()
	if err != nil {
		return err
	}
	for owner, elems := range groups {
		into[owner] = append(into[owner], elems...)
	}
	return nil
}

// First reads the first E matching opts as V, or ErrNotFound.
func First[E, V any](ctx context.Context, q Querier, opts ...FindOption) (V, error) {
	var zero V
	opts = append(opts[:len(opts):len(opts)], Limit(1))
	views, err := Select[E, V](ctx, q, opts...)
	if err != nil {
		return zero, err
	}
	if len(views) == 0 {
		return zero, ErrNotFound
	}
	return views[0], nil
}

// Scalar computes an aggregate over the E matching opts, ex: expr.Max(expr.Col("Views")).
// NULL, as returned by MIN or MAX over no rows, yields the zero T.
func Scalar[E, T any](ctx context.Context, q Querier, agg expr.Expr, opts ...FindOption) (T, error) {
	var zero T
	s := q.state()
	e, err := entityFor[E](s)
	if err != nil {
		return zero, err
	}
	stmt, err := applyOptions(query.From(e), opts).Scalar(agg)
	if err != nil {
		return zero, err
	}

	var raw any
	err = s.scope(ctx, func(p Provider) error {
		var err error
		raw, err = queryValue(ctx, p, stmt)
		return err
	})
	if err != nil {
		return zero, fmt.Errorf("scalar %s: %w", e.Name, err)
	}
	v, err := materialize.Read(raw, reflect.TypeFor[T]())
	if err != nil {
		return zero, fmt.Errorf("scalar %s: %w", e.Name, err)
	}
	out, _ := v.Interface().(T)
	return out, nil
}

// Count counts the E matching opts.
func Count[E any](ctx context.Context, q Querier, opts ...FindOption) (int64, error) {
	return Scalar[E, int64](ctx, q, expr.Count(nil), opts...)
}
