package query

import (
	"fmt"

	"github.com/chmenegatti/graphorm/expr"
	"github.com/chmenegatti/graphorm/metadata"
	"github.com/chmenegatti/graphorm/projection"
	"github.com/chmenegatti/graphorm/pkg/sqlast"
)

// Slot places one result column or nested object into a view.
type Slot struct {
	Binding *projection.Binding
	// Column is the result column of a scalar binding, -1 otherwise.
	Column int
	// Marker is the result column telling whether a nested object is present: the
	// presence flag of an embedded object or the key of a related entity. -1 for none.
	Marker     int
	Children   []Slot
	Collection *Collection
}

// SelectPlan is a built select and the layout of its result rows.
type SelectPlan struct {
	Statement *sqlast.Select
	Model     *projection.Model
	Slots     []Slot
	// Keys are the result columns of the root key, present when collections are read.
	Keys        []int
	Collections []*Collection
}

// Collection reads one many-to-many field of the selected rows through its junction table.
type Collection struct {
	Binding *projection.Binding
	Field   *metadata.ManyRelatedField
	Slots   []Slot
	// Owner are the result columns of the owner key in the secondary select.
	Owner []int
	base  sqlast.Select
}

// Query builds the secondary select for the given owner keys, each in root key order.
func (c *Collection) Query(keys [][]any) *sqlast.Select {
	sel := c.base
	table := c.Field.Junction.Name
	if len(c.Field.Local) == 1 {
		set := make([]sqlast.Expr, len(keys))
		for i, k := range keys {
			set[i] = sqlast.Lit(k[0])
		}
		sel.Where = sqlast.In{Operand: sqlast.Col(table, c.Field.Local[0].Column.Name), Set: set}
		return &sel
	}
	rows := make([]columnValues, len(keys))
	for i, k := range keys {
		rows[i] = make(columnValues, len(k))
		for j, fk := range c.Field.Local {
			rows[i][fk.Column] = k[j]
		}
	}
	sel.Where = keyCondition(table, fkColumns(c.Field.Local), rows)
	return &sel
}

// Queries splits the secondary select so that none binds more than maxParams values. A
// maxParams of zero or less means no limit.
func (c *Collection) Queries(keys [][]any, maxParams int) []*sqlast.Select {
	per := len(c.Field.Local)
	if maxParams <= 0 || len(keys)*per <= maxParams {
		return []*sqlast.Select{c.Query(keys)}
	}
	size := max(maxParams/per, 1)
	out := make([]*sqlast.Select, 0, (len(keys)+size-1)/size)
	for start := 0; start < len(keys); start += size {
		out = append(out, c.Query(keys[start:min(start+size, len(keys))]))
	}
	return out
}

// Select builds a projected select over one entity.
type Select struct {
	entity   *metadata.EntitySchema
	model    *projection.Model
	where    []expr.Expr
	order    []expr.Order
	limit    int
	offset   int
	distinct bool
	bindings map[string]any
}

// NewSelect starts a select of the model's view.
func NewSelect(m *projection.Model) *Select {
	return &Select{entity: m.Entity, model: m}
}

// From starts a select without a view, for Scalar.
func From(e *metadata.EntitySchema) *Select { return &Select{entity: e} }

// Where adds a condition; conditions are joined with AND.
func (q *Select) Where(cond expr.Expr) *Select {
	if cond != nil {
		q.where = append(q.where, cond)
	}
	return q
}

func (q *Select) OrderBy(terms ...expr.Order) *Select {
	q.order = append(q.order, terms...)
	return q
}

func (q *Select) Limit(n int) *Select {
	q.limit = n
	return q
}

func (q *Select) Offset(n int) *Select {
	q.offset = n
	return q
}

func (q *Select) Distinct() *Select {
	q.distinct = true
	return q
}

// Bind binds a named Arg parameter.
func (q *Select) Bind(name string, v any) *Select {
	if q.bindings == nil {
		q.bindings = make(map[string]any)
	}
	q.bindings[name] = v
	return q
}

func (q *Select) compiler() *expr.Compiler {
	return expr.NewCompiler(q.entity, expr.Options{AllowJoins: true, Bindings: q.bindings})
}

func (q *Select) filter(c *expr.Compiler) (sqlast.Expr, error) {
	cond := expr.And(q.where...)
	if cond == nil {
		return nil, nil
	}
	return c.Expr(cond)
}

// Build compiles the select. Related entities of the view are read through one LEFT JOIN
// per field path, shared with the joins of the condition and ordering.
func (q *Select) Build() (*SelectPlan, error) {
	const op = "select"
	if q.model == nil {
		return nil, usage(op, "no view to select")
	}
	if q.limit < 0 || q.offset < 0 {
		return nil, usage(op, "negative limit or offset")
	}
	c := q.compiler()
	cs := newColumnSet()
	plan := &SelectPlan{Model: q.model}

	slots, err := layout(c, cs, q.model, "")
	if err != nil {
		return nil, usageErr(op, err)
	}
	plan.Slots = slots
	for _, s := range slots {
		if s.Collection != nil {
			plan.Collections = append(plan.Collections, s.Collection)
		}
	}
	if len(plan.Collections) > 0 {
		for _, col := range q.entity.PrimaryKeyColumns() {
			plan.Keys = append(plan.Keys, cs.add(c.RootAlias(), col))
		}
	}

	where, err := q.filter(c)
	if err != nil {
		return nil, usageErr(op, err)
	}
	order, err := c.Order(q.order)
	if err != nil {
		return nil, usageErr(op, err)
	}
	plan.Statement = &sqlast.Select{
		Distinct: q.distinct,
		Columns:  cs.cols,
		From:     sqlast.TableRef{Name: q.entity.Table.Name, Alias: c.RootAlias()},
		Joins:    c.JoinAST(),
		Where:    where,
		OrderBy:  order,
		Limit:    q.limit,
		Offset:   q.offset,
	}
	return plan, nil
}

// Scalar builds a select of one aggregate over the filtered rows, ex: Count(nil).
func (q *Select) Scalar(agg expr.Expr) (*sqlast.Select, error) {
	const op = "scalar"
	c := q.compiler()
	col, err := c.Expr(agg)
	if err != nil {
		return nil, usageErr(op, err)
	}
	where, err := q.filter(c)
	if err != nil {
		return nil, usageErr(op, err)
	}
	return &sqlast.Select{
		Columns: []sqlast.Expr{col},
		From:    sqlast.TableRef{Name: q.entity.Table.Name, Alias: c.RootAlias()},
		Joins:   c.JoinAST(),
		Where:   where,
	}, nil
}

// columnSet is a de-duplicated select list. Columns are aliased {relation}_{column}.
type columnSet struct {
	cols  []sqlast.Expr
	index map[string]int
}

func newColumnSet() *columnSet { return &columnSet{index: make(map[string]int)} }

func (cs *columnSet) add(alias string, col *metadata.Column) int {
	key := alias + "." + col.Name
	if i, ok := cs.index[key]; ok {
		return i
	}
	cs.index[key] = len(cs.cols)
	cs.cols = append(cs.cols, sqlast.Aliased{Expr: sqlast.Col(alias, col.Name), Alias: alias + "_" + col.Name})
	return len(cs.cols) - 1
}

// layout adds the columns of a model to cs and returns its slots. prefix is the dotted path
// of the model from the compiler root.
func layout(c *expr.Compiler, cs *columnSet, m *projection.Model, prefix string) ([]Slot, error) {
	slots := make([]Slot, 0, len(m.Bindings))
	for _, b := range m.Bindings {
		path := b.PathString()
		if prefix != "" {
			path = prefix + "." + path
		}
		slot := Slot{Binding: b, Column: -1, Marker: -1}
		switch f := b.Field().(type) {
		case *metadata.ValueField:
			t, err := c.Resolve(path)
			if err != nil {
				return nil, err
			}
			slot.Column = cs.add(t.Alias, t.Columns[0])
		case *metadata.EmbeddedField:
			t, err := c.Resolve(path)
			if err != nil {
				return nil, err
			}
			slot.Marker = cs.add(t.Alias, t.Columns[0])
			if slot.Children, err = layout(c, cs, b.Sub, path); err != nil {
				return nil, err
			}
		case *metadata.SingleRelatedField:
			alias, err := c.JoinPath(path)
			if err != nil {
				return nil, err
			}
			slot.Marker = cs.add(alias, f.Related.PrimaryKeyColumns()[0])
			if slot.Children, err = layout(c, cs, b.Sub, path); err != nil {
				return nil, err
			}
		case *metadata.ManyRelatedField:
			coll, err := collectionSelect(f, b)
			if err != nil {
				return nil, err
			}
			slot.Collection = coll
		default:
			panic(fmt.Sprintf("query: unknown field variant %T", f))
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// collectionSelect prepares the junction select of a many-to-many binding:
// junction INNER JOIN related, ordered by owner key then related key.
func collectionSelect(f *metadata.ManyRelatedField, b *projection.Binding) (*Collection, error) {
	junction := f.Junction.Name
	c := expr.NewCompiler(f.Related, expr.Options{AllowJoins: true})
	related := c.RootAlias()
	cs := newColumnSet()

	coll := &Collection{Binding: b, Field: f}
	var order []sqlast.OrderTerm
	for _, fk := range f.Local {
		coll.Owner = append(coll.Owner, cs.add(junction, fk.Column))
		order = append(order, sqlast.OrderTerm{Expr: sqlast.Col(junction, fk.Column.Name)})
	}
	slots, err := layout(c, cs, b.Sub, "")
	if err != nil {
		return nil, err
	}
	coll.Slots = slots

	on := make([]sqlast.Expr, len(f.ForeignKeys))
	for i, fk := range f.ForeignKeys {
		on[i] = sqlast.Eq(sqlast.Col(related, fk.Target.Name), sqlast.Col(junction, fk.Column.Name))
		order = append(order, sqlast.OrderTerm{Expr: sqlast.Col(junction, fk.Column.Name)})
	}
	joins := append([]sqlast.Join{{
		Kind:  sqlast.InnerJoin,
		Table: sqlast.TableRef{Name: f.Related.Table.Name, Alias: related},
		On:    sqlast.And(on...),
	}}, c.JoinAST()...)

	coll.base = sqlast.Select{
		Columns: cs.cols,
		From:    sqlast.TableRef{Name: junction},
		Joins:   joins,
		OrderBy: order,
	}
	return coll, nil
}
