package expr

import (
	"fmt"
	"strings"

	"github.com/chmenegatti/graphorm/metadata"
	"github.com/chmenegatti/graphorm/pkg/sqlast"
)

// Options control compilation.
type Options struct {
	// AllowJoins permits paths through related entities. Update and delete by condition
	// compile without joins.
	AllowJoins bool
	// Bindings resolves Arg parameters.
	Bindings map[string]any
	// RootAlias qualifies root columns. It defaults to the root table name.
	RootAlias string
}

// Join is a LEFT JOIN needed by a compiled path. Joins are de-duplicated by Alias, which
// is the field path joined with "_" (ex: "Author", "Author_Address_Country").
type Join struct {
	Alias  string
	Parent string // alias of the table holding the foreign keys
	Field  *metadata.SingleRelatedField
}

// Table is the joined table name.
func (j Join) Table() string { return j.Field.Related.Table.Name }

// AST renders the join clause.
func (j Join) AST() sqlast.Join {
	conds := make([]sqlast.Expr, len(j.Field.ForeignKeys))
	for i, fk := range j.Field.ForeignKeys {
		conds[i] = sqlast.Eq(sqlast.Col(j.Alias, fk.Target.Name), sqlast.Col(j.Parent, fk.Column.Name))
	}
	return sqlast.Join{
		Kind:  sqlast.LeftJoin,
		Table: sqlast.TableRef{Name: j.Table(), Alias: j.Alias},
		On:    sqlast.And(conds...),
	}
}

// Target is a resolved field path: the field, the alias of the table that stores its
// columns, and those columns.
type Target struct {
	Alias   string
	Field   metadata.Field
	Columns []*metadata.Column
}

// Compiler compiles expressions against one root entity and accumulates the joins they
// need. A Compiler is not safe for concurrent use.
type Compiler struct {
	root  *metadata.EntitySchema
	opts  Options
	joins []Join
	index map[string]int
}

// NewCompiler returns a compiler rooted at the entity.
func NewCompiler(root *metadata.EntitySchema, opts Options) *Compiler {
	if opts.RootAlias == "" {
		opts.RootAlias = root.Table.Name
	}
	return &Compiler{root: root, opts: opts, index: make(map[string]int)}
}

// Compile compiles e and returns the joins it needs, in first-use order.
func Compile(e Expr, root *metadata.EntitySchema, opts Options) (sqlast.Expr, []Join, error) {
	c := NewCompiler(root, opts)
	out, err := c.Expr(e)
	if err != nil {
		return nil, nil, err
	}
	return out, c.Joins(), nil
}

// RootAlias is the alias qualifying root columns.
func (c *Compiler) RootAlias() string { return c.opts.RootAlias }

// Joins returns the joins accumulated so far.
func (c *Compiler) Joins() []Join { return append([]Join(nil), c.joins...) }

// JoinAST returns the accumulated joins as clauses.
func (c *Compiler) JoinAST() []sqlast.Join {
	out := make([]sqlast.Join, len(c.joins))
	for i, j := range c.joins {
		out[i] = j.AST()
	}
	return out
}

// Resolve resolves a dotted field path, adding the joins it traverses.
//
// A value field resolves to its column; an embedded object to its presence marker; a
// related entity to its foreign-key columns. "Rel.<key>" resolves to the local foreign
// key without a join.
func (c *Compiler) Resolve(path string) (Target, error) {
	segs := strings.Split(path, ".")
	alias := c.opts.RootAlias
	lookup := c.root.Field
	owner := c.root.Name
	for i, seg := range segs {
		f := lookup(seg)
		if f == nil {
			return Target{}, fmt.Errorf("%w: %q has no field %q (in %q)", ErrUnknownPath, owner, seg, path)
		}
		last := i == len(segs)-1
		switch f := f.(type) {
		case *metadata.ValueField:
			if !last {
				return Target{}, fmt.Errorf("%w: %q is a scalar and cannot be traversed (in %q)", ErrUnknownPath, seg, path)
			}
			return Target{Alias: alias, Field: f, Columns: []*metadata.Column{f.Column}}, nil
		case *metadata.EmbeddedField:
			if last {
				return Target{Alias: alias, Field: f, Columns: []*metadata.Column{f.NullCheck}}, nil
			}
			lookup = f.Lookup
			owner = f.Name
		case *metadata.SingleRelatedField:
			if last {
				return Target{Alias: alias, Field: f, Columns: fkColumns(f)}, nil
			}
			if i == len(segs)-2 {
				if col := localKey(f, segs[i+1]); col != nil {
					return Target{Alias: alias, Field: f.Related.Field(segs[i+1]), Columns: []*metadata.Column{col}}, nil
				}
			}
			joined, err := c.join(alias, strings.Join(segs[:i+1], "_"), f)
			if err != nil {
				return Target{}, err
			}
			alias = joined
			lookup = f.Related.Field
			owner = f.Related.Name
		case *metadata.ManyRelatedField:
			return Target{}, fmt.Errorf("%w: %q (in %q)", ErrCollectionPath, seg, path)
		default:
			panic(fmt.Sprintf("expr: unknown field variant %T", f))
		}
	}
	return Target{}, fmt.Errorf("%w: empty path", ErrUnknownPath)
}

// JoinPath ensures the joins for a path ending on a related entity and returns the alias
// of that entity's table.
func (c *Compiler) JoinPath(path string) (string, error) {
	t, err := c.Resolve(path)
	if err != nil {
		return "", err
	}
	rel, ok := t.Field.(*metadata.SingleRelatedField)
	if !ok {
		return "", fmt.Errorf("%w: %q is not a related entity", ErrUnknownPath, path)
	}
	return c.join(t.Alias, strings.ReplaceAll(path, ".", "_"), rel)
}

func (c *Compiler) join(parent, alias string, f *metadata.SingleRelatedField) (string, error) {
	if _, ok := c.index[alias]; ok {
		return alias, nil
	}
	if !c.opts.AllowJoins {
		return "", fmt.Errorf("%w: path through %q", ErrJoinRequired, f.Name)
	}
	c.index[alias] = len(c.joins)
	c.joins = append(c.joins, Join{Alias: alias, Parent: parent, Field: f})
	return alias, nil
}

func fkColumns(f *metadata.SingleRelatedField) []*metadata.Column {
	cols := make([]*metadata.Column, len(f.ForeignKeys))
	for i, fk := range f.ForeignKeys {
		cols[i] = fk.Column
	}
	return cols
}

// localKey returns the local foreign-key column mirroring the related key field name.
func localKey(f *metadata.SingleRelatedField, name string) *metadata.Column {
	target, ok := f.Related.Field(name).(*metadata.ValueField)
	if !ok || !f.Related.IsPrimaryKey(target) {
		return nil
	}
	for _, fk := range f.ForeignKeys {
		if fk.Target == target.Column {
			return fk.Column
		}
	}
	return nil
}

// Expr compiles one expression.
func (c *Compiler) Expr(e Expr) (sqlast.Expr, error) {
	switch e := e.(type) {
	case nil:
		return nil, unsupported(nil, "nil expression")
	case column:
		return c.column(e)
	case value:
		return sqlast.Lit(Normalize(e.v)), nil
	case param:
		v, ok := c.opts.Bindings[e.name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnboundParameter, e.name)
		}
		return sqlast.Lit(Normalize(v)), nil
	case binary:
		return c.binary(e)
	case not:
		if e.x == nil {
			return nil, unsupported(e, "nil operand")
		}
		x, err := c.Expr(e.x)
		if err != nil {
			return nil, err
		}
		return sqlast.Unary{Op: sqlast.OpNot, Operand: x}, nil
	case nullTest:
		return c.nullTest(e, e.x, e.negate)
	case inSet:
		if e.x == nil {
			return nil, unsupported(e, "nil operand")
		}
		x, err := c.Expr(e.x)
		if err != nil {
			return nil, err
		}
		set := make([]sqlast.Expr, len(e.set))
		for i, item := range e.set {
			if set[i], err = c.Expr(item); err != nil {
				return nil, err
			}
		}
		return sqlast.In{Operand: x, Set: set}, nil
	case flag:
		if e.x == nil || e.flag == nil {
			return nil, unsupported(e, "nil operand")
		}
		x, err := c.Expr(e.x)
		if err != nil {
			return nil, err
		}
		mask, err := c.Expr(e.flag)
		if err != nil {
			return nil, err
		}
		return sqlast.Eq(sqlast.Binary{Op: sqlast.OpBitAnd, Left: x, Right: mask}, mask), nil
	case aggregate:
		if e.x == nil {
			if e.fn != sqlast.FuncCount {
				return nil, unsupported(e, "only Count accepts a nil operand")
			}
			return sqlast.Func{Name: sqlast.FuncCount, Args: []sqlast.Expr{sqlast.Star{}}}, nil
		}
		x, err := c.Expr(e.x)
		if err != nil {
			return nil, err
		}
		return sqlast.Func{Name: e.fn, Args: []sqlast.Expr{x}}, nil
	case aliased:
		if e.x == nil {
			return nil, unsupported(e, "nil operand")
		}
		x, err := c.Expr(e.x)
		if err != nil {
			return nil, err
		}
		return sqlast.Aliased{Expr: x, Alias: e.name}, nil
	case random:
		return sqlast.Func{Name: sqlast.FuncRandom}, nil
	default:
		return nil, unsupported(e, "unknown node %T", e)
	}
}

// Order compiles ordering terms.
func (c *Compiler) Order(terms []Order) ([]sqlast.OrderTerm, error) {
	out := make([]sqlast.OrderTerm, len(terms))
	for i, t := range terms {
		x, err := c.Expr(t.Expr)
		if err != nil {
			return nil, err
		}
		out[i] = sqlast.OrderTerm{Expr: x, Desc: t.Desc}
	}
	return out, nil
}

func (c *Compiler) column(e column) (sqlast.Expr, error) {
	t, err := c.Resolve(e.path)
	if err != nil {
		return nil, err
	}
	if len(t.Columns) != 1 {
		return nil, unsupported(e, "path maps to %d columns", len(t.Columns))
	}
	return sqlast.Col(t.Alias, t.Columns[0].Name), nil
}

// isNullLiteral reports whether a compiled operand is the NULL literal.
func isNullLiteral(e sqlast.Expr) bool {
	switch e := e.(type) {
	case sqlast.Null:
		return true
	case sqlast.Literal:
		return e.Value == nil
	}
	return false
}

func (c *Compiler) binary(e binary) (sqlast.Expr, error) {
	if e.left == nil || e.right == nil {
		return nil, unsupported(e, "nil operand")
	}
	if e.op == sqlast.OpEq || e.op == sqlast.OpNe {
		if v, ok := e.right.(value); ok && Normalize(v.v) == nil {
			return c.nullTest(e, e.left, e.op == sqlast.OpNe)
		}
		if v, ok := e.left.(value); ok && Normalize(v.v) == nil {
			return c.nullTest(e, e.right, e.op == sqlast.OpNe)
		}
	}
	left, err := c.Expr(e.left)
	if err != nil {
		return nil, err
	}
	right, err := c.Expr(e.right)
	if err != nil {
		return nil, err
	}
	if isNullLiteral(left) || isNullLiteral(right) {
		if e.op != sqlast.OpEq && e.op != sqlast.OpNe {
			return nil, unsupported(e, "NULL operand for %s", e.op)
		}
		operand := left
		if isNullLiteral(left) {
			operand = right
		}
		if e.op == sqlast.OpEq {
			return sqlast.Unary{Op: sqlast.OpIsNull, Operand: operand}, nil
		}
		return sqlast.Unary{Op: sqlast.OpIsNotNull, Operand: operand}, nil
	}
	return sqlast.Binary{Op: e.op, Left: left, Right: right}, nil
}

// nullTest compiles an absence test. Embedded objects test their presence marker instead
// of a nullable column.
func (c *Compiler) nullTest(whole, x Expr, negate bool) (sqlast.Expr, error) {
	if x == nil {
		return nil, unsupported(whole, "nil operand")
	}
	if col, ok := x.(column); ok {
		t, err := c.Resolve(col.path)
		if err != nil {
			return nil, err
		}
		if len(t.Columns) == 1 && t.Columns[0].NullCheck {
			return sqlast.Eq(sqlast.Col(t.Alias, t.Columns[0].Name), sqlast.Lit(negate)), nil
		}
	}
	operand, err := c.Expr(x)
	if err != nil {
		return nil, err
	}
	if negate {
		return sqlast.Unary{Op: sqlast.OpIsNotNull, Operand: operand}, nil
	}
	return sqlast.Unary{Op: sqlast.OpIsNull, Operand: operand}, nil
}
