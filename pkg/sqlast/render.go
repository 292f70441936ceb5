package sqlast

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chmenegatti/graphorm/metadata"
)

// Dialect supplies the per-database pieces of SQL text.
type Dialect interface {
	Name() string
	// Quote wraps an identifier in the dialect's quotes.
	Quote(identifier string) string
	// BindVar returns the placeholder for the i-th parameter (1-based).
	BindVar(i int) string
	// ColumnType returns the column type. For an auto-increment key it also carries the
	// inline PRIMARY KEY clause.
	ColumnType(col ColumnDef) (string, error)
	BoolLiteral(b bool) string
	Random() string
	// Paging renders LIMIT/OFFSET. ordered tells whether an ORDER BY was emitted.
	Paging(limit, offset int, ordered bool) string
	// InsertDefaultValues renders an INSERT without explicit columns.
	InsertDefaultValues(table string) string
	LastInsertID(table, column string) string
	// TableExists renders a query with one parameter (the table name) returning a row
	// only when the table exists.
	TableExists(bindVar string) string
	// MaxParams is the most parameters one statement may bind, 0 for no limit.
	MaxParams() int
}

// Rendered is the text and arguments of one statement.
type Rendered struct {
	SQL  string
	Args []any
}

var ErrUnsupportedNode = errors.New("sqlast: unsupported node")

// Render renders a single statement. Composites must go through RenderAll.
func Render(stmt Stmt, d Dialect) (Rendered, error) {
	r := &renderer{d: d}
	if err := r.stmt(stmt); err != nil {
		return Rendered{}, err
	}
	return Rendered{SQL: r.buf.String(), Args: r.args}, nil
}

// RenderAll renders every statement of a composite in order.
func RenderAll(c *Composite, d Dialect) ([]Rendered, error) {
	out := make([]Rendered, 0, len(c.Statements))
	for i, s := range c.Statements {
		if nested, ok := s.(*Composite); ok {
			inner, err := RenderAll(nested, d)
			if err != nil {
				return nil, err
			}
			out = append(out, inner...)
			continue
		}
		rendered, err := Render(s, d)
		if err != nil {
			return nil, fmt.Errorf("statement %d: %w", i, err)
		}
		out = append(out, rendered)
	}
	return out, nil
}

// RenderExpr renders a standalone expression, for diagnostics and tests.
func RenderExpr(e Expr, d Dialect) (Rendered, error) {
	r := &renderer{d: d}
	if err := r.expr(e); err != nil {
		return Rendered{}, err
	}
	return Rendered{SQL: r.buf.String(), Args: r.args}, nil
}

type renderer struct {
	d    Dialect
	buf  strings.Builder
	args []any
}

func (r *renderer) write(parts ...string) {
	for _, p := range parts {
		r.buf.WriteString(p)
	}
}

func (r *renderer) bind(v any) {
	r.args = append(r.args, v)
	r.write(r.d.BindVar(len(r.args)))
}

func (r *renderer) quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = r.d.Quote(n)
	}
	return strings.Join(quoted, ", ")
}

func (r *renderer) stmt(s Stmt) error {
	switch s := s.(type) {
	case *Select:
		return r.selectStmt(s)
	case *Insert:
		return r.insert(s)
	case *Update:
		return r.update(s)
	case *Delete:
		r.write("DELETE FROM ", r.d.Quote(s.Table))
		return r.where(s.Where)
	case *CreateTable:
		return r.createTable(s)
	case *CreateIndex:
		if s.Unique {
			r.write("CREATE UNIQUE INDEX ")
		} else {
			r.write("CREATE INDEX ")
		}
		r.write(r.d.Quote(s.Name), " ON ", r.d.Quote(s.Table), " (", r.quoteList(s.Columns), ")")
		return nil
	case *SelectLastInsertID:
		r.write(r.d.LastInsertID(s.Table, s.Column))
		return nil
	case *TableExists:
		r.args = append(r.args, s.Table)
		r.write(r.d.TableExists(r.d.BindVar(1)))
		return nil
	case *Composite:
		return fmt.Errorf("%w: composite statements render through RenderAll", ErrUnsupportedNode)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedNode, s)
	}
}

func (r *renderer) where(cond Expr) error {
	if cond == nil {
		return nil
	}
	r.write(" WHERE ")
	return r.expr(cond)
}

func (r *renderer) table(t TableRef) {
	r.write(r.d.Quote(t.Name))
	if t.Alias != "" && t.Alias != t.Name {
		r.write(" AS ", r.d.Quote(t.Alias))
	}
}

func (r *renderer) selectStmt(s *Select) error {
	r.write("SELECT ")
	if s.Distinct {
		r.write("DISTINCT ")
	}
	if len(s.Columns) == 0 {
		return fmt.Errorf("%w: select without columns", ErrUnsupportedNode)
	}
	for i, c := range s.Columns {
		if i > 0 {
			r.write(", ")
		}
		if err := r.expr(c); err != nil {
			return err
		}
	}
	r.write(" FROM ")
	r.table(s.From)
	for _, j := range s.Joins {
		switch j.Kind {
		case InnerJoin:
			r.write(" INNER JOIN ")
		default:
			r.write(" LEFT JOIN ")
		}
		r.table(j.Table)
		r.write(" ON ")
		if err := r.expr(j.On); err != nil {
			return err
		}
	}
	if err := r.where(s.Where); err != nil {
		return err
	}
	if len(s.GroupBy) > 0 {
		r.write(" GROUP BY ")
		for i, g := range s.GroupBy {
			if i > 0 {
				r.write(", ")
			}
			if err := r.expr(g); err != nil {
				return err
			}
		}
	}
	if len(s.OrderBy) > 0 {
		r.write(" ORDER BY ")
		for i, o := range s.OrderBy {
			if i > 0 {
				r.write(", ")
			}
			if err := r.expr(o.Expr); err != nil {
				return err
			}
			if o.Desc {
				r.write(" DESC")
			}
		}
	}
	if s.Limit > 0 || s.Offset > 0 {
		if paging := r.d.Paging(s.Limit, s.Offset, len(s.OrderBy) > 0); paging != "" {
			r.write(" ", paging)
		}
	}
	return nil
}

func (r *renderer) insert(s *Insert) error {
	if len(s.Columns) == 0 {
		if len(s.Rows) > 1 {
			return fmt.Errorf("%w: multi-row insert without columns", ErrUnsupportedNode)
		}
		r.write(r.d.InsertDefaultValues(s.Table))
		return nil
	}
	if len(s.Rows) == 0 {
		return fmt.Errorf("%w: insert without rows", ErrUnsupportedNode)
	}
	r.write("INSERT INTO ", r.d.Quote(s.Table), " (", r.quoteList(s.Columns), ") VALUES ")
	for i, row := range s.Rows {
		if len(row) != len(s.Columns) {
			return fmt.Errorf("%w: row %d has %d values for %d columns", ErrUnsupportedNode, i, len(row), len(s.Columns))
		}
		if i > 0 {
			r.write(", ")
		}
		r.write("(")
		for j, v := range row {
			if j > 0 {
				r.write(", ")
			}
			if err := r.expr(v); err != nil {
				return err
			}
		}
		r.write(")")
	}
	return nil
}

func (r *renderer) update(s *Update) error {
	if len(s.Set) == 0 {
		return fmt.Errorf("%w: update without assignments", ErrUnsupportedNode)
	}
	r.write("UPDATE ", r.d.Quote(s.Table), " SET ")
	for i, a := range s.Set {
		if i > 0 {
			r.write(", ")
		}
		r.write(r.d.Quote(a.Column), " = ")
		if err := r.expr(a.Value); err != nil {
			return err
		}
	}
	return r.where(s.Where)
}

func (r *renderer) createTable(s *CreateTable) error {
	r.write("CREATE TABLE ", r.d.Quote(s.Name), " (")
	inlineKey := false
	for i, c := range s.Columns {
		if i > 0 {
			r.write(", ")
		}
		typ, err := r.d.ColumnType(c)
		if err != nil {
			return fmt.Errorf("column %s.%s: %w", s.Name, c.Name, err)
		}
		r.write(r.d.Quote(c.Name), " ", typ)
		if c.AutoIncrement && c.PrimaryKey {
			inlineKey = true
			continue
		}
		if !c.Nullable {
			r.write(" NOT NULL")
		}
		if c.Default != "" {
			r.write(" DEFAULT ", r.defaultValue(c))
		}
		if c.Unique {
			r.write(" UNIQUE")
		}
	}
	if len(s.PrimaryKey) > 0 && !inlineKey {
		r.write(", PRIMARY KEY (", r.quoteList(s.PrimaryKey), ")")
	}
	r.write(")")
	return nil
}

func (r *renderer) defaultValue(c ColumnDef) string {
	if c.Type.Kind == metadata.KindBool {
		switch strings.ToLower(c.Default) {
		case "true":
			return r.d.BoolLiteral(true)
		case "false":
			return r.d.BoolLiteral(false)
		}
	}
	return c.Default
}

func (r *renderer) expr(e Expr) error {
	switch e := e.(type) {
	case Column:
		if e.Table != "" {
			r.write(r.d.Quote(e.Table), ".")
		}
		r.write(r.d.Quote(e.Name))
	case Literal:
		if e.Value == nil {
			r.write("NULL")
			return nil
		}
		r.bind(e.Value)
	case Null:
		r.write("NULL")
	case Star:
		if e.Table != "" {
			r.write(r.d.Quote(e.Table), ".")
		}
		r.write("*")
	case Binary:
		return r.binary(e)
	case Unary:
		return r.unary(e)
	case In:
		if len(e.Set) == 0 {
			if e.Not {
				r.write("1 = 1")
			} else {
				r.write("1 = 0")
			}
			return nil
		}
		if err := r.operand(e.Operand); err != nil {
			return err
		}
		if e.Not {
			r.write(" NOT IN (")
		} else {
			r.write(" IN (")
		}
		for i, v := range e.Set {
			if i > 0 {
				r.write(", ")
			}
			if err := r.expr(v); err != nil {
				return err
			}
		}
		r.write(")")
	case Func:
		return r.function(e)
	case Aliased:
		if err := r.expr(e.Expr); err != nil {
			return err
		}
		r.write(" AS ", r.d.Quote(e.Alias))
	case nil:
		return fmt.Errorf("%w: nil expression", ErrUnsupportedNode)
	default:
		return fmt.Errorf("%w: %T", ErrUnsupportedNode, e)
	}
	return nil
}

func (r *renderer) function(f Func) error {
	switch f.Name {
	case FuncRandom:
		r.write(r.d.Random())
		return nil
	case FuncCount:
		r.write("COUNT(")
	case FuncMin:
		r.write("MIN(")
	case FuncMax:
		r.write("MAX(")
	default:
		return fmt.Errorf("%w: function %d", ErrUnsupportedNode, f.Name)
	}
	if f.Distinct {
		r.write("DISTINCT ")
	}
	for i, a := range f.Args {
		if i > 0 {
			r.write(", ")
		}
		if err := r.expr(a); err != nil {
			return err
		}
	}
	r.write(")")
	return nil
}

func (r *renderer) unary(u Unary) error {
	switch u.Op {
	case OpNot:
		r.write("NOT (")
		if err := r.expr(u.Operand); err != nil {
			return err
		}
		r.write(")")
	case OpNeg:
		r.write("-")
		return r.operand(u.Operand)
	case OpIsNull, OpIsNotNull:
		if err := r.operand(u.Operand); err != nil {
			return err
		}
		if u.Op == OpIsNull {
			r.write(" IS NULL")
		} else {
			r.write(" IS NOT NULL")
		}
	default:
		return fmt.Errorf("%w: unary operator %d", ErrUnsupportedNode, u.Op)
	}
	return nil
}

// operand renders a nested expression, parenthesizing compound ones.
func (r *renderer) operand(e Expr) error {
	switch e.(type) {
	case Binary, Unary, In:
		r.write("(")
		if err := r.expr(e); err != nil {
			return err
		}
		r.write(")")
		return nil
	}
	return r.expr(e)
}

func (r *renderer) binary(b Binary) error {
	if _, ok := binaryOps[b.Op]; !ok {
		return fmt.Errorf("%w: binary operator %d", ErrUnsupportedNode, b.Op)
	}
	if err := r.side(b, b.Left, false); err != nil {
		return err
	}
	r.write(" ", b.Op.String(), " ")
	return r.side(b, b.Right, true)
}

func (r *renderer) side(parent Binary, child Expr, right bool) error {
	if needsParens(parent, child, right) {
		r.write("(")
		if err := r.expr(child); err != nil {
			return err
		}
		r.write(")")
		return nil
	}
	return r.expr(child)
}

func isLogical(op BinaryOp) bool { return op == OpAnd || op == OpOr }

func isComparison(op BinaryOp) bool { return op >= OpEq && op <= OpGe || op == OpLike }

func precedence(op BinaryOp) int {
	switch op {
	case OpMul, OpDiv:
		return 3
	case OpAdd, OpSub:
		return 2
	default:
		return 1
	}
}

func needsParens(parent Binary, child Expr, right bool) bool {
	switch c := child.(type) {
	case Binary:
		switch {
		case isLogical(c.Op):
			return c.Op != parent.Op || right
		case isLogical(parent.Op):
			return false
		case isComparison(parent.Op):
			return true
		case isComparison(c.Op):
			return true
		}
		// arithmetic or bitwise inside arithmetic or bitwise
		if precedence(c.Op) > precedence(parent.Op) {
			return false
		}
		return !(c.Op == parent.Op && !right && (c.Op == OpAdd || c.Op == OpMul))
	case Unary:
		return !isLogical(parent.Op)
	case In:
		return !isLogical(parent.Op)
	}
	return false
}
