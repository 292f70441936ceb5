// Package expr is the typed predicate and selector language compiled against an entity schema.
//
// Expressions are built from combinators and never evaluated in Go:
//
//	expr.And(
//		expr.Eq(expr.Col("Status"), StatusPublished),
//		expr.Like(expr.Col("Author.Name"), "J%"),
//	)
//
// Operands that are not already an Expr are wrapped with Val.
package expr

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/chmenegatti/graphorm/pkg/sqlast"
)

// Expr is a node of the expression tree.
type Expr interface {
	fmt.Stringer
	isExpr()
}

type column struct{ path string }

type value struct{ v any }

type param struct{ name string }

type binary struct {
	op          sqlast.BinaryOp
	left, right Expr
}

type not struct{ x Expr }

type nullTest struct {
	x      Expr
	negate bool
}

type inSet struct {
	x   Expr
	set []Expr
}

type flag struct{ x, flag Expr }

type aggregate struct {
	fn sqlast.FuncName
	x  Expr
}

type aliased struct {
	x    Expr
	name string
}

type random struct{}

func (column) isExpr()    {}
func (value) isExpr()     {}
func (param) isExpr()     {}
func (binary) isExpr()    {}
func (not) isExpr()       {}
func (nullTest) isExpr()  {}
func (inSet) isExpr()     {}
func (flag) isExpr()      {}
func (aggregate) isExpr() {}
func (aliased) isExpr()   {}
func (random) isExpr()    {}

func (c column) String() string { return c.path }
func (v value) String() string  { return fmt.Sprintf("%#v", v.v) }
func (p param) String() string  { return "@" + p.name }
func (b binary) String() string {
	return "(" + describe(b.left) + " " + b.op.String() + " " + describe(b.right) + ")"
}
func (n not) String() string { return "NOT " + describe(n.x) }
func (n nullTest) String() string {
	if n.negate {
		return describe(n.x) + " IS NOT NULL"
	}
	return describe(n.x) + " IS NULL"
}
func (i inSet) String() string {
	parts := make([]string, len(i.set))
	for k, e := range i.set {
		parts[k] = describe(e)
	}
	return describe(i.x) + " IN (" + strings.Join(parts, ", ") + ")"
}
func (f flag) String() string { return "HasFlag(" + describe(f.x) + ", " + describe(f.flag) + ")" }
func (a aggregate) String() string {
	names := map[sqlast.FuncName]string{sqlast.FuncCount: "Count", sqlast.FuncMin: "Min", sqlast.FuncMax: "Max"}
	if a.x == nil {
		return names[a.fn] + "(*)"
	}
	return names[a.fn] + "(" + describe(a.x) + ")"
}
func (a aliased) String() string { return describe(a.x) + " AS " + a.name }
func (random) String() string    { return "Random()" }

// Col references a field by its dotted path from the root entity, ex: "Author.Name" or
// "Address.City".
func Col(path string) Expr { return column{path: path} }

// Val wraps a Go value as a literal. An Expr is returned unchanged.
func Val(v any) Expr {
	if e, ok := v.(Expr); ok {
		return e
	}
	return value{v: v}
}

// Arg is a named parameter resolved from Options.Bindings at compile time.
func Arg(name string) Expr { return param{name: name} }

func bin(op sqlast.BinaryOp, left Expr, right any) Expr {
	return binary{op: op, left: left, right: Val(right)}
}

// Eq is left = right. Comparing with nil compiles to IS NULL.
func Eq(left Expr, right any) Expr { return bin(sqlast.OpEq, left, right) }

// Ne is left <> right. Comparing with nil compiles to IS NOT NULL.
func Ne(left Expr, right any) Expr { return bin(sqlast.OpNe, left, right) }

func Lt(left Expr, right any) Expr { return bin(sqlast.OpLt, left, right) }
func Le(left Expr, right any) Expr { return bin(sqlast.OpLe, left, right) }
func Gt(left Expr, right any) Expr { return bin(sqlast.OpGt, left, right) }
func Ge(left Expr, right any) Expr { return bin(sqlast.OpGe, left, right) }

func Add(left Expr, right any) Expr { return bin(sqlast.OpAdd, left, right) }
func Sub(left Expr, right any) Expr { return bin(sqlast.OpSub, left, right) }
func Mul(left Expr, right any) Expr { return bin(sqlast.OpMul, left, right) }
func Div(left Expr, right any) Expr { return bin(sqlast.OpDiv, left, right) }

func BitAnd(left Expr, right any) Expr { return bin(sqlast.OpBitAnd, left, right) }
func BitOr(left Expr, right any) Expr  { return bin(sqlast.OpBitOr, left, right) }
func BitXor(left Expr, right any) Expr { return bin(sqlast.OpBitXor, left, right) }

// Like matches x against an SQL LIKE pattern.
func Like(x Expr, pattern any) Expr { return bin(sqlast.OpLike, x, pattern) }

// And joins conditions. A single condition is returned as is.
func And(conds ...Expr) Expr { return fold(sqlast.OpAnd, conds) }

// Or joins conditions. A single condition is returned as is.
func Or(conds ...Expr) Expr { return fold(sqlast.OpOr, conds) }

func fold(op sqlast.BinaryOp, conds []Expr) Expr {
	if len(conds) == 0 {
		return nil
	}
	out := conds[0]
	for _, c := range conds[1:] {
		out = binary{op: op, left: out, right: c}
	}
	return out
}

func Not(x Expr) Expr { return not{x: x} }

func IsNull(x Expr) Expr  { return nullTest{x: x} }
func NotNull(x Expr) Expr { return nullTest{x: x, negate: true} }

// IsIn tests membership in the listed values. An empty list is always false.
func IsIn(x Expr, set ...any) Expr {
	items := make([]Expr, len(set))
	for i, v := range set {
		items[i] = Val(v)
	}
	return inSet{x: x, set: items}
}

// In tests membership in the elements of a slice or array.
func In(x Expr, slice any) Expr {
	rv := reflect.ValueOf(slice)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return inSet{x: x, set: []Expr{Val(slice)}}
	}
	items := make([]Expr, rv.Len())
	for i := range items {
		items[i] = Val(rv.Index(i).Interface())
	}
	return inSet{x: x, set: items}
}

// HasFlag tests that every bit of f is set in x: (x & f) = f.
func HasFlag(x Expr, f any) Expr { return flag{x: x, flag: Val(f)} }

// Count counts rows (x == nil) or non-null values of x.
func Count(x Expr) Expr { return aggregate{fn: sqlast.FuncCount, x: x} }

func Min(x Expr) Expr { return aggregate{fn: sqlast.FuncMin, x: x} }
func Max(x Expr) Expr { return aggregate{fn: sqlast.FuncMax, x: x} }

// Alias names a selected expression.
func Alias(x Expr, name string) Expr { return aliased{x: x, name: name} }

// Random is a random value, used for random ordering.
func Random() Expr { return random{} }

// Order is one ordering term.
type Order struct {
	Expr Expr
	Desc bool
}

func Asc(x Expr) Order  { return Order{Expr: x} }
func Desc(x Expr) Order { return Order{Expr: x, Desc: true} }
