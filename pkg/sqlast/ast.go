// Package sqlast is the dialect-neutral SQL syntax tree produced by the query builders.
package sqlast

import "github.com/chmenegatti/graphorm/metadata"

// Node is any element of the tree.
type Node interface{ node() }

// Expr is a scalar or boolean expression.
type Expr interface {
	Node
	expr()
}

// Stmt is a complete statement.
type Stmt interface {
	Node
	stmt()
}

// --- Expressions ---

// Column references a column, optionally qualified by a table name or alias.
type Column struct {
	Table string
	Name  string
}

// Literal is a value sent as a bound parameter.
type Literal struct {
	Value any
}

// Null is the SQL NULL literal.
type Null struct{}

// Star is the "all columns" marker, used by COUNT(*).
type Star struct {
	Table string
}

// BinaryOp enumerates binary operators.
type BinaryOp int

const (
	OpEq BinaryOp = iota + 1
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpBitAnd
	OpBitOr
	OpBitXor
	OpAnd
	OpOr
	OpLike
)

var binaryOps = map[BinaryOp]string{
	OpEq: "=", OpNe: "<>", OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">=",
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/",
	OpBitAnd: "&", OpBitOr: "|", OpBitXor: "^",
	OpAnd: "AND", OpOr: "OR", OpLike: "LIKE",
}

func (op BinaryOp) String() string { return binaryOps[op] }

// Binary is a binary operation.
type Binary struct {
	Op          BinaryOp
	Left, Right Expr
}

// UnaryOp enumerates unary operators.
type UnaryOp int

const (
	OpNot UnaryOp = iota + 1
	OpNeg
	OpIsNull
	OpIsNotNull
)

// Unary is a unary operation.
type Unary struct {
	Op      UnaryOp
	Operand Expr
}

// In tests membership in a list of values. An empty list is always false.
type In struct {
	Operand Expr
	Set     []Expr
	Not     bool
}

// FuncName enumerates the portable functions.
type FuncName int

const (
	FuncCount FuncName = iota + 1
	FuncMin
	FuncMax
	FuncRandom
)

// Func is a function call.
type Func struct {
	Name     FuncName
	Args     []Expr
	Distinct bool
}

// Aliased names an expression in a select list.
type Aliased struct {
	Expr  Expr
	Alias string
}

// --- Statements ---

// TableRef names a table in FROM or JOIN.
type TableRef struct {
	Name  string
	Alias string
}

// JoinKind enumerates join kinds.
type JoinKind int

const (
	LeftJoin JoinKind = iota + 1
	InnerJoin
)

// Join is one JOIN clause.
type Join struct {
	Kind  JoinKind
	Table TableRef
	On    Expr
}

// OrderTerm is one ORDER BY term.
type OrderTerm struct {
	Expr Expr
	Desc bool
}

// Select is a SELECT statement. Limit and Offset are ignored when zero.
type Select struct {
	Distinct bool
	Columns  []Expr
	From     TableRef
	Joins    []Join
	Where    Expr
	GroupBy  []Expr
	OrderBy  []OrderTerm
	Limit    int
	Offset   int
}

// Insert inserts one or more rows.
type Insert struct {
	Table   string
	Columns []string
	Rows    [][]Expr
}

// Assignment is one SET term.
type Assignment struct {
	Column string
	Value  Expr
}

// Update is an UPDATE statement.
type Update struct {
	Table string
	Set   []Assignment
	Where Expr
}

// Delete is a DELETE statement.
type Delete struct {
	Table string
	Where Expr
}

// ColumnDef is a column in CREATE TABLE.
type ColumnDef struct {
	Name          string
	Type          metadata.SQLType
	Nullable      bool
	PrimaryKey    bool
	AutoIncrement bool
	Unique        bool
	Default       string
}

// CreateTable is a CREATE TABLE statement.
type CreateTable struct {
	Name       string
	Columns    []ColumnDef
	PrimaryKey []string
}

// CreateIndex is a CREATE INDEX statement.
type CreateIndex struct {
	Name    string
	Table   string
	Columns []string
	Unique  bool
}

// SelectLastInsertID reads the key generated by the previous INSERT on the same connection.
type SelectLastInsertID struct {
	Table  string
	Column string
}

// TableExists yields one row when the table exists and none otherwise.
type TableExists struct {
	Table string
}

// Composite is an ordered list of statements emitted by one operation.
type Composite struct {
	Statements []Stmt
}

// Append adds statements to the composite.
func (c *Composite) Append(stmts ...Stmt) { c.Statements = append(c.Statements, stmts...) }

func (Column) node()  {}
func (Literal) node() {}
func (Null) node()    {}
func (Star) node()    {}
func (Binary) node()  {}
func (Unary) node()   {}
func (In) node()      {}
func (Func) node()    {}
func (Aliased) node() {}

func (Column) expr()  {}
func (Literal) expr() {}
func (Null) expr()    {}
func (Star) expr()    {}
func (Binary) expr()  {}
func (Unary) expr()   {}
func (In) expr()      {}
func (Func) expr()    {}
func (Aliased) expr() {}

func (*Select) node()             {}
func (*Insert) node()             {}
func (*Update) node()             {}
func (*Delete) node()             {}
func (*CreateTable) node()        {}
func (*CreateIndex) node()        {}
func (*SelectLastInsertID) node() {}
func (*TableExists) node()        {}
func (*Composite) node()          {}

func (*Select) stmt()             {}
func (*Insert) stmt()             {}
func (*Update) stmt()             {}
func (*Delete) stmt()             {}
func (*CreateTable) stmt()        {}
func (*CreateIndex) stmt()        {}
func (*SelectLastInsertID) stmt() {}
func (*TableExists) stmt()        {}
func (*Composite) stmt()          {}

// IsQuery reports whether the statement yields rows.
func IsQuery(s Stmt) bool {
	switch s.(type) {
	case *Select, *SelectLastInsertID, *TableExists:
		return true
	}
	return false
}

// --- Constructors ---

// Col builds a qualified column reference.
func Col(table, name string) Column { return Column{Table: table, Name: name} }

// Lit builds a literal.
func Lit(v any) Literal { return Literal{Value: v} }

// Eq builds left = right.
func Eq(left, right Expr) Binary { return Binary{Op: OpEq, Left: left, Right: right} }

// And joins conditions with AND, skipping nils. It returns nil for no conditions.
func And(conds ...Expr) Expr { return fold(OpAnd, conds) }

// Or joins conditions with OR, skipping nils. It returns nil for no conditions.
func Or(conds ...Expr) Expr { return fold(OpOr, conds) }

func fold(op BinaryOp, conds []Expr) Expr {
	var out Expr
	for _, c := range conds {
		if c == nil {
			continue
		}
		if out == nil {
			out = c
			continue
		}
		out = Binary{Op: op, Left: out, Right: c}
	}
	return out
}
