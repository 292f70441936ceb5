package graphorm

import (
	"github.com/chmenegatti/graphorm/expr"
	"github.com/chmenegatti/graphorm/query"
)

// FindOption configures the select built by Select, First and Scalar.
type FindOption func(*query.Select)

// Where adds a condition. Several conditions are joined with AND.
func Where(cond expr.Expr) FindOption {
	return func(q *query.Select) { q.Where(cond) }
}

// Order appends ordering terms, ex: Order(expr.Desc(expr.Col("Created"))).
func Order(terms ...expr.Order) FindOption {
	return func(q *query.Select) { q.OrderBy(terms...) }
}

// Limit sets the maximum number of rows. Zero or less means no limit.
func Limit(n int) FindOption {
	return func(q *query.Select) {
		if n > 0 {
			q.Limit(n)
		}
	}
}

// Offset skips rows. Negative values are treated as zero.
func Offset(n int) FindOption {
	return func(q *query.Select) {
		if n > 0 {
			q.Offset(n)
		}
	}
}

// Distinct removes duplicate rows.
func Distinct() FindOption {
	return func(q *query.Select) { q.Distinct() }
}

// Bind binds the value of a named expr.Arg parameter.
func Bind(name string, v any) FindOption {
	return func(q *query.Select) { q.Bind(name, v) }
}

func applyOptions(q *query.Select, opts []FindOption) *query.Select {
	for _, opt := range opts {
		if opt != nil {
			opt(q)
		}
	}
	return q
}
