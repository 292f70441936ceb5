package graphorm

import "github.com/chmenegatti/graphorm/pkg/sqlast"

// Result encapsulates the outcome of a write operation.
type Result struct {
	// RowsAffected counts the rows changed in the operation's own table. Junction rows
	// touched along the way are not included, except for Link and Unlink.
	RowsAffected int64
	// Statements is the number of statements executed.
	Statements int
}

// targets reports whether stmt writes to table.
func targets(stmt sqlast.Stmt, table string) bool {
	switch s := stmt.(type) {
	case *sqlast.Insert:
		return s.Table == table
	case *sqlast.Update:
		return s.Table == table
	case *sqlast.Delete:
		return s.Table == table
	}
	return false
}
