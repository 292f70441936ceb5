package query

import (
	"github.com/chmenegatti/graphorm/metadata"
	"github.com/chmenegatti/graphorm/pkg/sqlast"
)

// CreateTables builds the CREATE TABLE and CREATE INDEX statements of every table of the
// schema, entity tables in key-dependency order and junction tables last.
func CreateTables(s *metadata.Schema) *sqlast.Composite {
	c := &sqlast.Composite{}
	for _, t := range s.Tables() {
		c.Append(CreateTable(t)...)
	}
	return c
}

// CreateTable builds the statements creating one table and its indexes.
func CreateTable(t *metadata.Table) []sqlast.Stmt {
	ct := &sqlast.CreateTable{Name: t.Name, PrimaryKey: t.PrimaryKey}
	for _, col := range t.Columns {
		ct.Columns = append(ct.Columns, sqlast.ColumnDef{
			Name:          col.Name,
			Type:          col.Type,
			Nullable:      col.Nullable,
			PrimaryKey:    col.PrimaryKey,
			AutoIncrement: col.AutoIncrement,
			Unique:        col.Unique,
			Default:       col.Default,
		})
	}
	out := []sqlast.Stmt{ct}
	for _, idx := range t.Indexes {
		out = append(out, &sqlast.CreateIndex{Name: idx.Name, Table: t.Name, Columns: idx.Columns, Unique: idx.Unique})
	}
	return out
}
