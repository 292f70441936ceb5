// driver/sqlite/sqlite.go
package sqlite

import (
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3" // Register driver

	"github.com/chmenegatti/graphorm/metadata"
	"github.com/chmenegatti/graphorm/pkg/config"
	"github.com/chmenegatti/graphorm/pkg/dialects"
	"github.com/chmenegatti/graphorm/pkg/dialects/common"
	"github.com/chmenegatti/graphorm/pkg/sqlast"
)

// Dialect implements common.Dialect for SQLite.
type Dialect struct{}

var _ common.Dialect = Dialect{}

func (Dialect) Name() string       { return "sqlite" }
func (Dialect) DriverName() string { return "sqlite3" }

func (Dialect) NormalizeDSN(dsn string) string { return dsn }

func (Dialect) Quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

func (Dialect) BindVar(int) string { return "?" }

// ColumnType maps a column to a SQLite declared type. The declared type drives
// go-sqlite3's scanning, so booleans and datetimes keep their names.
func (Dialect) ColumnType(col sqlast.ColumnDef) (string, error) {
	if col.AutoIncrement && col.PrimaryKey {
		if !col.Type.Kind.IsInteger() {
			return "", fmt.Errorf("sqlite: auto-increment requires an integer column, got %s", col.Type)
		}
		// Only the exact "INTEGER PRIMARY KEY" form aliases the rowid.
		return "INTEGER PRIMARY KEY AUTOINCREMENT", nil
	}
	switch col.Type.Kind {
	case metadata.KindBool:
		return "BOOLEAN", nil
	case metadata.KindInt8, metadata.KindInt16, metadata.KindInt32, metadata.KindInt64,
		metadata.KindUint8, metadata.KindUint16, metadata.KindUint32, metadata.KindUint64:
		return "INTEGER", nil
	case metadata.KindFloat:
		return "REAL", nil
	case metadata.KindDecimal:
		return fmt.Sprintf("DECIMAL(%d,%d)", col.Type.Precision, col.Type.Scale), nil
	case metadata.KindText:
		if col.Type.Length > 0 {
			return fmt.Sprintf("VARCHAR(%d)", col.Type.Length), nil
		}
		return "TEXT", nil
	case metadata.KindBinary:
		return "BLOB", nil
	case metadata.KindDateTime:
		return "DATETIME", nil
	case metadata.KindUUID:
		return "CHAR(36)", nil
	}
	return "", fmt.Errorf("unsupported data type for sqlite: %s", col.Type)
}

func (Dialect) BoolLiteral(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (Dialect) Random() string { return "RANDOM()" }

func (Dialect) Paging(limit, offset int, _ bool) string {
	if limit <= 0 {
		// SQLite only accepts OFFSET after a LIMIT
		return fmt.Sprintf("LIMIT -1 OFFSET %d", offset)
	}
	if offset > 0 {
		return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
	}
	return fmt.Sprintf("LIMIT %d", limit)
}

func (d Dialect) InsertDefaultValues(table string) string {
	return "INSERT INTO " + d.Quote(table) + " DEFAULT VALUES"
}

// MaxParams is SQLITE_MAX_VARIABLE_NUMBER of the bundled SQLite.
func (Dialect) MaxParams() int { return 32766 }

func (Dialect) LastInsertID(_, _ string) string { return "SELECT last_insert_rowid()" }

func (Dialect) TableExists(bindVar string) string {
	return "SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = " + bindVar
}

// dataSource pins the pool to a single connection: SQLite serializes writers, and an
// in-memory database exists only on the connection that created it.
type dataSource struct {
	*common.SQLDataSource
}

func (ds *dataSource) Connect(cfg config.DatabaseConfig) error {
	if err := ds.SQLDataSource.Connect(cfg); err != nil {
		return err
	}
	ds.DB().SetMaxOpenConns(1)
	return nil
}

// NewDataSource returns an unconnected SQLite data source.
func NewDataSource() common.DataSource {
	return &dataSource{SQLDataSource: common.NewSQLDataSource(Dialect{})}
}

func init() {
	dialects.Register("sqlite", NewDataSource)
}
