// driver/postgres/postgres.go
package postgres

import (
	"fmt"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib" // Registers the "pgx" driver

	"github.com/chmenegatti/graphorm/metadata"
	"github.com/chmenegatti/graphorm/pkg/dialects"
	"github.com/chmenegatti/graphorm/pkg/dialects/common"
	"github.com/chmenegatti/graphorm/pkg/sqlast"
)

// Dialect implements common.Dialect for PostgreSQL through pgx's database/sql adapter.
type Dialect struct{}

var _ common.Dialect = Dialect{}

func (Dialect) Name() string       { return "postgres" }
func (Dialect) DriverName() string { return "pgx" }

func (Dialect) NormalizeDSN(dsn string) string { return dsn }

func (Dialect) Quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

func (Dialect) BindVar(i int) string { return "$" + strconv.Itoa(i) }

func (Dialect) ColumnType(col sqlast.ColumnDef) (string, error) {
	if col.AutoIncrement && col.PrimaryKey {
		switch col.Type.Kind {
		case metadata.KindInt8, metadata.KindInt16, metadata.KindInt32, metadata.KindUint8, metadata.KindUint16:
			return "SERIAL PRIMARY KEY", nil
		case metadata.KindInt64, metadata.KindUint32, metadata.KindUint64:
			return "BIGSERIAL PRIMARY KEY", nil
		}
		return "", fmt.Errorf("postgres: auto-increment requires an integer column, got %s", col.Type)
	}
	switch col.Type.Kind {
	case metadata.KindBool:
		return "BOOLEAN", nil
	case metadata.KindInt8, metadata.KindInt16, metadata.KindUint8:
		return "SMALLINT", nil
	case metadata.KindInt32, metadata.KindUint16:
		return "INTEGER", nil
	case metadata.KindInt64, metadata.KindUint32:
		return "BIGINT", nil
	case metadata.KindUint64:
		return "NUMERIC(20,0)", nil
	case metadata.KindFloat:
		if col.Type.Precision <= metadata.Float32Precision {
			return "REAL", nil
		}
		return "DOUBLE PRECISION", nil
	case metadata.KindDecimal:
		return fmt.Sprintf("NUMERIC(%d,%d)", col.Type.Precision, col.Type.Scale), nil
	case metadata.KindText:
		if col.Type.Length > 0 {
			return fmt.Sprintf("VARCHAR(%d)", col.Type.Length), nil
		}
		return "TEXT", nil
	case metadata.KindBinary:
		return "BYTEA", nil
	case metadata.KindDateTime:
		return "TIMESTAMP", nil
	case metadata.KindUUID:
		return "UUID", nil
	}
	return "", fmt.Errorf("unsupported data type for postgres: %s", col.Type)
}

func (Dialect) BoolLiteral(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func (Dialect) Random() string { return "RANDOM()" }

func (Dialect) Paging(limit, offset int, _ bool) string {
	var parts []string
	if limit > 0 {
		parts = append(parts, fmt.Sprintf("LIMIT %d", limit))
	}
	if offset > 0 {
		parts = append(parts, fmt.Sprintf("OFFSET %d", offset))
	}
	return strings.Join(parts, " ")
}

func (d Dialect) InsertDefaultValues(table string) string {
	return "INSERT INTO " + d.Quote(table) + " DEFAULT VALUES"
}

func (Dialect) MaxParams() int { return 65535 }

// LastInsertID reads the sequence backing the serial column, scoped to the session.
func (d Dialect) LastInsertID(table, column string) string {
	return fmt.Sprintf("SELECT currval(pg_get_serial_sequence('%s', '%s'))",
		strings.ReplaceAll(d.Quote(table), "'", "''"), strings.ReplaceAll(column, "'", "''"))
}

func (Dialect) TableExists(bindVar string) string {
	return "SELECT 1 FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = " + bindVar
}

// NewDataSource returns an unconnected PostgreSQL data source.
func NewDataSource() common.DataSource {
	return common.NewSQLDataSource(Dialect{})
}

func init() {
	dialects.Register("postgres", NewDataSource)
}
