// driver/sqlserver/sqlserver.go
package sqlserver

import (
	"fmt"
	"strconv"
	"strings"

	_ "github.com/microsoft/go-mssqldb" // Registers the "sqlserver" driver

	"github.com/chmenegatti/graphorm/metadata"
	"github.com/chmenegatti/graphorm/pkg/dialects"
	"github.com/chmenegatti/graphorm/pkg/dialects/common"
	"github.com/chmenegatti/graphorm/pkg/sqlast"
)

// maxNVarchar is the largest sized NVARCHAR; longer text needs NVARCHAR(MAX).
const maxNVarchar = 4000

// Dialect implements common.Dialect for Microsoft SQL Server.
type Dialect struct{}

var _ common.Dialect = Dialect{}

func (Dialect) Name() string       { return "sqlserver" }
func (Dialect) DriverName() string { return "sqlserver" }

func (Dialect) NormalizeDSN(dsn string) string { return dsn }

func (Dialect) Quote(identifier string) string {
	return "[" + strings.ReplaceAll(identifier, "]", "]]") + "]"
}

func (Dialect) BindVar(i int) string { return "@p" + strconv.Itoa(i) }

func (Dialect) ColumnType(col sqlast.ColumnDef) (string, error) {
	var sqlType string
	switch col.Type.Kind {
	case metadata.KindBool:
		sqlType = "BIT"
	case metadata.KindUint8:
		sqlType = "TINYINT"
	case metadata.KindInt8, metadata.KindInt16:
		sqlType = "SMALLINT"
	case metadata.KindInt32, metadata.KindUint16:
		sqlType = "INT"
	case metadata.KindInt64, metadata.KindUint32:
		sqlType = "BIGINT"
	case metadata.KindUint64:
		sqlType = "DECIMAL(20,0)"
	case metadata.KindFloat:
		if col.Type.Precision <= metadata.Float32Precision {
			sqlType = "REAL"
		} else {
			sqlType = "FLOAT(53)"
		}
	case metadata.KindDecimal:
		sqlType = fmt.Sprintf("DECIMAL(%d,%d)", col.Type.Precision, col.Type.Scale)
	case metadata.KindText:
		if col.Type.Length > 0 && col.Type.Length <= maxNVarchar {
			sqlType = fmt.Sprintf("NVARCHAR(%d)", col.Type.Length)
		} else {
			sqlType = "NVARCHAR(MAX)"
		}
	case metadata.KindBinary:
		if col.Type.Length > 0 && col.Type.Length <= 8000 {
			sqlType = fmt.Sprintf("BINARY(%d)", col.Type.Length)
		} else {
			sqlType = "VARBINARY(MAX)"
		}
	case metadata.KindDateTime:
		sqlType = "DATETIME2"
	case metadata.KindUUID:
		sqlType = "UNIQUEIDENTIFIER"
	default:
		return "", fmt.Errorf("unsupported data type for sqlserver: %s", col.Type)
	}
	if col.AutoIncrement && col.PrimaryKey {
		if !col.Type.Kind.IsInteger() {
			return "", fmt.Errorf("sqlserver: auto-increment requires an integer column, got %s", col.Type)
		}
		sqlType += " IDENTITY(1,1) PRIMARY KEY"
	}
	return sqlType, nil
}

func (Dialect) BoolLiteral(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func (Dialect) Random() string { return "NEWID()" }

// Paging uses OFFSET/FETCH, which SQL Server only allows after an ORDER BY.
func (Dialect) Paging(limit, offset int, ordered bool) string {
	var b strings.Builder
	if !ordered {
		b.WriteString("ORDER BY (SELECT NULL) ")
	}
	fmt.Fprintf(&b, "OFFSET %d ROWS", offset)
	if limit > 0 {
		fmt.Fprintf(&b, " FETCH NEXT %d ROWS ONLY", limit)
	}
	return b.String()
}

func (d Dialect) InsertDefaultValues(table string) string {
	return "INSERT INTO " + d.Quote(table) + " DEFAULT VALUES"
}

// MaxParams is the parameter limit of one RPC request.
func (Dialect) MaxParams() int { return 2100 }

// LastInsertID uses @@IDENTITY: each statement runs in its own sp_executesql scope, where
// SCOPE_IDENTITY() would be NULL.
func (Dialect) LastInsertID(_, _ string) string { return "SELECT CAST(@@IDENTITY AS BIGINT)" }

func (Dialect) TableExists(bindVar string) string {
	return "SELECT 1 FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_NAME = " + bindVar
}

// NewDataSource returns an unconnected SQL Server data source.
func NewDataSource() common.DataSource {
	return common.NewSQLDataSource(Dialect{})
}

func init() {
	dialects.Register("sqlserver", NewDataSource)
}
