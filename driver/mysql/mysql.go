// driver/mysql/mysql.go
package mysql

import (
	"fmt"
	"strings"

	gomysql "github.com/go-sql-driver/mysql" // Registers the "mysql" driver

	"github.com/chmenegatti/graphorm/metadata"
	"github.com/chmenegatti/graphorm/pkg/dialects"
	"github.com/chmenegatti/graphorm/pkg/dialects/common"
	"github.com/chmenegatti/graphorm/pkg/sqlast"
)

// maxVarchar is the largest VARCHAR MySQL accepts before a TEXT type is needed.
const maxVarchar = 16383

// Dialect implements common.Dialect for MySQL/MariaDB.
type Dialect struct{}

var _ common.Dialect = Dialect{}

func (Dialect) Name() string       { return "mysql" }
func (Dialect) DriverName() string { return "mysql" }

// NormalizeDSN adds parseTime=true, required for scanning DATETIME into time.Time.
// A DSN the driver cannot parse is returned untouched so sql.Open reports the error.
func (Dialect) NormalizeDSN(dsn string) string {
	cfg, err := gomysql.ParseDSN(dsn)
	if err != nil {
		return dsn
	}
	cfg.ParseTime = true
	return cfg.FormatDSN()
}

func (Dialect) Quote(identifier string) string {
	return "`" + strings.ReplaceAll(identifier, "`", "``") + "`"
}

func (Dialect) BindVar(int) string { return "?" }

func (Dialect) ColumnType(col sqlast.ColumnDef) (string, error) {
	var sqlType string
	switch col.Type.Kind {
	case metadata.KindBool:
		sqlType = "TINYINT(1)"
	case metadata.KindInt8:
		sqlType = "TINYINT"
	case metadata.KindInt16:
		sqlType = "SMALLINT"
	case metadata.KindInt32:
		sqlType = "INT"
	case metadata.KindInt64:
		sqlType = "BIGINT"
	case metadata.KindUint8:
		sqlType = "TINYINT UNSIGNED"
	case metadata.KindUint16:
		sqlType = "SMALLINT UNSIGNED"
	case metadata.KindUint32:
		sqlType = "INT UNSIGNED"
	case metadata.KindUint64:
		sqlType = "BIGINT UNSIGNED"
	case metadata.KindFloat:
		if col.Type.Precision <= metadata.Float32Precision {
			sqlType = "FLOAT"
		} else {
			sqlType = "DOUBLE"
		}
	case metadata.KindDecimal:
		sqlType = fmt.Sprintf("DECIMAL(%d,%d)", col.Type.Precision, col.Type.Scale)
	case metadata.KindText:
		switch {
		case col.Type.Length > 0 && col.Type.Length <= maxVarchar:
			sqlType = fmt.Sprintf("VARCHAR(%d)", col.Type.Length)
		default:
			sqlType = "LONGTEXT"
		}
	case metadata.KindBinary:
		switch {
		case col.Type.Length > 0 && col.Type.Length <= 255:
			sqlType = fmt.Sprintf("BINARY(%d)", col.Type.Length)
		case col.Type.Length > 0 && col.Type.Length <= 65535:
			sqlType = fmt.Sprintf("VARBINARY(%d)", col.Type.Length)
		default:
			sqlType = "LONGBLOB"
		}
	case metadata.KindDateTime:
		// DATETIME(6) keeps the microseconds of time.Time
		sqlType = "DATETIME(6)"
	case metadata.KindUUID:
		sqlType = "CHAR(36)"
	default:
		return "", fmt.Errorf("unsupported data type for mysql: %s", col.Type)
	}
	if col.AutoIncrement && col.PrimaryKey {
		if !col.Type.Kind.IsInteger() {
			return "", fmt.Errorf("mysql: auto-increment requires an integer column, got %s", col.Type)
		}
		sqlType += " NOT NULL AUTO_INCREMENT PRIMARY KEY"
	}
	return sqlType, nil
}

func (Dialect) BoolLiteral(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func (Dialect) Random() string { return "RAND()" }

func (Dialect) Paging(limit, offset int, _ bool) string {
	if limit <= 0 {
		// MySQL has no OFFSET without LIMIT; this is the documented "all rows" idiom
		return fmt.Sprintf("LIMIT 18446744073709551615 OFFSET %d", offset)
	}
	if offset > 0 {
		return fmt.Sprintf("LIMIT %d OFFSET %d", limit, offset)
	}
	return fmt.Sprintf("LIMIT %d", limit)
}

func (d Dialect) InsertDefaultValues(table string) string {
	return "INSERT INTO " + d.Quote(table) + " () VALUES ()"
}

func (Dialect) MaxParams() int { return 65535 }

func (Dialect) LastInsertID(_, _ string) string { return "SELECT LAST_INSERT_ID()" }

func (Dialect) TableExists(bindVar string) string {
	return "SELECT 1 FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = " + bindVar
}

// NewDataSource returns an unconnected MySQL data source.
func NewDataSource() common.DataSource {
	return common.NewSQLDataSource(Dialect{})
}

func init() {
	dialects.Register("mysql", NewDataSource)
}
