package sqlast

import (
	"fmt"
	"strings"

	"github.com/chmenegatti/graphorm/metadata"
)

// ANSI is a dialect-neutral rendering used for logging and tests. It is not meant to be
// executed against a particular database.
type ANSI struct{}

var _ Dialect = ANSI{}

func (ANSI) Name() string { return "ansi" }

func (ANSI) Quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

func (ANSI) BindVar(int) string { return "?" }

func (ANSI) ColumnType(col ColumnDef) (string, error) {
	var typ string
	switch col.Type.Kind {
	case metadata.KindBool:
		typ = "BOOLEAN"
	case metadata.KindInt8, metadata.KindInt16, metadata.KindUint8:
		typ = "SMALLINT"
	case metadata.KindInt32, metadata.KindUint16:
		typ = "INTEGER"
	case metadata.KindInt64, metadata.KindUint32, metadata.KindUint64:
		typ = "BIGINT"
	case metadata.KindFloat:
		typ = fmt.Sprintf("FLOAT(%d)", col.Type.Precision)
	case metadata.KindDecimal:
		typ = fmt.Sprintf("DECIMAL(%d,%d)", col.Type.Precision, col.Type.Scale)
	case metadata.KindText:
		if col.Type.Length > 0 {
			typ = fmt.Sprintf("VARCHAR(%d)", col.Type.Length)
		} else {
			typ = "TEXT"
		}
	case metadata.KindBinary:
		if col.Type.Length > 0 {
			typ = fmt.Sprintf("BINARY(%d)", col.Type.Length)
		} else {
			typ = "BLOB"
		}
	case metadata.KindDateTime:
		typ = "TIMESTAMP"
	case metadata.KindUUID:
		typ = "UUID"
	default:
		return "", fmt.Errorf("unsupported column type %s", col.Type)
	}
	if col.AutoIncrement && col.PrimaryKey {
		typ += " GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY"
	}
	return typ, nil
}

func (ANSI) BoolLiteral(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func (ANSI) Random() string { return "RANDOM()" }

func (ANSI) Paging(limit, offset int, _ bool) string {
	var parts []string
	if offset > 0 {
		parts = append(parts, fmt.Sprintf("OFFSET %d ROWS", offset))
	}
	if limit > 0 {
		parts = append(parts, fmt.Sprintf("FETCH NEXT %d ROWS ONLY", limit))
	}
	return strings.Join(parts, " ")
}

func (a ANSI) InsertDefaultValues(table string) string {
	return "INSERT INTO " + a.Quote(table) + " DEFAULT VALUES"
}

func (ANSI) LastInsertID(_, _ string) string { return "SELECT LAST_INSERT_ID()" }

func (ANSI) MaxParams() int { return 0 }

func (ANSI) TableExists(bindVar string) string {
	return "SELECT 1 FROM information_schema.tables WHERE table_name = " + bindVar
}

// String renders a statement with the ANSI dialect, for logs.
func String(s Stmt) string {
	if c, ok := s.(*Composite); ok {
		rendered, err := RenderAll(c, ANSI{})
		if err != nil {
			return "<" + err.Error() + ">"
		}
		parts := make([]string, len(rendered))
		for i, r := range rendered {
			parts[i] = r.SQL
		}
		return strings.Join(parts, "; ")
	}
	r, err := Render(s, ANSI{})
	if err != nil {
		return "<" + err.Error() + ">"
	}
	return r.SQL
}
