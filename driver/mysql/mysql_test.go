// driver/mysql/mysql_test.go
package mysql_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chmenegatti/graphorm/driver/mysql"
	"github.com/chmenegatti/graphorm/metadata"
	"github.com/chmenegatti/graphorm/pkg/config"
	"github.com/chmenegatti/graphorm/pkg/dialects"
	"github.com/chmenegatti/graphorm/pkg/sqlast"
)

func TestMySQLNormalizeDSN(t *testing.T) {
	d := mysql.Dialect{}
	assert.Contains(t, d.NormalizeDSN("user:pass@tcp(localhost:3306)/app"), "parseTime=true")
	assert.Contains(t, d.NormalizeDSN("user:pass@tcp(localhost:3306)/app?charset=utf8mb4"), "charset=utf8mb4")
	assert.Equal(t, "::not a dsn", d.NormalizeDSN("::not a dsn"))
}

func TestMySQLColumnType(t *testing.T) {
	testCases := []struct {
		col  sqlast.ColumnDef
		want string
	}{
		{sqlast.ColumnDef{Type: metadata.SQLType{Kind: metadata.KindInt64}, PrimaryKey: true, AutoIncrement: true}, "BIGINT NOT NULL AUTO_INCREMENT PRIMARY KEY"},
		{sqlast.ColumnDef{Type: metadata.SQLType{Kind: metadata.KindUint32}}, "INT UNSIGNED"},
		{sqlast.ColumnDef{Type: metadata.SQLType{Kind: metadata.KindBool}}, "TINYINT(1)"},
		{sqlast.ColumnDef{Type: metadata.SQLType{Kind: metadata.KindFloat, Precision: 53}}, "DOUBLE"},
		{sqlast.ColumnDef{Type: metadata.SQLType{Kind: metadata.KindFloat, Precision: 24}}, "FLOAT"},
		{sqlast.ColumnDef{Type: metadata.SQLType{Kind: metadata.KindText, Length: 80}}, "VARCHAR(80)"},
		{sqlast.ColumnDef{Type: metadata.SQLType{Kind: metadata.KindText, Length: metadata.Unbounded}}, "LONGTEXT"},
		{sqlast.ColumnDef{Type: metadata.SQLType{Kind: metadata.KindBinary, Length: 16}}, "BINARY(16)"},
		{sqlast.ColumnDef{Type: metadata.SQLType{Kind: metadata.KindDateTime}}, "DATETIME(6)"},
	}
	for _, tc := range testCases {
		got, err := mysql.Dialect{}.ColumnType(tc.col)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}
}

func TestMySQLRender(t *testing.T) {
	r, err := sqlast.Render(&sqlast.Select{
		Columns: []sqlast.Expr{sqlast.Col("authors", "id")},
		From:    sqlast.TableRef{Name: "authors"},
		Limit:   5,
		Offset:  10,
	}, mysql.Dialect{})
	require.NoError(t, err)
	assert.Equal(t, "SELECT `authors`.`id` FROM `authors` LIMIT 5 OFFSET 10", r.SQL)

	r, err = sqlast.Render(&sqlast.Insert{Table: "authors"}, mysql.Dialect{})
	require.NoError(t, err)
	assert.Equal(t, "INSERT INTO `authors` () VALUES ()", r.SQL)
}

// TestMySQLConnectionAndPing needs a live server: TEST_MYSQL_DSN=user:pass@tcp(host:3306)/db
func TestMySQLConnectionAndPing(t *testing.T) {
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		t.Skip("TEST_MYSQL_DSN not set, skipping MySQL integration test")
	}
	ds := dialects.Get("mysql")()
	require.NoError(t, ds.Connect(config.DatabaseConfig{Dialect: "mysql", DSN: dsn}))
	t.Cleanup(func() { _ = ds.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, ds.Ping(ctx))
}
