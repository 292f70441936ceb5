// driver/sqlite/sqlite_test.go
package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chmenegatti/graphorm/metadata"
	"github.com/chmenegatti/graphorm/pkg/config"
	"github.com/chmenegatti/graphorm/pkg/dialects"
	"github.com/chmenegatti/graphorm/pkg/sqlast"
)

func TestSQLiteConnectionAndPing(t *testing.T) {
	dbFilePath := filepath.Join(t.TempDir(), "test_connection.db")

	factory := dialects.Get("sqlite")
	require.NotNil(t, factory, "sqlite should register itself on import")
	dataSource := factory()

	err := dataSource.Connect(config.DatabaseConfig{Dialect: "sqlite", DSN: dbFilePath})
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, dataSource.Close())
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, dataSource.Ping(ctx))
	assert.Equal(t, "sqlite", dataSource.Dialect().Name())
	assert.Equal(t, 1, dataSource.DB().Stats().MaxOpenConnections)

	assert.Error(t, dataSource.Connect(config.DatabaseConfig{Dialect: "sqlite", DSN: dbFilePath}), "second Connect must fail")
}

func TestSQLiteConnect_DialectMismatch(t *testing.T) {
	err := NewDataSource().Connect(config.DatabaseConfig{Dialect: "mysql", DSN: "x.db"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not match datasource dialect 'sqlite'")
}

func TestSQLiteColumnType(t *testing.T) {
	testCases := []struct {
		col  sqlast.ColumnDef
		want string
	}{
		{sqlast.ColumnDef{Type: metadata.SQLType{Kind: metadata.KindInt64}, PrimaryKey: true, AutoIncrement: true}, "INTEGER PRIMARY KEY AUTOINCREMENT"},
		{sqlast.ColumnDef{Type: metadata.SQLType{Kind: metadata.KindInt32}}, "INTEGER"},
		{sqlast.ColumnDef{Type: metadata.SQLType{Kind: metadata.KindBool}}, "BOOLEAN"},
		{sqlast.ColumnDef{Type: metadata.SQLType{Kind: metadata.KindText, Length: metadata.Unbounded}}, "TEXT"},
		{sqlast.ColumnDef{Type: metadata.SQLType{Kind: metadata.KindText, Length: 40}}, "VARCHAR(40)"},
		{sqlast.ColumnDef{Type: metadata.SQLType{Kind: metadata.KindDecimal, Precision: 10, Scale: 2}}, "DECIMAL(10,2)"},
		{sqlast.ColumnDef{Type: metadata.SQLType{Kind: metadata.KindDateTime}}, "DATETIME"},
		{sqlast.ColumnDef{Type: metadata.SQLType{Kind: metadata.KindUUID}}, "CHAR(36)"},
	}
	for _, tc := range testCases {
		got, err := Dialect{}.ColumnType(tc.col)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := Dialect{}.ColumnType(sqlast.ColumnDef{Type: metadata.SQLType{Kind: metadata.KindUUID}, PrimaryKey: true, AutoIncrement: true})
	assert.Error(t, err)
}

func TestSQLitePaging(t *testing.T) {
	d := Dialect{}
	assert.Equal(t, "LIMIT 10", d.Paging(10, 0, false))
	assert.Equal(t, "LIMIT 10 OFFSET 5", d.Paging(10, 5, true))
	assert.Equal(t, "LIMIT -1 OFFSET 5", d.Paging(0, 5, false))
}

func TestSQLiteTableExists(t *testing.T) {
	ds := NewDataSource()
	require.NoError(t, ds.Connect(config.DatabaseConfig{Dialect: "sqlite", DSN: ":memory:"}))
	t.Cleanup(func() { _ = ds.Close() })

	ctx := context.Background()
	_, err := ds.DB().ExecContext(ctx, `CREATE TABLE "things" ("id" INTEGER PRIMARY KEY AUTOINCREMENT)`)
	require.NoError(t, err)

	r, err := sqlast.Render(&sqlast.TableExists{Table: "things"}, Dialect{})
	require.NoError(t, err)

	rows, err := ds.DB().QueryContext(ctx, r.SQL, r.Args...)
	require.NoError(t, err)
	found := rows.Next()
	require.NoError(t, rows.Close())
	assert.True(t, found)

	rows, err = ds.DB().QueryContext(ctx, r.SQL, "missing")
	require.NoError(t, err)
	found = rows.Next()
	require.NoError(t, rows.Close())
	assert.False(t, found)
}
