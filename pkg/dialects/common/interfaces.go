// pkg/dialects/common/interfaces.go
package common

import (
	"context"
	"database/sql"
	"io"

	"github.com/chmenegatti/graphorm/pkg/config"
	"github.com/chmenegatti/graphorm/pkg/sqlast"
)

// Dialect defines the characteristics and syntax specific to one database engine.
// The SQL text hooks come from sqlast.Dialect; DriverName is the database/sql driver
// the dialect opens connections with.
type Dialect interface {
	sqlast.Dialect

	// DriverName returns the name registered with database/sql (ex: "sqlite3", "pgx").
	DriverName() string

	// NormalizeDSN adjusts a user supplied DSN with parameters the engine relies on,
	// ex: parseTime=true for MySQL so DATETIME columns scan into time.Time.
	NormalizeDSN(dsn string) string
}

// DataSource represents a configured data source and owns its connection pool.
type DataSource interface {
	io.Closer

	// Connect opens the pool from the configuration and verifies it with a ping.
	Connect(cfg config.DatabaseConfig) error

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// DB returns the underlying pool, or nil before Connect.
	DB() *sql.DB

	// Dialect returns the dialect associated with this data source.
	Dialect() Dialect
}
