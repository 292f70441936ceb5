// pkg/dialects/common/datasource.go
package common

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chmenegatti/graphorm/pkg/config"
)

var (
	ErrNotConnected     = errors.New("datasource is not connected")
	ErrAlreadyConnected = errors.New("datasource is already connected")
)

// connectTimeout bounds the ping issued by Connect.
const connectTimeout = 5 * time.Second

// SQLDataSource is the database/sql backed DataSource shared by every driver package.
type SQLDataSource struct {
	dialect Dialect
	mu      sync.RWMutex
	db      *sql.DB
}

var _ DataSource = (*SQLDataSource)(nil)

// NewSQLDataSource returns an unconnected data source for the dialect.
func NewSQLDataSource(d Dialect) *SQLDataSource {
	return &SQLDataSource{dialect: d}
}

// Connect establishes the connection pool.
func (ds *SQLDataSource) Connect(cfg config.DatabaseConfig) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.db != nil {
		return fmt.Errorf("%s: %w", ds.dialect.Name(), ErrAlreadyConnected)
	}
	if cfg.Dialect != ds.dialect.Name() {
		return fmt.Errorf("configuration dialect '%s' does not match datasource dialect '%s'", cfg.Dialect, ds.dialect.Name())
	}
	if cfg.DSN == "" {
		return fmt.Errorf("database DSN is required in configuration")
	}

	db, err := sql.Open(ds.dialect.DriverName(), ds.dialect.NormalizeDSN(cfg.DSN))
	if err != nil {
		return fmt.Errorf("failed to open %s connection using driver '%s': %w", ds.dialect.Name(), ds.dialect.DriverName(), err)
	}

	if cfg.Pool.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.Pool.MaxIdleConns)
	}
	if cfg.Pool.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.Pool.MaxOpenConns)
	}
	if cfg.Pool.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.Pool.ConnMaxLifetime)
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping %s database: %w", ds.dialect.Name(), err)
	}

	ds.db = db
	return nil
}

// Close closes the pool.
func (ds *SQLDataSource) Close() error {
	ds.mu.Lock()
	defer ds.mu.Unlock()
	if ds.db == nil {
		return fmt.Errorf("%s: %w", ds.dialect.Name(), ErrNotConnected)
	}
	err := ds.db.Close()
	ds.db = nil
	return err
}

// Ping verifies the pool is reachable.
func (ds *SQLDataSource) Ping(ctx context.Context) error {
	db := ds.DB()
	if db == nil {
		return fmt.Errorf("%s: %w", ds.dialect.Name(), ErrNotConnected)
	}
	return db.PingContext(ctx)
}

// DB returns the pool, or nil when not connected.
func (ds *SQLDataSource) DB() *sql.DB {
	ds.mu.RLock()
	defer ds.mu.RUnlock()
	return ds.db
}

// Dialect returns the data source dialect.
func (ds *SQLDataSource) Dialect() Dialect { return ds.dialect }
