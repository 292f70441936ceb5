// Package graphorm maps Go structs to relational tables. Entities are described once by a
// metadata.Schema; reads and writes go through views projected from those entities.
package graphorm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/chmenegatti/graphorm/materialize"
	"github.com/chmenegatti/graphorm/metadata"
	"github.com/chmenegatti/graphorm/pkg/config"
	"github.com/chmenegatti/graphorm/pkg/dialects"
	"github.com/chmenegatti/graphorm/pkg/dialects/common"
	"github.com/chmenegatti/graphorm/pkg/hooks"
	"github.com/chmenegatti/graphorm/pkg/logging"
	"github.com/chmenegatti/graphorm/pkg/sqlast"
	"github.com/chmenegatti/graphorm/query"
)

// ErrNotFound is returned by First when no row matches.
var ErrNotFound = errors.New("graphorm: record not found")

// Querier is implemented by *DB and *Tx.
type Querier interface {
	hooks.ContextDB
	state() *session
}

// session is what DB and Tx share: where statements run and what they are built from.
type session struct {
	provider Provider
	schema   *metadata.Schema
	logger   zerolog.Logger
	// owner is the *DB or *Tx handed to hooks.
	owner hooks.ContextDB
	// mu serializes the operations of a transaction. Nil on a pool.
	mu *sync.Mutex
}

func (s *session) Schema() *metadata.Schema { return s.schema }

func (s *session) state() *session { return s }

// Logger returns the logger statements are logged with.
func (s *session) Logger() zerolog.Logger { return s.logger }

// scope runs fn on one connection, holding the transaction lock when there is one.
func (s *session) scope(ctx context.Context, fn func(Provider) error) error {
	return s.locked(ctx, s.provider.Scope, fn)
}

func (s *session) locked(ctx context.Context, in func(context.Context, func(Provider) error) error, fn func(Provider) error) error {
	if s.mu != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	return in(ctx, fn)
}

// write runs a plan on one connection. A plan of several statements runs in a
// transaction, so a failing statement leaves none of the others applied.
func (s *session) write(ctx context.Context, plan *query.Plan, e *metadata.EntitySchema, table string) (Result, error) {
	in := s.provider.Scope
	if plan.Len() > 1 {
		in = s.provider.Atomic
	}
	var res Result
	err := s.locked(ctx, in, func(p Provider) error {
		var err error
		res, err = s.run(ctx, p, plan, e, table)
		return err
	})
	return res, err
}

// run executes the statements of plan in order. A key read by a write-back statement is
// stored into its entity before the entity's collection links are inserted.
func (s *session) run(ctx context.Context, p Provider, plan *query.Plan, e *metadata.EntitySchema, table string) (Result, error) {
	var res Result
	writebacks := make(map[int]query.Writeback, len(plan.Writebacks))
	for _, wb := range plan.Writebacks {
		writebacks[wb.Index] = wb
	}

	for i, stmt := range plan.Statement.Statements {
		res.Statements++
		if wb, ok := writebacks[i]; ok {
			n, err := s.writeback(ctx, p, stmt, wb, e)
			if err != nil {
				return res, fmt.Errorf("statement %d: %w", i, err)
			}
			res.Statements += n
			continue
		}
		if sqlast.IsQuery(stmt) {
			rows, err := p.Query(ctx, stmt)
			if err != nil {
				return res, fmt.Errorf("statement %d: %w", i, err)
			}
			rows.Close()
			continue
		}
		r, err := p.Exec(ctx, stmt)
		if err != nil {
			return res, fmt.Errorf("statement %d: %w", i, err)
		}
		if targets(stmt, table) {
			if n, err := r.RowsAffected(); err == nil {
				res.RowsAffected += n
			}
		}
	}
	return res, nil
}

// writeback reads the generated key and stores it, then inserts the links of the entity.
// It returns the number of link statements run.
func (s *session) writeback(ctx context.Context, p Provider, stmt sqlast.Stmt, wb query.Writeback, e *metadata.EntitySchema) (int, error) {
	raw, err := queryValue(ctx, p, stmt)
	if err != nil {
		return 0, err
	}
	if raw == nil {
		return 0, fmt.Errorf("%s.%s: no generated key", e.Name, wb.Column.Name)
	}
	key, err := materialize.Read(raw, wb.Target.Type())
	if err != nil {
		return 0, fmt.Errorf("%s.%s: %w", e.Name, wb.Column.Name, err)
	}
	wb.Target.Set(key)
	s.logger.Debug().Str("entity", e.Name).Interface("key", key.Interface()).Msg("generated key")

	links := query.Links(e, wb.Entity)
	for _, link := range links {
		if _, err := p.Exec(ctx, link); err != nil {
			return 0, err
		}
	}
	return len(links), nil
}

// queryValue returns the first column of the first row, or nil without rows.
func queryValue(ctx context.Context, p Provider, stmt sqlast.Stmt) (any, error) {
	rows, err := p.Query(ctx, stmt)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var raw any
	if rows.Next() {
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
	}
	return raw, rows.Err()
}

// DB is the handle to one database and the schema of its entities. It is safe for
// concurrent use.
type DB struct {
	*session
	sqlDB  *sql.DB
	closer io.Closer
}

// Option configures a DB.
type Option func(*DB)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(db *DB) { db.logger = l }
}

// WithProvider replaces the provider statements run on, ex: to wrap it with tracing.
func WithProvider(p Provider) Option {
	return func(db *DB) { db.provider = p }
}

// New returns a DB over an open pool.
func New(sqlDB *sql.DB, d common.Dialect, schema *metadata.Schema, opts ...Option) *DB {
	db := &DB{session: &session{schema: schema, logger: zerolog.Nop()}, sqlDB: sqlDB}
	for _, opt := range opts {
		opt(db)
	}
	if db.provider == nil {
		db.provider = NewSQLProvider(sqlDB, d, db.logger)
	}
	db.owner = db
	return db
}

// Open connects the data source registered for cfg.Database.Dialect and builds the schema of
// the entities define registers. The driver package must be imported for its side effect.
func Open(cfg config.Config, define func(b *metadata.Builder)) (*DB, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logging, os.Stderr)
	if err != nil {
		return nil, err
	}

	b := metadata.NewBuilder(
		metadata.WithNamingStrategy(metadata.DefaultNamingStrategy{SingularTables: cfg.Schema.SingularTables}),
		metadata.WithLogger(logger),
	)
	if define != nil {
		define(b)
	}
	schema, err := b.Build()
	if err != nil {
		return nil, err
	}

	ds, err := dialects.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	db := New(ds.DB(), ds.Dialect(), schema, WithLogger(logger))
	db.closer = ds
	logger.Info().Str("dialect", cfg.Database.Dialect).Int("entities", len(schema.Entities())).Msg("database opened")
	return db, nil
}

// Close closes the pool.
func (db *DB) Close() error {
	if db.closer != nil {
		return db.closer.Close()
	}
	return db.sqlDB.Close()
}

// Ping checks the database connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.sqlDB.PingContext(ctx)
}

// SQL returns the underlying pool.
func (db *DB) SQL() *sql.DB { return db.sqlDB }

// Dialect returns the dialect statements are rendered with.
func (db *DB) Dialect() common.Dialect { return db.provider.Dialect() }

// TableExists reports whether the table exists.
func (db *DB) TableExists(ctx context.Context, table string) (bool, error) {
	var found bool
	err := db.scope(ctx, func(p Provider) error {
		var err error
		found, err = tableExists(ctx, p, table)
		return err
	})
	return found, err
}

func tableExists(ctx context.Context, p Provider, table string) (bool, error) {
	rows, err := p.Query(ctx, &sqlast.TableExists{Table: table})
	if err != nil {
		return false, fmt.Errorf("check table %s: %w", table, err)
	}
	defer rows.Close()
	found := rows.Next()
	return found, rows.Err()
}

// CreateTables creates the table of every entity and junction, with their indexes, in
// dependency order. Tables that already exist are left untouched.
func (db *DB) CreateTables(ctx context.Context) error {
	return db.scope(ctx, func(p Provider) error {
		for _, t := range db.schema.Tables() {
			exists, err := tableExists(ctx, p, t.Name)
			if err != nil {
				return err
			}
			if exists {
				db.logger.Debug().Str("table", t.Name).Msg("table exists")
				continue
			}
			db.logger.Info().Str("table", t.Name).Msg("creating table")
			for _, stmt := range query.CreateTable(t) {
				if _, err := p.Exec(ctx, stmt); err != nil {
					return fmt.Errorf("create table %s: %w", t.Name, err)
				}
			}
		}
		return nil
	})
}

// Begin starts a transaction. Operations on the returned Tx run one at a time.
func (db *DB) Begin(ctx context.Context, opts *sql.TxOptions) (*Tx, error) {
	sqlTx, err := db.sqlDB.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	var provider Provider
	if sp, ok := db.provider.(*SQLProvider); ok {
		provider = sp.bind(sqlTx)
	} else {
		provider = NewSQLProvider(db.sqlDB, db.provider.Dialect(), db.logger).bind(sqlTx)
	}
	tx := &Tx{
		session: &session{
			provider: provider,
			schema:   db.schema,
			logger:   db.logger,
			mu:       &sync.Mutex{},
		},
		sqlTx: sqlTx,
	}
	tx.owner = tx
	db.logger.Debug().Msg("transaction begun")
	return tx, nil
}

// Transaction runs fn in a transaction, committed when fn returns nil and rolled back
// otherwise.
func (db *DB) Transaction(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := db.Begin(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

// Tx is an open transaction. It is safe for concurrent use; its operations are serialized.
type Tx struct {
	*session
	sqlTx *sql.Tx
}

// Commit commits the transaction.
func (tx *Tx) Commit() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	if err := tx.sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	tx.logger.Debug().Msg("transaction committed")
	return nil
}

// Rollback aborts the transaction. Rolling back a finished transaction is not an error.
func (tx *Tx) Rollback() error {
	tx.mu.Lock()
	defer tx.mu.Unlock()
	err := tx.sqlTx.Rollback()
	if err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	tx.logger.Debug().Msg("transaction rolled back")
	return nil
}
