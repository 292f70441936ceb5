package graphorm

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/chmenegatti/graphorm/pkg/dialects/common"
	"github.com/chmenegatti/graphorm/pkg/sqlast"
)

// Provider executes statement trees against one database. Rendering into SQL text is the
// provider's concern, so a statement tree stays independent of the engine.
type Provider interface {
	// Exec runs a statement yielding no rows.
	Exec(ctx context.Context, stmt sqlast.Stmt) (sql.Result, error)

	// Query runs a statement yielding rows. The caller closes them.
	Query(ctx context.Context, stmt sqlast.Stmt) (*sql.Rows, error)

	// Scope runs fn with a provider bound to a single connection, so session state such
	// as the last generated key survives between statements. A bound provider passes
	// itself.
	Scope(ctx context.Context, fn func(Provider) error) error

	// Atomic runs fn with a provider bound to one transaction, committed when fn returns
	// nil and rolled back otherwise. A provider already in a transaction passes itself.
	Atomic(ctx context.Context, fn func(Provider) error) error

	Dialect() common.Dialect
}

// executor is the part of *sql.DB, *sql.Conn and *sql.Tx the provider runs statements on.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// beginner is implemented by *sql.DB and *sql.Conn.
type beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// SQLProvider implements Provider over database/sql.
type SQLProvider struct {
	db      *sql.DB
	exec    executor
	bound   bool
	inTx    bool
	dialect common.Dialect
	logger  zerolog.Logger
}

var _ Provider = (*SQLProvider)(nil)

// NewSQLProvider returns a provider running statements on the pool.
func NewSQLProvider(db *sql.DB, d common.Dialect, logger zerolog.Logger) *SQLProvider {
	return &SQLProvider{db: db, exec: db, dialect: d, logger: logger}
}

// bind returns a provider running every statement on exec.
func (p *SQLProvider) bind(exec executor) *SQLProvider {
	_, inTx := exec.(*sql.Tx)
	return &SQLProvider{db: p.db, exec: exec, bound: true, inTx: inTx, dialect: p.dialect, logger: p.logger}
}

func (p *SQLProvider) Dialect() common.Dialect { return p.dialect }

func (p *SQLProvider) render(stmt sqlast.Stmt) (sqlast.Rendered, error) {
	r, err := sqlast.Render(stmt, p.dialect)
	if err != nil {
		return r, fmt.Errorf("render %T: %w", stmt, err)
	}
	p.logger.Debug().Str("sql", r.SQL).Interface("args", r.Args).Msg("statement")
	return r, nil
}

func (p *SQLProvider) Exec(ctx context.Context, stmt sqlast.Stmt) (sql.Result, error) {
	r, err := p.render(stmt)
	if err != nil {
		return nil, err
	}
	return p.exec.ExecContext(ctx, r.SQL, r.Args...)
}

func (p *SQLProvider) Query(ctx context.Context, stmt sqlast.Stmt) (*sql.Rows, error) {
	r, err := p.render(stmt)
	if err != nil {
		return nil, err
	}
	return p.exec.QueryContext(ctx, r.SQL, r.Args...)
}

func (p *SQLProvider) Scope(ctx context.Context, fn func(Provider) error) error {
	if p.bound {
		return fn(p)
	}
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Close()
	return fn(p.bind(conn))
}

func (p *SQLProvider) Atomic(ctx context.Context, fn func(Provider) error) error {
	if p.inTx {
		return fn(p)
	}
	var b beginner = p.db
	if conn, ok := p.exec.(*sql.Conn); ok {
		b = conn
	}
	tx, err := b.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(p.bind(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}
