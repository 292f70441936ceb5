// pkg/hooks/hooks.go
package hooks

import (
	"context"

	"github.com/chmenegatti/graphorm/metadata"
)

// ContextDB represents the database or transaction context passed to hooks.
// Both *graphorm.DB and *graphorm.Tx implement it.
type ContextDB interface {
	Schema() *metadata.Schema
}

// --- Insert Hooks ---

type BeforeInserter interface {
	// Called before the INSERT is built, so client keys and defaults may still be set.
	BeforeInsert(ctx context.Context, db ContextDB) error
}

type AfterInserter interface {
	// Called once server-assigned keys were written back.
	AfterInsert(ctx context.Context, db ContextDB) error
}

// --- Update Hooks ---

type BeforeUpdater interface {
	BeforeUpdate(ctx context.Context, db ContextDB) error
}

type AfterUpdater interface {
	AfterUpdate(ctx context.Context, db ContextDB) error
}

// --- Delete Hooks ---

type BeforeDeleter interface {
	BeforeDelete(ctx context.Context, db ContextDB) error
}

type AfterDeleter interface {
	AfterDelete(ctx context.Context, db ContextDB) error
}

// --- Find Hooks ---

type AfterFinder interface {
	// Called after each view is materialized, collections included.
	AfterFind(ctx context.Context, db ContextDB) error
}

// Each calls fn for every value implementing H and stops at the first error.
func Each[H any](values []any, fn func(H) error) error {
	for _, v := range values {
		if h, ok := v.(H); ok {
			if err := fn(h); err != nil {
				return err
			}
		}
	}
	return nil
}

// BeforeInsert runs the BeforeInsert hooks of values.
func BeforeInsert(ctx context.Context, db ContextDB, values ...any) error {
	return Each(values, func(h BeforeInserter) error { return h.BeforeInsert(ctx, db) })
}

// AfterInsert runs the AfterInsert hooks of values.
func AfterInsert(ctx context.Context, db ContextDB, values ...any) error {
	return Each(values, func(h AfterInserter) error { return h.AfterInsert(ctx, db) })
}

// BeforeUpdate runs the BeforeUpdate hooks of values.
func BeforeUpdate(ctx context.Context, db ContextDB, values ...any) error {
	return Each(values, func(h BeforeUpdater) error { return h.BeforeUpdate(ctx, db) })
}

// AfterUpdate runs the AfterUpdate hooks of values.
func AfterUpdate(ctx context.Context, db ContextDB, values ...any) error {
	return Each(values, func(h AfterUpdater) error { return h.AfterUpdate(ctx, db) })
}

// BeforeDelete runs the BeforeDelete hooks of values.
func BeforeDelete(ctx context.Context, db ContextDB, values ...any) error {
	return Each(values, func(h BeforeDeleter) error { return h.BeforeDelete(ctx, db) })
}

// AfterDelete runs the AfterDelete hooks of values.
func AfterDelete(ctx context.Context, db ContextDB, values ...any) error {
	return Each(values, func(h AfterDeleter) error { return h.AfterDelete(ctx, db) })
}

// AfterFind runs the AfterFind hooks of values.
func AfterFind(ctx context.Context, db ContextDB, values ...any) error {
	return Each(values, func(h AfterFinder) error { return h.AfterFind(ctx, db) })
}
