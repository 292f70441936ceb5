package graphorm

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Future is the pending result of an operation started with Go.
type Future[T any] struct {
	done chan struct{}
	val  T
	err  error
}

// Go runs fn in its own goroutine. The statements it builds and the values it
// materializes are the same as when called directly.
func Go[T any](ctx context.Context, fn func(ctx context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.val, f.err = fn(ctx)
	}()
	return f
}

// Await waits for the result, or for ctx to be done.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.val, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Done is closed once the result is available.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// InsertAsync is Insert run with Go.
func InsertAsync[E any](ctx context.Context, q Querier, entities ...*E) *Future[Result] {
	return Go(ctx, func(ctx context.Context) (Result, error) {
		return Insert(ctx, q, entities...)
	})
}

// SelectAsync is Select run with Go.
func SelectAsync[E, V any](ctx context.Context, q Querier, opts ...FindOption) *Future[[]V] {
	return Go(ctx, func(ctx context.Context) ([]V, error) {
		return Select[E, V](ctx, q, opts...)
	})
}

// All runs fns concurrently and returns the first error. The context passed to fns is
// canceled as soon as one fails.
func All(ctx context.Context, fns ...func(ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, fn := range fns {
		g.Go(func() error { return fn(gctx) })
	}
	return g.Wait()
}
