package client

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Future holds the result of an operation started with Go
type Future[T any] struct {
	group  errgroup.Group
	done   chan struct{}
	result T
	err    error
}

// Go runs fn in a new goroutine and returns a future for its result
func Go[T any](ctx context.Context, fn func(context.Context) (T, error)) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}

	f.group.Go(func() error {
		var err error
		f.result, err = fn(ctx)
		return err
	})

	go func() {
		defer close(f.done)
		f.err = f.group.Wait()
	}()

	return f
}

func (f *Future[T]) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the operation completes or ctx is done
func (f *Future[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-f.done:
		return f.result, f.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// WaitAll waits for every future. The first failure cancels the wait for the rest.
func WaitAll[T any](ctx context.Context, futures ...*Future[T]) ([]T, error) {
	g, ctx := errgroup.WithContext(ctx)
	results := make([]T, len(futures))

	for i, f := range futures {
		g.Go(func() error {
			result, err := f.Wait(ctx)
			results[i] = result
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return results, nil
}
