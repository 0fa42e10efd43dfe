package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestFutureReportsFailure(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	failure := errors.New("boom")
	f := Go(ctx, func(context.Context) (int, error) { return 0, failure })

	<-f.Done()

	_, err := f.Wait(ctx)
	is.True(errors.Is(err, failure))
}

func TestWaitOnCancelledContext(t *testing.T) {
	is := is.New(t)

	release := make(chan struct{})
	defer close(release)

	f := Go(context.Background(), func(context.Context) (int, error) {
		<-release
		return 1, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := f.Wait(ctx)
	is.True(errors.Is(err, context.DeadlineExceeded))
}

func TestWaitAllCollectsResultsInOrder(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	value := func(v int) func(context.Context) (int, error) {
		return func(context.Context) (int, error) { return v, nil }
	}

	results, err := WaitAll(ctx, Go(ctx, value(1)), Go(ctx, value(2)), Go(ctx, value(3)))
	is.NoErr(err)
	is.Equal(results, []int{1, 2, 3})
}

func TestWaitAllStopsOnFirstFailure(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	release := make(chan struct{})
	defer close(release)

	failure := errors.New("boom")

	slow := Go(ctx, func(context.Context) (int, error) {
		<-release
		return 1, nil
	})
	failing := Go(ctx, func(context.Context) (int, error) { return 0, failure })

	_, err := WaitAll(ctx, slow, failing)
	is.True(errors.Is(err, failure))
}
