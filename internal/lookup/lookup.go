// Package lookup calls external collaborators with a deadline and falls back
// to a known value instead of failing.
package lookup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/icodeforyou/bessquote/internal/model"
	"github.com/icodeforyou/bessquote/types/maybe"
)

const defaultTimeout = 2 * time.Second

type Fetch[T any] func(ctx context.Context) (T, error)

type Resolver struct {
	timeout time.Duration
	logger  *slog.Logger
}

func NewResolver(timeout time.Duration) Resolver {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return Resolver{
		timeout: timeout,
		logger:  slog.Default().With("module", "lookup"),
	}
}

func (r Resolver) Timeout() time.Duration {
	return r.timeout
}

// Resolve returns what fetch returns when it succeeds within the resolver
// timeout. Otherwise it returns fallback together with a note naming the
// dependency. A fetch that ignores its context is abandoned, not waited for.
func Resolve[T any](ctx context.Context, r Resolver, dependency, fallbackName string, fetch Fetch[T], fallback T) (T, maybe.Maybe[model.Degradation]) {
	reason := "no lookup configured"
	if fetch != nil {
		v, err := call(ctx, r.timeout, fetch)
		if err == nil {
			return v, maybe.None[model.Degradation]()
		}
		reason = err.Error()
	}

	r.logger.Warn("lookup degraded",
		slog.String("dependency", dependency),
		slog.String("fallback", fallbackName),
		slog.String("reason", reason))

	return fallback, maybe.Some(model.Degradation{
		Dependency: dependency,
		Fallback:   fallbackName,
		Reason:     reason,
	})
}

func call[T any](ctx context.Context, timeout time.Duration, fetch Fetch[T]) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		value T
		err   error
	}
	ch := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				ch <- result{err: fmt.Errorf("lookup panicked: %v", p)}
			}
		}()
		v, err := fetch(ctx)
		ch <- result{value: v, err: err}
	}()

	select {
	case res := <-ch:
		return res.value, res.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}
