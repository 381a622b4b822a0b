package risk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alanyoungcy/riskgate/internal/domain"
)

// callWithTimeout runs fn on its own goroutine and waits at most timeout for
// it. A panic inside fn is returned as an error. On timeout fn keeps running
// until it observes its cancelled context; its result is discarded.
func callWithTimeout[T any](ctx context.Context, timeout time.Duration, module string, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		val T
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- outcome{err: fmt.Errorf("risk: %s panicked: %v", module, r)}
			}
		}()
		v, err := fn(ctx)
		ch <- outcome{val: v, err: err}
	}()

	select {
	case o := <-ch:
		return o.val, o.err
	case <-ctx.Done():
		var zero T
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return zero, fmt.Errorf("%w: %s after %s", domain.ErrCollaboratorTimeout, module, timeout)
		}
		return zero, fmt.Errorf("risk: %s: %w", module, ctx.Err())
	}
}
