package schedule

import (
	"context"

	"github.com/arborlabs/arbor/pkg/domain"
)

// Join unifies several futures into one. The joined future resolves to the
// slice of all values once every input completes; if any input failed, it
// rejects with the first error in input order, after all inputs have been
// attempted.
func Join(ctx context.Context, futures ...*domain.Future) *domain.Future {
	out := domain.NewFuture()
	go func() {
		values := make([]any, len(futures))
		var firstErr error
		for i, f := range futures {
			v, err := f.Await(ctx)
			if err != nil && firstErr == nil {
				firstErr = err
			}
			values[i] = v
		}
		if firstErr != nil {
			out.Reject(firstErr)
			return
		}
		out.Resolve(values)
	}()
	return out
}
