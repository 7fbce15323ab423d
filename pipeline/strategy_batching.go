package pipeline

import (
	"context"
	"time"
)

// BatchingStrategy groups items from its input pipe into slices of up to
// Size items, flushing early once Window has elapsed since the Next call
// that requested the batch began. If the window elapses before any item has
// arrived, that batch waits for Size items or the end of input. An item
// still being pulled when the window flushes is carried into the next
// batch. The final batch, if non-empty and short of
// Size, is still emitted (a partial final batch) once input is exhausted.
type BatchingStrategy struct {
	Size   int
	Window time.Duration
}

func (BatchingStrategy) Name() string { return "Batching" }

// RunBatching wraps in as a Pipe of []T batches per strat.
func RunBatching[T any](in Pipe[T], strat BatchingStrategy) Pipe[[]T] {
	size := strat.Size
	if size <= 0 {
		size = 1
	}
	exhausted := false

	type pulled struct {
		item T
		ok   bool
		err  error
	}
	// pending carries an in.Next call still in flight when a window flush
	// returned early; the next batch receives its result first.
	var pending chan pulled

	return NewStreamPipe(in.Name(), func(ctx context.Context) ([]T, bool, error) {
		if exhausted {
			return nil, false, nil
		}

		var batch []T
		var deadline <-chan time.Time
		if strat.Window > 0 {
			timer := time.NewTimer(strat.Window)
			defer timer.Stop()
			deadline = timer.C
		}

		for len(batch) < size {
			if pending == nil {
				pending = make(chan pulled, 1)
				go func(ch chan<- pulled) {
					item, ok, err := in.Next(ctx)
					ch <- pulled{item, ok, err}
				}(pending)
			}

			select {
			case p := <-pending:
				pending = nil
				if p.err != nil {
					return nil, false, p.err
				}
				if !p.ok {
					exhausted = true
					if len(batch) == 0 {
						return nil, false, nil
					}
					return batch, true, nil
				}
				batch = append(batch, p.item)
			case <-deadline:
				if len(batch) == 0 {
					// Nothing buffered yet; keep waiting rather than emit
					// an empty batch on a bare window tick.
					deadline = nil
					continue
				}
				return batch, true, nil
			case <-ctx.Done():
				return nil, false, nil
			}
		}
		return batch, true, nil
	})
}

// UnbatchingStrategy is the inverse of BatchingStrategy: it flattens a Pipe
// of []T slices back into a Pipe of T, preserving both within-batch and
// across-batch order.
type UnbatchingStrategy struct{}

func (UnbatchingStrategy) Name() string { return "Unbatching" }

// RunUnbatching flattens in into a single-item-at-a-time pipe.
func RunUnbatching[T any](in Pipe[[]T]) Pipe[T] {
	var current []T
	var pos int
	return NewStreamPipe(in.Name(), func(ctx context.Context) (T, bool, error) {
		var zero T
		for pos >= len(current) {
			batch, ok, err := in.Next(ctx)
			if err != nil || !ok {
				return zero, false, err
			}
			current = batch
			pos = 0
		}
		item := current[pos]
		pos++
		return item, true, nil
	})
}
