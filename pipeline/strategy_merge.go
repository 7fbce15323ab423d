package pipeline

import (
	"context"
	"sync"
)

// RunMergeConcatenate drains sources strictly in order: all of sources[0],
// then all of sources[1], and so on.
func RunMergeConcatenate[T any](name string, sources []Pipe[T]) Pipe[T] {
	idx := 0
	return NewStreamPipe(name, func(ctx context.Context) (T, bool, error) {
		var zero T
		for idx < len(sources) {
			item, ok, err := sources[idx].Next(ctx)
			if err != nil {
				return zero, false, err
			}
			if ok {
				return item, true, nil
			}
			idx++
		}
		return zero, false, nil
	})
}

// RunMergeInterleave multiplexes sources through a mailbox channel bounded
// by capacity. capacity<=0 ("unbounded" per §6's configuration surface) is
// approximated with a channel sized to one slot per source rather than a
// truly unbounded Go channel, so a fast producer still waits on a slow
// consumer instead of growing memory without limit; a caller that genuinely
// wants unbounded growth can pass a capacity larger than any source could
// produce. Per-source order is preserved; the order items from distinct
// sources interleave in is not guaranteed.
func RunMergeInterleave[T any](ctx context.Context, name string, sources []Pipe[T], capacity int) Pipe[T] {
	if capacity <= 0 {
		capacity = len(sources)
		if capacity == 0 {
			capacity = 1
		}
	}
	mailbox := make(chan mergeItem[T], capacity)

	var wg sync.WaitGroup
	for _, src := range sources {
		wg.Add(1)
		go func(p Pipe[T]) {
			defer wg.Done()
			for {
				item, ok, err := p.Next(ctx)
				if err != nil {
					select {
					case mailbox <- mergeItem[T]{err: err}:
					case <-ctx.Done():
					}
					return
				}
				if !ok {
					return
				}
				select {
				case mailbox <- mergeItem[T]{value: item, ok: true}:
				case <-ctx.Done():
					return
				}
			}
		}(src)
	}

	go func() {
		wg.Wait()
		close(mailbox)
	}()

	return NewStreamPipe(name, func(ctx context.Context) (T, bool, error) {
		var zero T
		select {
		case m, chOpen := <-mailbox:
			if !chOpen {
				return zero, false, nil
			}
			if m.err != nil {
				return zero, false, m.err
			}
			return m.value, true, nil
		case <-ctx.Done():
			return zero, false, nil
		}
	})
}

type mergeItem[T any] struct {
	value T
	ok    bool
	err   error
}

// RunMergeCustom hands sources to fn and returns whatever Pipe it builds.
// The node descriptor's MergeConfig.CustomMerge field is the typed
// entrypoint a graph author uses to reach this; the runner performs the
// any-boxing/unboxing around typed pipes.
func RunMergeCustom(ctx *ExecutionContext, sources []Pipe[any], fn func(*ExecutionContext, []Pipe[any]) (Pipe[any], error)) (Pipe[any], error) {
	return fn(ctx, sources)
}
