package pipeline

import "context"

// CappedReplayablePipe wraps a Pipe[T] so a downstream consumer can restart
// after a transient failure without re-invoking an expensive upstream. It
// buffers up to Cap items; exceeding Cap fails with a
// *ResourceExhaustedError{Kind: MaterializationCapExceeded}.
//
// When a cap is configured, buffering happens eagerly at construction time
// so the cap is enforced deterministically before any consumer ever sees a
// failure partway through a pass (§4.2). With no cap (Cap < 0), items are
// buffered lazily as the first pass consumes them.
type CappedReplayablePipe[T any] struct {
	name        string
	inner       Pipe[T]
	cap         int
	buffer      []T
	bufferedAll bool
	pos         int
}

// NewCappedReplayablePipe wraps inner with a replay buffer capped at cap
// items (cap < 0 means unbounded). When cap >= 0 the wrapped pipe is fully
// drained immediately; if it would emit more than cap items this returns a
// *ResourceExhaustedError instead of a pipe.
func NewCappedReplayablePipe[T any](ctx context.Context, inner Pipe[T], cap int) (*CappedReplayablePipe[T], error) {
	p := &CappedReplayablePipe[T]{name: inner.Name(), inner: inner, cap: cap}
	if cap < 0 {
		return p, nil
	}
	for {
		item, ok, err := inner.Next(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			p.bufferedAll = true
			return p, nil
		}
		if len(p.buffer) >= cap {
			return nil, &ResourceExhaustedError{Kind: MaterializationCapExceeded, Cap: cap}
		}
		p.buffer = append(p.buffer, item)
	}
}

func (p *CappedReplayablePipe[T]) Name() string { return p.name }

// Next replays buffered items first (across all passes), then pulls fresh
// items from inner while respecting the cap.
func (p *CappedReplayablePipe[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	if p.pos < len(p.buffer) {
		item := p.buffer[p.pos]
		p.pos++
		return item, true, nil
	}
	if p.bufferedAll {
		return zero, false, nil
	}

	select {
	case <-ctx.Done():
		return zero, false, nil
	default:
	}

	item, ok, err := p.inner.Next(ctx)
	if err != nil {
		return zero, false, err
	}
	if !ok {
		p.bufferedAll = true
		return zero, false, nil
	}
	if p.cap >= 0 && len(p.buffer) >= p.cap {
		return zero, false, &ResourceExhaustedError{Kind: MaterializationCapExceeded, Cap: p.cap}
	}
	p.buffer = append(p.buffer, item)
	p.pos++
	return item, true, nil
}

// Restart rewinds to the beginning of the buffer; items already buffered
// replay before consumption of inner resumes (§4.2).
func (p *CappedReplayablePipe[T]) Restart(_ context.Context) error {
	p.pos = 0
	return nil
}

// AsReplayable wraps any pipe in a CappedReplayablePipe if it isn't already
// Restartable. The resilient strategy uses this to automatically upgrade a
// streaming (single-shot) input before attempting a restart, per §4.6.
func AsReplayable[T any](ctx context.Context, p Pipe[T], cap int) (Restartable[T], error) {
	if r, ok := p.(Restartable[T]); ok {
		return r, nil
	}
	return NewCappedReplayablePipe[T](ctx, p, cap)
}
