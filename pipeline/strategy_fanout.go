package pipeline

import (
	"context"
	"fmt"
	"sync"
)

// FanOutStrategy runs a node's callable against up to Parallelism items
// concurrently. When Ordered is true, outputs are reordered back into input
// order before being handed downstream (costing a reorder buffer that holds
// every result completed ahead of the next one in line, with no size limit);
// when false, outputs are emitted in completion order.
type FanOutStrategy struct {
	Parallelism int
	Ordered     bool
}

func (FanOutStrategy) Name() string { return "FanOut" }

type fanOutResult[Out any] struct {
	seq   int
	value Out
	err   error
}

// RunFanOut drains in through a pool of Parallelism goroutines, each
// applying fn, panics included as a NodeExecutionError rather than crashing
// the pipeline (mirroring the worker-pool recover pattern used throughout
// this codebase's concurrent node execution).
func RunFanOut[In, Out any](ctx context.Context, nodeID string, in Pipe[In], strat FanOutStrategy, fn func(context.Context, In) (Out, error)) Pipe[Out] {
	parallelism := strat.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}

	results := make(chan fanOutResult[Out], parallelism)
	jobs := make(chan struct {
		seq  int
		item In
	}, parallelism)

	var wg sync.WaitGroup
	for w := 0; w < parallelism; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				out, err := safeCall(ctx, nodeID, job.item, fn)
				results <- fanOutResult[Out]{seq: job.seq, value: out, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		seq := 0
		for {
			item, ok, err := in.Next(ctx)
			if err != nil {
				results <- fanOutResult[Out]{seq: seq, err: err}
				return
			}
			if !ok {
				return
			}
			select {
			case jobs <- struct {
				seq  int
				item In
			}{seq, item}:
			case <-ctx.Done():
				return
			}
			seq++
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	if !strat.Ordered {
		return NewStreamPipe(in.Name(), func(ctx context.Context) (Out, bool, error) {
			var zero Out
			select {
			case r, ok := <-results:
				if !ok {
					return zero, false, nil
				}
				if r.err != nil {
					return zero, false, r.err
				}
				return r.value, true, nil
			case <-ctx.Done():
				return zero, false, nil
			}
		})
	}

	return newReorderPipe(in.Name(), results)
}

func safeCall[In, Out any](ctx context.Context, nodeID string, item In, fn func(context.Context, In) (Out, error)) (out Out, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &NodeExecutionError{NodeID: nodeID, Err: &panicError{recovered: r}}
		}
	}()
	return fn(ctx, item)
}

type panicError struct{ recovered any }

func (p *panicError) Error() string { return "panic: " + formatRecovered(p.recovered) }

func formatRecovered(r any) string {
	switch v := r.(type) {
	case error:
		return v.Error()
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// reorderPipe buffers out-of-order fanOutResults until the next sequence
// number in line is available, giving the fan-out strategy its Ordered
// mode without serializing the actual work.
type reorderPipe[Out any] struct {
	name    string
	in      <-chan fanOutResult[Out]
	pending map[int]fanOutResult[Out]
	next    int
	done    bool
}

func newReorderPipe[Out any](name string, in <-chan fanOutResult[Out]) *reorderPipe[Out] {
	return &reorderPipe[Out]{name: name, in: in, pending: make(map[int]fanOutResult[Out])}
}

func (p *reorderPipe[Out]) Name() string { return p.name }

func (p *reorderPipe[Out]) Next(ctx context.Context) (Out, bool, error) {
	var zero Out
	for {
		if r, ok := p.pending[p.next]; ok {
			delete(p.pending, p.next)
			p.next++
			if r.err != nil {
				return zero, false, r.err
			}
			return r.value, true, nil
		}
		if p.done {
			return zero, false, nil
		}
		select {
		case r, ok := <-p.in:
			if !ok {
				p.done = true
				continue
			}
			p.pending[r.seq] = r
		case <-ctx.Done():
			return zero, false, nil
		}
	}
}
