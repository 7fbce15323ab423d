package pipeline

import (
	"context"
	"errors"
	"time"
)

// ResilientStrategy wraps another strategy's node execution with the retry
// budget, circuit breaker and pipeline-level failure policy described by
// ErrorHandlingConfig. It is not itself a Strategy implementation that runs
// items directly — RunResilient drives it against a node's Transform.Run
// (or Source.Open) callable.
type ResilientStrategy struct {
	Inner Strategy
}

func (ResilientStrategy) Name() string { return "Resilient" }

// resilientPipe re-invokes exec to rebuild its output pipe whenever a pull
// fails and the configured policy calls for a restart, replaying input's
// buffered prefix via Restartable.Restart rather than re-running anything
// upstream of input.
type resilientPipe[In, Out any] struct {
	ec      *ExecutionContext
	node    NodeDescriptor
	cfg     ErrorHandlingConfig
	breaker *CircuitBreaker
	input   Restartable[In]
	exec    func(context.Context, *ExecutionContext, Pipe[In]) (Pipe[Out], error)

	attempts     int
	failureCount int
	restarts     int
	current      Pipe[Out]
	done         bool
	doneErr      error
}

// RunResilient returns a Pipe[Out] that drives exec(ctx, ec, input) under
// the node's retry/circuit-breaker/pipeline-error-handler policy described
// by cfg. breaker may be nil to disable circuit-breaking for this node.
func RunResilient[In, Out any](ec *ExecutionContext, node NodeDescriptor, cfg ErrorHandlingConfig, breaker *CircuitBreaker, input Restartable[In], exec func(context.Context, *ExecutionContext, Pipe[In]) (Pipe[Out], error)) Pipe[Out] {
	return &resilientPipe[In, Out]{ec: ec, node: node, cfg: cfg, breaker: breaker, input: input, exec: exec}
}

func (p *resilientPipe[In, Out]) Name() string { return p.node.Name() }

// Next loops until it has an item to return, the pipe is genuinely
// exhausted, or a failure escalates to a terminal outcome (FailPipeline or
// ContinueWithoutNode). Every retryable failure is handled internally and
// never observed by the caller.
func (p *resilientPipe[In, Out]) Next(ctx context.Context) (Out, bool, error) {
	var zero Out
	for {
		if p.done {
			return zero, false, p.doneErr
		}

		if p.current == nil {
			if err := p.startAttempt(ctx); err != nil {
				result, ok, retErr, cont := p.onFailure(ctx, err)
				if cont {
					continue
				}
				return result, ok, retErr
			}
		}

		item, ok, err := p.current.Next(ctx)
		if err != nil {
			p.current = nil
			result, retOK, retErr, cont := p.onFailure(ctx, err)
			if cont {
				continue
			}
			return result, retOK, retErr
		}
		if !ok {
			if p.breaker != nil {
				p.breaker.RecordSuccess()
			}
			p.done = true
			return zero, false, nil
		}
		return item, true, nil
	}
}

// startAttempt checks the breaker and invokes exec once, recording the new
// output pipe on success.
func (p *resilientPipe[In, Out]) startAttempt(ctx context.Context) error {
	if p.breaker != nil && !p.breaker.Allow() {
		return &CircuitOpenError{NodeID: p.node.ID}
	}
	p.attempts++
	p.ec.Observer().Notify(Event{Kind: EventNodeStarted, NodeID: p.node.ID, Timestamp: time.Now(), Attempt: p.attempts})
	out, err := p.exec(ctx, p.ec, p.input)
	if err != nil {
		return err
	}
	p.current = out
	return nil
}

// onFailure escalates a whole-node failure straight to the node's
// PipelineErrorHandler. It no longer consults any per-item NodeErrorHandler
// or DeadLetterSink — that's SequentialStrategy's job, applied where the
// failing item is actually in scope (see strategy_sequential.go). By the
// time a failure reaches here it has already been judged unrecoverable at
// item granularity (DecisionFail), or it's an error from constructing the
// node's output pipe in the first place, which has no associated item at
// all. cont reports whether Next should loop and try again; when cont is
// false, (result, ok, err) is the final outcome to return to the caller.
func (p *resilientPipe[In, Out]) onFailure(ctx context.Context, err error) (result Out, ok bool, finalErr error, cont bool) {
	var zero Out
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		p.done = true
		p.ec.Observer().Notify(Event{Kind: EventNodeFailed, NodeID: p.node.ID, Timestamp: time.Now(), Attempt: p.attempts, Err: err})
		return zero, false, nil, false
	}
	if p.breaker != nil {
		p.breaker.RecordFailure()
	}
	p.ec.Observer().Notify(Event{Kind: EventNodeFailed, NodeID: p.node.ID, Timestamp: time.Now(), Attempt: p.attempts, Err: err})
	p.failureCount++

	pipelineHandler := p.cfg.PipelineHandler
	if pipelineHandler == nil {
		pipelineHandler = AlwaysFailPipeline
	}
	switch pipelineHandler(ctx, p.node.ID, p.failureCount, err) {
	case RestartNode:
		cap := p.cfg.Retry.MaxNodeRestarts
		if cap > 0 && p.restarts >= cap {
			p.done = true
			p.doneErr = &RetryExhaustedError{NodeID: p.node.ID, Attempts: p.restarts, Err: err}
			return zero, false, p.doneErr, false
		}
		p.restarts++
		if p.cfg.Retry.Delay != nil {
			if !p.wait(ctx, p.cfg.Retry.Delay.Delay(p.restarts)) {
				return zero, false, nil, false
			}
		}
		p.ec.Observer().Notify(Event{Kind: EventNodeRetrying, NodeID: p.node.ID, Timestamp: time.Now(), Attempt: p.restarts + 1})
		p.attempts = 0
		if restartErr := p.input.Restart(ctx); restartErr != nil {
			return zero, false, restartErr, false
		}
		return result, ok, nil, true
	case ContinueWithoutNode:
		p.done = true
		return zero, false, nil, false
	default: // FailPipeline
		p.done = true
		p.doneErr = &RunError{NodeID: p.node.ID, FailureCount: p.failureCount, ConsecutiveFailures: p.attempts, FinalThrow: true, Err: err}
		return zero, false, p.doneErr, false
	}
}

// wait blocks for d or until ctx is cancelled, returning false in the
// latter case.
func (p *resilientPipe[In, Out]) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

