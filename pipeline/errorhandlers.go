package pipeline

import "context"

// ErrorDecision is what a NodeErrorHandler asks the running strategy to do
// about one failed item.
type ErrorDecision int

const (
	// DecisionRetry re-attempts the same item, consuming one unit of the
	// per-item retry budget, immediately (no delay is applied).
	DecisionRetry ErrorDecision = iota
	// DecisionSkip drops the failing item silently and continues with the
	// next item from the node's input.
	DecisionSkip
	// DecisionDeadLetter offers the failing item to the configured
	// DeadLetterSink, then continues with the next item from the node's
	// input — like DecisionSkip, but the item isn't simply discarded.
	DecisionDeadLetter
	// DecisionFail gives up on the item and escalates to the node level;
	// the pipeline-level decision (RestartNode/ContinueWithoutNode/
	// FailPipeline) takes over from there.
	DecisionFail
)

// NodeErrorHandler inspects an error raised while processing one item and
// decides how the Sequential strategy should react. It receives the actual
// item that failed, so a Skip or DeadLetter decision can act on real data
// rather than a placeholder.
type NodeErrorHandler[T any] func(ctx context.Context, item T, err error, attempt int) ErrorDecision

// DefaultNodeErrorHandler always asks for a retry, deferring entirely to
// the configured RetryOptions budget; once that budget is spent the caller
// escalates to DecisionFail regardless of what this handler returns.
func DefaultNodeErrorHandler[T any]() NodeErrorHandler[T] {
	return func(_ context.Context, _ T, _ error, _ int) ErrorDecision {
		return DecisionRetry
	}
}

// PipelineDecision is what a PipelineErrorHandler asks the runner to do once
// a node has failed outright (its NodeErrorHandler returned DecisionFail, or
// an error occurred outside per-item processing — building the node's
// output pipe in the first place).
type PipelineDecision int

const (
	// RestartNode rebuilds the node's input (via a replayable pipe) and
	// starts a fresh attempt sequence from attempt 1.
	RestartNode PipelineDecision = iota
	// ContinueWithoutNode skips the failed node's output entirely —
	// downstream nodes that depend on it will see an empty pipe.
	ContinueWithoutNode
	// FailPipeline aborts the run and surfaces a *RunError.
	FailPipeline
)

// PipelineErrorHandler is consulted by the resilient strategy once a node
// has failed at node granularity (as opposed to a single item within it).
type PipelineErrorHandler func(ctx context.Context, nodeID string, failureCount int, err error) PipelineDecision

// AlwaysFailPipeline is a PipelineErrorHandler that never tolerates a node
// failure; useful as a strict default.
func AlwaysFailPipeline(context.Context, string, int, error) PipelineDecision {
	return FailPipeline
}

// DeadLetterSink receives items for which a NodeErrorHandler returned
// DecisionDeadLetter, so the pipeline can continue without losing the failing
// record entirely. Implementations must be safe for concurrent use from
// fan-out strategies.
type DeadLetterSink interface {
	// Offer records item (already any-boxed by the caller) alongside the
	// error that caused it to be dead-lettered. Returning a
	// *ResourceExhaustedError{Kind: DeadLetterOverflow} signals the sink
	// itself is full.
	Offer(ctx context.Context, nodeID string, item any, cause error) error
}

// discardDeadLetterSink drops everything offered to it; it is the default
// when no DeadLetterSink is configured.
type discardDeadLetterSink struct{}

func (discardDeadLetterSink) Offer(context.Context, string, any, error) error { return nil }

// DiscardDeadLetters is the zero-configuration DeadLetterSink.
var DiscardDeadLetters DeadLetterSink = discardDeadLetterSink{}
