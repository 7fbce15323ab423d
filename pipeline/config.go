package pipeline

import "time"

// RetryOptions configures both of the two distinct retry budgets the
// pipeline spends on a node: per-item retries inside SequentialStrategy's
// RunTransform, and whole-node restarts inside ResilientStrategy.
type RetryOptions struct {
	// MaxAttempts is the total number of tries RunTransform spends on a
	// single item, including the first, before giving up on
	// DecisionRetry and escalating as DecisionFail. MaxAttempts<=1 means
	// no per-item retry.
	MaxAttempts int
	// Delay paces RestartNode restarts (keyed by restart count, not item
	// attempt) — it is not consulted by per-item retries.
	Delay DelayStrategy
	// MaxNodeRestarts caps how many RestartNode decisions the resilient
	// strategy will honor for a single node before failing the pipeline
	// with a *RetryExhaustedError, regardless of what the
	// PipelineErrorHandler itself asks for. Zero means no framework-level
	// cap — the handler alone decides when to stop restarting.
	MaxNodeRestarts int
}

// CircuitBreakerOptions configures a per-node CircuitBreaker.
type CircuitBreakerOptions struct {
	// ConsecutiveFailureThreshold trips the breaker to Open once this many
	// consecutive failures have been observed.
	ConsecutiveFailureThreshold int
	// OpenDuration is how long the breaker stays Open before probing
	// (HalfOpen) again.
	OpenDuration time.Duration
	// WindowSize bounds the sliding window kept purely for observability
	// (WindowStatistics); it does not drive trip decisions.
	WindowSize int
}

// CircuitBreakerMemoryOptions bounds how many per-node breakers the
// CircuitBreakerManager keeps resident.
type CircuitBreakerMemoryOptions struct {
	// MaxBreakers evicts the least-recently-used breaker once exceeded; 0
	// means unbounded.
	MaxBreakers int
}

// BatchingOptions holds batching settings. Nothing in this package reads
// it; RunBatching takes a BatchingStrategy.
type BatchingOptions struct {
	Size   int
	Window time.Duration
}

// MergeOptions holds an interleave mailbox capacity. Nothing in this package
// reads it; the Runner uses the node's MergeConfig.InterleaveCapacity.
type MergeOptions struct {
	MailboxCapacity int
}

// ErrorHandlingConfig is the graph-wide error-handling configuration the
// Runner passes to every node's resilient strategy; nodes have no per-node
// override of it.
type ErrorHandlingConfig struct {
	Retry              RetryOptions
	CircuitBreaker     CircuitBreakerOptions
	CircuitBreakerMem  CircuitBreakerMemoryOptions
	ReplayCap          int // passed to AsReplayable when wrapping a node's input for restart; <= 0 means unbounded
	PipelineHandler    PipelineErrorHandler
	DeadLetter         DeadLetterSink
}

// LineageOptions configures the opt-in lineage adapter layer.
type LineageOptions struct {
	Enabled bool
	// Strict, when true, turns a cardinality mismatch into a
	// *LineageCardinalityMismatchError instead of a logged warning.
	Strict bool
}

// ExecutionOptions configures scheduler-wide concerns that aren't per-node.
type ExecutionOptions struct {
	Observer Observer
	// DefaultParallelism is not read by RunFanOut, which uses a parallelism
	// of 1 when its own Parallelism is <= 0.
	DefaultParallelism int
}
