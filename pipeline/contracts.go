package pipeline

import "context"

// Source produces a Pipe of output items with no pipeline input. Concrete
// connectors (database cursors, queue consumers, file readers) implement
// this against their own transport; the core never constructs one directly.
type Source[Out any] interface {
	Open(ctx context.Context, ec *ExecutionContext) (Pipe[Out], error)
}

// Transform consumes one input pipe and produces one output pipe. The
// relationship between input and output item counts is declared by the
// owning NodeDescriptor's Cardinality, which the lineage adapter enforces
// when lineage is enabled.
type Transform[In, Out any] interface {
	Run(ctx context.Context, ec *ExecutionContext, in Pipe[In]) (Pipe[Out], error)
}

// ParallelSafe marks a Transform whose Run method may be invoked
// concurrently from multiple goroutines against independent inputs. Nothing
// in this package consults the marker: RunFanOut runs its callable on up to
// Parallelism goroutines whether or not the node implements it.
type ParallelSafe interface {
	ParallelSafe() bool
}

// Sink consumes a pipe to completion and returns no further pipe.
type Sink[In any] interface {
	Consume(ctx context.Context, ec *ExecutionContext, in Pipe[In]) error
}

// Join merges two named input pipes into one output pipe, e.g. a keyed
// hash-join or an ordered zip.
type Join[A, B, Out any] interface {
	Run(ctx context.Context, ec *ExecutionContext, a Pipe[A], b Pipe[B]) (Pipe[Out], error)
}

// Aggregate folds an entire input pipe down to a single output value,
// emitted as a one-item output pipe once the input is exhausted.
type Aggregate[In, Out any] interface {
	Run(ctx context.Context, ec *ExecutionContext, in Pipe[In]) (Out, error)
}

// KeySelector extracts a partition/merge key from an item. Merge strategies
// and keyed joins use it to decide ordering or routing.
type KeySelector[T any, K comparable] func(item T) K

// Strategy is the execution policy a node runs under: Sequential, fan-out,
// batching, unbatching, merge, or resilient (which wraps another Strategy).
// A Strategy is stateless config plus behavior; per-run state lives in the
// ExecutionContext and in the pipes it produces.
type Strategy interface {
	// Name identifies the strategy for observability and error messages.
	Name() string
}
