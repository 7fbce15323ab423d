package pipeline

import (
	"context"
	"fmt"
	"reflect"
)

// SourceFunc, TransformFunc, SinkFunc, JoinFunc and AggregateFunc are the
// type-erased callables the Runner actually invokes. NodeRegistry.Bind
// stores one per node id; the Adapt* helpers build these from the typed
// Source/Transform/Sink/Join/Aggregate interfaces a node author implements.
type (
	SourceFunc    func(ctx context.Context, ec *ExecutionContext) (Pipe[any], error)
	TransformFunc func(ctx context.Context, ec *ExecutionContext, in Pipe[any]) (Pipe[any], error)
	SinkFunc      func(ctx context.Context, ec *ExecutionContext, in Pipe[any]) error
	JoinFunc      func(ctx context.Context, ec *ExecutionContext, ins map[Port]Pipe[any]) (Pipe[any], error)
	AggregateFunc func(ctx context.Context, ec *ExecutionContext, in Pipe[any]) (any, error)
)

// Binding is the set of type-erased callables registered for one node id.
// Exactly the field matching node.Kind should be set.
type Binding struct {
	Source    SourceFunc
	Transform TransformFunc
	Sink      SinkFunc
	Join      JoinFunc
	Aggregate AggregateFunc
}

// NodeRegistry maps node ids to their runtime Bindings, resolved once at
// Runner.Run time. Descriptors stay free of live instances so a Graph can
// be built, validated and exported independently of how (or whether) it is
// ever executed.
type NodeRegistry struct {
	bindings map[string]Binding
}

// NewNodeRegistry returns an empty registry.
func NewNodeRegistry() *NodeRegistry {
	return &NodeRegistry{bindings: make(map[string]Binding)}
}

// Bind registers b for nodeID, overwriting any previous binding.
func (r *NodeRegistry) Bind(nodeID string, b Binding) {
	r.bindings[nodeID] = b
}

// boxPipe lifts a typed Pipe[T] to the type-erased Pipe[any] the runner
// operates on internally, preserving Restartable if T's pipe had it.
func boxPipe[T any](p Pipe[T]) Pipe[any] {
	if r, ok := p.(Restartable[T]); ok {
		return &boxedRestartable[T]{inner: r}
	}
	return &boxed[T]{inner: p}
}

type boxed[T any] struct{ inner Pipe[T] }

func (b *boxed[T]) Name() string { return b.inner.Name() }
func (b *boxed[T]) Next(ctx context.Context) (any, bool, error) {
	item, ok, err := b.inner.Next(ctx)
	return item, ok, err
}

type boxedRestartable[T any] struct{ inner Restartable[T] }

func (b *boxedRestartable[T]) Name() string { return b.inner.Name() }
func (b *boxedRestartable[T]) Next(ctx context.Context) (any, bool, error) {
	item, ok, err := b.inner.Next(ctx)
	return item, ok, err
}
func (b *boxedRestartable[T]) Restart(ctx context.Context) error { return b.inner.Restart(ctx) }

// unboxPipe narrows a Pipe[any] back to Pipe[T], asserting each item's
// dynamic type. A mismatch here means the graph's type rule should have
// rejected the edge at build time; it surfaces as a *TypeMismatchError
// instead of a bare panic.
func unboxPipe[T any](p Pipe[any]) Pipe[T] {
	return &unboxed[T]{inner: p}
}

type unboxed[T any] struct{ inner Pipe[any] }

func (u *unboxed[T]) Name() string { return u.inner.Name() }
func (u *unboxed[T]) Next(ctx context.Context) (T, bool, error) {
	var zero T
	item, ok, err := u.inner.Next(ctx)
	if err != nil || !ok {
		return zero, ok, err
	}
	typed, okType := item.(T)
	if !okType {
		return zero, false, &TypeMismatchError{Wanted: reflect.TypeOf(zero), Got: reflect.TypeOf(item), Context: "pipe item"}
	}
	return typed, true, nil
}
func (u *unboxed[T]) Restart(ctx context.Context) error {
	if r, ok := u.inner.(Restartable[any]); ok {
		return r.Restart(ctx)
	}
	return nil
}

// AdaptSource boxes a typed Source into a SourceFunc.
func AdaptSource[Out any](s Source[Out]) SourceFunc {
	return func(ctx context.Context, ec *ExecutionContext) (Pipe[any], error) {
		p, err := s.Open(ctx, ec)
		if err != nil {
			return nil, err
		}
		return boxPipe(p), nil
	}
}

// AdaptTransform boxes a typed Transform into a TransformFunc.
func AdaptTransform[In, Out any](t Transform[In, Out]) TransformFunc {
	return func(ctx context.Context, ec *ExecutionContext, in Pipe[any]) (Pipe[any], error) {
		out, err := t.Run(ctx, ec, unboxPipe[In](in))
		if err != nil {
			return nil, err
		}
		return boxPipe(out), nil
	}
}

// AdaptSink boxes a typed Sink into a SinkFunc.
func AdaptSink[In any](s Sink[In]) SinkFunc {
	return func(ctx context.Context, ec *ExecutionContext, in Pipe[any]) error {
		return s.Consume(ctx, ec, unboxPipe[In](in))
	}
}

// AdaptJoin boxes a typed two-input Join into a JoinFunc keyed by portA/portB.
func AdaptJoin[A, B, Out any](j Join[A, B, Out], portA, portB Port) JoinFunc {
	return func(ctx context.Context, ec *ExecutionContext, ins map[Port]Pipe[any]) (Pipe[any], error) {
		out, err := j.Run(ctx, ec, unboxPipe[A](ins[portA]), unboxPipe[B](ins[portB]))
		if err != nil {
			return nil, err
		}
		return boxPipe(out), nil
	}
}

// AdaptAggregate boxes a typed Aggregate into an AggregateFunc.
func AdaptAggregate[In, Out any](a Aggregate[In, Out]) AggregateFunc {
	return func(ctx context.Context, ec *ExecutionContext, in Pipe[any]) (any, error) {
		return a.Run(ctx, ec, unboxPipe[In](in))
	}
}

// Runner drives a validated Graph to completion in topological order,
// threading each node's output pipe into its successors' merged input,
// wrapping every node in the resilient strategy described by the graph's
// ErrorHandlingConfig (nodes have no per-node override of it).
type Runner struct {
	breakers *CircuitBreakerManager
}

// NewRunner builds a Runner with its own CircuitBreakerManager, seeded from
// g's graph-wide circuit breaker options.
func NewRunner(g *Graph) *Runner {
	return &Runner{breakers: NewCircuitBreakerManager(g.ErrorHandling.CircuitBreaker, g.ErrorHandling.CircuitBreakerMem)}
}

// Run executes every node in g.TopologicalOrder against registry, returning
// the first error encountered (a *RunError or *RetryExhaustedError from the
// resilient strategy where applicable) or any resource-disposal failure
// observed once every node has finished. When a node fails and disposal
// fails too, the returned error wraps both.
func (r *Runner) Run(ctx context.Context, g *Graph, registry *NodeRegistry, ec *ExecutionContext) error {
	if g.Lineage.Enabled && ec.Lineage() == nil {
		ec.SetLineage(NewLineageAdapter(g.Lineage, ec.Logger()))
	}
	outputs := make(map[string]Pipe[any])

	for _, id := range g.TopologicalOrder() {
		node, ok := g.NodeByID(id)
		if !ok {
			return fmt.Errorf("pipeline: topological order referenced unknown node %q", id)
		}
		binding, ok := registry.bindings[id]
		if !ok {
			return fmt.Errorf("pipeline: no binding registered for node %q", id)
		}

		ec.PushNode(id)
		if err := r.runNode(ctx, ec, g, node, binding, outputs); err != nil {
			ec.PopNode()
			if disposeErr := ec.Dispose(); disposeErr != nil {
				return fmt.Errorf("%w (disposal: %w)", err, disposeErr)
			}
			return err
		}
		ec.PopNode()
	}

	return ec.Dispose()
}

func (r *Runner) runNode(ctx context.Context, ec *ExecutionContext, g *Graph, node NodeDescriptor, binding Binding, outputs map[string]Pipe[any]) error {
	breaker := r.breakers.Get(node.ID)
	errCfg := g.ErrorHandling

	switch node.Kind {
	case KindSource:
		input := NewMemoryPipe[any](node.ID+"-noop-input", nil)
		out := RunResilient(ec, node, errCfg, breaker, input, func(ctx context.Context, ec *ExecutionContext, _ Pipe[any]) (Pipe[any], error) {
			return binding.Source(ctx, ec)
		})
		outputs[node.ID] = out
		return nil

	case KindJoin:
		portInputs := make(map[Port]Pipe[any])
		for _, e := range g.Incoming(node.ID) {
			portInputs[e.ToPort] = outputs[e.From]
		}
		input := NewMemoryPipe[any](node.ID+"-noop-input", nil)
		out := RunResilient(ec, node, errCfg, breaker, input, func(ctx context.Context, ec *ExecutionContext, _ Pipe[any]) (Pipe[any], error) {
			return binding.Join(ctx, ec, portInputs)
		})
		outputs[node.ID] = out
		return nil
	}

	in, err := r.mergedInput(ctx, ec, g, node, outputs)
	if err != nil {
		return err
	}
	replayCap := errCfg.ReplayCap
	if replayCap <= 0 {
		replayCap = -1 // unbounded
	}
	replayable, err := AsReplayable[any](ctx, in, replayCap)
	if err != nil {
		return err
	}

	switch node.Kind {
	case KindTransform:
		out := RunResilient(ec, node, errCfg, breaker, replayable, func(ctx context.Context, ec *ExecutionContext, pin Pipe[any]) (Pipe[any], error) {
			return binding.Transform(ctx, ec, pin)
		})
		outputs[node.ID] = out
		return nil

	case KindAggregate:
		out := RunResilient(ec, node, errCfg, breaker, replayable, func(ctx context.Context, ec *ExecutionContext, pin Pipe[any]) (Pipe[any], error) {
			val, err := binding.Aggregate(ctx, ec, pin)
			if err != nil {
				return nil, err
			}
			return NewMemoryPipe[any](node.ID+"-result", []any{val}), nil
		})
		outputs[node.ID] = out
		return nil

	case KindSink:
		out := RunResilient(ec, node, errCfg, breaker, replayable, func(ctx context.Context, ec *ExecutionContext, pin Pipe[any]) (Pipe[any], error) {
			if err := binding.Sink(ctx, ec, pin); err != nil {
				return nil, err
			}
			return NewMemoryPipe[any](node.ID+"-done", nil), nil
		})
		_, err := CollectAll(ctx, out)
		return err

	default:
		return fmt.Errorf("pipeline: node %q has unknown kind %v", node.ID, node.Kind)
	}
}

// mergedInput resolves a node's single logical input pipe from however many
// incoming edges it has, per its MergeConfig (defaulting to Concatenate).
func (r *Runner) mergedInput(ctx context.Context, ec *ExecutionContext, g *Graph, node NodeDescriptor, outputs map[string]Pipe[any]) (Pipe[any], error) {
	incoming := g.Incoming(node.ID)
	switch len(incoming) {
	case 0:
		return NewMemoryPipe[any](node.ID+"-empty-input", nil), nil
	case 1:
		return outputs[incoming[0].From], nil
	}

	sources := make([]Pipe[any], 0, len(incoming))
	for _, e := range incoming {
		sources = append(sources, outputs[e.From])
	}

	cfg := node.Merge
	if cfg == nil {
		cfg = &MergeConfig{Mode: MergeConcatenate}
	}
	switch cfg.Mode {
	case MergeInterleave:
		return RunMergeInterleave(ctx, node.Name(), sources, cfg.InterleaveCapacity), nil
	case MergeCustom:
		if cfg.CustomMerge == nil {
			return nil, fmt.Errorf("pipeline: node %q declares MergeCustom with no CustomMerge function", node.ID)
		}
		return RunMergeCustom(ec, sources, cfg.CustomMerge)
	default:
		return RunMergeConcatenate(node.Name(), sources), nil
	}
}
