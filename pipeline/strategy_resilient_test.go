package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func resilientNode(id string) NodeDescriptor {
	return NodeDescriptor{ID: id, Kind: KindTransform}
}

// TestRunResilient_RestartNodeHonorsDelayStrategy: a RestartNode decision
// paces itself through the configured DelayStrategy, keyed by restart
// count (not the node's now-per-item attempt counter), before rebuilding
// the node's output pipe.
func TestRunResilient_RestartNodeHonorsDelayStrategy(t *testing.T) {
	ec := NewExecutionContext(context.Background(), nil, nil)
	input := NewMemoryPipe("src", []int{1, 2, 3})
	calls := 0

	exec := func(_ context.Context, _ *ExecutionContext, in Pipe[int]) (Pipe[int], error) {
		calls++
		if calls == 1 {
			return nil, errors.New("transient failure")
		}
		return in, nil
	}

	cfg := ErrorHandlingConfig{
		Retry:           RetryOptions{Delay: FixedDelay{Interval: time.Millisecond}},
		PipelineHandler: func(context.Context, string, int, error) PipelineDecision { return RestartNode },
	}
	out := RunResilient[int, int](ec, resilientNode("n1"), cfg, nil, input, exec)

	items, err := CollectAll(context.Background(), out)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2, 3}, items)
	require.Equal(t, 2, calls)
}

func TestRunResilient_ExhaustedRetriesFailsPipelineByDefault(t *testing.T) {
	ec := NewExecutionContext(context.Background(), nil, nil)
	input := NewMemoryPipe("src", []int{1})
	boom := errors.New("persistent")

	exec := func(_ context.Context, _ *ExecutionContext, in Pipe[int]) (Pipe[int], error) {
		return nil, boom
	}

	cfg := ErrorHandlingConfig{Retry: RetryOptions{MaxAttempts: 1}}
	out := RunResilient[int, int](ec, resilientNode("n1"), cfg, nil, input, exec)

	_, _, err := out.Next(context.Background())
	require.Error(t, err)
	var runErr *RunError
	require.ErrorAs(t, err, &runErr)
	require.Equal(t, "n1", runErr.NodeID)
	require.ErrorIs(t, err, boom)
}

func TestRunResilient_CancellationSkipsBreakerAndPipelineHandler(t *testing.T) {
	ec := NewExecutionContext(context.Background(), nil, nil)
	input := NewMemoryPipe("src", []int{1})
	breaker := NewCircuitBreaker(CircuitBreakerOptions{ConsecutiveFailureThreshold: 1, OpenDuration: time.Hour})

	handlerCalled := false
	exec := func(ctx context.Context, _ *ExecutionContext, in Pipe[int]) (Pipe[int], error) {
		return nil, ctx.Err()
	}

	cfg := ErrorHandlingConfig{
		Retry: RetryOptions{MaxAttempts: 1},
		PipelineHandler: func(context.Context, string, int, error) PipelineDecision {
			handlerCalled = true
			return FailPipeline
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	out := RunResilient[int, int](ec, resilientNode("n1"), cfg, breaker, input, exec)

	_, ok, err := out.Next(ctx)
	require.NoError(t, err)
	require.False(t, ok)
	require.False(t, handlerCalled, "cancellation must never reach the pipeline error handler")
	require.Equal(t, BreakerClosed, breaker.State(), "cancellation must never trip the circuit breaker")
}

func TestRunResilient_ContinueWithoutNodeEndsCleanly(t *testing.T) {
	ec := NewExecutionContext(context.Background(), nil, nil)
	input := NewMemoryPipe("src", []int{1})
	boom := errors.New("persistent")

	exec := func(_ context.Context, _ *ExecutionContext, in Pipe[int]) (Pipe[int], error) {
		return nil, boom
	}

	cfg := ErrorHandlingConfig{
		Retry: RetryOptions{MaxAttempts: 1},
		PipelineHandler: func(context.Context, string, int, error) PipelineDecision {
			return ContinueWithoutNode
		},
	}
	out := RunResilient[int, int](ec, resilientNode("n1"), cfg, nil, input, exec)

	_, ok, err := out.Next(context.Background())
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRunResilient_RestartNodeRetriesFromScratch(t *testing.T) {
	ec := NewExecutionContext(context.Background(), nil, nil)
	input := NewMemoryPipe("src", []int{1, 2})
	calls := 0

	exec := func(_ context.Context, _ *ExecutionContext, in Pipe[int]) (Pipe[int], error) {
		calls++
		if calls == 1 {
			return nil, errors.New("first attempt fails")
		}
		return in, nil
	}

	cfg := ErrorHandlingConfig{
		Retry: RetryOptions{MaxAttempts: 1}, // no per-item retry budget
		PipelineHandler: func(context.Context, string, int, error) PipelineDecision {
			return RestartNode
		},
	}
	out := RunResilient[int, int](ec, resilientNode("n1"), cfg, nil, input, exec)

	items, err := CollectAll(context.Background(), out)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, items)
	require.Equal(t, 2, calls)
}

func TestRunResilient_OpenBreakerShortCircuitsWithoutCallingExec(t *testing.T) {
	ec := NewExecutionContext(context.Background(), nil, nil)
	input := NewMemoryPipe("src", []int{1})

	breaker := NewCircuitBreaker(CircuitBreakerOptions{ConsecutiveFailureThreshold: 1, OpenDuration: time.Hour})
	breaker.RecordFailure() // trips it open before the run starts

	execCalled := false
	exec := func(_ context.Context, _ *ExecutionContext, in Pipe[int]) (Pipe[int], error) {
		execCalled = true
		return in, nil
	}

	node := resilientNode("n1")

	out := RunResilient[int, int](ec, node, ErrorHandlingConfig{}, breaker, input, exec)

	_, _, err := out.Next(context.Background())
	require.Error(t, err)
	require.False(t, execCalled)
	var circuitErr *CircuitOpenError
	require.ErrorAs(t, err, &circuitErr)
}
