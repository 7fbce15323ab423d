package pipeline

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunFanOut_OrderedPreservesInputOrder(t *testing.T) {
	in := NewMemoryPipe("nums", []int{1, 2, 3, 4, 5})
	out := RunFanOut(context.Background(), "n1", in, FanOutStrategy{Parallelism: 4, Ordered: true}, func(_ context.Context, n int) (int, error) {
		return n * n, nil
	})

	items, err := CollectAll(context.Background(), out)
	require.NoError(t, err)
	require.Equal(t, []int{1, 4, 9, 16, 25}, items)
}

func TestRunFanOut_UnorderedProducesEverySameSet(t *testing.T) {
	in := NewMemoryPipe("nums", []int{1, 2, 3, 4, 5})
	out := RunFanOut(context.Background(), "n1", in, FanOutStrategy{Parallelism: 3, Ordered: false}, func(_ context.Context, n int) (int, error) {
		return n * 10, nil
	})

	items, err := CollectAll(context.Background(), out)
	require.NoError(t, err)
	sort.Ints(items)
	require.Equal(t, []int{10, 20, 30, 40, 50}, items)
}

func TestRunFanOut_RecoversPanicAsNodeExecutionError(t *testing.T) {
	in := NewMemoryPipe("nums", []int{1})
	out := RunFanOut(context.Background(), "n1", in, FanOutStrategy{Parallelism: 1}, func(_ context.Context, n int) (int, error) {
		panic("kaboom")
	})

	_, _, err := out.Next(context.Background())
	require.Error(t, err)
	var nodeErr *NodeExecutionError
	require.ErrorAs(t, err, &nodeErr)
	require.Equal(t, "n1", nodeErr.NodeID)
	require.Contains(t, nodeErr.Error(), "kaboom")
}

func TestRunFanOut_ZeroParallelismDefaultsToOne(t *testing.T) {
	in := NewMemoryPipe("nums", []int{1, 2})
	out := RunFanOut(context.Background(), "n1", in, FanOutStrategy{Parallelism: 0, Ordered: true}, func(_ context.Context, n int) (int, error) {
		return n, nil
	})

	items, err := CollectAll(context.Background(), out)
	require.NoError(t, err)
	require.Equal(t, []int{1, 2}, items)
}
