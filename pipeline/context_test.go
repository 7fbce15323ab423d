package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExecutionContext_KeyValueMapsAreIsolatedByKind(t *testing.T) {
	ec := NewExecutionContext(context.Background(), nil, nil)

	ec.SetParameter("batchSize", 10)
	ec.SetItem("runningTotal", 42)
	ec.SetProperty("label", "demo")

	v, ok := ec.Parameter("batchSize")
	require.True(t, ok)
	require.Equal(t, 10, v)

	_, ok = ec.Item("batchSize")
	require.False(t, ok)

	v, ok = ec.Item("runningTotal")
	require.True(t, ok)
	require.Equal(t, 42, v)

	v, ok = ec.Property("label")
	require.True(t, ok)
	require.Equal(t, "demo", v)
}

func TestExecutionContext_NodeStackScoping(t *testing.T) {
	ec := NewExecutionContext(context.Background(), nil, nil)
	require.Equal(t, "", ec.CurrentNode())

	ec.PushNode("outer")
	require.Equal(t, "outer", ec.CurrentNode())
	ec.PushNode("inner")
	require.Equal(t, "inner", ec.CurrentNode())
	ec.PopNode()
	require.Equal(t, "outer", ec.CurrentNode())
	ec.PopNode()
	require.Equal(t, "", ec.CurrentNode())
}

func TestExecutionContext_DisposeRunsResourcesInLIFOOrder(t *testing.T) {
	ec := NewExecutionContext(context.Background(), nil, nil)
	var order []string
	ec.RegisterResource("first", func() error { order = append(order, "first"); return nil })
	ec.RegisterResource("second", func() error { order = append(order, "second"); return nil })

	require.NoError(t, ec.Dispose())
	require.Equal(t, []string{"second", "first"}, order)
}

func TestExecutionContext_DisposeAggregatesFailures(t *testing.T) {
	ec := NewExecutionContext(context.Background(), nil, nil)
	boom1 := errors.New("boom1")
	boom2 := errors.New("boom2")
	ec.RegisterResource("a", func() error { return boom1 })
	ec.RegisterResource("b", func() error { return boom2 })

	err := ec.Dispose()
	require.Error(t, err)
	var disposalErr *ContextDisposalFailedError
	require.ErrorAs(t, err, &disposalErr)
	require.Len(t, disposalErr.Errs, 2)
}

func TestExecutionContext_LineageDefaultsToNil(t *testing.T) {
	ec := NewExecutionContext(context.Background(), nil, nil)
	require.Nil(t, ec.Lineage())

	adapter := NewLineageAdapter(LineageOptions{Enabled: true}, nil)
	ec.SetLineage(adapter)
	require.Same(t, adapter, ec.Lineage())
}

func TestExecutionContext_CancelPropagatesToContext(t *testing.T) {
	ec := NewExecutionContext(context.Background(), nil, nil)
	ec.Cancel()
	require.Error(t, ec.Context().Err())
}
