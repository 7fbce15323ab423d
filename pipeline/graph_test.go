package pipeline

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func chainGraph(t *testing.T) *Graph {
	t.Helper()
	b := NewGraphBuilder()
	require.NoError(t, b.AddNode(NodeDescriptor{ID: "src", Kind: KindSource}))
	require.NoError(t, b.AddNode(NodeDescriptor{ID: "xform", Kind: KindTransform, Cardinality: OneToOne}))
	require.NoError(t, b.AddNode(NodeDescriptor{ID: "sink", Kind: KindSink}))
	require.NoError(t, b.AddEdge(Edge{From: "src", To: "xform"}))
	require.NoError(t, b.AddEdge(Edge{From: "xform", To: "sink"}))

	g, err := b.Build(ValidationError)
	require.NoError(t, err)
	return g
}

func TestGraphBuilder_BuildProducesDeterministicTopologicalOrder(t *testing.T) {
	g := chainGraph(t)
	require.Equal(t, []string{"src", "xform", "sink"}, g.TopologicalOrder())

	n, ok := g.NodeByID("xform")
	require.True(t, ok)
	require.Equal(t, KindTransform, n.Kind)

	_, ok = g.NodeByID("missing")
	require.False(t, ok)
}

func TestGraphBuilder_DuplicateNodeIDRejected(t *testing.T) {
	b := NewGraphBuilder()
	require.NoError(t, b.AddNode(NodeDescriptor{ID: "a", Kind: KindSource}))
	err := b.AddNode(NodeDescriptor{ID: "a", Kind: KindSink})
	require.ErrorIs(t, err, ErrDuplicateNode)
}

func TestGraphBuilder_BuildFreezesAndRejectsReuse(t *testing.T) {
	b := NewGraphBuilder()
	require.NoError(t, b.AddNode(NodeDescriptor{ID: "only", Kind: KindSource}))
	require.NoError(t, b.AddEdge(Edge{From: "only", To: "only"})) // intentionally invalid, forces an error

	_, err := b.Build(ValidationError)
	require.Error(t, err)

	_, err = b.Build(ValidationError)
	require.ErrorIs(t, err, ErrGraphFrozen)
}

func TestGraphBuilder_CycleRejectedInErrorMode(t *testing.T) {
	b := NewGraphBuilder()
	require.NoError(t, b.AddNode(NodeDescriptor{ID: "a", Kind: KindTransform}))
	require.NoError(t, b.AddNode(NodeDescriptor{ID: "b", Kind: KindTransform}))
	require.NoError(t, b.AddEdge(Edge{From: "a", To: "b"}))
	require.NoError(t, b.AddEdge(Edge{From: "b", To: "a"}))

	_, err := b.Build(ValidationError)
	require.Error(t, err)
	var gerr *GraphValidationError
	require.ErrorAs(t, err, &gerr)
}

func TestGraphBuilder_WarnModeBuildsDespiteIssuesAndNotifiesObserver(t *testing.T) {
	obs := NewRecordingObserver()
	b := NewGraphBuilder()
	b.Execution = ExecutionOptions{Observer: obs}
	require.NoError(t, b.AddNode(NodeDescriptor{ID: "orphan", Kind: KindTransform}))

	g, err := b.Build(ValidationWarn)
	require.NoError(t, err)
	require.NotNil(t, g)
	require.NotEmpty(t, obs.Events())
}
