package pipeline

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidator_UniqueNameRuleCatchesDuplicateDisplayNames(t *testing.T) {
	nodes := []NodeDescriptor{
		{ID: "a", DisplayName: "same", Kind: KindSource},
		{ID: "b", DisplayName: "same", Kind: KindSink},
	}
	issues := uniqueNameRule(nodes, nil)
	require.Len(t, issues, 1)
	require.Equal(t, "unique-name", issues[0].Rule)
}

func TestValidator_ConnectivityRuleCatchesOrphanNonSourceNode(t *testing.T) {
	nodes := []NodeDescriptor{
		{ID: "a", Kind: KindSource},
		{ID: "b", Kind: KindTransform},
		{ID: "c", Kind: KindSink},
	}
	edges := []Edge{{From: "a", To: "c"}} // b is never wired in
	issues := connectivityRule(nodes, edges)

	foundOrphan := false
	for _, iss := range issues {
		if iss.NodeID == "b" {
			foundOrphan = true
		}
	}
	require.True(t, foundOrphan)
}

func TestValidator_ConnectivityRuleAllowsStandaloneDeadLetterSink(t *testing.T) {
	nodes := []NodeDescriptor{
		{ID: "a", Kind: KindSource},
		{ID: "b", Kind: KindSink},
		{ID: "dead", Kind: KindSink},
	}
	edges := []Edge{{From: "a", To: "b"}}
	issues := connectivityRule(nodes, edges)
	for _, iss := range issues {
		require.NotEqual(t, "dead", iss.NodeID)
	}
}

func TestValidator_CycleRuleDetectsBackEdge(t *testing.T) {
	nodes := []NodeDescriptor{{ID: "a"}, {ID: "b"}}
	edges := []Edge{{From: "a", To: "b"}, {From: "b", To: "a"}}
	issues := cycleRule(nodes, edges)
	require.NotEmpty(t, issues)
}

func TestValidator_TypeRuleRejectsMismatchedTokens(t *testing.T) {
	nodes := []NodeDescriptor{
		{ID: "a", OutputType: reflect.TypeOf(0)},
		{ID: "b", InputType: reflect.TypeOf("")},
	}
	edges := []Edge{{From: "a", To: "b"}}
	issues := typeRule(nodes, edges)
	require.Len(t, issues, 1)
}

func TestValidator_TypeRuleAllowsRegisteredConversion(t *testing.T) {
	globalTypeRegistry.Reset()
	defer globalTypeRegistry.Reset()

	intType := reflect.TypeOf(int32(0))
	int64Type := reflect.TypeOf(int64(0))
	RegisterConversion(intType, int64Type)

	nodes := []NodeDescriptor{
		{ID: "a", OutputType: intType},
		{ID: "b", InputType: int64Type},
	}
	edges := []Edge{{From: "a", To: "b"}}
	issues := typeRule(nodes, edges)
	require.Empty(t, issues)
}

func TestValidator_CardinalityRuleRequiresMapperForCustom(t *testing.T) {
	nodes := []NodeDescriptor{
		{ID: "a", Kind: KindTransform, Cardinality: Custom},
	}
	issues := cardinalityRule(nodes, nil)
	require.Len(t, issues, 1)

	nodes[0].Lineage = &NodeLineageConfig{CustomMapper: func(string, Packet, []any) ([]Packet, error) { return nil, nil }}
	issues = cardinalityRule(nodes, nil)
	require.Empty(t, issues)
}

func TestValidator_PortRuleRejectsUnknownPort(t *testing.T) {
	nodes := []NodeDescriptor{
		{ID: "a", OutputPorts: []Port{"left"}},
		{ID: "b", InputPorts: []Port{"main"}},
	}
	edges := []Edge{{From: "a", To: "b", FromPort: "left", ToPort: "right"}}
	issues := portRule(nodes, edges)
	require.Len(t, issues, 1)
	require.Equal(t, "b", issues[0].NodeID)
}

func TestValidator_ValidateOffSkipsEverything(t *testing.T) {
	b := NewGraphBuilder()
	require.NoError(t, b.AddNode(NodeDescriptor{ID: "a", Kind: KindTransform, Cardinality: Custom}))
	g, err := b.Build(ValidationOff)
	require.NoError(t, err)
	require.NotNil(t, g)
}
