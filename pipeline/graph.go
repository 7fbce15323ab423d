package pipeline

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNodeNotFound is returned when a node id is not present in the graph.
	ErrNodeNotFound = errors.New("pipeline: node not found")
	// ErrDuplicateNode is returned when AddNode is called twice with the same id.
	ErrDuplicateNode = errors.New("pipeline: duplicate node id")
	// ErrGraphFrozen is returned when a builder is reused after Build.
	ErrGraphFrozen = errors.New("pipeline: graph builder already built")
)

// Graph is the immutable, validated description of a dataflow pipeline: an
// ordered sequence of nodes and edges plus a frozen id->descriptor index and
// pre-computed adjacency/topological-order caches. The execution scheduler
// never mutates a Graph; node instances interact with the pipeline only
// through the ExecutionContext, never by holding a reference back to it.
type Graph struct {
	nodes []NodeDescriptor
	edges []Edge

	byID     map[string]int // node id -> index into nodes
	outgoing map[string][]Edge
	incoming map[string][]Edge
	topo     []string // topological order of node ids

	ErrorHandling ErrorHandlingConfig
	Lineage       LineageOptions
	Execution     ExecutionOptions
}

// Nodes returns the graph's nodes in declaration order.
func (g *Graph) Nodes() []NodeDescriptor { return g.nodes }

// Edges returns the graph's edges in declaration order.
func (g *Graph) Edges() []Edge { return g.edges }

// NodeByID is an O(1) lookup into the frozen node index.
func (g *Graph) NodeByID(id string) (NodeDescriptor, bool) {
	idx, ok := g.byID[id]
	if !ok {
		return NodeDescriptor{}, false
	}
	return g.nodes[idx], true
}

// Outgoing returns the edges originating at id, in declaration order.
func (g *Graph) Outgoing(id string) []Edge { return g.outgoing[id] }

// Incoming returns the edges terminating at id, in declaration order.
func (g *Graph) Incoming(id string) []Edge { return g.incoming[id] }

// TopologicalOrder returns node ids such that every edge (u->v) has u
// appearing before v. Computed once at build time (Kahn's algorithm,
// ties broken by declaration order for determinism — P8).
func (g *Graph) TopologicalOrder() []string { return g.topo }

// GraphBuilder accumulates nodes and edges for a single Graph. A builder is
// single-use: calling Build freezes it and a second call returns
// ErrGraphFrozen.
type GraphBuilder struct {
	nodes  []NodeDescriptor
	edges  []Edge
	seen   map[string]bool
	frozen bool

	ErrorHandling ErrorHandlingConfig
	Lineage       LineageOptions
	Execution     ExecutionOptions
}

// NewGraphBuilder creates an empty builder.
func NewGraphBuilder() *GraphBuilder {
	return &GraphBuilder{seen: make(map[string]bool)}
}

// AddNode appends a node descriptor. Returns ErrDuplicateNode if the id was
// already added.
func (b *GraphBuilder) AddNode(n NodeDescriptor) error {
	if b.frozen {
		return ErrGraphFrozen
	}
	if n.ID == "" {
		return errors.New("pipeline: node id must not be empty")
	}
	if b.seen[n.ID] {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
	}
	b.seen[n.ID] = true
	b.nodes = append(b.nodes, n)
	return nil
}

// AddEdge appends an edge. Referential integrity (both ends must name a
// node that was or will be added) is checked by the validator, not here —
// builders may add edges before their endpoints if callers construct the
// graph in multiple passes.
func (b *GraphBuilder) AddEdge(e Edge) error {
	if b.frozen {
		return ErrGraphFrozen
	}
	b.edges = append(b.edges, e)
	return nil
}

// Build runs the validator in mode and, if it doesn't fail the build,
// freezes the accumulated nodes/edges into a Graph with pre-computed
// indices. The builder cannot be reused after Build succeeds or fails with
// ValidationError — construct a new one.
func (b *GraphBuilder) Build(mode ValidationMode) (*Graph, error) {
	if b.frozen {
		return nil, ErrGraphFrozen
	}
	b.frozen = true

	g := &Graph{
		nodes:         append([]NodeDescriptor(nil), b.nodes...),
		edges:         append([]Edge(nil), b.edges...),
		byID:          make(map[string]int, len(b.nodes)),
		outgoing:      make(map[string][]Edge),
		incoming:      make(map[string][]Edge),
		ErrorHandling: b.ErrorHandling,
		Lineage:       b.Lineage,
		Execution:     b.Execution,
	}
	for i, n := range g.nodes {
		g.byID[n.ID] = i
	}
	for _, e := range g.edges {
		g.outgoing[e.From] = append(g.outgoing[e.From], e)
		g.incoming[e.To] = append(g.incoming[e.To], e)
	}

	v := NewValidator()
	issues, err := v.Validate(g, mode)
	if err != nil {
		return nil, err
	}
	if mode == ValidationWarn && b.Execution.Observer != nil {
		for _, iss := range issues {
			b.Execution.Observer.Notify(Event{
				Kind:      EventNodeFailed,
				NodeID:    iss.NodeID,
				Timestamp: time.Now(),
				Err:       fmt.Errorf("%s: %s", iss.Rule, iss.Message),
			})
		}
	}

	topo, cycleErr := topologicalSort(g)
	if cycleErr != nil {
		return nil, cycleErr
	}
	g.topo = topo

	return g, nil
}

// topologicalSort runs Kahn's algorithm over g, breaking ties by the order
// nodes were declared so that results are deterministic (P8).
func topologicalSort(g *Graph) ([]string, error) {
	indegree := make(map[string]int, len(g.nodes))
	order := make([]string, 0, len(g.nodes))
	for _, n := range g.nodes {
		indegree[n.ID] = len(g.incoming[n.ID])
	}

	ready := make([]string, 0, len(g.nodes))
	for _, n := range g.nodes {
		if indegree[n.ID] == 0 {
			ready = append(ready, n.ID)
		}
	}

	for len(ready) > 0 {
		id := ready[0]
		ready = ready[1:]
		order = append(order, id)
		for _, e := range g.outgoing[id] {
			indegree[e.To]--
			if indegree[e.To] == 0 {
				ready = append(ready, e.To)
			}
		}
	}

	if len(order) != len(g.nodes) {
		return nil, &GraphValidationError{Issues: []ValidationIssue{{
			Rule:    "cycle",
			Message: "graph contains a cycle",
		}}}
	}
	return order, nil
}
