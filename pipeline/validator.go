package pipeline

import (
	"fmt"
	"reflect"
)

// ValidationMode controls how the Validator reacts to issues it finds.
type ValidationMode int

const (
	// ValidationError fails the build if any rule reports an issue,
	// stopping early at the first stop-on-error rule that does.
	ValidationError ValidationMode = iota
	// ValidationWarn logs issues (via the caller-supplied sink) but
	// succeeds the build.
	ValidationWarn
	// ValidationOff skips validation entirely.
	ValidationOff
)

// ValidationIssue is one problem found by a single rule.
type ValidationIssue struct {
	Rule    string
	NodeID  string
	Message string
}

// rule is a single static check over a graph's declared nodes and edges.
// Rules only see the node and edge slices, never the Graph's own indices;
// the helpers below build scratch indices from the same data
// GraphBuilder.Build freezes.
type rule struct {
	name        string
	stopOnError bool
	check       func(nodes []NodeDescriptor, edges []Edge) []ValidationIssue
}

// Validator runs the rule set described in spec.md §4.4: connectivity,
// cycle, type, cardinality, port and unique-name checks.
type Validator struct {
	rules []rule
}

// NewValidator returns a Validator with the full default rule set.
func NewValidator() *Validator {
	return &Validator{rules: []rule{
		{name: "unique-name", check: uniqueNameRule},
		{name: "connectivity", check: connectivityRule},
		{name: "cycle", stopOnError: true, check: cycleRule},
		{name: "type", check: typeRule},
		{name: "cardinality", check: cardinalityRule},
		{name: "port", check: portRule},
	}}
}

// Validate runs all rules against g's declared nodes/edges. In
// ValidationError mode the first stop-on-error rule that reports any issue
// short-circuits and returns a *GraphValidationError; otherwise all rules
// run and their issues are concatenated. ValidationWarn never returns an
// error; ValidationOff runs nothing. Output depends only on (nodes, edges,
// mode) — P8.
func (v *Validator) Validate(g *Graph, mode ValidationMode) ([]ValidationIssue, error) {
	if mode == ValidationOff {
		return nil, nil
	}

	var all []ValidationIssue
	for _, r := range v.rules {
		issues := r.check(g.nodes, g.edges)
		all = append(all, issues...)
		if mode == ValidationError && r.stopOnError && len(issues) > 0 {
			return all, &GraphValidationError{Issues: issues}
		}
	}
	if mode == ValidationError && len(all) > 0 {
		return all, &GraphValidationError{Issues: all}
	}
	return all, nil
}

func byID(nodes []NodeDescriptor) map[string]NodeDescriptor {
	m := make(map[string]NodeDescriptor, len(nodes))
	for _, n := range nodes {
		m[n.ID] = n
	}
	return m
}

// uniqueNameRule: display names (falling back to id) must be unique.
func uniqueNameRule(nodes []NodeDescriptor, _ []Edge) []ValidationIssue {
	seen := make(map[string]string)
	var issues []ValidationIssue
	for _, n := range nodes {
		name := n.Name()
		if other, ok := seen[name]; ok && other != n.ID {
			issues = append(issues, ValidationIssue{Rule: "unique-name", NodeID: n.ID,
				Message: fmt.Sprintf("display name %q reused by nodes %s and %s", name, other, n.ID)})
		}
		seen[name] = n.ID
	}
	return issues
}

// connectivityRule: invariants 1, 4 and 5 from spec.md §3.
func connectivityRule(nodes []NodeDescriptor, edges []Edge) []ValidationIssue {
	var issues []ValidationIssue
	idx := byID(nodes)

	incoming := make(map[string]int)
	outgoing := make(map[string]int)
	for _, e := range edges {
		outgoing[e.From]++
		incoming[e.To]++
		for _, end := range []string{e.From, e.To} {
			if _, ok := idx[end]; !ok {
				issues = append(issues, ValidationIssue{Rule: "connectivity", NodeID: end,
					Message: fmt.Sprintf("edge %s->%s references unknown node %s", e.From, e.To, end)})
			}
		}
		if target, ok := idx[e.To]; ok && target.Kind == KindSource {
			issues = append(issues, ValidationIssue{Rule: "connectivity", NodeID: e.To,
				Message: fmt.Sprintf("edge %s->%s targets a Source node", e.From, e.To)})
		}
		if source, ok := idx[e.From]; ok && source.Kind == KindSink {
			issues = append(issues, ValidationIssue{Rule: "connectivity", NodeID: e.From,
				Message: fmt.Sprintf("edge %s->%s originates from a Sink node", e.From, e.To)})
		}
	}

	adjList := buildAdjacency(nodes, edges)
	components := weaklyConnectedComponents(nodes, adjList)

	for _, n := range nodes {
		isDeadLetter := n.Kind == KindSink && incoming[n.ID] == 0 && outgoing[n.ID] == 0 && len(edges) > 0 && !reachable(n.ID, edges)
		if n.Kind != KindSource && incoming[n.ID] == 0 && !isDeadLetter {
			issues = append(issues, ValidationIssue{Rule: "connectivity", NodeID: n.ID,
				Message: fmt.Sprintf("non-source node %s has no incoming edge", n.ID)})
		}
		if n.Kind != KindSink && outgoing[n.ID] == 0 {
			issues = append(issues, ValidationIssue{Rule: "connectivity", NodeID: n.ID,
				Message: fmt.Sprintf("non-sink node %s has no outgoing edge", n.ID)})
		}
	}

	for _, comp := range components {
		sinkCount := 0
		for _, id := range comp {
			if n, ok := idx[id]; ok && n.Kind == KindSink {
				sinkCount++
			}
		}
		if sinkCount != 1 {
			issues = append(issues, ValidationIssue{Rule: "connectivity",
				Message: fmt.Sprintf("connected component %v has %d sinks, want exactly 1", comp, sinkCount)})
		}
	}

	return issues
}

// reachable reports whether any edge mentions id at all; used to exempt
// standalone dead-letter sinks (which need no incoming graph edges) from
// the connectivity rule.
func reachable(id string, edges []Edge) bool {
	for _, e := range edges {
		if e.From == id || e.To == id {
			return true
		}
	}
	return false
}

func buildAdjacency(nodes []NodeDescriptor, edges []Edge) map[string][]string {
	adj := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		adj[n.ID] = nil
	}
	for _, e := range edges {
		adj[e.From] = append(adj[e.From], e.To)
		adj[e.To] = append(adj[e.To], e.From)
	}
	return adj
}

func weaklyConnectedComponents(nodes []NodeDescriptor, adj map[string][]string) [][]string {
	visited := make(map[string]bool, len(nodes))
	var components [][]string
	for _, n := range nodes {
		if visited[n.ID] {
			continue
		}
		var comp []string
		stack := []string{n.ID}
		visited[n.ID] = true
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			comp = append(comp, id)
			for _, next := range adj[id] {
				if !visited[next] {
					visited[next] = true
					stack = append(stack, next)
				}
			}
		}
		components = append(components, comp)
	}
	return components
}

// cycleRule: DFS with tri-color marking to detect back-edges (invariant 2).
func cycleRule(nodes []NodeDescriptor, edges []Edge) []ValidationIssue {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(nodes))
	out := make(map[string][]string, len(nodes))
	for _, n := range nodes {
		color[n.ID] = white
	}
	for _, e := range edges {
		out[e.From] = append(out[e.From], e.To)
	}

	var issues []ValidationIssue
	var visit func(id string) bool // true if a cycle was found rooted here
	visit = func(id string) bool {
		color[id] = gray
		for _, next := range out[id] {
			switch color[next] {
			case gray:
				issues = append(issues, ValidationIssue{Rule: "cycle", NodeID: id,
					Message: fmt.Sprintf("back-edge %s->%s closes a cycle", id, next)})
				return true
			case white:
				if visit(next) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}

	for _, n := range nodes {
		if color[n.ID] == white {
			visit(n.ID)
		}
	}
	return issues
}

// typeRule: invariant 3, edge source output assignable to target input.
func typeRule(nodes []NodeDescriptor, edges []Edge) []ValidationIssue {
	idx := byID(nodes)
	var issues []ValidationIssue
	for _, e := range edges {
		from, okFrom := idx[e.From]
		to, okTo := idx[e.To]
		if !okFrom || !okTo {
			continue
		}
		if from.OutputType == nil || to.InputType == nil {
			continue
		}
		if !assignable(from.OutputType, to.InputType) {
			issues = append(issues, ValidationIssue{Rule: "type", NodeID: e.To,
				Message: fmt.Sprintf("edge %s->%s: output type %v not assignable to input type %v", e.From, e.To, from.OutputType, to.InputType)})
		}
	}
	return issues
}

// assignable compares type tokens. Tokens are typically reflect.Type values
// supplied by the graph builder. Identity is always assignable; anything
// else must have been declared compatible via RegisterConversion, so the
// core never has to interpret a user type system on its own.
func assignable(out, in any) bool {
	if out == in {
		return true
	}
	outType, okOut := out.(reflect.Type)
	inType, okIn := in.(reflect.Type)
	if !okOut || !okIn {
		return false
	}
	return globalTypeRegistry.Allows(outType, inType)
}

// cardinalityRule: every transform declares a cardinality that admits at
// least one lineage adapter producing it (OneToOne/OneToMany/ManyToOne
// always do; Custom requires a registered mapper on the node).
func cardinalityRule(nodes []NodeDescriptor, _ []Edge) []ValidationIssue {
	var issues []ValidationIssue
	for _, n := range nodes {
		if n.Kind != KindTransform {
			continue
		}
		if n.Cardinality == Custom && (n.Lineage == nil || n.Lineage.CustomMapper == nil) {
			issues = append(issues, ValidationIssue{Rule: "cardinality", NodeID: n.ID,
				Message: fmt.Sprintf("transform %s declares Custom cardinality with no registered mapper", n.ID)})
		}
	}
	return issues
}

// portRule: port names referenced by edges must exist on the referenced
// node kind's declared port list.
func portRule(nodes []NodeDescriptor, edges []Edge) []ValidationIssue {
	idx := byID(nodes)
	var issues []ValidationIssue
	for _, e := range edges {
		if e.ToPort != DefaultPort {
			if target, ok := idx[e.To]; ok && !hasPort(target.InputPorts, e.ToPort) {
				issues = append(issues, ValidationIssue{Rule: "port", NodeID: e.To,
					Message: fmt.Sprintf("node %s has no input port %q", e.To, e.ToPort)})
			}
		}
		if e.FromPort != DefaultPort {
			if source, ok := idx[e.From]; ok && !hasPort(source.OutputPorts, e.FromPort) {
				issues = append(issues, ValidationIssue{Rule: "port", NodeID: e.From,
					Message: fmt.Sprintf("node %s has no output port %q", e.From, e.FromPort)})
			}
		}
	}
	return issues
}

func hasPort(ports []Port, p Port) bool {
	for _, candidate := range ports {
		if candidate == p {
			return true
		}
	}
	return false
}
