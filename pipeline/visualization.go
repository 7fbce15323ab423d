package pipeline

import (
	"fmt"
	"sort"
	"strings"
)

// Exporter renders a Graph in diagnostic formats. It is supplementary to
// the core execution path — nothing in Graph or the runner depends on it —
// but is the usual first thing reached for when a pipeline misbehaves.
type Exporter struct {
	graph *Graph
}

// NewExporter wraps g for rendering.
func NewExporter(g *Graph) *Exporter { return &Exporter{graph: g} }

func shapeFor(kind NodeKind) string {
	switch kind {
	case KindSource:
		return "ellipse"
	case KindSink:
		return "ellipse"
	case KindJoin:
		return "diamond"
	case KindAggregate:
		return "trapezium"
	default:
		return "box"
	}
}

func fillFor(kind NodeKind) string {
	switch kind {
	case KindSource:
		return "lightgreen"
	case KindSink:
		return "lightpink"
	case KindJoin, KindAggregate:
		return "lightyellow"
	default:
		return "lightblue"
	}
}

// DrawDOT renders the graph as a Graphviz DOT digraph, coloring nodes by
// kind and labeling edges with any non-default ports.
func (e *Exporter) DrawDOT() string {
	var sb strings.Builder
	sb.WriteString("digraph Pipeline {\n")
	sb.WriteString("    rankdir=LR;\n")

	for _, n := range e.graph.Nodes() {
		sb.WriteString(fmt.Sprintf("    %q [label=%q, shape=%s, style=filled, fillcolor=%s];\n",
			n.ID, n.Name(), shapeFor(n.Kind), fillFor(n.Kind)))
	}

	for _, edge := range e.graph.Edges() {
		if edge.FromPort == DefaultPort && edge.ToPort == DefaultPort {
			sb.WriteString(fmt.Sprintf("    %q -> %q;\n", edge.From, edge.To))
			continue
		}
		label := string(edge.FromPort) + "->" + string(edge.ToPort)
		sb.WriteString(fmt.Sprintf("    %q -> %q [label=%q];\n", edge.From, edge.To, label))
	}

	sb.WriteString("}\n")
	return sb.String()
}

// DrawASCII renders a simple indented tree starting from every node with no
// incoming edges (the graph's sources), in sorted id order. A graph with no
// such node renders only the header line.
func (e *Exporter) DrawASCII() string {
	var sb strings.Builder
	sb.WriteString("Pipeline:\n")

	var roots []string
	for _, n := range e.graph.Nodes() {
		if len(e.graph.Incoming(n.ID)) == 0 {
			roots = append(roots, n.ID)
		}
	}
	sort.Strings(roots)

	visited := make(map[string]bool)
	for i, root := range roots {
		e.drawASCIINode(root, "", i == len(roots)-1, visited, &sb)
	}
	return sb.String()
}

func (e *Exporter) drawASCIINode(id, prefix string, isLast bool, visited map[string]bool, sb *strings.Builder) {
	connector, nextPrefix := "├── ", prefix+"│   "
	if isLast {
		connector, nextPrefix = "└── ", prefix+"    "
	}

	if visited[id] {
		sb.WriteString(fmt.Sprintf("%s%s%s (cycle)\n", prefix, connector, id))
		return
	}
	visited[id] = true
	sb.WriteString(fmt.Sprintf("%s%s%s\n", prefix, connector, id))

	var children []string
	for _, edge := range e.graph.Outgoing(id) {
		children = append(children, edge.To)
	}
	sort.Strings(children)
	for i, child := range children {
		e.drawASCIINode(child, nextPrefix, i == len(children)-1, visited, sb)
	}
}
