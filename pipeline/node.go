package pipeline

// NodeKind identifies the role a node plays in the graph.
type NodeKind int

const (
	KindSource NodeKind = iota
	KindTransform
	KindSink
	KindJoin
	KindAggregate
)

// String renders the node kind for diagnostics and the DOT exporter.
func (k NodeKind) String() string {
	switch k {
	case KindSource:
		return "Source"
	case KindTransform:
		return "Transform"
	case KindSink:
		return "Sink"
	case KindJoin:
		return "Join"
	case KindAggregate:
		return "Aggregate"
	default:
		return "Unknown"
	}
}

// Cardinality describes how a transform's output count relates to its input
// count. It is enforced by the lineage adapter when lineage is enabled.
type Cardinality int

const (
	// OneToOne means one input item produces exactly one output item.
	OneToOne Cardinality = iota
	// OneToMany means one input item produces zero or more output items.
	OneToMany
	// ManyToOne means N input items are collapsed into one output item.
	ManyToOne
	// Custom means the node's cardinality is reconciled by a registered
	// CustomCardinalityMapper rather than by a fixed ratio.
	Custom
)

func (c Cardinality) String() string {
	switch c {
	case OneToOne:
		return "OneToOne"
	case OneToMany:
		return "OneToMany"
	case ManyToOne:
		return "ManyToOne"
	case Custom:
		return "Custom"
	default:
		return "Unknown"
	}
}

// MergeMode selects how a node with multiple incoming edges combines them.
type MergeMode int

const (
	// MergeConcatenate drains input pipes strictly in declared edge order.
	MergeConcatenate MergeMode = iota
	// MergeInterleave multiplexes inputs through a bounded mailbox;
	// per-source order is preserved, cross-source order is not.
	MergeInterleave
	// MergeCustom hands the array of source pipes to a user function.
	MergeCustom
)

// MergeConfig configures a fan-in node's merge behavior.
type MergeConfig struct {
	Mode MergeMode
	// InterleaveCapacity bounds the interleave mailbox; <= 0 gives a
	// mailbox of one slot per source. The mailbox is never unbounded.
	InterleaveCapacity int
	// CustomMerge is invoked when Mode == MergeCustom.
	CustomMerge func(ctx *ExecutionContext, sources []Pipe[any]) (Pipe[any], error)
}

// Port names an input or output connection point on a multi-port node
// (joins, fan-out sources). The zero value is the node's single default port.
type Port string

// DefaultPort is used for edges that don't name an explicit port.
const DefaultPort Port = ""

// NodeDescriptor is the immutable, build-time description of a graph node.
// Descriptors never hold a reference to a live node instance; instances are
// resolved at run time through a NodeRegistry keyed by the descriptor's ID
// (see Runner).
type NodeDescriptor struct {
	ID          string
	DisplayName string
	Kind        NodeKind

	// InputType/OutputType are type tokens used by the validator's type
	// rule. A nil token means "untyped" (always assignable).
	InputType  any
	OutputType any

	// Strategy names the node's execution strategy as descriptive
	// metadata; the Runner does not read it.
	Strategy Strategy

	// ErrorHandler is consulted by RunTransform for each item that fails,
	// with the actual failing item in hand.
	ErrorHandler NodeErrorHandler[any]

	// Cardinality only applies to Transform nodes.
	Cardinality Cardinality

	// Merge only applies to nodes with more than one incoming edge.
	Merge *MergeConfig

	// Lineage, when non-nil, overrides the graph-level lineage options for
	// this node (e.g. to register a CustomCardinalityMapper).
	Lineage *NodeLineageConfig

	// InputPorts/OutputPorts list the named ports a Join/fan-out node
	// exposes; empty means the node only has the DefaultPort.
	InputPorts  []Port
	OutputPorts []Port
}

// Name returns the display name, falling back to the id.
func (n NodeDescriptor) Name() string {
	if n.DisplayName != "" {
		return n.DisplayName
	}
	return n.ID
}

// NodeLineageConfig overrides graph-level lineage behavior for one node.
type NodeLineageConfig struct {
	CustomMapper CustomCardinalityMapper
}
