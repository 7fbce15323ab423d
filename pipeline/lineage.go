package pipeline

import (
	"context"

	"github.com/google/uuid"

	"github.com/nodeflow-run/nodeflow/log"
)

// Packet is the unit the lineage adapter tracks: a payload plus the record
// identity graph needed to answer "what produced this, and what did it
// produce" questions after the fact.
type Packet struct {
	Payload       any
	RecordID      string
	ParentIDs     []string
	TraversalPath []string
}

// NewRootPacket creates a Packet with a fresh record id and no parents, for
// items entering the pipeline at a Source.
func NewRootPacket(nodeID string, payload any) Packet {
	id := uuid.NewString()
	return Packet{Payload: payload, RecordID: id, TraversalPath: []string{nodeID}}
}

// CustomCardinalityMapper assigns record identity to the outputs produced
// from a single input packet, for nodes declaring Cardinality Custom (e.g. a
// windowed aggregate that sometimes emits 0, sometimes N outputs per
// input).
type CustomCardinalityMapper func(nodeID string, in Packet, outputs []any) ([]Packet, error)

// LineageAdapter wraps a node's plain payload-to-payload execution with
// Packet bookkeeping, enforcing the node's declared Cardinality and
// propagating RecordID/ParentIDs/TraversalPath.
type LineageAdapter struct {
	opts   LineageOptions
	logger log.Logger
}

// NewLineageAdapter builds an adapter from graph-wide LineageOptions.
func NewLineageAdapter(opts LineageOptions, logger log.Logger) *LineageAdapter {
	if logger == nil {
		logger = log.NewDefaultLogger(log.LogLevelInfo)
	}
	return &LineageAdapter{opts: opts, logger: logger}
}

// Derive produces the output packets for one input packet given the raw
// payloads a node emitted for it, enforcing node.Cardinality.
func (a *LineageAdapter) Derive(ctx context.Context, node NodeDescriptor, in Packet, outputs []any) ([]Packet, error) {
	if !a.opts.Enabled {
		out := make([]Packet, len(outputs))
		for i, v := range outputs {
			out[i] = Packet{Payload: v}
		}
		return out, nil
	}

	switch node.Cardinality {
	case OneToOne:
		if len(outputs) != 1 {
			return nil, a.mismatch(node, in, len(outputs))
		}
	case OneToMany:
		// any count, including zero, is valid
	case ManyToOne:
		if len(outputs) > 1 {
			return nil, a.mismatch(node, in, len(outputs))
		}
	case Custom:
		if node.Lineage == nil || node.Lineage.CustomMapper == nil {
			return nil, a.mismatch(node, in, len(outputs))
		}
		return node.Lineage.CustomMapper(node.ID, in, outputs)
	}

	out := make([]Packet, len(outputs))
	for i, v := range outputs {
		out[i] = Packet{
			Payload:       v,
			RecordID:      uuid.NewString(),
			ParentIDs:     append(append([]string(nil), in.ParentIDs...), in.RecordID),
			TraversalPath: append(append([]string(nil), in.TraversalPath...), node.ID),
		}
	}
	return out, nil
}

// DeriveCollapsed produces the single output packet for a ManyToOne node
// that consumed ins to produce exactly one output, per §4.9's "N:1 — one new
// record-id; parents = all N incoming record-ids" (N counted by how many
// input packets the node actually consumed, not a fixed constant). Unlike
// Derive, which only ever sees one input packet at a time, a true collapse
// needs every consumed packet's record id to build the parent set.
func (a *LineageAdapter) DeriveCollapsed(ctx context.Context, node NodeDescriptor, ins []Packet, output any) (Packet, error) {
	if !a.opts.Enabled {
		return Packet{Payload: output}, nil
	}
	if node.Cardinality != ManyToOne {
		return Packet{}, a.mismatch(node, Packet{}, len(ins))
	}
	if len(ins) == 0 {
		return Packet{}, a.mismatch(node, Packet{}, 0)
	}

	seen := make(map[string]bool, len(ins))
	parents := make([]string, 0, len(ins))
	for _, in := range ins {
		if seen[in.RecordID] {
			continue
		}
		seen[in.RecordID] = true
		parents = append(parents, in.RecordID)
	}

	return Packet{
		Payload:       output,
		RecordID:      uuid.NewString(),
		ParentIDs:     parents,
		TraversalPath: append(append([]string(nil), ins[0].TraversalPath...), node.ID),
	}, nil
}

func (a *LineageAdapter) mismatch(node NodeDescriptor, _ Packet, observed int) error {
	err := &LineageCardinalityMismatchError{NodeID: node.ID, Declared: node.Cardinality, Observed: observed}
	if a.opts.Strict {
		return err
	}
	a.logger.Warn("lineage cardinality mismatch at node %s: declared %s, observed %d items", node.ID, node.Cardinality, observed)
	return nil
}
