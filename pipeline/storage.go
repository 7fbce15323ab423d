package pipeline

import (
	"context"
	"time"
)

// StorageSession is a connector-owned resource — a database connection, a
// queue consumer handle, a file descriptor — opened by a Source or Sink and
// registered against the ExecutionContext for LIFO disposal at the end of
// the run. Connectors (see the connectors package) implement this directly
// against their transport's native client.
type StorageSession interface {
	Close() error
}

// LineageRecord is the durable form of a Packet, as a LineageSink stores it.
type LineageRecord struct {
	RecordID      string
	ParentIDs     []string
	TraversalPath []string
	NodeID        string
	Timestamp     time.Time
}

// LineageSink persists LineageRecords for later inspection — answering "who
// produced this record" after a run has finished. It is an optional
// collaborator: a LineageAdapter works entirely in-memory unless a caller
// wires one of these in.
type LineageSink interface {
	Record(ctx context.Context, records []LineageRecord) error
}

// discardLineageSink drops every record offered to it.
type discardLineageSink struct{}

func (discardLineageSink) Record(context.Context, []LineageRecord) error { return nil }

// DiscardLineage is the zero-configuration LineageSink.
var DiscardLineage LineageSink = discardLineageSink{}

// RecordsFrom converts packets produced at nodeID into LineageRecords ready
// for a LineageSink, stamping them with observedAt.
func RecordsFrom(nodeID string, packets []Packet, observedAt time.Time) []LineageRecord {
	out := make([]LineageRecord, len(packets))
	for i, p := range packets {
		out[i] = LineageRecord{
			RecordID:      p.RecordID,
			ParentIDs:     p.ParentIDs,
			TraversalPath: p.TraversalPath,
			NodeID:        nodeID,
			Timestamp:     observedAt,
		}
	}
	return out
}
