// Package sqlite provides a reference pipeline.DeadLetterSink implementation
// backed by SQLite via mattn/go-sqlite3, alongside a matching
// pipeline.Source that replays dead-lettered items for reprocessing.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nodeflow-run/nodeflow/pipeline"
)

// Options configures the dead-letter table.
type Options struct {
	Path      string
	TableName string // default "dead_letters"
}

// DeadLetterSink persists failed items to a SQLite table so a later run can
// inspect or replay them, satisfying pipeline.DeadLetterSink.
type DeadLetterSink struct {
	db    *sql.DB
	table string
}

var _ pipeline.DeadLetterSink = (*DeadLetterSink)(nil)

// Open opens (creating if needed) a SQLite-backed DeadLetterSink at
// opts.Path.
func Open(opts Options) (*DeadLetterSink, error) {
	db, err := sql.Open("sqlite3", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlite dead letter: open %s: %w", opts.Path, err)
	}

	table := opts.TableName
	if table == "" {
		table = "dead_letters"
	}

	s := &DeadLetterSink{db: db, table: table}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *DeadLetterSink) initSchema() error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			node_id TEXT NOT NULL,
			payload TEXT NOT NULL,
			cause TEXT NOT NULL,
			observed_at DATETIME NOT NULL
		);
	`, s.table)
	_, err := s.db.Exec(query)
	if err != nil {
		return fmt.Errorf("sqlite dead letter: init schema: %w", err)
	}
	return nil
}

// Offer persists one dead-lettered item. A nil item is stored as a JSON
// null.
func (s *DeadLetterSink) Offer(ctx context.Context, nodeID string, item any, cause error) error {
	payload, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("sqlite dead letter: encode payload: %w", err)
	}

	query := fmt.Sprintf("INSERT INTO %s (node_id, payload, cause, observed_at) VALUES (?, ?, ?, ?)", s.table)
	if _, err := s.db.ExecContext(ctx, query, nodeID, string(payload), cause.Error(), time.Now()); err != nil {
		return fmt.Errorf("sqlite dead letter: insert: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *DeadLetterSink) Close() error { return s.db.Close() }

// ReplaySource reads back every dead-lettered item for nodeID as a
// pipeline.Source[json.RawMessage], letting a graph wire a failed node's
// casualties back in as a fresh input for reprocessing.
type ReplaySource struct {
	db     *sql.DB
	table  string
	nodeID string
}

// NewReplaySource builds a ReplaySource over an already-open dead-letter
// database.
func NewReplaySource(s *DeadLetterSink, nodeID string) *ReplaySource {
	return &ReplaySource{db: s.db, table: s.table, nodeID: nodeID}
}

var _ pipeline.Source[json.RawMessage] = (*ReplaySource)(nil)

// Open queries every stored payload for nodeID and streams it back out.
func (r *ReplaySource) Open(ctx context.Context, ec *pipeline.ExecutionContext) (pipeline.Pipe[json.RawMessage], error) {
	query := fmt.Sprintf("SELECT payload FROM %s WHERE node_id = ? ORDER BY id ASC", r.table)
	rows, err := r.db.QueryContext(ctx, query, r.nodeID)
	if err != nil {
		return nil, fmt.Errorf("sqlite dead letter: query replay for %s: %w", r.nodeID, err)
	}
	ec.RegisterResource("sqlite-replay:"+r.nodeID, func() error {
		rows.Close()
		return rows.Err()
	})

	return pipeline.NewStreamPipe(r.nodeID, func(ctx context.Context) (json.RawMessage, bool, error) {
		if !rows.Next() {
			return nil, false, rows.Err()
		}
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, false, fmt.Errorf("sqlite dead letter: scan replay row: %w", err)
		}
		return json.RawMessage(payload), true, nil
	}), nil
}
