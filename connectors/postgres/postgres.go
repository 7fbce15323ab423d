// Package postgres provides reference pipeline.Source and pipeline.Sink
// implementations backed by PostgreSQL via pgx, demonstrating how a
// concrete connector satisfies the pipeline package's contracts without the
// core depending on any particular transport.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nodeflow-run/nodeflow/pipeline"
)

// DBPool is the subset of *pgxpool.Pool this connector uses, narrowed so
// tests can substitute a pgxmock pool.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// Row is a single record read from or written to a table: column name to
// value.
type Row map[string]any

// SourceOptions configures a table-scanning Source.
type SourceOptions struct {
	Table   string
	Columns []string
	// Where, if non-empty, is appended as a raw SQL WHERE clause (callers
	// are responsible for injection-safety of any embedded literals; use
	// Args for parameters instead wherever possible).
	Where string
	Args  []any
}

// Source streams rows of a table as pipeline items from one SQL query,
// executed when Open is called.
type Source struct {
	pool DBPool
	opts SourceOptions
}

// NewSource builds a Source reading from opts.Table via pool. pool is
// typically a *pgxpool.Pool from Connect, or a pgxmock pool in tests.
func NewSource(pool DBPool, opts SourceOptions) *Source {
	return &Source{pool: pool, opts: opts}
}

var _ pipeline.Source[Row] = (*Source)(nil)

// Open runs the configured query and wraps the resulting cursor as a
// pipeline.Pipe[Row]. The pgx.Rows cursor is registered with ec for
// disposal so a failed or cancelled run still closes it.
func (s *Source) Open(ctx context.Context, ec *pipeline.ExecutionContext) (pipeline.Pipe[Row], error) {
	query := s.buildQuery()
	rows, err := s.pool.Query(ctx, query, s.opts.Args...)
	if err != nil {
		return nil, fmt.Errorf("postgres source: query %s: %w", s.opts.Table, err)
	}
	ec.RegisterResource("postgres-source:"+s.opts.Table, func() error {
		rows.Close()
		return rows.Err()
	})

	fields := rows.FieldDescriptions()
	return pipeline.NewStreamPipe(s.opts.Table, func(ctx context.Context) (Row, bool, error) {
		if !rows.Next() {
			return nil, false, rows.Err()
		}
		values, err := rows.Values()
		if err != nil {
			return nil, false, fmt.Errorf("postgres source: scan %s: %w", s.opts.Table, err)
		}
		row := make(Row, len(fields))
		for i, f := range fields {
			row[string(f.Name)] = values[i]
		}
		return row, true, nil
	}), nil
}

func (s *Source) buildQuery() string {
	cols := "*"
	if len(s.opts.Columns) > 0 {
		cols = ""
		for i, c := range s.opts.Columns {
			if i > 0 {
				cols += ", "
			}
			cols += c
		}
	}
	query := fmt.Sprintf("SELECT %s FROM %s", cols, s.opts.Table)
	if s.opts.Where != "" {
		query += " WHERE " + s.opts.Where
	}
	return query
}

// SinkOptions configures an upserting Sink.
type SinkOptions struct {
	Table      string
	ConflictOn string // column(s) for ON CONFLICT, e.g. "id"
}

// Sink upserts every Row it consumes into a table, one statement per row.
type Sink struct {
	pool DBPool
	opts SinkOptions
}

// NewSink builds a Sink writing into opts.Table via pool.
func NewSink(pool DBPool, opts SinkOptions) *Sink {
	return &Sink{pool: pool, opts: opts}
}

var _ pipeline.Sink[Row] = (*Sink)(nil)

// Consume drains in, issuing one INSERT .. ON CONFLICT DO UPDATE per row.
func (s *Sink) Consume(ctx context.Context, ec *pipeline.ExecutionContext, in pipeline.Pipe[Row]) error {
	logger := ec.Logger()
	for {
		row, ok, err := in.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := s.upsert(ctx, row); err != nil {
			return fmt.Errorf("postgres sink: upsert into %s: %w", s.opts.Table, err)
		}
		logger.Debug("upserted row into %s", s.opts.Table)
	}
}

func (s *Sink) upsert(ctx context.Context, row Row) error {
	cols := make([]string, 0, len(row))
	for col := range row {
		cols = append(cols, col)
	}

	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	setClauses := make([]string, 0, len(cols))
	for i, col := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		args[i] = row[col]
		if col != s.opts.ConflictOn {
			setClauses = append(setClauses, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", s.opts.Table, joinCols(cols), joinCols(placeholders))
	if s.opts.ConflictOn != "" && len(setClauses) > 0 {
		query += fmt.Sprintf(" ON CONFLICT (%s) DO UPDATE SET %s", s.opts.ConflictOn, joinCols(setClauses))
	}

	_, err := s.pool.Exec(ctx, query, args...)
	return err
}

func joinCols(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}

// Connect opens a pgxpool.Pool against connString, the connector's entry
// point for production use (tests substitute a pgxmock pool directly into
// NewSource/NewSink).
func Connect(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("postgres connect: %w", err)
	}
	return pool, nil
}
