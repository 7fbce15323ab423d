package postgres

import (
	"context"
	"regexp"
	"testing"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nodeflow-run/nodeflow/pipeline"
)

func TestSource_Open_StreamsRows(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	rows := pgxmock.NewRows([]string{"id", "name"}).
		AddRow(int64(1), "alice").
		AddRow(int64(2), "bob")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM users")).WillReturnRows(rows)

	src := NewSource(mock, SourceOptions{Table: "users"})
	ec := pipeline.NewExecutionContext(context.Background(), nil, nil)

	p, err := src.Open(context.Background(), ec)
	require.NoError(t, err)

	got, err := pipeline.CollectAll(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "alice", got[0]["name"])
	assert.Equal(t, "bob", got[1]["name"])

	assert.NoError(t, ec.Dispose())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSink_Consume_UpsertsEachRow(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	sink := NewSink(mock, SinkOptions{Table: "users", ConflictOn: "id"})
	ec := pipeline.NewExecutionContext(context.Background(), nil, nil)

	in := pipeline.NewMemoryPipe("rows", []Row{{"id": 1, "name": "carol"}})
	err = sink.Consume(context.Background(), ec, in)
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}
