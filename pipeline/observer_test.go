package pipeline

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMultiObserver_FansOutToEveryObserver(t *testing.T) {
	a := NewRecordingObserver()
	b := NewRecordingObserver()
	multi := MultiObserver{a, b}

	multi.Notify(Event{Kind: EventNodeStarted, NodeID: "n"})

	require.Len(t, a.Events(), 1)
	require.Len(t, b.Events(), 1)
}

func TestObserverFunc_AdaptsPlainFunction(t *testing.T) {
	var seen Event
	f := ObserverFunc(func(e Event) { seen = e })
	f.Notify(Event{Kind: EventNodeFailed, NodeID: "n"})
	require.Equal(t, EventNodeFailed, seen.Kind)
}

func TestTracer_SpansReducesEventsPerNode(t *testing.T) {
	start := time.Unix(1000, 0)
	end := time.Unix(1005, 0)
	events := []Event{
		{Kind: EventNodeStarted, NodeID: "a", Timestamp: start, Attempt: 1},
		{Kind: EventNodeFailed, NodeID: "a", Timestamp: start.Add(time.Second), Err: errors.New("x")},
		{Kind: EventNodeRetrying, NodeID: "a", Timestamp: start.Add(2 * time.Second), Attempt: 2},
		{Kind: EventNodeStarted, NodeID: "a", Timestamp: start.Add(2 * time.Second), Attempt: 2},
		{Kind: EventNodeCompleted, NodeID: "a", Timestamp: end},
		{Kind: EventNodeStarted, NodeID: "b", Timestamp: start},
		{Kind: EventNodeCompleted, NodeID: "b", Timestamp: end},
	}

	spans := Tracer{}.Spans(events)
	require.Len(t, spans, 2)
	require.Equal(t, "a", spans[0].NodeID)
	require.True(t, spans[0].Start.Equal(start))
	require.True(t, spans[0].End.Equal(end))
	require.Equal(t, 2, spans[0].Attempts)
	require.Equal(t, "b", spans[1].NodeID)
	require.False(t, spans[1].Failed)
}
