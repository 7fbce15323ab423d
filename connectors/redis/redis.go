// Package redis provides reference pipeline.Source and pipeline.Sink
// implementations backed by a Redis list acting as a simple durable queue,
// via go-redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nodeflow-run/nodeflow/pipeline"
)

// Options configures both the Source and Sink connectors.
type Options struct {
	Addr     string
	Password string
	DB       int
	// Key is the Redis list used as the queue.
	Key string
	// PollTimeout bounds each BLPOP call; the Source treats a timeout as
	// "nothing to read yet" and polls again rather than failing.
	PollTimeout time.Duration
}

func newClient(opts Options) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: opts.Addr, Password: opts.Password, DB: opts.DB})
}

// Source pulls JSON-encoded items off a Redis list with BLPOP, decoding
// each into T.
type Source[T any] struct {
	client *redis.Client
	opts   Options
}

// NewSource builds a Source reading opts.Key via a fresh client.
func NewSource[T any](opts Options) *Source[T] {
	return &Source[T]{client: newClient(opts), opts: opts}
}

// NewSourceWithClient builds a Source against an existing client — the seam
// tests use to substitute a miniredis-backed client.
func NewSourceWithClient[T any](client *redis.Client, opts Options) *Source[T] {
	return &Source[T]{client: client, opts: opts}
}

var _ pipeline.Source[int] = (*Source[int])(nil)

// Open registers the client for disposal and returns a Pipe that BLPOPs
// opts.Key until the context is cancelled, at which point it reports
// exhaustion rather than an error (structured cancellation, not failure).
func (s *Source[T]) Open(ctx context.Context, ec *pipeline.ExecutionContext) (pipeline.Pipe[T], error) {
	ec.RegisterResource("redis-source:"+s.opts.Key, s.client.Close)

	timeout := s.opts.PollTimeout
	if timeout <= 0 {
		timeout = time.Second
	}

	return pipeline.NewStreamPipe(s.opts.Key, func(ctx context.Context) (T, bool, error) {
		var zero T
		for {
			result, err := s.client.BLPop(ctx, timeout, s.opts.Key).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue // timed out with nothing queued; poll again
				}
				if ctx.Err() != nil {
					return zero, false, nil
				}
				return zero, false, fmt.Errorf("redis source: blpop %s: %w", s.opts.Key, err)
			}
			// result[0] is the key name, result[1] is the value.
			var item T
			if err := json.Unmarshal([]byte(result[1]), &item); err != nil {
				return zero, false, fmt.Errorf("redis source: decode item from %s: %w", s.opts.Key, err)
			}
			return item, true, nil
		}
	}), nil
}

// Sink pushes JSON-encoded items onto a Redis list with RPUSH.
type Sink[T any] struct {
	client *redis.Client
	opts   Options
}

// NewSink builds a Sink writing opts.Key via a fresh client.
func NewSink[T any](opts Options) *Sink[T] {
	return &Sink[T]{client: newClient(opts), opts: opts}
}

// NewSinkWithClient builds a Sink against an existing client.
func NewSinkWithClient[T any](client *redis.Client, opts Options) *Sink[T] {
	return &Sink[T]{client: client, opts: opts}
}

var _ pipeline.Sink[int] = (*Sink[int])(nil)

// Consume drains in, RPUSHing a JSON encoding of each item onto opts.Key.
func (s *Sink[T]) Consume(ctx context.Context, ec *pipeline.ExecutionContext, in pipeline.Pipe[T]) error {
	ec.RegisterResource("redis-sink:"+s.opts.Key, s.client.Close)

	for {
		item, ok, err := in.Next(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		data, err := json.Marshal(item)
		if err != nil {
			return fmt.Errorf("redis sink: encode item for %s: %w", s.opts.Key, err)
		}
		if err := s.client.RPush(ctx, s.opts.Key, data).Err(); err != nil {
			return fmt.Errorf("redis sink: rpush %s: %w", s.opts.Key, err)
		}
	}
}
