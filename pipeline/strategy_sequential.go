package pipeline

import (
	"context"
	"time"
)

// SequentialStrategy processes one item at a time, strictly in input order,
// with no additional concurrency. It is the only strategy that can see a
// failure's actual item, so it is also where per-item error recovery
// (Skip/DeadLetter/Retry) happens; RunResilient, layered on top, only ever
// sees whole-node failures — building the node's output pipe in the first
// place, or a per-item DecisionFail escalating past this strategy.
type SequentialStrategy struct{}

func (SequentialStrategy) Name() string { return "Sequential" }

// RunTransform applies fn to every item of in, in order, consulting
// node.ErrorHandler on each failure:
//
//   - DecisionSkip drops the item and moves straight on to the next one.
//   - DecisionDeadLetter offers the item (with its real payload) to
//     cfg.DeadLetter, then also moves on to the next item.
//   - DecisionRetry re-invokes fn on the SAME item, up to
//     cfg.Retry.MaxAttempts times total, before falling back to
//     DecisionFail.
//   - DecisionFail returns the error to the caller. Already-emitted items
//     are never reprocessed and the rest of the stream is never replayed —
//     only a caller wrapping this in RunResilient decides whether that's
//     fatal for the whole node or worth a node-level restart.
func RunTransform[In, Out any](ctx context.Context, node NodeDescriptor, cfg ErrorHandlingConfig, ec *ExecutionContext, in Pipe[In], fn func(context.Context, In) (Out, error)) Pipe[Out] {
	handler := node.ErrorHandler
	if handler == nil {
		handler = DefaultNodeErrorHandler[any]()
	}
	deadLetter := cfg.DeadLetter
	if deadLetter == nil {
		deadLetter = DiscardDeadLetters
	}
	maxAttempts := cfg.Retry.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	return NewStreamPipe(in.Name(), func(ctx context.Context) (Out, bool, error) {
		var zero Out
		for {
			item, ok, err := in.Next(ctx)
			if err != nil || !ok {
				return zero, false, err
			}

			attempt := 0
			for {
				attempt++
				out, fnErr := fn(ctx, item)
				if fnErr == nil {
					return out, true, nil
				}

				notify(ec, Event{Kind: EventNodeFailed, NodeID: node.ID, Timestamp: time.Now(), Attempt: attempt, Err: fnErr})

				decision := handler(ctx, item, fnErr, attempt)
				if decision == DecisionRetry && attempt < maxAttempts {
					notify(ec, Event{Kind: EventNodeRetrying, NodeID: node.ID, Timestamp: time.Now(), Attempt: attempt + 1})
					continue
				}
				if decision == DecisionRetry {
					// Retry budget exhausted; treat like DecisionFail.
					return zero, false, fnErr
				}

				switch decision {
				case DecisionSkip:
				case DecisionDeadLetter:
					notify(ec, Event{Kind: EventItemDeadLettered, NodeID: node.ID, Timestamp: time.Now(), Attempt: attempt, Err: fnErr})
					if dlErr := deadLetter.Offer(ctx, node.ID, item, fnErr); dlErr != nil {
						return zero, false, dlErr
					}
				default: // DecisionFail
					return zero, false, fnErr
				}
				break // move on to the next item pulled from in
			}
		}
	})
}

// notify is a nil-safe shorthand for ec.Observer().Notify(e); ec is nil in
// a few direct-construction tests that don't care about observability.
func notify(ec *ExecutionContext, e Event) {
	if ec == nil {
		return
	}
	ec.Observer().Notify(e)
}
