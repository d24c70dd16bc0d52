package outbox

import (
	"log/slog"
	"sync/atomic"

	"github.com/cardguard/fraudengine/internal/metrics"
)

// Queue is the Async Durability Queue (C8): a bounded MPSC handoff from
// request threads to the writer. Enqueue never blocks the request
// thread and never touches the network.
type Queue struct {
	ch      chan Event
	metrics *metrics.Metrics

	dropSampleCounter atomic.Uint64
}

// NewQueue builds a queue with the given fixed capacity.
func NewQueue(capacity int, m *metrics.Metrics) *Queue {
	return &Queue{
		ch:      make(chan Event, capacity),
		metrics: m,
	}
}

// Enqueue inserts an event if the queue has space. If full, the event is
// dropped, a metric is incremented, and a sampled warning is logged — the
// request thread is never blocked.
func (q *Queue) Enqueue(e Event) {
	select {
	case q.ch <- e:
		q.metrics.AsyncEnqueueOK.Inc()
	default:
		q.metrics.AsyncEnqueueDropped.Inc()
		if n := q.dropSampleCounter.Add(1); n%100 == 1 {
			slog.Warn("outbox: queue full, dropping event", "transaction_id", e.TransactionID, "dropped_total_sampled", n)
		}
	}
}

// Drain reads up to max events currently buffered, non-blocking, for the
// writer's burst loop.
func (q *Queue) Drain(max int) []Event {
	out := make([]Event, 0, max)
	for i := 0; i < max; i++ {
		select {
		case e := <-q.ch:
			out = append(out, e)
		default:
			return out
		}
	}
	return out
}

// DrainBlocking waits for at least one event (or the channel closing),
// then drains up to max-1 more without blocking. Used by the writer loop
// so it doesn't spin when the queue is empty.
func (q *Queue) DrainBlocking(max int) ([]Event, bool) {
	first, ok := <-q.ch
	if !ok {
		return nil, false
	}
	out := make([]Event, 0, max)
	out = append(out, first)
	out = append(out, q.Drain(max-1)...)
	return out, true
}

// Close signals no more events will be enqueued, letting a draining
// writer observe end-of-stream during shutdown.
func (q *Queue) Close() {
	close(q.ch)
}

// Len reports the number of events currently buffered.
func (q *Queue) Len() int {
	return len(q.ch)
}
