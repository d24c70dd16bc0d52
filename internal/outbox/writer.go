package outbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cardguard/fraudengine/internal/metrics"
)

// WriterConfig tunes the Outbox Writer (C9).
type WriterConfig struct {
	StreamKey      string
	MaxLen         int64
	BatchSize      int
	RedisTimeout   time.Duration
	BackoffBase    time.Duration
	BackoffMax     time.Duration
}

// Writer drains the queue in bursts and appends each event to the durable
// stream. No acknowledgement of in-memory items: they are either written
// or counted as persist failures.
type Writer struct {
	cfg     WriterConfig
	rdb     *redis.Client
	queue   *Queue
	metrics *metrics.Metrics
}

// NewWriter constructs a Writer.
func NewWriter(cfg WriterConfig, rdb *redis.Client, queue *Queue, m *metrics.Metrics) *Writer {
	return &Writer{cfg: cfg, rdb: rdb, queue: queue, metrics: m}
}

// Run drains the queue until ctx is canceled or the queue is closed and
// fully drained, appending every event to the stream. Intended to run as
// the one writer goroutine named in the concurrency model.
func (w *Writer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			w.drainRemaining(context.Background())
			return
		default:
		}

		batch, ok := w.queue.DrainBlocking(w.cfg.BatchSize)
		if !ok {
			return // queue closed and empty: shutdown drain complete
		}
		w.writeBatch(ctx, batch)
	}
}

// drainRemaining writes one last batch from the queue once the run's
// context is done, then removes whatever is still buffered and counts it
// as dropped (shutdown-drops) rather than blocking indefinitely.
func (w *Writer) drainRemaining(ctx context.Context) {
	batch := w.queue.Drain(w.cfg.BatchSize)
	if len(batch) > 0 {
		w.writeBatch(ctx, batch)
	}
	if left := w.queue.Drain(w.queue.Len()); len(left) > 0 {
		w.metrics.AsyncEnqueueDropped.Add(float64(len(left)))
	}
}

func (w *Writer) writeBatch(ctx context.Context, batch []Event) {
	backoff := w.cfg.BackoffBase
	for _, e := range batch {
		if err := w.appendOne(ctx, e); err != nil {
			w.metrics.OutboxXAddFailure.Inc()
			slog.Warn("outbox: xadd failed", "transaction_id", e.TransactionID, "error", err)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > w.cfg.BackoffMax {
				backoff = w.cfg.BackoffMax
			}
			continue
		}
		w.metrics.OutboxXAddSuccess.Inc()
		backoff = w.cfg.BackoffBase
	}
}

func (w *Writer) appendOne(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, w.cfg.RedisTimeout)
	defer cancel()

	return w.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: w.cfg.StreamKey,
		MaxLen: w.cfg.MaxLen,
		Approx: true,
		Values: map[string]interface{}{"payload": string(payload)},
	}).Err()
}
