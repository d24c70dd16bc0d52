package outbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cardguard/fraudengine/internal/metrics"
)

// PublisherConfig tunes the Outbox Publisher (C10).
type PublisherConfig struct {
	StreamKey     string
	ConsumerGroup string
	ConsumerName  string
	BlockTimeout  time.Duration
	AckTimeout    time.Duration
}

// Publisher consumes from the durable-stream consumer group and forwards
// each entry to the event bus, acknowledging only on a confirmed publish.
type Publisher struct {
	cfg     PublisherConfig
	rdb     *redis.Client
	bus     EventBusPublisher
	metrics *metrics.Metrics
}

// NewPublisher constructs a Publisher.
func NewPublisher(cfg PublisherConfig, rdb *redis.Client, bus EventBusPublisher, m *metrics.Metrics) *Publisher {
	return &Publisher{cfg: cfg, rdb: rdb, bus: bus, metrics: m}
}

// Run blocks reading from the consumer group until ctx is canceled. One
// goroutine runs this, per the concurrency model's single publisher
// worker.
func (p *Publisher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		p.readAndProcess(ctx)
	}
}

func (p *Publisher) readAndProcess(ctx context.Context) {
	streams, err := p.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    p.cfg.ConsumerGroup,
		Consumer: p.cfg.ConsumerName,
		Streams:  []string{p.cfg.StreamKey, ">"},
		Count:    64,
		Block:    p.cfg.BlockTimeout,
	}).Result()
	if err != nil {
		if err != redis.Nil {
			slog.Warn("outbox: xreadgroup failed", "error", err)
			time.Sleep(time.Second)
		}
		return
	}

	for _, stream := range streams {
		for _, msg := range stream.Messages {
			p.processEntry(ctx, msg)
		}
	}
}

// processEntry implements the publisher's per-entry contract: deserialize,
// publish with a bounded await, ack on success, leave pending on failure
// for the reclaimer.
func (p *Publisher) processEntry(ctx context.Context, msg redis.XMessage) {
	payload, _ := msg.Values["payload"].(string)

	var evt Event
	if err := json.Unmarshal([]byte(payload), &evt); err != nil {
		slog.Error("outbox: malformed stream entry, acking to avoid poison pill", "id", msg.ID, "error", err)
		p.ack(ctx, msg.ID)
		return
	}

	publishCtx, cancel := context.WithTimeout(ctx, p.cfg.AckTimeout)
	defer cancel()

	if err := p.bus.Publish(publishCtx, evt.TransactionID, []byte(payload)); err != nil {
		p.metrics.OutboxPublishFailure.Inc()
		slog.Warn("outbox: publish failed, leaving entry pending", "id", msg.ID, "transaction_id", evt.TransactionID, "error", err)
		return
	}

	p.metrics.OutboxPublishSuccess.Inc()
	p.ack(ctx, msg.ID)
}

func (p *Publisher) ack(ctx context.Context, id string) {
	if err := p.rdb.XAck(ctx, p.cfg.StreamKey, p.cfg.ConsumerGroup, id).Err(); err != nil {
		slog.Warn("outbox: xack failed", "id", id, "error", err)
	}
}

// EnsureConsumerGroup creates the consumer group with MKSTREAM, ignoring
// the "already exists" error — part of the Startup Loader's readiness
// gate (§4.9 step 3).
func EnsureConsumerGroup(ctx context.Context, rdb *redis.Client, streamKey, group string) error {
	err := rdb.XGroupCreateMkStream(ctx, streamKey, group, "$").Err()
	if err != nil && !isBusyGroup(err) {
		return err
	}
	return nil
}

func isBusyGroup(err error) bool {
	return err != nil && len(err.Error()) >= 9 && err.Error()[:9] == "BUSYGROUP"
}
