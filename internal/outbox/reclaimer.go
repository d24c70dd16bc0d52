package outbox

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cardguard/fraudengine/internal/metrics"
)

// ReclaimerConfig tunes the Pending Reclaimer (C11).
type ReclaimerConfig struct {
	StreamKey     string
	ConsumerGroup string
	ConsumerName  string
	MinIdle       time.Duration
	BatchSize     int64
	Interval      time.Duration
}

// Reclaimer periodically transfers stalled pending entries — ones claimed
// by a consumer that died before acking — back to this instance for
// reprocessing, via XAUTOCLAIM.
type Reclaimer struct {
	cfg     ReclaimerConfig
	rdb     *redis.Client
	metrics *metrics.Metrics
}

// NewReclaimer constructs a Reclaimer.
func NewReclaimer(cfg ReclaimerConfig, rdb *redis.Client, m *metrics.Metrics) *Reclaimer {
	return &Reclaimer{cfg: cfg, rdb: rdb, metrics: m}
}

// Run ticks on cfg.Interval until ctx is canceled, reclaiming one batch
// per tick. Reclaiming does not itself republish; reclaimed entries
// simply become claimable again by XReadGroup with ">" for this
// consumer, so the publisher's normal loop picks them up.
func (r *Reclaimer) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reclaimOnce(ctx)
		}
	}
}

func (r *Reclaimer) reclaimOnce(ctx context.Context) {
	start := "0-0"
	for {
		messages, next, err := r.rdb.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   r.cfg.StreamKey,
			Group:    r.cfg.ConsumerGroup,
			Consumer: r.cfg.ConsumerName,
			MinIdle:  r.cfg.MinIdle,
			Start:    start,
			Count:    r.cfg.BatchSize,
		}).Result()
		if err != nil {
			if err != redis.Nil {
				slog.Warn("outbox: xautoclaim failed", "error", err)
			}
			return
		}

		if len(messages) > 0 {
			r.metrics.OutboxReclaimedTotal.Add(float64(len(messages)))
			slog.Info("outbox: reclaimed stalled entries", "count", len(messages))
		}

		if next == "0-0" || len(messages) == 0 {
			return
		}
		start = next
	}
}
