// Command engine runs the card-fraud decision engine: the Startup Loader
// (§4.9), the HTTP evaluation API, and the background workers (writer,
// publisher, reclaimer, hot-reload watcher) wired together the way the
// legacy service's main.go assembles its adapters before calling
// api.NewAPIServer — explicit construction, no DI container.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cardguard/fraudengine/internal/circuitbreaker"
	"github.com/cardguard/fraudengine/internal/config"
	"github.com/cardguard/fraudengine/internal/evaluator"
	"github.com/cardguard/fraudengine/internal/fieldreg"
	"github.com/cardguard/fraudengine/internal/hotreload"
	"github.com/cardguard/fraudengine/internal/loadshed"
	"github.com/cardguard/fraudengine/internal/manifest"
	"github.com/cardguard/fraudengine/internal/metrics"
	"github.com/cardguard/fraudengine/internal/outbox"
	"github.com/cardguard/fraudengine/internal/registry"
	"github.com/cardguard/fraudengine/internal/transport"
	"github.com/cardguard/fraudengine/internal/velocity"
)

func main() {
	cfg := config.Get()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb := redis.NewClient(parseRedisOptions(cfg.Redis.URL))
	defer rdb.Close()

	m := metrics.New()

	store, err := manifest.NewS3Store(ctx, cfg.ObjectStore.Region, cfg.ObjectStore.EndpointURL, cfg.ObjectStore.AccessKey, cfg.ObjectStore.SecretKey)
	if err != nil {
		slog.Error("startup: object store init failed", "error", err)
		os.Exit(1)
	}
	fieldRegistry, customFields := loadFieldRegistry(ctx, store, cfg)

	loader := manifest.NewLoader(store, cfg.ObjectStore.Bucket, cfg.ObjectStore.PathPrefix, cfg.ObjectStore.Environment)
	rulesetRegistry := registry.New(loader)

	requiredPairs := make([]registry.RequiredPair, 0, len(cfg.Ruleset.RequiredPairs))
	for _, p := range cfg.Ruleset.RequiredPairs {
		requiredPairs = append(requiredPairs, registry.RequiredPair{Country: p.Country, Key: p.Key})
	}
	if err := rulesetRegistry.BulkLoad(ctx, fieldRegistry, customFields, requiredPairs); err != nil {
		slog.Error("startup: bulk ruleset load failed", "error", err)
		os.Exit(1)
	}

	breakerCfg := circuitbreaker.VelocityBreakerConfig(
		cfg.Velocity.BreakerFailureRate,
		cfg.Velocity.BreakerMinRequests,
		time.Duration(cfg.Velocity.BreakerCooldownSec)*time.Second,
		cfg.Velocity.BreakerHalfOpenMax,
	)
	velocityService := velocity.NewService(rdb, breakerCfg, time.Duration(cfg.Velocity.ScriptTimeoutSec)*time.Second, m)
	if err := velocityService.PreloadScript(ctx); err != nil {
		slog.Error("startup: velocity script preload failed", "error", err)
		os.Exit(1)
	}

	if err := outbox.EnsureConsumerGroup(ctx, rdb, cfg.Outbox.StreamKey, cfg.Outbox.ConsumerGroup); err != nil {
		slog.Error("startup: outbox consumer group init failed", "error", err)
		os.Exit(1)
	}

	eval := evaluator.New(fieldRegistry, velocityService)
	shedder := loadshed.New(loadshed.Config{Enabled: cfg.LoadShed.Enabled, MaxConcurrent: cfg.LoadShed.MaxConcurrent}, m)

	queue := outbox.NewQueue(cfg.Outbox.QueueCapacity, m)
	writer := outbox.NewWriter(outbox.WriterConfig{
		StreamKey:    cfg.Outbox.StreamKey,
		MaxLen:       cfg.Outbox.MaxLen,
		BatchSize:    cfg.Outbox.WriterBatchSize,
		RedisTimeout: time.Duration(cfg.Outbox.RedisTimeoutSec) * time.Second,
		BackoffBase:  100 * time.Millisecond,
		BackoffMax:   5 * time.Second,
	}, rdb, queue, m)

	bus := outbox.NewKafkaEventBus(cfg.Kafka.BootstrapServers, cfg.Kafka.Topic, time.Duration(cfg.Outbox.PublishAckTimeoutSec)*time.Second)
	defer bus.Close()

	publisher := outbox.NewPublisher(outbox.PublisherConfig{
		StreamKey:     cfg.Outbox.StreamKey,
		ConsumerGroup: cfg.Outbox.ConsumerGroup,
		ConsumerName:  cfg.Outbox.ConsumerName,
		BlockTimeout:  time.Duration(cfg.Outbox.PublishBlockMs) * time.Millisecond,
		AckTimeout:    time.Duration(cfg.Outbox.PublishAckTimeoutSec) * time.Second,
	}, rdb, bus, m)

	reclaimer := outbox.NewReclaimer(outbox.ReclaimerConfig{
		StreamKey:     cfg.Outbox.StreamKey,
		ConsumerGroup: cfg.Outbox.ConsumerGroup,
		ConsumerName:  cfg.Outbox.ConsumerName,
		MinIdle:       time.Duration(cfg.Outbox.ReclaimMinIdleMs) * time.Millisecond,
		BatchSize:     cfg.Outbox.ReclaimBatchSize,
		Interval:      time.Duration(cfg.Outbox.ReclaimIntervalSec) * time.Second,
	}, rdb, m)

	watcher := hotreload.New(rulesetRegistry, fieldRegistry, customFields, requiredPairs, time.Duration(cfg.HotReload.PollIntervalSec)*time.Second, m)

	workersCtx, cancelWorkers := context.WithCancel(context.Background())
	go writer.Run(workersCtx)
	go publisher.Run(workersCtx)
	go reclaimer.Run(workersCtx)
	go watcher.Run(workersCtx)

	srv := transport.New(fieldRegistry, rulesetRegistry, eval, shedder, queue, m, cfg.Ruleset.DefaultKey)
	httpServer := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      srv.Router(),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeoutSec) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeoutSec) * time.Second,
	}

	go func() {
		slog.Info("engine: listening", "port", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("engine: server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdown(httpServer, queue, writer, cancelWorkers, time.Duration(cfg.Server.ShutdownSec)*time.Second, time.Duration(cfg.Outbox.DrainDeadlineSec)*time.Second)
}

// shutdown implements the sequence in §5: stop accepting new requests,
// drain the async queue with a bounded deadline, stop the background
// workers, close the stream client. Items still queued past the drain
// deadline are shutdown-drops, counted the same as a full-queue drop.
func shutdown(httpServer *http.Server, queue *outbox.Queue, writer *outbox.Writer, cancelWorkers context.CancelFunc, shutdownTimeout, drainDeadline time.Duration) {
	slog.Info("engine: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Warn("engine: graceful http shutdown failed", "error", err)
	}

	queue.Close()
	drainCtx, drainCancel := context.WithTimeout(context.Background(), drainDeadline)
	defer drainCancel()
	writer.Run(drainCtx)

	cancelWorkers()
	slog.Info("engine: shutdown complete")
}

func loadFieldRegistry(ctx context.Context, store *manifest.S3Store, cfg *config.Config) (*fieldreg.Registry, map[string]bool) {
	if reg, err := fieldreg.Load(ctx, store, cfg.ObjectStore.Bucket, cfg.ObjectStore.FieldRegistryKey); err == nil {
		return reg, map[string]bool{}
	} else {
		slog.Warn("startup: field registry artifact unavailable, using built-in defaults", "error", err)
	}
	reg, err := fieldreg.BuildDefault(1)
	if err != nil {
		slog.Error("startup: built-in field registry invalid", "error", err)
		os.Exit(1)
	}
	return reg, map[string]bool{}
}

func parseRedisOptions(url string) *redis.Options {
	opts, err := redis.ParseURL(url)
	if err != nil {
		slog.Warn("startup: invalid REDIS_URL, falling back to localhost default", "error", err)
		return &redis.Options{Addr: "localhost:6379"}
	}
	return opts
}
