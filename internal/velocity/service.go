// Package velocity implements the Velocity Counter Service (C6): an
// atomic increment-with-expiry counter backed by a server-side Redis
// script, wrapped in a circuit breaker with a fail-safe fallback.
package velocity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cardguard/fraudengine/internal/circuitbreaker"
	"github.com/cardguard/fraudengine/internal/metrics"
)

// ErrRedisUnavailable is returned when the breaker is open or the
// underlying Redis operation failed even after the NOSCRIPT retry and
// two-command fallback.
var ErrRedisUnavailable = errors.New("velocity: redis unavailable")

// Service is the Velocity Counter Service.
type Service struct {
	rdb     *redis.Client
	breaker *circuitbreaker.CircuitBreaker
	timeout time.Duration
	metrics *metrics.Metrics

	mu  sync.RWMutex
	sha string
}

// NewService constructs a Service. Call PreloadScript once at startup
// (Startup Loader step 4) before serving traffic.
func NewService(rdb *redis.Client, breakerCfg *circuitbreaker.Config, timeout time.Duration, m *metrics.Metrics) *Service {
	return &Service{
		rdb:     rdb,
		breaker: circuitbreaker.New(breakerCfg),
		timeout: timeout,
		metrics: m,
	}
}

// PreloadScript loads the velocity script once and caches its digest, so
// the hot path invokes by SHA rather than shipping the script body on
// every call.
func (s *Service) PreloadScript(ctx context.Context) error {
	sha, err := s.rdb.ScriptLoad(ctx, luaScript).Result()
	if err != nil {
		return fmt.Errorf("velocity: preload script: %w", err)
	}
	s.mu.Lock()
	s.sha = sha
	s.mu.Unlock()
	return nil
}

func (s *Service) currentSHA() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sha
}

// Check atomically increments the counter for (config.Dimension, value)
// and reports whether it has reached config.Threshold. Wrapped by the
// circuit breaker: when open, returns a fail-safe zero result and
// ErrRedisUnavailable so the evaluator can mark the decision
// DEGRADED/FAIL_OPEN without skipping the rest of the rule walk.
func (s *Service) Check(ctx context.Context, config Config, value string) (Result, error) {
	key := EncodeKey(config.Dimension, value)

	raw, err := s.breaker.ExecuteContext(ctx, func(ctx context.Context) (interface{}, error) {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		defer cancel()
		return s.runScript(ctx, key, config)
	})

	if err != nil {
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
			s.metrics.VelocityBreakerOpenTotal.Inc()
			s.metrics.VelocityCheckTotal.WithLabelValues("breaker_open").Inc()
		} else {
			s.metrics.VelocityCheckTotal.WithLabelValues("error").Inc()
		}
		return Result{Dimension: config.Dimension, DimensionValue: value, Threshold: config.Threshold, WindowSeconds: config.WindowSeconds}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	s.metrics.VelocityCheckTotal.WithLabelValues("ok").Inc()
	res := raw.(Result)
	res.Dimension = config.Dimension
	res.DimensionValue = value
	res.WindowSeconds = config.WindowSeconds
	return res, nil
}

// ReadOnly gets the current count without mutating it.
func (s *Service) ReadOnly(ctx context.Context, config Config, value string) (Result, error) {
	key := EncodeKey(config.Dimension, value)
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	count, err := s.rdb.Get(ctx, key).Int64()
	if err != nil && !errors.Is(err, redis.Nil) {
		return Result{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return Result{
		Dimension:      config.Dimension,
		DimensionValue: value,
		Count:          count,
		Threshold:      config.Threshold,
		WindowSeconds:  config.WindowSeconds,
		Exceeded:       count >= int64(config.Threshold),
	}, nil
}

// Snapshot reads, read-only, across a canonical set of (dimension,
// window/threshold) tuples for the outbox event payload. Safe to call off
// the request path — it never increments.
func (s *Service) Snapshot(ctx context.Context, value string, configs []Config) map[string]Result {
	out := make(map[string]Result, len(configs))
	for _, cfg := range configs {
		res, err := s.ReadOnly(ctx, cfg, value)
		if err != nil {
			continue
		}
		out[cfg.Dimension] = res
	}
	return out
}

func (s *Service) runScript(ctx context.Context, key string, config Config) (Result, error) {
	sha := s.currentSHA()
	if sha != "" {
		res, err := s.evalSHA(ctx, sha, key, config)
		if err == nil {
			return res, nil
		}
		if !isNoScript(err) {
			return Result{}, err
		}
		// NOSCRIPT: reload once and retry.
		if reloadErr := s.PreloadScript(ctx); reloadErr == nil {
			res, err = s.evalSHA(ctx, s.currentSHA(), key, config)
			if err == nil {
				return res, nil
			}
		}
	}

	// Fallback: two separate commands. No longer atomic, but bounded and
	// documented as the last resort when script invocation is unavailable.
	slog.Warn("velocity: falling back to non-atomic increment", "key", key)
	return s.fallbackIncrement(ctx, key, config)
}

func (s *Service) evalSHA(ctx context.Context, sha, key string, config Config) (Result, error) {
	raw, err := s.rdb.EvalSha(ctx, sha, []string{key}, config.WindowSeconds, config.Threshold).Result()
	if err != nil {
		return Result{}, err
	}
	return parseScriptResult(raw, config)
}

func isNoScript(err error) bool {
	return strings.HasPrefix(err.Error(), "NOSCRIPT")
}

func parseScriptResult(raw interface{}, config Config) (Result, error) {
	arr, ok := raw.([]interface{})
	if !ok || len(arr) != 2 {
		return Result{}, fmt.Errorf("velocity: unexpected script result %#v", raw)
	}
	count, ok := arr[0].(int64)
	if !ok {
		return Result{}, fmt.Errorf("velocity: unexpected count type %#v", arr[0])
	}
	exceededRaw, ok := arr[1].(int64)
	if !ok {
		return Result{}, fmt.Errorf("velocity: unexpected exceeded type %#v", arr[1])
	}
	return Result{
		Count:     count,
		Threshold: config.Threshold,
		Exceeded:  exceededRaw != 0,
	}, nil
}

func (s *Service) fallbackIncrement(ctx context.Context, key string, config Config) (Result, error) {
	count, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return Result{}, err
	}
	if count == 1 {
		if err := s.rdb.Expire(ctx, key, time.Duration(config.WindowSeconds)*time.Second).Err(); err != nil {
			return Result{}, err
		}
	}
	return Result{
		Count:     count,
		Threshold: config.Threshold,
		Exceeded:  count >= int64(config.Threshold),
	}, nil
}
