// Package hotreload implements the Hot-Reload Watcher (C13): a background
// poller that re-checks tracked rulesets for a new published version and
// swaps them in without ever blocking evaluation.
package hotreload

import (
	"context"
	"log/slog"
	"time"

	"github.com/cardguard/fraudengine/internal/fieldreg"
	"github.com/cardguard/fraudengine/internal/metrics"
	"github.com/cardguard/fraudengine/internal/registry"
)

// Watcher polls the registry's tracked (country, key) pairs on a fixed
// interval. Each poll reloads every pair through registry.HotSwap, which
// installs whatever version the manifest names, whether newer, equal or
// older than the loaded one; only a move to a higher version is counted
// as a hot-reload success.
type Watcher struct {
	registry     *registry.Registry
	fieldReg     *fieldreg.Registry
	customFields map[string]bool
	pairs        []registry.RequiredPair
	interval     time.Duration
	metrics      *metrics.Metrics
}

// New constructs a Watcher tracking the given pairs.
func New(reg *registry.Registry, fieldReg *fieldreg.Registry, customFields map[string]bool, pairs []registry.RequiredPair, interval time.Duration, m *metrics.Metrics) *Watcher {
	return &Watcher{
		registry:     reg,
		fieldReg:     fieldReg,
		customFields: customFields,
		pairs:        pairs,
		interval:     interval,
		metrics:      m,
	}
}

// Run polls until ctx is canceled. A failed reload for one pair never
// stops the watcher and never disturbs the currently loaded ruleset for
// that pair.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.pollOnce(ctx)
		}
	}
}

func (w *Watcher) pollOnce(ctx context.Context) {
	for _, p := range w.pairs {
		before := w.registry.CurrentVersion(p.Country, p.Key)

		result := w.registry.HotSwap(ctx, w.fieldReg, w.customFields, p.Country, p.Key)
		if !result.Success {
			w.metrics.HotReloadFailureTotal.WithLabelValues(p.Country, p.Key).Inc()
			slog.Warn("hot-reload: swap failed, keeping prior ruleset", "country", p.Country, "ruleset_key", p.Key, "reason", result.Reason)
			continue
		}

		if result.Version <= before {
			continue // same or lower version: installed, not counted as a success
		}

		w.metrics.HotReloadSuccessTotal.WithLabelValues(p.Country, p.Key).Inc()
		slog.Info("hot-reload: swapped ruleset", "country", p.Country, "ruleset_key", p.Key, "from_version", before, "to_version", result.Version)
	}
}
