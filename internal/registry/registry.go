// Package registry implements the Ruleset Registry (C4): a
// country-partitioned, atomic-swap in-memory cache of compiled rulesets.
// A read takes the slot map's read lock to find the (country, key) slot,
// releases it, and then does a single pointer load; every swap is a single
// pointer store into that slot.
package registry

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cardguard/fraudengine/internal/fieldreg"
	"github.com/cardguard/fraudengine/internal/manifest"
	"github.com/cardguard/fraudengine/internal/ruleset"
)

const globalCountry = "global"

// slotKey identifies one (country, ruleset_key) cache entry.
type slotKey struct {
	country string
	key     string
}

// Registry is the Ruleset Registry. Construct with New and share a single
// instance across the evaluator, the hot-reload watcher, and the admin
// introspection endpoint.
type Registry struct {
	loader *manifest.Loader

	mu    sync.RWMutex // guards map structure only, never a read's pointer load
	slots map[slotKey]*atomic.Pointer[ruleset.Ruleset]

	ready atomic.Bool
}

// New constructs an empty Registry backed by the given loader.
func New(loader *manifest.Loader) *Registry {
	return &Registry{
		loader: loader,
		slots:  make(map[slotKey]*atomic.Pointer[ruleset.Ruleset]),
	}
}

func (r *Registry) slotFor(country, key string) *atomic.Pointer[ruleset.Ruleset] {
	sk := slotKey{country, key}

	r.mu.RLock()
	p, ok := r.slots[sk]
	r.mu.RUnlock()
	if ok {
		return p
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok = r.slots[sk]; ok {
		return p
	}
	p = &atomic.Pointer[ruleset.Ruleset]{}
	r.slots[sk] = p
	return p
}

// Get returns the currently loaded ruleset for (country, key), or nil if
// none is loaded. It takes the slot map's read lock to find the slot and
// then loads the slot's pointer; a pair seen for the first time gets an
// empty slot created under the write lock.
func (r *Registry) Get(country, key string) *ruleset.Ruleset {
	return r.slotFor(country, key).Load()
}

// GetWithFallback tries country, then the global partition.
func (r *Registry) GetWithFallback(country, key string) *ruleset.Ruleset {
	if rs := r.Get(country, key); rs != nil {
		return rs
	}
	return r.Get(globalCountry, key)
}

// SwapResult reports the outcome of a HotSwap attempt.
type SwapResult struct {
	Success bool
	Reason  string
	Version int
}

// HotSwap loads and compiles the current manifest-pointed version for
// (country, key) and, on success, atomically replaces the slot's pointer.
// On failure the prior value is left completely untouched — there is no
// partial swap. A field-registry version mismatch surfaces as an error
// from Load and is treated exactly like any other load failure: the prior
// ruleset is kept.
func (r *Registry) HotSwap(ctx context.Context, registry *fieldreg.Registry, customFields map[string]bool, country, key string) SwapResult {
	rs, err := r.loader.Load(ctx, registry, customFields, country, key)
	if err != nil {
		return SwapResult{Success: false, Reason: err.Error()}
	}
	r.slotFor(country, key).Store(rs)
	return SwapResult{Success: true, Version: rs.Version}
}

// CurrentVersion reports the version currently loaded for (country, key),
// or -1 if nothing is loaded yet.
func (r *Registry) CurrentVersion(country, key string) int {
	rs := r.Get(country, key)
	if rs == nil {
		return -1
	}
	return rs.Version
}

// RequiredPair names a (country, key) the startup loader must resolve to
// a non-empty ruleset before BulkLoad reports readiness.
type RequiredPair struct {
	Country string
	Key     string
}

// BulkLoad loads every required pair at startup. Readiness (Ready) is
// refused until every pair resolves to a compiled, non-empty ruleset.
func (r *Registry) BulkLoad(ctx context.Context, registry *fieldreg.Registry, customFields map[string]bool, pairs []RequiredPair) error {
	for _, p := range pairs {
		result := r.HotSwap(ctx, registry, customFields, p.Country, p.Key)
		if !result.Success {
			return fmt.Errorf("registry: bulk load %s/%s: %s", p.Country, p.Key, result.Reason)
		}
		rs := r.Get(p.Country, p.Key)
		if rs == nil || len(rs.RulesSorted) == 0 {
			return fmt.Errorf("registry: bulk load %s/%s: ruleset empty", p.Country, p.Key)
		}
	}
	r.ready.Store(true)
	return nil
}

// Ready reports whether BulkLoad has completed successfully.
func (r *Registry) Ready() bool {
	return r.ready.Load()
}

// Status returns a snapshot of every loaded slot's version, for the admin
// introspection endpoint.
func (r *Registry) Status() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]int, len(r.slots))
	for sk, p := range r.slots {
		if rs := p.Load(); rs != nil {
			out[sk.country+"/"+sk.key] = rs.Version
		}
	}
	return out
}
