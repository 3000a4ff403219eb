package ept

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Registry is a process-wide cache of EPTResources keyed by root address
// (exactly as passed to Get), matching §9's design note that a global RESOURCES map
// should be modeled as a thread-safe single-flight cache: concurrent
// first-requests for the same address construct exactly one EPTResource.
type Registry struct {
	mu          sync.RWMutex
	resources   map[string]*entry
	group       singleflight.Group
	concurrency int
	metrics     *Metrics
}

type entry struct {
	resource   *EPTResource
	lastAccess time.Time
}

// NewRegistry builds an empty Registry. tileConcurrency is passed through
// to every EPTResource it constructs.
func NewRegistry(tileConcurrency int) *Registry {
	return &Registry{
		resources:   make(map[string]*entry),
		concurrency: tileConcurrency,
	}
}

// Get returns the EPTResource for address, constructing and caching one
// if this is the first request for it. A resource's info/hierarchy caches
// live for as long as it stays in the registry (§3's "never evicted"
// single-resource lifecycle); only the Scheduler (component P) removes
// entries, and only for idleness across the whole server process.
func (reg *Registry) Get(ctx context.Context, address string) (*EPTResource, error) {
	reg.mu.Lock()
	if e, ok := reg.resources[address]; ok {
		e.lastAccess = time.Now()
		reg.mu.Unlock()
		return e.resource, nil
	}
	reg.mu.Unlock()

	v, err, _ := reg.group.Do(address, func() (interface{}, error) {
		reg.mu.RLock()
		if e, ok := reg.resources[address]; ok {
			reg.mu.RUnlock()
			return e.resource, nil
		}
		reg.mu.RUnlock()

		source, err := OpenSource(ctx, address)
		if err != nil {
			return nil, err
		}
		reg.mu.RLock()
		source.metrics = reg.metrics
		reg.mu.RUnlock()
		resource := NewEPTResource(source, reg.concurrency)

		reg.mu.Lock()
		reg.resources[address] = &entry{resource: resource, lastAccess: time.Now()}
		reg.mu.Unlock()
		return resource, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*EPTResource), nil
}

// SetMetrics attaches m so every Source this Registry opens from here on
// records bucket fetch latency/status against it. Called once by NewServer;
// a Registry used without a Server (e.g. the CLI) simply has none.
func (reg *Registry) SetMetrics(m *Metrics) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.metrics = m
}

// EvictIdle drops every resource whose last access is older than maxIdle,
// closing its underlying source. It returns the addresses evicted. This
// is the operation the Scheduler (component P) calls periodically.
func (reg *Registry) EvictIdle(maxIdle time.Duration) []string {
	cutoff := time.Now().Add(-maxIdle)

	reg.mu.Lock()
	defer reg.mu.Unlock()

	var evicted []string
	for addr, e := range reg.resources {
		if e.lastAccess.Before(cutoff) {
			_ = e.resource.Close()
			delete(reg.resources, addr)
			evicted = append(evicted, addr)
		}
	}
	return evicted
}

// Peek reports whether address is already cached, without constructing a
// resource for it. Callers use this immediately before Get to record a
// registry hit/miss metric without altering Get's cache semantics.
func (reg *Registry) Peek(address string) bool {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	_, ok := reg.resources[address]
	return ok
}

// Len reports how many resources are currently cached.
func (reg *Registry) Len() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.resources)
}
