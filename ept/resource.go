package ept

import (
	"context"
	"sync"

	"github.com/ept-io/go-ept/ept/lasio"
	"golang.org/x/sync/singleflight"
)

// EPTResource is the read handle for one EPT archive root. It lazily
// fetches and memoizes entwine.json and the materialized hierarchy, the
// way the original source's EPTResource.info/.hierarchy properties cache
// on first access, but does so safely under concurrent callers by routing
// both fetches through a singleflight.Group instead of a bare nil check.
type EPTResource struct {
	source *Source

	infoGroup singleflight.Group
	info      *Info
	infoErr   error

	hierarchyMu    sync.RWMutex
	hierarchy      map[string]int
	hierarchyGroup singleflight.Group

	concurrency int
}

// NewEPTResource builds a resource over an already-opened Source.
func NewEPTResource(source *Source, tileConcurrency int) *EPTResource {
	if tileConcurrency <= 0 {
		tileConcurrency = DefaultTileConcurrency
	}
	return &EPTResource{source: source, concurrency: tileConcurrency}
}

// Info returns the archive's entwine.json, fetching it at most once for
// the lifetime of the resource regardless of how many callers race to
// request it first.
func (r *EPTResource) Info(ctx context.Context) (*Info, error) {
	v, err, _ := r.infoGroup.Do("info", func() (interface{}, error) {
		if r.info != nil {
			return r.info, nil
		}
		info, err := r.source.GetEntwineJSON(ctx)
		if err != nil {
			return nil, err
		}
		r.info = info
		return info, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Info), nil
}

// Hierarchy returns the archive's fully materialized hierarchy map,
// loading it (via LoadHierarchy's breadth-first chunk walk) at most once.
func (r *EPTResource) Hierarchy(ctx context.Context) (map[string]int, error) {
	r.hierarchyMu.RLock()
	if r.hierarchy != nil {
		h := r.hierarchy
		r.hierarchyMu.RUnlock()
		return h, nil
	}
	r.hierarchyMu.RUnlock()

	v, err, _ := r.hierarchyGroup.Do("hierarchy", func() (interface{}, error) {
		info, err := r.Info(ctx)
		if err != nil {
			return nil, err
		}
		h, err := LoadHierarchy(ctx, r.source, info.HierarchyStep)
		if err != nil {
			return nil, err
		}
		r.hierarchyMu.Lock()
		r.hierarchy = h
		r.hierarchyMu.Unlock()
		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(map[string]int), nil
}

// Query resolves params against this resource's hierarchy and returns the
// merged, clipped point cloud: the full read path from §4.D through §4.H.
func (r *EPTResource) Query(ctx context.Context, params QueryParams) (*lasio.PointCloud, error) {
	info, err := r.Info(ctx)
	if err != nil {
		return nil, err
	}

	rootBounds, err := BoundingBox3DFromSlice(info.Bounds)
	if err != nil {
		return nil, err
	}

	if err := params.EnsureThreeDBounds(rootBounds); err != nil {
		return nil, err
	}

	hierarchy, err := r.Hierarchy(ctx)
	if err != nil {
		return nil, err
	}

	overlapKeys, err := SelectOverlaps(hierarchy, RootKey(), rootBounds, params)
	if err != nil {
		return nil, err
	}

	return QueryTiles(ctx, r.source, overlapKeys, params, r.concurrency)
}

// Close releases the underlying Source's bucket connection.
func (r *EPTResource) Close() error {
	return r.source.Close()
}
