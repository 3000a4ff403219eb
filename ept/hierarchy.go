package ept

import (
	"context"
	"hash/fnv"
	"strconv"
	"strings"
	"sync"

	"github.com/RoaringBitmap/roaring/roaring64"
	"golang.org/x/sync/errgroup"
)

// LoadHierarchy materializes the full flat "d-x-y-z" -> count map for an
// archive by walking its chunked hierarchy tree breadth-first, the way
// get_hierarchies does: fetch the root chunk, find every key at a depth
// that is both deeper than the chunk it was found in and an exact
// multiple of step (a continuation pointer), and fetch those chunks next.
// step == 0 means the hierarchy is a single unchunked file and there is
// nothing to continue into. Each frontier level fans out over an
// unbounded errgroup per §5's guidance that frontier width is the
// implementer's documented escape hatch, not the fetch stage the
// concurrency limit applies to.
func LoadHierarchy(ctx context.Context, source *Source, step int) (map[string]int, error) {
	keys := make(map[string]int)
	var mu sync.Mutex

	visited := roaring64.New()
	visited.Add(hashKey("0-0-0-0"))

	frontier := []string{"0-0-0-0"}

	for len(frontier) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		chunks := make([]map[string]int, len(frontier))

		for i, root := range frontier {
			i, root := i, root
			g.Go(func() error {
				chunk, err := source.GetHierarchyChunk(gctx, root)
				if err != nil {
					return err
				}
				chunks[i] = chunk
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return nil, err
		}

		var nextFrontier []string
		for i, root := range frontier {
			rootDepth, err := keyDepth(root)
			if err != nil {
				return nil, &MalformedHierarchyError{Key: root, Cause: err}
			}

			mu.Lock()
			for k, count := range chunks[i] {
				keys[k] = count

				depth, err := keyDepth(k)
				if err != nil {
					mu.Unlock()
					return nil, &MalformedHierarchyError{Key: k, Cause: err}
				}
				if step > 0 && depth > rootDepth && depth%step == 0 {
					h := hashKey(k)
					if !visited.Contains(h) {
						visited.Add(h)
						nextFrontier = append(nextFrontier, k)
					}
				}
			}
			mu.Unlock()
		}
		frontier = nextFrontier
	}

	return keys, nil
}

func keyDepth(key string) (int, error) {
	d, _, found := strings.Cut(key, "-")
	if !found {
		return 0, &MalformedHierarchyError{Key: key}
	}
	return strconv.Atoi(d)
}

func hashKey(key string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(key))
	return h.Sum64()
}
