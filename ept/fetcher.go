package ept

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/ept-io/go-ept/ept/lasio"
)

// DefaultTileConcurrency is the default bound on simultaneous tile fetches
// in flight, matching §5's "bounded 8-16 concurrent requests" guidance.
const DefaultTileConcurrency = 12

// FetchTiles downloads the raw LAZ bytes for every key in overlapKeys,
// bounded to maxConcurrency simultaneous requests via errgroup.SetLimit.
// Cancelling ctx aborts any fetch not yet complete and discards partial
// results, so a cancelled query never constructs a PointCloud from
// incomplete tile data.
func FetchTiles(ctx context.Context, source *Source, overlapKeys []string, maxConcurrency int) ([][]byte, error) {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultTileConcurrency
	}
	results := make([][]byte, len(overlapKeys))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrency)

	for i, key := range overlapKeys {
		i, key := i, key
		g.Go(func() error {
			data, err := source.GetTile(gctx, key)
			if err != nil {
				return err
			}
			results[i] = data
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// DecodeTiles decodes each raw LAZ payload into a lasio.PointCloud on a
// worker pool sized to GOMAXPROCS, the CPU-bound counterpart to the I/O
// bound FetchTiles fan-out.
func DecodeTiles(ctx context.Context, rawTiles [][]byte, keys []string) ([]*lasio.PointCloud, error) {
	clouds := make([]*lasio.PointCloud, len(rawTiles))

	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	for i, raw := range rawTiles {
		i, raw, key := i, raw, keys[i]
		g.Go(func() error {
			pc, err := lasio.Decode(raw)
			if err != nil {
				return &DecodeFailedError{Key: key, Cause: err}
			}
			clouds[i] = pc
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return clouds, nil
}

// encodeLAZ serializes a query result as a compressed LAZ payload via the
// lasio codec, the encode half of the PointPipeline §4.G describes.
func encodeLAZ(pc *lasio.PointCloud) ([]byte, error) {
	return lasio.Encode(pc, true)
}

// QueryTiles runs the full fetch/decode/merge/clip pipeline for a resolved
// query: it downloads and decodes every overlapping tile, merges them into
// one PointCloud, and clips the result to params.Bounds.
func QueryTiles(ctx context.Context, source *Source, overlapKeys []string, params QueryParams, maxConcurrency int) (*lasio.PointCloud, error) {
	raw, err := FetchTiles(ctx, source, overlapKeys, maxConcurrency)
	if err != nil {
		return nil, err
	}

	clouds, err := DecodeTiles(ctx, raw, overlapKeys)
	if err != nil {
		return nil, err
	}

	merged, err := lasio.Merge(clouds)
	if err != nil {
		return nil, &DecodeFailedError{Key: "merge", Cause: err}
	}

	clipped, err := merged.Clip(
		params.Bounds.Xmin(), params.Bounds.Ymin(), params.Bounds.Zmin(),
		params.Bounds.Xmax(), params.Bounds.Ymax(), params.Bounds.Zmax(),
	)
	if err != nil {
		return nil, &DecodeFailedError{Key: "clip", Cause: err}
	}
	return clipped, nil
}
