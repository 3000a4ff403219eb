package ept

import (
	"context"
	"encoding/json"
	"time"
)

// Source is a named EPT archive root: a Bucket plus the key prefix under
// which its objects (entwine.json, h/*.json, *.laz) live. It generalizes
// the original source's per-scheme HTTPSource/S3Source pair into a single
// type parameterized over Bucket, the way the teacher parameterizes tile
// serving over its own Bucket interface.
type Source struct {
	bucket Bucket
	prefix string
	root   string
	kind   string

	// metrics is nil for Sources opened outside a Server (e.g. the CLI),
	// in which case GetBytes simply skips recording.
	metrics *Metrics
}

// OpenSource resolves a root address (s3://bucket/key, https://host/path,
// or a local filesystem path) into a Source. Any error from OpenBucket is
// returned unchanged: UnknownSchemeError for an address it cannot open,
// FetchFailedError for a local directory that does not exist.
func OpenSource(ctx context.Context, address string) (*Source, error) {
	bucketURL, prefix, err := NormalizeBucketKey(address)
	if err != nil {
		return nil, &UnknownSchemeError{Address: address}
	}
	bucket, err := OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, err
	}
	return &Source{bucket: bucket, prefix: prefix, root: address, kind: bucketKind(bucket)}, nil
}

// Root returns the address this Source was opened from, used as the
// Registry's cache key.
func (s *Source) Root() string { return s.root }

func (s *Source) Close() error { return s.bucket.Close() }

// GetBytes fetches the raw bytes of an object below the source's prefix,
// wrapping any failure in FetchFailedError. Every call is timed and counted
// against this Source's backend kind, the chokepoint through which every
// entwine.json, hierarchy chunk, and tile read passes.
func (s *Source) GetBytes(ctx context.Context, key string) ([]byte, error) {
	uri := joinKey(s.prefix, key)

	start := time.Now()
	data, err := s.bucket.Get(ctx, uri)
	elapsed := time.Since(start).Seconds()

	status := "ok"
	if err != nil {
		status = "error"
	}
	if s.metrics != nil {
		s.metrics.observeBucketRequest(s.kind, status, elapsed)
	}

	if err != nil {
		return nil, &FetchFailedError{URI: uri, Cause: err}
	}
	return data, nil
}

// GetEntwineJSON fetches entwine.json, decoding only the fields the read
// path itself depends on (bounds, hierarchyStep, span) while keeping the
// raw bytes so callers like Server.handleInfo can forward the object
// unchanged, including fields (schema, srs, dataType, points, ...) this
// package never looks at.
func (s *Source) GetEntwineJSON(ctx context.Context) (*Info, error) {
	data, err := s.GetBytes(ctx, "entwine.json")
	if err != nil {
		return nil, err
	}

	var raw struct {
		Bounds        []float64 `json:"bounds"`
		HierarchyStep int       `json:"hierarchyStep"`
		Span          int       `json:"span"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, &MalformedInfoError{Reason: err.Error()}
	}
	if len(raw.Bounds) != 6 {
		return nil, &MalformedInfoError{Reason: "bounds must have 6 elements"}
	}

	info := &Info{HierarchyStep: raw.HierarchyStep, Span: raw.Span, Raw: json.RawMessage(data)}
	copy(info.Bounds[:], raw.Bounds)
	return info, nil
}

// GetHierarchyChunk fetches and decodes one "h/<key>.json" chunk: a flat
// object mapping "d-x-y-z" strings to integer point counts.
func (s *Source) GetHierarchyChunk(ctx context.Context, key string) (map[string]int, error) {
	var chunk map[string]int
	uri := "h/" + key + ".json"
	data, err := s.GetBytes(ctx, uri)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &chunk); err != nil {
		return nil, &MalformedHierarchyError{Key: key, Cause: err}
	}
	return chunk, nil
}

// GetTile fetches the raw LAZ bytes for an octree node key.
func (s *Source) GetTile(ctx context.Context, key string) ([]byte, error) {
	return s.GetBytes(ctx, key+".laz")
}

// Info is the subset of entwine.json the read path itself depends on, plus
// Raw, the complete decoded entwine.json bytes. Raw is what Server.handleInfo
// serves from /info/{name}, so every other field a real archive carries
// (schema, srs, dataType, points, ...) reaches callers unchanged even though
// this package never parses them.
type Info struct {
	Bounds        [6]float64      `json:"bounds"`
	HierarchyStep int             `json:"hierarchyStep"`
	Span          int             `json:"span"`
	Raw           json.RawMessage `json:"-"`
}
