package ept

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func writeMinimalArchive(t *testing.T, dir string) {
	t.Helper()
	assert.Nil(t, os.MkdirAll(filepath.Join(dir, "h"), 0o755))

	info := map[string]interface{}{
		"bounds":        []float64{0, 0, 0, 10, 10, 10},
		"hierarchyStep": 0,
		"span":          128,
	}
	infoBytes, _ := json.Marshal(info)
	assert.Nil(t, os.WriteFile(filepath.Join(dir, "entwine.json"), infoBytes, 0o644))

	hierarchy := map[string]int{"0-0-0-0": 4}
	hierarchyBytes, _ := json.Marshal(hierarchy)
	assert.Nil(t, os.WriteFile(filepath.Join(dir, "h", "0-0-0-0.json"), hierarchyBytes, 0o644))

	assert.Nil(t, os.WriteFile(filepath.Join(dir, "0-0-0-0.laz"), []byte("fake-laz-bytes"), 0o644))
}

func TestOpenSourceAndGetEntwineJSON(t *testing.T) {
	dir := t.TempDir()
	writeMinimalArchive(t, dir)

	source, err := OpenSource(context.Background(), dir)
	assert.Nil(t, err)
	defer source.Close()

	info, err := source.GetEntwineJSON(context.Background())
	assert.Nil(t, err)
	assert.Equal(t, [6]float64{0, 0, 0, 10, 10, 10}, info.Bounds)
	assert.Equal(t, 0, info.HierarchyStep)
}

func TestGetEntwineJSONRejectsMalformedBounds(t *testing.T) {
	dir := t.TempDir()
	assert.Nil(t, os.WriteFile(filepath.Join(dir, "entwine.json"), []byte(`{"bounds":[0,0,1,1]}`), 0o644))

	source, err := OpenSource(context.Background(), dir)
	assert.Nil(t, err)
	defer source.Close()

	_, err = source.GetEntwineJSON(context.Background())
	assert.NotNil(t, err)
	var malformed *MalformedInfoError
	assert.ErrorAs(t, err, &malformed)
}

func TestGetHierarchyChunkAndTile(t *testing.T) {
	dir := t.TempDir()
	writeMinimalArchive(t, dir)

	source, err := OpenSource(context.Background(), dir)
	assert.Nil(t, err)
	defer source.Close()

	chunk, err := source.GetHierarchyChunk(context.Background(), "0-0-0-0")
	assert.Nil(t, err)
	assert.Equal(t, 4, chunk["0-0-0-0"])

	tile, err := source.GetTile(context.Background(), "0-0-0-0")
	assert.Nil(t, err)
	assert.Equal(t, []byte("fake-laz-bytes"), tile)
}

func TestGetBytesRecordsBucketMetricsWhenAttached(t *testing.T) {
	dir := t.TempDir()
	writeMinimalArchive(t, dir)

	source, err := OpenSource(context.Background(), dir)
	assert.Nil(t, err)
	defer source.Close()

	logger := log.New(os.Stderr, "", 0)
	metrics := NewMetrics("metricstest_sourcegetbytes", logger)
	source.metrics = metrics

	_, err = source.GetBytes(context.Background(), "entwine.json")
	assert.Nil(t, err)
	_, err = source.GetBytes(context.Background(), "missing.json")
	assert.NotNil(t, err)

	ok := testutil.ToFloat64(metrics.bucketRequests.WithLabelValues("file", "ok"))
	failed := testutil.ToFloat64(metrics.bucketRequests.WithLabelValues("file", "error"))
	assert.Equal(t, 1.0, ok)
	assert.Equal(t, 1.0, failed)
}

func TestGetBytesWrapsMissingKeyInFetchFailedError(t *testing.T) {
	dir := t.TempDir()
	source, err := OpenSource(context.Background(), dir)
	assert.Nil(t, err)
	defer source.Close()

	_, err = source.GetBytes(context.Background(), "missing.json")
	assert.NotNil(t, err)
	var fetchFailed *FetchFailedError
	assert.ErrorAs(t, err, &fetchFailed)
}
