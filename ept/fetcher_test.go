package ept

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ept-io/go-ept/ept/lasio"
	"github.com/stretchr/testify/assert"
)

func writeFetchableTiles(t *testing.T, dir string, keys []string) {
	t.Helper()
	for i, key := range keys {
		pc := &lasio.PointCloud{
			Header: lasio.Header{ScaleX: 1, ScaleY: 1, ScaleZ: 1},
			Points: []lasio.PointRecord{{X: int32(i), Y: int32(i), Z: int32(i)}},
		}
		tile, err := lasio.Encode(pc, true)
		assert.Nil(t, err)
		assert.Nil(t, os.WriteFile(filepath.Join(dir, key+".laz"), tile, 0o644))
	}
}

func TestFetchTilesDownloadsAllKeys(t *testing.T) {
	dir := t.TempDir()
	keys := []string{"0-0-0-0", "1-0-0-0", "1-1-0-0"}
	writeFetchableTiles(t, dir, keys)

	source, err := OpenSource(context.Background(), dir)
	assert.Nil(t, err)
	defer source.Close()

	raw, err := FetchTiles(context.Background(), source, keys, 2)
	assert.Nil(t, err)
	assert.Equal(t, len(keys), len(raw))
	for _, r := range raw {
		assert.NotEmpty(t, r)
	}
}

func TestFetchTilesFailsOnMissingKey(t *testing.T) {
	dir := t.TempDir()
	source, err := OpenSource(context.Background(), dir)
	assert.Nil(t, err)
	defer source.Close()

	_, err = FetchTiles(context.Background(), source, []string{"missing"}, 2)
	assert.NotNil(t, err)
}

func TestDecodeTilesProducesPointClouds(t *testing.T) {
	dir := t.TempDir()
	keys := []string{"0-0-0-0", "1-0-0-0"}
	writeFetchableTiles(t, dir, keys)

	source, err := OpenSource(context.Background(), dir)
	assert.Nil(t, err)
	defer source.Close()

	raw, err := FetchTiles(context.Background(), source, keys, 2)
	assert.Nil(t, err)

	clouds, err := DecodeTiles(context.Background(), raw, keys)
	assert.Nil(t, err)
	assert.Equal(t, 2, len(clouds))
	for _, c := range clouds {
		assert.Equal(t, 1, len(c.Points))
	}
}

func TestQueryTilesFetchesDecodesMergesAndClips(t *testing.T) {
	dir := t.TempDir()
	keys := []string{"0-0-0-0", "1-0-0-0"}
	writeFetchableTiles(t, dir, keys)

	source, err := OpenSource(context.Background(), dir)
	assert.Nil(t, err)
	defer source.Close()

	bounds, _ := NewBoundingBox3D(0, 0, 0, 0, 0, 0)
	params := NewQueryParams3D(bounds, UnboundedDepthRange())

	pc, err := QueryTiles(context.Background(), source, keys, params, 2)
	assert.Nil(t, err)
	// only the point at (0,0,0) (from tile index 0) survives the clip.
	assert.Equal(t, 1, len(pc.Points))
}
