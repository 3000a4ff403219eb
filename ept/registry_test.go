package ept

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func writeTinyArchive(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	assert.Nil(t, os.MkdirAll(filepath.Join(dir, "h"), 0o755))
	info := map[string]interface{}{"bounds": []float64{0, 0, 0, 1, 1, 1}, "hierarchyStep": 0, "span": 128}
	infoBytes, _ := json.Marshal(info)
	assert.Nil(t, os.WriteFile(filepath.Join(dir, "entwine.json"), infoBytes, 0o644))
	hierarchyBytes, _ := json.Marshal(map[string]int{"0-0-0-0": 0})
	assert.Nil(t, os.WriteFile(filepath.Join(dir, "h", "0-0-0-0.json"), hierarchyBytes, 0o644))
	return dir
}

func TestRegistryGetCachesByAddress(t *testing.T) {
	dir := writeTinyArchive(t)
	registry := NewRegistry(4)

	r1, err := registry.Get(context.Background(), dir)
	assert.Nil(t, err)
	r2, err := registry.Get(context.Background(), dir)
	assert.Nil(t, err)
	assert.Same(t, r1, r2)
	assert.Equal(t, 1, registry.Len())
}

func TestRegistryGetUnknownAddressErrors(t *testing.T) {
	registry := NewRegistry(4)
	_, err := registry.Get(context.Background(), "/definitely/does/not/exist")
	assert.NotNil(t, err)
}

func TestRegistryEvictIdleRemovesStaleEntries(t *testing.T) {
	dir := writeTinyArchive(t)
	registry := NewRegistry(4)

	_, err := registry.Get(context.Background(), dir)
	assert.Nil(t, err)
	assert.Equal(t, 1, registry.Len())

	evicted := registry.EvictIdle(0)
	assert.Equal(t, []string{dir}, evicted)
	assert.Equal(t, 0, registry.Len())
}

func TestRegistryPeekReflectsCacheState(t *testing.T) {
	dir := writeTinyArchive(t)
	registry := NewRegistry(4)

	assert.False(t, registry.Peek(dir))
	_, err := registry.Get(context.Background(), dir)
	assert.Nil(t, err)
	assert.True(t, registry.Peek(dir))
}

func TestRegistryEvictIdleKeepsFreshEntries(t *testing.T) {
	dir := writeTinyArchive(t)
	registry := NewRegistry(4)

	_, err := registry.Get(context.Background(), dir)
	assert.Nil(t, err)

	evicted := registry.EvictIdle(time.Hour)
	assert.Empty(t, evicted)
	assert.Equal(t, 1, registry.Len())
}
