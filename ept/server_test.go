package ept

import (
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/ept-io/go-ept/ept/lasio"
	"github.com/stretchr/testify/assert"
)

func writeServerArchive(t *testing.T, root string) {
	t.Helper()
	assert.Nil(t, os.MkdirAll(filepath.Join(root, "h"), 0o755))

	info := map[string]interface{}{
		"bounds":        []float64{0, 0, 0, 10, 10, 10},
		"hierarchyStep": 0,
		"span":          128,
		"srs":           map[string]interface{}{"authority": "EPSG", "horizontal": "3857"},
		"dataType":      "laszip",
	}
	infoBytes, _ := json.Marshal(info)
	assert.Nil(t, os.WriteFile(filepath.Join(root, "entwine.json"), infoBytes, 0o644))

	hierarchyBytes, _ := json.Marshal(map[string]int{"0-0-0-0": 1})
	assert.Nil(t, os.WriteFile(filepath.Join(root, "h", "0-0-0-0.json"), hierarchyBytes, 0o644))

	pc := &lasio.PointCloud{
		Header: lasio.Header{ScaleX: 0.01, ScaleY: 0.01, ScaleZ: 0.01},
		Points: []lasio.PointRecord{{X: 100, Y: 100, Z: 100}},
	}
	tile, err := lasio.Encode(pc, true)
	assert.Nil(t, err)
	assert.Nil(t, os.WriteFile(filepath.Join(root, "0-0-0-0.laz"), tile, 0o644))
}

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	writeServerArchive(t, dir)

	// %.0s consumes the {name} path variable without using it, so every
	// dataset name in this test resolves to the same fixed archive root.
	server := NewServer(log.New(os.Stderr, "", 0), 4, dir+"%.0s", "")
	return server, dir
}

func TestServerHandleInfo(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/info/dataset", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var info Info
	assert.Nil(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, [6]float64{0, 0, 0, 10, 10, 10}, info.Bounds)

	// fields this package never parses must still be forwarded unchanged.
	var raw map[string]interface{}
	assert.Nil(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	assert.Equal(t, "laszip", raw["dataType"])
	assert.Equal(t, "EPSG", raw["srs"].(map[string]interface{})["authority"])
}

func TestServerHandleReadReturnsLAZ(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/read/dataset/0,0,10,10", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	assert.Greater(t, rec.Body.Len(), 0)
}

func TestServerHandleReadBadBBoxIsBadRequest(t *testing.T) {
	server, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/read/dataset/not,a,bbox", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWriteErrorMapsFetchFailedByCause(t *testing.T) {
	server, _ := newTestServer(t)

	notFound := &FetchFailedError{URI: "city/entwine.json", Cause: &httpStatusError{url: "https://example.com", status: http.StatusNotFound}}
	rec := httptest.NewRecorder()
	server.writeError(rec, notFound, server.metrics.startRequest(), "info")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	serverFailure := &FetchFailedError{URI: "city/entwine.json", Cause: &httpStatusError{url: "https://example.com", status: http.StatusBadGateway}}
	rec = httptest.NewRecorder()
	server.writeError(rec, serverFailure, server.metrics.startRequest(), "info")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestServerHandleInfoUnknownDatasetIsNotFound(t *testing.T) {
	server := NewServer(log.New(os.Stderr, "", 0), 4, "/does/not/exist/%s", "")

	req := httptest.NewRequest(http.MethodGet, "/info/dataset", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
