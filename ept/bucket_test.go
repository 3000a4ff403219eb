package ept

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeBucketKeyS3(t *testing.T) {
	bucketURL, prefix, err := NormalizeBucketKey("s3://my-bucket/datasets/city")
	assert.Nil(t, err)
	assert.Equal(t, "s3://my-bucket", bucketURL)
	assert.Equal(t, "datasets/city", prefix)
}

func TestNormalizeBucketKeyHTTP(t *testing.T) {
	bucketURL, prefix, err := NormalizeBucketKey("https://example.com/datasets/city")
	assert.Nil(t, err)
	assert.Equal(t, "https://example.com", bucketURL)
	assert.Equal(t, "datasets/city", prefix)
}

func TestNormalizeBucketKeyLocalPath(t *testing.T) {
	bucketURL, prefix, err := NormalizeBucketKey("./some/dir")
	assert.Nil(t, err)
	assert.Equal(t, "", prefix)
	assert.True(t, strings.HasPrefix(bucketURL, "file://"))
}

func TestFileBucketGet(t *testing.T) {
	tmp := t.TempDir()
	assert.Nil(t, os.WriteFile(filepath.Join(tmp, "entwine.json"), []byte(`{"bounds":[0,0,0,1,1,1]}`), 0o644))

	bucket := FileBucket{path: tmp}
	data, err := bucket.Get(context.Background(), "entwine.json")
	assert.Nil(t, err)
	assert.Contains(t, string(data), "bounds")
	assert.Nil(t, bucket.Close())
}

func TestFileBucketGetMissingFile(t *testing.T) {
	bucket := FileBucket{path: t.TempDir()}
	_, err := bucket.Get(context.Background(), "missing.json")
	assert.NotNil(t, err)
}

type mockHTTPClient struct {
	request  *http.Request
	response *http.Response
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.request = req
	return m.response, nil
}

func TestHTTPBucketGetSuccess(t *testing.T) {
	mock := &mockHTTPClient{response: &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(strings.NewReader("payload")),
	}}
	bucket := HTTPBucket{baseURL: "https://example.com/datasets/city", client: mock}

	data, err := bucket.Get(context.Background(), "entwine.json")
	assert.Nil(t, err)
	assert.Equal(t, "payload", string(data))
	assert.Equal(t, "https://example.com/datasets/city/entwine.json", mock.request.URL.String())
}

func TestHTTPBucketGetNon200(t *testing.T) {
	mock := &mockHTTPClient{response: &http.Response{
		StatusCode: http.StatusNotFound,
		Body:       io.NopCloser(strings.NewReader("")),
	}}
	bucket := HTTPBucket{baseURL: "https://example.com", client: mock}
	_, err := bucket.Get(context.Background(), "missing.json")
	assert.NotNil(t, err)
}

func TestOpenBucketFileScheme(t *testing.T) {
	tmp := t.TempDir()
	bucketURL, _, err := NormalizeBucketKey(tmp)
	assert.Nil(t, err)

	bucket, err := OpenBucket(context.Background(), bucketURL)
	assert.Nil(t, err)
	_, ok := bucket.(FileBucket)
	assert.True(t, ok)
}

func TestJoinKeySkipsEmptyPrefix(t *testing.T) {
	assert.Equal(t, "entwine.json", joinKey("", "entwine.json"))
	assert.Equal(t, "city/entwine.json", joinKey("city", "entwine.json"))
}
