package ept

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"gocloud.dev/blob"
)

// Bucket is a minimal whole-object GET abstraction over a storage backend.
// Unlike the teacher's range-reader bucket (pmtiles needs byte ranges into
// one big archive file), EPT objects are always fetched whole: entwine.json,
// one hierarchy chunk, or one tile, each addressed by its own key.
type Bucket interface {
	Close() error
	Get(ctx context.Context, key string) ([]byte, error)
}

// FileBucket is a bucket backed by a directory on disk.
type FileBucket struct {
	path string
}

func (b FileBucket) Get(_ context.Context, key string) ([]byte, error) {
	name := filepath.Join(b.path, filepath.FromSlash(key))
	return os.ReadFile(name)
}

func (b FileBucket) Close() error { return nil }

// HTTPClient lets tests swap out the default client with a mock one.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPBucket fetches objects below a fixed base URL over plain HTTP(S).
type HTTPBucket struct {
	baseURL string
	client  HTTPClient
}

func (b HTTPBucket) Get(ctx context.Context, key string) ([]byte, error) {
	reqURL := strings.TrimSuffix(b.baseURL, "/") + "/" + key

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &httpStatusError{url: reqURL, status: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}

func (b HTTPBucket) Close() error { return nil }

type httpStatusError struct {
	url    string
	status int
}

func (e *httpStatusError) Error() string {
	return http.StatusText(e.status) + ": " + e.url
}

// BucketAdapter wraps a gocloud.dev/blob.Bucket (the registered S3 driver)
// behind the Bucket interface.
type BucketAdapter struct {
	Bucket *blob.Bucket
}

func (ba BucketAdapter) Get(ctx context.Context, key string) ([]byte, error) {
	return ba.Bucket.ReadAll(ctx, key)
}

func (ba BucketAdapter) Close() error { return ba.Bucket.Close() }

// NormalizeBucketKey splits a root address into a bucket URL usable by
// OpenBucket and the object-key prefix beneath it, mirroring how the
// original source's get_source splits "s3://bucket/key/path" into a
// (bucket, key) pair, generalized to the https and local-path schemes.
func NormalizeBucketKey(address string) (bucketURL string, prefix string, err error) {
	switch {
	case strings.HasPrefix(address, "s3://"):
		trimmed := strings.TrimPrefix(address, "s3://")
		parts := strings.SplitN(trimmed, "/", 2)
		bucket := parts[0]
		key := ""
		if len(parts) == 2 {
			key = parts[1]
		}
		return "s3://" + bucket, key, nil
	case strings.HasPrefix(address, "http://") || strings.HasPrefix(address, "https://"):
		u, err := url.Parse(address)
		if err != nil {
			return "", "", err
		}
		return u.Scheme + "://" + u.Host, strings.TrimPrefix(u.Path, "/"), nil
	case strings.HasPrefix(address, "file://"):
		return address, "", nil
	default:
		abs, err := filepath.Abs(address)
		if err != nil {
			return "", "", err
		}
		fileProtocol := "file://"
		if string(os.PathSeparator) != "/" {
			fileProtocol += "/"
		}
		return fileProtocol + filepath.ToSlash(abs), "", nil
	}
}

// OpenBucket opens the Bucket implementation for a normalized bucket URL.
// Only the schemes spec.md names are wired: s3 (via gocloud.dev/blob's
// s3blob driver, registered by importing it for side effects), https, and
// local filesystem paths. gs:// and azblob:// are deliberately not
// registered; see DESIGN.md. A local directory that does not exist is
// rejected with a FetchFailedError wrapping the os.Stat error.
func OpenBucket(ctx context.Context, bucketURL string) (Bucket, error) {
	if strings.HasPrefix(bucketURL, "http") {
		return HTTPBucket{baseURL: bucketURL, client: http.DefaultClient}, nil
	}
	if strings.HasPrefix(bucketURL, "file://") {
		fileProtocol := "file://"
		if string(os.PathSeparator) != "/" {
			fileProtocol += "/"
		}
		p := filepath.FromSlash(strings.Replace(bucketURL, fileProtocol, "", 1))
		if _, err := os.Stat(p); err != nil {
			return nil, &FetchFailedError{URI: bucketURL, Cause: err}
		}
		return FileBucket{path: p}, nil
	}
	b, err := blob.OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, &UnknownSchemeError{Address: bucketURL}
	}
	return BucketAdapter{Bucket: b}, nil
}

// bucketKind labels a Bucket implementation for the bucket_requests_total
// and bucket_request_duration_seconds metrics.
func bucketKind(b Bucket) string {
	switch b.(type) {
	case FileBucket:
		return "file"
	case HTTPBucket:
		return "http"
	case BucketAdapter:
		return "s3"
	default:
		return "unknown"
	}
}

// joinKey joins a prefix and a relative object key with "/", skipping an
// empty prefix. EPT object names ("entwine.json", "h/0-0-0-0.json",
// "0-0-0-0.laz") are always forward-slash paths regardless of OS.
func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return path.Join(prefix, key)
}
