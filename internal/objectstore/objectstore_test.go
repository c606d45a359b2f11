package objectstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingTransport struct {
	mu      sync.Mutex
	puts    map[string][]byte
	headers map[string]string
}

func (rt *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if req.Method == http.MethodPut {
		body, _ := io.ReadAll(req.Body)
		rt.puts[req.URL.Path] = body
		rt.headers[req.URL.Path] = req.Header.Get("Content-Type")
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewReader(nil)),
		Header:     http.Header{"ETag": {`"etag"`}},
		Request:    req,
	}, nil
}

func newTestS3(t *testing.T, cfg S3Config) (*S3, *recordingTransport) {
	t.Helper()
	rt := &recordingTransport{puts: map[string][]byte{}, headers: map[string]string{}}
	cfg.HTTPClient = &http.Client{Transport: rt}
	cfg.Endpoint = "https://mock.s3.local"
	cfg.PathStyle = true
	cfg.AccessKeyID = "AKIA"
	cfg.SecretAccessKey = "SECRET"
	store, err := NewS3(context.Background(), cfg)
	require.NoError(t, err)
	return store, rt
}

func TestS3PutWithPublicBaseURL(t *testing.T) {
	store, rt := newTestS3(t, S3Config{Bucket: "snapshots", Prefix: "/published/", PublicBaseURL: "https://cdn.example.org/"})

	url, err := store.Put(context.Background(), "LTA-2026-0000ABCD.json", []byte(`{"a":1}`), "application/json")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.org/published/LTA-2026-0000ABCD.json", url)

	body, ok := rt.puts["/snapshots/published/LTA-2026-0000ABCD.json"]
	require.True(t, ok, "expected a PUT to the prefixed key, got %v", rt.puts)
	assert.JSONEq(t, `{"a":1}`, string(body))
	assert.Equal(t, "application/json", rt.headers["/snapshots/published/LTA-2026-0000ABCD.json"])
}

func TestS3PutPresigns(t *testing.T) {
	store, _ := newTestS3(t, S3Config{Bucket: "snapshots"})

	url, err := store.Put(context.Background(), "x.json", []byte("{}"), "application/json")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://mock.s3.local/snapshots/x.json?"), url)
	assert.Contains(t, url, "X-Amz-Signature=")
}

func TestNewS3RequiresBucket(t *testing.T) {
	_, err := NewS3(context.Background(), S3Config{})
	assert.Error(t, err)
}

func TestMemoryStore(t *testing.T) {
	m := NewMemory("archive")
	url, err := m.Put(context.Background(), "a.json", []byte("{}"), "application/json")
	require.NoError(t, err)
	assert.Equal(t, "memory://archive/a.json", url)

	obj, ok := m.Get("a.json")
	require.True(t, ok)
	assert.Equal(t, "application/json", obj.ContentType)
	assert.Equal(t, []string{"a.json"}, m.Keys())

	m.FailWith(errors.New("unavailable"))
	_, err = m.Put(context.Background(), "b.json", nil, "")
	assert.Error(t, err)
}
