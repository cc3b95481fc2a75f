package schema

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "signet/pkg/domain-errors"
)

// A well-formed CIDv0 (sha2-256 of an empty unixfs node).
const validCID = "QmUNLLsPACCz1vLxQVkXqqLX5R1X345qqfHbsf67hvA3Nn"

type memCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	sets    int
}

func newMemCache() *memCache { return &memCache{entries: make(map[string][]byte)} }

func (c *memCache) Get(_ context.Context, uri string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	content, ok := c.entries[uri]
	return content, ok
}

func (c *memCache) Set(_ context.Context, uri string, content []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[uri] = content
	c.sets++
}

func TestResolveHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"title":"AgeCredential"}`))
	}))
	defer srv.Close()

	r := NewResolver("https://ipfs.example.org")
	s, err := r.Resolve(context.Background(), srv.URL+"/schemas/age.json")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"title":"AgeCredential"}`), s.Content)
	assert.Equal(t, "application/json", s.ContentType)
	assert.Len(t, s.Hash, 32)
}

func TestResolveIPFSViaGateway(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"title":"KYC"}`))
	}))
	defer srv.Close()

	r := NewResolver(srv.URL)
	s, err := r.Resolve(context.Background(), "ipfs://"+validCID)
	require.NoError(t, err)
	assert.Equal(t, "/ipfs/"+validCID, gotPath)
	assert.Equal(t, []byte(`{"title":"KYC"}`), s.Content)
}

func TestResolveIPFSCachesCanonicalCIDs(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(`{"title":"KYC"}`))
	}))
	defer srv.Close()

	cache := newMemCache()
	r := NewResolver(srv.URL, WithCache(cache))

	for range 3 {
		_, err := r.Resolve(context.Background(), "ipfs://"+validCID)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, hits, "canonical CID content should be served from cache")
	assert.Equal(t, 1, cache.sets)
}

func TestResolveIPFSNonCanonicalIDNotCached(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	cache := newMemCache()
	r := NewResolver(srv.URL, WithCache(cache))

	for range 2 {
		_, err := r.Resolve(context.Background(), "ipfs://Qm123")
		require.NoError(t, err)
	}
	assert.Equal(t, 2, hits)
	assert.Zero(t, cache.sets)
}

func TestResolveErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	r := NewResolver(srv.URL)
	tests := []struct {
		name string
		uri  string
	}{
		{"unsupported scheme", "ftp://example.org/schema.json"},
		{"missing content id", "ipfs://"},
		{"gateway 404", "ipfs://" + validCID},
		{"http 404", srv.URL + "/missing.json"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Resolve(context.Background(), tt.uri)
			require.Error(t, err)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeSchema), "want schema error, got %v", err)
		})
	}
}

func TestHashContentIsDeterministic(t *testing.T) {
	a := HashContent([]byte(`{"x":1}`))
	b := HashContent([]byte(`{"x":1}`))
	c := HashContent([]byte(`{"x":2}`))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}
