package httpcache

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"encrypted-cache-proxy/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, ttl time.Duration) *HTTPCache {
	t.Helper()
	diskStore, err := store.New(t.TempDir(), store.Options{Password: "test"})
	require.NoError(t, err)
	return New(diskStore, ttl)
}

func testResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestSetAndGet(t *testing.T) {
	cache := newTestCache(t, time.Hour)

	req, err := http.NewRequest("GET", "https://example.com/api/users", nil)
	require.NoError(t, err)

	require.NoError(t, cache.SetReq(req, testResponse(`{"users": []}`)))

	cached := cache.GetReq(req)
	require.NotNil(t, cached)
	assert.Equal(t, http.StatusOK, cached.StatusCode)
	assert.Equal(t, "application/json", cached.Header.Get("Content-Type"))

	body, err := io.ReadAll(cached.Body)
	require.NoError(t, err)
	assert.Equal(t, `{"users": []}`, string(body))
}

func TestSetRestoresResponseBody(t *testing.T) {
	cache := newTestCache(t, time.Hour)

	req, err := http.NewRequest("GET", "https://example.com/api", nil)
	require.NoError(t, err)

	resp := testResponse("payload")
	require.NoError(t, cache.SetReq(req, resp))

	// The caller can still read the body after it was cached
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))
}

func TestGetMiss(t *testing.T) {
	cache := newTestCache(t, time.Hour)

	req, err := http.NewRequest("GET", "https://example.com/never-cached", nil)
	require.NoError(t, err)

	assert.Nil(t, cache.GetReq(req))
}

func TestGetExpired(t *testing.T) {
	cache := newTestCache(t, -time.Second) // already expired when written

	req, err := http.NewRequest("GET", "https://example.com/api", nil)
	require.NoError(t, err)

	require.NoError(t, cache.SetReq(req, testResponse("stale")))

	assert.Nil(t, cache.GetReq(req))

	// The expired entry was removed, not just skipped
	assert.Nil(t, cache.GetKey(cache.GenerateKey(req)))
}

func TestGenerateKey(t *testing.T) {
	cache := newTestCache(t, time.Hour)

	mustRequest := func(method, url string) *http.Request {
		req, err := http.NewRequest(method, url, nil)
		require.NoError(t, err)
		return req
	}

	tests := []struct {
		name string
		a    *http.Request
		b    *http.Request
		same bool
	}{
		{
			name: "identical requests",
			a:    mustRequest("GET", "https://example.com/api"),
			b:    mustRequest("GET", "https://example.com/api"),
			same: true,
		},
		{
			name: "default port is normalized",
			a:    mustRequest("GET", "https://example.com:443/api"),
			b:    mustRequest("GET", "https://example.com/api"),
			same: true,
		},
		{
			name: "different methods",
			a:    mustRequest("GET", "https://example.com/api"),
			b:    mustRequest("POST", "https://example.com/api"),
			same: false,
		},
		{
			name: "different paths",
			a:    mustRequest("GET", "https://example.com/api"),
			b:    mustRequest("GET", "https://example.com/other"),
			same: false,
		},
		{
			name: "different query parameters",
			a:    mustRequest("GET", "https://example.com/api?page=1"),
			b:    mustRequest("GET", "https://example.com/api?page=2"),
			same: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			keyA := cache.GenerateKey(tt.a)
			keyB := cache.GenerateKey(tt.b)
			if tt.same {
				assert.Equal(t, keyA, keyB)
			} else {
				assert.NotEqual(t, keyA, keyB)
			}
		})
	}
}

func TestRemoveAndClear(t *testing.T) {
	cache := newTestCache(t, time.Hour)

	reqA, err := http.NewRequest("GET", "https://example.com/a", nil)
	require.NoError(t, err)
	reqB, err := http.NewRequest("GET", "https://example.com/b", nil)
	require.NoError(t, err)

	require.NoError(t, cache.SetReq(reqA, testResponse("a")))
	require.NoError(t, cache.SetReq(reqB, testResponse("b")))

	assert.True(t, cache.Remove(reqA))
	assert.Nil(t, cache.GetReq(reqA))
	assert.NotNil(t, cache.GetReq(reqB))

	assert.True(t, cache.Clear())
	assert.Nil(t, cache.GetReq(reqB))
}
