// HTTP request/response layer on top of the encrypted entry store
package httpcache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"encrypted-cache-proxy/internal/store"

	"github.com/sirupsen/logrus"
)

// HTTPCache maps HTTP requests to cache keys and converts responses to and
// from store entries. Staleness is decided here: the store only carries the
// expiry timestamp.
type HTTPCache struct {
	store store.Store
	ttl   time.Duration
}

func New(store store.Store, ttl time.Duration) *HTTPCache {
	return &HTTPCache{
		store: store,
		ttl:   ttl,
	}
}

// GenerateKey fingerprints a request as method + URL, with query parameters
// folded into a short hash to keep keys stable for complex URLs.
func (c *HTTPCache) GenerateKey(request *http.Request) string {
	url := *request.URL
	if url.RawQuery != "" {
		hash := sha256.Sum256([]byte(url.RawQuery))
		url.RawQuery = "q=" + hex.EncodeToString(hash[:])[:8]
	}

	host := strings.TrimSuffix(strings.TrimSuffix(url.Host, ":80"), ":443")
	url.Host = host

	return request.Method + " " + url.String()
}

// SetReq caches resp under the request's fingerprint. The response body is
// consumed and restored so the caller can still stream it to the client.
func (c *HTTPCache) SetReq(request *http.Request, resp *http.Response) error {
	return c.SetKey(c.GenerateKey(request), resp)
}

// SetKey caches resp under an explicit key.
func (c *HTTPCache) SetKey(requestKey string, resp *http.Response) error {
	var body []byte
	if resp.Body != nil {
		var err error
		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("reading response body: %w", err)
		}
		if err := resp.Body.Close(); err != nil {
			return fmt.Errorf("closing response body: %w", err)
		}
		resp.Body = io.NopCloser(bytes.NewReader(body)) // restore
	}

	entry := &store.Entry{
		Code:    resp.StatusCode,
		Headers: resp.Header,
		Body:    body,
		Expires: time.Now().Add(c.ttl).UnixMilli(),
	}

	if !c.store.Replace(requestKey, entry) {
		return fmt.Errorf("failed to store cache entry for key %q", requestKey)
	}

	logrus.Debugf("Cached response for %s", requestKey)
	return nil
}

// GetReq returns the cached response for a request, or nil on a miss. A hit
// past its expiry is removed and treated as a miss.
func (c *HTTPCache) GetReq(request *http.Request) *http.Response {
	requestKey := c.GenerateKey(request)

	resp := c.GetKey(requestKey)
	if resp == nil {
		return nil
	}

	logrus.Debugf("Cache hit for %s %s", request.Method, request.URL.String())
	resp.Request = request
	return resp
}

// GetKey returns the cached response under an explicit key, or nil.
func (c *HTTPCache) GetKey(requestKey string) *http.Response {
	entry := c.store.Get(requestKey)
	if entry == nil {
		return nil
	}

	if entry.Expires < time.Now().UnixMilli() {
		logrus.Debugf("Cache entry expired for %s", requestKey)
		c.store.Remove(requestKey)
		return nil
	}

	headers := entry.Headers
	if headers == nil {
		headers = http.Header{}
	}

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", entry.Code, http.StatusText(entry.Code)),
		StatusCode:    entry.Code,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        headers,
		Body:          io.NopCloser(bytes.NewReader(entry.Body)),
		ContentLength: int64(len(entry.Body)),
	}
}

// Remove drops the cached response for a request.
func (c *HTTPCache) Remove(request *http.Request) bool {
	return c.store.Remove(c.GenerateKey(request))
}

// Clear drops every cached response.
func (c *HTTPCache) Clear() bool {
	return c.store.Clear()
}
