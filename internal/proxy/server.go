package proxy

import (
	"fmt"
	"net/http"

	"encrypted-cache-proxy/internal/config"
	"encrypted-cache-proxy/internal/httpcache"
	"encrypted-cache-proxy/internal/store"

	"github.com/elazarl/goproxy"
	"github.com/sirupsen/logrus"
)

// Server represents the caching proxy server
type Server struct {
	config *config.Config
	cache  *httpcache.HTTPCache
	rules  []Rule
	proxy  *goproxy.ProxyHttpServer
}

// New creates a new proxy server backed by an encrypted disk cache
func New(cfg *config.Config) (*Server, error) {
	cacheTTL, err := cfg.GetCacheTTL()
	if err != nil {
		return nil, fmt.Errorf("invalid cache TTL: %w", err)
	}

	diskStore, err := store.New(cfg.Cache.Folder, store.Options{Password: cfg.Cache.Password})
	if err != nil {
		return nil, fmt.Errorf("opening cache store: %w", err)
	}

	rules := make([]Rule, 0, len(cfg.Rules.Rules))
	for _, r := range cfg.Rules.Rules {
		rules = append(rules, &ConfigRule{CacheRule: r})
	}

	s := &Server{
		config: cfg,
		cache:  httpcache.New(diskStore, cacheTTL),
		rules:  rules,
		proxy:  goproxy.NewProxyHttpServer(),
	}
	s.setupHandlers()

	return s, nil
}

// GetProxy returns the underlying proxy handler (exported for testing)
func (s *Server) GetProxy() *goproxy.ProxyHttpServer {
	return s.proxy
}

// Start starts the proxy server
func (s *Server) Start() error {
	logrus.Infof("Starting caching proxy on port %d", s.config.Server.Port)
	logrus.Infof("Cache directory: %s", s.config.Cache.Folder)
	logrus.Infof("Cache TTL: %s", s.config.Cache.TTL)
	logrus.Infof("Rules mode: %s", s.config.Rules.Mode)

	return http.ListenAndServe(fmt.Sprintf(":%d", s.config.Server.Port), s.proxy)
}

func (s *Server) setupHandlers() {
	s.setupHTTPSProxyHandler()
	s.proxy.OnRequest().DoFunc(s.handleRequest)
	s.proxy.OnResponse().DoFunc(s.handleResponse)
}

func (s *Server) handleRequest(requ *http.Request, ctx *goproxy.ProxyCtx) (*http.Request, *http.Response) {
	if !s.shouldBeCached(requ) {
		return requ, nil
	}

	if resp := s.cache.GetReq(requ); resp != nil {
		logrus.Infof("Serving from cache: %s %s", requ.Method, requ.URL)
		resp.Header.Set("X-Cache", "HIT")
		return requ, resp
	}

	logrus.Debugf("No cached data found for %s", requ.URL)
	return requ, nil
}

func (s *Server) handleResponse(resp *http.Response, ctx *goproxy.ProxyCtx) *http.Response {
	if resp == nil || ctx.Req == nil {
		return resp
	}

	// Responses served from the cache pass through here too
	if resp.Header.Get("X-Cache") == "HIT" {
		return resp
	}

	if s.shouldBeCached(ctx.Req) && resp.StatusCode == http.StatusOK {
		if err := s.cache.SetReq(ctx.Req, resp); err != nil {
			logrus.Errorf("Failed to cache response for %s: %v", ctx.Req.URL, err)
		}
	}

	resp.Header.Set("X-Cache", "MISS")

	return resp
}

// shouldBeCached determines if a request's response is cacheable per rules
func (s *Server) shouldBeCached(requ *http.Request) bool {
	targetURL := getTargetURL(requ)

	matched := false
	for _, rule := range s.rules {
		if rule.Match(targetURL, requ.Method) {
			matched = true
			break
		}
	}

	if s.config.Rules.Mode == "whitelist" {
		return matched
	}
	return !matched
}

func getTargetURL(requ *http.Request) string {
	if requ.URL.IsAbs() {
		return requ.URL.String()
	}

	// Reconstruct URL from Host header
	scheme := "http"
	if requ.TLS != nil {
		scheme = "https"
	}

	return fmt.Sprintf("%s://%s%s", scheme, requ.Host, requ.URL.String())
}
