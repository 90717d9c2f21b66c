package proxy

import (
	"strings"

	"encrypted-cache-proxy/internal/config"
)

// Rule interface for matching requests against caching rules
type Rule interface {
	Match(targetURL, method string) bool
}

// ConfigRule implements Rule interface for config-based rules
type ConfigRule struct {
	config.CacheRule
}

// Match checks if a request matches this rule
func (r *ConfigRule) Match(targetURL, method string) bool {
	// Check if URL starts with base URI
	if !strings.HasPrefix(targetURL, r.BaseURI) {
		return false
	}

	// Check if method matches
	for _, m := range r.Methods {
		if strings.EqualFold(m, method) {
			return true
		}
	}

	return false
}
