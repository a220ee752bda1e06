package cache

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// CacheKey represents a unique identifier for a cached GitHub response.
type CacheKey struct {
	// Account scopes the entry to the authenticated user, since listings
	// differ per token.
	Account string

	// Endpoint is the request path (e.g., "/users/octocat/repos")
	Endpoint string

	// QueryParams are the query parameters (e.g., {"page": "2"})
	QueryParams url.Values
}

// String generates a deterministic cache key string.
// Format: github:endpoint:query1=val1:query2=val2:account=name
//
// Example:
//
//	github:users/octocat/repos:page=2:per_page=100:account=octocat
func (k CacheKey) String() string {
	parts := []string{"github"}

	endpoint := strings.Trim(k.Endpoint, "/")
	if endpoint != "" {
		parts = append(parts, endpoint)
	}

	if len(k.QueryParams) > 0 {
		queryKeys := make([]string, 0, len(k.QueryParams))
		for key := range k.QueryParams {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.QueryParams.Get(key)))
		}
	}

	if k.Account != "" {
		parts = append(parts, "account="+strings.ToLower(k.Account))
	}

	return strings.Join(parts, ":")
}
