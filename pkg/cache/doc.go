// Package cache provides a Redis-backed store of GitHub listing responses
// used to make conditional requests.
//
// Every cached listing page is revalidated: the client sends the stored
// ETag (If-None-Match) or Last-Modified (If-Modified-Since) value and
// GitHub answers 304 Not Modified when the page did not change. A 304 is
// served from the stored body and does not count against the account's
// rate limit.
//
// Entries are never served without revalidation. A fork deleted by a
// previous run changes the listing's ETag, so stale pages cannot
// resurrect deleted repositories.
//
// # Basic Usage
//
//	store := cache.NewStore(redisClient, cache.DefaultRetention)
//
//	key := cache.CacheKey{
//		Account:     "octocat",
//		Endpoint:    "/users/octocat/repos",
//		QueryParams: url.Values{"page": []string{"1"}, "per_page": []string{"100"}},
//	}
//
//	entry, _ := store.Lookup(ctx, key)
//	entry.Conditional(req) // no-op on a miss
//
//	// After a 200:
//	entry, err = cache.ResponseToEntry(resp)
//	_ = store.Save(ctx, key, entry)
//
//	// After a 304:
//	_ = store.Revalidated(ctx, key)
//	resp = cache.EntryToResponse(entry, req)
//
// # Metrics
//
//   - github_cache_hits_total{layer="redis"}
//   - github_cache_misses_total
//   - github_cache_size_bytes{layer="redis"}
//   - github_conditional_requests_total
//   - github_304_responses_total
//   - github_cache_errors_total{operation}
package cache
