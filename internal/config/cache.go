package config

import (
	"net/http"
	"time"
)

// CacheConfig drives the response cache on the admin dashboard reads.
// Only GET responses are ever cached; the verification and redemption
// endpoints must never serve a stale verdict, so they are not routed
// through the cache at all. Caching is keyed by route plus query since
// the activity feed varies on its limit parameter.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	KeyStrategy  string
	Prefix       string
	MaxBodyBytes int
}

// LoadCacheConfig builds the dashboard cache settings from environment
// variables, with defaults tuned for counters that may lag a few
// seconds behind the ledger.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		Methods:      map[string]bool{http.MethodGet: true},
		TTL:          envDur("CACHE_TTL", 30*time.Second),
		KeyStrategy:  "route_query",
		Prefix:       envStr("CACHE_PREFIX", "cache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
}
