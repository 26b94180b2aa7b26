package config

import (
	"strings"
	"time"
)

// CacheConfig defines settings for the response cache middleware.  Only
// anonymous requests to the public ticket catalogue are cached, so a
// short TTL keeps approvals and stock changes visible quickly.
type CacheConfig struct {
	Enabled      bool
	Methods      map[string]bool
	TTL          time.Duration
	KeyStrategy  string
	Prefix       string
	MaxBodyBytes int
}

// LoadCacheConfig reads environment variables to build a CacheConfig.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      envBool("CACHE_ENABLED", true),
		Methods:      parseMethods(getenv("CACHE_METHODS", "GET")),
		TTL:          envDur("CACHE_TTL", 15*time.Second),
		KeyStrategy:  getenv("CACHE_KEY_STRATEGY", "route_query"),
		Prefix:       getenv("CACHE_PREFIX", "cache"),
		MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
	}
}

func parseMethods(s string) map[string]bool {
	m := map[string]bool{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(strings.ToUpper(p))
		if p != "" {
			m[p] = true
		}
	}
	return m
}

// IdempotencyConfig controls the Idempotency-Key guard on payment
// confirmation.  ProcessingTTL bounds how long an in-flight marker blocks
// retries; CompletedTTL is how long a finished key is remembered.
type IdempotencyConfig struct {
	Enabled       bool
	Prefix        string
	ProcessingTTL time.Duration
	CompletedTTL  time.Duration
}

func LoadIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		Enabled:       envBool("IDEMPOTENCY_ENABLED", true),
		Prefix:        getenv("IDEMPOTENCY_PREFIX", "idem"),
		ProcessingTTL: envDur("IDEMPOTENCY_PROCESSING_TTL", 30*time.Second),
		CompletedTTL:  envDur("IDEMPOTENCY_COMPLETED_TTL", 24*time.Hour),
	}
}
