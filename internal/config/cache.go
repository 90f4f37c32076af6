package config

import (
    "strings"
    "time"
)

// CacheConfig drives the Redis response cache in front of the availability
// endpoints.  Keep TTL short: the aggregates are rebuilt from live sensor
// rows on every miss.
type CacheConfig struct {
    Enabled      bool
    Methods      map[string]bool // cacheable HTTP methods, upper case
    TTL          time.Duration
    KeyStrategy  string // "path_query" (default) or "route"
    Prefix       string
    MaxBodyBytes int // larger responses are served but not stored
}

// LoadCacheConfig reads the CACHE_* variables.
func LoadCacheConfig() CacheConfig {
    methods := map[string]bool{}
    for _, m := range strings.FieldsFunc(envStr("CACHE_METHODS", "GET,HEAD"), func(r rune) bool { return r == ',' || r == ' ' }) {
        methods[strings.ToUpper(m)] = true
    }
    return CacheConfig{
        Enabled:      envBool("CACHE_ENABLED", true),
        Methods:      methods,
        TTL:          envDur("CACHE_TTL", 15*time.Second),
        KeyStrategy:  envStr("CACHE_KEY_STRATEGY", "path_query"),
        Prefix:       envStr("CACHE_PREFIX", "parksavvy:cache"),
        MaxBodyBytes: envInt("CACHE_MAX_BODY_BYTES", 1<<20),
    }
}
