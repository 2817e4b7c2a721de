package auth

import (
	"context"
	"sync"
	"time"

	"github.com/rawsignal/RivianMate-sub001/internal/config"
	"github.com/rawsignal/RivianMate-sub001/internal/store"
)

type cacheEntry struct {
	principal string
	expiresAt time.Time
}

// Authenticator validates the API keys presented by the dashboard,
// export, and notification layers that consume this core. Static keys
// come from config; dynamically issued keys live in Redis and are
// cached in memory for the TTL.
type Authenticator struct {
	localCache sync.Map
	redis      *store.RedisStore
	ttl        time.Duration
	staticKeys map[string]bool
}

func NewAuthenticator(cfg *config.Config, redis *store.RedisStore) *Authenticator {
	staticKeys := make(map[string]bool, len(cfg.ValidAPIKeys))
	for _, k := range cfg.ValidAPIKeys {
		if k != "" {
			staticKeys[k] = true
		}
	}

	return &Authenticator{
		redis:      redis,
		ttl:        time.Duration(cfg.AuthCacheTTLSeconds) * time.Second,
		staticKeys: staticKeys,
	}
}

func (a *Authenticator) Validate(ctx context.Context, apiKey string) bool {
	// Level 0: static config keys
	if a.staticKeys[apiKey] {
		return true
	}

	// Level 1: in-memory cache
	if raw, ok := a.localCache.Load(apiKey); ok {
		entry := raw.(cacheEntry)
		if time.Now().Before(entry.expiresAt) {
			return true
		}
		a.localCache.Delete(apiKey)
	}

	// Level 2: Redis lookup
	principal, err := a.redis.GetAPIKey(ctx, apiKey)
	if err != nil || principal == "" {
		return false
	}

	a.localCache.Store(apiKey, cacheEntry{
		principal: principal,
		expiresAt: time.Now().Add(a.ttl),
	})

	return true
}
