package http

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"

	"github.com/tair/shopify-sync/pkg/logger"
)

// DefaultCacheTTL keeps the monitoring list fresh while shedding load from
// pollers. Events mutate constantly, so the TTL is short.
const DefaultCacheTTL = 10 * time.Second

// CacheMiddleware caches GET responses in Redis
func CacheMiddleware(redisClient *redis.Client, ttl time.Duration) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip caching if Redis is not available
			if redisClient == nil || r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			cacheKey := generateCacheKey(r)
			ctx := context.Background()

			cachedResponse, err := redisClient.Get(ctx, cacheKey).Bytes()
			if err == nil && len(cachedResponse) > 0 {
				logger.Logger.Debug().
					Str("path", r.URL.Path).
					Str("cache_key", cacheKey).
					Msg("Cache hit")

				w.Header().Set("X-Cache", "HIT")
				w.Header().Set("Content-Type", "application/json")
				w.Write(cachedResponse)
				return
			}

			recorder := &cachingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			recorder.Header().Set("X-Cache", "MISS")
			next.ServeHTTP(recorder, r)

			// Only cache successful responses
			if recorder.statusCode == http.StatusOK && recorder.body.Len() > 0 {
				if err := redisClient.Set(ctx, cacheKey, recorder.body.Bytes(), ttl).Err(); err != nil {
					logger.Logger.Warn().
						Err(err).
						Str("cache_key", cacheKey).
						Msg("Failed to cache response")
				}
			}
		})
	}
}

func generateCacheKey(r *http.Request) string {
	sum := sha256.Sum256([]byte(r.URL.Path + "?" + r.URL.RawQuery))
	return fmt.Sprintf("cache:%s", hex.EncodeToString(sum[:]))
}

// cachingResponseWriter captures the response body and status for caching
type cachingResponseWriter struct {
	http.ResponseWriter
	statusCode int
	body       bytes.Buffer
}

func (crw *cachingResponseWriter) WriteHeader(code int) {
	crw.statusCode = code
	crw.ResponseWriter.WriteHeader(code)
}

func (crw *cachingResponseWriter) Write(b []byte) (int, error) {
	crw.body.Write(b)
	return crw.ResponseWriter.Write(b)
}
