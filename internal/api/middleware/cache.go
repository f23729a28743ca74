package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/pharmacyonduty/backend/internal/domain/providers"
)

// CacheMiddleware caches successful GET responses in the shared cache
type CacheMiddleware struct {
	cache  providers.CacheProvider
	prefix string
	logger zerolog.Logger
}

type cachedResponse struct {
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
}

// NewCacheMiddleware creates a new cache middleware. prefix namespaces the keys.
func NewCacheMiddleware(cache providers.CacheProvider, prefix string, logger zerolog.Logger) *CacheMiddleware {
	return &CacheMiddleware{cache: cache, prefix: prefix, logger: logger}
}

// Middleware caches responses of next for ttl, keyed by path and query
func (m *CacheMiddleware) Middleware(ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m == nil || m.cache == nil || r.Method != http.MethodGet {
				next.ServeHTTP(w, r)
				return
			}

			cacheKey := m.generateCacheKey(r)

			if raw, err := m.cache.Get(r.Context(), cacheKey); err == nil && raw != nil {
				var cached cachedResponse
				if err := json.Unmarshal(raw, &cached); err == nil {
					w.Header().Set("X-Cache", "HIT")
					w.Header().Set("Content-Type", cached.ContentType)
					w.WriteHeader(http.StatusOK)
					_, _ = w.Write(cached.Body)
					return
				}
			} else if err != nil {
				m.logger.Warn().Err(err).Msg("response cache read failed")
			}

			w.Header().Set("X-Cache", "MISS")
			recorder := &responseRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
				body:           &bytes.Buffer{},
			}
			next.ServeHTTP(recorder, r)

			if recorder.statusCode != http.StatusOK || recorder.body.Len() == 0 {
				return
			}
			payload, err := json.Marshal(cachedResponse{
				ContentType: recorder.Header().Get("Content-Type"),
				Body:        recorder.body.Bytes(),
			})
			if err != nil {
				return
			}
			if err := m.cache.Set(r.Context(), cacheKey, payload, ttl); err != nil {
				m.logger.Warn().Err(err).Str("key", cacheKey).Msg("failed to cache response")
			}
		})
	}
}

// generateCacheKey hashes path and raw query
func (m *CacheMiddleware) generateCacheKey(r *http.Request) string {
	key := r.URL.Path
	if r.URL.RawQuery != "" {
		key += "?" + r.URL.RawQuery
	}
	hash := sha256.Sum256([]byte(key))
	return m.prefix + hex.EncodeToString(hash[:])
}

// responseRecorder tees the response body so it can be cached
type responseRecorder struct {
	http.ResponseWriter
	statusCode int
	body       *bytes.Buffer
}

func (r *responseRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
