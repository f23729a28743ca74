package routes

import (
	"net/http"
	"time"

	"github.com/pharmacyonduty/backend/internal/api/handlers"
	"github.com/pharmacyonduty/backend/internal/api/middleware"
	"github.com/pharmacyonduty/backend/internal/infrastructure/observability"
)

const mapsScriptCacheTTL = time.Hour

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	pharmacyHandler *handlers.PharmacyHandler
	mapsHandler     *handlers.MapsHandler
	healthHandler   *handlers.HealthHandler
	streamHandler   *handlers.DutyStreamHandler

	cacheMiddleware *middleware.CacheMiddleware
	allowedOrigins  []string
	metrics         *observability.Metrics
}

// NewRouter creates a new router. streamHandler, cacheMiddleware and metrics may be nil.
func NewRouter(
	pharmacyHandler *handlers.PharmacyHandler,
	mapsHandler *handlers.MapsHandler,
	healthHandler *handlers.HealthHandler,
	streamHandler *handlers.DutyStreamHandler,
	cacheMiddleware *middleware.CacheMiddleware,
	allowedOrigins []string,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:             http.NewServeMux(),
		pharmacyHandler: pharmacyHandler,
		mapsHandler:     mapsHandler,
		healthHandler:   healthHandler,
		streamHandler:   streamHandler,
		cacheMiddleware: cacheMiddleware,
		allowedOrigins:  allowedOrigins,
		metrics:         metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /health", r.healthHandler.Health)

	r.mux.HandleFunc("POST /api/pharmacy-points", r.pharmacyHandler.GetPharmacyPoints)

	// referer check runs before the cache so a cached script is never served to a stranger
	var mapsScript http.Handler = http.HandlerFunc(r.mapsHandler.GetMapsScript)
	if r.cacheMiddleware != nil {
		mapsScript = r.cacheMiddleware.Middleware(mapsScriptCacheTTL)(mapsScript)
	}
	r.mux.Handle("GET /api/maps/js", r.mapsHandler.RequireAllowedReferer(mapsScript))

	if r.streamHandler != nil {
		r.mux.HandleFunc("GET /api/stream/duty", r.streamHandler.StreamAll)
		r.mux.HandleFunc("GET /api/stream/duty/{city}", r.streamHandler.StreamCity)
	}

	// Apply middleware in reverse order (last middleware wraps first)
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	handler = middleware.ResponseOptimization(handler)

	// CORS wraps everything so preflights never reach the handlers
	handler = middleware.CORSMiddleware(r.allowedOrigins)(handler)

	return handler
}
