package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	mapsScriptURL       = "https://maps.googleapis.com/maps/api/js"
	defaultMapLibraries = "geometry"
)

// MapsHandler proxies the Google Maps JavaScript loader so the browser never sees the key.
type MapsHandler struct {
	apiKey          string
	baseURL         string
	allowedReferers []string
	client          *resty.Client
}

// NewMapsHandler creates a new maps handler. An empty baseURL uses the public loader.
func NewMapsHandler(apiKey, baseURL string, allowedReferers []string, timeout time.Duration) *MapsHandler {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = mapsScriptURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &MapsHandler{
		apiKey:          apiKey,
		baseURL:         baseURL,
		allowedReferers: allowedReferers,
		client:          resty.New().SetTimeout(timeout),
	}
}

// RequireAllowedReferer rejects requests whose Referer does not start with an allowed prefix.
func (h *MapsHandler) RequireAllowedReferer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.allowedReferer(r.Referer()) {
			respondWithError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *MapsHandler) allowedReferer(referer string) bool {
	if referer == "" {
		return false
	}
	for _, allowed := range h.allowedReferers {
		if allowed == "*" || strings.HasPrefix(referer, allowed) {
			return true
		}
	}
	return false
}

// GetMapsScript handles GET /api/maps/js. Caller parameters are forwarded;
// the key is always the server's.
func (h *MapsHandler) GetMapsScript(w http.ResponseWriter, r *http.Request) {
	if h.apiKey == "" {
		respondWithError(w, http.StatusServiceUnavailable, "maps api key not configured")
		return
	}

	params := map[string]string{"libraries": defaultMapLibraries}
	for name, values := range r.URL.Query() {
		if len(values) > 0 {
			params[name] = values[0]
		}
	}
	params["key"] = h.apiKey

	resp, err := h.client.R().
		SetContext(r.Context()).
		SetQueryParams(params).
		Get(h.baseURL)
	if err != nil {
		respondWithError(w, http.StatusBadGateway, "failed to fetch maps script")
		return
	}
	if resp.IsError() {
		respondWithError(w, http.StatusBadGateway, "maps provider returned an error")
		return
	}

	w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(resp.Body())
}
