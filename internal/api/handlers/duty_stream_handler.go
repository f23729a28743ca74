package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/pharmacyonduty/backend/internal/domain/providers"
	"github.com/pharmacyonduty/backend/internal/infrastructure/observability"
)

const defaultHeartbeat = 30 * time.Second

// DutyStreamHandler pushes roster refresh events to browsers over
// Server-Sent Events so an open map can reload its pharmacy points.
type DutyStreamHandler struct {
	eventBus  providers.EventBus
	heartbeat time.Duration
	clients   atomic.Int64
}

// NewDutyStreamHandler creates a new stream handler; heartbeat <= 0 uses 30s.
func NewDutyStreamHandler(eventBus providers.EventBus, heartbeat time.Duration) *DutyStreamHandler {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &DutyStreamHandler{eventBus: eventBus, heartbeat: heartbeat}
}

// StreamAll streams the refresh events of every city
// GET /api/stream/duty
func (h *DutyStreamHandler) StreamAll(w http.ResponseWriter, r *http.Request) {
	h.stream(w, r, providers.EventChannelDutyRefreshed, "")
}

// StreamCity streams the refresh events of one city
// GET /api/stream/duty/{city}
func (h *DutyStreamHandler) StreamCity(w http.ResponseWriter, r *http.Request) {
	city := r.PathValue("city")
	if city == "" {
		respondWithError(w, http.StatusBadRequest, "city is required")
		return
	}
	h.stream(w, r, providers.GetCityChannel(city), city)
}

// ClientCount returns the number of open streams
func (h *DutyStreamHandler) ClientCount() int {
	return int(h.clients.Load())
}

func (h *DutyStreamHandler) stream(w http.ResponseWriter, r *http.Request, channel, city string) {
	logger := observability.LoggerFromContext(r.Context())
	rc := http.NewResponseController(w)

	events, err := h.eventBus.Subscribe(r.Context(), channel)
	if err != nil {
		logger.Error().Err(err).Str("channel", channel).Msg("failed to subscribe to roster events")
		respondWithError(w, http.StatusServiceUnavailable, "event stream unavailable")
		return
	}

	// streams outlive the server write timeout
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	h.clients.Add(1)
	defer h.clients.Add(-1)

	if err := h.send(w, rc, "connected", map[string]any{"city": city, "timestamp": time.Now().UTC()}); err != nil {
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			logger.Debug().Str("channel", channel).Msg("stream client disconnected")
			return
		case <-ticker.C:
			if err := h.send(w, rc, "heartbeat", map[string]any{"timestamp": time.Now().UTC()}); err != nil {
				return
			}
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := h.send(w, rc, "roster_refreshed", event); err != nil {
				return
			}
		}
	}
}

func (h *DutyStreamHandler) send(w http.ResponseWriter, rc *http.ResponseController, eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, payload); err != nil {
		return err
	}
	return rc.Flush()
}
