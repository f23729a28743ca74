package handlers_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pharmacyonduty/backend/internal/api/handlers"
)

func TestHealth(t *testing.T) {
	t.Run("all dependencies up", func(t *testing.T) {
		h := handlers.NewHealthHandler(map[string]handlers.HealthCheck{
			"postgres": func(context.Context) error { return nil },
			"redis":    func(context.Context) error { return nil },
		})

		w := httptest.NewRecorder()
		h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"status":"ok","components":{"postgres":"ok","redis":"ok"}}`, w.Body.String())
	})

	t.Run("a failing dependency degrades the service", func(t *testing.T) {
		h := handlers.NewHealthHandler(map[string]handlers.HealthCheck{
			"postgres": func(context.Context) error { return errors.New("connection refused") },
		})

		w := httptest.NewRecorder()
		h.Health(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.JSONEq(t, `{"status":"degraded","components":{"postgres":"connection refused"}}`, w.Body.String())
	})
}
