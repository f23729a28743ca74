package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/pharmacyonduty/backend/internal/infrastructure/observability"
	apperrors "github.com/pharmacyonduty/backend/pkg/errors"
)

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// respondWithAppError maps the error taxonomy to a status code. Internal
// details are logged, never returned.
func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	appErr, ok := apperrors.As(err)
	if !ok {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Msg("unclassified error")
		respondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	status := appErr.HTTPStatus()
	if status >= http.StatusInternalServerError {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Str("type", string(appErr.Type)).Msg("request failed")
	}
	message := appErr.Message
	if status == http.StatusInternalServerError {
		message = "internal server error"
	}
	if appErr.Type == apperrors.ErrorTypeUpstreamUnavailable {
		w.Header().Set("Retry-After", "30")
	}

	respondWithJSON(w, status, map[string]string{
		"error": message,
		"code":  string(appErr.Type),
	})
}
