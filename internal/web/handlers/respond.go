package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"videosafety-worker/internal/models"
	"videosafety-worker/internal/services"
)

type errorBody struct {
	Error string `json:"error"`
}

func respondJSON(w http.ResponseWriter, logger logrus.FieldLogger, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.WithError(err).Warn("[Web] failed to encode response")
	}
}

func respondError(w http.ResponseWriter, logger logrus.FieldLogger, code int, msg string) {
	respondJSON(w, logger, code, errorBody{Error: msg})
}

// respondServiceError maps service errors to status codes. Unknown errors are logged and hidden.
func respondServiceError(w http.ResponseWriter, logger logrus.FieldLogger, err error) {
	switch {
	case errors.Is(err, models.ErrReportNotFound):
		respondError(w, logger, http.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrInvalidVideoURL):
		respondError(w, logger, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrNotRetryable):
		respondError(w, logger, http.StatusConflict, err.Error())
	default:
		logger.WithError(err).Error("[Web] request failed")
		respondError(w, logger, http.StatusInternalServerError, "internal error")
	}
}
