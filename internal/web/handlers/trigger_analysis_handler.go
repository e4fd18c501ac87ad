package handlers

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"
)

// AnalyzeStarter launches a background processing run unless one is in flight.
type AnalyzeStarter interface {
	Start(ctx context.Context) bool
}

// TriggerAnalysisHandler runs the poller on demand. Runs are bound to the application context,
// not to the request.
type TriggerAnalysisHandler struct {
	ctx     context.Context
	starter AnalyzeStarter
	logger  logrus.FieldLogger
}

func NewTriggerAnalysisHandler(ctx context.Context, starter AnalyzeStarter, logger logrus.FieldLogger) *TriggerAnalysisHandler {
	return &TriggerAnalysisHandler{ctx: ctx, starter: starter, logger: logger}
}

func (h *TriggerAnalysisHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.starter.Start(h.ctx) {
		h.logger.Warn("[TriggerAnalysisHandler] run already in progress, rejecting trigger")
		respondError(w, h.logger, http.StatusConflict, "processing is already running, try again later")
		return
	}
	h.logger.WithField("remote_addr", r.RemoteAddr).Info("[TriggerAnalysisHandler] processing run triggered")
	respondJSON(w, h.logger, http.StatusAccepted, map[string]string{"message": "processing started in the background"})
}
