package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"videosafety-worker/internal/models"
	"videosafety-worker/internal/storage/archive"
)

// ReportAPI is the report service as seen by the HTTP layer.
type ReportAPI interface {
	Create(ctx context.Context, videoURL string) (*models.Report, error)
	Get(ctx context.Context, id string) (*models.Report, error)
	List(ctx context.Context, status models.ReportStatus, limit int) ([]models.Report, error)
	Retry(ctx context.Context, id string) (*models.Report, error)
	RawResponses(ctx context.Context, id string) ([]archive.Entry, error)
}

// ReportHandler serves /api/reports.
type ReportHandler struct {
	reports  ReportAPI
	validate *validator.Validate
	logger   logrus.FieldLogger
}

func NewReportHandler(reports ReportAPI, logger logrus.FieldLogger) *ReportHandler {
	return &ReportHandler{
		reports:  reports,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
}

type createReportRequest struct {
	VideoURL string `json:"video_url" validate:"required,url"`
}

// reportResponse adds the decoded result so clients need not parse analysis_result twice.
type reportResponse struct {
	*models.Report
	Result *models.AnalysisResult `json:"result,omitempty"`
}

func (h *ReportHandler) toResponse(r *models.Report) reportResponse {
	res, err := r.Result()
	if err != nil {
		h.logger.WithError(err).WithField("report_id", r.ID).Warn("[ReportHandler] stored result does not decode")
	}
	return reportResponse{Report: r, Result: res}
}

func (h *ReportHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "request body must be JSON with a video_url field")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, h.logger, http.StatusBadRequest, "video_url must be a URL")
		return
	}
	report, err := h.reports.Create(r.Context(), req.VideoURL)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	w.Header().Set("Location", "/api/reports/"+report.ID)
	respondJSON(w, h.logger, http.StatusCreated, report)
}

func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, h.toResponse(report))
}

// List accepts ?status= and ?limit=.
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	status := models.ReportStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		respondError(w, h.logger, http.StatusBadRequest, "unknown status "+strconv.Quote(string(status)))
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(w, h.logger, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	reports, err := h.reports.List(r.Context(), status, limit)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	out := make([]reportResponse, 0, len(reports))
	for i := range reports {
		out = append(out, h.toResponse(&reports[i]))
	}
	respondJSON(w, h.logger, http.StatusOK, out)
}

func (h *ReportHandler) Retry(w http.ResponseWriter, r *http.Request) {
	report, err := h.reports.Retry(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, report)
}

// Raw lists the model responses archived for a report.
func (h *ReportHandler) Raw(w http.ResponseWriter, r *http.Request) {
	entries, err := h.reports.RawResponses(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, h.logger, http.StatusOK, entries)
}
