package handlers

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"videosafety-worker/internal/models"
)

const exportLimit = 500

// ReportLister is the slice of the report service the export needs.
type ReportLister interface {
	List(ctx context.Context, status models.ReportStatus, limit int) ([]models.Report, error)
}

// ExportHandler writes reports as CSV, newest first. ?status= narrows the export.
type ExportHandler struct {
	reports ReportLister
	logger  logrus.FieldLogger
	now     func() time.Time
}

func NewExportHandler(reports ReportLister, logger logrus.FieldLogger) *ExportHandler {
	return &ExportHandler{reports: reports, logger: logger, now: time.Now}
}

var exportHeaders = []string{
	"id",
	"video_url",
	"status",
	"video_title",
	"safety_score",
	"violence_score",
	"nsfw_score",
	"scary_score",
	"profanity_detected",
	"age_recommendation",
	"analysis_mode",
	"themes",
	"error_message",
	"created_at",
	"analyzed_at",
}

func (h *ExportHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := models.ReportStatus(r.URL.Query().Get("status"))
	if status != "" && !status.Valid() {
		respondError(w, h.logger, http.StatusBadRequest, "unknown status "+strconv.Quote(string(status)))
		return
	}
	reports, err := h.reports.List(r.Context(), status, exportLimit)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	h.logger.WithField("rows", len(reports)).Info("[ExportHandler] exporting reports")

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=video_safety_reports_%s.csv", h.now().Format("2006-01-02")))

	if err := WriteReportsCSV(w, reports, h.logger); err != nil {
		h.logger.WithError(err).Error("[ExportHandler] failed to write CSV")
	}
}

// WriteReportsCSV writes a header line followed by one row per report.
func WriteReportsCSV(w io.Writer, reports []models.Report, logger logrus.FieldLogger) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(exportHeaders); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}
	for i := range reports {
		if err := writer.Write(reportRow(&reports[i], logger)); err != nil {
			return fmt.Errorf("write CSV row for report %s: %w", reports[i].ID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func reportRow(rep *models.Report, logger logrus.FieldLogger) []string {
	row := make([]string, len(exportHeaders))
	row[0] = rep.ID
	row[1] = rep.VideoURL
	row[2] = string(rep.Status)
	row[3] = rep.VideoTitle.String
	row[4] = nullInt(rep.SafetyScore)
	row[5] = nullInt(rep.ViolenceScore)
	row[6] = nullInt(rep.NSFWScore)
	row[7] = nullInt(rep.ScaryScore)
	if rep.ProfanityDetected.Valid {
		row[8] = strconv.FormatBool(rep.ProfanityDetected.Bool)
	}
	res, err := rep.Result()
	if err != nil {
		logger.WithError(err).WithField("report_id", rep.ID).Warn("[ExportHandler] stored result does not decode")
	}
	if res != nil {
		row[9] = strconv.Itoa(res.AgeRecommendation)
		row[10] = string(res.AnalysisMode)
		row[11] = strings.Join(res.Themes, "; ")
	}
	row[12] = rep.ErrorMessage.String
	row[13] = rep.CreatedAt.UTC().Format(time.RFC3339)
	if rep.AnalyzedAt.Valid {
		row[14] = rep.AnalyzedAt.Time.UTC().Format(time.RFC3339)
	}
	return row
}

func nullInt(v models.JsonNullInt64) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatInt(v.Int64, 10)
}
