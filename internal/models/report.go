package models

import (
	"encoding/json"
	"errors"
	"time"
)

// ReportStatus is the lifecycle state of a report row.
type ReportStatus string

const (
	StatusPending    ReportStatus = "pending"    // waiting for a worker to claim it
	StatusProcessing ReportStatus = "processing" // claimed, analysis in flight
	StatusCompleted  ReportStatus = "completed"
	StatusFailed     ReportStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s ReportStatus) Valid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Terminal reports whether no worker will touch the report again without an external retry.
func (s ReportStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

var (
	// ErrReportNotFound is returned by stores when no row matches the id.
	ErrReportNotFound = errors.New("report not found")
)

// Report maps to the reports table. One row per requested video analysis.
type Report struct {
	ID                string          `json:"id"`
	VideoURL          string          `json:"video_url"`
	Status            ReportStatus    `json:"status"`
	VideoTitle        JsonNullString  `json:"video_title"`
	SafetyScore       JsonNullInt64   `json:"safety_score"`
	ViolenceScore     JsonNullInt64   `json:"violence_score"`
	NSFWScore         JsonNullInt64   `json:"nsfw_score"`
	ScaryScore        JsonNullInt64   `json:"scary_score"`
	ProfanityDetected JsonNullBool    `json:"profanity_detected"`
	AnalysisResult    json.RawMessage `json:"analysis_result"`
	ErrorMessage      JsonNullString  `json:"error_message"`
	AnalyzedAt        JsonNullTime    `json:"analyzed_at"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Result decodes the stored analysis blob. It returns nil when the report has none.
func (r *Report) Result() (*AnalysisResult, error) {
	if len(r.AnalysisResult) == 0 || string(r.AnalysisResult) == "null" {
		return nil, nil
	}
	var res AnalysisResult
	if err := json.Unmarshal(r.AnalysisResult, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// VideoMetadata is what the metadata lookup knows about a video.
type VideoMetadata struct {
	VideoID         string `json:"video_id"`
	Title           string `json:"title"`
	DurationSeconds int    `json:"duration_seconds"`
}
