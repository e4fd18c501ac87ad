package services

import (
	"context"
	"time"

	"videosafety-worker/internal/analysis"
	"videosafety-worker/internal/models"
	"videosafety-worker/internal/storage/archive"
)

// ReportStore is the persistence the services need. Claim, Complete, Fail, Requeue and
// ResetStale are conditional writes; a false result means another worker changed the row first.
type ReportStore interface {
	ListPending(ctx context.Context, limit int) ([]models.Report, error)
	List(ctx context.Context, status models.ReportStatus, limit int) ([]models.Report, error)
	GetByID(ctx context.Context, id string) (*models.Report, error)
	Insert(ctx context.Context, videoURL string) (*models.Report, error)
	Claim(ctx context.Context, id string) (bool, error)
	ResetStale(ctx context.Context, cutoff time.Time, message string) (int64, error)
	UpdateTitle(ctx context.Context, id, title string) error
	Complete(ctx context.Context, id string, result *models.AnalysisResult) (bool, error)
	Fail(ctx context.Context, id, message string) (bool, error)
	Requeue(ctx context.Context, id string) (bool, error)
}

// MetadataLookup fetches title and duration. A nil result with a nil error means the video
// could not be found.
type MetadataLookup interface {
	Lookup(ctx context.Context, videoID string) (*models.VideoMetadata, error)
}

// VideoAnalyzer produces the report for one claimed job.
type VideoAnalyzer interface {
	Analyze(ctx context.Context, job analysis.Job) (*models.AnalysisResult, error)
}

// RawArchive exposes the raw responses kept for reports that fell back to default values.
type RawArchive interface {
	Load(ctx context.Context, reportID string) ([]archive.Entry, error)
	Delete(ctx context.Context, reportID string) error
}
