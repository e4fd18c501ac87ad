package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"videosafety-worker/internal/models"
	"videosafety-worker/internal/storage/archive"
	"videosafety-worker/internal/textutil"
)

var (
	ErrInvalidVideoURL = errors.New("video_url is not a recognizable YouTube link")
	ErrNotRetryable    = errors.New("only failed reports can be retried")
)

// MaxListLimit bounds List requests.
const MaxListLimit = 500

// ReportService backs the HTTP API: creating, reading, listing and retrying reports.
type ReportService struct {
	store   ReportStore
	archive RawArchive
	logger  logrus.FieldLogger
}

// NewReportService builds the service. raw may be nil when archiving is disabled.
func NewReportService(store ReportStore, raw RawArchive, logger logrus.FieldLogger) *ReportService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ReportService{store: store, archive: raw, logger: logger}
}

// Create queues a new analysis for videoURL.
func (s *ReportService) Create(ctx context.Context, videoURL string) (*models.Report, error) {
	if _, ok := textutil.ExtractVideoID(videoURL); !ok {
		return nil, ErrInvalidVideoURL
	}
	r, err := s.store.Insert(ctx, videoURL)
	if err != nil {
		return nil, err
	}
	s.logger.WithFields(logrus.Fields{"report_id": r.ID, "video_url": videoURL}).Info("[ReportService] report queued")
	return r, nil
}

func (s *ReportService) Get(ctx context.Context, id string) (*models.Report, error) {
	return s.store.GetByID(ctx, id)
}

// List returns the newest reports. An empty status matches all of them.
func (s *ReportService) List(ctx context.Context, status models.ReportStatus, limit int) ([]models.Report, error) {
	if status != "" && !status.Valid() {
		return nil, fmt.Errorf("unknown status %q", status)
	}
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}
	return s.store.List(ctx, status, limit)
}

// Retry puts a failed report back in the queue and drops any raw responses archived for it.
func (s *ReportService) Retry(ctx context.Context, id string) (*models.Report, error) {
	ok, err := s.store.Requeue(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ok {
		if _, gerr := s.store.GetByID(ctx, id); gerr != nil {
			return nil, gerr
		}
		return nil, ErrNotRetryable
	}
	if s.archive != nil {
		if err := s.archive.Delete(ctx, id); err != nil {
			s.logger.WithError(err).WithField("report_id", id).Warn("[ReportService] could not clear raw responses")
		}
	}
	s.logger.WithField("report_id", id).Info("[ReportService] report requeued")
	return s.store.GetByID(ctx, id)
}

// RawResponses returns what was archived for a report. Without an archive the list is empty.
func (s *ReportService) RawResponses(ctx context.Context, id string) ([]archive.Entry, error) {
	if _, err := s.store.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if s.archive == nil {
		return []archive.Entry{}, nil
	}
	return s.archive.Load(ctx, id)
}
