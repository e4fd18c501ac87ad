package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"videosafety-worker/internal/analysis"
	"videosafety-worker/internal/config"
	"videosafety-worker/internal/models"
	"videosafety-worker/internal/textutil"
)

// StaleResetMessage is written to reports returned to pending by the stale sweep.
const StaleResetMessage = "Reset: was stuck in processing for >30 min"

// ErrAlreadyRunning is returned by Run while another run of the same service is in flight.
var ErrAlreadyRunning = errors.New("a processing run is already in progress")

// AnalyzeService polls the reports table, claims pending jobs and drives them to a terminal status.
type AnalyzeService struct {
	store    ReportStore
	analyzer VideoAnalyzer
	metadata MetadataLookup
	cfg      config.PollerConfig
	logger   logrus.FieldLogger

	running atomic.Bool
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewAnalyzeService wires the poller. metadata may be nil, in which case every video is
// analyzed in a single call.
func NewAnalyzeService(
	store ReportStore,
	analyzer VideoAnalyzer,
	metadata MetadataLookup,
	cfg config.PollerConfig,
	logger logrus.FieldLogger,
) (*AnalyzeService, error) {
	if store == nil {
		return nil, errors.New("AnalyzeService: report store must not be nil")
	}
	if analyzer == nil {
		return nil, errors.New("AnalyzeService: analyzer must not be nil")
	}
	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("AnalyzeService: batch size must be positive, got %d", cfg.BatchSize)
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if metadata == nil {
		logger.Warn("[AnalyzeService] no metadata lookup configured, all videos will be analyzed in one call")
	}
	return &AnalyzeService{
		store:    store,
		analyzer: analyzer,
		metadata: metadata,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		sleep:    pause,
	}, nil
}

// Run is ProcessPending guarded so that one service instance never overlaps itself.
func (s *AnalyzeService) Run(ctx context.Context) (int, error) {
	if !s.running.CompareAndSwap(false, true) {
		return 0, ErrAlreadyRunning
	}
	defer s.running.Store(false)
	return s.ProcessPending(ctx)
}

// Start launches Run in the background and reports whether it did. It returns false when a run
// is already in progress.
func (s *AnalyzeService) Start(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		return false
	}
	go func() {
		defer s.running.Store(false)
		n, err := s.ProcessPending(ctx)
		if err != nil {
			s.logger.WithError(err).WithField("processed", n).Error("[AnalyzeService] triggered run failed")
			return
		}
		s.logger.WithField("processed", n).Info("[AnalyzeService] triggered run finished")
	}()
	return true
}

// Running reports whether a run is in flight.
func (s *AnalyzeService) Running() bool {
	return s.running.Load()
}

// ProcessPending performs one poll: it returns stuck jobs to pending, then claims and analyzes
// pending jobs one at a time. The count is the number of jobs this call claimed.
func (s *AnalyzeService) ProcessPending(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.cfg.StaleAfter)
	reset, err := s.store.ResetStale(ctx, cutoff, StaleResetMessage)
	if err != nil {
		return 0, fmt.Errorf("reset stale jobs: %w", err)
	}
	if reset > 0 {
		s.logger.WithField("count", reset).Warn("[AnalyzeService] returned stuck jobs to pending")
	}

	pending, err := s.store.ListPending(ctx, s.cfg.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list pending jobs: %w", err)
	}
	if len(pending) == 0 {
		s.logger.Debug("[AnalyzeService] nothing pending")
		return 0, nil
	}
	s.logger.WithField("count", len(pending)).Info("[AnalyzeService] pending jobs found")

	processed := 0
	for _, report := range pending {
		if processed > 0 {
			if err := s.sleep(ctx, s.cfg.PauseBetweenJobs); err != nil {
				return processed, err
			}
		}
		if err := ctx.Err(); err != nil {
			return processed, err
		}

		claimed, err := s.store.Claim(ctx, report.ID)
		if err != nil {
			s.logger.WithError(err).WithField("report_id", report.ID).Error("[AnalyzeService] claim failed")
			continue
		}
		if !claimed {
			s.logger.WithField("report_id", report.ID).Debug("[AnalyzeService] job already claimed by another worker")
			continue
		}
		processed++
		s.process(ctx, report)
	}
	s.logger.WithField("processed", processed).Info("[AnalyzeService] poll finished")
	return processed, nil
}

// process runs a claimed job to completion or failure. Errors end up on the report, never here.
func (s *AnalyzeService) process(ctx context.Context, report models.Report) {
	log := s.logger.WithFields(logrus.Fields{"report_id": report.ID, "video_url": report.VideoURL})
	start := s.now()
	log.Info("[AnalyzeService] processing job")

	title, duration := s.describe(ctx, report, log)
	if err := s.store.UpdateTitle(ctx, report.ID, title); err != nil {
		log.WithError(err).Warn("[AnalyzeService] could not store video title")
	}

	result, err := s.analyzer.Analyze(ctx, analysis.Job{
		ReportID:        report.ID,
		VideoURL:        report.VideoURL,
		DurationSeconds: duration,
	})
	if err != nil {
		if ctx.Err() != nil {
			// Shutting down: leave the row in processing so the stale sweep hands it back.
			log.WithError(err).Warn("[AnalyzeService] job interrupted")
			return
		}
		msg := analysis.UserMessage(err)
		log.WithError(err).WithField("user_message", msg).Error("[AnalyzeService] analysis failed")
		ok, ferr := s.store.Fail(ctx, report.ID, msg)
		switch {
		case ferr != nil:
			log.WithError(ferr).Error("[AnalyzeService] could not record failure")
		case !ok:
			log.Warn("[AnalyzeService] job left processing before failure was recorded")
		}
		return
	}

	ok, err := s.store.Complete(ctx, report.ID, result)
	switch {
	case err != nil:
		log.WithError(err).Error("[AnalyzeService] could not store result")
	case !ok:
		log.Warn("[AnalyzeService] job left processing before result was stored")
	default:
		log.WithFields(logrus.Fields{
			"safety_score": result.SafetyScore,
			"mode":         string(result.AnalysisMode),
			"elapsed":      s.now().Sub(start).Round(time.Millisecond).String(),
		}).Info("[AnalyzeService] job completed")
	}
}

// describe resolves the display title and duration. Duration 0 means unknown.
func (s *AnalyzeService) describe(ctx context.Context, report models.Report, log logrus.FieldLogger) (string, int) {
	videoID, ok := textutil.ExtractVideoID(report.VideoURL)
	if !ok {
		log.Warn("[AnalyzeService] could not extract a video id")
		return "YouTube Video", 0
	}
	title := fmt.Sprintf("YouTube Video (%s)", videoID)
	if s.metadata == nil {
		return title, 0
	}
	meta, err := s.metadata.Lookup(ctx, videoID)
	if err != nil {
		log.WithError(err).Warn("[AnalyzeService] metadata lookup failed, analyzing without duration")
		return title, 0
	}
	if meta == nil {
		log.WithField("video_id", videoID).Warn("[AnalyzeService] video metadata unavailable")
		return title, 0
	}
	if meta.Title != "" {
		title = meta.Title
	}
	return title, meta.DurationSeconds
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
