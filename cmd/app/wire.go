package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"videosafety-worker/internal/analysis"
	"videosafety-worker/internal/clients/gemini"
	"videosafety-worker/internal/clients/youtube"
	"videosafety-worker/internal/models"
	"videosafety-worker/internal/retry"
	"videosafety-worker/internal/services"
	"videosafety-worker/internal/storage/archive"
	"videosafety-worker/internal/storage/cache"
	"videosafety-worker/internal/storage/sqlstore"
)

// runtime is the wired application. close releases everything in reverse order.
type runtime struct {
	store   *sqlstore.Store
	analyze *services.AnalyzeService
	reports *services.ReportService
	closers []func() error
}

func (r *runtime) close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i]())
	}
	return errors.Join(errs...)
}

// build connects the store, the optional cache and metadata lookup, the model client and the
// services.
func (a *app) build(ctx context.Context) (rt *runtime, err error) {
	cfg, logger := a.cfg, a.logger
	rt = &runtime{}
	defer func() {
		if err != nil {
			_ = rt.close()
			rt = nil
		}
	}()

	store, err := sqlstore.Open(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}
	rt.store = store
	rt.closers = append(rt.closers, store.Close)

	var rc *redis.Client
	if cfg.Redis.Addr != "" {
		rc, err = cache.NewClient(ctx, cache.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err != nil {
			// The cache only saves API quota; run without it.
			logger.WithError(err).Warn("[App] redis unavailable, metadata cache disabled")
			rc = nil
		} else {
			rt.closers = append(rt.closers, rc.Close)
			logger.WithField("addr", cfg.Redis.Addr).Info("[App] metadata cache enabled")
		}
	}

	var metadata services.MetadataLookup
	if cfg.YouTubeClient.APIKey != "" {
		yc, err := youtube.NewClient(ctx, youtube.Config{
			APIKey:   cfg.YouTubeClient.APIKey,
			Endpoint: cfg.YouTubeClient.BaseURL,
			Timeout:  cfg.YouTubeClient.Timeout,
		}, cache.NewJSON[models.VideoMetadata](rc, "video-metadata", cfg.Redis.MetadataTTL), logger)
		if err != nil {
			return nil, err
		}
		metadata = yc
	}

	gc, err := gemini.NewClient(ctx, gemini.Config{
		APIKey:          cfg.GeminiClient.APIKey,
		ModelName:       cfg.GeminiClient.Model,
		Temperature:     cfg.GeminiClient.Temperature,
		MaxOutputTokens: cfg.GeminiClient.MaxOutputTokens,
		RequestTimeout:  cfg.GeminiClient.RequestTimeout,
	}, logger)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, gc.Close)

	raw, err := archive.NewFileSystemArchive(cfg.Archive, logger)
	if err != nil {
		return nil, err
	}
	opts := analysis.Options{
		Strategy: analysis.StrategyConfig{
			FullAnalysisCeiling: cfg.Analysis.FullAnalysisCeiling,
			SegmentLength:       cfg.Analysis.SegmentLength,
		},
		MaxConcurrentSegments: cfg.Analysis.MaxConcurrentSegments,
		Retry: retry.Policy{
			MaxAttempts: cfg.Retry.MaxAttempts,
			BaseDelay:   cfg.Retry.BaseDelay,
			Logger:      logger,
		},
		Logger: logger,
	}
	// A nil *FileSystemArchive must not become a non-nil interface.
	var rawArchive services.RawArchive
	if raw != nil {
		opts.Archive = raw
		rawArchive = raw
	}

	analyzer := analysis.NewAnalyzer(gc, opts)
	rt.analyze, err = services.NewAnalyzeService(store, analyzer, metadata, cfg.Poller, logger)
	if err != nil {
		return nil, fmt.Errorf("create analyze service: %w", err)
	}
	rt.reports = services.NewReportService(store, rawArchive, logger)
	return rt, nil
}
