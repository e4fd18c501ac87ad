// Package analysis turns a video URL into a child-safety report. Short videos are sent to the
// model in one call; long ones are split into windows analyzed in parallel and merged.
package analysis

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"videosafety-worker/internal/models"
	"videosafety-worker/internal/retry"
)

// Options configures an Analyzer. Zero values fall back to the defaults.
type Options struct {
	Strategy              StrategyConfig
	MaxConcurrentSegments int
	Retry                 retry.Policy
	Archive               Archiver
	Logger                logrus.FieldLogger
}

// Analyzer picks a strategy for each job and produces its AnalysisResult.
type Analyzer struct {
	caller     *caller
	strategy   StrategyConfig
	dispatcher *Dispatcher
	logger     logrus.FieldLogger
}

func NewAnalyzer(model ModelClient, opts Options) *Analyzer {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if opts.Strategy.FullAnalysisCeiling <= 0 || opts.Strategy.SegmentLength <= 0 {
		opts.Strategy = DefaultStrategyConfig()
	}
	if opts.MaxConcurrentSegments <= 0 {
		opts.MaxConcurrentSegments = DefaultMaxConcurrentSegments
	}
	if opts.Retry.MaxAttempts <= 0 {
		def := retry.DefaultPolicy()
		opts.Retry.MaxAttempts, opts.Retry.BaseDelay = def.MaxAttempts, def.BaseDelay
	}
	if opts.Retry.Logger == nil {
		opts.Retry.Logger = logger
	}

	c := &caller{model: model, policy: opts.Retry, archive: opts.Archive, logger: logger}
	return &Analyzer{
		caller:   c,
		strategy: opts.Strategy,
		dispatcher: &Dispatcher{
			runner: &SegmentAnalyzer{caller: c},
			limit:  opts.MaxConcurrentSegments,
			logger: logger,
		},
		logger: logger,
	}
}

// Analyze runs the full pipeline for job. The returned error is meant for UserMessage.
func (a *Analyzer) Analyze(ctx context.Context, job Job) (*models.AnalysisResult, error) {
	plan := Plan(job.DurationSeconds, a.strategy)
	log := a.logger.WithFields(logrus.Fields{
		"report_id": job.ReportID,
		"mode":      string(plan.Mode),
		"duration":  job.DurationSeconds,
	})

	var res models.AnalysisResult
	switch plan.Mode {
	case models.ModeSegmented:
		log.Infof("[Analyzer] long video, analyzing %d segments", len(plan.Segments))
		outputs, err := a.dispatcher.Run(ctx, job, plan.Segments)
		if err != nil {
			return nil, fmt.Errorf("segmented analysis: %w", err)
		}
		res = Merge(outputs)
	default:
		log.Info("[Analyzer] analyzing full video")
		out, err := a.direct(ctx, job)
		if err != nil {
			return nil, fmt.Errorf("direct analysis: %w", err)
		}
		res = Direct(out)
	}

	res = withAge(res)
	res.DurationSeconds = max(job.DurationSeconds, 0)
	log.WithFields(logrus.Fields{
		"safety": res.SafetyScore,
		"age":    res.AgeRecommendation,
	}).Info("[Analyzer] analysis complete")
	return &res, nil
}

func (a *Analyzer) direct(ctx context.Context, job Job) (models.ModelOutput, error) {
	req := models.GenerateRequest{VideoURL: job.VideoURL, Prompt: FullVideoPrompt()}
	out, _, err := a.caller.call(ctx, job, 0, req)
	if err == nil {
		return out, nil
	}
	if fatal(err) {
		return models.ModelOutput{}, err
	}
	a.logger.WithError(err).WithField("report_id", job.ReportID).
		Warn("[Analyzer] model call failed, using safe default")
	return SafeDefault(), nil
}

func isExhausted(err error) bool {
	var exhausted *retry.ExhaustedError
	return errors.As(err, &exhausted)
}
