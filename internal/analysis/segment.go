package analysis

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"videosafety-worker/internal/models"
	"videosafety-worker/internal/retry"
)

// ModelClient sends one multimodal request to the model.
type ModelClient interface {
	Generate(ctx context.Context, req models.GenerateRequest) (*models.RawResponse, error)
}

// Archiver keeps the raw text of responses that could not be read, for later inspection.
type Archiver interface {
	Save(ctx context.Context, reportID string, segment int, text string) error
}

// Job identifies the video being analyzed.
type Job struct {
	ReportID        string
	VideoURL        string
	DurationSeconds int
}

// caller issues model requests through the retry policy and normalizes the answers.
type caller struct {
	model   ModelClient
	policy  retry.Policy
	archive Archiver
	logger  logrus.FieldLogger
}

func (c *caller) call(ctx context.Context, job Job, segment int, req models.GenerateRequest) (models.ModelOutput, Source, error) {
	raw, err := retry.Do(ctx, c.policy, func(ctx context.Context) (*models.RawResponse, error) {
		return c.model.Generate(ctx, req)
	})
	if err != nil {
		return SafeDefault(), SourceDefault, err
	}

	out, src := Normalize(raw)
	log := c.logger.WithFields(logrus.Fields{"report_id": job.ReportID, "segment": segment, "source": src.String()})
	if src == SourceDefault {
		log.Warn("[Analyzer] response unreadable, using safe default")
		if c.archive != nil && raw != nil && raw.Text != "" {
			if aerr := c.archive.Save(ctx, job.ReportID, segment, raw.Text); aerr != nil {
				log.WithError(aerr).Warn("[Analyzer] failed to archive raw response")
			}
		}
	} else {
		log.Debug("[Analyzer] response parsed")
	}
	return out, src, nil
}

// SegmentResult is the outcome of one window of a segmented analysis.
type SegmentResult struct {
	Index  int
	Output models.ModelOutput
	Source Source
}

// SegmentAnalyzer analyzes a single window of a long video.
type SegmentAnalyzer struct {
	caller *caller
}

// Analyze asks the model about seg only. A permanent failure yields SafeDefault and no error.
// Errors that outlived the retry policy are returned alongside the default.
func (s *SegmentAnalyzer) Analyze(ctx context.Context, job Job, seg models.Segment, total int) (SegmentResult, error) {
	req := models.GenerateRequest{
		VideoURL: job.VideoURL,
		Window: &models.TimeWindow{
			Start: time.Duration(seg.StartSeconds) * time.Second,
			End:   time.Duration(seg.EndSeconds) * time.Second,
		},
		Prompt: SegmentPrompt(seg, total),
	}
	out, src, err := s.caller.call(ctx, job, seg.Index, req)
	if err != nil {
		if retry.IsRetryable(err) || isExhausted(err) {
			return SegmentResult{Index: seg.Index, Output: SafeDefault(), Source: SourceDefault}, err
		}
		s.caller.logger.WithError(err).WithFields(logrus.Fields{
			"report_id": job.ReportID,
			"segment":   seg.Index,
		}).Warn("[Analyzer] segment failed, using safe default")
		return SegmentResult{Index: seg.Index, Output: SafeDefault(), Source: SourceDefault}, nil
	}
	return SegmentResult{Index: seg.Index, Output: out, Source: src}, nil
}
