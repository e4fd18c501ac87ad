package analysis

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"videosafety-worker/internal/models"
)

// DefaultMaxConcurrentSegments caps in-flight model calls per job.
const DefaultMaxConcurrentSegments = 5

type segmentRunner interface {
	Analyze(ctx context.Context, job Job, seg models.Segment, total int) (SegmentResult, error)
}

// Dispatcher runs every segment of a job with bounded parallelism.
type Dispatcher struct {
	runner segmentRunner
	limit  int
	logger logrus.FieldLogger
}

// Run analyzes all segments and returns their outputs in segment order. A segment that errors
// or panics contributes SafeDefault. Siblings are never cancelled; the only error returned is
// the context's, once every goroutine has finished.
func (d *Dispatcher) Run(ctx context.Context, job Job, segments []models.Segment) ([]models.ModelOutput, error) {
	outputs := make([]models.ModelOutput, len(segments))
	failed := make([]bool, len(segments))

	var g errgroup.Group
	g.SetLimit(max(d.limit, 1))
	for i, seg := range segments {
		i, seg := i, seg
		g.Go(func() error {
			outputs[i] = SafeDefault()
			defer func() {
				if r := recover(); r != nil {
					outputs[i] = SafeDefault()
					failed[i] = true
					d.logger.WithFields(logrus.Fields{
						"report_id": job.ReportID,
						"segment":   seg.Index,
						"panic":     fmt.Sprint(r),
					}).Error("[Dispatcher] segment panicked")
				}
			}()

			log := d.logger.WithFields(logrus.Fields{
				"report_id": job.ReportID,
				"segment":   seg.Index,
				"window":    fmt.Sprintf("%ds-%ds", seg.StartSeconds, seg.EndSeconds),
			})
			log.Infof("[Dispatcher] analyzing segment %d/%d", seg.Index+1, len(segments))
			res, aerr := d.runner.Analyze(ctx, job, seg, len(segments))
			if aerr != nil {
				failed[i] = true
				log.WithError(aerr).Error("[Dispatcher] segment failed")
				return nil
			}
			outputs[i] = res.Output
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := 0
	for _, f := range failed {
		if f {
			n++
		}
	}
	if n > 0 {
		d.logger.WithFields(logrus.Fields{"report_id": job.ReportID, "failed": n, "total": len(segments)}).
			Warn("[Dispatcher] some segments fell back to the safe default")
	}
	return outputs, nil
}
