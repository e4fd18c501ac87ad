package analysis

import (
	"time"

	"videosafety-worker/internal/models"
)

// StrategyConfig holds the duration thresholds that decide between one call and many.
type StrategyConfig struct {
	// FullAnalysisCeiling is the longest video analyzed in a single call (inclusive).
	FullAnalysisCeiling time.Duration
	// SegmentLength is the window each segmented call covers.
	SegmentLength time.Duration
}

// DefaultStrategyConfig analyzes up to 30 minutes at once and splits anything longer into 20 minute windows.
func DefaultStrategyConfig() StrategyConfig {
	return StrategyConfig{
		FullAnalysisCeiling: 30 * time.Minute,
		SegmentLength:       20 * time.Minute,
	}
}

// Strategy is the plan for one video.
type Strategy struct {
	Mode     models.AnalysisMode
	Segments []models.Segment
}

// Plan picks the analysis strategy for a video of the given length. Unknown durations (<= 0)
// are analyzed directly.
func Plan(durationSeconds int, cfg StrategyConfig) Strategy {
	ceiling := int(cfg.FullAnalysisCeiling / time.Second)
	length := int(cfg.SegmentLength / time.Second)
	if durationSeconds <= 0 || durationSeconds <= ceiling || length <= 0 {
		return Strategy{Mode: models.ModeDirect}
	}

	n := durationSeconds/length + 1
	segments := make([]models.Segment, 0, n)
	for i := 0; i < n; i++ {
		start := i * length
		end := min((i+1)*length, durationSeconds)
		segments = append(segments, models.Segment{Index: i, StartSeconds: start, EndSeconds: end})
	}
	return Strategy{Mode: models.ModeSegmented, Segments: segments}
}
