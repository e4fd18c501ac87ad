package analysis

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videosafety-worker/internal/models"
	"videosafety-worker/internal/retry"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// fakeModel answers by window start; an unknown window gets the "direct" entry at key -1.
type fakeModel struct {
	mu        sync.Mutex
	responses map[int]*models.RawResponse
	errs      map[int]error
	calls     int
	requests  []models.GenerateRequest
}

func (f *fakeModel) Generate(_ context.Context, req models.GenerateRequest) (*models.RawResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.requests = append(f.requests, req)
	key := -1
	if req.Window != nil {
		key = int(req.Window.Start / time.Second)
	}
	if err := f.errs[key]; err != nil {
		return nil, err
	}
	if resp, ok := f.responses[key]; ok {
		return resp, nil
	}
	return &models.RawResponse{Text: "no answer"}, nil
}

type fakeArchive struct {
	mu    sync.Mutex
	saved map[int]string
}

func (a *fakeArchive) Save(_ context.Context, _ string, segment int, text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.saved == nil {
		a.saved = map[int]string{}
	}
	a.saved[segment] = text
	return nil
}

func newTestAnalyzer(model ModelClient, archive Archiver) *Analyzer {
	return NewAnalyzer(model, Options{
		Retry:   retry.Policy{MaxAttempts: 4, BaseDelay: 0},
		Archive: archive,
		Logger:  quietLogger(),
	})
}

func parsed(safety, violence int) *models.RawResponse {
	return &models.RawResponse{Parsed: &models.ModelOutput{
		SafetyScore:   safety,
		ViolenceScore: violence,
		Summary:       "A long documentary about volcanoes.",
	}}
}

func TestAnalyzeFiftyMinuteVideo(t *testing.T) {
	model := &fakeModel{responses: map[int]*models.RawResponse{
		0:    parsed(80, 20),
		1200: parsed(60, 40),
		2400: parsed(90, 15),
	}}
	res, err := newTestAnalyzer(model, nil).Analyze(context.Background(), Job{
		ReportID: "r1", VideoURL: "https://youtu.be/dQw4w9WgXcQ", DurationSeconds: 3000,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, model.calls)
	assert.Equal(t, models.ModeSegmented, res.AnalysisMode)
	assert.Equal(t, 3, res.SegmentCount)
	assert.Equal(t, 40, res.ViolenceScore)
	assert.Equal(t, 76, res.SafetyScore)
	assert.Equal(t, 7, res.AgeRecommendation)
	assert.Equal(t, 3000, res.DurationSeconds)
	assert.Equal(t, models.SchemaVersion, res.SchemaVersion)

	for _, req := range model.requests {
		require.NotNil(t, req.Window)
		assert.Contains(t, req.Prompt, "START OF THE VIDEO")
	}
}

func TestAnalyzeDirect(t *testing.T) {
	model := &fakeModel{responses: map[int]*models.RawResponse{-1: {Text: `{
		"safety_score": 95, "violence_score": 0, "nsfw_score": 0, "scary_score": 0,
		"profanity_detected": false, "themes": ["educational"],
		"summary": "Counting songs for toddlers."}`}}}
	res, err := newTestAnalyzer(model, nil).Analyze(context.Background(), Job{ReportID: "r2", VideoURL: "u", DurationSeconds: 600})
	require.NoError(t, err)

	assert.Equal(t, models.ModeDirect, res.AnalysisMode)
	assert.Equal(t, 95, res.SafetyScore)
	assert.Equal(t, 3, res.AgeRecommendation)
	assert.Equal(t, "Counting songs for toddlers.", res.Summary)
	require.Len(t, model.requests, 1)
	assert.Nil(t, model.requests[0].Window)
}

func TestAnalyzeDirectUnknownDuration(t *testing.T) {
	model := &fakeModel{responses: map[int]*models.RawResponse{-1: parsed(70, 10)}}
	res, err := newTestAnalyzer(model, nil).Analyze(context.Background(), Job{ReportID: "r3", VideoURL: "u"})
	require.NoError(t, err)
	assert.Equal(t, models.ModeDirect, res.AnalysisMode)
	assert.Equal(t, 0, res.DurationSeconds)
}

func TestAnalyzeDirectExhaustedFailsJob(t *testing.T) {
	model := &fakeModel{errs: map[int]error{-1: errors.New("503 The model is overloaded")}}
	_, err := newTestAnalyzer(model, nil).Analyze(context.Background(), Job{ReportID: "r4", VideoURL: "u"})
	require.Error(t, err)

	assert.Equal(t, 4, model.calls)
	assert.Equal(t, MsgTechnical, UserMessage(err))
}

func TestAnalyzeDirectInputErrorFailsJob(t *testing.T) {
	model := &fakeModel{errs: map[int]error{-1: errors.New("400 video unavailable")}}
	_, err := newTestAnalyzer(model, nil).Analyze(context.Background(), Job{ReportID: "r5", VideoURL: "u"})
	require.Error(t, err)

	assert.Equal(t, 1, model.calls)
	assert.Equal(t, MsgUnavailable, UserMessage(err))
}

func TestAnalyzeDirectUnreadableFallsBackToDefault(t *testing.T) {
	archive := &fakeArchive{}
	model := &fakeModel{responses: map[int]*models.RawResponse{-1: {Text: "I cannot help with that."}}}
	res, err := newTestAnalyzer(model, archive).Analyze(context.Background(), Job{ReportID: "r6", VideoURL: "u"})
	require.NoError(t, err)

	assert.Equal(t, 50, res.SafetyScore)
	assert.Equal(t, defaultSummary, res.Summary)
	assert.Equal(t, "I cannot help with that.", archive.saved[0])
}

func TestAnalyzeDirectPermanentErrorFallsBackToDefault(t *testing.T) {
	model := &fakeModel{errs: map[int]error{-1: errors.New("invalid character 'x' looking for beginning of value")}}
	res, err := newTestAnalyzer(model, nil).Analyze(context.Background(), Job{ReportID: "r7", VideoURL: "u"})
	require.NoError(t, err)
	assert.Equal(t, 50, res.SafetyScore)
	assert.Equal(t, 1, model.calls)
}

func TestAnalyzeSegmentFailureIsIsolated(t *testing.T) {
	model := &fakeModel{
		responses: map[int]*models.RawResponse{0: parsed(80, 20), 2400: parsed(90, 15)},
		errs:      map[int]error{1200: errors.New("429 quota exceeded")},
	}
	res, err := newTestAnalyzer(model, nil).Analyze(context.Background(), Job{ReportID: "r8", VideoURL: "u", DurationSeconds: 3000})
	require.NoError(t, err)

	// 1 + 4 + 1 calls; the middle window falls back to safety 50
	assert.Equal(t, 6, model.calls)
	assert.Equal(t, (80+50+90)/3, res.SafetyScore)
	assert.Equal(t, 20, res.ViolenceScore)
}

type scriptedRunner struct {
	inFlight, peak atomic.Int32
	panicAt        int
	failAt         int
}

func (r *scriptedRunner) Analyze(_ context.Context, _ Job, seg models.Segment, _ int) (SegmentResult, error) {
	n := r.inFlight.Add(1)
	defer r.inFlight.Add(-1)
	for {
		p := r.peak.Load()
		if n <= p || r.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(5 * time.Millisecond)
	switch seg.Index {
	case r.panicAt:
		panic("boom")
	case r.failAt:
		return SegmentResult{}, errors.New("exhausted")
	}
	return SegmentResult{Index: seg.Index, Output: models.ModelOutput{SafetyScore: seg.Index}}, nil
}

func TestDispatcherBoundsParallelismAndFillsFailures(t *testing.T) {
	runner := &scriptedRunner{panicAt: 3, failAt: 7}
	d := &Dispatcher{runner: runner, limit: 5, logger: quietLogger()}

	plan := Plan(12*1200+10, DefaultStrategyConfig())
	outputs, err := d.Run(context.Background(), Job{ReportID: "r9"}, plan.Segments)
	require.NoError(t, err)
	require.Len(t, outputs, len(plan.Segments))

	assert.LessOrEqual(t, runner.peak.Load(), int32(5))
	for i, out := range outputs {
		switch i {
		case 3, 7:
			assert.Equal(t, SafeDefault(), out, "segment %d", i)
		default:
			assert.Equal(t, i, out.SafetyScore, "segment %d", i)
		}
	}
}

func TestDispatcherReportsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d := &Dispatcher{runner: &scriptedRunner{panicAt: -1, failAt: -1}, limit: 2, logger: quietLogger()}

	_, err := d.Run(ctx, Job{}, Plan(4000, DefaultStrategyConfig()).Segments)
	assert.ErrorIs(t, err, context.Canceled)
}
