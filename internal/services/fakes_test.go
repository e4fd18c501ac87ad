package services

import (
	"context"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"videosafety-worker/internal/analysis"
	"videosafety-worker/internal/models"
	"videosafety-worker/internal/storage/archive"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// memStore applies the same conditional transitions as the SQL store, under one mutex.
type memStore struct {
	mu      sync.Mutex
	reports map[string]*models.Report
	titles  map[string]string
	now     func() time.Time

	// listed, when set, is waited on by every ListPending so concurrent pollers see the same rows.
	listed *sync.WaitGroup
}

func newMemStore(now time.Time) *memStore {
	return &memStore{
		reports: map[string]*models.Report{},
		titles:  map[string]string{},
		now:     func() time.Time { return now },
	}
}

func (m *memStore) put(r models.Report) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports[r.ID] = &r
}

func (m *memStore) get(id string) models.Report {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.reports[id]
}

func (m *memStore) ListPending(_ context.Context, limit int) ([]models.Report, error) {
	out, _ := m.List(context.Background(), models.StatusPending, limit)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if m.listed != nil {
		m.listed.Done()
		m.listed.Wait()
	}
	return out, nil
}

func (m *memStore) List(_ context.Context, status models.ReportStatus, limit int) ([]models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Report
	for _, r := range m.reports {
		if status == "" || r.Status == status {
			out = append(out, *r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok {
		return nil, models.ErrReportNotFound
	}
	cp := *r
	return &cp, nil
}

func (m *memStore) Insert(_ context.Context, videoURL string) (*models.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := &models.Report{
		ID:        "report-" + string(rune('a'+len(m.reports))),
		VideoURL:  videoURL,
		Status:    models.StatusPending,
		CreatedAt: m.now(),
		UpdatedAt: m.now(),
	}
	m.reports[r.ID] = r
	cp := *r
	return &cp, nil
}

func (m *memStore) transition(id string, from, to models.ReportStatus, apply func(r *models.Report)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.reports[id]
	if !ok || r.Status != from {
		return false
	}
	r.Status = to
	r.UpdatedAt = m.now()
	if apply != nil {
		apply(r)
	}
	return true
}

func (m *memStore) Claim(_ context.Context, id string) (bool, error) {
	return m.transition(id, models.StatusPending, models.StatusProcessing, nil), nil
}

func (m *memStore) ResetStale(_ context.Context, cutoff time.Time, message string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, r := range m.reports {
		if r.Status == models.StatusProcessing && r.UpdatedAt.Before(cutoff) {
			r.Status = models.StatusPending
			r.ErrorMessage = models.NewJsonNullString(message)
			r.UpdatedAt = m.now()
			n++
		}
	}
	return n, nil
}

func (m *memStore) UpdateTitle(_ context.Context, id, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.titles[id] = title
	return nil
}

func (m *memStore) Complete(_ context.Context, id string, result *models.AnalysisResult) (bool, error) {
	return m.transition(id, models.StatusProcessing, models.StatusCompleted, func(r *models.Report) {
		r.SafetyScore = models.JsonNullInt64{}
		r.SafetyScore.Int64, r.SafetyScore.Valid = int64(result.SafetyScore), true
		r.ViolenceScore = models.JsonNullInt64{}
		r.ViolenceScore.Int64, r.ViolenceScore.Valid = int64(result.ViolenceScore), true
		r.ErrorMessage = models.JsonNullString{}
	}), nil
}

func (m *memStore) Fail(_ context.Context, id, message string) (bool, error) {
	return m.transition(id, models.StatusProcessing, models.StatusFailed, func(r *models.Report) {
		r.ErrorMessage = models.NewJsonNullString(message)
	}), nil
}

func (m *memStore) Requeue(_ context.Context, id string) (bool, error) {
	return m.transition(id, models.StatusFailed, models.StatusPending, func(r *models.Report) {
		r.ErrorMessage = models.JsonNullString{}
	}), nil
}

type stubAnalyzer struct {
	mu     sync.Mutex
	jobs   []analysis.Job
	result *models.AnalysisResult
	err    error
}

func (a *stubAnalyzer) Analyze(_ context.Context, job analysis.Job) (*models.AnalysisResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.jobs = append(a.jobs, job)
	if a.err != nil {
		return nil, a.err
	}
	res := *a.result
	return &res, nil
}

type stubMetadata struct {
	meta *models.VideoMetadata
	err  error
}

func (s stubMetadata) Lookup(context.Context, string) (*models.VideoMetadata, error) {
	return s.meta, s.err
}

type memArchive struct {
	entries map[string][]archive.Entry
	deleted []string
}

func (a *memArchive) Load(_ context.Context, id string) ([]archive.Entry, error) {
	if e, ok := a.entries[id]; ok {
		return e, nil
	}
	return []archive.Entry{}, nil
}

func (a *memArchive) Delete(_ context.Context, id string) error {
	a.deleted = append(a.deleted, id)
	delete(a.entries, id)
	return nil
}
