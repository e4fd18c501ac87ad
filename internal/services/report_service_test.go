package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videosafety-worker/internal/models"
	"videosafety-worker/internal/storage/archive"
)

func TestReportServiceCreate(t *testing.T) {
	store := newMemStore(testNow)
	s := NewReportService(store, nil, quietLogger())

	r, err := s.Create(context.Background(), "https://youtu.be/dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, r.Status)

	_, err = s.Create(context.Background(), "https://example.com/video")
	assert.ErrorIs(t, err, ErrInvalidVideoURL)
}

func TestReportServiceRetry(t *testing.T) {
	store := newMemStore(testNow)
	failed := pendingReport("failed", time.Minute)
	failed.Status = models.StatusFailed
	failed.ErrorMessage = models.NewJsonNullString("boom")
	store.put(failed)
	store.put(pendingReport("pending", time.Minute))

	raw := &memArchive{entries: map[string][]archive.Entry{"failed": {{Segment: 0, Text: "garbage"}}}}
	s := NewReportService(store, raw, quietLogger())
	ctx := context.Background()

	r, err := s.Retry(ctx, "failed")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, r.Status)
	assert.False(t, r.ErrorMessage.Valid)
	assert.Equal(t, []string{"failed"}, raw.deleted)

	_, err = s.Retry(ctx, "pending")
	assert.ErrorIs(t, err, ErrNotRetryable)

	_, err = s.Retry(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrReportNotFound)
}

func TestReportServiceList(t *testing.T) {
	store := newMemStore(testNow)
	store.put(pendingReport("a", time.Hour))
	done := pendingReport("b", time.Minute)
	done.Status = models.StatusCompleted
	store.put(done)
	s := NewReportService(store, nil, quietLogger())

	all, err := s.List(context.Background(), "", 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].ID)

	completed, err := s.List(context.Background(), models.StatusCompleted, 10)
	require.NoError(t, err)
	require.Len(t, completed, 1)

	_, err = s.List(context.Background(), "bogus", 10)
	assert.Error(t, err)
}

func TestReportServiceRawResponses(t *testing.T) {
	store := newMemStore(testNow)
	store.put(pendingReport("r1", time.Minute))

	none, err := NewReportService(store, nil, quietLogger()).RawResponses(context.Background(), "r1")
	require.NoError(t, err)
	assert.Empty(t, none)

	raw := &memArchive{entries: map[string][]archive.Entry{"r1": {{Segment: 2, Text: "{oops"}}}}
	got, err := NewReportService(store, raw, quietLogger()).RawResponses(context.Background(), "r1")
	require.NoError(t, err)
	assert.Equal(t, []archive.Entry{{Segment: 2, Text: "{oops"}}, got)

	_, err = NewReportService(store, raw, quietLogger()).RawResponses(context.Background(), "nope")
	assert.ErrorIs(t, err, models.ErrReportNotFound)
}
