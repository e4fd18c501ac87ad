package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullableColumnsJSON(t *testing.T) {
	var r Report
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "r1",
		"status": "completed",
		"video_title": "Volcanoes",
		"safety_score": 76,
		"nsfw_score": null,
		"profanity_detected": false,
		"analyzed_at": "2025-06-01T12:00:00Z"
	}`), &r))

	assert.Equal(t, "Volcanoes", r.VideoTitle.String)
	assert.True(t, r.SafetyScore.Valid)
	assert.EqualValues(t, 76, r.SafetyScore.Int64)
	assert.False(t, r.NSFWScore.Valid)
	assert.True(t, r.ProfanityDetected.Valid)
	assert.True(t, r.AnalyzedAt.Valid)
	assert.False(t, r.ErrorMessage.Valid)

	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"safety_score":76`)
	assert.Contains(t, string(out), `"nsfw_score":null`)
	assert.Contains(t, string(out), `"error_message":null`)
}

func TestTimedItemAcceptsStringOrObject(t *testing.T) {
	var items []TimedItem
	require.NoError(t, json.Unmarshal([]byte(`["Loud crash at 1:05", {"description": "Shouting", "timestamp": "2:10"}]`), &items))
	assert.Equal(t, []TimedItem{
		{Description: "Loud crash at 1:05"},
		{Description: "Shouting", Timestamp: "2:10"},
	}, items)
}

func TestReportResult(t *testing.T) {
	r := Report{}
	res, err := r.Result()
	require.NoError(t, err)
	assert.Nil(t, res)

	r.AnalysisResult = json.RawMessage(`{"schema_version":1,"safety_score":90}`)
	res, err = r.Result()
	require.NoError(t, err)
	assert.Equal(t, 90, res.SafetyScore)

	assert.True(t, StatusFailed.Terminal())
	assert.False(t, StatusProcessing.Terminal())
	assert.False(t, ReportStatus("archived").Valid())
}
