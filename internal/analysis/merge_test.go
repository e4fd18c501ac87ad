package analysis

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"videosafety-worker/internal/models"
)

func TestMergeEmpty(t *testing.T) {
	res := Merge(nil)
	assert.Equal(t, 50, res.SafetyScore)
	assert.Equal(t, "Analysis failed", res.Summary)
	assert.Equal(t, "No chunks analyzed", res.Explanation)
	assert.Equal(t, "Unable to provide recommendations", res.Recommendations)
	assert.Empty(t, res.Concerns)
	assert.NotNil(t, res.Concerns)
	assert.Empty(t, res.KeyMoments)
}

func TestMergeSingle(t *testing.T) {
	out := models.ModelOutput{
		SafetyScore: 64, ViolenceScore: 35, NSFWScore: 5, ScaryScore: 22, ProfanityDetected: true,
		Themes:   []string{"action", "animated"},
		Concerns: []models.TimedItem{{Description: "Robot fight with explosions", Timestamp: "3:20"}},
		Summary:  "Animated robots defend their city from invaders.",
	}
	res := Merge([]models.ModelOutput{out})

	assert.Equal(t, 64, res.SafetyScore)
	assert.Equal(t, 35, res.ViolenceScore)
	assert.Equal(t, 5, res.NSFWScore)
	assert.Equal(t, 22, res.ScaryScore)
	assert.True(t, res.ProfanityDetected)
	assert.Equal(t, []string{"action", "animated"}, res.Themes)
	assert.Equal(t, []string{"Robot fight with explosions at 3:20"}, res.Concerns)
	assert.Equal(t, out.Summary, res.Summary)
	assert.Equal(t, 1, res.SegmentCount)
	assert.Equal(t, models.ModeSegmented, res.AnalysisMode)
}

func TestMergeWorstCaseDominates(t *testing.T) {
	outs := []models.ModelOutput{
		{SafetyScore: 80, ViolenceScore: 10, ScaryScore: 40, Summary: "Video content analyzed"},
		{SafetyScore: 30, ViolenceScore: 90, NSFWScore: 15, ProfanityDetected: true},
		{SafetyScore: 91, ViolenceScore: 5},
	}
	res := Merge(outs)

	assert.Equal(t, 67, res.SafetyScore)
	assert.Equal(t, 90, res.ViolenceScore)
	assert.Equal(t, 15, res.NSFWScore)
	assert.Equal(t, 40, res.ScaryScore)
	assert.True(t, res.ProfanityDetected)
	assert.Equal(t, "Max violence: 90, NSFW: 15, Scary: 40", res.Explanation)
	assert.Equal(t, "Review all concerns carefully for long videos", res.Recommendations)
	assert.Equal(t, "Long video analyzed in 3 parts - see concerns and positive aspects with timestamps below", res.Summary)
}

func TestMergeOrdersAndDedupsAcrossSegments(t *testing.T) {
	outs := []models.ModelOutput{
		{
			Themes: []string{"action"},
			Concerns: []models.TimedItem{
				{Description: "Sword fight between knights", Timestamp: "15:40"},
				{Description: "Dragon attacks the village", Timestamp: "3:05"},
			},
			KeyMoments: []models.KeyMoment{{TimestampSeconds: 940, Type: "violence"}},
		},
		{
			Themes: []string{"Action", "scary"},
			Concerns: []models.TimedItem{
				{Description: "Dragon attacks the village", Timestamp: "25:10"},
				{Description: "Soldiers fall in battle", Timestamp: "22:00"},
			},
			KeyMoments: []models.KeyMoment{{TimestampSeconds: 185, Type: "scary"}},
		},
	}
	res := Merge(outs)

	assert.Equal(t, []string{"action", "scary"}, res.Themes)
	assert.Equal(t, []string{
		"Dragon attacks the village at 3:05",
		"Sword fight between knights at 15:40",
		"Soldiers fall in battle at 22:00",
	}, res.Concerns)
	require.Len(t, res.KeyMoments, 2)
	assert.Equal(t, 185, res.KeyMoments[0].TimestampSeconds)
}

func TestMergeCapsLists(t *testing.T) {
	var out models.ModelOutput
	for i := 0; i < 15; i++ {
		out.Concerns = append(out.Concerns, models.TimedItem{
			Description: fmt.Sprintf("Distinct concern number %d", i),
			Timestamp:   fmt.Sprintf("%d:00", i),
		})
		out.KeyMoments = append(out.KeyMoments, models.KeyMoment{TimestampSeconds: 100 - i})
	}
	res := Merge([]models.ModelOutput{out, out})

	assert.Len(t, res.Concerns, MaxListItems)
	assert.Len(t, res.KeyMoments, MaxListItems)
	assert.Equal(t, 86, res.KeyMoments[0].TimestampSeconds)
}

func TestDirectCleansItems(t *testing.T) {
	out := models.ModelOutput{
		SafetyScore: 120,
		Concerns: []models.TimedItem{
			{Description: "Cartoon character slips on a banana", Timestamp: "0:45"},
			{Description: "Cartoon character slips on a banana", Timestamp: "1:45"},
			{Description: "Cut off"},
		},
		Summary: "A slapstick cartoon.",
	}
	res := Direct(out)

	assert.Equal(t, 100, res.SafetyScore)
	assert.Equal(t, []string{"Cartoon character slips on a banana at 0:45"}, res.Concerns)
	assert.Equal(t, models.ModeDirect, res.AnalysisMode)
	assert.Equal(t, "A slapstick cartoon.", res.Summary)
}
