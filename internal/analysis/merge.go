package analysis

import (
	"fmt"
	"strings"

	"videosafety-worker/internal/models"
)

const genericSummaryMarker = "Video content analyzed"

// Merge folds per-segment outputs into one result. Safety is averaged, the other three
// scores take the worst segment and profanity is true if any segment heard it.
// An empty input yields a fixed failure-shaped result.
func Merge(outputs []models.ModelOutput) models.AnalysisResult {
	if len(outputs) == 0 {
		return models.AnalysisResult{
			SchemaVersion:   models.SchemaVersion,
			SafetyScore:     50,
			Themes:          []string{},
			Concerns:        []string{},
			PositiveAspects: []string{},
			KeyMoments:      []models.KeyMoment{},
			Summary:         "Analysis failed",
			Explanation:     "No chunks analyzed",
			Recommendations: "Unable to provide recommendations",
			AnalysisMode:    models.ModeSegmented,
		}
	}

	var (
		safetySum             int
		violence, nsfw, scary int
		profanity             bool
		themes                = []string{}
		concerns, positives   []models.TimedItem
		moments               []models.KeyMoment
	)
	for _, out := range outputs {
		safetySum += out.SafetyScore
		violence = max(violence, out.ViolenceScore)
		nsfw = max(nsfw, out.NSFWScore)
		scary = max(scary, out.ScaryScore)
		profanity = profanity || out.ProfanityDetected
		themes = uniqueThemes(themes, out.Themes)
		concerns = append(concerns, out.Concerns...)
		positives = append(positives, out.PositiveAspects...)
		moments = append(moments, out.KeyMoments...)
	}

	summary := outputs[0].Summary
	if strings.Contains(summary, genericSummaryMarker) || len(summary) < 10 {
		summary = fmt.Sprintf("Long video analyzed in %d parts - see concerns and positive aspects with timestamps below", len(outputs))
	}

	return models.AnalysisResult{
		SchemaVersion:     models.SchemaVersion,
		SafetyScore:       safetySum / len(outputs),
		ViolenceScore:     violence,
		NSFWScore:         nsfw,
		ScaryScore:        scary,
		ProfanityDetected: profanity,
		Themes:            themes,
		Concerns:          finalizeItems(concerns),
		PositiveAspects:   finalizeItems(positives),
		KeyMoments:        sortMoments(moments),
		Summary:           summary,
		Explanation:       fmt.Sprintf("Max violence: %d, NSFW: %d, Scary: %d", violence, nsfw, scary),
		Recommendations:   "Review all concerns carefully for long videos",
		AnalysisMode:      models.ModeSegmented,
		SegmentCount:      len(outputs),
	}
}

// Direct builds the stored result for a video analyzed in one call.
func Direct(out models.ModelOutput) models.AnalysisResult {
	return models.AnalysisResult{
		SchemaVersion:     models.SchemaVersion,
		SafetyScore:       clampScore(out.SafetyScore),
		ViolenceScore:     clampScore(out.ViolenceScore),
		NSFWScore:         clampScore(out.NSFWScore),
		ScaryScore:        clampScore(out.ScaryScore),
		ProfanityDetected: out.ProfanityDetected,
		Themes:            uniqueThemes(nil, out.Themes),
		Concerns:          capStrings(CleanItems(ConvertItems(out.Concerns)), MaxListItems),
		PositiveAspects:   capStrings(CleanItems(ConvertItems(out.PositiveAspects)), MaxListItems),
		KeyMoments:        capMoments(out.KeyMoments),
		Summary:           out.Summary,
		Explanation:       out.Explanation,
		Recommendations:   out.Recommendations,
		AnalysisMode:      models.ModeDirect,
		SegmentCount:      1,
	}
}

func capMoments(moments []models.KeyMoment) []models.KeyMoment {
	out := append([]models.KeyMoment{}, moments...)
	if len(out) > MaxListItems {
		out = out[:MaxListItems]
	}
	return out
}

// withAge fills in the derived age recommendation.
func withAge(res models.AnalysisResult) models.AnalysisResult {
	res.AgeRecommendation = AgeRecommendation(res.ViolenceScore, res.ScaryScore, res.NSFWScore, res.ProfanityDetected)
	return res
}
