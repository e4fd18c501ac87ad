package models

import (
	"encoding/json"
	"time"
)

// SchemaVersion is bumped whenever AnalysisResult changes shape. Stored rows carry the
// version they were written with.
const SchemaVersion = 1

// AnalysisMode records which strategy produced a result.
type AnalysisMode string

const (
	ModeDirect    AnalysisMode = "direct"
	ModeSegmented AnalysisMode = "segmented"
)

// Key moment categories and severities requested from the model.
var (
	MomentTypes      = []string{"violence", "scary", "nsfw", "profanity", "educational", "positive"}
	MomentSeverities = []string{"low", "moderate", "high"}
)

// KeyMoment is one timestamped event in the video.
type KeyMoment struct {
	TimestampSeconds int    `json:"timestamp_seconds"`
	TimestampDisplay string `json:"timestamp_display"`
	Type             string `json:"type"`
	Description      string `json:"description"`
	Severity         string `json:"severity"`
}

// TimedItem is a concern or positive aspect as the model reports it.
// Older prompts produced plain "description at M:SS" strings, which decode into Description.
type TimedItem struct {
	Description string `json:"description"`
	Timestamp   string `json:"timestamp"`
}

// UnmarshalJSON accepts either an object or a plain string.
func (t *TimedItem) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		t.Description, t.Timestamp = s, ""
		return nil
	}
	type plain TimedItem
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*t = TimedItem(p)
	return nil
}

// ModelOutput is the response shape requested from the model for one call.
type ModelOutput struct {
	SafetyScore       int         `json:"safety_score"`
	ViolenceScore     int         `json:"violence_score"`
	NSFWScore         int         `json:"nsfw_score"`
	ScaryScore        int         `json:"scary_score"`
	ProfanityDetected bool        `json:"profanity_detected"`
	Themes            []string    `json:"themes"`
	Concerns          []TimedItem `json:"concerns"`
	PositiveAspects   []TimedItem `json:"positive_aspects"`
	Summary           string      `json:"summary"`
	Explanation       string      `json:"explanation"`
	Recommendations   string      `json:"recommendations"`
	KeyMoments        []KeyMoment `json:"key_moments"`
}

// RequiredOutputKeys must be present for a decoded response to be trusted.
var RequiredOutputKeys = []string{"safety_score", "violence_score", "nsfw_score", "scary_score", "profanity_detected"}

// AnalysisResult is the report stored in reports.analysis_result once a job completes.
type AnalysisResult struct {
	SchemaVersion     int          `json:"schema_version"`
	SafetyScore       int          `json:"safety_score"`
	ViolenceScore     int          `json:"violence_score"`
	NSFWScore         int          `json:"nsfw_score"`
	ScaryScore        int          `json:"scary_score"`
	ProfanityDetected bool         `json:"profanity_detected"`
	Themes            []string     `json:"themes"`
	Concerns          []string     `json:"concerns"`
	PositiveAspects   []string     `json:"positive_aspects"`
	KeyMoments        []KeyMoment  `json:"key_moments"`
	Summary           string       `json:"summary"`
	Explanation       string       `json:"explanation"`
	Recommendations   string       `json:"recommendations"`
	AgeRecommendation int          `json:"age_recommendation"`
	AnalysisMode      AnalysisMode `json:"analysis_mode"`
	SegmentCount      int          `json:"segment_count"`
	DurationSeconds   int          `json:"duration_seconds"`
}

// Segment is one time window of a long video, [StartSeconds, EndSeconds).
type Segment struct {
	Index        int `json:"index"`
	StartSeconds int `json:"start_seconds"`
	EndSeconds   int `json:"end_seconds"`
}

// TimeWindow narrows a model call to part of the video.
type TimeWindow struct {
	Start time.Duration
	End   time.Duration
}

// GenerateRequest is one call to the multimodal model.
type GenerateRequest struct {
	VideoURL string
	Window   *TimeWindow
	Prompt   string
}

// RawResponse is what the model client hands back before normalization.
// Parsed is set only when Text already decoded cleanly into ModelOutput.
type RawResponse struct {
	Text   string
	Parsed *ModelOutput
}
