package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"videosafety-worker/internal/models"
)

// Source tells which tier of the cascade produced a ModelOutput.
type Source int

const (
	SourceStructured Source = iota
	SourceRepaired
	SourceDefault
)

func (s Source) String() string {
	switch s {
	case SourceStructured:
		return "structured"
	case SourceRepaired:
		return "repaired"
	default:
		return "default"
	}
}

const (
	defaultSummary         = "Video was analyzed but detailed results could not be extracted."
	defaultExplanation     = "Please review the video manually for a detailed assessment."
	defaultRecommendations = "Manual review recommended."
)

// SafeDefault is the neutral result used when a response cannot be read at all.
func SafeDefault() models.ModelOutput {
	return models.ModelOutput{
		SafetyScore:     50,
		Themes:          []string{},
		Concerns:        []models.TimedItem{},
		PositiveAspects: []models.TimedItem{},
		Summary:         defaultSummary,
		Explanation:     defaultExplanation,
		Recommendations: defaultRecommendations,
		KeyMoments:      []models.KeyMoment{},
	}
}

// Normalize turns whatever the model returned into a usable ModelOutput. It never fails:
// the pre-parsed value wins, then a repaired decode of the raw text, then SafeDefault.
func Normalize(raw *models.RawResponse) (models.ModelOutput, Source) {
	if raw == nil {
		return SafeDefault(), SourceDefault
	}
	if raw.Parsed != nil {
		return sanitize(*raw.Parsed), SourceStructured
	}
	if fields, ok := repairToMap(raw.Text); ok && hasRequiredKeys(fields) {
		return sanitize(fromMap(fields)), SourceRepaired
	}
	return SafeDefault(), SourceDefault
}

var (
	openingFence = regexp.MustCompile("^```(?:json)?\\s*\\n?")
	closingFence = regexp.MustCompile("\\n?```\\s*$")
)

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = openingFence.ReplaceAllString(text, "")
		text = closingFence.ReplaceAllString(text, "")
	}
	return text
}

// repairToMap runs the JSON repair library over text and decodes the result as an object.
func repairToMap(text string) (fields map[string]any, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			fields, ok = nil, false
		}
	}()

	text = stripFences(text)
	if text == "" {
		return nil, false
	}
	repaired, err := jsonrepair.JSONRepair(text)
	if err != nil {
		return nil, false
	}
	if err := json.Unmarshal([]byte(repaired), &fields); err != nil {
		return nil, false
	}
	return fields, fields != nil
}

func hasRequiredKeys(fields map[string]any) bool {
	for _, key := range models.RequiredOutputKeys {
		if _, ok := fields[key]; !ok {
			return false
		}
	}
	return true
}

func fromMap(fields map[string]any) models.ModelOutput {
	out := SafeDefault()
	out.SafetyScore = toInt(fields["safety_score"], 50)
	out.ViolenceScore = toInt(fields["violence_score"], 0)
	out.NSFWScore = toInt(fields["nsfw_score"], 0)
	out.ScaryScore = toInt(fields["scary_score"], 0)
	out.ProfanityDetected = toBool(fields["profanity_detected"])
	out.Themes = toStrings(fields["themes"])
	out.Concerns = toItems(fields["concerns"])
	out.PositiveAspects = toItems(fields["positive_aspects"])
	out.KeyMoments = toKeyMoments(fields["key_moments"])
	if s, ok := fields["summary"].(string); ok {
		out.Summary = s
	}
	if s, ok := fields["explanation"].(string); ok {
		out.Explanation = s
	}
	if s, ok := fields["recommendations"].(string); ok {
		out.Recommendations = s
	}
	return out
}

// sanitize clamps scores and drops empty or repeated themes.
func sanitize(out models.ModelOutput) models.ModelOutput {
	out.SafetyScore = clampScore(out.SafetyScore)
	out.ViolenceScore = clampScore(out.ViolenceScore)
	out.NSFWScore = clampScore(out.NSFWScore)
	out.ScaryScore = clampScore(out.ScaryScore)
	out.Themes = uniqueThemes(nil, out.Themes)
	if out.Concerns == nil {
		out.Concerns = []models.TimedItem{}
	}
	if out.PositiveAspects == nil {
		out.PositiveAspects = []models.TimedItem{}
	}
	if out.KeyMoments == nil {
		out.KeyMoments = []models.KeyMoment{}
	}
	return out
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// uniqueThemes appends the non-empty themes of add to dst, skipping any already present.
func uniqueThemes(dst []string, add []string) []string {
	if dst == nil {
		dst = []string{}
	}
	seen := make(map[string]struct{}, len(dst)+len(add))
	for _, t := range dst {
		seen[strings.ToLower(t)] = struct{}{}
	}
	for _, t := range add {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		key := strings.ToLower(t)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		dst = append(dst, t)
	}
	return dst
}

func toInt(v any, fallback int) int {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return fallback
		}
		return int(n)
	case int:
		return n
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return fallback
		}
		return int(f)
	case bool:
		if n {
			return 1
		}
		return 0
	}
	return fallback
}

func toBool(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		parsed, err := strconv.ParseBool(strings.TrimSpace(b))
		return err == nil && parsed
	case float64:
		return b != 0
	}
	return false
}

func toStrings(v any) []string {
	list, _ := v.([]any)
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func toItems(v any) []models.TimedItem {
	list, _ := v.([]any)
	out := make([]models.TimedItem, 0, len(list))
	for _, item := range list {
		switch it := item.(type) {
		case string:
			out = append(out, models.TimedItem{Description: it})
		case map[string]any:
			out = append(out, models.TimedItem{
				Description: stringify(it["description"]),
				Timestamp:   stringify(it["timestamp"]),
			})
		}
	}
	return out
}

func toKeyMoments(v any) []models.KeyMoment {
	list, _ := v.([]any)
	out := make([]models.KeyMoment, 0, len(list))
	for _, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		out = append(out, models.KeyMoment{
			TimestampSeconds: toInt(m["timestamp_seconds"], 0),
			TimestampDisplay: stringify(m["timestamp_display"]),
			Type:             stringify(m["type"]),
			Description:      stringify(m["description"]),
			Severity:         stringify(m["severity"]),
		})
	}
	return out
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(s)
	}
}
