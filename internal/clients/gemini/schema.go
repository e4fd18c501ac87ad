package gemini

import (
	"github.com/google/generative-ai-go/genai"

	"videosafety-worker/internal/models"
)

// AnalysisSchema describes the JSON object the model must return.
func AnalysisSchema() *genai.Schema {
	str := func() *genai.Schema { return &genai.Schema{Type: genai.TypeString} }
	integer := func() *genai.Schema { return &genai.Schema{Type: genai.TypeInteger} }
	timedItems := func() *genai.Schema {
		return &genai.Schema{
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"description": str(),
					"timestamp":   str(),
				},
				Required: []string{"description", "timestamp"},
			},
		}
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"safety_score":       integer(),
			"violence_score":     integer(),
			"nsfw_score":         integer(),
			"scary_score":        integer(),
			"profanity_detected": {Type: genai.TypeBoolean},
			"themes":             {Type: genai.TypeArray, Items: str()},
			"concerns":           timedItems(),
			"positive_aspects":   timedItems(),
			"summary":            str(),
			"explanation":        str(),
			"recommendations":    str(),
			"key_moments": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"timestamp_seconds": integer(),
						"timestamp_display": str(),
						"type":              {Type: genai.TypeString, Enum: models.MomentTypes},
						"description":       str(),
						"severity":          {Type: genai.TypeString, Enum: models.MomentSeverities},
					},
					Required: []string{"timestamp_seconds", "timestamp_display", "type", "description", "severity"},
				},
			},
		},
		Required: []string{
			"safety_score", "violence_score", "nsfw_score", "scary_score",
			"profanity_detected", "themes", "concerns", "positive_aspects",
			"summary", "explanation", "recommendations", "key_moments",
		},
	}
}
