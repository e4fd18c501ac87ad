package gemini

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"videosafety-worker/internal/models"
)

type fakeGenerator struct {
	resp     *genai.GenerateContentResponse
	err      error
	parts    []genai.Part
	deadline bool
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.parts = parts
	_, f.deadline = ctx.Deadline()
	return f.resp, f.err
}

func textResponse(text string, reason genai.FinishReason) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
		Content:      &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(text)}},
		FinishReason: reason,
	}}}
}

func testClient(gen contentGenerator) *Client {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return newClient(gen, time.Minute, l)
}

var request = models.GenerateRequest{VideoURL: "https://www.youtube.com/watch?v=dQw4w9WgXcQ", Prompt: "Analyze this video"}

func TestGenerateSendsURLAndPrompt(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse(`{"safety_score":90,"violence_score":5,"nsfw_score":0,"scary_score":0,"profanity_detected":false}`, genai.FinishReasonStop)}
	raw, err := testClient(gen).Generate(context.Background(), request)
	require.NoError(t, err)

	require.Len(t, gen.parts, 2)
	assert.Equal(t, genai.FileData{MIMEType: "video/mp4", URI: request.VideoURL}, gen.parts[0])
	assert.Equal(t, genai.Text("Analyze this video"), gen.parts[1])
	assert.True(t, gen.deadline, "each call carries the request timeout")

	require.NotNil(t, raw.Parsed)
	assert.Equal(t, 90, raw.Parsed.SafetyScore)
	assert.Equal(t, 5, raw.Parsed.ViolenceScore)
}

func TestGenerateStrictDecode(t *testing.T) {
	tests := []struct {
		name       string
		text       string
		wantParsed bool
	}{
		{"fenced", "```json\n{\"safety_score\":1,\"violence_score\":2,\"nsfw_score\":3,\"scary_score\":4,\"profanity_detected\":true}\n```", true},
		{"missing key", `{"safety_score":1,"violence_score":2,"nsfw_score":3,"scary_score":4}`, false},
		{"truncated", `{"safety_score":1,"violence_score":2,"nsfw_score":3,"scary_score":4,"profanity_detected":true,"summary":"cut`, false},
		{"wrong type", `{"safety_score":"high","violence_score":2,"nsfw_score":3,"scary_score":4,"profanity_detected":true}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &fakeGenerator{resp: textResponse(tt.text, genai.FinishReasonStop)}
			raw, err := testClient(gen).Generate(context.Background(), request)
			require.NoError(t, err)
			assert.Equal(t, tt.text, raw.Text, "raw text is kept for the normalizer")
			assert.Equal(t, tt.wantParsed, raw.Parsed != nil)
		})
	}
}

func TestGenerateErrors(t *testing.T) {
	upstream := &googleapi.Error{Code: 503, Message: "The model is overloaded"}
	_, err := testClient(&fakeGenerator{err: upstream}).Generate(context.Background(), request)
	var apiErr *googleapi.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 503, apiErr.Code)

	_, err = testClient(&fakeGenerator{resp: &genai.GenerateContentResponse{}}).Generate(context.Background(), request)
	assert.ErrorContains(t, err, "no candidates")

	blocked := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}}}
	_, err = testClient(&fakeGenerator{resp: blocked}).Generate(context.Background(), request)
	assert.ErrorContains(t, err, "blocked")

	_, err = testClient(&fakeGenerator{resp: textResponse("  ", genai.FinishReasonStop)}).Generate(context.Background(), request)
	assert.ErrorContains(t, err, "empty")

	_, err = testClient(&fakeGenerator{}).Generate(context.Background(), models.GenerateRequest{Prompt: "p"})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, context.Canceled))
}

func TestCleanJSONString(t *testing.T) {
	assert.Equal(t, `{"a":1}`, cleanJSONString("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, cleanJSONString("\uFEFF{\"a\":1}\x00"))
}

func TestAnalysisSchemaRequiresScores(t *testing.T) {
	s := AnalysisSchema()
	assert.Equal(t, genai.TypeObject, s.Type)
	for _, k := range models.RequiredOutputKeys {
		assert.Contains(t, s.Required, k)
		assert.Contains(t, s.Properties, k)
	}
	assert.Equal(t, models.MomentTypes, s.Properties["key_moments"].Items.Properties["type"].Enum)
}

func TestFirstNChars(t *testing.T) {
	assert.Equal(t, "héll", firstNChars("héllo", 4))
	assert.Equal(t, "hi", firstNChars("hi", 10))
}
