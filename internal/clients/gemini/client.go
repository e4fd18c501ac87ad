package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/generative-ai-go/genai"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"

	"videosafety-worker/internal/models"
)

const (
	DefaultModel           = "gemini-2.5-flash"
	DefaultTemperature     = 0.1
	DefaultMaxOutputTokens = 8192
	videoMIMEType          = "video/mp4"
)

// Config holds the model settings used for every analysis request.
type Config struct {
	APIKey          string
	ModelName       string
	Temperature     float32
	MaxOutputTokens int32
	RequestTimeout  time.Duration
}

// contentGenerator is the part of *genai.GenerativeModel the client uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Client sends YouTube URLs to Gemini and returns the raw JSON answer.
type Client struct {
	sdk     *genai.Client
	model   contentGenerator
	timeout time.Duration
	logger  logrus.FieldLogger
}

// NewClient builds a client for the configured model with the analysis response schema attached.
func NewClient(ctx context.Context, cfg Config, logger logrus.FieldLogger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key must not be empty")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.ModelName == "" {
		cfg.ModelName = DefaultModel
		logger.Warnf("[Gemini Client] no model name configured, using %s", cfg.ModelName)
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = DefaultMaxOutputTokens
	}

	sdk, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini sdk client: %w", err)
	}

	model := sdk.GenerativeModel(cfg.ModelName)
	model.SetTemperature(cfg.Temperature)
	model.SetMaxOutputTokens(cfg.MaxOutputTokens)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = AnalysisSchema()
	logger.WithFields(logrus.Fields{
		"model":       cfg.ModelName,
		"temperature": cfg.Temperature,
		"max_tokens":  cfg.MaxOutputTokens,
	}).Info("[Gemini Client] model initialised")

	c := newClient(model, cfg.RequestTimeout, logger)
	c.sdk = sdk
	return c, nil
}

func newClient(model contentGenerator, timeout time.Duration, logger logrus.FieldLogger) *Client {
	return &Client{model: model, timeout: timeout, logger: logger}
}

// Close releases the underlying SDK connection.
func (c *Client) Close() error {
	if c.sdk == nil {
		return nil
	}
	return c.sdk.Close()
}

// Generate sends one analysis request. Each call is bounded by the configured request timeout.
// Parsed is filled only when the answer decodes cleanly and carries every required score.
func (c *Client) Generate(ctx context.Context, req models.GenerateRequest) (*models.RawResponse, error) {
	if strings.TrimSpace(req.VideoURL) == "" {
		return nil, errors.New("video URL must not be empty")
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return nil, errors.New("prompt must not be empty")
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	log := c.logger.WithField("video_url", req.VideoURL)
	if req.Window != nil {
		log = log.WithField("window", fmt.Sprintf("%s-%s", req.Window.Start, req.Window.End))
	}
	log.Debugf("[Gemini Client] sending request, prompt: %s...", firstNChars(req.Prompt, 100))

	parts := []genai.Part{
		genai.FileData{MIMEType: videoMIMEType, URI: req.VideoURL},
		genai.Text(req.Prompt),
	}
	resp, err := c.model.GenerateContent(ctx, parts...)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}

	text, err := responseText(resp, log)
	if err != nil {
		return nil, err
	}
	log.WithField("length", len(text)).Debugf("[Gemini Client] raw response: %s", firstNChars(text, 200))

	raw := &models.RawResponse{Text: text}
	if out, ok := decodeStrict(text); ok {
		raw.Parsed = out
	} else {
		log.Debug("[Gemini Client] response is not clean JSON, leaving it to the normalizer")
	}
	return raw, nil
}

func responseText(resp *genai.GenerateContentResponse, log logrus.FieldLogger) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockReasonUnspecified {
			return "", fmt.Errorf("gemini blocked the prompt: %s", resp.PromptFeedback.BlockReason.String())
		}
		return "", errors.New("gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		if candidate.FinishReason != genai.FinishReasonStop && candidate.FinishReason != genai.FinishReasonUnspecified {
			for _, rating := range candidate.SafetyRatings {
				log.Warnf("[Gemini Client] safety rating %s: %s", rating.Category, rating.Probability)
			}
			return "", fmt.Errorf("gemini response blocked, finish reason: %s", candidate.FinishReason.String())
		}
		return "", fmt.Errorf("gemini returned no content parts (finish reason: %s)", candidate.FinishReason.String())
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		} else {
			log.Warnf("[Gemini Client] unexpected part type %T", part)
		}
	}
	text := sb.String()
	if strings.TrimSpace(text) == "" {
		return "", errors.New("gemini returned empty text")
	}
	if candidate.FinishReason == genai.FinishReasonMaxTokens {
		log.Warn("[Gemini Client] response hit the output token limit and is likely truncated")
	}
	return text, nil
}

// decodeStrict accepts text only if it is valid JSON containing every required key.
func decodeStrict(text string) (*models.ModelOutput, bool) {
	cleaned := cleanJSONString(text)
	if !json.Valid([]byte(cleaned)) {
		return nil, false
	}
	var keys map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &keys); err != nil {
		return nil, false
	}
	for _, k := range models.RequiredOutputKeys {
		if _, ok := keys[k]; !ok {
			return nil, false
		}
	}
	var out models.ModelOutput
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return nil, false
	}
	return &out, true
}

// cleanJSONString strips markdown fences, a BOM, invalid UTF-8 and stray control characters.
func cleanJSONString(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(strings.TrimSpace(cleaned), "```")
	}
	cleaned = strings.TrimSpace(cleaned)
	if !utf8.ValidString(cleaned) {
		cleaned = strings.ToValidUTF8(cleaned, "")
	}

	var sb strings.Builder
	for _, r := range cleaned {
		if (r >= 0 && r < 9) || (r > 10 && r < 13) || (r > 13 && r < 32) || r == 127 {
			continue
		}
		sb.WriteRune(r)
	}
	return strings.TrimPrefix(sb.String(), "\uFEFF")
}

func firstNChars(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) > n {
		return string(runes[:n])
	}
	return s
}
