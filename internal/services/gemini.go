package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"alfredoptarigan/cv-screener/internal/logger"
)

// contentModels is the part of genai.Models used for generation.
type contentModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// NewGeminiClient creates the shared client for generation and embeddings.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return client, nil
}

// Generator implements TextGenerator on the Gemini API. It performs exactly
// one request per call; retries belong to the adapter.
type Generator struct {
	models contentModels
	model  string
	logger *zap.Logger
}

func NewGenerator(models contentModels, model string, log *zap.Logger) *Generator {
	return &Generator{models: models, model: model, logger: logger.OrNop(log)}
}

// Generate implements TextGenerator.
func (g *Generator) Generate(ctx context.Context, prompt string, opts GenerateOptions) (*GenerateResult, error) {
	temperature := opts.Temperature
	cfg := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(opts.MaxTokens),
		SafetySettings:  permissiveSafetySettings(),
	}
	if opts.Structured {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to generate content: %w", err)
	}
	if resp == nil {
		return nil, ErrEmptyResponse
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("%w: prompt block reason %s", ErrSafetyBlocked, resp.PromptFeedback.BlockReason)
	}
	for _, candidate := range resp.Candidates {
		if candidate != nil && candidate.FinishReason == genai.FinishReasonSafety {
			return nil, fmt.Errorf("%w: finish reason %s", ErrSafetyBlocked, candidate.FinishReason)
		}
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		g.logger.Debug("📄 Gemini returned no text", zap.Int("candidates", len(resp.Candidates)))
		return nil, ErrEmptyResponse
	}

	result := &GenerateResult{Text: text}
	if u := resp.UsageMetadata; u != nil {
		result.Usage = Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}

	return result, nil
}

// Model returns the configured model name.
func (g *Generator) Model() string {
	return g.model
}

func permissiveSafetySettings() []*genai.SafetySetting {
	categories := []genai.HarmCategory{
		genai.HarmCategoryHarassment,
		genai.HarmCategoryHateSpeech,
		genai.HarmCategorySexuallyExplicit,
		genai.HarmCategoryDangerousContent,
	}

	settings := make([]*genai.SafetySetting, 0, len(categories))
	for _, c := range categories {
		settings = append(settings, &genai.SafetySetting{
			Category:  c,
			Threshold: genai.HarmBlockThresholdBlockNone,
		})
	}
	return settings
}
