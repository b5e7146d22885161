package services

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

type fakeContentModels struct {
	resp    *genai.GenerateContentResponse
	err     error
	model   string
	config  *genai.GenerateContentConfig
	content []*genai.Content
}

func (f *fakeContentModels) GenerateContent(_ context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.content = contents
	f.config = config
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     120,
			CandidatesTokenCount: 30,
			TotalTokenCount:      150,
		},
	}
}

func TestGeneratorBuildsRequest(t *testing.T) {
	models := &fakeContentModels{resp: textResponse(`{"ok":true}`)}
	g := NewGenerator(models, "gemini-2.5-flash", zap.NewNop())

	res, err := g.Generate(context.Background(), "prompt", GenerateOptions{Temperature: 0.4, MaxTokens: 2500, Structured: true})
	require.NoError(t, err)

	assert.Equal(t, `{"ok":true}`, res.Text)
	assert.Equal(t, Usage{PromptTokens: 120, CompletionTokens: 30, TotalTokens: 150}, res.Usage)

	assert.Equal(t, "gemini-2.5-flash", models.model)
	require.NotNil(t, models.config.Temperature)
	assert.InDelta(t, float32(0.4), *models.config.Temperature, 1e-6)
	assert.Equal(t, int32(2500), models.config.MaxOutputTokens)
	assert.Equal(t, "application/json", models.config.ResponseMIMEType)
	require.Len(t, models.config.SafetySettings, 4)
	for _, s := range models.config.SafetySettings {
		assert.Equal(t, genai.HarmBlockThresholdBlockNone, s.Threshold)
	}
}

func TestGeneratorTextModeHasNoMIMEType(t *testing.T) {
	models := &fakeContentModels{resp: textResponse("summary")}
	g := NewGenerator(models, "m", nil)

	_, err := g.Generate(context.Background(), "prompt", GenerateOptions{Temperature: 0.4})
	require.NoError(t, err)
	assert.Empty(t, models.config.ResponseMIMEType)
}

func TestGeneratorDetectsSafetyBlocks(t *testing.T) {
	t.Run("prompt feedback", func(t *testing.T) {
		models := &fakeContentModels{resp: &genai.GenerateContentResponse{
			PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety},
		}}
		_, err := NewGenerator(models, "m", nil).Generate(context.Background(), "p", GenerateOptions{})
		assert.ErrorIs(t, err, ErrSafetyBlocked)
		assert.Equal(t, KindSafetyBlock, ClassifyError(err))
	})

	t.Run("finish reason", func(t *testing.T) {
		models := &fakeContentModels{resp: &genai.GenerateContentResponse{
			Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}},
		}}
		_, err := NewGenerator(models, "m", nil).Generate(context.Background(), "p", GenerateOptions{})
		assert.ErrorIs(t, err, ErrSafetyBlocked)
	})
}

func TestGeneratorEmptyAndAPIErrors(t *testing.T) {
	models := &fakeContentModels{resp: &genai.GenerateContentResponse{}}
	_, err := NewGenerator(models, "m", nil).Generate(context.Background(), "p", GenerateOptions{})
	assert.ErrorIs(t, err, ErrEmptyResponse)

	models = &fakeContentModels{err: genai.APIError{Code: http.StatusServiceUnavailable, Status: "UNAVAILABLE"}}
	_, err = NewGenerator(models, "m", nil).Generate(context.Background(), "p", GenerateOptions{})
	assert.Equal(t, KindServerError, ClassifyError(err))
}
