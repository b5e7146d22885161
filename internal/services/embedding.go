package services

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"
)

// Inputs beyond this many characters are cut before embedding.
const maxEmbeddingChars = 40000

// embedModels is the part of genai.Models used for embeddings.
type embedModels interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

type EmbeddingService interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

type embeddingService struct {
	models    embedModels
	model     string
	dimension int
	batchSize int
}

func NewEmbeddingService(models embedModels, model string, dimension int) EmbeddingService {
	return &embeddingService{
		models:    models,
		model:     model,
		dimension: dimension,
		batchSize: 4,
	}
}

// Embed implements EmbeddingService.
func (e *embeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if runes := []rune(text); len(runes) > maxEmbeddingChars {
		text = string(runes[:maxEmbeddingChars])
	}

	dim := int32(e.dimension)
	result, err := e.models.EmbedContent(ctx, e.model, genai.Text(text), &genai.EmbedContentConfig{
		OutputDimensionality: &dim,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate embedding: %w", err)
	}

	if result == nil || len(result.Embeddings) == 0 || result.Embeddings[0] == nil {
		return nil, errors.New("empty embedding result")
	}

	values := result.Embeddings[0].Values
	if len(values) != e.dimension {
		return nil, fmt.Errorf("embedding has %d dimensions, expected %d", len(values), e.dimension)
	}

	return values, nil
}

// EmbedBatch implements EmbeddingService. Output order matches input order.
func (e *embeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.batchSize)

	for i, text := range texts {
		g.Go(func() error {
			vec, err := e.Embed(gCtx, text)
			if err != nil {
				return fmt.Errorf("failed to embed text %d: %w", i, err)
			}
			results[i] = vec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Dimension implements EmbeddingService.
func (e *embeddingService) Dimension() int {
	return e.dimension
}
