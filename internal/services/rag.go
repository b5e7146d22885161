package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"alfredoptarigan/cv-screener/internal/logger"
)

const (
	defaultTopK   = 5
	defaultFinalK = 3

	contextSeparator = "\n---\n\n"
)

// ContextQuery asks for reference text related to Text, restricted to the
// given corpus categories.
type ContextQuery struct {
	Text       string
	Categories []string
	TopK       int
}

type RAGService interface {
	RetrieveContext(ctx context.Context, q ContextQuery) (string, error)
	RetrieveWithRerank(ctx context.Context, q ContextQuery, finalK int) (string, error)
}

type ragService struct {
	embedder EmbeddingService
	store    VectorStore
	logger   *zap.Logger
}

func NewRAGService(embedder EmbeddingService, store VectorStore, log *zap.Logger) RAGService {
	return &ragService{embedder: embedder, store: store, logger: logger.OrNop(log)}
}

// RetrieveContext implements RAGService. No hits yields "" and no error.
func (r *ragService) RetrieveContext(ctx context.Context, q ContextQuery) (string, error) {
	results, err := r.search(ctx, q)
	if err != nil || len(results) == 0 {
		return "", err
	}

	blocks := make([]string, 0, len(results))
	for i, res := range results {
		blocks = append(blocks, fmt.Sprintf("Context %d, Relevance: %.4f\n%s", i+1, res.Score, res.Text))
	}

	return strings.Join(blocks, contextSeparator), nil
}

// RetrieveWithRerank implements RAGService.
func (r *ragService) RetrieveWithRerank(ctx context.Context, q ContextQuery, finalK int) (string, error) {
	if finalK <= 0 {
		finalK = defaultFinalK
	}

	results, err := r.search(ctx, q)
	if err != nil || len(results) == 0 {
		return "", err
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > finalK {
		results = results[:finalK]
	}

	blocks := make([]string, 0, len(results))
	for i, res := range results {
		blocks = append(blocks, fmt.Sprintf("[Context %d]\n%s\n", i+1, res.Text))
	}

	return strings.Join(blocks, contextSeparator), nil
}

func (r *ragService) search(ctx context.Context, q ContextQuery) ([]SearchResult, error) {
	topK := q.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	vector, err := r.embedder.Embed(ctx, q.Text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed context query: %w", err)
	}

	results, err := r.store.Search(ctx, vector, q.Categories, topK)
	if err != nil {
		return nil, fmt.Errorf("failed to search reference corpus: %w", err)
	}

	if len(results) == 0 {
		r.logger.Warn("⚠️ No relevant context found", zap.Strings("categories", q.Categories))
		return nil, nil
	}

	var total float32
	for _, res := range results {
		total += res.Score
	}
	r.logger.Debug("🔍 Retrieved context",
		zap.Int("chunks", len(results)),
		zap.Float32("top_score", results[0].Score),
		zap.Float32("avg_score", total/float32(len(results))),
	)

	return results, nil
}
