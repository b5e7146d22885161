package services

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"

	"go.uber.org/zap"

	"alfredoptarigan/cv-screener/internal/logger"
	"alfredoptarigan/cv-screener/internal/models"
)

// ReferenceDocument is a PDF from the reference corpus and the category its
// chunks are tagged with.
type ReferenceDocument struct {
	Path     string
	Category string
	Name     string
}

type Ingestor interface {
	// Ingest replaces every chunk previously stored for doc and returns the
	// number of chunks written.
	Ingest(ctx context.Context, doc ReferenceDocument) (int, error)
}

type ingestor struct {
	parser   PDFParserService
	chunker  *TextChunker
	embedder EmbeddingService
	store    VectorStore
	logger   *zap.Logger
}

func NewIngestor(
	parser PDFParserService,
	chunker *TextChunker,
	embedder EmbeddingService,
	store VectorStore,
	log *zap.Logger,
) Ingestor {
	return &ingestor{
		parser:   parser,
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		logger:   logger.OrNop(log),
	}
}

// Ingest implements Ingestor.
func (i *ingestor) Ingest(ctx context.Context, doc ReferenceDocument) (int, error) {
	if !slices.Contains(models.CorpusCategories, doc.Category) {
		return 0, fmt.Errorf("unknown category %q, expected one of %v", doc.Category, models.CorpusCategories)
	}

	log := i.logger.With(zap.String("document", doc.Name), zap.String("category", doc.Category))

	if err := i.parser.ValidatePDF(doc.Path); err != nil {
		return 0, fmt.Errorf("failed to validate %s: %w", doc.Path, err)
	}

	log.Info("📖 Extracting text", zap.String("path", doc.Path))
	text, err := i.parser.ExtractText(doc.Path)
	if err != nil {
		return 0, fmt.Errorf("failed to extract text: %w", err)
	}

	chunks := i.chunker.Chunk(text)
	if len(chunks) == 0 {
		return 0, fmt.Errorf("no text extracted from %s", doc.Path)
	}
	log.Info("✂️ Chunked text", zap.Int("chunks", len(chunks)), zap.Int("characters", len(text)))

	texts := make([]string, len(chunks))
	for n, c := range chunks {
		texts[n] = c.Text
	}

	vectors, err := i.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("failed to embed chunks: %w", err)
	}

	source := filepath.Base(doc.Path)
	if err := i.store.DeleteBySource(ctx, source); err != nil {
		return 0, err
	}

	points := make([]VectorPoint, len(chunks))
	for n, c := range chunks {
		points[n] = VectorPoint{
			Category:   doc.Category,
			Source:     source,
			ChunkIndex: c.Index,
			Text:       c.Text,
			Vector:     vectors[n],
		}
	}

	if err := i.store.Upsert(ctx, points); err != nil {
		return 0, err
	}

	log.Info("✅ Document ingested", zap.Int("chunks", len(points)))
	return len(points), nil
}
