package services

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"alfredoptarigan/cv-screener/internal/models"
)

func TestIngestReplacesChunks(t *testing.T) {
	text := strings.Repeat("Backend engineers own APIs and data pipelines. ", 10) +
		"\n\n" + strings.Repeat("Candidates are scored from one to five. ", 10)
	parser := &fakeParser{texts: map[string]string{"/corpus/rubric.pdf": text}}
	store := &fakeVectorStore{}
	ing := NewIngestor(parser, NewTextChunker(300, 50), &fakeEmbedder{}, store, zap.NewNop())

	n, err := ing.Ingest(context.Background(), ReferenceDocument{
		Path:     "/corpus/rubric.pdf",
		Category: models.CategoryCVRubric,
		Name:     "CV rubric",
	})
	require.NoError(t, err)

	assert.Greater(t, n, 1)
	assert.Equal(t, []string{"rubric.pdf"}, store.deleted)
	require.Len(t, store.upserted, n)
	for i, p := range store.upserted {
		assert.Equal(t, models.CategoryCVRubric, p.Category)
		assert.Equal(t, "rubric.pdf", p.Source)
		assert.Equal(t, i, p.ChunkIndex)
		assert.Len(t, p.Vector, 3)
		assert.NotEmpty(t, p.Text)
	}
}

func TestIngestRejectsUnknownCategory(t *testing.T) {
	store := &fakeVectorStore{}
	ing := NewIngestor(&fakeParser{}, NewTextChunker(0, 0), &fakeEmbedder{}, store, nil)

	_, err := ing.Ingest(context.Background(), ReferenceDocument{Path: "x.pdf", Category: "resume"})

	assert.ErrorContains(t, err, "unknown category")
	assert.Empty(t, store.deleted)
}

func TestIngestKeepsExistingChunksWhenEmbeddingFails(t *testing.T) {
	parser := &fakeParser{texts: map[string]string{"brief.pdf": "A short case study brief."}}
	store := &fakeVectorStore{}
	ing := NewIngestor(parser, NewTextChunker(0, 0), &fakeEmbedder{err: errors.New("quota")}, store, nil)

	_, err := ing.Ingest(context.Background(), ReferenceDocument{Path: "brief.pdf", Category: models.CategoryCaseStudy})

	assert.ErrorContains(t, err, "failed to embed chunks")
	assert.Empty(t, store.deleted)
	assert.Empty(t, store.upserted)
}

func TestIngestEmptyDocument(t *testing.T) {
	parser := &fakeParser{texts: map[string]string{"empty.pdf": "   "}}
	ing := NewIngestor(parser, NewTextChunker(0, 0), &fakeEmbedder{}, &fakeVectorStore{}, nil)

	_, err := ing.Ingest(context.Background(), ReferenceDocument{Path: "empty.pdf", Category: models.CategoryCaseStudy})

	assert.ErrorContains(t, err, "no text extracted")
}

func TestIngestRejectsInvalidPDF(t *testing.T) {
	parser := &fakeParser{
		texts:      map[string]string{"brief.docx": "not really a pdf"},
		invalidErr: ErrNotPDF,
	}
	store := &fakeVectorStore{}
	ing := NewIngestor(parser, NewTextChunker(0, 0), &fakeEmbedder{}, store, nil)

	_, err := ing.Ingest(context.Background(), ReferenceDocument{Path: "brief.docx", Category: models.CategoryCaseStudy})

	assert.ErrorIs(t, err, ErrNotPDF)
	assert.Empty(t, store.deleted)
	assert.Empty(t, store.upserted)
}
