package services

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"alfredoptarigan/cv-screener/internal/config"
	"alfredoptarigan/cv-screener/internal/logger"
)

// Payload keys stored with every reference chunk.
const (
	payloadDocumentType = "document_type"
	payloadSource       = "source"
	payloadChunkIndex   = "chunk_index"
	payloadText         = "text"
)

// VectorStore is the similarity-search collaborator.
type VectorStore interface {
	InitCollection(ctx context.Context) error
	Upsert(ctx context.Context, points []VectorPoint) error
	Search(ctx context.Context, vector []float32, categories []string, limit int) ([]SearchResult, error)
	DeleteBySource(ctx context.Context, source string) error
	HealthCheck(ctx context.Context) error
	Close() error
}

// VectorPoint is one chunk of the reference corpus.
type VectorPoint struct {
	Category   string
	Source     string
	ChunkIndex int
	Text       string
	Vector     []float32
}

type SearchResult struct {
	ID       string
	Score    float32
	Text     string
	Category string
	Source   string
}

type qdrantService struct {
	client         *qdrant.Client
	collectionName string
	vectorSize     uint64
	logger         *zap.Logger
}

func NewQdrantService(cfg config.QdrantConfig, log *zap.Logger) (VectorStore, error) {
	parsed, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid Qdrant URL: %w", err)
	}

	// gRPC port unless the URL names one.
	port := 6334
	if p := parsed.Port(); p != "" {
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   parsed.Hostname(),
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: parsed.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &qdrantService{
		client:         client,
		collectionName: cfg.Collection,
		vectorSize:     cfg.VectorSize,
		logger:         logger.OrNop(log),
	}, nil
}

// InitCollection implements VectorStore.
func (q *qdrantService) InitCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if exists {
		q.logger.Info("✅ Qdrant collection already exists", zap.String("collection", q.collectionName))
		return nil
	}

	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collectionName,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     q.vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	_, err = q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
		CollectionName: q.collectionName,
		FieldName:      payloadDocumentType,
		FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
	})
	if err != nil {
		return fmt.Errorf("failed to index %s: %w", payloadDocumentType, err)
	}

	q.logger.Info("✅ Qdrant collection created",
		zap.String("collection", q.collectionName),
		zap.Uint64("vector_size", q.vectorSize),
	)
	return nil
}

// HealthCheck implements VectorStore.
func (q *qdrantService) HealthCheck(ctx context.Context) error {
	if _, err := q.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("failed to reach qdrant: %w", err)
	}
	return nil
}

// Close implements VectorStore.
func (q *qdrantService) Close() error {
	return q.client.Close()
}

// Upsert implements VectorStore.
func (q *qdrantService) Upsert(ctx context.Context, points []VectorPoint) error {
	if len(points) == 0 {
		return nil
	}

	structs := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		if uint64(len(p.Vector)) != q.vectorSize {
			return fmt.Errorf("point %s#%d has %d dimensions, collection expects %d",
				p.Source, p.ChunkIndex, len(p.Vector), q.vectorSize)
		}
		structs = append(structs, &qdrant.PointStruct{
			Id:      qdrant.NewID(uuid.NewString()),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(pointPayload(p)),
		})
	}

	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collectionName,
		Wait:           qdrant.PtrOf(true),
		Points:         structs,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}

	return nil
}

// Search implements VectorStore. An empty category list searches the whole
// collection.
func (q *qdrantService) Search(ctx context.Context, vector []float32, categories []string, limit int) ([]SearchResult, error) {
	points, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collectionName,
		Query:          qdrant.NewQuery(vector...),
		Filter:         categoryFilter(categories),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]SearchResult, 0, len(points))
	for _, point := range points {
		results = append(results, searchResultFromPoint(point))
	}

	return results, nil
}

// DeleteBySource implements VectorStore.
func (q *qdrantService) DeleteBySource(ctx context.Context, source string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collectionName,
		Wait:           qdrant.PtrOf(true),
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{qdrant.NewMatch(payloadSource, source)},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete points of %s: %w", source, err)
	}

	return nil
}

func pointPayload(p VectorPoint) map[string]any {
	return map[string]any{
		payloadDocumentType: p.Category,
		payloadSource:       p.Source,
		payloadChunkIndex:   int64(p.ChunkIndex),
		payloadText:         p.Text,
	}
}

func categoryFilter(categories []string) *qdrant.Filter {
	switch len(categories) {
	case 0:
		return nil
	case 1:
		return &qdrant.Filter{Must: []*qdrant.Condition{qdrant.NewMatch(payloadDocumentType, categories[0])}}
	default:
		return &qdrant.Filter{Must: []*qdrant.Condition{qdrant.NewMatchKeywords(payloadDocumentType, categories...)}}
	}
}

func searchResultFromPoint(point *qdrant.ScoredPoint) SearchResult {
	result := SearchResult{Score: point.GetScore()}

	if id := point.GetId(); id != nil {
		if s := id.GetUuid(); s != "" {
			result.ID = s
		} else {
			result.ID = strconv.FormatUint(id.GetNum(), 10)
		}
	}

	payload := point.GetPayload()
	result.Text = payload[payloadText].GetStringValue()
	result.Category = payload[payloadDocumentType].GetStringValue()
	result.Source = payload[payloadSource].GetStringValue()

	return result
}
