package handlers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"alfredoptarigan/cv-screener/internal/models"
	"alfredoptarigan/cv-screener/internal/repositories"
)

type memoryDocuments struct {
	mu        sync.Mutex
	docs      map[uuid.UUID]*models.Document
	createErr error
}

func newMemoryDocuments() *memoryDocuments {
	return &memoryDocuments{docs: map[uuid.UUID]*models.Document{}}
}

func (m *memoryDocuments) add(docType models.DocumentType) uuid.UUID {
	doc := &models.Document{ID: uuid.New(), Filename: "f.pdf", Type: docType, FilePath: "/tmp/f.pdf"}
	m.docs[doc.ID] = doc
	return doc.ID
}

func (m *memoryDocuments) Create(_ context.Context, doc *models.Document) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	m.docs[doc.ID] = doc
	return nil
}

func (m *memoryDocuments) FindByID(_ context.Context, id uuid.UUID) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repositories.ErrDocumentNotFound, id)
	}
	return doc, nil
}

func (m *memoryDocuments) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Document, error) {
	out := make([]models.Document, 0, len(ids))
	for _, id := range ids {
		doc, err := m.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, *doc)
	}
	return out, nil
}

type memoryEvaluations struct {
	mu    sync.Mutex
	evals map[uuid.UUID]*models.Evaluation
	err   error
}

func newMemoryEvaluations() *memoryEvaluations {
	return &memoryEvaluations{evals: map[uuid.UUID]*models.Evaluation{}}
}

func (m *memoryEvaluations) Create(_ context.Context, eval *models.Evaluation) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evals[eval.ID] = eval
	return nil
}

func (m *memoryEvaluations) FindByID(_ context.Context, id uuid.UUID) (*models.Evaluation, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	eval, ok := m.evals[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", repositories.ErrEvaluationNotFound, id)
	}
	return eval, nil
}

func (m *memoryEvaluations) MarkProcessing(_ context.Context, id uuid.UUID, attempt int) error {
	return m.set(id, models.StatusProcessing, attempt, nil)
}

func (m *memoryEvaluations) MarkFailed(_ context.Context, id uuid.UUID, attempt int, msg string) error {
	return m.set(id, models.StatusFailed, attempt, &msg)
}

func (m *memoryEvaluations) Complete(_ context.Context, id uuid.UUID, result *models.EvaluationResult) error {
	if err := m.set(id, models.StatusCompleted, 0, nil); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.evals[id].ResultID = &result.ID
	return nil
}

func (m *memoryEvaluations) set(id uuid.UUID, status models.EvaluationStatus, attempt int, msg *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	eval, ok := m.evals[id]
	if !ok {
		return repositories.ErrEvaluationNotFound
	}
	eval.Status = status
	eval.Attempt = attempt
	eval.ErrorMessage = msg
	return nil
}

type memoryResults struct {
	results map[uuid.UUID]*models.EvaluationResult
}

func (m *memoryResults) Create(_ context.Context, result *models.EvaluationResult) error {
	m.results[result.ID] = result
	return nil
}

func (m *memoryResults) FindByID(_ context.Context, id uuid.UUID) (*models.EvaluationResult, error) {
	result, ok := m.results[id]
	if !ok {
		return nil, repositories.ErrResultNotFound
	}
	return result, nil
}

type recordingEnqueuer struct {
	payloads []models.JobPayload
	err      error
}

func (r *recordingEnqueuer) EnqueueJob(_ context.Context, payload models.JobPayload) error {
	if r.err != nil {
		return r.err
	}
	r.payloads = append(r.payloads, payload)
	return nil
}

var errDatabaseDown = errors.New("database down")
