package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"alfredoptarigan/cv-screener/internal/models"
)

var (
	ErrEvaluationNotFound = errors.New("evaluation not found")
	// ErrAlreadyCompleted is returned when a transition would touch a job
	// that already holds a result.
	ErrAlreadyCompleted = errors.New("evaluation already completed")
)

type EvaluationRepository interface {
	Create(ctx context.Context, eval *models.Evaluation) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Evaluation, error)
	MarkProcessing(ctx context.Context, id uuid.UUID, attempt int) error
	MarkFailed(ctx context.Context, id uuid.UUID, attempt int, errorMsg string) error
	Complete(ctx context.Context, id uuid.UUID, result *models.EvaluationResult) error
}

type evaluationRepository struct {
	db *gorm.DB
}

func NewEvaluationRepository(db *gorm.DB) EvaluationRepository {
	return &evaluationRepository{db: db}
}

// Create implements EvaluationRepository.
func (r *evaluationRepository) Create(ctx context.Context, eval *models.Evaluation) error {
	if eval.Status == "" {
		eval.Status = models.StatusQueued
	}
	if eval.ID == uuid.Nil {
		eval.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(eval).Error; err != nil {
		return fmt.Errorf("failed to create evaluation: %w", err)
	}
	return nil
}

// FindByID implements EvaluationRepository.
func (r *evaluationRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Evaluation, error) {
	var eval models.Evaluation
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&eval).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrEvaluationNotFound, id)
		}
		return nil, fmt.Errorf("failed to find evaluation: %w", err)
	}
	return &eval, nil
}

// MarkProcessing implements EvaluationRepository. A redelivered job moves
// from failed back to processing; a completed job is never touched.
func (r *evaluationRepository) MarkProcessing(ctx context.Context, id uuid.UUID, attempt int) error {
	return r.transition(ctx, id, map[string]any{
		"status":        models.StatusProcessing,
		"attempt":       attempt,
		"error_message": nil,
		"updated_at":    time.Now(),
	})
}

// MarkFailed implements EvaluationRepository.
func (r *evaluationRepository) MarkFailed(ctx context.Context, id uuid.UUID, attempt int, errorMsg string) error {
	return r.transition(ctx, id, map[string]any{
		"status":        models.StatusFailed,
		"attempt":       attempt,
		"error_message": errorMsg,
		"updated_at":    time.Now(),
	})
}

// Complete implements EvaluationRepository. The result row and the status
// change commit together or not at all.
func (r *evaluationRepository) Complete(ctx context.Context, id uuid.UUID, result *models.EvaluationResult) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := NewResultRepository(tx).Create(ctx, result); err != nil {
			return err
		}

		return (&evaluationRepository{db: tx}).transition(ctx, id, map[string]any{
			"status":        models.StatusCompleted,
			"result_id":     result.ID,
			"error_message": nil,
			"updated_at":    time.Now(),
		})
	})
	if err != nil {
		return fmt.Errorf("failed to complete evaluation: %w", err)
	}
	return nil
}

func (r *evaluationRepository) transition(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.Evaluation{}).
		Where("id = ? AND status <> ?", id, models.StatusCompleted).
		Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("failed to update evaluation: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Evaluation{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to check evaluation: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: %s", ErrEvaluationNotFound, id)
	}
	return fmt.Errorf("%w: %s", ErrAlreadyCompleted, id)
}
