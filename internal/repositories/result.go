package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"alfredoptarigan/cv-screener/internal/models"
)

var ErrResultNotFound = errors.New("evaluation result not found")

// ResultRepository only creates and reads; results are immutable.
type ResultRepository interface {
	Create(ctx context.Context, result *models.EvaluationResult) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.EvaluationResult, error)
}

type resultRepository struct {
	db *gorm.DB
}

// NewResultRepository accepts either the root handle or a transaction.
func NewResultRepository(db *gorm.DB) ResultRepository {
	return &resultRepository{db: db}
}

// Create implements ResultRepository.
func (r *resultRepository) Create(ctx context.Context, result *models.EvaluationResult) error {
	if result.ID == uuid.Nil {
		result.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(result).Error; err != nil {
		return fmt.Errorf("failed to create evaluation result: %w", err)
	}
	return nil
}

// FindByID implements ResultRepository.
func (r *resultRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.EvaluationResult, error) {
	var result models.EvaluationResult
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&result).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrResultNotFound, id)
		}
		return nil, fmt.Errorf("failed to find evaluation result: %w", err)
	}
	return &result, nil
}
