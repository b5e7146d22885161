package models

import (
	"time"

	"github.com/google/uuid"
)

// EvaluationResult is written once, in the same transaction that completes
// its evaluation, and never updated.
type EvaluationResult struct {
	ID              uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	CVMatchRate     float64   `gorm:"type:decimal(3,2);not null" json:"cv_match_rate"`
	CVFeedback      string    `gorm:"type:text;not null" json:"cv_feedback"`
	ProjectScore    float64   `gorm:"type:decimal(3,2);not null" json:"project_score"`
	ProjectFeedback string    `gorm:"type:text;not null" json:"project_feedback"`
	OverallSummary  string    `gorm:"type:text;not null" json:"overall_summary"`
	OverallScore    float64   `gorm:"type:decimal(3,2);not null" json:"overall_score"`
	CreatedAt       time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (EvaluationResult) TableName() string {
	return "evaluation_results"
}
