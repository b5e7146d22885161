package models

import (
	"time"

	"github.com/google/uuid"
)

type EvaluationStatus string

const (
	StatusQueued     EvaluationStatus = "queued"
	StatusProcessing EvaluationStatus = "processing"
	StatusCompleted  EvaluationStatus = "completed"
	StatusFailed     EvaluationStatus = "failed"
)

// Evaluation is one screening job. ResultID is set only together with
// StatusCompleted.
type Evaluation struct {
	ID                uuid.UUID        `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	JobTitle          string           `gorm:"type:text;not null" json:"job_title"`
	CVDocumentID      uuid.UUID        `gorm:"type:uuid;not null" json:"cv_document_id"`
	ProjectDocumentID uuid.UUID        `gorm:"type:uuid;not null" json:"project_document_id"`
	Status            EvaluationStatus `gorm:"type:text;not null;default:'queued';index" json:"status"`
	ResultID          *uuid.UUID       `gorm:"type:uuid" json:"result_id,omitempty"`
	Attempt           int              `gorm:"not null;default:0" json:"attempt"`
	ErrorMessage      *string          `gorm:"type:text" json:"error_message,omitempty"`
	CreatedAt         time.Time        `gorm:"default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt         time.Time        `gorm:"default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Evaluation) TableName() string {
	return "evaluations"
}
