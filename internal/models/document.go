package models

import (
	"time"

	"github.com/google/uuid"
)

type DocumentType string

const (
	DocumentTypeCV            DocumentType = "cv"
	DocumentTypeProjectReport DocumentType = "project_report"
)

// Corpus categories tag reference chunks in the vector store.
const (
	CategoryJobDescription = "job_description"
	CategoryCVRubric       = "cv_rubric"
	CategoryCaseStudy      = "case_study"
	CategoryProjectRubric  = "project_rubric"
)

// CorpusCategories lists every category the ingestion tool accepts.
var CorpusCategories = []string{
	CategoryJobDescription,
	CategoryCVRubric,
	CategoryCaseStudy,
	CategoryProjectRubric,
}

type Document struct {
	ID               uuid.UUID    `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Filename         string       `gorm:"type:text;not null" json:"filename"`
	OriginalFileName string       `gorm:"type:text" json:"original_filename"`
	Type             DocumentType `gorm:"column:file_type;type:text;not null" json:"type"`
	FilePath         string       `gorm:"type:text;not null" json:"file_path"`
	CreatedAt        time.Time    `gorm:"type:timestamp;default:now()" json:"created_at"`
}

func (Document) TableName() string {
	return "documents"
}
