package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type QueueStatus string

const (
	QueueStatusPending QueueStatus = "pending"
	QueueStatusRunning QueueStatus = "running"
	QueueStatusFailed  QueueStatus = "failed"
)

// JobPayload is the message body carried through the queue.
type JobPayload struct {
	JobID            uuid.UUID `json:"jobId"`
	JobTitle         string    `json:"jobTitle"`
	CVDocumentID     uuid.UUID `json:"cvDocumentId"`
	ReportDocumentID uuid.UUID `json:"reportDocumentId"`
}

// QueueMessage is a durable delivery record. Completed deliveries are
// deleted; exhausted ones stay with status failed.
type QueueMessage struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	JobID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	Payload     json.RawMessage `gorm:"type:jsonb;not null"`
	Status      QueueStatus     `gorm:"type:text;not null;default:'pending';index:idx_queue_ready,priority:1"`
	Attempts    int             `gorm:"not null;default:0"`
	MaxAttempts int             `gorm:"not null;default:3"`
	RunAfter    time.Time       `gorm:"not null;index:idx_queue_ready,priority:2"`
	LastError   *string         `gorm:"type:text"`
	LockedBy    *string         `gorm:"type:text"`
	CreatedAt   time.Time       `gorm:"default:CURRENT_TIMESTAMP"`
	UpdatedAt   time.Time       `gorm:"default:CURRENT_TIMESTAMP"`
}

func (QueueMessage) TableName() string {
	return "evaluation_queue"
}

// DecodePayload unmarshals the stored payload.
func (m *QueueMessage) DecodePayload() (JobPayload, error) {
	var p JobPayload
	err := json.Unmarshal(m.Payload, &p)
	return p, err
}
