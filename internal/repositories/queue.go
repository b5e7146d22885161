package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"alfredoptarigan/cv-screener/internal/models"
)

// ErrQueueEmpty is returned by Claim when no message is ready.
var ErrQueueEmpty = errors.New("no queue message ready")

type QueueRepository interface {
	Enqueue(ctx context.Context, payload models.JobPayload) (*models.QueueMessage, error)
	Claim(ctx context.Context, workerID string) (*models.QueueMessage, error)
	Complete(ctx context.Context, id uuid.UUID) error
	// Fail reschedules the message or, once its attempts are used up,
	// parks it as failed. It reports whether another delivery will follow.
	Fail(ctx context.Context, msg *models.QueueMessage, cause error) (bool, error)
	RecoverStale(ctx context.Context, leaseTimeout time.Duration) (StaleRecovery, error)
}

// StaleRecovery counts the expired leases handled by RecoverStale.
type StaleRecovery struct {
	Requeued  int64
	Exhausted int64
}

// LeaseExpiredError is recorded on messages and jobs whose final attempt
// never reported back.
const LeaseExpiredError = "lease expired: consumer stopped before finishing the final attempt"

type queueRepository struct {
	db          *gorm.DB
	maxAttempts int
	backoffBase time.Duration
	now         func() time.Time
}

func NewQueueRepository(db *gorm.DB, maxAttempts int, backoffBase time.Duration) QueueRepository {
	return &queueRepository{
		db:          db,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
		now:         time.Now,
	}
}

// QueueBackoff is the delay before redelivery after the given failed
// attempt: base, 2*base, 4*base, ...
func QueueBackoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base * time.Duration(1<<uint(attempt-1))
}

// NextDelivery decides the state of msg after a failed delivery at now:
// pending again after the backoff while attempts remain, failed otherwise.
func NextDelivery(msg *models.QueueMessage, now time.Time, base time.Duration) (models.QueueStatus, time.Time) {
	if msg.Attempts < msg.MaxAttempts {
		return models.QueueStatusPending, now.Add(QueueBackoff(base, msg.Attempts))
	}
	return models.QueueStatusFailed, msg.RunAfter
}

// Enqueue implements QueueRepository.
func (q *queueRepository) Enqueue(ctx context.Context, payload models.JobPayload) (*models.QueueMessage, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode queue payload: %w", err)
	}

	msg := &models.QueueMessage{
		JobID:       payload.JobID,
		Payload:     raw,
		Status:      models.QueueStatusPending,
		MaxAttempts: q.maxAttempts,
		RunAfter:    q.now(),
	}
	if err := q.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, fmt.Errorf("failed to enqueue job %s: %w", payload.JobID, err)
	}

	return msg, nil
}

// Claim implements QueueRepository. SKIP LOCKED keeps concurrent consumers
// off each other's rows.
func (q *queueRepository) Claim(ctx context.Context, workerID string) (*models.QueueMessage, error) {
	var msg models.QueueMessage

	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND run_after <= ?", models.QueueStatusPending, q.now()).
			Order("run_after ASC").
			First(&msg).Error
		if err != nil {
			return err
		}

		msg.Attempts++
		msg.Status = models.QueueStatusRunning
		msg.LockedBy = &workerID

		return tx.Model(&models.QueueMessage{}).
			Where("id = ?", msg.ID).
			Updates(map[string]any{
				"status":     msg.Status,
				"attempts":   msg.Attempts,
				"locked_by":  workerID,
				"updated_at": q.now(),
			}).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQueueEmpty
		}
		return nil, fmt.Errorf("failed to claim queue message: %w", err)
	}

	return &msg, nil
}

// Complete implements QueueRepository.
func (q *queueRepository) Complete(ctx context.Context, id uuid.UUID) error {
	if err := q.db.WithContext(ctx).Delete(&models.QueueMessage{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to complete queue message: %w", err)
	}
	return nil
}

// Fail implements QueueRepository.
func (q *queueRepository) Fail(ctx context.Context, msg *models.QueueMessage, cause error) (bool, error) {
	now := q.now()
	status, runAfter := NextDelivery(msg, now, q.backoffBase)

	updates := map[string]any{
		"status":     status,
		"last_error": cause.Error(),
		"locked_by":  nil,
		"updated_at": now,
	}
	if status == models.QueueStatusPending {
		updates["run_after"] = runAfter
	}

	err := q.db.WithContext(ctx).Model(&models.QueueMessage{}).
		Where("id = ?", msg.ID).
		Updates(updates).Error
	if err != nil {
		return false, fmt.Errorf("failed to record queue failure: %w", err)
	}

	return status == models.QueueStatusPending, nil
}

// RecoverStale implements QueueRepository. Rows left running by a crashed
// consumer go back to pending while attempts remain; the attempt they used
// stays counted. Rows whose final attempt expired are parked as failed
// together with their job.
func (q *queueRepository) RecoverStale(ctx context.Context, leaseTimeout time.Duration) (StaleRecovery, error) {
	var out StaleRecovery
	now := q.now()
	cutoff := now.Add(-leaseTimeout)

	err := q.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var exhausted []models.QueueMessage
		err := tx.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
			Where("status = ? AND updated_at < ? AND attempts >= max_attempts", models.QueueStatusRunning, cutoff).
			Find(&exhausted).Error
		if err != nil {
			return err
		}

		if len(exhausted) > 0 {
			ids := make([]uuid.UUID, len(exhausted))
			jobIDs := make([]uuid.UUID, len(exhausted))
			for i, m := range exhausted {
				ids[i] = m.ID
				jobIDs[i] = m.JobID
			}

			res := tx.Model(&models.QueueMessage{}).
				Where("id IN ?", ids).
				Updates(map[string]any{
					"status":     models.QueueStatusFailed,
					"last_error": LeaseExpiredError,
					"locked_by":  nil,
					"updated_at": now,
				})
			if res.Error != nil {
				return res.Error
			}
			out.Exhausted = res.RowsAffected

			err = tx.Model(&models.Evaluation{}).
				Where("id IN ? AND status <> ?", jobIDs, models.StatusCompleted).
				Updates(map[string]any{
					"status":        models.StatusFailed,
					"error_message": LeaseExpiredError,
					"updated_at":    now,
				}).Error
			if err != nil {
				return err
			}
		}

		res := tx.Model(&models.QueueMessage{}).
			Where("status = ? AND updated_at < ? AND attempts < max_attempts", models.QueueStatusRunning, cutoff).
			Updates(map[string]any{
				"status":     models.QueueStatusPending,
				"locked_by":  nil,
				"run_after":  now,
				"updated_at": now,
			})
		if res.Error != nil {
			return res.Error
		}
		out.Requeued = res.RowsAffected
		return nil
	})
	if err != nil {
		return StaleRecovery{}, fmt.Errorf("failed to recover stale queue messages: %w", err)
	}
	return out, nil
}
