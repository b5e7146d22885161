package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"alfredoptarigan/cv-screener/internal/config"
	"alfredoptarigan/cv-screener/internal/logger"
	"alfredoptarigan/cv-screener/internal/models"
	"alfredoptarigan/cv-screener/internal/repositories"
)

// Delivery outcomes reported to the DeliveryRecorder.
const (
	DeliveryCompleted = "completed"
	DeliveryRetry     = "retry"
	DeliveryExhausted = "exhausted"
)

// DeliveryRecorder counts queue delivery outcomes.
type DeliveryRecorder interface {
	RecordDelivery(outcome string)
}

type nopDeliveryRecorder struct{}

func (nopDeliveryRecorder) RecordDelivery(string) {}

type Worker interface {
	Start(ctx context.Context)
	Stop()
	EnqueueJob(ctx context.Context, payload models.JobPayload) error
}

type worker struct {
	queue       repositories.QueueRepository
	evaluator   EvaluatorService
	concurrency int
	poll        time.Duration
	lease       time.Duration
	recorder    DeliveryRecorder
	logger      *zap.Logger

	instance string
	wake     chan struct{}
	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewWorker(
	queue repositories.QueueRepository,
	evaluator EvaluatorService,
	workerCfg config.WorkerConfig,
	queueCfg config.QueueConfig,
	recorder DeliveryRecorder,
	log *zap.Logger,
) Worker {
	if workerCfg.Concurrency < 1 {
		workerCfg.Concurrency = 1
	}
	if queueCfg.PollInterval <= 0 {
		queueCfg.PollInterval = 2 * time.Second
	}
	if recorder == nil {
		recorder = nopDeliveryRecorder{}
	}

	return &worker{
		queue:       queue,
		evaluator:   evaluator,
		concurrency: workerCfg.Concurrency,
		poll:        queueCfg.PollInterval,
		lease:       queueCfg.LeaseTimeout,
		recorder:    recorder,
		logger:      logger.OrNop(log),
		instance:    uuid.NewString()[:8],
		wake:        make(chan struct{}, workerCfg.Concurrency),
		stopChan:    make(chan struct{}),
	}
}

// Start implements Worker.
func (w *worker) Start(ctx context.Context) {
	w.logger.Info("🚀 Starting worker", zap.Int("concurrency", w.concurrency))

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.processJobs(ctx, fmt.Sprintf("%s-%d", w.instance, i+1))
	}

	w.wg.Add(1)
	go w.pollQueue(ctx)

	w.logger.Info("✅ Worker started")
}

// Stop implements Worker. In-flight evaluations finish first.
func (w *worker) Stop() {
	w.stopOnce.Do(func() {
		w.logger.Info("🛑 Stopping worker...")
		close(w.stopChan)
		w.wg.Wait()
		w.logger.Info("✅ Worker stopped")
	})
}

// EnqueueJob implements Worker. The payload is durable once it returns nil.
func (w *worker) EnqueueJob(ctx context.Context, payload models.JobPayload) error {
	msg, err := w.queue.Enqueue(ctx, payload)
	if err != nil {
		return err
	}

	w.logger.Info("📥 Job enqueued",
		zap.String(logger.FieldJobID, payload.JobID.String()),
		zap.String("message_id", msg.ID.String()),
	)
	w.nudge()
	return nil
}

func (w *worker) nudge() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *worker) processJobs(ctx context.Context, name string) {
	defer w.wg.Done()
	log := w.logger.With(zap.String(logger.FieldWorker, name))
	log.Debug("👷 Worker loop started")

	for {
		select {
		case <-w.stopChan:
			log.Debug("👷 Worker loop stopped")
			return
		case <-ctx.Done():
			return
		default:
		}

		processed, err := w.RunOnce(ctx, name)
		if err != nil {
			log.Warn("⚠️ Queue iteration failed", zap.Error(err))
		}
		if processed {
			continue
		}

		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		case <-w.wake:
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims one ready message and runs the pipeline for it. It reports
// whether a message was processed, regardless of the outcome.
func (w *worker) RunOnce(ctx context.Context, name string) (bool, error) {
	msg, err := w.queue.Claim(ctx, name)
	if errors.Is(err, repositories.ErrQueueEmpty) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	log := w.logger.With(
		zap.String(logger.FieldWorker, name),
		zap.String(logger.FieldJobID, msg.JobID.String()),
		zap.Int(logger.FieldAttempt, msg.Attempts),
	)

	// Bookkeeping outlives a shutdown-cancelled evaluation.
	bookCtx := context.WithoutCancel(ctx)

	runErr := w.deliver(ctx, msg)
	if runErr == nil {
		w.recorder.RecordDelivery(DeliveryCompleted)
		if err := w.queue.Complete(bookCtx, msg.ID); err != nil {
			return true, fmt.Errorf("failed to complete queue message %s: %w", msg.ID, err)
		}
		log.Info("✅ Delivery completed")
		return true, nil
	}

	retry, err := w.queue.Fail(bookCtx, msg, runErr)
	if err != nil {
		return true, fmt.Errorf("failed to record failure of queue message %s: %w", msg.ID, err)
	}

	if retry {
		w.recorder.RecordDelivery(DeliveryRetry)
		log.Warn("⚠️ Delivery failed, will be redelivered",
			zap.Int("max_attempts", msg.MaxAttempts),
			zap.Error(runErr),
		)
	} else {
		w.recorder.RecordDelivery(DeliveryExhausted)
		log.Error("❌ Delivery failed, attempts exhausted",
			zap.Int("max_attempts", msg.MaxAttempts),
			zap.Error(runErr),
		)
	}
	return true, nil
}

// deliver turns a panic into a delivery error so the message is still
// failed or rescheduled.
func (w *worker) deliver(ctx context.Context, msg *models.QueueMessage) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("delivery panicked: %v", r)
		}
	}()

	payload, err := msg.DecodePayload()
	if err != nil {
		return fmt.Errorf("failed to decode queue payload: %w", err)
	}
	return w.evaluator.EvaluateCandidate(ctx, payload, msg.Attempts)
}

// pollQueue returns abandoned messages to the queue and wakes idle loops.
func (w *worker) pollQueue(ctx context.Context) {
	defer w.wg.Done()
	ticker := time.NewTicker(w.poll)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if w.lease > 0 {
				recovered, err := w.queue.RecoverStale(ctx, w.lease)
				if err != nil {
					w.logger.Warn("⚠️ Failed to recover stale queue messages", zap.Error(err))
				} else if recovered.Requeued > 0 || recovered.Exhausted > 0 {
					w.logger.Info("📋 Recovered stale queue messages",
						zap.Int64("requeued", recovered.Requeued),
						zap.Int64("exhausted", recovered.Exhausted),
					)
					for i := int64(0); i < recovered.Exhausted; i++ {
						w.recorder.RecordDelivery(DeliveryExhausted)
					}
				}
			}
			w.nudge()
		}
	}
}
