package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"alfredoptarigan/cv-screener/internal/logger"
	"alfredoptarigan/cv-screener/internal/models"
	"alfredoptarigan/cv-screener/internal/repositories"
)

// JobEnqueuer accepts a job for asynchronous evaluation.
type JobEnqueuer interface {
	EnqueueJob(ctx context.Context, payload models.JobPayload) error
}

type EvaluationHandler struct {
	evalRepo repositories.EvaluationRepository
	docRepo  repositories.DocumentRepository
	queue    JobEnqueuer
	logger   *zap.Logger
}

func NewEvaluationHandler(
	evalRepo repositories.EvaluationRepository,
	docRepo repositories.DocumentRepository,
	queue JobEnqueuer,
	log *zap.Logger,
) *EvaluationHandler {
	return &EvaluationHandler{
		evalRepo: evalRepo,
		docRepo:  docRepo,
		queue:    queue,
		logger:   logger.OrNop(log),
	}
}

// HandleEvaluate handles POST /evaluate
func (h *EvaluationHandler) HandleEvaluate(c *fiber.Ctx) error {
	var req models.EvaluateRequest

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "invalid request payload",
		})
	}

	if err := req.Validate(); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error:   "invalid request",
			Details: models.ValidationDetails(err),
		})
	}

	cvDocID := uuid.MustParse(req.CVDocumentID)
	projectDocID := uuid.MustParse(req.ProjectDocumentID)
	ctx := c.UserContext()

	if status, err := h.requireDocument(ctx, cvDocID, models.DocumentTypeCV); err != nil {
		return c.Status(status).JSON(models.ErrorResponse{Error: "CV document not found", Details: err.Error()})
	}
	if status, err := h.requireDocument(ctx, projectDocID, models.DocumentTypeProjectReport); err != nil {
		return c.Status(status).JSON(models.ErrorResponse{Error: "project document not found", Details: err.Error()})
	}

	evaluation := &models.Evaluation{
		ID:                uuid.New(),
		JobTitle:          req.JobTitle,
		CVDocumentID:      cvDocID,
		ProjectDocumentID: projectDocID,
		Status:            models.StatusQueued,
	}

	if err := h.evalRepo.Create(ctx, evaluation); err != nil {
		h.logger.Error("❌ Failed to create evaluation", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error: "failed to create evaluation job",
		})
	}

	payload := models.JobPayload{
		JobID:            evaluation.ID,
		JobTitle:         evaluation.JobTitle,
		CVDocumentID:     cvDocID,
		ReportDocumentID: projectDocID,
	}

	if err := h.queue.EnqueueJob(ctx, payload); err != nil {
		h.logger.Error("❌ Failed to enqueue evaluation",
			zap.String(logger.FieldJobID, evaluation.ID.String()),
			zap.Error(err),
		)
		// A job that never reached the queue would stay queued forever.
		if markErr := h.evalRepo.MarkFailed(context.WithoutCancel(ctx), evaluation.ID, 0, "failed to enqueue job"); markErr != nil {
			h.logger.Warn("⚠️ Failed to mark unqueued evaluation", zap.Error(markErr))
		}
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error: "failed to enqueue evaluation job",
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(models.EvaluateResponse{
		ID:     evaluation.ID.String(),
		Status: string(models.StatusQueued),
	})
}

func (h *EvaluationHandler) requireDocument(ctx context.Context, id uuid.UUID, want models.DocumentType) (int, error) {
	doc, err := h.docRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrDocumentNotFound) {
			return fiber.StatusNotFound, err
		}
		return fiber.StatusInternalServerError, err
	}
	if doc.Type != want {
		return fiber.StatusNotFound, fmt.Errorf("document %s is not a %s", id, want)
	}
	return 0, nil
}
