package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"alfredoptarigan/cv-screener/internal/logger"
	"alfredoptarigan/cv-screener/internal/models"
	"alfredoptarigan/cv-screener/internal/repositories"
)

type ResultHandler struct {
	evalRepo   repositories.EvaluationRepository
	resultRepo repositories.ResultRepository
	logger     *zap.Logger
}

func NewResultHandler(
	evalRepo repositories.EvaluationRepository,
	resultRepo repositories.ResultRepository,
	log *zap.Logger,
) *ResultHandler {
	return &ResultHandler{
		evalRepo:   evalRepo,
		resultRepo: resultRepo,
		logger:     logger.OrNop(log),
	}
}

// HandleGetResult handles GET /result/:id
func (h *ResultHandler) HandleGetResult(c *fiber.Ctx) error {
	evalID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "invalid evaluation ID format",
		})
	}

	ctx := c.UserContext()

	evaluation, err := h.evalRepo.FindByID(ctx, evalID)
	if err != nil {
		if errors.Is(err, repositories.ErrEvaluationNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{
				Error: "evaluation not found",
			})
		}
		h.logger.Error("❌ Failed to load evaluation", zap.String(logger.FieldJobID, evalID.String()), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
			Error: "failed to load evaluation",
		})
	}

	var result *models.EvaluationResult
	if evaluation.Status == models.StatusCompleted && evaluation.ResultID != nil {
		result, err = h.resultRepo.FindByID(ctx, *evaluation.ResultID)
		if err != nil {
			h.logger.Error("❌ Failed to load evaluation result", zap.String(logger.FieldJobID, evalID.String()), zap.Error(err))
			return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse{
				Error: "failed to load evaluation result",
			})
		}
	}

	return c.JSON(models.NewResultResponse(evaluation, result))
}
