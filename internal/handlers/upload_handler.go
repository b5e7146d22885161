package handlers

import (
	"errors"
	"mime/multipart"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"alfredoptarigan/cv-screener/internal/logger"
	"alfredoptarigan/cv-screener/internal/models"
	"alfredoptarigan/cv-screener/internal/repositories"
	"alfredoptarigan/cv-screener/internal/services"
)

type UploadHandler struct {
	docRepo        repositories.DocumentRepository
	storageService services.StorageService
	logger         *zap.Logger
}

func NewUploadHandler(
	docRepo repositories.DocumentRepository,
	storageService services.StorageService,
	log *zap.Logger,
) *UploadHandler {
	return &UploadHandler{
		docRepo:        docRepo,
		storageService: storageService,
		logger:         logger.OrNop(log),
	}
}

// HandleUpload handles POST /upload. Either form field may be sent alone.
func (h *UploadHandler) HandleUpload(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "failed to parse multipart form",
		})
	}

	var resp models.UploadResponse

	if file := firstFile(form, string(models.DocumentTypeCV)); file != nil {
		uploaded, status, err := h.store(c, file, models.DocumentTypeCV)
		if err != nil {
			return c.Status(status).JSON(models.ErrorResponse{Error: "failed to upload CV", Details: err.Error()})
		}
		resp.CV = uploaded
	}

	if file := firstFile(form, string(models.DocumentTypeProjectReport)); file != nil {
		uploaded, status, err := h.store(c, file, models.DocumentTypeProjectReport)
		if err != nil {
			return c.Status(status).JSON(models.ErrorResponse{Error: "failed to upload project report", Details: err.Error()})
		}
		resp.ProjectReport = uploaded
	}

	if resp.CV == nil && resp.ProjectReport == nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse{
			Error: "no files uploaded, send 'cv' and/or 'project_report' as PDF files",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *UploadHandler) store(c *fiber.Ctx, file *multipart.FileHeader, docType models.DocumentType) (*models.UploadedFile, int, error) {
	stored, err := h.storageService.SaveUpload(file, docType)
	if err != nil {
		if errors.Is(err, services.ErrNotPDF) || errors.Is(err, services.ErrFileTooLarge) {
			return nil, fiber.StatusBadRequest, err
		}
		h.logger.Error("❌ Failed to store upload", zap.String("file", file.Filename), zap.Error(err))
		return nil, fiber.StatusInternalServerError, err
	}

	doc := &models.Document{
		Filename:         stored.Filename,
		OriginalFileName: stored.OriginalName,
		Type:             docType,
		FilePath:         stored.Path,
	}

	if err := h.docRepo.Create(c.UserContext(), doc); err != nil {
		// The record is the only reference to the file.
		if delErr := h.storageService.Delete(stored.Path); delErr != nil {
			h.logger.Warn("⚠️ Failed to remove orphaned upload", zap.String("path", stored.Path), zap.Error(delErr))
		}
		h.logger.Error("❌ Failed to save document record", zap.Error(err))
		return nil, fiber.StatusInternalServerError, err
	}

	h.logger.Info("📄 Document uploaded",
		zap.String("document_id", doc.ID.String()),
		zap.String("type", string(docType)),
		zap.Int64("size", stored.Size),
	)

	return &models.UploadedFile{
		ID:           doc.ID.String(),
		Filename:     doc.Filename,
		OriginalName: doc.OriginalFileName,
		FileType:     string(doc.Type),
	}, fiber.StatusCreated, nil
}

func firstFile(form *multipart.Form, field string) *multipart.FileHeader {
	if files, ok := form.File[field]; ok && len(files) > 0 {
		return files[0]
	}
	return nil
}
