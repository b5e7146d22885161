package services

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"alfredoptarigan/cv-screener/internal/config"
	"alfredoptarigan/cv-screener/internal/models"
)

// ErrFileTooLarge marks uploads above the configured size limit.
var ErrFileTooLarge = errors.New("file too large")

type StorageService interface {
	EnsureUploadDir() error
	SaveUpload(file *multipart.FileHeader, docType models.DocumentType) (*StoredFile, error)
	Delete(path string) error
}

// StoredFile describes an accepted upload on disk.
type StoredFile struct {
	Filename     string
	OriginalName string
	Path         string
	Size         int64
}

type storageService struct {
	uploadPath  string
	maxFileSize int64
}

func NewStorageService(cfg config.StorageConfig) StorageService {
	return &storageService{
		uploadPath:  cfg.UploadPath,
		maxFileSize: cfg.MaxFileSize,
	}
}

func (s *storageService) EnsureUploadDir() error {
	if err := os.MkdirAll(s.uploadPath, 0o755); err != nil {
		return fmt.Errorf("failed to create upload directory: %w", err)
	}
	return nil
}

// SaveUpload accepts only PDF content within the size limit.
func (s *storageService) SaveUpload(file *multipart.FileHeader, docType models.DocumentType) (*StoredFile, error) {
	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".pdf" {
		return nil, fmt.Errorf("%w: invalid file extension %q", ErrNotPDF, ext)
	}
	if s.maxFileSize > 0 && file.Size > s.maxFileSize {
		return nil, fmt.Errorf("%w: %s exceeds the %d byte limit", ErrFileTooLarge, file.Filename, s.maxFileSize)
	}

	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open uploaded file: %w", err)
	}
	defer src.Close()

	if err := ValidatePDFHeader(src); err != nil {
		return nil, err
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind uploaded file: %w", err)
	}

	filename := fmt.Sprintf("%s_%s%s", docType, uuid.New().String(), ext)
	path := filepath.Join(s.uploadPath, filename)

	dst, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create destination file: %w", err)
	}
	defer dst.Close()

	written, err := io.Copy(dst, src)
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	return &StoredFile{
		Filename:     filename,
		OriginalName: file.Filename,
		Path:         path,
		Size:         written,
	}, nil
}

func (s *storageService) Delete(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}
