package services

import (
	"bytes"
	"mime/multipart"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfredoptarigan/cv-screener/internal/config"
	"alfredoptarigan/cv-screener/internal/models"
)

func multipartFile(t *testing.T, name string, content []byte) *multipart.FileHeader {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("cv", name)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })

	return form.File["cv"][0]
}

func TestSaveUploadStoresPDF(t *testing.T) {
	dir := t.TempDir()
	svc := NewStorageService(config.StorageConfig{UploadPath: dir, MaxFileSize: 1024})
	require.NoError(t, svc.EnsureUploadDir())

	content := []byte("%PDF-1.4\nfake body")
	stored, err := svc.SaveUpload(multipartFile(t, "Resume.PDF", content), models.DocumentTypeCV)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(stored.Filename, "cv_"))
	assert.Equal(t, "Resume.PDF", stored.OriginalName)
	assert.Equal(t, int64(len(content)), stored.Size)

	onDisk, err := os.ReadFile(stored.Path)
	require.NoError(t, err)
	assert.Equal(t, content, onDisk)

	require.NoError(t, svc.Delete(stored.Path))
	require.NoError(t, svc.Delete(stored.Path), "deleting twice is fine")
}

func TestSaveUploadRejects(t *testing.T) {
	svc := NewStorageService(config.StorageConfig{UploadPath: t.TempDir(), MaxFileSize: 16})

	_, err := svc.SaveUpload(multipartFile(t, "resume.docx", []byte("%PDF-1.4")), models.DocumentTypeCV)
	assert.ErrorIs(t, err, ErrNotPDF)

	_, err = svc.SaveUpload(multipartFile(t, "resume.pdf", []byte("not a pdf at all")), models.DocumentTypeCV)
	assert.ErrorIs(t, err, ErrNotPDF)

	_, err = svc.SaveUpload(multipartFile(t, "resume.pdf", []byte("%PDF-1.4 with a body that is too long")), models.DocumentTypeProjectReport)
	assert.ErrorIs(t, err, ErrFileTooLarge)
}
