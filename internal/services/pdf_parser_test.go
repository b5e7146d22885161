package services

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	raw := "  John   Doe\r\n\tBackend\t Engineer  \r\n\r\n\r\n\r\nExperience\n   \n  \nGo, Postgres  "

	assert.Equal(t, "John Doe\nBackend Engineer\n\nExperience\n\nGo, Postgres", CleanText(raw))
}

func TestSplitSections(t *testing.T) {
	text := strings.Join([]string{
		"Jane Candidate",
		"jane@example.com",
		"Professional Summary",
		"Backend engineer with 6 years in Go.",
		"Work Experience",
		"Acme Corp - Senior Engineer",
		"Built a queue processing 1M jobs/day.",
		"Education",
		"BSc Computer Science",
		"Technical Skills",
		"Go, Kubernetes, PostgreSQL",
	}, "\n")

	sections := SplitSections(text, CVSectionHeaders)

	assert.Equal(t, "Jane Candidate\njane@example.com", sections["general"])
	assert.Equal(t, "Backend engineer with 6 years in Go.", sections["summary"])
	assert.Equal(t, "Acme Corp - Senior Engineer\nBuilt a queue processing 1M jobs/day.", sections["experience"])
	assert.Equal(t, "BSc Computer Science", sections["education"])
	assert.Equal(t, "Go, Kubernetes, PostgreSQL", sections["skills"])
	assert.NotContains(t, sections, "projects")
}

func TestSplitSectionsWithoutHeadings(t *testing.T) {
	sections := SplitSections("just some text\nmore text", CVSectionHeaders)

	assert.Equal(t, map[string]string{"general": "just some text\nmore text"}, sections)
}

func TestValidatePDFHeader(t *testing.T) {
	assert.NoError(t, ValidatePDFHeader(strings.NewReader("%PDF-1.7\n...")))
	assert.ErrorIs(t, ValidatePDFHeader(strings.NewReader("PK\x03\x04zip")), ErrNotPDF)
	assert.ErrorIs(t, ValidatePDFHeader(strings.NewReader("")), ErrNotPDF)
	assert.ErrorIs(t, ValidatePDFHeader(strings.NewReader("%PD")), ErrNotPDF)
}

func TestValidatePDFRejectsNonPDFFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "resume.pdf")
	require.NoError(t, os.WriteFile(path, []byte("plain text pretending to be a pdf"), 0o644))

	err := NewPDFParserService().ValidatePDF(path)
	assert.ErrorIs(t, err, ErrNotPDF)
}

func TestExtractTextMissingFile(t *testing.T) {
	_, err := NewPDFParserService().ExtractText(filepath.Join(t.TempDir(), "missing.pdf"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
