package main

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alfredoptarigan/cv-screener/internal/models"
)

func TestSelectDocumentsDefaultCorpus(t *testing.T) {
	corpusDir, filePath, category = "/corpus", "", ""

	docs, err := selectDocuments()
	require.NoError(t, err)

	require.Len(t, docs, len(defaultCorpus))
	seen := map[string]bool{}
	for _, d := range docs {
		assert.Equal(t, "/corpus", filepath.Dir(d.Path))
		seen[d.Category] = true
	}
	for _, c := range models.CorpusCategories {
		assert.True(t, seen[c], "default corpus covers %s", c)
	}
	assert.Equal(t, "Job_Description.pdf", defaultCorpus[0].Path, "defaults are not rewritten")
}

func TestSelectDocumentsSingleFile(t *testing.T) {
	corpusDir, filePath, category = "/corpus", "/tmp/brief.pdf", ""

	_, err := selectDocuments()
	assert.Error(t, err)

	category = models.CategoryCaseStudy
	docs, err := selectDocuments()
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "brief.pdf", docs[0].Name)
	assert.Equal(t, models.CategoryCaseStudy, docs[0].Category)
}
