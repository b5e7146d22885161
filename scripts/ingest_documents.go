package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"alfredoptarigan/cv-screener/internal/config"
	"alfredoptarigan/cv-screener/internal/logger"
	"alfredoptarigan/cv-screener/internal/models"
	"alfredoptarigan/cv-screener/internal/services"
)

// defaultCorpus is ingested when no --file is given.
var defaultCorpus = []services.ReferenceDocument{
	{Path: "Job_Description.pdf", Category: models.CategoryJobDescription, Name: "Job Description - Product Engineer (Backend)"},
	{Path: "cv_scoring_rubric.pdf", Category: models.CategoryCVRubric, Name: "CV Scoring Rubric"},
	{Path: "case_study_brief.pdf", Category: models.CategoryCaseStudy, Name: "Case Study Brief"},
	{Path: "project_scoring_rubric.pdf", Category: models.CategoryProjectRubric, Name: "Project Scoring Rubric"},
}

var (
	corpusDir    string
	filePath     string
	category     string
	chunkSize    int
	chunkOverlap int

	rootCmd = &cobra.Command{
		Use:   "ingest-documents",
		Short: "Ingest reference PDFs into the vector store",
		Long: "Extract, chunk, embed and store reference documents used as evaluation context. " +
			"Without --file the default corpus under --dir is ingested.",
		SilenceUsage: true,
		RunE:         runIngest,
	}
)

func init() {
	rootCmd.Flags().StringVar(&corpusDir, "dir", "./reference_docs", "directory holding the default corpus")
	rootCmd.Flags().StringVarP(&filePath, "file", "f", "", "single PDF to ingest")
	rootCmd.Flags().StringVarP(&category, "category", "c", "", "category of --file: "+strings.Join(models.CorpusCategories, ", "))
	rootCmd.Flags().IntVar(&chunkSize, "chunk-size", 1000, "maximum chunk size in characters")
	rootCmd.Flags().IntVar(&chunkOverlap, "chunk-overlap", 200, "characters repeated between consecutive chunks")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runIngest(cmd *cobra.Command, _ []string) error {
	documents, err := selectDocuments()
	if err != nil {
		return err
	}

	cfg, _ := config.Load()

	zl, err := logger.New(cfg.Log.JSON, cfg.Log.Debug)
	if err != nil {
		log.Fatalf("❌ Failed to initialize logger: %v", err)
	}
	defer func() { _ = zl.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ingestor, closeStore, err := buildIngestor(ctx, cfg, zl)
	if err != nil {
		return err
	}
	defer closeStore()

	zl.Info("🚀 Starting document ingestion", zap.Int("documents", len(documents)))

	var failed int
	for _, doc := range documents {
		if _, err := os.Stat(doc.Path); os.IsNotExist(err) {
			zl.Warn("⚠️ File not found, skipping", zap.String("path", doc.Path))
			failed++
			continue
		}

		if _, err := ingestor.Ingest(ctx, doc); err != nil {
			zl.Error("❌ Failed to ingest document", zap.String("document", doc.Name), zap.Error(err))
			failed++
		}
	}

	zl.Info("📊 Ingestion summary",
		zap.Int("succeeded", len(documents)-failed),
		zap.Int("failed", failed),
	)

	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed to ingest", failed, len(documents))
	}
	return nil
}

func selectDocuments() ([]services.ReferenceDocument, error) {
	if filePath == "" {
		docs := make([]services.ReferenceDocument, len(defaultCorpus))
		for i, d := range defaultCorpus {
			d.Path = filepath.Join(corpusDir, d.Path)
			docs[i] = d
		}
		return docs, nil
	}

	if category == "" {
		return nil, fmt.Errorf("--category is required with --file")
	}
	return []services.ReferenceDocument{{
		Path:     filePath,
		Category: category,
		Name:     filepath.Base(filePath),
	}}, nil
}

func buildIngestor(ctx context.Context, cfg *config.Config, zl *zap.Logger) (services.Ingestor, func(), error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	client, err := services.NewGeminiClient(ctx, cfg.Gemini.APIKey)
	if err != nil {
		return nil, nil, err
	}
	embedder := services.NewEmbeddingService(client.Models, cfg.Gemini.EmbeddingModel, cfg.Gemini.EmbeddingDimension)

	store, err := services.NewQdrantService(cfg.Qdrant, zl)
	if err != nil {
		return nil, nil, err
	}
	if err := store.InitCollection(ctx); err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	ingestor := services.NewIngestor(
		services.NewPDFParserService(),
		services.NewTextChunker(chunkSize, chunkOverlap),
		embedder,
		store,
		zl,
	)
	return ingestor, func() { _ = store.Close() }, nil
}
