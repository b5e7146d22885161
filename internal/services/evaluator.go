package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/genai"

	"alfredoptarigan/cv-screener/internal/logger"
	"alfredoptarigan/cv-screener/internal/models"
	"alfredoptarigan/cv-screener/internal/repositories"
	"alfredoptarigan/cv-screener/internal/scoring"
)

// Stage labels used in logs and metrics.
const (
	StageCV      = "cv_evaluation"
	StageProject = "project_evaluation"
	StageSummary = "final_summary"
)

const (
	evaluationTemperature = 0.3
	summaryTemperature    = 0.4
	contextTopK           = 5
)

// PipelineRecorder observes whole pipeline runs.
type PipelineRecorder interface {
	ObservePipeline(status string, duration time.Duration)
}

type nopPipelineRecorder struct{}

func (nopPipelineRecorder) ObservePipeline(string, time.Duration) {}

type EvaluatorService interface {
	// EvaluateCandidate runs the full pipeline for one delivery of payload.
	// A job that is already completed is left untouched.
	EvaluateCandidate(ctx context.Context, payload models.JobPayload, attempt int) error
}

type evaluatorService struct {
	evalRepo      repositories.EvaluationRepository
	docRepo       repositories.DocumentRepository
	pdfParser     PDFParserService
	rag           RAGService
	llm           LLMService
	promptBuilder *PromptBuilder
	recorder      PipelineRecorder
	logger        *zap.Logger
}

func NewEvaluatorService(
	evalRepo repositories.EvaluationRepository,
	docRepo repositories.DocumentRepository,
	pdfParser PDFParserService,
	rag RAGService,
	llm LLMService,
	recorder PipelineRecorder,
	log *zap.Logger,
) EvaluatorService {
	if recorder == nil {
		recorder = nopPipelineRecorder{}
	}
	return &evaluatorService{
		evalRepo:      evalRepo,
		docRepo:       docRepo,
		pdfParser:     pdfParser,
		rag:           rag,
		llm:           llm,
		promptBuilder: NewPromptBuilder(),
		recorder:      recorder,
		logger:        logger.OrNop(log),
	}
}

// EvaluateCandidate implements EvaluatorService.
func (e *evaluatorService) EvaluateCandidate(ctx context.Context, payload models.JobPayload, attempt int) error {
	log := e.logger.With(
		zap.String(logger.FieldJobID, payload.JobID.String()),
		zap.Int(logger.FieldAttempt, attempt),
	)

	job, err := e.evalRepo.FindByID(ctx, payload.JobID)
	if err != nil {
		return fmt.Errorf("failed to load evaluation: %w", err)
	}
	if job.Status == models.StatusCompleted {
		log.Info("⏭️ Evaluation already completed, skipping delivery")
		return nil
	}

	if err := e.evalRepo.MarkProcessing(ctx, payload.JobID, attempt); err != nil {
		if errors.Is(err, repositories.ErrAlreadyCompleted) {
			return nil
		}
		return fmt.Errorf("failed to mark evaluation processing: %w", err)
	}

	log.Info("🔄 Starting evaluation", zap.String("job_title", payload.JobTitle))
	start := time.Now()

	result, err := e.runRecovered(ctx, payload, log)
	if err == nil {
		err = e.evalRepo.Complete(ctx, payload.JobID, result)
	}
	if err != nil {
		e.fail(ctx, payload, attempt, err, log)
		e.recorder.ObservePipeline(string(models.StatusFailed), time.Since(start))
		return err
	}

	e.recorder.ObservePipeline(string(models.StatusCompleted), time.Since(start))
	log.Info("✅ Evaluation completed",
		zap.Float64("cv_match_rate", result.CVMatchRate),
		zap.Float64("project_score", result.ProjectScore),
		zap.Float64("overall_score", result.OverallScore),
		zap.Int64(logger.FieldDuration, time.Since(start).Milliseconds()),
	)
	return nil
}

func (e *evaluatorService) fail(ctx context.Context, payload models.JobPayload, attempt int, cause error, log *zap.Logger) {
	log.Error("❌ Evaluation failed",
		zap.String("kind", string(ClassifyError(cause))),
		zap.Error(cause),
	)

	// The status write must land even when ctx was cancelled mid-run.
	if err := e.evalRepo.MarkFailed(context.WithoutCancel(ctx), payload.JobID, attempt, cause.Error()); err != nil {
		log.Error("❌ Failed to record evaluation failure", zap.Error(err))
	}
}

func (e *evaluatorService) runRecovered(ctx context.Context, payload models.JobPayload, log *zap.Logger) (result *models.EvaluationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("evaluation panicked: %v", r)
		}
	}()
	return e.run(ctx, payload, log)
}

// recovered converts a panic in fn into an error. Goroutines started by an
// errgroup need their own recover.
func recovered(name string, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s panicked: %v", name, r)
			}
		}()
		return fn()
	}
}

func (e *evaluatorService) run(ctx context.Context, payload models.JobPayload, log *zap.Logger) (*models.EvaluationResult, error) {
	cvDoc, reportDoc, err := e.fetchDocuments(ctx, payload)
	if err != nil {
		return nil, err
	}

	cv, reportText, err := e.extract(cvDoc, reportDoc)
	if err != nil {
		return nil, err
	}
	log.Info("📄 Extracted documents",
		zap.Int("cv_chars", len(cv.Text)),
		zap.Int("cv_sections", len(cv.Sections)),
		zap.Int("report_chars", len(reportText)),
	)

	cvScores, err := e.evaluateCV(ctx, cv.Text, payload.JobTitle)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate CV: %w", err)
	}
	log.Info("🤖 CV stage done")

	projectScores, err := e.evaluateProject(ctx, reportText, payload.JobTitle)
	if err != nil {
		return nil, fmt.Errorf("failed to evaluate project: %w", err)
	}
	log.Info("🤖 Project stage done")

	summary, err := CallWithRetry(ctx, e.llm, CallRequest{
		SystemPrompt:   e.promptBuilder.SummarySystemPrompt(),
		UserPrompt:     e.promptBuilder.SummaryUserPrompt(cvScores, projectScores, payload.JobTitle),
		Temperature:    genai.Ptr[float32](summaryTemperature),
		ResponseFormat: FormatText,
		Stage:          StageSummary,
	}, ParseSummary)
	if err != nil {
		return nil, fmt.Errorf("failed to generate summary: %w", err)
	}

	cvMatchRate := scoring.CVMatchRate(scoring.CVDimensions{
		TechnicalSkills:      cvScores.TechnicalSkills,
		ExperienceLevel:      cvScores.ExperienceLevel,
		RelevantAchievements: cvScores.RelevantAchievements,
		CulturalFit:          cvScores.CulturalFit,
	})
	projectScore := scoring.ProjectScore(scoring.ProjectDimensions{
		Correctness:   projectScores.Correctness,
		CodeQuality:   projectScores.CodeQuality,
		Resilience:    projectScores.Resilience,
		Documentation: projectScores.Documentation,
		Creativity:    projectScores.Creativity,
	})

	return &models.EvaluationResult{
		CVMatchRate:     cvMatchRate,
		CVFeedback:      cvScores.Feedback,
		ProjectScore:    projectScore,
		ProjectFeedback: projectScores.Feedback,
		OverallSummary:  summary,
		OverallScore:    scoring.OverallScore(cvMatchRate, projectScore),
	}, nil
}

func (e *evaluatorService) fetchDocuments(ctx context.Context, payload models.JobPayload) (*models.Document, *models.Document, error) {
	var cvDoc, reportDoc *models.Document

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		doc, err := e.docRepo.FindByID(gCtx, payload.CVDocumentID)
		if err != nil {
			return fmt.Errorf("failed to get CV document: %w", err)
		}
		cvDoc = doc
		return nil
	})
	g.Go(func() error {
		doc, err := e.docRepo.FindByID(gCtx, payload.ReportDocumentID)
		if err != nil {
			return fmt.Errorf("failed to get project report: %w", err)
		}
		reportDoc = doc
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return cvDoc, reportDoc, nil
}

func (e *evaluatorService) extract(cvDoc, reportDoc *models.Document) (*CVStructure, string, error) {
	var (
		cv         *CVStructure
		reportText string
	)

	var g errgroup.Group
	g.Go(recovered("CV extraction", func() error {
		structure, err := e.pdfParser.ExtractStructured(cvDoc.FilePath)
		if err != nil {
			return fmt.Errorf("failed to parse CV: %w", err)
		}
		cv = structure
		return nil
	}))
	g.Go(recovered("project report extraction", func() error {
		text, err := e.pdfParser.ExtractText(reportDoc.FilePath)
		if err != nil {
			return fmt.Errorf("failed to parse project report: %w", err)
		}
		reportText = text
		return nil
	}))

	if err := g.Wait(); err != nil {
		return nil, "", err
	}
	return cv, reportText, nil
}

func (e *evaluatorService) evaluateCV(ctx context.Context, cvText, jobTitle string) (models.CVScores, error) {
	jobContext, err := e.rag.RetrieveContext(ctx, ContextQuery{
		Text:       e.promptBuilder.RetrievalQuery(models.CategoryJobDescription, jobTitle),
		Categories: []string{models.CategoryJobDescription, models.CategoryCVRubric},
		TopK:       contextTopK,
	})
	if err != nil {
		return models.CVScores{}, err
	}

	return CallWithRetry(ctx, e.llm, CallRequest{
		SystemPrompt:   e.promptBuilder.CVSystemPrompt(),
		UserPrompt:     e.promptBuilder.CVUserPrompt(cvText, jobContext, jobTitle),
		Temperature:    genai.Ptr[float32](evaluationTemperature),
		ResponseFormat: FormatStructured,
		Stage:          StageCV,
	}, ParseCVScores)
}

func (e *evaluatorService) evaluateProject(ctx context.Context, reportText, jobTitle string) (models.ProjectScores, error) {
	caseContext, err := e.rag.RetrieveContext(ctx, ContextQuery{
		Text:       e.promptBuilder.RetrievalQuery(models.CategoryCaseStudy, jobTitle),
		Categories: []string{models.CategoryCaseStudy, models.CategoryProjectRubric},
		TopK:       contextTopK,
	})
	if err != nil {
		return models.ProjectScores{}, err
	}

	return CallWithRetry(ctx, e.llm, CallRequest{
		SystemPrompt:   e.promptBuilder.ProjectSystemPrompt(),
		UserPrompt:     e.promptBuilder.ProjectUserPrompt(reportText, caseContext),
		Temperature:    genai.Ptr[float32](evaluationTemperature),
		ResponseFormat: FormatStructured,
		Stage:          StageProject,
	}, ParseProjectScores)
}
