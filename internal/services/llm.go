package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"alfredoptarigan/cv-screener/internal/config"
	"alfredoptarigan/cv-screener/internal/logger"
)

type ResponseFormat string

const (
	FormatText       ResponseFormat = "text"
	FormatStructured ResponseFormat = "structured"
)

const (
	defaultTemperature = 0.3
	defaultMaxTokens   = 2500

	// Gemini Flash list price in USD per million tokens.
	inputCostPerMillion  = 0.075
	outputCostPerMillion = 0.30
)

// CallRequest describes one logical model call. A nil Temperature and a
// zero MaxTokens fall back to the defaults.
type CallRequest struct {
	SystemPrompt   string
	UserPrompt     string
	Temperature    *float32
	MaxTokens      int
	ResponseFormat ResponseFormat
	Stage          string
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// EstimateCost returns the approximate spend of a call in USD.
func EstimateCost(usage Usage) float64 {
	return float64(usage.PromptTokens)/1_000_000*inputCostPerMillion +
		float64(usage.CompletionTokens)/1_000_000*outputCostPerMillion
}

// GenerateOptions are the backend parameters of a single attempt.
type GenerateOptions struct {
	Temperature float32
	MaxTokens   int
	Structured  bool
}

type GenerateResult struct {
	Text  string
	Usage Usage
}

// TextGenerator is the generative backend seen by the adapter.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string, opts GenerateOptions) (*GenerateResult, error)
}

// CallRecorder receives per-attempt observations.
type CallRecorder interface {
	RecordAttempt(stage string, attempt int, outcome string, duration time.Duration)
	RecordUsage(stage string, promptTokens, completionTokens int, cost float64)
}

type nopRecorder struct{}

func (nopRecorder) RecordAttempt(string, int, string, time.Duration) {}
func (nopRecorder) RecordUsage(string, int, int, float64)            {}

// ParseFunc turns raw model text into a typed value. Its errors are fatal.
type ParseFunc func(raw string) (any, error)

type CallOutcome struct {
	Value    any
	Raw      string
	Usage    Usage
	Cost     float64
	Attempts int
}

type LLMService interface {
	Call(ctx context.Context, req CallRequest, parse ParseFunc) (*CallOutcome, error)
}

type llmService struct {
	generator TextGenerator
	cfg       config.LLMConfig
	recorder  CallRecorder
	logger    *zap.Logger
}

// sleep waits for d or until ctx is done.
var sleep = func(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func NewLLMService(generator TextGenerator, cfg config.LLMConfig, recorder CallRecorder, log *zap.Logger) LLMService {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &llmService{
		generator: generator,
		cfg:       cfg,
		recorder:  recorder,
		logger:    logger.OrNop(log),
	}
}

// BuildFullPrompt joins the system and user prompt into one backend prompt.
func BuildFullPrompt(system, user string) string {
	return system + "\n---\n" + user
}

// RetryDelay is the wait after the given failed attempt.
func RetryDelay(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base * time.Duration(1<<uint(attempt-1))
}

// Call implements LLMService.
func (s *llmService) Call(ctx context.Context, req CallRequest, parse ParseFunc) (*CallOutcome, error) {
	opts := GenerateOptions{
		Temperature: defaultTemperature,
		MaxTokens:   req.MaxTokens,
		Structured:  req.ResponseFormat == FormatStructured,
	}
	if req.Temperature != nil {
		opts.Temperature = *req.Temperature
	}
	if opts.MaxTokens == 0 {
		opts.MaxTokens = s.cfg.MaxTokens
		if opts.MaxTokens == 0 {
			opts.MaxTokens = defaultMaxTokens
		}
	}

	prompt := BuildFullPrompt(req.SystemPrompt, req.UserPrompt)
	log := s.logger.With(zap.String(logger.FieldStage, req.Stage))

	var (
		lastErr  error
		lastKind ErrorKind
	)

	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, &CallError{Kind: ClassifyError(err), Attempts: attempt - 1, Err: err}
		}

		start := time.Now()
		res, err := s.attempt(ctx, prompt, opts)
		elapsed := time.Since(start)

		if err == nil {
			value, parseErr := s.parse(parse, res.Text)
			if parseErr != nil {
				s.recorder.RecordAttempt(req.Stage, attempt, string(KindParse), elapsed)
				log.Warn("❌ Model response rejected",
					zap.Int(logger.FieldAttempt, attempt),
					zap.String("preview", logger.TruncateForLog(res.Text, 200)),
					zap.Error(parseErr),
				)
				return nil, &CallError{Kind: KindParse, Attempts: attempt, Err: parseErr}
			}

			cost := EstimateCost(res.Usage)
			s.recorder.RecordAttempt(req.Stage, attempt, "success", elapsed)
			s.recorder.RecordUsage(req.Stage, res.Usage.PromptTokens, res.Usage.CompletionTokens, cost)
			log.Info("✅ Model call succeeded",
				zap.Int(logger.FieldAttempt, attempt),
				zap.Int64(logger.FieldDuration, elapsed.Milliseconds()),
				zap.Int("prompt_tokens", res.Usage.PromptTokens),
				zap.Int("completion_tokens", res.Usage.CompletionTokens),
				zap.Int("total_tokens", res.Usage.TotalTokens),
				zap.Float64("estimated_cost_usd", cost),
			)

			return &CallOutcome{
				Value:    value,
				Raw:      res.Text,
				Usage:    res.Usage,
				Cost:     cost,
				Attempts: attempt,
			}, nil
		}

		lastErr = err
		lastKind = ClassifyError(err)
		s.recorder.RecordAttempt(req.Stage, attempt, string(lastKind), elapsed)

		if !lastKind.Retryable() {
			log.Error("❌ Model call failed with non-retryable error",
				zap.Int(logger.FieldAttempt, attempt),
				zap.String("kind", string(lastKind)),
				zap.Error(err),
			)
			return nil, &CallError{Kind: lastKind, Attempts: attempt, Err: err}
		}

		if attempt == s.cfg.MaxRetries {
			break
		}

		delay := RetryDelay(s.cfg.RetryBaseDelay, attempt)
		log.Warn("⚠️ Model call failed, retrying",
			zap.Int(logger.FieldAttempt, attempt),
			zap.String("kind", string(lastKind)),
			zap.Duration("delay", delay),
			zap.Error(err),
		)

		if err := sleep(ctx, delay); err != nil {
			return nil, &CallError{Kind: ClassifyError(err), Attempts: attempt, Err: err}
		}
	}

	log.Error("❌ Model call retries exhausted",
		zap.Int("attempts", s.cfg.MaxRetries),
		zap.String("kind", string(lastKind)),
		zap.Error(lastErr),
	)

	return nil, &CallError{Kind: lastKind, Attempts: s.cfg.MaxRetries, Err: lastErr}
}

// attempt issues one backend call raced against the per-attempt timeout.
func (s *llmService) attempt(ctx context.Context, prompt string, opts GenerateOptions) (*GenerateResult, error) {
	callCtx := ctx
	cancel := func() {}
	if s.cfg.CallTimeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, s.cfg.CallTimeout)
	}
	defer cancel()

	type reply struct {
		res *GenerateResult
		err error
	}
	done := make(chan reply, 1)

	go func() {
		res, err := s.generator.Generate(callCtx, prompt, opts)
		done <- reply{res: res, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, r.err
		}
		if r.res == nil || strings.TrimSpace(r.res.Text) == "" {
			return nil, ErrEmptyResponse
		}
		return r.res, nil
	case <-callCtx.Done():
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w after %s", ErrCallTimeout, s.cfg.CallTimeout)
	}
}

func (s *llmService) parse(parse ParseFunc, raw string) (any, error) {
	if parse == nil {
		return raw, nil
	}
	return parse(raw)
}

// CallWithRetry runs a call through svc and returns the typed value
// produced by parse.
func CallWithRetry[T any](ctx context.Context, svc LLMService, req CallRequest, parse func(raw string) (T, error)) (T, error) {
	var zero T

	outcome, err := svc.Call(ctx, req, func(raw string) (any, error) {
		return parse(raw)
	})
	if err != nil {
		return zero, err
	}

	value, ok := outcome.Value.(T)
	if !ok {
		return zero, &CallError{
			Kind:     KindParse,
			Attempts: outcome.Attempts,
			Err:      &ParseError{Reason: fmt.Sprintf("unexpected value type %T", outcome.Value)},
		}
	}
	return value, nil
}
