package services

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/genai"

	"alfredoptarigan/cv-screener/internal/config"
)

type scriptedReply struct {
	res *GenerateResult
	err error
}

type fakeGenerator struct {
	mu      sync.Mutex
	replies []scriptedReply
	prompts []string
	opts    []GenerateOptions
	block   bool
}

func (f *fakeGenerator) push(text string, err error) *fakeGenerator {
	var res *GenerateResult
	if err == nil {
		res = &GenerateResult{Text: text, Usage: Usage{PromptTokens: 1000, CompletionTokens: 200, TotalTokens: 1200}}
	}
	f.replies = append(f.replies, scriptedReply{res: res, err: err})
	return f
}

func (f *fakeGenerator) Generate(ctx context.Context, prompt string, opts GenerateOptions) (*GenerateResult, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.opts = append(f.opts, opts)
	if f.block {
		f.mu.Unlock()
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if len(f.replies) == 0 {
		f.mu.Unlock()
		return nil, errors.New("unexpected call")
	}
	r := f.replies[0]
	f.replies = f.replies[1:]
	f.mu.Unlock()
	return r.res, r.err
}

func (f *fakeGenerator) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type attemptRecord struct {
	stage   string
	attempt int
	outcome string
}

type fakeRecorder struct {
	mu       sync.Mutex
	attempts []attemptRecord
	tokens   int
}

func (r *fakeRecorder) RecordAttempt(stage string, attempt int, outcome string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, attemptRecord{stage: stage, attempt: attempt, outcome: outcome})
}

func (r *fakeRecorder) RecordUsage(_ string, prompt, completion int, _ float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens += prompt + completion
}

func stubSleep(t *testing.T) *[]time.Duration {
	t.Helper()
	var delays []time.Duration
	original := sleep
	sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return ctx.Err()
	}
	t.Cleanup(func() { sleep = original })
	return &delays
}

func testLLMConfig() config.LLMConfig {
	return config.LLMConfig{
		MaxRetries:     3,
		RetryBaseDelay: time.Second,
		CallTimeout:    time.Second,
		MaxTokens:      2500,
	}
}

func serverError() error {
	return genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}
}

func TestCallSucceedsFirstAttempt(t *testing.T) {
	stubSleep(t)
	gen := (&fakeGenerator{}).push("hello", nil)
	rec := &fakeRecorder{}
	svc := NewLLMService(gen, testLLMConfig(), rec, zap.NewNop())

	out, err := svc.Call(context.Background(), CallRequest{
		SystemPrompt: "sys",
		UserPrompt:   "user",
		Stage:        "summary",
	}, nil)
	require.NoError(t, err)

	assert.Equal(t, "hello", out.Value)
	assert.Equal(t, 1, out.Attempts)
	assert.Equal(t, "sys\n---\nuser", gen.prompts[0])
	assert.InDelta(t, float32(0.3), gen.opts[0].Temperature, 1e-6)
	assert.Equal(t, 2500, gen.opts[0].MaxTokens)
	assert.False(t, gen.opts[0].Structured)
	assert.Equal(t, 1200, rec.tokens)
	assert.Equal(t, []attemptRecord{{stage: "summary", attempt: 1, outcome: "success"}}, rec.attempts)
}

func TestCallRetriesServerErrorsUntilExhausted(t *testing.T) {
	delays := stubSleep(t)
	gen := (&fakeGenerator{}).push("", serverError()).push("", serverError()).push("", serverError())
	svc := NewLLMService(gen, testLLMConfig(), nil, zap.NewNop())

	_, err := svc.Call(context.Background(), CallRequest{Stage: "cv"}, nil)
	require.Error(t, err)

	assert.Equal(t, 3, gen.calls())
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, *delays)

	var callErr *CallError
	require.ErrorAs(t, err, &callErr)
	assert.Equal(t, KindServerError, callErr.Kind)
	assert.Equal(t, 3, callErr.Attempts)

	var apiErr genai.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Code)
}

func TestCallRecoversAfterTransientFailures(t *testing.T) {
	stubSleep(t)
	gen := (&fakeGenerator{}).
		push("", genai.APIError{Code: http.StatusTooManyRequests, Status: "RESOURCE_EXHAUSTED"}).
		push("", serverError()).
		push("ok", nil)
	rec := &fakeRecorder{}
	svc := NewLLMService(gen, testLLMConfig(), rec, zap.NewNop())

	out, err := svc.Call(context.Background(), CallRequest{Stage: "project"}, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, out.Attempts)
	require.Len(t, rec.attempts, 3)
	assert.Equal(t, "rate_limit", rec.attempts[0].outcome)
	assert.Equal(t, "server_error", rec.attempts[1].outcome)
	assert.Equal(t, "success", rec.attempts[2].outcome)
}

func TestCallDoesNotRetryFatalKinds(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{name: "client error", err: genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"}, want: KindClientError},
		{name: "safety block", err: ErrSafetyBlocked, want: KindSafetyBlock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delays := stubSleep(t)
			gen := (&fakeGenerator{}).push("", tt.err)
			svc := NewLLMService(gen, testLLMConfig(), nil, zap.NewNop())

			_, err := svc.Call(context.Background(), CallRequest{}, nil)

			assert.Equal(t, 1, gen.calls())
			assert.Empty(t, *delays)
			assert.Equal(t, tt.want, ClassifyError(err))
		})
	}
}

func TestCallParseErrorIsNotRetried(t *testing.T) {
	stubSleep(t)
	gen := (&fakeGenerator{}).push("not json", nil).push("{}", nil)
	svc := NewLLMService(gen, testLLMConfig(), nil, zap.NewNop())

	_, err := svc.Call(context.Background(), CallRequest{ResponseFormat: FormatStructured}, func(raw string) (any, error) {
		return nil, &ParseError{Reason: "not an object"}
	})

	require.Error(t, err)
	assert.Equal(t, 1, gen.calls())
	assert.True(t, gen.opts[0].Structured)
	assert.Equal(t, KindParse, ClassifyError(err))

	var parseErr *ParseError
	assert.ErrorAs(t, err, &parseErr)
}

func TestCallEmptyResponseIsRetried(t *testing.T) {
	stubSleep(t)
	gen := (&fakeGenerator{}).push("   ", nil).push("filled", nil)
	svc := NewLLMService(gen, testLLMConfig(), nil, zap.NewNop())

	out, err := svc.Call(context.Background(), CallRequest{}, nil)
	require.NoError(t, err)
	assert.Equal(t, "filled", out.Raw)
	assert.Equal(t, 2, gen.calls())
}

func TestCallTimesOutEachAttempt(t *testing.T) {
	stubSleep(t)
	gen := &fakeGenerator{block: true}
	cfg := testLLMConfig()
	cfg.MaxRetries = 2
	cfg.CallTimeout = 20 * time.Millisecond
	svc := NewLLMService(gen, cfg, nil, zap.NewNop())

	_, err := svc.Call(context.Background(), CallRequest{}, nil)

	require.Error(t, err)
	assert.Equal(t, KindTimeout, ClassifyError(err))
	assert.Equal(t, 2, gen.calls())
}

func TestCallStopsWhenContextCancelled(t *testing.T) {
	gen := (&fakeGenerator{}).push("", serverError()).push("ok", nil)
	svc := NewLLMService(gen, testLLMConfig(), nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	original := sleep
	sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}
	t.Cleanup(func() { sleep = original })

	_, err := svc.Call(ctx, CallRequest{}, nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, gen.calls())
}

func TestCallLogsRetries(t *testing.T) {
	stubSleep(t)
	core, logs := observer.New(zapcore.DebugLevel)
	gen := (&fakeGenerator{}).push("", serverError()).push("done", nil)
	svc := NewLLMService(gen, testLLMConfig(), nil, zap.New(core))

	_, err := svc.Call(context.Background(), CallRequest{Stage: "cv"}, nil)
	require.NoError(t, err)

	retries := logs.FilterMessageSnippet("retrying").All()
	require.Len(t, retries, 1)
	assert.Equal(t, "cv", retries[0].ContextMap()["stage"])
	assert.Equal(t, "server_error", retries[0].ContextMap()["kind"])
}

func TestCallWithRetryTypedValue(t *testing.T) {
	stubSleep(t)
	gen := (&fakeGenerator{}).push("  42 ", nil)
	svc := NewLLMService(gen, testLLMConfig(), nil, zap.NewNop())

	got, err := CallWithRetry(context.Background(), svc, CallRequest{}, func(raw string) (string, error) {
		return strings.TrimSpace(raw), nil
	})
	require.NoError(t, err)
	assert.Equal(t, "42", got)
}

func TestEstimateCost(t *testing.T) {
	cost := EstimateCost(Usage{PromptTokens: 1_000_000, CompletionTokens: 1_000_000})
	assert.InDelta(t, 0.375, cost, 1e-9)

	assert.Zero(t, EstimateCost(Usage{}))
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, time.Second, RetryDelay(time.Second, 1))
	assert.Equal(t, 2*time.Second, RetryDelay(time.Second, 2))
	assert.Equal(t, 4*time.Second, RetryDelay(time.Second, 3))
}

func TestCallPassesExplicitZeroTemperature(t *testing.T) {
	stubSleep(t)
	gen := (&fakeGenerator{}).push("deterministic", nil)
	svc := NewLLMService(gen, testLLMConfig(), nil, zap.NewNop())

	_, err := svc.Call(context.Background(), CallRequest{
		UserPrompt:  "user",
		Temperature: genai.Ptr[float32](0),
	}, nil)
	require.NoError(t, err)

	require.Len(t, gen.opts, 1)
	assert.Zero(t, gen.opts[0].Temperature)
}
