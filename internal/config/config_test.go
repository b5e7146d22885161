package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, _ := Load()
	require.NotNil(t, cfg)

	assert.Equal(t, 3, cfg.LLM.MaxRetries)
	assert.Equal(t, time.Second, cfg.LLM.RetryBaseDelay)
	assert.Equal(t, 30*time.Second, cfg.LLM.CallTimeout)
	assert.Equal(t, 2500, cfg.LLM.MaxTokens)

	assert.Equal(t, 3, cfg.Queue.MaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.Queue.BackoffBase)

	assert.Equal(t, 1536, cfg.Gemini.EmbeddingDimension)
	assert.Equal(t, uint64(1536), cfg.Qdrant.VectorSize)
	assert.NoError(t, cfg.Validate())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("LLM_MAX_RETRIES", "5")
	t.Setenv("LLM_RETRY_BASE_DELAY", "2s")
	t.Setenv("QUEUE_BACKOFF_BASE", "not-a-duration")
	t.Setenv("LOG_JSON", "true")

	cfg, _ := Load()

	assert.Equal(t, 5, cfg.LLM.MaxRetries)
	assert.Equal(t, 2*time.Second, cfg.LLM.RetryBaseDelay)
	assert.Equal(t, 5*time.Second, cfg.Queue.BackoffBase, "invalid duration falls back to default")
	assert.True(t, cfg.Log.JSON)
}

func TestValidate(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	cfg, _ := Load()
	assert.Error(t, cfg.Validate(), "missing api key")

	cfg.Gemini.APIKey = "key"
	cfg.Qdrant.VectorSize = 768
	assert.Error(t, cfg.Validate(), "vector size mismatch")

	cfg.Qdrant.VectorSize = 1536
	cfg.Queue.MaxAttempts = 0
	assert.Error(t, cfg.Validate())
}

func TestGetDatabaseDSN(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{
		Host: "db", Port: "5433", User: "u", Password: "p", DBName: "screening",
	}}

	assert.Equal(t, "host=db port=5433 user=u password=p dbname=screening sslmode=disable", cfg.GetDatabaseDSN())
}
