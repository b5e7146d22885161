package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAttempt(t *testing.T) {
	r := New()

	r.RecordAttempt("cv", 1, "server_error", 200*time.Millisecond)
	r.RecordAttempt("cv", 2, "success", 100*time.Millisecond)
	r.RecordAttempt("cv", 3, "success", 100*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(r.llmAttempts.WithLabelValues("cv", "server_error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.llmAttempts.WithLabelValues("cv", "success")))
}

func TestRecordUsage(t *testing.T) {
	r := New()

	r.RecordUsage("summary", 1000, 200, 0.5)

	assert.Equal(t, 1000.0, testutil.ToFloat64(r.llmTokens.WithLabelValues("summary", "prompt")))
	assert.Equal(t, 200.0, testutil.ToFloat64(r.llmTokens.WithLabelValues("summary", "completion")))
	assert.Equal(t, 0.5, testutil.ToFloat64(r.llmCost.WithLabelValues("summary")))
}

func TestHandlerExposesQueueMetrics(t *testing.T) {
	r := New()
	r.RecordDelivery("completed")
	r.ObservePipeline("completed", 3*time.Second)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `cv_screener_queue_deliveries_total{outcome="completed"} 1`))
	assert.True(t, strings.Contains(body, "cv_screener_pipeline_run_duration_seconds"))
}
