package monitor

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/shirou/gopsutil/v4/process"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandler(t *testing.T) {
	m := New()
	m.Requests.WithLabelValues("POST", "/api/v1/blur", "200").Inc()
	m.ObserveInference("sam_decoder", time.Now().Add(-20*time.Millisecond))
	m.Sessions.Set(3)

	p, err := process.NewProcess(int32(os.Getpid()))
	require.NoError(t, err)
	m.CheckProcessInfo(p)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `http_requests_total{method="POST",route="/api/v1/blur",status="200"} 1`)
	assert.Contains(t, body, `inference_duration_seconds_count{model="sam_decoder"} 1`)
	assert.Contains(t, body, "sam_sessions_active 3")
	assert.Contains(t, body, "memory_usage_megabytes")
}
