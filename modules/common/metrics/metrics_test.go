package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveHTTP(t *testing.T) {
	m := New("")
	m.ObserveHTTP("POST", "/generate-video", http.StatusOK, 20*time.Millisecond)
	m.ObserveHTTP("POST", "/generate-video", http.StatusOK, 30*time.Millisecond)
	m.ObserveHTTP("POST", "/generate-video", http.StatusBadGateway, time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/generate-video", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("POST", "/generate-video", "502")))
}

func TestObservePredict(t *testing.T) {
	m := New("")
	m.ObservePredict(OutcomeSuccess, time.Second)
	m.ObservePredict(OutcomeEmptyResult, time.Second)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.PredictRequestsTotal.WithLabelValues(OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PredictRequestsTotal.WithLabelValues(OutcomeEmptyResult)))
}

func TestSetBreakerState(t *testing.T) {
	m := New("")
	m.SetBreakerState("vertexai-predict", "open")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("vertexai-predict")))

	m.SetBreakerState("vertexai-predict", "closed")
	assert.Equal(t, 0.0, testutil.ToFloat64(m.BreakerState.WithLabelValues("vertexai-predict")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveHTTP("GET", "/health", http.StatusOK, time.Millisecond)
		m.ObservePredict(OutcomeSuccess, time.Millisecond)
		m.SetBreakerState("x", "open")
	})
}

func TestHandler(t *testing.T) {
	m := New("")
	m.ObservePredict(OutcomeTimeout, time.Second)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `video_relay_predict_requests_total{outcome="timeout"} 1`)
	assert.Contains(t, w.Body.String(), "go_goroutines")
}
