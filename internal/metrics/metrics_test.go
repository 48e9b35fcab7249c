package metrics

import (
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestMetricsRegistry(t *testing.T) {
	InitRegistry()
	registry := GetRegistry()

	assert.NotNil(t, registry)
	assert.IsType(t, &prometheus.Registry{}, registry)
}

func TestRecordSchedulerTick(t *testing.T) {
	InitRegistry()

	assert.NotPanics(t, func() {
		RecordSchedulerTick("discovery", "success")
	})
}

func TestRecordUpstreamRequest(t *testing.T) {
	InitRegistry()

	assert.NotPanics(t, func() {
		RecordUpstreamRequest("dropping-odds", "2xx")
		RecordUpstreamRetry()
	})
}

func TestRecordMatcherVerdict(t *testing.T) {
	InitRegistry()

	for _, status := range []string{"SUCCESS", "NO_MATCH", "NO_CANDIDATES"} {
		status := status
		t.Run(status, func(t *testing.T) {
			assert.NotPanics(t, func() {
				RecordMatcherVerdict(status)
			})
		})
	}
}

func TestSetAlertViewStale(t *testing.T) {
	InitRegistry()

	assert.NotPanics(t, func() {
		SetAlertViewStale(true)
		SetAlertViewStale(false)
	})
}

func TestSetEventsInPreStartWindow(t *testing.T) {
	InitRegistry()

	assert.NotPanics(t, func() {
		SetEventsInPreStartWindow(7)
	})
}

func TestMetricsHandler(t *testing.T) {
	InitRegistry()

	handler := Handler()
	assert.NotNil(t, handler)
	assert.Implements(t, (*http.Handler)(nil), handler)
}

func TestRecordSchedulerJobDuration(t *testing.T) {
	InitRegistry()

	assert.NotPanics(t, func() {
		RecordSchedulerJobDuration("pre-start", 0.25)
		RecordMatcherEvaluationDuration(0.01)
	})
}
