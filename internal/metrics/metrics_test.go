package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

// TestMetrics_Counters checks every observer updates its collector.
func TestMetrics_Counters(t *testing.T) {
	t.Parallel()

	m := New()

	m.ObserveRequest("connect", OutcomeOK)
	m.ObserveRequest("connect", OutcomeOK)
	m.ObserveRequest("sendAlarm", OutcomeRejected)
	m.ObserveAlarm("sound")
	m.ObservePublishFailure()
	m.ObserveSwept(3)
	m.SetDevices(5, 2)

	require.InDelta(t, 2, testutil.ToFloat64(m.requests.WithLabelValues("connect", OutcomeOK)), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.requests.WithLabelValues("sendAlarm", OutcomeRejected)), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.alarms.WithLabelValues("sound")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(m.publishFailures), 0)
	require.InDelta(t, 3, testutil.ToFloat64(m.swept), 0)
	require.InDelta(t, 5, testutil.ToFloat64(m.devices.WithLabelValues("registered")), 0)
	require.InDelta(t, 2, testutil.ToFloat64(m.devices.WithLabelValues("active")), 0)
}

// TestMetrics_Handler exposes the namespaced series.
func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := New()
	m.ObserveAlarm("vibrate")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `shared_alarm_alarms_total{type="vibrate"} 1`)
}
