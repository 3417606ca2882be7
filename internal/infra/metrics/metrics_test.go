package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_CountsTicksAndDeliveries(t *testing.T) {
	m := New()

	m.TickFinished("completed", 120*time.Millisecond, 7)
	m.TickFinished("aborted", time.Millisecond, 0)
	m.DeliveryAttempted("sent")
	m.DeliveryAttempted("sent")
	m.DeliveryAttempted("sink_failed")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ticks.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ticks.WithLabelValues("aborted")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.deliveries.WithLabelValues("sent")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.deliveries.WithLabelValues("sink_failed")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.activeContracts), "aborted ticks keep the last gauge value")
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.DeliveryAttempted("sent")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `week_notification_agent_deliveries_total{result="sent"} 1`)
}
