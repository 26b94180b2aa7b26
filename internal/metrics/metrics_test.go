package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonitor_Counters(t *testing.T) {
	m := NewMonitor()

	before := testutil.ToFloat64(payments.WithLabelValues("succeeded"))
	soldBefore := testutil.ToFloat64(unitsSold)
	m.TrackPayment("succeeded", 3)
	assert.Equal(t, before+1, testutil.ToFloat64(payments.WithLabelValues("succeeded")))
	assert.Equal(t, soldBefore+3, testutil.ToFloat64(unitsSold))

	m.TrackTransition("accept", "ok")
	assert.GreaterOrEqual(t, testutil.ToFloat64(bookingTransitions.WithLabelValues("accept", "ok")), 1.0)

	m.SetBreakerState("stripe", 2)
	assert.Equal(t, 2.0, testutil.ToFloat64(breakerState.WithLabelValues("stripe")))
}

func TestMonitor_NilSafe(t *testing.T) {
	var m *Monitor
	assert.NotPanics(t, func() {
		m.TrackTransition("create", "ok")
		m.TrackPayment("failed", 0)
		m.TrackRefund("oversold", "ok")
		m.SetBreakerState("x", 1)
		m.ObserveRequest("GET", "/", "200", time.Millisecond)
		m.TrackRateLimited("/")
	})
}

func TestHandler_ServesMetrics(t *testing.T) {
	NewMonitor().TrackRefund("expired", "ok")
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "payment_refunds_total")
}
