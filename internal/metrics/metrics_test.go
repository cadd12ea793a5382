package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsNoop(t *testing.T) {
	t.Parallel()
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Checkout("placed")
		m.Reservation("reserved")
		m.Notification("email", "sent")
		m.Request("/cart", "200", 1.5)
	})
}

func TestCountersAndHandler(t *testing.T) {
	t.Parallel()
	m := New(prometheus.NewRegistry())

	m.Checkout("placed")
	m.Checkout("placed")
	m.Notification("push", "failed")
	m.Request("/checkout", "201", 12)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Checkouts.WithLabelValues("placed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notifications.WithLabelValues("push", "failed")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `cosmetics_checkout_total{result="placed"} 2`)
	assert.Contains(t, rec.Body.String(), `cosmetics_http_request_duration_ms_count{route="/checkout"} 1`)
}
