package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveCheckout(t *testing.T) {
	m := New()
	m.ObserveCheckout("committed", 1, 20*time.Millisecond)
	m.ObserveCheckout("committed", 2, 30*time.Millisecond)
	m.ObserveCheckout("empty_cart", 1, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.checkouts.WithLabelValues("committed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.checkouts.WithLabelValues("empty_cart")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.checkoutLatency))
}

func TestOutboxCounters(t *testing.T) {
	m := New()
	m.EventPublished()
	m.EventPublished()
	m.EventFailed()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.outboxPublished))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outboxFailures))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveRequest(http.MethodPost, "/api/v1/checkout", http.StatusCreated, 15*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `storefront_http_requests_total{method="POST",route="/api/v1/checkout",status="201"} 1`)
}
