package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	pkgmetrics "github.com/wyfcoding/pkg/metrics"
)

func TestRecorders(t *testing.T) {
	m := New(pkgmetrics.NewMetrics("pricing"), "pricing")

	m.ObserveCalculation("delta", OutcomeOK, time.Millisecond)
	m.ObserveCalculation("delta", OutcomeOK, time.Millisecond)
	m.ObserveCalculation("delta", OutcomeNoValue, time.Millisecond)
	m.SetBasketLegs("b-1", 3)
	m.IncQuote("LAST_TRADE_PRICE")
	m.IncEvent("option.priced", nil)
	m.IncEvent("option.priced", errors.New("broker down"))
	m.IncCache("miss")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.CalculationsTotal.WithLabelValues("delta", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CalculationsTotal.WithLabelValues("delta", OutcomeNoValue)))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.BasketLegs.WithLabelValues("b-1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsPublished.WithLabelValues("option.priced", OutcomeError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheRequests.WithLabelValues("miss")))

	m.DeleteBasket("b-1")
	assert.Equal(t, 0, testutil.CollectAndCount(m.BasketLegs))
}

func TestRegisterTwicePanics(t *testing.T) {
	reg := pkgmetrics.NewMetrics("pricing")
	New(reg, "pricing")
	assert.Panics(t, func() { New(reg, "pricing") })
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveCalculation("premium", OutcomeOK, time.Millisecond)
		m.IncQuote("BEST_BID_PRICE")
		m.SetBasketLegs("b", 1)
	})
}

func TestExposedThroughServiceRegistry(t *testing.T) {
	reg := pkgmetrics.NewMetrics("pricing")
	m := New(reg, "pricing")
	m.IncQuote("IMPLIED_VOLATILITY")

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "derivanalytics_pricing_quotes_applied_total"))
}
