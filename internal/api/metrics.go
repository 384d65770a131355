package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/eugenenazirov/order-totals/internal/calculator"
)

const unmatchedRoute = "unmatched"

// Metrics groups the Prometheus collectors exported by the API.
type Metrics struct {
	requests   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	quotes     *prometheus.CounterVec
	promoUsed  prometheus.Counter
	quoteTotal prometheus.Histogram
}

// NewMetrics creates the API collectors and registers them with reg. A nil reg
// falls back to prometheus.DefaultRegisterer. Collectors that are already
// registered are reused.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests handled by the server.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		quotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_total",
			Help:      "Count of computed quotes by outcome.",
		}, []string{"outcome"}),
		promoUsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promo_applications_total",
			Help:      "Number of quotes where the SAVE10 promo code matched.",
		}),
		quoteTotal: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_total_amount",
			Help:      "Distribution of payable totals returned by quotes.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500},
		}),
	}

	var err error
	m.requests, err = register(reg, m.requests)
	if err != nil {
		return nil, err
	}
	m.duration, err = register(reg, m.duration)
	if err != nil {
		return nil, err
	}
	m.quotes, err = register(reg, m.quotes)
	if err != nil {
		return nil, err
	}
	m.promoUsed, err = register(reg, m.promoUsed)
	if err != nil {
		return nil, err
	}
	m.quoteTotal, err = register(reg, m.quoteTotal)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *Metrics) observeQuote(q calculator.Quote) {
	if m == nil {
		return
	}
	outcome := "priced"
	if q.ValidLines == 0 {
		outcome = "empty"
	}
	m.quotes.WithLabelValues(outcome).Inc()
	if q.PromoApplied {
		m.promoUsed.Inc()
	}
	if outcome == "priced" {
		m.quoteTotal.Observe(q.Total)
	}
}

func metricsMiddleware(m *Metrics, next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &responseRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		// ServeMux records the matched pattern on the request it dispatched.
		route := r.Pattern
		if route == "" {
			route = unmatchedRoute
		}
		m.requests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		m.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
