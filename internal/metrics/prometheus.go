package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// PrometheusCollector implements Collector for Prometheus.
type PrometheusCollector struct {
	booked       prometheus.Counter
	removed      prometheus.Counter
	replacements *prometheus.CounterVec
	imported     prometheus.Counter
	storeErrors  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
	balance      prometheus.Gauge
	requests     *prometheus.CounterVec
}

func NewPrometheusCollector(namespace string) *PrometheusCollector {
	return &PrometheusCollector{
		booked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_booked_total",
			Help:      "Total number of transactions added to the book",
		}),
		removed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_removed_total",
			Help:      "Total number of transactions removed from the book",
		}),
		replacements: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "replacements_total",
				Help:      "Total number of replaced accounts and budgets",
			},
			[]string{"kind"},
		),
		imported: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "imported_rows_total",
			Help:      "Total number of CSV rows booked by imports",
		}),
		storeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_errors_total",
				Help:      "Total number of failed book operations per operation",
			},
			[]string{"op"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Book operation latency including the store round trip",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 15), // 0.1ms to ~3s
			},
			[]string{"op"},
		),
		balance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "book_balance",
			Help:      "Aggregate balance of all internal accounts",
		}),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by method and status code",
			},
			[]string{"method", "code"},
		),
	}
}

// Register registers all metrics with the given Prometheus registry.
func (pc *PrometheusCollector) Register(registry prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		pc.booked,
		pc.removed,
		pc.replacements,
		pc.imported,
		pc.storeErrors,
		pc.latency,
		pc.balance,
		pc.requests,
	}

	for _, collector := range collectors {
		if err := registry.Register(collector); err != nil {
			return err
		}
	}

	return nil
}

func (pc *PrometheusCollector) RecordBooked()  { pc.booked.Inc() }
func (pc *PrometheusCollector) RecordRemoved() { pc.removed.Inc() }

func (pc *PrometheusCollector) RecordReplacement(kind string) {
	pc.replacements.WithLabelValues(kind).Inc()
}

func (pc *PrometheusCollector) RecordImported(rows int) {
	pc.imported.Add(float64(rows))
}

func (pc *PrometheusCollector) RecordStoreError(op string) {
	pc.storeErrors.WithLabelValues(op).Inc()
}

func (pc *PrometheusCollector) RecordOperation(op string, duration time.Duration) {
	pc.latency.WithLabelValues(op).Observe(duration.Seconds())
}

// SetBalance exports the balance as a float. Precision loss only affects
// the gauge, never the book.
func (pc *PrometheusCollector) SetBalance(balance decimal.Decimal) {
	pc.balance.Set(balance.InexactFloat64())
}

// ObserveRequest counts a served HTTP request.
func (pc *PrometheusCollector) ObserveRequest(method string, status int, _ time.Duration) {
	pc.requests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}
