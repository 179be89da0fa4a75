package monitor

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "quoted"

type collectors struct {
	quotes             prometheus.Counter
	errors             *prometheus.CounterVec
	warnings           prometheus.Counter
	validationFailures prometheus.Counter
	highValue          prometheus.Counter
	anomalies          prometheus.Counter
	responseTime       prometheus.Histogram
	quoteAmount        prometheus.Histogram
	healthStatus       prometheus.Gauge
}

func newCollectors() *collectors {
	return &collectors{
		quotes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "quotes_generated_total",
			Help:      "Quotes assembled.",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "errors_total",
			Help:      "Errors recorded, by operation.",
		}, []string{"operation"}),
		warnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "validation_warnings_total",
			Help:      "Advisory validation warnings.",
		}),
		validationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "validation_failures_total",
			Help:      "Quotes blocked by safety validation.",
		}),
		highValue: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "high_value_quotes_total",
			Help:      "Quotes above the high value threshold.",
		}),
		anomalies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rate_anomalies_total",
			Help:      "Rate limit warnings raised by the anomaly check.",
		}),
		responseTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "quote_response_seconds",
			Help:      "Quote assembly latency.",
			Buckets:   prometheus.DefBuckets,
		}),
		quoteAmount: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "quote_amount_dollars",
			Help:      "Quote totals.",
			Buckets:   prometheus.ExponentialBuckets(1000, 4, 8),
		}),
		healthStatus: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "health_status",
			Help:      "0 healthy, 1 warning, 2 critical.",
		}),
	}
}

func (c *collectors) register(reg prometheus.Registerer) error {
	for _, col := range []prometheus.Collector{
		c.quotes, c.errors, c.warnings, c.validationFailures, c.highValue,
		c.anomalies, c.responseTime, c.quoteAmount, c.healthStatus,
	} {
		if err := reg.Register(col); err != nil {
			return fmt.Errorf("register monitor collector: %w", err)
		}
	}
	return nil
}
