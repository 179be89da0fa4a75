// Package monitor tracks operational metrics for quote assembly: counters,
// response time, a ring of recent quotes, health snapshots, rate anomalies and
// readiness. A Monitor is built by main and passed to its consumers.
package monitor

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/mmamrila/aiquoting-sub001/internal/eventlog"
	"github.com/mmamrila/aiquoting-sub001/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Status is the overall health level.
type Status string

const (
	StatusHealthy  Status = "HEALTHY"
	StatusWarning  Status = "WARNING"
	StatusCritical Status = "CRITICAL"
)

const (
	responseAlpha      = 0.1
	recentCapacity     = 100
	anomalyWindow      = 5 * time.Minute
	anomalyThreshold   = 20
	healthyErrorRate   = 0.01
	warningErrorRate   = 0.05
	readyResponseLimit = 3000.0 // ms
	highValueAmount    = 100_000.0

	DefaultHealthInterval = 5 * time.Minute
)

// QuoteEvent describes one assembled quote.
type QuoteEvent struct {
	QuoteNumber  string
	Amount       float64
	SystemType   string
	UserCount    int
	MultiSite    bool
	Warnings     int
	ResponseTime time.Duration
	At           time.Time
}

// Activity summarises the recent quote ring.
type Activity struct {
	Count              int            `json:"count"`
	AverageAmount      float64        `json:"average_amount"`
	MinAmount          float64        `json:"min_amount"`
	MaxAmount          float64        `json:"max_amount"`
	SystemDistribution map[string]int `json:"system_distribution"`
	MultiSitePercent   float64        `json:"multi_site_percent"`
}

// Health is a point-in-time snapshot.
type Health struct {
	Status             Status    `json:"status"`
	Timestamp          time.Time `json:"timestamp"`
	UptimeSeconds      float64   `json:"uptime_seconds"`
	QuotesGenerated    int64     `json:"quotes_generated"`
	Errors             int64     `json:"errors"`
	Warnings           int64     `json:"warnings"`
	ValidationFailures int64     `json:"validation_failures"`
	HighValueQuotes    int64     `json:"high_value_quotes"`
	ErrorRate          float64   `json:"error_rate"`
	AvgResponseMs      float64   `json:"avg_response_ms"`
	Recent             Activity  `json:"recent"`
}

// Check is one readiness condition.
type Check struct {
	Pass      bool    `json:"pass"`
	Value     float64 `json:"value"`
	Threshold float64 `json:"threshold,omitempty"`
}

// Readiness is the pass/fail deployment report.
type Readiness struct {
	Ready  bool             `json:"ready"`
	Status Status           `json:"status"`
	Checks map[string]Check `json:"checks"`
}

// Options tune a Monitor. Zero values pick the defaults.
type Options struct {
	HealthInterval time.Duration
	Now            func() time.Time
}

// Monitor is safe for concurrent use.
type Monitor struct {
	mu sync.Mutex

	started            time.Time
	quotes             int64
	errors             int64
	warnings           int64
	validationFailures int64
	highValue          int64
	avgResponseMs      float64
	hasResponse        bool

	recent [recentCapacity]QuoteEvent
	head   int
	size   int

	lastAnomaly time.Time

	interval time.Duration
	now      func() time.Time
	metrics  *collectors
	events   *eventlog.Log
	log      *zap.Logger
}

// New builds a Monitor and registers its collectors on reg. A nil reg skips
// registration.
func New(reg prometheus.Registerer, events *eventlog.Log, log *zap.Logger, opts Options) (*Monitor, error) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.HealthInterval <= 0 {
		opts.HealthInterval = DefaultHealthInterval
	}
	m := &Monitor{
		started:  opts.Now(),
		interval: opts.HealthInterval,
		now:      opts.Now,
		metrics:  newCollectors(),
		events:   events,
		log:      logging.OrNop(log),
	}
	if reg != nil {
		if err := m.metrics.register(reg); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// RecordQuote counts a quote, updates the response time average and the
// recent ring, and runs the rate anomaly check.
func (m *Monitor) RecordQuote(ev QuoteEvent) {
	if ev.At.IsZero() {
		ev.At = m.now()
	}
	ms := float64(ev.ResponseTime) / float64(time.Millisecond)

	m.mu.Lock()
	m.quotes++
	m.warnings += int64(ev.Warnings)
	highValue := ev.Amount > highValueAmount
	if highValue {
		m.highValue++
	}
	if m.hasResponse {
		m.avgResponseMs = responseAlpha*ms + (1-responseAlpha)*m.avgResponseMs
	} else {
		m.avgResponseMs = ms
		m.hasResponse = true
	}
	m.recent[m.head] = ev
	m.head = (m.head + 1) % recentCapacity
	if m.size < recentCapacity {
		m.size++
	}
	inWindow, anomaly := m.checkRateLocked(ev.At)
	m.mu.Unlock()

	m.metrics.quotes.Inc()
	m.metrics.warnings.Add(float64(ev.Warnings))
	if highValue {
		m.metrics.highValue.Inc()
	}
	m.metrics.responseTime.Observe(ev.ResponseTime.Seconds())
	m.metrics.quoteAmount.Observe(ev.Amount)

	if anomaly {
		m.metrics.anomalies.Inc()
		m.log.Warn("quote rate anomaly", zap.Int("quotes_in_window", inWindow), zap.Duration("window", anomalyWindow))
		m.events.Write(eventlog.StreamAlerts, "rate_limit_warning",
			zap.Int("quotes_in_window", inWindow),
			zap.Int("threshold", anomalyThreshold),
			zap.Duration("window", anomalyWindow))
	}
}

// checkRateLocked counts ring entries inside the trailing window. A warning
// fires at most once per window.
func (m *Monitor) checkRateLocked(now time.Time) (int, bool) {
	cutoff := now.Add(-anomalyWindow)
	n := 0
	for i := 0; i < m.size; i++ {
		if m.recent[i].At.After(cutoff) {
			n++
		}
	}
	if n <= anomalyThreshold {
		return n, false
	}
	if !m.lastAnomaly.IsZero() && now.Sub(m.lastAnomaly) < anomalyWindow {
		return n, false
	}
	m.lastAnomaly = now
	return n, true
}

// RecordValidationFailure counts a quote blocked by safety validation.
func (m *Monitor) RecordValidationFailure() {
	m.mu.Lock()
	m.validationFailures++
	m.mu.Unlock()
	m.metrics.validationFailures.Inc()
}

// RecordError counts a failed operation.
func (m *Monitor) RecordError(operation string, err error) {
	m.mu.Lock()
	m.errors++
	m.mu.Unlock()
	m.metrics.errors.WithLabelValues(operation).Inc()
	m.log.Error("operation failed", zap.String("operation", operation), zap.Error(err))
}

func statusFor(errorRate float64) Status {
	switch {
	case errorRate < healthyErrorRate:
		return StatusHealthy
	case errorRate < warningErrorRate:
		return StatusWarning
	default:
		return StatusCritical
	}
}

func (m *Monitor) errorRateLocked() float64 {
	total := m.quotes + m.errors
	if total == 0 {
		return 0
	}
	return float64(m.errors) / float64(total)
}

func (m *Monitor) activityLocked() Activity {
	a := Activity{Count: m.size, SystemDistribution: map[string]int{}}
	if m.size == 0 {
		return a
	}
	sum, multi := 0.0, 0
	a.MinAmount = math.Inf(1)
	for i := 0; i < m.size; i++ {
		ev := m.recent[i]
		sum += ev.Amount
		a.MinAmount = math.Min(a.MinAmount, ev.Amount)
		a.MaxAmount = math.Max(a.MaxAmount, ev.Amount)
		a.SystemDistribution[ev.SystemType]++
		if ev.MultiSite {
			multi++
		}
	}
	a.AverageAmount = sum / float64(m.size)
	a.MultiSitePercent = float64(multi) / float64(m.size) * 100
	return a
}

// Snapshot returns the current health.
func (m *Monitor) Snapshot() Health {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	rate := m.errorRateLocked()
	return Health{
		Status:             statusFor(rate),
		Timestamp:          now,
		UptimeSeconds:      now.Sub(m.started).Seconds(),
		QuotesGenerated:    m.quotes,
		Errors:             m.errors,
		Warnings:           m.warnings,
		ValidationFailures: m.validationFailures,
		HighValueQuotes:    m.highValue,
		ErrorRate:          rate,
		AvgResponseMs:      m.avgResponseMs,
		Recent:             m.activityLocked(),
	}
}

// Readiness combines error rate, response time and status.
func (m *Monitor) Readiness() Readiness {
	h := m.Snapshot()
	checks := map[string]Check{
		"error_rate":          {Pass: h.ErrorRate < healthyErrorRate, Value: h.ErrorRate, Threshold: healthyErrorRate},
		"avg_response_ms":     {Pass: h.AvgResponseMs < readyResponseLimit, Value: h.AvgResponseMs, Threshold: readyResponseLimit},
		"status_not_critical": {Pass: h.Status != StatusCritical},
	}
	ready := true
	for _, c := range checks {
		ready = ready && c.Pass
	}
	return Readiness{Ready: ready, Status: h.Status, Checks: checks}
}

// ReportHealth writes one snapshot to the health stream and updates the
// status gauge.
func (m *Monitor) ReportHealth() Health {
	h := m.Snapshot()
	switch h.Status {
	case StatusHealthy:
		m.metrics.healthStatus.Set(0)
	case StatusWarning:
		m.metrics.healthStatus.Set(1)
	default:
		m.metrics.healthStatus.Set(2)
	}
	m.events.Write(eventlog.StreamHealth, "health_report",
		zap.String("status", string(h.Status)),
		zap.Int64("quotes_generated", h.QuotesGenerated),
		zap.Int64("errors", h.Errors),
		zap.Float64("error_rate", h.ErrorRate),
		zap.Float64("avg_response_ms", h.AvgResponseMs),
		zap.Int("recent_count", h.Recent.Count),
		zap.Float64("recent_avg_amount", h.Recent.AverageAmount),
		zap.Float64("recent_min_amount", h.Recent.MinAmount),
		zap.Float64("recent_max_amount", h.Recent.MaxAmount),
		zap.Any("system_distribution", h.Recent.SystemDistribution),
		zap.Float64("multi_site_percent", h.Recent.MultiSitePercent),
	)
	if h.Status == StatusCritical {
		m.events.Write(eventlog.StreamCritical, "health_critical", zap.Float64("error_rate", h.ErrorRate))
	}
	return h
}

// Run reports health every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.ReportHealth()
		}
	}
}
