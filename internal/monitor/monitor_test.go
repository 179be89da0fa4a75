package monitor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mmamrila/aiquoting-sub001/internal/eventlog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newMonitor(t *testing.T) (*Monitor, *clock, *prometheus.Registry, map[eventlog.Stream]*syncBuffer) {
	t.Helper()
	clk := &clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	bufs := map[eventlog.Stream]*syncBuffer{}
	writers := map[eventlog.Stream]io.Writer{}
	for _, s := range eventlog.Streams {
		bufs[s] = &syncBuffer{}
		writers[s] = bufs[s]
	}
	reg := prometheus.NewRegistry()
	m, err := New(reg, eventlog.New(writers), nil, Options{Now: clk.Now, HealthInterval: 10 * time.Millisecond})
	require.NoError(t, err)
	return m, clk, reg, bufs
}

func TestResponseTimeEMA(t *testing.T) {
	m, clk, _, _ := newMonitor(t)
	m.RecordQuote(QuoteEvent{Amount: 1000, ResponseTime: 100 * time.Millisecond})
	clk.Advance(time.Minute)
	m.RecordQuote(QuoteEvent{Amount: 1000, ResponseTime: 200 * time.Millisecond})

	h := m.Snapshot()
	assert.InDelta(t, 110.0, h.AvgResponseMs, 1e-9)
	assert.EqualValues(t, 2, h.QuotesGenerated)
}

func TestRecentRingIsBounded(t *testing.T) {
	m, clk, _, _ := newMonitor(t)
	for i := 0; i < 150; i++ {
		clk.Advance(time.Minute)
		m.RecordQuote(QuoteEvent{Amount: float64(i + 1), SystemType: "Capacity Plus"})
	}
	h := m.Snapshot()
	assert.Equal(t, 100, h.Recent.Count)
	assert.Equal(t, 51.0, h.Recent.MinAmount)
	assert.Equal(t, 150.0, h.Recent.MaxAmount)
	assert.InDelta(t, 100.5, h.Recent.AverageAmount, 1e-9)
	assert.Equal(t, map[string]int{"Capacity Plus": 100}, h.Recent.SystemDistribution)
}

func TestActivityBreakdown(t *testing.T) {
	m, _, _, _ := newMonitor(t)
	m.RecordQuote(QuoteEvent{Amount: 10_000, SystemType: "IP Site Connect", MultiSite: true})
	m.RecordQuote(QuoteEvent{Amount: 30_000, SystemType: "Capacity Plus"})
	m.RecordQuote(QuoteEvent{Amount: 200_000, SystemType: "Capacity Plus", Warnings: 1})
	m.RecordQuote(QuoteEvent{Amount: 40_000, SystemType: "Conventional"})
	m.RecordValidationFailure()

	h := m.Snapshot()
	assert.Equal(t, 25.0, h.Recent.MultiSitePercent)
	assert.Equal(t, 70_000.0, h.Recent.AverageAmount)
	assert.EqualValues(t, 1, h.HighValueQuotes)
	assert.EqualValues(t, 1, h.Warnings)
	assert.EqualValues(t, 1, h.ValidationFailures)
}

func TestStatusFromErrorRate(t *testing.T) {
	tests := []struct {
		rate float64
		want Status
	}{
		{0, StatusHealthy},
		{0.0099, StatusHealthy},
		{0.01, StatusWarning},
		{0.049, StatusWarning},
		{0.05, StatusCritical},
		{0.5, StatusCritical},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusFor(tt.rate), "rate %v", tt.rate)
	}
}

func TestReadiness(t *testing.T) {
	m, clk, _, _ := newMonitor(t)
	for i := 0; i < 10; i++ {
		clk.Advance(time.Minute)
		m.RecordQuote(QuoteEvent{Amount: 1000, ResponseTime: 50 * time.Millisecond})
	}
	r := m.Readiness()
	assert.True(t, r.Ready)
	assert.Equal(t, StatusHealthy, r.Status)

	m.RecordError("create_quote", errors.New("db down"))
	r = m.Readiness()
	assert.False(t, r.Ready)
	assert.Equal(t, StatusCritical, r.Status)
	assert.False(t, r.Checks["error_rate"].Pass)
	assert.True(t, r.Checks["avg_response_ms"].Pass)
}

func TestReadinessSlowResponses(t *testing.T) {
	m, _, _, _ := newMonitor(t)
	m.RecordQuote(QuoteEvent{Amount: 1000, ResponseTime: 4 * time.Second})
	r := m.Readiness()
	assert.False(t, r.Ready)
	assert.False(t, r.Checks["avg_response_ms"].Pass)
}

func TestRateAnomaly(t *testing.T) {
	m, clk, _, bufs := newMonitor(t)
	for i := 0; i < 20; i++ {
		clk.Advance(time.Second)
		m.RecordQuote(QuoteEvent{Amount: 1000})
	}
	assert.NotContains(t, bufs[eventlog.StreamAlerts].String(), "rate_limit_warning")

	clk.Advance(time.Second)
	m.RecordQuote(QuoteEvent{Amount: 1000})
	assert.Equal(t, 1, strings.Count(bufs[eventlog.StreamAlerts].String(), "rate_limit_warning"))

	// suppressed for the rest of the window
	clk.Advance(time.Second)
	m.RecordQuote(QuoteEvent{Amount: 1000})
	assert.Equal(t, 1, strings.Count(bufs[eventlog.StreamAlerts].String(), "rate_limit_warning"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.anomalies))
}

func TestQuotesOutsideWindowDoNotCount(t *testing.T) {
	m, clk, _, bufs := newMonitor(t)
	for i := 0; i < 40; i++ {
		clk.Advance(20 * time.Second)
		m.RecordQuote(QuoteEvent{Amount: 1000})
	}
	assert.NotContains(t, bufs[eventlog.StreamAlerts].String(), "rate_limit_warning")
}

func TestPrometheusCounters(t *testing.T) {
	m, _, reg, _ := newMonitor(t)
	m.RecordQuote(QuoteEvent{Amount: 150_000, Warnings: 1})
	m.RecordError("totals", errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.quotes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.highValue))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.metrics.errors.WithLabelValues("totals")))

	_, err := New(reg, eventlog.Nop(), nil, Options{})
	assert.Error(t, err, "registering twice on the same registry fails")
}

func TestRunWritesHealthReports(t *testing.T) {
	m, _, _, bufs := newMonitor(t)
	m.RecordQuote(QuoteEvent{Amount: 1000, SystemType: "Capacity Plus"})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return strings.Contains(bufs[eventlog.StreamHealth].String(), "health_report")
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.Contains(t, bufs[eventlog.StreamHealth].String(), `"status":"HEALTHY"`)
}
