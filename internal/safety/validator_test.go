package safety

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/mmamrila/aiquoting-sub001/internal/eventlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
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

func (b *syncBuffer) lines(t *testing.T) []map[string]any {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(b.buf.Bytes()))
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	return out
}

func newTestLog() (*eventlog.Log, map[eventlog.Stream]*syncBuffer) {
	bufs := map[eventlog.Stream]*syncBuffer{}
	writers := map[eventlog.Stream]io.Writer{}
	for _, s := range eventlog.Streams {
		bufs[s] = &syncBuffer{}
		writers[s] = bufs[s]
	}
	return eventlog.New(writers), bufs
}

func TestValidatorAuditsAndAlerts(t *testing.T) {
	events, bufs := newTestLog()
	v := NewValidator(events, nil, nil)

	r := v.Validate(context.Background(), QuoteData{
		SessionID:   "s-1",
		TotalAmount: 2_100_000,
		UserCount:   100,
		SystemType:  "Capacity Plus",
	})
	v.Close()

	assert.False(t, r.IsValid)

	audit := bufs[eventlog.StreamValidation].lines(t)
	require.Len(t, audit, 1)
	assert.Equal(t, "quote_validation", audit[0]["event"])
	assert.Equal(t, "s-1", audit[0]["session_id"])
	assert.Equal(t, false, audit[0]["is_valid"])
	assert.Contains(t, audit[0]["errors"], string(KindCriticalAmount))

	// amount and price-per-user errors, plus the high value warning
	alerts := bufs[eventlog.StreamAlerts].lines(t)
	assert.Len(t, alerts, 3)
	critical := bufs[eventlog.StreamCritical].lines(t)
	assert.Len(t, critical, 2)
}

func TestValidatorValidQuoteRaisesNoAlerts(t *testing.T) {
	events, bufs := newTestLog()
	v := NewValidator(events, nil, nil)
	r := v.Validate(context.Background(), QuoteData{SessionID: "s-2", TotalAmount: 50_000, UserCount: 100, SystemType: "Capacity Plus"})
	v.Close()

	assert.True(t, r.IsValid)
	assert.Len(t, bufs[eventlog.StreamValidation].lines(t), 1)
	assert.Empty(t, bufs[eventlog.StreamAlerts].lines(t))
}

func TestValidatorNotifierFailureIsLogged(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	notifier := NotifierFunc(func(context.Context, Alert) error {
		return errors.New("smtp down")
	})
	v := NewValidator(eventlog.Nop(), notifier, zap.New(core))

	r := v.Validate(context.Background(), QuoteData{TotalAmount: 150_000, UserCount: 300, SystemType: "Capacity Plus"})
	v.Close()

	assert.True(t, r.IsValid)
	assert.Equal(t, 1, logs.FilterMessage("alert delivery failed").Len())
}

func TestValidatorNotifierPanicIsRecovered(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	notifier := NotifierFunc(func(context.Context, Alert) error {
		panic("boom")
	})
	v := NewValidator(eventlog.Nop(), notifier, zap.New(core))
	v.Validate(context.Background(), QuoteData{TotalAmount: 150_000, UserCount: 300, SystemType: "Capacity Plus"})
	v.Close()

	assert.Equal(t, 1, logs.FilterMessage("alert notifier panicked").Len())
}

func TestValidatorCloseIsIdempotent(t *testing.T) {
	v := NewValidator(eventlog.Nop(), nil, nil)
	v.Close()
	v.Close()
	r := v.Validate(context.Background(), QuoteData{TotalAmount: 150_000, UserCount: 300, SystemType: "Capacity Plus"})
	assert.True(t, r.IsValid)
}
