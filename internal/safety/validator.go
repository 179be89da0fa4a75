package safety

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mmamrila/aiquoting-sub001/internal/eventlog"
	"github.com/mmamrila/aiquoting-sub001/internal/logging"
	"go.uber.org/zap"
)

const defaultAlertBuffer = 64

// Alert is a manager notification or critical alert raised by a validation.
type Alert struct {
	ID          string
	Kind        Kind
	Severity    Severity
	SessionID   string
	QuoteNumber string
	Amount      float64
	Message     string
	At          time.Time
}

// Notifier delivers alerts. Delivery errors are logged and never reach the
// validation caller.
type Notifier interface {
	Notify(ctx context.Context, a Alert) error
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, a Alert) error

func (f NotifierFunc) Notify(ctx context.Context, a Alert) error { return f(ctx, a) }

// EventLogNotifier writes alerts to the alerts stream, and STOP alerts to the
// critical stream as well.
type EventLogNotifier struct {
	Events *eventlog.Log
}

func (n EventLogNotifier) Notify(_ context.Context, a Alert) error {
	fields := []zap.Field{
		zap.String("id", a.ID),
		zap.String("kind", string(a.Kind)),
		zap.String("severity", string(a.Severity)),
		zap.String("session_id", a.SessionID),
		zap.String("quote_number", a.QuoteNumber),
		zap.Float64("amount", a.Amount),
		zap.String("message", a.Message),
	}
	n.Events.Write(eventlog.StreamAlerts, "alert", fields...)
	if a.Severity == SeverityStop {
		n.Events.Write(eventlog.StreamCritical, "critical_alert", fields...)
	}
	return nil
}

// Validator evaluates quotes, records an audit event per evaluation and hands
// alerts to a background worker.
type Validator struct {
	events   *eventlog.Log
	notifier Notifier
	log      *zap.Logger

	alerts chan Alert
	done   chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

// NewValidator starts the alert worker. Close must be called to stop it.
// A nil notifier writes alerts to the event log.
func NewValidator(events *eventlog.Log, notifier Notifier, log *zap.Logger) *Validator {
	if notifier == nil {
		notifier = EventLogNotifier{Events: events}
	}
	v := &Validator{
		events:   events,
		notifier: notifier,
		log:      logging.OrNop(log),
		alerts:   make(chan Alert, defaultAlertBuffer),
		done:     make(chan struct{}),
	}
	v.wg.Add(1)
	go v.dispatch()
	return v
}

// Validate evaluates q. It never fails: audit and alert problems are logged.
func (v *Validator) Validate(ctx context.Context, q QuoteData) Result {
	r := Evaluate(q)
	v.audit(q, r)

	for _, e := range r.Errors {
		v.enqueue(newAlert(q, e))
	}
	for _, w := range r.Warnings {
		if w.Kind == KindHighValue {
			v.enqueue(newAlert(q, w))
		}
	}
	if !r.IsValid {
		v.log.Warn("quote blocked by safety validation",
			zap.String("session_id", q.SessionID),
			zap.Float64("amount", q.TotalAmount),
			zap.Any("kinds", r.Kinds()))
	}
	return r
}

func newAlert(q QuoteData, issue Issue) Alert {
	return Alert{
		ID:          uuid.NewString(),
		Kind:        issue.Kind,
		Severity:    issue.Severity,
		SessionID:   q.SessionID,
		QuoteNumber: q.QuoteNumber,
		Amount:      q.TotalAmount,
		Message:     issue.Message,
		At:          time.Now().UTC(),
	}
}

func kindStrings(issues []Issue) []string {
	out := make([]string, len(issues))
	for i, is := range issues {
		out[i] = string(is.Kind)
	}
	return out
}

func (v *Validator) audit(q QuoteData, r Result) {
	v.events.Write(eventlog.StreamValidation, "quote_validation",
		zap.String("id", uuid.NewString()),
		zap.String("session_id", q.SessionID),
		zap.String("quote_number", q.QuoteNumber),
		zap.Float64("amount", q.TotalAmount),
		zap.Int("user_count", q.UserCount),
		zap.String("system_type", q.SystemType),
		zap.Int("site_count", q.SiteCount),
		zap.Bool("is_valid", r.IsValid),
		zap.Strings("errors", kindStrings(r.Errors)),
		zap.Strings("warnings", kindStrings(r.Warnings)),
	)
}

func (v *Validator) enqueue(a Alert) {
	select {
	case <-v.done:
		v.log.Warn("alert dropped after shutdown", zap.String("kind", string(a.Kind)))
		return
	default:
	}
	select {
	case v.alerts <- a:
	default:
		v.log.Warn("alert buffer full, dropping alert",
			zap.String("kind", string(a.Kind)),
			zap.String("session_id", a.SessionID))
	}
}

func (v *Validator) dispatch() {
	defer v.wg.Done()
	for {
		select {
		case a := <-v.alerts:
			v.deliver(a)
		case <-v.done:
			for {
				select {
				case a := <-v.alerts:
					v.deliver(a)
				default:
					return
				}
			}
		}
	}
}

func (v *Validator) deliver(a Alert) {
	defer func() {
		if p := recover(); p != nil {
			v.log.Error("alert notifier panicked", zap.Any("panic", p), zap.String("kind", string(a.Kind)))
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := v.notifier.Notify(ctx, a); err != nil {
		v.log.Warn("alert delivery failed", zap.Error(err), zap.String("kind", string(a.Kind)))
	}
}

// Close stops the alert worker after draining queued alerts.
func (v *Validator) Close() {
	v.once.Do(func() {
		close(v.done)
		v.wg.Wait()
	})
}
