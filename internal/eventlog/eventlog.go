// Package eventlog writes the append-only side-channel logs: validation
// events, alerts, critical events and periodic health reports. Each stream is
// a newline-delimited JSON file. These logs are auxiliary; the database stays
// the system of record.
package eventlog

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Stream names one NDJSON file.
type Stream string

const (
	StreamValidation Stream = "validation"
	StreamAlerts     Stream = "alerts"
	StreamCritical   Stream = "critical"
	StreamHealth     Stream = "health"
)

// Streams lists every stream opened by Open.
var Streams = []Stream{StreamValidation, StreamAlerts, StreamCritical, StreamHealth}

// Log fans events out to one zap JSON core per stream.
type Log struct {
	mu      sync.RWMutex
	loggers map[Stream]*zap.Logger
	closers []io.Closer
}

func encoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		TimeKey:        "ts",
		MessageKey:     "event",
		LevelKey:       "level",
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeDuration: zapcore.MillisDurationEncoder,
		LineEnding:     zapcore.DefaultLineEnding,
	}
}

// New builds a Log over arbitrary writers, one per stream. Streams without a
// writer are discarded.
func New(writers map[Stream]io.Writer) *Log {
	l := &Log{loggers: make(map[Stream]*zap.Logger, len(writers))}
	for stream, w := range writers {
		core := zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig()),
			zapcore.AddSync(w),
			zapcore.DebugLevel,
		)
		l.loggers[stream] = zap.New(core).With(zap.String("stream", string(stream)))
	}
	return l
}

// Open creates (or appends to) <dir>/<stream>.jsonl for every stream.
func Open(dir string) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create event log dir: %w", err)
	}
	writers := make(map[Stream]io.Writer, len(Streams))
	var closers []io.Closer
	for _, stream := range Streams {
		path := filepath.Join(dir, string(stream)+".jsonl")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			for _, c := range closers {
				_ = c.Close()
			}
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		writers[stream] = f
		closers = append(closers, f)
	}
	l := New(writers)
	l.closers = closers
	return l, nil
}

// Nop returns a Log that drops everything.
func Nop() *Log {
	return New(nil)
}

// Write appends one event to a stream. Writes to an unknown stream are dropped.
func (l *Log) Write(stream Stream, event string, fields ...zap.Field) {
	if l == nil {
		return
	}
	l.mu.RLock()
	logger, ok := l.loggers[stream]
	l.mu.RUnlock()
	if !ok {
		return
	}
	if stream == StreamCritical {
		logger.Error(event, fields...)
		return
	}
	logger.Info(event, fields...)
}

// Close flushes and closes the underlying files.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	var errs []error
	for _, logger := range l.loggers {
		_ = logger.Sync()
	}
	for _, c := range l.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	l.loggers = map[Stream]*zap.Logger{}
	l.closers = nil
	return errors.Join(errs...)
}
