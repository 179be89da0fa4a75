package main

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/mmamrila/aiquoting-sub001/internal/catalog"
	"github.com/mmamrila/aiquoting-sub001/internal/config"
	"github.com/mmamrila/aiquoting-sub001/internal/eventlog"
	"github.com/mmamrila/aiquoting-sub001/internal/handlers"
	"github.com/mmamrila/aiquoting-sub001/internal/httpx"
	"github.com/mmamrila/aiquoting-sub001/internal/learning"
	"github.com/mmamrila/aiquoting-sub001/internal/monitor"
	"github.com/mmamrila/aiquoting-sub001/internal/safety"
	"github.com/mmamrila/aiquoting-sub001/internal/services"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// App is the main application handler that sets up all routes.
type App struct {
	mux *http.ServeMux
	log *zap.Logger

	parts    *handlers.PartHandler
	quotes   *handlers.QuoteHandler
	patterns *handlers.PatternHandler
	health   *handlers.HealthHandler
	metrics  http.Handler

	monitor   *monitor.Monitor
	learning  *learning.Engine
	validator *safety.Validator
	outcomes  *services.OutcomeService
	cfg       *config.Config

	wg sync.WaitGroup
}

// NewApp wires the services over conn and configures all routes. Metrics
// are registered on reg.
func NewApp(cfg *config.Config, conn *gorm.DB, events *eventlog.Log, reg *prometheus.Registry, log *zap.Logger) (*App, error) {
	mon, err := monitor.New(reg, events, log, monitor.Options{HealthInterval: cfg.Monitor.HealthInterval})
	if err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}
	timeout := cfg.Store.Timeout

	cat := catalog.New(conn, timeout, log)
	validator := safety.NewValidator(events, nil, log)
	clients := services.NewClientService(conn, timeout, log)
	totals := services.NewTotalsService(conn, timeout)
	quotes := services.NewQuoteService(conn, cat, clients, totals, validator, mon, timeout, log)
	engine := learning.New(conn, cat, timeout, log)
	outcomes := services.NewOutcomeService(conn, totals, engine, timeout, log)

	app := &App{
		mux:       http.NewServeMux(),
		log:       log,
		parts:     handlers.NewPartHandler(cat, log),
		quotes:    handlers.NewQuoteHandler(quotes, totals, outcomes, validator, log),
		patterns:  handlers.NewPatternHandler(engine, log),
		health:    handlers.NewHealthHandler(mon),
		metrics:   promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
		monitor:   mon,
		learning:  engine,
		validator: validator,
		outcomes:  outcomes,
		cfg:       cfg,
	}
	app.setupRoutes()
	return app, nil
}

// ServeHTTP implements http.Handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.recoverer(a.mux).ServeHTTP(w, r)
}

// setupRoutes configures all application routes.
func (a *App) setupRoutes() {
	// Catalog
	a.mux.HandleFunc("GET /parts", a.parts.List)
	a.mux.HandleFunc("GET /parts/{id}", a.parts.Get)

	// Quotes
	a.mux.HandleFunc("POST /quotes", a.quotes.Create)
	a.mux.HandleFunc("POST /quotes/system", a.quotes.CreateSystem)
	a.mux.HandleFunc("POST /quotes/multisite", a.quotes.CreateMultiSite)
	a.mux.HandleFunc("POST /quotes/validate", a.quotes.Validate)
	a.mux.HandleFunc("GET /quotes/{id}", a.quotes.Get)
	a.mux.HandleFunc("POST /quotes/{id}/totals", a.quotes.Totals)
	a.mux.HandleFunc("POST /quotes/{id}/outcome", a.quotes.Outcome)

	// Learning
	a.mux.HandleFunc("GET /patterns", a.patterns.List)
	a.mux.HandleFunc("POST /recommendations/enrich", a.patterns.Enrich)

	// Operations
	a.mux.HandleFunc("GET /health", a.health.Health)
	a.mux.HandleFunc("GET /ready", a.health.Ready)
	a.mux.Handle("GET /metrics", a.metrics)
}

func (a *App) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				a.log.Error("handler panic", zap.String("path", r.URL.Path), zap.Any("panic", p))
				a.monitor.RecordError("http", fmt.Errorf("panic: %v", p))
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Start launches the health reporter and the pattern flush loop. Both stop
// when ctx is done; Close waits for them.
func (a *App) Start(ctx context.Context) {
	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		a.monitor.Run(ctx)
	}()
	go func() {
		defer a.wg.Done()
		a.learning.Run(ctx, a.cfg.Learning.FlushInterval)
	}()
}

// Close drains background work: in-flight learning first, then the loops
// started by Start (which flush patterns once more), then pending alerts.
func (a *App) Close() {
	a.outcomes.Close()
	a.wg.Wait()
	a.validator.Close()
}

// withLogging adds request logging middleware.
func withLogging(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
