package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mmamrila/aiquoting-sub001/internal/logging"
	"github.com/mmamrila/aiquoting-sub001/internal/models"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const learnTimeout = 30 * time.Second

var (
	ErrInvalidOutcome = errors.New("invalid_outcome")
	ErrQuoteClosed    = errors.New("quote_closed")
)

// OutcomeReport is the CRM's won/lost report for a quote.
type OutcomeReport struct {
	Outcome                models.OutcomeResult `json:"outcome" validate:"required,oneof=won lost"`
	PerformanceRating      int                  `json:"performance_rating,omitempty" validate:"gte=0,lte=5"`
	ActualInstallationTime float64              `json:"actual_installation_time,omitempty" validate:"gte=0"`
	IssuesEncountered      []string             `json:"issues_encountered,omitempty" validate:"dive,required,max=100"`
}

// Learner consumes recorded outcomes.
type Learner interface {
	LearnFromOutcome(ctx context.Context, quoteID uint, outcome models.Outcome) error
}

// OutcomeService records outcomes and hands them to the learner in the
// background. Learning failures never fail the report.
type OutcomeService struct {
	db      *gorm.DB
	totals  *TotalsService
	learner Learner
	timeout time.Duration
	log     *zap.Logger

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewOutcomeService(db *gorm.DB, totals *TotalsService, learner Learner, timeout time.Duration, log *zap.Logger) *OutcomeService {
	return &OutcomeService{db: db, totals: totals, learner: learner, timeout: timeout, log: logging.OrNop(log)}
}

// Record stores the outcome and moves the quote to won or lost. A quote
// accepts a single outcome.
func (s *OutcomeService) Record(ctx context.Context, quoteID uint, report OutcomeReport) (*models.Outcome, error) {
	if !report.Outcome.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidOutcome, report.Outcome)
	}
	if report.PerformanceRating < 0 || report.PerformanceRating > 5 || report.ActualInstallationTime < 0 {
		return nil, fmt.Errorf("%w: rating must be 0-5 and installation time non-negative", ErrInvalidOutcome)
	}
	issues := make([]string, 0, len(report.IssuesEncountered))
	for _, issue := range report.IssuesEncountered {
		if issue = strings.TrimSpace(issue); issue != "" {
			issues = append(issues, issue)
		}
	}

	unlock := s.totals.Lock(quoteID)
	defer unlock()

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	outcome := models.Outcome{
		QuoteID:                quoteID,
		Outcome:                report.Outcome,
		PerformanceRating:      report.PerformanceRating,
		ActualInstallationTime: report.ActualInstallationTime,
		IssuesEncountered:      datatypes.JSONSlice[string](issues),
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var q models.Quote
		err := tx.Select("id", "status").First(&q, quoteID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrQuoteNotFound
		}
		if err != nil {
			return fmt.Errorf("load quote %d: %w", quoteID, err)
		}
		if q.IsClosed() {
			return fmt.Errorf("%w: quote %d is %s", ErrQuoteClosed, quoteID, q.Status)
		}
		if err := tx.Create(&outcome).Error; err != nil {
			return fmt.Errorf("create outcome: %w", err)
		}
		err = tx.Model(&models.Quote{}).Where("id = ?", quoteID).Update("status", report.Outcome.QuoteStatus()).Error
		if err != nil {
			return fmt.Errorf("update status of quote %d: %w", quoteID, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("outcome recorded",
		zap.Uint("quote_id", quoteID),
		zap.String("outcome", string(outcome.Outcome)))
	s.learn(ctx, outcome)
	return &outcome, nil
}

func (s *OutcomeService) learn(ctx context.Context, outcome models.Outcome) {
	if s.learner == nil {
		return
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.log.Warn("outcome service closed, skipping learning", zap.Uint("quote_id", outcome.QuoteID))
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), learnTimeout)
	go func() {
		defer s.wg.Done()
		defer cancel()
		defer func() {
			if p := recover(); p != nil {
				s.log.Error("learning panicked", zap.Uint("quote_id", outcome.QuoteID), zap.Any("panic", p))
			}
		}()
		if err := s.learner.LearnFromOutcome(ctx, outcome.QuoteID, outcome); err != nil {
			s.log.Warn("learning from outcome failed", zap.Uint("quote_id", outcome.QuoteID), zap.Error(err))
		}
	}()
}

// Wait blocks until in-flight learning finishes.
func (s *OutcomeService) Wait() { s.wg.Wait() }

// Close stops accepting learning work and waits for in-flight passes.
func (s *OutcomeService) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.wg.Wait()
}
