package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mmamrila/aiquoting-sub001/internal/models"
	"github.com/mmamrila/aiquoting-sub001/internal/pricing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLearner struct {
	mu    sync.Mutex
	calls []models.Outcome
	err   error
}

func (l *fakeLearner) LearnFromOutcome(_ context.Context, quoteID uint, o models.Outcome) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, o)
	return l.err
}

func TestRecordOutcome(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()
	q, _, err := f.quotes.CreateSystem(ctx, pricing.SystemCapacityPlus, 12, "healthcare", "")
	require.NoError(t, err)

	learner := &fakeLearner{}
	s := NewOutcomeService(f.db, f.totals, learner, 0, nil)
	defer s.Close()

	out, err := s.Record(ctx, q.ID, OutcomeReport{
		Outcome:                models.OutcomeWon,
		PerformanceRating:      4,
		ActualInstallationTime: 15,
		IssuesEncountered:      []string{"interference", " "},
	})
	require.NoError(t, err)
	assert.NotZero(t, out.ID)
	assert.Equal(t, []string{"interference"}, []string(out.IssuesEncountered))

	s.Wait()
	require.Len(t, learner.calls, 1)
	assert.Equal(t, q.ID, learner.calls[0].QuoteID)

	reloaded, err := f.quotes.Get(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusWon, reloaded.Status)

	_, err = s.Record(ctx, q.ID, OutcomeReport{Outcome: models.OutcomeLost})
	assert.ErrorIs(t, err, ErrQuoteClosed)

	var outcomes int64
	f.db.Model(&models.Outcome{}).Count(&outcomes)
	assert.EqualValues(t, 1, outcomes)
}

func TestRecordOutcomeLearnerFailureIsNotReported(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()
	q, _, err := f.quotes.CreateSystem(ctx, pricing.SystemCapacityPlus, 12, "retail", "")
	require.NoError(t, err)

	s := NewOutcomeService(f.db, f.totals, &fakeLearner{err: errors.New("boom")}, 0, nil)
	_, err = s.Record(ctx, q.ID, OutcomeReport{Outcome: models.OutcomeLost})
	require.NoError(t, err)
	s.Close()

	reloaded, err := f.quotes.Get(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, models.QuoteStatusLost, reloaded.Status)
}

func TestRecordOutcomeErrors(t *testing.T) {
	f := setupServices(t)
	s := NewOutcomeService(f.db, f.totals, nil, 0, nil)
	ctx := context.Background()

	_, err := s.Record(ctx, 1, OutcomeReport{Outcome: "maybe"})
	assert.ErrorIs(t, err, ErrInvalidOutcome)

	_, err = s.Record(ctx, 1, OutcomeReport{Outcome: models.OutcomeWon, PerformanceRating: 9})
	assert.ErrorIs(t, err, ErrInvalidOutcome)

	_, err = s.Record(ctx, 404, OutcomeReport{Outcome: models.OutcomeWon})
	assert.ErrorIs(t, err, ErrQuoteNotFound)
}

func TestRecordOutcomeAfterClose(t *testing.T) {
	f := setupServices(t)
	ctx := context.Background()
	q, _, err := f.quotes.CreateSystem(ctx, pricing.SystemCapacityPlus, 12, "retail", "")
	require.NoError(t, err)

	learner := &fakeLearner{}
	s := NewOutcomeService(f.db, f.totals, learner, 0, nil)
	s.Close()

	_, err = s.Record(ctx, q.ID, OutcomeReport{Outcome: models.OutcomeWon})
	require.NoError(t, err, "the outcome is still stored")
	s.Wait()
	assert.Empty(t, learner.calls)
}
