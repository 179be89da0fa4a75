package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/mmamrila/aiquoting-sub001/internal/keylock"
	"github.com/mmamrila/aiquoting-sub001/internal/models"
	"github.com/mmamrila/aiquoting-sub001/internal/pricing"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrQuoteNotFound = errors.New("quote_not_found")

// TotalsService derives quote totals from the quote's items. Writers of a
// quote hold its lock so totals never interleave with item changes.
type TotalsService struct {
	db      *gorm.DB
	timeout time.Duration
	locks   keylock.Map
}

func NewTotalsService(db *gorm.DB, timeout time.Duration) *TotalsService {
	return &TotalsService{db: db, timeout: timeout}
}

// Lock serialises writers of one quote.
func (s *TotalsService) Lock(quoteID uint) (unlock func()) {
	return s.locks.Lock(strconv.FormatUint(uint64(quoteID), 10))
}

// Calculate recomputes and stores the totals of a quote.
func (s *TotalsService) Calculate(ctx context.Context, quoteID uint) (pricing.Breakdown, error) {
	unlock := s.Lock(quoteID)
	defer unlock()

	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	var b pricing.Breakdown
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		b, err = s.CalculateTx(tx, quoteID)
		return err
	})
	return b, err
}

// CalculateTx is Calculate inside a caller transaction. The caller must hold
// the quote's lock.
func (s *TotalsService) CalculateTx(tx *gorm.DB, quoteID uint) (pricing.Breakdown, error) {
	var count int64
	if err := tx.Model(&models.Quote{}).Where("id = ?", quoteID).Count(&count).Error; err != nil {
		return pricing.Breakdown{}, fmt.Errorf("load quote %d: %w", quoteID, err)
	}
	if count == 0 {
		return pricing.Breakdown{}, ErrQuoteNotFound
	}

	var items []models.QuoteItem
	if err := tx.Where("quote_id = ?", quoteID).Order("id").Find(&items).Error; err != nil {
		return pricing.Breakdown{}, fmt.Errorf("load items of quote %d: %w", quoteID, err)
	}

	parts, hours := decimal.Zero, decimal.Zero
	for _, item := range items {
		parts = parts.Add(decimal.NewFromFloat(item.TotalPrice))
		hours = hours.Add(decimal.NewFromFloat(item.LaborHours))
	}
	b := pricing.Totals(parts.InexactFloat64(), hours.InexactFloat64())

	err := tx.Model(&models.Quote{}).Where("id = ?", quoteID).Updates(map[string]any{
		"total_parts":  b.Parts,
		"total_labor":  b.Labor,
		"total_tax":    b.Tax,
		"total_amount": b.Amount,
	}).Error
	if err != nil {
		return pricing.Breakdown{}, fmt.Errorf("update totals of quote %d: %w", quoteID, err)
	}
	return b, nil
}
