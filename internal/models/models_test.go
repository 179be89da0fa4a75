package models

import (
	"testing"
)

func TestQuote_Status(t *testing.T) {
	tests := []struct {
		name     string
		status   QuoteStatus
		isDraft  bool
		isClosed bool
	}{
		{"draft", QuoteStatusDraft, true, false},
		{"sent", QuoteStatusSent, false, false},
		{"won", QuoteStatusWon, false, true},
		{"lost", QuoteStatusLost, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &Quote{Status: tt.status}
			if got := q.IsDraft(); got != tt.isDraft {
				t.Errorf("IsDraft() = %v, want %v", got, tt.isDraft)
			}
			if got := q.IsClosed(); got != tt.isClosed {
				t.Errorf("IsClosed() = %v, want %v", got, tt.isClosed)
			}
			if !tt.status.Valid() {
				t.Errorf("Valid() = false for %q", tt.status)
			}
		})
	}

	if QuoteStatus("accepted").Valid() {
		t.Error("Valid() = true for unknown status")
	}
}

func TestQuote_LaborHours(t *testing.T) {
	partID := uint(7)
	q := &Quote{
		Items: []QuoteItem{
			{PartID: &partID, Quantity: 10, UnitPrice: 400, TotalPrice: 4000},
			{Quantity: 1, LaborHours: 12},
			{Quantity: 1, LaborHours: 3.5},
		},
	}
	if got := q.LaborHours(); got != 15.5 {
		t.Errorf("LaborHours() = %f, want 15.5", got)
	}
	if q.Items[0].IsServiceCharge() {
		t.Error("part row reported as service charge")
	}
	if !q.Items[1].IsServiceCharge() {
		t.Error("labor row not reported as service charge")
	}
}

func TestOutcomeResult(t *testing.T) {
	if got := OutcomeWon.QuoteStatus(); got != QuoteStatusWon {
		t.Errorf("won -> %q", got)
	}
	if got := OutcomeLost.QuoteStatus(); got != QuoteStatusLost {
		t.Errorf("lost -> %q", got)
	}
	if OutcomeResult("pending").Valid() {
		t.Error("pending should not be a valid outcome")
	}
}

func TestPatternType_Valid(t *testing.T) {
	for _, pt := range PatternTypes {
		if !pt.Valid() {
			t.Errorf("%q should be valid", pt)
		}
	}
	if PatternType("seasonality").Valid() {
		t.Error("unknown pattern type reported valid")
	}
}

func TestTableNames(t *testing.T) {
	tests := map[string]string{
		EnhancedPart{}.TableName():     "parts_enhanced",
		LearningPattern{}.TableName():  "ai_learning_patterns",
		PatternAggregate{}.TableName(): "ai_pattern_aggregates",
		Outcome{}.TableName():          "quote_outcomes",
		Interaction{}.TableName():      "ai_interactions_enhanced",
	}
	for got, want := range tests {
		if got != want {
			t.Errorf("TableName() = %q, want %q", got, want)
		}
	}
}

func TestQuoteItem_IsServiceCharge(t *testing.T) {
	id := uint(7)
	tests := []struct {
		name string
		item QuoteItem
		want bool
	}{
		{"part row", QuoteItem{PartID: &id, PartSource: PartSourceEnhanced, PartSKU: "RAD-UHF-P100"}, false},
		{"service charge", QuoteItem{Notes: "Installation labor: 13h at $85/h"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.item.IsServiceCharge(); got != tt.want {
				t.Errorf("IsServiceCharge() = %v, want %v", got, tt.want)
			}
		})
	}
}
