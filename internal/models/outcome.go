package models

import (
	"time"

	"gorm.io/datatypes"
)

// OutcomeResult is the final sales result reported for a quote.
type OutcomeResult string

const (
	OutcomeWon  OutcomeResult = "won"
	OutcomeLost OutcomeResult = "lost"
)

// Valid reports whether r is won or lost.
func (r OutcomeResult) Valid() bool {
	return r == OutcomeWon || r == OutcomeLost
}

// QuoteStatus maps an outcome to the status the quote transitions to.
func (r OutcomeResult) QuoteStatus() QuoteStatus {
	if r == OutcomeWon {
		return QuoteStatusWon
	}
	return QuoteStatusLost
}

// Outcome is reported by the CRM once a quote is won or lost.
type Outcome struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	QuoteID uint          `gorm:"index;not null" json:"quote_id"`
	Outcome OutcomeResult `gorm:"size:10;not null" json:"outcome"`

	PerformanceRating      int     `json:"performance_rating,omitempty"`
	ActualInstallationTime float64 `json:"actual_installation_time,omitempty"` // hours

	IssuesEncountered datatypes.JSONSlice[string] `json:"issues_encountered,omitempty"`
}

// TableName overrides the default table name.
func (Outcome) TableName() string { return "quote_outcomes" }

// Interaction records one assistant session step that produced a quote.
type Interaction struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	SessionID            string `gorm:"size:64;index;not null" json:"session_id"`
	IntentClassification string `gorm:"size:100" json:"intent_classification"`
	UserSatisfaction     *int   `json:"user_satisfaction,omitempty"`
	FollowUpRequired     bool   `json:"follow_up_required"`
}

// TableName overrides the default table name.
func (Interaction) TableName() string { return "ai_interactions_enhanced" }

// All returns every model managed by AutoMigrate, in dependency order.
func All() []any {
	return []any{
		&Part{},
		&EnhancedPart{},
		&Client{},
		&Quote{},
		&QuoteItem{},
		&Outcome{},
		&LearningPattern{},
		&PatternAggregate{},
		&Interaction{},
	}
}
