package models

import (
	"time"

	"gorm.io/datatypes"
)

// PatternType identifies which payload a learning pattern carries.
type PatternType string

const (
	PatternProductCombination   PatternType = "product_combination"
	PatternIndustryPreference   PatternType = "industry_preference"
	PatternPriceSensitivity     PatternType = "price_sensitivity"
	PatternConfigurationSuccess PatternType = "configuration_success"
)

// PatternTypes lists every known pattern type.
var PatternTypes = []PatternType{
	PatternProductCombination,
	PatternIndustryPreference,
	PatternPriceSensitivity,
	PatternConfigurationSuccess,
}

// Valid reports whether t is a known pattern type.
func (t PatternType) Valid() bool {
	for _, known := range PatternTypes {
		if t == known {
			return true
		}
	}
	return false
}

// LearningPattern is a published statistical pattern. Rows are only written
// once the pattern has been observed at least MinimumSampleSize times.
type LearningPattern struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Stable identity used for upserts
	PatternKey string `gorm:"size:255;uniqueIndex;not null" json:"pattern_key"`

	PatternType PatternType    `gorm:"size:50;index;not null" json:"pattern_type"`
	PatternData datatypes.JSON `json:"pattern_data"`

	ConfidenceScore float64 `gorm:"index" json:"confidence_score"`
	SuccessRate     float64 `json:"success_rate"`
	SampleSize      int     `gorm:"index" json:"sample_size"`

	Industry       *string `gorm:"size:100;index" json:"industry,omitempty"`
	UserCountRange *string `gorm:"size:20;index" json:"user_count_range,omitempty"`

	LastValidated time.Time `json:"last_validated"`
}

// TableName overrides the default table name.
func (LearningPattern) TableName() string { return "ai_learning_patterns" }

// PatternAggregate is the running accumulator behind a pattern. It is written
// on every learning pass, whatever the sample size, so history survives restarts.
type PatternAggregate struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	PatternKey  string         `gorm:"size:255;uniqueIndex;not null" json:"pattern_key"`
	PatternType PatternType    `gorm:"size:50;index;not null" json:"pattern_type"`
	PatternData datatypes.JSON `json:"pattern_data"`

	SuccessCount int `json:"success_count"`
	TotalCount   int `json:"total_count"`
	SampleSize   int `json:"sample_size"`

	Industry       *string `gorm:"size:100" json:"industry,omitempty"`
	UserCountRange *string `gorm:"size:20" json:"user_count_range,omitempty"`
}

// TableName overrides the default table name.
func (PatternAggregate) TableName() string { return "ai_pattern_aggregates" }
