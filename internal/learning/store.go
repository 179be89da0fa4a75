package learning

import (
	"context"
	"fmt"
	"time"

	"github.com/mmamrila/aiquoting-sub001/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// MinimumConfidence filters patterns served to recommendations.
	MinimumConfidence = 0.6
	relevantLimit     = 10
)

// StorePatterns publishes every aggregate with at least MinimumSampleSize
// samples, recomputing confidence as success/total. It returns the number of
// patterns written.
func (e *Engine) StorePatterns(ctx context.Context) (int, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	var rows []models.PatternAggregate
	if err := e.db.WithContext(ctx).Where("sample_size >= ?", MinimumSampleSize).Order("pattern_key").Find(&rows).Error; err != nil {
		return 0, fmt.Errorf("load aggregates: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil
	}

	now := e.now().UTC()
	patterns := make([]models.LearningPattern, 0, len(rows))
	for _, row := range rows {
		if row.TotalCount == 0 {
			continue
		}
		rate := float64(row.SuccessCount) / float64(row.TotalCount)
		patterns = append(patterns, models.LearningPattern{
			PatternKey:      row.PatternKey,
			PatternType:     row.PatternType,
			PatternData:     row.PatternData,
			ConfidenceScore: rate,
			SuccessRate:     rate,
			SampleSize:      row.SampleSize,
			Industry:        row.Industry,
			UserCountRange:  row.UserCountRange,
			LastValidated:   now,
		})
	}

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range patterns {
			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "pattern_key"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"pattern_type", "pattern_data", "confidence_score", "success_rate",
					"sample_size", "industry", "user_count_range", "last_validated", "updated_at",
				}),
			}).Create(&patterns[i]).Error
			if err != nil {
				return fmt.Errorf("upsert pattern %s: %w", patterns[i].PatternKey, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	e.log.Info("learning patterns stored", zap.Int("patterns", len(patterns)))
	return len(patterns), nil
}

// RelevantPatterns returns up to ten published patterns with confidence of
// at least 0.6 and at least three samples. Patterns must match industry,
// compared case-insensitively (or have none) and the user-count range (or have none). An empty industry or a
// zero user count disables that filter. requestType narrows to one pattern
// type; "" or "all" returns every type.
func (e *Engine) RelevantPatterns(ctx context.Context, industry string, userCount int, requestType string) ([]models.LearningPattern, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	q := e.db.WithContext(ctx).
		Where("confidence_score >= ? AND sample_size >= ?", MinimumConfidence, MinimumSampleSize)
	if industry = normalizeIndustry(industry); industry != "" {
		q = q.Where("(industry = ? OR industry IS NULL)", industry)
	}
	if userCount > 0 {
		q = q.Where("(user_count_range = ? OR user_count_range IS NULL)", UserCountRange(userCount))
	}
	if t := models.PatternType(requestType); t.Valid() {
		q = q.Where("pattern_type = ?", t)
	}

	var patterns []models.LearningPattern
	err := q.Order("confidence_score desc").Order("sample_size desc").Order("pattern_key").
		Limit(relevantLimit).Find(&patterns).Error
	if err != nil {
		return nil, fmt.Errorf("query patterns: %w", err)
	}
	return patterns, nil
}

// Run publishes patterns every interval and once more when ctx ends.
func (e *Engine) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			if _, err := e.StorePatterns(flushCtx); err != nil {
				e.log.Error("final pattern flush failed", zap.Error(err))
			}
			cancel()
			return
		case <-ticker.C:
			if _, err := e.StorePatterns(ctx); err != nil {
				e.log.Error("pattern flush failed", zap.Error(err))
			}
		}
	}
}
