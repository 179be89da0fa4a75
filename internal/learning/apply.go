package learning

import (
	"context"

	"github.com/mmamrila/aiquoting-sub001/internal/models"
	"go.uber.org/zap"
)

const (
	suggestThreshold = 0.7
	topN             = 3
)

// Context selects which patterns apply to a recommendation.
type Context struct {
	Industry    string `json:"industry"`
	UserCount   int    `json:"user_count" validate:"gte=0"`
	RequestType string `json:"request_type,omitempty"`
}

// Combination is a suggested product pair.
type Combination struct {
	Kind        string    `json:"kind"`
	Items       [2]string `json:"items"`
	SuccessRate float64   `json:"success_rate"`
	SampleSize  int       `json:"sample_size"`
}

// AppliedPattern records a pattern that influenced a recommendation.
type AppliedPattern struct {
	Type       models.PatternType `json:"type"`
	Key        string             `json:"key"`
	Confidence float64            `json:"confidence"`
	SampleSize int                `json:"sample_size"`
}

// Recommendation is a product recommendation that learning can enrich.
type Recommendation struct {
	SystemType             string           `json:"system_type,omitempty"`
	UserCount              int              `json:"user_count,omitempty"`
	PreferredRadios        []string         `json:"preferred_radios,omitempty"`
	RecommendedAccessories []string         `json:"recommended_accessories,omitempty"`
	TargetPricePerUser     float64          `json:"target_price_per_user,omitempty"`
	SuggestedCombinations  []Combination    `json:"suggested_combinations,omitempty"`
	OptimalPriceRange      *PriceRange      `json:"optimal_price_range,omitempty"`
	AppliedPatterns        []AppliedPattern `json:"applied_patterns"`
}

// ApplyToRecommendation merges relevant patterns into base. The result
// always lists the patterns that were applied.
func (e *Engine) ApplyToRecommendation(ctx context.Context, base Recommendation, c Context) (Recommendation, error) {
	out := base
	out.AppliedPatterns = []AppliedPattern{}
	if c.UserCount == 0 {
		c.UserCount = base.UserCount
	}

	patterns, err := e.RelevantPatterns(ctx, c.Industry, c.UserCount, c.RequestType)
	if err != nil {
		return base, err
	}

	var (
		bestBucket string
		bestStats  BucketStats
		haveBucket bool
	)
	for _, lp := range patterns {
		payload, err := Decode(lp.PatternType, lp.PatternData)
		if err != nil {
			e.log.Warn("skipping undecodable pattern", zap.String("pattern_key", lp.PatternKey), zap.Error(err))
			continue
		}
		applied := false
		switch p := payload.(type) {
		case *ProductCombination:
			if lp.SuccessRate > suggestThreshold {
				out.SuggestedCombinations = append(out.SuggestedCombinations, Combination{
					Kind:        p.Kind,
					Items:       p.Items,
					SuccessRate: lp.SuccessRate,
					SampleSize:  lp.SampleSize,
				})
				applied = true
			}
		case *IndustryPreference:
			if radios := p.TopRadios(topN); len(radios) > 0 {
				out.PreferredRadios = radios
			}
			if acc := p.TopAccessories(topN); len(acc) > 0 {
				out.RecommendedAccessories = acc
			}
			if p.AvgPricePerUser > 0 {
				out.TargetPricePerUser = p.AvgPricePerUser
			}
			applied = true
		case *PriceSensitivity:
			if name, stats, ok := p.BestBucket(); ok {
				if !haveBucket || stats.WinRate > bestStats.WinRate ||
					(stats.WinRate == bestStats.WinRate && stats.Total > bestStats.Total) {
					bestBucket, bestStats, haveBucket = name, stats, true
				}
				applied = true
			}
		case *ConfigurationSuccess:
			// informs installation estimates only; recorded for explainability
			applied = true
		}
		if applied {
			out.AppliedPatterns = append(out.AppliedPatterns, AppliedPattern{
				Type:       lp.PatternType,
				Key:        lp.PatternKey,
				Confidence: lp.ConfidenceScore,
				SampleSize: lp.SampleSize,
			})
		}
	}
	if haveBucket {
		r := RangeFor(bestBucket)
		out.OptimalPriceRange = &r
	}
	return out, nil
}
