package learning

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/mmamrila/aiquoting-sub001/internal/models"
	"gorm.io/datatypes"
)

// Payload is the typed pattern_data of one pattern type.
type Payload interface {
	Type() models.PatternType
}

// Combination kinds.
const (
	ComboRadioRepeater  = "radio_repeater"
	ComboRadioAccessory = "radio_accessory"
	ComboBandSystem     = "band_system"
)

const maxTrackedUserCounts = 50

// ProductCombination counts a pair of products seen together on won quotes.
type ProductCombination struct {
	Kind         string         `json:"kind"`
	Items        [2]string      `json:"items"`
	SuccessCount int            `json:"success_count"`
	TotalCount   int            `json:"total_count"`
	SuccessRate  float64        `json:"success_rate"`
	Industries   map[string]int `json:"industries"`
	UserCounts   []int          `json:"user_counts"`
}

func (*ProductCombination) Type() models.PatternType { return models.PatternProductCombination }

// IndustryPreference tallies what an industry buys.
type IndustryPreference struct {
	Industry        string         `json:"industry"`
	RadioModels     map[string]int `json:"radio_models"`
	AccessoryTypes  map[string]int `json:"accessory_types"`
	WonQuotes       int            `json:"won_quotes"`
	TotalQuotes     int            `json:"total_quotes"`
	WinRate         float64        `json:"win_rate"`
	AvgPricePerUser float64        `json:"avg_price_per_user"`
}

func (*IndustryPreference) Type() models.PatternType { return models.PatternIndustryPreference }

// TopRadios returns up to n radio SKUs, most used first.
func (p *IndustryPreference) TopRadios(n int) []string { return top(p.RadioModels, n) }

// TopAccessories returns up to n accessory subcategories, most used first.
func (p *IndustryPreference) TopAccessories(n int) []string { return top(p.AccessoryTypes, n) }

// BucketStats is the win tally of one price bucket.
type BucketStats struct {
	Won     int     `json:"won"`
	Total   int     `json:"total"`
	WinRate float64 `json:"win_rate"`
}

// PriceSensitivity tracks win rate per price-per-user bucket for an
// industry and user-count range.
type PriceSensitivity struct {
	Industry       string                 `json:"industry"`
	UserCountRange string                 `json:"user_count_range"`
	Buckets        map[string]BucketStats `json:"buckets"`
}

func (*PriceSensitivity) Type() models.PatternType { return models.PatternPriceSensitivity }

// BestBucket returns the bucket with the highest win rate, preferring the
// larger sample on ties.
func (p *PriceSensitivity) BestBucket() (string, BucketStats, bool) {
	var (
		best  string
		stats BucketStats
		found bool
	)
	for _, name := range PriceBucketNames {
		b, ok := p.Buckets[name]
		if !ok || b.Total == 0 {
			continue
		}
		if !found || b.WinRate > stats.WinRate || (b.WinRate == stats.WinRate && b.Total > stats.Total) {
			best, stats, found = name, b, true
		}
	}
	return best, stats, found
}

// ConfigurationSuccess compares estimated and actual installation hours for
// a system type.
type ConfigurationSuccess struct {
	SystemType            string         `json:"system_type"`
	Installations         int            `json:"installations"`
	AccurateInstallations int            `json:"accurate_installations"`
	AverageAccuracy       float64        `json:"average_accuracy"`
	IssueCounts           map[string]int `json:"issue_counts"`
}

func (*ConfigurationSuccess) Type() models.PatternType { return models.PatternConfigurationSuccess }

func newPayload(t models.PatternType) (Payload, error) {
	switch t {
	case models.PatternProductCombination:
		return &ProductCombination{Industries: map[string]int{}}, nil
	case models.PatternIndustryPreference:
		return &IndustryPreference{RadioModels: map[string]int{}, AccessoryTypes: map[string]int{}}, nil
	case models.PatternPriceSensitivity:
		return &PriceSensitivity{Buckets: map[string]BucketStats{}}, nil
	case models.PatternConfigurationSuccess:
		return &ConfigurationSuccess{IssueCounts: map[string]int{}}, nil
	default:
		return nil, fmt.Errorf("unknown pattern type %q", t)
	}
}

// Encode serialises a payload for the pattern_data column.
func Encode(p Payload) (datatypes.JSON, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", p.Type(), err)
	}
	return datatypes.JSON(b), nil
}

// Decode parses pattern_data according to its pattern type.
func Decode(t models.PatternType, raw datatypes.JSON) (Payload, error) {
	p, err := newPayload(t)
	if err != nil {
		return nil, err
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, p); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", t, err)
		}
	}
	fillMaps(p)
	return p, nil
}

// fillMaps replaces maps decoded from JSON null.
func fillMaps(p Payload) {
	switch v := p.(type) {
	case *ProductCombination:
		if v.Industries == nil {
			v.Industries = map[string]int{}
		}
	case *IndustryPreference:
		if v.RadioModels == nil {
			v.RadioModels = map[string]int{}
		}
		if v.AccessoryTypes == nil {
			v.AccessoryTypes = map[string]int{}
		}
	case *PriceSensitivity:
		if v.Buckets == nil {
			v.Buckets = map[string]BucketStats{}
		}
	case *ConfigurationSuccess:
		if v.IssueCounts == nil {
			v.IssueCounts = map[string]int{}
		}
	}
}

func top(counts map[string]int, n int) []string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}
	return keys
}
