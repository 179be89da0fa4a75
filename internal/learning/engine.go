// Package learning mines won quotes into statistical patterns and replays
// them into new recommendations.
//
// Every learning pass writes its running aggregates to ai_pattern_aggregates,
// so sample history survives restarts. StorePatterns publishes aggregates with
// enough samples to ai_learning_patterns, which is what RelevantPatterns and
// ApplyToRecommendation read. An in-memory cache fronts the aggregates; each
// pattern key has a single writer.
package learning

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/mmamrila/aiquoting-sub001/internal/keylock"
	"github.com/mmamrila/aiquoting-sub001/internal/logging"
	"github.com/mmamrila/aiquoting-sub001/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	// MinimumSampleSize is the sample count a pattern needs before it is published.
	MinimumSampleSize = 3
	// accurate installations are within 20% of the estimate
	accuracyThreshold = 0.8
	defaultIndustry   = "general"
)

var ErrQuoteNotFound = errors.New("quote_not_found")

// PartLookup resolves part attributes by SKU.
type PartLookup interface {
	FindBySKU(ctx context.Context, sku string) (*models.Part, error)
}

type aggregate struct {
	key            string
	patternType    models.PatternType
	payload        Payload
	success        int
	total          int
	industry       *string
	userCountRange *string
}

// Engine is safe for concurrent use.
type Engine struct {
	db      *gorm.DB
	parts   PartLookup
	timeout time.Duration
	log     *zap.Logger
	now     func() time.Time

	locks keylock.Map
	mu    sync.RWMutex
	cache map[string]*aggregate
}

func New(db *gorm.DB, parts PartLookup, timeout time.Duration, log *zap.Logger) *Engine {
	return &Engine{
		db:      db,
		parts:   parts,
		timeout: timeout,
		log:     logging.OrNop(log),
		now:     time.Now,
		cache:   make(map[string]*aggregate),
	}
}

func (e *Engine) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}

// observation is what one won quote contributes.
type observation struct {
	quote       models.Quote
	outcome     models.Outcome
	industry    string
	userCount   int
	radios      []models.Part
	repeaters   []models.Part
	accessories []models.Part
}

func (o observation) pricePerUser() float64 {
	if o.userCount <= 0 {
		return 0
	}
	return o.quote.TotalAmount / float64(o.userCount)
}

// LearnFromOutcome updates the pattern families from a quote and its
// outcome. Only won outcomes are learned from. A failing family is logged
// and does not stop the others.
func (e *Engine) LearnFromOutcome(ctx context.Context, quoteID uint, outcome models.Outcome) error {
	if outcome.Outcome != models.OutcomeWon {
		e.log.Debug("skipping learning for non-won outcome", zap.Uint("quote_id", quoteID), zap.String("outcome", string(outcome.Outcome)))
		return nil
	}
	obs, err := e.observe(ctx, quoteID, outcome)
	if err != nil {
		return err
	}

	families := []struct {
		name string
		fn   func(context.Context, observation) error
	}{
		{"product_combinations", e.learnCombinations},
		{"industry_preferences", e.learnIndustry},
		{"price_sensitivity", e.learnPriceSensitivity},
		{"configuration_success", e.learnConfiguration},
	}
	var failed []string
	for _, f := range families {
		if err := e.isolate(ctx, f.fn, obs); err != nil {
			failed = append(failed, f.name)
			e.log.Warn("pattern family failed",
				zap.String("family", f.name),
				zap.Uint("quote_id", quoteID),
				zap.Error(err))
		}
	}
	e.log.Info("learned from outcome",
		zap.Uint("quote_id", quoteID),
		zap.String("industry", obs.industry),
		zap.Strings("failed_families", failed))
	return nil
}

func (e *Engine) isolate(ctx context.Context, fn func(context.Context, observation) error, obs observation) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return fn(ctx, obs)
}

func (e *Engine) observe(ctx context.Context, quoteID uint, outcome models.Outcome) (observation, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	var q models.Quote
	err := e.db.WithContext(ctx).Preload("Client").Preload("Items").First(&q, quoteID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return observation{}, ErrQuoteNotFound
	}
	if err != nil {
		return observation{}, fmt.Errorf("load quote %d: %w", quoteID, err)
	}

	obs := observation{quote: q, outcome: outcome, industry: defaultIndustry}
	if q.Client != nil {
		if ind := normalizeIndustry(q.Client.Industry); ind != "" {
			obs.industry = ind
		}
		obs.userCount = q.Client.UserCount
	}

	radioUnits := 0
	for _, item := range q.Items {
		sku := item.PartSKU
		if sku == "" {
			continue
		}
		p, err := e.parts.FindBySKU(ctx, sku)
		if err != nil {
			e.log.Debug("part of quote item not found", zap.String("sku", sku), zap.Error(err))
			continue
		}
		switch p.Category {
		case models.CategoryRadio:
			obs.radios = append(obs.radios, *p)
			radioUnits += item.Quantity
		case models.CategoryRepeater:
			obs.repeaters = append(obs.repeaters, *p)
		case models.CategoryAccessory:
			obs.accessories = append(obs.accessories, *p)
		}
	}
	if radioUnits > 0 {
		obs.userCount = radioUnits
	}
	return obs, nil
}

// update runs a read-modify-write on one aggregate under its key lock and
// writes the result through to the store.
func (e *Engine) update(ctx context.Context, key string, t models.PatternType, industry, userRange *string, mutate func(Payload) bool) error {
	unlock := e.locks.Lock(key)
	defer unlock()

	agg, err := e.aggregate(ctx, key, t)
	if err != nil {
		return err
	}
	if agg.industry == nil {
		agg.industry = industry
	}
	if agg.userCountRange == nil {
		agg.userCountRange = userRange
	}
	if mutate(agg.payload) {
		agg.success++
	}
	agg.total++

	if err := e.persistAggregate(ctx, agg); err != nil {
		// drop the cached copy so the next pass re-reads the store
		e.Invalidate(key)
		return err
	}
	e.mu.Lock()
	e.cache[key] = agg
	e.mu.Unlock()
	return nil
}

// aggregate returns a private copy of the cached aggregate, loading it from
// the store on a miss.
func (e *Engine) aggregate(ctx context.Context, key string, t models.PatternType) (*aggregate, error) {
	e.mu.RLock()
	cached, ok := e.cache[key]
	e.mu.RUnlock()
	if ok {
		return cloneAggregate(cached)
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	var row models.PatternAggregate
	err := e.db.WithContext(ctx).Where("pattern_key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		p, err := newPayload(t)
		if err != nil {
			return nil, err
		}
		return &aggregate{key: key, patternType: t, payload: p}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load aggregate %s: %w", key, err)
	}
	p, err := Decode(row.PatternType, row.PatternData)
	if err != nil {
		return nil, err
	}
	return &aggregate{
		key:            key,
		patternType:    row.PatternType,
		payload:        p,
		success:        row.SuccessCount,
		total:          row.TotalCount,
		industry:       row.Industry,
		userCountRange: row.UserCountRange,
	}, nil
}

func cloneAggregate(a *aggregate) (*aggregate, error) {
	raw, err := Encode(a.payload)
	if err != nil {
		return nil, err
	}
	p, err := Decode(a.patternType, raw)
	if err != nil {
		return nil, err
	}
	c := *a
	c.payload = p
	return &c, nil
}

func (e *Engine) persistAggregate(ctx context.Context, agg *aggregate) error {
	data, err := Encode(agg.payload)
	if err != nil {
		return err
	}
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()
	row := models.PatternAggregate{
		PatternKey:     agg.key,
		PatternType:    agg.patternType,
		PatternData:    data,
		SuccessCount:   agg.success,
		TotalCount:     agg.total,
		SampleSize:     agg.total,
		Industry:       agg.industry,
		UserCountRange: agg.userCountRange,
	}
	err = e.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "pattern_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"pattern_data", "success_count", "total_count", "sample_size",
			"industry", "user_count_range", "updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save aggregate %s: %w", agg.key, err)
	}
	return nil
}

// Invalidate drops one cached aggregate.
func (e *Engine) Invalidate(key string) {
	e.mu.Lock()
	delete(e.cache, key)
	e.mu.Unlock()
}

// InvalidateAll empties the cache.
func (e *Engine) InvalidateAll() {
	e.mu.Lock()
	e.cache = make(map[string]*aggregate)
	e.mu.Unlock()
}

func strPtr(s string) *string { return &s }

// normalizeIndustry matches the form industries are stored in.
func normalizeIndustry(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func combinationKey(kind, a, b string) string {
	return fmt.Sprintf("%s:%s:%s|%s", models.PatternProductCombination, kind, a, b)
}

func (e *Engine) learnCombinations(ctx context.Context, obs observation) error {
	type pair struct{ kind, a, b string }
	seen := map[pair]bool{}
	var pairs []pair
	add := func(p pair) {
		if p.a == "" || p.b == "" || seen[p] {
			return
		}
		seen[p] = true
		pairs = append(pairs, p)
	}
	for _, r := range obs.radios {
		for _, rpt := range obs.repeaters {
			add(pair{ComboRadioRepeater, r.SKU, rpt.SKU})
		}
		for _, acc := range obs.accessories {
			add(pair{ComboRadioAccessory, r.SKU, acc.Subcategory})
		}
		add(pair{ComboBandSystem, r.FrequencyBand, obs.quote.SystemType})
	}

	var errs []error
	for _, p := range pairs {
		err := e.update(ctx, combinationKey(p.kind, p.a, p.b), models.PatternProductCombination, nil, nil, func(pl Payload) bool {
			c := pl.(*ProductCombination)
			c.Kind = p.kind
			c.Items = [2]string{p.a, p.b}
			c.SuccessCount++
			c.TotalCount++
			c.SuccessRate = float64(c.SuccessCount) / float64(c.TotalCount)
			c.Industries[obs.industry]++
			c.UserCounts = append(c.UserCounts, obs.userCount)
			if len(c.UserCounts) > maxTrackedUserCounts {
				c.UserCounts = c.UserCounts[len(c.UserCounts)-maxTrackedUserCounts:]
			}
			return true
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) learnIndustry(ctx context.Context, obs observation) error {
	key := fmt.Sprintf("%s:%s", models.PatternIndustryPreference, obs.industry)
	return e.update(ctx, key, models.PatternIndustryPreference, strPtr(obs.industry), nil, func(pl Payload) bool {
		p := pl.(*IndustryPreference)
		p.Industry = obs.industry
		for _, r := range obs.radios {
			p.RadioModels[r.SKU]++
		}
		for _, a := range obs.accessories {
			p.AccessoryTypes[a.Subcategory]++
		}
		p.WonQuotes++
		p.TotalQuotes++
		p.WinRate = float64(p.WonQuotes) / float64(p.TotalQuotes)
		if ppu := obs.pricePerUser(); ppu > 0 {
			if p.AvgPricePerUser == 0 {
				p.AvgPricePerUser = ppu
			} else {
				// two-sample blend, an EMA with alpha 0.5
				p.AvgPricePerUser = (p.AvgPricePerUser + ppu) / 2
			}
		}
		return true
	})
}

func (e *Engine) learnPriceSensitivity(ctx context.Context, obs observation) error {
	ppu := obs.pricePerUser()
	if ppu <= 0 {
		return nil
	}
	userRange := UserCountRange(obs.userCount)
	key := fmt.Sprintf("%s:%s:%s", models.PatternPriceSensitivity, obs.industry, userRange)
	return e.update(ctx, key, models.PatternPriceSensitivity, strPtr(obs.industry), strPtr(userRange), func(pl Payload) bool {
		p := pl.(*PriceSensitivity)
		p.Industry = obs.industry
		p.UserCountRange = userRange
		bucket := PriceBucket(ppu)
		b := p.Buckets[bucket]
		b.Won++
		b.Total++
		b.WinRate = float64(b.Won) / float64(b.Total)
		p.Buckets[bucket] = b
		return true
	})
}

func (e *Engine) learnConfiguration(ctx context.Context, obs observation) error {
	estimated := obs.quote.LaborHours()
	actual := obs.outcome.ActualInstallationTime
	if estimated <= 0 || actual <= 0 {
		return nil
	}
	accuracy := 1 - math.Abs(estimated-actual)/estimated
	if accuracy < 0 {
		accuracy = 0
	}
	issues := make([]string, 0, len(obs.outcome.IssuesEncountered))
	for _, issue := range obs.outcome.IssuesEncountered {
		issue = strings.ToLower(strings.TrimSpace(issue))
		if issue == "" {
			return fmt.Errorf("empty issue tag on quote %d", obs.quote.ID)
		}
		issues = append(issues, issue)
	}

	systemType := obs.quote.SystemType
	key := fmt.Sprintf("%s:%s", models.PatternConfigurationSuccess, systemType)
	return e.update(ctx, key, models.PatternConfigurationSuccess, nil, nil, func(pl Payload) bool {
		p := pl.(*ConfigurationSuccess)
		p.SystemType = systemType
		p.AverageAccuracy = (p.AverageAccuracy*float64(p.Installations) + accuracy) / float64(p.Installations+1)
		p.Installations++
		accurate := accuracy >= accuracyThreshold
		if accurate {
			p.AccurateInstallations++
		}
		for _, issue := range issues {
			p.IssueCounts[issue]++
		}
		return accurate
	})
}
