// Package catalog reads parts for the quote assembler. The parts_enhanced
// table is consulted first and the regular parts table is the fallback.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mmamrila/aiquoting-sub001/internal/logging"
	"github.com/mmamrila/aiquoting-sub001/internal/models"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrPartNotFound is returned when no part matches a lookup.
var ErrPartNotFound = errors.New("part_not_found")

// FallbackSKUs are used when an accessory subcategory lookup fails.
var FallbackSKUs = map[string]string{
	models.SubcategoryBattery: "BATT-STD",
	models.SubcategoryCharger: "CHRG-STD",
	models.SubcategoryClip:    "CLIP-STD",
}

// Catalog is a read-only view over parts_enhanced and parts.
type Catalog struct {
	db      *gorm.DB
	timeout time.Duration
	log     *zap.Logger
}

// New creates a catalog. A zero timeout disables the per-call deadline.
func New(db *gorm.DB, timeout time.Duration, log *zap.Logger) *Catalog {
	return &Catalog{db: db, timeout: timeout, log: logging.OrNop(log)}
}

func (c *Catalog) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

// lookup runs the same query against parts_enhanced, then parts.
func (c *Catalog) lookup(ctx context.Context, scope func(*gorm.DB) *gorm.DB) (*models.Part, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var enhanced models.EnhancedPart
	err := scope(c.db.WithContext(ctx).Model(&models.EnhancedPart{})).First(&enhanced).Error
	if err == nil {
		p := enhanced.Part
		p.Source = models.PartSourceEnhanced
		return &p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("query parts_enhanced: %w", err)
	}

	var part models.Part
	err = scope(c.db.WithContext(ctx).Model(&models.Part{})).First(&part).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query parts: %w", err)
	}
	part.Source = models.PartSourceRegular
	return &part, nil
}

// cheapest runs a price-ordered query against both tables and returns the
// lower priced row. Ties go to parts_enhanced.
func (c *Catalog) cheapest(ctx context.Context, scope func(*gorm.DB) *gorm.DB) (*models.Part, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	var best *models.Part
	var enhanced models.EnhancedPart
	err := scope(c.db.WithContext(ctx).Model(&models.EnhancedPart{})).Order("price asc").First(&enhanced).Error
	switch {
	case err == nil:
		p := enhanced.Part
		p.Source = models.PartSourceEnhanced
		best = &p
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("query parts_enhanced: %w", err)
	}

	var part models.Part
	err = scope(c.db.WithContext(ctx).Model(&models.Part{})).Order("price asc").First(&part).Error
	switch {
	case err == nil:
		if best == nil || part.Price < best.Price {
			part.Source = models.PartSourceRegular
			best = &part
		}
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, fmt.Errorf("query parts: %w", err)
	}

	if best == nil {
		return nil, ErrPartNotFound
	}
	return best, nil
}

// FindBySKU returns the part with the given SKU.
func (c *Catalog) FindBySKU(ctx context.Context, sku string) (*models.Part, error) {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil, ErrPartNotFound
	}
	return c.lookup(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("sku = ?", sku)
	})
}

// FindRadio returns the cheapest radio in the requested frequency band. When
// none exists the search is widened to the lowest priced radio of any band
// across both tables.
func (c *Catalog) FindRadio(ctx context.Context, band string) (*models.Part, error) {
	if band != "" {
		p, err := c.lookup(ctx, func(q *gorm.DB) *gorm.DB {
			return q.Where("category = ? AND frequency_band = ?", models.CategoryRadio, band).Order("price asc")
		})
		if err == nil || !errors.Is(err, ErrPartNotFound) {
			return p, err
		}
		c.log.Warn("no radio in requested band, widening search", zap.String("frequency_band", band))
	}
	return c.cheapest(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("category = ?", models.CategoryRadio)
	})
}

// FindRepeater returns the cheapest repeater for a system type, preferring
// the requested band, then any repeater of the system type.
func (c *Catalog) FindRepeater(ctx context.Context, systemType, band string) (*models.Part, error) {
	if band != "" {
		p, err := c.lookup(ctx, func(q *gorm.DB) *gorm.DB {
			return q.Where("category = ? AND system_type = ? AND frequency_band = ?", models.CategoryRepeater, systemType, band).Order("price asc")
		})
		if err == nil || !errors.Is(err, ErrPartNotFound) {
			return p, err
		}
	}
	return c.lookup(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("category = ? AND system_type = ?", models.CategoryRepeater, systemType).Order("price asc")
	})
}

// FindAccessory returns the cheapest accessory of a subcategory. Lookup
// failures degrade to the fixed fallback SKU for that subcategory.
func (c *Catalog) FindAccessory(ctx context.Context, subcategory string) (*models.Part, error) {
	p, err := c.lookup(ctx, func(q *gorm.DB) *gorm.DB {
		return q.Where("category = ? AND subcategory = ?", models.CategoryAccessory, subcategory).Order("price asc")
	})
	if err == nil {
		return p, nil
	}
	fallback, ok := FallbackSKUs[subcategory]
	if !ok {
		return nil, err
	}
	c.log.Warn("accessory lookup failed, using fallback sku",
		zap.String("subcategory", subcategory),
		zap.String("sku", fallback),
		zap.Error(err))
	return c.FindBySKU(ctx, fallback)
}

// List returns every part of the regular table ordered by SKU.
func (c *Catalog) List(ctx context.Context) ([]models.Part, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	var parts []models.Part
	if err := c.db.WithContext(ctx).Order("sku asc").Find(&parts).Error; err != nil {
		return nil, fmt.Errorf("list parts: %w", err)
	}
	for i := range parts {
		parts[i].Source = models.PartSourceRegular
	}
	return parts, nil
}

// Get returns a part of the regular table by id.
func (c *Catalog) Get(ctx context.Context, id uint) (*models.Part, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()
	var part models.Part
	err := c.db.WithContext(ctx).First(&part, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get part %d: %w", id, err)
	}
	part.Source = models.PartSourceRegular
	return &part, nil
}
