package db

import (
	"fmt"
	"os"

	"github.com/mmamrila/aiquoting-sub001/internal/models"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CatalogFile is the YAML layout of a parts seed file.
type CatalogFile struct {
	Parts    []CatalogPart `yaml:"parts"`
	Enhanced []CatalogPart `yaml:"enhanced"`
}

// CatalogPart is one seed entry.
type CatalogPart struct {
	SKU           string  `yaml:"sku"`
	Name          string  `yaml:"name"`
	Description   string  `yaml:"description"`
	Category      string  `yaml:"category"`
	Subcategory   string  `yaml:"subcategory"`
	Price         float64 `yaml:"price"`
	LaborHours    float64 `yaml:"labor_hours"`
	FrequencyBand string  `yaml:"frequency_band"`
	SystemType    string  `yaml:"system_type"`
	InventoryQty  int     `yaml:"inventory_qty"`
}

func (c CatalogPart) toModel() models.Part {
	return models.Part{
		SKU:           c.SKU,
		Name:          c.Name,
		Description:   c.Description,
		Category:      c.Category,
		Subcategory:   c.Subcategory,
		Price:         c.Price,
		LaborHours:    c.LaborHours,
		FrequencyBand: c.FrequencyBand,
		SystemType:    c.SystemType,
		InventoryQty:  c.InventoryQty,
	}
}

// LoadCatalogFile parses a YAML seed file.
func LoadCatalogFile(path string) (*CatalogFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	var f CatalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	for i, p := range append(append([]CatalogPart{}, f.Parts...), f.Enhanced...) {
		if p.SKU == "" {
			return nil, fmt.Errorf("catalog entry %d has no sku", i)
		}
	}
	return &f, nil
}

// SeedCatalog inserts the parts of a catalog file. Existing SKUs are left
// untouched so seeding is idempotent.
func SeedCatalog(conn *gorm.DB, f *CatalogFile) (int, error) {
	inserted := 0
	err := conn.Transaction(func(tx *gorm.DB) error {
		for _, p := range f.Parts {
			part := p.toModel()
			res := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "sku"}}, DoNothing: true}).Create(&part)
			if res.Error != nil {
				return fmt.Errorf("seed part %s: %w", p.SKU, res.Error)
			}
			inserted += int(res.RowsAffected)
		}
		for _, p := range f.Enhanced {
			part := models.EnhancedPart{Part: p.toModel()}
			res := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "sku"}}, DoNothing: true}).Create(&part)
			if res.Error != nil {
				return fmt.Errorf("seed enhanced part %s: %w", p.SKU, res.Error)
			}
			inserted += int(res.RowsAffected)
		}
		return nil
	})
	return inserted, err
}
