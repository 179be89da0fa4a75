package models

import "time"

// Part categories used by the quote assembler.
const (
	CategoryRadio     = "radio"
	CategoryRepeater  = "repeater"
	CategoryAccessory = "accessory"
)

// Accessory subcategories.
const (
	SubcategoryBattery = "battery"
	SubcategoryCharger = "charger"
	SubcategoryClip    = "belt_clip"
)

// Tables a catalog part can be read from.
const (
	PartSourceRegular  = "parts"
	PartSourceEnhanced = "parts_enhanced"
)

// Part is a catalog record from the regular parts table.
// The catalog is read-only from the quoting core.
type Part struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	SKU         string `gorm:"column:sku;size:64;uniqueIndex;not null" json:"sku"`
	Name        string `gorm:"size:255" json:"name"`
	Description string `gorm:"type:text" json:"description,omitempty"`

	Category    string `gorm:"size:50;index" json:"category"`
	Subcategory string `gorm:"size:50;index" json:"subcategory,omitempty"`

	Price      float64 `gorm:"type:decimal(12,2);not null" json:"price"`
	LaborHours float64 `gorm:"type:decimal(8,2);not null;default:0" json:"labor_hours"`

	FrequencyBand string `gorm:"size:20" json:"frequency_band,omitempty"`
	SystemType    string `gorm:"size:100" json:"system_type,omitempty"`
	InventoryQty  int    `gorm:"not null;default:0" json:"inventory_qty"`

	// Table the row was read from; not persisted
	Source string `gorm:"-" json:"source,omitempty"`
}

// EnhancedPart has the same shape as Part but lives in parts_enhanced,
// which is consulted before the regular table.
type EnhancedPart struct {
	Part
}

// TableName overrides the default table name.
func (EnhancedPart) TableName() string { return "parts_enhanced" }
