package models

import "time"

// QuoteStatus represents the status of a quote.
type QuoteStatus string

const (
	QuoteStatusDraft QuoteStatus = "draft"
	QuoteStatusSent  QuoteStatus = "sent"
	QuoteStatusWon   QuoteStatus = "won"
	QuoteStatusLost  QuoteStatus = "lost"
)

// Valid reports whether s is one of the known quote statuses.
func (s QuoteStatus) Valid() bool {
	switch s {
	case QuoteStatusDraft, QuoteStatusSent, QuoteStatusWon, QuoteStatusLost:
		return true
	}
	return false
}

// Quote is a priced radio system proposal for a client.
// Totals are denormalised from the items by the totals service and must
// satisfy TotalAmount == (TotalParts + TotalLabor) * (1 + tax rate).
type Quote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Human readable number, format QYYMMDD-NNN
	QuoteNumber string `gorm:"size:20;uniqueIndex;not null" json:"quote_number"`

	ClientID uint    `gorm:"index;not null" json:"client_id"`
	Client   *Client `gorm:"foreignKey:ClientID" json:"client,omitempty"`

	Status     QuoteStatus `gorm:"size:20;not null;default:'draft'" json:"status"`
	SystemType string      `gorm:"size:100" json:"system_type"`

	TotalParts  float64 `gorm:"type:decimal(12,2);not null;default:0" json:"total_parts"`
	TotalLabor  float64 `gorm:"type:decimal(12,2);not null;default:0" json:"total_labor"`
	TotalTax    float64 `gorm:"type:decimal(12,2);not null;default:0" json:"total_tax"`
	TotalAmount float64 `gorm:"type:decimal(12,2);not null;default:0" json:"total_amount"`

	Notes string `gorm:"type:text" json:"notes,omitempty"`

	Items []QuoteItem `gorm:"foreignKey:QuoteID;constraint:OnDelete:CASCADE" json:"items,omitempty"`
}

// IsDraft returns true if the quote is still in draft status.
func (q *Quote) IsDraft() bool {
	return q.Status == QuoteStatusDraft
}

// IsClosed returns true once the quote has a won or lost outcome.
func (q *Quote) IsClosed() bool {
	return q.Status == QuoteStatusWon || q.Status == QuoteStatusLost
}

// LaborHours sums the labor hours of all items.
func (q *Quote) LaborHours() float64 {
	var hours float64
	for _, item := range q.Items {
		hours += item.LaborHours
	}
	return hours
}

// QuoteItem is a priced row of a quote: either a catalog part or a
// service charge (labor, licensing, linking) with a nil PartID.
type QuoteItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	QuoteID uint   `gorm:"index;not null" json:"quote_id"`
	Quote   *Quote `gorm:"foreignKey:QuoteID" json:"-"`

	// Null for service charges. PartSource names the table PartID refers to.
	PartID     *uint  `gorm:"index" json:"part_id,omitempty"`
	PartSource string `gorm:"size:20" json:"part_source,omitempty"`
	PartSKU    string `gorm:"column:part_sku;size:64;index" json:"part_sku,omitempty"`

	Quantity   int     `gorm:"not null;default:1" json:"quantity"`
	UnitPrice  float64 `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	TotalPrice float64 `gorm:"type:decimal(12,2);not null" json:"total_price"`
	LaborHours float64 `gorm:"type:decimal(8,2);not null;default:0" json:"labor_hours"`
	Notes      string  `gorm:"size:500" json:"notes,omitempty"`
}

// IsServiceCharge returns true for rows that do not reference a catalog part.
func (item *QuoteItem) IsServiceCharge() bool {
	return item.PartID == nil
}
