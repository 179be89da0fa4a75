package models

import "time"

// Client is a prospect or customer. Clients are matched by (name, industry)
// so prospects sharing a placeholder email are not duplicated.
type Client struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Name     string `gorm:"size:255;not null;uniqueIndex:idx_client_name_industry" json:"name"`
	Industry string `gorm:"size:100;not null;default:'';uniqueIndex:idx_client_name_industry" json:"industry"`

	ContactPerson string `gorm:"size:255" json:"contact_person,omitempty"`
	Email         string `gorm:"size:255" json:"email,omitempty"`
	Phone         string `gorm:"size:50" json:"phone,omitempty"`
	Address       string `gorm:"size:500" json:"address,omitempty"`

	CurrentSystem string `gorm:"size:255" json:"current_system,omitempty"`
	CoverageArea  string `gorm:"size:255" json:"coverage_area,omitempty"`
	UserCount     int    `gorm:"not null;default:0" json:"user_count"`

	SpecialRequirements string `gorm:"type:text" json:"special_requirements,omitempty"`

	Quotes []Quote `gorm:"foreignKey:ClientID" json:"quotes,omitempty"`
}
