package models

import "time"

// CreditPackage is a purchasable bundle of credits.
type CreditPackage struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name        string `gorm:"type:text;not null"` // Display name.
	Description string `gorm:"type:text;not null"` // Marketing description.

	Credits      int64   `gorm:"not null;default:0"`                     // Base credits granted.
	BonusCredits int64   `gorm:"not null;default:0"`                     // Extra credits granted on purchase.
	Price        float64 `gorm:"type:decimal(20,10);not null"`           // Price in Currency units.
	Currency     string  `gorm:"type:varchar(8);not null;default:'USD'"` // ISO currency code.

	IsActive  bool `gorm:"not null;default:true;index"` // Whether the package is offered.
	IsPopular bool `gorm:"not null;default:false"`      // Highlight flag for the storefront.
	SortOrder int  `gorm:"not null;default:0"`          // Secondary ordering hint.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// TotalCredits returns the credits granted by one purchase.
func (p *CreditPackage) TotalCredits() int64 {
	if p == nil {
		return 0
	}
	return p.Credits + p.BonusCredits
}
