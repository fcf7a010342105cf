package models

import "time"

// CreditAccount holds the spendable credit state of a single user.
type CreditAccount struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	UserID uint64 `gorm:"not null;uniqueIndex"` // Owning user ID.

	Balance     int64 `gorm:"not null;default:0"` // Spendable credits, always TotalEarned - TotalSpent.
	DailyLimit  int64 `gorm:"not null;default:0"` // Advisory credits usable per day.
	DailyUsed   int64 `gorm:"not null;default:0"` // Credits spent since LastResetDate.
	TotalEarned int64 `gorm:"not null;default:0"` // Lifetime credited amount.
	TotalSpent  int64 `gorm:"not null;default:0"` // Lifetime consumed amount.

	LastResetDate string `gorm:"type:varchar(10);not null;index"` // Calendar day (YYYY-MM-DD) of the last daily reset.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
