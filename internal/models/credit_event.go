package models

import (
	"time"

	"gorm.io/datatypes"
)

// CreditEventType classifies a ledger event.
type CreditEventType string

// CreditEventType constants enumerate the ledger event kinds.
const (
	// CreditEventConsumption records credits spent by a feature.
	CreditEventConsumption CreditEventType = "consumption"
	// CreditEventTopup records a manual or gateway top-up.
	CreditEventTopup CreditEventType = "topup"
	// CreditEventPurchase records a completed package purchase.
	CreditEventPurchase CreditEventType = "purchase"
	// CreditEventReset records a daily usage reset (amount is always zero).
	CreditEventReset CreditEventType = "reset"
	// CreditEventDailyBonus records the once-per-day subscriber bonus.
	CreditEventDailyBonus CreditEventType = "daily_bonus"
)

// Valid reports whether t is a known event type.
func (t CreditEventType) Valid() bool {
	switch t {
	case CreditEventConsumption, CreditEventTopup, CreditEventPurchase, CreditEventReset, CreditEventDailyBonus:
		return true
	default:
		return false
	}
}

// CreditEvent is an append-only ledger row. Rows are never updated or deleted.
type CreditEvent struct {
	ID       uint64 `gorm:"primaryKey;autoIncrement"`              // Primary key.
	PublicID string `gorm:"type:varchar(36);not null;uniqueIndex"` // Stable external identifier.

	UserID uint64          `gorm:"not null;index:idx_credit_events_user_created,priority:1;uniqueIndex:idx_credit_events_user_type_ref,priority:1"` // Owning user ID.
	Type   CreditEventType `gorm:"type:varchar(32);not null;index;uniqueIndex:idx_credit_events_user_type_ref,priority:2"`                          // Event kind.

	Amount       int64 `gorm:"not null"`           // Signed amount: negative for spend, positive for credit.
	BalanceAfter int64 `gorm:"not null;default:0"` // Account balance right after the event.

	Description string  `gorm:"type:text"`                                                                // Human readable description.
	Reference   *string `gorm:"type:varchar(255);uniqueIndex:idx_credit_events_user_type_ref,priority:3"` // Idempotency/correlation key.
	PackageID   *uint64 `gorm:"index"`                                                                    // Purchased package, for purchase events.

	Metadata datatypes.JSON `gorm:"type:jsonb"` // Typed metadata JSON.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index:idx_credit_events_user_created,priority:2"` // Creation timestamp.
}
