package models

import "time"

// Plan names stored on users.
const (
	// PlanFree is the default free tier.
	PlanFree = "free"
	// PlanPro is the paid individual tier.
	PlanPro = "pro"
	// PlanBusiness is the paid team tier.
	PlanBusiness = "business"
)

// User is the owning identity of a credit account. Rows are written by the identity service.
type User struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:text;not null;uniqueIndex"` // Unique login name.
	Email    string `gorm:"type:text"`                      // Contact email.

	Plan          string     `gorm:"type:varchar(32);not null;default:'free';index"` // Subscription plan.
	PlanExpiresAt *time.Time // Plan expiry, nil for no expiry.

	Disabled bool `gorm:"not null;default:false"` // Blocks sign in when true.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// IsPaid reports whether the user holds an unexpired paid plan at now.
func (u *User) IsPaid(now time.Time) bool {
	if u == nil || u.Plan == "" || u.Plan == PlanFree {
		return false
	}
	if u.PlanExpiresAt != nil && !u.PlanExpiresAt.After(now) {
		return false
	}
	return true
}
