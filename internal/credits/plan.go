package credits

import (
	"context"
	"time"

	"github.com/paperdesk/creditledger/internal/models"
	"gorm.io/gorm"
)

// PaidUser is a user entitled to the daily bonus.
type PaidUser struct {
	UserID uint64
	Plan   string
}

// PlanResolver lists users holding an active paid plan.
type PlanResolver interface {
	PaidUsers(ctx context.Context, now time.Time) ([]PaidUser, error)
}

// PlanResolverFunc adapts a function to PlanResolver.
type PlanResolverFunc func(ctx context.Context, now time.Time) ([]PaidUser, error)

// PaidUsers calls f.
func (f PlanResolverFunc) PaidUsers(ctx context.Context, now time.Time) ([]PaidUser, error) {
	return f(ctx, now)
}

// GormPlanResolver reads plans from the users table.
type GormPlanResolver struct {
	db *gorm.DB
}

// NewGormPlanResolver constructs a resolver over db.
func NewGormPlanResolver(db *gorm.DB) *GormPlanResolver {
	return &GormPlanResolver{db: db}
}

// PaidUsers returns enabled users whose plan is not free and has not expired at now.
func (r *GormPlanResolver) PaidUsers(ctx context.Context, now time.Time) ([]PaidUser, error) {
	var rows []models.User
	if errFind := r.db.WithContext(ctx).
		Select("id", "plan", "plan_expires_at").
		Where("plan <> ? AND plan <> '' AND disabled = ?", models.PlanFree, false).
		Where("plan_expires_at IS NULL OR plan_expires_at > ?", now).
		Order("id ASC").
		Find(&rows).Error; errFind != nil {
		return nil, errFind
	}
	out := make([]PaidUser, 0, len(rows))
	for i := range rows {
		if !rows[i].IsPaid(now) {
			continue
		}
		out = append(out, PaidUser{UserID: rows[i].ID, Plan: rows[i].Plan})
	}
	return out, nil
}
