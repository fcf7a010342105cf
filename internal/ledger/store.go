// Package ledger persists credit accounts and their append-only event log.
//
// Every balance mutation is a single conditional UPDATE so that concurrent
// writers on the same account serialize on the row instead of racing through a
// read-modify-write. Callers compose those statements inside Store.Transaction
// to append the matching event atomically.
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/paperdesk/creditledger/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("ledger: not found")

// Store reads and writes ledger rows through GORM.
type Store struct {
	db *gorm.DB
}

// NewStore constructs a Store backed by db.
func NewStore(db *gorm.DB) *Store {
	if db == nil {
		return nil
	}
	return &Store{db: db}
}

// DB returns the underlying handle.
func (s *Store) DB() *gorm.DB { return s.db }

// Transaction runs fn with a Store bound to a single database transaction.
func (s *Store) Transaction(ctx context.Context, fn func(tx *Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

// CreateAccountIfAbsent inserts account unless a row for the same user exists.
// It reports whether a new row was written.
func (s *Store) CreateAccountIfAbsent(ctx context.Context, account *models.CreditAccount) (bool, error) {
	res := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(account)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// FindAccount loads the account of userID.
func (s *Store) FindAccount(ctx context.Context, userID uint64) (*models.CreditAccount, error) {
	var account models.CreditAccount
	if errFind := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Take(&account).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errFind
	}
	return &account, nil
}

// Balance reads the stored balance of userID.
func (s *Store) Balance(ctx context.Context, userID uint64) (int64, error) {
	var balances []int64
	if errPluck := s.db.WithContext(ctx).
		Model(&models.CreditAccount{}).
		Where("user_id = ?", userID).
		Limit(1).
		Pluck("balance", &balances).Error; errPluck != nil {
		return 0, errPluck
	}
	if len(balances) == 0 {
		return 0, ErrNotFound
	}
	return balances[0], nil
}

// Debit subtracts amount from the balance only if the balance covers it.
// It reports false, without changing anything, when the balance is too low.
func (s *Store) Debit(ctx context.Context, userID uint64, amount int64, now time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.CreditAccount{}).
		Where("user_id = ? AND balance >= ?", userID, amount).
		Updates(map[string]any{
			"balance":     gorm.Expr("balance - ?", amount),
			"total_spent": gorm.Expr("total_spent + ?", amount),
			"daily_used":  gorm.Expr("daily_used + ?", amount),
			"updated_at":  now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// Credit adds amount to the balance and to the lifetime earned total.
func (s *Store) Credit(ctx context.Context, userID uint64, amount int64, now time.Time) error {
	res := s.db.WithContext(ctx).
		Model(&models.CreditAccount{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"balance":      gorm.Expr("balance + ?", amount),
			"total_earned": gorm.Expr("total_earned + ?", amount),
			"updated_at":   now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetDaily zeroes daily usage if the account was last reset before day.
// It reports whether the row changed.
func (s *Store) ResetDaily(ctx context.Context, userID uint64, day string, now time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.CreditAccount{}).
		Where("user_id = ? AND last_reset_date < ?", userID, day).
		Updates(map[string]any{
			"daily_used":      0,
			"last_reset_date": day,
			"updated_at":      now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// AppendEvent inserts an event. Events are never updated afterwards.
func (s *Store) AppendEvent(ctx context.Context, event *models.CreditEvent) error {
	return s.db.WithContext(ctx).Create(event).Error
}

// FindEventByReference returns the event of the given type carrying reference.
func (s *Store) FindEventByReference(ctx context.Context, userID uint64, eventType models.CreditEventType, reference string) (*models.CreditEvent, error) {
	var event models.CreditEvent
	if errFind := s.db.WithContext(ctx).
		Where("user_id = ? AND type = ? AND reference = ?", userID, eventType, reference).
		Take(&event).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, errFind
	}
	return &event, nil
}

// ListEvents returns the newest events of userID first.
func (s *Store) ListEvents(ctx context.Context, userID uint64, limit int) ([]models.CreditEvent, error) {
	var events []models.CreditEvent
	if errFind := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&events).Error; errFind != nil {
		return nil, errFind
	}
	return events, nil
}

// SumEvents returns the sum of all event amounts of userID and the event count.
func (s *Store) SumEvents(ctx context.Context, userID uint64) (int64, int64, error) {
	var row struct {
		Total int64
		Count int64
	}
	if errScan := s.db.WithContext(ctx).
		Model(&models.CreditEvent{}).
		Select("COALESCE(SUM(amount), 0) AS total, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Scan(&row).Error; errScan != nil {
		return 0, 0, errScan
	}
	return row.Total, row.Count, nil
}

// ListDueUserIDs pages through accounts last reset before day, ordered by user id.
func (s *Store) ListDueUserIDs(ctx context.Context, day string, afterUserID uint64, limit int) ([]uint64, error) {
	var ids []uint64
	if errPluck := s.db.WithContext(ctx).
		Model(&models.CreditAccount{}).
		Where("last_reset_date < ? AND user_id > ?", day, afterUserID).
		Order("user_id ASC").
		Limit(limit).
		Pluck("user_id", &ids).Error; errPluck != nil {
		return nil, errPluck
	}
	return ids, nil
}
