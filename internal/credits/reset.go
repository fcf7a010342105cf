package credits

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paperdesk/creditledger/internal/ledger"
	"github.com/paperdesk/creditledger/internal/models"
	log "github.com/sirupsen/logrus"
)

const (
	resetBatchSize = 500

	resetReferencePrefix = "reset:"
	bonusReferencePrefix = "daily_bonus:"
)

// ResetSummary reports a batch reset run.
type ResetSummary struct {
	Day     Day   `json:"day"`
	Scanned int   `json:"scanned"`
	Reset   int   `json:"reset"`
	Failed  int   `json:"failed"`
	Elapsed int64 `json:"elapsed_ms"`
}

// BonusSummary reports a daily bonus run.
type BonusSummary struct {
	Day      Day   `json:"day"`
	Amount   int64 `json:"amount"`
	Eligible int   `json:"eligible"`
	Granted  int   `json:"granted"`
	Replayed int   `json:"replayed"`
	Failed   int   `json:"failed"`
}

func resetReference(day Day) string { return resetReferencePrefix + day.String() }

func bonusReference(day Day) string { return bonusReferencePrefix + day.String() }

// ResetIfDue zeroes the daily usage of userID when its last reset precedes asOf.
// It reports whether a reset happened; repeated calls for the same day are no-ops.
func (e *Engine) ResetIfDue(ctx context.Context, userID uint64, asOf Day) (bool, error) {
	if userID == 0 {
		return false, ErrInvalidUser
	}
	day, errDay := e.resolveDay(asOf)
	if errDay != nil {
		return false, errDay
	}
	start := time.Now()
	var changed bool
	errRun := e.run(ctx, "reset_if_due", func(ctx context.Context, tx *ledger.Store) error {
		var errReset error
		changed, errReset = e.resetInTx(ctx, tx, userID, day)
		if errReset != nil {
			return errReset
		}
		if !changed {
			if _, errFind := tx.FindAccount(ctx, userID); errFind != nil {
				if errors.Is(errFind, ledger.ErrNotFound) {
					return ErrAccountNotFound
				}
				return errFind
			}
		}
		return nil
	})
	e.observe("reset_if_due", errRun, errRun == nil && !changed, start)
	if errRun != nil {
		return false, wrapStorage("reset_if_due", errRun)
	}
	return changed, nil
}

// ResetAllDue resets every account whose last reset precedes asOf, in user id order.
// Accounts that fail are counted and skipped; the first failure is returned with the summary.
func (e *Engine) ResetAllDue(ctx context.Context, asOf Day) (ResetSummary, error) {
	day, errDay := e.resolveDay(asOf)
	if errDay != nil {
		return ResetSummary{}, errDay
	}
	start := time.Now()
	summary := ResetSummary{Day: day}
	var firstErr error
	var cursor uint64
	for {
		if errCtx := ctx.Err(); errCtx != nil {
			summary.Elapsed = time.Since(start).Milliseconds()
			return summary, errCtx
		}
		pageCtx, cancel := context.WithTimeout(ctx, e.opts.OpTimeout)
		ids, errList := e.store.ListDueUserIDs(pageCtx, day.String(), cursor, resetBatchSize)
		cancel()
		if errList != nil {
			summary.Elapsed = time.Since(start).Milliseconds()
			return summary, wrapStorage("reset_all_due", errList)
		}
		if len(ids) == 0 {
			break
		}
		for _, userID := range ids {
			summary.Scanned++
			changed, errReset := e.ResetIfDue(ctx, userID, day)
			if errReset != nil {
				summary.Failed++
				if firstErr == nil {
					firstErr = errReset
				}
				log.WithError(errReset).WithField("user_id", userID).Warn("credits: daily reset failed")
				continue
			}
			if changed {
				summary.Reset++
			}
		}
		cursor = ids[len(ids)-1]
		if len(ids) < resetBatchSize {
			break
		}
	}
	summary.Elapsed = time.Since(start).Milliseconds()
	log.WithFields(log.Fields{
		"day":     day,
		"scanned": summary.Scanned,
		"reset":   summary.Reset,
		"failed":  summary.Failed,
	}).Info("credits: daily reset finished")
	return summary, firstErr
}

// GrantDailyBonus credits the configured daily bonus once per day to every paid user.
func (e *Engine) GrantDailyBonus(ctx context.Context, asOf Day) (BonusSummary, error) {
	day, errDay := e.resolveDay(asOf)
	if errDay != nil {
		return BonusSummary{}, errDay
	}
	amount := e.opts.DailyBonus()
	summary := BonusSummary{Day: day, Amount: amount}
	if amount <= 0 {
		log.WithField("day", day).Debug("credits: daily bonus disabled")
		return summary, nil
	}

	// Plan state is read as of the start of day.
	dayStart, errStart := e.DayStart(day)
	if errStart != nil {
		return summary, errStart
	}
	lookupCtx, cancel := context.WithTimeout(ctx, e.opts.OpTimeout)
	paid, errPaid := e.opts.Plans.PaidUsers(lookupCtx, dayStart)
	cancel()
	if errPaid != nil {
		return summary, wrapStorage("grant_daily_bonus", errPaid)
	}
	summary.Eligible = len(paid)

	var firstErr error
	for _, user := range paid {
		if errCtx := ctx.Err(); errCtx != nil {
			return summary, errCtx
		}
		result, errCredit := e.Credit(ctx, CreditRequest{
			UserID:      user.UserID,
			Amount:      amount,
			Type:        models.CreditEventDailyBonus,
			Description: fmt.Sprintf("Daily bonus %s", day),
			Reference:   bonusReference(day),
			Metadata:    Metadata{Bonus: &BonusMetadata{Day: day.String(), Plan: user.Plan}},
			system:      true,
		})
		switch {
		case errors.Is(errCredit, ErrDuplicateReference):
			// Granted earlier today with a different amount setting.
			summary.Replayed++
		case errCredit != nil:
			summary.Failed++
			if firstErr == nil {
				firstErr = errCredit
			}
			log.WithError(errCredit).WithField("user_id", user.UserID).Warn("credits: daily bonus failed")
		case result.Replayed:
			summary.Replayed++
		default:
			summary.Granted++
		}
	}
	log.WithFields(log.Fields{
		"day":      day,
		"amount":   amount,
		"eligible": summary.Eligible,
		"granted":  summary.Granted,
		"replayed": summary.Replayed,
		"failed":   summary.Failed,
	}).Info("credits: daily bonus finished")
	return summary, firstErr
}

// resetInTx applies the conditional reset and records it.
func (e *Engine) resetInTx(ctx context.Context, tx *ledger.Store, userID uint64, day Day) (bool, error) {
	now := e.now()
	changed, errReset := tx.ResetDaily(ctx, userID, day.String(), now)
	if errReset != nil || !changed {
		return false, errReset
	}
	balance, errBalance := tx.Balance(ctx, userID)
	if errBalance != nil {
		return false, errBalance
	}
	event := &models.CreditEvent{
		PublicID:     uuid.NewString(),
		UserID:       userID,
		Type:         models.CreditEventReset,
		Amount:       0,
		BalanceAfter: balance,
		Description:  fmt.Sprintf("Daily usage reset %s", day),
		Reference:    optionalString(resetReference(day)),
		CreatedAt:    now,
	}
	if errAppend := tx.AppendEvent(ctx, event); errAppend != nil {
		return false, errAppend
	}
	return true, nil
}

// resolveDay defaults an empty day to today and rejects malformed input.
func (e *Engine) resolveDay(day Day) (Day, error) {
	raw := strings.TrimSpace(day.String())
	if raw == "" {
		return e.Today(), nil
	}
	parsed, errParse := ParseDay(raw)
	if errParse != nil {
		return "", fmt.Errorf("%w: %q", ErrInvalidDay, raw)
	}
	return parsed, nil
}
