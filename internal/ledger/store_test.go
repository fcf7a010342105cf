package ledger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	dbutil "github.com/paperdesk/creditledger/internal/db"
	"github.com/paperdesk/creditledger/internal/models"
)

func setupStore(t *testing.T) *Store {
	t.Helper()

	conn, errOpen := dbutil.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := dbutil.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate db: %v", errMigrate)
	}
	t.Cleanup(func() {
		if sqlDB, errDB := conn.DB(); errDB == nil {
			_ = sqlDB.Close()
		}
	})
	return NewStore(conn)
}

func seedAccount(t *testing.T, s *Store, userID uint64, balance int64, lastReset string) {
	t.Helper()
	created, errCreate := s.CreateAccountIfAbsent(context.Background(), &models.CreditAccount{
		UserID:        userID,
		Balance:       balance,
		DailyLimit:    500,
		TotalEarned:   balance,
		LastResetDate: lastReset,
	})
	if errCreate != nil || !created {
		t.Fatalf("seed account %d: created=%v err=%v", userID, created, errCreate)
	}
}

func TestCreateAccountIfAbsentKeepsFirstRow(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	seedAccount(t, s, 1, 500, "2026-03-14")

	created, errCreate := s.CreateAccountIfAbsent(ctx, &models.CreditAccount{UserID: 1, Balance: 9999, LastResetDate: "2026-03-14"})
	if errCreate != nil {
		t.Fatalf("second create: %v", errCreate)
	}
	if created {
		t.Fatalf("expected existing account to be kept")
	}
	account, errFind := s.FindAccount(ctx, 1)
	if errFind != nil {
		t.Fatalf("find: %v", errFind)
	}
	if account.Balance != 500 {
		t.Fatalf("expected balance 500, got %d", account.Balance)
	}
	if _, errMissing := s.FindAccount(ctx, 2); !errors.Is(errMissing, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", errMissing)
	}
}

func TestDebitIsConditionalOnBalance(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	seedAccount(t, s, 1, 100, "2026-03-14")

	ok, errDebit := s.Debit(ctx, 1, 150, now)
	if errDebit != nil || ok {
		t.Fatalf("expected rejected debit, got ok=%v err=%v", ok, errDebit)
	}
	ok, errDebit = s.Debit(ctx, 1, 100, now)
	if errDebit != nil || !ok {
		t.Fatalf("expected debit to succeed, got ok=%v err=%v", ok, errDebit)
	}
	account, _ := s.FindAccount(ctx, 1)
	if account.Balance != 0 || account.TotalSpent != 100 || account.DailyUsed != 100 {
		t.Fatalf("unexpected account after debit: %+v", account)
	}

	if errCredit := s.Credit(ctx, 1, 40, now); errCredit != nil {
		t.Fatalf("credit: %v", errCredit)
	}
	account, _ = s.FindAccount(ctx, 1)
	if account.Balance != 40 || account.TotalEarned != 140 {
		t.Fatalf("unexpected account after credit: %+v", account)
	}
	if errMissing := s.Credit(ctx, 99, 1, now); !errors.Is(errMissing, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing account, got %v", errMissing)
	}
}

func TestBalanceReadsStoredValue(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	seedAccount(t, s, 3, 250, "2026-03-14")

	if ok, errDebit := s.Debit(ctx, 3, 70, now); errDebit != nil || !ok {
		t.Fatalf("debit: ok=%v err=%v", ok, errDebit)
	}
	balance, errBalance := s.Balance(ctx, 3)
	if errBalance != nil {
		t.Fatalf("balance: %v", errBalance)
	}
	if balance != 180 {
		t.Fatalf("expected balance 180, got %d", balance)
	}
	if _, errMissing := s.Balance(ctx, 404); !errors.Is(errMissing, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing account, got %v", errMissing)
	}
}

func TestResetDailyOnlyMovesForward(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	now := time.Date(2026, 3, 15, 0, 5, 0, 0, time.UTC)
	seedAccount(t, s, 1, 100, "2026-03-14")
	if ok, errDebit := s.Debit(ctx, 1, 30, now); errDebit != nil || !ok {
		t.Fatalf("debit: ok=%v err=%v", ok, errDebit)
	}

	changed, errReset := s.ResetDaily(ctx, 1, "2026-03-15", now)
	if errReset != nil || !changed {
		t.Fatalf("expected reset, got changed=%v err=%v", changed, errReset)
	}
	changed, errReset = s.ResetDaily(ctx, 1, "2026-03-15", now)
	if errReset != nil || changed {
		t.Fatalf("expected second reset to be a no-op, got changed=%v err=%v", changed, errReset)
	}
	changed, _ = s.ResetDaily(ctx, 1, "2026-03-13", now)
	if changed {
		t.Fatalf("expected reset to an earlier day to be ignored")
	}
	account, _ := s.FindAccount(ctx, 1)
	if account.DailyUsed != 0 || account.LastResetDate != "2026-03-15" {
		t.Fatalf("unexpected account after reset: %+v", account)
	}
}

func TestListDueUserIDsPages(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	for id := uint64(1); id <= 5; id++ {
		seedAccount(t, s, id, 0, "2026-03-14")
	}
	seedAccount(t, s, 6, 0, "2026-03-15")

	first, errFirst := s.ListDueUserIDs(ctx, "2026-03-15", 0, 3)
	if errFirst != nil {
		t.Fatalf("first page: %v", errFirst)
	}
	second, errSecond := s.ListDueUserIDs(ctx, "2026-03-15", first[len(first)-1], 3)
	if errSecond != nil {
		t.Fatalf("second page: %v", errSecond)
	}
	if fmt.Sprint(first) != "[1 2 3]" || fmt.Sprint(second) != "[4 5]" {
		t.Fatalf("unexpected pages %v %v", first, second)
	}
}

func TestEventsByReferenceAndSum(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	seedAccount(t, s, 1, 500, "2026-03-14")

	reference := "pay_1"
	events := []*models.CreditEvent{
		{PublicID: "evt-1", UserID: 1, Type: models.CreditEventTopup, Amount: 500, BalanceAfter: 500},
		{PublicID: "evt-2", UserID: 1, Type: models.CreditEventConsumption, Amount: -120, BalanceAfter: 380},
		{PublicID: "evt-3", UserID: 1, Type: models.CreditEventTopup, Amount: 250, BalanceAfter: 630, Reference: &reference},
	}
	errTx := s.Transaction(ctx, func(tx *Store) error {
		for _, event := range events {
			if errAppend := tx.AppendEvent(ctx, event); errAppend != nil {
				return errAppend
			}
		}
		return nil
	})
	if errTx != nil {
		t.Fatalf("append events: %v", errTx)
	}

	dup := &models.CreditEvent{PublicID: "evt-4", UserID: 1, Type: models.CreditEventTopup, Amount: 250, Reference: &reference}
	if errDup := s.AppendEvent(ctx, dup); !dbutil.IsUniqueViolation(errDup) {
		t.Fatalf("expected unique violation for reused reference, got %v", errDup)
	}

	found, errFind := s.FindEventByReference(ctx, 1, models.CreditEventTopup, reference)
	if errFind != nil || found.PublicID != "evt-3" {
		t.Fatalf("find by reference: %+v %v", found, errFind)
	}
	if _, errMissing := s.FindEventByReference(ctx, 1, models.CreditEventPurchase, reference); !errors.Is(errMissing, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other type, got %v", errMissing)
	}

	total, count, errSum := s.SumEvents(ctx, 1)
	if errSum != nil || total != 630 || count != 3 {
		t.Fatalf("unexpected sum total=%d count=%d err=%v", total, count, errSum)
	}

	listed, errList := s.ListEvents(ctx, 1, 2)
	if errList != nil || len(listed) != 2 || listed[0].PublicID != "evt-3" {
		t.Fatalf("unexpected newest events: %+v %v", listed, errList)
	}
}
