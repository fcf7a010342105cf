package app

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paperdesk/creditledger/internal/config"
	dbutil "github.com/paperdesk/creditledger/internal/db"
	"github.com/paperdesk/creditledger/internal/models"
	"github.com/paperdesk/creditledger/internal/security"
)

func writeConfig(t *testing.T) (config.AppConfig, string) {
	t.Helper()

	dir := t.TempDir()
	dsn := filepath.Join(dir, "ledger.db")
	body := strings.Join([]string{
		"database:",
		"  dsn: " + dsn,
		"jwt:",
		"  secret: app-test-secret",
		"ledger:",
		"  timezone: Asia/Tokyo",
		"logging:",
		"  level: warn",
	}, "\n")
	path := filepath.Join(dir, "config.yaml")
	if errWrite := os.WriteFile(path, []byte(body), 0o600); errWrite != nil {
		t.Fatalf("write config: %v", errWrite)
	}
	return config.AppConfig{ConfigPath: path}, dsn
}

func TestMigrateAndCreateAdmin(t *testing.T) {
	cfg, dsn := writeConfig(t)
	ctx := context.Background()

	if errMigrate := Migrate(ctx, cfg); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	password, errCreate := CreateAdmin(ctx, cfg, "root", "")
	if errCreate != nil {
		t.Fatalf("create admin: %v", errCreate)
	}
	if len(password) != generatedPasswordLength {
		t.Fatalf("expected generated password of length %d, got %q", generatedPasswordLength, password)
	}
	if _, errDup := CreateAdmin(ctx, cfg, "root", "another-password"); errDup == nil {
		t.Fatalf("expected duplicate admin to fail")
	}
	if _, errEmpty := CreateAdmin(ctx, cfg, "  ", "password123"); errEmpty == nil {
		t.Fatalf("expected empty username to fail")
	}

	conn, errOpen := dbutil.Open(dsn)
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	defer func() {
		if sqlDB, errDB := conn.DB(); errDB == nil {
			_ = sqlDB.Close()
		}
	}()
	var admin models.Admin
	if errFind := conn.Where("username = ?", "root").Take(&admin).Error; errFind != nil {
		t.Fatalf("load admin: %v", errFind)
	}
	if !admin.Active || !security.CheckPassword(admin.Password, password) {
		t.Fatalf("stored admin does not match generated password")
	}
}

func TestRunResetDailyAndGrantBonus(t *testing.T) {
	cfg, _ := writeConfig(t)
	ctx := context.Background()

	summary, errReset := RunResetDaily(ctx, cfg, "2026-03-15")
	if errReset != nil {
		t.Fatalf("reset: %v", errReset)
	}
	if summary.Day != "2026-03-15" || summary.Scanned != 0 {
		t.Fatalf("unexpected reset summary: %+v", summary)
	}
	if _, errBad := RunResetDaily(ctx, cfg, "15/03/2026"); errBad == nil {
		t.Fatalf("expected invalid day to fail")
	}

	bonus, errBonus := GrantBonus(ctx, cfg, "")
	if errBonus != nil {
		t.Fatalf("grant bonus: %v", errBonus)
	}
	if bonus.Eligible != 0 || bonus.Day == "" {
		t.Fatalf("unexpected bonus summary: %+v", bonus)
	}
}

func TestBootstrapRejectsMissingConfig(t *testing.T) {
	cfg := config.AppConfig{ConfigPath: filepath.Join(t.TempDir(), "missing.yaml")}
	if _, errReset := RunResetDaily(context.Background(), cfg, ""); errReset == nil {
		t.Fatalf("expected missing config to fail")
	}
}
