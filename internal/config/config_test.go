package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseAppliesDefaults(t *testing.T) {
	cfg, errParse := Parse([]byte("database:\n  dsn: ledger.db\n"))
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if cfg.Server.Addr != ":8318" || cfg.JWT.Expiry != 24*time.Hour {
		t.Fatalf("unexpected server/jwt defaults: %+v %+v", cfg.Server, cfg.JWT)
	}
	if *cfg.Ledger.InitialBalance != 500 || cfg.Ledger.DailyLimit != 500 || *cfg.Ledger.MaxRetries != 3 {
		t.Fatalf("unexpected ledger defaults: %+v", cfg.Ledger)
	}
	if cfg.Ledger.Location() != time.UTC || cfg.Ledger.OpTimeout != 5*time.Second {
		t.Fatalf("unexpected ledger timing defaults: %+v", cfg.Ledger)
	}
	if !cfg.Scheduler.IsEnabled() || cfg.Scheduler.Interval != 5*time.Minute {
		t.Fatalf("unexpected scheduler defaults: %+v", cfg.Scheduler)
	}
}

func TestParseReadsAllSections(t *testing.T) {
	raw := `
database:
  dsn: postgres://ledger@localhost/ledger
server:
  addr: 127.0.0.1:9000
jwt:
  secret: s3cret
  expiry: 2h
webhook:
  token: whk_abc
ledger:
  initial_balance: 0
  daily_limit: 800
  timezone: Asia/Tokyo
  op_timeout: 3s
  max_retries: 0
  strict_replay: true
scheduler:
  enabled: false
  interval: 1m
redis:
  addr: localhost:6379
  db: 2
logging:
  level: debug
  format: json
  file: logs/ledger.log
  max_size_mb: 10
`
	cfg, errParse := Parse([]byte(raw))
	if errParse != nil {
		t.Fatalf("parse: %v", errParse)
	}
	if cfg.JWT.Expiry != 2*time.Hour || cfg.Webhook.Token != "whk_abc" {
		t.Fatalf("unexpected auth config: %+v %+v", cfg.JWT, cfg.Webhook)
	}
	if *cfg.Ledger.InitialBalance != 0 || *cfg.Ledger.MaxRetries != 0 || !cfg.Ledger.StrictReplay {
		t.Fatalf("explicit zero values must survive defaults: %+v", cfg.Ledger)
	}
	if cfg.Ledger.Location().String() != "Asia/Tokyo" || cfg.Ledger.OpTimeout != 3*time.Second {
		t.Fatalf("unexpected ledger config: %+v", cfg.Ledger)
	}
	if cfg.Scheduler.IsEnabled() || cfg.Scheduler.Interval != time.Minute {
		t.Fatalf("unexpected scheduler config: %+v", cfg.Scheduler)
	}
	if cfg.Redis.Addr != "localhost:6379" || cfg.Redis.DB != 2 {
		t.Fatalf("unexpected redis config: %+v", cfg.Redis)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.MaxSizeMB != 10 {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestParseRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"missing dsn":      "server:\n  addr: :1\n",
		"bad timezone":     "database:\n  dsn: a.db\nledger:\n  timezone: Mars/Olympus\n",
		"negative initial": "database:\n  dsn: a.db\nledger:\n  initial_balance: -1\n",
		"bad yaml":         "database: [",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, errParse := Parse([]byte(raw)); errParse == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestResolveConfigPathPrecedence(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(ConfigPathEnv, "")
	t.Setenv(WritablePathEnv, dir)

	if got := ResolveConfigPath("explicit.yaml"); got != "explicit.yaml" {
		t.Fatalf("expected explicit path, got %s", got)
	}
	if got := ResolveConfigPath(""); got != filepath.Join(dir, DefaultConfigFile) {
		t.Fatalf("expected writable path, got %s", got)
	}
	t.Setenv(ConfigPathEnv, "/etc/creditledger.yaml")
	if got := ResolveConfigPath(""); got != "/etc/creditledger.yaml" {
		t.Fatalf("expected env path, got %s", got)
	}
}

func TestLoadDatabaseDSN(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	if errWrite := os.WriteFile(path, []byte("database:\n  dsn: file:ledger.db\n"), 0o600); errWrite != nil {
		t.Fatalf("write config: %v", errWrite)
	}
	dsn, errLoad := LoadDatabaseDSN(path)
	if errLoad != nil {
		t.Fatalf("load dsn: %v", errLoad)
	}
	if dsn != "file:ledger.db" {
		t.Fatalf("unexpected dsn %q", dsn)
	}
}
