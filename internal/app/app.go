package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/paperdesk/creditledger/internal/catalog"
	"github.com/paperdesk/creditledger/internal/config"
	"github.com/paperdesk/creditledger/internal/credits"
	"github.com/paperdesk/creditledger/internal/db"
	relayhttp "github.com/paperdesk/creditledger/internal/http"
	"github.com/paperdesk/creditledger/internal/logging"
	"github.com/paperdesk/creditledger/internal/metrics"
	"github.com/paperdesk/creditledger/internal/models"
	"github.com/paperdesk/creditledger/internal/scheduler"
	"github.com/paperdesk/creditledger/internal/security"
	"github.com/paperdesk/creditledger/internal/settings"
	"github.com/paperdesk/creditledger/internal/util"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// shutdownTimeout bounds the graceful HTTP shutdown.
const shutdownTimeout = 15 * time.Second

// generatedPasswordLength is the length of admin passwords generated by CreateAdmin.
const generatedPasswordLength = 20

// runtime holds the components shared by every command.
type runtime struct {
	cfg      *config.Config
	conn     *gorm.DB
	catalog  *catalog.Catalog
	recorder *metrics.Recorder
	engine   *credits.Engine
	closeLog io.Closer
}

func (rt *runtime) Close() {
	if rt.conn != nil {
		if sqlDB, errDB := rt.conn.DB(); errDB == nil {
			_ = sqlDB.Close()
		}
	}
	if rt.closeLog != nil {
		_ = rt.closeLog.Close()
	}
}

// bootstrap loads config, opens and migrates the database, and builds the engine.
func bootstrap(ctx context.Context, appCfg config.AppConfig) (*runtime, error) {
	configPath := config.ResolveConfigPath(appCfg.ConfigPath)
	cfg, errLoad := config.Load(configPath)
	if errLoad != nil {
		return nil, errLoad
	}
	closeLog, errLog := logging.Setup(cfg.Logging)
	if errLog != nil {
		return nil, errLog
	}
	rt := &runtime{cfg: cfg, closeLog: closeLog}

	opts := db.DefaultOptions()
	if cfg.Database.MaxOpenConns > 0 {
		opts.MaxOpenConns = cfg.Database.MaxOpenConns
		opts.MaxIdleConns = cfg.Database.MaxOpenConns
	}
	conn, errOpen := db.OpenWithOptions(cfg.Database.DSN, opts)
	if errOpen != nil {
		rt.Close()
		return nil, errOpen
	}
	rt.conn = conn
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		rt.Close()
		return nil, errMigrate
	}
	if errRefresh := settings.RefreshDBConfigSnapshot(ctx, conn); errRefresh != nil {
		rt.Close()
		return nil, fmt.Errorf("load settings: %w", errRefresh)
	}

	rt.catalog = catalog.New(conn)
	rt.recorder = metrics.NewRecorder()
	engine, errEngine := credits.New(conn, credits.Options{
		Location:       cfg.Ledger.Location(),
		InitialBalance: *cfg.Ledger.InitialBalance,
		NoInitialGrant: *cfg.Ledger.InitialBalance == 0,
		DailyLimit:     cfg.Ledger.DailyLimit,
		DailyBonus:     settings.DailyBonusCredits,
		OpTimeout:      cfg.Ledger.OpTimeout,
		MaxRetries:     *cfg.Ledger.MaxRetries,
		StrictReplay:   cfg.Ledger.StrictReplay,
		Packages:       rt.catalog,
		Observer:       rt.recorder,
	})
	if errEngine != nil {
		rt.Close()
		return nil, errEngine
	}
	rt.engine = engine
	return rt, nil
}

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	defer func() {
		if sqlDB, errDB := conn.DB(); errDB == nil {
			_ = sqlDB.Close()
		}
	}()
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	log.Infof("migrations applied (config=%s)", configPath)
	return nil
}

// RunServer serves the credit API and runs the daily scheduler until ctx is done.
func RunServer(ctx context.Context, cfg config.AppConfig) error {
	rt, errBoot := bootstrap(ctx, cfg)
	if errBoot != nil {
		return errBoot
	}
	defer rt.Close()

	signer, errSigner := security.NewSigner(rt.cfg.JWT.Secret, rt.cfg.JWT.Expiry)
	if errSigner != nil {
		return errSigner
	}
	log.WithField("jwt_secret", util.HideSecret(rt.cfg.JWT.Secret)).Debug("jwt signer ready")
	if strings.TrimSpace(rt.cfg.Webhook.Token) == "" {
		log.Warn("webhook.token is empty; payment webhook disabled")
	} else {
		log.Infof("payment webhook enabled (token=%s)", util.HideSecret(rt.cfg.Webhook.Token))
	}

	if rt.cfg.Scheduler.IsEnabled() {
		runnerOpts := []scheduler.Option{
			scheduler.WithReporter(rt.recorder),
			scheduler.WithIntervalFunc(schedulerInterval(rt.cfg.Scheduler.Interval)),
		}
		if addr := strings.TrimSpace(rt.cfg.Redis.Addr); addr != "" {
			client := redis.NewClient(&redis.Options{
				Addr:     addr,
				Password: rt.cfg.Redis.Password,
				DB:       rt.cfg.Redis.DB,
			})
			defer func() { _ = client.Close() }()
			runnerOpts = append(runnerOpts, scheduler.WithLocker(scheduler.NewRedisLocker(client)))
		}
		scheduler.NewRunner(rt.engine, runnerOpts...).Start(ctx)
	}

	router := relayhttp.NewRouter(relayhttp.Deps{
		DB:           rt.conn,
		Engine:       rt.engine,
		Catalog:      rt.catalog,
		Signer:       signer,
		WebhookToken: rt.cfg.Webhook.Token,
		Metrics:      rt.recorder.Handler(),
	})
	server := &http.Server{
		Addr:              rt.cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errServe := make(chan error, 1)
	go func() {
		log.Infof("credit ledger listening on %s", rt.cfg.Server.Addr)
		if errListen := server.ListenAndServe(); errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
			errServe <- errListen
		}
		close(errServe)
	}()

	select {
	case errListen := <-errServe:
		return errListen
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
		return fmt.Errorf("shutdown: %w", errShutdown)
	}
	log.Info("credit ledger stopped")
	return nil
}

// schedulerInterval prefers the runtime setting over the configured interval.
func schedulerInterval(configured time.Duration) func() time.Duration {
	return func() time.Duration {
		if seconds := settings.Int(settings.SchedulerIntervalSecondsKey, 0); seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return configured
	}
}

// RunResetDaily resets every account due for day. An empty day means today.
func RunResetDaily(ctx context.Context, cfg config.AppConfig, day string) (credits.ResetSummary, error) {
	rt, errBoot := bootstrap(ctx, cfg)
	if errBoot != nil {
		return credits.ResetSummary{}, errBoot
	}
	defer rt.Close()
	return rt.engine.ResetAllDue(ctx, credits.Day(strings.TrimSpace(day)))
}

// GrantBonus grants the daily bonus for day to paid users. An empty day means today.
func GrantBonus(ctx context.Context, cfg config.AppConfig, day string) (credits.BonusSummary, error) {
	rt, errBoot := bootstrap(ctx, cfg)
	if errBoot != nil {
		return credits.BonusSummary{}, errBoot
	}
	defer rt.Close()
	return rt.engine.GrantDailyBonus(ctx, credits.Day(strings.TrimSpace(day)))
}

// CreateAdmin stores a new admin. When password is empty a random one is
// generated and returned.
func CreateAdmin(ctx context.Context, cfg config.AppConfig, username, password string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", errors.New("username is required")
	}
	if password == "" {
		generated, errGen := security.GenerateRandomString(generatedPasswordLength)
		if errGen != nil {
			return "", errGen
		}
		password = generated
	}
	hash, errHash := security.HashPassword(password)
	if errHash != nil {
		return "", errHash
	}

	rt, errBoot := bootstrap(ctx, cfg)
	if errBoot != nil {
		return "", errBoot
	}
	defer rt.Close()

	admin := models.Admin{Username: username, Password: hash, Active: true}
	if errCreate := rt.conn.WithContext(ctx).Create(&admin).Error; errCreate != nil {
		if db.IsUniqueViolation(errCreate) {
			return "", fmt.Errorf("admin %q already exists", username)
		}
		return "", errCreate
	}
	log.WithField("admin_id", admin.ID).Info("admin created")
	return password, nil
}
