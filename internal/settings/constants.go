package settings

// DB config keys and defaults for settings.
const (
	// DailyBonusCreditsKey is the DB config key for the credits granted per day to paid users.
	DailyBonusCreditsKey = "DAILY_BONUS_CREDITS"
	// DefaultDailyBonusCredits is the fallback daily bonus.
	DefaultDailyBonusCredits = 100
	// TransactionsMaxLimitKey caps the page size of the transaction history endpoint.
	TransactionsMaxLimitKey = "TRANSACTIONS_MAX_LIMIT"
	// DefaultTransactionsMaxLimit is the fallback page size cap.
	DefaultTransactionsMaxLimit = 200
	// SchedulerIntervalSecondsKey overrides the scheduler tick interval in seconds.
	SchedulerIntervalSecondsKey = "SCHEDULER_INTERVAL_SECONDS"
	// PurchasesEnabledKey toggles package purchases through the payment webhook.
	PurchasesEnabledKey = "PURCHASES_ENABLED"
	// DefaultPurchasesEnabled keeps purchases on unless an admin disables them.
	DefaultPurchasesEnabled = true
)

// knownKeys lists the keys admins may write through the settings endpoint.
var knownKeys = map[string]struct{}{
	DailyBonusCreditsKey:        {},
	TransactionsMaxLimitKey:     {},
	SchedulerIntervalSecondsKey: {},
	PurchasesEnabledKey:         {},
}

// IsKnownKey reports whether key is a supported runtime setting.
func IsKnownKey(key string) bool {
	_, ok := knownKeys[key]
	return ok
}
