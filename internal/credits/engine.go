package credits

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	dbutil "github.com/paperdesk/creditledger/internal/db"
	"github.com/paperdesk/creditledger/internal/ledger"
	"github.com/paperdesk/creditledger/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Defaults applied by New when Options leaves a field unset.
const (
	DefaultInitialBalance    int64 = 500
	DefaultDailyLimit        int64 = 500
	DefaultDailyBonusCredits int64 = 100
	DefaultOpTimeout               = 5 * time.Second
	DefaultMaxRetries              = 3
	DefaultTransactionsLimit       = 20
	MaxTransactionsLimit           = 200

	// initialGrantReference marks the opening topup of every account.
	initialGrantReference = "initial-grant"
	retryBackoff          = 20 * time.Millisecond
)

// PackageSource resolves purchasable packages.
type PackageSource interface {
	Get(ctx context.Context, id uint64) (*models.CreditPackage, error)
}

// Observer receives operation outcomes, typically for metrics.
type Observer interface {
	ObserveOperation(op, outcome string, elapsed time.Duration)
	ObserveCredits(eventType models.CreditEventType, amount int64)
}

// Options configures an Engine.
type Options struct {
	Clock    Clock
	Location *time.Location
	// InitialBalance is granted to every new account. Zero means
	// DefaultInitialBalance unless NoInitialGrant is set.
	InitialBalance int64
	NoInitialGrant bool
	DailyLimit     int64
	// DailyBonus returns the credits granted per day to paid users.
	DailyBonus func() int64
	OpTimeout  time.Duration
	MaxRetries int
	// StrictReplay reports every repeated reference as ErrDuplicateReference
	// instead of returning the prior result.
	StrictReplay bool
	Packages     PackageSource
	Plans        PlanResolver
	Observer     Observer
}

// Engine applies balance changes and appends their ledger events atomically.
type Engine struct {
	store *ledger.Store
	opts  Options
}

// New constructs an Engine over db.
func New(db *gorm.DB, opts Options) (*Engine, error) {
	if db == nil {
		return nil, errors.New("credits: nil db")
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	switch {
	case opts.InitialBalance < 0:
		return nil, fmt.Errorf("credits: negative initial balance %d", opts.InitialBalance)
	case opts.NoInitialGrant:
		opts.InitialBalance = 0
	case opts.InitialBalance == 0:
		opts.InitialBalance = DefaultInitialBalance
	}
	if opts.DailyLimit <= 0 {
		opts.DailyLimit = DefaultDailyLimit
	}
	if opts.DailyBonus == nil {
		opts.DailyBonus = func() int64 { return DefaultDailyBonusCredits }
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = DefaultOpTimeout
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Plans == nil {
		opts.Plans = NewGormPlanResolver(db)
	}
	return &Engine{store: ledger.NewStore(db), opts: opts}, nil
}

// Account is the JSON form of a credit account.
type Account struct {
	UserID        uint64    `json:"user_id"`
	Balance       int64     `json:"balance"`
	DailyLimit    int64     `json:"daily_limit"`
	DailyUsed     int64     `json:"daily_used"`
	TotalEarned   int64     `json:"total_earned"`
	TotalSpent    int64     `json:"total_spent"`
	LastResetDate Day       `json:"last_reset_date"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Event is the JSON form of a ledger event.
type Event struct {
	ID           string                 `json:"id"`
	UserID       uint64                 `json:"user_id"`
	Type         models.CreditEventType `json:"type"`
	Amount       int64                  `json:"amount"`
	BalanceAfter int64                  `json:"balance_after"`
	Description  string                 `json:"description"`
	Reference    string                 `json:"reference,omitempty"`
	PackageID    *uint64                `json:"package_id,omitempty"`
	Metadata     Metadata               `json:"metadata"`
	CreatedAt    time.Time              `json:"created_at"`
}

// ConsumeRequest describes a spend.
type ConsumeRequest struct {
	UserID      uint64
	Amount      int64
	Description string
	Reference   string
	Metadata    Metadata
}

// ConsumeResult is returned by Consume.
type ConsumeResult struct {
	NewBalance int64 `json:"new_balance"`
	Consumed   int64 `json:"consumed"`
	Event      Event `json:"event"`
	Replayed   bool  `json:"replayed"`
}

// CreditRequest describes a top-up, purchase or bonus.
type CreditRequest struct {
	UserID      uint64
	Amount      int64
	Type        models.CreditEventType
	Description string
	Reference   string
	Metadata    Metadata
	packageID   *uint64
	// system marks credits issued by the ledger itself under a reserved reference.
	system bool
}

// CreditResult is returned by Credit and PurchasePackage.
type CreditResult struct {
	NewBalance int64 `json:"new_balance"`
	Credited   int64 `json:"credited"`
	Event      Event `json:"event"`
	Replayed   bool  `json:"replayed"`
}

// PurchaseRequest credits a catalog package.
type PurchaseRequest struct {
	UserID    uint64
	PackageID uint64
	Reference string
	Gateway   string
	Extra     map[string]any
}

// Reconciliation compares the stored balance with its derivations.
type Reconciliation struct {
	UserID      uint64 `json:"user_id"`
	Balance     int64  `json:"balance"`
	TotalEarned int64  `json:"total_earned"`
	TotalSpent  int64  `json:"total_spent"`
	EventSum    int64  `json:"event_sum"`
	EventCount  int64  `json:"event_count"`
	Consistent  bool   `json:"consistent"`
}

// Today returns the current calendar day in the ledger timezone.
func (e *Engine) Today() Day {
	return DayOf(e.opts.Clock.Now(), e.opts.Location)
}

// DayStart returns the first instant of day in the ledger timezone.
func (e *Engine) DayStart(day Day) (time.Time, error) {
	start, errParse := time.ParseInLocation(dayLayout, day.String(), e.opts.Location)
	if errParse != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDay, day)
	}
	return start, nil
}

func (e *Engine) now() time.Time {
	return e.opts.Clock.Now().UTC()
}

// EnsureAccount returns the account of userID, creating it with defaults when absent.
func (e *Engine) EnsureAccount(ctx context.Context, userID uint64) (Account, error) {
	if userID == 0 {
		return Account{}, ErrInvalidUser
	}
	var out Account
	errRun := e.run(ctx, "ensure_account", func(ctx context.Context, tx *ledger.Store) error {
		account, errEnsure := e.ensureAccount(ctx, tx, userID)
		if errEnsure != nil {
			return errEnsure
		}
		out = accountOf(account)
		return nil
	})
	if errRun != nil {
		return Account{}, wrapStorage("ensure_account", errRun)
	}
	return out, nil
}

// GetAccount returns the account of userID without creating it.
func (e *Engine) GetAccount(ctx context.Context, userID uint64) (Account, error) {
	if userID == 0 {
		return Account{}, ErrInvalidUser
	}
	ctx, cancel := context.WithTimeout(ctx, e.opts.OpTimeout)
	defer cancel()
	account, errFind := e.store.FindAccount(ctx, userID)
	if errFind != nil {
		if errors.Is(errFind, ledger.ErrNotFound) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, wrapStorage("get_account", errFind)
	}
	return accountOf(account), nil
}

// GetBalance returns the current account snapshot after applying a due daily reset.
func (e *Engine) GetBalance(ctx context.Context, userID uint64) (Account, error) {
	if userID == 0 {
		return Account{}, ErrInvalidUser
	}
	start := time.Now()
	today := e.Today()
	var out Account
	errRun := e.run(ctx, "get_balance", func(ctx context.Context, tx *ledger.Store) error {
		if _, errPrepare := e.prepareAccount(ctx, tx, userID, today); errPrepare != nil {
			return errPrepare
		}
		account, errFind := tx.FindAccount(ctx, userID)
		if errFind != nil {
			return errFind
		}
		out = accountOf(account)
		return nil
	})
	e.observe("get_balance", errRun, false, start)
	if errRun != nil {
		return Account{}, wrapStorage("get_balance", errRun)
	}
	return out, nil
}

// Consume spends req.Amount credits. The balance check and the decrement are a
// single conditional update, and the consumption event is written in the same
// transaction.
func (e *Engine) Consume(ctx context.Context, req ConsumeRequest) (ConsumeResult, error) {
	start := time.Now()
	result, errConsume := e.consume(ctx, req)
	e.observe("consume", errConsume, result.Replayed, start)
	if errConsume == nil && !result.Replayed {
		e.observeCredits(models.CreditEventConsumption, req.Amount)
	}
	return result, errConsume
}

func (e *Engine) consume(ctx context.Context, req ConsumeRequest) (ConsumeResult, error) {
	if req.UserID == 0 {
		return ConsumeResult{}, ErrInvalidUser
	}
	if req.Amount <= 0 {
		return ConsumeResult{}, ErrInvalidAmount
	}
	if errMeta := req.Metadata.validateFor(models.CreditEventConsumption); errMeta != nil {
		return ConsumeResult{}, errMeta
	}
	metadata, errEncode := req.Metadata.encode()
	if errEncode != nil {
		return ConsumeResult{}, errEncode
	}
	reference := strings.TrimSpace(req.Reference)
	if isReservedReference(reference) {
		return ConsumeResult{}, fmt.Errorf("%w: %q", ErrReservedReference, reference)
	}
	today := e.Today()

	var result ConsumeResult
	errRun := e.run(ctx, "consume", func(ctx context.Context, tx *ledger.Store) error {
		result = ConsumeResult{}
		if _, errPrepare := e.prepareAccount(ctx, tx, req.UserID, today); errPrepare != nil {
			return errPrepare
		}
		if reference != "" {
			prior, errPrior := e.findReplay(ctx, tx, req.UserID, models.CreditEventConsumption, reference, -req.Amount)
			if errPrior != nil {
				return errPrior
			}
			if prior != nil {
				result = consumeResultOf(prior, true)
				return nil
			}
		}

		now := e.now()
		ok, errDebit := tx.Debit(ctx, req.UserID, req.Amount, now)
		if errDebit != nil {
			return errDebit
		}
		if !ok {
			return ErrInsufficientCredits
		}
		balance, errBalance := tx.Balance(ctx, req.UserID)
		if errBalance != nil {
			return errBalance
		}
		event := &models.CreditEvent{
			PublicID:     uuid.NewString(),
			UserID:       req.UserID,
			Type:         models.CreditEventConsumption,
			Amount:       -req.Amount,
			BalanceAfter: balance,
			Description:  strings.TrimSpace(req.Description),
			Reference:    optionalString(reference),
			Metadata:     metadata,
			CreatedAt:    now,
		}
		if errAppend := tx.AppendEvent(ctx, event); errAppend != nil {
			return errAppend
		}
		result = consumeResultOf(event, false)
		return nil
	})
	if errRun != nil && reference != "" && dbutil.IsUniqueViolation(errRun) {
		// A concurrent request with the same reference won the insert.
		prior, errPrior := e.loadReplay(ctx, req.UserID, models.CreditEventConsumption, reference, -req.Amount)
		if errPrior != nil {
			return ConsumeResult{}, wrapStorage("consume", errPrior)
		}
		return consumeResultOf(prior, true), nil
	}
	if errRun != nil {
		return ConsumeResult{}, wrapStorage("consume", errRun)
	}
	return result, nil
}

// Credit adds credits. Repeating a request with the same (user, type, reference)
// returns the first result instead of crediting twice.
func (e *Engine) Credit(ctx context.Context, req CreditRequest) (CreditResult, error) {
	start := time.Now()
	result, errCredit := e.credit(ctx, req)
	e.observe("credit", errCredit, result.Replayed, start)
	if errCredit == nil && !result.Replayed {
		e.observeCredits(req.Type, req.Amount)
	}
	return result, errCredit
}

func (e *Engine) credit(ctx context.Context, req CreditRequest) (CreditResult, error) {
	if req.UserID == 0 {
		return CreditResult{}, ErrInvalidUser
	}
	if req.Amount <= 0 {
		return CreditResult{}, ErrInvalidAmount
	}
	switch req.Type {
	case models.CreditEventTopup, models.CreditEventPurchase, models.CreditEventDailyBonus:
	default:
		return CreditResult{}, fmt.Errorf("%w: %q", ErrInvalidEventType, req.Type)
	}
	if errMeta := req.Metadata.validateFor(req.Type); errMeta != nil {
		return CreditResult{}, errMeta
	}
	metadata, errEncode := req.Metadata.encode()
	if errEncode != nil {
		return CreditResult{}, errEncode
	}
	reference := strings.TrimSpace(req.Reference)
	if !req.system && isReservedReference(reference) {
		return CreditResult{}, fmt.Errorf("%w: %q", ErrReservedReference, reference)
	}
	today := e.Today()

	var result CreditResult
	errRun := e.run(ctx, "credit", func(ctx context.Context, tx *ledger.Store) error {
		result = CreditResult{}
		if _, errPrepare := e.prepareAccount(ctx, tx, req.UserID, today); errPrepare != nil {
			return errPrepare
		}
		if reference != "" {
			prior, errPrior := e.findReplay(ctx, tx, req.UserID, req.Type, reference, req.Amount)
			if errPrior != nil {
				return errPrior
			}
			if prior != nil {
				result = creditResultOf(prior, true)
				return nil
			}
		}

		now := e.now()
		if errCredit := tx.Credit(ctx, req.UserID, req.Amount, now); errCredit != nil {
			return errCredit
		}
		balance, errBalance := tx.Balance(ctx, req.UserID)
		if errBalance != nil {
			return errBalance
		}
		event := &models.CreditEvent{
			PublicID:     uuid.NewString(),
			UserID:       req.UserID,
			Type:         req.Type,
			Amount:       req.Amount,
			BalanceAfter: balance,
			Description:  strings.TrimSpace(req.Description),
			Reference:    optionalString(reference),
			PackageID:    req.packageID,
			Metadata:     metadata,
			CreatedAt:    now,
		}
		if errAppend := tx.AppendEvent(ctx, event); errAppend != nil {
			return errAppend
		}
		result = creditResultOf(event, false)
		return nil
	})
	if errRun != nil && reference != "" && dbutil.IsUniqueViolation(errRun) {
		prior, errPrior := e.loadReplay(ctx, req.UserID, req.Type, reference, req.Amount)
		if errPrior != nil {
			return CreditResult{}, wrapStorage("credit", errPrior)
		}
		return creditResultOf(prior, true), nil
	}
	if errRun != nil {
		return CreditResult{}, wrapStorage("credit", errRun)
	}
	if result.Replayed {
		log.WithFields(log.Fields{
			"user_id":   req.UserID,
			"type":      req.Type,
			"reference": reference,
		}).Info("credits: duplicate credit absorbed")
	}
	return result, nil
}

// PurchasePackage credits credits+bonus of an active catalog package.
func (e *Engine) PurchasePackage(ctx context.Context, req PurchaseRequest) (CreditResult, error) {
	if e.opts.Packages == nil {
		return CreditResult{}, ErrPackageNotFound
	}
	if req.PackageID == 0 {
		return CreditResult{}, ErrPackageNotFound
	}
	lookupCtx, cancel := context.WithTimeout(ctx, e.opts.OpTimeout)
	pkg, errGet := e.opts.Packages.Get(lookupCtx, req.PackageID)
	cancel()
	if errGet != nil {
		if isPackageNotFound(errGet) {
			return CreditResult{}, ErrPackageNotFound
		}
		return CreditResult{}, wrapStorage("purchase_package", errGet)
	}

	reference := strings.TrimSpace(req.Reference)
	if !pkg.IsActive {
		// A webhook redelivered after deactivation still resolves to the original purchase.
		if reference != "" {
			if prior, errPrior := e.loadReplay(ctx, req.UserID, models.CreditEventPurchase, reference, pkg.TotalCredits()); errPrior == nil {
				return creditResultOf(prior, true), nil
			}
		}
		return CreditResult{}, ErrPackageInactive
	}

	packageID := pkg.ID
	return e.Credit(ctx, CreditRequest{
		UserID:      req.UserID,
		Amount:      pkg.TotalCredits(),
		Type:        models.CreditEventPurchase,
		Description: fmt.Sprintf("Purchase: %s", pkg.Name),
		Reference:   reference,
		Metadata: Metadata{
			Purchase: &PurchaseMetadata{
				PackageID:    pkg.ID,
				PackageName:  pkg.Name,
				Credits:      pkg.Credits,
				BonusCredits: pkg.BonusCredits,
				Price:        pkg.Price,
				Currency:     pkg.Currency,
				Gateway:      strings.TrimSpace(req.Gateway),
			},
			Extra: req.Extra,
		},
		packageID: &packageID,
	})
}

// ListTransactions returns the newest events of userID first.
func (e *Engine) ListTransactions(ctx context.Context, userID uint64, limit int) ([]Event, error) {
	if userID == 0 {
		return nil, ErrInvalidUser
	}
	if limit <= 0 {
		limit = DefaultTransactionsLimit
	}
	if limit > MaxTransactionsLimit {
		limit = MaxTransactionsLimit
	}
	ctx, cancel := context.WithTimeout(ctx, e.opts.OpTimeout)
	defer cancel()
	rows, errList := e.store.ListEvents(ctx, userID, limit)
	if errList != nil {
		return nil, wrapStorage("list_transactions", errList)
	}
	out := make([]Event, 0, len(rows))
	for i := range rows {
		out = append(out, eventOf(&rows[i]))
	}
	return out, nil
}

// Reconcile checks that balance, earned-spent and the event sum agree.
func (e *Engine) Reconcile(ctx context.Context, userID uint64) (Reconciliation, error) {
	if userID == 0 {
		return Reconciliation{}, ErrInvalidUser
	}
	var out Reconciliation
	errRun := e.run(ctx, "reconcile", func(ctx context.Context, tx *ledger.Store) error {
		account, errFind := tx.FindAccount(ctx, userID)
		if errFind != nil {
			if errors.Is(errFind, ledger.ErrNotFound) {
				return ErrAccountNotFound
			}
			return errFind
		}
		sum, count, errSum := tx.SumEvents(ctx, userID)
		if errSum != nil {
			return errSum
		}
		out = Reconciliation{
			UserID:      userID,
			Balance:     account.Balance,
			TotalEarned: account.TotalEarned,
			TotalSpent:  account.TotalSpent,
			EventSum:    sum,
			EventCount:  count,
		}
		out.Consistent = account.Balance >= 0 &&
			account.TotalEarned-account.TotalSpent == account.Balance &&
			sum == account.Balance
		return nil
	})
	if errRun != nil {
		return Reconciliation{}, wrapStorage("reconcile", errRun)
	}
	if !out.Consistent {
		log.WithFields(log.Fields{
			"user_id":      userID,
			"balance":      out.Balance,
			"total_earned": out.TotalEarned,
			"total_spent":  out.TotalSpent,
			"event_sum":    out.EventSum,
		}).Warn("credits: ledger out of balance")
	}
	return out, nil
}

// ensureAccount creates the account with its opening grant when absent.
func (e *Engine) ensureAccount(ctx context.Context, tx *ledger.Store, userID uint64) (*models.CreditAccount, error) {
	now := e.now()
	account := &models.CreditAccount{
		UserID:        userID,
		Balance:       e.opts.InitialBalance,
		DailyLimit:    e.opts.DailyLimit,
		DailyUsed:     0,
		TotalEarned:   e.opts.InitialBalance,
		TotalSpent:    0,
		LastResetDate: e.Today().String(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	created, errCreate := tx.CreateAccountIfAbsent(ctx, account)
	if errCreate != nil {
		return nil, errCreate
	}
	if created && e.opts.InitialBalance > 0 {
		grant := &models.CreditEvent{
			PublicID:     uuid.NewString(),
			UserID:       userID,
			Type:         models.CreditEventTopup,
			Amount:       e.opts.InitialBalance,
			BalanceAfter: e.opts.InitialBalance,
			Description:  "Initial credit grant",
			Reference:    optionalString(initialGrantReference),
			CreatedAt:    now,
		}
		if errAppend := tx.AppendEvent(ctx, grant); errAppend != nil {
			return nil, errAppend
		}
	}
	if created {
		log.WithField("user_id", userID).Debug("credits: account created")
		return account, nil
	}
	return tx.FindAccount(ctx, userID)
}

// prepareAccount is the shared entry step of every mutating path: ensure the
// account exists, then apply a due daily reset.
func (e *Engine) prepareAccount(ctx context.Context, tx *ledger.Store, userID uint64, today Day) (bool, error) {
	if _, errEnsure := e.ensureAccount(ctx, tx, userID); errEnsure != nil {
		return false, errEnsure
	}
	return e.resetInTx(ctx, tx, userID, today)
}

// findReplay returns a prior event with the same reference, or nil.
func (e *Engine) findReplay(ctx context.Context, tx *ledger.Store, userID uint64, eventType models.CreditEventType, reference string, amount int64) (*models.CreditEvent, error) {
	prior, errFind := tx.FindEventByReference(ctx, userID, eventType, reference)
	if errFind != nil {
		if errors.Is(errFind, ledger.ErrNotFound) {
			return nil, nil
		}
		return nil, errFind
	}
	if e.opts.StrictReplay || prior.Amount != amount {
		return nil, fmt.Errorf("%w: %s %q", ErrDuplicateReference, eventType, reference)
	}
	return prior, nil
}

// loadReplay reads a prior event outside the failed transaction.
func (e *Engine) loadReplay(ctx context.Context, userID uint64, eventType models.CreditEventType, reference string, amount int64) (*models.CreditEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.OpTimeout)
	defer cancel()
	var prior *models.CreditEvent
	errFind := e.store.Transaction(ctx, func(tx *ledger.Store) error {
		found, errReplay := e.findReplay(ctx, tx, userID, eventType, reference, amount)
		if errReplay != nil {
			return errReplay
		}
		if found == nil {
			return ledger.ErrNotFound
		}
		prior = found
		return nil
	})
	if errFind != nil {
		return nil, errFind
	}
	return prior, nil
}

// run executes fn in a transaction bounded by OpTimeout, retrying transient
// conflicts. fn must issue its statements with the context it is handed.
func (e *Engine) run(ctx context.Context, op string, fn func(ctx context.Context, tx *ledger.Store) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, e.opts.OpTimeout)
	defer cancel()

	var errTx error
	for attempt := 0; attempt <= e.opts.MaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(time.Duration(attempt) * retryBackoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return &StorageError{Op: op, Err: errors.Join(ctx.Err(), errTx)}
			case <-timer.C:
			}
		}
		errTx = e.store.Transaction(ctx, func(tx *ledger.Store) error {
			return fn(ctx, tx)
		})
		if errTx == nil {
			return nil
		}
		if errCtx := ctx.Err(); errCtx != nil && !isDomainError(errTx) {
			return &StorageError{Op: op, Err: errors.Join(errCtx, errTx)}
		}
		if !dbutil.IsTransientConflict(errTx) {
			return errTx
		}
		log.WithError(errTx).WithFields(log.Fields{"op": op, "attempt": attempt + 1}).Debug("credits: retrying conflicted transaction")
	}
	return &StorageError{Op: op, Err: fmt.Errorf("retries exhausted: %w", errTx)}
}

func (e *Engine) observe(op string, err error, replayed bool, start time.Time) {
	if e.opts.Observer == nil {
		return
	}
	e.opts.Observer.ObserveOperation(op, outcomeOf(err, replayed), time.Since(start))
}

func (e *Engine) observeCredits(eventType models.CreditEventType, amount int64) {
	if e.opts.Observer == nil {
		return
	}
	e.opts.Observer.ObserveCredits(eventType, amount)
}

// outcomeOf maps an operation result to a metrics label.
func outcomeOf(err error, replayed bool) string {
	switch {
	case err == nil && replayed:
		return "replayed"
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInsufficientCredits):
		return "insufficient"
	case errors.Is(err, ErrDuplicateReference):
		return "duplicate"
	case errors.Is(err, ErrStorage):
		return "storage_error"
	default:
		return "invalid"
	}
}

func isPackageNotFound(err error) bool {
	return errors.Is(err, ErrPackageNotFound) || strings.Contains(err.Error(), "package not found")
}

// isReservedReference reports whether reference belongs to an entry the ledger writes itself.
func isReservedReference(reference string) bool {
	return reference == initialGrantReference ||
		strings.HasPrefix(reference, resetReferencePrefix) ||
		strings.HasPrefix(reference, bonusReferencePrefix)
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func accountOf(account *models.CreditAccount) Account {
	return Account{
		UserID:        account.UserID,
		Balance:       account.Balance,
		DailyLimit:    account.DailyLimit,
		DailyUsed:     account.DailyUsed,
		TotalEarned:   account.TotalEarned,
		TotalSpent:    account.TotalSpent,
		LastResetDate: Day(account.LastResetDate),
		CreatedAt:     account.CreatedAt,
		UpdatedAt:     account.UpdatedAt,
	}
}

func eventOf(event *models.CreditEvent) Event {
	out := Event{
		ID:           event.PublicID,
		UserID:       event.UserID,
		Type:         event.Type,
		Amount:       event.Amount,
		BalanceAfter: event.BalanceAfter,
		Description:  event.Description,
		PackageID:    event.PackageID,
		CreatedAt:    event.CreatedAt,
	}
	if event.Reference != nil {
		out.Reference = *event.Reference
	}
	if metadata, errDecode := DecodeMetadata(event.Metadata); errDecode == nil {
		out.Metadata = metadata
	} else {
		log.WithError(errDecode).WithField("event_id", event.PublicID).Warn("credits: undecodable event metadata")
	}
	return out
}

func consumeResultOf(event *models.CreditEvent, replayed bool) ConsumeResult {
	return ConsumeResult{
		NewBalance: event.BalanceAfter,
		Consumed:   -event.Amount,
		Event:      eventOf(event),
		Replayed:   replayed,
	}
}

func creditResultOf(event *models.CreditEvent, replayed bool) CreditResult {
	return CreditResult{
		NewBalance: event.BalanceAfter,
		Credited:   event.Amount,
		Event:      eventOf(event),
		Replayed:   replayed,
	}
}
