package catalog

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	dbutil "github.com/paperdesk/creditledger/internal/db"
	"github.com/paperdesk/creditledger/internal/models"
	"gorm.io/gorm"
)

// Catalog errors.
var (
	// ErrPackageNotFound indicates the package does not exist.
	ErrPackageNotFound = errors.New("catalog: package not found")
	// ErrInvalidPackage indicates invalid package fields.
	ErrInvalidPackage = errors.New("catalog: invalid package")
	// ErrPackageInUse indicates pricing changes on a package that completed purchases reference.
	ErrPackageInUse = errors.New("catalog: package referenced by purchases")
)

// defaultCurrency is applied when a package is created without a currency.
const defaultCurrency = "USD"

// ValidationError reports the first invalid field of a package payload.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("catalog: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap allows errors.Is(err, ErrInvalidPackage).
func (e ValidationError) Unwrap() error { return ErrInvalidPackage }

// PackageView is the display form of a package.
type PackageView struct {
	ID           uint64  `json:"id"`
	Name         string  `json:"name"`
	Description  string  `json:"description"`
	Credits      int64   `json:"credits"`
	BonusCredits int64   `json:"bonus_credits"`
	TotalCredits int64   `json:"total_credits"`
	Price        float64 `json:"price"`
	Currency     string  `json:"currency"`
	IsActive     bool    `json:"is_active"`
	IsPopular    bool    `json:"is_popular"`
	SortOrder    int     `json:"sort_order"`
}

// ViewOf converts a stored package into its display form.
func ViewOf(pkg *models.CreditPackage) PackageView {
	return PackageView{
		ID:           pkg.ID,
		Name:         pkg.Name,
		Description:  pkg.Description,
		Credits:      pkg.Credits,
		BonusCredits: pkg.BonusCredits,
		TotalCredits: pkg.TotalCredits(),
		Price:        pkg.Price,
		Currency:     pkg.Currency,
		IsActive:     pkg.IsActive,
		IsPopular:    pkg.IsPopular,
		SortOrder:    pkg.SortOrder,
	}
}

// CreatePackageInput holds the fields of a new package. Pointer fields are required.
type CreatePackageInput struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Credits      *int64   `json:"credits"`
	BonusCredits int64    `json:"bonus_credits"`
	Price        *float64 `json:"price"`
	Currency     string   `json:"currency"`
	IsPopular    bool     `json:"is_popular"`
	SortOrder    int      `json:"sort_order"`
}

// UpdatePackageInput holds optional field changes.
type UpdatePackageInput struct {
	Name         *string  `json:"name"`
	Description  *string  `json:"description"`
	Credits      *int64   `json:"credits"`
	BonusCredits *int64   `json:"bonus_credits"`
	Price        *float64 `json:"price"`
	Currency     *string  `json:"currency"`
	IsPopular    *bool    `json:"is_popular"`
	SortOrder    *int     `json:"sort_order"`
}

// Catalog manages credit packages.
type Catalog struct {
	db *gorm.DB
}

// New constructs a Catalog backed by db.
func New(db *gorm.DB) *Catalog {
	return &Catalog{db: db}
}

// ListActive returns offered packages ordered by credits ascending.
func (c *Catalog) ListActive(ctx context.Context) ([]PackageView, error) {
	var rows []models.CreditPackage
	if errFind := c.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("credits ASC, sort_order ASC, id ASC").
		Find(&rows).Error; errFind != nil {
		return nil, errFind
	}
	return toViews(rows), nil
}

// ListAll returns every package, including inactive ones.
func (c *Catalog) ListAll(ctx context.Context) ([]PackageView, error) {
	var rows []models.CreditPackage
	if errFind := c.db.WithContext(ctx).
		Order("is_active DESC, credits ASC, id ASC").
		Find(&rows).Error; errFind != nil {
		return nil, errFind
	}
	return toViews(rows), nil
}

// Get loads a package by id.
func (c *Catalog) Get(ctx context.Context, id uint64) (*models.CreditPackage, error) {
	var pkg models.CreditPackage
	if errFind := c.db.WithContext(ctx).First(&pkg, id).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return nil, ErrPackageNotFound
		}
		return nil, errFind
	}
	return &pkg, nil
}

// Create validates and stores a new active package.
func (c *Catalog) Create(ctx context.Context, in CreatePackageInput) (PackageView, error) {
	name := strings.TrimSpace(in.Name)
	description := strings.TrimSpace(in.Description)
	if name == "" {
		return PackageView{}, ValidationError{Field: "name", Message: "is required"}
	}
	if description == "" {
		return PackageView{}, ValidationError{Field: "description", Message: "is required"}
	}
	if in.Credits == nil {
		return PackageView{}, ValidationError{Field: "credits", Message: "is required"}
	}
	if in.Price == nil {
		return PackageView{}, ValidationError{Field: "price", Message: "is required"}
	}
	if errValidate := validateAmounts(*in.Credits, in.BonusCredits, *in.Price); errValidate != nil {
		return PackageView{}, errValidate
	}
	currency, errCurrency := normalizeCurrency(in.Currency)
	if errCurrency != nil {
		return PackageView{}, errCurrency
	}

	pkg := models.CreditPackage{
		Name:         name,
		Description:  description,
		Credits:      *in.Credits,
		BonusCredits: in.BonusCredits,
		Price:        *in.Price,
		Currency:     currency,
		IsActive:     true,
		IsPopular:    in.IsPopular,
		SortOrder:    in.SortOrder,
	}
	if errCreate := c.db.WithContext(ctx).Create(&pkg).Error; errCreate != nil {
		return PackageView{}, errCreate
	}
	return ViewOf(&pkg), nil
}

// Update applies field changes. Pricing fields are frozen once a purchase references the package.
func (c *Catalog) Update(ctx context.Context, id uint64, in UpdatePackageInput) (PackageView, error) {
	var out PackageView
	errTx := c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pkg models.CreditPackage
		if errFind := tx.Clauses(dbutil.ForUpdate(tx)...).First(&pkg, id).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrPackageNotFound
			}
			return errFind
		}

		next := pkg
		if in.Name != nil {
			next.Name = strings.TrimSpace(*in.Name)
			if next.Name == "" {
				return ValidationError{Field: "name", Message: "must not be empty"}
			}
		}
		if in.Description != nil {
			next.Description = strings.TrimSpace(*in.Description)
			if next.Description == "" {
				return ValidationError{Field: "description", Message: "must not be empty"}
			}
		}
		if in.Credits != nil {
			next.Credits = *in.Credits
		}
		if in.BonusCredits != nil {
			next.BonusCredits = *in.BonusCredits
		}
		if in.Price != nil {
			next.Price = *in.Price
		}
		if in.Currency != nil {
			currency, errCurrency := normalizeCurrency(*in.Currency)
			if errCurrency != nil {
				return errCurrency
			}
			next.Currency = currency
		}
		if in.IsPopular != nil {
			next.IsPopular = *in.IsPopular
		}
		if in.SortOrder != nil {
			next.SortOrder = *in.SortOrder
		}
		if errValidate := validateAmounts(next.Credits, next.BonusCredits, next.Price); errValidate != nil {
			return errValidate
		}

		pricingChanged := next.Credits != pkg.Credits ||
			next.BonusCredits != pkg.BonusCredits ||
			next.Price != pkg.Price ||
			next.Currency != pkg.Currency
		if pricingChanged {
			inUse, errInUse := isReferenced(tx, pkg.ID)
			if errInUse != nil {
				return errInUse
			}
			if inUse {
				return ErrPackageInUse
			}
		}

		if errSave := tx.Model(&pkg).Updates(map[string]any{
			"name":          next.Name,
			"description":   next.Description,
			"credits":       next.Credits,
			"bonus_credits": next.BonusCredits,
			"price":         next.Price,
			"currency":      next.Currency,
			"is_popular":    next.IsPopular,
			"sort_order":    next.SortOrder,
		}).Error; errSave != nil {
			return errSave
		}
		out = ViewOf(&next)
		return nil
	})
	if errTx != nil {
		return PackageView{}, errTx
	}
	return out, nil
}

// Deactivate stops offering a package. Past purchases keep referencing it.
func (c *Catalog) Deactivate(ctx context.Context, id uint64) error {
	return c.setActive(ctx, id, false)
}

// Activate offers a previously deactivated package again.
func (c *Catalog) Activate(ctx context.Context, id uint64) error {
	return c.setActive(ctx, id, true)
}

func (c *Catalog) setActive(ctx context.Context, id uint64, active bool) error {
	res := c.db.WithContext(ctx).
		Model(&models.CreditPackage{}).
		Where("id = ?", id).
		Update("is_active", active)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, errGet := c.Get(ctx, id); errGet != nil {
			return errGet
		}
	}
	return nil
}

// isReferenced reports whether any purchase event points at the package.
func isReferenced(tx *gorm.DB, packageID uint64) (bool, error) {
	var count int64
	if errCount := tx.Model(&models.CreditEvent{}).
		Where("package_id = ? AND type = ?", packageID, models.CreditEventPurchase).
		Count(&count).Error; errCount != nil {
		return false, errCount
	}
	return count > 0, nil
}

func validateAmounts(credits, bonus int64, price float64) error {
	if credits < 0 {
		return ValidationError{Field: "credits", Message: "must be non-negative"}
	}
	if bonus < 0 {
		return ValidationError{Field: "bonus_credits", Message: "must be non-negative"}
	}
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return ValidationError{Field: "price", Message: "must be non-negative"}
	}
	return nil
}

func normalizeCurrency(raw string) (string, error) {
	currency := strings.ToUpper(strings.TrimSpace(raw))
	if currency == "" {
		return defaultCurrency, nil
	}
	if len(currency) != 3 {
		return "", ValidationError{Field: "currency", Message: "must be a 3-letter code"}
	}
	return currency, nil
}

func toViews(rows []models.CreditPackage) []PackageView {
	out := make([]PackageView, 0, len(rows))
	for i := range rows {
		out = append(out, ViewOf(&rows[i]))
	}
	return out
}
