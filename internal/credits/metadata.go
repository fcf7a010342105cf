package credits

import (
	"encoding/json"
	"fmt"

	"github.com/paperdesk/creditledger/internal/models"
	"gorm.io/datatypes"
)

// Metadata carries typed per-event details. At most one typed section may be set
// and it must match the event type; Extra holds free-form fields.
type Metadata struct {
	Consumption *ConsumptionMetadata `json:"consumption,omitempty"`
	Purchase    *PurchaseMetadata    `json:"purchase,omitempty"`
	Bonus       *BonusMetadata       `json:"bonus,omitempty"`
	Extra       map[string]any       `json:"extra,omitempty"`
}

// ConsumptionMetadata describes what the credits were spent on.
type ConsumptionMetadata struct {
	Feature    string `json:"feature,omitempty"`
	ResourceID string `json:"resource_id,omitempty"`
	Units      int64  `json:"units,omitempty"`
}

// PurchaseMetadata records the package and payment that funded a purchase.
type PurchaseMetadata struct {
	PackageID    uint64  `json:"package_id"`
	PackageName  string  `json:"package_name"`
	Credits      int64   `json:"credits"`
	BonusCredits int64   `json:"bonus_credits"`
	Price        float64 `json:"price"`
	Currency     string  `json:"currency"`
	Gateway      string  `json:"gateway,omitempty"`
}

// BonusMetadata records which day and plan earned a daily bonus.
type BonusMetadata struct {
	Day  string `json:"day"`
	Plan string `json:"plan,omitempty"`
}

// IsZero reports whether no field is set.
func (m Metadata) IsZero() bool {
	return m.Consumption == nil && m.Purchase == nil && m.Bonus == nil && len(m.Extra) == 0
}

// validateFor checks that typed sections agree with the event type.
func (m Metadata) validateFor(eventType models.CreditEventType) error {
	if m.Consumption != nil && eventType != models.CreditEventConsumption {
		return fmt.Errorf("%w: consumption details on %s event", ErrInvalidMetadata, eventType)
	}
	if m.Purchase != nil && eventType != models.CreditEventPurchase {
		return fmt.Errorf("%w: purchase details on %s event", ErrInvalidMetadata, eventType)
	}
	if m.Bonus != nil && eventType != models.CreditEventDailyBonus {
		return fmt.Errorf("%w: bonus details on %s event", ErrInvalidMetadata, eventType)
	}
	return nil
}

func (m Metadata) encode() (datatypes.JSON, error) {
	if m.IsZero() {
		return nil, nil
	}
	payload, errMarshal := json.Marshal(m)
	if errMarshal != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, errMarshal)
	}
	return datatypes.JSON(payload), nil
}

// DecodeMetadata parses a stored metadata column.
func DecodeMetadata(raw datatypes.JSON) (Metadata, error) {
	var m Metadata
	if len(raw) == 0 || string(raw) == "null" {
		return m, nil
	}
	if errUnmarshal := json.Unmarshal(raw, &m); errUnmarshal != nil {
		return Metadata{}, errUnmarshal
	}
	return m, nil
}
