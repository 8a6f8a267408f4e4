package model

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallyhq/tally/internal/common"
	"github.com/tallyhq/tally/internal/money"
)

// LedgerEntry is a single expense recorded against the ledger.
//
// Amount is the value in the original transaction currency; BaseAmount is the
// same value converted into the owner's default currency. BaseAmount and
// ExchangeRate are present together or absent together.
type LedgerEntry struct {
	Date            time.Time
	CreatedAt       time.Time
	BaseAmount      *money.Money
	ExchangeRate    *decimal.Decimal
	CategoryID      *uuid.UUID
	SubcategoryID   *uuid.UUID
	PaymentMethodID *uuid.UUID
	Description     string
	Vendor          string
	Notes           string
	Amount          money.Money
	Tags            []string
	SharedWith      []uuid.UUID
	ID              uuid.UUID
	UserID          uuid.UUID
	IsShared        bool
}

// Fingerprint returns the stable dedup key for this entry: the first 16 hex
// characters of sha256 over date, amount (currency-aware) and normalized
// description.
func (e *LedgerEntry) Fingerprint() string {
	return Fingerprint(e.Date, e.Amount, e.Description)
}

// Fingerprint derives the dedup key shared between ledger entries and import
// rows. Two values collide exactly when date, amount, currency and normalized
// description all agree.
func Fingerprint(date time.Time, amount money.Money, description string) string {
	data := fmt.Sprintf("%s|%s|%s|%s",
		date.Format("2006-01-02"),
		amount.AmountString(),
		amount.Currency(),
		common.NormalizeText(description))
	sum := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", sum)[:16]
}
