package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallyhq/tally/internal/money"
)

// PeriodType describes the cadence of a budget or budget group.
type PeriodType string

// Period type constants.
const (
	PeriodWeekly  PeriodType = "weekly"
	PeriodMonthly PeriodType = "monthly"
	PeriodYearly  PeriodType = "yearly"
	PeriodCustom  PeriodType = "custom"
)

// Budget is a spending limit over a period, optionally scoped to a category.
// For non-custom periods the end date is derived from the start date, never
// user-set.
type Budget struct {
	StartDate      time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
	EndDate        *time.Time
	CategoryID     *uuid.UUID
	BudgetGroupID  *uuid.UUID
	Name           string
	PeriodType     PeriodType
	Amount         money.Money
	AlertThreshold decimal.Decimal
	ID             uuid.UUID
	UserID         uuid.UUID
	IsActive       bool
}

// PeriodEnd returns the budget's effective end date. For non-custom periods
// it is derived from the start date; for custom periods the stored end date
// is used, and a nil end date means open-ended.
func (b *Budget) PeriodEnd() *time.Time {
	if b.PeriodType == PeriodCustom {
		return b.EndDate
	}
	end := DerivePeriodEnd(b.PeriodType, b.StartDate)
	if end.IsZero() {
		return b.EndDate
	}
	return &end
}

// DerivePeriodEnd computes the inclusive end date for a fixed period type.
// Returns the zero time for custom or unknown period types.
func DerivePeriodEnd(periodType PeriodType, start time.Time) time.Time {
	switch periodType {
	case PeriodWeekly:
		return start.AddDate(0, 0, 6)
	case PeriodMonthly:
		return start.AddDate(0, 1, 0).AddDate(0, 0, -1)
	case PeriodYearly:
		return start.AddDate(1, 0, 0).AddDate(0, 0, -1)
	default:
		return time.Time{}
	}
}

// IsCurrentFor reports whether the budget covers the given date.
func (b *Budget) IsCurrentFor(date time.Time) bool {
	if date.Before(b.StartDate) {
		return false
	}
	if end := b.PeriodEnd(); end != nil && date.After(*end) {
		return false
	}
	return true
}

// BudgetGroup collects budgets sharing a period window. The group currency is
// the comparison currency for rollups; per-budget amounts are converted into
// it at aggregation time.
type BudgetGroup struct {
	StartDate   time.Time
	EndDate     time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Name        string
	Description string
	PeriodType  PeriodType
	Currency    string
	ID          uuid.UUID
	UserID      uuid.UUID
	IsActive    bool
}
