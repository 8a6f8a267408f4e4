package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallyhq/tally/internal/model"
)

// Validation errors.
var (
	ErrNilContext    = errors.New("context cannot be nil")
	ErrEmptyString   = errors.New("string parameter cannot be empty")
	ErrNilParameter  = errors.New("parameter cannot be nil")
	ErrMissingID     = errors.New("id cannot be nil")
	ErrInvalidEntry  = errors.New("invalid ledger entry")
	ErrInvalidRule   = errors.New("invalid categorization rule")
	ErrInvalidBudget = errors.New("invalid budget")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateID ensures a UUID parameter is set.
func validateID(id uuid.UUID, paramName string) error {
	if id == uuid.Nil {
		return fmt.Errorf("%w: %s", ErrMissingID, paramName)
	}
	return nil
}

// validateEntry validates a ledger entry before persistence.
func validateEntry(entry *model.LedgerEntry) error {
	if entry == nil {
		return fmt.Errorf("%w: entry", ErrNilParameter)
	}
	if entry.ID == uuid.Nil {
		return fmt.Errorf("%w: missing ID", ErrInvalidEntry)
	}
	if entry.UserID == uuid.Nil {
		return fmt.Errorf("%w: missing user ID", ErrInvalidEntry)
	}
	if entry.Date.IsZero() {
		return fmt.Errorf("%w: missing date", ErrInvalidEntry)
	}
	if !entry.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be positive", ErrInvalidEntry)
	}
	if strings.TrimSpace(entry.Description) == "" {
		return fmt.Errorf("%w: missing description", ErrInvalidEntry)
	}
	// BaseAmount and ExchangeRate travel together.
	if (entry.BaseAmount == nil) != (entry.ExchangeRate == nil) {
		return fmt.Errorf("%w: base amount and exchange rate must be set together", ErrInvalidEntry)
	}
	return nil
}

// validateRule validates a categorization rule before persistence.
func validateRule(rule *model.CategorizationRule) error {
	if rule == nil {
		return fmt.Errorf("%w: rule", ErrNilParameter)
	}
	if rule.ID == uuid.Nil {
		return fmt.Errorf("%w: missing ID", ErrInvalidRule)
	}
	if rule.UserID == uuid.Nil {
		return fmt.Errorf("%w: missing user ID", ErrInvalidRule)
	}
	if strings.TrimSpace(rule.Pattern) == "" {
		return fmt.Errorf("%w: missing pattern", ErrInvalidRule)
	}
	switch rule.PatternType {
	case model.PatternContains, model.PatternExact, model.PatternRegex, model.PatternStartsWith:
	default:
		return fmt.Errorf("%w: unknown pattern type %q", ErrInvalidRule, rule.PatternType)
	}
	switch rule.FieldToMatch {
	case model.FieldVendor, model.FieldDescription, model.FieldNotes:
	default:
		return fmt.Errorf("%w: unknown match field %q", ErrInvalidRule, rule.FieldToMatch)
	}
	if rule.Confidence < 0 || rule.Confidence > 100 {
		return fmt.Errorf("%w: confidence must be between 0 and 100", ErrInvalidRule)
	}
	return nil
}

// validateBudget validates a budget before persistence.
func validateBudget(budget *model.Budget) error {
	if budget == nil {
		return fmt.Errorf("%w: budget", ErrNilParameter)
	}
	if budget.ID == uuid.Nil {
		return fmt.Errorf("%w: missing ID", ErrInvalidBudget)
	}
	if budget.UserID == uuid.Nil {
		return fmt.Errorf("%w: missing user ID", ErrInvalidBudget)
	}
	if strings.TrimSpace(budget.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidBudget)
	}
	if budget.Amount.IsNegative() {
		return fmt.Errorf("%w: amount cannot be negative", ErrInvalidBudget)
	}
	if budget.StartDate.IsZero() {
		return fmt.Errorf("%w: missing start date", ErrInvalidBudget)
	}
	if !budget.AlertThreshold.IsPositive() || budget.AlertThreshold.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("%w: alert threshold must be above 0 and at most 100", ErrInvalidBudget)
	}
	switch budget.PeriodType {
	case model.PeriodWeekly, model.PeriodMonthly, model.PeriodYearly:
	case model.PeriodCustom:
		if budget.EndDate != nil && budget.EndDate.Before(budget.StartDate) {
			return fmt.Errorf("%w: end date before start date", ErrInvalidBudget)
		}
	default:
		return fmt.Errorf("%w: unknown period type %q", ErrInvalidBudget, budget.PeriodType)
	}
	return nil
}

// validateBudgetGroup validates a budget group before persistence.
func validateBudgetGroup(group *model.BudgetGroup) error {
	if group == nil {
		return fmt.Errorf("%w: group", ErrNilParameter)
	}
	if group.ID == uuid.Nil {
		return fmt.Errorf("%w: missing ID", ErrInvalidBudget)
	}
	if group.UserID == uuid.Nil {
		return fmt.Errorf("%w: missing user ID", ErrInvalidBudget)
	}
	if strings.TrimSpace(group.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidBudget)
	}
	if len(group.Currency) != 3 {
		return fmt.Errorf("%w: invalid currency %q", ErrInvalidBudget, group.Currency)
	}
	if group.EndDate.Before(group.StartDate) {
		return fmt.Errorf("%w: end date before start date", ErrInvalidBudget)
	}
	return nil
}

// validateCategory validates a category before persistence.
func validateCategory(cat *model.Category) error {
	if cat == nil {
		return fmt.Errorf("%w: category", ErrNilParameter)
	}
	if cat.ID == uuid.Nil {
		return fmt.Errorf("%w: missing ID", ErrInvalidEntry)
	}
	if cat.UserID == uuid.Nil {
		return fmt.Errorf("%w: missing user ID", ErrInvalidEntry)
	}
	if strings.TrimSpace(cat.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidEntry)
	}
	return nil
}
