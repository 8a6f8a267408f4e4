// Package service defines the contracts between the engine and its
// collaborators. The engine reads and writes through these interfaces and
// never owns persistence or rate fetching.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallyhq/tally/internal/model"
)

// LedgerFilter defines filtering options for ledger queries.
type LedgerFilter struct {
	StartDate  *time.Time
	EndDate    *time.Time
	CategoryID *uuid.UUID
	Limit      int
	Offset     int
}

// LedgerStore reads and writes ledger entries. Writers are serialized per
// user account by the implementation; the engine holds no locks.
type LedgerStore interface {
	SaveEntry(ctx context.Context, entry *model.LedgerEntry) error
	GetEntries(ctx context.Context, userID uuid.UUID, filter LedgerFilter) ([]model.LedgerEntry, error)
	GetEntryByID(ctx context.Context, id uuid.UUID) (*model.LedgerEntry, error)
	ReassignCategory(ctx context.Context, userID, fromCategoryID, toCategoryID uuid.UUID) (int64, error)
}

// CategoryStore reads and writes the category hierarchy.
type CategoryStore interface {
	GetCategories(ctx context.Context, userID uuid.UUID) ([]model.Category, error)
	GetCategoryByID(ctx context.Context, id uuid.UUID) (*model.Category, error)
	CreateCategory(ctx context.Context, cat *model.Category) error
	UpdateCategory(ctx context.Context, cat *model.Category) error
	DeactivateCategory(ctx context.Context, id uuid.UUID) error
}

// RuleStats aggregates rule usage for reporting.
type RuleStats struct {
	TotalRules        int
	ActiveRules       int
	TotalApplications int
}

// RuleStore reads and writes categorization rules and their usage counters.
type RuleStore interface {
	// GetActiveRules returns a user's active rules ordered by priority
	// ascending, then creation time descending.
	GetActiveRules(ctx context.Context, userID uuid.UUID) ([]model.CategorizationRule, error)
	GetRules(ctx context.Context, userID uuid.UUID) ([]model.CategorizationRule, error)
	CreateRule(ctx context.Context, rule *model.CategorizationRule) error
	UpdateRule(ctx context.Context, rule *model.CategorizationRule) error
	DeactivateRule(ctx context.Context, id uuid.UUID) error
	// FindActiveRule returns the active rule with the exact pattern and
	// field, or nil when none exists.
	FindActiveRule(ctx context.Context, userID uuid.UUID, pattern string, field model.FieldToMatch) (*model.CategorizationRule, error)
	// IncrementRuleUsage bumps TimesApplied and stamps LastAppliedAt.
	IncrementRuleUsage(ctx context.Context, id uuid.UUID, appliedAt time.Time) error
	MaxPriority(ctx context.Context, userID uuid.UUID) (int, error)
	GetRuleStats(ctx context.Context, userID uuid.UUID) (*RuleStats, error)
}

// BudgetStore reads and writes budgets and budget groups.
type BudgetStore interface {
	SaveBudget(ctx context.Context, budget *model.Budget) error
	GetBudgetByID(ctx context.Context, id uuid.UUID) (*model.Budget, error)
	GetBudgets(ctx context.Context, userID uuid.UUID) ([]model.Budget, error)
	GetBudgetsByGroup(ctx context.Context, groupID uuid.UUID) ([]model.Budget, error)
	SaveBudgetGroup(ctx context.Context, group *model.BudgetGroup) error
	GetBudgetGroupByID(ctx context.Context, id uuid.UUID) (*model.BudgetGroup, error)
	GetBudgetGroups(ctx context.Context, userID uuid.UUID) ([]model.BudgetGroup, error)
	DeactivateBudgetGroup(ctx context.Context, id uuid.UUID) error
}

// RateLookup is the injected currency-rate capability. Implementations own
// timeouts and caching; the engine treats it as synchronous and never
// retries. On failure the caller supplies a fallback rate or skips the
// conversion.
type RateLookup interface {
	Rate(ctx context.Context, from, to string, asOf time.Time) (decimal.Decimal, error)
}

// RateLookupFunc adapts a plain function to the RateLookup interface.
type RateLookupFunc func(ctx context.Context, from, to string, asOf time.Time) (decimal.Decimal, error)

// Rate calls the wrapped function.
func (f RateLookupFunc) Rate(ctx context.Context, from, to string, asOf time.Time) (decimal.Decimal, error) {
	return f(ctx, from, to, asOf)
}

// Storage is the full persistence surface, implemented by internal/storage.
type Storage interface {
	LedgerStore
	CategoryStore
	RuleStore
	BudgetStore

	Migrate(ctx context.Context) error
	Close() error
}
