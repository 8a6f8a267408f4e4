// Package budget computes spending performance for budgets and rolls up
// budget groups. All computation happens over one consistent ledger snapshot
// supplied by the caller; the aggregator performs no mutation and no I/O
// except the injected rate lookup.
package budget

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallyhq/tally/internal/category"
	"github.com/tallyhq/tally/internal/model"
	"github.com/tallyhq/tally/internal/money"
	"github.com/tallyhq/tally/internal/service"
)

// Status classifies a budget's health.
type Status string

// Budget status constants, ordered by severity.
const (
	StatusOnTrack    Status = "on_track"
	StatusWarning    Status = "warning"
	StatusOverBudget Status = "over_budget"
)

// defaultGroupThreshold is the warning boundary for group rollups, which
// have no per-budget alert threshold of their own.
var defaultGroupThreshold = decimal.NewFromInt(80)

var hundred = decimal.NewFromInt(100)

// Performance is the computed health of a single budget.
type Performance struct {
	Spent          money.Money
	Remaining      money.Money
	PercentageUsed decimal.Decimal
	Status         Status
	BudgetID       uuid.UUID
	// Degraded is set when part of the spend could not be attributed
	// (unconvertible currency); the numbers are a lower bound then.
	Degraded bool
}

// CategorySummary aggregates budgets sharing a primary category. Own amounts
// cover the primary category's direct budget; rolled-up totals include its
// subcategories. Each subcategory's spend counts once toward the parent's
// totals and once in its own bucket, never twice.
type CategorySummary struct {
	Subcategories  map[string]*CategorySummary
	CategoryName   string
	Budgeted       money.Money
	Spent          money.Money
	Remaining      money.Money
	TotalBudgeted  money.Money
	TotalSpent     money.Money
	PercentageUsed decimal.Decimal
	CategoryID     uuid.UUID
}

// GroupSummary is the rollup of a budget group in the group's currency.
type GroupSummary struct {
	Categories     map[string]*CategorySummary
	Performances   []Performance
	TotalBudgeted  money.Money
	TotalSpent     money.Money
	TotalRemaining money.Money
	PercentageUsed decimal.Decimal
	Status         Status
	GroupID        uuid.UUID
	BudgetCount    int
	DegradedCount  int
}

// Aggregator computes budget performance against a category tree.
type Aggregator struct {
	tree *category.Tree
}

// NewAggregator creates an aggregator over the given category tree.
func NewAggregator(tree *category.Tree) *Aggregator {
	return &Aggregator{tree: tree}
}

// Performance computes spent, remaining, percentage used and status for one
// budget over the snapshot. Recomputing on an unchanged snapshot always
// yields identical results.
func (a *Aggregator) Performance(b *model.Budget, entries []model.LedgerEntry) Performance {
	spent := decimal.Zero
	degraded := false

	end := b.PeriodEnd()
	for i := range entries {
		entry := &entries[i]
		if entry.UserID != b.UserID {
			continue
		}
		if entry.Date.Before(b.StartDate) {
			continue
		}
		if end != nil && entry.Date.After(*end) {
			continue
		}
		if !a.inScope(b, entry) {
			continue
		}

		amount, ok := attributableAmount(entry, b.Amount.Currency())
		if !ok {
			degraded = true
			slog.Warn("entry spend not attributable to budget currency",
				"entry", entry.ID, "budget", b.ID,
				"entry_currency", entry.Amount.Currency(),
				"budget_currency", b.Amount.Currency())
			continue
		}
		spent = spent.Add(amount)
	}

	spentMoney := money.New(spent, b.Amount.Currency())
	remaining := money.New(b.Amount.Amount().Sub(spent), b.Amount.Currency())

	percentage := decimal.Zero
	if !b.Amount.IsZero() {
		percentage = spent.Div(b.Amount.Amount()).Mul(hundred)
	}

	return Performance{
		BudgetID:       b.ID,
		Spent:          spentMoney,
		Remaining:      remaining,
		PercentageUsed: percentage,
		Status:         classify(b.Amount.Amount(), spent, percentage, b.AlertThreshold),
		Degraded:       degraded,
	}
}

// inScope decides whether an entry counts toward the budget. An unscoped
// budget (no category) matches everything in the window. Deactivated
// categories still count: budgets are evaluated against the ledger, not
// against current category activity.
func (a *Aggregator) inScope(b *model.Budget, entry *model.LedgerEntry) bool {
	if b.CategoryID == nil {
		return true
	}
	target := *b.CategoryID
	if entry.CategoryID != nil && *entry.CategoryID == target {
		return true
	}
	if entry.SubcategoryID != nil && *entry.SubcategoryID == target {
		return true
	}
	if entry.SubcategoryID != nil && a.tree.IsDescendant(target, *entry.SubcategoryID) {
		return true
	}
	return false
}

// attributableAmount returns the entry's spend in the budget currency. The
// base amount is preferred; the raw amount is used when its currency already
// matches. Anything else cannot be attributed without a conversion the
// aggregator does not own.
func attributableAmount(entry *model.LedgerEntry, currency string) (decimal.Decimal, bool) {
	if entry.BaseAmount != nil && entry.BaseAmount.Currency() == currency {
		return entry.BaseAmount.Amount(), true
	}
	if entry.Amount.Currency() == currency {
		return entry.Amount.Amount(), true
	}
	return decimal.Zero, false
}

// classify applies the three-tier status rule. Boundaries are exact decimal
// comparisons: spent=80.00 of 100 at threshold 80 is a warning, 79.99 is
// not. A zero-amount budget is over budget only once anything is spent.
func classify(budgeted, spent, percentage, threshold decimal.Decimal) Status {
	if budgeted.IsZero() {
		if spent.IsPositive() {
			return StatusOverBudget
		}
		return StatusOnTrack
	}
	if percentage.GreaterThan(hundred) {
		return StatusOverBudget
	}
	if percentage.GreaterThanOrEqual(threshold) {
		return StatusWarning
	}
	return StatusOnTrack
}

// GroupSummary rolls up a budget group into its comparison currency. Each
// budget's amounts are converted through the rate lookup before summing; a
// failed lookup degrades that budget to a zero contribution instead of
// failing the rollup.
func (a *Aggregator) GroupSummary(
	ctx context.Context,
	group *model.BudgetGroup,
	budgets []model.Budget,
	entries []model.LedgerEntry,
	rates service.RateLookup,
) GroupSummary {
	summary := GroupSummary{
		GroupID:    group.ID,
		Categories: make(map[string]*CategorySummary),
	}

	totalBudgeted := decimal.Zero
	totalSpent := decimal.Zero

	for i := range budgets {
		b := &budgets[i]
		if !b.IsActive {
			continue
		}
		summary.BudgetCount++

		perf := a.Performance(b, entries)
		summary.Performances = append(summary.Performances, perf)

		rate, err := groupRate(ctx, rates, b.Amount.Currency(), group.Currency, group)
		if err != nil {
			summary.DegradedCount++
			slog.Warn("budget excluded from group rollup",
				"budget", b.ID, "group", group.ID, "error", err)
			continue
		}

		budgeted := b.Amount.Convert(rate, group.Currency)
		spent := perf.Spent.Convert(rate, group.Currency)

		totalBudgeted = totalBudgeted.Add(budgeted.Amount())
		totalSpent = totalSpent.Add(spent.Amount())

		a.addToCategorySummary(&summary, b, budgeted, spent, group.Currency)
	}

	summary.TotalBudgeted = money.New(totalBudgeted, group.Currency)
	summary.TotalSpent = money.New(totalSpent, group.Currency)
	summary.TotalRemaining = money.New(totalBudgeted.Sub(totalSpent), group.Currency)

	if !totalBudgeted.IsZero() {
		summary.PercentageUsed = totalSpent.Div(totalBudgeted).Mul(hundred)
	}
	summary.Status = classify(totalBudgeted, totalSpent, summary.PercentageUsed, defaultGroupThreshold)

	return summary
}

func groupRate(ctx context.Context, rates service.RateLookup, from, to string, group *model.BudgetGroup) (decimal.Decimal, error) {
	if from == to {
		return decimal.NewFromInt(1), nil
	}
	return rates.Rate(ctx, from, to, group.StartDate)
}

// addToCategorySummary slots a budget's converted amounts into the per-
// category rollup. Subcategory budgets feed their own bucket and the
// parent's rolled-up totals.
func (a *Aggregator) addToCategorySummary(summary *GroupSummary, b *model.Budget, budgeted, spent money.Money, currency string) {
	if b.CategoryID == nil {
		return
	}
	cat, err := a.tree.Resolve(*b.CategoryID)
	if err != nil {
		// Budget referencing a vanished category degrades to the group
		// totals only.
		slog.Warn("budget category missing from tree", "budget", b.ID, "category", *b.CategoryID)
		return
	}

	primary := cat
	if cat.IsSubcategory() {
		if primary, err = a.tree.PrimaryOf(cat.ID); err != nil {
			return
		}
	}

	main, ok := summary.Categories[primary.Name]
	if !ok {
		main = &CategorySummary{
			CategoryID:    primary.ID,
			CategoryName:  primary.Name,
			Budgeted:      money.Zero(currency),
			Spent:         money.Zero(currency),
			Remaining:     money.Zero(currency),
			TotalBudgeted: money.Zero(currency),
			TotalSpent:    money.Zero(currency),
			Subcategories: make(map[string]*CategorySummary),
		}
		summary.Categories[primary.Name] = main
	}

	if cat.IsPrimary() {
		main.Budgeted = mustAdd(main.Budgeted, budgeted)
		main.Spent = mustAdd(main.Spent, spent)
	} else {
		sub, ok := main.Subcategories[cat.Name]
		if !ok {
			sub = &CategorySummary{
				CategoryID:   cat.ID,
				CategoryName: cat.Name,
				Budgeted:     money.Zero(currency),
				Spent:        money.Zero(currency),
				Remaining:    money.Zero(currency),
			}
			main.Subcategories[cat.Name] = sub
		}
		sub.Budgeted = mustAdd(sub.Budgeted, budgeted)
		sub.Spent = mustAdd(sub.Spent, spent)
		sub.Remaining = money.New(sub.Budgeted.Amount().Sub(sub.Spent.Amount()), currency)
		if !sub.Budgeted.IsZero() {
			sub.PercentageUsed = sub.Spent.Amount().Div(sub.Budgeted.Amount()).Mul(hundred)
		}
	}

	main.TotalBudgeted = mustAdd(main.TotalBudgeted, budgeted)
	main.TotalSpent = mustAdd(main.TotalSpent, spent)
	main.Remaining = money.New(main.Budgeted.Amount().Sub(main.Spent.Amount()), currency)
	if !main.TotalBudgeted.IsZero() {
		main.PercentageUsed = main.TotalSpent.Amount().Div(main.TotalBudgeted.Amount()).Mul(hundred)
	}
}

// mustAdd adds two amounts known to share a currency; by construction every
// amount here is already in the group currency.
func mustAdd(a, b money.Money) money.Money {
	sum, err := a.Add(b)
	if err != nil {
		panic(err)
	}
	return sum
}
