package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyhq/tally/internal/common"
	"github.com/tallyhq/tally/internal/model"
	"github.com/tallyhq/tally/internal/money"
	"github.com/tallyhq/tally/internal/service"
)

func setupTestDB(t *testing.T) *SQLiteStorage {
	t.Helper()

	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "tally.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func testEntry(userID uuid.UUID, date time.Time, amount, description string) *model.LedgerEntry {
	return &model.LedgerEntry{
		ID:          uuid.New(),
		UserID:      userID,
		Date:        date,
		Amount:      money.MustParse(amount, "EUR"),
		Description: description,
		CreatedAt:   time.Now(),
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	store := setupTestDB(t)
	// A second run applies nothing and still lands on the expected version.
	require.NoError(t, store.Migrate(context.Background()))
}

func TestSaveEntry_Roundtrip(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	userID := uuid.New()
	categoryID := uuid.New()
	rate := decimal.RequireFromString("0.9")
	base := money.MustParse("90.00", "EUR")

	entry := &model.LedgerEntry{
		ID:           uuid.New(),
		UserID:       userID,
		Date:         time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC),
		Amount:       money.MustParse("100.00", "USD"),
		BaseAmount:   &base,
		ExchangeRate: &rate,
		Description:  "Hotel Berlin",
		Vendor:       "Hotel",
		Notes:        "work trip",
		CategoryID:   &categoryID,
		Tags:         []string{"import", "import:2026-03", "work"},
		CreatedAt:    time.Now(),
	}
	require.NoError(t, store.SaveEntry(ctx, entry))

	got, err := store.GetEntryByID(ctx, entry.ID)
	require.NoError(t, err)

	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, "100.00 USD", got.Amount.String())
	require.NotNil(t, got.BaseAmount)
	assert.Equal(t, "90.00 EUR", got.BaseAmount.String())
	require.NotNil(t, got.ExchangeRate)
	assert.True(t, got.ExchangeRate.Equal(rate))
	assert.Equal(t, "Hotel Berlin", got.Description)
	assert.Equal(t, &categoryID, got.CategoryID)
	assert.Equal(t, []string{"import", "import:2026-03", "work"}, got.Tags)
}

func TestSaveEntry_Validation(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	tests := []struct {
		mutate func(*model.LedgerEntry)
		name   string
	}{
		{name: "zero amount", mutate: func(e *model.LedgerEntry) {
			e.Amount = money.Zero("EUR")
		}},
		{name: "missing description", mutate: func(e *model.LedgerEntry) {
			e.Description = "  "
		}},
		{name: "missing date", mutate: func(e *model.LedgerEntry) {
			e.Date = time.Time{}
		}},
		{name: "rate without base amount", mutate: func(e *model.LedgerEntry) {
			rate := decimal.NewFromInt(1)
			e.ExchangeRate = &rate
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := testEntry(uuid.New(), time.Now(), "10.00", "coffee")
			tt.mutate(entry)
			assert.ErrorIs(t, store.SaveEntry(ctx, entry), ErrInvalidEntry)
		})
	}
}

func TestGetEntries_Filtering(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	userID := uuid.New()
	categoryID := uuid.New()

	early := testEntry(userID, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC), "10.00", "february")
	inWindow := testEntry(userID, time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC), "20.00", "march")
	inWindow.CategoryID = &categoryID
	other := testEntry(uuid.New(), time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC), "30.00", "someone else")

	for _, e := range []*model.LedgerEntry{early, inWindow, other} {
		require.NoError(t, store.SaveEntry(ctx, e))
	}

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

	entries, err := store.GetEntries(ctx, userID, service.LedgerFilter{StartDate: &start, EndDate: &end})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "march", entries[0].Description)

	entries, err = store.GetEntries(ctx, userID, service.LedgerFilter{CategoryID: &categoryID})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, inWindow.ID, entries[0].ID)

	entries, err = store.GetEntries(ctx, userID, service.LedgerFilter{})
	require.NoError(t, err)
	assert.Len(t, entries, 2, "other users' entries stay invisible")
}

func TestGetEntryByID_NotFound(t *testing.T) {
	store := setupTestDB(t)
	_, err := store.GetEntryByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestReassignCategory(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	userID := uuid.New()
	from := uuid.New()
	to := uuid.New()

	primary := testEntry(userID, time.Now(), "10.00", "as category")
	primary.CategoryID = &from
	nested := testEntry(userID, time.Now(), "20.00", "as subcategory")
	nested.SubcategoryID = &from
	untouched := testEntry(userID, time.Now(), "30.00", "unrelated")

	for _, e := range []*model.LedgerEntry{primary, nested, untouched} {
		require.NoError(t, store.SaveEntry(ctx, e))
	}

	affected, err := store.ReassignCategory(ctx, userID, from, to)
	require.NoError(t, err)
	assert.Equal(t, int64(2), affected)

	got, err := store.GetEntryByID(ctx, primary.ID)
	require.NoError(t, err)
	assert.Equal(t, &to, got.CategoryID)

	got, err = store.GetEntryByID(ctx, nested.ID)
	require.NoError(t, err)
	assert.Equal(t, &to, got.SubcategoryID)
}

func TestCategories_NestingLimit(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	userID := uuid.New()

	primary := &model.Category{ID: uuid.New(), UserID: userID, Name: "Food", IsActive: true}
	require.NoError(t, store.CreateCategory(ctx, primary))

	sub := &model.Category{ID: uuid.New(), UserID: userID, Name: "Groceries", ParentID: &primary.ID, IsActive: true}
	require.NoError(t, store.CreateCategory(ctx, sub))

	tooDeep := &model.Category{ID: uuid.New(), UserID: userID, Name: "Fruit", ParentID: &sub.ID, IsActive: true}
	assert.ErrorIs(t, store.CreateCategory(ctx, tooDeep), common.ErrCategoryNesting)
}

func TestCategories_DeactivateCascades(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	userID := uuid.New()

	primary := &model.Category{ID: uuid.New(), UserID: userID, Name: "Food", IsActive: true}
	require.NoError(t, store.CreateCategory(ctx, primary))
	sub := &model.Category{ID: uuid.New(), UserID: userID, Name: "Groceries", ParentID: &primary.ID, IsActive: true}
	require.NoError(t, store.CreateCategory(ctx, sub))

	require.NoError(t, store.DeactivateCategory(ctx, primary.ID))

	cats, err := store.GetCategories(ctx, userID)
	require.NoError(t, err)
	require.Len(t, cats, 2, "deactivated categories stay queryable")
	for _, c := range cats {
		assert.False(t, c.IsActive)
	}
}

func testRule(userID uuid.UUID, pattern string, priority int) *model.CategorizationRule {
	categoryID := uuid.New()
	return &model.CategorizationRule{
		ID:           uuid.New(),
		UserID:       userID,
		Pattern:      pattern,
		PatternType:  model.PatternContains,
		FieldToMatch: model.FieldVendor,
		CategoryID:   &categoryID,
		Name:         "rule " + pattern,
		Priority:     priority,
		Confidence:   90,
		IsActive:     true,
	}
}

func TestRules_ActiveOrdering(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	userID := uuid.New()

	low := testRule(userID, "esselunga", 10)
	high := testRule(userID, "netflix", 100)
	inactive := testRule(userID, "old", 5)
	inactive.IsActive = false

	for _, r := range []*model.CategorizationRule{high, low, inactive} {
		require.NoError(t, store.CreateRule(ctx, r))
	}

	rules, err := store.GetActiveRules(ctx, userID)
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "esselunga", rules[0].Pattern, "lowest priority first")
	assert.Equal(t, "netflix", rules[1].Pattern)

	all, err := store.GetRules(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestRules_FindActiveRule(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	userID := uuid.New()

	rule := testRule(userID, "Esselunga", 10)
	require.NoError(t, store.CreateRule(ctx, rule))

	found, err := store.FindActiveRule(ctx, userID, "Esselunga", model.FieldVendor)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, rule.ID, found.ID)

	found, err = store.FindActiveRule(ctx, userID, "Esselunga", model.FieldDescription)
	require.NoError(t, err)
	assert.Nil(t, found, "field is part of the identity")

	require.NoError(t, store.DeactivateRule(ctx, rule.ID))
	found, err = store.FindActiveRule(ctx, userID, "Esselunga", model.FieldVendor)
	require.NoError(t, err)
	assert.Nil(t, found, "inactive rules never match")
}

func TestRules_UsageAndStats(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	userID := uuid.New()

	rule := testRule(userID, "esselunga", 10)
	require.NoError(t, store.CreateRule(ctx, rule))

	appliedAt := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	require.NoError(t, store.IncrementRuleUsage(ctx, rule.ID, appliedAt))
	require.NoError(t, store.IncrementRuleUsage(ctx, rule.ID, appliedAt.Add(time.Hour)))

	rules, err := store.GetActiveRules(ctx, userID)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, 2, rules[0].TimesApplied)
	require.NotNil(t, rules[0].LastAppliedAt)

	stats, err := store.GetRuleStats(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalRules)
	assert.Equal(t, 1, stats.ActiveRules)
	assert.Equal(t, 2, stats.TotalApplications)

	assert.ErrorIs(t, store.IncrementRuleUsage(ctx, uuid.New(), appliedAt), common.ErrNotFound)
}

func TestRules_MaxPriority(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	userID := uuid.New()

	max, err := store.MaxPriority(ctx, userID)
	require.NoError(t, err)
	assert.Zero(t, max)

	require.NoError(t, store.CreateRule(ctx, testRule(userID, "a", 150)))
	require.NoError(t, store.CreateRule(ctx, testRule(userID, "b", 40)))

	max, err = store.MaxPriority(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, 150, max)
}

func TestBudgets_Roundtrip(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()
	userID := uuid.New()

	group := &model.BudgetGroup{
		ID:         uuid.New(),
		UserID:     userID,
		Name:       "March 2026",
		PeriodType: model.PeriodMonthly,
		Currency:   "EUR",
		StartDate:  time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:    time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC),
		IsActive:   true,
	}
	require.NoError(t, store.SaveBudgetGroup(ctx, group))

	budget := &model.Budget{
		ID:             uuid.New(),
		UserID:         userID,
		Name:           "Groceries",
		Amount:         money.MustParse("400.00", "EUR"),
		PeriodType:     model.PeriodMonthly,
		StartDate:      group.StartDate,
		BudgetGroupID:  &group.ID,
		AlertThreshold: decimal.NewFromInt(75),
		IsActive:       true,
	}
	require.NoError(t, store.SaveBudget(ctx, budget))

	got, err := store.GetBudgetByID(ctx, budget.ID)
	require.NoError(t, err)
	assert.Equal(t, "400.00 EUR", got.Amount.String())
	assert.True(t, got.AlertThreshold.Equal(decimal.NewFromInt(75)))
	assert.Equal(t, &group.ID, got.BudgetGroupID)

	// Upsert by ID.
	budget.Amount = money.MustParse("450.00", "EUR")
	require.NoError(t, store.SaveBudget(ctx, budget))
	got, err = store.GetBudgetByID(ctx, budget.ID)
	require.NoError(t, err)
	assert.Equal(t, "450.00 EUR", got.Amount.String())

	inGroup, err := store.GetBudgetsByGroup(ctx, group.ID)
	require.NoError(t, err)
	require.Len(t, inGroup, 1)
	assert.Equal(t, budget.ID, inGroup[0].ID)

	groups, err := store.GetBudgetGroups(ctx, userID)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "March 2026", groups[0].Name)

	require.NoError(t, store.DeactivateBudgetGroup(ctx, group.ID))
	gotGroup, err := store.GetBudgetGroupByID(ctx, group.ID)
	require.NoError(t, err)
	assert.False(t, gotGroup.IsActive)
}

func TestBudgets_Validation(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	budget := &model.Budget{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		Name:           "Bad",
		Amount:         money.MustParse("100.00", "EUR"),
		PeriodType:     "fortnightly",
		StartDate:      time.Now(),
		AlertThreshold: decimal.NewFromInt(80),
	}
	assert.ErrorIs(t, store.SaveBudget(ctx, budget), ErrInvalidBudget)

	end := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	custom := &model.Budget{
		ID:             uuid.New(),
		UserID:         uuid.New(),
		Name:           "Backwards",
		Amount:         money.MustParse("100.00", "EUR"),
		PeriodType:     model.PeriodCustom,
		StartDate:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:        &end,
		AlertThreshold: decimal.NewFromInt(80),
	}
	assert.ErrorIs(t, store.SaveBudget(ctx, custom), ErrInvalidBudget)

	thresholds := []struct {
		name  string
		value int64
		valid bool
	}{
		{"zero threshold rejected", 0, false},
		{"negative threshold rejected", -10, false},
		{"over 100 rejected", 150, false},
		{"boundary 100 accepted", 100, true},
		{"boundary 1 accepted", 1, true},
	}
	for _, tc := range thresholds {
		t.Run(tc.name, func(t *testing.T) {
			b := &model.Budget{
				ID:             uuid.New(),
				UserID:         uuid.New(),
				Name:           "Threshold",
				Amount:         money.MustParse("100.00", "EUR"),
				PeriodType:     model.PeriodMonthly,
				StartDate:      time.Now(),
				AlertThreshold: decimal.NewFromInt(tc.value),
				IsActive:       true,
			}
			err := store.SaveBudget(ctx, b)
			if tc.valid {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, ErrInvalidBudget)
			}
		})
	}
}
