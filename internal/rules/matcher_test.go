package rules

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyhq/tally/internal/category"
	"github.com/tallyhq/tally/internal/model"
)

func testTree(t *testing.T) (*category.Tree, uuid.UUID, uuid.UUID) {
	t.Helper()

	food := model.Category{ID: uuid.New(), Name: "Food", IsActive: true}
	shopping := model.Category{ID: uuid.New(), Name: "Shopping", IsActive: true}

	tree, err := category.NewTree([]model.Category{food, shopping})
	require.NoError(t, err)
	return tree, food.ID, shopping.ID
}

func makeRule(pattern string, pt model.PatternType, field model.FieldToMatch, categoryID uuid.UUID, priority int, createdAt time.Time) model.CategorizationRule {
	return model.CategorizationRule{
		ID:           uuid.New(),
		Pattern:      pattern,
		PatternType:  pt,
		FieldToMatch: field,
		CategoryID:   &categoryID,
		Name:         "rule " + pattern,
		Priority:     priority,
		Confidence:   90,
		IsActive:     true,
		CreatedAt:    createdAt,
	}
}

func TestMatcher_PatternTypes(t *testing.T) {
	tree, foodID, _ := testTree(t)
	now := time.Now()

	tests := []struct {
		name      string
		rule      model.CategorizationRule
		row       model.RawRow
		wantMatch bool
	}{
		{
			name:      "contains case insensitive",
			rule:      makeRule("netflix", model.PatternContains, model.FieldDescription, foodID, 100, now),
			row:       model.RawRow{Description: "NETFLIX.COM monthly"},
			wantMatch: true,
		},
		{
			name:      "exact full match",
			rule:      makeRule("Esselunga", model.PatternExact, model.FieldVendor, foodID, 100, now),
			row:       model.RawRow{Vendor: "esselunga"},
			wantMatch: true,
		},
		{
			name:      "exact rejects partial",
			rule:      makeRule("Esselunga", model.PatternExact, model.FieldVendor, foodID, 100, now),
			row:       model.RawRow{Vendor: "esselunga milano"},
			wantMatch: false,
		},
		{
			name:      "starts with",
			rule:      makeRule("paypal *", model.PatternStartsWith, model.FieldDescription, foodID, 100, now),
			row:       model.RawRow{Description: "PAYPAL *SPOTIFY 35314369001"},
			wantMatch: true,
		},
		{
			name:      "regex",
			rule:      makeRule(`uber\s+(trip|eats)`, model.PatternRegex, model.FieldDescription, foodID, 100, now),
			row:       model.RawRow{Description: "UBER  TRIP HELP.UBER.COM"},
			wantMatch: true,
		},
		{
			name:      "invalid regex never matches",
			rule:      makeRule(`uber\s+(trip`, model.PatternRegex, model.FieldDescription, foodID, 100, now),
			row:       model.RawRow{Description: "uber trip"},
			wantMatch: false,
		},
		{
			name:      "notes field",
			rule:      makeRule("refund", model.PatternContains, model.FieldNotes, foodID, 100, now),
			row:       model.RawRow{Notes: "partial REFUND for order"},
			wantMatch: true,
		},
		{
			name:      "wrong field no match",
			rule:      makeRule("netflix", model.PatternContains, model.FieldVendor, foodID, 100, now),
			row:       model.RawRow{Description: "netflix"},
			wantMatch: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMatcher([]model.CategorizationRule{tt.rule}, tree)
			got := m.Match(tt.row)
			if tt.wantMatch {
				require.NotNil(t, got)
				assert.Equal(t, model.SuggestionRule, got.Source)
				assert.Equal(t, 90, got.Confidence)
				require.NotNil(t, got.RuleID)
				assert.Equal(t, tt.rule.ID, *got.RuleID)
			} else {
				assert.Nil(t, got)
			}
		})
	}
}

func TestMatcher_Precedence(t *testing.T) {
	tree, foodID, shoppingID := testTree(t)
	now := time.Now()

	t.Run("lower priority number wins", func(t *testing.T) {
		low := makeRule("amazon", model.PatternContains, model.FieldVendor, shoppingID, 50, now)
		high := makeRule("amazon", model.PatternContains, model.FieldVendor, foodID, 100, now)

		m := NewMatcher([]model.CategorizationRule{high, low}, tree)
		got := m.Match(model.RawRow{Vendor: "Amazon"})
		require.NotNil(t, got)
		assert.Equal(t, low.ID, *got.RuleID)
	})

	t.Run("tie broken by most recent rule", func(t *testing.T) {
		older := makeRule("amazon", model.PatternContains, model.FieldVendor, shoppingID, 100, now.Add(-time.Hour))
		newer := makeRule("amazon", model.PatternContains, model.FieldVendor, foodID, 100, now)

		m := NewMatcher([]model.CategorizationRule{older, newer}, tree)
		got := m.Match(model.RawRow{Vendor: "Amazon"})
		require.NotNil(t, got)
		assert.Equal(t, newer.ID, *got.RuleID)
	})
}

func TestMatcher_SkipsUnusableRules(t *testing.T) {
	now := time.Now()
	active := model.Category{ID: uuid.New(), Name: "Active", IsActive: true}
	inactive := model.Category{ID: uuid.New(), Name: "Retired", IsActive: false}
	tree, err := category.NewTree([]model.Category{active, inactive})
	require.NoError(t, err)

	t.Run("inactive rule", func(t *testing.T) {
		rule := makeRule("amazon", model.PatternContains, model.FieldVendor, active.ID, 100, now)
		rule.IsActive = false
		m := NewMatcher([]model.CategorizationRule{rule}, tree)
		assert.Nil(t, m.Match(model.RawRow{Vendor: "amazon"}))
	})

	t.Run("rule targeting inactive category", func(t *testing.T) {
		stale := makeRule("amazon", model.PatternContains, model.FieldVendor, inactive.ID, 50, now)
		fallback := makeRule("amazon", model.PatternContains, model.FieldVendor, active.ID, 100, now)

		m := NewMatcher([]model.CategorizationRule{stale, fallback}, tree)
		got := m.Match(model.RawRow{Vendor: "amazon"})
		require.NotNil(t, got)
		assert.Equal(t, fallback.ID, *got.RuleID)
	})

	t.Run("rule targeting deleted category", func(t *testing.T) {
		deleted := uuid.New()
		rule := makeRule("amazon", model.PatternContains, model.FieldVendor, active.ID, 100, now)
		rule.CategoryID = &deleted

		m := NewMatcher([]model.CategorizationRule{rule}, tree)
		assert.Nil(t, m.Match(model.RawRow{Vendor: "amazon"}))
	})
}

func TestMatcher_DoesNotMutateInput(t *testing.T) {
	tree, foodID, _ := testTree(t)
	now := time.Now()

	ruleSet := []model.CategorizationRule{
		makeRule("b", model.PatternContains, model.FieldVendor, foodID, 200, now),
		makeRule("a", model.PatternContains, model.FieldVendor, foodID, 100, now),
	}
	NewMatcher(ruleSet, tree)
	assert.Equal(t, 200, ruleSet[0].Priority, "caller's slice order must survive")
}
