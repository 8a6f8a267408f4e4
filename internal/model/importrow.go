package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/tallyhq/tally/internal/money"
)

// SuggestionSource tags where a category suggestion came from.
type SuggestionSource string

// Suggestion source constants.
const (
	SuggestionRule      SuggestionSource = "rule"
	SuggestionHeuristic SuggestionSource = "heuristic"
	SuggestionNone      SuggestionSource = "none"
)

// RawRow is a parsed bank-export row before reconciliation. Parsing adapters
// (OFX, CSV) produce these; the reconciler never sees file formats.
type RawRow struct {
	Date          time.Time
	Description   string
	Vendor        string
	Notes         string
	PaymentMethod string
	Amount        money.Money
}

// ImportRow is a transient reconciliation row. It is never persisted; commit
// converts accepted rows into LedgerEntries.
type ImportRow struct {
	Raw                  RawRow
	UniqueID             string
	SuggestionReason     string
	CategoryID           *uuid.UUID
	SubcategoryID        *uuid.UUID
	SuggestedCategoryID  *uuid.UUID
	SuggestedSubcatID    *uuid.UUID
	SuggestedRuleID      *uuid.UUID
	Tags                 []string
	SuggestionSource     SuggestionSource
	SuggestionConfidence int
	IsDuplicate          bool
	Excluded             bool
	ForceImport          bool
	CreateRule           bool
}

// ImportSummary aggregates preview statistics for display.
type ImportSummary struct {
	DateStart        time.Time
	DateEnd          time.Time
	Currency         string
	TotalAmount      string // decimal string, non-duplicate rows only
	TotalRows        int
	NewRows          int
	DuplicateRows    int
	RuleMatches      int
	HeuristicMatches int
	NoSuggestions    int
}

// ImportPreview is the assembled result of a preview run.
type ImportPreview struct {
	Rows    []ImportRow
	Summary ImportSummary
}

// ImportError records a single row's commit failure. Failures are captured
// per row and never abort the remaining rows.
type ImportError struct {
	Reason string
	Row    int
}

// ImportResult reports the outcome of a commit with partial-success
// semantics.
type ImportResult struct {
	ImportedIDs    []uuid.UUID
	CreatedRuleIDs []uuid.UUID
	Errors         []ImportError
	ImportedCount  int
	ErrorCount     int
}
