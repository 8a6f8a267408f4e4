package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallyhq/tally/internal/category"
	"github.com/tallyhq/tally/internal/common"
	"github.com/tallyhq/tally/internal/dedup"
	"github.com/tallyhq/tally/internal/model"
	"github.com/tallyhq/tally/internal/money"
	"github.com/tallyhq/tally/internal/rules"
	"github.com/tallyhq/tally/internal/service"
)

// autoRuleConfidence is the confidence assigned to rules synthesized from a
// user's import categorization.
const autoRuleConfidence = 80

// autoRuleMinPriority keeps synthesized rules behind every hand-written one.
const autoRuleMinPriority = 200

// Snapshot is the consistent view of a user's data taken at preview start.
// Preview is a pure function of it.
type Snapshot struct {
	Tree    *category.Tree
	Entries []model.LedgerEntry
	Rules   []model.CategorizationRule
}

// Options configures a Reconciler.
type Options struct {
	// BaseCurrency is the user's default currency for base-amount
	// conversion at commit.
	BaseCurrency string
	// Dedup configures duplicate detection for previews.
	Dedup dedup.Options
}

// CommitOptions carries the user's commit-time choices.
type CommitOptions struct {
	// GenericTags are unioned into every imported row's tag set.
	GenericTags []string
	// CreateRules enables rule synthesis for rows flagged CreateRule.
	CreateRules bool
}

// Reconciler runs import previews and commits. Preview touches no stores;
// commit writes ledger entries and rule updates with per-row error capture.
type Reconciler struct {
	ledger  service.LedgerStore
	rules   service.RuleStore
	rates   service.RateLookup
	now     func() time.Time
	options Options
}

// NewReconciler creates a reconciler over the engine's collaborators.
func NewReconciler(ledger service.LedgerStore, ruleStore service.RuleStore, rates service.RateLookup, options Options) *Reconciler {
	return &Reconciler{
		ledger:  ledger,
		rules:   ruleStore,
		rates:   rates,
		now:     time.Now,
		options: options,
	}
}

// Preview runs duplicate detection and categorization over the session's
// rows and assembles the editable preview. It is side-effect free beyond the
// session itself: rule counters do not move, stores are not touched, and
// re-running it on the same snapshot yields the same preview.
func (r *Reconciler) Preview(session *Session, snapshot Snapshot) (*model.ImportPreview, error) {
	if session.State != StateParsed && session.State != StatePreviewed {
		return nil, fmt.Errorf("%w: preview requires parsed rows, got %s", common.ErrSessionState, session.State)
	}

	flags := dedup.Flag(snapshot.Entries, session.rawRows, r.options.Dedup)

	suggester := rules.NewSuggester(
		rules.NewMatcher(snapshot.Rules, snapshot.Tree),
		rules.NewHeuristic(snapshot.Entries, snapshot.Tree),
	)

	previewRows := make([]model.ImportRow, len(session.rawRows))
	for i, raw := range session.rawRows {
		suggestion := suggester.Resolve(raw)
		previewRows[i] = model.ImportRow{
			Raw:                  raw,
			UniqueID:             model.Fingerprint(raw.Date, raw.Amount, raw.Description),
			IsDuplicate:          flags[i],
			Excluded:             flags[i], // duplicates default to excluded but stay visible
			SuggestedCategoryID:  suggestion.CategoryID,
			SuggestedSubcatID:    suggestion.SubcategoryID,
			SuggestedRuleID:      suggestion.RuleID,
			SuggestionSource:     suggestion.Source,
			SuggestionConfidence: suggestion.Confidence,
			SuggestionReason:     suggestion.Reason,
			// The suggestion seeds the editable choice.
			CategoryID:    suggestion.CategoryID,
			SubcategoryID: suggestion.SubcategoryID,
		}
	}

	session.preview = &model.ImportPreview{
		Rows:    previewRows,
		Summary: summarize(previewRows),
	}
	session.tree = snapshot.Tree
	session.State = StatePreviewed

	common.LogDebug("import preview assembled", common.Fields{
		"session":    session.ID,
		"rows":       len(previewRows),
		"duplicates": session.preview.Summary.DuplicateRows,
	})

	return session.preview, nil
}

// summarize computes preview statistics. Batch exports are single-currency;
// the total covers non-duplicate rows in the batch's leading currency.
func summarize(rows []model.ImportRow) model.ImportSummary {
	summary := model.ImportSummary{TotalRows: len(rows)}

	total := decimal.Zero
	for i := range rows {
		row := &rows[i]

		if summary.Currency == "" {
			summary.Currency = row.Raw.Amount.Currency()
		}
		if summary.DateStart.IsZero() || row.Raw.Date.Before(summary.DateStart) {
			summary.DateStart = row.Raw.Date
		}
		if row.Raw.Date.After(summary.DateEnd) {
			summary.DateEnd = row.Raw.Date
		}

		if row.IsDuplicate {
			summary.DuplicateRows++
		} else {
			summary.NewRows++
			if row.Raw.Amount.Currency() == summary.Currency {
				total = total.Add(row.Raw.Amount.Amount())
			}
		}

		switch row.SuggestionSource {
		case model.SuggestionRule:
			summary.RuleMatches++
		case model.SuggestionHeuristic:
			summary.HeuristicMatches++
		default:
			summary.NoSuggestions++
		}
	}

	summary.TotalAmount = money.New(total, summary.Currency).AmountString()
	return summary
}

// Commit converts accepted preview rows into ledger entries. Commit is
// atomic per row: a failing row is recorded in the result's errors and the
// remaining rows proceed; already-committed rows are never rolled back.
func (r *Reconciler) Commit(ctx context.Context, session *Session, opts CommitOptions) (*model.ImportResult, error) {
	if session.State != StatePreviewed {
		return nil, fmt.Errorf("%w: commit requires a previewed session, got %s", common.ErrSessionState, session.State)
	}

	commitTime := r.now()
	autoTags := []string{"import", "import:" + commitTime.Format("2006-01")}

	result := &model.ImportResult{}

	for i := range session.preview.Rows {
		row := &session.preview.Rows[i]

		if row.Excluded && !(row.IsDuplicate && row.ForceImport) {
			continue
		}
		if row.IsDuplicate && !row.ForceImport {
			continue
		}

		entry, err := r.buildEntry(ctx, session, i, row, autoTags, opts.GenericTags, commitTime)
		if err != nil {
			result.Errors = append(result.Errors, model.ImportError{Row: i, Reason: err.Error()})
			continue
		}

		if err := r.ledger.SaveEntry(ctx, entry); err != nil {
			result.Errors = append(result.Errors, model.ImportError{
				Row:    i,
				Reason: fmt.Sprintf("save failed: %v", err),
			})
			continue
		}
		result.ImportedIDs = append(result.ImportedIDs, entry.ID)

		r.recordRuleUsage(ctx, row, commitTime)

		if opts.CreateRules && row.CreateRule {
			if ruleID, ok := r.synthesizeRule(ctx, session.UserID, row); ok {
				result.CreatedRuleIDs = append(result.CreatedRuleIDs, ruleID)
			}
		}
	}

	result.ImportedCount = len(result.ImportedIDs)
	result.ErrorCount = len(result.Errors)
	session.State = StateCommitted

	common.LogInfo("import committed", common.Fields{
		"session":  session.ID,
		"imported": result.ImportedCount,
		"errors":   result.ErrorCount,
		"rules":    len(result.CreatedRuleIDs),
	})

	return result, nil
}

// buildEntry validates a row and converts it into a ledger entry, including
// base-currency conversion and tag union.
func (r *Reconciler) buildEntry(ctx context.Context, session *Session, index int, row *model.ImportRow, autoTags, genericTags []string, commitTime time.Time) (*model.LedgerEntry, error) {
	if row.Raw.Date.IsZero() {
		return nil, common.NewValidationError(index, "date", "missing")
	}
	if !row.Raw.Amount.IsPositive() {
		return nil, common.NewValidationError(index, "amount", "must be greater than zero")
	}
	if row.CategoryID == nil {
		return nil, fmt.Errorf("%w", common.ErrMissingCategory)
	}
	if row.SubcategoryID != nil {
		if session.tree == nil || !session.tree.IsDescendant(*row.CategoryID, *row.SubcategoryID) {
			return nil, common.NewValidationError(index, "subcategory", "not a child of the assigned category")
		}
	}

	entry := &model.LedgerEntry{
		ID:            uuid.New(),
		UserID:        session.UserID,
		Date:          row.Raw.Date,
		Amount:        row.Raw.Amount,
		Description:   row.Raw.Description,
		Vendor:        row.Raw.Vendor,
		Notes:         row.Raw.Notes,
		CategoryID:    row.CategoryID,
		SubcategoryID: row.SubcategoryID,
		Tags:          unionTags(autoTags, genericTags, row.Tags),
		CreatedAt:     commitTime,
	}

	r.convertToBase(ctx, entry)
	return entry, nil
}

// convertToBase fills BaseAmount and ExchangeRate. A failed rate lookup
// leaves the entry unconverted rather than failing the row; the aggregator
// degrades gracefully for entries without a base amount.
func (r *Reconciler) convertToBase(ctx context.Context, entry *model.LedgerEntry) {
	base := r.options.BaseCurrency
	if base == "" || entry.Amount.Currency() == base {
		one := decimal.NewFromInt(1)
		converted := money.New(entry.Amount.Amount(), entry.Amount.Currency())
		entry.BaseAmount = &converted
		entry.ExchangeRate = &one
		return
	}

	rate, err := r.rates.Rate(ctx, entry.Amount.Currency(), base, entry.Date)
	if err != nil {
		lookupErr := &common.RateLookupError{
			From: entry.Amount.Currency(),
			To:   base,
			AsOf: entry.Date,
			Err:  err,
		}
		common.LogError(lookupErr, "entry saved without base conversion", common.Fields{
			"entry": entry.ID,
		})
		return
	}

	converted := entry.Amount.Convert(rate, base)
	entry.BaseAmount = &converted
	entry.ExchangeRate = &rate
}

// recordRuleUsage bumps a rule's counters when its suggestion survived the
// user's edits. Preview never touches counters, so re-running previews does
// not inflate them.
func (r *Reconciler) recordRuleUsage(ctx context.Context, row *model.ImportRow, appliedAt time.Time) {
	if row.SuggestedRuleID == nil || row.CategoryID == nil || row.SuggestedCategoryID == nil {
		return
	}
	if *row.CategoryID != *row.SuggestedCategoryID {
		return
	}
	if err := r.rules.IncrementRuleUsage(ctx, *row.SuggestedRuleID, appliedAt); err != nil {
		slog.Warn("failed to record rule usage", "rule", *row.SuggestedRuleID, "error", err)
	}
}

// synthesizeRule creates a contains-rule on the row's vendor from the user's
// categorization. Rules are appended after all existing ones and skipped
// when an identical active pattern already exists.
func (r *Reconciler) synthesizeRule(ctx context.Context, userID uuid.UUID, row *model.ImportRow) (uuid.UUID, bool) {
	vendor := trimmedVendor(row)
	if len(vendor) < 2 || row.CategoryID == nil {
		return uuid.Nil, false
	}

	existing, err := r.rules.FindActiveRule(ctx, userID, vendor, model.FieldVendor)
	if err != nil {
		slog.Warn("rule lookup failed during synthesis", "vendor", vendor, "error", err)
		return uuid.Nil, false
	}
	if existing != nil {
		return uuid.Nil, false
	}

	priority := autoRuleMinPriority
	if maxPriority, err := r.rules.MaxPriority(ctx, userID); err == nil && maxPriority+10 > priority {
		priority = maxPriority + 10
	}

	name := vendor
	if len(name) > 30 {
		name = name[:30]
	}

	rule := &model.CategorizationRule{
		ID:            uuid.New(),
		UserID:        userID,
		Pattern:       vendor,
		PatternType:   model.PatternContains,
		FieldToMatch:  model.FieldVendor,
		CategoryID:    row.CategoryID,
		SubcategoryID: row.SubcategoryID,
		Name:          "Auto: " + name,
		Priority:      priority,
		Confidence:    autoRuleConfidence,
		IsActive:      true,
		CreatedAt:     r.now(),
	}

	if err := r.rules.CreateRule(ctx, rule); err != nil {
		slog.Warn("failed to create rule from import", "vendor", vendor, "error", err)
		return uuid.Nil, false
	}
	return rule.ID, true
}

func trimmedVendor(row *model.ImportRow) string {
	return strings.TrimSpace(row.Raw.Vendor)
}
