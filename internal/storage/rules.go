package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/tallyhq/tally/internal/common"
	"github.com/tallyhq/tally/internal/model"
	"github.com/tallyhq/tally/internal/service"
)

const ruleColumns = `id, user_id, pattern, pattern_type, field_to_match,
	category_id, subcategory_id, name, notes, priority, confidence,
	times_applied, last_applied_at, is_active, created_at, updated_at`

// GetActiveRules returns a user's active rules in match order: priority
// ascending, newest first on ties.
func (s *SQLiteStorage) GetActiveRules(ctx context.Context, userID uuid.UUID) ([]model.CategorizationRule, error) {
	return s.queryRules(ctx, userID, `
		SELECT `+ruleColumns+`
		FROM categorization_rules
		WHERE user_id = ? AND is_active = 1
		ORDER BY priority ASC, created_at DESC`)
}

// GetRules returns all of a user's rules, active and inactive.
func (s *SQLiteStorage) GetRules(ctx context.Context, userID uuid.UUID) ([]model.CategorizationRule, error) {
	return s.queryRules(ctx, userID, `
		SELECT `+ruleColumns+`
		FROM categorization_rules
		WHERE user_id = ?
		ORDER BY priority ASC, created_at DESC`)
}

func (s *SQLiteStorage) queryRules(ctx context.Context, userID uuid.UUID, query string) ([]model.CategorizationRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(userID, "userID"); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var rules []model.CategorizationRule
	for rows.Next() {
		rule, scanErr := scanRule(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}
	return rules, nil
}

// CreateRule persists a new categorization rule.
func (s *SQLiteStorage) CreateRule(ctx context.Context, rule *model.CategorizationRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(rule); err != nil {
		return err
	}

	now := time.Now()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now

	var lastApplied any
	if rule.LastAppliedAt != nil {
		lastApplied = *rule.LastAppliedAt
	}

	query := `
		INSERT INTO categorization_rules (` + ruleColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		rule.ID.String(),
		rule.UserID.String(),
		rule.Pattern,
		string(rule.PatternType),
		string(rule.FieldToMatch),
		nullableID(rule.CategoryID),
		nullableID(rule.SubcategoryID),
		rule.Name,
		rule.Notes,
		rule.Priority,
		rule.Confidence,
		rule.TimesApplied,
		lastApplied,
		rule.IsActive,
		rule.CreatedAt,
		rule.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create rule: %w", err)
	}

	slog.Info("created categorization rule",
		"name", rule.Name, "pattern", rule.Pattern, "priority", rule.Priority)
	return nil
}

// UpdateRule updates a rule's pattern, target and ordering fields.
func (s *SQLiteStorage) UpdateRule(ctx context.Context, rule *model.CategorizationRule) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateRule(rule); err != nil {
		return err
	}

	query := `
		UPDATE categorization_rules
		SET pattern = ?, pattern_type = ?, field_to_match = ?,
		    category_id = ?, subcategory_id = ?, name = ?, notes = ?,
		    priority = ?, confidence = ?, is_active = ?, updated_at = ?
		WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query,
		rule.Pattern,
		string(rule.PatternType),
		string(rule.FieldToMatch),
		nullableID(rule.CategoryID),
		nullableID(rule.SubcategoryID),
		rule.Name,
		rule.Notes,
		rule.Priority,
		rule.Confidence,
		rule.IsActive,
		time.Now(),
		rule.ID.String(),
	)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rule update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: rule %s", common.ErrNotFound, rule.ID)
	}
	return nil
}

// DeactivateRule soft-deletes a rule, preserving its usage history.
func (s *SQLiteStorage) DeactivateRule(ctx context.Context, id uuid.UUID) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE categorization_rules SET is_active = 0, updated_at = ? WHERE id = ?`,
		time.Now(), id.String())
	if err != nil {
		return fmt.Errorf("failed to deactivate rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rule deactivation: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: rule %s", common.ErrNotFound, id)
	}
	return nil
}

// FindActiveRule returns the active rule with the exact pattern and field, or
// nil when none exists. Used to dedupe rule synthesis at import commit.
func (s *SQLiteStorage) FindActiveRule(ctx context.Context, userID uuid.UUID, pattern string, field model.FieldToMatch) (*model.CategorizationRule, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(userID, "userID"); err != nil {
		return nil, err
	}
	if err := validateString(pattern, "pattern"); err != nil {
		return nil, err
	}

	query := `
		SELECT ` + ruleColumns + `
		FROM categorization_rules
		WHERE user_id = ? AND pattern = ? AND field_to_match = ? AND is_active = 1
		LIMIT 1`

	rule, err := scanRule(s.db.QueryRowContext(ctx, query, userID.String(), pattern, string(field)))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// IncrementRuleUsage bumps a rule's applied counter and stamps the time the
// suggestion was kept.
func (s *SQLiteStorage) IncrementRuleUsage(ctx context.Context, id uuid.UUID, appliedAt time.Time) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE categorization_rules
		SET times_applied = times_applied + 1, last_applied_at = ?
		WHERE id = ?`,
		appliedAt, id.String())
	if err != nil {
		return fmt.Errorf("failed to increment rule usage: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rule usage update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: rule %s", common.ErrNotFound, id)
	}
	return nil
}

// MaxPriority returns the highest priority among a user's rules, zero when
// the user has none.
func (s *SQLiteStorage) MaxPriority(ctx context.Context, userID uuid.UUID) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateID(userID, "userID"); err != nil {
		return 0, err
	}

	var max int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(priority), 0) FROM categorization_rules WHERE user_id = ?`,
		userID.String()).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("failed to query max rule priority: %w", err)
	}
	return max, nil
}

// GetRuleStats aggregates rule counts and total applications for reporting.
func (s *SQLiteStorage) GetRuleStats(ctx context.Context, userID uuid.UUID) (*service.RuleStats, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(userID, "userID"); err != nil {
		return nil, err
	}

	var stats service.RuleStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(is_active), 0),
		       COALESCE(SUM(times_applied), 0)
		FROM categorization_rules
		WHERE user_id = ?`,
		userID.String()).Scan(&stats.TotalRules, &stats.ActiveRules, &stats.TotalApplications)
	if err != nil {
		return nil, fmt.Errorf("failed to query rule stats: %w", err)
	}
	return &stats, nil
}

func scanRule(row rowScanner) (*model.CategorizationRule, error) {
	var (
		rule                      model.CategorizationRule
		id, userID                string
		patternType, fieldToMatch string
		categoryID, subcategoryID sql.NullString
		notes                     sql.NullString
		lastAppliedAt             sql.NullTime
	)

	err := row.Scan(&id, &userID, &rule.Pattern, &patternType, &fieldToMatch,
		&categoryID, &subcategoryID, &rule.Name, &notes,
		&rule.Priority, &rule.Confidence, &rule.TimesApplied,
		&lastAppliedAt, &rule.IsActive, &rule.CreatedAt, &rule.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan rule: %w", err)
	}

	if rule.ID, err = scanID(id); err != nil {
		return nil, err
	}
	if rule.UserID, err = scanID(userID); err != nil {
		return nil, err
	}
	rule.PatternType = model.PatternType(patternType)
	rule.FieldToMatch = model.FieldToMatch(fieldToMatch)
	rule.Notes = notes.String

	if rule.CategoryID, err = scanNullableID(categoryID); err != nil {
		return nil, err
	}
	if rule.SubcategoryID, err = scanNullableID(subcategoryID); err != nil {
		return nil, err
	}
	if lastAppliedAt.Valid {
		t := lastAppliedAt.Time
		rule.LastAppliedAt = &t
	}

	return &rule, nil
}
