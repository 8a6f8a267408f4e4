package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallyhq/tally/internal/common"
	"github.com/tallyhq/tally/internal/model"
	"github.com/tallyhq/tally/internal/money"
)

const budgetColumns = `id, user_id, name, amount, currency, period_type,
	start_date, end_date, category_id, budget_group_id, alert_threshold,
	is_active, created_at, updated_at`

const groupColumns = `id, user_id, name, description, period_type, currency,
	start_date, end_date, is_active, created_at, updated_at`

// SaveBudget inserts or updates a budget by ID.
func (s *SQLiteStorage) SaveBudget(ctx context.Context, budget *model.Budget) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateBudget(budget); err != nil {
		return err
	}

	now := time.Now()
	if budget.CreatedAt.IsZero() {
		budget.CreatedAt = now
	}
	budget.UpdatedAt = now

	var endDate any
	if budget.EndDate != nil {
		endDate = *budget.EndDate
	}

	query := `
		INSERT INTO budgets (` + budgetColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			amount = excluded.amount,
			currency = excluded.currency,
			period_type = excluded.period_type,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			category_id = excluded.category_id,
			budget_group_id = excluded.budget_group_id,
			alert_threshold = excluded.alert_threshold,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		budget.ID.String(),
		budget.UserID.String(),
		budget.Name,
		budget.Amount.AmountString(),
		budget.Amount.Currency(),
		string(budget.PeriodType),
		budget.StartDate,
		endDate,
		nullableID(budget.CategoryID),
		nullableID(budget.BudgetGroupID),
		budget.AlertThreshold.String(),
		budget.IsActive,
		budget.CreatedAt,
		budget.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save budget: %w", err)
	}

	slog.Debug("saved budget", "id", budget.ID, "name", budget.Name)
	return nil
}

// GetBudgetByID returns a budget or common.ErrNotFound.
func (s *SQLiteStorage) GetBudgetByID(ctx context.Context, id uuid.UUID) (*model.Budget, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(id, "id"); err != nil {
		return nil, err
	}

	query := `SELECT ` + budgetColumns + ` FROM budgets WHERE id = ?`
	budget, err := scanBudget(s.db.QueryRowContext(ctx, query, id.String()))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: budget %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return budget, nil
}

// GetBudgets returns all of a user's budgets.
func (s *SQLiteStorage) GetBudgets(ctx context.Context, userID uuid.UUID) ([]model.Budget, error) {
	if err := validateID(userID, "userID"); err != nil {
		return nil, err
	}
	return s.queryBudgets(ctx, `
		SELECT `+budgetColumns+` FROM budgets
		WHERE user_id = ? ORDER BY start_date, name`, userID.String())
}

// GetBudgetsByGroup returns the budgets attached to a group.
func (s *SQLiteStorage) GetBudgetsByGroup(ctx context.Context, groupID uuid.UUID) ([]model.Budget, error) {
	if err := validateID(groupID, "groupID"); err != nil {
		return nil, err
	}
	return s.queryBudgets(ctx, `
		SELECT `+budgetColumns+` FROM budgets
		WHERE budget_group_id = ? ORDER BY start_date, name`, groupID.String())
}

func (s *SQLiteStorage) queryBudgets(ctx context.Context, query string, arg any) ([]model.Budget, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to query budgets: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var budgets []model.Budget
	for rows.Next() {
		budget, scanErr := scanBudget(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		budgets = append(budgets, *budget)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating budgets: %w", err)
	}
	return budgets, nil
}

// SaveBudgetGroup inserts or updates a budget group by ID.
func (s *SQLiteStorage) SaveBudgetGroup(ctx context.Context, group *model.BudgetGroup) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateBudgetGroup(group); err != nil {
		return err
	}

	now := time.Now()
	if group.CreatedAt.IsZero() {
		group.CreatedAt = now
	}
	group.UpdatedAt = now

	query := `
		INSERT INTO budget_groups (` + groupColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			period_type = excluded.period_type,
			currency = excluded.currency,
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		group.ID.String(),
		group.UserID.String(),
		group.Name,
		group.Description,
		string(group.PeriodType),
		group.Currency,
		group.StartDate,
		group.EndDate,
		group.IsActive,
		group.CreatedAt,
		group.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save budget group: %w", err)
	}

	slog.Debug("saved budget group", "id", group.ID, "name", group.Name)
	return nil
}

// GetBudgetGroupByID returns a group or common.ErrNotFound.
func (s *SQLiteStorage) GetBudgetGroupByID(ctx context.Context, id uuid.UUID) (*model.BudgetGroup, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(id, "id"); err != nil {
		return nil, err
	}

	query := `SELECT ` + groupColumns + ` FROM budget_groups WHERE id = ?`
	group, err := scanBudgetGroup(s.db.QueryRowContext(ctx, query, id.String()))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: budget group %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return group, nil
}

// GetBudgetGroups returns all of a user's budget groups, newest period first.
func (s *SQLiteStorage) GetBudgetGroups(ctx context.Context, userID uuid.UUID) ([]model.BudgetGroup, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(userID, "userID"); err != nil {
		return nil, err
	}

	query := `
		SELECT ` + groupColumns + ` FROM budget_groups
		WHERE user_id = ? ORDER BY start_date DESC`

	rows, err := s.db.QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query budget groups: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var groups []model.BudgetGroup
	for rows.Next() {
		group, scanErr := scanBudgetGroup(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		groups = append(groups, *group)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating budget groups: %w", err)
	}
	return groups, nil
}

// DeactivateBudgetGroup soft-deletes a group. Its budgets stay active and
// simply drop out of the group rollup.
func (s *SQLiteStorage) DeactivateBudgetGroup(ctx context.Context, id uuid.UUID) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(id, "id"); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE budget_groups SET is_active = 0, updated_at = ? WHERE id = ?`,
		time.Now(), id.String())
	if err != nil {
		return fmt.Errorf("failed to deactivate budget group: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check budget group deactivation: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: budget group %s", common.ErrNotFound, id)
	}
	return nil
}

func scanBudget(row rowScanner) (*model.Budget, error) {
	var (
		budget                       model.Budget
		id, userID, amount, currency string
		periodType, threshold        string
		endDate                      sql.NullTime
		categoryID, groupID          sql.NullString
	)

	err := row.Scan(&id, &userID, &budget.Name, &amount, &currency, &periodType,
		&budget.StartDate, &endDate, &categoryID, &groupID, &threshold,
		&budget.IsActive, &budget.CreatedAt, &budget.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan budget: %w", err)
	}

	if budget.ID, err = scanID(id); err != nil {
		return nil, err
	}
	if budget.UserID, err = scanID(userID); err != nil {
		return nil, err
	}
	if budget.Amount, err = money.Parse(amount, currency); err != nil {
		return nil, fmt.Errorf("malformed budget amount in database: %w", err)
	}
	if budget.AlertThreshold, err = decimal.NewFromString(threshold); err != nil {
		return nil, fmt.Errorf("malformed alert threshold in database: %w", err)
	}
	budget.PeriodType = model.PeriodType(periodType)

	if endDate.Valid {
		t := endDate.Time
		budget.EndDate = &t
	}
	if budget.CategoryID, err = scanNullableID(categoryID); err != nil {
		return nil, err
	}
	if budget.BudgetGroupID, err = scanNullableID(groupID); err != nil {
		return nil, err
	}

	return &budget, nil
}

func scanBudgetGroup(row rowScanner) (*model.BudgetGroup, error) {
	var (
		group       model.BudgetGroup
		id, userID  string
		description sql.NullString
		periodType  string
	)

	err := row.Scan(&id, &userID, &group.Name, &description, &periodType,
		&group.Currency, &group.StartDate, &group.EndDate,
		&group.IsActive, &group.CreatedAt, &group.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan budget group: %w", err)
	}

	if group.ID, err = scanID(id); err != nil {
		return nil, err
	}
	if group.UserID, err = scanID(userID); err != nil {
		return nil, err
	}
	group.Description = description.String
	group.PeriodType = model.PeriodType(periodType)

	return &group, nil
}
