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
)

const categoryColumns = `id, user_id, name, parent_id, color, icon, sort_order,
	is_active, created_at, updated_at`

// GetCategories returns all of a user's categories, active and inactive, so
// the caller can build a complete tree for historical resolution.
func (s *SQLiteStorage) GetCategories(ctx context.Context, userID uuid.UUID) ([]model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(userID, "userID"); err != nil {
		return nil, err
	}

	query := `
		SELECT ` + categoryColumns + `
		FROM categories
		WHERE user_id = ?
		ORDER BY sort_order, name`

	rows, err := s.db.QueryContext(ctx, query, userID.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var categories []model.Category
	for rows.Next() {
		cat, scanErr := scanCategory(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		categories = append(categories, *cat)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating categories: %w", err)
	}

	slog.Debug("retrieved categories", "count", len(categories))
	return categories, nil
}

// GetCategoryByID returns a category or common.ErrCategoryNotFound.
func (s *SQLiteStorage) GetCategoryByID(ctx context.Context, id uuid.UUID) (*model.Category, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(id, "id"); err != nil {
		return nil, err
	}

	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = ?`
	cat, err := scanCategory(s.db.QueryRowContext(ctx, query, id.String()))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", common.ErrCategoryNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return cat, nil
}

// CreateCategory creates a new category. A parent, when given, must exist and
// be a primary category: the hierarchy is one level deep.
func (s *SQLiteStorage) CreateCategory(ctx context.Context, cat *model.Category) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCategory(cat); err != nil {
		return err
	}

	if cat.ParentID != nil {
		parent, err := s.GetCategoryByID(ctx, *cat.ParentID)
		if err != nil {
			return err
		}
		if parent.IsSubcategory() {
			return fmt.Errorf("%w: %q cannot nest under subcategory %q",
				common.ErrCategoryNesting, cat.Name, parent.Name)
		}
	}

	query := `
		INSERT INTO categories (` + categoryColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	now := time.Now()
	if cat.CreatedAt.IsZero() {
		cat.CreatedAt = now
	}
	cat.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, query,
		cat.ID.String(),
		cat.UserID.String(),
		cat.Name,
		nullableID(cat.ParentID),
		cat.Color,
		cat.Icon,
		cat.SortOrder,
		cat.IsActive,
		cat.CreatedAt,
		cat.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create category: %w", err)
	}

	slog.Info("created category", "name", cat.Name, "id", cat.ID)
	return nil
}

// UpdateCategory updates a category's mutable fields. The parent link is
// immutable after creation; reparenting would silently move history.
func (s *SQLiteStorage) UpdateCategory(ctx context.Context, cat *model.Category) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateCategory(cat); err != nil {
		return err
	}

	query := `
		UPDATE categories
		SET name = ?, color = ?, icon = ?, sort_order = ?, is_active = ?, updated_at = ?
		WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query,
		cat.Name, cat.Color, cat.Icon, cat.SortOrder, cat.IsActive,
		time.Now(), cat.ID.String())
	if err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check category update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", common.ErrCategoryNotFound, cat.ID)
	}
	return nil
}

// DeactivateCategory soft-deletes a category and its subcategories. Ledger
// history stays attached; the entries keep their category references.
func (s *SQLiteStorage) DeactivateCategory(ctx context.Context, id uuid.UUID) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateID(id, "id"); err != nil {
		return err
	}

	query := `
		UPDATE categories
		SET is_active = 0, updated_at = ?
		WHERE id = ? OR parent_id = ?`

	result, err := s.db.ExecContext(ctx, query, time.Now(), id.String(), id.String())
	if err != nil {
		return fmt.Errorf("failed to deactivate category: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check category deactivation: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", common.ErrCategoryNotFound, id)
	}

	slog.Info("deactivated category", "id", id, "affected", affected)
	return nil
}

func scanCategory(row rowScanner) (*model.Category, error) {
	var (
		cat                 model.Category
		id, userID          string
		parentID            sql.NullString
		color, icon         sql.NullString
	)

	err := row.Scan(&id, &userID, &cat.Name, &parentID, &color, &icon,
		&cat.SortOrder, &cat.IsActive, &cat.CreatedAt, &cat.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan category: %w", err)
	}

	if cat.ID, err = scanID(id); err != nil {
		return nil, err
	}
	if cat.UserID, err = scanID(userID); err != nil {
		return nil, err
	}
	if cat.ParentID, err = scanNullableID(parentID); err != nil {
		return nil, err
	}
	cat.Color = color.String
	cat.Icon = icon.String

	return &cat, nil
}
