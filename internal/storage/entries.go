package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tallyhq/tally/internal/common"
	"github.com/tallyhq/tally/internal/model"
	"github.com/tallyhq/tally/internal/money"
	"github.com/tallyhq/tally/internal/service"
)

const entryColumns = `id, user_id, date, amount, currency, base_amount, base_currency,
	exchange_rate, description, vendor, notes, category_id, subcategory_id,
	payment_method_id, tags, is_shared, shared_with, created_at`

// SaveEntry persists a ledger entry. The fingerprint is derived at save time
// so duplicate detection always sees a consistent key.
func (s *SQLiteStorage) SaveEntry(ctx context.Context, entry *model.LedgerEntry) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateEntry(entry); err != nil {
		return err
	}

	tags, err := encodeStrings(entry.Tags)
	if err != nil {
		return err
	}
	sharedWith, err := encodeStrings(uuidStrings(entry.SharedWith))
	if err != nil {
		return err
	}

	var baseAmount, baseCurrency, exchangeRate any
	if entry.BaseAmount != nil {
		baseAmount = entry.BaseAmount.AmountString()
		baseCurrency = entry.BaseAmount.Currency()
		exchangeRate = entry.ExchangeRate.String()
	}

	query := `
		INSERT INTO ledger_entries (` + entryColumns + `, fingerprint)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = s.db.ExecContext(ctx, query,
		entry.ID.String(),
		entry.UserID.String(),
		entry.Date,
		entry.Amount.AmountString(),
		entry.Amount.Currency(),
		baseAmount,
		baseCurrency,
		exchangeRate,
		entry.Description,
		entry.Vendor,
		entry.Notes,
		nullableID(entry.CategoryID),
		nullableID(entry.SubcategoryID),
		nullableID(entry.PaymentMethodID),
		tags,
		entry.IsShared,
		sharedWith,
		entry.CreatedAt,
		entry.Fingerprint(),
	)
	if err != nil {
		return fmt.Errorf("failed to save ledger entry: %w", err)
	}

	slog.Debug("saved ledger entry", "id", entry.ID, "amount", entry.Amount.String())
	return nil
}

// GetEntries returns a user's ledger entries matching the filter, newest
// first.
func (s *SQLiteStorage) GetEntries(ctx context.Context, userID uuid.UUID, filter service.LedgerFilter) ([]model.LedgerEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(userID, "userID"); err != nil {
		return nil, err
	}

	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE user_id = ?`
	args := []any{userID.String()}

	if filter.StartDate != nil {
		query += ` AND date >= ?`
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		query += ` AND date <= ?`
		args = append(args, *filter.EndDate)
	}
	if filter.CategoryID != nil {
		query += ` AND (category_id = ? OR subcategory_id = ?)`
		args = append(args, filter.CategoryID.String(), filter.CategoryID.String())
	}

	query += ` ORDER BY date DESC, created_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []model.LedgerEntry
	for rows.Next() {
		entry, scanErr := scanEntry(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ledger entries: %w", err)
	}

	return entries, nil
}

// GetEntryByID returns a single entry or common.ErrNotFound.
func (s *SQLiteStorage) GetEntryByID(ctx context.Context, id uuid.UUID) (*model.LedgerEntry, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateID(id, "id"); err != nil {
		return nil, err
	}

	query := `SELECT ` + entryColumns + ` FROM ledger_entries WHERE id = ?`
	row := s.db.QueryRowContext(ctx, query, id.String())

	entry, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: ledger entry %s", common.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// ReassignCategory moves every entry referencing fromCategoryID, as either
// category or subcategory, onto toCategoryID. Returns the number of entries
// touched.
func (s *SQLiteStorage) ReassignCategory(ctx context.Context, userID, fromCategoryID, toCategoryID uuid.UUID) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateID(userID, "userID"); err != nil {
		return 0, err
	}
	if err := validateID(fromCategoryID, "fromCategoryID"); err != nil {
		return 0, err
	}
	if err := validateID(toCategoryID, "toCategoryID"); err != nil {
		return 0, err
	}

	from := fromCategoryID.String()
	to := toCategoryID.String()

	query := `
		UPDATE ledger_entries
		SET category_id = CASE WHEN category_id = ? THEN ? ELSE category_id END,
		    subcategory_id = CASE WHEN subcategory_id = ? THEN ? ELSE subcategory_id END
		WHERE user_id = ? AND (category_id = ? OR subcategory_id = ?)`

	result, err := s.db.ExecContext(ctx, query, from, to, from, to, userID.String(), from, from)
	if err != nil {
		return 0, fmt.Errorf("failed to reassign category: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count reassigned entries: %w", err)
	}

	slog.Info("reassigned ledger entries",
		"from", fromCategoryID, "to", toCategoryID, "count", affected)
	return affected, nil
}

// rowScanner covers *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*model.LedgerEntry, error) {
	var (
		entry                                  model.LedgerEntry
		id, userID, amount, currency           string
		baseAmount, baseCurrency, exchangeRate sql.NullString
		vendor, notes                          sql.NullString
		categoryID, subcategoryID, paymentID   sql.NullString
		tags, sharedWith                       sql.NullString
	)

	err := row.Scan(&id, &userID, &entry.Date, &amount, &currency,
		&baseAmount, &baseCurrency, &exchangeRate,
		&entry.Description, &vendor, &notes,
		&categoryID, &subcategoryID, &paymentID,
		&tags, &entry.IsShared, &sharedWith, &entry.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
	}

	if entry.ID, err = scanID(id); err != nil {
		return nil, err
	}
	if entry.UserID, err = scanID(userID); err != nil {
		return nil, err
	}
	if entry.Amount, err = money.Parse(amount, currency); err != nil {
		return nil, fmt.Errorf("malformed amount in database: %w", err)
	}

	if baseAmount.Valid && baseCurrency.Valid {
		base, parseErr := money.Parse(baseAmount.String, baseCurrency.String)
		if parseErr != nil {
			return nil, fmt.Errorf("malformed base amount in database: %w", parseErr)
		}
		entry.BaseAmount = &base

		rate, parseErr := decimal.NewFromString(exchangeRate.String)
		if parseErr != nil {
			return nil, fmt.Errorf("malformed exchange rate in database: %w", parseErr)
		}
		entry.ExchangeRate = &rate
	}

	entry.Vendor = vendor.String
	entry.Notes = notes.String

	if entry.CategoryID, err = scanNullableID(categoryID); err != nil {
		return nil, err
	}
	if entry.SubcategoryID, err = scanNullableID(subcategoryID); err != nil {
		return nil, err
	}
	if entry.PaymentMethodID, err = scanNullableID(paymentID); err != nil {
		return nil, err
	}

	if entry.Tags, err = decodeStrings(tags); err != nil {
		return nil, err
	}
	shared, err := decodeStrings(sharedWith)
	if err != nil {
		return nil, err
	}
	if entry.SharedWith, err = parseUUIDs(shared); err != nil {
		return nil, err
	}

	return &entry, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func parseUUIDs(values []string) ([]uuid.UUID, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make([]uuid.UUID, len(values))
	for i, v := range values {
		id, err := scanID(v)
		if err != nil {
			return nil, err
		}
		out[i] = id
	}
	return out, nil
}
