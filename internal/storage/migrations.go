package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application
// expects. If the database cannot be migrated to this version, it's a fatal
// error.
const ExpectedSchemaVersion = 3

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema: categories, ledger entries, categorization rules",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS categories (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					name TEXT NOT NULL,
					parent_id TEXT REFERENCES categories(id),
					color TEXT,
					icon TEXT,
					sort_order INTEGER NOT NULL DEFAULT 0,
					is_active INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_categories_user ON categories(user_id)`,
				`CREATE INDEX idx_categories_parent ON categories(parent_id)`,

				// Monetary columns are decimal strings; REAL never holds money.
				`CREATE TABLE IF NOT EXISTS ledger_entries (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					date DATETIME NOT NULL,
					amount TEXT NOT NULL,
					currency TEXT NOT NULL,
					base_amount TEXT,
					base_currency TEXT,
					exchange_rate TEXT,
					description TEXT NOT NULL,
					vendor TEXT,
					notes TEXT,
					category_id TEXT REFERENCES categories(id),
					subcategory_id TEXT REFERENCES categories(id),
					payment_method_id TEXT,
					tags TEXT,
					is_shared INTEGER NOT NULL DEFAULT 0,
					shared_with TEXT,
					fingerprint TEXT NOT NULL,
					created_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_entries_user_date ON ledger_entries(user_id, date)`,
				`CREATE INDEX idx_entries_category ON ledger_entries(category_id)`,

				`CREATE TABLE IF NOT EXISTS categorization_rules (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					pattern TEXT NOT NULL,
					pattern_type TEXT NOT NULL,
					field_to_match TEXT NOT NULL,
					category_id TEXT REFERENCES categories(id),
					subcategory_id TEXT REFERENCES categories(id),
					name TEXT NOT NULL,
					notes TEXT,
					priority INTEGER NOT NULL DEFAULT 100,
					confidence INTEGER NOT NULL DEFAULT 0,
					times_applied INTEGER NOT NULL DEFAULT 0,
					last_applied_at DATETIME,
					is_active INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_rules_user_priority ON categorization_rules(user_id, is_active, priority)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Add budgets and budget groups",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS budget_groups (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					name TEXT NOT NULL,
					description TEXT,
					period_type TEXT NOT NULL,
					currency TEXT NOT NULL,
					start_date DATETIME NOT NULL,
					end_date DATETIME NOT NULL,
					is_active INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_budget_groups_user ON budget_groups(user_id)`,

				`CREATE TABLE IF NOT EXISTS budgets (
					id TEXT PRIMARY KEY,
					user_id TEXT NOT NULL,
					name TEXT NOT NULL,
					amount TEXT NOT NULL,
					currency TEXT NOT NULL,
					period_type TEXT NOT NULL,
					start_date DATETIME NOT NULL,
					end_date DATETIME,
					category_id TEXT REFERENCES categories(id),
					budget_group_id TEXT REFERENCES budget_groups(id),
					alert_threshold TEXT NOT NULL DEFAULT '80',
					is_active INTEGER NOT NULL DEFAULT 1,
					created_at DATETIME NOT NULL,
					updated_at DATETIME NOT NULL
				)`,
				`CREATE INDEX idx_budgets_user ON budgets(user_id)`,
				`CREATE INDEX idx_budgets_group ON budgets(budget_group_id)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     3,
		Description: "Index ledger fingerprints for import duplicate detection",
		Up: func(tx *sql.Tx) error {
			// Not unique: force-imported repeats legitimately share a
			// fingerprint.
			_, err := tx.Exec(`CREATE INDEX IF NOT EXISTS idx_entries_user_fingerprint
				ON ledger_entries(user_id, fingerprint)`)
			return err
		},
	},
}

// Migrate applies all pending database migrations.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}
