package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/tallyhq/tally/internal/common"
)

// Settings is the resolved application configuration.
type Settings struct {
	Rates             map[string]string
	DatabasePath      string
	BaseCurrency      string
	UserID            uuid.UUID
	DateToleranceDays int
}

// userNamespace seeds deterministic single-user IDs so a fresh install works
// without explicit user configuration.
var userNamespace = uuid.MustParse("9f2c1f9e-6b1d-4c76-a9a1-6df8f2f0a7c1")

// Load resolves settings from Viper, which has already merged the config
// file, TALLY_ environment variables and flags.
func Load() (*Settings, error) {
	settings := &Settings{
		DatabasePath:      viper.GetString("database.path"),
		BaseCurrency:      strings.ToUpper(viper.GetString("currency.base")),
		DateToleranceDays: viper.GetInt("import.date_tolerance_days"),
		Rates:             viper.GetStringMapString("currency.rates"),
	}

	if settings.DatabasePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		settings.DatabasePath = filepath.Join(home, ".local", "share", "tally", "tally.db")
	}
	settings.DatabasePath = ExpandPath(settings.DatabasePath)

	if settings.BaseCurrency == "" {
		settings.BaseCurrency = "EUR"
	}
	if len(settings.BaseCurrency) != 3 {
		return nil, fmt.Errorf("%w: currency.base %q is not a 3-letter code",
			common.ErrInvalidConfig, settings.BaseCurrency)
	}
	if settings.DateToleranceDays < 0 {
		return nil, fmt.Errorf("%w: import.date_tolerance_days cannot be negative",
			common.ErrInvalidConfig)
	}

	if err := settings.resolveUserID(); err != nil {
		return nil, err
	}

	return settings, nil
}

// resolveUserID reads user.id from configuration, falling back to a stable
// ID derived from the OS user so single-user installs need no setup.
func (s *Settings) resolveUserID() error {
	if raw := viper.GetString("user.id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return fmt.Errorf("%w: user.id %q is not a UUID", common.ErrInvalidConfig, raw)
		}
		s.UserID = id
		return nil
	}

	username := os.Getenv("USER")
	if username == "" {
		username = os.Getenv("USERNAME")
	}
	if username == "" {
		username = "default"
	}
	s.UserID = uuid.NewSHA1(userNamespace, []byte(username))
	return nil
}
