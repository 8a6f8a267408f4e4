package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tallyhq/tally/internal/common"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoad_Defaults(t *testing.T) {
	resetViper(t)
	t.Setenv("USER", "alice")

	settings, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "EUR", settings.BaseCurrency)
	assert.Contains(t, settings.DatabasePath, "tally.db")
	assert.Zero(t, settings.DateToleranceDays)
	assert.NotZero(t, settings.UserID)

	// The derived user ID is stable across runs.
	again, err := Load()
	require.NoError(t, err)
	assert.Equal(t, settings.UserID, again.UserID)
}

func TestLoad_ExplicitValues(t *testing.T) {
	resetViper(t)
	viper.Set("currency.base", "usd")
	viper.Set("user.id", "6ba7b810-9dad-11d1-80b4-00c04fd430c8")
	viper.Set("import.date_tolerance_days", 2)

	settings, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "USD", settings.BaseCurrency)
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", settings.UserID.String())
	assert.Equal(t, 2, settings.DateToleranceDays)
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	t.Setenv("TALLY_TEST_DIR", "/var/data")

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty passes through", "", ""},
		{"tilde expands to home", "~/tally.db", filepath.Join(home, "tally.db")},
		{"bare tilde", "~", home},
		{"env var expands", "$TALLY_TEST_DIR/tally.db", "/var/data/tally.db"},
		{"absolute path untouched", "/opt/tally.db", "/opt/tally.db"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExpandPath(tc.in))
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	t.Run("bad currency", func(t *testing.T) {
		resetViper(t)
		viper.Set("currency.base", "EURO")
		_, err := Load()
		assert.ErrorIs(t, err, common.ErrInvalidConfig)
	})

	t.Run("bad user id", func(t *testing.T) {
		resetViper(t)
		viper.Set("user.id", "not-a-uuid")
		_, err := Load()
		assert.ErrorIs(t, err, common.ErrInvalidConfig)
	})

	t.Run("negative tolerance", func(t *testing.T) {
		resetViper(t)
		viper.Set("import.date_tolerance_days", -1)
		_, err := Load()
		assert.ErrorIs(t, err, common.ErrInvalidConfig)
	})
}
