package rates

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticLookup(t *testing.T) {
	lookup, err := NewStaticLookup(map[string]string{
		"USD/EUR": "0.9",
	})
	require.NoError(t, err)
	ctx := context.Background()
	now := time.Now()

	rate, err := lookup.Rate(ctx, "USD", "EUR", now)
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.RequireFromString("0.9")))

	// Inverse derived automatically.
	rate, err = lookup.Rate(ctx, "EUR", "USD", now)
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(1).Div(decimal.RequireFromString("0.9"))))

	// Identity without configuration.
	rate, err = lookup.Rate(ctx, "gbp", "GBP", now)
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(1)))

	_, err = lookup.Rate(ctx, "GBP", "EUR", now)
	assert.Error(t, err)
}

func TestStaticLookup_Validation(t *testing.T) {
	_, err := NewStaticLookup(map[string]string{"USDEUR": "0.9"})
	assert.Error(t, err)

	_, err = NewStaticLookup(map[string]string{"USD/EUR": "zero point nine"})
	assert.Error(t, err)

	_, err = NewStaticLookup(map[string]string{"USD/EUR": "-1"})
	assert.Error(t, err)
}
