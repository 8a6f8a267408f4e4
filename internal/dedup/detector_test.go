package dedup

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/tallyhq/tally/internal/model"
	"github.com/tallyhq/tally/internal/money"
)

func day(d int) time.Time {
	return time.Date(2026, 3, d, 0, 0, 0, 0, time.UTC)
}

func existingEntry(date time.Time, amount, description string) model.LedgerEntry {
	return model.LedgerEntry{
		ID:          uuid.New(),
		Date:        date,
		Amount:      money.MustParse(amount, "EUR"),
		Description: description,
	}
}

func row(date time.Time, amount, description string) model.RawRow {
	return model.RawRow{
		Date:        date,
		Amount:      money.MustParse(amount, "EUR"),
		Description: description,
	}
}

func TestFlag_AgainstSnapshot(t *testing.T) {
	existing := []model.LedgerEntry{
		existingEntry(day(10), "12.50", "ESSELUNGA MILANO"),
	}

	tests := []struct {
		name string
		row  model.RawRow
		want bool
	}{
		{
			name: "exact match is duplicate",
			row:  row(day(10), "12.50", "ESSELUNGA MILANO"),
			want: true,
		},
		{
			name: "normalized description still matches",
			row:  row(day(10), "12.50", "  esselunga   milano "),
			want: true,
		},
		{
			name: "different date is new",
			row:  row(day(11), "12.50", "ESSELUNGA MILANO"),
			want: false,
		},
		{
			name: "different amount is new",
			row:  row(day(10), "12.51", "ESSELUNGA MILANO"),
			want: false,
		},
		{
			name: "different description is new",
			row:  row(day(10), "12.50", "ESSELUNGA TORINO"),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := Flag(existing, []model.RawRow{tt.row}, Options{})
			assert.Equal(t, tt.want, flags[0])
		})
	}
}

func TestFlag_CurrencyAware(t *testing.T) {
	existing := []model.LedgerEntry{
		existingEntry(day(10), "12.50", "COFFEE"),
	}
	usd := model.RawRow{
		Date:        day(10),
		Amount:      money.MustParse("12.50", "USD"),
		Description: "COFFEE",
	}
	flags := Flag(existing, []model.RawRow{usd}, Options{})
	assert.False(t, flags[0], "same amount in a different currency is not a duplicate")
}

func TestFlag_WithinBatch(t *testing.T) {
	rows := []model.RawRow{
		row(day(10), "12.50", "ESSELUNGA MILANO"),
		row(day(10), "12.50", "ESSELUNGA MILANO"),
		row(day(10), "9.00", "BAR CENTRALE"),
	}

	flags := Flag(nil, rows, Options{})
	assert.False(t, flags[0], "first occurrence is new")
	assert.True(t, flags[1], "second occurrence flags against the first")
	assert.False(t, flags[2])
}

func TestFlag_DateTolerance(t *testing.T) {
	existing := []model.LedgerEntry{
		existingEntry(day(10), "12.50", "ESSELUNGA MILANO"),
	}
	candidate := row(day(12), "12.50", "ESSELUNGA MILANO")

	flags := Flag(existing, []model.RawRow{candidate}, Options{})
	assert.False(t, flags[0], "exact matching is the default")

	flags = Flag(existing, []model.RawRow{candidate}, Options{DateToleranceDays: 2})
	assert.True(t, flags[0])

	flags = Flag(existing, []model.RawRow{candidate}, Options{DateToleranceDays: 1})
	assert.False(t, flags[0])
}

func TestFlag_PureFunction(t *testing.T) {
	existing := []model.LedgerEntry{
		existingEntry(day(10), "12.50", "ESSELUNGA MILANO"),
	}
	rows := []model.RawRow{row(day(10), "12.50", "ESSELUNGA MILANO")}

	first := Flag(existing, rows, Options{})
	second := Flag(existing, rows, Options{})
	assert.Equal(t, first, second)
}
