package money

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMoney_Add(t *testing.T) {
	tests := []struct {
		name    string
		a       Money
		b       Money
		want    string
		wantErr bool
	}{
		{
			name: "same currency",
			a:    MustParse("10.50", "EUR"),
			b:    MustParse("4.25", "EUR"),
			want: "14.75 EUR",
		},
		{
			name:    "currency mismatch",
			a:       MustParse("10.50", "EUR"),
			b:       MustParse("4.25", "USD"),
			wantErr: true,
		},
		{
			name: "zero decimal currency",
			a:    MustParse("100", "JPY"),
			b:    MustParse("250", "JPY"),
			want: "350 JPY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.a.Add(tt.b)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrCurrencyMismatch)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestMoney_Compare(t *testing.T) {
	a := MustParse("80.00", "EUR")
	b := MustParse("79.99", "EUR")

	cmp, err := a.Compare(b)
	require.NoError(t, err)
	assert.Equal(t, 1, cmp)

	cmp, err = b.Compare(a)
	require.NoError(t, err)
	assert.Equal(t, -1, cmp)

	_, err = a.Compare(MustParse("80.00", "USD"))
	assert.ErrorIs(t, err, ErrCurrencyMismatch)
}

func TestMoney_Convert(t *testing.T) {
	tests := []struct {
		name   string
		m      Money
		rate   string
		target string
		want   string
	}{
		{
			name:   "usd to eur",
			m:      MustParse("100.00", "USD"),
			rate:   "0.9",
			target: "EUR",
			want:   "90.00 EUR",
		},
		{
			name:   "rounds half to even down",
			m:      MustParse("10.05", "EUR"),
			rate:   "0.5", // 5.025 -> 5.02
			target: "EUR",
			want:   "5.02 EUR",
		},
		{
			name:   "rounds half to even up",
			m:      MustParse("10.07", "EUR"),
			rate:   "0.5", // 5.035 -> 5.04
			target: "EUR",
			want:   "5.04 EUR",
		},
		{
			name:   "target precision wins",
			m:      MustParse("10.49", "EUR"),
			rate:   "150",
			target: "JPY", // 1573.5 -> 1574 (even)
			want:   "1574 JPY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate, err := decimal.NewFromString(tt.rate)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tt.m.Convert(rate, tt.target).String())
		})
	}
}

func TestMoney_JSONRoundTrip(t *testing.T) {
	m := MustParse("1234.56", "EUR")

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"1234.56","currency":"EUR"}`, string(data))

	var back Money
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, m.Amount().Equal(back.Amount()))
	assert.Equal(t, m.Currency(), back.Currency())
}

func TestMoney_UnmarshalRejectsNumbers(t *testing.T) {
	var m Money
	err := json.Unmarshal([]byte(`{"amount":1234.56,"currency":"EUR"}`), &m)
	require.Error(t, err)
}

func TestParse(t *testing.T) {
	_, err := Parse("not-a-number", "EUR")
	assert.Error(t, err)

	_, err = Parse("10.00", "EURO")
	assert.Error(t, err)

	m, err := Parse(" 10.005 ", "eur")
	require.NoError(t, err)
	// Rounded half-to-even at construction.
	assert.Equal(t, "10.00 EUR", m.String())
}
