// Package rates provides currency rate lookups for base-amount conversion
// and budget group rollups.
package rates

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// StaticLookup resolves rates from a configured table. Keys are "FROM/TO"
// currency pairs; the inverse pair is derived when only one direction is
// configured. Lookups ignore the as-of date: configured rates are treated as
// current.
type StaticLookup struct {
	mu    sync.RWMutex
	table map[string]decimal.Decimal
}

// NewStaticLookup builds a lookup from pair strings to decimal-string rates,
// the shape the configuration file carries.
func NewStaticLookup(pairs map[string]string) (*StaticLookup, error) {
	table := make(map[string]decimal.Decimal, len(pairs)*2)
	for pair, rateStr := range pairs {
		from, to, err := splitPair(pair)
		if err != nil {
			return nil, err
		}
		rate, err := decimal.NewFromString(strings.TrimSpace(rateStr))
		if err != nil {
			return nil, fmt.Errorf("invalid rate %q for pair %q: %w", rateStr, pair, err)
		}
		if !rate.IsPositive() {
			return nil, fmt.Errorf("rate for pair %q must be positive", pair)
		}

		table[from+"/"+to] = rate
		inverse := to + "/" + from
		if _, ok := table[inverse]; !ok {
			table[inverse] = decimal.NewFromInt(1).Div(rate)
		}
	}
	return &StaticLookup{table: table}, nil
}

// Rate returns the configured rate for the pair. Same-currency lookups are
// always 1.
func (l *StaticLookup) Rate(_ context.Context, from, to string, _ time.Time) (decimal.Decimal, error) {
	from = strings.ToUpper(strings.TrimSpace(from))
	to = strings.ToUpper(strings.TrimSpace(to))
	if from == to {
		return decimal.NewFromInt(1), nil
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	rate, ok := l.table[from+"/"+to]
	if !ok {
		return decimal.Zero, fmt.Errorf("no rate configured for %s/%s", from, to)
	}
	return rate, nil
}

func splitPair(pair string) (string, string, error) {
	parts := strings.Split(strings.ToUpper(strings.TrimSpace(pair)), "/")
	if len(parts) != 2 || len(parts[0]) != 3 || len(parts[1]) != 3 {
		return "", "", fmt.Errorf("invalid currency pair %q, want FROM/TO", pair)
	}
	return parts[0], parts[1], nil
}
