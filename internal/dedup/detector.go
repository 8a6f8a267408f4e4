// Package dedup flags import rows that already exist in the ledger. Detection
// is a pure function of the existing snapshot and the new rows; nothing is
// mutated during preview.
package dedup

import (
	"time"

	"github.com/tallyhq/tally/internal/common"
	"github.com/tallyhq/tally/internal/model"
	"github.com/tallyhq/tally/internal/money"
)

// Options configures duplicate detection.
type Options struct {
	// DateToleranceDays widens the date comparison to ±N days. Zero (the
	// default) requires an exact date match; amount and normalized
	// description always match exactly.
	DateToleranceDays int
}

// Detector matches import rows against a ledger snapshot by fingerprint.
type Detector struct {
	exact   map[string]struct{}
	loose   map[string][]time.Time
	options Options
}

// NewDetector indexes the existing ledger snapshot.
func NewDetector(existing []model.LedgerEntry, options Options) *Detector {
	d := &Detector{
		exact:   make(map[string]struct{}, len(existing)),
		loose:   make(map[string][]time.Time),
		options: options,
	}
	for i := range existing {
		d.index(existing[i].Date, existing[i].Amount, existing[i].Description)
	}
	return d
}

func (d *Detector) index(date time.Time, amount money.Money, description string) {
	d.exact[model.Fingerprint(date, amount, description)] = struct{}{}
	if d.options.DateToleranceDays > 0 {
		key := looseKey(amount, description)
		d.loose[key] = append(d.loose[key], date)
	}
}

func looseKey(amount money.Money, description string) string {
	return amount.AmountString() + "|" + amount.Currency() + "|" + common.NormalizeText(description)
}

// IsDuplicate reports whether a row collides with the indexed snapshot.
func (d *Detector) IsDuplicate(row model.RawRow) bool {
	if _, ok := d.exact[model.Fingerprint(row.Date, row.Amount, row.Description)]; ok {
		return true
	}
	if d.options.DateToleranceDays == 0 {
		return false
	}
	for _, date := range d.loose[looseKey(row.Amount, row.Description)] {
		if withinDays(row.Date, date, d.options.DateToleranceDays) {
			return true
		}
	}
	return false
}

func withinDays(a, b time.Time, days int) bool {
	diff := a.Sub(b)
	if diff < 0 {
		diff = -diff
	}
	return diff <= time.Duration(days)*24*time.Hour
}

// Flag marks duplicates across the snapshot and within the batch itself: the
// second occurrence of a fingerprint in one batch is flagged against the
// first, regardless of row order relative to existing entries. The input
// rows are not modified; flags are returned positionally.
func Flag(existing []model.LedgerEntry, rows []model.RawRow, options Options) []bool {
	detector := NewDetector(existing, options)

	flags := make([]bool, len(rows))
	for i, row := range rows {
		flags[i] = detector.IsDuplicate(row)
		// Rows earlier in the batch count as existing for later rows.
		detector.index(row.Date, row.Amount, row.Description)
	}
	return flags
}
