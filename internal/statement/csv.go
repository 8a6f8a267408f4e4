// Package statement parses activity-CSV bank exports into raw import rows.
// The format is the Italian card-activity export: a Data,Descrizione,Importo
// header, MM/DD/YYYY dates and comma decimal separators.
package statement

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/tallyhq/tally/internal/model"
	"github.com/tallyhq/tally/internal/money"
)

const (
	colDate        = "Data"
	colDescription = "Descrizione"
	colAmount      = "Importo"
)

// bankingOperations are statement lines that are account plumbing, not
// spending. They never become import rows.
var bankingOperations = []string{
	"ADDEBITO IN C/C",
	"IMPOSTA DI BOLLO",
	"COMMISSIONI",
}

// Parser implements activity-CSV parsing.
type Parser struct {
	currency string
}

// NewParser creates a CSV parser. The export format carries no currency
// column, so every amount is read in the given currency.
func NewParser(currency string) *Parser {
	return &Parser{currency: strings.ToUpper(currency)}
}

// ParseFile parses an activity CSV and returns raw import rows. Credits and
// banking operations are skipped; malformed lines are logged and skipped
// rather than failing the file.
func (p *Parser) ParseFile(_ context.Context, reader io.Reader) ([]model.RawRow, error) {
	r := csv.NewReader(reader)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	var rows []model.RawRow
	var skipped int

	for line := 2; ; line++ {
		record, readErr := r.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, fmt.Errorf("failed to read CSV line %d: %w", line, readErr)
		}

		row, ok := p.convertRecord(record, columns, line)
		if !ok {
			skipped++
			continue
		}
		rows = append(rows, row)
	}

	slog.Info("Parsed activity CSV", "rows", len(rows), "skipped", skipped)
	return rows, nil
}

// mapColumns resolves the required column indexes from the header row.
func mapColumns(header []string) (map[string]int, error) {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.TrimSpace(name)] = i
	}

	var missing []string
	for _, required := range []string{colDate, colDescription, colAmount} {
		if _, ok := columns[required]; !ok {
			missing = append(missing, required)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}
	return columns, nil
}

// convertRecord turns one CSV record into a raw import row. Returns false for
// records that are skipped: blanks, credits, banking operations and values
// that do not parse.
func (p *Parser) convertRecord(record []string, columns map[string]int, line int) (model.RawRow, bool) {
	dateStr := strings.TrimSpace(field(record, columns[colDate]))
	description := strings.TrimSpace(field(record, columns[colDescription]))
	amountStr := strings.TrimSpace(field(record, columns[colAmount]))

	if dateStr == "" || description == "" || amountStr == "" {
		return model.RawRow{}, false
	}

	// European exports use the comma as decimal separator.
	amount, err := money.Parse(strings.ReplaceAll(amountStr, ",", "."), p.currency)
	if err != nil {
		slog.Warn("Could not parse amount", "line", line, "value", amountStr)
		return model.RawRow{}, false
	}

	// Credits are not expenses.
	if !amount.IsPositive() {
		return model.RawRow{}, false
	}

	if isBankingOperation(description) {
		return model.RawRow{}, false
	}

	date, err := time.Parse("01/02/2006", dateStr)
	if err != nil {
		slog.Warn("Could not parse date", "line", line, "value", dateStr)
		return model.RawRow{}, false
	}

	return model.RawRow{
		Date:          date,
		Description:   description,
		Vendor:        extractVendor(description),
		Amount:        amount,
		PaymentMethod: inferPaymentMethod(description),
	}, true
}

func field(record []string, index int) string {
	if index < 0 || index >= len(record) {
		return ""
	}
	return record[index]
}

func isBankingOperation(description string) bool {
	upper := strings.ToUpper(description)
	for _, op := range bankingOperations {
		if strings.Contains(upper, op) {
			return true
		}
	}
	return false
}

// extractVendor pulls a vendor name out of the activity description. PayPal
// lines carry the vendor after the "PAYPAL *" marker; everything else leads
// with the vendor name.
func extractVendor(description string) string {
	description = strings.TrimSpace(description)
	if description == "" {
		return ""
	}

	upper := strings.ToUpper(description)
	if strings.HasPrefix(upper, "PAYPAL *") {
		rest := description[len("PAYPAL *"):]
		parts := strings.Fields(rest)
		if len(parts) == 0 {
			return ""
		}
		vendor := strings.TrimSuffix(parts[0], "APP")
		return clipVendor(vendor)
	}

	parts := strings.Fields(description)
	if len(parts) == 0 {
		return ""
	}
	vendor := parts[0]

	// Service-style descriptions ("SERVICE.IO id LOCATION") lead with the
	// vendor too; the generic first-word path covers them. Filter out bare
	// transaction IDs and codes.
	if len(vendor) <= 2 || isDigits(vendor) {
		return ""
	}
	return clipVendor(vendor)
}

func clipVendor(vendor string) string {
	if len(vendor) > 50 {
		return vendor[:50]
	}
	return vendor
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}

// inferPaymentMethod guesses the instrument from the description. The export
// is a card-activity feed, so card is the default.
func inferPaymentMethod(description string) string {
	upper := strings.ToUpper(description)
	if strings.Contains(upper, "PAYPAL") {
		return "other"
	}
	return "card"
}
