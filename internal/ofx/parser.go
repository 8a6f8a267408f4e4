// Package ofx parses OFX/QFX bank exports into raw import rows.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"

	"github.com/tallyhq/tally/internal/model"
	"github.com/tallyhq/tally/internal/money"
)

// Parser implements OFX/QFX file parsing.
type Parser struct {
	defaultCurrency string
}

// NewParser creates an OFX parser. The default currency is used for
// statements that omit CURDEF.
func NewParser(defaultCurrency string) *Parser {
	return &Parser{defaultCurrency: strings.ToUpper(defaultCurrency)}
}

// preprocessOFX fixes common formatting issues in OFX files.
func (p *Parser) preprocessOFX(content string) string {
	// Trim any leading whitespace or blank lines before the header
	content = strings.TrimLeft(content, " \t\r\n")

	// Fix mixed-case SEVERITY values (should be INFO, WARN, or ERROR)
	severityRegex := regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)

	// Fix missing closing angle brackets in SGML-style OFX files
	tagFixRegex := regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
	content = tagFixRegex.ReplaceAllString(content, "$1>")

	return content
}

// ParseFile parses an OFX/QFX file and returns raw import rows ready for
// reconciliation.
func (p *Parser) ParseFile(_ context.Context, reader io.Reader) ([]model.RawRow, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocessOFX(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var rows []model.RawRow
	var bankStmts, ccStmts int

	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok {
			bankStmts++
			if stmt.BankTranList == nil {
				continue
			}
			currency := p.statementCurrency(stmt.CurDef.String())
			for _, ofxTx := range stmt.BankTranList.Transactions {
				row, convErr := p.convertTransaction(ofxTx, currency)
				if convErr != nil {
					slog.Warn("Skipping malformed OFX transaction",
						"account", stmt.BankAcctFrom.AcctID, "error", convErr)
					continue
				}
				rows = append(rows, row)
			}
		}
	}

	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok {
			ccStmts++
			if stmt.BankTranList == nil {
				continue
			}
			currency := p.statementCurrency(stmt.CurDef.String())
			for _, ofxTx := range stmt.BankTranList.Transactions {
				row, convErr := p.convertTransaction(ofxTx, currency)
				if convErr != nil {
					slog.Warn("Skipping malformed OFX transaction",
						"account", stmt.CCAcctFrom.AcctID, "error", convErr)
					continue
				}
				rows = append(rows, row)
			}
		}
	}

	slog.Info("Parsed OFX file",
		"rows", len(rows),
		"bank_statements", bankStmts,
		"cc_statements", ccStmts)

	return rows, nil
}

// statementCurrency picks the statement currency, falling back to the
// configured default when CURDEF is absent or unusable.
func (p *Parser) statementCurrency(curDef string) string {
	code := strings.ToUpper(strings.TrimSpace(curDef))
	if len(code) != 3 || code == "XXX" {
		return p.defaultCurrency
	}
	return code
}

// convertTransaction maps an OFX transaction to a raw import row. Amounts
// arrive as exact rationals and stay on the decimal path; debits and credits
// both import with their absolute value.
func (p *Parser) convertTransaction(ofxTx ofxgo.Transaction, currency string) (model.RawRow, error) {
	abs := new(big.Rat).Abs(&ofxTx.TrnAmt.Rat)
	amount, err := money.Parse(abs.FloatString(int(money.DecimalPlaces(currency))), currency)
	if err != nil {
		return model.RawRow{}, fmt.Errorf("invalid transaction amount: %w", err)
	}

	description := strings.TrimSpace(string(ofxTx.Name))
	memo := strings.TrimSpace(string(ofxTx.Memo))
	if description == "" {
		description = memo
	}

	row := model.RawRow{
		Date:          ofxTx.DtPosted.Time,
		Description:   description,
		Vendor:        p.extractVendorName(ofxTx),
		Amount:        amount,
		PaymentMethod: fmt.Sprintf("%v", ofxTx.TrnType),
	}
	if memo != "" && memo != description {
		row.Notes = memo
	}
	return row, nil
}

// extractVendorName tries to get a clean vendor name from OFX data.
func (p *Parser) extractVendorName(tx ofxgo.Transaction) string {
	// Prefer PAYEE if available (cleaner vendor name)
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	name := string(tx.Name)

	// Use MEMO field if NAME is generic
	if tx.Memo != "" && isGenericDescription(name) {
		name = string(tx.Memo)
	}

	name = strings.TrimSpace(name)

	prefixes := []string{
		"POS PURCHASE ",
		"PURCHASE AUTHORIZED ON ",
		"DEBIT CARD PURCHASE ",
		"ACH DEBIT ",
		"CHECK CARD ",
		"VISA PURCHASE ",
		"MC PURCHASE ",
		"DEBIT PURCHASE ",
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Strip leading "MM/DD " date fragments some banks prepend
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}

// isGenericDescription checks if a transaction name is too generic.
func isGenericDescription(name string) bool {
	generic := []string{
		"DEBIT",
		"CREDIT",
		"PURCHASE",
		"PAYMENT",
		"POS TRANSACTION",
		"CARD PURCHASE",
	}

	upperName := strings.ToUpper(name)
	for _, g := range generic {
		if upperName == g {
			return true
		}
	}
	return false
}
