package ofx

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aclindsa/ofxgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleBankOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20260315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>EUR
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>1234567890
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20260301120000[0:GMT]
<DTEND>20260331120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20260305120000[0:GMT]
<TRNAMT>-25.50
<FITID>2026030501
<NAME>ESSELUNGA MILANO
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20260310120000[0:GMT]
<TRNAMT>-125.00
<FITID>2026031001
<NAME>POS PURCHASE TRENITALIA
<MEMO>ticket to Rome
</STMTTRN>
<STMTTRN>
<TRNTYPE>CHECK
<DTPOSTED>20260312120000[0:GMT]
<TRNAMT>-500.00
<FITID>2026031201
<CHECKNUM>1234
<NAME>CHECK #1234
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1000.00
<DTASOF>20260331120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

const sampleCreditCardOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<DTSERVER>20260315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<CREDITCARDMSGSRSV1>
<CCSTMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<CCSTMTRS>
<CURDEF>USD
<CCACCTFROM>
<ACCTID>4111111111111111
</CCACCTFROM>
<BANKTRANLIST>
<DTSTART>20260301120000[0:GMT]
<DTEND>20260331120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20260308120000[0:GMT]
<TRNAMT>-45.99
<FITID>CC2026030801
<NAME>AMAZON.COM*RT4Y7HG2
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20260315120000[0:GMT]
<TRNAMT>-15.00
<FITID>CC2026031501
<NAME>NETFLIX.COM
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>-500.00
<DTASOF>20260331120000[0:GMT]
</LEDGERBAL>
</CCSTMTRS>
</CCSTMTTRNRS>
</CREDITCARDMSGSRSV1>
</OFX>`

func TestParseFile(t *testing.T) {
	tests := []struct {
		name          string
		ofxData       string
		expectedCount int
		expectedError bool
	}{
		{
			name:          "valid bank statement",
			ofxData:       sampleBankOFX,
			expectedCount: 3,
		},
		{
			name:          "valid credit card statement",
			ofxData:       sampleCreditCardOFX,
			expectedCount: 2,
		},
		{
			name:          "invalid OFX data",
			ofxData:       "not valid OFX",
			expectedError: true,
		},
		{
			name:          "empty OFX",
			ofxData:       "",
			expectedError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewParser("EUR")
			rows, err := parser.ParseFile(context.Background(), strings.NewReader(tt.ofxData))

			if tt.expectedError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Len(t, rows, tt.expectedCount)
			}
		})
	}
}

func TestParseBankRows(t *testing.T) {
	parser := NewParser("EUR")
	rows, err := parser.ParseFile(context.Background(), strings.NewReader(sampleBankOFX))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	groceries := rows[0]
	assert.Equal(t, "ESSELUNGA MILANO", groceries.Description)
	assert.Equal(t, "ESSELUNGA MILANO", groceries.Vendor, "no PAYEE, NAME is the vendor")
	assert.Equal(t, "25.50 EUR", groceries.Amount.String(), "debits import as positive amounts")
	assert.Equal(t, 2026, groceries.Date.Year())
	assert.Equal(t, time.March, groceries.Date.Month())
	assert.Equal(t, 5, groceries.Date.Day())

	train := rows[1]
	assert.Equal(t, "POS PURCHASE TRENITALIA", train.Description)
	assert.Equal(t, "TRENITALIA", train.Vendor, "POS prefix stripped")
	assert.Equal(t, "ticket to Rome", train.Notes)
	assert.Equal(t, "125.00 EUR", train.Amount.String())

	check := rows[2]
	assert.Equal(t, "500.00 EUR", check.Amount.String())
	assert.Equal(t, "CHECK", check.PaymentMethod)
}

func TestParseCreditCardRows(t *testing.T) {
	parser := NewParser("EUR")
	rows, err := parser.ParseFile(context.Background(), strings.NewReader(sampleCreditCardOFX))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "45.99 USD", rows[0].Amount.String(), "statement CURDEF wins over the default")
	assert.Equal(t, "NETFLIX.COM", rows[1].Vendor)
	assert.Equal(t, "15.00 USD", rows[1].Amount.String())
}

func TestExtractVendorName(t *testing.T) {
	parser := NewParser("EUR")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "remove POS prefix",
			input:    "POS PURCHASE STARBUCKS",
			expected: "STARBUCKS",
		},
		{
			name:     "remove DEBIT CARD prefix",
			input:    "DEBIT CARD PURCHASE WHOLE FOODS",
			expected: "WHOLE FOODS",
		},
		{
			name:     "keep clean name",
			input:    "NETFLIX.COM",
			expected: "NETFLIX.COM",
		},
		{
			name:     "trim whitespace",
			input:    "  AMAZON.COM  ",
			expected: "AMAZON.COM",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := ofxgo.Transaction{
				Name: ofxgo.String(tt.input),
			}
			assert.Equal(t, tt.expected, parser.extractVendorName(tx))
		})
	}
}
