package domain

import (
	"strconv"
	"strings"
	"time"
)

// Canonical CSV column names. Uploads may carry any subset of these;
// missing columns degrade to defaults instead of failing the batch.
const (
	ColTransactionID = "Transaction ID"
	ColCardholder    = "Cardholder Name"
	ColCardNumber    = "Card Number"
	ColCardType      = "Card Type"
	ColAmount        = "Transaction Amount"
	ColTimestamp     = "Transaction Date and Time"
	ColCurrency      = "Transaction Currency"
	ColMerchant      = "Merchant Name"
	ColMCC           = "Merchant Category Code (MCC)"
	ColLocation      = "Transaction Location (City or ZIP Code)"
	ColResponseCode  = "Transaction Response Code"
	ColSource        = "Transaction Source"
	ColNotes         = "Transaction Notes"
	ColPrevTxCount   = "Previous Transactions"
	ColFraudFlag     = "Fraud Flag or Label"
)

// Transaction is one raw record from an uploaded CSV. Fields holds every
// column as read; typed accessors coerce values with lenient defaults.
// A Transaction is never mutated after parsing - downstream stages build
// derived views instead.
type Transaction struct {
	// ID is the transaction identifier, assigned at parse time when the
	// CSV row carries none.
	ID string

	// Fields maps column name to raw cell value.
	Fields map[string]string
}

// Get returns the raw value for a column, or "" if absent.
func (t *Transaction) Get(col string) string {
	return t.Fields[col]
}

// Has reports whether the column was present and non-empty in the source row.
func (t *Transaction) Has(col string) bool {
	v, ok := t.Fields[col]
	return ok && strings.TrimSpace(v) != ""
}

// Amount returns the transaction amount, or 0 when missing or non-numeric.
func (t *Transaction) Amount() float64 {
	return t.Float(ColAmount)
}

// Float coerces a column to float64, defaulting to 0.
func (t *Transaction) Float(col string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(t.Fields[col]), 64)
	if err != nil {
		return 0
	}
	return v
}

// Int coerces a column to int, defaulting to 0.
func (t *Transaction) Int(col string) int {
	s := strings.TrimSpace(t.Fields[col])
	v, err := strconv.Atoi(s)
	if err != nil {
		// Some exports write integral columns as "123.0".
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return 0
		}
		return int(f)
	}
	return v
}

// timestampLayouts are tried in order when parsing ColTimestamp.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"01/02/2006 15:04",
	"2006-01-02",
}

// Timestamp parses the transaction date and time. The second return value
// is false when the column is missing or unparseable; callers fall back to
// sentinel features rather than aborting.
func (t *Transaction) Timestamp() (time.Time, bool) {
	raw := strings.TrimSpace(t.Fields[ColTimestamp])
	if raw == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// Currency returns the transaction currency, upper-cased.
func (t *Transaction) Currency() string {
	return strings.ToUpper(strings.TrimSpace(t.Fields[ColCurrency]))
}

// CardType returns the card network name as written.
func (t *Transaction) CardType() string {
	return strings.TrimSpace(t.Fields[ColCardType])
}

// Source returns the transaction channel, lower-cased ("online", "mobile",
// "pos", "in-store").
func (t *Transaction) Source() string {
	return strings.ToLower(strings.TrimSpace(t.Fields[ColSource]))
}

// Notes returns the free-text notes field.
func (t *Transaction) Notes() string {
	return strings.TrimSpace(t.Fields[ColNotes])
}

// Cardholder returns the cardholder name used to group per-card history.
func (t *Transaction) Cardholder() string {
	return strings.TrimSpace(t.Fields[ColCardholder])
}

// FraudFlag reports the optional ground-truth fraud label.
func (t *Transaction) FraudFlag() bool {
	return t.Int(ColFraudFlag) == 1
}

// MaskCardNumber hides all but the last four characters of a card number.
// Values of four characters or fewer are returned unchanged.
func MaskCardNumber(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 4 {
		return s
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}

// MaskedFields returns a copy of the record's fields with the card number
// masked. Used wherever a record is echoed back to the caller.
func (t *Transaction) MaskedFields() map[string]string {
	out := make(map[string]string, len(t.Fields))
	for k, v := range t.Fields {
		if k == ColCardNumber {
			v = MaskCardNumber(v)
		}
		out[k] = v
	}
	return out
}
