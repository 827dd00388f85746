// Package core provides money parsing and handling utilities.
//
// This file contains the amount sanitizer used by the entry form, the
// parse-or-default coercion applied where records enter the system, and
// BRL formatting for display.
package core

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

// Amounts travel as JSON numbers, the shape stored records have always used.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

// SanitizeAmountInput normalizes free text typed into the amount field.
//
// Only digits, '.' and ',' survive. Commas become periods, the first period
// is kept as the decimal separator and every later digit group is appended
// to the fractional part.
//
// Examples:
//
//	SanitizeAmountInput("R$ 12,50")  -> "12.50"
//	SanitizeAmountInput("1.234,56")  -> "1.23456"
//	SanitizeAmountInput("abc")       -> ""
func SanitizeAmountInput(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
		case r == ',':
			b.WriteRune('.')
		}
	}
	parts := strings.Split(b.String(), ".")
	if len(parts) <= 1 {
		return parts[0]
	}
	return parts[0] + "." + strings.Join(parts[1:], "")
}

// ParseAmount converts text to a decimal, returning zero when the text is not
// a number. It never fails: aggregation must not fault on bad values.
func ParseAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// CoerceAmount turns a wire value into a decimal. Strings, JSON numbers and Go
// numeric types are accepted; anything else is zero.
func CoerceAmount(v any) decimal.Decimal {
	switch val := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return val
	case string:
		return ParseAmount(val)
	case json.Number:
		return ParseAmount(val.String())
	case float64:
		return decimal.NewFromFloat(val)
	case float32:
		return decimal.NewFromFloat32(val)
	case int:
		return decimal.NewFromInt(int64(val))
	case int64:
		return decimal.NewFromInt(val)
	case []byte:
		return ParseAmount(string(val))
	default:
		return decimal.Zero
	}
}

// FormatBRL formats an amount as Brazilian reais, e.g. "R$ 1.234,56".
func FormatBRL(d decimal.Decimal) string {
	neg := d.IsNegative()
	s := d.Abs().StringFixed(2)
	intPart, frac, _ := strings.Cut(s, ".")

	// Thousands separators
	var grouped strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}
	out := "R$ " + grouped.String() + "," + frac
	if neg {
		return "-" + out
	}
	return out
}

// NormalizePedido keeps only the digits of an order number, capped at six.
func NormalizePedido(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			if b.Len() == pedidoMaxLen {
				break
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

const pedidoMaxLen = 6

// AmountInput is the raw amount as submitted. It accepts either a JSON
// string (sanitized like the form field) or a JSON number.
type AmountInput string

func (a *AmountInput) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		*a = ""
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*a = AmountInput(SanitizeAmountInput(str))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*a = AmountInput(n.String())
	return nil
}

// Decimal returns the parsed amount (zero when unparseable).
func (a AmountInput) Decimal() decimal.Decimal {
	return ParseAmount(string(a))
}
