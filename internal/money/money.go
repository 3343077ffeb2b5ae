// Package money converts between human-entered decimal amounts and the
// integer minor units used by the allocation engine, and formats minor units
// for display.
package money

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrUnknownCurrency = errors.New("unknown currency")
	ErrInvalidAmount   = errors.New("invalid amount")
	// ErrPrecision is returned when an amount has more fractional digits
	// than its currency's minor unit allows.
	ErrPrecision  = errors.New("amount is finer than the currency's minor unit")
	ErrOutOfRange = errors.New("amount out of range")
	// ErrCurrencyMismatch is returned when amounts in different currencies
	// would be combined.
	ErrCurrencyMismatch = errors.New("currency mismatch")
)

var (
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64 + 1)
)

// Currency is an ISO 4217 currency with its minor unit exponent.
type Currency struct {
	Code     string
	Exponent int32
}

var currencies = map[string]Currency{
	"USD": {Code: "USD", Exponent: 2},
	"EUR": {Code: "EUR", Exponent: 2},
	"GBP": {Code: "GBP", Exponent: 2},
	"UZS": {Code: "UZS", Exponent: 2},
	"RUB": {Code: "RUB", Exponent: 2},
	"KZT": {Code: "KZT", Exponent: 2},
	"JPY": {Code: "JPY", Exponent: 0},
	"KRW": {Code: "KRW", Exponent: 0},
	"KWD": {Code: "KWD", Exponent: 3},
	"BHD": {Code: "BHD", Exponent: 3},
}

// Lookup returns the currency for an ISO 4217 code, case-insensitively.
func Lookup(code string) (Currency, error) {
	c, ok := currencies[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return Currency{}, fmt.Errorf("%w: %q", ErrUnknownCurrency, code)
	}
	return c, nil
}

// MustLookup is Lookup for codes known at compile time.
func MustLookup(code string) Currency {
	c, err := Lookup(code)
	if err != nil {
		panic(err)
	}
	return c
}

// Codes returns the supported currency codes in ascending order.
func Codes() []string {
	codes := make([]string, 0, len(currencies))
	for code := range currencies {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// ParseMinor parses a decimal amount such as "12.50" or "1,250.00" into
// minor units. Amounts finer than the minor unit are rejected, never rounded.
func ParseMinor(s string, c Currency) (int64, error) {
	raw := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if raw == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}

	scaled := d.Shift(c.Exponent)
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("%w: %q in %s", ErrPrecision, s, c.Code)
	}
	if scaled.GreaterThan(maxMinor) || scaled.LessThan(minMinor) {
		return 0, fmt.Errorf("%w: %q", ErrOutOfRange, s)
	}
	return scaled.IntPart(), nil
}

// ToDecimal converts minor units back into a decimal amount.
func ToDecimal(minor int64, c Currency) decimal.Decimal {
	return decimal.New(minor, -c.Exponent)
}

// Format renders minor units with the currency code and thousands separators,
// e.g. "USD 1,234.50" or "-USD 3.00".
func Format(minor int64, c Currency) string {
	if minor < 0 {
		return "-" + c.Code + " " + formatPositive(ToDecimal(minor, c).Abs(), c.Exponent)
	}
	return c.Code + " " + formatPositive(ToDecimal(minor, c), c.Exponent)
}

// FormatNumber renders minor units without the currency code, e.g. "-1,234.50".
func FormatNumber(minor int64, c Currency) string {
	if minor < 0 {
		return "-" + formatPositive(ToDecimal(minor, c).Abs(), c.Exponent)
	}
	return formatPositive(ToDecimal(minor, c), c.Exponent)
}

func formatPositive(value decimal.Decimal, exponent int32) string {
	parts := strings.SplitN(value.StringFixed(exponent), ".", 2)
	intPart := parts[0]

	if len(intPart) > 3 {
		var builder strings.Builder
		for i, digit := range intPart {
			if i > 0 && (len(intPart)-i)%3 == 0 {
				builder.WriteByte(',')
			}
			builder.WriteRune(digit)
		}
		intPart = builder.String()
	}

	if len(parts) == 2 {
		return intPart + "." + parts[1]
	}
	return intPart
}
