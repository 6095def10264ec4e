// Package core provides money formatting and parsing utilities.
//
// Totals are kept in major units (12.34 means twelve pounds and thirty-four
// pence). Currency codes are ISO 4217 three-letter codes.
package core

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// DefaultCurrency applies whenever an invoice currency cannot be resolved.
const DefaultCurrency = "GBP"

var currencySymbols = map[string]string{
	"GBP": "£",
	"USD": "$",
	"EUR": "€",
}

// Currencies without a minor unit.
var zeroDecimalCurrencies = map[string]bool{
	"JPY": true,
	"KRW": true,
}

var nonNumeric = regexp.MustCompile(`[^0-9.\-]`)

// NormalizeCurrency upper-cases a currency code and falls back when the
// value is not a three-letter code.
func NormalizeCurrency(code, fallback string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return fallback
	}
	for _, r := range code {
		if r < 'A' || r > 'Z' {
			return fallback
		}
	}
	return code
}

// CurrencySymbol returns the display symbol for a code, if one is known.
func CurrencySymbol(code string) (string, bool) {
	s, ok := currencySymbols[strings.ToUpper(code)]
	return s, ok
}

// MinorUnit is the smallest representable amount in the given currency.
// Differences below it count as "no change".
func MinorUnit(code string) float64 {
	if zeroDecimalCurrencies[strings.ToUpper(code)] {
		return 1
	}
	return 0.01
}

// FormatAmount renders an amount with two decimals, e.g. "£12.34",
// "-$3.00" or "12.00 CHF" for codes without a known symbol.
func FormatAmount(amount float64, code string) string {
	neg := amount < 0
	s := strconv.FormatFloat(math.Abs(amount), 'f', 2, 64)
	if sym, ok := CurrencySymbol(code); ok {
		s = sym + s
	} else if code != "" {
		s = s + " " + strings.ToUpper(code)
	}
	if neg {
		return "-" + s
	}
	return s
}

// FormatSigned is FormatAmount with an explicit "+" for positive values.
func FormatSigned(amount float64, code string) string {
	if amount > 0 {
		return "+" + FormatAmount(amount, code)
	}
	return FormatAmount(amount, code)
}

// ParseAmount extracts a number from loosely formatted text such as
// "£1,204.50" or "EUR 12". Thousands separators are dropped.
func ParseAmount(s string) (float64, bool) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	s = nonNumeric.ReplaceAllString(s, "")
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// GuessCurrency infers a currency code from a symbol in raw text.
func GuessCurrency(s string) (string, bool) {
	switch {
	case strings.Contains(s, "£"):
		return "GBP", true
	case strings.Contains(s, "$"):
		return "USD", true
	case strings.Contains(s, "€"):
		return "EUR", true
	}
	return "", false
}

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
