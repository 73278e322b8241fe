package currency

import (
	"errors"
	"strings"
)

// ErrUnsupportedCurrency is returned when a price cannot be converted
// to EUR. Callers must drop the listing rather than guess a rate.
var ErrUnsupportedCurrency = errors.New("unsupported currency")

// Rates holds conversion factors into EUR
type Rates struct {
	USDToEUR float64
	GBPToEUR float64
}

// DefaultRates returns the built-in fallback rates
func DefaultRates() Rates {
	return Rates{USDToEUR: 0.92, GBPToEUR: 1.17}
}

// ToEur converts an amount in the given currency code to EUR
func ToEur(amount float64, code string, rates Rates) (float64, error) {
	switch strings.ToUpper(strings.TrimSpace(code)) {
	case "EUR":
		return amount, nil
	case "USD":
		return amount * rates.USDToEUR, nil
	case "GBP":
		return amount * rates.GBPToEUR, nil
	default:
		return 0, ErrUnsupportedCurrency
	}
}

// GuessCurrency detects a currency code from a raw price string by
// symbol or embedded ISO code. Returns "" when nothing matches so the
// caller can decide whether an unknown currency is safe to default.
func GuessCurrency(raw string) string {
	upper := strings.ToUpper(raw)
	switch {
	case strings.Contains(raw, "€") || strings.Contains(upper, "EUR"):
		return "EUR"
	case strings.Contains(raw, "£") || strings.Contains(upper, "GBP"):
		return "GBP"
	case strings.Contains(raw, "$") || strings.Contains(upper, "USD"):
		return "USD"
	default:
		return ""
	}
}
