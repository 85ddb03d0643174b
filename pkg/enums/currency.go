package enums

import (
	"fmt"
	"strings"
)

// Currency is a billing currency. Quotes are numerically identical in both.
type Currency string

const (
	CurrencyCHF Currency = "CHF"
	CurrencyEUR Currency = "EUR"
)

var validCurrencies = []Currency{
	CurrencyCHF,
	CurrencyEUR,
}

// String implements fmt.Stringer.
func (c Currency) String() string {
	return string(c)
}

// IsValid reports whether the currency is supported.
func (c Currency) IsValid() bool {
	for _, candidate := range validCurrencies {
		if candidate == c {
			return true
		}
	}
	return false
}

// Symbol returns the display symbol shown next to prices.
func (c Currency) Symbol() string {
	switch c {
	case CurrencyCHF:
		return "CHF"
	case CurrencyEUR:
		return "€"
	default:
		return string(c)
	}
}

// ParseCurrency converts a raw code, in any case, into a Currency.
func ParseCurrency(value string) (Currency, error) {
	normalized := strings.ToUpper(strings.TrimSpace(value))
	for _, candidate := range validCurrencies {
		if string(candidate) == normalized {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid currency %q", value)
}
