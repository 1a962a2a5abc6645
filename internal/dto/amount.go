package dto

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Stripe amounts for these currencies are already in whole units.
var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true, "kmf": true,
	"krw": true, "mga": true, "pyg": true, "rwf": true, "ugx": true, "vnd": true,
	"vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// FormatAmount renders a Stripe minor-unit amount as a decimal string, e.g. 1999 usd -> "19.99".
func FormatAmount(minor int64, currency string) string {
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		return decimal.NewFromInt(minor).StringFixed(0)
	}
	return decimal.New(minor, -2).StringFixed(2)
}
