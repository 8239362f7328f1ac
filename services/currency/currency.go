// Package currency converts between major and minor currency units.
//
// The factor comes from the ISO 4217 exponent rather than a fixed 100, so
// zero-decimal (JPY) and three-decimal (KWD) amounts convert correctly.
package currency

import (
	"strings"

	"github.com/shopspring/decimal"
)

const defaultExponent int32 = 2

// ISO 4217 minor unit exponents that differ from the two-decimal default.
var exponents = map[string]int32{
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "ISK": 0, "JPY": 0, "KMF": 0, "KRW": 0,
	"PYG": 0, "RWF": 0, "UGX": 0, "VND": 0, "VUV": 0, "XAF": 0, "XOF": 0, "XPF": 0,
	"BHD": 3, "IQD": 3, "JOD": 3, "KWD": 3, "LYD": 3, "OMR": 3, "TND": 3,
}

var symbols = map[string]string{
	"USD": "$", "CAD": "$", "AUD": "$", "NZD": "$",
	"EUR": "€", "GBP": "£", "JPY": "¥", "CHF": "CHF", "KWD": "د.ك",
}

// Exponent returns the number of fraction digits of the currency's smallest unit.
func Exponent(code string) int32 {
	if exp, ok := exponents[strings.ToUpper(code)]; ok {
		return exp
	}
	return defaultExponent
}

// ToMinorUnits converts a major-unit amount to the smallest unit, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal, code string) decimal.Decimal {
	return amount.Shift(Exponent(code)).Round(0)
}

// FromMinorUnits converts a smallest-unit integer back to major units.
func FromMinorUnits(amount int64, code string) decimal.Decimal {
	return decimal.NewFromInt(amount).Shift(-Exponent(code))
}

// Symbol returns the display symbol for code, falling back to the code itself.
func Symbol(code string) string {
	upper := strings.ToUpper(code)
	if s, ok := symbols[upper]; ok {
		return s
	}
	return upper
}
