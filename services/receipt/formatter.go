package receipt

import (
	"strings"

	"cardpresent/models"
	"cardpresent/services/currency"
)

// Formatter renders minor-unit amounts using a store's currency settings.
type Formatter struct {
	settings models.CurrencySettings
}

// NewFormatter fills unset separators and position with US-style defaults.
// A zero Decimals is kept as is; use DefaultSettings for a currency-derived value.
func NewFormatter(settings models.CurrencySettings) *Formatter {
	if settings.DecimalSeparator == "" {
		settings.DecimalSeparator = "."
	}
	if settings.Position == "" {
		settings.Position = models.CurrencyPositionLeft
	}
	return &Formatter{settings: settings}
}

// DefaultSettings returns display settings for code when the store has none configured.
func DefaultSettings(code string) models.CurrencySettings {
	return models.CurrencySettings{
		Code:              strings.ToUpper(code),
		Position:          models.CurrencyPositionLeft,
		ThousandSeparator: ",",
		DecimalSeparator:  ".",
		Decimals:          currency.Exponent(code),
	}
}

// Format converts amount from minor units of code and formats it.
func (f *Formatter) Format(amount int64, code string) string {
	major := currency.FromMinorUnits(amount, code)

	fixed := major.Abs().StringFixed(f.settings.Decimals)
	intPart, fracPart := fixed, ""
	if i := strings.IndexByte(fixed, '.'); i >= 0 {
		intPart, fracPart = fixed[:i], fixed[i+1:]
	}

	number := groupThousands(intPart, f.settings.ThousandSeparator)
	if fracPart != "" {
		number += f.settings.DecimalSeparator + fracPart
	}

	symbol := currency.Symbol(code)
	var out string
	switch f.settings.Position {
	case models.CurrencyPositionRight:
		out = number + symbol
	case models.CurrencyPositionRightSpace:
		out = number + " " + symbol
	case models.CurrencyPositionLeftSpace:
		out = symbol + " " + number
	default:
		out = symbol + number
	}

	if major.IsNegative() {
		return "-" + out
	}
	return out
}

func groupThousands(digits, sep string) string {
	if sep == "" || len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	head := len(digits) % 3
	if head > 0 {
		b.WriteString(digits[:head])
	}
	for i := head; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteString(sep)
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}
