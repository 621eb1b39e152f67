package utils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Currencies whose minor unit differs from two decimal places.
var currencyExponents = map[string]int32{
	"BIF": 0, "CLP": 0, "DJF": 0, "GNF": 0, "JPY": 0, "KMF": 0, "KRW": 0, "MGA": 0,
	"PYG": 0, "RWF": 0, "UGX": 0, "VND": 0, "VUV": 0, "XAF": 0, "XOF": 0, "XPF": 0,
	"BHD": 3, "JOD": 3, "KWD": 3, "OMR": 3, "TND": 3,
}

// maxAmount is the first value the ledger's numeric(20,3) amount column
// cannot hold.
var maxAmount = decimal.New(1, 17)

// CurrencyExponent returns the number of decimal places used by the currency.
func CurrencyExponent(currency string) int32 {
	if exp, ok := currencyExponents[strings.ToUpper(currency)]; ok {
		return exp
	}
	return 2
}

// NormalizeCurrency trims and upper-cases an ISO-4217 code.
func NormalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

// ValidateAmount rejects non-positive amounts, amounts the ledger cannot
// store and amounts that carry more precision than the currency's minor unit.
func ValidateAmount(amount decimal.Decimal, currency string) error {
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be greater than zero")
	}
	if amount.GreaterThanOrEqual(maxAmount) {
		return fmt.Errorf("amount must be less than %s", maxAmount.String())
	}
	exp := CurrencyExponent(currency)
	if !amount.Equal(amount.Truncate(exp)) {
		return fmt.Errorf("amount %s has more than %d decimal places for %s", amount.String(), exp, NormalizeCurrency(currency))
	}
	return nil
}

// ToMinorUnits converts a major-unit amount into the provider's integer
// minor units, e.g. 19.99 USD -> 1999, 500 JPY -> 500, 1.234 KWD -> 1234.
func ToMinorUnits(amount decimal.Decimal, currency string) (int64, error) {
	if err := ValidateAmount(amount, currency); err != nil {
		return 0, err
	}
	minor := amount.Shift(CurrencyExponent(currency))
	if !minor.IsInteger() {
		return 0, fmt.Errorf("amount %s cannot be expressed in minor units", amount.String())
	}
	if minor.GreaterThan(decimal.NewFromInt(1<<53)) {
		return 0, fmt.Errorf("amount %s is too large", amount.String())
	}
	return minor.IntPart(), nil
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(minor int64, currency string) decimal.Decimal {
	return decimal.New(minor, -CurrencyExponent(currency))
}

// FormatAmount renders an amount with thousand separators and its currency,
// e.g. "1,250.50 USD".
func FormatAmount(amount decimal.Decimal, currency string) string {
	str := amount.StringFixed(CurrencyExponent(currency))
	intPart, fracPart, _ := strings.Cut(str, ".")

	sign := ""
	if strings.HasPrefix(intPart, "-") {
		sign = "-"
		intPart = intPart[1:]
	}

	var result strings.Builder
	length := len(intPart)
	for i, digit := range intPart {
		if i > 0 && (length-i)%3 == 0 {
			result.WriteString(",")
		}
		result.WriteRune(digit)
	}

	out := sign + result.String()
	if fracPart != "" {
		out += "." + fracPart
	}
	return out + " " + NormalizeCurrency(currency)
}
