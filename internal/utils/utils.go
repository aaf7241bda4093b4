package utils

import (
	"crypto/rand"
	"fmt"
	"math"
	"math/big"
	"strings"

	"github.com/gosimple/slug"
)

// GenerateReferralCode creates a unique referral code
func GenerateReferralCode(length int) string {
	const charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	result := make([]byte, length)

	for i := range result {
		n, _ := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		result[i] = charset[n.Int64()]
	}

	return string(result)
}

// GeneratePartnerCode derives a human-readable partner code from a
// display name, with a random suffix to keep codes unique.
func GeneratePartnerCode(name string) string {
	base := slug.Make(name)
	if base == "" {
		base = "partner"
	}
	return strings.ToUpper(fmt.Sprintf("%s-%s", base, GenerateReferralCode(6)))
}

// RoundCurrency rounds a monetary amount to the currency's minor unit
// (two decimal places).
func RoundCurrency(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// FormatCurrency formats a float as currency
func FormatCurrency(amount float64, currency string) string {
	switch currency {
	case "USD":
		return fmt.Sprintf("$%.2f", amount)
	case "EUR":
		return fmt.Sprintf("€%.2f", amount)
	case "GBP":
		return fmt.Sprintf("£%.2f", amount)
	default:
		return fmt.Sprintf("%.2f %s", amount, currency)
	}
}
